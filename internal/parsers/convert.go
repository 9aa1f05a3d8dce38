package parsers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/docuglean/internal/limiter"
)

// ErrConverterUnavailable is returned when no office suite binary is found.
var ErrConverterUnavailable = errors.New("libreoffice not available")

const defaultConvertTimeout = 3 * time.Minute

// Converter turns legacy office documents into PDF with headless LibreOffice.
type Converter struct {
	// Binary defaults to the first of soffice or libreoffice found on PATH.
	Binary  string
	Timeout time.Duration

	lim *limiter.Limiter
}

// NewConverter allows at most maxWorkers conversions at a time.
func NewConverter(maxWorkers int) *Converter {
	return &Converter{lim: limiter.New(maxWorkers)}
}

// Available reports the binary conversions would run.
func (c *Converter) Available() (string, error) { return c.binary() }

func (c *Converter) binary() (string, error) {
	if c.Binary != "" {
		return c.Binary, nil
	}
	for _, name := range []string{"soffice", "libreoffice"} {
		if p, err := exec.LookPath(name); err == nil {
			return p, nil
		}
	}
	return "", ErrConverterUnavailable
}

// ConvertToPDF converts data, named name, and returns the PDF bytes.
func (c *Converter) ConvertToPDF(ctx context.Context, name string, data []byte) ([]byte, error) {
	bin, err := c.binary()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("file is empty")
	}

	release, ok := c.lim.Allow()
	if !ok {
		log.Debug().Str("file", name).Int("workers", c.lim.Size()).Msg("waiting for a free converter")
		if release, err = c.lim.Acquire(ctx); err != nil {
			return nil, err
		}
	}
	defer release()

	workDir, err := os.MkdirTemp("", "docuglean-convert-")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	base := filepath.Base(name)
	if base == "." || base == string(filepath.Separator) {
		base = "document"
	}
	input := filepath.Join(workDir, base)
	if err := os.WriteFile(input, data, 0o600); err != nil {
		return nil, fmt.Errorf("write input: %w", err)
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultConvertTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// a private profile lets conversions run side by side
	profile := filepath.Join(workDir, "profile-"+uuid.NewString())
	cmd := exec.CommandContext(ctx, bin,
		"-env:UserInstallation=file://"+profile,
		"--headless",
		"--convert-to", "pdf",
		"--outdir", workDir,
		input,
	)
	log.Debug().Str("cmd", strings.Join(cmd.Args, " ")).Msg("libreoffice command")

	start := time.Now()
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("conversion aborted: %w", ctx.Err())
		}
		msg := strings.ToLower(string(out))
		if strings.Contains(msg, "password") || strings.Contains(msg, "encrypted") {
			return nil, fmt.Errorf("document is password protected: %w", err)
		}
		return nil, fmt.Errorf("conversion failed: %w: %s", err, strings.TrimSpace(string(out)))
	}

	output := filepath.Join(workDir, strings.TrimSuffix(base, filepath.Ext(base))+".pdf")
	pdf, err := os.ReadFile(output)
	if err != nil {
		return nil, fmt.Errorf("output file not created: %w", err)
	}
	log.Info().Str("input", base).Int("bytes", len(pdf)).Dur("duration", time.Since(start)).Msg("conversion successful")
	return pdf, nil
}
