package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const uploadPrefix = "upload-"

type upload struct {
	name string
	path string
}

func (u upload) remove() {
	if err := os.Remove(u.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("path", u.path).Msg("failed to remove upload")
	}
}

// receiveUpload stores the multipart "file" field in the upload directory.
func (s *Server) receiveUpload(w http.ResponseWriter, r *http.Request) (upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return upload{}, fmt.Errorf("invalid multipart form: %v", err)
	}
	file, hdr, err := r.FormFile("file")
	if err != nil {
		return upload{}, errors.New("no file uploaded")
	}
	defer file.Close()

	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return upload{}, fmt.Errorf("create upload dir: %v", err)
	}
	name := filepath.Base(hdr.Filename)
	if name == "." || name == string(filepath.Separator) {
		name = "document"
	}
	path := filepath.Join(s.cfg.UploadDir, uploadPrefix+uuid.NewString()+"-"+name)

	out, err := os.Create(path)
	if err != nil {
		return upload{}, fmt.Errorf("save upload: %v", err)
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		os.Remove(path)
		return upload{}, fmt.Errorf("save upload: %v", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		return upload{}, fmt.Errorf("save upload: %v", err)
	}
	return upload{name: name, path: path}, nil
}

// sweepUploads removes uploads older than the configured age, left behind by
// requests that died before cleaning up.
func (s *Server) sweepUploads() {
	if s.cfg.UploadMaxAge > 0 {
		CleanupUploads(s.cfg.UploadDir, s.cfg.UploadMaxAge)
	}
}

// CleanupUploads deletes files created by the upload handlers in dir that
// are at least maxAge old.
func CleanupUploads(dir string, maxAge time.Duration) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	now := time.Now()
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), uploadPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || now.Sub(info.ModTime()) < maxAge {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err == nil {
			removed++
		}
	}
	if removed > 0 {
		log.Info().Int("removed", removed).Str("dir", dir).Msg("swept stale uploads")
	}
	return removed
}
