// Package statuscheck reports readiness of the services the demo server
// depends on.
package statuscheck

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Pinger is satisfied by the result store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BinaryLocator is satisfied by the office document converter.
type BinaryLocator interface {
	Available() (string, error)
}

type Options struct {
	Store     Pinger
	Converter BinaryLocator
	// APIKeys maps provider names to their configured keys.
	APIKeys map[string]string
	Timeout time.Duration
}

type Checker struct {
	store     Pinger
	converter BinaryLocator
	apiKeys   map[string]string
	timeout   time.Duration
}

// Status represents the readiness of a subsystem.
type Status struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Summary bundles all subsystem statuses. Ready is false only when the
// store is down; a missing converter or provider key degrades features.
type Summary struct {
	Ready       bool              `json:"ready"`
	Store       Status            `json:"store"`
	LibreOffice Status            `json:"libreoffice"`
	Providers   map[string]Status `json:"providers"`
}

func New(opts Options) *Checker {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Checker{
		store:     opts.Store,
		converter: opts.Converter,
		apiKeys:   opts.APIKeys,
		timeout:   timeout,
	}
}

func (c *Checker) Summary(ctx context.Context) Summary {
	s := Summary{
		Store:       c.checkStore(ctx),
		LibreOffice: c.checkConverter(),
		Providers:   c.checkProviders(),
	}
	s.Ready = s.Store.OK
	return s
}

func (c *Checker) checkStore(ctx context.Context) Status {
	if c.store == nil {
		return Status{OK: false, Message: "store unavailable"}
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.store.Ping(ctx); err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	return Status{OK: true, Message: "Connected"}
}

func (c *Checker) checkConverter() Status {
	if c.converter == nil {
		return Status{OK: false, Message: "Not configured"}
	}
	bin, err := c.converter.Available()
	if err != nil {
		return Status{OK: false, Message: "Binary not found"}
	}
	return Status{OK: true, Message: bin}
}

func (c *Checker) checkProviders() map[string]Status {
	out := make(map[string]Status, len(c.apiKeys))
	for name, key := range c.apiKeys {
		if strings.TrimSpace(key) == "" {
			out[name] = Status{OK: false, Message: "API key missing"}
			continue
		}
		out[name] = Status{OK: true, Message: "Configured"}
	}
	return out
}

func trimError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	msg := err.Error()
	if len(msg) > 120 {
		return msg[:120]
	}
	return msg
}
