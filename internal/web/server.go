// Package web serves the demo HTTP API over the docuglean client.
package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/local/docuglean/internal/metrics"
	"github.com/local/docuglean/internal/statuscheck"
	"github.com/local/docuglean/internal/store"
	"github.com/local/docuglean/pkg/docuglean"
)

// Config controls request handling of the demo server.
type Config struct {
	UploadDir      string
	MaxUploadBytes int64
	UploadMaxAge   time.Duration
	DefaultBackend docuglean.Backend
	// APIKeys are used when a request does not carry its own key.
	APIKeys       map[docuglean.Backend]string
	Models        map[docuglean.Backend]string
	ChunkSize     int
	MaxConcurrent int
	// Converter is reported by /ready when set.
	Converter statuscheck.BinaryLocator
}

type Server struct {
	client  *docuglean.Client
	results store.Results
	status  *statuscheck.Checker
	cfg     Config
}

func New(client *docuglean.Client, results store.Results, cfg Config) *Server {
	if cfg.UploadDir == "" {
		cfg.UploadDir = "uploads"
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 50 << 20
	}
	if cfg.DefaultBackend == "" {
		cfg.DefaultBackend = docuglean.OpenAI
	}
	keys := make(map[string]string, len(cfg.APIKeys))
	for b, k := range cfg.APIKeys {
		keys[b.String()] = k
	}
	status := statuscheck.New(statuscheck.Options{
		Store:     results,
		Converter: cfg.Converter,
		APIKeys:   keys,
	})
	return &Server{client: client, results: results, status: status, cfg: cfg}
}

// Routes returns the HTTP handler with all endpoints mounted.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/ready", s.handleReady)
	r.Handle("/metrics", metrics.Handler())
	r.Get("/", s.handleIndex)

	r.Post("/process-document", s.handleProcessDocument)
	r.Post("/classify", s.handleClassify)
	r.Get("/jobs/{id}", s.handleJob)
	return r
}
