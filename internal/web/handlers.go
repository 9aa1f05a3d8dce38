package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/docuglean/internal/store"
	"github.com/local/docuglean/pkg/docuglean"
)

const documentPrompt = "Extract the document content including title, summary, and any relevant metadata. Be comprehensive and detailed."

var documentSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "title": {"type": ["string", "null"]},
    "summary": {"type": ["string", "null"]},
    "content": {"type": ["string", "null"]},
    "metadata": {
      "type": ["object", "null"],
      "properties": {
        "pageCount": {"type": ["number", "null"]},
        "author": {"type": ["string", "null"]},
        "date": {"type": ["string", "null"]}
      }
    }
  }
}`)

const indexPage = `<!doctype html>
<html><head><title>docuglean</title></head>
<body>
<h1>docuglean demo</h1>
<p>POST /process-document (multipart: file, apiKey, provider) extracts title, summary and metadata.</p>
<p>POST /classify (multipart: file, apiKey, provider, categories, chunkSize, maxConcurrent, model) splits a document into categories.</p>
<p>GET /jobs/{id} returns a stored classification.</p>
</body></html>`

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexPage))
}

// requestBackend reads the provider and API key fields, falling back to the
// configured defaults.
func (s *Server) requestBackend(r *http.Request) (docuglean.Backend, string) {
	b := docuglean.Backend(strings.ToLower(strings.TrimSpace(r.FormValue("provider"))))
	if b == "" {
		b = s.cfg.DefaultBackend
	}
	key := strings.TrimSpace(r.FormValue("apiKey"))
	if key == "" {
		key = s.cfg.APIKeys[b]
	}
	return b, key
}

func (s *Server) handleProcessDocument(w http.ResponseWriter, r *http.Request) {
	defer s.sweepUploads()

	up, err := s.receiveUpload(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer up.remove()

	backend, apiKey := s.requestBackend(r)
	if apiKey == "" {
		writeError(w, http.StatusBadRequest, "API key is required")
		return
	}

	res, err := s.client.Extract(r.Context(), docuglean.ExtractConfig{
		FilePath: up.path,
		APIKey:   apiKey,
		Backend:  backend,
		Model:    s.cfg.Models[backend],
		Prompt:   documentPrompt,
		Schema:   documentSchema,
	})
	if err != nil {
		log.Warn().Err(err).Str("file", up.name).Str("backend", backend.String()).Msg("process document failed")
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Failed to process document: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"data":     res.Parsed,
		"filename": up.name,
	})
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	defer s.sweepUploads()

	up, err := s.receiveUpload(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer up.remove()

	backend, apiKey := s.requestBackend(r)
	var categories []docuglean.Category
	if err := json.Unmarshal([]byte(r.FormValue("categories")), &categories); err != nil {
		writeError(w, http.StatusBadRequest, "categories must be a JSON array of {name, description}")
		return
	}
	opts := docuglean.ClassifyOptions{
		Model:         s.cfg.Models[backend],
		ChunkSize:     s.cfg.ChunkSize,
		MaxConcurrent: s.cfg.MaxConcurrent,
	}
	if v := r.FormValue("model"); v != "" {
		opts.Model = v
	}
	if opts.ChunkSize, err = formInt(r, "chunkSize", opts.ChunkSize); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if opts.MaxConcurrent, err = formInt(r, "maxConcurrent", opts.MaxConcurrent); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	job := store.Job{
		ID:      uuid.NewString(),
		File:    up.name,
		Backend: backend.String(),
		Created: time.Now().UTC(),
	}
	res, err := s.client.Classify(r.Context(), up.path, categories, apiKey, backend, opts)
	job.Duration = time.Since(job.Created)

	status := http.StatusOK
	body := map[string]any{"jobId": job.ID}
	if err != nil {
		job.Status = store.StatusFailed
		job.Error = err.Error()
		status = classifyStatus(err)
		body["success"] = false
		body["error"] = err.Error()
	} else {
		setResult(&job, res)
		body["success"] = true
		body["result"] = res
	}

	if serr := s.results.Save(r.Context(), job); serr != nil {
		log.Error().Err(serr).Str("job_id", job.ID).Msg("failed to store job")
	}
	writeJSON(w, status, body)
}

// setResult marks job done with res as its stored result. A result that cannot
// be encoded is logged and the job is stored as failed.
func setResult(job *store.Job, res any) {
	raw, err := json.Marshal(res)
	if err != nil {
		log.Error().Err(err).Str("job_id", job.ID).Msg("failed to encode job result")
		job.Status = store.StatusFailed
		job.Error = "encode result: " + err.Error()
		return
	}
	job.Status = store.StatusDone
	job.Result = raw
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, ok, err := s.results.Get(r.Context(), id)
	if err != nil {
		log.Error().Err(err).Str("job_id", id).Msg("failed to load job")
		writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	summary := s.status.Summary(r.Context())
	code := http.StatusOK
	if !summary.Ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, summary)
}

func classifyStatus(err error) int {
	var be *docuglean.BackendError
	switch {
	case errors.Is(err, docuglean.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.As(err, &be):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func formInt(r *http.Request, field string, def int) (int, error) {
	v := strings.TrimSpace(r.FormValue(field))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", field)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}
