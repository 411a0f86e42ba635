package review

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"time"

	"github.com/MeKo-Tech/bibwatch/internal/collector"
	"github.com/MeKo-Tech/bibwatch/internal/result"
)

// HealthResponse is returned by /healthz.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version,omitempty"`
	PendingManual int    `json:"pending_manual"`
	Time          string `json:"time"`
}

func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	body, err := s.renderPage(r)
	if err != nil {
		s.logger.Error("failed to render landing page", "error", err)
		http.Error(w, s.localize(r, "InternalError", nil), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(body)
}

func (s *Server) nextImageHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.collector.NextManualPending(r.Context())
	if !ok {
		http.Error(w, s.localize(r, "NoImages", nil), http.StatusNotFound)
		return
	}
	data, err := s.readFile(id)
	if err != nil {
		// Hand the claim back so the result stays reviewable once the file is
		// readable again.
		s.collector.ReleaseClaim(id)
		s.logger.Error("claimed image cannot be read, returned to the review queue",
			"identity", id, "error", err)
		http.Error(w, s.localize(r, "NoImages", nil), http.StatusNotFound)
		return
	}
	reviewsServed.Inc()

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(id)+`"`)
	w.Header().Set("X-Identity", url.PathEscape(id))
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func (s *Server) submitHandler(w http.ResponseWriter, r *http.Request) {
	ref := r.PathValue("identity")
	if ref == "" {
		s.badPathHandler(w, r)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		http.Error(w, s.localize(r, "InvalidNumbers", map[string]any{"Error": err.Error()}), http.StatusBadRequest)
		return
	}
	numbers, err := s.decodeNumbers(body)
	if err != nil {
		reviewSubmissions.WithLabelValues("invalid").Inc()
		http.Error(w, s.localize(r, "InvalidNumbers", map[string]any{"Error": err.Error()}), http.StatusBadRequest)
		return
	}

	id, ok := s.collector.ResolveClaimed(ref)
	if !ok {
		reviewSubmissions.WithLabelValues("unknown").Inc()
		http.Error(w, s.localize(r, "UnknownImage", map[string]any{"Identity": ref}), http.StatusNotFound)
		return
	}

	err = s.collector.ApplyManualResult(r.Context(), id, numbers)
	switch {
	case err == nil:
	case errors.Is(err, collector.ErrUnknownIdentity):
		reviewSubmissions.WithLabelValues("unknown").Inc()
		http.Error(w, s.localize(r, "UnknownImage", map[string]any{"Identity": ref}), http.StatusNotFound)
		return
	case errors.Is(err, result.ErrInvalidState):
		reviewSubmissions.WithLabelValues("conflict").Inc()
		http.Error(w, s.localize(r, "AlreadyResolved", map[string]any{"Identity": ref}), http.StatusConflict)
		return
	default:
		s.logger.Error("manual result not applied", "identity", id, "error", err)
		http.Error(w, s.localize(r, "InternalError", nil), http.StatusInternalServerError)
		return
	}

	reviewSubmissions.WithLabelValues("ok").Inc()
	s.logger.Info("manual result submitted", "identity", id, "numbers", numbers)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) badPathHandler(w http.ResponseWriter, r *http.Request) {
	http.Error(w, s.localize(r, "BadPath", map[string]any{"Path": r.URL.Path}), http.StatusBadRequest)
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{
		Status:        "healthy",
		Version:       s.cfg.Version,
		PendingManual: s.collector.PendingManualCount(),
		Time:          time.Now().UTC().Format(time.RFC3339),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("failed to encode health response", "error", err)
	}
}
