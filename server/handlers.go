package server

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/poiesic/projectsearch/core"
	"github.com/poiesic/projectsearch/enrich"
	"github.com/poiesic/projectsearch/storage"
)

const maxBodyBytes = 8 << 20

type addRequest struct {
	Secret string `json:"secret"`
	Data   string `json:"data"`
}

type addResponse struct {
	ID       int  `json:"id"`
	Inserted bool `json:"inserted"`
	Records  int  `json:"records"`
}

type setExtrasRequest struct {
	Secret        string    `json:"secret"`
	ID            *int      `json:"id"`
	Embedding     []float32 `json:"embedding"`
	AIDescription float32   `json:"ai_description"`
	AICode        float32   `json:"ai_code"`
}

type statusResponse struct {
	Records int    `json:"records"`
	Pending int    `json:"pending"`
	Uptime  string `json:"uptime"`
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if !s.decode(w, r, &req) {
		return
	}
	if !s.authorized(req.Secret) {
		writeError(w, http.StatusUnauthorized, "invalid secret")
		return
	}

	pos, inserted, err := s.backend.IngestJSON(r.Context(), []byte(req.Data))
	if err != nil {
		s.logger.Warn("rejected page", "err", err)
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, addResponse{
		ID:       pos,
		Inserted: inserted,
		Records:  s.backend.Len(),
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	if !params.Has("q") {
		writeError(w, http.StatusBadRequest, "missing query parameter 'q'")
		return
	}

	start := time.Now()
	results := s.backend.Search(r.Context(), params.Get("q"), s.queryLimit)
	s.logger.Debug("ranked query", "q", params.Get("q"), "results", len(results), "took", time.Since(start))

	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	pos, ok := intParam(w, r, "uuid")
	if !ok {
		return
	}

	page, err := s.backend.Preview(r.Context(), pos)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	data, err := core.MarshalPage(page)
	if err != nil {
		s.logger.Error("failed to encode page", "position", pos, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to encode page")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handleSetExtras(w http.ResponseWriter, r *http.Request) {
	var req setExtrasRequest
	if !s.decode(w, r, &req) {
		return
	}
	if !s.authorized(req.Secret) {
		writeError(w, http.StatusUnauthorized, "invalid secret")
		return
	}
	if req.ID == nil {
		writeError(w, http.StatusBadRequest, "missing field 'id'")
		return
	}

	if req.Embedding == nil {
		writeError(w, http.StatusBadRequest, "missing field 'embedding'")
		return
	}

	computed := &core.ComputedData{
		Embedding:     req.Embedding,
		AIDescription: req.AIDescription,
		AICode:        req.AICode,
	}
	if err := s.backend.SetExtras(r.Context(), *req.ID, computed); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"id": *req.ID})
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	pos, ok := intParam(w, r, "id")
	if !ok {
		return
	}

	limit := 10
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 {
			limit = min(n, s.queryLimit)
		}
	}

	results, err := s.backend.Similar(r.Context(), pos, limit)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sourceId": pos,
		"results":  results,
		"total":    len(results),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Records: s.backend.Len(),
		Pending: s.backend.PendingCount(),
		Uptime:  time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) authorized(secret string) bool {
	return subtle.ConstantTimeCompare([]byte(secret), []byte(s.secret)) == 1
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter '"+name+"'")
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return n, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrNoEmbedding):
		return http.StatusConflict
	case errors.Is(err, core.ErrMalformed),
		errors.Is(err, core.ErrInvalidPage),
		errors.Is(err, core.ErrInvalidComputedData),
		errors.Is(err, enrich.ErrEmbeddingTooShort):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
