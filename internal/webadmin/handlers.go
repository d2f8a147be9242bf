package webadmin

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/killmongerinheret/vinted-watch/internal/catalog"
	"github.com/killmongerinheret/vinted-watch/internal/model"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte("<html><body><h1>vinted-watch</h1></body></html>"))
}

func (s *Server) handleListQueries(w http.ResponseWriter, r *http.Request) {
	queries, err := s.store.Queries(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list queries")
		return
	}
	writeJSON(w, http.StatusOK, queries)
}

type addQueryRequest struct {
	Query     string `json:"query" validate:"required,url"`
	QueryName string `json:"query_name"`
	ThreadID  *int64 `json:"thread_id"`
}

func (s *Server) handleAddQuery(w http.ResponseWriter, r *http.Request) {
	var req addQueryRequest
	if !decodeAndValidate(w, r, s.validate, &req) {
		return
	}

	canon, err := catalog.Canonicalize(req.Query)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid query url")
		return
	}

	id, err := s.store.AddQuery(r.Context(), model.Query{
		URL:      canon.String(),
		Name:     req.QueryName,
		ThreadID: req.ThreadID,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to add query")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"id": id})
}

func (s *Server) handleRemoveQuery(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := s.store.RemoveQuery(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to remove query")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRemoveAllQueries(w http.ResponseWriter, r *http.Request) {
	if err := s.store.RemoveAllQueries(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to remove queries")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type editQueryRequest struct {
	QueryName string `json:"query_name"`
	ThreadID  *int64 `json:"thread_id"`
	Priority  bool   `json:"priority"`
}

func (s *Server) handleEditQuery(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req editQueryRequest
	if !decodeAndValidate(w, r, s.validate, &req) {
		return
	}

	if err := s.store.EditQuery(r.Context(), id, req.QueryName, req.ThreadID, req.Priority); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to edit query")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type updateThreadIDRequest struct {
	QueryID  int64 `json:"query_id" validate:"required"`
	ThreadID int64 `json:"thread_id" validate:"required"`
}

func (s *Server) handleUpdateThreadID(w http.ResponseWriter, r *http.Request) {
	var req updateThreadIDRequest
	if !decodeAndValidate(w, r, s.validate, &req) {
		return
	}
	if err := s.store.UpdateThreadID(r.Context(), req.QueryID, &req.ThreadID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update thread id")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleClearAllItems(w http.ResponseWriter, r *http.Request) {
	if err := s.store.ClearAllItems(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to clear items")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	queryID, err := strconv.ParseInt(r.URL.Query().Get("query"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "query parameter required")
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	items, err := s.store.ItemsForQuery(r.Context(), queryID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list items")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	params, err := s.store.Parameters(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read config")
		return
	}
	writeJSON(w, http.StatusOK, params)
}

type updateConfigRequest struct {
	Key   string `json:"key" validate:"required"`
	Value string `json:"value" validate:"required"`
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req updateConfigRequest
	if !decodeAndValidate(w, r, s.validate, &req) {
		return
	}
	if err := s.store.SetParameter(r.Context(), req.Key, req.Value); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update config")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTelegramControl(w http.ResponseWriter, r *http.Request) {
	if s.telegram == nil {
		writeError(w, http.StatusServiceUnavailable, "telegram not configured")
		return
	}
	switch chi.URLParam(r, "action") {
	case "start":
		s.telegram.Start()
	case "stop":
		s.telegram.Stop()
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleControlStatus(w http.ResponseWriter, r *http.Request) {
	running := s.telegram != nil && s.telegram.Running()
	writeJSON(w, http.StatusOK, map[string]any{
		"telegram_running": running,
		"cache_mode":       s.cacheMode(),
	})
}

func (s *Server) handleGetAllowlist(w http.ResponseWriter, r *http.Request) {
	codes, err := s.store.Allowlist(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read allowlist")
		return
	}
	writeJSON(w, http.StatusOK, codes)
}

type countryRequest struct {
	Code string `json:"code" validate:"required,len=2"`
}

func (s *Server) handleAddCountry(w http.ResponseWriter, r *http.Request) {
	var req countryRequest
	if !decodeAndValidate(w, r, s.validate, &req) {
		return
	}
	if err := s.store.AddCountry(r.Context(), req.Code); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to add country")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRemoveCountry(w http.ResponseWriter, r *http.Request) {
	var req countryRequest
	if !decodeAndValidate(w, r, s.validate, &req) {
		return
	}
	if err := s.store.RemoveCountry(r.Context(), req.Code); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to remove country")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleClearAllowlist(w http.ResponseWriter, r *http.Request) {
	if err := s.store.ClearAllowlist(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to clear allowlist")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLogsPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte("<html><body><h1>logs</h1></body></html>"))
}

func (s *Server) handleAPILogs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, []string{})
}

func (s *Server) handleRedeployStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.governor.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"error_401":      snap.Error401,
		"error_403":      snap.Error403,
		"error_429":      snap.Error429,
		"success_streak": snap.SuccessStreak,
		"last_redeploy":  snap.LastRedeploy,
	})
}

func (s *Server) handleProxyStatus(w http.ResponseWriter, r *http.Request) {
	size := 0
	if s.proxies != nil {
		size = s.proxies.Size()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pool_size":  size,
		"cache_mode": s.cacheMode(),
	})
}

func (s *Server) handleForceRedeploy(w http.ResponseWriter, r *http.Request) {
	if s.redeploy == nil {
		writeError(w, http.StatusServiceUnavailable, "redeploy not configured")
		return
	}
	s.redeploy(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"status": "triggered"})
}
