package web

import (
	"errors"
	"net/http"
	"slices"
	"strconv"
	"time"

	"mytube/internal/adapters/http/middleware"
	"mytube/internal/application/orchestrators"
	"mytube/internal/application/projections"
	"mytube/internal/domain/outbox"
	"mytube/internal/domain/parental"
)

func (s *server) parentalDeps() orchestrators.ParentalDeps {
	return orchestrators.ParentalDeps{
		PINHash:    s.deps.Settings.PINHash,
		GuardStore: s.deps.Guard,
		Sessions:   s.sessions,
		Now:        timeNow,
	}
}

// handleUnlock handles POST /api/parental/unlock
func (s *server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	var input struct {
		PIN string `json:"pin"`
	}
	if err := strictDecode(r, &input); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request")
		return
	}

	res, err := orchestrators.ExecuteUnlockParental(r.Context(), orchestrators.UnlockParentalInput{PIN: input.PIN}, s.parentalDeps())
	switch {
	case errors.Is(err, parental.ErrInvalidPIN):
		writeJSONError(w, http.StatusUnauthorized, err.Error())
		return
	case errors.Is(err, parental.ErrLockedOut):
		writeJSONError(w, http.StatusTooManyRequests, err.Error())
		return
	case err != nil:
		internalError(w, err)
		return
	}

	middleware.SetSessionCookie(w, res.Token, s.sessions.TTL())
	writeJSON(w, http.StatusOK, map[string]bool{"unlocked": true})
}

// handleLock handles POST /api/parental/lock
func (s *server) handleLock(w http.ResponseWriter, r *http.Request) {
	orchestrators.ExecuteLockParental(r.Context(), orchestrators.LockParentalInput{Token: middleware.SessionToken(r)}, s.parentalDeps())
	middleware.ClearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// handleUndo handles POST /api/parental/undo
func (s *server) handleUndo(w http.ResponseWriter, r *http.Request) {
	p := orchestrators.ExecuteUndoLastClip(r.Context(), s.deps.Session)
	writeJSON(w, http.StatusOK, s.view(p))
}

// handleSetLimit handles POST /api/parental/limit
// Only the limits offered in the panel are accepted.
func (s *server) handleSetLimit(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Limit int `json:"limit"`
	}
	if err := strictDecode(r, &input); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if !slices.Contains(s.deps.Settings.LimitChoices, input.Limit) {
		writeJSONError(w, http.StatusBadRequest, "limit must be one of the offered choices")
		return
	}
	p := orchestrators.ExecuteSetLimit(r.Context(), orchestrators.SetLimitInput{Limit: input.Limit}, s.deps.Session)
	writeJSON(w, http.StatusOK, s.view(p))
}

// handleReset handles POST /api/parental/reset
// The elapsed-time clock restarts with the session.
func (s *server) handleReset(w http.ResponseWriter, r *http.Request) {
	p := orchestrators.ExecuteResetSession(r.Context(), s.deps.Session)
	s.clock.Restart(timeNow())
	writeJSON(w, http.StatusOK, s.view(p))
}

// handleElapsed handles GET /api/parental/elapsed
func (s *server) handleElapsed(w http.ResponseWriter, _ *http.Request) {
	started := s.clock.Started()
	writeJSON(w, http.StatusOK, map[string]string{
		"started_at": started.Format("2006-01-02 15:04"),
		"elapsed":    projections.FormatElapsed(timeNow().Sub(started)),
	})
}

// handleHistory handles GET /api/parental/history?limit=N
func (s *server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		writeJSON(w, http.StatusOK, projections.GetWatchHistoryResult{Rows: []projections.HistoryRow{}})
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	res, err := projections.QueryGetWatchHistory(r.Context(), projections.GetWatchHistoryQuery{
		Limit: limit,
		Now:   timeNow(),
	}, projections.GetWatchHistoryDeps{History: s.deps.History})
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handlePerf handles GET /api/parental/perf
func (s *server) handlePerf(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Collector == nil {
		writeJSONError(w, http.StatusNotFound, "performance data disabled")
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Collector.Snapshot(timeNow().Add(-time.Hour), 10))
}

// handleOutbox handles GET /api/parental/outbox
func (s *server) handleOutbox(w http.ResponseWriter, r *http.Request) {
	if s.deps.OutboxStore == nil {
		writeJSON(w, http.StatusOK, projections.GetOutboxResult{Pending: []projections.OutboxRow{}, Failed: []projections.OutboxRow{}})
		return
	}
	res, err := projections.QueryGetOutbox(r.Context(), projections.GetOutboxQuery{}, projections.GetOutboxDeps{Outbox: s.deps.OutboxStore})
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleOutboxAction handles POST /api/parental/outbox/{id}/retry and /abandon
func (s *server) handleOutboxAction(w http.ResponseWriter, r *http.Request) {
	if s.deps.Outbox == nil {
		writeJSONError(w, http.StatusNotFound, "notifications are not configured")
		return
	}
	id := r.PathValue("id")
	var err error
	switch r.PathValue("action") {
	case "retry":
		err = s.deps.Outbox.ProcessSingle(r.Context(), id)
	case "abandon":
		err = s.deps.Outbox.AbandonEntry(r.Context(), id)
	default:
		writeJSONError(w, http.StatusNotFound, "unknown action")
		return
	}
	switch {
	case errors.Is(err, outbox.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, outbox.ErrTerminal):
		writeJSONError(w, http.StatusConflict, err.Error())
	case err != nil:
		writeJSONError(w, http.StatusBadGateway, err.Error())
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": r.PathValue("action") + " done"})
	}
}
