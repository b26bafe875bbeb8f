package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/nerrad567/otg-controller/internal/audit"
)

// AuditLog stores and lists operator actions.
// It is satisfied by *audit.SQLiteRepository.
type AuditLog interface {
	Create(ctx context.Context, e *audit.Entry) error
	List(ctx context.Context, filter audit.Filter) (*audit.ListResult, error)
}

// recordAudit appends an entry for a successful mutating request. Failures
// are logged and never fail the request.
func (s *Server) recordAudit(r *http.Request, action, entityType, entityID string, details map[string]any) {
	if s.audit == nil {
		return
	}
	subject, _ := r.Context().Value(ctxKeySubject).(string) //nolint:errcheck // absent when auth is disabled
	e := &audit.Entry{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Subject:    subject,
		Source:     audit.SourceAPI,
		Details:    details,
	}
	if err := s.audit.Create(r.Context(), e); err != nil {
		s.logger.Warn("recording audit entry failed", "action", action, "entity_type", entityType, "error", err)
	}
}

// handleListAudit returns audit entries, newest first.
//
// Query parameters:
//   - action, entity_type, entity_id: optional exact-match filters
//   - limit, offset: pagination (limit defaults to 50, max 200)
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeUnavailable(w, "audit log")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeBadRequest(w, name+" must be a non-negative integer")
			return
		}
		*dst = n
	}

	res, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing audit entries", "error", err)
		writeInternalError(w, "failed to list audit entries")
		return
	}
	writeJSON(w, http.StatusOK, res)
}
