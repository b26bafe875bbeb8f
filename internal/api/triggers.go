package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/otg-controller/internal/audit"
	"github.com/nerrad567/otg-controller/internal/automation"
)

// keywordList accepts either a JSON array of keywords or the
// comma-separated string the operator UI sends.
type keywordList []string

// UnmarshalJSON implements json.Unmarshaler.
func (k *keywordList) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err == nil {
		*k = automation.ParseKeywords(raw)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return errors.New("keywords must be a string or a list of strings")
	}
	*k = list
	return nil
}

// triggerRequest is the body of trigger create and update calls.
type triggerRequest struct {
	Action           automation.ActionKind `json:"action"`
	Keywords         keywordList           `json:"keywords"`
	DeviceIDs        []string              `json:"device_ids"`
	CommentTemplates []string              `json:"comment_templates"`
	CommentLanguage  string                `json:"comment_language"`
	Probability      *float64              `json:"probability"`
}

func (req triggerRequest) toTrigger(id string) *automation.Trigger {
	return &automation.Trigger{
		ID:               id,
		Action:           req.Action,
		Keywords:         []string(req.Keywords),
		DeviceIDs:        req.DeviceIDs,
		CommentTemplates: req.CommentTemplates,
		CommentLanguage:  req.CommentLanguage,
		Probability:      req.Probability,
	}
}

// handleListTriggers returns every trigger in configured order.
func (s *Server) handleListTriggers(w http.ResponseWriter, r *http.Request) {
	triggers, err := s.automation.ListTriggers(r.Context())
	if err != nil {
		writeInternalError(w, "failed to list triggers")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"triggers": triggers, "count": len(triggers)})
}

// handleGetTrigger returns a single trigger.
func (s *Server) handleGetTrigger(w http.ResponseWriter, r *http.Request) {
	t, err := s.automation.GetTrigger(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, automation.ErrTriggerNotFound) {
			writeNotFound(w, "trigger not found")
			return
		}
		writeInternalError(w, "failed to get trigger")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// handleCreateTrigger appends a new trigger with a generated ID.
func (s *Server) handleCreateTrigger(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	t := req.toTrigger("")
	if err := s.automation.UpsertTrigger(r.Context(), t); err != nil {
		s.writeTriggerError(w, err)
		return
	}
	s.recordAudit(r, audit.ActionCreate, audit.EntityTrigger, t.ID, map[string]any{"action": t.Action})
	writeJSON(w, http.StatusCreated, t)
}

// handleUpdateTrigger replaces an existing trigger in place.
func (s *Server) handleUpdateTrigger(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	if _, err := s.automation.GetTrigger(ctx, id); err != nil {
		if errors.Is(err, automation.ErrTriggerNotFound) {
			writeNotFound(w, "trigger not found")
			return
		}
		writeInternalError(w, "failed to get trigger")
		return
	}

	var req triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	t := req.toTrigger(id)
	if err := s.automation.UpsertTrigger(ctx, t); err != nil {
		s.writeTriggerError(w, err)
		return
	}
	s.recordAudit(r, audit.ActionUpdate, audit.EntityTrigger, id, map[string]any{"action": t.Action})
	writeJSON(w, http.StatusOK, t)
}

// handleDeleteTrigger removes a trigger.
func (s *Server) handleDeleteTrigger(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.automation.DeleteTrigger(r.Context(), id); err != nil {
		if errors.Is(err, automation.ErrTriggerNotFound) {
			writeNotFound(w, "trigger not found")
			return
		}
		writeInternalError(w, "failed to delete trigger")
		return
	}
	s.recordAudit(r, audit.ActionDelete, audit.EntityTrigger, id, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeTriggerError(w http.ResponseWriter, err error) {
	if errors.Is(err, automation.ErrInvalidTrigger) {
		writeValidationError(w, err.Error())
		return
	}
	s.logger.Error("saving trigger", "error", err)
	writeInternalError(w, "failed to save trigger")
}
