package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ronappleton/advisorflow/internal/workflow"
	"go.uber.org/zap"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("content-type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

type triggerRequest struct {
	Event           string `json:"event"`
	EntityID        string `json:"entity_id"`
	EntityName      string `json:"entity_name"`
	SubjectContains string `json:"subject_contains,omitempty"`
	EntityCreatedAt string `json:"entity_created_at,omitempty"`
}

func (s *Server) handleTriggers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var body triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	// Unknown events match no templates and yield an empty result.
	event := workflow.TriggerEvent(strings.TrimSpace(body.Event))
	if strings.TrimSpace(body.EntityID) == "" {
		http.Error(w, "entity_id required", http.StatusBadRequest)
		return
	}
	opts := workflow.FireOptions{SubjectContains: body.SubjectContains}
	if body.EntityCreatedAt != "" {
		created, err := parseTime(body.EntityCreatedAt)
		if err != nil {
			http.Error(w, "entity_created_at must be RFC3339 or YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		opts.EntityCreatedAt = created
	}
	res := s.wf.Fire(r.Context(), event, body.EntityID, body.EntityName, opts)
	if len(res.Errors) > 0 {
		s.logger.Warn("trigger completed with errors",
			zap.String("event", string(event)),
			zap.String("entity_id", body.EntityID),
			zap.Strings("errors", res.Errors))
	}
	writeJSON(w, res)
}

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]any{"items": s.wf.ListTemplates()})
}

func (s *Server) handleTemplateByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/templates/"), "/")
	if id == "" {
		http.Error(w, "template id required", http.StatusBadRequest)
		return
	}
	t, err := s.wf.GetTemplate(id)
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, t)
}

// handleEntityRoutes serves /v1/entities/{id}/instances,
// /v1/entities/{id}/records, /v1/entities/{id}/reconcile and
// /v1/entities/{id}/templates/{templateID}/pending.
func (s *Server) handleEntityRoutes(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/entities/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) < 2 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	entityID := parts[0]

	switch {
	case len(parts) == 2 && parts[1] == "instances":
		s.handleInstances(w, r, entityID)
	case len(parts) == 2 && parts[1] == "records":
		s.handleRecords(w, r, entityID)
	case len(parts) == 2 && parts[1] == "reconcile":
		s.handleReconcile(w, r, entityID)
	case len(parts) == 4 && parts[1] == "templates" && parts[3] == "pending":
		s.handlePending(w, r, entityID, parts[2])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (s *Server) handleInstances(w http.ResponseWriter, r *http.Request, entityID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var created time.Time
	if v := r.URL.Query().Get("created_at"); v != "" {
		parsed, err := parseTime(v)
		if err != nil {
			http.Error(w, "created_at must be RFC3339 or YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		created = parsed
	}
	items, err := s.wf.Instances(r.Context(), entityID, r.URL.Query().Get("entity_name"), created)
	if err != nil {
		s.fail(w, err)
		return
	}
	if items == nil {
		items = []workflow.Instance{}
	}
	writeJSON(w, map[string]any{"items": items})
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request, entityID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	items, err := s.wf.Records(r.Context(), entityID)
	if err != nil {
		s.fail(w, err)
		return
	}
	if items == nil {
		items = []workflow.Record{}
	}
	writeJSON(w, map[string]any{"items": items})
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request, entityID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	n, err := s.wf.Reconcile(r.Context(), entityID)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, map[string]any{"rewritten": n})
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request, entityID, templateID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	steps, err := s.wf.PendingSteps(r.Context(), entityID, templateID)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, map[string]any{"items": steps})
}

func (s *Server) handleActiveInstances(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	items, err := s.wf.ActiveInstances(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, map[string]any{"items": items})
}

// handleRecordRoutes serves POST /v1/records/{id}/status.
func (s *Server) handleRecordRoutes(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/records/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "status" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(body.Status) == "" {
		http.Error(w, "status required", http.StatusBadRequest)
		return
	}
	if err := s.wf.SetRecordStatus(r.Context(), parts[0], body.Status); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, map[string]any{"ok": true})
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, workflow.ErrUnsupported):
		http.Error(w, err.Error(), http.StatusNotImplemented)
	default:
		s.logger.Error("request failed", zap.Error(err))
		http.Error(w, "record store unavailable", http.StatusBadGateway)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("content-type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func parseTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, v)
}
