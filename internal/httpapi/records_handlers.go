package httpapi

import (
	"net/http"
	"strings"

	"thittam.org/internal/audit"
)

// explorerReminderDocuments is stored for reminders saved from the scheme
// explorer when the client names no documents.
var explorerReminderDocuments = []string{"Aadhar Card", "Smart Card", "Income Certificate"}

type reminderRequest struct {
	SchemeName      string   `json:"schemeName"`
	DocumentsNeeded []string `json:"documentsNeeded"`
}

func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	ov, err := a.dashboard.Overview(r.Context(), sessionOf(r))
	if err != nil {
		handleProfileError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

func (a *API) handleApplications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	apps, err := a.registry.Applications(r.Context(), sessionOf(r))
	if err != nil {
		handleProfileError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": apps})
}

func (a *API) handleReminders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		items, err := a.registry.Reminders(r.Context(), sessionOf(r))
		if err != nil {
			handleProfileError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	case http.MethodPost:
		a.createReminder(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) createReminder(w http.ResponseWriter, r *http.Request) {
	var req reminderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	scheme := strings.TrimSpace(req.SchemeName)
	if scheme == "" {
		writeError(w, r, http.StatusBadRequest, "schemeName is required")
		return
	}
	docs := req.DocumentsNeeded
	if len(docs) == 0 {
		docs = explorerReminderDocuments
	}
	rem, err := a.registry.AddReminder(r.Context(), sessionOf(r), scheme, docs)
	if err != nil {
		handleProfileError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.ReminderSave, map[string]any{
		"reminder_id": rem.ID,
		"scheme":      rem.SchemeName,
		"source":      "explorer",
	})
	writeJSON(w, http.StatusCreated, rem)
}

func (a *API) handleReminderResource(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/reminders/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	if err := a.registry.DeleteReminder(r.Context(), sessionOf(r), id); err != nil {
		handleProfileError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.ReminderDelete, map[string]any{"reminder_id": id})
	w.WriteHeader(http.StatusNoContent)
}
