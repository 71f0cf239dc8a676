package httpapi

import (
	"net/http"
	"strings"

	"thittam.org/internal/audit"
)

type grievanceRequest struct {
	Description string `json:"description"`
}

func (a *API) handleGrievances(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		items, err := a.grievances.List(r.Context(), sessionOf(r))
		if err != nil {
			handleGrievanceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	case http.MethodPost:
		a.fileGrievance(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleGrievanceResource(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/grievances/"), "/")
	if rest == "analyze" {
		a.analyzeGrievance(w, r)
		return
	}
	if rest == "" || strings.Contains(rest, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	g, err := a.grievances.Get(r.Context(), sessionOf(r), rest)
	if err != nil {
		handleGrievanceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (a *API) analyzeGrievance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req grievanceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	draft, err := a.grievances.Analyze(r.Context(), sessionOf(r), req.Description)
	if err != nil {
		handleGrievanceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

// fileGrievance files the analysed description. The description must match
// the one last analysed for the session.
func (a *API) fileGrievance(w http.ResponseWriter, r *http.Request) {
	var req grievanceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	g, err := a.grievances.Submit(r.Context(), sessionOf(r), req.Description)
	if err != nil {
		handleGrievanceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.GrievanceSubmit, map[string]any{
		"tracking_id": g.TrackingID,
		"department":  g.Analysis.Department,
		"urgency":     g.Analysis.Urgency,
	})
	writeJSON(w, http.StatusCreated, g)
}
