package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"thittam.org/internal/geo"
	"thittam.org/internal/workflow"
)

type chatRequest struct {
	Message string `json:"message"`
}

func (a *API) handlePresets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": workflow.Presets})
}

func (a *API) handleSectors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": workflow.Sectors})
}

// handleSchemeSearch serves the explorer. A sector id may stand in for the
// query text.
func (a *API) handleSchemeSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if sid := r.URL.Query().Get("sector"); sid != "" {
		sec, ok := workflow.SectorByID(sid)
		if !ok {
			writeError(w, r, http.StatusNotFound, "unknown sector")
			return
		}
		q = sec.Query
	}
	if q == "" {
		writeError(w, r, http.StatusBadRequest, "q is required")
		return
	}
	ctx, cancel := a.advisoryCtx(r.Context())
	defer cancel()
	res, err := a.advisory.SearchSchemes(ctx, workflow.SearchQuery(q))
	if err != nil {
		handleAdvisoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleDistricts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": geo.Districts()})
}

func (a *API) handleTaluks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	district, ok := geo.District(r.URL.Query().Get("district"))
	if !ok {
		writeError(w, r, http.StatusNotFound, "unknown district")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"district": district, "items": geo.Taluks(district)})
}

// handleVillages lists villages for a taluk. Taluks without their own table
// get the generic list, so any non-empty name is accepted.
func (a *API) handleVillages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	taluk := strings.TrimSpace(r.URL.Query().Get("taluk"))
	if taluk == "" {
		writeError(w, r, http.StatusBadRequest, "taluk is required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"taluk": taluk, "items": geo.Villages(taluk)})
}

func (a *API) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		writeError(w, r, http.StatusBadRequest, "message is required")
		return
	}
	ctx, cancel := a.advisoryCtx(r.Context())
	defer cancel()
	reply, err := a.advisory.Chat(ctx, msg)
	if err != nil {
		handleAdvisoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reply": reply})
}

func (a *API) handleCenters(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	lat, err1 := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lng, err2 := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	if err1 != nil || err2 != nil || !validCoordinates(lat, lng) {
		writeError(w, r, http.StatusBadRequest, "lat and lng must be valid coordinates")
		return
	}
	ctx, cancel := a.advisoryCtx(r.Context())
	defer cancel()
	res, err := a.advisory.NearbyCenters(ctx, lat, lng)
	if err != nil {
		handleAdvisoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
