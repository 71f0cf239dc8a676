package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"thittam.org/internal/address"
	"thittam.org/internal/audit"
	"thittam.org/internal/documents"
	"thittam.org/internal/workflow"
)

type searchRequest struct {
	Query  string `json:"query"`
	Sector string `json:"sector"`
}

type selectRequest struct {
	Scheme string `json:"scheme"`
}

type extraRequest struct {
	ID    string          `json:"id"`
	Value json.RawMessage `json:"value"`
}

func (a *API) flow(w http.ResponseWriter, r *http.Request) (*workflow.Workflow, bool) {
	wf, err := a.workflows.Get(r.Context(), sessionOf(r))
	if err != nil {
		handleProfileError(w, r, err)
		return nil, false
	}
	return wf, true
}

func (a *API) handleWorkflowState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	wf, ok := a.flow(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, wf.Snapshot())
}

func (a *API) handleWorkflow(w http.ResponseWriter, r *http.Request) {
	action := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/workflow/"), "/")
	if doc, ok := strings.CutPrefix(action, "documents/"); ok {
		a.workflowDocument(w, r, doc)
		return
	}
	want := http.MethodPost
	if action == "form" {
		want = http.MethodPatch
	}
	if r.Method != want {
		methodNotAllowed(w, r, want)
		return
	}

	switch action {
	case "search":
		a.workflowSearch(w, r)
	case "select":
		a.workflowSelect(w, r)
	case "form":
		a.workflowForm(w, r)
	case "extra":
		a.workflowExtra(w, r)
	case "address":
		a.workflowAddress(w, r)
	case "address/locate":
		a.workflowLocate(w, r)
	case "submit":
		a.workflowSubmit(w, r)
	case "proceed":
		a.workflowProceed(w, r)
	case "reminder":
		a.workflowReminder(w, r)
	case "portal":
		a.workflowPortal(w, r)
	case "done":
		wf, ok := a.flow(w, r)
		if !ok {
			return
		}
		if err := wf.Done(); err != nil {
			handleWorkflowError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, wf.Snapshot())
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

// workflowSearch replaces the selection list. On failure the previous list
// is kept and the error is reported as retryable.
func (a *API) workflowSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	wf, ok := a.flow(w, r)
	if !ok {
		return
	}
	var err error
	if req.Sector != "" {
		_, err = wf.SearchSector(r.Context(), req.Sector)
	} else {
		_, err = wf.Search(r.Context(), req.Query)
	}
	if err != nil {
		handleWorkflowError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wf.Snapshot())
}

func (a *API) workflowSelect(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	wf, ok := a.flow(w, r)
	if !ok {
		return
	}
	if err := wf.SelectScheme(r.Context(), req.Scheme); err != nil {
		handleWorkflowError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, wf.Snapshot())
}

func (a *API) workflowForm(w http.ResponseWriter, r *http.Request) {
	var patch workflow.FormPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	wf, ok := a.flow(w, r)
	if !ok {
		return
	}
	if err := wf.PatchForm(patch); err != nil {
		handleWorkflowError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wf.Snapshot())
}

func (a *API) workflowExtra(w http.ResponseWriter, r *http.Request) {
	var req extraRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var raw any
	if len(req.Value) > 0 {
		if err := json.Unmarshal(req.Value, &raw); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
	}
	wf, ok := a.flow(w, r)
	if !ok {
		return
	}
	if err := wf.SetExtra(req.ID, raw); err != nil {
		handleWorkflowError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wf.Snapshot())
}

func (a *API) workflowAddress(w http.ResponseWriter, r *http.Request) {
	var in addressEdit
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	wf, ok := a.flow(w, r)
	if !ok {
		return
	}
	if err := applyWorkflowAddress(wf, in); err != nil {
		handleWorkflowError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wf.Snapshot())
}

func applyWorkflowAddress(wf *workflow.Workflow, in addressEdit) error {
	if in.Same != nil {
		if err := wf.SetSameAddress(*in.Same); err != nil {
			return err
		}
		if in.Field == "" {
			return nil
		}
	}
	if in.Field == "" {
		return fmt.Errorf("%w: field is required", address.ErrInvalid)
	}
	if in.Manual != nil {
		if err := wf.SetManual(in.Kind, in.Field, *in.Manual); err != nil {
			return err
		}
	}
	if in.Value != nil {
		return wf.SetAddress(in.Kind, in.Field, *in.Value)
	}
	return nil
}

func (a *API) workflowLocate(w http.ResponseWriter, r *http.Request) {
	var in locateRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if !validCoordinates(in.Lat, in.Lng) {
		writeError(w, r, http.StatusBadRequest, "lat/lng out of range")
		return
	}
	wf, ok := a.flow(w, r)
	if !ok {
		return
	}
	if _, err := wf.Locate(r.Context(), in.Kind, in.Lat, in.Lng); err != nil {
		handleWorkflowError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wf.Snapshot())
}

func (a *API) workflowDocument(w http.ResponseWriter, r *http.Request, raw string) {
	doc, ok := documentType(raw, "")
	if !ok {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	wf, ok := a.flow(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodPost:
		var in documentUpload
		if err := decodeJSONLimit(w, r, &in, maxDocumentBody); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		mime, data, err := documents.DecodePayload(in.Payload)
		if err != nil {
			handleWorkflowError(w, r, err)
			return
		}
		if err := wf.Upload(doc, mime, data); err != nil {
			handleWorkflowError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, wf.Snapshot())
	case http.MethodDelete:
		if err := wf.ClearDocument(doc); err != nil {
			handleWorkflowError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, wf.Snapshot())
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodDelete)
	}
}

func (a *API) workflowSubmit(w http.ResponseWriter, r *http.Request) {
	wf, ok := a.flow(w, r)
	if !ok {
		return
	}
	if _, err := wf.Submit(r.Context()); err != nil {
		handleWorkflowError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wf.Snapshot())
}

// workflowProceed blocks for the applying pad and answers once the
// application is recorded.
func (a *API) workflowProceed(w http.ResponseWriter, r *http.Request) {
	wf, ok := a.flow(w, r)
	if !ok {
		return
	}
	app, err := wf.Proceed(r.Context())
	if err != nil {
		handleWorkflowError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.ApplicationCreate, map[string]any{
		"application_id": app.ID,
		"scheme":         app.SchemeName,
		"ref_number":     app.RefNumber,
	})
	writeJSON(w, http.StatusCreated, wf.Snapshot())
}

func (a *API) workflowReminder(w http.ResponseWriter, r *http.Request) {
	wf, ok := a.flow(w, r)
	if !ok {
		return
	}
	rem, err := wf.SaveReminder(r.Context())
	if err != nil {
		handleWorkflowError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.ReminderSave, map[string]any{
		"reminder_id": rem.ID,
		"scheme":      rem.SchemeName,
		"source":      "workflow",
	})
	writeJSON(w, http.StatusCreated, rem)
}

func (a *API) workflowPortal(w http.ResponseWriter, r *http.Request) {
	wf, ok := a.flow(w, r)
	if !ok {
		return
	}
	url, err := wf.Portal()
	if err != nil {
		handleWorkflowError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.PortalOpen, map[string]any{"url": url})
	writeJSON(w, http.StatusOK, map[string]any{"url": url})
}
