package httpapi

import (
	"context"
	"errors"
	"net/http"

	"thittam.org/internal/address"
	"thittam.org/internal/advisory"
	"thittam.org/internal/documents"
	"thittam.org/internal/grievance"
	"thittam.org/internal/obs"
	"thittam.org/internal/profile"
	"thittam.org/internal/workflow"
)

func handleWorkflowError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, workflow.ErrAdvisory):
		advisoryFailed(w, r, err)
	case errors.Is(err, workflow.ErrInvalid), errors.Is(err, address.ErrInvalid),
		errors.Is(err, profile.ErrInvalid), errors.Is(err, advisory.ErrInvalidField),
		errors.Is(err, documents.ErrUnknownType), errors.Is(err, documents.ErrEmpty),
		errors.Is(err, documents.ErrTooLarge), errors.Is(err, documents.ErrMalformed):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, workflow.ErrWrongStage), errors.Is(err, workflow.ErrStale),
		errors.Is(err, workflow.ErrNotEligible), errors.Is(err, workflow.ErrAlreadyReminded),
		errors.Is(err, documents.ErrClosed):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, workflow.ErrNoPortal):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		handleCommonError(w, r, err)
	}
}

func handleProfileError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, profile.ErrNotFound), errors.Is(err, profile.ErrReminderNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, profile.ErrInvalid), errors.Is(err, profile.ErrEmptySession),
		errors.Is(err, address.ErrInvalid), errors.Is(err, documents.ErrUnknownType),
		errors.Is(err, documents.ErrEmpty), errors.Is(err, documents.ErrTooLarge),
		errors.Is(err, documents.ErrMalformed):
		writeError(w, r, http.StatusBadRequest, err.Error())
	default:
		handleCommonError(w, r, err)
	}
}

func handleAdvisoryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, advisory.ErrUnavailable), errors.Is(err, advisory.ErrMalformed),
		errors.Is(err, context.DeadlineExceeded):
		advisoryFailed(w, r, err)
	default:
		handleCommonError(w, r, err)
	}
}

func handleGrievanceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, grievance.ErrAdvisory):
		advisoryFailed(w, r, err)
	case errors.Is(err, grievance.ErrInvalid):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, grievance.ErrNotAnalyzed):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, grievance.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		handleCommonError(w, r, err)
	}
}

const advisoryUnavailable = "advisory service unavailable"

// advisoryFailed logs the upstream error and answers with a fixed message;
// upstream errors may carry request URLs and credentials.
func advisoryFailed(w http.ResponseWriter, r *http.Request, err error) {
	obs.Logger().WarnContext(r.Context(), "advisory call failed",
		obs.Err(err), "path", r.URL.Path, "request_id", RequestIDFromContext(r.Context()))
	writeRetryable(w, r, advisoryUnavailable)
}

func handleCommonError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
		// Client went away.
		return
	}
	obs.Logger().ErrorContext(r.Context(), "request failed",
		obs.Err(err), "path", r.URL.Path, "request_id", RequestIDFromContext(r.Context()))
	writeError(w, r, http.StatusInternalServerError, "internal error")
}
