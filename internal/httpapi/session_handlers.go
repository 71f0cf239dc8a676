package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"thittam.org/internal/audit"
	"thittam.org/internal/auth"
	"thittam.org/internal/profile"
)

type sessionRequest struct {
	Identifier string `json:"identifier"`
}

type sessionResponse struct {
	Token     string    `json:"token,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitzero"`
	Session   string    `json:"session"`
	Channel   string    `json:"channel"`
}

func channelOf(id string) (string, bool) {
	switch {
	case profile.IsPhoneIdentifier(id):
		return auth.ChannelPhone, true
	case profile.IsEmailIdentifier(id):
		return auth.ChannelEmail, true
	}
	return "", false
}

func (a *API) handleSession(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.openSession(w, r)
	case http.MethodGet:
		session := sessionOf(r)
		channel, _ := channelOf(session)
		writeJSON(w, http.StatusOK, sessionResponse{Session: session, Channel: channel})
	case http.MethodDelete:
		a.closeSession(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost, http.MethodDelete)
	}
}

// openSession signs the citizen in with a phone number or e-mail. There is no
// credential check.
func (a *API) openSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	id := strings.TrimSpace(req.Identifier)
	if strings.Contains(id, "@") {
		id = strings.ToLower(id)
	}
	channel, ok := channelOf(id)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "identifier must be a 10-digit mobile number or an e-mail address")
		return
	}

	_, err := a.store.Update(r.Context(), id, func(p *profile.Profile, found bool) error {
		if !found {
			*p = profile.Seed(id)
		}
		return nil
	})
	if err != nil {
		handleProfileError(w, r, err)
		return
	}
	if err := a.store.SetCurrentSession(r.Context(), id); err != nil {
		handleProfileError(w, r, err)
		return
	}

	token, expiresAt, err := auth.GenerateToken(id, channel, a.tokenTTL)
	if err != nil {
		if errors.Is(err, auth.ErrMissingSecret) {
			writeError(w, r, http.StatusServiceUnavailable, "sessions are not configured")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}

	ctx := auth.ContextWithSession(r.Context(), id)
	_ = audit.LogEvent(ctx, audit.SessionStart, map[string]any{
		"channel":    channel,
		"expires_at": expiresAt.Format(time.RFC3339),
	})
	writeJSON(w, http.StatusOK, sessionResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Session:   id,
		Channel:   channel,
	})
}

func (a *API) closeSession(w http.ResponseWriter, r *http.Request) {
	session := sessionOf(r)
	current, err := a.store.CurrentSession(r.Context())
	switch {
	case err == nil && current == session:
		if err := a.store.ClearCurrentSession(r.Context()); err != nil {
			handleProfileError(w, r, err)
			return
		}
	case err != nil && !errors.Is(err, profile.ErrNotFound):
		handleProfileError(w, r, err)
		return
	}
	if a.workflows != nil {
		a.workflows.Drop(session)
	}
	_ = audit.LogEvent(r.Context(), audit.SessionEnd, nil)
	w.WriteHeader(http.StatusNoContent)
}
