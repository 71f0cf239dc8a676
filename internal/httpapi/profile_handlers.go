package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"thittam.org/internal/address"
	"thittam.org/internal/audit"
	"thittam.org/internal/documents"
	"thittam.org/internal/obs"
	"thittam.org/internal/profile"
)

type addressEdit struct {
	Kind   address.Kind  `json:"kind"`
	Field  address.Field `json:"field"`
	Value  *string       `json:"value,omitempty"`
	Manual *bool         `json:"manual,omitempty"`
	Same   *bool         `json:"same,omitempty"`
}

type locateRequest struct {
	Kind address.Kind `json:"kind"`
	Lat  float64      `json:"lat"`
	Lng  float64      `json:"lng"`
}

type documentUpload struct {
	// Payload is a data URL: data:<mime>;base64,<bytes>.
	Payload string `json:"payload"`
}

// Documents arrive base64-encoded inside JSON.
const maxDocumentBody = documents.MaxBytes*4/3 + 4<<10

func (a *API) handleProfile(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.getProfile(w, r)
	case http.MethodPut:
		a.putProfile(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut)
	}
}

// loadProfile returns the stored profile, or a seeded blank one.
func (a *API) loadProfile(r *http.Request) (profile.Profile, error) {
	session := sessionOf(r)
	p, err := a.store.Load(r.Context(), session)
	if errors.Is(err, profile.ErrNotFound) {
		return profile.Seed(session), nil
	}
	return p, err
}

func (a *API) getProfile(w http.ResponseWriter, r *http.Request) {
	p, err := a.loadProfile(r)
	if err != nil {
		handleProfileError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// putProfile replaces the citizen's personal data. Documents, applications
// and reminders are owned by their own endpoints and kept as stored.
func (a *API) putProfile(w http.ResponseWriter, r *http.Request) {
	var in profile.Profile
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	in = profile.Normalize(in, a.now())
	session := sessionOf(r)
	out, err := a.store.Update(r.Context(), session, func(p *profile.Profile, found bool) error {
		next := in
		if found {
			next.Documents = p.Documents
			next.Applications = p.Applications
			next.Reminders = p.Reminders
		}
		if err := profile.Validate(next); err != nil {
			return err
		}
		*p = next
		return nil
	})
	if err != nil {
		handleProfileError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.ProfileSave, map[string]any{"source": "profile"})
	writeJSON(w, http.StatusOK, out)
}

// updateAddress runs fn on the stored address pair and persists the result.
func (a *API) updateAddress(r *http.Request, fn func(*address.Pair) error) (address.Pair, error) {
	var pair address.Pair
	_, err := a.store.Update(r.Context(), sessionOf(r), func(p *profile.Profile, found bool) error {
		if !found {
			*p = profile.Seed(sessionOf(r))
		}
		pair = address.NewPair(p.PermAddress, p.TempAddress, p.IsSameAddress)
		if err := fn(&pair); err != nil {
			return err
		}
		pair.ApplyTo(p)
		p.IsSameAddress = pair.Same
		return nil
	})
	return pair, err
}

func applyAddressEdit(pair *address.Pair, in addressEdit) error {
	if in.Same != nil {
		pair.SetSame(*in.Same)
		if in.Field == "" {
			return nil
		}
	}
	if in.Field == "" {
		return fmt.Errorf("%w: field is required", address.ErrInvalid)
	}
	if in.Manual != nil {
		if err := pair.SetManual(in.Kind, in.Field, *in.Manual); err != nil {
			return err
		}
	}
	if in.Value != nil {
		return pair.Set(in.Kind, in.Field, *in.Value)
	}
	return nil
}

func (a *API) handleProfileAddress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var in addressEdit
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	pair, err := a.updateAddress(r, func(p *address.Pair) error { return applyAddressEdit(p, in) })
	if err != nil {
		handleProfileError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.ProfileSave, map[string]any{"source": "address"})
	writeJSON(w, http.StatusOK, pair)
}

// handleProfileLocate fills an address from device coordinates with the same
// manual-entry rule as the workflow form.
func (a *API) handleProfileLocate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var in locateRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if !validCoordinates(in.Lat, in.Lng) {
		writeError(w, r, http.StatusBadRequest, "lat/lng out of range")
		return
	}
	ctx, cancel := a.advisoryCtx(r.Context())
	defer cancel()
	loc, err := a.advisory.ReverseGeocode(ctx, in.Lat, in.Lng)
	if err != nil {
		handleAdvisoryError(w, r, err)
		return
	}
	pair, err := a.updateAddress(r, func(p *address.Pair) error {
		return p.ApplyLocation(in.Kind, profile.Address{
			District: loc.District,
			Taluk:    loc.Taluk,
			Village:  loc.Village,
			Pincode:  loc.Pincode,
		})
	})
	if err != nil {
		if errors.Is(err, address.ErrMirrored) || errors.Is(err, address.ErrUnknownField) {
			handleProfileError(w, r, err)
			return
		}
		obs.Logger().WarnContext(r.Context(), "geocoded location unusable", obs.Err(err))
		writeRetryable(w, r, "location lookup failed")
		return
	}
	_ = audit.LogEvent(r.Context(), audit.ProfileSave, map[string]any{"source": "locate"})
	writeJSON(w, http.StatusOK, pair)
}

func validCoordinates(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// documentType parses the trailing path segment after prefix.
func documentType(path, prefix string) (profile.DocumentType, bool) {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return profile.DocumentType(rest), true
}

func (a *API) handleProfileDocument(w http.ResponseWriter, r *http.Request) {
	doc, ok := documentType(r.URL.Path, "/v1/profile/documents/")
	if !ok {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if !doc.Valid() {
		writeError(w, r, http.StatusBadRequest, documents.ErrUnknownType.Error())
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
			handleProfileError(w, r, err)
			return
		}
		if len(data) == 0 {
			handleProfileError(w, r, documents.ErrEmpty)
			return
		}
		if len(data) > documents.MaxBytes {
			handleProfileError(w, r, documents.ErrTooLarge)
			return
		}
		payload := documents.EncodePayload(mime, data)
		err = a.editDocuments(r, func(m map[profile.DocumentType]string) { m[doc] = payload })
		if err != nil {
			handleProfileError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"type": doc, "label": doc.Label(), "stored": true})
	case http.MethodDelete:
		if err := a.editDocuments(r, func(m map[profile.DocumentType]string) { delete(m, doc) }); err != nil {
			handleProfileError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodDelete)
	}
}

func (a *API) editDocuments(r *http.Request, fn func(map[profile.DocumentType]string)) error {
	_, err := a.store.Update(r.Context(), sessionOf(r), func(p *profile.Profile, found bool) error {
		if !found {
			*p = profile.Seed(sessionOf(r))
		}
		if p.Documents == nil {
			p.Documents = make(map[profile.DocumentType]string)
		}
		fn(p.Documents)
		return nil
	})
	if err == nil {
		_ = audit.LogEvent(r.Context(), audit.ProfileSave, map[string]any{"source": "documents"})
	}
	return err
}
