// Package httpapi exposes the citizen service over JSON/HTTP and the gRPC
// health service.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"thittam.org/internal/advisory"
	"thittam.org/internal/dashboard"
	"thittam.org/internal/grievance"
	"thittam.org/internal/notify"
	"thittam.org/internal/obs"
	"thittam.org/internal/profile"
	"thittam.org/internal/workflow"
)

const serviceName = "thittam-api"

// Pinger is a backend the readiness probe checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyProbe pings every configured backend. An empty probe is always ready.
type ReadyProbe struct {
	Backends []Pinger
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	var errs []error
	for _, b := range rp.Backends {
		if b == nil {
			continue
		}
		if err := b.Ping(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	err := errors.Join(errs...)
	obs.SetReady(err == nil)
	return err
}

type readinessChecker interface {
	Check(ctx context.Context) error
}

// Deps wires the API to the domain services.
type Deps struct {
	Registry   *profile.Registry
	Advisory   advisory.Service
	Workflows  *workflow.Manager
	Grievances *grievance.Service
	Dashboard  *dashboard.Service
	Hub        *notify.Hub
	Ready      readinessChecker
	Version    string

	TokenTTL        time.Duration
	AdvisoryTimeout time.Duration
	RateBurst       int
	RatePerSec      float64
	CORSOrigin      string
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe readinessChecker
	version    string

	store      profile.Store
	registry   *profile.Registry
	advisory   advisory.Service
	workflows  *workflow.Manager
	grievances *grievance.Service
	dashboard  *dashboard.Service
	hub        *notify.Hub

	tokenTTL        time.Duration
	advisoryTimeout time.Duration
	rateBurst       int
	ratePerSec      float64
	corsOrigin      string
	now             func() time.Time
}

func New(d Deps) *API {
	a := &API{
		mux:             http.NewServeMux(),
		readyProbe:      d.Ready,
		version:         d.Version,
		registry:        d.Registry,
		advisory:        d.Advisory,
		workflows:       d.Workflows,
		grievances:      d.Grievances,
		dashboard:       d.Dashboard,
		hub:             d.Hub,
		tokenTTL:        d.TokenTTL,
		advisoryTimeout: d.AdvisoryTimeout,
		rateBurst:       d.RateBurst,
		ratePerSec:      d.RatePerSec,
		corsOrigin:      d.CORSOrigin,
		now:             time.Now,
	}
	if a.readyProbe == nil {
		a.readyProbe = ReadyProbe{}
	}
	if a.registry != nil {
		a.store = a.registry.Store()
	}
	if a.tokenTTL <= 0 {
		a.tokenTTL = 12 * time.Hour
	}
	if a.advisoryTimeout <= 0 {
		a.advisoryTimeout = 30 * time.Second
	}
	if a.rateBurst <= 0 {
		a.rateBurst = 20
	}
	if a.ratePerSec <= 0 {
		a.ratePerSec = 10
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/session", a.handleSession)

	a.mux.HandleFunc("/v1/profile", a.handleProfile)
	a.mux.HandleFunc("/v1/profile/address", a.handleProfileAddress)
	a.mux.HandleFunc("/v1/profile/address/locate", a.handleProfileLocate)
	a.mux.HandleFunc("/v1/profile/documents/", a.handleProfileDocument)

	a.mux.HandleFunc("/v1/dashboard", a.handleDashboard)
	a.mux.HandleFunc("/v1/applications", a.handleApplications)
	a.mux.HandleFunc("/v1/reminders", a.handleReminders)
	a.mux.HandleFunc("/v1/reminders/", a.handleReminderResource)

	a.mux.HandleFunc("/v1/schemes/presets", a.handlePresets)
	a.mux.HandleFunc("/v1/schemes/search", a.handleSchemeSearch)
	a.mux.HandleFunc("/v1/sectors", a.handleSectors)
	a.mux.HandleFunc("/v1/geo/districts", a.handleDistricts)
	a.mux.HandleFunc("/v1/geo/taluks", a.handleTaluks)
	a.mux.HandleFunc("/v1/geo/villages", a.handleVillages)
	a.mux.HandleFunc("/v1/chat", a.handleChat)
	a.mux.HandleFunc("/v1/centers", a.handleCenters)

	a.mux.HandleFunc("/v1/workflow", a.handleWorkflowState)
	a.mux.HandleFunc("/v1/workflow/", a.handleWorkflow)

	a.mux.HandleFunc("/v1/grievances", a.handleGrievances)
	a.mux.HandleFunc("/v1/grievances/", a.handleGrievanceResource)

	a.mux.HandleFunc("/v1/notifications/stream", a.Stream)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "resource not found")
	})

	return a
}

// Handler returns the fully wrapped handler for the HTTP server.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = withLanguage(h)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = CORS(h, a.corsOrigin)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- health ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"time":    a.now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

// writeRetryable reports an Advisory Service failure the client may retry.
func writeRetryable(w http.ResponseWriter, r *http.Request, msg string) {
	payload := map[string]any{
		"error":     msg,
		"retryable": true,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, http.StatusBadGateway, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

const maxJSONBody = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	return decodeJSONLimit(w, r, dst, maxJSONBody)
}

func decodeJSONLimit(w http.ResponseWriter, r *http.Request, dst any, limit int64) error {
	reader := http.MaxBytesReader(w, r.Body, limit)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// advisoryCtx bounds a direct Advisory Service call.
func (a *API) advisoryCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, a.advisoryTimeout)
}
