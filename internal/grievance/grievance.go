// Package grievance triages citizen complaints: an advisory pass drafts the
// department, summary and urgency, and a submission files the draft under a
// tracking id with a fixed four-stage roadmap.
package grievance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"thittam.org/internal/advisory"
	"thittam.org/internal/ids"
	"thittam.org/internal/roadmap"
)

var (
	ErrInvalid     = errors.New("grievance: invalid input")
	ErrNotAnalyzed = errors.New("grievance: description has not been analysed")
	ErrAdvisory    = errors.New("grievance: advisory service failed")
	ErrNotFound    = errors.New("grievance: not found")
)

// Departments a grievance can be routed to.
var Departments = []string{
	"Revenue",
	"Housing",
	"Health",
	"Education",
	"Social Welfare",
	"Food & Consumer Protection",
}

var Urgencies = []string{"Low", "Medium", "High"}

// Stages is the fixed path of a filed grievance. A new grievance is
// registered and waiting to be assigned.
var Stages = []roadmap.Step{
	{Label: "Registered", Description: "Your grievance has been recorded."},
	{Label: "Assigned", Description: "Forwarded to the department officer."},
	{Label: "Hearing", Description: "The officer reviews the case with you."},
	{Label: "Resolved", Description: "A decision is communicated."},
}

// Draft is an analysed but not yet filed description.
type Draft struct {
	Description string                     `json:"description"`
	Analysis    advisory.GrievanceAnalysis `json:"analysis"`
}

// Grievance is a filed complaint.
type Grievance struct {
	ID          string                     `json:"id"`
	TrackingID  string                     `json:"trackingId"`
	Session     string                     `json:"-"`
	Description string                     `json:"description"`
	Analysis    advisory.GrievanceAnalysis `json:"analysis"`
	Roadmap     roadmap.Roadmap            `json:"roadmap"`
	FiledAt     time.Time                  `json:"filedAt"`
}

type Config struct {
	// Pad delays each submission.
	Pad     time.Duration
	Timeout time.Duration
	// DraftTTL is how long an unfiled draft is kept. Zero keeps drafts until
	// they are filed or replaced.
	DraftTTL time.Duration
	Now      func() time.Time
}

// Service drafts and files grievances. Drafts live in memory per session.
type Service struct {
	svc   advisory.Service
	store Store
	cfg   Config

	mu        sync.Mutex
	drafts    map[string]pendingDraft
	lastSweep time.Time
}

type pendingDraft struct {
	Draft
	at time.Time
}

func NewService(svc advisory.Service, store Store, cfg Config) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{svc: svc, store: store, cfg: cfg, drafts: make(map[string]pendingDraft), lastSweep: cfg.Now()}
}

func canonical(list []string, v string) (string, bool) {
	v = strings.TrimSpace(v)
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return item, true
		}
	}
	return v, false
}

// normalise maps the advisory answer onto the known departments and urgency
// levels. An unrecognised urgency reads as Medium.
func normalise(a advisory.GrievanceAnalysis) advisory.GrievanceAnalysis {
	a.Department, _ = canonical(Departments, a.Department)
	if u, ok := canonical(Urgencies, a.Urgency); ok {
		a.Urgency = u
	} else {
		a.Urgency = "Medium"
	}
	a.FormalSummary = strings.TrimSpace(a.FormalSummary)
	a.RequestedAction = strings.TrimSpace(a.RequestedAction)
	return a
}

// Analyze drafts a grievance for session, replacing any earlier draft.
func (s *Service) Analyze(ctx context.Context, session, description string) (Draft, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return Draft{}, fmt.Errorf("%w: description is required", ErrInvalid)
	}
	cctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	a, err := s.svc.AnalyzeGrievance(cctx, description)
	if err != nil {
		return Draft{}, fmt.Errorf("%w: %w", ErrAdvisory, err)
	}
	d := Draft{Description: description, Analysis: normalise(a)}

	now := s.cfg.Now()
	s.mu.Lock()
	s.drafts[session] = pendingDraft{Draft: d, at: now}
	if s.cfg.DraftTTL > 0 && now.Sub(s.lastSweep) >= s.cfg.DraftTTL/4 {
		s.expireLocked(now)
	}
	s.mu.Unlock()
	return d, nil
}

// ExpireDrafts forgets drafts older than Config.DraftTTL as of now and
// reports how many were dropped.
func (s *Service) ExpireDrafts(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expireLocked(now)
}

func (s *Service) expireLocked(now time.Time) int {
	s.lastSweep = now
	if s.cfg.DraftTTL <= 0 {
		return 0
	}
	n := 0
	for session, d := range s.drafts {
		if now.Sub(d.at) > s.cfg.DraftTTL {
			delete(s.drafts, session)
			n++
		}
	}
	return n
}

// draftLocked returns the session's draft unless it has expired.
func (s *Service) draftLocked(session string) (pendingDraft, bool) {
	d, ok := s.drafts[session]
	if !ok {
		return pendingDraft{}, false
	}
	if s.cfg.DraftTTL > 0 && s.cfg.Now().Sub(d.at) > s.cfg.DraftTTL {
		delete(s.drafts, session)
		return pendingDraft{}, false
	}
	return d, true
}

// PendingDraft returns the session's unfiled draft.
func (s *Service) PendingDraft(session string) (Draft, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.draftLocked(session)
	return d.Draft, ok
}

// Submit files the session's draft. When description is non-empty it must
// match the analysed text, so an edit after analysis needs a new analysis.
func (s *Service) Submit(ctx context.Context, session, description string) (Grievance, error) {
	s.mu.Lock()
	pending, ok := s.draftLocked(session)
	s.mu.Unlock()
	if !ok {
		return Grievance{}, ErrNotAnalyzed
	}
	d := pending.Draft
	if description = strings.TrimSpace(description); description != "" && description != d.Description {
		return Grievance{}, fmt.Errorf("%w: description changed since analysis", ErrNotAnalyzed)
	}

	if s.cfg.Pad > 0 {
		t := time.NewTimer(s.cfg.Pad)
		select {
		case <-ctx.Done():
			t.Stop()
			return Grievance{}, ctx.Err()
		case <-t.C:
		}
	}

	now := s.cfg.Now()
	rm, _ := roadmap.New(Stages, 1)
	g := Grievance{
		ID:          ids.New(),
		TrackingID:  ids.TrackingID(now),
		Session:     session,
		Description: d.Description,
		Analysis:    d.Analysis,
		Roadmap:     rm,
		FiledAt:     now,
	}
	if err := s.store.Save(ctx, g); err != nil {
		return Grievance{}, fmt.Errorf("file grievance: %w", err)
	}

	s.mu.Lock()
	if cur, ok := s.drafts[session]; ok && cur == pending {
		delete(s.drafts, session)
	}
	s.mu.Unlock()
	return g, nil
}

// List returns the session's filed grievances, newest first.
func (s *Service) List(ctx context.Context, session string) ([]Grievance, error) {
	return s.store.List(ctx, session)
}

// Get returns one grievance of session by tracking id.
func (s *Service) Get(ctx context.Context, session, trackingID string) (Grievance, error) {
	g, err := s.store.Get(ctx, trackingID)
	if err != nil {
		return Grievance{}, err
	}
	if g.Session != session {
		return Grievance{}, ErrNotFound
	}
	return g, nil
}
