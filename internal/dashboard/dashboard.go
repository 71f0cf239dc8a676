// Package dashboard assembles the citizen overview: applications with their
// progress, reminders, document readiness and headline statistics.
package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"thittam.org/internal/notify"
	"thittam.org/internal/obs"
	"thittam.org/internal/profile"
	"thittam.org/internal/roadmap"
)

type DocStatus string

const (
	DocMissing  DocStatus = "missing"
	DocReady    DocStatus = "ready"
	DocExpiring DocStatus = "expiring"
)

// Expiring lists the document types that lapse and need periodic renewal.
var Expiring = []profile.DocumentType{profile.DocIncomeCert}

func isExpiring(d profile.DocumentType) bool {
	for _, e := range Expiring {
		if e == d {
			return true
		}
	}
	return false
}

// DocumentStatus classifies one slot of p.
func DocumentStatus(p profile.Profile, d profile.DocumentType) DocStatus {
	switch {
	case !p.HasDocument(d):
		return DocMissing
	case isExpiring(d):
		return DocExpiring
	default:
		return DocReady
	}
}

// RenewalEvents returns one renewal notification per stored document that
// needs renewing.
func RenewalEvents(session string, p profile.Profile) []notify.Event {
	var out []notify.Event
	for _, d := range Expiring {
		if p.HasDocument(d) {
			out = append(out, notify.RenewalDue(session, d.Label()))
		}
	}
	return out
}

type Document struct {
	Type   profile.DocumentType `json:"type"`
	Label  string               `json:"label"`
	Status DocStatus            `json:"status"`
}

// Application is an application with its unified roadmap. CurrentStage
// labels the step in progress and is empty once Completed.
type Application struct {
	ID           string          `json:"id"`
	SchemeName   string          `json:"schemeName"`
	RefNumber    string          `json:"refNumber"`
	DateApplied  time.Time       `json:"dateApplied"`
	Roadmap      roadmap.Roadmap `json:"roadmap"`
	CurrentStage string          `json:"currentStage,omitempty"`
	Completed    bool            `json:"completed"`
}

// Stat is the impact score of a scheme category.
type Stat struct {
	Category    string `json:"category"`
	ImpactValue int    `json:"impactValue"`
}

// Highlight is a headline figure.
type Highlight struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

var Stats = []Stat{
	{Category: "Financial Assistance", ImpactValue: 85},
	{Category: "Education Support", ImpactValue: 72},
	{Category: "Housing & Shelter", ImpactValue: 54},
	{Category: "Healthcare Reach", ImpactValue: 91},
	{Category: "Farmer Subsidies", ImpactValue: 68},
}

var Highlights = []Highlight{
	{Label: "TN Schemes", Value: "320+"},
	{Label: "Beneficiaries", Value: "4.2M+"},
	{Label: "e-KYC Verified", Value: "2.8M"},
	{Label: "Average Payout", Value: "9 days"},
}

type Overview struct {
	DisplayName  string             `json:"displayName"`
	Applications []Application      `json:"applications"`
	Reminders    []profile.Reminder `json:"reminders"`
	Documents    []Document         `json:"documents"`
	Stats        []Stat             `json:"stats"`
	Highlights   []Highlight        `json:"highlights"`
}

type Service struct {
	store profile.Store
	pub   notify.Publisher
}

func NewService(store profile.Store, pub notify.Publisher) *Service {
	if pub == nil {
		pub = notify.Discard
	}
	return &Service{store: store, pub: pub}
}

// Overview builds the session's dashboard. Loading a profile that holds a
// renewable document publishes a renewal notification.
func (s *Service) Overview(ctx context.Context, session string) (Overview, error) {
	ov := Overview{
		DisplayName:  session,
		Applications: []Application{},
		Reminders:    []profile.Reminder{},
		Stats:        Stats,
		Highlights:   Highlights,
	}
	p, err := s.store.Load(ctx, session)
	if errors.Is(err, profile.ErrNotFound) {
		ov.Documents = documents(profile.Profile{})
		return ov, nil
	}
	if err != nil {
		return Overview{}, err
	}

	if p.Name != "" {
		ov.DisplayName = p.Name
	}
	for _, a := range p.Applications {
		rm := a.Progress()
		app := Application{
			ID:          a.ID,
			SchemeName:  a.SchemeName,
			RefNumber:   a.RefNumber,
			DateApplied: a.DateApplied,
			Roadmap:     rm,
			Completed:   rm.Done(),
		}
		if step, ok := rm.CurrentStep(); ok {
			app.CurrentStage = step.Label
		}
		ov.Applications = append(ov.Applications, app)
	}
	if p.Reminders != nil {
		ov.Reminders = p.Reminders
	}
	ov.Documents = documents(p)

	// One alert per visit, for the first renewable document.
	if evts := RenewalEvents(session, p); len(evts) > 0 {
		if err := s.pub.Publish(ctx, evts[0]); err != nil {
			obs.Logger().Warn("renewal notification failed", slog.String("session", session), obs.Err(err))
		}
	}
	return ov, nil
}

func documents(p profile.Profile) []Document {
	out := make([]Document, 0, len(profile.DocumentTypes))
	for _, d := range profile.DocumentTypes {
		out = append(out, Document{Type: d, Label: d.Label(), Status: DocumentStatus(p, d)})
	}
	return out
}
