package profile

import (
	"context"
	"errors"
	"strings"
	"time"

	"thittam.org/internal/ids"
	"thittam.org/internal/roadmap"
)

// Registry manages the Applications and Reminders collections of a profile.
// Every mutation is a single Store.Update.
type Registry struct {
	store  Store
	dedupe bool
	now    func() time.Time
}

type RegistryOption func(*Registry)

// WithReminderDedupe makes AddReminder return the existing reminder when the
// scheme is already bookmarked. Off by default, so every save appends.
func WithReminderDedupe(on bool) RegistryOption {
	return func(r *Registry) { r.dedupe = on }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

func NewRegistry(store Store, opts ...RegistryOption) *Registry {
	r := &Registry{store: store, now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Store exposes the underlying profile store.
func (r *Registry) Store() Store { return r.store }

// NewApplication describes an application about to be recorded.
type NewApplication struct {
	SchemeName string
	RefNumber  string
	Roadmap    roadmap.Roadmap
	// Seed is stored as the profile when the session has none yet.
	Seed *Profile
}

// AddApplication appends an application to the session's profile.
func (r *Registry) AddApplication(ctx context.Context, sessionID string, in NewApplication) (Application, error) {
	if strings.TrimSpace(in.SchemeName) == "" {
		return Application{}, errors.Join(ErrInvalid, errors.New("scheme name is required"))
	}
	app := Application{
		ID:          ids.New(),
		SchemeName:  in.SchemeName,
		Status:      roadmap.StatusCustom,
		DateApplied: r.now(),
		RefNumber:   in.RefNumber,
		Roadmap:     in.Roadmap,
	}
	if app.RefNumber == "" {
		app.RefNumber = ids.RefNumber()
	}
	_, err := r.store.Update(ctx, sessionID, func(p *Profile, found bool) error {
		if !found {
			if in.Seed != nil {
				*p = *in.Seed
				p.Applications = append([]Application(nil), in.Seed.Applications...)
				p.Reminders = append([]Reminder(nil), in.Seed.Reminders...)
			} else {
				*p = Seed(sessionID)
			}
		}
		p.Applications = append(p.Applications, app)
		return nil
	})
	if err != nil {
		return Application{}, err
	}
	return app, nil
}

// AddReminder bookmarks a scheme. Without dedupe, repeated saves for the same
// scheme produce separate reminders.
func (r *Registry) AddReminder(ctx context.Context, sessionID, schemeName string, documents []string) (Reminder, error) {
	schemeName = strings.TrimSpace(schemeName)
	if schemeName == "" {
		return Reminder{}, errors.Join(ErrInvalid, errors.New("scheme name is required"))
	}
	rem := Reminder{
		ID:              ids.New(),
		SchemeName:      schemeName,
		DocumentsNeeded: append([]string(nil), documents...),
		SavedDate:       r.now(),
	}
	_, err := r.store.Update(ctx, sessionID, func(p *Profile, found bool) error {
		if !found {
			*p = Seed(sessionID)
		}
		if r.dedupe {
			for _, existing := range p.Reminders {
				if strings.EqualFold(existing.SchemeName, schemeName) {
					rem = existing
					return nil
				}
			}
		}
		p.Reminders = append(p.Reminders, rem)
		return nil
	})
	if err != nil {
		return Reminder{}, err
	}
	return rem, nil
}

// DeleteReminder removes one reminder by id.
func (r *Registry) DeleteReminder(ctx context.Context, sessionID, id string) error {
	_, err := r.store.Update(ctx, sessionID, func(p *Profile, found bool) error {
		if !found {
			return ErrReminderNotFound
		}
		for i, rem := range p.Reminders {
			if rem.ID == id {
				p.Reminders = append(p.Reminders[:i], p.Reminders[i+1:]...)
				return nil
			}
		}
		return ErrReminderNotFound
	})
	return err
}

// Applications lists the session's applications, oldest first.
func (r *Registry) Applications(ctx context.Context, sessionID string) ([]Application, error) {
	p, err := r.store.Load(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		return []Application{}, nil
	}
	if err != nil {
		return nil, err
	}
	if p.Applications == nil {
		return []Application{}, nil
	}
	return p.Applications, nil
}

// Reminders lists the session's reminders, oldest first.
func (r *Registry) Reminders(ctx context.Context, sessionID string) ([]Reminder, error) {
	p, err := r.store.Load(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		return []Reminder{}, nil
	}
	if err != nil {
		return nil, err
	}
	if p.Reminders == nil {
		return []Reminder{}, nil
	}
	return p.Reminders, nil
}
