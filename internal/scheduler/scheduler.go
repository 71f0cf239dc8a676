// Package scheduler runs the recurring document-renewal sweep.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"thittam.org/internal/dashboard"
	"thittam.org/internal/notify"
	"thittam.org/internal/obs"
	"thittam.org/internal/profile"
)

// DefaultSpec runs the sweep daily at 09:00.
const DefaultSpec = "0 9 * * *"

// Scheduler wraps a cron instance running the renewal sweep in Indian
// Standard Time.
type Scheduler struct {
	cron    *cron.Cron
	store   profile.Store
	pub     notify.Publisher
	timeout time.Duration
}

func istLocation() *time.Location {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		return time.FixedZone("IST", 5*60*60+30*60)
	}
	return loc
}

// New registers the sweep under spec. An empty spec uses DefaultSpec.
func New(spec string, store profile.Store, pub notify.Publisher) (*Scheduler, error) {
	if spec == "" {
		spec = DefaultSpec
	}
	s := &Scheduler{
		cron:    cron.New(cron.WithLocation(istLocation())),
		store:   store,
		pub:     pub,
		timeout: 5 * time.Minute,
	}
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("schedule renewal sweep %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	started := time.Now()
	n, err := s.Sweep(ctx)
	log := obs.Logger().With(slog.Int("notified", n), slog.Duration("took", time.Since(started)))
	if err != nil {
		log.Warn("renewal sweep finished with errors", obs.Err(err))
		return
	}
	log.Info("renewal sweep finished")
}

// Sweep walks every stored profile and publishes the renewal notifications it
// is due. It returns the number of events published.
func (s *Scheduler) Sweep(ctx context.Context) (int, error) {
	sessions, err := s.store.SessionIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list sessions: %w", err)
	}
	var (
		sent int
		errs []error
	)
	for _, id := range sessions {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		p, err := s.store.Load(ctx, id)
		if errors.Is(err, profile.ErrNotFound) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("load %s: %w", id, err))
			continue
		}
		for _, evt := range dashboard.RenewalEvents(id, p) {
			if err := s.pub.Publish(ctx, evt); err != nil {
				errs = append(errs, fmt.Errorf("publish %s: %w", id, err))
				continue
			}
			sent++
		}
	}
	return sent, errors.Join(errs...)
}

// Start runs the cron loop in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts scheduling and waits for a running sweep up to ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// Next reports when the sweep runs next. Zero before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}
