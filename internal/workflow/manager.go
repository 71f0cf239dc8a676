package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"thittam.org/internal/advisory"
	"thittam.org/internal/notify"
	"thittam.org/internal/obs"
	"thittam.org/internal/profile"
)

// Manager keeps one Workflow per session. Workflows idle for longer than
// Config.IdleTTL are closed and forgotten.
type Manager struct {
	svc advisory.Service
	reg *profile.Registry
	pub notify.Publisher
	cfg Config

	mu        sync.Mutex
	flows     map[string]*entry
	lastSweep time.Time
}

type entry struct {
	w       *Workflow
	touched time.Time
}

func NewManager(svc advisory.Service, reg *profile.Registry, pub notify.Publisher, cfg Config) *Manager {
	cfg = cfg.withDefaults()
	return &Manager{
		svc:       svc,
		reg:       reg,
		pub:       pub,
		cfg:       cfg,
		flows:     make(map[string]*entry),
		lastSweep: cfg.Now(),
	}
}

// Get returns the session's workflow, starting one from the stored profile
// (or a seeded blank one) on first use. A workflow idle in select is
// re-seeded when the stored profile has changed since it was last read.
func (m *Manager) Get(ctx context.Context, session string) (*Workflow, error) {
	now := m.cfg.Now()
	m.maybeSweep(now)

	m.mu.Lock()
	e, ok := m.flows[session]
	if ok {
		e.touched = now
	}
	m.mu.Unlock()

	if ok {
		if e.w.Stage() == StageSelect {
			p, err := m.reg.Store().Load(ctx, session)
			switch {
			case err == nil:
				e.w.Refresh(p)
			case !errors.Is(err, profile.ErrNotFound):
				return nil, err
			}
		}
		return e.w, nil
	}

	p, err := m.reg.Store().Load(ctx, session)
	switch {
	case errors.Is(err, profile.ErrNotFound):
		p = profile.Seed(session)
	case err != nil:
		return nil, err
	}
	w := New(session, p, m.svc, m.reg, m.pub, m.cfg)

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.flows[session]; ok {
		go w.Close()
		existing.touched = now
		return existing.w, nil
	}
	m.flows[session] = &entry{w: w, touched: now}
	return w, nil
}

func (m *Manager) maybeSweep(now time.Time) {
	if m.cfg.IdleTTL <= 0 {
		return
	}
	m.mu.Lock()
	due := now.Sub(m.lastSweep) >= m.cfg.IdleTTL/4
	m.mu.Unlock()
	if due {
		m.Evict(now)
	}
}

// Evict closes every workflow untouched for longer than Config.IdleTTL as
// of now and reports how many were closed. Workflows in applying are kept
// until they finish.
func (m *Manager) Evict(now time.Time) int {
	if m.cfg.IdleTTL <= 0 {
		return 0
	}
	var idle []*Workflow
	m.mu.Lock()
	m.lastSweep = now
	for session, e := range m.flows {
		if now.Sub(e.touched) <= m.cfg.IdleTTL || e.w.Stage() == StageApplying {
			continue
		}
		idle = append(idle, e.w)
		delete(m.flows, session)
	}
	m.mu.Unlock()

	for _, w := range idle {
		w.Close()
	}
	if len(idle) > 0 {
		obs.Logger().Info("idle workflows evicted", slog.Int("count", len(idle)))
	}
	return len(idle)
}

// Drop discards the session's workflow.
func (m *Manager) Drop(session string) {
	m.mu.Lock()
	e, ok := m.flows[session]
	delete(m.flows, session)
	m.mu.Unlock()
	if ok {
		e.w.Close()
	}
}

// Len reports the number of live workflows.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.flows)
}

// Close discards every workflow.
func (m *Manager) Close() {
	m.mu.Lock()
	flows := m.flows
	m.flows = make(map[string]*entry)
	m.mu.Unlock()
	for _, e := range flows {
		e.w.Close()
	}
}
