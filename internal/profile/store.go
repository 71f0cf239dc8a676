package profile

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"thittam.org/internal/obs"
)

// UpdateFunc mutates a profile in place. found is false when nothing (or
// nothing readable) was stored for the session, in which case p is zero.
type UpdateFunc func(p *Profile, found bool) error

// Store persists one Profile per session identifier plus a single
// current-session slot. Save is a full overwrite; use Update for
// read-modify-write so concurrent edits in the same session are not lost.
//
// Writers on different devices sharing a session identifier still race at the
// backend: the last write wins.
type Store interface {
	Load(ctx context.Context, sessionID string) (Profile, error)
	Save(ctx context.Context, sessionID string, p Profile) error
	Update(ctx context.Context, sessionID string, fn UpdateFunc) (Profile, error)
	SessionIDs(ctx context.Context) ([]string, error)

	SetCurrentSession(ctx context.Context, sessionID string) error
	CurrentSession(ctx context.Context) (string, error)
	ClearCurrentSession(ctx context.Context) error
}

// Key layout shared by the key-value backends.
const (
	profileKeyPrefix  = "user_profile_"
	currentSessionKey = "current_session"
)

func profileKey(sessionID string) string { return profileKeyPrefix + sessionID }

func encode(p Profile) ([]byte, error) {
	return json.Marshal(p)
}

// decode fails closed: an unreadable payload is reported as ErrNotFound and
// logged, never surfaced as a hard error.
func decode(sessionID string, data []byte) (Profile, error) {
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		obs.Logger().Warn("discarding unreadable profile",
			slog.String("session_id", sessionID),
			obs.Err(err),
		)
		return Profile{}, ErrNotFound
	}
	return p, nil
}

func checkSession(sessionID string) (string, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return "", ErrEmptySession
	}
	return sessionID, nil
}

// InMemory implements Store in process. Payloads are kept encoded so callers
// never share memory with the store.
type InMemory struct {
	mu      sync.RWMutex
	blobs   map[string][]byte
	current string
	hasCur  bool
}

var _ Store = (*InMemory)(nil)

// NewInMemory creates an empty store.
func NewInMemory() *InMemory {
	return &InMemory{blobs: make(map[string][]byte)}
}

func (s *InMemory) Load(ctx context.Context, sessionID string) (Profile, error) {
	sessionID, err := checkSession(sessionID)
	if err != nil {
		return Profile{}, err
	}
	s.mu.RLock()
	data, ok := s.blobs[sessionID]
	s.mu.RUnlock()
	if !ok {
		return Profile{}, ErrNotFound
	}
	return decode(sessionID, data)
}

func (s *InMemory) Save(ctx context.Context, sessionID string, p Profile) error {
	sessionID, err := checkSession(sessionID)
	if err != nil {
		return err
	}
	data, err := encode(p)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.blobs[sessionID] = data
	s.mu.Unlock()
	return nil
}

// Update runs fn under the store lock. fn must not call back into the store.
func (s *InMemory) Update(ctx context.Context, sessionID string, fn UpdateFunc) (Profile, error) {
	sessionID, err := checkSession(sessionID)
	if err != nil {
		return Profile{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		p     Profile
		found bool
	)
	if data, ok := s.blobs[sessionID]; ok {
		if p, err = decode(sessionID, data); err == nil {
			found = true
		}
	}
	if err := fn(&p, found); err != nil {
		return Profile{}, err
	}
	data, err := encode(p)
	if err != nil {
		return Profile{}, err
	}
	s.blobs[sessionID] = data
	return p, nil
}

func (s *InMemory) SessionIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.blobs))
	for id := range s.blobs {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (s *InMemory) SetCurrentSession(ctx context.Context, sessionID string) error {
	sessionID, err := checkSession(sessionID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.current, s.hasCur = sessionID, true
	s.mu.Unlock()
	return nil
}

func (s *InMemory) CurrentSession(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.hasCur {
		return "", ErrNotFound
	}
	return s.current, nil
}

func (s *InMemory) ClearCurrentSession(ctx context.Context) error {
	s.mu.Lock()
	s.current, s.hasCur = "", false
	s.mu.Unlock()
	return nil
}

// putRaw stores an arbitrary payload; tests use it to simulate corruption.
func (s *InMemory) putRaw(sessionID string, data []byte) {
	s.mu.Lock()
	s.blobs[sessionID] = data
	s.mu.Unlock()
}
