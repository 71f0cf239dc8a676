// Package documents runs the per-slot document upload and quality check.
//
// Each slot verifies independently. Uploading or clearing a slot bumps its
// generation; a check that resolves for an older generation is discarded, so
// clearing a slot while its check is in flight leaves no feedback behind.
package documents

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"thittam.org/internal/advisory"
	"thittam.org/internal/notify"
	"thittam.org/internal/obs"
	"thittam.org/internal/profile"
)

// MaxBytes bounds a single upload.
const MaxBytes = 5 << 20

// FailedFeedback is recorded when the check itself fails.
const FailedFeedback = "Verification failed."

var (
	ErrUnknownType = errors.New("documents: unknown document type")
	ErrEmpty       = errors.New("documents: empty upload")
	ErrTooLarge    = errors.New("documents: upload too large")
	ErrClosed      = errors.New("documents: sidecar closed")
	ErrMalformed   = errors.New("documents: malformed payload")
)

// Status of a slot.
type Status string

const (
	StatusEmpty     Status = "empty"
	StatusStored    Status = "stored"
	StatusVerifying Status = "verifying"
	StatusChecked   Status = "checked"
)

// Slot is a read-only view of one document slot.
type Slot struct {
	Type     profile.DocumentType      `json:"type"`
	Label    string                    `json:"label"`
	Status   Status                    `json:"status"`
	Feedback *advisory.DocumentVerdict `json:"feedback,omitempty"`
}

type slot struct {
	payload  string
	status   Status
	feedback *advisory.DocumentVerdict
	gen      uint64
	cancel   context.CancelFunc
}

// Sidecar owns the document slots of one form.
type Sidecar struct {
	svc     advisory.Service
	pub     notify.Publisher
	session string
	timeout time.Duration
	alertOn map[profile.DocumentType]bool

	base   context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	slots  map[profile.DocumentType]*slot
	closed bool
}

type Option func(*Sidecar)

// WithTimeout bounds each quality check.
func WithTimeout(d time.Duration) Option {
	return func(s *Sidecar) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithAlertTypes replaces the document types whose rejection raises a
// notification. The default is the income certificate.
func WithAlertTypes(types ...profile.DocumentType) Option {
	return func(s *Sidecar) {
		s.alertOn = make(map[profile.DocumentType]bool, len(types))
		for _, t := range types {
			s.alertOn[t] = true
		}
	}
}

func New(svc advisory.Service, pub notify.Publisher, session string, opts ...Option) *Sidecar {
	if pub == nil {
		pub = notify.Discard
	}
	base, stop := context.WithCancel(context.Background())
	s := &Sidecar{
		svc:     svc,
		pub:     pub,
		session: session,
		timeout: 30 * time.Second,
		alertOn: map[profile.DocumentType]bool{profile.DocIncomeCert: true},
		base:    base,
		stop:    stop,
		slots:   make(map[profile.DocumentType]*slot, len(profile.DocumentTypes)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load seeds slots with payloads already on the profile. They carry no
// feedback until re-uploaded.
func (s *Sidecar) Load(docs map[profile.DocumentType]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked(docs)
}

// Replace empties every slot, discarding pending checks and feedback, and
// then loads docs.
func (s *Sidecar) Replace(docs map[profile.DocumentType]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sl := range s.slots {
		if sl.cancel != nil {
			sl.cancel()
			sl.cancel = nil
		}
		sl.gen++
		sl.payload = ""
		sl.feedback = nil
		sl.status = StatusEmpty
	}
	s.loadLocked(docs)
}

func (s *Sidecar) loadLocked(docs map[profile.DocumentType]string) {
	for t, payload := range docs {
		if !t.Valid() || payload == "" {
			continue
		}
		sl := s.slotLocked(t)
		sl.payload = payload
		sl.status = StatusStored
	}
}

func (s *Sidecar) slotLocked(t profile.DocumentType) *slot {
	sl, ok := s.slots[t]
	if !ok {
		sl = &slot{status: StatusEmpty}
		s.slots[t] = sl
	}
	return sl
}

// EncodePayload renders an upload as a data URL.
func EncodePayload(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodePayload splits a data URL into MIME type and bytes.
func DecodePayload(payload string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(payload, "data:")
	if !ok {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return "image/jpeg", data, nil
	}
	meta, b64, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("%w: no data section", ErrMalformed)
	}
	mime := strings.TrimSuffix(meta, ";base64")
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return mime, data, nil
}

// Upload stores the document and starts its quality check in the background.
// It returns the stored payload without waiting for the check.
func (s *Sidecar) Upload(t profile.DocumentType, mime string, data []byte) (string, error) {
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	if len(data) == 0 {
		return "", ErrEmpty
	}
	if len(data) > MaxBytes {
		return "", ErrTooLarge
	}
	if mime == "" {
		mime = http.DetectContentType(data)
	}
	payload := EncodePayload(mime, data)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrClosed
	}
	sl := s.slotLocked(t)
	if sl.cancel != nil {
		sl.cancel()
	}
	sl.gen++
	gen := sl.gen
	sl.payload = payload
	sl.status = StatusVerifying
	sl.feedback = nil
	ctx, cancel := context.WithTimeout(s.base, s.timeout)
	sl.cancel = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go s.check(ctx, cancel, t, gen, advisory.Document{Type: t, MIMEType: mime, Data: data})
	return payload, nil
}

func (s *Sidecar) check(ctx context.Context, cancel context.CancelFunc, t profile.DocumentType, gen uint64, doc advisory.Document) {
	defer s.wg.Done()
	defer cancel()

	verdict, err := s.svc.CheckDocument(ctx, doc)
	if err != nil {
		obs.Logger().Warn("document check failed",
			slog.String("document", string(t)), slog.String("session", s.session), obs.Err(err))
		verdict = advisory.DocumentVerdict{IsValid: false, Feedback: FailedFeedback}
	}

	s.mu.Lock()
	sl := s.slotLocked(t)
	if sl.gen != gen {
		s.mu.Unlock()
		return
	}
	sl.feedback = &verdict
	sl.status = StatusChecked
	sl.cancel = nil
	alert := !verdict.IsValid && s.alertOn[t]
	s.mu.Unlock()

	if alert {
		evt := notify.DocumentRejected(s.session, t.Label(), verdict.Feedback)
		if err := s.pub.Publish(s.base, evt); err != nil {
			obs.Logger().Warn("document rejection notification failed", slog.String("session", s.session), obs.Err(err))
		}
	}
}

// Clear empties a slot and discards any pending or recorded feedback.
func (s *Sidecar) Clear(t profile.DocumentType) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sl := s.slotLocked(t)
	if sl.cancel != nil {
		sl.cancel()
		sl.cancel = nil
	}
	sl.gen++
	sl.payload = ""
	sl.feedback = nil
	sl.status = StatusEmpty
	return nil
}

// Slots returns every slot in display order.
func (s *Sidecar) Slots() []Slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Slot, 0, len(profile.DocumentTypes))
	for _, t := range profile.DocumentTypes {
		view := Slot{Type: t, Label: t.Label(), Status: StatusEmpty}
		if sl, ok := s.slots[t]; ok {
			view.Status = sl.status
			if sl.feedback != nil {
				fb := *sl.feedback
				view.Feedback = &fb
			}
		}
		out = append(out, view)
	}
	return out
}

// Feedback returns the recorded verdict for t, if any.
func (s *Sidecar) Feedback(t profile.DocumentType) (advisory.DocumentVerdict, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[t]
	if !ok || sl.feedback == nil {
		return advisory.DocumentVerdict{}, false
	}
	return *sl.feedback, true
}

// Payloads returns the stored payloads keyed by type.
func (s *Sidecar) Payloads() map[profile.DocumentType]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[profile.DocumentType]string, len(s.slots))
	for t, sl := range s.slots {
		if sl.payload != "" {
			out[t] = sl.payload
		}
	}
	return out
}

// Wait blocks until every started check has resolved.
func (s *Sidecar) Wait() { s.wg.Wait() }

// Close cancels pending checks and waits for them to return.
func (s *Sidecar) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.stop()
	s.wg.Wait()
}
