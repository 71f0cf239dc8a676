// Package workflow hosts the eligibility-and-application state machine:
//
//	select → form → results → applying → success
//
// with return edges from form, results and success back to select. Every
// asynchronous answer (requirement fields, geocoding, evaluation) is tagged
// with the generation current when it was requested and dropped if the
// citizen has since moved to another scheme.
package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"thittam.org/internal/address"
	"thittam.org/internal/advisory"
	"thittam.org/internal/documents"
	"thittam.org/internal/ids"
	"thittam.org/internal/notify"
	"thittam.org/internal/obs"
	"thittam.org/internal/profile"
	"thittam.org/internal/roadmap"
)

type Stage string

const (
	StageSelect   Stage = "select"
	StageForm     Stage = "form"
	StageResults  Stage = "results"
	StageApplying Stage = "applying"
	StageSuccess  Stage = "success"
)

var (
	ErrWrongStage      = errors.New("workflow: action not allowed in the current stage")
	ErrInvalid         = errors.New("workflow: invalid input")
	ErrUnknownField    = fmt.Errorf("%w: unknown requirement field", ErrInvalid)
	ErrStale           = errors.New("workflow: answer arrived for a scheme no longer selected")
	ErrAdvisory        = errors.New("workflow: advisory service failed")
	ErrNotEligible     = errors.New("workflow: citizen is not eligible")
	ErrAlreadyReminded = errors.New("workflow: reminder already saved for this result")
	ErrNoPortal        = errors.New("workflow: verdict has no portal address")
)

// Config holds the tunables of a workflow.
type Config struct {
	// ApplyingPad is how long the applying stage lasts before the application
	// is recorded.
	ApplyingPad time.Duration
	// Timeout bounds each Advisory Service call.
	Timeout time.Duration
	// IdleTTL is how long a Manager keeps an untouched workflow. Zero keeps
	// workflows until they are dropped.
	IdleTTL time.Duration
	Now     func() time.Time
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.ApplyingPad < 0 {
		c.ApplyingPad = 0
	}
	if c.Now == nil {
		c.Now = func() time.Time { return time.Now().UTC() }
	}
	return c
}

// Workflow is one citizen's pass through the state machine.
type Workflow struct {
	session string
	svc     advisory.Service
	reg     *profile.Registry
	cfg     Config
	docs    *documents.Sidecar

	base context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu          sync.Mutex
	stage       Stage
	gen         uint64
	scheme      string
	schemes     []SchemeCard
	sources     []advisory.Source
	fields      []advisory.RequirementField
	fetching    bool
	fetchCancel context.CancelFunc
	extra       map[string]advisory.Value
	form        profile.Profile
	seeded      []byte
	manualAge   bool
	addr        address.Pair
	verdict     *advisory.Verdict
	reminded    bool
	refNumber   string
	application *profile.Application
}

// New starts a workflow in the select stage with the form pre-filled from p.
func New(session string, p profile.Profile, svc advisory.Service, reg *profile.Registry, pub notify.Publisher, cfg Config) *Workflow {
	cfg = cfg.withDefaults()
	base, stop := context.WithCancel(context.Background())
	w := &Workflow{
		session: session,
		svc:     svc,
		reg:     reg,
		cfg:     cfg,
		docs:    documents.New(svc, pub, session, documents.WithTimeout(cfg.Timeout)),
		base:    base,
		stop:    stop,
		stage:   StageSelect,
		schemes: append([]SchemeCard(nil), Presets...),
		extra:   map[string]advisory.Value{},
	}
	w.seedLocked(p)
	return w
}

// seedLocked fills the form, address pair and document slots from p.
func (w *Workflow) seedLocked(p profile.Profile) {
	w.seeded = fingerprint(p)
	w.docs.Replace(p.Documents)
	w.addr = address.NewPair(p.PermAddress, p.TempAddress, p.IsSameAddress)
	p.Documents, p.Applications, p.Reminders = nil, nil, nil
	p.PermAddress, p.TempAddress = profile.Address{}, profile.Address{}
	w.manualAge = p.DOB != "" && p.Age != profile.AgeOn(p.DOB, w.cfg.Now())
	w.form = p
}

// fingerprint covers the parts of a profile the form is seeded from.
func fingerprint(p profile.Profile) []byte {
	p.Applications, p.Reminders = nil, nil
	b, err := json.Marshal(p)
	if err != nil {
		return nil
	}
	return b
}

// Refresh re-seeds the form from p when the workflow is idle in select and p
// differs from the profile it was last seeded from. Edits made in the form
// survive as long as the stored profile is unchanged.
func (w *Workflow) Refresh(p profile.Profile) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stage != StageSelect {
		return false
	}
	key := fingerprint(p)
	if key == nil || bytes.Equal(key, w.seeded) {
		return false
	}
	w.seedLocked(p)
	return true
}

// Stage reports the current stage.
func (w *Workflow) Stage() Stage {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stage
}

func (w *Workflow) Session() string { return w.session }

func (w *Workflow) moveLocked(to Stage) {
	if w.stage == to {
		return
	}
	obs.ObserveTransition(string(w.stage), string(to))
	w.stage = to
}

func (w *Workflow) requireLocked(stages ...Stage) error {
	for _, s := range stages {
		if w.stage == s {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrWrongStage, w.stage)
}

// callCtx derives a bounded context for an Advisory Service call from the
// workflow lifetime, carrying the caller's reply language.
func (w *Workflow) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(advisory.WithLanguage(w.base, advisory.LanguageFrom(ctx)), w.cfg.Timeout)
}

func advisoryErr(err error) error {
	return fmt.Errorf("%w: %w", ErrAdvisory, err)
}

// Search replaces the selection list with schemes matching query. An empty
// answer restores the presets; a failure leaves the list as it was.
func (w *Workflow) Search(ctx context.Context, query string) ([]SchemeCard, error) {
	w.mu.Lock()
	if err := w.requireLocked(StageSelect); err != nil {
		w.mu.Unlock()
		return nil, err
	}
	w.mu.Unlock()

	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalid)
	}
	cctx, cancel := w.callCtx(ctx)
	defer cancel()
	res, err := w.svc.SearchSchemes(cctx, SearchQuery(query))
	if err != nil {
		return nil, advisoryErr(err)
	}

	cards := make([]SchemeCard, 0, len(res.Schemes))
	for _, s := range res.Schemes {
		if strings.TrimSpace(s.Name) == "" {
			continue
		}
		cat := s.Sector
		if cat == "" {
			cat = "TN State Scheme"
		}
		cards = append(cards, SchemeCard{Name: s.Name, Category: cat})
	}
	if len(cards) == 0 {
		cards = append(cards, Presets...)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stage != StageSelect {
		return nil, ErrStale
	}
	w.schemes = cards
	w.sources = res.Sources
	return append([]SchemeCard(nil), cards...), nil
}

// SearchSector runs the canned query of a sector shortcut.
func (w *Workflow) SearchSector(ctx context.Context, id string) ([]SchemeCard, error) {
	s, ok := SectorByID(id)
	if !ok {
		return nil, fmt.Errorf("%w: unknown sector %q", ErrInvalid, id)
	}
	return w.Search(ctx, s.Query)
}

// SelectScheme opens the form for name and fetches its requirement fields in
// the background. Fields and extra answers from an earlier scheme are
// discarded. Allowed from select and, to switch schemes, from form.
func (w *Workflow) SelectScheme(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: scheme name is required", ErrInvalid)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.requireLocked(StageSelect, StageForm); err != nil {
		return err
	}
	w.resetLocked()
	w.scheme = name
	w.fetching = true
	w.moveLocked(StageForm)

	gen := w.gen
	cctx, cancel := w.callCtx(ctx)
	w.fetchCancel = cancel
	w.wg.Add(1)
	go w.fetchRequirements(cctx, cancel, gen, name)
	return nil
}

func (w *Workflow) fetchRequirements(ctx context.Context, cancel context.CancelFunc, gen uint64, scheme string) {
	defer w.wg.Done()
	defer cancel()

	fields, err := w.svc.Requirements(ctx, scheme)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.gen != gen {
		return
	}
	w.fetching = false
	w.fetchCancel = nil
	if err != nil {
		obs.Logger().Warn("requirement fetch failed",
			slog.String("scheme", scheme), slog.String("session", w.session), obs.Err(err))
		return
	}
	w.fields = advisory.NormalizeFields(fields)
	for id := range w.extra {
		if _, ok := w.fieldLocked(id); !ok {
			delete(w.extra, id)
		}
	}
}

// resetLocked bumps the generation and drops everything tied to the previous
// scheme. Form data and documents survive.
func (w *Workflow) resetLocked() {
	w.gen++
	if w.fetchCancel != nil {
		w.fetchCancel()
		w.fetchCancel = nil
	}
	w.scheme = ""
	w.fields = nil
	w.fetching = false
	w.extra = map[string]advisory.Value{}
	w.verdict = nil
	w.reminded = false
	w.refNumber = ""
	w.application = nil
}

func (w *Workflow) fieldLocked(id string) (advisory.RequirementField, bool) {
	for _, f := range w.fields {
		if f.ID == id {
			return f, true
		}
	}
	return advisory.RequirementField{}, false
}

// PatchForm edits the static form fields. A patch that leaves the form
// invalid is rejected as a whole.
func (w *Workflow) PatchForm(patch FormPatch) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.requireLocked(StageForm); err != nil {
		return err
	}
	next := w.form
	manual := w.manualAge
	patch.apply(&next, &manual, w.cfg.Now())
	if err := profile.Validate(next); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	w.form, w.manualAge = next, manual
	return nil
}

// SetExtra records the answer to a scheme-specific field, coerced to the
// field's declared type.
func (w *Workflow) SetExtra(id string, raw any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.requireLocked(StageForm); err != nil {
		return err
	}
	f, ok := w.fieldLocked(strings.TrimSpace(id))
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownField, id)
	}
	v, err := advisory.Coerce(f, raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	w.extra[f.ID] = v
	return nil
}

// SetAddress edits one address field.
func (w *Workflow) SetAddress(kind address.Kind, field address.Field, value string) error {
	return w.editAddress(func(p *address.Pair) error { return p.Set(kind, field, value) })
}

// SetManual switches an address field between list selection and free text.
func (w *Workflow) SetManual(kind address.Kind, field address.Field, on bool) error {
	return w.editAddress(func(p *address.Pair) error { return p.SetManual(kind, field, on) })
}

// SetSameAddress toggles the temporary address mirroring the permanent one.
func (w *Workflow) SetSameAddress(on bool) error {
	return w.editAddress(func(p *address.Pair) error { p.SetSame(on); return nil })
}

func (w *Workflow) editAddress(fn func(*address.Pair) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.requireLocked(StageForm); err != nil {
		return err
	}
	next := w.addr
	if err := fn(&next); err != nil {
		return err
	}
	w.addr = next
	return nil
}

// Locate fills an address from device coordinates. Values missing from the
// known lists switch their field to manual entry.
func (w *Workflow) Locate(ctx context.Context, kind address.Kind, lat, lng float64) (address.Pair, error) {
	w.mu.Lock()
	if err := w.requireLocked(StageForm); err != nil {
		w.mu.Unlock()
		return address.Pair{}, err
	}
	gen := w.gen
	w.mu.Unlock()

	cctx, cancel := w.callCtx(ctx)
	defer cancel()
	loc, err := w.svc.ReverseGeocode(cctx, lat, lng)
	if err != nil {
		return address.Pair{}, advisoryErr(err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.gen != gen || w.stage != StageForm {
		return address.Pair{}, ErrStale
	}
	next := w.addr
	err = next.ApplyLocation(kind, profile.Address{
		District: loc.District,
		Taluk:    loc.Taluk,
		Village:  loc.Village,
		Pincode:  loc.Pincode,
	})
	if err != nil {
		if errors.Is(err, address.ErrMirrored) {
			return address.Pair{}, err
		}
		return address.Pair{}, advisoryErr(err)
	}
	w.addr = next
	return next, nil
}

// Upload stores a document and starts its quality check.
func (w *Workflow) Upload(doc profile.DocumentType, mime string, data []byte) error {
	w.mu.Lock()
	err := w.requireLocked(StageForm)
	w.mu.Unlock()
	if err != nil {
		return err
	}
	_, err = w.docs.Upload(doc, mime, data)
	return err
}

// ClearDocument empties a document slot together with its feedback.
func (w *Workflow) ClearDocument(doc profile.DocumentType) error {
	w.mu.Lock()
	err := w.requireLocked(StageForm)
	w.mu.Unlock()
	if err != nil {
		return err
	}
	return w.docs.Clear(doc)
}

// profileLocked assembles the profile the evaluator and registry see.
func (w *Workflow) profileLocked() profile.Profile {
	p := w.form
	w.addr.ApplyTo(&p)
	p.Documents = w.docs.Payloads()
	return p
}

// Submit asks the Advisory Service for a verdict. On failure the workflow
// stays in form and nothing is recorded.
func (w *Workflow) Submit(ctx context.Context) (advisory.Verdict, error) {
	w.mu.Lock()
	if err := w.requireLocked(StageForm); err != nil {
		w.mu.Unlock()
		return advisory.Verdict{}, err
	}
	gen := w.gen
	req := advisory.EvaluationRequest{
		Scheme:  w.scheme,
		Profile: w.profileLocked(),
		Extra:   make(map[string]advisory.Value, len(w.extra)),
	}
	for k, v := range w.extra {
		req.Extra[k] = v
	}
	w.mu.Unlock()

	cctx, cancel := w.callCtx(ctx)
	defer cancel()
	verdict, err := w.svc.Evaluate(cctx, req)
	if err != nil {
		return advisory.Verdict{}, advisoryErr(err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.gen != gen || w.stage != StageForm {
		return advisory.Verdict{}, ErrStale
	}
	w.verdict = &verdict
	w.reminded = false
	w.moveLocked(StageResults)
	return verdict, nil
}

func (w *Workflow) eligibleLocked() (*advisory.Verdict, error) {
	if err := w.requireLocked(StageResults); err != nil {
		return nil, err
	}
	if w.verdict == nil || !w.verdict.IsEligible {
		return nil, ErrNotEligible
	}
	return w.verdict, nil
}

// Proceed moves an eligible result through applying to success. The applying
// stage is held for Config.ApplyingPad, then the application is appended to
// the session's profile with a fresh TN-ENQ reference and an enrollment
// roadmap shaped from the verdict. If ctx ends or the write fails the
// workflow returns to results.
func (w *Workflow) Proceed(ctx context.Context) (profile.Application, error) {
	w.mu.Lock()
	verdict, err := w.eligibleLocked()
	if err != nil {
		w.mu.Unlock()
		return profile.Application{}, err
	}
	w.refNumber = ids.RefNumber()
	w.moveLocked(StageApplying)
	in := profile.NewApplication{
		SchemeName: w.scheme,
		RefNumber:  w.refNumber,
		Roadmap:    roadmap.Enrollment(verdict.Roadmap),
	}
	seed := w.profileLocked()
	in.Seed = &seed
	w.mu.Unlock()

	fail := func(err error) (profile.Application, error) {
		w.mu.Lock()
		defer w.mu.Unlock()
		w.refNumber = ""
		w.moveLocked(StageResults)
		return profile.Application{}, err
	}

	if w.cfg.ApplyingPad > 0 {
		t := time.NewTimer(w.cfg.ApplyingPad)
		select {
		case <-ctx.Done():
			t.Stop()
			return fail(ctx.Err())
		case <-t.C:
		}
	}

	app, err := w.reg.AddApplication(ctx, w.session, in)
	if err != nil {
		return fail(fmt.Errorf("record application: %w", err))
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.application = &app
	w.moveLocked(StageSuccess)
	return app, nil
}

// SaveReminder bookmarks the current scheme once per results visit.
func (w *Workflow) SaveReminder(ctx context.Context) (profile.Reminder, error) {
	w.mu.Lock()
	verdict, err := w.eligibleLocked()
	if err != nil {
		w.mu.Unlock()
		return profile.Reminder{}, err
	}
	if w.reminded {
		w.mu.Unlock()
		return profile.Reminder{}, ErrAlreadyReminded
	}
	scheme := w.scheme
	docs := verdict.DocumentsVerified
	if len(docs) == 0 {
		docs = DefaultReminderDocuments
	}
	gen := w.gen
	w.mu.Unlock()

	rem, err := w.reg.AddReminder(ctx, w.session, scheme, docs)
	if err != nil {
		return profile.Reminder{}, err
	}
	w.mu.Lock()
	if w.gen == gen {
		w.reminded = true
	}
	w.mu.Unlock()
	return rem, nil
}

// Portal returns the official portal address of an eligible result.
func (w *Workflow) Portal() (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	verdict, err := w.eligibleLocked()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(verdict.PortalURL) == "" {
		return "", ErrNoPortal
	}
	return verdict.PortalURL, nil
}

// Done returns to select. Form data and documents are kept for the next
// scheme. Not allowed while applying.
func (w *Workflow) Done() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.requireLocked(StageSelect, StageForm, StageResults, StageSuccess); err != nil {
		return err
	}
	if w.stage == StageSelect {
		return nil
	}
	w.resetLocked()
	w.moveLocked(StageSelect)
	return nil
}

// Wait blocks until background requirement fetches and document checks have
// resolved.
func (w *Workflow) Wait() {
	w.wg.Wait()
	w.docs.Wait()
}

// Close cancels outstanding calls.
func (w *Workflow) Close() {
	w.stop()
	w.wg.Wait()
	w.docs.Close()
}
