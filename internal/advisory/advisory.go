// Package advisory is the client side of the external Advisory Service: scheme
// search, dynamic requirement fields, document checks, eligibility evaluation,
// reverse geocoding, grievance triage, free-text chat and the centre directory.
package advisory

import (
	"context"
	"errors"
	"strings"

	"thittam.org/internal/profile"
	"thittam.org/internal/roadmap"
)

var (
	// ErrUnavailable covers transport failures, timeouts and non-2xx replies.
	ErrUnavailable = errors.New("advisory: service unavailable")
	// ErrMalformed is returned when a reply cannot be parsed into the expected shape.
	ErrMalformed = errors.New("advisory: malformed response")
	// ErrInvalidField is returned when a dynamic field value does not fit its type.
	ErrInvalidField = errors.New("advisory: invalid field value")
)

// Service is the Advisory Service contract.
type Service interface {
	SearchSchemes(ctx context.Context, query string) (SearchResult, error)
	Requirements(ctx context.Context, scheme string) ([]RequirementField, error)
	CheckDocument(ctx context.Context, doc Document) (DocumentVerdict, error)
	Evaluate(ctx context.Context, req EvaluationRequest) (Verdict, error)
	ReverseGeocode(ctx context.Context, lat, lng float64) (Location, error)
	AnalyzeGrievance(ctx context.Context, description string) (GrievanceAnalysis, error)
	Chat(ctx context.Context, message string) (string, error)
	NearbyCenters(ctx context.Context, lat, lng float64) (CentersResult, error)
}

// Scheme is one search hit.
type Scheme struct {
	Name         string   `json:"name"`
	ShortSummary string   `json:"shortSummary"`
	Description  string   `json:"description"`
	Eligibility  []string `json:"eligibility"`
	Benefits     string   `json:"benefits"`
	Sector       string   `json:"sector"`
}

// Source is a citation attached to grounded answers.
type Source struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

type SearchResult struct {
	Schemes []Scheme `json:"schemes"`
	Sources []Source `json:"sources"`
}

// Document is an uploaded file submitted for a quality check.
type Document struct {
	Type     profile.DocumentType
	MIMEType string
	Data     []byte
}

type DocumentVerdict struct {
	IsValid  bool   `json:"isValid"`
	Feedback string `json:"feedback"`
}

// EvaluationRequest carries everything the evaluator sees.
type EvaluationRequest struct {
	Scheme  string
	Profile profile.Profile
	Extra   map[string]Value
}

// Verdict is the evaluator's answer. Roadmap holds the full enrollment path.
type Verdict struct {
	IsEligible        bool           `json:"isEligible"`
	EvaluationReason  string         `json:"evaluationReason"`
	PotentialBenefits string         `json:"potentialBenefits"`
	DocumentsVerified []string       `json:"documentsVerified"`
	PortalURL         string         `json:"portalUrl"`
	Roadmap           []roadmap.Step `json:"roadmap"`
}

// Location is a reverse-geocoded administrative address.
type Location struct {
	District string `json:"district"`
	Taluk    string `json:"taluk"`
	Village  string `json:"village"`
	Pincode  string `json:"pincode"`
}

type GrievanceAnalysis struct {
	Department      string `json:"department"`
	FormalSummary   string `json:"formalSummary"`
	RequestedAction string `json:"requestedAction"`
	Urgency         string `json:"urgency"`
}

type CentersResult struct {
	Text    string   `json:"text"`
	Sources []Source `json:"sources"`
}

// Language selects the reply language.
type Language string

const (
	English Language = "en"
	Tamil   Language = "ta"
)

// Name is the language name used in prompts.
func (l Language) Name() string {
	if l == Tamil {
		return "Tamil"
	}
	return "English"
}

// ParseLanguage accepts "ta"/"tamil" and falls back to English.
func ParseLanguage(s string) Language {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "ta" || strings.HasPrefix(s, "ta-") || s == "tamil" {
		return Tamil
	}
	return English
}

type langKey struct{}

// WithLanguage sets the reply language for advisory calls made with ctx.
func WithLanguage(ctx context.Context, l Language) context.Context {
	return context.WithValue(ctx, langKey{}, l)
}

// LanguageFrom returns the language stored in ctx, English when unset.
func LanguageFrom(ctx context.Context) Language {
	if ctx == nil {
		return English
	}
	if l, ok := ctx.Value(langKey{}).(Language); ok && l != "" {
		return l
	}
	return English
}
