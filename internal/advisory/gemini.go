package advisory

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"thittam.org/internal/obs"
	"thittam.org/internal/roadmap"
)

// GeminiConfig configures the generative-language REST client.
type GeminiConfig struct {
	BaseURL  string
	APIKey   string
	Model    string
	ProModel string
	Timeout  time.Duration
	Rate     float64
	Burst    int
}

const (
	defaultBaseURL  = "https://generativelanguage.googleapis.com"
	defaultModel    = "gemini-3-flash-preview"
	defaultProModel = "gemini-3-pro-preview"
	defaultTimeout  = 30 * time.Second

	// Sent as a header; request URLs end up in transport errors.
	apiKeyHeader = "x-goog-api-key"
)

// GeminiClient implements Service over the generateContent REST endpoint.
type GeminiClient struct {
	http    *resty.Client
	cfg     GeminiConfig
	limiter *rate.Limiter
}

var _ Service = (*GeminiClient)(nil)

// NewGeminiClient validates cfg and fills defaults.
func NewGeminiClient(cfg GeminiConfig) (*GeminiClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("advisory: api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.ProModel == "" {
		cfg.ProModel = defaultProModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	limit := rate.Inf
	if cfg.Rate > 0 {
		limit = rate.Limit(cfg.Rate)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetHeader(apiKeyHeader, cfg.APIKey)
	return &GeminiClient{
		http:    client,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, cfg.Burst),
	}, nil
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	ResponseMIMEType string          `json:"responseMimeType,omitempty"`
	ResponseSchema   map[string]any  `json:"responseSchema,omitempty"`
	ThinkingConfig   *thinkingConfig `json:"thinkingConfig,omitempty"`
}

type thinkingConfig struct {
	ThinkingBudget int `json:"thinkingBudget"`
}

type tool struct {
	GoogleSearch *struct{} `json:"googleSearch,omitempty"`
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
	Tools            []tool            `json:"tools,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content           content `json:"content"`
		GroundingMetadata struct {
			GroundingChunks []struct {
				Web struct {
					URI   string `json:"uri"`
					Title string `json:"title"`
				} `json:"web"`
			} `json:"groundingChunks"`
		} `json:"groundingMetadata"`
	} `json:"candidates"`
}

func (r generateResponse) text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

func (r generateResponse) sources() []Source {
	if len(r.Candidates) == 0 {
		return []Source{}
	}
	out := make([]Source, 0, len(r.Candidates[0].GroundingMetadata.GroundingChunks))
	for _, c := range r.Candidates[0].GroundingMetadata.GroundingChunks {
		if c.Web.URI == "" {
			continue
		}
		out = append(out, Source{Title: c.Web.Title, URI: c.Web.URI})
	}
	return out
}

func textRequest(prompt string) generateRequest {
	return generateRequest{Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}}}
}

func jsonRequest(prompt string, schema map[string]any) generateRequest {
	req := textRequest(prompt)
	req.GenerationConfig = &generationConfig{ResponseMIMEType: "application/json", ResponseSchema: schema}
	return req
}

func (c *GeminiClient) generate(ctx context.Context, op, model string, req generateRequest) (out generateResponse, err error) {
	start := time.Now()
	defer func() { obs.ObserveAdvisory(op, err, time.Since(start)) }()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	if err := c.limiter.Wait(ctx); err != nil {
		return out, fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("model", model).
		SetBody(req).
		Post("/v1beta/models/{model}:generateContent")
	if err != nil {
		return out, fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
	}
	if resp.IsError() {
		return out, fmt.Errorf("%w: %s: status %d", ErrUnavailable, op, resp.StatusCode())
	}
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return out, fmt.Errorf("%w: %s: %v", ErrMalformed, op, err)
	}
	return out, nil
}

// decodeText parses the model's JSON answer, tolerating a fenced code block.
func decodeText(op, text string, v any) error {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	if text == "" {
		return fmt.Errorf("%w: %s: empty answer", ErrMalformed, op)
	}
	if err := json.Unmarshal([]byte(text), v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformed, op, err)
	}
	return nil
}

func (c *GeminiClient) SearchSchemes(ctx context.Context, query string) (SearchResult, error) {
	req := textRequest(searchPrompt(query, LanguageFrom(ctx)))
	req.Tools = []tool{{GoogleSearch: &struct{}{}}}
	resp, err := c.generate(ctx, "search", c.cfg.Model, req)
	if err != nil {
		return SearchResult{}, err
	}
	var schemes []Scheme
	if err := decodeText("search", resp.text(), &schemes); err != nil {
		return SearchResult{}, err
	}
	if schemes == nil {
		schemes = []Scheme{}
	}
	return SearchResult{Schemes: schemes, Sources: resp.sources()}, nil
}

func (c *GeminiClient) Requirements(ctx context.Context, scheme string) ([]RequirementField, error) {
	resp, err := c.generate(ctx, "requirements", c.cfg.Model, jsonRequest(requirementsPrompt(scheme, LanguageFrom(ctx)), requirementsSchema))
	if err != nil {
		return nil, err
	}
	var fields []RequirementField
	if err := decodeText("requirements", resp.text(), &fields); err != nil {
		return nil, err
	}
	return NormalizeFields(fields), nil
}

func (c *GeminiClient) CheckDocument(ctx context.Context, doc Document) (DocumentVerdict, error) {
	mime := doc.MIMEType
	if mime == "" {
		mime = "image/jpeg"
	}
	req := jsonRequest(documentPrompt(doc, LanguageFrom(ctx)), documentSchema)
	req.Contents[0].Parts = append([]part{{InlineData: &inlineData{
		MIMEType: mime,
		Data:     base64.StdEncoding.EncodeToString(doc.Data),
	}}}, req.Contents[0].Parts...)
	resp, err := c.generate(ctx, "document", c.cfg.Model, req)
	if err != nil {
		return DocumentVerdict{}, err
	}
	var v DocumentVerdict
	if err := decodeText("document", resp.text(), &v); err != nil {
		return DocumentVerdict{}, err
	}
	return v, nil
}

func (c *GeminiClient) Evaluate(ctx context.Context, req EvaluationRequest) (Verdict, error) {
	resp, err := c.generate(ctx, "evaluate", c.cfg.ProModel, jsonRequest(evaluationPrompt(req, LanguageFrom(ctx)), verdictSchema))
	if err != nil {
		return Verdict{}, err
	}
	var v Verdict
	if err := decodeText("evaluate", resp.text(), &v); err != nil {
		return Verdict{}, err
	}
	if v.DocumentsVerified == nil {
		v.DocumentsVerified = []string{}
	}
	v.Roadmap = compactSteps(v.Roadmap)
	return v, nil
}

func compactSteps(in []roadmap.Step) []roadmap.Step {
	out := make([]roadmap.Step, 0, len(in))
	for _, s := range in {
		s.Label = strings.TrimSpace(s.Label)
		if s.Label == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

func (c *GeminiClient) ReverseGeocode(ctx context.Context, lat, lng float64) (Location, error) {
	resp, err := c.generate(ctx, "geocode", c.cfg.Model, jsonRequest(geocodePrompt(lat, lng, LanguageFrom(ctx)), locationSchema))
	if err != nil {
		return Location{}, err
	}
	var loc Location
	if err := decodeText("geocode", resp.text(), &loc); err != nil {
		return Location{}, err
	}
	return loc, nil
}

func (c *GeminiClient) AnalyzeGrievance(ctx context.Context, description string) (GrievanceAnalysis, error) {
	resp, err := c.generate(ctx, "grievance", c.cfg.Model, jsonRequest(grievancePrompt(description, LanguageFrom(ctx)), grievanceSchema))
	if err != nil {
		return GrievanceAnalysis{}, err
	}
	var a GrievanceAnalysis
	if err := decodeText("grievance", resp.text(), &a); err != nil {
		return GrievanceAnalysis{}, err
	}
	return a, nil
}

func (c *GeminiClient) Chat(ctx context.Context, message string) (string, error) {
	req := textRequest(chatPrompt(message, LanguageFrom(ctx)))
	req.GenerationConfig = &generationConfig{ThinkingConfig: &thinkingConfig{ThinkingBudget: 1000}}
	resp, err := c.generate(ctx, "chat", c.cfg.ProModel, req)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.text())
	if text == "" {
		return "", fmt.Errorf("%w: chat: empty answer", ErrMalformed)
	}
	return text, nil
}

func (c *GeminiClient) NearbyCenters(ctx context.Context, lat, lng float64) (CentersResult, error) {
	req := textRequest(centersPrompt(lat, lng, LanguageFrom(ctx)))
	req.Tools = []tool{{GoogleSearch: &struct{}{}}}
	resp, err := c.generate(ctx, "centers", c.cfg.Model, req)
	if err != nil {
		return CentersResult{}, err
	}
	return CentersResult{Text: resp.text(), Sources: resp.sources()}, nil
}

func obj(props map[string]any, required ...string) map[string]any {
	return map[string]any{"type": "OBJECT", "properties": props, "required": required}
}

func arr(items map[string]any) map[string]any {
	return map[string]any{"type": "ARRAY", "items": items}
}

var (
	str     = map[string]any{"type": "STRING"}
	boolean = map[string]any{"type": "BOOLEAN"}

	requirementsSchema = arr(obj(map[string]any{
		"id": str, "label": str, "type": str, "description": str,
	}, "id", "label", "type", "description"))

	documentSchema = obj(map[string]any{
		"isValid": boolean, "feedback": str,
	}, "isValid", "feedback")

	verdictSchema = obj(map[string]any{
		"isEligible":        boolean,
		"evaluationReason":  str,
		"potentialBenefits": str,
		"documentsVerified": arr(str),
		"portalUrl":         str,
		"roadmap":           arr(obj(map[string]any{"label": str, "description": str}, "label", "description")),
	}, "isEligible", "evaluationReason", "potentialBenefits", "documentsVerified", "portalUrl", "roadmap")

	locationSchema = obj(map[string]any{
		"district": str, "taluk": str, "village": str, "pincode": str,
	}, "district", "taluk", "village", "pincode")

	grievanceSchema = obj(map[string]any{
		"department": str, "formalSummary": str, "requestedAction": str, "urgency": str,
	}, "department", "formalSummary", "requestedAction", "urgency")
)
