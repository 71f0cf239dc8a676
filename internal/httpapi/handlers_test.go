package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"thittam.org/internal/advisory"
	"thittam.org/internal/auth"
	"thittam.org/internal/dashboard"
	"thittam.org/internal/grievance"
	"thittam.org/internal/notify"
	"thittam.org/internal/profile"
	"thittam.org/internal/roadmap"
	"thittam.org/internal/workflow"
)

const citizen = "9876543210"

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T
	token   string

	api   *API
	store *profile.InMemory
	hub   *notify.Hub
}

func eligibleVerdict() advisory.Verdict {
	return advisory.Verdict{
		IsEligible:        true,
		EvaluationReason:  "Studied in a Government school.",
		PotentialBenefits: "₹1000 per month",
		DocumentsVerified: []string{"Aadhar Card"},
		PortalURL:         "https://penkalvi.tn.gov.in",
		Roadmap: []roadmap.Step{
			{Label: "Enquiry submitted"},
			{Label: "Document check"},
			{Label: "VAO visit"},
			{Label: "RI approval"},
			{Label: "Tahsildar sanction"},
			{Label: "Disbursement"},
		},
	}
}

func stubAdvisory() advisory.Func {
	return advisory.Func{
		SearchFn: func(_ context.Context, q string) (advisory.SearchResult, error) {
			return advisory.SearchResult{
				Schemes: []advisory.Scheme{{Name: "Ulavar Pathukappu", Sector: "Agriculture"}},
				Sources: []advisory.Source{{Title: "tn.gov.in", URI: "https://tn.gov.in"}},
			}, nil
		},
		RequireFn: func(context.Context, string) ([]advisory.RequirementField, error) {
			return []advisory.RequirementField{{ID: "govtSchool", Label: "Government school?", Type: advisory.FieldBoolean}}, nil
		},
		DocumentFn: func(context.Context, advisory.Document) (advisory.DocumentVerdict, error) {
			return advisory.DocumentVerdict{IsValid: true, Feedback: "Readable."}, nil
		},
		EvaluateFn: func(context.Context, advisory.EvaluationRequest) (advisory.Verdict, error) {
			return eligibleVerdict(), nil
		},
		GeocodeFn: func(context.Context, float64, float64) (advisory.Location, error) {
			return advisory.Location{District: "Madurai", Taluk: "Melur", Village: "Kottakudi Pudur", Pincode: "625106"}, nil
		},
		GrievanceFn: func(context.Context, string) (advisory.GrievanceAnalysis, error) {
			return advisory.GrievanceAnalysis{
				Department:      "revenue",
				FormalSummary:   "Patta transfer pending for six months.",
				RequestedAction: "Complete the transfer.",
				Urgency:         "High",
			}, nil
		},
		ChatFn: func(_ context.Context, msg string) (string, error) {
			return "You may be eligible: " + msg, nil
		},
		CentersFn: func(context.Context, float64, float64) (advisory.CentersResult, error) {
			return advisory.CentersResult{Text: "E-Sevai centre, Melur"}, nil
		},
	}
}

func newTestAPI(t *testing.T, svc advisory.Service) *apiClient {
	t.Helper()

	auth.Configure("test-secret")
	t.Cleanup(auth.ResetSecretForTests)

	store := profile.NewInMemory()
	reg := profile.NewRegistry(store)
	hub := notify.NewHub()
	manager := workflow.NewManager(svc, reg, hub, workflow.Config{ApplyingPad: 10 * time.Millisecond, Timeout: 2 * time.Second})
	t.Cleanup(manager.Close)

	api := New(Deps{
		Registry:        reg,
		Advisory:        svc,
		Workflows:       manager,
		Grievances:      grievance.NewService(svc, grievance.NewInMemory(), grievance.Config{Pad: time.Millisecond}),
		Dashboard:       dashboard.NewService(store, hub),
		Hub:             hub,
		Version:         "test",
		AdvisoryTimeout: 2 * time.Second,
		RateBurst:       1000,
		RatePerSec:      1000,
	})

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		t:       t,
		api:     api,
		store:   store,
		hub:     hub,
	}
}

func (c *apiClient) do(method, path string, body any) *http.Response {
	c.t.Helper()
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
		payload = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, c.baseURL+path, payload)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set(authHeader, bearer+c.token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) get(path string, params url.Values) *http.Response {
	c.t.Helper()
	if params != nil {
		path += "?" + params.Encode()
	}
	return c.do(http.MethodGet, path, nil)
}

func (c *apiClient) login(id string) {
	c.t.Helper()
	resp := c.do(http.MethodPost, "/v1/session", map[string]any{"identifier": id})
	expectStatus(c.t, resp, http.StatusOK)
	out := decode[sessionResponse](c.t, resp)
	if out.Token == "" {
		c.t.Fatal("empty token issued")
	}
	c.token = out.Token
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func expectStatus(t *testing.T, r *http.Response, want int) {
	t.Helper()
	if r.StatusCode != want {
		body, _ := io.ReadAll(r.Body)
		r.Body.Close()
		t.Fatalf("%s %s: status %d, want %d: %s", r.Request.Method, r.Request.URL.Path, r.StatusCode, want, body)
	}
}

type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id"`
	Retryable bool   `json:"retryable"`
}

func TestPublicEndpoints(t *testing.T) {
	c := newTestAPI(t, stubAdvisory())

	for _, path := range []string{"/healthz", "/readyz", "/v1/info", "/v1/schemes/presets", "/v1/sectors", "/v1/geo/districts"} {
		resp := c.get(path, nil)
		expectStatus(t, resp, http.StatusOK)
		resp.Body.Close()
	}

	presets := decode[struct {
		Items []workflow.SchemeCard `json:"items"`
	}](t, c.get("/v1/schemes/presets", nil))
	if len(presets.Items) != 5 {
		t.Fatalf("expected 5 presets, got %d", len(presets.Items))
	}
	sectors := decode[struct {
		Items []workflow.Sector `json:"items"`
	}](t, c.get("/v1/sectors", nil))
	if len(sectors.Items) != 9 {
		t.Fatalf("expected 9 sectors, got %d", len(sectors.Items))
	}

	taluks := c.get("/v1/geo/taluks", url.Values{"district": {"madurai"}})
	expectStatus(t, taluks, http.StatusOK)
	got := decode[struct {
		District string   `json:"district"`
		Items    []string `json:"items"`
	}](t, taluks)
	if got.District != "Madurai" || len(got.Items) == 0 {
		t.Fatalf("unexpected taluks %+v", got)
	}
	resp := c.get("/v1/geo/taluks", url.Values{"district": {"Atlantis"}})
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}

func TestProtectedEndpointsRequireToken(t *testing.T) {
	c := newTestAPI(t, stubAdvisory())

	resp := c.get("/v1/profile", nil)
	expectStatus(t, resp, http.StatusUnauthorized)
	if resp.Header.Get("WWW-Authenticate") == "" {
		t.Fatal("expected WWW-Authenticate header")
	}
	body := decode[errorBody](t, resp)
	if body.RequestID == "" {
		t.Fatal("expected request_id in error body")
	}

	c.token = "not-a-jwt"
	resp = c.get("/v1/workflow", nil)
	expectStatus(t, resp, http.StatusUnauthorized)
	resp.Body.Close()
}

func TestSessionLifecycle(t *testing.T) {
	c := newTestAPI(t, stubAdvisory())

	resp := c.do(http.MethodPost, "/v1/session", map[string]any{"identifier": "12345"})
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	c.login("Meena@Example.in")
	me := decode[sessionResponse](t, c.get("/v1/session", nil))
	if me.Session != "meena@example.in" || me.Channel != auth.ChannelEmail {
		t.Fatalf("unexpected session %+v", me)
	}
	current, err := c.store.CurrentSession(context.Background())
	if err != nil || current != "meena@example.in" {
		t.Fatalf("current session = %q, %v", current, err)
	}
	p := decode[profile.Profile](t, c.get("/v1/profile", nil))
	if p.Email != "meena@example.in" {
		t.Fatalf("seeded profile should carry the e-mail, got %+v", p)
	}

	resp = c.do(http.MethodDelete, "/v1/session", nil)
	expectStatus(t, resp, http.StatusNoContent)
	resp.Body.Close()
	if _, err := c.store.CurrentSession(context.Background()); !errors.Is(err, profile.ErrNotFound) {
		t.Fatalf("expected cleared slot, got %v", err)
	}
}

func waitForFields(t *testing.T, c *apiClient) workflow.Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		snap := decode[workflow.Snapshot](t, c.get("/v1/workflow", nil))
		if !snap.FetchingFields {
			return snap
		}
		if time.Now().After(deadline) {
			t.Fatal("requirement fields never arrived")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWorkflowEnrollment(t *testing.T) {
	c := newTestAPI(t, stubAdvisory())
	c.login(citizen)

	snap := decode[workflow.Snapshot](t, c.get("/v1/workflow", nil))
	if snap.Stage != workflow.StageSelect {
		t.Fatalf("new workflow should start in select, got %s", snap.Stage)
	}

	resp := c.do(http.MethodPost, "/v1/workflow/submit", nil)
	expectStatus(t, resp, http.StatusConflict)
	resp.Body.Close()

	resp = c.do(http.MethodPost, "/v1/workflow/select", map[string]any{"scheme": "Pudhumai Penn Scheme"})
	expectStatus(t, resp, http.StatusAccepted)
	resp.Body.Close()

	snap = waitForFields(t, c)
	if snap.Stage != workflow.StageForm || len(snap.Fields) != 1 {
		t.Fatalf("unexpected form snapshot %+v", snap)
	}

	resp = c.do(http.MethodPatch, "/v1/workflow/form", map[string]any{
		"name":         "Kavya",
		"gender":       "Female",
		"income":       3000,
		"incomePeriod": "monthly",
		"familySize":   "More than 5",
	})
	expectStatus(t, resp, http.StatusOK)
	snap = decode[workflow.Snapshot](t, resp)
	if snap.Form.FamilySize != 6 || snap.Form.Name != "Kavya" {
		t.Fatalf("form not applied: %+v", snap.Form)
	}

	resp = c.do(http.MethodPatch, "/v1/workflow/form", map[string]any{"email": "not-an-email"})
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	resp = c.do(http.MethodPost, "/v1/workflow/extra", map[string]any{"id": "govtSchool", "value": "yes"})
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()
	resp = c.do(http.MethodPost, "/v1/workflow/extra", map[string]any{"id": "unknown", "value": 1})
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	resp = c.do(http.MethodPost, "/v1/workflow/address/locate", map[string]any{"kind": "perm", "lat": 10.0, "lng": 78.3})
	expectStatus(t, resp, http.StatusOK)
	snap = decode[workflow.Snapshot](t, resp)
	if snap.Address.Perm.Address.Taluk != "Melur" || !snap.Address.Perm.ManualVillage {
		t.Fatalf("locate not applied: %+v", snap.Address.Perm)
	}

	resp = c.do(http.MethodPost, "/v1/workflow/documents/aadharCard", map[string]any{
		"payload": "data:image/png;base64,YWFkaGFyLXNjYW4=",
	})
	expectStatus(t, resp, http.StatusAccepted)
	resp.Body.Close()

	resp = c.do(http.MethodPost, "/v1/workflow/submit", nil)
	expectStatus(t, resp, http.StatusOK)
	snap = decode[workflow.Snapshot](t, resp)
	if snap.Stage != workflow.StageResults || snap.Verdict == nil || !snap.Verdict.IsEligible {
		t.Fatalf("unexpected results snapshot %+v", snap)
	}

	resp = c.do(http.MethodPost, "/v1/workflow/reminder", nil)
	expectStatus(t, resp, http.StatusCreated)
	resp.Body.Close()
	resp = c.do(http.MethodPost, "/v1/workflow/reminder", nil)
	expectStatus(t, resp, http.StatusConflict)
	resp.Body.Close()

	portal := decode[map[string]string](t, c.do(http.MethodPost, "/v1/workflow/portal", nil))
	if portal["url"] != "https://penkalvi.tn.gov.in" {
		t.Fatalf("unexpected portal %v", portal)
	}

	resp = c.do(http.MethodPost, "/v1/workflow/proceed", nil)
	expectStatus(t, resp, http.StatusCreated)
	snap = decode[workflow.Snapshot](t, resp)
	if snap.Stage != workflow.StageSuccess {
		t.Fatalf("expected success, got %s", snap.Stage)
	}
	if !regexp.MustCompile(`^TN-ENQ-[A-Z0-9]{6}$`).MatchString(snap.RefNumber) {
		t.Fatalf("unexpected reference %q", snap.RefNumber)
	}

	apps := decode[struct {
		Items []profile.Application `json:"items"`
	}](t, c.get("/v1/applications", nil))
	if len(apps.Items) != 1 || apps.Items[0].RefNumber != snap.RefNumber {
		t.Fatalf("application not recorded: %+v", apps.Items)
	}
	if apps.Items[0].Progress().Current != 1 {
		t.Fatalf("new application should be at step 1, got %d", apps.Items[0].Progress().Current)
	}

	resp = c.do(http.MethodPost, "/v1/workflow/done", nil)
	expectStatus(t, resp, http.StatusOK)
	snap = decode[workflow.Snapshot](t, resp)
	if snap.Stage != workflow.StageSelect || snap.Form.Name != "Kavya" {
		t.Fatalf("done should keep form data: %+v", snap)
	}
}

func TestWorkflowSubmitFailureIsRetryable(t *testing.T) {
	svc := stubAdvisory()
	const secret = "SECRET-KEY-123"
	svc.EvaluateFn = func(context.Context, advisory.EvaluationRequest) (advisory.Verdict, error) {
		return advisory.Verdict{}, fmt.Errorf("%w: evaluate: Post \"http://127.0.0.1:1/generate?key=%s\": connection refused",
			advisory.ErrUnavailable, secret)
	}
	c := newTestAPI(t, svc)
	c.login(citizen)

	resp := c.do(http.MethodPost, "/v1/workflow/select", map[string]any{"scheme": "Magalir Urimai Thogai"})
	expectStatus(t, resp, http.StatusAccepted)
	resp.Body.Close()
	waitForFields(t, c)

	resp = c.do(http.MethodPost, "/v1/workflow/submit", nil)
	expectStatus(t, resp, http.StatusBadGateway)
	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if strings.Contains(string(raw), secret) {
		t.Fatalf("upstream error detail leaked to the client: %s", raw)
	}
	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !body.Retryable || body.Error != "advisory service unavailable" {
		t.Fatalf("expected retryable error, got %+v", body)
	}
	snap := decode[workflow.Snapshot](t, c.get("/v1/workflow", nil))
	if snap.Stage != workflow.StageForm {
		t.Fatalf("failed submit must stay in form, got %s", snap.Stage)
	}
}

func TestWorkflowSectorSearch(t *testing.T) {
	svc := stubAdvisory()
	c := newTestAPI(t, svc)
	c.login(citizen)

	resp := c.do(http.MethodPost, "/v1/workflow/search", map[string]any{"sector": "agriculture"})
	expectStatus(t, resp, http.StatusOK)
	snap := decode[workflow.Snapshot](t, resp)
	if len(snap.Schemes) != 1 || snap.Schemes[0].Category != "Agriculture" {
		t.Fatalf("unexpected schemes %+v", snap.Schemes)
	}

	resp = c.do(http.MethodPost, "/v1/workflow/search", map[string]any{"sector": "space"})
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()
}

func TestProfileEndpoints(t *testing.T) {
	c := newTestAPI(t, stubAdvisory())
	c.login(citizen)

	resp := c.do(http.MethodPost, "/v1/reminders", map[string]any{"schemeName": "TN Free Laptop Scheme"})
	expectStatus(t, resp, http.StatusCreated)
	rem := decode[profile.Reminder](t, resp)
	if len(rem.DocumentsNeeded) != 3 {
		t.Fatalf("explorer reminder should get default documents, got %v", rem.DocumentsNeeded)
	}

	p := profile.Seed(citizen)
	p.Name = "Selvi"
	p.Phone = "+91 98765 43210"
	p.PermAddress = profile.Address{DoorNo: "4", District: "Madurai", Taluk: "Melur", Pincode: "625106"}
	p.IsSameAddress = true
	resp = c.do(http.MethodPut, "/v1/profile", p)
	expectStatus(t, resp, http.StatusOK)
	saved := decode[profile.Profile](t, resp)
	if saved.Phone != "9198765432" || saved.TempAddress != saved.PermAddress {
		t.Fatalf("profile not normalised: %+v", saved)
	}
	if len(saved.Reminders) != 1 {
		t.Fatalf("profile save must keep reminders, got %d", len(saved.Reminders))
	}

	p.PermAddress.Pincode = "12"
	resp = c.do(http.MethodPut, "/v1/profile", p)
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	resp = c.do(http.MethodPost, "/v1/profile/address", map[string]any{"kind": "temp", "field": "doorNo", "value": "9"})
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	resp = c.do(http.MethodPost, "/v1/profile/address", map[string]any{"same": false, "kind": "temp", "field": "doorNo", "value": "9"})
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()
	stored, _ := c.store.Load(context.Background(), citizen)
	if stored.IsSameAddress || stored.TempAddress.DoorNo != "9" || stored.PermAddress.DoorNo != "4" {
		t.Fatalf("address edit not persisted: %+v %+v", stored.PermAddress, stored.TempAddress)
	}

	resp = c.do(http.MethodPost, "/v1/profile/address/locate", map[string]any{"kind": "temp", "lat": 10.0, "lng": 78.3})
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()
	stored, _ = c.store.Load(context.Background(), citizen)
	if stored.TempAddress.Village != "Kottakudi Pudur" {
		t.Fatalf("located village not stored: %+v", stored.TempAddress)
	}

	resp = c.do(http.MethodPost, "/v1/profile/documents/incomeCert", map[string]any{"payload": "data:image/png;base64,aW5jb21l"})
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()
	resp = c.do(http.MethodPost, "/v1/profile/documents/passport", map[string]any{"payload": "data:image/png;base64,aW5jb21l"})
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()
	resp = c.do(http.MethodPost, "/v1/profile/documents/rationCard", map[string]any{"payload": "data:image/png;base64,!!"})
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	ov := decode[dashboard.Overview](t, c.get("/v1/dashboard", nil))
	if ov.DisplayName != "Selvi" || len(ov.Reminders) != 1 {
		t.Fatalf("unexpected dashboard %+v", ov)
	}

	resp = c.do(http.MethodDelete, "/v1/profile/documents/incomeCert", nil)
	expectStatus(t, resp, http.StatusNoContent)
	resp.Body.Close()

	resp = c.do(http.MethodDelete, "/v1/reminders/"+rem.ID, nil)
	expectStatus(t, resp, http.StatusNoContent)
	resp.Body.Close()
	resp = c.do(http.MethodDelete, "/v1/reminders/"+rem.ID, nil)
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}

func TestGrievanceEndpoints(t *testing.T) {
	c := newTestAPI(t, stubAdvisory())
	c.login(citizen)

	const desc = "My patta transfer has been pending for six months."
	resp := c.do(http.MethodPost, "/v1/grievances", map[string]any{"description": desc})
	expectStatus(t, resp, http.StatusConflict)
	resp.Body.Close()

	draft := decode[grievance.Draft](t, c.do(http.MethodPost, "/v1/grievances/analyze", map[string]any{"description": desc}))
	if draft.Analysis.Department != "Revenue" || draft.Analysis.Urgency != "High" {
		t.Fatalf("unexpected analysis %+v", draft.Analysis)
	}

	resp = c.do(http.MethodPost, "/v1/grievances", map[string]any{"description": desc})
	expectStatus(t, resp, http.StatusCreated)
	g := decode[grievance.Grievance](t, resp)
	if !regexp.MustCompile(`^GRV-TN-\d{4}-\d{5}$`).MatchString(g.TrackingID) {
		t.Fatalf("unexpected tracking id %q", g.TrackingID)
	}

	got := decode[grievance.Grievance](t, c.get("/v1/grievances/"+g.TrackingID, nil))
	if got.TrackingID != g.TrackingID {
		t.Fatalf("get returned %+v", got)
	}
	list := decode[struct {
		Items []grievance.Grievance `json:"items"`
	}](t, c.get("/v1/grievances", nil))
	if len(list.Items) != 1 {
		t.Fatalf("expected 1 grievance, got %d", len(list.Items))
	}

	c.login("1111111111")
	resp = c.get("/v1/grievances/"+g.TrackingID, nil)
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}

func TestExplorerEndpoints(t *testing.T) {
	svc := stubAdvisory()
	var asked string
	svc.SearchFn = func(_ context.Context, q string) (advisory.SearchResult, error) {
		asked = q
		return advisory.SearchResult{Schemes: []advisory.Scheme{{Name: "Kalaignar Kanavu Illam"}}}, nil
	}
	c := newTestAPI(t, svc)
	c.login(citizen)

	res := decode[advisory.SearchResult](t, c.get("/v1/schemes/search", url.Values{"q": {"housing"}}))
	if len(res.Schemes) != 1 || asked != workflow.SearchQuery("housing") {
		t.Fatalf("unexpected search %q %+v", asked, res)
	}
	resp := c.get("/v1/schemes/search", nil)
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	reply := decode[map[string]string](t, c.do(http.MethodPost, "/v1/chat", map[string]any{"message": "I am a farmer"}))
	if reply["reply"] == "" {
		t.Fatal("empty chat reply")
	}

	resp = c.get("/v1/centers", url.Values{"lat": {"200"}, "lng": {"78"}})
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()
	centers := decode[advisory.CentersResult](t, c.get("/v1/centers", url.Values{"lat": {"9.9"}, "lng": {"78.1"}}))
	if centers.Text == "" {
		t.Fatal("empty centre directory")
	}
}

func TestAdvisoryOutageMapsToBadGateway(t *testing.T) {
	c := newTestAPI(t, advisory.Func{})
	c.login(citizen)

	resp := c.do(http.MethodPost, "/v1/chat", map[string]any{"message": "hello"})
	expectStatus(t, resp, http.StatusBadGateway)
	if body := decode[errorBody](t, resp); !body.Retryable {
		t.Fatalf("expected retryable, got %+v", body)
	}
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	c := newTestAPI(t, stubAdvisory())
	resp := c.do(http.MethodPost, "/v1/session", map[string]any{"identifier": citizen, "otp": "1234"})
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()
}

func TestNotificationStream(t *testing.T) {
	c := newTestAPI(t, stubAdvisory())
	c.login(citizen)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/v1/notifications/stream?"+url.Values{"access_token": {c.token}}.Encode(), nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	first, err := reader.ReadString('\n')
	if err != nil || !strings.HasPrefix(first, ": stream started") {
		t.Fatalf("unexpected preamble %q: %v", first, err)
	}
	for c.hub.Subscribers() == 0 {
		time.Sleep(time.Millisecond)
	}

	// Events for other sessions stay private.
	_ = c.hub.Publish(ctx, notify.RenewalDue("1111111111", "Income Certificate"))
	_ = c.hub.Publish(ctx, notify.RenewalDue(citizen, "Income Certificate"))

	var data string
	for data == "" {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		if rest, ok := strings.CutPrefix(line, "data: "); ok {
			data = strings.TrimSpace(rest)
		}
	}
	var evt notify.Event
	if err := json.Unmarshal([]byte(data), &evt); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if evt.Session != citizen || evt.Headline != "Document renewal due" {
		t.Fatalf("unexpected event %+v", evt)
	}
}
