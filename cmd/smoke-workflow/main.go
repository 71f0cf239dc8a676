// Command smoke-workflow drives one enrollment through a running API.
package main

import (
	"fmt"
	"log"
	"os"
	"regexp"
	"time"

	"github.com/go-resty/resty/v2"

	"thittam.org/internal/workflow"
)

var refPattern = regexp.MustCompile(`^TN-ENQ-[A-Z0-9]{6}$`)

type session struct {
	Token string `json:"token"`
}

func main() {
	base := os.Getenv("THITTAM_API_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	identifier := os.Getenv("THITTAM_SMOKE_IDENTIFIER")
	if identifier == "" {
		identifier = "9876543210"
	}

	client := resty.New().
		SetBaseURL(base).
		SetTimeout(90 * time.Second).
		SetHeader("Content-Type", "application/json")

	var sess session
	resp, err := client.R().SetBody(map[string]string{"identifier": identifier}).SetResult(&sess).Post("/v1/session")
	if err != nil || resp.IsError() {
		log.Fatalf("open session: %v %s", err, resp.String())
	}
	client.SetAuthToken(sess.Token)

	scheme := workflow.Presets[0].Name
	resp, err = client.R().SetBody(map[string]string{"scheme": scheme}).Post("/v1/workflow/select")
	if err != nil || resp.IsError() {
		log.Fatalf("select %s: %v %s", scheme, err, resp.String())
	}

	var snap workflow.Snapshot
	deadline := time.Now().Add(60 * time.Second)
	for {
		resp, err = client.R().SetResult(&snap).Get("/v1/workflow")
		if err != nil || resp.IsError() {
			log.Fatalf("poll workflow: %v %s", err, resp.String())
		}
		if !snap.FetchingFields {
			break
		}
		if time.Now().After(deadline) {
			log.Fatalf("requirement fields did not arrive within a minute")
		}
		time.Sleep(500 * time.Millisecond)
	}
	fmt.Printf("form ready for %q with %d extra fields\n", snap.Scheme, len(snap.Fields))

	resp, err = client.R().SetBody(map[string]any{
		"name":          "Smoke Citizen",
		"gender":        "Female",
		"income":        8000,
		"incomePeriod":  "monthly",
		"povertyStatus": "BPL",
	}).Patch("/v1/workflow/form")
	if err != nil || resp.IsError() {
		log.Fatalf("patch form: %v %s", err, resp.String())
	}

	resp, err = client.R().SetResult(&snap).Post("/v1/workflow/submit")
	if err != nil || resp.IsError() {
		log.Fatalf("submit: %v %s", err, resp.String())
	}
	if snap.Verdict == nil {
		log.Fatalf("submit returned no verdict")
	}
	if !snap.Verdict.IsEligible {
		fmt.Printf("✅ workflow smoke test passed: not eligible (%s)\n", snap.Verdict.EvaluationReason)
		return
	}

	resp, err = client.R().SetResult(&snap).Post("/v1/workflow/proceed")
	if err != nil || resp.IsError() {
		log.Fatalf("proceed: %v %s", err, resp.String())
	}
	if snap.Stage != workflow.StageSuccess || !refPattern.MatchString(snap.RefNumber) {
		log.Fatalf("unexpected success state: stage=%s ref=%q", snap.Stage, snap.RefNumber)
	}
	fmt.Printf("✅ workflow smoke test passed: ref=%s\n", snap.RefNumber)
}
