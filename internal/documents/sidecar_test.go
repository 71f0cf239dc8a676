package documents

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"thittam.org/internal/advisory"
	"thittam.org/internal/notify"
	"thittam.org/internal/profile"
)

type recorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recorder) Publish(_ context.Context, evt notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestUploadRecordsVerdict(t *testing.T) {
	svc := advisory.Func{DocumentFn: func(_ context.Context, doc advisory.Document) (advisory.DocumentVerdict, error) {
		if doc.MIMEType != "image/png" || string(doc.Data) != "png-bytes" {
			t.Errorf("unexpected document %+v", doc)
		}
		return advisory.DocumentVerdict{IsValid: true, Feedback: "Clear and readable."}, nil
	}}
	s := New(svc, nil, "9876543210")
	defer s.Close()

	payload, err := s.Upload(profile.DocAadhar, "image/png", []byte("png-bytes"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	mime, data, err := DecodePayload(payload)
	if err != nil || mime != "image/png" || string(data) != "png-bytes" {
		t.Fatalf("payload round trip: %q %q %v", mime, data, err)
	}
	s.Wait()

	got, ok := s.Feedback(profile.DocAadhar)
	if !ok || !got.IsValid || got.Feedback != "Clear and readable." {
		t.Fatalf("unexpected feedback %+v %v", got, ok)
	}
	if s.Payloads()[profile.DocAadhar] != payload {
		t.Fatal("payload not stored")
	}
}

func TestClearBeforeCheckResolvesLeavesNoFeedback(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	svc := advisory.Func{DocumentFn: func(ctx context.Context, _ advisory.Document) (advisory.DocumentVerdict, error) {
		close(started)
		<-release
		return advisory.DocumentVerdict{IsValid: false, Feedback: "blurred"}, nil
	}}
	rec := &recorder{}
	s := New(svc, rec, "a@b.in")
	defer s.Close()

	if _, err := s.Upload(profile.DocIncomeCert, "image/jpeg", []byte("jpeg")); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	<-started
	if err := s.Clear(profile.DocIncomeCert); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	close(release)
	s.Wait()

	if _, ok := s.Feedback(profile.DocIncomeCert); ok {
		t.Fatal("stale verdict applied after clear")
	}
	if _, ok := s.Payloads()[profile.DocIncomeCert]; ok {
		t.Fatal("payload should be gone after clear")
	}
	if rec.count() != 0 {
		t.Fatalf("stale rejection must not notify, got %d events", rec.count())
	}
}

func TestReuploadDiscardsEarlierCheck(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	first := make(chan struct{})
	svc := advisory.Func{DocumentFn: func(ctx context.Context, doc advisory.Document) (advisory.DocumentVerdict, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			<-first
			return advisory.DocumentVerdict{IsValid: false, Feedback: "old"}, nil
		}
		return advisory.DocumentVerdict{IsValid: true, Feedback: "new"}, nil
	}}
	s := New(svc, nil, "s")
	defer s.Close()

	_, _ = s.Upload(profile.DocEduCert, "image/jpeg", []byte("one"))
	_, _ = s.Upload(profile.DocEduCert, "image/jpeg", []byte("two"))
	time.Sleep(10 * time.Millisecond)
	close(first)
	s.Wait()

	got, ok := s.Feedback(profile.DocEduCert)
	if !ok || got.Feedback != "new" {
		t.Fatalf("expected latest verdict, got %+v %v", got, ok)
	}
}

func TestCheckFailureBecomesNegativeVerdict(t *testing.T) {
	svc := advisory.Func{DocumentFn: func(context.Context, advisory.Document) (advisory.DocumentVerdict, error) {
		return advisory.DocumentVerdict{}, advisory.ErrUnavailable
	}}
	rec := &recorder{}
	s := New(svc, rec, "a@b.in")
	defer s.Close()

	_, _ = s.Upload(profile.DocIncomeCert, "", []byte("%PDF-1.4"))
	s.Wait()

	got, ok := s.Feedback(profile.DocIncomeCert)
	if !ok || got.IsValid || got.Feedback != FailedFeedback {
		t.Fatalf("unexpected verdict %+v %v", got, ok)
	}
	if rec.count() != 1 {
		t.Fatalf("expected one rejection event, got %d", rec.count())
	}
	evt := rec.events[0]
	if evt.Channel != notify.ChannelEmail || evt.Session != "a@b.in" {
		t.Fatalf("unexpected event %+v", evt)
	}
}

func TestRejectionOnlyAlertsConfiguredTypes(t *testing.T) {
	svc := advisory.Func{DocumentFn: func(context.Context, advisory.Document) (advisory.DocumentVerdict, error) {
		return advisory.DocumentVerdict{IsValid: false, Feedback: "cropped"}, nil
	}}
	rec := &recorder{}
	s := New(svc, rec, "s")
	defer s.Close()

	_, _ = s.Upload(profile.DocRation, "image/jpeg", []byte("x"))
	s.Wait()
	if rec.count() != 0 {
		t.Fatalf("ration card rejection should not notify, got %d", rec.count())
	}
}

func TestSlowSlotDoesNotBlockOthers(t *testing.T) {
	hold := make(chan struct{})
	svc := advisory.Func{DocumentFn: func(ctx context.Context, doc advisory.Document) (advisory.DocumentVerdict, error) {
		if doc.Type == profile.DocAadhar {
			select {
			case <-hold:
			case <-ctx.Done():
				return advisory.DocumentVerdict{}, ctx.Err()
			}
		}
		return advisory.DocumentVerdict{IsValid: true, Feedback: "ok"}, nil
	}}
	s := New(svc, nil, "s")
	defer s.Close()

	_, _ = s.Upload(profile.DocAadhar, "image/jpeg", []byte("a"))
	_, _ = s.Upload(profile.DocRation, "image/jpeg", []byte("r"))

	deadline := time.After(time.Second)
	for {
		if _, ok := s.Feedback(profile.DocRation); ok {
			break
		}
		select {
		case <-deadline:
			t.Fatal("ration card check blocked behind aadhar")
		case <-time.After(5 * time.Millisecond):
		}
	}
	for _, sl := range s.Slots() {
		if sl.Type == profile.DocAadhar && sl.Status != StatusVerifying {
			t.Fatalf("aadhar should still be verifying, got %s", sl.Status)
		}
	}
	close(hold)
}

func TestTimeoutRecordsFailure(t *testing.T) {
	svc := advisory.Func{DocumentFn: func(ctx context.Context, _ advisory.Document) (advisory.DocumentVerdict, error) {
		<-ctx.Done()
		return advisory.DocumentVerdict{}, ctx.Err()
	}}
	s := New(svc, nil, "s", WithTimeout(20*time.Millisecond))
	defer s.Close()

	_, _ = s.Upload(profile.DocCommunityCert, "image/jpeg", []byte("c"))
	s.Wait()
	got, ok := s.Feedback(profile.DocCommunityCert)
	if !ok || got.Feedback != FailedFeedback {
		t.Fatalf("timeout should record failure, got %+v %v", got, ok)
	}
}

func TestUploadValidation(t *testing.T) {
	s := New(advisory.Func{}, nil, "s")
	defer s.Close()

	cases := []struct {
		name string
		typ  profile.DocumentType
		data []byte
		want error
	}{
		{"unknown type", "passport", []byte("x"), ErrUnknownType},
		{"empty", profile.DocAadhar, nil, ErrEmpty},
		{"too large", profile.DocAadhar, make([]byte, MaxBytes+1), ErrTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.Upload(tc.typ, "image/jpeg", tc.data); !errors.Is(err, tc.want) {
				t.Fatalf("want %v, got %v", tc.want, err)
			}
		})
	}
}

func TestLoadSeedsStoredSlots(t *testing.T) {
	s := New(advisory.Func{}, nil, "s")
	defer s.Close()
	s.Load(map[profile.DocumentType]string{profile.DocRation: "data:image/png;base64,eA==", "bogus": "x"})

	slots := s.Slots()
	if len(slots) != len(profile.DocumentTypes) {
		t.Fatalf("expected %d slots, got %d", len(profile.DocumentTypes), len(slots))
	}
	for _, sl := range slots {
		want := StatusEmpty
		if sl.Type == profile.DocRation {
			want = StatusStored
		}
		if sl.Status != want || sl.Feedback != nil {
			t.Fatalf("slot %s: status=%s feedback=%v", sl.Type, sl.Status, sl.Feedback)
		}
	}
}

func TestReplaceDropsPendingChecks(t *testing.T) {
	release := make(chan struct{})
	svc := advisory.Func{DocumentFn: func(ctx context.Context, _ advisory.Document) (advisory.DocumentVerdict, error) {
		<-release
		return advisory.DocumentVerdict{IsValid: true, Feedback: "ok"}, nil
	}}
	s := New(svc, nil, "s")
	defer s.Close()

	if _, err := s.Upload(profile.DocAadhar, "image/png", []byte("x")); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	s.Replace(map[profile.DocumentType]string{profile.DocRation: "data:image/png;base64,eA=="})
	close(release)
	s.Wait()

	if _, ok := s.Feedback(profile.DocAadhar); ok {
		t.Fatal("feedback from before Replace survived")
	}
	payloads := s.Payloads()
	if len(payloads) != 1 || payloads[profile.DocRation] == "" {
		t.Fatalf("unexpected payloads %v", payloads)
	}
}

func TestUploadAfterCloseFails(t *testing.T) {
	s := New(advisory.Func{}, nil, "s")
	s.Close()
	if _, err := s.Upload(profile.DocAadhar, "image/jpeg", []byte("x")); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
