package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"thittam.org/internal/notify"
	"thittam.org/internal/profile"
)

func TestSweepPublishesRenewals(t *testing.T) {
	ctx := context.Background()
	store := profile.NewInMemory()
	with := profile.Seed("9876543210")
	with.Documents = map[profile.DocumentType]string{profile.DocIncomeCert: "data:image/png;base64,eA=="}
	without := profile.Seed("a@b.in")
	without.Documents = map[profile.DocumentType]string{profile.DocAadhar: "data:image/png;base64,eA=="}
	if err := store.Save(ctx, "9876543210", with); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(ctx, "a@b.in", without); err != nil {
		t.Fatal(err)
	}

	var got []notify.Event
	pub := notify.PublisherFunc(func(_ context.Context, evt notify.Event) error {
		got = append(got, evt)
		return nil
	})
	s, err := New("", store, pub)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	n, err := s.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 1 || len(got) != 1 || got[0].Session != "9876543210" {
		t.Fatalf("expected one renewal for the phone session, got %d %+v", n, got)
	}
}

func TestSweepContinuesPastPublishFailure(t *testing.T) {
	ctx := context.Background()
	store := profile.NewInMemory()
	for _, id := range []string{"1111111111", "2222222222"} {
		p := profile.Seed(id)
		p.Documents = map[profile.DocumentType]string{profile.DocIncomeCert: "x"}
		if err := store.Save(ctx, id, p); err != nil {
			t.Fatal(err)
		}
	}
	calls := 0
	boom := errors.New("broker down")
	pub := notify.PublisherFunc(func(context.Context, notify.Event) error {
		calls++
		if calls == 1 {
			return boom
		}
		return nil
	})
	s, _ := New(DefaultSpec, store, pub)
	n, err := s.Sweep(ctx)
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined publish error, got %v", err)
	}
	if n != 1 || calls != 2 {
		t.Fatalf("n=%d calls=%d", n, calls)
	}
}

func TestNewRejectsBadSpec(t *testing.T) {
	if _, err := New("every tuesday", profile.NewInMemory(), notify.Discard); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestStartStop(t *testing.T) {
	s, err := New("@every 1h", profile.NewInMemory(), notify.Discard)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Start()
	if next := s.Next(); next.IsZero() || time.Until(next) > time.Hour+time.Minute {
		t.Fatalf("unexpected next run %v", next)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
