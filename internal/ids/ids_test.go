package ids

import (
	"regexp"
	"testing"
	"time"
)

func TestNewIsSortable(t *testing.T) {
	a := New()
	b := New()
	if len(a) != 26 || len(b) != 26 {
		t.Fatalf("unexpected ulid length: %q %q", a, b)
	}
	if a >= b {
		t.Fatalf("expected monotonic ids, got %s then %s", a, b)
	}
}

func TestRefNumberFormat(t *testing.T) {
	re := regexp.MustCompile(`^TN-ENQ-[A-Z0-9]{6}$`)
	for i := 0; i < 200; i++ {
		if ref := RefNumber(); !re.MatchString(ref) {
			t.Fatalf("ref %q does not match %s", ref, re)
		}
	}
}

func TestTrackingIDFormat(t *testing.T) {
	now := time.Date(2026, time.March, 4, 10, 0, 0, 0, time.UTC)
	re := regexp.MustCompile(`^GRV-TN-2026-[1-9][0-9]{4}$`)
	for i := 0; i < 200; i++ {
		if id := TrackingID(now); !re.MatchString(id) {
			t.Fatalf("tracking id %q does not match %s", id, re)
		}
	}
}
