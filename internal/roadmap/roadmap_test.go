package roadmap

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func steps(n int) []Step {
	out := make([]Step, n)
	for i := range out {
		out[i] = Step{Label: string(rune('A' + i)), Description: "d"}
	}
	return out
}

func assertMonotonic(t *testing.T, items []Item) {
	t.Helper()
	currents := 0
	phase := 0
	for i, it := range items {
		switch it.Status {
		case Completed:
			if phase != 0 {
				t.Fatalf("completed after pending at %d: %+v", i, items)
			}
		case Current:
			currents++
			if phase != 0 {
				t.Fatalf("current after pending at %d: %+v", i, items)
			}
			phase = 1
		case Upcoming:
			phase = 2
		}
	}
	if currents > 1 {
		t.Fatalf("expected at most one current step, got %d", currents)
	}
}

func TestStatusDerivedFromIndex(t *testing.T) {
	for n := 0; n <= 7; n++ {
		for cur := 0; cur <= n; cur++ {
			rm, err := New(steps(n), cur)
			if err != nil {
				t.Fatalf("New(%d,%d): %v", n, cur, err)
			}
			assertMonotonic(t, rm.Items())
		}
	}
}

func TestDoneAndCurrentStep(t *testing.T) {
	rm, err := New(steps(3), 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	step, ok := rm.CurrentStep()
	if !ok || step != rm.Steps[1] || rm.Done() {
		t.Fatalf("mid-way roadmap: step=%+v ok=%v done=%v", step, ok, rm.Done())
	}

	finished, err := New(steps(3), 3)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := finished.CurrentStep(); ok || !finished.Done() {
		t.Fatalf("finished roadmap: done=%v", finished.Done())
	}
	if (Roadmap{}).Done() {
		t.Fatal("empty roadmap reported done")
	}
}

func TestNewRejectsOutOfRange(t *testing.T) {
	if _, err := New(steps(3), 4); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
	if _, err := New(steps(3), -1); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestEnrollmentShape(t *testing.T) {
	cases := map[string][]Step{
		"empty":  nil,
		"short":  steps(2),
		"exact":  steps(6),
		"long":   steps(9),
		"blanks": {{Label: ""}, {Label: "Only"}},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			rm := Enrollment(in)
			if rm.Len() != EnrollmentLength {
				t.Fatalf("expected %d steps, got %d", EnrollmentLength, rm.Len())
			}
			items := rm.Items()
			if items[0].Status != Completed || items[1].Status != Current {
				t.Fatalf("unexpected head statuses: %+v", items[:2])
			}
			for _, it := range items[2:] {
				if it.Status != Upcoming {
					t.Fatalf("expected upcoming tail, got %+v", items)
				}
			}
			assertMonotonic(t, items)
		})
	}
}

func TestFromItems(t *testing.T) {
	valid := []Item{{Label: "a", Status: Completed}, {Label: "b", Status: Current}, {Label: "c", Status: Upcoming}}
	rm, err := FromItems(valid)
	if err != nil {
		t.Fatalf("FromItems: %v", err)
	}
	if rm.Current != 1 {
		t.Fatalf("expected current 1, got %d", rm.Current)
	}

	bad := [][]Item{
		{{Status: Current}, {Status: Current}},
		{{Status: Upcoming}, {Status: Completed}},
		{{Status: Current}, {Status: Completed}},
	}
	for _, items := range bad {
		if _, err := FromItems(items); !errors.Is(err, ErrNotMonotonic) {
			t.Fatalf("expected ErrNotMonotonic for %+v, got %v", items, err)
		}
	}
	if _, err := FromItems([]Item{{Status: "pending"}}); !errors.Is(err, ErrUnknownStatus) {
		t.Fatalf("expected ErrUnknownStatus, got %v", err)
	}

	noCurrent, err := FromItems([]Item{{Status: Completed}, {Status: Upcoming}})
	if err != nil {
		t.Fatalf("FromItems: %v", err)
	}
	if noCurrent.Current != 1 {
		t.Fatalf("expected first upcoming to become current, got %d", noCurrent.Current)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	rm := Enrollment(steps(4))
	data, err := json.Marshal(rm)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Roadmap
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(rm, back) {
		t.Fatalf("round trip mismatch:\n%+v\n%+v", rm, back)
	}

	var empty Roadmap
	data, _ = json.Marshal(Roadmap{})
	if err := json.Unmarshal(data, &empty); err != nil {
		t.Fatalf("unmarshal empty: %v", err)
	}
	if !reflect.DeepEqual(empty, Roadmap{}) {
		t.Fatalf("expected zero roadmap, got %+v", empty)
	}
}

func TestUnmarshalRejectsInconsistentIndex(t *testing.T) {
	raw := `{"steps":[{"label":"a","status":"completed"},{"label":"b","status":"current"}],"currentStepIndex":0}`
	var rm Roadmap
	if err := json.Unmarshal([]byte(raw), &rm); !errors.Is(err, ErrNotMonotonic) {
		t.Fatalf("expected ErrNotMonotonic, got %v", err)
	}
}

func TestLegacyWeights(t *testing.T) {
	cases := map[LegacyStatus]int{
		StatusApplied:   0,
		StatusVAO:       1,
		StatusRI:        2,
		StatusTahsildar: 3,
		StatusDisbursed: 4,
	}
	for status, want := range cases {
		rm, err := Legacy(status)
		if err != nil {
			t.Fatalf("Legacy(%s): %v", status, err)
		}
		if rm.Current != want || rm.Len() != 5 {
			t.Fatalf("Legacy(%s) = current %d len %d", status, rm.Current, rm.Len())
		}
		assertMonotonic(t, rm.Items())
	}
	if _, err := Legacy(StatusCustom); err == nil {
		t.Fatal("expected error for custom status")
	}
}
