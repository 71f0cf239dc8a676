// Package roadmap models the ordered stages an application moves through.
//
// Step status is never stored. It is derived from a single current index, so a
// roadmap can only ever be completed* current? upcoming*.
package roadmap

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type Status string

const (
	Completed Status = "completed"
	Current   Status = "current"
	Upcoming  Status = "upcoming"
)

// EnrollmentLength is the number of stages shown for a freshly submitted application.
const EnrollmentLength = 6

var (
	ErrIndexOutOfRange = errors.New("roadmap: current index out of range")
	ErrNotMonotonic    = errors.New("roadmap: step statuses are not monotonic")
	ErrUnknownStatus   = errors.New("roadmap: unknown step status")
)

// Step is one stage of a roadmap.
type Step struct {
	Label       string `json:"label"`
	Description string `json:"description"`
}

// Item is a step together with its derived status.
type Item struct {
	Label       string `json:"label"`
	Description string `json:"description"`
	Status      Status `json:"status"`
}

// Roadmap holds the steps and the index of the current one. Current may equal
// len(Steps), meaning every step is completed.
type Roadmap struct {
	Steps   []Step
	Current int
}

// New validates current against steps.
func New(steps []Step, current int) (Roadmap, error) {
	if current < 0 || current > len(steps) {
		return Roadmap{}, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, current, len(steps))
	}
	out := make([]Step, len(steps))
	copy(out, steps)
	return Roadmap{Steps: out, Current: current}, nil
}

func (r Roadmap) Len() int { return len(r.Steps) }

// StatusAt derives the status of step i.
func (r Roadmap) StatusAt(i int) Status {
	switch {
	case i < r.Current:
		return Completed
	case i == r.Current:
		return Current
	default:
		return Upcoming
	}
}

// Done reports whether every step is completed.
func (r Roadmap) Done() bool { return len(r.Steps) > 0 && r.Current >= len(r.Steps) }

// CurrentStep returns the current step, if any.
func (r Roadmap) CurrentStep() (Step, bool) {
	if r.Current < 0 || r.Current >= len(r.Steps) {
		return Step{}, false
	}
	return r.Steps[r.Current], true
}

// Items expands the roadmap into steps with explicit statuses.
func (r Roadmap) Items() []Item {
	items := make([]Item, len(r.Steps))
	for i, s := range r.Steps {
		items[i] = Item{Label: s.Label, Description: s.Description, Status: r.StatusAt(i)}
	}
	return items
}

// FromItems rebuilds a roadmap from explicit statuses. Items must read
// completed* current? upcoming*. A list with pending steps but no current one
// is normalised so that its first upcoming step becomes current.
func FromItems(items []Item) (Roadmap, error) {
	steps := make([]Step, len(items))
	current := len(items)
	phase := 0 // 0 completed, 1 current seen, 2 upcoming
	for i, it := range items {
		steps[i] = Step{Label: it.Label, Description: it.Description}
		switch Status(strings.ToLower(string(it.Status))) {
		case Completed:
			if phase != 0 {
				return Roadmap{}, fmt.Errorf("%w: completed step %d after pending work", ErrNotMonotonic, i)
			}
		case Current:
			if phase != 0 {
				return Roadmap{}, fmt.Errorf("%w: second current step at %d", ErrNotMonotonic, i)
			}
			phase = 1
			current = i
		case Upcoming:
			if phase == 0 {
				current = i
			}
			phase = 2
		default:
			return Roadmap{}, fmt.Errorf("%w: %q", ErrUnknownStatus, it.Status)
		}
	}
	return Roadmap{Steps: steps, Current: current}, nil
}

// Enrollment shapes a roadmap for a freshly submitted application: exactly
// EnrollmentLength steps, the first completed and the second current. Missing
// stages are filled from DefaultEnrollmentSteps.
func Enrollment(steps []Step) Roadmap {
	out := make([]Step, 0, EnrollmentLength)
	for _, s := range steps {
		if len(out) == EnrollmentLength {
			break
		}
		if strings.TrimSpace(s.Label) == "" {
			continue
		}
		out = append(out, s)
	}
	for i := len(out); i < EnrollmentLength; i++ {
		out = append(out, DefaultEnrollmentSteps[i])
	}
	return Roadmap{Steps: out, Current: 1}
}

// DefaultEnrollmentSteps is the generic path of a welfare application.
var DefaultEnrollmentSteps = [EnrollmentLength]Step{
	{Label: "Application Submitted", Description: "Your enquiry has been registered with the department."},
	{Label: "Document Scrutiny", Description: "Submitted documents are being checked by the verifying officer."},
	{Label: "Field Verification", Description: "The Village Administrative Officer confirms the details on the ground."},
	{Label: "Revenue Approval", Description: "The Revenue Inspector and Tahsildar review the recommendation."},
	{Label: "Sanction Order", Description: "The sanctioning authority issues the order."},
	{Label: "Benefit Disbursal", Description: "The benefit is credited or handed over to the beneficiary."},
}

// MarshalJSON emits the expanded items together with the current index.
func (r Roadmap) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireRoadmap{Steps: r.Items(), Current: r.Current})
}

func (r *Roadmap) UnmarshalJSON(data []byte) error {
	var w wireRoadmap
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	rm, err := FromItems(w.Steps)
	if err != nil {
		return err
	}
	if w.Current != rm.Current && len(w.Steps) > 0 {
		return fmt.Errorf("%w: index %d disagrees with statuses", ErrNotMonotonic, w.Current)
	}
	if len(rm.Steps) == 0 {
		rm.Steps = nil
		rm.Current = 0
	}
	*r = rm
	return nil
}

type wireRoadmap struct {
	Steps   []Item `json:"steps"`
	Current int    `json:"currentStepIndex"`
}
