package roadmap

import "fmt"

// LegacyStatus is the fixed five-stage progress used by older applications.
type LegacyStatus string

const (
	StatusApplied   LegacyStatus = "applied"
	StatusVAO       LegacyStatus = "vao"
	StatusRI        LegacyStatus = "ri"
	StatusTahsildar LegacyStatus = "tahsildar"
	StatusDisbursed LegacyStatus = "disbursed"
	// StatusCustom marks an application that carries its own roadmap.
	StatusCustom LegacyStatus = "custom"
)

var legacySteps = []Step{
	{Label: "Applied", Description: "Application received."},
	{Label: "VAO Verification", Description: "Village Administrative Officer verification."},
	{Label: "RI Inspection", Description: "Revenue Inspector inspection."},
	{Label: "Tahsildar Approval", Description: "Approval at the taluk office."},
	{Label: "Disbursed", Description: "Benefit disbursed."},
}

// Weight returns the index of the stage a legacy status points at. Unknown
// statuses count as applied.
func (s LegacyStatus) Weight() int {
	switch s {
	case StatusVAO:
		return 1
	case StatusRI:
		return 2
	case StatusTahsildar:
		return 3
	case StatusDisbursed:
		return 4
	default:
		return 0
	}
}

// Valid reports whether s is one of the known statuses.
func (s LegacyStatus) Valid() bool {
	switch s {
	case StatusApplied, StatusVAO, StatusRI, StatusTahsildar, StatusDisbursed, StatusCustom:
		return true
	}
	return false
}

// Legacy maps a fixed status onto the unified representation.
func Legacy(s LegacyStatus) (Roadmap, error) {
	if !s.Valid() || s == StatusCustom {
		return Roadmap{}, fmt.Errorf("roadmap: no fixed stages for status %q", s)
	}
	return New(legacySteps, s.Weight())
}
