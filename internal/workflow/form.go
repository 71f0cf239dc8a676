package workflow

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"thittam.org/internal/profile"
)

// Household is a family size that accepts a number or the "More than 5"
// choice.
type Household int

func (h *Household) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*h = Household(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("family size: %w", err)
	}
	*h = Household(profile.FamilySize(s))
	return nil
}

// FormPatch carries the static form fields to change. Nil fields are left
// alone.
type FormPatch struct {
	Name             *string                `json:"name,omitempty"`
	Phone            *string                `json:"phone,omitempty"`
	Email            *string                `json:"email,omitempty"`
	DOB              *string                `json:"dob,omitempty"`
	Age              *int                   `json:"age,omitempty"`
	ManualAge        *bool                  `json:"manualAge,omitempty"`
	Aadhar           *string                `json:"aadhar,omitempty"`
	SmartCard        *string                `json:"smartCard,omitempty"`
	Income           *int64                 `json:"income,omitempty"`
	IncomePeriod     *profile.IncomePeriod  `json:"incomePeriod,omitempty"`
	FamilyAssets     *string                `json:"familyAssets,omitempty"`
	Location         *string                `json:"location,omitempty"`
	Category         *string                `json:"category,omitempty"`
	Gender           *string                `json:"gender,omitempty"`
	Occupation       *string                `json:"occupation,omitempty"`
	Education        *string                `json:"education,omitempty"`
	EmploymentStatus *string                `json:"employmentStatus,omitempty"`
	FamilySize       *Household             `json:"familySize,omitempty"`
	IsDisabled       *bool                  `json:"isDisabled,omitempty"`
	PovertyStatus    *profile.PovertyStatus `json:"povertyStatus,omitempty"`
}

func setText(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

// apply writes the patch over p. Age follows the date of birth unless it was
// entered by hand.
func (fp FormPatch) apply(p *profile.Profile, manualAge *bool, now time.Time) {
	setText(&p.Name, fp.Name)
	setText(&p.Email, fp.Email)
	setText(&p.FamilyAssets, fp.FamilyAssets)
	setText(&p.Location, fp.Location)
	setText(&p.Category, fp.Category)
	setText(&p.Gender, fp.Gender)
	setText(&p.Occupation, fp.Occupation)
	setText(&p.Education, fp.Education)
	setText(&p.EmploymentStatus, fp.EmploymentStatus)
	if fp.Phone != nil {
		p.Phone = profile.Digits(*fp.Phone, 10)
	}
	if fp.Aadhar != nil {
		p.Aadhar = profile.Digits(*fp.Aadhar, 12)
	}
	if fp.SmartCard != nil {
		p.SmartCard = profile.Digits(*fp.SmartCard, 12)
	}
	if fp.Income != nil {
		p.Income = max(*fp.Income, 0)
	}
	if fp.IncomePeriod != nil {
		p.IncomePeriod = *fp.IncomePeriod
	}
	if fp.FamilySize != nil {
		p.FamilySize = max(int(*fp.FamilySize), 0)
	}
	if fp.IsDisabled != nil {
		p.IsDisabled = *fp.IsDisabled
	}
	if fp.PovertyStatus != nil {
		p.PovertyStatus = *fp.PovertyStatus
	}

	if fp.ManualAge != nil {
		*manualAge = *fp.ManualAge
	}
	if fp.Age != nil {
		*manualAge = true
		p.Age = max(*fp.Age, 0)
	}
	if fp.DOB != nil {
		p.DOB = strings.TrimSpace(*fp.DOB)
	}
	if !*manualAge && p.DOB != "" {
		p.Age = profile.AgeOn(p.DOB, now)
	}
}
