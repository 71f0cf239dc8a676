package profile

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field shapes (phone, national id, pincode, enums).
func Validate(p Profile) error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalid, err.Error())
	}
	for d := range p.Documents {
		if !d.Valid() {
			return fmt.Errorf("%w: unknown document type %q", ErrInvalid, d)
		}
	}
	return nil
}

// AnnualIncome normalises the declared income to a yearly amount.
func (p Profile) AnnualIncome() int64 {
	if p.IncomePeriod == Monthly {
		return p.Income * 12
	}
	return p.Income
}

// Digits keeps the decimal digits of s, truncated to max when max > 0.
func Digits(s string, max int) string {
	var b strings.Builder
	for _, r := range s {
		if r < '0' || r > '9' {
			continue
		}
		if max > 0 && b.Len() >= max {
			break
		}
		b.WriteRune(r)
	}
	return b.String()
}

// FamilySize parses a household size. "More than 5" counts as 6.
func FamilySize(raw string) int {
	raw = strings.TrimSpace(raw)
	if strings.EqualFold(raw, "More than 5") {
		return 6
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// FamilySizeLabel is the inverse of FamilySize for the advisory prompt.
func FamilySizeLabel(n int) string {
	if n >= 6 {
		return "More than 5"
	}
	return strconv.Itoa(n)
}

// AgeOn returns the completed years between dob (YYYY-MM-DD) and now. An
// unparseable or future date yields 0.
func AgeOn(dob string, now time.Time) int {
	born, err := time.Parse(time.DateOnly, strings.TrimSpace(dob))
	if err != nil {
		return 0
	}
	age := now.Year() - born.Year()
	if now.Month() < born.Month() || (now.Month() == born.Month() && now.Day() < born.Day()) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}

// Normalize applies the input rules of the profile form: digit-only phone and
// card numbers, trimmed text, derived age and mirrored temporary address.
func Normalize(p Profile, now time.Time) Profile {
	p.Name = strings.TrimSpace(p.Name)
	p.Email = strings.TrimSpace(p.Email)
	p.Phone = Digits(p.Phone, 10)
	p.Aadhar = Digits(p.Aadhar, 12)
	p.SmartCard = Digits(p.SmartCard, 12)
	p.PermAddress.Pincode = Digits(p.PermAddress.Pincode, 6)
	p.TempAddress.Pincode = Digits(p.TempAddress.Pincode, 6)
	if p.DOB != "" {
		p.Age = AgeOn(p.DOB, now)
	}
	if p.IsSameAddress {
		p.TempAddress = p.PermAddress
	}
	if p.PovertyStatus == "" {
		p.PovertyStatus = PovertyUnknown
	}
	if p.IncomePeriod == "" {
		p.IncomePeriod = Annual
	}
	return p
}

// IsPhoneIdentifier reports whether id looks like a 10-digit mobile number.
func IsPhoneIdentifier(id string) bool {
	return len(id) == 10 && Digits(id, 0) == id
}

// IsEmailIdentifier reports whether id looks like an e-mail address.
func IsEmailIdentifier(id string) bool {
	return validate.Var(id, "required,email") == nil
}

// Seed returns an empty profile pre-filled from the session identifier.
func Seed(sessionID string) Profile {
	p := Profile{
		Location:         "Tamil Nadu",
		Category:         "FC",
		Gender:           "Male",
		EmploymentStatus: "Unemployed",
		FamilySize:       1,
		IncomePeriod:     Annual,
		PovertyStatus:    PovertyUnknown,
	}
	switch {
	case IsPhoneIdentifier(sessionID):
		p.Phone = sessionID
	case IsEmailIdentifier(sessionID):
		p.Email = sessionID
	}
	return p
}
