// Package address implements the cascading district → taluk → village
// sub-form and the linked permanent/temporary pair.
package address

import (
	"errors"
	"fmt"
	"strings"

	"thittam.org/internal/geo"
	"thittam.org/internal/profile"
)

var (
	ErrInvalid         = errors.New("address: invalid edit")
	ErrUnknownDistrict = fmt.Errorf("%w: unknown district", ErrInvalid)
	ErrUnknownTaluk    = fmt.Errorf("%w: taluk not in district list", ErrInvalid)
	ErrUnknownVillage  = fmt.Errorf("%w: village not in taluk list", ErrInvalid)
	ErrNoParent        = fmt.Errorf("%w: parent selection is empty", ErrInvalid)
	ErrUnknownField    = fmt.Errorf("%w: unknown field", ErrInvalid)
	// ErrMirrored is returned for edits to the temporary address while it mirrors
	// the permanent one.
	ErrMirrored = fmt.Errorf("%w: temporary address mirrors permanent address", ErrInvalid)
)

// Field names an editable address field.
type Field string

const (
	DoorNo   Field = "doorNo"
	District Field = "district"
	Taluk    Field = "taluk"
	Village  Field = "village"
	Pincode  Field = "pincode"
)

// Form is one address sub-form. ManualTaluk and ManualVillage switch the
// corresponding field from list selection to free text.
type Form struct {
	Address       profile.Address `json:"address"`
	ManualTaluk   bool            `json:"manualTaluk"`
	ManualVillage bool            `json:"manualVillage"`
}

// FromAddress builds a form for a stored address, entering manual mode for any
// value that is not in the known lists.
func FromAddress(a profile.Address) Form {
	f := Form{Address: a}
	f.detectManual()
	return f
}

func (f *Form) detectManual() {
	a := f.Address
	if a.Taluk != "" {
		if _, ok := geo.Taluk(a.District, a.Taluk); !ok {
			f.ManualTaluk = true
		}
	}
	if a.Village != "" {
		if _, ok := geo.Village(a.Taluk, a.Village); !ok {
			f.ManualVillage = true
		}
	}
}

// Set edits one field. Choosing a district clears taluk and village and leaves
// manual mode; choosing a taluk clears village.
func (f *Form) Set(field Field, value string) error {
	value = strings.TrimSpace(value)
	switch field {
	case DoorNo:
		f.Address.DoorNo = value
	case Pincode:
		f.Address.Pincode = profile.Digits(value, 6)
	case District:
		if value != "" {
			name, ok := geo.District(value)
			if !ok {
				return fmt.Errorf("%w: %q", ErrUnknownDistrict, value)
			}
			value = name
		}
		f.Address.District = value
		f.Address.Taluk = ""
		f.Address.Village = ""
		f.ManualTaluk = false
		f.ManualVillage = false
	case Taluk:
		if value != "" {
			if f.Address.District == "" {
				return ErrNoParent
			}
			if !f.ManualTaluk {
				name, ok := geo.Taluk(f.Address.District, value)
				if !ok {
					return fmt.Errorf("%w: %q", ErrUnknownTaluk, value)
				}
				value = name
			}
		}
		f.Address.Taluk = value
		f.Address.Village = ""
		f.ManualVillage = false
	case Village:
		if value != "" {
			if f.Address.Taluk == "" {
				return ErrNoParent
			}
			if !f.ManualVillage {
				name, ok := geo.Village(f.Address.Taluk, value)
				if !ok {
					return fmt.Errorf("%w: %q", ErrUnknownVillage, value)
				}
				value = name
			}
		}
		f.Address.Village = value
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return nil
}

// SetManual switches taluk or village between list and free-text entry. The
// field is cleared either way; the district is never touched.
func (f *Form) SetManual(field Field, on bool) error {
	switch field {
	case Taluk:
		f.ManualTaluk = on
		f.Address.Taluk = ""
		f.Address.Village = ""
		f.ManualVillage = false
	case Village:
		f.ManualVillage = on
		f.Address.Village = ""
	default:
		return fmt.Errorf("%w: %q has no manual mode", ErrUnknownField, field)
	}
	return nil
}

// ApplyLocation bulk-fills the form from a geocoded address. Names are
// canonicalised when known; a taluk or village missing from the list for its
// parent switches that field to manual entry instead of being dropped.
func (f *Form) ApplyLocation(loc profile.Address) error {
	loc.District = strings.TrimSpace(loc.District)
	loc.Taluk = strings.TrimSpace(loc.Taluk)
	loc.Village = strings.TrimSpace(loc.Village)
	if loc.District == "" || loc.Taluk == "" {
		return fmt.Errorf("%w: location has no district or taluk", ErrInvalid)
	}
	if name, ok := geo.District(loc.District); ok {
		loc.District = name
	}
	f.ManualTaluk = false
	f.ManualVillage = false
	if name, ok := geo.Taluk(loc.District, loc.Taluk); ok {
		loc.Taluk = name
	} else {
		f.ManualTaluk = true
	}
	if loc.Village != "" {
		if name, ok := geo.Village(loc.Taluk, loc.Village); ok {
			loc.Village = name
		} else {
			f.ManualVillage = true
		}
	}
	f.Address.District = loc.District
	f.Address.Taluk = loc.Taluk
	f.Address.Village = loc.Village
	f.Address.Pincode = profile.Digits(loc.Pincode, 6)
	return nil
}

// Options lists the selectable taluks and villages for the current selection.
type Options struct {
	Taluks   []string `json:"taluks"`
	Villages []string `json:"villages"`
}

func (f Form) Options() Options {
	opts := Options{Taluks: []string{}, Villages: []string{}}
	if f.Address.District != "" {
		if t := geo.Taluks(f.Address.District); t != nil {
			opts.Taluks = t
		}
	}
	if f.Address.Taluk != "" {
		opts.Villages = geo.Villages(f.Address.Taluk)
	}
	return opts
}
