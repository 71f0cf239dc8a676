package address

import (
	"fmt"

	"thittam.org/internal/profile"
)

// Kind selects one address of a Pair.
type Kind string

const (
	Permanent Kind = "perm"
	Temporary Kind = "temp"
)

// Pair links the permanent and temporary address. While Same is set the
// temporary form is a structural copy of the permanent one after every edit.
type Pair struct {
	Perm Form `json:"perm"`
	Temp Form `json:"temp"`
	Same bool `json:"isSameAddress"`
}

func NewPair(perm, temp profile.Address, same bool) Pair {
	p := Pair{Perm: FromAddress(perm), Temp: FromAddress(temp), Same: same}
	p.sync()
	return p
}

func (p *Pair) sync() {
	if p.Same {
		p.Temp = p.Perm
	}
}

func (p *Pair) form(kind Kind) (*Form, error) {
	switch kind {
	case Permanent:
		return &p.Perm, nil
	case Temporary:
		if p.Same {
			return nil, ErrMirrored
		}
		return &p.Temp, nil
	}
	return nil, fmt.Errorf("%w: address kind %q", ErrUnknownField, kind)
}

func (p *Pair) Set(kind Kind, field Field, value string) error {
	f, err := p.form(kind)
	if err != nil {
		return err
	}
	if err := f.Set(field, value); err != nil {
		return err
	}
	p.sync()
	return nil
}

func (p *Pair) SetManual(kind Kind, field Field, on bool) error {
	f, err := p.form(kind)
	if err != nil {
		return err
	}
	if err := f.SetManual(field, on); err != nil {
		return err
	}
	p.sync()
	return nil
}

func (p *Pair) ApplyLocation(kind Kind, loc profile.Address) error {
	f, err := p.form(kind)
	if err != nil {
		return err
	}
	if err := f.ApplyLocation(loc); err != nil {
		return err
	}
	p.sync()
	return nil
}

// SetSame toggles mirroring. Turning it on copies the permanent address over
// the temporary one; turning it off keeps the last copy for further editing.
func (p *Pair) SetSame(on bool) {
	p.Same = on
	p.sync()
}

// Addresses returns the values to persist on the profile.
func (p Pair) Addresses() (perm, temp profile.Address) {
	return p.Perm.Address, p.Temp.Address
}

// ApplyTo writes the pair into pr.
func (p Pair) ApplyTo(pr *profile.Profile) {
	pr.PermAddress, pr.TempAddress = p.Addresses()
	pr.IsSameAddress = p.Same
}
