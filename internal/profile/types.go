// Package profile stores one citizen profile per session identifier together
// with the applications and reminders the citizen owns.
package profile

import (
	"errors"
	"time"

	"thittam.org/internal/roadmap"
)

// DocumentType names a document slot.
type DocumentType string

const (
	DocAadhar        DocumentType = "aadharCard"
	DocRation        DocumentType = "rationCard"
	DocIncomeCert    DocumentType = "incomeCert"
	DocEduCert       DocumentType = "eduCert"
	DocCommunityCert DocumentType = "communityCert"
)

// DocumentTypes lists every slot in display order.
var DocumentTypes = []DocumentType{DocAadhar, DocRation, DocIncomeCert, DocEduCert, DocCommunityCert}

func (d DocumentType) Valid() bool {
	switch d {
	case DocAadhar, DocRation, DocIncomeCert, DocEduCert, DocCommunityCert:
		return true
	}
	return false
}

// Label is the human name of the document.
func (d DocumentType) Label() string {
	switch d {
	case DocAadhar:
		return "Aadhar Card"
	case DocRation:
		return "Ration / Smart Card"
	case DocIncomeCert:
		return "Income Certificate"
	case DocEduCert:
		return "Education Certificate"
	case DocCommunityCert:
		return "Community Certificate"
	}
	return string(d)
}

type IncomePeriod string

const (
	Monthly IncomePeriod = "monthly"
	Annual  IncomePeriod = "annual"
)

type PovertyStatus string

const (
	BPL            PovertyStatus = "BPL"
	APL            PovertyStatus = "APL"
	AAY            PovertyStatus = "AAY"
	PovertyUnknown PovertyStatus = "Unknown"
)

// Address is one postal address.
type Address struct {
	DoorNo   string `json:"doorNo"`
	Village  string `json:"village"`
	Taluk    string `json:"taluk"`
	District string `json:"district"`
	Pincode  string `json:"pincode" validate:"omitempty,len=6,numeric"`
}

// Profile is everything known about one citizen session.
type Profile struct {
	Name      string `json:"name"`
	Phone     string `json:"phone" validate:"omitempty,len=10,numeric"`
	Email     string `json:"email" validate:"omitempty,email"`
	DOB       string `json:"dob" validate:"omitempty,datetime=2006-01-02"`
	Age       int    `json:"age" validate:"gte=0,lte=130"`
	Aadhar    string `json:"aadhar" validate:"omitempty,len=12,numeric"`
	SmartCard string `json:"smartCard" validate:"omitempty,max=12,numeric"`

	Income           int64         `json:"income" validate:"gte=0"`
	IncomePeriod     IncomePeriod  `json:"incomePeriod" validate:"omitempty,oneof=monthly annual"`
	FamilyAssets     string        `json:"familyAssets"`
	Location         string        `json:"location"`
	Category         string        `json:"category" validate:"omitempty,oneof=FC BC MBC/DNC SC ST"`
	Gender           string        `json:"gender"`
	Occupation       string        `json:"occupation"`
	Education        string        `json:"education"`
	EmploymentStatus string        `json:"employmentStatus"`
	FamilySize       int           `json:"familySize" validate:"gte=0"`
	IsDisabled       bool          `json:"isDisabled"`
	PovertyStatus    PovertyStatus `json:"povertyStatus" validate:"omitempty,oneof=BPL APL AAY Unknown"`

	PermAddress   Address `json:"permAddress"`
	TempAddress   Address `json:"tempAddress"`
	IsSameAddress bool    `json:"isSameAddress"`

	Documents    map[DocumentType]string `json:"documents"`
	Applications []Application           `json:"activeApplications"`
	Reminders    []Reminder              `json:"reminders"`
}

// HasDocument reports whether a payload is stored for d.
func (p Profile) HasDocument(d DocumentType) bool {
	return p.Documents[d] != ""
}

// Application is one scheme-enrollment attempt.
type Application struct {
	ID          string               `json:"id"`
	SchemeName  string               `json:"schemeName"`
	Status      roadmap.LegacyStatus `json:"status"`
	DateApplied time.Time            `json:"dateApplied"`
	RefNumber   string               `json:"refNumber"`
	Roadmap     roadmap.Roadmap      `json:"roadmap"`
}

// Progress returns the unified roadmap for the application whichever way its
// progress was recorded.
func (a Application) Progress() roadmap.Roadmap {
	if a.Status == roadmap.StatusCustom || a.Roadmap.Len() > 0 {
		return a.Roadmap
	}
	rm, err := roadmap.Legacy(a.Status)
	if err != nil {
		rm, _ = roadmap.Legacy(roadmap.StatusApplied)
	}
	return rm
}

// Reminder is a bookmarked scheme.
type Reminder struct {
	ID              string    `json:"id"`
	SchemeName      string    `json:"schemeName"`
	DocumentsNeeded []string  `json:"documentsNeeded"`
	SavedDate       time.Time `json:"savedDate"`
}

var (
	ErrNotFound         = errors.New("profile: not found")
	ErrInvalid          = errors.New("profile: invalid input")
	ErrReminderNotFound = errors.New("profile: reminder not found")
	ErrEmptySession     = errors.New("profile: session identifier is required")
)
