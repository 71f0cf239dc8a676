package workflow

import (
	"thittam.org/internal/address"
	"thittam.org/internal/advisory"
	"thittam.org/internal/documents"
	"thittam.org/internal/profile"
)

// Snapshot is a point-in-time copy of a workflow for display.
type Snapshot struct {
	Stage          Stage                       `json:"stage"`
	Scheme         string                      `json:"scheme,omitempty"`
	Schemes        []SchemeCard                `json:"schemes,omitempty"`
	Sources        []advisory.Source           `json:"sources,omitempty"`
	Fields         []advisory.RequirementField `json:"fields"`
	FetchingFields bool                        `json:"fetchingFields"`
	Extra          map[string]advisory.Value   `json:"extra"`
	Form           profile.Profile             `json:"form"`
	ManualAge      bool                        `json:"manualAge"`
	Address        address.Pair                `json:"address"`
	AddressOptions AddressOptions              `json:"addressOptions"`
	Documents      []documents.Slot            `json:"documents"`
	Verdict        *advisory.Verdict           `json:"verdict,omitempty"`
	Reminded       bool                        `json:"reminded"`
	RefNumber      string                      `json:"refNumber,omitempty"`
	Application    *profile.Application        `json:"application,omitempty"`
}

// AddressOptions lists the selectable values for both forms.
type AddressOptions struct {
	Perm address.Options `json:"perm"`
	Temp address.Options `json:"temp"`
}

func (w *Workflow) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := Snapshot{
		Stage:          w.stage,
		Scheme:         w.scheme,
		Fields:         append([]advisory.RequirementField{}, w.fields...),
		FetchingFields: w.fetching,
		Extra:          make(map[string]advisory.Value, len(w.extra)),
		Form:           w.form,
		ManualAge:      w.manualAge,
		Address:        w.addr,
		AddressOptions: AddressOptions{Perm: w.addr.Perm.Options(), Temp: w.addr.Temp.Options()},
		Documents:      w.docs.Slots(),
		Reminded:       w.reminded,
		RefNumber:      w.refNumber,
	}
	if w.stage == StageSelect {
		s.Schemes = append([]SchemeCard(nil), w.schemes...)
		s.Sources = append([]advisory.Source(nil), w.sources...)
	}
	for k, v := range w.extra {
		s.Extra[k] = v
	}
	if w.verdict != nil {
		v := *w.verdict
		s.Verdict = &v
	}
	if w.application != nil {
		a := *w.application
		s.Application = &a
	}
	return s
}
