// Package geo holds the Tamil Nadu district, taluk and village lists used by
// the cascading address selectors.
package geo

import (
	"slices"
	"strings"
)

// Districts returns all districts in display order.
func Districts() []string {
	return slices.Clone(districts)
}

// Taluks returns the taluks of a district, or nil for an unknown district.
func Taluks(district string) []string {
	name, ok := District(district)
	if !ok {
		return nil
	}
	return slices.Clone(taluks[name])
}

// Villages returns the villages of a taluk. Taluks without a surveyed list get
// the generic panchayat list.
func Villages(taluk string) []string {
	for name, list := range villages {
		if strings.EqualFold(name, strings.TrimSpace(taluk)) {
			return slices.Clone(list)
		}
	}
	return slices.Clone(defaultVillages)
}

// District resolves a district name case-insensitively.
func District(name string) (string, bool) {
	return match(districts, name)
}

// Taluk resolves a taluk within district.
func Taluk(district, taluk string) (string, bool) {
	d, ok := District(district)
	if !ok {
		return "", false
	}
	return match(taluks[d], taluk)
}

// Village resolves a village within taluk.
func Village(taluk, village string) (string, bool) {
	return match(Villages(taluk), village)
}

func match(list []string, v string) (string, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", false
	}
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return item, true
		}
	}
	return "", false
}
