package workflow

import "strings"

// SchemeCard is one entry of the selection list.
type SchemeCard struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

// Presets is the catalog shown before any search.
var Presets = []SchemeCard{
	{Name: "Magalir Urimai Thogai", Category: "Financial"},
	{Name: "Pudhumai Penn Scheme", Category: "Education"},
	{Name: "Kalaignar Kanavu Illam", Category: "Housing"},
	{Name: "Chief Minister’s Comprehensive Health Insurance", Category: "Health"},
	{Name: "TN Free Laptop Scheme", Category: "Education"},
}

// Sector is a search shortcut with a canned query.
type Sector struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Query string `json:"query"`
}

var Sectors = []Sector{
	{ID: "magalir", Label: "Women (Magalir)", Query: "Magalir Nalam / Women welfare schemes"},
	{ID: "education", Label: "Education (Kalvi)", Query: "Education and Scholarship schemes"},
	{ID: "agriculture", Label: "Farmers (Ulavar)", Query: "Agriculture and Farmer subsidy schemes"},
	{ID: "housing", Label: "Housing (Veedu)", Query: "Housing and urban development schemes"},
	{ID: "health", Label: "Health (Nalam)", Query: "Healthcare and Health Insurance schemes"},
	{ID: "pension", Label: "Pension", Query: "Social security and Pension schemes"},
	{ID: "workers", Label: "Workers", Query: "Labor welfare and Employment schemes"},
	{ID: "fisheries", Label: "Fisheries", Query: "Fisheries and Coastal welfare schemes"},
	{ID: "disabled", Label: "Differently Abled", Query: "Differently Abled welfare schemes"},
}

// SectorByID looks a shortcut up case-insensitively.
func SectorByID(id string) (Sector, bool) {
	for _, s := range Sectors {
		if strings.EqualFold(s.ID, strings.TrimSpace(id)) {
			return s, true
		}
	}
	return Sector{}, false
}

// DefaultReminderDocuments is stored when the verdict lists no documents.
var DefaultReminderDocuments = []string{"Aadhar Card", "Smart Card"}

// SearchQuery scopes a free-text query to the state.
func SearchQuery(q string) string {
	return strings.TrimSpace(q) + " schemes in Tamil Nadu"
}
