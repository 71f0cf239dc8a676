package advisory

import (
	"fmt"
	"sort"
	"strings"

	"thittam.org/internal/profile"
)

// sectors the search prompt asks the model to classify into
var searchSectors = "Women, Education, Agriculture, Housing, Health, Social Security, Labor, Fisheries, Disabled"

func searchPrompt(query string, lang Language) string {
	return fmt.Sprintf(`Find current Tamil Nadu state government welfare schemes relevant to: %s.
Prioritise schemes for vulnerable and low-income families.
Reply with a JSON array only. Each element has:
name (official scheme name), shortSummary (one sentence), description, eligibility (array of key criteria),
benefits, sector (one of %s).
Write the values in %s.`, query, searchSectors, lang.Name())
}

func requirementsPrompt(scheme string, lang Language) string {
	return fmt.Sprintf(`For the Tamil Nadu welfare scheme %q list 3 to 4 questions that decide eligibility
and are not already covered by age, income, gender, education or location.
Prefer questions that reveal genuine need, for example land holding in acres or ownership of a pucca house.
Each item has id (camelCase), label (the question in %s), type (text, number or boolean) and description
(why the detail matters). Write in %s.`, scheme, lang.Name(), lang.Name())
}

func documentPrompt(doc Document, lang Language) string {
	label := doc.Type.Label()
	return fmt.Sprintf(`This image should be a %q.
Check that it is clear and legible, that it is really a %q, and that it was issued in Tamil Nadu where that applies.
Reply as JSON {"isValid": boolean, "feedback": string} with feedback written in %s.`, label, label, lang.Name())
}

func evaluationPrompt(req EvaluationRequest, lang Language) string {
	p := req.Profile
	poverty := string(p.PovertyStatus)
	if poverty == "" {
		poverty = string(profile.PovertyUnknown)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Evaluate this Tamil Nadu resident for the state welfare scheme %q.\n\n", req.Scheme)
	b.WriteString("Citizen profile:\n")
	fmt.Fprintf(&b, "- Name: %s\n", p.Name)
	fmt.Fprintf(&b, "- Phone: +91 %s\n", p.Phone)
	fmt.Fprintf(&b, "- Annual income: ₹%d\n", p.AnnualIncome())
	fmt.Fprintf(&b, "- Poverty status: %s\n", poverty)
	fmt.Fprintf(&b, "- Family members: %s\n", profile.FamilySizeLabel(p.FamilySize))
	fmt.Fprintf(&b, "- Occupation: %s\n", p.Occupation)
	fmt.Fprintf(&b, "- Education: %s\n", p.Education)
	fmt.Fprintf(&b, "- Employment status: %s\n", p.EmploymentStatus)
	fmt.Fprintf(&b, "- Category: %s\n", p.Category)
	if len(req.Extra) > 0 {
		b.WriteString("\nScheme specific answers:\n")
		keys := make([]string, 0, len(req.Extra))
		for k := range req.Extra {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %s\n", k, req.Extra[k].String())
		}
	}
	fmt.Fprintf(&b, `
Decide strictly whether every criterion of %q is met, giving priority to BPL citizens.
Produce an enrollment roadmap of exactly 6 steps from master profile submission to final benefit receipt.
Give the official portal URL for applying, such as https://tnesevai.tn.gov.in.
Reply in %s as a JSON object with isEligible, evaluationReason, potentialBenefits, documentsVerified,
portalUrl and roadmap (array of {label, description}).`, req.Scheme, lang.Name())
	return b.String()
}

func geocodePrompt(lat, lng float64, lang Language) string {
	return fmt.Sprintf(`Convert the coordinates lat %.6f, lng %.6f into a Tamil Nadu administrative address.
Reply as JSON with district and taluk matching official Tamil Nadu names, village (the locality) and pincode
(6 digits). Write in %s.`, lat, lng, lang.Name())
}

func grievancePrompt(description string, lang Language) string {
	return fmt.Sprintf(`Triage this public grievance from a Tamil Nadu citizen: %q.
Assign one department out of Revenue, Housing, Health, Education, Social Welfare, Food & Consumer Protection.
Write a one sentence formal summary and the requested action, and rate urgency as Low, Medium or High.
Reply as JSON in %s.`, description, lang.Name())
}

func chatPrompt(message string, lang Language) string {
	return fmt.Sprintf("Assess this citizen's situation against Tamil Nadu welfare schemes and suggest matches: %s\nReply in %s.", message, lang.Name())
}

func centersPrompt(lat, lng float64, lang Language) string {
	return fmt.Sprintf("List the nearest E-Sevai centres, common service centres and Tahsildar offices to lat %.6f, lng %.6f in Tamil Nadu with their approximate locations. Reply in %s.", lat, lng, lang.Name())
}
