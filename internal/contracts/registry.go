package contracts

import (
	"sort"
	"strings"
	"unicode"
)

const ndaTemplate = `Generate a simple Non-Disclosure Agreement (NDA) between two parties.
Please include standard clauses for:
1. Definition of Confidential Information.
2. Obligations of the Receiving Party.
3. Exclusions from Confidential Information.
4. Term and Termination.
5. Governing Law.

Use placeholders like [Party 1 Name], [Party 2 Name], [Effective Date], [Term Length], [Jurisdiction].
Make the language clear and concise.`

const rentalAgreementTemplate = `Generate a basic Residential Rental Agreement.
Please include standard clauses for:
1. Identification of Landlord and Tenant.
2. Property Description.
3. Lease Term (Start and End Dates).
4. Rent Amount and Due Date.
5. Security Deposit.
6. Use of Premises.
7. Maintenance and Repairs.
8. Governing Law.

Use placeholders like [Landlord Name], [Tenant Name], [Property Address], [Start Date], [End Date], [Rent Amount], [Security Deposit Amount], [Jurisdiction].
Keep the language straightforward for residential use.`

// Registry maps normalised contract type names to their instruction prompts.
// It is read-only after construction.
type Registry struct {
	templates map[string]string
}

// NewRegistry builds a registry holding the built-in templates plus any extras.
// Extra keys are normalised the same way lookups are.
func NewRegistry(extra map[string]string) *Registry {
	r := &Registry{templates: map[string]string{
		"nda":              ndaTemplate,
		"rental_agreement": rentalAgreementTemplate,
	}}
	for k, v := range extra {
		if key := Normalize(k); key != "" && strings.TrimSpace(v) != "" {
			r.templates[key] = v
		}
	}
	return r
}

// Default is the registry with the built-in contract types only.
var Default = NewRegistry(nil)

// Lookup returns the template for the contract type, matching case-insensitively.
func (r *Registry) Lookup(contractType string) (string, bool) {
	tpl, ok := r.templates[Normalize(contractType)]
	return tpl, ok
}

// Types lists the supported keys in sorted order.
func (r *Registry) Types() []string {
	keys := make([]string, 0, len(r.templates))
	for k := range r.templates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Normalize lowercases the type and folds spaces and dashes into underscores.
func Normalize(contractType string) string {
	fields := strings.FieldsFunc(strings.ToLower(contractType), func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '\t'
	})
	return strings.Join(fields, "_")
}

// DisplayName turns a contract type into a heading: underscores become spaces, a
// letter following a non-letter is upper-cased and every other letter lowered
// ("rental-agreement" -> "Rental-Agreement", "nda" -> "Nda").
func DisplayName(contractType string) string {
	var b strings.Builder
	b.Grow(len(contractType))
	prevLetter := false
	for _, r := range strings.ReplaceAll(contractType, "_", " ") {
		if unicode.IsLetter(r) {
			if prevLetter {
				r = unicode.ToLower(r)
			} else {
				r = unicode.ToUpper(r)
			}
			prevLetter = true
		} else {
			prevLetter = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
