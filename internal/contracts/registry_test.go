package contracts

import (
	"reflect"
	"strings"
	"testing"
)

func TestLookupIsCaseInsensitive(t *testing.T) {
	for _, in := range []string{"nda", "NDA", " Nda "} {
		tpl, ok := Default.Lookup(in)
		if !ok {
			t.Fatalf("lookup %q failed", in)
		}
		if !strings.Contains(tpl, "Non-Disclosure Agreement") || !strings.Contains(tpl, "[Party 1 Name]") {
			t.Fatalf("unexpected nda template for %q", in)
		}
	}
}

func TestLookupRentalAgreementSpellings(t *testing.T) {
	for _, in := range []string{"rental_agreement", "Rental Agreement", "rental-agreement"} {
		tpl, ok := Default.Lookup(in)
		if !ok {
			t.Fatalf("lookup %q failed", in)
		}
		if !strings.Contains(tpl, "Residential Rental Agreement") || !strings.Contains(tpl, "[Landlord Name]") {
			t.Fatalf("unexpected rental template for %q", in)
		}
	}
}

func TestLookupUnknown(t *testing.T) {
	if _, ok := Default.Lookup("unknown_type"); ok {
		t.Fatalf("unknown type should not resolve")
	}
	if _, ok := Default.Lookup(""); ok {
		t.Fatalf("empty type should not resolve")
	}
}

func TestExtraTemplates(t *testing.T) {
	r := NewRegistry(map[string]string{"Service Agreement": "Generate a service agreement.", "empty": "  "})
	tpl, ok := r.Lookup("service_agreement")
	if !ok || tpl != "Generate a service agreement." {
		t.Fatalf("extra template not registered: %q %v", tpl, ok)
	}
	if _, ok := r.Lookup("empty"); ok {
		t.Fatalf("blank template should be skipped")
	}
	want := []string{"nda", "rental_agreement", "service_agreement"}
	if got := r.Types(); !reflect.DeepEqual(got, want) {
		t.Fatalf("types = %v, want %v", got, want)
	}
}

func TestDisplayName(t *testing.T) {
	cases := map[string]string{
		"nda":              "Nda",
		"NDA":              "Nda",
		"rental_agreement": "Rental Agreement",
		"rental agreement": "Rental Agreement",
		"rental-agreement": "Rental-Agreement",
		"non-compete_2nd":  "Non-Compete 2Nd",
		"o'brien lease":    "O'Brien Lease",
		"":                 "",
	}
	for in, want := range cases {
		if got := DisplayName(in); got != want {
			t.Fatalf("DisplayName(%q) = %q, want %q", in, got, want)
		}
	}
}
