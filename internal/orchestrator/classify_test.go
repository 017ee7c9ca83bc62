package orchestrator

import (
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  Request
	}{
		{"plain question", "What is a lease?", ChatRequest{Input: "What is a lease?"}},
		{"prefix mid sentence", "please generate contract: nda: x", ChatRequest{Input: "please generate contract: nda: x"}},
		{"nda command", "generate contract: NDA: parties are A and B", GenerateRequest{Type: "NDA", Details: "parties are A and B"}},
		{"upper case prefix", "GENERATE CONTRACT:rental agreement:  tenant Bob ", GenerateRequest{Type: "rental agreement", Details: "tenant Bob"}},
		{"leading whitespace", "  Generate Contract: nda: x", GenerateRequest{Type: "nda", Details: "x"}},
		{"details keep colons", "generate contract: NDA: Party A: Acme, Party B: Beta", GenerateRequest{Type: "NDA", Details: "Party A: Acme, Party B: Beta"}},
		{"missing details", "generate contract: badtype", MalformedCommand{Input: "generate contract: badtype"}},
		{"bare prefix", "generate contract:", MalformedCommand{Input: "generate contract:"}},
		{"empty details", "generate contract: nda:", GenerateRequest{Type: "nda", Details: ""}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.input); got != tc.want {
				t.Fatalf("Classify(%q) = %#v, want %#v", tc.input, got, tc.want)
			}
		})
	}
}

func TestEnrichWithContext(t *testing.T) {
	if got := EnrichWithContext("", "hi"); got != "hi" {
		t.Fatalf("empty context should pass input through, got %q", got)
	}
	want := "Based on the following document context:\n---\nTerm: 12 months\n---\n\nHow long?"
	if got := EnrichWithContext("Term: 12 months", "How long?"); got != want {
		t.Fatalf("unexpected enrichment %q", got)
	}
}

func TestContractEnvelope(t *testing.T) {
	want := "Here is the draft Rental Agreement:\n\n```\nBODY\n```\n" + Disclaimer
	if got := ContractEnvelope("rental_agreement", "BODY"); got != want {
		t.Fatalf("unexpected envelope %q", got)
	}
}

func TestContractEnvelopeTitlesHyphenatedType(t *testing.T) {
	got := ContractEnvelope("rental-agreement", "BODY")
	if !strings.HasPrefix(got, "Here is the draft Rental-Agreement:\n") {
		t.Fatalf("heading not title cased: %q", got)
	}
}
