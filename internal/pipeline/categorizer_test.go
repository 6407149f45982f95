package pipeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/alanyoungcy/polysift/internal/domain"
)

// analyzedGroup builds a valid group whose impact flags follow impacts,
// indexed in factor document order.
func analyzedGroup(ticker string, impacts [4]bool) domain.AnalyzedMarketGroup {
	block := domain.AnalysisBlock{
		EconomicIndicators:        domain.FactorAssessment{Impact: impacts[0], Relevance: 5, Reasoning: "a"},
		GeopoliticalEvents:        domain.FactorAssessment{Impact: impacts[1], Relevance: 5, Reasoning: "b"},
		RegulatoryChanges:         domain.FactorAssessment{Impact: impacts[2], Relevance: 5, Reasoning: "c"},
		TechnologicalDevelopments: domain.FactorAssessment{Impact: impacts[3], Relevance: 5, Reasoning: "d"},
	}
	return domain.AnalyzedMarketGroup{
		Metadata: domain.GroupMetadata{Ticker: ticker, Volume: 100},
		Markets: []domain.AnalyzedMarket{
			{Question: "q", Probabilities: domain.Probabilities{Yes: 0.4, No: 0.6}},
		},
		Analysis: block,
	}
}

func preAnalyzed(groups ...domain.AnalyzedMarketGroup) *domain.PreAnalyzedDocument {
	if groups == nil {
		groups = []domain.AnalyzedMarketGroup{}
	}
	return &domain.PreAnalyzedDocument{
		Timestamp:    "2025-02-04T01:20:32",
		TotalMarkets: len(groups),
		Markets:      groups,
	}
}

func TestCategorizeBucketsByImpact(t *testing.T) {
	doc := preAnalyzed(
		analyzedGroup("econ-only", [4]bool{true, false, false, false}),
		analyzedGroup("geo-and-tech", [4]bool{false, true, false, true}),
		analyzedGroup("nothing", [4]bool{false, false, false, false}),
	)

	c := NewCategorizer(testLogger())
	out, err := c.Categorize(doc)
	if err != nil {
		t.Fatalf("Categorize() error: %v", err)
	}

	if got := len(out.EconomicIndicators); got != 1 {
		t.Errorf("economic_indicators has %d groups, want 1", got)
	}
	if out.EconomicIndicators[0].Metadata.Ticker != "econ-only" {
		t.Errorf("economic_indicators[0] = %q", out.EconomicIndicators[0].Metadata.Ticker)
	}
	if got := len(out.GeopoliticalEvents); got != 1 {
		t.Errorf("geopolitical_events has %d groups, want 1", got)
	}
	if got := len(out.TechnologicalDevelopments); got != 1 {
		t.Errorf("technological_developments has %d groups, want 1", got)
	}
	if got := len(out.RegulatoryChanges); got != 0 {
		t.Errorf("regulatory_changes has %d groups, want 0", got)
	}
}

func TestCategorizeMembershipIgnoresRelevance(t *testing.T) {
	// High relevance without impact stays out; impact with low relevance
	// goes in.
	high := analyzedGroup("high-no-impact", [4]bool{false, false, false, false})
	high.Analysis.EconomicIndicators.Relevance = 10

	low := analyzedGroup("low-with-impact", [4]bool{true, false, false, false})
	low.Analysis.EconomicIndicators.Relevance = 1

	c := NewCategorizer(testLogger())
	out, err := c.Categorize(preAnalyzed(high, low))
	if err != nil {
		t.Fatalf("Categorize() error: %v", err)
	}

	if len(out.EconomicIndicators) != 1 || out.EconomicIndicators[0].Metadata.Ticker != "low-with-impact" {
		t.Errorf("economic_indicators = %d groups", len(out.EconomicIndicators))
	}
}

func TestCategorizePreservesOrder(t *testing.T) {
	doc := preAnalyzed(
		analyzedGroup("first", [4]bool{true, false, false, false}),
		analyzedGroup("second", [4]bool{true, false, false, false}),
		analyzedGroup("third", [4]bool{true, false, false, false}),
	)

	c := NewCategorizer(testLogger())
	out, err := c.Categorize(doc)
	if err != nil {
		t.Fatalf("Categorize() error: %v", err)
	}

	want := []string{"first", "second", "third"}
	for i, g := range out.EconomicIndicators {
		if g.Metadata.Ticker != want[i] {
			t.Errorf("economic_indicators[%d] = %q, want %q", i, g.Metadata.Ticker, want[i])
		}
	}
}

func TestCategorizeEmptyListsMarshalAsArrays(t *testing.T) {
	c := NewCategorizer(testLogger())
	out, err := c.Categorize(preAnalyzed())
	if err != nil {
		t.Fatalf("Categorize() error: %v", err)
	}

	data, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	if bytes.Contains(data, []byte("null")) {
		t.Errorf("categorized JSON contains null lists: %s", data)
	}
	for _, f := range domain.Factors() {
		if !bytes.Contains(data, []byte(`"`+string(f)+`":[]`)) {
			t.Errorf("factor %s missing or not []: %s", f, data)
		}
	}
}

func TestCategorizeIdempotent(t *testing.T) {
	doc := preAnalyzed(
		analyzedGroup("alpha", [4]bool{true, true, false, false}),
		analyzedGroup("beta", [4]bool{false, false, true, true}),
	)

	c := NewCategorizer(testLogger())
	first, err := c.Categorize(doc)
	if err != nil {
		t.Fatalf("Categorize() error: %v", err)
	}
	second, err := c.Categorize(doc)
	if err != nil {
		t.Fatalf("Categorize() error: %v", err)
	}

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if !bytes.Equal(a, b) {
		t.Error("re-categorizing the same input produced different bytes")
	}
}

func TestCategorizeRejectsInvalidDocument(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.PreAnalyzedDocument)
	}{
		{"count mismatch", func(d *domain.PreAnalyzedDocument) { d.TotalMarkets = 7 }},
		{"bad probability sum", func(d *domain.PreAnalyzedDocument) {
			d.Markets[0].Markets[0].Probabilities.No = 0.7
		}},
		{"relevance out of range", func(d *domain.PreAnalyzedDocument) {
			d.Markets[0].Analysis.RegulatoryChanges.Relevance = 12
		}},
		{"missing ticker", func(d *domain.PreAnalyzedDocument) {
			d.Markets[0].Metadata.Ticker = ""
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := preAnalyzed(analyzedGroup("alpha", [4]bool{true, false, false, false}))
			tt.mutate(doc)

			c := NewCategorizer(testLogger())
			_, err := c.Categorize(doc)
			var ve *domain.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Categorize() error = %v, want ValidationError", err)
			}
		})
	}
}

func TestCategorizeRoundTrip(t *testing.T) {
	doc := preAnalyzed(analyzedGroup("alpha", [4]bool{true, false, true, false}))

	c := NewCategorizer(testLogger())
	out, err := c.Categorize(doc)
	if err != nil {
		t.Fatalf("Categorize() error: %v", err)
	}

	data, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	parsed, err := domain.ParseCategorizedMarkets(data)
	if err != nil {
		t.Fatalf("ParseCategorizedMarkets() error: %v", err)
	}
	again, err := json.Marshal(parsed)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	if !bytes.Equal(data, again) {
		t.Error("categorized document does not round-trip byte-identically")
	}
}
