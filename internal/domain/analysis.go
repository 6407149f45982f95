package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Factor is one of the four impact categories the analyzer scores. The set
// is closed; free-form strings are rejected so a typo cannot silently
// create an unrecognized category.
type Factor string

const (
	FactorEconomicIndicators        Factor = "economic_indicators"
	FactorGeopoliticalEvents        Factor = "geopolitical_events"
	FactorRegulatoryChanges         Factor = "regulatory_changes"
	FactorTechnologicalDevelopments Factor = "technological_developments"
)

// Factors returns the closed factor set in document order.
func Factors() []Factor {
	return []Factor{
		FactorEconomicIndicators,
		FactorGeopoliticalEvents,
		FactorRegulatoryChanges,
		FactorTechnologicalDevelopments,
	}
}

func (f Factor) Valid() bool {
	switch f {
	case FactorEconomicIndicators, FactorGeopoliticalEvents,
		FactorRegulatoryChanges, FactorTechnologicalDevelopments:
		return true
	}
	return false
}

const (
	// RelevanceMax bounds the analyzer's relevance scale (it scores 1-10;
	// 0 covers "not applicable").
	RelevanceMax = 10

	// ProbabilitySumTolerance bounds float error when checking that the
	// Yes and No prices of a market form a probability.
	ProbabilitySumTolerance = 1e-6
)

// FactorAssessment is the analyzer's verdict for one factor.
type FactorAssessment struct {
	Impact    bool    `json:"impact"`
	Relevance float64 `json:"relevance"`
	Reasoning string  `json:"reasoning"`
}

// AnalysisBlock maps every factor to its assessment. All four keys are
// required and no others are accepted; decoding enforces that, so a value
// of this type always covers the full factor set.
type AnalysisBlock struct {
	EconomicIndicators        FactorAssessment `json:"economic_indicators"`
	GeopoliticalEvents        FactorAssessment `json:"geopolitical_events"`
	RegulatoryChanges         FactorAssessment `json:"regulatory_changes"`
	TechnologicalDevelopments FactorAssessment `json:"technological_developments"`
}

func (b *AnalysisBlock) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return &SchemaError{Doc: "analysis", Reason: "not a JSON object"}
	}
	for _, f := range Factors() {
		raw, ok := fields[string(f)]
		if !ok {
			return &SchemaError{Doc: "analysis", Reason: fmt.Sprintf("missing factor %q", f)}
		}
		var a FactorAssessment
		if err := json.Unmarshal(raw, &a); err != nil {
			return &ValidationError{Path: "analysis." + string(f), Reason: "factor assessment has wrong shape"}
		}
		b.set(f, a)
	}
	for key := range fields {
		if !Factor(key).Valid() {
			return &SchemaError{Doc: "analysis", Reason: fmt.Sprintf("unknown factor %q", key)}
		}
	}
	return nil
}

// Assessment returns the assessment for f. Unknown factors yield the zero
// assessment.
func (b *AnalysisBlock) Assessment(f Factor) FactorAssessment {
	switch f {
	case FactorEconomicIndicators:
		return b.EconomicIndicators
	case FactorGeopoliticalEvents:
		return b.GeopoliticalEvents
	case FactorRegulatoryChanges:
		return b.RegulatoryChanges
	case FactorTechnologicalDevelopments:
		return b.TechnologicalDevelopments
	}
	return FactorAssessment{}
}

func (b *AnalysisBlock) set(f Factor, a FactorAssessment) {
	switch f {
	case FactorEconomicIndicators:
		b.EconomicIndicators = a
	case FactorGeopoliticalEvents:
		b.GeopoliticalEvents = a
	case FactorRegulatoryChanges:
		b.RegulatoryChanges = a
	case FactorTechnologicalDevelopments:
		b.TechnologicalDevelopments = a
	}
}

// Impacted returns the factors flagged with impact, in document order.
func (b *AnalysisBlock) Impacted() []Factor {
	var out []Factor
	for _, f := range Factors() {
		if b.Assessment(f).Impact {
			out = append(out, f)
		}
	}
	return out
}

// Probabilities holds the Yes/No outcome prices of one market. The pair
// must sum to 1.0 within ProbabilitySumTolerance.
type Probabilities struct {
	Yes float64 `json:"Yes"`
	No  float64 `json:"No"`
}

func (p Probabilities) Sum() float64 { return p.Yes + p.No }

// GroupMetadata identifies the market group a block of analysis refers to.
type GroupMetadata struct {
	Ticker     string  `json:"ticker"`
	StartDate  string  `json:"start_date"`
	EndDate    string  `json:"end_date"`
	Volume     float64 `json:"volume"`
	Volume24hr float64 `json:"volume_24hr"`
}

// AnalyzedMarket is one market inside an analyzed group.
type AnalyzedMarket struct {
	Question      string        `json:"question"`
	Probabilities Probabilities `json:"probabilities"`
	Volume24hr    float64       `json:"volume_24hr"`
}

// AnalyzedMarketGroup pairs a market group with the analyzer's assessment.
type AnalyzedMarketGroup struct {
	Metadata GroupMetadata    `json:"metadata"`
	Markets  []AnalyzedMarket `json:"markets"`
	Analysis AnalysisBlock    `json:"analysis"`
}

func (g *AnalyzedMarketGroup) validate(path string) error {
	if g.Metadata.Ticker == "" {
		return &ValidationError{Path: path + ".metadata.ticker", Reason: "required field missing"}
	}
	if g.Markets == nil {
		return &ValidationError{Path: path + ".markets", Reason: "required field missing"}
	}
	for i, m := range g.Markets {
		mpath := fmt.Sprintf("%s.markets[%d]", path, i)
		if m.Question == "" {
			return &ValidationError{Path: mpath + ".question", Reason: "required field missing"}
		}
		if sum := m.Probabilities.Sum(); math.Abs(sum-1.0) > ProbabilitySumTolerance {
			return &ValidationError{
				Path:   mpath + ".probabilities",
				Reason: fmt.Sprintf("Yes+No sums to %v, want 1.0", sum),
			}
		}
	}
	for _, f := range Factors() {
		a := g.Analysis.Assessment(f)
		if a.Relevance < 0 || a.Relevance > RelevanceMax {
			return &ValidationError{
				Path:   fmt.Sprintf("%s.analysis.%s.relevance", path, f),
				Reason: fmt.Sprintf("%v outside [0, %d]", a.Relevance, RelevanceMax),
			}
		}
	}
	return nil
}

// PreAnalyzedDocument is a point-in-time snapshot of analyzed market
// groups, the categorizer's input.
type PreAnalyzedDocument struct {
	Timestamp    string                `json:"timestamp"`
	TotalMarkets int                   `json:"total_markets"`
	Markets      []AnalyzedMarketGroup `json:"markets"`
}

// Validate enforces the pipeline rules the shape alone does not: timestamp
// and count consistency, non-empty questions, the probability sum rule and
// the relevance bounds.
func (d *PreAnalyzedDocument) Validate() error {
	if d.Timestamp == "" {
		return &ValidationError{Path: "timestamp", Reason: "required field missing"}
	}
	if _, ok := ParseTimestamp(d.Timestamp); !ok {
		return &ValidationError{Path: "timestamp", Reason: "not an ISO-8601 timestamp"}
	}
	if d.Markets == nil {
		return &ValidationError{Path: "markets", Reason: "required field missing"}
	}
	if d.TotalMarkets != len(d.Markets) {
		return &ValidationError{
			Path:   "total_markets",
			Reason: fmt.Sprintf("declares %d groups, document has %d", d.TotalMarkets, len(d.Markets)),
		}
	}
	for i := range d.Markets {
		if err := d.Markets[i].validate(fmt.Sprintf("markets[%d]", i)); err != nil {
			return err
		}
	}
	return nil
}

// CategorizedMarkets buckets analyzed groups by impacted factor. All four
// lists are always present; a group appears under every factor whose
// impact flag is true and nowhere else.
type CategorizedMarkets struct {
	EconomicIndicators        []AnalyzedMarketGroup `json:"economic_indicators"`
	GeopoliticalEvents        []AnalyzedMarketGroup `json:"geopolitical_events"`
	RegulatoryChanges         []AnalyzedMarketGroup `json:"regulatory_changes"`
	TechnologicalDevelopments []AnalyzedMarketGroup `json:"technological_developments"`
}

// NewCategorizedMarkets returns a value with all four lists initialized so
// empty categories marshal as [] rather than null.
func NewCategorizedMarkets() *CategorizedMarkets {
	return &CategorizedMarkets{
		EconomicIndicators:        []AnalyzedMarketGroup{},
		GeopoliticalEvents:        []AnalyzedMarketGroup{},
		RegulatoryChanges:         []AnalyzedMarketGroup{},
		TechnologicalDevelopments: []AnalyzedMarketGroup{},
	}
}

// Groups returns the list for f. Unknown factors yield nil.
func (c *CategorizedMarkets) Groups(f Factor) []AnalyzedMarketGroup {
	switch f {
	case FactorEconomicIndicators:
		return c.EconomicIndicators
	case FactorGeopoliticalEvents:
		return c.GeopoliticalEvents
	case FactorRegulatoryChanges:
		return c.RegulatoryChanges
	case FactorTechnologicalDevelopments:
		return c.TechnologicalDevelopments
	}
	return nil
}

// Append adds g to the list for f.
func (c *CategorizedMarkets) Append(f Factor, g AnalyzedMarketGroup) {
	switch f {
	case FactorEconomicIndicators:
		c.EconomicIndicators = append(c.EconomicIndicators, g)
	case FactorGeopoliticalEvents:
		c.GeopoliticalEvents = append(c.GeopoliticalEvents, g)
	case FactorRegulatoryChanges:
		c.RegulatoryChanges = append(c.RegulatoryChanges, g)
	case FactorTechnologicalDevelopments:
		c.TechnologicalDevelopments = append(c.TechnologicalDevelopments, g)
	}
}

func (c CategorizedMarkets) MarshalJSON() ([]byte, error) {
	type alias CategorizedMarkets
	a := alias(c)
	if a.EconomicIndicators == nil {
		a.EconomicIndicators = []AnalyzedMarketGroup{}
	}
	if a.GeopoliticalEvents == nil {
		a.GeopoliticalEvents = []AnalyzedMarketGroup{}
	}
	if a.RegulatoryChanges == nil {
		a.RegulatoryChanges = []AnalyzedMarketGroup{}
	}
	if a.TechnologicalDevelopments == nil {
		a.TechnologicalDevelopments = []AnalyzedMarketGroup{}
	}
	return json.Marshal(a)
}

func (c *CategorizedMarkets) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return &SchemaError{Doc: "categorized", Reason: "not a JSON object"}
	}
	for _, f := range Factors() {
		if _, ok := fields[string(f)]; !ok {
			return &SchemaError{Doc: "categorized", Reason: fmt.Sprintf("missing factor %q", f)}
		}
	}
	for key := range fields {
		if !Factor(key).Valid() {
			return &SchemaError{Doc: "categorized", Reason: fmt.Sprintf("unknown factor %q", key)}
		}
	}
	type alias CategorizedMarkets
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*c = CategorizedMarkets(a)
	if c.EconomicIndicators == nil {
		c.EconomicIndicators = []AnalyzedMarketGroup{}
	}
	if c.GeopoliticalEvents == nil {
		c.GeopoliticalEvents = []AnalyzedMarketGroup{}
	}
	if c.RegulatoryChanges == nil {
		c.RegulatoryChanges = []AnalyzedMarketGroup{}
	}
	if c.TechnologicalDevelopments == nil {
		c.TechnologicalDevelopments = []AnalyzedMarketGroup{}
	}
	return nil
}

// ParsePreAnalyzedDocument decodes a pre-analyzed snapshot strictly: the
// shape is fixed, so unknown fields are rejected as schema violations.
func ParsePreAnalyzedDocument(data []byte) (*PreAnalyzedDocument, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var doc PreAnalyzedDocument
	if err := dec.Decode(&doc); err != nil {
		return nil, WireError("pre-analyzed", err)
	}
	return &doc, nil
}

// ParseCategorizedMarkets decodes a categorized snapshot strictly.
func ParseCategorizedMarkets(data []byte) (*CategorizedMarkets, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var doc CategorizedMarkets
	if err := dec.Decode(&doc); err != nil {
		return nil, WireError("categorized", err)
	}
	return &doc, nil
}
