package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlexBool unmarshals from JSON bool or string ("true"/"false") so feed
// snapshots work whether a flag is sent as bool or string.
type FlexBool bool

func (f *FlexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = FlexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("domain: not a bool value: %s", data)
	}
	*f = FlexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// Number unmarshals from a JSON number or a numeric string, keeping the
// original text so string-typed outputs can carry it verbatim. The zero
// value means the field was absent.
type Number string

func (n *Number) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*n = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		data = []byte(s)
	}
	if _, err := strconv.ParseFloat(string(data), 64); err != nil {
		return fmt.Errorf("domain: not a numeric value: %s", data)
	}
	*n = Number(data)
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if n == "" {
		return []byte("0"), nil
	}
	if _, err := strconv.ParseFloat(string(n), 64); err != nil {
		return json.Marshal(string(n))
	}
	return []byte(n), nil
}

// Float64 returns the numeric value, or 0 for an absent field.
func (n Number) Float64() float64 {
	v, _ := strconv.ParseFloat(string(n), 64)
	return v
}

func (n Number) String() string { return string(n) }

// StringList unmarshals from a JSON array of strings or from a
// string-encoded array ("[\"Yes\",\"No\"]"), the double encoding the
// upstream feed uses for outcomes, prices and CLOB token IDs.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*l = nil
		return nil
	}
	var items []string
	if err := json.Unmarshal(data, &items); err == nil {
		*l = items
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("domain: not a string list: %.64s", data)
	}
	if strings.TrimSpace(s) == "" {
		*l = nil
		return nil
	}
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		return fmt.Errorf("domain: decoding string-encoded list: %w", err)
	}
	*l = items
	return nil
}

// RawDocument is a point-in-time snapshot of the raw market feed.
type RawDocument struct {
	Timestamp    string      `json:"timestamp"`
	TotalMarkets int         `json:"total_markets"`
	Markets      []RawMarket `json:"markets"`
}

// ParseRawDocument decodes and validates a raw feed snapshot. Decoding is
// lenient about fields beyond the documented shape (the upstream feed
// carries many) but strict about the types of the ones it knows.
func ParseRawDocument(data []byte) (*RawDocument, error) {
	var doc RawDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, WireError("raw", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// RawMarket is one feed entry. The shape is self-similar: top-level entries
// group nested entries under "markets", and those nested entries carry the
// per-market detail fields (question, outcomes, prices) the filter projects
// into MarketDetail.
type RawMarket struct {
	ID                  string   `json:"id"`
	Ticker              string   `json:"ticker"`
	Slug                string   `json:"slug"`
	Title               string   `json:"title"`
	Description         string   `json:"description"`
	SeriesSlug          string   `json:"seriesSlug"`
	StartDate           string   `json:"startDate"`
	EndDate             string   `json:"endDate"`
	Liquidity           Number   `json:"liquidity"`
	Volume              Number   `json:"volume"`
	OpenInterest        Number   `json:"openInterest"`
	Volume24hr          Number   `json:"volume24hr"`
	LiquidityClob       Number   `json:"liquidityClob"`
	CYOM                FlexBool `json:"cyom"`
	ShowAllOutcomes     FlexBool `json:"showAllOutcomes"`
	ShowMarketImages    FlexBool `json:"showMarketImages"`
	EnableNegRisk       FlexBool `json:"enableNegRisk"`
	AutomaticallyActive FlexBool `json:"automaticallyActive"`
	NegRiskAugmented    FlexBool `json:"negRiskAugmented"`

	Markets []RawMarket `json:"markets"`
	Series  []RawMarket `json:"series"`
	Tags    []string    `json:"tags"`

	// Detail fields, populated on nested entries only.
	Question          string     `json:"question"`
	ConditionID       string     `json:"conditionId"`
	Outcomes          StringList `json:"outcomes"`
	OutcomePrices     StringList `json:"outcomePrices"`
	ClobTokenIDs      StringList `json:"clobTokenIds"`
	BestBid           Number     `json:"bestBid"`
	BestAsk           Number     `json:"bestAsk"`
	LastTradePrice    Number     `json:"lastTradePrice"`
	OneDayPriceChange Number     `json:"oneDayPriceChange"`
	Spread            Number     `json:"spread"`
}

// Validate checks the document against the raw shape: a parseable
// timestamp, a market count matching the entry list, and per entry the
// identity and collection fields whose absence is detectable after
// decoding. Boolean fields cannot be distinguished from an absent key once
// decoded; their types are enforced during unmarshaling instead.
func (d *RawDocument) Validate() error {
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
			Reason: fmt.Sprintf("declares %d markets, document has %d", d.TotalMarkets, len(d.Markets)),
		}
	}
	for i := range d.Markets {
		if err := d.Markets[i].validate(fmt.Sprintf("markets[%d]", i)); err != nil {
			return err
		}
	}
	return nil
}

func (m *RawMarket) validate(path string) error {
	if m.ID == "" {
		return &ValidationError{Path: path + ".id", Reason: "required field missing"}
	}
	if m.Ticker == "" {
		return &ValidationError{Path: path + ".ticker", Reason: "required field missing"}
	}
	return nil
}
