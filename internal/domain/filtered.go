package domain

// FilteredMarket is the projected form of one raw entry. A Filtered
// document is a bare JSON array of these; unlike Raw and Pre-Analyzed
// documents it carries no top-level timestamp or count.
type FilteredMarket struct {
	Ticker        string         `json:"ticker"`
	Slug          string         `json:"slug"`
	StartDate     string         `json:"startDate"`
	EndDate       string         `json:"endDate"`
	Liquidity     float64        `json:"liquidity"`
	Volume        float64        `json:"volume"`
	OpenInterest  float64        `json:"openInterest"`
	Volume24hr    float64        `json:"volume24hr"`
	LiquidityClob float64        `json:"liquidityClob"`
	MarketsDetail []MarketDetail `json:"markets_detail"`
}

// MarketDetail is one flattened nested market. Liquidity is string-typed
// here while the FilteredMarket level is numeric; the source feed makes
// that distinction and it is preserved as-is.
type MarketDetail struct {
	ID                string   `json:"id"`
	Question          string   `json:"question"`
	ConditionID       string   `json:"conditionId"`
	Slug              string   `json:"slug"`
	EndDate           string   `json:"endDate"`
	Description       string   `json:"description"`
	Liquidity         string   `json:"liquidity"`
	Outcomes          []string `json:"outcomes"`
	OutcomePrices     []string `json:"outcomePrices"`
	ClobTokenIDs      []string `json:"clobTokenIds"`
	BestBid           float64  `json:"bestBid"`
	BestAsk           float64  `json:"bestAsk"`
	LastTradePrice    float64  `json:"lastTradePrice"`
	OneDayPriceChange float64  `json:"oneDayPriceChange"`
	Spread            float64  `json:"spread"`
}
