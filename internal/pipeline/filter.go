package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/polysift/internal/domain"
)

// Filter projects raw market entries into the filtered shape: the nested
// markets flatten into markets_detail, double-encoded arrays come out
// decoded, and the numeric fields become plain numbers. The nested
// liquidity field keeps its original string form.
type Filter struct {
	logger *slog.Logger
}

// NewFilter creates a new Filter.
func NewFilter(logger *slog.Logger) *Filter {
	return &Filter{logger: logger}
}

// Apply maps every entry of doc to a FilteredMarket, in input order. The
// mapping is 1:1 and deterministic; doc is not modified. A missing required
// detail field aborts the whole projection with a domain.ValidationError
// naming the offending path.
func (f *Filter) Apply(doc *domain.RawDocument) ([]domain.FilteredMarket, error) {
	out := make([]domain.FilteredMarket, 0, len(doc.Markets))
	for i, m := range doc.Markets {
		fm, err := projectMarket(m, fmt.Sprintf("markets[%d]", i))
		if err != nil {
			return nil, err
		}
		out = append(out, fm)
	}

	f.logger.Debug("filtered raw document", slog.Int("markets", len(out)))
	return out, nil
}

func projectMarket(m domain.RawMarket, path string) (domain.FilteredMarket, error) {
	fm := domain.FilteredMarket{
		Ticker:        m.Ticker,
		Slug:          m.Slug,
		StartDate:     m.StartDate,
		EndDate:       m.EndDate,
		Liquidity:     m.Liquidity.Float64(),
		Volume:        m.Volume.Float64(),
		OpenInterest:  m.OpenInterest.Float64(),
		Volume24hr:    m.Volume24hr.Float64(),
		LiquidityClob: m.LiquidityClob.Float64(),
		MarketsDetail: make([]domain.MarketDetail, 0, len(m.Markets)),
	}

	for j, sub := range m.Markets {
		detail, err := projectDetail(sub, fmt.Sprintf("%s.markets[%d]", path, j))
		if err != nil {
			return domain.FilteredMarket{}, err
		}
		fm.MarketsDetail = append(fm.MarketsDetail, detail)
	}
	return fm, nil
}

// projectDetail validates and maps one nested market. id, question,
// conditionId, slug and liquidity must be non-empty; outcomes,
// outcomePrices and clobTokenIds must be present. endDate and description
// may be empty and the price statistics default to zero.
func projectDetail(sub domain.RawMarket, path string) (domain.MarketDetail, error) {
	required := []struct {
		field string
		value string
	}{
		{"id", sub.ID},
		{"question", sub.Question},
		{"conditionId", sub.ConditionID},
		{"slug", sub.Slug},
		{"liquidity", sub.Liquidity.String()},
	}
	for _, r := range required {
		if r.value == "" {
			return domain.MarketDetail{}, &domain.ValidationError{
				Path:   path + "." + r.field,
				Reason: "required field is missing",
			}
		}
	}
	for _, r := range []struct {
		field string
		value domain.StringList
	}{
		{"outcomes", sub.Outcomes},
		{"outcomePrices", sub.OutcomePrices},
		{"clobTokenIds", sub.ClobTokenIDs},
	} {
		if r.value == nil {
			return domain.MarketDetail{}, &domain.ValidationError{
				Path:   path + "." + r.field,
				Reason: "required field is missing",
			}
		}
	}

	return domain.MarketDetail{
		ID:                sub.ID,
		Question:          sub.Question,
		ConditionID:       sub.ConditionID,
		Slug:              sub.Slug,
		EndDate:           sub.EndDate,
		Description:       sub.Description,
		Liquidity:         sub.Liquidity.String(),
		Outcomes:          sub.Outcomes,
		OutcomePrices:     sub.OutcomePrices,
		ClobTokenIDs:      sub.ClobTokenIDs,
		BestBid:           sub.BestBid.Float64(),
		BestAsk:           sub.BestAsk.Float64(),
		LastTradePrice:    sub.LastTradePrice.Float64(),
		OneDayPriceChange: sub.OneDayPriceChange.Float64(),
		Spread:            sub.Spread.Float64(),
	}, nil
}
