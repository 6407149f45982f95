package pipeline

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/polysift/internal/domain"
)

// DefaultExcludeTerms returns the stock list of sports and event terms the
// screener drops markets for. Matching is case-insensitive substring search
// over each entry's combined text.
func DefaultExcludeTerms() []string {
	return []string{
		"nba", "nfl", "mlb", "nhl", "fifa", "stanley cup",
		"world cup", "super bowl", "football", "basketball",
		"baseball", "hockey", "soccer", "tennis", "olympics",
		"post", "sport", "ufc", "boxing", "mma", "wrestling", "wwe",
		"formula 1", "f1", "racing", "grand prix",
		"french open", "roland garros", "wimbledon",
		"us open", "australian open", "grand slam",
		"ncaa",
	}
}

// ScreenResult carries the three output buckets of a screening pass plus
// counters. Each bucket keeps the input document's timestamp and recomputes
// total_markets, so re-screening the same input reproduces the same bytes.
type ScreenResult struct {
	Kept    *domain.RawDocument
	Sports  *domain.RawDocument
	Invalid *domain.RawDocument
	Stats   domain.ScreenStats
}

// Screener splits a raw document into kept, sports-related and token-invalid
// buckets. Entries failing the token check are removed first; the sports
// term match only runs on entries that passed it.
type Screener struct {
	terms         []string
	requireTokens bool
	logger        *slog.Logger
}

// NewScreener creates a Screener over the given exclusion terms. Terms are
// lowercased once here. requireTokens disables the token-validity check when
// false.
func NewScreener(terms []string, requireTokens bool, logger *slog.Logger) *Screener {
	lowered := make([]string, len(terms))
	for i, t := range terms {
		lowered[i] = strings.ToLower(t)
	}
	return &Screener{terms: lowered, requireTokens: requireTokens, logger: logger}
}

// Screen partitions doc's entries. Input order is preserved within every
// bucket and doc itself is not modified.
func (s *Screener) Screen(doc *domain.RawDocument) *ScreenResult {
	kept := make([]domain.RawMarket, 0, len(doc.Markets))
	var sports, invalid []domain.RawMarket

	for _, m := range doc.Markets {
		if s.requireTokens && !hasValidTokens(m) {
			s.logger.Debug("dropping entry with invalid tokens",
				slog.String("ticker", m.Ticker),
				slog.String("id", m.ID),
			)
			invalid = append(invalid, m)
			continue
		}
		if s.isSportsRelated(m) {
			sports = append(sports, m)
			continue
		}
		kept = append(kept, m)
	}

	stats := domain.ScreenStats{
		Total:          len(doc.Markets),
		Kept:           len(kept),
		SportsRemoved:  len(sports),
		InvalidRemoved: len(invalid),
	}
	if stats.Total > 0 {
		removed := stats.SportsRemoved + stats.InvalidRemoved
		stats.RemovedPercent = float64(removed) / float64(stats.Total) * 100
	}

	s.logger.Info("screened raw document",
		slog.Int("total", stats.Total),
		slog.Int("kept", stats.Kept),
		slog.Int("sports_removed", stats.SportsRemoved),
		slog.Int("invalid_removed", stats.InvalidRemoved),
		slog.String("removed_pct", fmt.Sprintf("%.1f%%", stats.RemovedPercent)),
	)

	return &ScreenResult{
		Kept:    bucketDocument(doc.Timestamp, kept),
		Sports:  bucketDocument(doc.Timestamp, sports),
		Invalid: bucketDocument(doc.Timestamp, invalid),
		Stats:   stats,
	}
}

// isSportsRelated reports whether any exclusion term occurs in the entry's
// combined text: title, description, ticker, tags, and the questions and
// descriptions of its nested markets.
func (s *Screener) isSportsRelated(m domain.RawMarket) bool {
	var b strings.Builder
	b.WriteString(m.Title)
	b.WriteByte(' ')
	b.WriteString(m.Description)
	b.WriteByte(' ')
	b.WriteString(m.Ticker)
	for _, tag := range m.Tags {
		b.WriteByte(' ')
		b.WriteString(tag)
	}
	for _, sub := range m.Markets {
		b.WriteByte(' ')
		b.WriteString(sub.Question)
		b.WriteByte(' ')
		b.WriteString(sub.Description)
	}
	text := strings.ToLower(b.String())

	for _, term := range s.terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}

// hasValidTokens reports whether the entry has at least one nested market
// and every nested market carries a non-empty clobTokenIds list with no
// blank IDs.
func hasValidTokens(m domain.RawMarket) bool {
	if len(m.Markets) == 0 {
		return false
	}
	for _, sub := range m.Markets {
		if len(sub.ClobTokenIDs) == 0 {
			return false
		}
		for _, id := range sub.ClobTokenIDs {
			if strings.TrimSpace(id) == "" {
				return false
			}
		}
	}
	return true
}

func bucketDocument(timestamp string, markets []domain.RawMarket) *domain.RawDocument {
	if markets == nil {
		markets = []domain.RawMarket{}
	}
	return &domain.RawDocument{
		Timestamp:    timestamp,
		TotalMarkets: len(markets),
		Markets:      markets,
	}
}
