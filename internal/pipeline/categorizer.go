package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/polysift/internal/domain"
)

// Categorizer buckets pre-analyzed market groups under the factors whose
// assessment marked them impacted. A group may land in several buckets or
// in none; source order is preserved within each bucket.
type Categorizer struct {
	logger *slog.Logger
}

// NewCategorizer creates a new Categorizer.
func NewCategorizer(logger *slog.Logger) *Categorizer {
	return &Categorizer{logger: logger}
}

// Categorize validates doc and returns the categorized view. All four
// factor lists are present in the output even when empty, and re-running on
// the same input yields byte-identical JSON.
func (c *Categorizer) Categorize(doc *domain.PreAnalyzedDocument) (*domain.CategorizedMarkets, error) {
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("categorizing: %w", err)
	}

	out := domain.NewCategorizedMarkets()
	for _, group := range doc.Markets {
		for _, factor := range group.Analysis.Impacted() {
			out.Append(factor, group)
		}
	}

	c.logger.Debug("categorized market groups",
		slog.Int("groups", len(doc.Markets)),
		slog.Int("economic", len(out.Groups(domain.FactorEconomicIndicators))),
		slog.Int("geopolitical", len(out.Groups(domain.FactorGeopoliticalEvents))),
		slog.Int("regulatory", len(out.Groups(domain.FactorRegulatoryChanges))),
		slog.Int("technological", len(out.Groups(domain.FactorTechnologicalDevelopments))),
	)
	return out, nil
}
