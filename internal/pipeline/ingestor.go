// Package pipeline implements the snapshot transformation stages: ingest,
// screen, filter, decode and categorize. Every stage is a pure function of
// its input document; the Orchestrator wires them to the snapshot store and
// runs independent inputs concurrently.
package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/polysift/internal/domain"
)

// Ingestor decodes raw market documents and rejects malformed ones before
// they reach the downstream stages.
type Ingestor struct {
	logger *slog.Logger
}

// NewIngestor creates a new Ingestor.
func NewIngestor(logger *slog.Logger) *Ingestor {
	return &Ingestor{logger: logger}
}

// Ingest parses data as a raw market document and validates it. Decode and
// validation failures come back as domain.ValidationError or
// domain.SchemaError; the input is never partially accepted.
func (i *Ingestor) Ingest(data []byte) (*domain.RawDocument, error) {
	doc, err := domain.ParseRawDocument(data)
	if err != nil {
		return nil, fmt.Errorf("ingesting raw document: %w", err)
	}

	i.logger.Debug("ingested raw document",
		slog.String("timestamp", doc.Timestamp),
		slog.Int("markets", len(doc.Markets)),
	)
	return doc, nil
}
