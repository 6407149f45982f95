package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/polysift/internal/domain"
)

// analyzerOutput mirrors the wire shape the external analyzer writes: the
// input envelope fields plus one result per market group.
type analyzerOutput struct {
	Timestamp    string           `json:"timestamp"`
	TotalMarkets int              `json:"total_markets"`
	Results      []analyzerResult `json:"results"`
}

type analyzerResult struct {
	BatchIndex    int             `json:"batch_index"`
	MarketDetails analyzerEcho    `json:"market_details"`
	Analysis      json.RawMessage `json:"analysis"`
}

// analyzerEcho is the filtered market the analyzer echoes back alongside its
// assessment.
type analyzerEcho struct {
	Ticker        string               `json:"ticker"`
	StartDate     string               `json:"startDate"`
	EndDate       string               `json:"endDate"`
	Volume        domain.Number        `json:"volume"`
	Volume24hr    domain.Number        `json:"volume24hr"`
	MarketsDetail []analyzerEchoDetail `json:"markets_detail"`
}

type analyzerEchoDetail struct {
	Question      string            `json:"question"`
	Outcomes      domain.StringList `json:"outcomes"`
	OutcomePrices domain.StringList `json:"outcomePrices"`
	Volume24hr    domain.Number     `json:"volume24hr"`
}

// chatEnvelope is the completion wrapper some analyzer runs leave around the
// assessment text.
type chatEnvelope struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// fenceRE captures the body of a markdown code fence, with or without a
// language tag.
var fenceRE = regexp.MustCompile("(?s)```(?:json)?\\s*(.+?)\\s*```")

// Decoder converts analyzer output documents into the pre-analyzed shape:
// outcome/price pairs become Yes/No probabilities on the 0-1 scale and the
// assessment text, however wrapped, becomes a strict analysis block.
type Decoder struct {
	logger *slog.Logger
}

// NewDecoder creates a new Decoder.
func NewDecoder(logger *slog.Logger) *Decoder {
	return &Decoder{logger: logger}
}

// Decode parses data as analyzer output and builds the validated
// pre-analyzed document. The output timestamp carries the input's when it
// parses; total_markets is recomputed from the group count.
func (d *Decoder) Decode(data []byte) (*domain.PreAnalyzedDocument, error) {
	var out analyzerOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decoding analyzer output: %w", domain.WireError("analyzer", err))
	}

	doc := &domain.PreAnalyzedDocument{
		Timestamp: out.Timestamp,
		Markets:   make([]domain.AnalyzedMarketGroup, 0, len(out.Results)),
	}
	if _, ok := domain.ParseTimestamp(out.Timestamp); !ok {
		doc.Timestamp = domain.FormatTimestamp(time.Now())
	}

	for i, res := range out.Results {
		group, err := decodeResult(res, fmt.Sprintf("results[%d]", i))
		if err != nil {
			return nil, fmt.Errorf("decoding analyzer output: %w", err)
		}
		doc.Markets = append(doc.Markets, group)
	}
	doc.TotalMarkets = len(doc.Markets)

	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("decoding analyzer output: %w", err)
	}

	d.logger.Debug("decoded analyzer output",
		slog.String("timestamp", doc.Timestamp),
		slog.Int("groups", len(doc.Markets)),
	)
	return doc, nil
}

func decodeResult(res analyzerResult, path string) (domain.AnalyzedMarketGroup, error) {
	group := domain.AnalyzedMarketGroup{
		Metadata: domain.GroupMetadata{
			Ticker:     res.MarketDetails.Ticker,
			StartDate:  res.MarketDetails.StartDate,
			EndDate:    res.MarketDetails.EndDate,
			Volume:     res.MarketDetails.Volume.Float64(),
			Volume24hr: res.MarketDetails.Volume24hr.Float64(),
		},
		Markets: make([]domain.AnalyzedMarket, 0, len(res.MarketDetails.MarketsDetail)),
	}

	for j, detail := range res.MarketDetails.MarketsDetail {
		m, err := decodeProbabilities(detail, fmt.Sprintf("%s.market_details.markets_detail[%d]", path, j))
		if err != nil {
			return domain.AnalyzedMarketGroup{}, err
		}
		group.Markets = append(group.Markets, m)
	}

	block, err := decodeAnalysis(res.Analysis, path+".analysis")
	if err != nil {
		return domain.AnalyzedMarketGroup{}, err
	}
	group.Analysis = *block

	return group, nil
}

// decodeProbabilities zips a detail's outcomes with its prices. The outcome
// set must be exactly Yes and No; prices land on the 0-1 scale.
func decodeProbabilities(detail analyzerEchoDetail, path string) (domain.AnalyzedMarket, error) {
	if len(detail.Outcomes) != len(detail.OutcomePrices) {
		return domain.AnalyzedMarket{}, &domain.ValidationError{
			Path:   path,
			Reason: fmt.Sprintf("outcomes and outcomePrices differ in length (%d vs %d)", len(detail.Outcomes), len(detail.OutcomePrices)),
		}
	}

	m := domain.AnalyzedMarket{
		Question:   detail.Question,
		Volume24hr: detail.Volume24hr.Float64(),
	}

	var haveYes, haveNo bool
	for k, outcome := range detail.Outcomes {
		price, err := strconv.ParseFloat(strings.TrimSpace(detail.OutcomePrices[k]), 64)
		if err != nil {
			return domain.AnalyzedMarket{}, &domain.ValidationError{
				Path:   fmt.Sprintf("%s.outcomePrices[%d]", path, k),
				Reason: fmt.Sprintf("cannot parse %q as a number", detail.OutcomePrices[k]),
			}
		}
		switch outcome {
		case "Yes":
			m.Probabilities.Yes = price
			haveYes = true
		case "No":
			m.Probabilities.No = price
			haveNo = true
		default:
			return domain.AnalyzedMarket{}, &domain.ValidationError{
				Path:   fmt.Sprintf("%s.outcomes[%d]", path, k),
				Reason: fmt.Sprintf("unexpected outcome %q, want Yes or No", outcome),
			}
		}
	}
	if !haveYes || !haveNo {
		return domain.AnalyzedMarket{}, &domain.ValidationError{
			Path:   path + ".outcomes",
			Reason: "both Yes and No outcomes are required",
		}
	}
	return m, nil
}

// decodeAnalysis unwraps the assessment from whichever form the analyzer
// produced: a chat-completion envelope, a bare string (fenced or plain
// JSON), or a direct object.
func decodeAnalysis(raw json.RawMessage, path string) (*domain.AnalysisBlock, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil, &domain.ValidationError{Path: path, Reason: "analysis is missing"}
	}

	var text string
	switch trimmed[0] {
	case '"':
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return nil, &domain.ValidationError{Path: path, Reason: "cannot decode analysis string"}
		}
	case '{':
		var env chatEnvelope
		if err := json.Unmarshal(trimmed, &env); err == nil && len(env.Choices) > 0 {
			text = env.Choices[0].Message.Content
			if text == "" {
				return nil, &domain.ValidationError{Path: path, Reason: "completion envelope has no content"}
			}
		} else {
			// A direct analysis object.
			var block domain.AnalysisBlock
			if err := json.Unmarshal(trimmed, &block); err != nil {
				return nil, domain.WireError("analysis", err)
			}
			return &block, nil
		}
	default:
		return nil, &domain.ValidationError{Path: path, Reason: "analysis must be an object or string"}
	}

	body := text
	if m := fenceRE.FindStringSubmatch(text); m != nil {
		body = m[1]
	}

	var block domain.AnalysisBlock
	if err := json.Unmarshal([]byte(strings.TrimSpace(body)), &block); err != nil {
		return nil, domain.WireError("analysis", err)
	}
	return &block, nil
}
