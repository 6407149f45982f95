package domain

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestFlexBoolUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    bool
		wantErr bool
	}{
		{name: "bool true", input: `true`, want: true},
		{name: "bool false", input: `false`, want: false},
		{name: "string true", input: `"true"`, want: true},
		{name: "string True", input: `"True"`, want: true},
		{name: "string one", input: `"1"`, want: true},
		{name: "string false", input: `"false"`, want: false},
		{name: "number", input: `1`, wantErr: true},
		{name: "object", input: `{}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f FlexBool
			err := json.Unmarshal([]byte(tt.input), &f)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if bool(f) != tt.want {
				t.Errorf("got %v, want %v", bool(f), tt.want)
			}
		})
	}
}

func TestNumberUnmarshal(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantText string
		wantVal  float64
		wantErr  bool
	}{
		{name: "number", input: `125000.5`, wantText: "125000.5", wantVal: 125000.5},
		{name: "integer", input: `42`, wantText: "42", wantVal: 42},
		{name: "numeric string", input: `"125000.50"`, wantText: "125000.50", wantVal: 125000.5},
		{name: "null", input: `null`, wantText: "", wantVal: 0},
		{name: "garbage string", input: `"abc"`, wantErr: true},
		{name: "array", input: `[1]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var n Number
			err := json.Unmarshal([]byte(tt.input), &n)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if n.String() != tt.wantText {
				t.Errorf("text = %q, want %q", n.String(), tt.wantText)
			}
			if n.Float64() != tt.wantVal {
				t.Errorf("value = %v, want %v", n.Float64(), tt.wantVal)
			}
		})
	}
}

func TestNumberMarshal(t *testing.T) {
	tests := []struct {
		name  string
		input Number
		want  string
	}{
		{name: "preserves text", input: Number("125000.50"), want: "125000.50"},
		{name: "empty becomes zero", input: Number(""), want: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestStringListUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr bool
	}{
		{name: "plain array", input: `["Yes","No"]`, want: []string{"Yes", "No"}},
		{name: "double encoded", input: `"[\"Yes\",\"No\"]"`, want: []string{"Yes", "No"}},
		{name: "double encoded prices", input: `"[\"0.9995\",\"0.0005\"]"`, want: []string{"0.9995", "0.0005"}},
		{name: "empty array", input: `[]`, want: []string{}},
		{name: "empty string", input: `""`, want: nil},
		{name: "null", input: `null`, want: nil},
		{name: "not a list", input: `42`, wantErr: true},
		{name: "string of garbage", input: `"not json"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var l StringList
			err := json.Unmarshal([]byte(tt.input), &l)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual([]string(l), tt.want) {
				t.Errorf("got %#v, want %#v", []string(l), tt.want)
			}
		})
	}
}

const rawDocFixture = `{
  "timestamp": "2025-02-03T21:42:26.123456",
  "total_markets": 1,
  "markets": [
    {
      "id": "903193",
      "ticker": "fed-decision-march",
      "slug": "fed-decision-in-march",
      "title": "Fed decision in March?",
      "description": "Federal Reserve rate decision.",
      "seriesSlug": "fed-decision",
      "startDate": "2025-02-01T00:00:00Z",
      "endDate": "2025-03-19T00:00:00Z",
      "liquidity": 1202136.55,
      "volume": "2042865.31",
      "openInterest": 0,
      "volume24hr": 181355.47,
      "liquidityClob": 1202136.55,
      "cyom": false,
      "showAllOutcomes": "true",
      "showMarketImages": true,
      "enableNegRisk": true,
      "automaticallyActive": false,
      "negRiskAugmented": false,
      "series": [],
      "tags": ["economics", "fed"],
      "markets": [
        {
          "id": "516861",
          "question": "Fed decreases interest rates by 25 bps?",
          "conditionId": "0xde1577",
          "slug": "fed-decreases-25",
          "endDate": "2025-03-19T00:00:00Z",
          "description": "Resolves Yes if the Fed cuts by 25 bps.",
          "liquidity": "407421.61",
          "outcomes": "[\"Yes\", \"No\"]",
          "outcomePrices": "[\"0.045\", \"0.955\"]",
          "clobTokenIds": "[\"3834062\", \"1154672\"]",
          "bestBid": 0.04,
          "bestAsk": 0.05,
          "lastTradePrice": 0.045,
          "oneDayPriceChange": -0.005,
          "spread": 0.01
        }
      ]
    }
  ]
}`

func TestParseRawDocument(t *testing.T) {
	doc, err := ParseRawDocument([]byte(rawDocFixture))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Markets) != 1 {
		t.Fatalf("got %d markets, want 1", len(doc.Markets))
	}

	m := doc.Markets[0]
	if m.Ticker != "fed-decision-march" {
		t.Errorf("ticker = %q", m.Ticker)
	}
	if !m.ShowAllOutcomes {
		t.Error("showAllOutcomes sent as string was not decoded to true")
	}
	if m.Volume.Float64() != 2042865.31 {
		t.Errorf("volume = %v, want 2042865.31", m.Volume.Float64())
	}
	if len(m.Markets) != 1 {
		t.Fatalf("got %d nested markets, want 1", len(m.Markets))
	}

	d := m.Markets[0]
	if d.Liquidity.String() != "407421.61" {
		t.Errorf("nested liquidity text = %q, want 407421.61", d.Liquidity.String())
	}
	if want := []string{"Yes", "No"}; !reflect.DeepEqual([]string(d.Outcomes), want) {
		t.Errorf("outcomes = %#v, want %#v", d.Outcomes, want)
	}
	if want := []string{"3834062", "1154672"}; !reflect.DeepEqual([]string(d.ClobTokenIDs), want) {
		t.Errorf("clobTokenIds = %#v, want %#v", d.ClobTokenIDs, want)
	}
}

func TestParseRawDocumentErrors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantPath string
	}{
		{
			name:     "missing timestamp",
			input:    `{"total_markets":0,"markets":[]}`,
			wantPath: "timestamp",
		},
		{
			name:     "bad timestamp",
			input:    `{"timestamp":"yesterday","total_markets":0,"markets":[]}`,
			wantPath: "timestamp",
		},
		{
			name:     "missing markets",
			input:    `{"timestamp":"2025-02-03T21:42:26Z","total_markets":0}`,
			wantPath: "markets",
		},
		{
			name:     "count mismatch",
			input:    `{"timestamp":"2025-02-03T21:42:26Z","total_markets":3,"markets":[]}`,
			wantPath: "total_markets",
		},
		{
			name:     "entry missing id",
			input:    `{"timestamp":"2025-02-03T21:42:26Z","total_markets":1,"markets":[{"ticker":"x"}]}`,
			wantPath: "markets[0].id",
		},
		{
			name:     "entry missing ticker",
			input:    `{"timestamp":"2025-02-03T21:42:26Z","total_markets":1,"markets":[{"id":"1"}]}`,
			wantPath: "markets[0].ticker",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRawDocument([]byte(tt.input))
			if err == nil {
				t.Fatal("expected error, got none")
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %T: %v", err, err)
			}
			if ve.Path != tt.wantPath {
				t.Errorf("path = %q, want %q", ve.Path, tt.wantPath)
			}
		})
	}
}

func TestParseRawDocumentWrongType(t *testing.T) {
	input := `{"timestamp":"2025-02-03T21:42:26Z","total_markets":1,"markets":[{"id":"1","ticker":"x","liquidity":{"a":1}}]}`
	_, err := ParseRawDocument([]byte(input))
	if err == nil {
		t.Fatal("expected error, got none")
	}
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %T: %v", err, err)
	}
}

func TestParseRawDocumentInvalidJSON(t *testing.T) {
	_, err := ParseRawDocument([]byte(`{"timestamp": `))
	if err == nil {
		t.Fatal("expected error, got none")
	}
	var se *SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("expected SchemaError, got %T: %v", err, err)
	}
}
