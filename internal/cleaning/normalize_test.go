package cleaning

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/tenderscope/internal/tender"
)

func raw(line int, fields map[string]string) tender.RawRecord {
	return tender.RawRecord{Line: line, Fields: fields}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		symbol string
		err    bool
	}{
		{in: "1000", want: 1000},
		{in: "1,234,567", want: 1234567},
		{in: "$1,250,000.50", want: 1250000.50, symbol: "USD"},
		{in: "€ 1.234,50", want: 1234.50, symbol: "EUR"},
		{in: "1.234.567", want: 1234567},
		{in: "12,5", want: 12.5},
		{in: "USD 40000", want: 40000, symbol: "USD"},
		{in: "40000 eur", want: 40000, symbol: "EUR"},
		{in: "1 234 567", want: 1234567},
		{in: "1_000", want: 1000},
		{in: "0", want: 0},
		{in: "", err: true},
		{in: "TBD", err: true},
		{in: "-500", err: true},
		{in: "(500)", err: true},
		{in: "approx. 5", err: true},
		{in: "12abc34", err: true},
		{in: "1e6", err: true},
		{in: "Phase 2: 40000", err: true},
		{in: "5 million", err: true},
		{in: "$500 EUR", err: true},
		{in: "500 USD 12", err: true},
		{in: "5-3", err: true},
		{in: ".", err: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, symbol, err := ParseValue(tt.in)
			if tt.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.Equal(t, tt.symbol, symbol)
		})
	}
}

func TestParseDate(t *testing.T) {
	want := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"2025-03-14", "2025/03/14", "14/03/2025", "Mar 14, 2025", "14 Mar 2025"} {
		got, err := ParseDate(in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), "%s parsed as %v", in, got)
	}
	_, err := ParseDate("next tuesday")
	assert.Error(t, err)
}

func TestNormalize_CollapsesWhitespaceAndCanonicalises(t *testing.T) {
	got, notes := Normalize(raw(2, map[string]string{
		"title":        "  Road   Resurfacing ",
		"description":  "Resurface\t the  main road",
		"organization": " City of Springfield ",
		"category":     "CONSTRUCTION",
		"currency":     "eur",
		"value":        "12,000",
		"deadline":     "2030-01-31",
	}))
	assert.Empty(t, notes)
	assert.Equal(t, "Road Resurfacing", got.Title)
	assert.Equal(t, "Resurface the main road", got.Description)
	assert.Equal(t, "City of Springfield", got.Organization)
	assert.Equal(t, "construction", got.Category)
	assert.Equal(t, "EUR", got.Currency)
	assert.Equal(t, 12000.0, got.Value)
	assert.Equal(t, tender.DefaultStatus, got.Status)
	require.NotNil(t, got.Deadline)
	assert.Equal(t, 2030, got.Deadline.Year())
}

func TestNormalize_DefaultsAndSymbols(t *testing.T) {
	got, _ := Normalize(raw(2, map[string]string{"title": "a", "description": "b", "value": "£300"}))
	assert.Equal(t, "GBP", got.Currency)

	got, _ = Normalize(raw(2, map[string]string{"title": "a", "description": "b", "value": "300"}))
	assert.Equal(t, tender.DefaultCurrency, got.Currency)

	got, _ = Normalize(raw(2, map[string]string{"title": "a", "description": "b", "value": "300", "currency": "$"}))
	assert.Equal(t, "USD", got.Currency)
}

func TestNormalize_UnknownVocabularyKept(t *testing.T) {
	got, notes := Normalize(raw(2, map[string]string{
		"title": "a", "description": "b", "value": "1", "category": "Space Tourism", "currency": "XYZ",
	}))
	assert.Empty(t, notes)
	assert.Equal(t, "Space Tourism", got.Category)
	assert.Equal(t, "XYZ", got.Currency)
}

func TestNormalize_BadValueIsAnomaly(t *testing.T) {
	got, notes := Normalize(raw(4, map[string]string{"title": "a", "description": "b", "value": "-10"}))
	assert.Zero(t, got.Value)
	assert.True(t, got.ValueAnomaly)
	require.Len(t, notes, 1)
	assert.Equal(t, tender.NoteInvalidValue, notes[0].Kind)
	assert.Equal(t, 4, notes[0].Line)
}

func TestNormalize_FreeTextValueIsAnomaly(t *testing.T) {
	for _, v := range []string{"approx. 5", "Phase 2: 40000", "5 million"} {
		got, notes := Normalize(raw(3, map[string]string{"title": "a", "description": "b", "value": v}))
		assert.Zero(t, got.Value, v)
		assert.True(t, got.ValueAnomaly, v)
		require.Len(t, notes, 1, v)
		assert.Equal(t, tender.NoteInvalidValue, notes[0].Kind, v)
	}
}

func TestNormalize_BadDateIsNoted(t *testing.T) {
	got, notes := Normalize(raw(5, map[string]string{"title": "a", "description": "b", "value": "1", "deadline": "soon"}))
	assert.Nil(t, got.Deadline)
	require.Len(t, notes, 1)
	assert.Equal(t, tender.NoteInvalidDate, notes[0].Kind)
}

func TestGenerateTenderID_Stable(t *testing.T) {
	a := GenerateTenderID("Road Works", "City  Council")
	b := GenerateTenderID(" road works", "city council ")
	assert.Equal(t, a, b)
	assert.Regexp(t, `^TND-[0-9a-f]{16}$`, a)
	assert.NotEqual(t, a, GenerateTenderID("Road Works", "County"))
}

func TestNormalize_ExplicitIDKept(t *testing.T) {
	got, _ := Normalize(raw(2, map[string]string{"tender_id": " T-42 ", "title": "a", "description": "b", "value": "1"}))
	assert.Equal(t, "T-42", got.TenderID)
}
