package tender

import "strings"

var categories = []string{
	"construction",
	"consulting",
	"defense",
	"education",
	"energy",
	"furniture",
	"healthcare",
	"it services",
	"other",
	"supplies",
	"telecommunications",
	"transport",
	"water",
}

var currencies = []string{
	"AED", "AUD", "BRL", "CAD", "CHF", "CNY", "EUR", "GBP",
	"INR", "JPY", "KES", "NGN", "SGD", "USD", "ZAR",
}

// DefaultCurrency is applied when a row carries no currency.
const DefaultCurrency = "USD"

// DefaultStatus is applied when a row carries no status.
const DefaultStatus = "Open"

var (
	categoryIndex = buildIndex(categories)
	currencyIndex = buildIndex(currencies)
)

func buildIndex(vocab []string) map[string]string {
	m := make(map[string]string, len(vocab))
	for _, v := range vocab {
		m[vocabKey(v)] = v
	}
	return m
}

func vocabKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// CanonicalCategory returns the vocabulary spelling of a category and whether
// it is known. Unknown values are returned unchanged.
func CanonicalCategory(s string) (string, bool) {
	if c, ok := categoryIndex[vocabKey(s)]; ok {
		return c, true
	}
	return s, false
}

// CanonicalCurrency returns the ISO spelling of a currency code and whether
// it is known. Unknown values are returned unchanged.
func CanonicalCurrency(s string) (string, bool) {
	if c, ok := currencyIndex[vocabKey(s)]; ok {
		return c, true
	}
	return s, false
}

// KnownCategory reports whether s is in the category vocabulary.
func KnownCategory(s string) bool {
	_, ok := CanonicalCategory(s)
	return ok
}

// KnownCurrency reports whether s is in the currency vocabulary.
func KnownCurrency(s string) bool {
	_, ok := CanonicalCurrency(s)
	return ok
}
