package parser

import "strings"

// Canonical column names.
const (
	ColTenderID      = "tender_id"
	ColTitle         = "title"
	ColDescription   = "description"
	ColOrganization  = "organization"
	ColCategory      = "category"
	ColLocation      = "location"
	ColValue         = "value"
	ColCurrency      = "currency"
	ColDeadline      = "deadline"
	ColPublishedDate = "published_date"
	ColStatus        = "status"
)

// RequiredColumns must be non-empty in a row for it to be kept.
var RequiredColumns = []string{ColTitle, ColDescription}

// columnAliases maps a canonical column to the header spellings accepted for
// it. Matching is done on headerKey(alias). Headers that match nothing are
// ignored.
var columnAliases = map[string][]string{
	ColTenderID:      {"tender_id", "tender id", "tenderid", "id", "reference", "ref"},
	ColTitle:         {"title", "name", "tender_title"},
	ColDescription:   {"description", "desc", "summary", "details"},
	ColOrganization:  {"organization", "organisation", "buyer", "agency", "org"},
	ColCategory:      {"category", "sector"},
	ColLocation:      {"location", "region", "country"},
	ColValue:         {"value", "amount", "budget", "estimated_value"},
	ColCurrency:      {"currency", "ccy"},
	ColDeadline:      {"deadline", "closing_date", "due_date"},
	ColPublishedDate: {"published_date", "published", "publication_date"},
	ColStatus:        {"status"},
}

var aliasIndex = func() map[string]string {
	m := make(map[string]string)
	for col, aliases := range columnAliases {
		for _, a := range aliases {
			m[headerKey(a)] = col
		}
	}
	return m
}()

// headerKey folds case, surrounding space and separator style so that
// "Tender ID", "tender-id" and "TENDER_ID" compare equal.
func headerKey(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.NewReplacer("-", "_", " ", "_", ".", "_").Replace(h)
	for strings.Contains(h, "__") {
		h = strings.ReplaceAll(h, "__", "_")
	}
	return h
}

// MapHeader returns, for each header position, the canonical column it maps
// to or "" when the header is unknown. The first header mapping to a column
// wins; later duplicates are ignored.
func MapHeader(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		col, ok := aliasIndex[headerKey(h)]
		if !ok || seen[col] {
			continue
		}
		seen[col] = true
		out[i] = col
	}
	return out
}
