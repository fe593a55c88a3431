// Package cleaning maps raw CSV rows to canonical tenders: whitespace and
// vocabulary normalisation, value and date parsing, identifier generation,
// deduplication and embedding.
package cleaning

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/kalambet/tenderscope/internal/parser"
	"github.com/kalambet/tenderscope/internal/tender"
)

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"02/01/2006",
	"2006/01/02",
	"Jan 2, 2006",
	"2 Jan 2006",
	"January 2, 2006",
}

var currencySymbols = map[rune]string{
	'$': "USD",
	'€': "EUR",
	'£': "GBP",
	'₹': "INR",
	'¥': "JPY",
	'₦': "NGN",
}

var errNegative = errors.New("negative amount")

// Normalize converts one raw row into a Tender. Defects that do not drop the
// row are returned as notes; the Tender is always usable.
func Normalize(raw tender.RawRecord) (tender.Tender, []tender.RowNote) {
	var notes []tender.RowNote
	note := func(kind, format string, args ...any) {
		notes = append(notes, tender.RowNote{Line: raw.Line, Kind: kind, Message: fmt.Sprintf(format, args...)})
	}

	t := tender.Tender{
		TenderID:     squash(raw.Get(parser.ColTenderID)),
		Title:        squash(raw.Get(parser.ColTitle)),
		Description:  squash(raw.Get(parser.ColDescription)),
		Organization: squash(raw.Get(parser.ColOrganization)),
		Location:     squash(raw.Get(parser.ColLocation)),
		Status:       squash(raw.Get(parser.ColStatus)),
	}
	if t.Status == "" {
		t.Status = tender.DefaultStatus
	}

	t.Category, _ = tender.CanonicalCategory(squash(raw.Get(parser.ColCategory)))

	rawValue := squash(raw.Get(parser.ColValue))
	value, symbol, err := ParseValue(rawValue)
	if err != nil {
		t.ValueAnomaly = true
		note(tender.NoteInvalidValue, "value %q: %v", rawValue, err)
	} else {
		t.Value = value
	}

	currency := squash(raw.Get(parser.ColCurrency))
	if c, ok := symbolCode(currency); ok {
		currency = c
	}
	if currency == "" {
		currency = symbol
	}
	if currency == "" {
		currency = tender.DefaultCurrency
	}
	t.Currency, _ = tender.CanonicalCurrency(currency)

	if d := squash(raw.Get(parser.ColDeadline)); d != "" {
		if ts, err := ParseDate(d); err == nil {
			t.Deadline = &ts
		} else {
			note(tender.NoteInvalidDate, "deadline %q: %v", d, err)
		}
	}
	if d := squash(raw.Get(parser.ColPublishedDate)); d != "" {
		if ts, err := ParseDate(d); err == nil {
			t.PublishedDate = &ts
		} else {
			note(tender.NoteInvalidDate, "published_date %q: %v", d, err)
		}
	}

	if t.TenderID == "" {
		t.TenderID = GenerateTenderID(t.Title, t.Organization)
	}
	return t, notes
}

// GenerateTenderID derives a stable identifier from title and organization
// so that re-ingesting the same file produces the same ids.
func GenerateTenderID(title, organization string) string {
	key := strings.ToLower(squash(title)) + "|" + strings.ToLower(squash(organization))
	sum := sha1.Sum([]byte(key))
	return "TND-" + hex.EncodeToString(sum[:])[:16]
}

// ParseValue parses a monetary amount. Currency symbols, ISO codes, spaces,
// underscores and thousands separators are stripped; a leading minus or
// enclosing parentheses mark a negative amount. Any other text makes the
// value unparsable. When the amount carries a currency symbol or a known ISO
// code, that code is returned alongside the value.
func ParseValue(s string) (float64, string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, "", errors.New("empty")
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	var code string
	setCode := func(c string) error {
		if code != "" && code != c {
			return fmt.Errorf("conflicting currencies %s and %s", code, c)
		}
		code = c
		return nil
	}

	var b strings.Builder
	closed := false
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',':
			if closed {
				return 0, code, fmt.Errorf("unexpected %q after the amount", r)
			}
			b.WriteRune(r)
		case unicode.IsSpace(r), r == '_':
		case r == '-' && b.Len() == 0 && !negative:
			negative = true
		case unicode.IsLetter(r):
			j := i
			for j < len(runes) && unicode.IsLetter(runes[j]) {
				j++
			}
			word := string(runes[i:j])
			c, ok := tender.CanonicalCurrency(word)
			if !ok {
				return 0, code, fmt.Errorf("unexpected text %q", word)
			}
			if err := setCode(c); err != nil {
				return 0, code, err
			}
			closed = closed || b.Len() > 0
			i = j - 1
		default:
			c, ok := currencySymbols[r]
			if !ok {
				return 0, code, fmt.Errorf("unexpected character %q", r)
			}
			if err := setCode(c); err != nil {
				return 0, code, err
			}
			closed = closed || b.Len() > 0
		}
	}

	num := normalizeSeparators(b.String())
	if strings.Trim(num, ".") == "" {
		return 0, code, errors.New("no digits")
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, code, errors.New("not a number")
	}
	if negative && v != 0 {
		return 0, code, errNegative
	}
	return v, code, nil
}

// symbolCode maps a bare currency symbol such as "$" to its ISO code.
func symbolCode(s string) (string, bool) {
	r := []rune(s)
	if len(r) != 1 {
		return "", false
	}
	c, ok := currencySymbols[r[0]]
	return c, ok
}

// normalizeSeparators rewrites a digit string with "," and "." into a form
// strconv understands. When both appear the last one is the decimal mark.
// A lone separator followed by exactly three digits is a thousands mark.
func normalizeSeparators(s string) string {
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		if strings.Count(s, ",") == 1 && len(s)-lastComma-1 != 3 {
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case lastDot >= 0:
		if strings.Count(s, ".") > 1 {
			return strings.ReplaceAll(s, ".", "")
		}
		return s
	}
	return s
}

// ParseDate accepts the date layouts commonly found in tender exports and
// returns the date in UTC.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date format")
}

// squash trims and collapses internal whitespace.
func squash(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
