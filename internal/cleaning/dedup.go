package cleaning

import (
	"fmt"
	"strconv"

	"github.com/kalambet/tenderscope/internal/tender"
)

// Deduper collapses rows that describe the same tender. Rows with an explicit
// tender_id are keyed by it; rows without one are keyed by the exact
// (title, organization, value) triple. The later row replaces the earlier one
// in place. Result applies a second collapse on the final tender_id so the
// output never carries two records with the same id.
type Deduper struct {
	order []tender.Tender
	lines []int
	index map[string]int
	notes []tender.RowNote
}

// NewDeduper returns an empty Deduper.
func NewDeduper() *Deduper {
	return &Deduper{index: make(map[string]int)}
}

// Add records t read from line. It reports whether t replaced an earlier row.
func (d *Deduper) Add(t tender.Tender, line int, explicitID bool) bool {
	key := rowKey(t, explicitID)
	if i, ok := d.index[key]; ok {
		d.note(line, d.lines[i], key)
		d.order[i] = t
		d.lines[i] = line
		return true
	}
	d.index[key] = len(d.order)
	d.order = append(d.order, t)
	d.lines = append(d.lines, line)
	return false
}

// Result returns the surviving tenders in first-seen order together with
// one duplicate note per collapsed row.
func (d *Deduper) Result() ([]tender.Tender, []tender.RowNote) {
	notes := append([]tender.RowNote(nil), d.notes...)
	byID := make(map[string]int, len(d.order))
	out := make([]tender.Tender, 0, len(d.order))
	for i, t := range d.order {
		if j, ok := byID[t.TenderID]; ok {
			notes = append(notes, duplicateNote(d.lines[i], 0, "tender_id:"+t.TenderID))
			out[j] = t
			continue
		}
		byID[t.TenderID] = len(out)
		out = append(out, t)
	}
	return out, notes
}

func (d *Deduper) note(line, previous int, key string) {
	d.notes = append(d.notes, duplicateNote(line, previous, key))
}

func duplicateNote(line, previous int, key string) tender.RowNote {
	msg := fmt.Sprintf("duplicate of %s", key)
	if previous > 0 {
		msg = fmt.Sprintf("replaces line %d (%s)", previous, key)
	}
	return tender.RowNote{Line: line, Kind: tender.NoteDuplicate, Message: msg}
}

func rowKey(t tender.Tender, explicitID bool) string {
	if explicitID {
		return "tender_id:" + t.TenderID
	}
	return "row:" + t.Title + "\x1f" + t.Organization + "\x1f" + strconv.FormatFloat(t.Value, 'f', -1, 64)
}
