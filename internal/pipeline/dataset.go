package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/tenderscope/internal/tender"
)

// dataset is an immutable snapshot of the canonical tenders, ordered by Seq.
// indexed is the search index size published alongside it.
type dataset struct {
	tenders []tender.Tender
	byID    map[string]int
	nextSeq int64
	indexed int
}

var emptyDataset = &dataset{byID: map[string]int{}, nextSeq: 1}

func newDataset(tenders []tender.Tender) *dataset {
	d := &dataset{
		tenders: tenders,
		byID:    make(map[string]int, len(tenders)),
		nextSeq: 1,
	}
	for i, t := range tenders {
		d.byID[t.TenderID] = i
		if t.Seq >= d.nextSeq {
			d.nextSeq = t.Seq + 1
		}
	}
	return d
}

func (d *dataset) get(tenderID string) (tender.Tender, bool) {
	i, ok := d.byID[tenderID]
	if !ok {
		return tender.Tender{}, false
	}
	return d.tenders[i], true
}

// merge upserts batch by TenderID into a copy of d. Replaced records keep
// their ID, Seq and CreatedAt; new records get a fresh ID and the next Seq.
// The returned changed slice holds the stamped records in batch order.
func (d *dataset) merge(batch []tender.Tender, now time.Time) (next *dataset, changed []tender.Tender, inserted, updated int) {
	next = &dataset{
		tenders: make([]tender.Tender, len(d.tenders), len(d.tenders)+len(batch)),
		byID:    make(map[string]int, len(d.tenders)+len(batch)),
		nextSeq: d.nextSeq,
	}
	copy(next.tenders, d.tenders)
	for k, v := range d.byID {
		next.byID[k] = v
	}

	changed = make([]tender.Tender, 0, len(batch))
	for _, t := range batch {
		if i, ok := next.byID[t.TenderID]; ok {
			old := next.tenders[i]
			t.ID, t.Seq, t.CreatedAt = old.ID, old.Seq, old.CreatedAt
			t.UpdatedAt = now
			next.tenders[i] = t
			updated++
		} else {
			t.ID = uuid.New().String()
			t.Seq = next.nextSeq
			next.nextSeq++
			t.CreatedAt, t.UpdatedAt = now, now
			next.byID[t.TenderID] = len(next.tenders)
			next.tenders = append(next.tenders, t)
			inserted++
		}
		changed = append(changed, t)
	}
	return next, changed, inserted, updated
}
