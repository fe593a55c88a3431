// Package quality runs the fixed battery of data-quality checks over the
// canonical tender set and derives the quality score and status.
package quality

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/tenderscope/internal/tender"
)

// DefaultHealthyThreshold is the minimum score for a healthy pipeline.
const DefaultHealthyThreshold = 90.0

// OutlierValue is the amount above which a tender value is reported as an
// outlier.
const OutlierValue = 1e9

// maxDetailIDs caps the tender ids listed in a log's details.
const maxDetailIDs = 50

// Report is the outcome of one validation run.
type Report struct {
	RunID    string              `json:"run_id"`
	Logs     []tender.QualityLog `json:"logs"`
	Total    int                 `json:"total_records"`
	Clean    int                 `json:"clean_records"`
	Score    float64             `json:"quality_score"`
	HasError bool                `json:"has_error"`
	RanAt    time.Time           `json:"ran_at"`
}

// IssueCount returns the number of records implicated across all logs.
func (r Report) IssueCount() int {
	n := 0
	for _, l := range r.Logs {
		n += l.RecordCount
	}
	return n
}

// check evaluates one rule. It returns the implicated tenders and the
// details to attach, or nil when the rule passes.
type check struct {
	typ      tender.CheckType
	severity tender.Severity
	eval     func(ts []tender.Tender, now time.Time) (hits []int, details map[string]any, msg string)
}

// Validator runs the check battery.
type Validator struct {
	checks []check
	newID  func() string
}

// NewValidator returns a Validator with the standard checks.
func NewValidator() *Validator {
	return &Validator{
		checks: []check{
			{tender.CheckMissingField, tender.SeverityWarning, checkMissingField},
			{tender.CheckInvalidValue, tender.SeverityWarning, checkInvalidValue},
			{tender.CheckDuplicateTenderID, tender.SeverityError, checkDuplicateID},
			{tender.CheckStaleDeadline, tender.SeverityInfo, checkStaleDeadline},
			{tender.CheckUnknownCategory, tender.SeverityInfo, checkUnknownCategory},
			{tender.CheckUnknownCurrency, tender.SeverityInfo, checkUnknownCurrency},
			{tender.CheckOutlierValue, tender.SeverityInfo, checkOutlierValue},
		},
		newID: func() string { return uuid.New().String() },
	}
}

// Run evaluates every check against tenders as of now.
func (v *Validator) Run(tenders []tender.Tender, now time.Time) Report {
	now = now.UTC()
	rep := Report{RunID: v.newID(), Total: len(tenders), RanAt: now}

	dirty := make(map[int]bool)
	for _, c := range v.checks {
		hits, details, msg := c.eval(tenders, now)
		if len(hits) == 0 {
			continue
		}
		if c.severity != tender.SeverityInfo {
			for _, i := range hits {
				dirty[i] = true
			}
		}
		if c.severity == tender.SeverityError {
			rep.HasError = true
		}
		rep.Logs = append(rep.Logs, tender.QualityLog{
			ID:          v.newID(),
			RunID:       rep.RunID,
			CheckType:   c.typ,
			Severity:    c.severity,
			Message:     msg,
			Details:     details,
			RecordCount: len(hits),
			Timestamp:   now,
		})
	}

	rep.Clean = rep.Total - len(dirty)
	rep.Score = Score(rep.Clean, rep.Total)
	return rep
}

// Score is 100 × clean / total rounded to two decimals, or 100 when total is 0.
func Score(clean, total int) float64 {
	if total <= 0 {
		return 100
	}
	return math.Round(10000*float64(clean)/float64(total)) / 100
}

// Status grades the pipeline. It is unknown until the first ingestion.
func Status(score float64, hasError, ingested bool, threshold float64) tender.Status {
	if !ingested {
		return tender.StatusUnknown
	}
	if score >= threshold && !hasError {
		return tender.StatusHealthy
	}
	return tender.StatusDegraded
}

func checkMissingField(ts []tender.Tender, _ time.Time) ([]int, map[string]any, string) {
	var hits []int
	fields := map[string]int{}
	for i, t := range ts {
		missing := false
		for name, v := range map[string]string{
			"organization": t.Organization,
			"category":     t.Category,
			"location":     t.Location,
		} {
			if v == "" {
				fields[name]++
				missing = true
			}
		}
		if missing {
			hits = append(hits, i)
		}
	}
	if len(hits) == 0 {
		return nil, nil, ""
	}
	return hits, map[string]any{"tender_ids": ids(ts, hits), "fields": fields},
		fmt.Sprintf("%d tenders missing organization, category or location", len(hits))
}

func checkInvalidValue(ts []tender.Tender, _ time.Time) ([]int, map[string]any, string) {
	var hits []int
	unparsed := 0
	for i, t := range ts {
		if t.Value == 0 {
			hits = append(hits, i)
			if t.ValueAnomaly {
				unparsed++
			}
		}
	}
	if len(hits) == 0 {
		return nil, nil, ""
	}
	return hits, map[string]any{"tender_ids": ids(ts, hits), "unparsed": unparsed},
		fmt.Sprintf("%d tenders have a zero value", len(hits))
}

func checkDuplicateID(ts []tender.Tender, _ time.Time) ([]int, map[string]any, string) {
	byID := map[string][]int{}
	for i, t := range ts {
		byID[t.TenderID] = append(byID[t.TenderID], i)
	}
	var hits []int
	var dupIDs []string
	for id, idx := range byID {
		if len(idx) > 1 {
			hits = append(hits, idx...)
			dupIDs = append(dupIDs, id)
		}
	}
	if len(hits) == 0 {
		return nil, nil, ""
	}
	sort.Ints(hits)
	sort.Strings(dupIDs)
	return hits, map[string]any{"tender_ids": capIDs(dupIDs), "duplicate_ids": len(dupIDs)},
		fmt.Sprintf("%d tender ids are shared by more than one record", len(dupIDs))
}

func checkStaleDeadline(ts []tender.Tender, now time.Time) ([]int, map[string]any, string) {
	var hits []int
	for i, t := range ts {
		if t.Deadline != nil && t.Deadline.Before(now) {
			hits = append(hits, i)
		}
	}
	if len(hits) == 0 {
		return nil, nil, ""
	}
	return hits, map[string]any{"tender_ids": ids(ts, hits)},
		fmt.Sprintf("%d tenders have a deadline in the past", len(hits))
}

func checkUnknownCategory(ts []tender.Tender, _ time.Time) ([]int, map[string]any, string) {
	return unknownVocab(ts, func(t tender.Tender) string { return t.Category }, tender.KnownCategory, "category")
}

func checkUnknownCurrency(ts []tender.Tender, _ time.Time) ([]int, map[string]any, string) {
	return unknownVocab(ts, func(t tender.Tender) string { return t.Currency }, tender.KnownCurrency, "currency")
}

func checkOutlierValue(ts []tender.Tender, _ time.Time) ([]int, map[string]any, string) {
	var hits []int
	for i, t := range ts {
		if t.Value > OutlierValue {
			hits = append(hits, i)
		}
	}
	if len(hits) == 0 {
		return nil, nil, ""
	}
	return hits, map[string]any{"tender_ids": ids(ts, hits), "threshold": OutlierValue},
		fmt.Sprintf("%d tenders have a value above %.0f", len(hits), OutlierValue)
}

func unknownVocab(ts []tender.Tender, field func(tender.Tender) string, known func(string) bool, name string) ([]int, map[string]any, string) {
	var hits []int
	values := map[string]int{}
	for i, t := range ts {
		v := field(t)
		if v == "" || known(v) {
			continue
		}
		hits = append(hits, i)
		values[v]++
	}
	if len(hits) == 0 {
		return nil, nil, ""
	}
	return hits, map[string]any{"tender_ids": ids(ts, hits), "values": values},
		fmt.Sprintf("%d tenders have a %s outside the known vocabulary", len(hits), name)
}

func ids(ts []tender.Tender, hits []int) []string {
	out := make([]string, 0, len(hits))
	for _, i := range hits {
		out = append(out, ts[i].TenderID)
	}
	sort.Strings(out)
	return capIDs(out)
}

func capIDs(s []string) []string {
	if len(s) > maxDetailIDs {
		return s[:maxDetailIDs]
	}
	return s
}
