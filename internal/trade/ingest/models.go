package ingest

import (
	"time"

	"tradesync/internal/trade/models"
)

// DateResult summarizes the ingestion of one declaration date.
type DateResult struct {
	Date          time.Time
	PagesAccepted int
	PagesDropped  int
	Records       int
	Batches       int
	FailedBatches int
	Totals        models.BatchResult
	// Incomplete is set when a page could not be fetched, so the date was
	// not paginated to its end.
	Incomplete bool
}

// RunResult summarizes an import or update run.
type RunResult struct {
	RunID         string
	Dates         []DateResult
	Totals        models.BatchResult
	FailedBatches int
}

// IncompleteDates lists the dates whose pagination stopped early.
func (r RunResult) IncompleteDates() []string {
	var out []string
	for _, d := range r.Dates {
		if d.Incomplete {
			out = append(out, d.Date.Format(models.DateLayout))
		}
	}
	return out
}

func (r *RunResult) add(d DateResult) {
	r.Dates = append(r.Dates, d)
	r.Totals.Add(d.Totals)
	r.FailedBatches += d.FailedBatches
}

// pageBound tracks the last page worth fetching for one date. It starts at
// the reported total and only ever shrinks.
type pageBound struct {
	last   int
	halted bool
}

func (b *pageBound) shrink(last int) {
	if last < b.last {
		b.last = last
	}
}
