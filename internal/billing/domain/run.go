package billing

import (
	"sort"
	"time"
)

// PointError is a per supply point failure reported by a run.
type PointError struct {
	CUPS  string `json:"cups"`
	Error string `json:"error"`
}

// BillingRun summarizes one billing invocation. It is never persisted.
type BillingRun struct {
	RunID           string       `json:"runId"`
	Period          string       `json:"period"`
	InvoicesCreated int          `json:"invoicesCreated"`
	InvoicesUpdated int          `json:"invoicesUpdated"`
	SkippedInactive int          `json:"skippedInactive"`
	Errors          []PointError `json:"errors"`
	StartedAt       time.Time    `json:"startedAt"`
	FinishedAt      time.Time    `json:"finishedAt"`
}

// Examined returns the number of supply points accounted for by the run.
func (r *BillingRun) Examined() int {
	return r.InvoicesCreated + r.InvoicesUpdated + len(r.Errors) + r.SkippedInactive
}

// SortErrors orders errors by CUPS, then message.
func SortErrors(errs []PointError) {
	sort.SliceStable(errs, func(i, j int) bool {
		if errs[i].CUPS != errs[j].CUPS {
			return errs[i].CUPS < errs[j].CUPS
		}
		return errs[i].Error < errs[j].Error
	})
}

// BillingError is the persisted form of a PointError.
type BillingError struct {
	ID        int64     `json:"id"`
	Period    string    `json:"period"`
	CUPS      string    `json:"cups"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}
