package monitor

import (
	"fmt"
	"strings"
	"time"

	"pricewatch/internal/types"
)

type Status string

const (
	StatusObserved     Status = "observed"
	StatusNotified     Status = "notified"
	StatusDispatchMiss Status = "dispatch_miss"
	StatusFetchFailed  Status = "fetch_failed"
	StatusStoreFailed  Status = "store_failed"
	StatusNotifyFailed Status = "notify_failed"
	StatusSkipped      Status = "skipped"
)

// ProductResult records what one pass did for one product.
type ProductResult struct {
	SKU         string             `json:"sku"`
	Name        string             `json:"name"`
	Locator     string             `json:"url"`
	Source      string             `json:"source,omitempty"`
	Status      Status             `json:"status"`
	Observation *types.Observation `json:"observation,omitempty"`
	Decision    *Decision          `json:"decision,omitempty"`
	Error       string             `json:"error,omitempty"`
	Err         error              `json:"-"`
}

func (r *ProductResult) fail(status Status, err error) {
	r.Status = status
	r.Err = err
	if err != nil {
		r.Error = err.Error()
	}
}

// PassReport summarizes one pass; Results follow the input product order.
type PassReport struct {
	RunID      string          `json:"run_id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Canceled   bool            `json:"canceled"`
	Results    []ProductResult `json:"results"`
}

func (r PassReport) Count(status Status) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == status {
			n++
		}
	}
	return n
}

// Failed counts products that did not produce a persisted observation.
func (r PassReport) Failed() int {
	return r.Count(StatusDispatchMiss) + r.Count(StatusFetchFailed) + r.Count(StatusStoreFailed)
}

func (r PassReport) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s: %d products in %s", r.RunID, len(r.Results), r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	for _, st := range []Status{StatusObserved, StatusNotified, StatusNotifyFailed, StatusDispatchMiss, StatusFetchFailed, StatusStoreFailed, StatusSkipped} {
		if n := r.Count(st); n > 0 {
			fmt.Fprintf(&b, ", %s=%d", st, n)
		}
	}
	if r.Canceled {
		b.WriteString(" (canceled)")
	}
	return b.String()
}
