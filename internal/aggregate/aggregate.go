// Package aggregate collapses transaction-level orders into one row per
// shifted accounting day. The day boundary sits 14h30m before midnight
// UTC in production (22:30 SGT); a transaction logged in
// [D 22:30, D+1 22:30) belongs to calendar day D+1.
package aggregate

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/osiris-sg/sugarcane-backend/models"
)

// Policy controls which orders contribute to the daily totals.
//
// The offline training pipeline counts only successful orders into
// daily_sales and transactions, while the live pipeline counts all
// orders. The asymmetry is inherited from the deployed system and kept
// explicit here; error_count always considers every order regardless of
// the policy.
type Policy struct {
	SuccessOnly bool
}

// Aggregator buckets orders by shifted day.
type Aggregator struct {
	boundary time.Duration
	policy   Policy
}

// New creates an aggregator with the given boundary offset before
// midnight UTC.
func New(boundary time.Duration, policy Policy) *Aggregator {
	return &Aggregator{boundary: boundary, policy: policy}
}

// BucketDate maps a log timestamp to its shifted accounting day,
// labeled by the calendar date on which the accounting window ends.
func (a *Aggregator) BucketDate(logTime time.Time) time.Time {
	adj := logTime.Add(-a.boundary).UTC()
	day := time.Date(adj.Year(), adj.Month(), adj.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, 1)
}

// Aggregate groups orders into daily buckets sorted ascending by date.
// An empty input yields an empty series.
func (a *Aggregator) Aggregate(orders []models.OrderRecord) []models.DailyBucket {
	buckets := make(map[time.Time]*models.DailyBucket)
	machines := make(map[time.Time]map[string]struct{})

	for _, o := range orders {
		if a.policy.SuccessOnly && o.Outcome != models.OutcomeSuccess {
			continue
		}

		date := a.BucketDate(o.LogTime)
		b, ok := buckets[date]
		if !ok {
			b = &models.DailyBucket{
				Date:        date,
				TotalAmount: decimal.Zero,
				TotalRefund: decimal.Zero,
			}
			buckets[date] = b
			machines[date] = make(map[string]struct{})
		}

		b.DailySales += o.Dispensed
		b.Transactions++
		b.TotalAmount = b.TotalAmount.Add(o.Amount)
		b.TotalRefund = b.TotalRefund.Add(o.Refund)
		machines[date][o.MachineID] = struct{}{}
	}

	// Error counts consider every order, successful or not, but only
	// land on days that produced a bucket under the policy above.
	for _, o := range orders {
		if o.ErrorCode == 0 {
			continue
		}
		if b, ok := buckets[a.BucketDate(o.LogTime)]; ok {
			b.ErrorCount++
		}
	}

	out := make([]models.DailyBucket, 0, len(buckets))
	for date, b := range buckets {
		b.ActiveMachines = int64(len(machines[date]))
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})

	return out
}
