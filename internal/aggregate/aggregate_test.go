package aggregate

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osiris-sg/sugarcane-backend/models"
)

const boundary = 14*time.Hour + 30*time.Minute

func order(machine string, logTime time.Time, dispensed int64, outcome models.Outcome) models.OrderRecord {
	return models.OrderRecord{
		MachineID: machine,
		LogTime:   logTime,
		Outcome:   outcome,
		Dispensed: dispensed,
		Amount:    decimal.NewFromInt(2),
		Refund:    decimal.Zero,
	}
}

func TestBucketDateBoundary(t *testing.T) {
	a := New(boundary, Policy{})

	tests := []struct {
		name    string
		logTime time.Time
		want    time.Time
	}{
		{
			// 22:29:59 SGT on Jan 10 is 14:29:59 UTC; still day D
			name:    "just before boundary",
			logTime: time.Date(2025, 1, 10, 14, 29, 59, 0, time.UTC),
			want:    time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		},
		{
			name:    "exactly at boundary",
			logTime: time.Date(2025, 1, 10, 14, 30, 0, 0, time.UTC),
			want:    time.Date(2025, 1, 11, 0, 0, 0, 0, time.UTC),
		},
		{
			name:    "early morning",
			logTime: time.Date(2025, 1, 10, 3, 0, 0, 0, time.UTC),
			want:    time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.BucketDate(tt.logTime))
		})
	}
}

func TestAggregateSums(t *testing.T) {
	a := New(boundary, Policy{})
	base := time.Date(2025, 1, 10, 3, 0, 0, 0, time.UTC)

	buckets := a.Aggregate([]models.OrderRecord{
		order("m1", base, 2, models.OutcomeSuccess),
		order("m2", base.Add(time.Hour), 3, models.OutcomeSuccess),
		order("m1", base.Add(2*time.Hour), 1, models.OutcomeFailed),
		order("m1", base.AddDate(0, 0, 1), 5, models.OutcomeSuccess),
	})

	require.Len(t, buckets, 2)
	day1 := buckets[0]
	assert.Equal(t, int64(6), day1.DailySales)
	assert.Equal(t, int64(3), day1.Transactions)
	assert.Equal(t, int64(2), day1.ActiveMachines)
	assert.True(t, day1.TotalAmount.Equal(decimal.NewFromInt(6)))

	day2 := buckets[1]
	assert.Equal(t, int64(5), day2.DailySales)
	assert.True(t, day2.Date.After(day1.Date), "buckets must be sorted ascending")
}

func TestAggregateSuccessOnlyPolicy(t *testing.T) {
	base := time.Date(2025, 1, 10, 3, 0, 0, 0, time.UTC)
	failed := order("m1", base, 4, models.OutcomeFailed)
	failed.ErrorCode = 7
	orders := []models.OrderRecord{
		order("m1", base.Add(time.Minute), 2, models.OutcomeSuccess),
		failed,
	}

	live := New(boundary, Policy{SuccessOnly: false}).Aggregate(orders)
	require.Len(t, live, 1)
	assert.Equal(t, int64(6), live[0].DailySales, "live policy counts all orders")
	assert.Equal(t, int64(2), live[0].Transactions)
	assert.Equal(t, int64(1), live[0].ErrorCount)

	train := New(boundary, Policy{SuccessOnly: true}).Aggregate(orders)
	require.Len(t, train, 1)
	assert.Equal(t, int64(2), train[0].DailySales, "training policy counts successful orders only")
	assert.Equal(t, int64(1), train[0].Transactions)
	assert.Equal(t, int64(1), train[0].ErrorCount, "error count still considers failed orders")
}

func TestAggregateErrorOnlyDayDropped(t *testing.T) {
	// a day with only failed error-coded orders produces no bucket
	// under the success-only policy
	base := time.Date(2025, 1, 10, 3, 0, 0, 0, time.UTC)
	failed := order("m1", base, 1, models.OutcomeFailed)
	failed.ErrorCode = 3

	buckets := New(boundary, Policy{SuccessOnly: true}).Aggregate([]models.OrderRecord{failed})
	assert.Empty(t, buckets)
}

func TestAggregateEmptyInput(t *testing.T) {
	buckets := New(boundary, Policy{}).Aggregate(nil)
	assert.Empty(t, buckets)
}

func TestAggregateUniqueDates(t *testing.T) {
	a := New(boundary, Policy{})
	var orders []models.OrderRecord
	base := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 72; i++ {
		orders = append(orders, order("m1", base.Add(time.Duration(i)*time.Hour), 1, models.OutcomeSuccess))
	}

	buckets := a.Aggregate(orders)
	seen := map[time.Time]bool{}
	for _, b := range buckets {
		require.False(t, seen[b.Date], "duplicate bucket date %v", b.Date)
		seen[b.Date] = true
	}
}
