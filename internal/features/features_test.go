package features

import (
	"math"
	"testing"
	"time"

	"github.com/osiris-sg/sugarcane-backend/models"
)

func day(n int) time.Time {
	// 2025-03-03 is a Monday
	return time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func buckets(sales ...int64) []models.DailyBucket {
	out := make([]models.DailyBucket, len(sales))
	for i, s := range sales {
		out[i] = models.DailyBucket{Date: day(i), DailySales: s, Transactions: s}
	}
	return out
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestRollingSinglePoint(t *testing.T) {
	b := NewBuilder([]int{3, 7, 14}, []int{1, 7})
	rows := b.Build(buckets(10))

	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	for _, w := range []int{3, 7, 14} {
		s := rows[0].Rolling[w]
		if !almostEqual(s.Mean, 10) {
			t.Errorf("rolling_mean_%d for single point should be 10, got %f", w, s.Mean)
		}
		if s.Std != 0 {
			t.Errorf("rolling_std_%d for single point should be 0, got %f", w, s.Std)
		}
	}
}

func TestRollingScenarioSeries(t *testing.T) {
	b := NewBuilder([]int{3, 7, 14}, []int{1, 7})
	rows := b.Build(buckets(10, 12, 8, 15, 20, 18, 14))

	last := rows[len(rows)-1]
	want := (20.0 + 18.0 + 14.0) / 3.0
	if !almostEqual(last.Rolling[3].Mean, want) {
		t.Errorf("rolling_mean_3 on last day: want %f, got %f", want, last.Rolling[3].Mean)
	}

	wantMean7 := (10.0 + 12 + 8 + 15 + 20 + 18 + 14) / 7.0
	if !almostEqual(last.Rolling[7].Mean, wantMean7) {
		t.Errorf("rolling_mean_7 on last day: want %f, got %f", wantMean7, last.Rolling[7].Mean)
	}

	// std never NaN anywhere in the series
	for i, r := range rows {
		for w, s := range r.Rolling {
			if math.IsNaN(s.Std) || math.IsNaN(s.Mean) {
				t.Errorf("row %d rolling_%d has NaN", i, w)
			}
		}
	}
}

func TestLagNoLookahead(t *testing.T) {
	series := []int64{10, 12, 8, 15, 20, 18, 14, 16}
	b := NewBuilder([]int{3}, []int{1, 7})
	rows := b.Build(buckets(series...))

	for i, r := range rows {
		for _, k := range []int{1, 7} {
			want := 0.0
			if i >= k {
				want = float64(series[i-k])
			}
			if !almostEqual(r.Lag[k], want) {
				t.Errorf("lag_%d[%d]: want %f, got %f", k, i, want, r.Lag[k])
			}
		}
	}

	// lag_7 on day 8 equals the first day's sales
	if !almostEqual(rows[7].Lag[7], 10) {
		t.Errorf("lag_7 on day 8: want 10, got %f", rows[7].Lag[7])
	}
}

func TestCalendarFields(t *testing.T) {
	tests := []struct {
		name      string
		date      time.Time
		weekday   int
		isWeekend bool
	}{
		{"monday", time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), 0, false},
		{"friday", time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC), 4, false},
		{"saturday", time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC), 5, true},
		{"sunday", time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC), 6, true},
	}

	b := NewBuilder([]int{3}, []int{1})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := b.Build([]models.DailyBucket{{Date: tt.date, DailySales: 1}})
			r := rows[0]
			if r.Weekday != tt.weekday {
				t.Errorf("weekday: want %d, got %d", tt.weekday, r.Weekday)
			}
			if r.IsWeekend != tt.isWeekend {
				t.Errorf("is_weekend: want %v, got %v", tt.isWeekend, r.IsWeekend)
			}
			if r.Day != tt.date.Day() || r.Month != int(tt.date.Month()) {
				t.Errorf("day/month mismatch for %s", tt.date)
			}
		})
	}
}

func TestErrorRate(t *testing.T) {
	b := NewBuilder([]int{3}, []int{1})

	rows := b.Build([]models.DailyBucket{
		{Date: day(0), DailySales: 10, Transactions: 4, ErrorCount: 1},
		{Date: day(1), DailySales: 0, Transactions: 0, ErrorCount: 0},
	})

	if !almostEqual(rows[0].ErrorRate, 0.25) {
		t.Errorf("error_rate: want 0.25, got %f", rows[0].ErrorRate)
	}
	if rows[1].ErrorRate != 0 {
		t.Errorf("error_rate with zero transactions should be 0, got %f", rows[1].ErrorRate)
	}
}

func TestNextDayRow(t *testing.T) {
	b := NewBuilder([]int{3, 7, 14}, []int{1, 7})
	rows := b.Build(buckets(10, 12, 8, 15, 20, 18, 14))
	last := rows[len(rows)-1]

	next, err := b.NextDayRow(rows)
	if err != nil {
		t.Fatal(err)
	}

	if !next.Date.Equal(last.Date.AddDate(0, 0, 1)) {
		t.Errorf("next date: want %v, got %v", last.Date.AddDate(0, 0, 1), next.Date)
	}
	// both lags take the current day's sales, including lag_7: the
	// known approximation carried over from production
	if !almostEqual(next.Lag[1], 14) || !almostEqual(next.Lag[7], 14) {
		t.Errorf("next-day lags: want 14/14, got %f/%f", next.Lag[1], next.Lag[7])
	}
	// rolling stats carried forward, not recomputed
	for w, s := range last.Rolling {
		if next.Rolling[w] != s {
			t.Errorf("rolling_%d changed on synthetic row", w)
		}
	}
	// history untouched
	if len(rows) != 7 {
		t.Errorf("history grew to %d rows", len(rows))
	}
}

func TestNextDayRowEmptySeries(t *testing.T) {
	b := NewBuilder([]int{3}, []int{1})
	if _, err := b.NextDayRow(nil); err != ErrEmptySeries {
		t.Errorf("want ErrEmptySeries, got %v", err)
	}
}

func TestColumnConsistency(t *testing.T) {
	b := NewBuilder([]int{3, 7, 14}, []int{1, 7})
	rows := b.Build(buckets(10, 12, 8, 15))

	cols := b.NumericColumns()
	next, err := b.NextDayRow(rows)
	if err != nil {
		t.Fatal(err)
	}

	trainVec := b.NumericVector(rows[0])
	predVec := b.NumericVector(next)
	if len(trainVec) != len(cols) || len(predVec) != len(cols) {
		t.Fatalf("vector width %d/%d does not match %d columns",
			len(trainVec), len(predVec), len(cols))
	}

	again := b.NumericColumns()
	for i := range cols {
		if cols[i] != again[i] {
			t.Fatalf("column order not stable: %v vs %v", cols, again)
		}
	}

	cats := b.CategoricalVector(next)
	if len(cats) != len(b.CategoricalColumns()) {
		t.Fatalf("categorical width mismatch")
	}
}
