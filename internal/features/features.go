// Package features derives the model's input features from a daily sales
// series. The same builder runs at training time and at prediction time
// so both sides see an identical column set in an identical order.
package features

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/osiris-sg/sugarcane-backend/models"
)

// ErrEmptySeries is returned when a prediction row is requested from an
// empty history.
var ErrEmptySeries = errors.New("features: empty daily series")

// Builder derives calendar, rolling and lag features. Window and lag
// sets are fixed at construction.
type Builder struct {
	windows []int
	lags    []int
}

// NewBuilder creates a builder for the given rolling windows and lag
// offsets. Both sets are sorted so the derived column order is stable.
func NewBuilder(windows, lags []int) *Builder {
	w := append([]int(nil), windows...)
	l := append([]int(nil), lags...)
	sort.Ints(w)
	sort.Ints(l)
	return &Builder{windows: w, lags: l}
}

// Build derives one feature row per daily bucket. Input must be sorted
// ascending by date, as produced by the aggregator.
//
// Rolling statistics use a minimum window of one observation, so the
// first row's rolling mean equals the row itself and its std is 0.
// Lags with no prior observation are 0, never a look-ahead.
func (b *Builder) Build(buckets []models.DailyBucket) []models.FeatureRow {
	sales := make([]float64, len(buckets))
	for i, bucket := range buckets {
		sales[i] = float64(bucket.DailySales)
	}

	rows := make([]models.FeatureRow, len(buckets))
	for i, bucket := range buckets {
		row := models.FeatureRow{
			DailyBucket: bucket,
			Rolling:     make(map[int]models.RollingStat, len(b.windows)),
			Lag:         make(map[int]float64, len(b.lags)),
		}
		setCalendar(&row, bucket.Date)

		for _, w := range b.windows {
			row.Rolling[w] = trailingStat(sales[:i+1], w)
		}
		for _, k := range b.lags {
			if i-k >= 0 {
				row.Lag[k] = sales[i-k]
			} else {
				row.Lag[k] = 0
			}
		}
		if bucket.Transactions > 0 {
			row.ErrorRate = float64(bucket.ErrorCount) / float64(bucket.Transactions)
		}

		rows[i] = row
	}

	return rows
}

// NextDayRow synthesizes the row the model predicts on: the most recent
// row with its calendar fields recomputed for the following day and all
// lags set to the current day's sales.
//
// Setting lag_7 to yesterday's value rather than the value seven days
// back is inherited from the deployed system and kept as documented
// behavior. Rolling statistics are carried forward unchanged, not
// recomputed to include the synthetic day. The returned row is never
// appended to the historical series.
func (b *Builder) NextDayRow(rows []models.FeatureRow) (models.FeatureRow, error) {
	if len(rows) == 0 {
		return models.FeatureRow{}, ErrEmptySeries
	}

	last := rows[len(rows)-1]
	next := last
	next.Rolling = make(map[int]models.RollingStat, len(last.Rolling))
	next.Lag = make(map[int]float64, len(b.lags))
	for w, s := range last.Rolling {
		next.Rolling[w] = s
	}
	for _, k := range b.lags {
		next.Lag[k] = float64(last.DailySales)
	}

	setCalendar(&next, last.Date.AddDate(0, 0, 1))
	return next, nil
}

// PredictionDate is the day a row built by NextDayRow forecasts.
func PredictionDate(basedOn time.Time) time.Time {
	return basedOn.AddDate(0, 0, 1)
}

// NumericColumns lists the numeric feature columns in matrix order.
// Identifier, date and target columns are excluded; weekday and month
// are handled by the categorical encoder instead.
func (b *Builder) NumericColumns() []string {
	cols := []string{
		"transactions",
		"total_amount",
		"total_refund",
		"error_count",
		"active_machines",
		"day",
		"is_weekend",
	}
	for _, w := range b.windows {
		cols = append(cols, fmt.Sprintf("rolling_mean_%d", w), fmt.Sprintf("rolling_std_%d", w))
	}
	for _, k := range b.lags {
		cols = append(cols, fmt.Sprintf("lag_%d", k))
	}
	return append(cols, "error_rate")
}

// NumericVector flattens a row into the order given by NumericColumns.
func (b *Builder) NumericVector(r models.FeatureRow) []float64 {
	vec := []float64{
		float64(r.Transactions),
		r.TotalAmount.InexactFloat64(),
		r.TotalRefund.InexactFloat64(),
		float64(r.ErrorCount),
		float64(r.ActiveMachines),
		float64(r.Day),
		boolToFloat(r.IsWeekend),
	}
	for _, w := range b.windows {
		s := r.Rolling[w]
		vec = append(vec, s.Mean, s.Std)
	}
	for _, k := range b.lags {
		vec = append(vec, r.Lag[k])
	}
	return append(vec, r.ErrorRate)
}

// CategoricalColumns lists the one-hot encoded columns.
func (b *Builder) CategoricalColumns() []string {
	return []string{"weekday", "month"}
}

// CategoricalVector extracts the categorical values of a row, aligned
// with CategoricalColumns.
func (b *Builder) CategoricalVector(r models.FeatureRow) []string {
	return []string{strconv.Itoa(r.Weekday), strconv.Itoa(r.Month)}
}

func setCalendar(r *models.FeatureRow, date time.Time) {
	r.Date = date
	r.Day = date.Day()
	r.Weekday = MondayWeekday(date)
	r.Month = int(date.Month())
	r.IsWeekend = r.Weekday >= 5
}

// MondayWeekday converts Go's Sunday-based weekday to 0=Monday..6=Sunday.
func MondayWeekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// trailingStat computes mean and sample standard deviation over the last
// w elements of history. With fewer than two observations the std is 0.
func trailingStat(history []float64, w int) models.RollingStat {
	start := len(history) - w
	if start < 0 {
		start = 0
	}
	window := history[start:]

	var sum float64
	for _, v := range window {
		sum += v
	}
	mean := sum / float64(len(window))

	if len(window) < 2 {
		return models.RollingStat{Mean: mean, Std: 0}
	}

	var sq float64
	for _, v := range window {
		d := v - mean
		sq += d * d
	}
	return models.RollingStat{
		Mean: mean,
		Std:  math.Sqrt(sq / float64(len(window)-1)),
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
