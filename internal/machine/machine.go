// Package machine implements the single-shot per-machine prediction
// interface: given a pre-trained bundled model and per-device daily
// sales history, it forecasts each device's next-day sales and the fleet
// total. It is a thin application of the shared feature logic; the
// device identifier is a fitted categorical rather than ad-hoc dummy
// columns.
package machine

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/osiris-sg/sugarcane-backend/internal/encoder"
	"github.com/osiris-sg/sugarcane-backend/internal/features"
	"github.com/osiris-sg/sugarcane-backend/internal/forest"
	"github.com/osiris-sg/sugarcane-backend/models"
)

const dateLayout = "2006-01-02"

// Feature column names a per-machine bundle may be trained on. The
// bundle's own ordered FeatureCols list is authoritative at prediction
// time.
const (
	colWeekday    = "weekday"
	colMonth      = "month"
	colDayOfMonth = "day_of_month"
	colIsWeekend  = "is_weekend"
)

// Bundle is the persisted per-machine model artifact: the forest, the
// fitted device encoder and the ordered numeric feature columns the
// model was trained on.
type Bundle struct {
	Model       *forest.Forest
	Device      *encoder.OneHot
	FeatureCols []string
}

// SaveBundle persists a bundle as an opaque blob.
func SaveBundle(path string, b *Bundle) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	if err := gob.NewEncoder(file).Encode(b); err != nil {
		return err
	}
	return file.Close()
}

// LoadBundle reads a persisted bundle.
func LoadBundle(path string) (*Bundle, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	var b Bundle
	if err := gob.NewDecoder(file).Decode(&b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Predictor serves per-machine prediction requests.
type Predictor struct {
	builder *features.Builder
	debug   bool
	logger  zerolog.Logger
}

// NewPredictor creates a predictor. With debug set, failure responses
// carry the full error chain in the trace field.
func NewPredictor(debug bool) *Predictor {
	return &Predictor{
		builder: features.NewBuilder([]int{3, 7, 14}, []int{1, 7}),
		debug:   debug,
		logger:  log.With().Str("component", "machine_predictor").Logger(),
	}
}

// Handle serves one request. All failures come back as a structured
// error payload, never a panic or an opaque exit.
func (p *Predictor) Handle(req models.MachineRequest) models.MachineResponse {
	resp, err := p.predict(req)
	if err != nil {
		p.logger.Error().Err(err).Msg("Per-machine prediction failed")
		out := models.MachineResponse{Success: false, Error: err.Error()}
		if p.debug {
			out.Trace = fmt.Sprintf("%+v", err)
		}
		return out
	}
	return *resp
}

func (p *Predictor) predict(req models.MachineRequest) (*models.MachineResponse, error) {
	if len(req.HistoricalData) == 0 {
		return nil, errors.New("no historical data provided")
	}

	bundle, err := LoadBundle(req.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("loading model bundle: %w", err)
	}

	series, lastDate, err := groupByDevice(req.HistoricalData)
	if err != nil {
		return nil, err
	}

	predictDate := lastDate.AddDate(0, 0, 1)
	if req.PredictDate != "" {
		predictDate, err = time.Parse(dateLayout, req.PredictDate)
		if err != nil {
			return nil, fmt.Errorf("parsing predict_date: %w", err)
		}
	}

	deviceIDs := make([]string, 0, len(series))
	for id := range series {
		deviceIDs = append(deviceIDs, id)
	}
	sort.Strings(deviceIDs)

	var (
		predictions []models.MachinePrediction
		total       int64
	)
	for _, id := range deviceIDs {
		rows := p.builder.Build(series[id])
		last := rows[len(rows)-1]

		vec, err := p.featureVector(bundle, last, id, predictDate)
		if err != nil {
			return nil, err
		}

		pred := bundle.Model.Predict(vec)
		if pred < 0 {
			pred = 0
		}
		rounded := int64(pred + 0.5)

		predictions = append(predictions, models.MachinePrediction{
			DeviceID:  id,
			LastDate:  last.Date.Format(dateLayout),
			LastSold:  last.DailySales,
			Predicted: rounded,
		})
		total += rounded
	}

	return &models.MachineResponse{
		Success:        true,
		PredictDate:    predictDate.Format(dateLayout),
		BasedOnDate:    lastDate.Format(dateLayout),
		TotalPredicted: total,
		Machines:       len(predictions),
		Predictions:    predictions,
	}, nil
}

// featureVector assembles one device's prediction row in the bundle's
// trained column order, followed by the device one-hot block. lag_1 is
// the device's most recent day; lag_7 keeps its true seven-day-back
// value from the history. Rolling statistics are carried forward from
// the last observed day.
func (p *Predictor) featureVector(bundle *Bundle, last models.FeatureRow, deviceID string, predictDate time.Time) ([]float64, error) {
	weekday := features.MondayWeekday(predictDate)
	values := map[string]float64{
		colWeekday:    float64(weekday),
		colMonth:      float64(predictDate.Month()),
		colDayOfMonth: float64(predictDate.Day()),
		colIsWeekend:  0,
		"lag_1":       float64(last.DailySales),
		"lag_7":       last.Lag[7],
	}
	if weekday >= 5 {
		values[colIsWeekend] = 1
	}
	for w, s := range last.Rolling {
		values[fmt.Sprintf("rolling_avg_%d", w)] = s.Mean
		values[fmt.Sprintf("rolling_std_%d", w)] = s.Std
	}

	vec := make([]float64, 0, len(bundle.FeatureCols)+bundle.Device.Width())
	for _, col := range bundle.FeatureCols {
		vec = append(vec, values[col]) // absent columns stay 0
	}

	block, err := bundle.Device.Transform([]string{deviceID})
	if err != nil {
		return nil, fmt.Errorf("encoding device %s: %w", deviceID, err)
	}
	return append(vec, block...), nil
}

// groupByDevice parses and buckets request rows into per-device daily
// series sorted by date, and reports the latest date seen overall.
func groupByDevice(rows []models.MachineRow) (map[string][]models.DailyBucket, time.Time, error) {
	series := make(map[string][]models.DailyBucket)
	var lastDate time.Time

	for _, r := range rows {
		date, err := time.Parse(dateLayout, r.Date)
		if err != nil {
			return nil, time.Time{}, fmt.Errorf("parsing date %q: %w", r.Date, err)
		}
		id := r.DeviceID
		if id == "" {
			// Aggregated input without device identifiers is treated
			// as a single synthetic device.
			id = "all"
		}
		series[id] = append(series[id], models.DailyBucket{
			Date:       date,
			DailySales: int64(r.Sold),
		})
		if date.After(lastDate) {
			lastDate = date
		}
	}

	for id := range series {
		s := series[id]
		sort.Slice(s, func(i, j int) bool { return s[i].Date.Before(s[j].Date) })
		series[id] = s
	}

	return series, lastDate, nil
}
