// Package pipeline wires the run: fetch orders, format, aggregate,
// build features, train or load the model, predict the next day and
// persist the result. One invocation produces at most one forecast.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/osiris-sg/sugarcane-backend/internal/aggregate"
	"github.com/osiris-sg/sugarcane-backend/internal/config"
	"github.com/osiris-sg/sugarcane-backend/internal/features"
	"github.com/osiris-sg/sugarcane-backend/internal/forecaster"
	"github.com/osiris-sg/sugarcane-backend/internal/formatter"
	"github.com/osiris-sg/sugarcane-backend/models"
)

// ErrNoOrders aborts the run when the historical window is empty. No
// forecast is fabricated and nothing is written to the sink.
var ErrNoOrders = errors.New("pipeline: no orders in historical window")

// Pipeline runs the daily forecast end to end.
type Pipeline struct {
	cfg        *config.Config
	source     models.OrderSource
	sink       models.PredictionSink
	formatter  *formatter.Formatter
	aggregator *aggregate.Aggregator
	builder    *features.Builder
	forecaster *forecaster.Forecaster
	logger     zerolog.Logger
}

// New assembles a pipeline from configuration and its storage
// collaborators.
func New(cfg *config.Config, source models.OrderSource, sink models.PredictionSink) *Pipeline {
	builder := features.NewBuilder(cfg.RollingWindows, cfg.LagOffsets)
	return &Pipeline{
		cfg:        cfg,
		source:     source,
		sink:       sink,
		formatter:  formatter.New(cfg.ExcludedMachines),
		aggregator: aggregate.New(cfg.DayBoundary, aggregate.Policy{SuccessOnly: cfg.SuccessOnly}),
		builder:    builder,
		forecaster: forecaster.New(cfg, builder),
		logger:     log.With().Str("component", "pipeline").Logger(),
	}
}

// Run executes one forecast cycle and returns the persisted result.
func (p *Pipeline) Run(ctx context.Context) (*models.PredictionResult, error) {
	p.logger.Info().Int("window_days", p.cfg.WindowDays).Msg("Starting sales prediction")

	raw, err := p.source.FetchOrders(ctx, p.cfg.WindowDays)
	if err != nil {
		return nil, fmt.Errorf("fetching orders: %w", err)
	}
	p.logger.Info().Int("orders", len(raw)).Msg("Fetched orders")
	if len(raw) == 0 {
		return nil, ErrNoOrders
	}

	orders := p.formatter.Format(raw)
	buckets := p.aggregator.Aggregate(orders)
	p.logger.Info().Int("days", len(buckets)).Msg("Aggregated to daily totals")
	if len(buckets) == 0 {
		return nil, ErrNoOrders
	}

	rows := p.builder.Build(buckets)

	if err := p.forecaster.LoadOrTrain(rows); err != nil {
		return nil, err
	}

	next, err := p.builder.NextDayRow(rows)
	if err != nil {
		return nil, err
	}
	predicted, err := p.forecaster.Predict(next)
	if err != nil {
		return nil, err
	}

	result := models.PredictionResult{
		PredictionDate: next.Date,
		PredictedSales: predicted,
		RollingMean7:   next.Rolling[7].Mean,
		RollingMean14:  next.Rolling[14].Mean,
		BasedOnDate:    rows[len(rows)-1].Date,
	}

	if err := p.sink.SavePrediction(ctx, result); err != nil {
		return nil, err
	}
	if _, err := p.sink.UpdateActualSales(ctx); err != nil {
		return nil, err
	}

	p.logger.Info().
		Str("date", result.PredictionDate.Format("2006-01-02")).
		Float64("predicted_sales", result.PredictedSales).
		Float64("rolling_mean_7", result.RollingMean7).
		Float64("rolling_mean_14", result.RollingMean14).
		Msg("Prediction complete")

	return &result, nil
}
