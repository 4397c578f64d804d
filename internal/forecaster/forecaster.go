// Package forecaster owns the model lifecycle: load persisted artifacts
// when they exist, otherwise train a fresh forest and persist it, then
// serve next-day predictions from the shared feature/encoder pipeline.
package forecaster

import (
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/osiris-sg/sugarcane-backend/internal/config"
	"github.com/osiris-sg/sugarcane-backend/internal/encoder"
	"github.com/osiris-sg/sugarcane-backend/internal/features"
	"github.com/osiris-sg/sugarcane-backend/internal/forest"
	"github.com/osiris-sg/sugarcane-backend/models"
)

// ErrNotReady is returned when Predict is called before a model has been
// loaded or trained.
var ErrNotReady = errors.New("forecaster: no model loaded")

// ErrNoTrainingData is returned when training is requested on an empty
// feature set.
var ErrNoTrainingData = errors.New("forecaster: no training rows")

// Forecaster trains or loads the sales model and runs inference. The
// encoder fitted at training time travels with the model so prediction
// matrices stay column-aligned with the training matrix.
type Forecaster struct {
	cfg     *config.Config
	builder *features.Builder
	logger  zerolog.Logger

	model *forest.Forest
	enc   *encoder.OneHot
}

// New creates an unfitted forecaster.
func New(cfg *config.Config, builder *features.Builder) *Forecaster {
	return &Forecaster{
		cfg:     cfg,
		builder: builder,
		logger:  log.With().Str("component", "forecaster").Logger(),
	}
}

// LoadOrTrain loads persisted model and encoder artifacts when both
// exist, and trains from the given rows otherwise. Missing artifacts are
// the normal first-run case, not an error.
func (f *Forecaster) LoadOrTrain(rows []models.FeatureRow) error {
	if artifactsExist(f.cfg.ModelPath, f.cfg.EncoderPath) {
		if err := f.Load(); err != nil {
			return err
		}
		f.logger.Info().Msg("Loaded existing model")
		return nil
	}
	return f.Train(rows)
}

// Load reads the persisted model and encoder verbatim, no retraining.
func (f *Forecaster) Load() error {
	var model forest.Forest
	if err := loadGob(f.cfg.ModelPath, &model); err != nil {
		return fmt.Errorf("loading model: %w", err)
	}
	var enc encoder.OneHot
	if err := loadGob(f.cfg.EncoderPath, &enc); err != nil {
		return fmt.Errorf("loading encoder: %w", err)
	}
	f.model = &model
	f.enc = &enc
	return nil
}

// Train fits the encoder and a fresh forest on the full available
// feature set, then persists both artifacts for reuse by future runs.
// Fewer rows than the configured minimum degrades accuracy but is not
// fatal.
func (f *Forecaster) Train(rows []models.FeatureRow) error {
	if len(rows) == 0 {
		return ErrNoTrainingData
	}
	if len(rows) < f.cfg.MinTrainRows {
		f.logger.Warn().
			Int("rows", len(rows)).
			Int("min", f.cfg.MinTrainRows).
			Msg("Only a small sample available for training")
	}
	f.logger.Info().Int("rows", len(rows)).Msg("Training new model")

	cats := make([][]string, len(rows))
	for i, r := range rows {
		cats[i] = f.builder.CategoricalVector(r)
	}
	enc, err := encoder.Fit(f.builder.CategoricalColumns(), cats)
	if err != nil {
		return fmt.Errorf("fitting encoder: %w", err)
	}

	x := make([][]float64, len(rows))
	y := make([]float64, len(rows))
	for i, r := range rows {
		vec, err := featureVector(f.builder, enc, r)
		if err != nil {
			return err
		}
		x[i] = vec
		y[i] = float64(r.DailySales)
	}

	model, err := forest.Fit(x, y, forest.Config{
		Trees: f.cfg.TreeCount,
		Seed:  f.cfg.RandomSeed,
	})
	if err != nil {
		return fmt.Errorf("fitting model: %w", err)
	}

	if err := saveGob(f.cfg.ModelPath, model); err != nil {
		return fmt.Errorf("saving model: %w", err)
	}
	if err := saveGob(f.cfg.EncoderPath, enc); err != nil {
		return fmt.Errorf("saving encoder: %w", err)
	}

	f.model = model
	f.enc = enc
	f.logger.Info().
		Str("model", f.cfg.ModelPath).
		Str("encoder", f.cfg.EncoderPath).
		Msg("Model saved")
	return nil
}

// Predict runs inference on one feature row. Negative predictions are
// clamped to zero; the aggregate forecast stays continuous.
func (f *Forecaster) Predict(row models.FeatureRow) (float64, error) {
	if f.model == nil || f.enc == nil {
		return 0, ErrNotReady
	}
	vec, err := featureVector(f.builder, f.enc, row)
	if err != nil {
		return 0, err
	}
	pred := f.model.Predict(vec)
	if pred < 0 {
		pred = 0
	}
	return pred, nil
}

// FeatureImportances pairs every matrix column with its normalized
// importance from the fitted forest.
func (f *Forecaster) FeatureImportances() ([]string, []float64, error) {
	if f.model == nil || f.enc == nil {
		return nil, nil, ErrNotReady
	}
	names := append(f.builder.NumericColumns(), f.enc.FeatureNames()...)
	return names, f.model.Importances, nil
}

// featureVector concatenates the numeric block with the one-hot block in
// the fixed fit-time order. Any residual NaN is filled with 0.
func featureVector(b *features.Builder, enc *encoder.OneHot, r models.FeatureRow) ([]float64, error) {
	vec := b.NumericVector(r)
	for i, v := range vec {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			vec[i] = 0
		}
	}
	block, err := enc.Transform(b.CategoricalVector(r))
	if err != nil {
		return nil, fmt.Errorf("encoding categoricals: %w", err)
	}
	return append(vec, block...), nil
}

func artifactsExist(paths ...string) bool {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}

func saveGob(path string, v any) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	if err := gob.NewEncoder(file).Encode(v); err != nil {
		return err
	}
	return file.Close()
}

func loadGob(path string, v any) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return gob.NewDecoder(file).Decode(v)
}
