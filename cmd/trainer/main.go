// The trainer binary fits the sales model from a historical CSV export
// and persists the model and encoder artifacts for the predictor. The
// export uses the offline success semantics: only successful orders
// count into daily sales.
package main

import (
	"flag"
	"os"
	"sort"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/osiris-sg/sugarcane-backend/internal/aggregate"
	"github.com/osiris-sg/sugarcane-backend/internal/config"
	"github.com/osiris-sg/sugarcane-backend/internal/features"
	"github.com/osiris-sg/sugarcane-backend/internal/forecaster"
	"github.com/osiris-sg/sugarcane-backend/internal/formatter"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}
}

func main() {
	dataPath := flag.String("data", "training_data.csv", "historical order export to train on")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("loading config failed")
	}
	// Training data always uses the success-only aggregation policy.
	cfg.SuccessOnly = true

	lvl, _ := zerolog.ParseLevel(cfg.LogLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(lvl)

	raw, err := formatter.LoadCSV(*dataPath)
	if err != nil {
		log.Fatal().Err(err).Msg("loading training data failed")
	}
	log.Info().Int("orders", len(raw)).Str("file", *dataPath).Msg("Loaded training data")

	orders := formatter.New(cfg.ExcludedMachines).Format(raw)
	log.Info().Int("orders", len(orders)).Msg("After filtering")

	agg := aggregate.New(cfg.DayBoundary, aggregate.Policy{SuccessOnly: true})
	buckets := agg.Aggregate(orders)
	if len(buckets) == 0 {
		log.Fatal().Msg("no daily buckets in training data")
	}
	log.Info().
		Int("days", len(buckets)).
		Str("from", buckets[0].Date.Format("2006-01-02")).
		Str("to", buckets[len(buckets)-1].Date.Format("2006-01-02")).
		Msg("Aggregated to daily totals")

	builder := features.NewBuilder(cfg.RollingWindows, cfg.LagOffsets)
	rows := builder.Build(buckets)

	fc := forecaster.New(cfg, builder)
	if err := fc.Train(rows); err != nil {
		log.Fatal().Err(err).Msg("training failed")
	}

	logImportances(fc)
}

// logImportances reports the ten most important feature columns of the
// fitted forest.
func logImportances(fc *forecaster.Forecaster) {
	names, importances, err := fc.FeatureImportances()
	if err != nil {
		log.Warn().Err(err).Msg("feature importances unavailable")
		return
	}

	type pair struct {
		name  string
		value float64
	}
	pairs := make([]pair, len(names))
	for i := range names {
		pairs[i] = pair{names[i], importances[i]}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].value > pairs[j].value })

	if len(pairs) > 10 {
		pairs = pairs[:10]
	}
	for _, p := range pairs {
		log.Info().Str("feature", p.name).Float64("importance", p.value).Msg("Feature importance")
	}
}
