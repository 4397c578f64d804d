// Package database is the Postgres adapter for the forecasting pipeline:
// it reads the rolling order window and writes predictions back. Orders
// and devices are owned by the platform; only the prediction table is
// created here.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/osiris-sg/sugarcane-backend/models"
)

// DB represents a database connection
type DB struct {
	*sql.DB
	logger zerolog.Logger
}

// ConnectionParams holds PostgreSQL connection parameters
type ConnectionParams struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// New creates a new database connection. The initial ping is retried
// with exponential backoff so a short database hiccup at the scheduled
// run time does not kill the run; once connected, failures propagate.
func New(params ConnectionParams) (*DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		params.Host, params.Port, params.User, params.Password, params.DBName, params.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	backoffStrategy := backoff.NewExponentialBackOff()
	backoffStrategy.MaxElapsedTime = 30 * time.Second
	if err := backoff.Retry(db.Ping, backoffStrategy); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if err := createTables(db); err != nil {
		return nil, err
	}

	return &DB{
		DB:     db,
		logger: log.With().Str("component", "database").Logger(),
	}, nil
}

// createTables creates the prediction table if it doesn't exist
func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS "SalesPrediction" (
			id TEXT PRIMARY KEY,
			"predictionDate" DATE NOT NULL UNIQUE,
			"predictedSales" DOUBLE PRECISION NOT NULL,
			"rollingMean7" DOUBLE PRECISION,
			"rollingMean14" DOUBLE PRECISION,
			"actualSales" DOUBLE PRECISION,
			"createdAt" TIMESTAMP NOT NULL,
			"updatedAt" TIMESTAMP NOT NULL
		)
	`)
	return err
}

// FetchOrders returns all orders within the last N shifted accounting
// days. The window edges sit on the 14:30 UTC (22:30 SGT) boundary.
// Ascending time order is not guaranteed by contract; the formatter
// sorts internally.
func (db *DB) FetchOrders(ctx context.Context, days int) ([]models.RawOrder, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT
			"orderId",
			"deviceId",
			COALESCE("deviceName", ''),
			"createdAt",
			"isSuccess",
			COALESCE("payWay", ''),
			"payAmount",
			"quantity",
			"deliverCount",
			"refundAmount"
		FROM "Order"
		WHERE "createdAt" >= (CURRENT_DATE - $1 * INTERVAL '1 day' + TIME '14:30:00')
		  AND "createdAt" < (CURRENT_DATE + TIME '14:30:00')
		ORDER BY "createdAt" ASC
	`, days)
	if err != nil {
		return nil, fmt.Errorf("querying orders: %w", err)
	}
	defer rows.Close()

	var orders []models.RawOrder
	for rows.Next() {
		var (
			o         models.RawOrder
			isSuccess bool
			amount    sql.NullString
			quantity  sql.NullInt64
			dispensed sql.NullInt64
			refund    sql.NullString
		)
		if err := rows.Scan(
			&o.OrderID, &o.MachineID, &o.DeviceName, &o.LogTime,
			&isSuccess, &o.PaymentMode, &amount, &quantity, &dispensed, &refund,
		); err != nil {
			return nil, fmt.Errorf("scanning order: %w", err)
		}

		if isSuccess {
			o.Success = "true"
		} else {
			o.Success = "false"
		}
		o.Amount = nullDecimal(amount)
		o.Refund = nullDecimal(refund)
		if quantity.Valid {
			o.QuantityOrdered = &quantity.Int64
		}
		if dispensed.Valid {
			o.Dispensed = &dispensed.Int64
		}

		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating orders: %w", err)
	}

	db.logger.Debug().Int("count", len(orders)).Int("days", days).Msg("Fetched orders")
	return orders, nil
}

// FetchActiveDevices lists machines currently active on the platform.
func (db *DB) FetchActiveDevices(ctx context.Context) ([]models.Device, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT "deviceId", COALESCE("deviceName", '')
		FROM "Device"
		WHERE "isActive" = true
	`)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []models.Device
	for rows.Next() {
		var d models.Device
		if err := rows.Scan(&d.DeviceID, &d.DeviceName); err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

// SavePrediction upserts the forecast row keyed by prediction date, so
// an accidental second run for the same day updates instead of
// duplicating.
func (db *DB) SavePrediction(ctx context.Context, p models.PredictionResult) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO "SalesPrediction" (
			id, "predictionDate", "predictedSales",
			"rollingMean7", "rollingMean14",
			"createdAt", "updatedAt"
		) VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT ("predictionDate")
		DO UPDATE SET
			"predictedSales" = EXCLUDED."predictedSales",
			"rollingMean7" = EXCLUDED."rollingMean7",
			"rollingMean14" = EXCLUDED."rollingMean14",
			"updatedAt" = NOW()
	`, uuid.NewString(), p.PredictionDate, p.PredictedSales, p.RollingMean7, p.RollingMean14)
	if err != nil {
		return fmt.Errorf("saving prediction: %w", err)
	}

	db.logger.Info().
		Str("date", p.PredictionDate.Format("2006-01-02")).
		Float64("predicted_sales", p.PredictedSales).
		Msg("Saved prediction")
	return nil
}

// UpdateActualSales backfills actual sales onto past prediction rows
// whose outcome is now known, matched by shifted date and only where the
// field is still unset. Actuals count successful orders only.
func (db *DB) UpdateActualSales(ctx context.Context) (int64, error) {
	res, err := db.ExecContext(ctx, `
		UPDATE "SalesPrediction" sp
		SET "actualSales" = subq.actual_sales
		FROM (
			SELECT
				DATE("createdAt" - INTERVAL '14 hours 30 minutes') + 1 AS sale_date,
				SUM("deliverCount") AS actual_sales
			FROM "Order"
			WHERE "isSuccess" = true
			GROUP BY DATE("createdAt" - INTERVAL '14 hours 30 minutes') + 1
		) subq
		WHERE DATE(sp."predictionDate") = subq.sale_date
		  AND sp."actualSales" IS NULL
	`)
	if err != nil {
		return 0, fmt.Errorf("updating actual sales: %w", err)
	}

	updated, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	db.logger.Info().Int64("updated", updated).Msg("Updated predictions with actual sales")
	return updated, nil
}

func nullDecimal(s sql.NullString) *decimal.Decimal {
	if !s.Valid {
		return nil
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return nil
	}
	return &d
}
