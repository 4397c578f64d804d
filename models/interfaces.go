package models

import "context"

// OrderSource yields raw order records within a rolling historical window.
type OrderSource interface {
	FetchOrders(ctx context.Context, days int) ([]RawOrder, error)
}

// DeviceSource lists the active machines registered on the platform.
type DeviceSource interface {
	FetchActiveDevices(ctx context.Context) ([]Device, error)
}

// PredictionSink persists forecasts and backfills actual sales.
type PredictionSink interface {
	SavePrediction(ctx context.Context, p PredictionResult) error
	UpdateActualSales(ctx context.Context) (int64, error)
}
