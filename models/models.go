package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Outcome is the normalized result of a vending transaction.
type Outcome string

const (
	OutcomeSuccess Outcome = "Success"
	OutcomeFailed  Outcome = "Failed"
)

// RawOrder is one order row as it comes out of storage or a CSV export,
// before any normalization. Numeric fields are pointers so that missing
// values survive until the formatter fills them.
type RawOrder struct {
	OrderID         string
	MachineID       string
	DeviceName      string
	LogTime         time.Time
	Success         string // raw representation: "true", "1", "Success", "成功", ...
	PaymentMode     string
	Amount          *decimal.Decimal
	QuantityOrdered *int64
	Dispensed       *int64
	Refund          *decimal.Decimal
	ErrorCode       *int64
}

// OrderRecord is a normalized transaction. Every numeric field is
// guaranteed non-null after formatting.
type OrderRecord struct {
	OrderID         string
	MachineID       string
	DeviceName      string
	LogTime         time.Time
	Outcome         Outcome
	PaymentMode     string
	Amount          decimal.Decimal
	QuantityOrdered int64
	Dispensed       int64
	Refund          decimal.Decimal
	ErrorCode       int64
}

// DailyBucket is one shifted accounting day of fleet activity.
// Date values are unique within a series and sorted ascending.
type DailyBucket struct {
	Date           time.Time
	DailySales     int64
	Transactions   int64
	TotalAmount    decimal.Decimal
	TotalRefund    decimal.Decimal
	ErrorCount     int64
	ActiveMachines int64
}

// RollingStat holds a trailing-window mean and standard deviation.
type RollingStat struct {
	Mean float64
	Std  float64
}

// FeatureRow is a DailyBucket extended with calendar, rolling and lag
// features. Rolling and lag values are always present for every window
// and offset the builder was configured with, never NaN.
type FeatureRow struct {
	DailyBucket

	Day       int
	Weekday   int // 0=Monday .. 6=Sunday
	Month     int
	IsWeekend bool

	Rolling   map[int]RollingStat
	Lag       map[int]float64
	ErrorRate float64
}

// PredictionResult is the output of one pipeline run. It is written once
// and never mutated; actual sales are filled in later by a separate pass.
type PredictionResult struct {
	PredictionDate time.Time
	PredictedSales float64
	RollingMean7   float64
	RollingMean14  float64
	BasedOnDate    time.Time
}

// Device is an active vending machine as registered on the platform.
type Device struct {
	DeviceID   string
	DeviceName string
}

// MachineRow is one day of sales for one device, the input unit of the
// per-machine prediction interface.
type MachineRow struct {
	DeviceID string  `json:"device_id"`
	Date     string  `json:"date"`
	Sold     float64 `json:"sold"`
}

// MachineRequest is the single-shot per-machine prediction request.
type MachineRequest struct {
	ModelPath      string       `json:"model_path"`
	HistoricalData []MachineRow `json:"historical_data"`
	PredictDate    string       `json:"predict_date,omitempty"`
}

// MachinePrediction is the forecast for a single device.
type MachinePrediction struct {
	DeviceID  string `json:"device_id"`
	LastDate  string `json:"last_date"`
	LastSold  int64  `json:"last_sold"`
	Predicted int64  `json:"predicted"`
}

// MachineResponse is the single-shot per-machine prediction response.
// On failure Success is false and Error carries the cause; Trace is only
// populated in debug contexts.
type MachineResponse struct {
	Success        bool                `json:"success"`
	PredictDate    string              `json:"predict_date,omitempty"`
	BasedOnDate    string              `json:"based_on_date,omitempty"`
	TotalPredicted int64               `json:"total_predicted"`
	Machines       int                 `json:"machines"`
	Predictions    []MachinePrediction `json:"predictions_per_machine,omitempty"`
	Error          string              `json:"error,omitempty"`
	Trace          string              `json:"trace,omitempty"`
}
