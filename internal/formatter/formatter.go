// Package formatter normalizes raw order rows into the shape the feature
// pipeline expects. Formatting never fails on an individual row: coercion
// failures become zero values and unrecognized outcomes become Failed.
package formatter

import (
	"sort"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/osiris-sg/sugarcane-backend/models"
)

// successForms maps every accepted success representation to the Success
// outcome. The boolean forms come from the live order store; the locale
// string forms appear in historical CSV exports.
var successForms = map[string]struct{}{
	"true":    {},
	"1":       {},
	"Success": {},
	"成功":      {},
}

// Formatter normalizes raw orders and drops excluded machines.
type Formatter struct {
	excluded map[string]struct{}
	logger   zerolog.Logger
}

// New creates a formatter that drops the given machine identifiers.
func New(excludedMachines []string) *Formatter {
	excluded := make(map[string]struct{}, len(excludedMachines))
	for _, id := range excludedMachines {
		excluded[id] = struct{}{}
	}
	return &Formatter{
		excluded: excluded,
		logger:   log.With().Str("component", "formatter").Logger(),
	}
}

// Format normalizes raw rows into order records sorted by log time.
// Rows from excluded machines are dropped; everything else survives with
// nulls filled and the success flag mapped to an outcome.
func (f *Formatter) Format(raw []models.RawOrder) []models.OrderRecord {
	records := make([]models.OrderRecord, 0, len(raw))
	dropped := 0

	for _, r := range raw {
		if _, ok := f.excluded[r.MachineID]; ok {
			dropped++
			continue
		}

		rec := models.OrderRecord{
			OrderID:     r.OrderID,
			MachineID:   r.MachineID,
			DeviceName:  r.DeviceName,
			LogTime:     r.LogTime,
			Outcome:     mapOutcome(r.Success),
			PaymentMode: r.PaymentMode,
			Amount:      decimal.Zero,
			Refund:      decimal.Zero,
		}
		if r.Amount != nil {
			rec.Amount = *r.Amount
		}
		if r.Refund != nil {
			rec.Refund = *r.Refund
		}
		if r.QuantityOrdered != nil {
			rec.QuantityOrdered = *r.QuantityOrdered
		}
		if r.Dispensed != nil {
			rec.Dispensed = *r.Dispensed
		}
		if r.ErrorCode != nil {
			rec.ErrorCode = *r.ErrorCode
		}

		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].LogTime.Before(records[j].LogTime)
	})

	f.logger.Debug().
		Int("formatted", len(records)).
		Int("excluded", dropped).
		Msg("Formatted orders")

	return records
}

func mapOutcome(raw string) models.Outcome {
	if _, ok := successForms[raw]; ok {
		return models.OutcomeSuccess
	}
	return models.OutcomeFailed
}
