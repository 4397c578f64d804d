package formatter

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/osiris-sg/sugarcane-backend/models"
)

var excluded = []string{"852298", "852308", "852309", "852311"}

func TestMapOutcome(t *testing.T) {
	tests := []struct {
		raw  string
		want models.Outcome
	}{
		{"true", models.OutcomeSuccess},
		{"1", models.OutcomeSuccess},
		{"Success", models.OutcomeSuccess},
		{"成功", models.OutcomeSuccess},
		{"false", models.OutcomeFailed},
		{"0", models.OutcomeFailed},
		{"", models.OutcomeFailed},
		{"garbage", models.OutcomeFailed},
	}

	for _, tt := range tests {
		if got := mapOutcome(tt.raw); got != tt.want {
			t.Errorf("mapOutcome(%q): want %s, got %s", tt.raw, tt.want, got)
		}
	}
}

func TestFormatFillsNulls(t *testing.T) {
	f := New(excluded)

	records := f.Format([]models.RawOrder{
		{MachineID: "852300", LogTime: time.Now(), Success: "true"},
	})

	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	r := records[0]
	if r.Dispensed != 0 || r.QuantityOrdered != 0 || r.ErrorCode != 0 {
		t.Errorf("numeric fields not zero-filled: %+v", r)
	}
	if !r.Amount.Equal(decimal.Zero) || !r.Refund.Equal(decimal.Zero) {
		t.Errorf("decimal fields not zero-filled: %+v", r)
	}
}

func TestFormatKeepsValues(t *testing.T) {
	f := New(excluded)
	amount := decimal.NewFromFloat(3.5)
	dispensed := int64(2)
	errCode := int64(9)

	records := f.Format([]models.RawOrder{
		{
			MachineID: "852300",
			LogTime:   time.Now(),
			Success:   "false",
			Amount:    &amount,
			Dispensed: &dispensed,
			ErrorCode: &errCode,
		},
	})

	r := records[0]
	if r.Outcome != models.OutcomeFailed {
		t.Errorf("outcome: want Failed, got %s", r.Outcome)
	}
	if r.Dispensed != 2 || r.ErrorCode != 9 || !r.Amount.Equal(amount) {
		t.Errorf("values not carried through: %+v", r)
	}
}

func TestFormatDropsExcludedMachines(t *testing.T) {
	f := New(excluded)

	records := f.Format([]models.RawOrder{
		{MachineID: "852298", LogTime: time.Now(), Success: "true"},
		{MachineID: "852311", LogTime: time.Now(), Success: "true"},
		{MachineID: "852300", LogTime: time.Now(), Success: "true"},
	})

	if len(records) != 1 {
		t.Fatalf("expected 1 record after exclusion, got %d", len(records))
	}
	if records[0].MachineID != "852300" {
		t.Errorf("wrong machine survived: %s", records[0].MachineID)
	}
}

func TestFormatSortsByLogTime(t *testing.T) {
	f := New(nil)
	base := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)

	records := f.Format([]models.RawOrder{
		{MachineID: "m1", LogTime: base.Add(2 * time.Hour), Success: "true"},
		{MachineID: "m1", LogTime: base, Success: "true"},
		{MachineID: "m1", LogTime: base.Add(time.Hour), Success: "true"},
	})

	for i := 1; i < len(records); i++ {
		if records[i].LogTime.Before(records[i-1].LogTime) {
			t.Fatal("records not sorted by log time")
		}
	}
}
