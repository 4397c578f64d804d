package formatter

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/osiris-sg/sugarcane-backend/models"
)

// Header names used by the historical order exports.
const (
	csvColMachine   = "TerminalId"
	csvColTime      = "CreateTime"
	csvColSuccess   = "IsSuccess"
	csvColAmount    = "PayAmount"
	csvColDispensed = "DeliverCount"
	csvColRefund    = "RefundAmount"
	csvColFault     = "Fault"
)

var csvTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006/01/02 15:04:05",
}

// LoadCSV reads a historical order export. Cell-level parse failures are
// left as nil so the formatter can fill them; a row with an unparseable
// timestamp is skipped because it cannot be bucketed at all.
func LoadCSV(path string) ([]models.RawOrder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening training data: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	if _, ok := col[csvColTime]; !ok {
		return nil, fmt.Errorf("training data missing %q column", csvColTime)
	}

	var orders []models.RawOrder
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV row: %w", err)
		}

		ts, ok := parseCSVTime(cell(row, col, csvColTime))
		if !ok {
			continue
		}

		orders = append(orders, models.RawOrder{
			MachineID: cell(row, col, csvColMachine),
			LogTime:   ts,
			Success:   cell(row, col, csvColSuccess),
			Amount:    parseDecimal(cell(row, col, csvColAmount)),
			Dispensed: parseInt(cell(row, col, csvColDispensed)),
			Refund:    parseDecimal(cell(row, col, csvColRefund)),
			ErrorCode: parseInt(cell(row, col, csvColFault)),
		})
	}

	return orders, nil
}

func cell(row []string, col map[string]int, name string) string {
	i, ok := col[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func parseCSVTime(s string) (time.Time, bool) {
	for _, layout := range csvTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseDecimal(s string) *decimal.Decimal {
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	return &d
}

func parseInt(s string) *int64 {
	if s == "" {
		return nil
	}
	// Exports occasionally carry integer columns as "3.0".
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		n := int64(f)
		return &n
	}
	return nil
}
