// Package export renders extracted labels as spreadsheets.
package export

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/dgallion1/labelgest/internal/extract"
)

// SheetName is the worksheet that holds the label rows.
const SheetName = "Labels"

var headers = []string{
	"Label No.",
	"SKU",
	"Order ID",
	"Quantity",
	"Delivery Partner",
	"Valid",
	"Errors",
}

var columnWidths = []struct {
	from, to string
	width    float64
}{
	{"A", "A", 10}, // label no.
	{"B", "C", 24}, // sku, order id
	{"D", "D", 10}, // quantity
	{"E", "E", 18}, // partner
	{"F", "F", 8},  // valid
	{"G", "G", 40}, // errors
}

// LabelsXLSX returns an XLSX workbook (as bytes) with one row per label, in
// the order given.
func LabelsXLSX(labels []extract.ValidatedLabel, log *slog.Logger) ([]byte, error) {
	if log == nil {
		log = slog.Default()
	}
	start := time.Now()

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	for i, h := range headers {
		if err := setCell(f, i+1, 1, h); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}
	if err := f.SetRowStyle(SheetName, 1, 1, bold); err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}

	for i, l := range labels {
		values := []any{
			l.LabelNumber,
			l.SKU,
			l.OrderID,
			l.Quantity,
			l.DeliveryPartner,
			yesNo(l.Validation.IsValid),
			strings.Join(l.Validation.Errors, "; "),
		}
		for col, v := range values {
			if err := setCell(f, col+1, i+2, v); err != nil {
				return nil, fmt.Errorf("write label %d: %w", l.LabelNumber, err)
			}
		}
	}

	for _, w := range columnWidths {
		if err := f.SetColWidth(SheetName, w.from, w.to, w.width); err != nil {
			return nil, fmt.Errorf("column width %s: %w", w.from, err)
		}
	}
	if err := f.SetPanes(SheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return nil, fmt.Errorf("freeze header: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	log.Info("export.xlsx.ok",
		"rows", len(labels),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func setCell(f *excelize.File, col, row int, v any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(SheetName, cell, v)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
