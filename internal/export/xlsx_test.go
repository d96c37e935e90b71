package export

import (
	"bytes"
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/dgallion1/labelgest/internal/extract"
)

func TestLabelsXLSX(t *testing.T) {
	labels := []extract.ValidatedLabel{
		{
			Label:      extract.Label{LabelNumber: 1, SKU: "KURTA-RED", OrderID: "4501_1", Quantity: 2, DeliveryPartner: "Delhivery"},
			Validation: extract.ValidationResult{IsValid: true},
		},
		{
			Label:      extract.Label{LabelNumber: 2, SKU: "SAREE-GRN", OrderID: "4502_1", Quantity: 0, DeliveryPartner: "Unknown"},
			Validation: extract.ValidationResult{Errors: []string{"Invalid quantity"}},
		},
	}

	data, err := LabelsXLSX(labels, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if !reflect.DeepEqual(rows[0], headers) {
		t.Errorf("unexpected header %v", rows[0])
	}
	want := []string{"1", "KURTA-RED", "4501_1", "2", "Delhivery", "yes"}
	if !reflect.DeepEqual(rows[1], want) {
		t.Errorf("row 1: expected %v, got %v", want, rows[1])
	}
	if rows[2][5] != "no" || rows[2][6] != "Invalid quantity" {
		t.Errorf("row 2: unexpected validation columns %v", rows[2])
	}

	if w, err := f.GetColWidth(SheetName, "G"); err != nil || w != 40 {
		t.Errorf("errors column width: got %v, %v", w, err)
	}
	panes, err := f.GetPanes(SheetName)
	if err != nil || !panes.Freeze || panes.YSplit != 1 {
		t.Errorf("header row not frozen: %+v, %v", panes, err)
	}
	styleID, err := f.GetCellStyle(SheetName, "A1")
	if err != nil {
		t.Fatalf("header style: %v", err)
	}
	style, err := f.GetStyle(styleID)
	if err != nil || style.Font == nil || !style.Font.Bold {
		t.Errorf("header not bold: %+v, %v", style, err)
	}
}

func TestLabelsXLSX_Empty(t *testing.T) {
	data, err := LabelsXLSX(nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	rows, _ := f.GetRows(SheetName)
	if len(rows) != 1 {
		t.Errorf("expected only the header row, got %d", len(rows))
	}
}
