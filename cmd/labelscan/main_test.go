package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleLabels = "Customer Address\n" +
	"Meera Iyer, 9 Beach Road, Chennai, Tamil Nadu 600001, phone 9000000000\n" +
	"Ecom Express\n" +
	"Product Details\n" +
	"SKU Size Qty Color Order No.\n" +
	"LEHENGA-GLD Free Size 1 Gold 8801_1\n" +
	"TAX INVOICE\n" +
	"Customer Address\n" +
	"Rohit Das, 4 Lake Town, Kolkata, West Bengal 700089, phone 9000000001\n" +
	"Delhivery\n" +
	"Product Details\n" +
	"SKU Size Qty Color Order No.\n" +
	"KURTI-BLU Free Size 2 Blue 8802_1\n" +
	"TAX INVOICE\n"

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "labels.txt")
	if err := os.WriteFile(path, []byte(sampleLabels), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun_PrintsLabels(t *testing.T) {
	path := writeSample(t)
	xlsx := filepath.Join(t.TempDir(), "out.xlsx")

	var stdout, stderr bytes.Buffer
	code := run([]string{"-sort", "partner", "-xlsx", xlsx, path}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}

	var rep struct {
		Pages  int `json:"pages"`
		Labels []struct {
			LabelNumber     int    `json:"labelNumber"`
			SKU             string `json:"sku"`
			DeliveryPartner string `json:"deliveryPartner"`
		} `json:"labels"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &rep); err != nil {
		t.Fatalf("decode output: %v\n%s", err, stdout.String())
	}
	if rep.Pages != 1 || len(rep.Labels) != 2 {
		t.Fatalf("unexpected report %+v", rep)
	}
	if rep.Labels[0].DeliveryPartner != "Delhivery" || rep.Labels[0].LabelNumber != 2 {
		t.Errorf("expected Delhivery first, got %+v", rep.Labels)
	}
	if info, err := os.Stat(xlsx); err != nil || info.Size() == 0 {
		t.Errorf("xlsx not written: %v", err)
	}
}

func TestRun_Usage(t *testing.T) {
	tests := [][]string{
		nil,
		{"a.txt", "b.txt"},
		{"-sort", "sku", "a.txt"},
		{"-bogus"},
	}
	for _, args := range tests {
		var stdout, stderr bytes.Buffer
		if code := run(args, &stdout, &stderr); code != 2 {
			t.Errorf("run(%q): expected exit 2, got %d", args, code)
		}
	}
}

func TestRun_Errors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "broken.pdf")
	if err := os.WriteFile(bad, []byte("not a pdf"), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, args := range [][]string{
		{filepath.Join(dir, "missing.txt")},
		{"-pdftotext=false", bad},
	} {
		var stdout, stderr bytes.Buffer
		if code := run(args, &stdout, &stderr); code != 1 {
			t.Errorf("run(%q): expected exit 1, got %d", args, code)
		}
		if !strings.HasPrefix(stderr.String(), "labelscan:") {
			t.Errorf("run(%q): expected error on stderr, got %q", args, stderr.String())
		}
	}
}
