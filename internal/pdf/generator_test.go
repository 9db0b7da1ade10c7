package pdf

import (
	"bytes"
	"testing"
	"time"
)

func TestFormatEuro(t *testing.T) {
	cases := map[int64]string{
		0:         "€ 0,00",
		5:         "€ 0,05",
		15125:     "€ 151,25",
		123456789: "€ 1.234.567,89",
		-2500:     "-€ 25,00",
	}
	for in, want := range cases {
		if got := FormatEuro(in); got != want {
			t.Fatalf("FormatEuro(%d): expected %q, got %q", in, want, got)
		}
	}
}

func TestFormatQuantity(t *testing.T) {
	cases := map[float64]string{
		2:     "2",
		2.5:   "2,5",
		0.125: "0,125",
		21:    "21",
	}
	for in, want := range cases {
		if got := FormatQuantity(in); got != want {
			t.Fatalf("FormatQuantity(%v): expected %q, got %q", in, want, got)
		}
	}
}

func TestGenerateQuotePDF(t *testing.T) {
	notes := "Inclusief voorrijkosten & afvoer"
	expires := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	out, err := GenerateQuotePDF(QuotePDFData{
		QuoteNumber: "OFF-2026-0001",
		Status:      "sent",
		CreatedAt:   time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		ExpiresAt:   &expires,
		Notes:       &notes,
		ClientName:  "Jan de Vries",
		Items: []QuotePDFItem{
			{Description: "Installatie", Quantity: 2, UnitPriceCents: 5000, LineTotalCents: 10000},
			{Description: "Materiaal", Quantity: 1, UnitPriceCents: 2500, LineTotalCents: 2500},
		},
		SubtotalCents:  12500,
		TaxRate:        21,
		TaxAmountCents: 2625,
		TotalCents:     15125,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		t.Fatalf("output is not a PDF")
	}
}
