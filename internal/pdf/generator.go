// Package pdf renders quote documents with gofpdf. Core fonts are used with a
// cp1252 translator, which covers Dutch text and the euro sign.
package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// QuotePDFData holds all data needed to generate a quote PDF.
type QuotePDFData struct {
	QuoteNumber string
	Status      string
	CreatedAt   time.Time
	ExpiresAt   *time.Time
	Notes       *string

	ClientName    string
	ClientCompany *string
	ClientEmail   *string
	ClientPhone   *string

	Items []QuotePDFItem

	SubtotalCents       int64
	TaxRate             float64
	TaxAmountCents      int64
	DiscountRate        float64
	DiscountAmountCents int64
	TotalCents          int64
}

// QuotePDFItem is one line in the PDF table.
type QuotePDFItem struct {
	Description    string
	Quantity       float64
	UnitPriceCents int64
	LineTotalCents int64
}

const (
	colDescription = 95.0
	colQuantity    = 20.0
	colUnitPrice   = 35.0
	colLineTotal   = 35.0
	fontFamily     = "Helvetica"
)

// GenerateQuotePDF renders the quote and returns the PDF bytes.
func GenerateQuotePDF(data QuotePDFData) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(tr("Offerte "+data.QuoteNumber), false)
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont(fontFamily, "B", 18)
	pdf.Cell(0, 10, tr("Offerte "+data.QuoteNumber))
	pdf.Ln(10)

	pdf.SetFont(fontFamily, "", 10)
	pdf.Cell(0, 5, "Datum: "+data.CreatedAt.Format("02-01-2006"))
	pdf.Ln(5)
	if data.ExpiresAt != nil {
		pdf.Cell(0, 5, "Geldig tot: "+data.ExpiresAt.Format("02-01-2006"))
		pdf.Ln(5)
	}
	pdf.Cell(0, 5, "Status: "+data.Status)
	pdf.Ln(9)

	writeClientBlock(pdf, tr, data)
	writeItemsTable(pdf, tr, data.Items)
	writeTotals(pdf, tr, data)

	if data.Notes != nil && strings.TrimSpace(*data.Notes) != "" {
		pdf.Ln(6)
		pdf.SetFont(fontFamily, "B", 10)
		pdf.Cell(0, 6, "Opmerkingen")
		pdf.Ln(6)
		pdf.SetFont(fontFamily, "", 10)
		pdf.MultiCell(0, 5, tr(*data.Notes), "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render quote pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func writeClientBlock(pdf *gofpdf.Fpdf, tr func(string) string, data QuotePDFData) {
	pdf.SetFont(fontFamily, "B", 11)
	pdf.Cell(0, 6, tr(data.ClientName))
	pdf.Ln(6)
	pdf.SetFont(fontFamily, "", 10)
	for _, line := range []*string{data.ClientCompany, data.ClientEmail, data.ClientPhone} {
		if line != nil && *line != "" {
			pdf.Cell(0, 5, tr(*line))
			pdf.Ln(5)
		}
	}
	pdf.Ln(6)
}

func writeItemsTable(pdf *gofpdf.Fpdf, tr func(string) string, items []QuotePDFItem) {
	pdf.SetFont(fontFamily, "B", 10)
	pdf.SetFillColor(241, 245, 249)
	pdf.CellFormat(colDescription, 7, "Omschrijving", "B", 0, "L", true, 0, "")
	pdf.CellFormat(colQuantity, 7, "Aantal", "B", 0, "R", true, 0, "")
	pdf.CellFormat(colUnitPrice, 7, "Prijs", "B", 0, "R", true, 0, "")
	pdf.CellFormat(colLineTotal, 7, "Totaal", "B", 1, "R", true, 0, "")

	pdf.SetFont(fontFamily, "", 10)
	for _, it := range items {
		pdf.CellFormat(colDescription, 6, tr(truncate(it.Description, 60)), "", 0, "L", false, 0, "")
		pdf.CellFormat(colQuantity, 6, FormatQuantity(it.Quantity), "", 0, "R", false, 0, "")
		pdf.CellFormat(colUnitPrice, 6, tr(FormatEuro(it.UnitPriceCents)), "", 0, "R", false, 0, "")
		pdf.CellFormat(colLineTotal, 6, tr(FormatEuro(it.LineTotalCents)), "", 1, "R", false, 0, "")
	}
	pdf.Ln(4)
}

func writeTotals(pdf *gofpdf.Fpdf, tr func(string) string, data QuotePDFData) {
	labelWidth := colDescription + colQuantity + colUnitPrice
	row := func(label string, cents int64, bold bool) {
		style := ""
		if bold {
			style = "B"
		}
		pdf.SetFont(fontFamily, style, 10)
		pdf.CellFormat(labelWidth, 6, tr(label), "", 0, "R", false, 0, "")
		pdf.CellFormat(colLineTotal, 6, tr(FormatEuro(cents)), "", 1, "R", false, 0, "")
	}

	row("Subtotaal", data.SubtotalCents, false)
	if data.DiscountAmountCents > 0 {
		row(fmt.Sprintf("Korting (%s%%)", FormatQuantity(data.DiscountRate)), -data.DiscountAmountCents, false)
	}
	row(fmt.Sprintf("BTW (%s%%)", FormatQuantity(data.TaxRate)), data.TaxAmountCents, false)
	row("Totaal", data.TotalCents, true)
}

// FormatEuro renders cents the Dutch way: € 1.234,56.
func FormatEuro(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	whole := cents / 100
	frac := cents % 100

	digits := fmt.Sprintf("%d", whole)
	var grouped strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(r)
	}
	return fmt.Sprintf("%s€ %s,%02d", sign, grouped.String(), frac)
}

// FormatQuantity drops trailing zeros and uses a decimal comma.
func FormatQuantity(q float64) string {
	s := strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.3f", q), "0"), ".")
	return strings.ReplaceAll(s, ".", ",")
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
