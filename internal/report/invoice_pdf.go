// Package report renders downloadable documents.
package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/phpdave11/gofpdf"

	"pennywise/internal/core"
)

const dateLayout = "Jan 2, 2006"

// InvoicePDF renders inv as a single A4 document. Lines flow onto further
// pages as needed.
func InvoicePDF(inv core.Invoice, user core.User, issued time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Pennywise Invoice", true)
	pdf.SetAuthor("Pennywise", true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "Invoice")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 6, tr(fmt.Sprintf("Billed to: %s", user.DisplayName())))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Issued: %s", issued.Format(dateLayout)))
	pdf.Ln(6)
	pdf.Cell(0, 6, tr(fmt.Sprintf("Currency: %s (%s)", inv.Currency.Name, inv.Currency.Code)))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(35, 8, "Date", "B", 0, "L", false, 0, "")
	pdf.CellFormat(105, 8, "Description", "B", 0, "L", false, 0, "")
	pdf.CellFormat(40, 8, "Amount", "B", 0, "R", false, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 11)
	if len(inv.Lines) == 0 {
		pdf.Cell(0, 7, "No expenses recorded.")
		pdf.Ln(7)
	}
	for _, l := range inv.Lines {
		pdf.CellFormat(35, 7, l.CreatedAt.Format(dateLayout), "", 0, "L", false, 0, "")
		pdf.CellFormat(105, 7, tr(l.Title), "", 0, "L", false, 0, "")
		pdf.CellFormat(40, 7, inv.FormatLine(l), "", 0, "R", false, 0, "")
		pdf.Ln(7)
	}

	pdf.Ln(3)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(140, 9, "Total", "T", 0, "L", false, 0, "")
	pdf.CellFormat(40, 9, tr(inv.FormattedTotal()), "T", 0, "R", false, 0, "")
	pdf.Ln(9)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render invoice pdf: %w", err)
	}
	return buf.Bytes(), nil
}
