package interfaces

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	billing "gas-billing/internal/billing/domain"
)

const dateLayout = "2006-01-02"

// BuildInvoicePDF renders a one page PDF for an invoice.
func BuildInvoicePDF(inv *billing.Invoice, currency string) ([]byte, error) {
	if inv == nil {
		return nil, billing.ErrNilInvoice
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 8, "Natural Gas Invoice")
	pdf.Ln(12)

	pdf.SetFont("Arial", "B", 11)
	pdf.Cell(0, 6, fmt.Sprintf("Invoice: %s", inv.Number))
	pdf.Ln(6)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("CUPS: %s", inv.CUPS))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Period: %s -> %s", inv.PeriodStart.Format(dateLayout), inv.PeriodEnd.Format(dateLayout)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Issue date: %s", inv.IssueDate.Format(dateLayout)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Energy (kWh): %s", inv.EnergyKWh.StringFixed(3)))
	pdf.Ln(10)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(70, 6, "Concept", "1", 0, "L", false, 0, "")
	pdf.CellFormat(35, 6, "Quantity", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Unit price", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, fmt.Sprintf("Amount (%s)", currency), "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, line := range inv.Lines {
		pdf.CellFormat(70, 6, line.Description, "1", 0, "L", false, 0, "")
		pdf.CellFormat(35, 6, line.Quantity.String(), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, line.UnitPrice.String(), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 6, line.Amount.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Base: %s %s", inv.Base.StringFixed(2), currency))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Tax: %s %s", inv.Tax.StringFixed(2), currency))
	pdf.Ln(6)
	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 6, fmt.Sprintf("Total: %s %s", inv.Total.StringFixed(2), currency))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildInvoiceXLSX renders a workbook with a summary and a lines sheet.
func BuildInvoiceXLSX(inv *billing.Invoice, currency string) ([]byte, error) {
	if inv == nil {
		return nil, billing.ErrNilInvoice
	}
	f := excelize.NewFile()
	defer f.Close()

	summarySheet := "summary"
	linesSheet := "lines"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(linesSheet); err != nil {
		return nil, err
	}

	summary := [][2]any{
		{"Invoice", inv.Number},
		{"CUPS", inv.CUPS},
		{"Period start", inv.PeriodStart.Format(dateLayout)},
		{"Period end", inv.PeriodEnd.Format(dateLayout)},
		{"Issue date", inv.IssueDate.Format(dateLayout)},
		{"Energy (kWh)", inv.EnergyKWh.InexactFloat64()},
		{"Base", inv.Base.InexactFloat64()},
		{"Tax", inv.Tax.InexactFloat64()},
		{"Total", inv.Total.InexactFloat64()},
		{"Currency", currency},
		{"Version", inv.Version},
	}
	for i, row := range summary {
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", i+1), row[0])
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", i+1), row[1])
	}

	_ = f.SetCellValue(linesSheet, "A1", "Type")
	_ = f.SetCellValue(linesSheet, "B1", "Description")
	_ = f.SetCellValue(linesSheet, "C1", "Quantity")
	_ = f.SetCellValue(linesSheet, "D1", "Unit price")
	_ = f.SetCellValue(linesSheet, "E1", "Amount")
	for i, line := range inv.Lines {
		row := i + 2
		_ = f.SetCellValue(linesSheet, fmt.Sprintf("A%d", row), string(line.Type))
		_ = f.SetCellValue(linesSheet, fmt.Sprintf("B%d", row), line.Description)
		_ = f.SetCellValue(linesSheet, fmt.Sprintf("C%d", row), line.Quantity.InexactFloat64())
		_ = f.SetCellValue(linesSheet, fmt.Sprintf("D%d", row), line.UnitPrice.InexactFloat64())
		_ = f.SetCellValue(linesSheet, fmt.Sprintf("E%d", row), line.Amount.InexactFloat64())
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var invoiceCSVHeader = []string{
	"number",
	"cups",
	"period_start",
	"period_end",
	"energy_kwh",
	"base",
	"tax",
	"total",
	"issue_date",
	"version",
}

// WriteInvoicesCSV writes one row per invoice after a header row.
func WriteInvoicesCSV(w io.Writer, invoices []billing.Invoice) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(invoiceCSVHeader); err != nil {
		return err
	}
	for _, inv := range invoices {
		if err := writer.Write([]string{
			inv.Number,
			inv.CUPS,
			inv.PeriodStart.Format(dateLayout),
			inv.PeriodEnd.Format(dateLayout),
			inv.EnergyKWh.String(),
			inv.Base.StringFixed(2),
			inv.Tax.StringFixed(2),
			inv.Total.StringFixed(2),
			inv.IssueDate.Format(dateLayout),
			strconv.Itoa(inv.Version),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
