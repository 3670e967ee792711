// Package pdfgen renders invoice PDFs. Layout: A4 portrait with an issuer
// block, a client block, a single-line concept table and the totals,
// matching the paper invoices the clinic already sends.
package pdfgen

import (
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Party is one side of an invoice, issuer or client.
type Party struct {
	Name       string
	DNI        string
	Address    string
	City       string
	PostalCode string
	Phone      string
	Email      string
}

// InvoiceData carries everything needed to render one invoice.
type InvoiceData struct {
	Number      int
	Date        time.Time
	Issuer      Party
	Client      Party
	Concept     string
	ServiceDate time.Time
	Amount      float64
	// IRPFRate > 0 renders a retention line and subtracts it from the total.
	IRPFRate float64
}

// Total returns the payable amount after IRPF retention.
func (d InvoiceData) Total() float64 {
	return d.Amount - d.Amount*d.IRPFRate
}

// RenderInvoice writes the invoice PDF to w.
func RenderInvoice(d InvoiceData, w io.Writer) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()

	// Header
	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 12, tr("FACTURA"), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Factura Nº: %d", d.Number)), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, tr("Fecha: "+d.Date.Format("02/01/2006")), "", 1, "L", false, 0, "")
	pdf.Ln(6)

	renderParty := func(title string, p Party) {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 7, tr(title), "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 5, tr(p.Name), "", 1, "L", false, 0, "")
		if p.DNI != "" {
			pdf.CellFormat(0, 5, tr("DNI: "+p.DNI), "", 1, "L", false, 0, "")
		}
		if p.Address != "" {
			pdf.CellFormat(0, 5, tr(p.Address), "", 1, "L", false, 0, "")
		}
		if p.City != "" || p.PostalCode != "" {
			pdf.CellFormat(0, 5, tr(p.PostalCode+" "+p.City), "", 1, "L", false, 0, "")
		}
		if p.Phone != "" {
			pdf.CellFormat(0, 5, tr("Tel: "+p.Phone), "", 1, "L", false, 0, "")
		}
		if p.Email != "" {
			pdf.CellFormat(0, 5, tr(p.Email), "", 1, "L", false, 0, "")
		}
		pdf.Ln(4)
	}

	renderParty("Emisor", d.Issuer)
	renderParty("Cliente", d.Client)

	// Concept table
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(40, 8, tr("Fecha"), "1", 0, "C", true, 0, "")
	pdf.CellFormat(100, 8, tr("Concepto"), "1", 0, "C", true, 0, "")
	pdf.CellFormat(30, 8, tr("Importe"), "1", 1, "C", true, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(40, 8, tr(d.ServiceDate.Format("02/01/2006")), "1", 0, "C", false, 0, "")
	pdf.CellFormat(100, 8, tr(d.Concept), "1", 0, "L", false, 0, "")
	pdf.CellFormat(30, 8, tr(fmt.Sprintf("%.2f €", d.Amount)), "1", 1, "R", false, 0, "")

	if d.IRPFRate > 0 {
		pdf.CellFormat(140, 8, tr(fmt.Sprintf("Retención IRPF (%.0f%%)", d.IRPFRate*100)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 8, tr(fmt.Sprintf("-%.2f €", d.Amount*d.IRPFRate)), "1", 1, "R", false, 0, "")
	}

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(140, 9, tr("TOTAL"), "1", 0, "L", false, 0, "")
	pdf.CellFormat(30, 9, tr(fmt.Sprintf("%.2f €", d.Total())), "1", 1, "R", false, 0, "")

	pdf.Ln(12)
	pdf.SetFont("Helvetica", "I", 10)
	pdf.CellFormat(0, 6, tr("Gracias por su confianza."), "", 1, "L", false, 0, "")

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render invoice pdf: %w", err)
	}
	return nil
}
