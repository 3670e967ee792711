package pdfgen

import (
	"bytes"
	"math"
	"testing"
	"time"
)

func sampleInvoice() InvoiceData {
	return InvoiceData{
		Number: 42,
		Date:   time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		Issuer: Party{
			Name:       "Clínica Actúa",
			DNI:        "12345678Z",
			Address:    "Calle Mayor 1",
			City:       "Madrid",
			PostalCode: "28001",
			Phone:      "+34600000000",
			Email:      "info@actua.example",
		},
		Client: Party{
			Name: "Juan Pérez",
			DNI:  "87654321X",
		},
		Concept:     "Sesión de fisioterapia",
		ServiceDate: time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC),
		Amount:      25,
	}
}

func TestRenderInvoice_ProducesPDF(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderInvoice(sampleInvoice(), &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("expected non-empty output")
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF")) {
		t.Errorf("output does not look like a PDF: %q", buf.Bytes()[:8])
	}
}

func TestRenderInvoice_WithIRPF(t *testing.T) {
	d := sampleInvoice()
	d.IRPFRate = 0.15

	var buf bytes.Buffer
	if err := RenderInvoice(d, &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("expected non-empty output")
	}
}

func TestInvoiceData_Total(t *testing.T) {
	d := InvoiceData{Amount: 100, IRPFRate: 0.15}
	if got := d.Total(); math.Abs(got-85) > 1e-9 {
		t.Errorf("expected total 85 with 15%% retention, got %v", got)
	}

	d.IRPFRate = 0
	if got := d.Total(); got != 100 {
		t.Errorf("expected total 100 without retention, got %v", got)
	}
}
