package infra

// pdf.go — Internal credit-note document generation using go-pdf/fpdf.
// A5 landscape layout:
//   - Company header and document title
//   - Nota number, emission date, originating factura and OT
//   - Motivo block
//   - Bold amount line
//
// The output file is saved to storagePath/nota_{numero}.pdf.

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"nextops/internal/model"

	"github.com/go-pdf/fpdf"
)

// GenerateNotaCreditoPDF renders the internal document for a NotaCredito.
// numeroFactura and numeroOT are denormalized by the caller so the document is
// self-contained. Returns the absolute path to the generated file.
func GenerateNotaCreditoPDF(nota *model.NotaCredito, numeroFactura, proveedor string, numeroOT *string, storagePath string) (string, error) {
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		return "", fmt.Errorf("pdf: create storage dir: %w", err)
	}

	// Keep the nota number filesystem-safe.
	safe := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ' ' {
			return '_'
		}
		return r
	}, nota.NumeroNotaCredito)
	filePath := filepath.Join(storagePath, fmt.Sprintf("nota_%s.pdf", safe))

	pdf := fpdf.New("L", "mm", "A5", "")
	pdf.SetMargins(12, 12, 12)
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 24

	// ── Header ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(contentW, 9, "NextOps", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(contentW, 6, "Nota de Crédito — Costos", "", 1, "L", false, 0, "")
	pdf.Ln(3)
	pdf.Line(12, pdf.GetY(), pageW-12, pdf.GetY())
	pdf.Ln(4)

	// ── Identification ───────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(contentW, 6, fmt.Sprintf("Nota N° %s", nota.NumeroNotaCredito), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(contentW, 5, fmt.Sprintf("Fecha de emisión: %s", nota.FechaEmision.Format("02/01/2006")), "", 1, "L", false, 0, "")
	pdf.CellFormat(contentW, 5, fmt.Sprintf("Factura: %s — %s", numeroFactura, proveedor), "", 1, "L", false, 0, "")
	if numeroOT != nil && *numeroOT != "" {
		pdf.CellFormat(contentW, 5, fmt.Sprintf("OT: %s", *numeroOT), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	// ── Motivo ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(contentW, 5, "Motivo", "B", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.MultiCell(contentW, 5, nota.Motivo, "", "L", false)
	pdf.Ln(4)

	// ── Amount ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(contentW, 8, fmt.Sprintf("Monto: $ %s", nota.Monto.StringFixed(2)), "T", 1, "R", false, 0, "")

	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", fmt.Errorf("pdf: write %s: %w", filePath, err)
	}
	return filePath, nil
}
