package infra

// pdf.go — invoice PDF rendering with go-pdf/fpdf.
// A4 layout: business header, voucher identification (type, point of sale,
// number, CAE), buyer block, item table, totals. The output file is saved to
// storagePath/invoice_{pos}_{number}.pdf.

import (
	"fmt"
	"os"
	"path/filepath"

	"facturador/internal/model"

	"github.com/go-pdf/fpdf"
)

// GenerateInvoicePDF renders a completed invoice. storagePath is created if
// needed; the returned path is relative to it.
func GenerateInvoicePDF(inv *model.Invoice, businessName, storagePath string) (string, error) {
	if err := os.MkdirAll(storagePath, 0o755); err != nil {
		return "", fmt.Errorf("pdf: create storage dir: %w", err)
	}
	if inv.VoucherNumber == nil {
		return "", fmt.Errorf("pdf: invoice %s has no voucher number", inv.ID)
	}

	fileName := fmt.Sprintf("invoice_%04d_%08d.pdf", inv.PointOfSale, *inv.VoucherNumber)
	filePath := filepath.Join(storagePath, fileName)

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 30

	// ── Header ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(contentW, 9, businessName, "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(contentW, 7, fmt.Sprintf("Factura %s  %04d-%08d",
		inv.VoucherType, inv.PointOfSale, *inv.VoucherNumber), "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(contentW, 5, "Fecha: "+inv.CreatedAt.Format("02/01/2006"), "", 1, "L", false, 0, "")
	if inv.CAE != nil {
		caeLine := "CAE: " + *inv.CAE
		if inv.CAEExpiresAt != nil {
			caeLine += "  Vto: " + inv.CAEExpiresAt.Format("02/01/2006")
		}
		pdf.CellFormat(contentW, 5, caeLine, "", 1, "L", false, 0, "")
	}
	pdf.Ln(3)

	// ── Buyer ────────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(contentW, 5, inv.BuyerName, "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(contentW, 5, fmt.Sprintf("%s %s", inv.BuyerDocType, inv.BuyerDocNumber), "", 1, "L", false, 0, "")
	if inv.BuyerAddress != nil && *inv.BuyerAddress != "" {
		pdf.CellFormat(contentW, 5, *inv.BuyerAddress, "", 1, "L", false, 0, "")
	}
	pdf.Ln(3)

	// ── Item table ───────────────────────────────────────────────────────────
	col1 := contentW * 0.46 // description
	col2 := contentW * 0.12 // qty
	col3 := contentW * 0.20 // unit price
	col4 := contentW * 0.22 // line total

	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(col1, 6, "Descripción", "B", 0, "L", false, 0, "")
	pdf.CellFormat(col2, 6, "Cant.", "B", 0, "C", false, 0, "")
	pdf.CellFormat(col3, 6, "P. unitario", "B", 0, "R", false, 0, "")
	pdf.CellFormat(col4, 6, "Total", "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	for _, item := range inv.Items {
		pdf.CellFormat(col1, 6, item.Description, "", 0, "L", false, 0, "")
		pdf.CellFormat(col2, 6, fmt.Sprintf("%d", item.Quantity), "", 0, "C", false, 0, "")
		pdf.CellFormat(col3, 6, "$ "+item.UnitPrice.StringFixed(2), "", 0, "R", false, 0, "")
		pdf.CellFormat(col4, 6, "$ "+item.Total.StringFixed(2), "", 1, "R", false, 0, "")
	}
	pdf.Ln(3)

	// ── Totals ───────────────────────────────────────────────────────────────
	labelW := col1 + col2 + col3
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(labelW, 6, "Subtotal", "", 0, "R", false, 0, "")
	pdf.CellFormat(col4, 6, "$ "+inv.Subtotal.StringFixed(2), "", 1, "R", false, 0, "")
	pdf.CellFormat(labelW, 6, "IVA", "", 0, "R", false, 0, "")
	pdf.CellFormat(col4, 6, "$ "+inv.Tax.StringFixed(2), "", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(labelW, 8, "TOTAL", "T", 0, "R", false, 0, "")
	pdf.CellFormat(col4, 8, "$ "+inv.Total.StringFixed(2), "T", 1, "R", false, 0, "")

	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", fmt.Errorf("pdf: write %s: %w", filePath, err)
	}
	return fileName, nil
}
