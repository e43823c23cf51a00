package worker

// pdf_worker.go
// Renders the printable PDF for an issued invoice and, when the job carries a
// recipient, chains an email delivery job with the rendered file attached.

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"facturador/internal/infra"
	"facturador/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// InvoicePDFPayload is the job envelope sent to QueueInvoicePDF.
type InvoicePDFPayload struct {
	InvoiceID string `json:"invoice_id"`
	EmailTo   string `json:"email_to,omitempty"`
}

type InvoicePDFWorker struct {
	invoiceRepo    repository.InvoiceRepository
	dispatcher     *Dispatcher
	pdfStoragePath string
	businessName   string
}

func NewInvoicePDFWorker(
	invoiceRepo repository.InvoiceRepository,
	dispatcher *Dispatcher,
	pdfStoragePath string,
	businessName string,
) *InvoicePDFWorker {
	return &InvoicePDFWorker{
		invoiceRepo:    invoiceRepo,
		dispatcher:     dispatcher,
		pdfStoragePath: pdfStoragePath,
		businessName:   businessName,
	}
}

func (w *InvoicePDFWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var payload InvoicePDFPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("pdf_worker: invalid payload")
		return nil
	}
	id, err := uuid.Parse(payload.InvoiceID)
	if err != nil {
		log.Error().Str("invoice_id", payload.InvoiceID).Msg("pdf_worker: invalid invoice_id")
		return nil
	}

	inv, err := w.invoiceRepo.FindByID(ctx, id)
	if err != nil {
		log.Error().Err(err).Str("invoice_id", payload.InvoiceID).Msg("pdf_worker: invoice not found")
		return err
	}

	fileName, err := infra.GenerateInvoicePDF(inv, w.businessName, w.pdfStoragePath)
	if err != nil {
		log.Error().Err(err).Str("invoice_id", payload.InvoiceID).Msg("pdf_worker: PDF generation failed")
		return err
	}
	if err := w.invoiceRepo.SetPDFPath(ctx, id, fileName); err != nil {
		log.Warn().Err(err).Str("invoice_id", payload.InvoiceID).Msg("pdf_worker: failed to persist pdf path")
	}
	log.Info().Str("invoice_id", payload.InvoiceID).Str("pdf", fileName).Msg("pdf_worker: PDF generated")

	if payload.EmailTo == "" {
		return nil
	}

	voucherRef := ""
	if inv.VoucherNumber != nil {
		voucherRef = fmt.Sprintf("%s-%04d-%08d", inv.VoucherType, inv.PointOfSale, *inv.VoucherNumber)
	}
	emailJob := EmailPayload{
		ToEmail: payload.EmailTo,
		Subject: fmt.Sprintf("%s — Invoice %s", w.businessName, voucherRef),
		Body:    fmt.Sprintf("Attached is your invoice %s.\nTotal: $%s", voucherRef, inv.Total.StringFixed(2)),
		PDFPath: filepath.Join(w.pdfStoragePath, fileName),
	}
	if err := w.dispatcher.EnqueueEmail(ctx, emailJob); err != nil {
		log.Warn().Err(err).Str("email", payload.EmailTo).Msg("pdf_worker: failed to enqueue email")
	} else {
		log.Info().Str("email", payload.EmailTo).Msg("pdf_worker: email job enqueued")
	}
	return nil
}
