package worker

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorrelationRefFromPayloads(t *testing.T) {
	pdf, err := json.Marshal(InvoicePDFPayload{InvoiceID: "0b6e3c1e-8a34-4c57-9d2a-5f1e2b3c4d5e"})
	require.NoError(t, err)
	assert.Equal(t, "0b6e3c1e-8a34-4c57-9d2a-5f1e2b3c4d5e", correlationRef(pdf))

	stock, err := json.Marshal(StockSyncPayload{SKU: "REM-M-NEG", NewQuantity: 7})
	require.NoError(t, err)
	assert.Equal(t, "REM-M-NEG", correlationRef(stock))

	mail, err := json.Marshal(EmailPayload{ToEmail: "cliente@example.com", Subject: "Factura"})
	require.NoError(t, err)
	assert.Empty(t, correlationRef(mail))

	assert.Empty(t, correlationRef(json.RawMessage(`not json`)))
}

func TestDLQEntryCarriesCorrelation(t *testing.T) {
	payload, err := json.Marshal(InvoicePDFPayload{InvoiceID: "f00d"})
	require.NoError(t, err)

	entry := DLQEntry{
		SourceQueue: QueueInvoicePDF,
		JobType:     "invoice_pdf",
		Payload:     payload,
		Correlation: correlationRef(payload),
		Reason:      "render failed",
		Attempts:    3,
	}
	data, err := json.Marshal(entry)
	require.NoError(t, err)

	var decoded DLQEntry
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, QueueInvoicePDF, decoded.SourceQueue)
	assert.Equal(t, "f00d", decoded.Correlation)
	assert.Equal(t, 3, decoded.Attempts)
}
