package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"facturador/internal/apperrors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func respondErrorRecorder(err error) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	respondError(c, err)
	return w
}

func TestStatusForErrorTaxonomy(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", apperrors.Validationf("bad input"), http.StatusBadRequest},
		{"not found", apperrors.ErrNotFound, http.StatusNotFound},
		{"sku not found", apperrors.SkuNotFound("CAM-L-AZU"), http.StatusNotFound},
		{"duplicate", apperrors.ErrDuplicate, http.StatusConflict},
		{"insufficient stock", apperrors.InsufficientStock("CAM-L-AZU", 2, 5), http.StatusConflict},
		{"credit limit", apperrors.CreditLimitExceeded(uuid.New()), http.StatusConflict},
		{"invalid state", apperrors.ErrInvalidState, http.StatusConflict},
		{"concurrent update", apperrors.ErrConcurrentUpdate, http.StatusConflict},
		{"authority rejected", apperrors.AuthorityRejected("10016"), http.StatusUnprocessableEntity},
		{"authority unreachable", apperrors.AuthorityUnreachable(errors.New("timeout")), http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, statusFor(tc.err))
		})
	}
}

func TestRespondErrorHidesInternals(t *testing.T) {
	w := respondErrorRecorder(errors.New("pq: connection reset by peer"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection reset")
	assert.Contains(t, w.Body.String(), "Internal server error")
}

func TestRespondErrorIssuanceFailureCarriesInvoiceID(t *testing.T) {
	invoiceID := uuid.New()
	err := &apperrors.IssuanceFailed{
		InvoiceID: invoiceID,
		Err:       apperrors.AuthorityUnreachable(errors.New("gateway timeout")),
	}
	w := respondErrorRecorder(err)

	// Status follows the underlying cause; the body names the invoice left
	// in error state so the operator can inspect it.
	assert.Equal(t, http.StatusBadGateway, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, invoiceID.String(), body["invoice_id"])
	assert.Contains(t, body["detail"], "unreachable")
}
