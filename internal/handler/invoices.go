package handler

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"

	"facturador/internal/apierror"
	"facturador/internal/dto"
	"facturador/internal/middleware"
	"facturador/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type InvoicesHandler struct {
	svc            service.InvoiceService
	pdfStoragePath string
}

func NewInvoicesHandler(svc service.InvoiceService, pdfStoragePath string) *InvoicesHandler {
	return &InvoicesHandler{svc: svc, pdfStoragePath: pdfStoragePath}
}

// Issue godoc
// @Summary      Issue an invoice
// @Description  Validates the order, obtains a fiscal authorization code, deducts stock and debits the buyer's account.
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.CreateInvoiceRequest true "Invoice detail"
// @Success      201  {object} dto.InvoiceResponse
// @Failure      400  {object} apierror.APIError
// @Failure      409  {object} apierror.APIError
// @Failure      422  {object} apierror.APIError
// @Failure      502  {object} apierror.APIError
// @Router       /v1/invoices [post]
func (h *InvoicesHandler) Issue(c *gin.Context) {
	var req dto.CreateInvoiceRequest
	if !bindAndValidate(c, &req) {
		return
	}
	claims := middleware.GetClaims(c)
	userID, _ := uuid.Parse(claims.UserID)

	resp, err := h.svc.Issue(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Void godoc
// @Summary      Void an invoice
// @Description  Issues a compensating credit note, restores stock and credits the buyer's account. Only completed invoices.
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string                  true "Invoice UUID"
// @Param        body body dto.VoidInvoiceRequest true "Void reason"
// @Success      200  {object} dto.InvoiceResponse
// @Failure      409  {object} apierror.APIError
// @Router       /v1/invoices/{id} [delete]
func (h *InvoicesHandler) Void(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("Invalid id"))
		return
	}
	var req dto.VoidInvoiceRequest
	if !bindAndValidate(c, &req) {
		return
	}
	claims := middleware.GetClaims(c)
	userID, _ := uuid.Parse(claims.UserID)

	resp, err := h.svc.Void(c.Request.Context(), userID, id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Repair godoc
// @Summary      Re-run pending side effects of a flagged invoice
// @Description  Re-attempts the stock deduction and account debit recorded as outstanding on a completed invoice.
// @Tags         invoices
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Invoice UUID"
// @Success      200 {object} dto.RepairResponse
// @Failure      409 {object} apierror.APIError
// @Router       /v1/invoices/{id}/repair [post]
func (h *InvoicesHandler) Repair(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("Invalid id"))
		return
	}
	claims := middleware.GetClaims(c)
	userID, _ := uuid.Parse(claims.UserID)

	resp, err := h.svc.Repair(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Get godoc
// @Summary      Fetch one invoice with items and audit events
// @Tags         invoices
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Invoice UUID"
// @Success      200 {object} dto.InvoiceResponse
// @Failure      404 {object} apierror.APIError
// @Router       /v1/invoices/{id} [get]
func (h *InvoicesHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("Invalid id"))
		return
	}
	resp, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// List godoc
// @Summary      List invoices
// @Tags         invoices
// @Produce      json
// @Security     BearerAuth
// @Param        status        query string false "pending | completed | error | voided"
// @Param        account_id    query string false "Filter by buyer account"
// @Param        point_of_sale query int    false "Filter by point of sale"
// @Param        page          query int    false "Page (default 1)"
// @Param        limit         query int    false "Page size (default 50)"
// @Success      200 {object} dto.InvoiceListResponse
// @Router       /v1/invoices [get]
func (h *InvoicesHandler) List(c *gin.Context) {
	var filter dto.InvoiceFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	resp, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// LastVoucher godoc
// @Summary      Last authorized voucher number
// @Description  Queries the fiscal authority for the last voucher number of a (point of sale, voucher type) pair.
// @Tags         invoices
// @Produce      json
// @Security     BearerAuth
// @Param        point_of_sale query int    true "Point of sale"
// @Param        voucher_type  query string true "A | B | C"
// @Success      200 {object} dto.LastVoucherResponse
// @Failure      502 {object} apierror.APIError
// @Router       /v1/invoices/last-voucher [get]
func (h *InvoicesHandler) LastVoucher(c *gin.Context) {
	pos, err := strconv.Atoi(c.Query("point_of_sale"))
	if err != nil || pos < 1 {
		c.JSON(http.StatusBadRequest, apierror.New("point_of_sale must be a positive integer"))
		return
	}
	voucherType := c.Query("voucher_type")
	resp, err := h.svc.LastVoucher(c.Request.Context(), pos, voucherType)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// PDF godoc
// @Summary      Download the invoice PDF
// @Tags         invoices
// @Produce      application/pdf
// @Security     BearerAuth
// @Param        id path string true "Invoice UUID"
// @Success      200 {file} file
// @Failure      404 {object} apierror.APIError
// @Router       /v1/invoices/{id}/pdf [get]
func (h *InvoicesHandler) PDF(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("Invalid id"))
		return
	}
	inv, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if inv.PDFUrl == nil || inv.VoucherNumber == nil {
		c.JSON(http.StatusNotFound, apierror.New("PDF not yet generated"))
		return
	}
	fileName := fmt.Sprintf("invoice_%04d_%08d.pdf", inv.PointOfSale, *inv.VoucherNumber)
	c.FileAttachment(filepath.Join(h.pdfStoragePath, fileName), fileName)
}
