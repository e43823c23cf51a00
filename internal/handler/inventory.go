package handler

import (
	"net/http"
	"strconv"

	"facturador/internal/apierror"
	"facturador/internal/dto"
	"facturador/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type InventoryHandler struct{ svc service.InventoryService }

func NewInventoryHandler(svc service.InventoryService) *InventoryHandler {
	return &InventoryHandler{svc: svc}
}

// GetVariant godoc
// @Summary      Fetch a variant by SKU
// @Tags         inventory
// @Produce      json
// @Security     BearerAuth
// @Param        sku path string true "SKU code"
// @Success      200 {object} dto.VariantResponse
// @Failure      404 {object} apierror.APIError
// @Router       /v1/inventory/sku/{sku} [get]
func (h *InventoryHandler) GetVariant(c *gin.Context) {
	resp, err := h.svc.GetVariantBySKU(c.Request.Context(), c.Param("sku"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// AdjustStock godoc
// @Summary      Adjust a variant's stock
// @Description  Applies a signed stock delta with its audit movement. Rejects adjustments that would drive stock negative.
// @Tags         inventory
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string                 true "Variant UUID"
// @Param        body body dto.AdjustStockRequest true "Signed quantity and reason"
// @Success      201  {object} dto.MovementResponse
// @Failure      409  {object} apierror.APIError
// @Router       /v1/inventory/{id}/adjust [post]
func (h *InventoryHandler) AdjustStock(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("Invalid id"))
		return
	}
	var req dto.AdjustStockRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Adjust(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ListMovements godoc
// @Summary      Stock movement history for a variant
// @Tags         inventory
// @Produce      json
// @Security     BearerAuth
// @Param        id    path  string true  "Variant UUID"
// @Param        limit query int    false "Max rows (default 100)"
// @Success      200 {array} dto.MovementResponse
// @Router       /v1/inventory/{id}/movements [get]
func (h *InventoryHandler) ListMovements(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("Invalid id"))
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	resp, err := h.svc.ListMovements(c.Request.Context(), id, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
