package handler

import (
	"net/http"
	"time"

	"facturador/internal/apierror"
	"facturador/internal/dto"
	"facturador/internal/middleware"
	"facturador/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AccountsHandler struct{ svc service.AccountService }

func NewAccountsHandler(svc service.AccountService) *AccountsHandler {
	return &AccountsHandler{svc: svc}
}

// Create godoc
// @Summary      Create an account
// @Tags         accounts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.CreateAccountRequest true "Account data"
// @Success      201  {object} dto.AccountResponse
// @Failure      409  {object} apierror.APIError
// @Router       /v1/accounts [post]
func (h *AccountsHandler) Create(c *gin.Context) {
	var req dto.CreateAccountRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Update godoc
// @Summary      Update account data or credit limit
// @Tags         accounts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string                   true "Account UUID"
// @Param        body body dto.UpdateAccountRequest true "Fields to change"
// @Success      200  {object} dto.AccountResponse
// @Router       /v1/accounts/{id} [patch]
func (h *AccountsHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("Invalid id"))
		return
	}
	var req dto.UpdateAccountRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Update(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Get godoc
// @Summary      Fetch one account
// @Tags         accounts
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Account UUID"
// @Success      200 {object} dto.AccountResponse
// @Failure      404 {object} apierror.APIError
// @Router       /v1/accounts/{id} [get]
func (h *AccountsHandler) Get(c *gin.Context) {
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
// @Summary      List accounts
// @Tags         accounts
// @Produce      json
// @Security     BearerAuth
// @Param        status query string false "active | suspended | closed"
// @Success      200 {array} dto.AccountResponse
// @Router       /v1/accounts [get]
func (h *AccountsHandler) List(c *gin.Context) {
	resp, err := h.svc.List(c.Request.Context(), c.Query("status"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// PostTransaction godoc
// @Summary      Record a manual ledger entry
// @Description  Appends one debit/credit to the account's journal. Debits are subject to the credit limit.
// @Tags         accounts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string                       true "Account UUID"
// @Param        body body dto.CreateTransactionRequest true "Entry"
// @Success      201  {object} dto.TransactionResponse
// @Failure      409  {object} apierror.APIError
// @Router       /v1/accounts/{id}/transactions [post]
func (h *AccountsHandler) PostTransaction(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("Invalid id"))
		return
	}
	var req dto.CreateTransactionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	claims := middleware.GetClaims(c)
	userID, _ := uuid.Parse(claims.UserID)

	resp, err := h.svc.Post(c.Request.Context(), service.Posting{
		AccountID:   id,
		Direction:   req.Direction,
		Amount:      req.Amount,
		Description: req.Description,
		CreatedBy:   userID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Statement godoc
// @Summary      Account statement for a date range
// @Tags         accounts
// @Produce      json
// @Security     BearerAuth
// @Param        id   path  string true  "Account UUID"
// @Param        from query string false "YYYY-MM-DD (default: 30 days ago)"
// @Param        to   query string false "YYYY-MM-DD (default: today)"
// @Success      200  {object} dto.StatementResponse
// @Router       /v1/accounts/{id}/statement [get]
func (h *AccountsHandler) Statement(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("Invalid id"))
		return
	}

	to := time.Now()
	from := to.AddDate(0, 0, -30)
	if s := c.Query("from"); s != "" {
		if from, err = time.Parse("2006-01-02", s); err != nil {
			c.JSON(http.StatusBadRequest, apierror.New("from must be YYYY-MM-DD"))
			return
		}
	}
	if s := c.Query("to"); s != "" {
		parsed, err := time.Parse("2006-01-02", s)
		if err != nil {
			c.JSON(http.StatusBadRequest, apierror.New("to must be YYYY-MM-DD"))
			return
		}
		// Inclusive end of day
		to = parsed.Add(24*time.Hour - time.Nanosecond)
	}

	resp, err := h.svc.Statement(c.Request.Context(), id, from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
