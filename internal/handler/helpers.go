package handler

import (
	"errors"
	"net/http"
	"reflect"

	"facturador/internal/apierror"
	"facturador/internal/apperrors"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func init() {
	// Register decimal.Decimal as a numeric type so that validator tags like
	// min=0, gt=0, required work without panicking ("Bad field type decimal.Decimal").
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails —
// the caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("Invalid JSON: "+err.Error()))
		return false
	}
	if err := validate.Struct(req); err != nil {
		fields := make(map[string]string)
		for _, fe := range err.(validator.ValidationErrors) {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

// respondError translates the service error taxonomy into HTTP statuses.
// Every failure is one of the typed kinds; anything else is a 500 with a
// generic message so internals never leak.
func respondError(c *gin.Context, err error) {
	var issuance *apperrors.IssuanceFailed
	if errors.As(err, &issuance) {
		// Surface the invoice id so the operator can inspect the error
		// state; the status code follows the underlying cause.
		c.JSON(statusFor(issuance.Err), gin.H{
			"detail":     issuance.Err.Error(),
			"invoice_id": issuance.InvoiceID.String(),
		})
		return
	}

	status := statusFor(err)
	if status == http.StatusInternalServerError {
		c.JSON(status, apierror.New("Internal server error"))
		return
	}
	c.JSON(status, apierror.New(err.Error()))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrNotFound), errors.Is(err, apperrors.ErrSkuNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrDuplicate),
		errors.Is(err, apperrors.ErrInsufficientStock),
		errors.Is(err, apperrors.ErrCreditLimitExceeded),
		errors.Is(err, apperrors.ErrInvalidState),
		errors.Is(err, apperrors.ErrConcurrentUpdate):
		return http.StatusConflict
	case errors.Is(err, apperrors.ErrAuthorityRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperrors.ErrAuthorityUnreachable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
