package dto

import (
	"github.com/shopspring/decimal"
)

// InvoiceLineRequest is one requested SKU line. Unit price is read from the
// variant at issuance time, never taken from the client.
type InvoiceLineRequest struct {
	VariantID string `json:"variant_id" validate:"required,uuid4"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

type CreateInvoiceRequest struct {
	AccountID   string               `json:"account_id" validate:"required,uuid4"`
	VoucherType string               `json:"voucher_type" validate:"required,oneof=A B C"`
	PointOfSale int                  `json:"point_of_sale" validate:"required,min=1,max=9998"`
	Items       []InvoiceLineRequest `json:"items" validate:"required,min=1,dive"`
	// SendEmail: when true and the buyer account has an email, the generated
	// PDF is mailed after issuance.
	SendEmail bool `json:"send_email"`
}

type VoidInvoiceRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type InvoiceFilter struct {
	Status      string `form:"status"`
	AccountID   string `form:"account_id"`
	PointOfSale int    `form:"point_of_sale"`
	Page        int    `form:"page"`
	Limit       int    `form:"limit"`
}

type InvoiceItemResponse struct {
	VariantID   string          `json:"variant_id"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Tax         decimal.Decimal `json:"tax"`
	Total       decimal.Decimal `json:"total"`
}

type InvoiceEventResponse struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Metadata    any    `json:"metadata,omitempty"`
	CreatedAt   string `json:"created_at"`
}

type InvoiceResponse struct {
	ID             string  `json:"id"`
	VoucherType    string  `json:"voucher_type"`
	PointOfSale    int     `json:"point_of_sale"`
	VoucherNumber  *int64  `json:"voucher_number"`
	CAE            *string `json:"cae"`
	CAEExpiresAt   *string `json:"cae_expires_at"`
	AccountID      string  `json:"account_id"`
	BuyerName      string  `json:"buyer_name"`
	BuyerDocType   string  `json:"buyer_doc_type"`
	BuyerDocNumber string  `json:"buyer_doc_number"`

	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`

	Status       string  `json:"status"`
	ErrorMessage *string `json:"error_message,omitempty"`
	PDFUrl       *string `json:"pdf_url,omitempty"`

	Items  []InvoiceItemResponse  `json:"items"`
	Events []InvoiceEventResponse `json:"events,omitempty"`

	CreatedAt string `json:"created_at"`
}

type InvoiceListResponse struct {
	Data  []InvoiceResponse `json:"data"`
	Total int64             `json:"total"`
	Page  int               `json:"page"`
	Limit int               `json:"limit"`
}

type LastVoucherResponse struct {
	PointOfSale int    `json:"point_of_sale"`
	VoucherType string `json:"voucher_type"`
	LastNumber  int64  `json:"last_number"`
}

// RepairResponse reports which pending post-authorization side effects a
// repair run completed and which remain outstanding.
type RepairResponse struct {
	InvoiceID string   `json:"invoice_id"`
	Repaired  []string `json:"repaired"`
	Pending   []string `json:"pending"`
}
