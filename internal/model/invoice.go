package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Invoice lifecycle states. pending is transient: the issuance workflow
// always leaves an invoice in completed or error before returning.
// error and voided are terminal.
const (
	InvoiceStatusPending   = "pending"
	InvoiceStatusCompleted = "completed"
	InvoiceStatusError     = "error"
	InvoiceStatusVoided    = "voided"
)

// Legal voucher categories. The wire codes for the fiscal authority live in
// infra (see infra.VoucherTypeCode).
const (
	VoucherTypeA = "A"
	VoucherTypeB = "B"
	VoucherTypeC = "C"
)

// Invoice is a fiscal sales document. Buyer fields are snapshotted at
// creation time and never follow later account edits. VoucherNumber, CAE and
// CAEExpiresAt stay nil until the authority approves the document.
type Invoice struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	VoucherType  string    `gorm:"type:varchar(2);not null"`
	PointOfSale  int       `gorm:"not null"`
	VoucherNumber *int64
	// CAE is the authorization code issued by the fiscal authority
	CAE          *string    `gorm:"type:varchar(20);column:cae"`
	CAEExpiresAt *time.Time `gorm:"column:cae_expires_at"`

	// Buyer snapshot
	AccountID         uuid.UUID `gorm:"type:uuid;index;not null"`
	BuyerName         string    `gorm:"not null"`
	BuyerDocType      string    `gorm:"type:varchar(10);not null"`
	BuyerDocNumber    string    `gorm:"type:varchar(20);not null"`
	BuyerAddress      *string

	Subtotal decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Tax      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Total    decimal.Decimal `gorm:"type:decimal(12,2);not null"`

	Status       string  `gorm:"type:varchar(20);not null;default:'pending';index"`
	ErrorMessage *string `gorm:"type:text"`
	// PDFPath is relative to PDF_STORAGE_PATH
	PDFPath *string `gorm:"column:pdf_path"`

	Items  []InvoiceItem  `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
	Events []InvoiceEvent `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// InvoiceItem is one invoiced SKU line. Line totals are rounded to the minor
// unit before aggregation so that sum(lines) equals the invoice totals exactly.
type InvoiceItem struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	InvoiceID   uuid.UUID `gorm:"type:uuid;index;not null"`
	VariantID   uuid.UUID `gorm:"type:uuid;not null"`
	Description string    `gorm:"not null"`
	Quantity    int       `gorm:"not null"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Subtotal    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Tax         decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Total       decimal.Decimal `gorm:"type:decimal(12,2);not null"`

	Variant *ProductVariant `gorm:"foreignKey:VariantID"`
}

// Invoice event type tags.
const (
	EventCreated                  = "created"
	EventAuthorizationReceived    = "authorization_received"
	EventError                    = "error"
	EventVoided                   = "voided"
	EventPartialCommitInconsistency = "partial_commit_inconsistency"
	EventRepaired                 = "repaired"
)

// InvoiceEvent is an append-only audit entry. Rows are never updated or
// deleted; the ordered sequence per invoice is its authoritative history.
type InvoiceEvent struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	InvoiceID   uuid.UUID       `gorm:"type:uuid;index;not null"`
	Type        string          `gorm:"type:varchar(40);not null"`
	Description string          `gorm:"type:text"`
	Metadata    json.RawMessage `gorm:"type:jsonb;default:'{}'"`
	CreatedAt   time.Time
}
