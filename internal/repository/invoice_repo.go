package repository

import (
	"context"
	"encoding/json"
	"time"

	"facturador/internal/dto"
	"facturador/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InvoiceRepository is the data access contract for invoices and their
// append-only event trail. Services depend on this interface, not on the
// concrete GORM implementation, enabling unit testing via in-memory stubs.
type InvoiceRepository interface {
	// Create persists the invoice together with its items. When tx is nil the
	// repository's own connection is used.
	Create(ctx context.Context, tx *gorm.DB, inv *model.Invoice) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Invoice, error)
	List(ctx context.Context, filter dto.InvoiceFilter) ([]model.Invoice, int64, error)

	// SetAuthorization records the authority's approval and completes the invoice.
	SetAuthorization(ctx context.Context, id uuid.UUID, voucherNumber int64, cae string, caeExpiresAt time.Time) error
	SetError(ctx context.Context, id uuid.UUID, message string) error
	SetStatus(ctx context.Context, id uuid.UUID, status string) error
	SetStatusTx(tx *gorm.DB, id uuid.UUID, status string) error
	SetPDFPath(ctx context.Context, id uuid.UUID, path string) error

	// AppendEvent writes one audit entry. Events are never updated or deleted.
	AppendEvent(ctx context.Context, ev *model.InvoiceEvent) error
	// AppendEventTx is AppendEvent inside the caller's transaction.
	AppendEventTx(tx *gorm.DB, ev *model.InvoiceEvent) error

	// DB exposes the underlying *gorm.DB so services can open transactions.
	DB() *gorm.DB
}

type invoiceRepo struct{ db *gorm.DB }

func NewInvoiceRepository(db *gorm.DB) InvoiceRepository { return &invoiceRepo{db: db} }

func (r *invoiceRepo) Create(ctx context.Context, tx *gorm.DB, inv *model.Invoice) error {
	conn := tx
	if conn == nil {
		conn = r.db.WithContext(ctx)
	}
	return conn.Create(inv).Error
}

func (r *invoiceRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	var inv model.Invoice
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Events", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		First(&inv, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *invoiceRepo) List(ctx context.Context, filter dto.InvoiceFilter) ([]model.Invoice, int64, error) {
	var invoices []model.Invoice
	var total int64

	q := r.db.WithContext(ctx).Model(&model.Invoice{})
	if filter.Status != "" && filter.Status != "all" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.AccountID != "" {
		q = q.Where("account_id = ?", filter.AccountID)
	}
	if filter.PointOfSale > 0 {
		q = q.Where("point_of_sale = ?", filter.PointOfSale)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	err := q.Preload("Items").
		Order("created_at DESC").
		Limit(filter.Limit).Offset(offset).
		Find(&invoices).Error
	return invoices, total, err
}

func (r *invoiceRepo) SetAuthorization(ctx context.Context, id uuid.UUID, voucherNumber int64, cae string, caeExpiresAt time.Time) error {
	return r.db.WithContext(ctx).Model(&model.Invoice{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"voucher_number": voucherNumber,
			"cae":            cae,
			"cae_expires_at": caeExpiresAt,
			"status":         model.InvoiceStatusCompleted,
		}).Error
}

func (r *invoiceRepo) SetError(ctx context.Context, id uuid.UUID, message string) error {
	return r.db.WithContext(ctx).Model(&model.Invoice{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        model.InvoiceStatusError,
			"error_message": message,
		}).Error
}

func (r *invoiceRepo) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	return r.db.WithContext(ctx).Model(&model.Invoice{}).Where("id = ?", id).
		Update("status", status).Error
}

func (r *invoiceRepo) SetStatusTx(tx *gorm.DB, id uuid.UUID, status string) error {
	return tx.Model(&model.Invoice{}).Where("id = ?", id).
		Update("status", status).Error
}

func (r *invoiceRepo) SetPDFPath(ctx context.Context, id uuid.UUID, path string) error {
	return r.db.WithContext(ctx).Model(&model.Invoice{}).Where("id = ?", id).
		Update("pdf_path", path).Error
}

func (r *invoiceRepo) AppendEvent(ctx context.Context, ev *model.InvoiceEvent) error {
	if len(ev.Metadata) == 0 {
		ev.Metadata = json.RawMessage("{}")
	}
	return r.db.WithContext(ctx).Create(ev).Error
}

func (r *invoiceRepo) AppendEventTx(tx *gorm.DB, ev *model.InvoiceEvent) error {
	if len(ev.Metadata) == 0 {
		ev.Metadata = json.RawMessage("{}")
	}
	return tx.Create(ev).Error
}

func (r *invoiceRepo) DB() *gorm.DB { return r.db }
