package persistence

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/dandroos/node-invoicer/internal/domain/invoicing"
	"github.com/dandroos/node-invoicer/internal/infrastructure/persistence/models"
)

// GormLedgerRepository implements invoicing.Ledger using GORM
type GormLedgerRepository struct {
	db *gorm.DB
}

// NewGormLedgerRepository creates a new GormLedgerRepository
func NewGormLedgerRepository(db *gorm.DB) *GormLedgerRepository {
	return &GormLedgerRepository{db: db}
}

// ListNumbers returns every recorded invoice number in insertion order
func (r *GormLedgerRepository) ListNumbers(ctx context.Context) ([]string, error) {
	var numbers []string
	if err := r.db.WithContext(ctx).
		Model(&models.LedgerRecordModel{}).
		Order("id").
		Pluck("number", &numbers).Error; err != nil {
		return nil, invoicing.NewLedgerError("list numbers", err)
	}
	return numbers, nil
}

// AppendRecord inserts rec. If the number already exists and the stored row
// was written by the same run with the same data, the append already
// happened (a retried call) and nil is returned; otherwise the number was
// taken by another run.
func (r *GormLedgerRepository) AppendRecord(ctx context.Context, rec invoicing.LedgerRecord) error {
	model, err := models.LedgerRecordModelFromDomain(rec)
	if err != nil {
		return invoicing.NewLedgerError("append "+rec.Number, err)
	}

	err = r.db.WithContext(ctx).Create(model).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return invoicing.NewLedgerError("append "+rec.Number, err)
	}

	existing, findErr := r.FindByNumber(ctx, rec.Number)
	if findErr != nil {
		return invoicing.NewNumberTakenError(rec.Number, err)
	}
	candidate, _ := models.LedgerRecordModelFromDomain(rec)
	if candidate.SameAppend(existing) {
		return nil
	}
	return invoicing.NewNumberTakenError(rec.Number, err)
}

// FindByNumber loads the row recorded under number
func (r *GormLedgerRepository) FindByNumber(ctx context.Context, number string) (*models.LedgerRecordModel, error) {
	var model models.LedgerRecordModel
	if err := r.db.WithContext(ctx).Where("number = ?", number).First(&model).Error; err != nil {
		return nil, invoicing.NewLedgerError("find "+number, err)
	}
	return &model, nil
}

// Ensure GormLedgerRepository implements invoicing.Ledger
var _ invoicing.Ledger = (*GormLedgerRepository)(nil)
