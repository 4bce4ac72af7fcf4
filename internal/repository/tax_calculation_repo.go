package repository

import (
	"context"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TaxCalculationRepository is the append-only calculation log.
// There are intentionally no update or delete methods.
type TaxCalculationRepository interface {
	Create(ctx context.Context, calc *model.TaxCalculation) error
	ListByUser(ctx context.Context, userID uuid.UUID, page, limit int) ([]model.TaxCalculation, int64, error)
	GetLatestByUser(ctx context.Context, userID uuid.UUID, year *int) (*model.TaxCalculation, error)
}

type taxCalculationRepository struct {
	db *gorm.DB
}

func NewTaxCalculationRepository(db *gorm.DB) TaxCalculationRepository {
	return &taxCalculationRepository{db: db}
}

func (r *taxCalculationRepository) Create(ctx context.Context, calc *model.TaxCalculation) error {
	return GetDB(ctx, r.db).Create(calc).Error
}

func (r *taxCalculationRepository) ListByUser(ctx context.Context, userID uuid.UUID, page, limit int) ([]model.TaxCalculation, int64, error) {
	var calcs []model.TaxCalculation
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.TaxCalculation{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&calcs).Error; err != nil {
		return nil, 0, err
	}

	return calcs, total, nil
}

func (r *taxCalculationRepository) GetLatestByUser(ctx context.Context, userID uuid.UUID, year *int) (*model.TaxCalculation, error) {
	var calc model.TaxCalculation
	query := GetDB(ctx, r.db).Where("user_id = ?", userID)
	if year != nil {
		query = query.Where("calculation_year = ?", *year)
	}
	if err := query.Order("created_at DESC").First(&calc).Error; err != nil {
		return nil, err
	}
	return &calc, nil
}
