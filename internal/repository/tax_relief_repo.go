package repository

import (
	"context"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TaxReliefRepository persists user relief claims
type TaxReliefRepository interface {
	Create(ctx context.Context, relief *model.TaxRelief) error
	ListByUserAndYear(ctx context.Context, userID uuid.UUID, year int) ([]model.TaxRelief, error)
	ListVerifiedByUserAndYear(ctx context.Context, userID uuid.UUID, year int) ([]model.TaxRelief, error)
}

type taxReliefRepository struct {
	db *gorm.DB
}

func NewTaxReliefRepository(db *gorm.DB) TaxReliefRepository {
	return &taxReliefRepository{db: db}
}

func (r *taxReliefRepository) Create(ctx context.Context, relief *model.TaxRelief) error {
	return GetDB(ctx, r.db).Create(relief).Error
}

func (r *taxReliefRepository) ListByUserAndYear(ctx context.Context, userID uuid.UUID, year int) ([]model.TaxRelief, error) {
	var reliefs []model.TaxRelief
	if err := GetDB(ctx, r.db).
		Where("user_id = ? AND year = ?", userID, year).
		Order("created_at DESC").
		Find(&reliefs).Error; err != nil {
		return nil, err
	}
	return reliefs, nil
}

func (r *taxReliefRepository) ListVerifiedByUserAndYear(ctx context.Context, userID uuid.UUID, year int) ([]model.TaxRelief, error) {
	var reliefs []model.TaxRelief
	if err := GetDB(ctx, r.db).
		Where("user_id = ? AND year = ? AND verified = ?", userID, year, true).
		Find(&reliefs).Error; err != nil {
		return nil, err
	}
	return reliefs, nil
}
