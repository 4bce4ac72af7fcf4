package repository

import (
	"context"

	"backend/internal/model"

	"gorm.io/gorm"
)

// TaxBracketRepository reads the per-year progressive bracket tables.
// Brackets are fetched fresh for every calculation; no caching here.
type TaxBracketRepository interface {
	ListByYear(ctx context.Context, year int) ([]model.TaxBracket, error)
	ListYears(ctx context.Context) ([]int, error)
	CountByYear(ctx context.Context, year int) (int64, error)
	CreateBatch(ctx context.Context, brackets []model.TaxBracket) error
}

type taxBracketRepository struct {
	db *gorm.DB
}

func NewTaxBracketRepository(db *gorm.DB) TaxBracketRepository {
	return &taxBracketRepository{db: db}
}

func (r *taxBracketRepository) ListByYear(ctx context.Context, year int) ([]model.TaxBracket, error) {
	var brackets []model.TaxBracket
	if err := GetDB(ctx, r.db).
		Where("year = ?", year).
		Order("bracket_order ASC").
		Find(&brackets).Error; err != nil {
		return nil, err
	}
	return brackets, nil
}

func (r *taxBracketRepository) ListYears(ctx context.Context) ([]int, error) {
	var years []int
	if err := GetDB(ctx, r.db).
		Model(&model.TaxBracket{}).
		Distinct("year").
		Order("year DESC").
		Pluck("year", &years).Error; err != nil {
		return nil, err
	}
	return years, nil
}

func (r *taxBracketRepository) CountByYear(ctx context.Context, year int) (int64, error) {
	var count int64
	if err := GetDB(ctx, r.db).
		Model(&model.TaxBracket{}).
		Where("year = ?", year).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *taxBracketRepository) CreateBatch(ctx context.Context, brackets []model.TaxBracket) error {
	return GetDB(ctx, r.db).Create(&brackets).Error
}
