package database

import (
	"context"
	"fmt"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/shopspring/decimal"
)

// bracket2026 is one row of the statutory 2026 Nigerian PAYE table
// (Nigeria Tax Act 2025, effective January 1, 2026).
type bracket2026 struct {
	order int
	min   int64
	max   int64 // 0 = unbounded top bracket
	rate  string
	desc  string
}

var brackets2026 = []bracket2026{
	{1, 0, 800_000, "0.0000", "₦0 - ₦800,000 at 0% (Tax-Free)"},
	{2, 800_001, 3_200_000, "0.1500", "₦800,001 - ₦3,200,000 at 15%"},
	{3, 3_200_001, 6_400_000, "0.1800", "₦3,200,001 - ₦6,400,000 at 18%"},
	{4, 6_400_001, 12_800_000, "0.2100", "₦6,400,001 - ₦12,800,000 at 21%"},
	{5, 12_800_001, 50_000_000, "0.2300", "₦12,800,001 - ₦50,000,000 at 23%"},
	{6, 50_000_001, 0, "0.2500", "₦50,000,001 and above at 25%"},
}

// SeedTaxBrackets inserts the 2026 bracket table if the year is not yet
// present. Safe to run on every startup.
func SeedTaxBrackets(ctx context.Context, repo repository.TaxBracketRepository) error {
	count, err := repo.CountByYear(ctx, 2026)
	if err != nil {
		return fmt.Errorf("failed to check existing brackets: %w", err)
	}
	if count > 0 {
		return nil
	}

	brackets, err := BuildBrackets2026()
	if err != nil {
		return err
	}

	if err := repo.CreateBatch(ctx, brackets); err != nil {
		return fmt.Errorf("failed to seed 2026 tax brackets: %w", err)
	}

	return nil
}

// BuildBrackets2026 materializes the statutory table as model rows.
func BuildBrackets2026() ([]model.TaxBracket, error) {
	rows := make([]model.TaxBracket, 0, len(brackets2026))
	for _, b := range brackets2026 {
		rate, err := decimal.NewFromString(b.rate)
		if err != nil {
			return nil, fmt.Errorf("invalid seed rate %q: %w", b.rate, err)
		}

		var maxIncome *decimal.Decimal
		if b.max > 0 {
			v := decimal.NewFromInt(b.max)
			maxIncome = &v
		}

		rows = append(rows, model.TaxBracket{
			Year:         2026,
			BracketOrder: b.order,
			MinIncome:    decimal.NewFromInt(b.min),
			MaxIncome:    maxIncome,
			Rate:         rate,
			Description:  b.desc,
		})
	}
	return rows, nil
}
