package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TaxBracket defines one income range of a progressive tax table for a year.
// Brackets for a year, sorted by BracketOrder, partition income into
// contiguous ranges; exactly one bracket per year has MaxIncome = NULL
// (the unbounded top bracket).
type TaxBracket struct {
	ID           uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Year         int              `gorm:"not null;index" json:"year"`
	BracketOrder int              `gorm:"not null" json:"bracket_order"`
	MinIncome    decimal.Decimal  `gorm:"type:decimal(15,2);not null" json:"min_income"` // Inclusive lower bound
	MaxIncome    *decimal.Decimal `gorm:"type:decimal(15,2)" json:"max_income"`          // Inclusive upper bound, NULL for top bracket
	Rate         decimal.Decimal  `gorm:"type:decimal(5,4);not null" json:"rate"`        // e.g. 0.1500 for 15%
	Description  string           `gorm:"type:text" json:"description"`
	CreatedAt    time.Time        `json:"created_at"`
}
