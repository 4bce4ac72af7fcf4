package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TaxCalculation is an append-only snapshot of one tax computation.
// Rows are never updated or deleted by the engine.
type TaxCalculation struct {
	ID              uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID          uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	User            User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE;" json:"-"`
	CalculationYear int       `gorm:"not null;index" json:"calculation_year"`

	GrossIncome   decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"gross_income"`
	TotalReliefs  decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"total_reliefs"`
	TaxableIncome decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"taxable_income"`

	GrossTax decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"gross_tax"`
	NetTax   decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"net_tax"`

	TaxBracketBreakdown string `gorm:"type:text" json:"tax_bracket_breakdown"` // Serialized per-bracket breakdown
	Notes               string `gorm:"type:text" json:"notes"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}
