package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReliefType enum constants
const (
	ReliefTypeRent          = "rent"
	ReliefTypePension       = "pension"
	ReliefTypeNHF           = "nhf"
	ReliefTypeNHIS          = "nhis"
	ReliefTypeLifeInsurance = "life_insurance"
	ReliefTypeGratuity      = "gratuity"
	ReliefTypeOther         = "other"
)

// TaxRelief is a persisted relief claim reducing a user's taxable income.
// The automatic rent relief is never stored here; it is computed per
// calculation from gross income.
type TaxRelief struct {
	ID          uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	User        User            `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE;" json:"-"`
	ReliefType  string          `gorm:"type:varchar(30);not null" json:"relief_type"` // rent, pension, nhf, nhis, life_insurance, gratuity, other
	Amount      decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	Year        int             `gorm:"not null;index" json:"year"`
	Description string          `gorm:"type:text" json:"description"`
	Verified    bool            `gorm:"not null;default:false" json:"verified"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
