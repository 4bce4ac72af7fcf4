package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"backend/internal/model"
	"backend/internal/repository"
	"backend/internal/websocket"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Relief calculation constants (Nigeria Tax Act 2025, effective 2026)
var (
	rentReliefRate = decimal.NewFromFloat(0.20)  // 20% of gross income
	maxRentRelief  = decimal.NewFromInt(500_000) // capped at ₦500,000
	monthsPerYear  = decimal.NewFromInt(12)
	hundred        = decimal.NewFromInt(100)
)

// Sentinel errors distinguishing "can't compute" from "computed but couldn't record it"
var (
	ErrInvalidIncome       = errors.New("income must be greater than zero")
	ErrNoBracketsForYear   = errors.New("no tax brackets found for year")
	ErrNotAuthorized       = errors.New("not authorized to access this resource")
	ErrCalculationNotSaved = errors.New("tax calculation completed but could not be saved to history")
)

// --- DTOs ---

type TaxCalculationRequest struct {
	GrossIncome   float64            `json:"gross_income" binding:"required,gt=0"`
	Year          int                `json:"year" binding:"required"`
	Reliefs       map[string]float64 `json:"reliefs"`         // Free-form relief-type -> amount; "rent" is always overridden
	SaveToHistory *bool              `json:"save_to_history"` // Defaults to true
}

func (r TaxCalculationRequest) saveToHistory() bool {
	return r.SaveToHistory == nil || *r.SaveToHistory
}

type BracketTaxBreakdown struct {
	BracketOrder     int      `json:"bracket_order"`
	MinIncome        float64  `json:"min_income"`
	MaxIncome        *float64 `json:"max_income"` // nil for the unbounded top bracket
	Rate             float64  `json:"rate"`
	TaxableInBracket float64  `json:"taxable_in_bracket"`
	TaxInBracket     float64  `json:"tax_in_bracket"`
}

type TaxCalculationResponse struct {
	GrossIncome        float64               `json:"gross_income"`
	TotalReliefs       float64               `json:"total_reliefs"`
	TaxableIncome      float64               `json:"taxable_income"`
	GrossTax           float64               `json:"gross_tax"`
	NetTax             float64               `json:"net_tax"`
	EffectiveRate      float64               `json:"effective_rate"` // Percentage, 2dp
	Year               int                   `json:"year"`
	BreakdownByBracket []BracketTaxBreakdown `json:"breakdown_by_bracket"`
	Warning            string                `json:"warning,omitempty"` // Set when the history write failed
}

type AnnualTaxEstimate struct {
	CurrentMonthlyIncome     float64 `json:"current_monthly_income"`
	EstimatedAnnualIncome    float64 `json:"estimated_annual_income"`
	EstimatedAnnualTax       float64 `json:"estimated_annual_tax"`
	EstimatedMonthlyTax      float64 `json:"estimated_monthly_tax"`
	EstimatedTakeHomeMonthly float64 `json:"estimated_take_home_monthly"`
	Year                     int     `json:"year"`
}

type CreateTaxReliefRequest struct {
	UserID      string  `json:"user_id" binding:"required,uuid"`
	ReliefType  string  `json:"relief_type" binding:"required,oneof=rent pension nhf nhis life_insurance gratuity other"`
	Amount      float64 `json:"amount" binding:"gte=0"`
	Year        int     `json:"year" binding:"required"`
	Description string  `json:"description"`
}

type TaxReliefResponse struct {
	ID          string  `json:"id"`
	UserID      string  `json:"user_id"`
	ReliefType  string  `json:"relief_type"`
	Amount      float64 `json:"amount"`
	Year        int     `json:"year"`
	Description string  `json:"description"`
	Verified    bool    `json:"verified"`
	CreatedAt   string  `json:"created_at"`
}

type TaxHistoryEntry struct {
	ID            string  `json:"id"`
	Year          int     `json:"year"`
	GrossIncome   float64 `json:"gross_income"`
	TotalReliefs  float64 `json:"total_reliefs"`
	TaxableIncome float64 `json:"taxable_income"`
	GrossTax      float64 `json:"gross_tax"`
	NetTax        float64 `json:"net_tax"`
	Notes         string  `json:"notes"`
	CreatedAt     string  `json:"created_at"`
}

type TaxHistoryResponse struct {
	Calculations      []TaxHistoryEntry `json:"calculations"`
	TotalCalculations int64             `json:"total_calculations"`
}

type TaxBracketResponse struct {
	Year         int      `json:"year"`
	BracketOrder int      `json:"bracket_order"`
	MinIncome    float64  `json:"min_income"`
	MaxIncome    *float64 `json:"max_income"`
	Rate         float64  `json:"rate"`
	Description  string   `json:"description"`
}

// --- Interface ---

type TaxService interface {
	CalculateTax(ctx context.Context, userID string, req TaxCalculationRequest) (*TaxCalculationResponse, error)
	EstimateAnnualTax(ctx context.Context, userID string, monthlyIncome float64, year int) (*AnnualTaxEstimate, error)
	GetTaxHistory(ctx context.Context, userID, currentUserID string, page, limit int) (*TaxHistoryResponse, error)
	AddTaxRelief(ctx context.Context, currentUserID string, req CreateTaxReliefRequest) (*TaxReliefResponse, error)
	GetUserReliefs(ctx context.Context, userID, currentUserID string, year int, verifiedOnly bool) ([]TaxReliefResponse, error)
	GetTaxBrackets(ctx context.Context, year int) ([]TaxBracketResponse, error)
	GetAvailableYears(ctx context.Context) ([]int, error)
}

type taxService struct {
	bracketRepo repository.TaxBracketRepository
	reliefRepo  repository.TaxReliefRepository
	calcRepo    repository.TaxCalculationRepository
	auditRepo   repository.AuditRepository
	hub         *websocket.Hub
}

// NewTaxService wires the tax engine with its storage collaborators. The hub
// may be nil when no realtime feed is attached (e.g. in tests).
func NewTaxService(
	bracketRepo repository.TaxBracketRepository,
	reliefRepo repository.TaxReliefRepository,
	calcRepo repository.TaxCalculationRepository,
	auditRepo repository.AuditRepository,
	hub *websocket.Hub,
) TaxService {
	return &taxService{
		bracketRepo: bracketRepo,
		reliefRepo:  reliefRepo,
		calcRepo:    calcRepo,
		auditRepo:   auditRepo,
		hub:         hub,
	}
}

// --- Engine core ---

// calculateRentRelief returns the automatic rent relief: the lower of 20% of
// gross income and ₦500,000.
func calculateRentRelief(grossIncome decimal.Decimal) decimal.Decimal {
	return decimal.Min(grossIncome.Mul(rentReliefRate), maxRentRelief)
}

// calculateTotalReliefs builds the per-type relief breakdown. The automatic
// rent figure is always present under "rent"; a caller-supplied "rent" entry
// is ignored. Other keys pass through unvalidated — enum enforcement belongs
// to the relief-claim boundary, not here.
func calculateTotalReliefs(grossIncome decimal.Decimal, customReliefs map[string]float64) map[string]decimal.Decimal {
	reliefs := map[string]decimal.Decimal{
		model.ReliefTypeRent: calculateRentRelief(grossIncome),
	}

	for reliefType, amount := range customReliefs {
		if reliefType == model.ReliefTypeRent {
			continue // automatic rent relief always wins
		}
		reliefs[reliefType] = decimal.NewFromFloat(amount)
	}

	return reliefs
}

// calculateProgressiveTax applies each bracket's rate to the slice of taxable
// income falling inside it. The statutory lower bounds carry a one-naira
// offset for display (₦800,001 etc.); the taxed slice of each bracket starts
// at the previous bracket's ceiling, so the slices sum exactly to the taxable
// income.
func calculateProgressiveTax(taxableIncome decimal.Decimal, brackets []model.TaxBracket) (decimal.Decimal, []BracketTaxBreakdown) {
	totalTax := decimal.Zero
	breakdown := []BracketTaxBreakdown{}
	floor := decimal.Zero

	for _, bracket := range brackets {
		if taxableIncome.LessThanOrEqual(floor) {
			break // income never reaches this bracket, nor any later one
		}

		upper := taxableIncome
		if bracket.MaxIncome != nil && upper.GreaterThan(*bracket.MaxIncome) {
			upper = *bracket.MaxIncome
		}

		taxableInBracket := upper.Sub(floor)
		taxInBracket := taxableInBracket.Mul(bracket.Rate)
		totalTax = totalTax.Add(taxInBracket)

		var maxIncome *float64
		if bracket.MaxIncome != nil {
			v := bracket.MaxIncome.InexactFloat64()
			maxIncome = &v
		}

		breakdown = append(breakdown, BracketTaxBreakdown{
			BracketOrder:     bracket.BracketOrder,
			MinIncome:        bracket.MinIncome.InexactFloat64(),
			MaxIncome:        maxIncome,
			Rate:             bracket.Rate.InexactFloat64(),
			TaxableInBracket: round2(taxableInBracket),
			TaxInBracket:     round2(taxInBracket),
		})

		if bracket.MaxIncome == nil {
			break // unbounded top bracket absorbed the rest
		}
		floor = *bracket.MaxIncome
	}

	return totalTax, breakdown
}

func round2(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// --- Implementation ---

func (s *taxService) CalculateTax(ctx context.Context, userID string, req TaxCalculationRequest) (*TaxCalculationResponse, error) {
	grossIncome := decimal.NewFromFloat(req.GrossIncome)
	if grossIncome.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidIncome
	}

	// Brackets are fetched fresh per calculation; caching is not this layer's concern
	brackets, err := s.bracketRepo.ListByYear(ctx, req.Year)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tax brackets: %w", err)
	}
	if len(brackets) == 0 {
		return nil, fmt.Errorf("%w: %d", ErrNoBracketsForYear, req.Year)
	}

	reliefs := calculateTotalReliefs(grossIncome, req.Reliefs)
	totalReliefs := decimal.Zero
	for _, amount := range reliefs {
		totalReliefs = totalReliefs.Add(amount)
	}

	taxableIncome := grossIncome.Sub(totalReliefs)
	if taxableIncome.IsNegative() {
		taxableIncome = decimal.Zero
	}

	grossTax, breakdown := calculateProgressiveTax(taxableIncome, brackets)
	netTax := grossTax // Separate field so future caps/credits don't change the breakdown shape

	effectiveRate := decimal.Zero
	if grossIncome.IsPositive() {
		effectiveRate = netTax.Div(grossIncome).Mul(hundred)
	}

	resp := &TaxCalculationResponse{
		GrossIncome:        round2(grossIncome),
		TotalReliefs:       round2(totalReliefs),
		TaxableIncome:      round2(taxableIncome),
		GrossTax:           round2(grossTax),
		NetTax:             round2(netTax),
		EffectiveRate:      round2(effectiveRate),
		Year:               req.Year,
		BreakdownByBracket: breakdown,
	}

	if req.saveToHistory() {
		if err := s.saveCalculation(ctx, userID, req.Year, grossIncome, totalReliefs, taxableIncome, grossTax, netTax, breakdown, reliefs); err != nil {
			// The numbers are still valid; surface the failed write instead of dropping the result
			log.Printf("WARNING: %v (user=%s): %v", ErrCalculationNotSaved, userID, err)
			resp.Warning = ErrCalculationNotSaved.Error()
		}
	}

	return resp, nil
}

func (s *taxService) saveCalculation(
	ctx context.Context,
	userID string,
	year int,
	grossIncome, totalReliefs, taxableIncome, grossTax, netTax decimal.Decimal,
	breakdown []BracketTaxBreakdown,
	reliefs map[string]decimal.Decimal,
) error {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return fmt.Errorf("invalid user id: %w", err)
	}

	breakdownJSON, err := json.Marshal(breakdown)
	if err != nil {
		return fmt.Errorf("failed to serialize breakdown: %w", err)
	}
	reliefsJSON, _ := json.Marshal(reliefs)

	calc := &model.TaxCalculation{
		UserID:              uid,
		CalculationYear:     year,
		GrossIncome:         grossIncome.Round(2),
		TotalReliefs:        totalReliefs.Round(2),
		TaxableIncome:       taxableIncome.Round(2),
		GrossTax:            grossTax.Round(2),
		NetTax:              netTax.Round(2),
		TaxBracketBreakdown: string(breakdownJSON),
		Notes:               "Reliefs: " + string(reliefsJSON),
	}

	if err := s.calcRepo.Create(ctx, calc); err != nil {
		return err
	}

	s.writeAuditLog(ctx, userID, model.ActionCalculateTax, calc.ID.String(),
		fmt.Sprintf("PAYE %d", year),
		map[string]interface{}{"year": year, "gross_income": round2(grossIncome), "net_tax": round2(netTax)})

	s.broadcastCalculation(userID, year)

	return nil
}

func (s *taxService) EstimateAnnualTax(ctx context.Context, userID string, monthlyIncome float64, year int) (*AnnualTaxEstimate, error) {
	monthly := decimal.NewFromFloat(monthlyIncome)
	if monthly.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidIncome
	}

	annualIncome := monthly.Mul(monthsPerYear)

	// Estimates are exploratory, never written to history
	save := false
	calc, err := s.CalculateTax(ctx, userID, TaxCalculationRequest{
		GrossIncome:   annualIncome.InexactFloat64(),
		Year:          year,
		SaveToHistory: &save,
	})
	if err != nil {
		return nil, err
	}

	netTax := decimal.NewFromFloat(calc.NetTax)
	monthlyTax := netTax.Div(monthsPerYear)
	takeHome := monthly.Sub(monthlyTax)

	return &AnnualTaxEstimate{
		CurrentMonthlyIncome:     round2(monthly),
		EstimatedAnnualIncome:    round2(annualIncome),
		EstimatedAnnualTax:       calc.NetTax,
		EstimatedMonthlyTax:      round2(monthlyTax),
		EstimatedTakeHomeMonthly: round2(takeHome),
		Year:                     year,
	}, nil
}

func (s *taxService) GetTaxHistory(ctx context.Context, userID, currentUserID string, page, limit int) (*TaxHistoryResponse, error) {
	if userID != currentUserID {
		return nil, fmt.Errorf("%w: tax history belongs to another user", ErrNotAuthorized)
	}

	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}

	calcs, total, err := s.calcRepo.ListByUser(ctx, uid, page, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tax history: %w", err)
	}

	entries := make([]TaxHistoryEntry, 0, len(calcs))
	for _, c := range calcs {
		entries = append(entries, TaxHistoryEntry{
			ID:            c.ID.String(),
			Year:          c.CalculationYear,
			GrossIncome:   round2(c.GrossIncome),
			TotalReliefs:  round2(c.TotalReliefs),
			TaxableIncome: round2(c.TaxableIncome),
			GrossTax:      round2(c.GrossTax),
			NetTax:        round2(c.NetTax),
			Notes:         c.Notes,
			CreatedAt:     c.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	return &TaxHistoryResponse{
		Calculations:      entries,
		TotalCalculations: total,
	}, nil
}

func (s *taxService) AddTaxRelief(ctx context.Context, currentUserID string, req CreateTaxReliefRequest) (*TaxReliefResponse, error) {
	if req.UserID != currentUserID {
		return nil, fmt.Errorf("%w: cannot add relief for another user", ErrNotAuthorized)
	}

	uid, err := uuid.Parse(req.UserID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}

	relief := &model.TaxRelief{
		UserID:      uid,
		ReliefType:  req.ReliefType,
		Amount:      decimal.NewFromFloat(req.Amount).Round(2),
		Year:        req.Year,
		Description: req.Description,
	}

	if err := s.reliefRepo.Create(ctx, relief); err != nil {
		return nil, fmt.Errorf("failed to create tax relief: %w", err)
	}

	s.writeAuditLog(ctx, currentUserID, model.ActionCreateTaxRelief, relief.ID.String(),
		req.ReliefType+" "+relief.Amount.StringFixed(2), req)

	return toTaxReliefResponse(relief), nil
}

func (s *taxService) GetUserReliefs(ctx context.Context, userID, currentUserID string, year int, verifiedOnly bool) ([]TaxReliefResponse, error) {
	if userID != currentUserID {
		return nil, fmt.Errorf("%w: reliefs belong to another user", ErrNotAuthorized)
	}

	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}

	var reliefs []model.TaxRelief
	if verifiedOnly {
		reliefs, err = s.reliefRepo.ListVerifiedByUserAndYear(ctx, uid, year)
	} else {
		reliefs, err = s.reliefRepo.ListByUserAndYear(ctx, uid, year)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tax reliefs: %w", err)
	}

	res := make([]TaxReliefResponse, 0, len(reliefs))
	for i := range reliefs {
		res = append(res, *toTaxReliefResponse(&reliefs[i]))
	}

	return res, nil
}

func (s *taxService) GetTaxBrackets(ctx context.Context, year int) ([]TaxBracketResponse, error) {
	brackets, err := s.bracketRepo.ListByYear(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tax brackets: %w", err)
	}
	if len(brackets) == 0 {
		return nil, fmt.Errorf("%w: %d", ErrNoBracketsForYear, year)
	}

	res := make([]TaxBracketResponse, 0, len(brackets))
	for _, b := range brackets {
		var maxIncome *float64
		if b.MaxIncome != nil {
			v := b.MaxIncome.InexactFloat64()
			maxIncome = &v
		}
		res = append(res, TaxBracketResponse{
			Year:         b.Year,
			BracketOrder: b.BracketOrder,
			MinIncome:    b.MinIncome.InexactFloat64(),
			MaxIncome:    maxIncome,
			Rate:         b.Rate.InexactFloat64(),
			Description:  b.Description,
		})
	}

	return res, nil
}

func (s *taxService) GetAvailableYears(ctx context.Context) ([]int, error) {
	years, err := s.bracketRepo.ListYears(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch available years: %w", err)
	}
	return years, nil
}

// --- Helpers ---

func toTaxReliefResponse(r *model.TaxRelief) *TaxReliefResponse {
	return &TaxReliefResponse{
		ID:          r.ID.String(),
		UserID:      r.UserID.String(),
		ReliefType:  r.ReliefType,
		Amount:      round2(r.Amount),
		Year:        r.Year,
		Description: r.Description,
		Verified:    r.Verified,
		CreatedAt:   r.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func (s *taxService) writeAuditLog(ctx context.Context, userID, action, entityID, entityName string, details interface{}) {
	if s.auditRepo == nil {
		return
	}

	detailsJSON, _ := json.Marshal(details)

	entry := &model.AuditLog{
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    string(detailsJSON),
	}

	if parsed, err := uuid.Parse(userID); err == nil {
		entry.UserID = &parsed
	}

	// Best-effort audit log — don't fail the operation if logging fails
	_ = s.auditRepo.Create(ctx, entry)
}

func (s *taxService) broadcastCalculation(userID string, year int) {
	if s.hub == nil {
		return
	}

	// Amounts intentionally excluded from the shared feed
	event, err := json.Marshal(map[string]interface{}{
		"type":    "tax_calculation_recorded",
		"user_id": userID,
		"year":    year,
	})
	if err != nil {
		return
	}

	s.hub.Broadcast <- event
}
