package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"backend/internal/database"
	"backend/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- In-memory fakes ---

type fakeBracketRepo struct {
	brackets map[int][]model.TaxBracket
}

func newFakeBracketRepo(t *testing.T) *fakeBracketRepo {
	t.Helper()
	rows, err := database.BuildBrackets2026()
	require.NoError(t, err)
	return &fakeBracketRepo{brackets: map[int][]model.TaxBracket{2026: rows}}
}

func (f *fakeBracketRepo) ListByYear(_ context.Context, year int) ([]model.TaxBracket, error) {
	return f.brackets[year], nil
}

func (f *fakeBracketRepo) ListYears(_ context.Context) ([]int, error) {
	years := make([]int, 0, len(f.brackets))
	for y := range f.brackets {
		years = append(years, y)
	}
	return years, nil
}

func (f *fakeBracketRepo) CountByYear(_ context.Context, year int) (int64, error) {
	return int64(len(f.brackets[year])), nil
}

func (f *fakeBracketRepo) CreateBatch(_ context.Context, rows []model.TaxBracket) error {
	for _, r := range rows {
		f.brackets[r.Year] = append(f.brackets[r.Year], r)
	}
	return nil
}

type fakeCalcRepo struct {
	created    []model.TaxCalculation
	failCreate bool
}

func (f *fakeCalcRepo) Create(_ context.Context, calc *model.TaxCalculation) error {
	if f.failCreate {
		return errors.New("insert failed: connection reset")
	}
	if calc.ID == uuid.Nil {
		calc.ID = uuid.New()
	}
	f.created = append(f.created, *calc)
	return nil
}

func (f *fakeCalcRepo) ListByUser(_ context.Context, userID uuid.UUID, page, limit int) ([]model.TaxCalculation, int64, error) {
	var out []model.TaxCalculation
	for _, c := range f.created {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeCalcRepo) GetLatestByUser(_ context.Context, userID uuid.UUID, _ *int) (*model.TaxCalculation, error) {
	for i := len(f.created) - 1; i >= 0; i-- {
		if f.created[i].UserID == userID {
			return &f.created[i], nil
		}
	}
	return nil, errors.New("record not found")
}

type fakeReliefRepo struct {
	created []model.TaxRelief
}

func (f *fakeReliefRepo) Create(_ context.Context, relief *model.TaxRelief) error {
	if relief.ID == uuid.Nil {
		relief.ID = uuid.New()
	}
	f.created = append(f.created, *relief)
	return nil
}

func (f *fakeReliefRepo) ListByUserAndYear(_ context.Context, userID uuid.UUID, year int) ([]model.TaxRelief, error) {
	var out []model.TaxRelief
	for _, r := range f.created {
		if r.UserID == userID && r.Year == year {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeReliefRepo) ListVerifiedByUserAndYear(ctx context.Context, userID uuid.UUID, year int) ([]model.TaxRelief, error) {
	all, err := f.ListByUserAndYear(ctx, userID, year)
	if err != nil {
		return nil, err
	}
	var out []model.TaxRelief
	for _, r := range all {
		if r.Verified {
			out = append(out, r)
		}
	}
	return out, nil
}

type testEnv struct {
	svc      TaxService
	brackets *fakeBracketRepo
	calcs    *fakeCalcRepo
	reliefs  *fakeReliefRepo
	userID   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	brackets := newFakeBracketRepo(t)
	calcs := &fakeCalcRepo{}
	reliefs := &fakeReliefRepo{}
	return &testEnv{
		svc:      NewTaxService(brackets, reliefs, calcs, nil, nil),
		brackets: brackets,
		calcs:    calcs,
		reliefs:  reliefs,
		userID:   uuid.NewString(),
	}
}

func boolPtr(b bool) *bool { return &b }

// --- Relief aggregation ---

func TestCalculateRentRelief(t *testing.T) {
	tests := []struct {
		name        string
		grossIncome int64
		want        int64
	}{
		{"below cap uses 20 percent", 1_000_000, 200_000},
		{"cap threshold", 2_500_000, 500_000},
		{"above cap is capped", 10_000_000, 500_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calculateRentRelief(decimal.NewFromInt(tt.grossIncome))
			assert.True(t, got.Equal(decimal.NewFromInt(tt.want)), "got %s", got)
		})
	}
}

func TestCalculateTotalReliefs(t *testing.T) {
	gross := decimal.NewFromInt(5_000_000)

	t.Run("automatic rent only when no custom reliefs", func(t *testing.T) {
		reliefs := calculateTotalReliefs(gross, nil)
		require.Len(t, reliefs, 1)
		assert.True(t, reliefs["rent"].Equal(decimal.NewFromInt(500_000)))
	})

	t.Run("custom reliefs pass through unvalidated", func(t *testing.T) {
		reliefs := calculateTotalReliefs(gross, map[string]float64{
			"pension":     400_000,
			"nhf":         125_000,
			"company_gym": 10_000, // not in the persisted enum, still accepted here
		})
		require.Len(t, reliefs, 4)
		assert.True(t, reliefs["pension"].Equal(decimal.NewFromInt(400_000)))
		assert.True(t, reliefs["company_gym"].Equal(decimal.NewFromInt(10_000)))
	})

	t.Run("caller supplied rent is overridden by the automatic figure", func(t *testing.T) {
		reliefs := calculateTotalReliefs(gross, map[string]float64{"rent": 9_999_999})
		assert.True(t, reliefs["rent"].Equal(decimal.NewFromInt(500_000)))
	})
}

// --- Progressive apportionment ---

func TestCalculateTax_ScenarioA(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.svc.CalculateTax(context.Background(), env.userID, TaxCalculationRequest{
		GrossIncome: 5_000_000,
		Year:        2026,
		Reliefs:     map[string]float64{"pension": 400_000, "nhf": 125_000},
	})
	require.NoError(t, err)

	assert.Equal(t, 1_025_000.0, res.TotalReliefs) // 500k rent + 400k pension + 125k nhf
	assert.Equal(t, 3_975_000.0, res.TaxableIncome)
	assert.Equal(t, 499_500.0, res.GrossTax) // 0 + 2.4M*0.15 + 775k*0.18
	assert.Equal(t, 499_500.0, res.NetTax)
	assert.Equal(t, 9.99, res.EffectiveRate)
	require.Len(t, res.BreakdownByBracket, 3)
	assert.Equal(t, 360_000.0, res.BreakdownByBracket[1].TaxInBracket)
	assert.Equal(t, 139_500.0, res.BreakdownByBracket[2].TaxInBracket)
}

func TestCalculateTax_BreakdownSumsToTaxableIncome(t *testing.T) {
	env := newTestEnv(t)

	for _, gross := range []float64{900_000, 2_500_000, 5_000_000, 13_000_000, 75_000_000} {
		res, err := env.svc.CalculateTax(context.Background(), env.userID, TaxCalculationRequest{
			GrossIncome:   gross,
			Year:          2026,
			SaveToHistory: boolPtr(false),
		})
		require.NoError(t, err)

		sum := 0.0
		for _, b := range res.BreakdownByBracket {
			sum += b.TaxableInBracket
		}
		assert.InDelta(t, res.TaxableIncome, sum, 0.001, "gross=%v", gross)
	}
}

func TestCalculateTax_NetTaxMonotonicInGrossIncome(t *testing.T) {
	env := newTestEnv(t)

	prev := -1.0
	for gross := 100_000.0; gross <= 120_000_000; gross *= 1.7 {
		res, err := env.svc.CalculateTax(context.Background(), env.userID, TaxCalculationRequest{
			GrossIncome:   gross,
			Year:          2026,
			SaveToHistory: boolPtr(false),
		})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, res.NetTax, prev, "gross=%v", gross)
		prev = res.NetTax
	}
}

func TestCalculateTax_ZeroTaxFloor(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.svc.CalculateTax(context.Background(), env.userID, TaxCalculationRequest{
		GrossIncome:   800_000,
		Year:          2026,
		SaveToHistory: boolPtr(false),
	})
	require.NoError(t, err)

	assert.Equal(t, 0.0, res.NetTax)
	assert.Equal(t, 0.0, res.EffectiveRate)
}

func TestCalculateTax_ReliefsAbsorbAllIncome(t *testing.T) {
	env := newTestEnv(t)

	// Reliefs exceed gross income; taxable floors at zero, no brackets visited
	res, err := env.svc.CalculateTax(context.Background(), env.userID, TaxCalculationRequest{
		GrossIncome:   1_000_000,
		Year:          2026,
		Reliefs:       map[string]float64{"pension": 2_000_000},
		SaveToHistory: boolPtr(false),
	})
	require.NoError(t, err)

	assert.Equal(t, 0.0, res.TaxableIncome)
	assert.Equal(t, 0.0, res.NetTax)
	assert.Empty(t, res.BreakdownByBracket)
}

func TestCalculateTax_UnboundedTopBracket(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.svc.CalculateTax(context.Background(), env.userID, TaxCalculationRequest{
		GrossIncome:   100_000_000,
		Year:          2026,
		SaveToHistory: boolPtr(false),
	})
	require.NoError(t, err)

	// Rent relief is capped: taxable = 100M - 500k = 99.5M
	assert.Equal(t, 99_500_000.0, res.TaxableIncome)

	require.Len(t, res.BreakdownByBracket, 6)
	top := res.BreakdownByBracket[5]
	assert.Nil(t, top.MaxIncome)
	assert.Equal(t, 49_500_000.0, top.TaxableInBracket) // 99.5M - 50M ceiling of bracket 5
	assert.Equal(t, 0.25, top.Rate)
}

func TestCalculateTax_UnknownYear(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.svc.CalculateTax(context.Background(), env.userID, TaxCalculationRequest{
		GrossIncome: 5_000_000,
		Year:        1999,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoBracketsForYear)
	assert.Nil(t, res)
	assert.Empty(t, env.calcs.created, "no log entry on failure")
}

func TestCalculateTax_RejectsNonPositiveIncome(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.CalculateTax(context.Background(), env.userID, TaxCalculationRequest{
		GrossIncome: 0,
		Year:        2026,
	})
	assert.ErrorIs(t, err, ErrInvalidIncome)
}

func TestCalculateTax_IdempotentWithoutHistory(t *testing.T) {
	env := newTestEnv(t)
	req := TaxCalculationRequest{
		GrossIncome:   7_345_678.90,
		Year:          2026,
		Reliefs:       map[string]float64{"pension": 123_456.78},
		SaveToHistory: boolPtr(false),
	}

	first, err := env.svc.CalculateTax(context.Background(), env.userID, req)
	require.NoError(t, err)
	second, err := env.svc.CalculateTax(context.Background(), env.userID, req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Empty(t, env.calcs.created)
}

// --- History persistence ---

func TestCalculateTax_SavesHistory(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.svc.CalculateTax(context.Background(), env.userID, TaxCalculationRequest{
		GrossIncome: 5_000_000,
		Year:        2026,
		Reliefs:     map[string]float64{"pension": 400_000},
	})
	require.NoError(t, err)
	assert.Empty(t, res.Warning)

	require.Len(t, env.calcs.created, 1)
	saved := env.calcs.created[0]
	assert.Equal(t, env.userID, saved.UserID.String())
	assert.Equal(t, 2026, saved.CalculationYear)
	assert.True(t, saved.GrossIncome.Equal(decimal.NewFromInt(5_000_000)))
	assert.True(t, saved.NetTax.Round(2).Equal(decimal.NewFromFloat(res.NetTax)))
	assert.True(t, strings.HasPrefix(saved.Notes, "Reliefs: "))
	assert.Contains(t, saved.TaxBracketBreakdown, `"bracket_order":1`)
}

func TestCalculateTax_PersistenceFailureStillReturnsResult(t *testing.T) {
	env := newTestEnv(t)
	env.calcs.failCreate = true

	res, err := env.svc.CalculateTax(context.Background(), env.userID, TaxCalculationRequest{
		GrossIncome: 5_000_000,
		Year:        2026,
	})
	require.NoError(t, err, "a failed history write must not fail the computation")
	require.NotNil(t, res)
	assert.Equal(t, ErrCalculationNotSaved.Error(), res.Warning)
	assert.Greater(t, res.NetTax, 0.0)
}

// --- Annual estimates ---

func TestEstimateAnnualTax_ScenarioB(t *testing.T) {
	env := newTestEnv(t)

	est, err := env.svc.EstimateAnnualTax(context.Background(), env.userID, 500_000, 2026)
	require.NoError(t, err)

	assert.Equal(t, 500_000.0, est.CurrentMonthlyIncome)
	assert.Equal(t, 6_000_000.0, est.EstimatedAnnualIncome)
	assert.Equal(t, 774_000.0, est.EstimatedAnnualTax) // rent capped at 500k; 2.4M*0.15 + 2.3M*0.18
	assert.Equal(t, 64_500.0, est.EstimatedMonthlyTax)
	assert.Equal(t, 435_500.0, est.EstimatedTakeHomeMonthly)
	assert.Equal(t, 2026, est.Year)

	assert.Empty(t, env.calcs.created, "estimates are never persisted")
}

func TestEstimateAnnualTax_RejectsNonPositiveIncome(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.EstimateAnnualTax(context.Background(), env.userID, 0, 2026)
	assert.ErrorIs(t, err, ErrInvalidIncome)

	_, err = env.svc.EstimateAnnualTax(context.Background(), env.userID, -5, 2026)
	assert.ErrorIs(t, err, ErrInvalidIncome)
}

func TestEstimateAnnualTax_UnknownYear(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.EstimateAnnualTax(context.Background(), env.userID, 500_000, 1999)
	assert.ErrorIs(t, err, ErrNoBracketsForYear)
}

// --- History & reliefs access ---

func TestGetTaxHistory(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.CalculateTax(context.Background(), env.userID, TaxCalculationRequest{
		GrossIncome: 5_000_000,
		Year:        2026,
		Reliefs:     map[string]float64{"pension": 400_000, "nhf": 125_000},
	})
	require.NoError(t, err)

	history, err := env.svc.GetTaxHistory(context.Background(), env.userID, env.userID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), history.TotalCalculations)
	require.Len(t, history.Calculations, 1)
	assert.Equal(t, 499_500.0, history.Calculations[0].NetTax)
}

func TestGetTaxHistory_OtherUserForbidden(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.GetTaxHistory(context.Background(), uuid.NewString(), env.userID, 1, 10)
	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestAddTaxRelief(t *testing.T) {
	env := newTestEnv(t)

	relief, err := env.svc.AddTaxRelief(context.Background(), env.userID, CreateTaxReliefRequest{
		UserID:     env.userID,
		ReliefType: "pension",
		Amount:     400_000,
		Year:       2026,
	})
	require.NoError(t, err)
	assert.Equal(t, "pension", relief.ReliefType)
	assert.Equal(t, 400_000.0, relief.Amount)
	assert.False(t, relief.Verified, "new claims start unverified")
	require.Len(t, env.reliefs.created, 1)
}

func TestAddTaxRelief_OtherUserForbidden(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.AddTaxRelief(context.Background(), env.userID, CreateTaxReliefRequest{
		UserID:     uuid.NewString(),
		ReliefType: "pension",
		Amount:     400_000,
		Year:       2026,
	})
	assert.ErrorIs(t, err, ErrNotAuthorized)
	assert.Empty(t, env.reliefs.created)
}

func TestGetUserReliefs_VerifiedFilter(t *testing.T) {
	env := newTestEnv(t)
	uid := uuid.MustParse(env.userID)

	env.reliefs.created = []model.TaxRelief{
		{ID: uuid.New(), UserID: uid, ReliefType: "pension", Amount: decimal.NewFromInt(400_000), Year: 2026, Verified: true},
		{ID: uuid.New(), UserID: uid, ReliefType: "nhf", Amount: decimal.NewFromInt(125_000), Year: 2026},
	}

	all, err := env.svc.GetUserReliefs(context.Background(), env.userID, env.userID, 2026, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	verified, err := env.svc.GetUserReliefs(context.Background(), env.userID, env.userID, 2026, true)
	require.NoError(t, err)
	require.Len(t, verified, 1)
	assert.Equal(t, "pension", verified[0].ReliefType)
}

// --- Bracket lookups ---

func TestGetTaxBrackets(t *testing.T) {
	env := newTestEnv(t)

	brackets, err := env.svc.GetTaxBrackets(context.Background(), 2026)
	require.NoError(t, err)
	require.Len(t, brackets, 6)
	assert.Equal(t, 0.0, brackets[0].Rate)
	assert.Nil(t, brackets[5].MaxIncome)

	_, err = env.svc.GetTaxBrackets(context.Background(), 1999)
	assert.ErrorIs(t, err, ErrNoBracketsForYear)
}

func TestGetAvailableYears(t *testing.T) {
	env := newTestEnv(t)

	years, err := env.svc.GetAvailableYears(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{2026}, years)
}
