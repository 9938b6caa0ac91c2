// internal/workers/credit/evaluate-rules/ruleset_test.go
package evaluaterules

import (
	"testing"

	"creditflow-workers/internal/common/errors"
	"creditflow-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cleanApplication passes every classic check under default params.
func cleanApplication() models.Application {
	return models.Application{
		ApplicationID:       "app-1",
		Income:              6000,
		EmploymentYears:     5,
		DebtToIncome:        0.2,
		CreditHistoryLength: 6,
		NumDelinquencies:    0,
		CurrentLoans:        1,
		RequestedAmount:     15000,
		LoanTermMonths:      36,
		ExistingDebt:        0,
		MonthlyExpenses:     1500,
		MonthlyDebtPayments: 300,
	}
}

func TestSelectRuleSet(t *testing.T) {
	classic, err := SelectRuleSet("classic")
	require.NoError(t, err)
	assert.Equal(t, "classic", classic.Name())

	ndi, err := SelectRuleSet("ndi")
	require.NoError(t, err)
	assert.Equal(t, "ndi", ndi.Name())

	_, err = SelectRuleSet("fuzzy")
	require.Error(t, err)
	stdErr, ok := err.(*errors.StandardError)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeInvalidRuleMode, stdErr.Code)
	assert.False(t, stdErr.Retryable)
}

func TestClassicRuleSet_ApprovesCleanApplication(t *testing.T) {
	params := models.DefaultRunParams()
	app := cleanApplication()

	verdict := (&ClassicRuleSet{}).Evaluate(&app, &params)

	assert.Equal(t, models.DecisionApproved, verdict.Decision)
	assert.Len(t, verdict.Checks, 10)
	for name, pass := range verdict.Checks {
		assert.True(t, pass, "check %s", name)
	}

	require.NotNil(t, verdict.Proposal.LoanOption)
	assert.Equal(t, "standard", verdict.Proposal.LoanOption.Type)
	assert.Equal(t, 15000.0, verdict.Proposal.LoanOption.Amount)
	assert.Equal(t, 36, verdict.Proposal.LoanOption.TermMonths)
	assert.Equal(t, params.MonthlyDebtRelief, verdict.Proposal.LoanOption.MonthlyReliefFactor)
	assert.Nil(t, verdict.Proposal.ConsolidationLoan)
}

func TestClassicRuleSet_HighDTIDeniedWithConsolidation(t *testing.T) {
	params := models.DefaultRunParams()
	app := cleanApplication()
	app.DebtToIncome = 0.5
	app.ExistingDebt = 5000

	verdict := (&ClassicRuleSet{}).Evaluate(&app, &params)

	assert.Equal(t, models.DecisionDenied, verdict.Decision)
	assert.False(t, verdict.Checks["max_dti"])

	require.NotNil(t, verdict.Proposal.ConsolidationLoan)
	assert.Equal(t, 5000.0, verdict.Proposal.ConsolidationLoan.BuybackAmount)
	assert.GreaterOrEqual(t, verdict.Proposal.ConsolidationLoan.NewTermMonths, 24)
	assert.Nil(t, verdict.Proposal.LoanOption)
}

func TestClassicRuleSet_SingleCheckFailures(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(app *models.Application)
		failedCheck string
	}{
		{name: "short employment", mutate: func(a *models.Application) { a.EmploymentYears = 1 }, failedCheck: "min_employment_years"},
		{name: "thin credit file", mutate: func(a *models.Application) { a.CreditHistoryLength = 2 }, failedCheck: "min_credit_history_length"},
		{name: "below salary floor", mutate: func(a *models.Application) { a.Income = 2500 }, failedCheck: "salary_floor"},
		{name: "too many delinquencies", mutate: func(a *models.Application) { a.NumDelinquencies = 3 }, failedCheck: "max_num_delinquencies"},
		{name: "too many open loans", mutate: func(a *models.Application) { a.CurrentLoans = 4 }, failedCheck: "max_current_loans"},
		{name: "amount below minimum", mutate: func(a *models.Application) { a.RequestedAmount = 500 }, failedCheck: "requested_amount_min"},
		{name: "amount above maximum", mutate: func(a *models.Application) { a.RequestedAmount = 250000 }, failedCheck: "requested_amount_max"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := models.DefaultRunParams()
			app := cleanApplication()
			tt.mutate(&app)

			verdict := (&ClassicRuleSet{}).Evaluate(&app, &params)

			assert.Equal(t, models.DecisionDenied, verdict.Decision)
			assert.False(t, verdict.Checks[tt.failedCheck])
		})
	}
}

func TestClassicRuleSet_TermMembership(t *testing.T) {
	params := models.DefaultRunParams()
	params.LoanTermMonthsAllowed = []int{12, 24, 36}

	app := cleanApplication()
	app.LoanTermMonths = 48

	verdict := (&ClassicRuleSet{}).Evaluate(&app, &params)
	assert.False(t, verdict.Checks["loan_term_allowed"])

	app.LoanTermMonths = 24
	verdict = (&ClassicRuleSet{}).Evaluate(&app, &params)
	assert.True(t, verdict.Checks["loan_term_allowed"])
}

func TestClassicRuleSet_IncomeDebtRatio(t *testing.T) {
	params := models.DefaultRunParams()
	app := cleanApplication()

	// compounded = 10000 + 1.0×15000; ratio = 6000/25000 = 0.24 < 0.35
	app.ExistingDebt = 10000
	verdict := (&ClassicRuleSet{}).Evaluate(&app, &params)
	assert.False(t, verdict.Checks["min_income_debt_ratio"])

	// Zero compounded debt pins the ratio at 999.
	params.CompoundedDebtFactor = 0
	params.MinIncomeDebtRatio = 900
	app.ExistingDebt = 0
	verdict = (&ClassicRuleSet{}).Evaluate(&app, &params)
	assert.True(t, verdict.Checks["min_income_debt_ratio"])
}

func TestNDIRuleSet_Approves(t *testing.T) {
	params := models.DefaultRunParams()
	app := models.Application{
		ApplicationID:       "app-1",
		Income:              4000,
		MonthlyExpenses:     1000,
		MonthlyDebtPayments: 500,
		RequestedAmount:     15000,
		LoanTermMonths:      36,
	}

	// ndi = 2500, ratio = 0.625: both checks clear the 800 / 0.5 defaults.
	verdict := (&NDIRuleSet{}).Evaluate(&app, &params)

	assert.Equal(t, models.DecisionApproved, verdict.Decision)
	assert.True(t, verdict.Checks["ndi_value"])
	assert.True(t, verdict.Checks["ndi_ratio"])
	require.NotNil(t, verdict.Proposal.LoanOption)
}

func TestNDIRuleSet_DeniesWithConsolidation(t *testing.T) {
	params := models.DefaultRunParams()
	app := models.Application{
		ApplicationID:       "app-1",
		Income:              3000,
		MonthlyExpenses:     2000,
		MonthlyDebtPayments: 600,
	}

	// ndi = 400 < 800.
	verdict := (&NDIRuleSet{}).Evaluate(&app, &params)

	assert.Equal(t, models.DecisionDenied, verdict.Decision)
	assert.False(t, verdict.Checks["ndi_value"])

	require.NotNil(t, verdict.Proposal.ConsolidationLoan)
	assert.Equal(t, 7200.0, verdict.Proposal.ConsolidationLoan.BuybackAmount)
}

func TestNDIRuleSet_NonPositiveIncomeRatioIsZero(t *testing.T) {
	params := models.DefaultRunParams()
	app := models.Application{ApplicationID: "app-1", Income: 0}

	verdict := (&NDIRuleSet{}).Evaluate(&app, &params)

	assert.Equal(t, models.DecisionDenied, verdict.Decision)
	assert.False(t, verdict.Checks["ndi_ratio"])
}
