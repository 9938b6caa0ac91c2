// internal/workers/credit/evaluate-rules/ruleset.go
package evaluaterules

import (
	"creditflow-workers/internal/common/errors"
	"creditflow-workers/internal/models"
)

const epsilon = 1e-9

// RuleSet is one complete affordability policy. Implementations never raise
// on malformed rows: every numeric input arrives pre-coerced, so a bad field
// degrades toward its default instead of failing the batch.
type RuleSet interface {
	Name() string
	Evaluate(app *models.Application, params *models.RunParams) models.RuleVerdict
}

// SelectRuleSet resolves rule_mode to its implementation. An unknown mode is
// a fatal configuration error.
func SelectRuleSet(mode string) (RuleSet, error) {
	switch mode {
	case "classic":
		return &ClassicRuleSet{}, nil
	case "ndi":
		return &NDIRuleSet{}, nil
	default:
		return nil, errors.NewInvalidRuleModeError(mode)
	}
}

// ClassicRuleSet approves only when all ten checks pass.
type ClassicRuleSet struct{}

func (r *ClassicRuleSet) Name() string { return "classic" }

func (r *ClassicRuleSet) Evaluate(app *models.Application, params *models.RunParams) models.RuleVerdict {
	compoundedDebt := app.ExistingDebt + params.CompoundedDebtFactor*app.RequestedAmount
	incomeDebtRatio := 999.0
	if compoundedDebt != 0 {
		incomeDebtRatio = app.Income / (compoundedDebt + epsilon)
	}

	checks := map[string]bool{
		"max_dti":                   app.DebtToIncome <= params.MaxDebtToIncome,
		"min_employment_years":      app.EmploymentYears >= float64(params.MinEmploymentYears),
		"min_credit_history_length": app.CreditHistoryLength >= float64(params.MinCreditHistoryLength),
		"salary_floor":              app.Income >= params.SalaryFloor,
		"max_num_delinquencies":     app.NumDelinquencies <= float64(params.MaxNumDelinquencies),
		"max_current_loans":         app.CurrentLoans <= float64(params.MaxCurrentLoans),
		"requested_amount_min":      app.RequestedAmount >= params.RequestedAmountMin,
		"requested_amount_max":      app.RequestedAmount <= params.RequestedAmountMax,
		"loan_term_allowed":         termAllowed(app.LoanTermMonths, params.LoanTermMonthsAllowed),
		"min_income_debt_ratio":     incomeDebtRatio >= params.MinIncomeDebtRatio,
	}

	verdict := models.RuleVerdict{Decision: decisionFor(checks), Checks: checks}
	if verdict.Decision == models.DecisionApproved {
		verdict.Proposal.LoanOption = &models.LoanOption{
			Type:                "standard",
			Amount:              app.RequestedAmount,
			TermMonths:          termOrDefault(app.LoanTermMonths),
			MonthlyReliefFactor: params.MonthlyDebtRelief,
		}
	} else if app.ExistingDebt > 0 || app.CurrentLoans > 0 {
		verdict.Proposal.ConsolidationLoan = &models.ConsolidationLoan{
			Type:          "consolidation",
			BuybackAmount: app.ExistingDebt,
			NewTermMonths: consolidationTerm(app.LoanTermMonths),
			Note:          "buy back existing debt into a single facility",
		}
	}
	return verdict
}

// NDIRuleSet approves on net disposable income: the absolute floor and the
// income ratio must both hold.
type NDIRuleSet struct{}

func (r *NDIRuleSet) Name() string { return "ndi" }

func (r *NDIRuleSet) Evaluate(app *models.Application, params *models.RunParams) models.RuleVerdict {
	ndi := app.Income - app.MonthlyExpenses - app.MonthlyDebtPayments
	ratio := 0.0
	if app.Income > 0 {
		ratio = ndi / app.Income
	}

	checks := map[string]bool{
		"ndi_value": ndi >= params.NDIValue,
		"ndi_ratio": ratio >= params.NDIRatio,
	}

	verdict := models.RuleVerdict{Decision: decisionFor(checks), Checks: checks}
	if verdict.Decision == models.DecisionApproved {
		verdict.Proposal.LoanOption = &models.LoanOption{
			Type:                "standard",
			Amount:              app.RequestedAmount,
			TermMonths:          termOrDefault(app.LoanTermMonths),
			MonthlyReliefFactor: params.MonthlyDebtRelief,
		}
	} else if app.MonthlyDebtPayments > 0 {
		verdict.Proposal.ConsolidationLoan = &models.ConsolidationLoan{
			Type:          "consolidation",
			BuybackAmount: 12 * app.MonthlyDebtPayments,
			NewTermMonths: consolidationTerm(app.LoanTermMonths),
			Note:          "consolidate twelve months of debt service",
		}
	}
	return verdict
}

func decisionFor(checks map[string]bool) string {
	for _, pass := range checks {
		if !pass {
			return models.DecisionDenied
		}
	}
	return models.DecisionApproved
}

func termAllowed(term int, allowed []int) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, t := range allowed {
		if term == t {
			return true
		}
	}
	return false
}

func termOrDefault(term int) int {
	if term > 0 {
		return term
	}
	return 36
}

func consolidationTerm(term int) int {
	t := termOrDefault(term)
	if t < 24 {
		return 24
	}
	return t
}
