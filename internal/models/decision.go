// internal/models/decision.go
package models

// Final decision states. The set is closed: nothing outside these four is
// ever emitted.
const (
	DecisionApproved         = "approved"
	DecisionDenied           = "denied"
	DecisionDeniedAssetFraud = "denied_asset_fraud"
	DecisionPendingReview    = "pending_asset_review"
)

// Adjustment factor bounds applied after all collateral factors multiply out.
const (
	AdjustmentFactorMin = 0.5
	AdjustmentFactorMax = 1.3
)

// ScoreResult is the raw model probability for one application.
type ScoreResult struct {
	ApplicationID string  `json:"applicationId"`
	BaseScore     float64 `json:"baseScore"`
	Fallback      bool    `json:"fallback,omitempty"` // legacy discrete-prediction transform used
}

// AdjustedScore is the collateral-adjusted model score for one application.
type AdjustedScore struct {
	ApplicationID    string   `json:"applicationId"`
	AdjustmentFactor float64  `json:"adjustmentFactor"`
	LTV              *float64 `json:"ltv,omitempty"`
	Score            float64  `json:"score"`
	AssetOverride    string   `json:"assetOverride,omitempty"` // denied_asset_fraud | pending_asset_review
}

// LoanOption is the standard proposal attached to approvals.
type LoanOption struct {
	Type                string  `json:"type"`
	Amount              float64 `json:"amount,omitempty"`
	TermMonths          int     `json:"termMonths,omitempty"`
	MonthlyReliefFactor float64 `json:"monthlyReliefFactor,omitempty"`
	Note                string  `json:"note,omitempty"`
}

// ConsolidationLoan is the buyback proposal attached to certain denials.
type ConsolidationLoan struct {
	Type          string  `json:"type"`
	BuybackAmount float64 `json:"buybackAmount"`
	NewTermMonths int     `json:"newTermMonths,omitempty"`
	Note          string  `json:"note,omitempty"`
}

// Proposal bundles the optional restructuring offers of a rule verdict.
type Proposal struct {
	LoanOption        *LoanOption        `json:"proposedLoanOption,omitempty"`
	ConsolidationLoan *ConsolidationLoan `json:"proposedConsolidationLoan,omitempty"`
}

// RuleVerdict is the output of exactly one rule set for one application.
type RuleVerdict struct {
	Decision string          `json:"decision"` // approved | denied
	Checks   map[string]bool `json:"checks"`
	Proposal Proposal        `json:"proposal"`
}

// FinalDecision is the resolved outcome for one application. It is derived,
// never stored independently of its inputs.
type FinalDecision struct {
	ApplicationID string          `json:"applicationId"`
	Decision      string          `json:"decision"`
	Reasons       map[string]bool `json:"reasons"`
	OverrideTag   string          `json:"overrideTag,omitempty"`
}

// RunParams is the full run-level parameter set for an appraisal batch.
// Pointer fields distinguish "unset" from zero.
type RunParams struct {
	RuleMode           string   `json:"ruleMode"`
	Threshold          *float64 `json:"threshold,omitempty"`
	TargetApprovalRate *float64 `json:"targetApprovalRate,omitempty"`
	RandomBand         bool     `json:"randomBand,omitempty"`
	TargetLTV          float64  `json:"targetLtv"`

	MaxDebtToIncome        float64 `json:"maxDebtToIncome"`
	MinEmploymentYears     int     `json:"minEmploymentYears"`
	MinCreditHistoryLength int     `json:"minCreditHistoryLength"`
	SalaryFloor            float64 `json:"salaryFloor"`
	MaxNumDelinquencies    int     `json:"maxNumDelinquencies"`
	MaxCurrentLoans        int     `json:"maxCurrentLoans"`
	RequestedAmountMin     float64 `json:"requestedAmountMin"`
	RequestedAmountMax     float64 `json:"requestedAmountMax"`
	LoanTermMonthsAllowed  []int   `json:"loanTermMonthsAllowed,omitempty"`
	MinIncomeDebtRatio     float64 `json:"minIncomeDebtRatio"`
	CompoundedDebtFactor   float64 `json:"compoundedDebtFactor"`
	MonthlyDebtRelief      float64 `json:"monthlyDebtRelief"`

	NDIValue float64 `json:"ndiValue"`
	NDIRatio float64 `json:"ndiRatio"`

	BridgeJoinKey string `json:"bridgeJoinKey,omitempty"`
}

// DefaultRunParams returns the documented rule defaults.
func DefaultRunParams() RunParams {
	return RunParams{
		RuleMode:               "classic",
		TargetLTV:              0.8,
		MaxDebtToIncome:        0.45,
		MinEmploymentYears:     2,
		MinCreditHistoryLength: 3,
		SalaryFloor:            3000.0,
		MaxNumDelinquencies:    2,
		MaxCurrentLoans:        3,
		RequestedAmountMin:     1000.0,
		RequestedAmountMax:     200000.0,
		MinIncomeDebtRatio:     0.35,
		CompoundedDebtFactor:   1.0,
		MonthlyDebtRelief:      0.50,
		NDIValue:               800.0,
		NDIRatio:               0.50,
		BridgeJoinKey:          "application_id",
	}
}

// BatchSummary is the run-level rollup surfaced to operators. Every
// non-fatal warning lands in Warnings so "no collateral signal" is
// distinguishable from "signal present but excluded".
type BatchSummary struct {
	RunID           string         `json:"runId"`
	Counts          map[string]int `json:"counts"`
	Total           int            `json:"total"`
	Threshold       float64        `json:"threshold"`
	RuleMode        string         `json:"ruleMode"`
	Bridge          *BridgeSummary `json:"bridge,omitempty"`
	Warnings        []string       `json:"warnings,omitempty"`
	FallbackScoring bool           `json:"fallbackScoring,omitempty"`
}

// Explanation is the per-row audit payload returned with every run.
type Explanation struct {
	ApplicationID     string          `json:"applicationId"`
	Decision          string          `json:"decision"`
	Score             float64         `json:"score"`
	BaseScore         float64         `json:"baseScore"`
	Reasons           map[string]bool `json:"reasons"`
	Proposal          Proposal        `json:"proposal,omitempty"`
	AdjustmentFactor  float64         `json:"adjustmentFactor"`
	LTV               *float64        `json:"ltv,omitempty"`
	CollateralValue   *float64        `json:"collateralValue,omitempty"`
	CollateralStatus  string          `json:"collateralStatus,omitempty"`
	VerificationStage string          `json:"verificationStage,omitempty"`
	Confidence        *float64        `json:"confidence,omitempty"`
	LegitimacyScore   *float64        `json:"legitimacyScore,omitempty"`
	OverrideTag       string          `json:"overrideTag,omitempty"`
}
