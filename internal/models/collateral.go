// internal/models/collateral.go
package models

import "time"

// Collateral status values emitted by the verification workflow or supplied
// through an external bridge table.
const (
	StatusValidated         = "validated"
	StatusApproved          = "approved"
	StatusCleared           = "cleared"
	StatusCompleted         = "completed"
	StatusMonitor           = "monitor"
	StatusUnderReview       = "under_review"
	StatusUnderVerification = "under_verification"
	StatusReEvaluate        = "re_evaluate"
	StatusPendingReview     = "pending_asset_review"
	StatusFraudulent        = "fraudulent"
	StatusRejected          = "rejected"
	StatusDeniedFraud       = "denied_fraud"
	StatusMissing           = "missing"
)

// FraudStatuses force the denied_asset_fraud override regardless of model
// score or rule verdict.
var FraudStatuses = map[string]bool{
	StatusFraudulent:  true,
	StatusRejected:    true,
	StatusDeniedFraud: true,
}

// ReviewStatuses demote a would-be approval to pending_asset_review.
var ReviewStatuses = map[string]bool{
	StatusUnderReview:       true,
	StatusUnderVerification: true,
	StatusMonitor:           true,
	StatusReEvaluate:        true,
	StatusPendingReview:     true,
}

// Verification workflow stages, in evaluation order.
const (
	StageKYCScreening       = "kyc_screening"
	StageDocumentValidation = "document_validation"
	StageValuationModelling = "valuation_modelling"
	StageFieldInspection    = "field_inspection"
	StageCreditCommittee    = "credit_committee"
	StageNoCollateral       = "no_collateral"
	StageCompleted          = "completed"
)

// StageOrder lists the workflow stages in the order they run.
var StageOrder = []string{
	StageKYCScreening,
	StageDocumentValidation,
	StageValuationModelling,
	StageFieldInspection,
	StageCreditCommittee,
}

// StageResult is one entry of the ordered audit trace.
type StageResult struct {
	Stage           string  `json:"stage"`
	Decision        string  `json:"decision"` // pass | fail | monitor
	Note            string  `json:"note,omitempty"`
	CollateralValue float64 `json:"collateralValue"`
}

// CollateralRecord is the per-application output of the verification
// workflow, also the shape expected from an external bridge table.
type CollateralRecord struct {
	ApplicationID      string        `json:"applicationId"`
	AssetType          string        `json:"assetType,omitempty"`
	CollateralValue    float64       `json:"collateralValue"`
	CollateralStatus   string        `json:"collateralStatus"`
	VerificationStage  string        `json:"verificationStage"`
	Confidence         float64       `json:"confidence"`
	LegitimacyScore    float64       `json:"legitimacyScore"`
	IncludeInCredit    bool          `json:"includeInCredit"`
	Notes              string        `json:"notes,omitempty"`
	LastUpdated        time.Time     `json:"lastUpdated,omitempty"`
	WorkflowTrace      []StageResult `json:"workflowTrace,omitempty"`
	LoanAmountDeclared float64       `json:"loanAmountDeclared,omitempty"`
	BorrowerSegment    string        `json:"borrowerSegment,omitempty"`
}

// BridgeSummary describes a resolved bridge table for the batch summary.
type BridgeSummary struct {
	Rows         int            `json:"rows"`
	JoinKey      string         `json:"joinKey"`
	StatusCounts map[string]int `json:"statusCounts"`
	IncludedRows int            `json:"includedRows"`
	ExcludedRows int            `json:"excludedRows"`
	Warnings     []string       `json:"warnings,omitempty"`
}
