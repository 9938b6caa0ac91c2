// internal/workers/collateral/verify-collateral/workflow.go
package verifycollateral

import (
	"hash/fnv"
	"math"
	"math/rand"
	"strings"
	"time"

	"creditflow-workers/internal/models"
)

var assetTypes = []string{
	"Residential Property",
	"Condominium",
	"Townhouse",
	"Commercial Property",
	"Vehicle",
	"Heavy Equipment",
	"Agricultural Land",
}

// Probabilities are the per-stage outcome odds. Tests pin them to 0 or 1 to
// force a path.
type Probabilities struct {
	KYCFail        float64
	DocFail        float64
	DocMonitor     float64
	InspectionFail float64
	CommitteeFail  float64
}

func DefaultProbabilities() Probabilities {
	return Probabilities{
		KYCFail:        0.04,
		DocFail:        0.12,
		DocMonitor:     0.08,
		InspectionFail: 0.10,
		CommitteeFail:  0.05,
	}
}

// Workflow runs the five-stage verification state machine. Every random draw
// comes from a generator seeded by the batch seed plus an FNV hash of
// application id and stage name, so rows are order-independent and safe to
// evaluate concurrently.
type Workflow struct {
	seed  int64
	probs Probabilities
	now   func() time.Time
}

func NewWorkflow(seed int64, probs Probabilities) *Workflow {
	return &Workflow{seed: seed, probs: probs, now: time.Now}
}

func (w *Workflow) rng(appID, scope string) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(appID))
	h.Write([]byte{':'})
	h.Write([]byte(scope))
	return rand.New(rand.NewSource(w.seed ^ int64(h.Sum64())))
}

func (w *Workflow) EvaluateBatch(apps []models.Application) []models.CollateralRecord {
	records := make([]models.CollateralRecord, 0, len(apps))
	for i := range apps {
		records = append(records, w.Evaluate(&apps[i]))
	}
	return records
}

func (w *Workflow) Evaluate(app *models.Application) models.CollateralRecord {
	profile := w.rng(app.ApplicationID, "profile")

	loanAmount := app.RequestedAmount
	declared := app.DeclaredCollateral
	if declared <= 0 && app.HasCollateral {
		declared = loanAmount * uniform(profile, 0.85, 1.5)
	}

	record := models.CollateralRecord{
		ApplicationID:      app.ApplicationID,
		LoanAmountDeclared: round2(loanAmount),
		BorrowerSegment:    app.CustomerSegment,
		LastUpdated:        w.now().UTC(),
	}

	var notes []string
	if !app.HasCollateral {
		record.AssetType = "None"
		record.CollateralStatus = models.StatusMissing
		record.VerificationStage = models.StageNoCollateral
		record.IncludeInCredit = false
		record.CollateralValue = 0
		notes = append(notes, "No collateral declared by borrower.")
	} else {
		record.AssetType = app.AssetTypeHint
		if record.AssetType == "" {
			record.AssetType = assetTypes[profile.Intn(len(assetTypes))]
		}
		w.runStages(app, declared, &record, &notes)
	}

	confidence := round2(uniform(w.rng(app.ApplicationID, "confidence"), 0.78, 0.97))
	legitimacy := round2(uniform(w.rng(app.ApplicationID, "legitimacy"), 0.80, 0.99))
	switch {
	case record.CollateralStatus == models.StatusDeniedFraud:
		confidence = round2(math.Max(0.1, confidence-0.5))
		legitimacy = round2(math.Min(0.4, legitimacy-0.5))
	case record.CollateralStatus == models.StatusPendingReview,
		record.CollateralStatus == models.StatusUnderVerification,
		record.CollateralStatus == models.StatusReEvaluate:
		confidence = round2(math.Max(0.4, confidence-0.2))
		legitimacy = round2(math.Max(0.5, legitimacy-0.25))
	}
	record.Confidence = confidence
	record.LegitimacyScore = legitimacy
	record.Notes = strings.Join(notes, "; ")

	return record
}

// runStages walks the fixed stage order, short-circuiting on the first fail.
// A monitor outcome records the status and keeps going; a later fail still
// overrides it.
func (w *Workflow) runStages(app *models.Application, declared float64, record *models.CollateralRecord, notes *[]string) {
	record.CollateralStatus = models.StatusValidated
	record.VerificationStage = models.StageCompleted
	record.IncludeInCredit = true

	value := declared * uniform(w.rng(app.ApplicationID, "initial_valuation"), 0.92, 1.18)

	for _, stageName := range models.StageOrder {
		rng := w.rng(app.ApplicationID, stageName)
		outcome := w.evaluateStage(stageName, rng, app.RequestedAmount, value)
		value = outcome.value

		record.WorkflowTrace = append(record.WorkflowTrace, models.StageResult{
			Stage:           stageName,
			Decision:        outcome.decision,
			Note:            outcome.note,
			CollateralValue: round2(value),
		})

		if outcome.decision == "fail" {
			record.VerificationStage = stageName
			record.IncludeInCredit = false
			switch stageName {
			case models.StageKYCScreening:
				record.CollateralStatus = models.StatusDeniedFraud
				*notes = append(*notes, "KYC screening flagged suspected fraud.")
			case models.StageDocumentValidation:
				record.CollateralStatus = models.StatusUnderVerification
				*notes = append(*notes, outcome.note)
			case models.StageFieldInspection:
				record.CollateralStatus = models.StatusReEvaluate
				*notes = append(*notes, outcome.note)
			default:
				record.CollateralStatus = models.StatusPendingReview
				*notes = append(*notes, outcome.note)
			}
			break
		}
		if outcome.decision == "monitor" {
			record.CollateralStatus = models.StatusMonitor
			record.VerificationStage = stageName
			record.IncludeInCredit = true
			*notes = append(*notes, outcome.note)
		}
	}

	record.CollateralValue = round2(value)
}

type stageOutcome struct {
	decision string
	note     string
	value    float64
}

func (w *Workflow) evaluateStage(stageName string, rng *rand.Rand, loanAmount, value float64) stageOutcome {
	outcome := stageOutcome{decision: "pass", value: value}

	switch stageName {
	case models.StageKYCScreening:
		if rng.Float64() < w.probs.KYCFail {
			outcome.decision = "fail"
			outcome.note = "Identity or sanction list hit."
		}

	case models.StageDocumentValidation:
		if rng.Float64() < w.probs.DocFail {
			outcome.decision = "fail"
			outcome.note = "Documents inconsistent with registry data."
		} else if rng.Float64() < w.probs.DocMonitor {
			outcome.decision = "monitor"
			outcome.note = "Documents valid but require periodic refresh."
		}

	case models.StageValuationModelling:
		multiplier := 1.0
		if loanAmount > 0 && value > 0 && loanAmount/value > 1.2 {
			multiplier = 1.1
			outcome.decision = "monitor"
			outcome.note = "Loan amount > 120% of collateral, flagged for inspection."
		}
		outcome.value = value * uniform(rng, 0.95, 1.05) * multiplier

	case models.StageFieldInspection:
		if rng.Float64() < w.probs.InspectionFail {
			outcome.decision = "fail"
			outcome.note = "Physical inspection found discrepancies."
			outcome.value = value * uniform(rng, 0.7, 0.95)
		}

	case models.StageCreditCommittee:
		if rng.Float64() < w.probs.CommitteeFail {
			outcome.decision = "fail"
			outcome.note = "Committee requested manual review."
		}
		outcome.value = outcome.value * uniform(rng, 0.97, 1.03)
	}

	return outcome
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
