// internal/workers/credit/run-appraisal/store.go
package runappraisal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"creditflow-workers/internal/models"

	"github.com/lib/pq"
)

// RunStore persists appraisal runs and their per-application decisions.
type RunStore struct {
	db *sql.DB
}

func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

const insertRunQuery = `
	INSERT INTO appraisal_runs (run_id, rule_mode, threshold, total, counts, warnings, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, NOW())`

const insertDecisionQuery = `
	INSERT INTO appraisal_decisions (run_id, application_id, decision, score, adjustment_factor, override_tag, reasons)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

// SaveRun writes the summary row and one row per decision in a single
// transaction, so a partial run never lands.
func (s *RunStore) SaveRun(ctx context.Context, summary *models.BatchSummary, explanations []models.Explanation) error {
	counts, err := json.Marshal(summary.Counts)
	if err != nil {
		return fmt.Errorf("marshal counts: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, insertRunQuery,
		summary.RunID,
		summary.RuleMode,
		summary.Threshold,
		summary.Total,
		counts,
		pq.Array(summary.Warnings),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", summary.RunID, err)
	}

	for i := range explanations {
		e := &explanations[i]
		reasons, err := json.Marshal(e.Reasons)
		if err != nil {
			return fmt.Errorf("marshal reasons for %s: %w", e.ApplicationID, err)
		}
		_, err = tx.ExecContext(ctx, insertDecisionQuery,
			summary.RunID,
			e.ApplicationID,
			e.Decision,
			e.Score,
			e.AdjustmentFactor,
			e.OverrideTag,
			reasons,
		)
		if err != nil {
			return fmt.Errorf("insert decision for %s: %w", e.ApplicationID, err)
		}
	}

	return tx.Commit()
}
