// internal/workers/credit/run-appraisal/schema.go
package runappraisal

import (
	"fmt"
	"strings"

	"creditflow-workers/internal/common/errors"

	"github.com/xeipuuv/gojsonschema"
)

// runParamsSchema rejects malformed parameter payloads at the boundary, so a
// bad threshold or rule mode never reaches the pipeline.
const runParamsSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "ruleMode": {"type": "string", "enum": ["classic", "ndi"]},
    "threshold": {"type": "number", "minimum": 0, "maximum": 1},
    "targetApprovalRate": {"type": "number", "exclusiveMinimum": 0, "exclusiveMaximum": 1},
    "randomBand": {"type": "boolean"},
    "targetLtv": {"type": "number", "exclusiveMinimum": 0},
    "maxDebtToIncome": {"type": "number", "minimum": 0},
    "minEmploymentYears": {"type": "integer", "minimum": 0},
    "minCreditHistoryLength": {"type": "integer", "minimum": 0},
    "salaryFloor": {"type": "number", "minimum": 0},
    "maxNumDelinquencies": {"type": "integer", "minimum": 0},
    "maxCurrentLoans": {"type": "integer", "minimum": 0},
    "requestedAmountMin": {"type": "number", "minimum": 0},
    "requestedAmountMax": {"type": "number", "minimum": 0},
    "loanTermMonthsAllowed": {"type": "array", "items": {"type": "integer", "minimum": 1}},
    "minIncomeDebtRatio": {"type": "number", "minimum": 0},
    "compoundedDebtFactor": {"type": "number", "minimum": 0},
    "monthlyDebtRelief": {"type": "number", "minimum": 0},
    "ndiValue": {"type": "number", "minimum": 0},
    "ndiRatio": {"type": "number", "minimum": 0, "maximum": 1},
    "bridgeJoinKey": {"type": "string", "minLength": 1}
  },
  "additionalProperties": false
}`

// validateParams checks a raw params payload against the schema. An empty
// payload is valid and means "all defaults".
func validateParams(raw []byte) error {
	if len(raw) == 0 {
		return nil
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(runParamsSchema),
		gojsonschema.NewBytesLoader(raw),
	)
	if err != nil {
		return errors.NewBatchParamsInvalidError(err.Error())
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
		}
		return errors.NewBatchParamsInvalidError(strings.Join(details, "; "))
	}
	return nil
}
