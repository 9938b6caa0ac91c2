// internal/workers/credit/evaluate-rules/models.go
package evaluaterules

import "creditflow-workers/internal/models"

type Input struct {
	Applications []models.Application `json:"applications"`
	Params       models.RunParams     `json:"params"`
}

type Verdict struct {
	ApplicationID      string `json:"applicationId"`
	models.RuleVerdict `json:",inline"`
}

type Output struct {
	RuleMode string    `json:"ruleMode"`
	Verdicts []Verdict `json:"verdicts"`
}
