// internal/models/application.go
package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Application is one row of applicant/loan attributes, resolved from a raw
// tabular record exactly once at ingestion. Downstream workers never touch
// raw column names again.
type Application struct {
	ApplicationID       string  `json:"applicationId"`
	Age                 float64 `json:"age"`
	Income              float64 `json:"income"`
	EmploymentYears     float64 `json:"employmentYears"`
	DebtToIncome        float64 `json:"debtToIncome"`
	CreditHistoryLength float64 `json:"creditHistoryLength"`
	NumDelinquencies    float64 `json:"numDelinquencies"`
	CurrentLoans        float64 `json:"currentLoans"`
	RequestedAmount     float64 `json:"requestedAmount"`
	LoanTermMonths      int     `json:"loanTermMonths"`
	ExistingDebt        float64 `json:"existingDebt"`
	MonthlyExpenses     float64 `json:"monthlyExpenses"`
	MonthlyDebtPayments float64 `json:"monthlyDebtPayments"`
	HasCollateral       bool    `json:"hasCollateral"`
	DeclaredCollateral  float64 `json:"declaredCollateralValue"`
	AssetTypeHint       string  `json:"assetTypeHint,omitempty"`
	CustomerSegment     string  `json:"customerSegment,omitempty"`

	// Numeric holds every numeric-coercible source column under its
	// normalized name, for model feature alignment.
	Numeric map[string]float64 `json:"-"`
}

// fieldAliases maps each logical field to its accepted source-column names,
// in resolution order.
var fieldAliases = map[string][]string{
	"application_id":        {"application_id", "loan_id", "id", "app_id"},
	"age":                   {"age"},
	"income":                {"income", "monthly_income"},
	"employment_years":      {"employment_years", "employment_length"},
	"debt_to_income":        {"debt_to_income", "dti"},
	"credit_history_length": {"credit_history_length", "credit_history"},
	"num_delinquencies":     {"num_delinquencies", "delinquencies"},
	"current_loans":         {"current_loans", "open_loans"},
	"requested_amount":      {"requested_amount", "loan_amount", "requested_loan_amount", "loan_amt", "amount_requested"},
	"loan_term_months":      {"loan_term_months", "loan_duration_months", "term_months"},
	"existing_debt":         {"existing_debt"},
	"monthly_expenses":      {"monthly_expenses"},
	"monthly_debt_payments": {"monthly_debt_payments", "existing_debt"},
	"declared_collateral":   {"declared_collateral_value", "collateral_value"},
}

// NormalizeKey lowercases a column name and maps every non-alphanumeric run
// to a single underscore, so "Application-ID" and "application_id" join.
func NormalizeKey(name string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// CoerceFloat reads any scalar as float64, falling back to def on malformed
// or missing values. Malformed rows degrade, they never abort a batch.
func CoerceFloat(v interface{}, def float64) float64 {
	switch x := v.(type) {
	case nil:
		return def
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case bool:
		if x {
			return 1.0
		}
		return 0.0
	case string:
		cleaned := strings.TrimSpace(strings.ReplaceAll(x, ",", ""))
		if cleaned == "" {
			return def
		}
		if f, err := strconv.ParseFloat(cleaned, 64); err == nil {
			return f
		}
		return def
	default:
		return def
	}
}

// CoerceBool reads truthy strings/numbers, falling back to def.
func CoerceBool(v interface{}, def bool) bool {
	switch x := v.(type) {
	case nil:
		return def
	case bool:
		return x
	case float64:
		return x != 0
	case int:
		return x != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "1", "true", "yes", "y":
			return true
		case "0", "false", "no", "n":
			return false
		}
		return def
	default:
		return def
	}
}

// ResolveApplication builds a typed Application from one raw record. idx is
// the row position, used to synthesize row_{i} identifiers when the record
// carries no id under any accepted alias.
func ResolveApplication(raw map[string]interface{}, idx int) Application {
	norm := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		norm[NormalizeKey(k)] = v
	}

	lookup := func(field string) (interface{}, bool) {
		for _, alias := range fieldAliases[field] {
			if v, ok := norm[alias]; ok && v != nil && v != "" {
				return v, true
			}
		}
		return nil, false
	}

	num := func(field string, def float64) float64 {
		v, ok := lookup(field)
		if !ok {
			return def
		}
		return CoerceFloat(v, def)
	}

	app := Application{
		ApplicationID:       fmt.Sprintf("row_%d", idx),
		Age:                 num("age", 0),
		Income:              num("income", 0),
		EmploymentYears:     num("employment_years", 0),
		DebtToIncome:        num("debt_to_income", 0),
		CreditHistoryLength: num("credit_history_length", 0),
		NumDelinquencies:    num("num_delinquencies", 0),
		CurrentLoans:        num("current_loans", 0),
		RequestedAmount:     num("requested_amount", 0),
		LoanTermMonths:      int(num("loan_term_months", 0)),
		ExistingDebt:        num("existing_debt", 0),
		MonthlyExpenses:     num("monthly_expenses", 0),
		MonthlyDebtPayments: num("monthly_debt_payments", 0),
		DeclaredCollateral:  num("declared_collateral", 0),
		Numeric:             map[string]float64{},
	}

	if v, ok := lookup("application_id"); ok {
		app.ApplicationID = fmt.Sprintf("%v", v)
	}
	if v, ok := norm["asset_type_hint"]; ok {
		app.AssetTypeHint = fmt.Sprintf("%v", v)
	} else if v, ok := norm["asset_type"]; ok {
		app.AssetTypeHint = fmt.Sprintf("%v", v)
	}
	if v, ok := norm["customer_segment"]; ok {
		app.CustomerSegment = fmt.Sprintf("%v", v)
	}
	if v, ok := norm["has_collateral"]; ok {
		app.HasCollateral = CoerceBool(v, false)
	} else if v, ok := norm["collateral_flag"]; ok {
		app.HasCollateral = CoerceBool(v, false)
	} else {
		app.HasCollateral = app.DeclaredCollateral > 0
	}

	// Retain every numeric column for feature alignment.
	sentinel := -1.2345e18
	for k, v := range norm {
		if f := CoerceFloat(v, sentinel); f != sentinel {
			app.Numeric[k] = f
		}
	}

	return app
}

// ResolveBatch resolves a whole raw batch in row order.
func ResolveBatch(rows []map[string]interface{}) []Application {
	apps := make([]Application, 0, len(rows))
	for i, raw := range rows {
		apps = append(apps, ResolveApplication(raw, i))
	}
	return apps
}
