// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Decision      DecisionConfig          `mapstructure:"decision"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Registry      RegistryConfig          `mapstructure:"registry"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	SSLEnabled bool     `mapstructure:"ssl_enabled"`
	URL        string   `mapstructure:"url"` // Single URL for backwards compatibility
	TraceIndex string   `mapstructure:"trace_index"`
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// --- Decision Pipeline Configuration ---

// DecisionConfig carries the run-level defaults for the credit decision
// pipeline. Per-run parameter payloads may override any of these; missing or
// malformed values always fall back to this section.
type DecisionConfig struct {
	RuleMode           string   `mapstructure:"rule_mode"`            // classic | ndi
	Threshold          *float64 `mapstructure:"threshold"`            // fixed approval threshold, unset = derive
	TargetApprovalRate *float64 `mapstructure:"target_approval_rate"` // quantile-based threshold when set
	RandomBand         bool     `mapstructure:"random_band"`          // demo-only uniform [0.2,0.6] fallback
	TargetLTV          float64  `mapstructure:"target_ltv"`

	// Classic rule set thresholds
	MaxDebtToIncome        float64 `mapstructure:"max_debt_to_income"`
	MinEmploymentYears     int     `mapstructure:"min_employment_years"`
	MinCreditHistoryLength int     `mapstructure:"min_credit_history_length"`
	SalaryFloor            float64 `mapstructure:"salary_floor"`
	MaxNumDelinquencies    int     `mapstructure:"max_num_delinquencies"`
	MaxCurrentLoans        int     `mapstructure:"max_current_loans"`
	RequestedAmountMin     float64 `mapstructure:"requested_amount_min"`
	RequestedAmountMax     float64 `mapstructure:"requested_amount_max"`
	LoanTermMonthsAllowed  []int   `mapstructure:"loan_term_months_allowed"`
	MinIncomeDebtRatio     float64 `mapstructure:"min_income_debt_ratio"`
	CompoundedDebtFactor   float64 `mapstructure:"compounded_debt_factor"`
	MonthlyDebtRelief      float64 `mapstructure:"monthly_debt_relief"`

	// NDI rule set thresholds
	NDIValue float64 `mapstructure:"ndi_value"`
	NDIRatio float64 `mapstructure:"ndi_ratio"`

	// Collateral bridge
	BridgeJoinKey  string `mapstructure:"bridge_join_key"`
	BridgeCacheTTL int    `mapstructure:"bridge_cache_ttl"` // seconds

	// Model
	ModelPath string `mapstructure:"model_path"` // JSON coefficients for the logistic scorer
}

// --- Observability / Notification Configuration ---

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type NotificationConfig struct {
	AWS struct {
		Region string `mapstructure:"region"`
		SES    struct {
			Enabled   bool   `mapstructure:"enabled"`
			FromEmail string `mapstructure:"from_email"`
		} `mapstructure:"ses"`
		SNS struct {
			Enabled            bool   `mapstructure:"enabled"`
			DefaultSMSSenderID string `mapstructure:"default_sms_sender_id"`
		} `mapstructure:"sns"`
	} `mapstructure:"aws"`

	Webhook struct {
		Enabled bool   `mapstructure:"enabled"`
		URL     string `mapstructure:"url"`
	} `mapstructure:"webhook"`

	Recipients []string `mapstructure:"recipients"`
}

type RegistryConfig struct {
	Path string `mapstructure:"path"`
}
