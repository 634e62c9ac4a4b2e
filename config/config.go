// Package config loads featuresync configuration from YAML: system
// settings, dealership profiles, the page model, and the feature
// dictionary. Configuration is read once at startup; a reload takes effect
// on the next run, never mid-batch.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dealerops/featuresync/driver"
)

// Config is the top-level featuresync configuration.
type Config struct {
	Browser     BrowserConfig       `yaml:"browser"`
	AuthEmail   AuthEmailConfig     `yaml:"auth_email"`
	Processing  ProcessingConfig    `yaml:"processing"`
	StatusAddr  string              `yaml:"status_addr"`
	PageModel   driver.PageModel    `yaml:"page_model"`
	Dealerships []DealershipProfile `yaml:"dealerships"`

	// DictionaryFile points to the feature dictionary YAML.
	DictionaryFile string `yaml:"dictionary_file"`
	// CorrectionsDB is the SQLite file for mapping corrections.
	CorrectionsDB string `yaml:"corrections_db"`
}

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig struct {
	Remote          string        `yaml:"remote"`
	Headless        *bool         `yaml:"headless"`
	RecycleInterval time.Duration `yaml:"recycle_interval"`
}

// AuthEmailConfig configures the mailbox 2FA codes arrive in.
type AuthEmailConfig struct {
	Server       string        `yaml:"server"` // host:port, implicit TLS
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	Mailbox      string        `yaml:"mailbox"`
	Sender       string        `yaml:"sender"`
	CodePattern  string        `yaml:"code_pattern"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Deadline     time.Duration `yaml:"deadline"`
}

// ProcessingConfig holds system-wide defaults a dealership profile may
// override.
type ProcessingConfig struct {
	MaxVehiclesPerBatch int           `yaml:"max_vehicles_per_batch"`
	ConfidenceThreshold int           `yaml:"confidence_threshold"`
	MaxAgeDays          int           `yaml:"max_age_days"`
	VehicleAttempts     int           `yaml:"vehicle_attempts"`
	LoginAttempts       int           `yaml:"login_attempts"`
	SessionIdleTimeout  time.Duration `yaml:"session_idle_timeout"`
}

// Credentials authenticate one dealership against the target application.
type Credentials struct {
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	AuthEmail string `yaml:"auth_email"` // address verification codes are sent to
}

// Override maps a substring pattern to a checkbox id with full confidence,
// ahead of fuzzy matching. Dealership-specific.
type Override struct {
	Pattern  string `yaml:"pattern"`
	Checkbox string `yaml:"checkbox"`
}

// DealershipProfile is one dealership's run configuration. Immutable for
// the duration of a run.
type DealershipProfile struct {
	ID          string      `yaml:"id"`
	Name        string      `yaml:"name"`
	Timezone    string      `yaml:"timezone"`
	Credentials Credentials `yaml:"credentials"`

	// Zero values inherit the processing defaults.
	MaxVehiclesPerBatch int        `yaml:"max_vehicles_per_batch"`
	ConfidenceThreshold int        `yaml:"confidence_threshold"`
	Overrides           []Override `yaml:"overrides"`
}

// LoadFile reads a YAML configuration file and applies defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Processing.MaxVehiclesPerBatch <= 0 {
		c.Processing.MaxVehiclesPerBatch = 50
	}
	if c.Processing.ConfidenceThreshold <= 0 {
		c.Processing.ConfidenceThreshold = 90
	}
	if c.Processing.MaxAgeDays <= 0 {
		c.Processing.MaxAgeDays = 1
	}
	if c.Processing.VehicleAttempts <= 0 {
		c.Processing.VehicleAttempts = 3
	}
	if c.Processing.LoginAttempts <= 0 {
		c.Processing.LoginAttempts = 3
	}
	if c.Processing.SessionIdleTimeout <= 0 {
		c.Processing.SessionIdleTimeout = 30 * time.Minute
	}
	if c.AuthEmail.Mailbox == "" {
		c.AuthEmail.Mailbox = "INBOX"
	}
	if c.AuthEmail.PollInterval <= 0 {
		c.AuthEmail.PollInterval = 5 * time.Second
	}
	if c.AuthEmail.Deadline <= 0 {
		c.AuthEmail.Deadline = 120 * time.Second
	}

	for i := range c.Dealerships {
		d := &c.Dealerships[i]
		if d.MaxVehiclesPerBatch <= 0 {
			d.MaxVehiclesPerBatch = c.Processing.MaxVehiclesPerBatch
		}
		if d.ConfidenceThreshold <= 0 {
			d.ConfidenceThreshold = c.Processing.ConfidenceThreshold
		}
	}
}

func (c *Config) validate() error {
	if len(c.Dealerships) == 0 {
		return fmt.Errorf("no dealerships configured")
	}
	seen := map[string]bool{}
	for _, d := range c.Dealerships {
		if d.ID == "" {
			return fmt.Errorf("dealership without id")
		}
		if seen[d.ID] {
			return fmt.Errorf("duplicate dealership id %q", d.ID)
		}
		seen[d.ID] = true
		if d.Credentials.Username == "" || d.Credentials.Password == "" {
			return fmt.Errorf("dealership %s: missing credentials", d.ID)
		}
	}
	if c.PageModel.BaseURL == "" {
		return fmt.Errorf("page_model.base_url is required")
	}
	return nil
}
