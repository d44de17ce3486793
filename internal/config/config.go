// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config is the root application configuration, populated from the config
// file, environment variables and flags via viper. There are no package
// level globals; the loaded Config is passed explicitly to every component.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger"`
	Browser BrowserConfig `mapstructure:"browser"`
	Portal  PortalConfig  `mapstructure:"portal"`
	Run     RunConfig     `mapstructure:"run"`
	Storage StorageConfig `mapstructure:"storage"`
}

// LoggerConfig controls the zap logger and its rotating file sink.
type LoggerConfig struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"`
	AddSource   bool   `mapstructure:"add_source"`
	ServiceName string `mapstructure:"service_name"`
	LogFile     string `mapstructure:"log_file"`
	MaxSize     int    `mapstructure:"max_size"` // megabytes
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAge      int    `mapstructure:"max_age"` // days
	Compress    bool   `mapstructure:"compress"`
}

// BrowserConfig controls the Chrome instance launched for each account.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless"`
	NoSandbox         bool          `mapstructure:"no_sandbox"`
	UserAgent         string        `mapstructure:"user_agent"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
	// PostLoadWait is the settle delay applied after navigation, bounding
	// the portal's client side rendering.
	PostLoadWait time.Duration `mapstructure:"post_load_wait"`
	ExtraArgs    []string      `mapstructure:"extra_args"`
}

// PortalConfig names the portal's entry points and the timing bounds for
// its rendered widgets.
type PortalConfig struct {
	LoginURL     string `mapstructure:"login_url"`
	OfferingsURL string `mapstructure:"offerings_url"`
	// ApplyPathFragment and EditPathFragment identify, by substring of the
	// current URL, whether an offering form is a fresh application or a
	// revision of an existing one.
	ApplyPathFragment string `mapstructure:"apply_path_fragment"`
	EditPathFragment  string `mapstructure:"edit_path_fragment"`

	SelectorTimeout  time.Duration `mapstructure:"selector_timeout"`
	DashboardTimeout time.Duration `mapstructure:"dashboard_timeout"`
	// OptionPollInterval is the cadence at which readiness predicates
	// re-check a dropdown while waiting for the portal to populate it.
	OptionPollInterval time.Duration `mapstructure:"option_poll_interval"`
	OptionSettle       time.Duration `mapstructure:"option_settle"`
	// SubmitSettle bounds the confirmation wait after the final submit,
	// giving the portal time to raise its outcome toast.
	SubmitSettle time.Duration `mapstructure:"submit_settle"`
}

// RunConfig controls a single orchestration run.
type RunConfig struct {
	// Kitta is the applied unit count entered into every application form.
	Kitta string `mapstructure:"kitta"`
	// OfferingPause is the pause between consecutive offerings for one
	// account, keeping the portal's request cadence modest.
	OfferingPause time.Duration `mapstructure:"offering_pause"`
	ScreenshotDir string        `mapstructure:"screenshot_dir"`
	ClickRetries  int           `mapstructure:"click_retries"`
}

// StorageConfig names the on-disk account roster and history ledger.
type StorageConfig struct {
	AccountsFile      string `mapstructure:"accounts_file"`
	HistoryFile       string `mapstructure:"history_file"`
	LegacyHistoryFile string `mapstructure:"legacy_history_file"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// Logger
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "ipopilot")
	v.SetDefault("logger.log_file", "ipopilot.log")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", false)

	// Browser
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.no_sandbox", true)
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.navigation_timeout", 30*time.Second)
	v.SetDefault("browser.post_load_wait", 3*time.Second)
	v.SetDefault("browser.extra_args", []string{})

	// Portal
	v.SetDefault("portal.login_url", "https://meroshare.cdsc.com.np/#/login")
	v.SetDefault("portal.offerings_url", "https://meroshare.cdsc.com.np/#/asba")
	v.SetDefault("portal.apply_path_fragment", "/asba/apply/")
	v.SetDefault("portal.edit_path_fragment", "/asba/edit/")
	v.SetDefault("portal.selector_timeout", 15*time.Second)
	v.SetDefault("portal.dashboard_timeout", 20*time.Second)
	v.SetDefault("portal.option_poll_interval", 250*time.Millisecond)
	v.SetDefault("portal.option_settle", 5*time.Second)
	v.SetDefault("portal.submit_settle", 8*time.Second)

	// Run
	v.SetDefault("run.kitta", "10")
	v.SetDefault("run.offering_pause", 2*time.Second)
	v.SetDefault("run.screenshot_dir", ".")
	v.SetDefault("run.click_retries", 2)

	// Storage
	v.SetDefault("storage.accounts_file", "accounts.csv")
	v.SetDefault("storage.history_file", "history.csv")
	v.SetDefault("storage.legacy_history_file", "completed_applications.json")
}

// NewConfigFromViper builds and validates a Config from the given viper
// instance, applying defaults first.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate enforces the invariants later components assume.
func (c *Config) Validate() error {
	if c.Portal.LoginURL == "" {
		return fmt.Errorf("portal.login_url must not be empty")
	}
	if c.Portal.OfferingsURL == "" {
		return fmt.Errorf("portal.offerings_url must not be empty")
	}
	if c.Portal.ApplyPathFragment == "" || c.Portal.EditPathFragment == "" {
		return fmt.Errorf("portal path fragments must not be empty")
	}
	if c.Portal.SelectorTimeout <= 0 || c.Portal.DashboardTimeout <= 0 {
		return fmt.Errorf("portal timeouts must be positive")
	}
	if c.Portal.OptionPollInterval <= 0 {
		return fmt.Errorf("portal.option_poll_interval must be positive")
	}
	if c.Storage.AccountsFile == "" {
		return fmt.Errorf("storage.accounts_file must not be empty")
	}
	if c.Storage.HistoryFile == "" {
		return fmt.Errorf("storage.history_file must not be empty")
	}
	if c.Run.Kitta == "" {
		return fmt.Errorf("run.kitta must not be empty")
	}
	if c.Run.ClickRetries < 0 {
		return fmt.Errorf("run.click_retries must not be negative")
	}
	if c.Run.ScreenshotDir != "" {
		if err := ensureDir(c.Run.ScreenshotDir); err != nil {
			return fmt.Errorf("run.screenshot_dir: %w", err)
		}
	}
	return nil
}

func ensureDir(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	return os.MkdirAll(abs, 0o755)
}
