// File: internal/config/config_test.go
package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConfig(t *testing.T) *Config {
	t.Helper()
	v := viper.New()
	v.Set("run.screenshot_dir", t.TempDir())
	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)
	return cfg
}

func TestNewConfigFromViperDefaults(t *testing.T) {
	cfg := newTestConfig(t)

	// Verify a few key defaults to ensure the mechanism works.
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.Equal(t, "https://meroshare.cdsc.com.np/#/login", cfg.Portal.LoginURL)
	assert.Equal(t, "/asba/apply/", cfg.Portal.ApplyPathFragment)
	assert.Equal(t, 15*time.Second, cfg.Portal.SelectorTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Portal.OptionPollInterval)
	assert.Equal(t, "10", cfg.Run.Kitta)
	assert.Equal(t, 2*time.Second, cfg.Run.OfferingPause)
	assert.Equal(t, 2, cfg.Run.ClickRetries)
	assert.Equal(t, "accounts.csv", cfg.Storage.AccountsFile)
	assert.Equal(t, "history.csv", cfg.Storage.HistoryFile)
	assert.False(t, cfg.Browser.Headless)
	assert.True(t, cfg.Browser.NoSandbox)
}

func TestNewConfigFromViperOverrides(t *testing.T) {
	v := viper.New()
	v.Set("run.screenshot_dir", t.TempDir())
	v.Set("browser.headless", true)
	v.Set("run.kitta", "20")
	v.Set("portal.selector_timeout", "5s")
	v.Set("storage.accounts_file", filepath.Join("data", "roster.csv"))

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, "20", cfg.Run.Kitta)
	assert.Equal(t, 5*time.Second, cfg.Portal.SelectorTimeout)
	assert.Equal(t, filepath.Join("data", "roster.csv"), cfg.Storage.AccountsFile)
}

func TestConfigValidation(t *testing.T) {
	t.Run("valid defaults", func(t *testing.T) {
		cfg := newTestConfig(t)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("empty login url", func(t *testing.T) {
		cfg := newTestConfig(t)
		cfg.Portal.LoginURL = ""
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "portal.login_url")
	})

	t.Run("non positive selector timeout", func(t *testing.T) {
		cfg := newTestConfig(t)
		cfg.Portal.SelectorTimeout = 0
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "portal timeouts")
	})

	t.Run("empty kitta", func(t *testing.T) {
		cfg := newTestConfig(t)
		cfg.Run.Kitta = ""
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "run.kitta")
	})

	t.Run("negative click retries", func(t *testing.T) {
		cfg := newTestConfig(t)
		cfg.Run.ClickRetries = -1
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "run.click_retries")
	})

	t.Run("empty history file", func(t *testing.T) {
		cfg := newTestConfig(t)
		cfg.Storage.HistoryFile = ""
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "storage.history_file")
	})
}
