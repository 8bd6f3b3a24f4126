package config

import (
	"encoding/json"
	"os"
	"time"
)

// DispatchConfig holds configuration for the dispatch entry point
// service.
type DispatchConfig struct {
	HTTPAddr string `json:"http_addr"`

	// DispatchSecret verifies the scheduler's fire requests. Empty
	// disables verification.
	DispatchSecret string `json:"-"`

	// PublishURL is where fired records are forwarded. Empty runs the
	// service with a log-only distributor.
	PublishURL    string `json:"publish_url"`
	PublishSecret string `json:"-"`

	PublishTimeout    time.Duration `json:"-"`
	PublishTimeoutStr string        `json:"publish_timeout"`

	HTTPShutdownTimeout    time.Duration `json:"-"`
	HTTPShutdownTimeoutStr string        `json:"http_shutdown_timeout"`

	MetricsEnabled bool   `json:"metrics_enabled"`
	MetricsPath    string `json:"metrics_path"`
}

// LoadDispatch reads dispatch service configuration from environment
// variables with defaults.
func LoadDispatch() DispatchConfig {
	cfg := DispatchConfig{
		HTTPAddr:               os.Getenv("HTTP_ADDR"),
		DispatchSecret:         os.Getenv("DISPATCH_SECRET"),
		PublishURL:             os.Getenv("PUBLISH_URL"),
		PublishSecret:          os.Getenv("PUBLISH_SECRET"),
		PublishTimeoutStr:      os.Getenv("PUBLISH_TIMEOUT"),
		HTTPShutdownTimeoutStr: os.Getenv("HTTP_SHUTDOWN_TIMEOUT"),
		MetricsEnabled:         os.Getenv("METRICS_ENABLED") == "true",
		MetricsPath:            os.Getenv("METRICS_PATH"),
	}

	if cfg.HTTPAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			cfg.HTTPAddr = ":" + port
		} else {
			cfg.HTTPAddr = ":8081"
		}
	}
	if cfg.PublishTimeoutStr == "" {
		cfg.PublishTimeoutStr = "30s"
	}
	if cfg.HTTPShutdownTimeoutStr == "" {
		cfg.HTTPShutdownTimeoutStr = "10s"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}

	if d, err := time.ParseDuration(cfg.PublishTimeoutStr); err == nil {
		cfg.PublishTimeout = d
	}
	if d, err := time.ParseDuration(cfg.HTTPShutdownTimeoutStr); err == nil {
		cfg.HTTPShutdownTimeout = d
	}

	return cfg
}

// ValidateDispatch checks the dispatch configuration for errors.
func ValidateDispatch(cfg DispatchConfig) error {
	var errs ValidationErrors

	errs = appendDurationErrors(errs, "PUBLISH_TIMEOUT", cfg.PublishTimeoutStr)
	errs = appendDurationErrors(errs, "HTTP_SHUTDOWN_TIMEOUT", cfg.HTTPShutdownTimeoutStr)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// MaskedJSON returns the configuration as JSON with secrets masked.
func (c DispatchConfig) MaskedJSON() ([]byte, error) {
	masked := struct {
		HTTPAddr            string `json:"http_addr"`
		DispatchSecret      string `json:"dispatch_secret"`
		PublishURL          string `json:"publish_url"`
		PublishSecret       string `json:"publish_secret"`
		PublishTimeout      string `json:"publish_timeout"`
		HTTPShutdownTimeout string `json:"http_shutdown_timeout"`
		MetricsEnabled      bool   `json:"metrics_enabled"`
		MetricsPath         string `json:"metrics_path"`
	}{
		HTTPAddr:            c.HTTPAddr,
		DispatchSecret:      maskSecret(c.DispatchSecret),
		PublishURL:          c.PublishURL,
		PublishSecret:       maskSecret(c.PublishSecret),
		PublishTimeout:      c.PublishTimeoutStr,
		HTTPShutdownTimeout: c.HTTPShutdownTimeoutStr,
		MetricsEnabled:      c.MetricsEnabled,
		MetricsPath:         c.MetricsPath,
	}
	return json.MarshalIndent(masked, "", "  ")
}
