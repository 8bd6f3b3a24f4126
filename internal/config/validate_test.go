package config

import (
	"strings"
	"testing"
)

func validConfig() Config {
	return Config{
		DatabaseURL:        "postgres://localhost/scheduler",
		SchedulerURL:       "http://scheduler.internal:9090",
		SchedulerTargetRef: "arn:dispatch:scheduled-post",
		SchedulerRoleRef:   "arn:role:scheduler-invoke",
		PollIntervalStr:    "2s",
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Errorf("valid config should not return error, got: %v", err)
	}
}

func TestValidate_RequiredFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"missing database url", func(c *Config) { c.DatabaseURL = "" }, "DATABASE_URL"},
		{"missing scheduler url", func(c *Config) { c.SchedulerURL = "" }, "SCHEDULER_URL"},
		{"missing target ref", func(c *Config) { c.SchedulerTargetRef = "" }, "SCHEDULER_TARGET_REF"},
		{"missing role ref", func(c *Config) { c.SchedulerRoleRef = "" }, "SCHEDULER_ROLE_REF"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatalf("expected error for missing %s", tt.field)
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error should mention %s: %q", tt.field, err.Error())
			}
		})
	}
}

func TestValidate_InvalidPollInterval(t *testing.T) {
	tests := []struct {
		name     string
		interval string
		wantErr  string
	}{
		{"non-parseable", "invalid", "invalid duration"},
		{"negative", "-1s", "must be positive"},
		{"zero", "0s", "must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.PollIntervalStr = tt.interval

			err := Validate(cfg)
			if err == nil {
				t.Fatalf("expected error for poll_interval=%q", tt.interval)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := validConfig()
	cfg.DatabaseURL = ""
	cfg.PollIntervalStr = "invalid"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected errors")
	}

	errs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if len(errs) != 2 {
		t.Errorf("expected 2 errors, got %d: %v", len(errs), errs)
	}
}

func TestValidateDispatch_InvalidTimeout(t *testing.T) {
	cfg := DispatchConfig{PublishTimeoutStr: "nope"}

	err := ValidateDispatch(cfg)
	if err == nil {
		t.Fatal("expected error for invalid PUBLISH_TIMEOUT")
	}
	if !strings.Contains(err.Error(), "PUBLISH_TIMEOUT") {
		t.Errorf("error should mention PUBLISH_TIMEOUT: %q", err.Error())
	}
}
