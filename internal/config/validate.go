package config

import (
	"fmt"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:", len(e))
	for _, err := range e {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Validate checks the configuration for errors.
// Returns nil if valid, or ValidationErrors if invalid.
func Validate(cfg Config) error {
	var errs ValidationErrors

	if cfg.DatabaseURL == "" {
		errs = append(errs, ValidationError{
			Field:   "DATABASE_URL",
			Message: "required",
		})
	}
	if cfg.SchedulerURL == "" {
		errs = append(errs, ValidationError{
			Field:   "SCHEDULER_URL",
			Message: "required",
		})
	}
	if cfg.SchedulerTargetRef == "" {
		errs = append(errs, ValidationError{
			Field:   "SCHEDULER_TARGET_REF",
			Message: "required",
		})
	}
	if cfg.SchedulerRoleRef == "" {
		errs = append(errs, ValidationError{
			Field:   "SCHEDULER_ROLE_REF",
			Message: "required",
		})
	}

	errs = appendDurationErrors(errs, "POLL_INTERVAL", cfg.PollIntervalStr)
	errs = appendDurationErrors(errs, "ROUTER_DRAIN_TIMEOUT", cfg.RouterDrainTimeoutStr)
	errs = appendDurationErrors(errs, "CIRCUIT_BREAKER_COOLDOWN", cfg.CircuitBreakerCooldownStr)
	errs = appendDurationErrors(errs, "HTTP_SHUTDOWN_TIMEOUT", cfg.HTTPShutdownTimeoutStr)
	errs = appendDurationErrors(errs, "LEADER_RETRY_INTERVAL", cfg.LeaderRetryIntervalStr)
	errs = appendDurationErrors(errs, "AUDIT_RETENTION", cfg.AuditRetentionStr)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func appendDurationErrors(errs ValidationErrors, field, value string) ValidationErrors {
	if value == "" {
		return errs
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("invalid duration: %v", err),
		})
	}
	if d <= 0 {
		return append(errs, ValidationError{
			Field:   field,
			Message: "must be positive",
		})
	}
	return errs
}
