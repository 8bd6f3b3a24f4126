package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

// Both implementations must satisfy the full Sink interface.
var (
	_ Sink = (*NoopSink)(nil)
	_ Sink = (*PrometheusSink)(nil)
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		err        error
		want       string
	}{
		{"success", 200, nil, StatusClass2xx},
		{"created", 201, nil, StatusClass2xx},
		{"client error", 400, nil, StatusClass4xx},
		{"throttled", 429, nil, StatusClass4xx},
		{"server error", 503, nil, StatusClass5xx},
		{"timeout", 0, errors.New("context deadline exceeded"), StatusClassTimeout},
		{"timeout mixed case", 0, errors.New("request Timeout"), StatusClassTimeout},
		{"connection refused", 0, errors.New("dial tcp: connection refused"), StatusClassConnectionError},
		{"dns failure", 0, errors.New("no such host"), StatusClassConnectionError},
		{"other error", 0, errors.New("boom"), StatusClassOtherError},
		{"no code no error", 0, nil, StatusClassOtherError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyStatus(tt.statusCode, tt.err)
			if got != tt.want {
				t.Errorf("ClassifyStatus(%d, %v) = %q, want %q", tt.statusCode, tt.err, got, tt.want)
			}
		})
	}
}

func TestPrometheusSink_DuplicateRegistrationDoesNotPanic(t *testing.T) {
	reg := prometheus.NewRegistry()

	// Registering twice against the same registry logs and continues.
	NewPrometheusSink(reg)
	NewPrometheusSink(reg)
}
