// Package dispatch is the entry point the external scheduler invokes
// when a one-shot job fires. It authenticates the request, decodes the
// scheduled-content payload and hands the record to the distributor
// that performs the actual publication.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/EducloudHQ/ai-writer-scheduler/internal/domain"
	"github.com/EducloudHQ/ai-writer-scheduler/internal/metrics"
)

// maxRequestBodySize is the maximum allowed request body size (1MB).
const maxRequestBodySize = 1 << 20

// Distributor publishes the content a fired job refers to. The
// publication mechanics live entirely behind this interface.
type Distributor interface {
	Distribute(ctx context.Context, record domain.ScheduledContentRecord) error
}

// MetricsSink defines the interface for recording dispatch metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	DispatchReceived(outcome string, duration time.Duration)
}

// PayloadError reports a fire request whose body could not be decoded
// into a valid dispatch payload.
type PayloadError struct {
	Reason string
	Err    error
}

func (e *PayloadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dispatch payload: %s: %v", e.Reason, e.Err)
	}
	return "dispatch payload: " + e.Reason
}

func (e *PayloadError) Unwrap() error { return e.Err }

// Handler serves the fire endpoint. Requests must carry a valid HMAC
// signature when a secret is configured.
type Handler struct {
	distributor Distributor
	secret      string
	metrics     MetricsSink // optional, nil = disabled
}

// NewHandler creates a dispatch handler.
func NewHandler(distributor Distributor, secret string) *Handler {
	return &Handler{distributor: distributor, secret: secret}
}

// WithMetrics attaches a metrics sink to the handler.
func (h *Handler) WithMetrics(sink MetricsSink) *Handler {
	h.metrics = sink
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	switch {
	case path == "/health" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})

	case path == "/dispatch" && r.Method == http.MethodPost:
		h.fire(w, r)

	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (h *Handler) fire(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	if h.secret != "" {
		signature := r.Header.Get("X-Scheduler-Signature")
		if !VerifySignature(h.secret, body, signature) {
			log.Printf("dispatch: rejected fire with invalid signature")
			h.recordOutcome(metrics.DispatchOutcomeRejected, time.Since(start))
			writeError(w, http.StatusUnauthorized, "invalid signature")
			return
		}
	}

	payload, err := ParsePayload(body)
	if err != nil {
		log.Printf("dispatch: rejected fire: %v", err)
		h.recordOutcome(metrics.DispatchOutcomeRejected, time.Since(start))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	record := payload.ScheduledContent
	receipt := uuid.New().String()
	log.Printf("dispatch: receipt=%s record=%s user=%s context=%s fired",
		receipt, record.ID, record.UserID, payload.Context)

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	if err := h.distributor.Distribute(ctx, record); err != nil {
		log.Printf("dispatch: receipt=%s record=%s distribution failed: %v", receipt, record.ID, err)
		h.recordOutcome(metrics.DispatchOutcomePublishErr, time.Since(start))
		writeError(w, http.StatusBadGateway, "distribution failed")
		return
	}

	h.recordOutcome(metrics.DispatchOutcomeAccepted, time.Since(start))
	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":  "accepted",
		"receipt": receipt,
	})
}

func (h *Handler) recordOutcome(outcome string, duration time.Duration) {
	if h.metrics != nil {
		h.metrics.DispatchReceived(outcome, duration)
	}
}

// ParsePayload decodes and validates a fire request body.
func ParsePayload(body []byte) (domain.DispatchPayload, error) {
	var payload domain.DispatchPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return domain.DispatchPayload{}, &PayloadError{Reason: "invalid json", Err: err}
	}
	if payload.Context != domain.ContextScheduledPost {
		return domain.DispatchPayload{}, &PayloadError{
			Reason: fmt.Sprintf("unexpected context %q", payload.Context),
		}
	}
	if err := payload.ScheduledContent.Validate(); err != nil {
		return domain.DispatchPayload{}, &PayloadError{Reason: "invalid record", Err: err}
	}
	return payload, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("dispatch: json encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
