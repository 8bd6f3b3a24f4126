package registrar

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/EducloudHQ/ai-writer-scheduler/internal/domain"
)

// DefaultRequestTimeout bounds a single create-job call.
const DefaultRequestTimeout = 30 * time.Second

type createJobRequest struct {
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Group          string          `json:"group"`
	Target         string          `json:"target"`
	Role           string          `json:"role"`
	Payload        json.RawMessage `json:"payload"`
	FireExpression string          `json:"fire_expression"`
	DisposalPolicy string          `json:"disposal_policy"`
}

// HTTPSchedulerClient implements SchedulerClient over the scheduler
// service's HTTP API. Requests are HMAC-signed when a secret is set.
type HTTPSchedulerClient struct {
	baseURL string
	secret  string
	timeout time.Duration
	client  *http.Client
}

// NewHTTPSchedulerClient creates a client for the given endpoint.
func NewHTTPSchedulerClient(baseURL, secret string, timeout time.Duration) *HTTPSchedulerClient {
	if timeout == 0 {
		timeout = DefaultRequestTimeout
	}
	return &HTTPSchedulerClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secret,
		timeout: timeout,
		client:  &http.Client{},
	}
}

// CreateJob posts the job to the scheduler service. A 409 maps to
// ErrJobExists; other failures map to *ServiceError.
func (c *HTTPSchedulerClient) CreateJob(ctx context.Context, job domain.ScheduleJob) error {
	body, err := json.Marshal(createJobRequest{
		Name:           job.Name,
		Description:    job.Description,
		Group:          job.GroupRef,
		Target:         job.TargetRef,
		Role:           job.RoleRef,
		Payload:        json.RawMessage(job.Payload),
		FireExpression: job.FireExpression,
		DisposalPolicy: string(job.DisposalPolicy),
	})
	if err != nil {
		return &ServiceError{Err: fmt.Errorf("marshal: %w", err)}
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctxTimeout, http.MethodPost, c.baseURL+"/v1/jobs", bytes.NewReader(body))
	if err != nil {
		return &ServiceError{Err: fmt.Errorf("create request: %w", err)}
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.secret != "" {
		httpReq.Header.Set("X-Scheduler-Signature", computeSignature(c.secret, body))
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return &ServiceError{Err: fmt.Errorf("send: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode == http.StatusConflict {
		return ErrJobExists
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	return &ServiceError{
		StatusCode: resp.StatusCode,
		Err:        fmt.Errorf("create job %s: %s", job.Name, strings.TrimSpace(string(snippet))),
	}
}

func computeSignature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
