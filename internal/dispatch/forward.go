package dispatch

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/EducloudHQ/ai-writer-scheduler/internal/domain"
)

// HTTPDistributor forwards fired records to the publication service.
type HTTPDistributor struct {
	url     string
	secret  string
	timeout time.Duration
	client  *http.Client
}

// NewHTTPDistributor creates a distributor posting to the given URL.
func NewHTTPDistributor(url, secret string, timeout time.Duration) *HTTPDistributor {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPDistributor{
		url:     url,
		secret:  secret,
		timeout: timeout,
		client:  &http.Client{},
	}
}

// Distribute posts the record with HMAC signature.
// Headers: X-Distributor-Record-ID, X-Distributor-Signature.
func (d *HTTPDistributor) Distribute(ctx context.Context, record domain.ScheduledContentRecord) error {
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctxTimeout, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Distributor-Record-ID", record.ID)
	if d.secret != "" {
		httpReq.Header.Set("X-Distributor-Signature", computeSignature(d.secret, body))
	}

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("publish record %s: status %d", record.ID, resp.StatusCode)
	}
	return nil
}

func computeSignature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks an incoming request body against its HMAC
// signature header.
func VerifySignature(secret string, body []byte, signature string) bool {
	expected := computeSignature(secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}
