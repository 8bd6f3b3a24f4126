// scheduler-stub is a local stand-in for the external scheduling
// service. It accepts job creation requests, waits until each job's
// fire expression, posts the stored payload to the job's target URL
// and then forgets the job (delete-after-fire).
//
// Usage:
//
//	ADDR=:9090 SECRET=topsecret go run ./tools/scheduler-stub
package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

type job struct {
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Group          string          `json:"group"`
	Target         string          `json:"target"`
	Role           string          `json:"role"`
	Payload        json.RawMessage `json:"payload"`
	FireExpression string          `json:"fire_expression"`
	DisposalPolicy string          `json:"disposal_policy"`
}

var (
	mu     sync.Mutex
	jobs   = map[string]job{}
	secret string
)

func main() {
	secret = os.Getenv("SECRET")

	addr := ":9090"
	if v := os.Getenv("ADDR"); v != "" {
		addr = v
	}

	http.HandleFunc("/v1/jobs", jobsHandler)
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	log.Printf("scheduler-stub: listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, nil))
}

func jobsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		createJob(w, r)
	case http.MethodGet:
		listJobs(w)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func createJob(w http.ResponseWriter, r *http.Request) {
	var j job
	if err := json.NewDecoder(r.Body).Decode(&j); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if j.Name == "" || j.Target == "" || j.FireExpression == "" {
		http.Error(w, "name, target and fire_expression are required", http.StatusBadRequest)
		return
	}

	fireAt, err := parseFireExpression(j.FireExpression)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	mu.Lock()
	if _, exists := jobs[j.Name]; exists {
		mu.Unlock()
		http.Error(w, "job already exists", http.StatusConflict)
		return
	}
	jobs[j.Name] = j
	mu.Unlock()

	delay := time.Until(fireAt)
	log.Printf("scheduler-stub: job=%s registered, fires at %s (in %s)", j.Name, fireAt.Format(time.RFC3339), delay.Round(time.Second))

	go func() {
		if delay > 0 {
			time.Sleep(delay)
		}
		fire(j)
	}()

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"name": j.Name})
}

func listJobs(w http.ResponseWriter) {
	mu.Lock()
	names := make([]string, 0, len(jobs))
	for name := range jobs {
		names = append(names, name)
	}
	mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"jobs": names})
}

// fire posts the job payload to the target and deletes the job.
func fire(j job) {
	// Delete first so a duplicate name can be registered immediately
	// after the fire, matching delete-after-fire semantics.
	mu.Lock()
	delete(jobs, j.Name)
	mu.Unlock()

	req, err := http.NewRequest(http.MethodPost, j.Target, bytes.NewReader(j.Payload))
	if err != nil {
		log.Printf("scheduler-stub: job=%s bad target: %v", j.Name, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(j.Payload)
		req.Header.Set("X-Scheduler-Signature", hex.EncodeToString(mac.Sum(nil)))
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Printf("scheduler-stub: job=%s fire failed: %v", j.Name, err)
		return
	}
	defer resp.Body.Close()

	log.Printf("scheduler-stub: job=%s fired, target responded %d", j.Name, resp.StatusCode)
}

// parseFireExpression decodes "at(2006-01-02T15:04:05)" as local time.
func parseFireExpression(expr string) (time.Time, error) {
	if !strings.HasPrefix(expr, "at(") || !strings.HasSuffix(expr, ")") {
		return time.Time{}, fmt.Errorf("unsupported fire expression %q", expr)
	}
	t, err := time.ParseInLocation("2006-01-02T15:04:05", expr[3:len(expr)-1], time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid fire expression %q: %v", expr, err)
	}
	return t, nil
}
