package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/EducloudHQ/ai-writer-scheduler/internal/config"
	"github.com/EducloudHQ/ai-writer-scheduler/internal/dispatch"
	"github.com/EducloudHQ/ai-writer-scheduler/internal/domain"
	"github.com/EducloudHQ/ai-writer-scheduler/internal/metrics"
)

func main() {
	cfg := config.LoadDispatch()

	if err := config.ValidateDispatch(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}

	var distributor dispatch.Distributor
	if cfg.PublishURL != "" {
		distributor = dispatch.NewHTTPDistributor(cfg.PublishURL, cfg.PublishSecret, cfg.PublishTimeout)
		log.Printf("dispatchd: forwarding fired records to %s", cfg.PublishURL)
	} else {
		// WARNING: fired records are only logged, never published.
		distributor = &logDistributor{}
		log.Println("dispatchd: WARNING - PUBLISH_URL not set; fired records are logged and discarded")
	}

	handler := dispatch.NewHandler(distributor, cfg.DispatchSecret)
	if cfg.MetricsEnabled {
		sink := metrics.NewPrometheusSink(prometheus.DefaultRegisterer)
		handler = handler.WithMetrics(sink)
		log.Printf("dispatchd: metrics enabled (path=%s)", cfg.MetricsPath)
	}

	mux := http.NewServeMux()
	mux.Handle("/", handler)
	if cfg.MetricsEnabled {
		mux.Handle(cfg.MetricsPath, promhttp.Handler())
	}

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	go func() {
		log.Printf("dispatchd: listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("dispatchd: server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig

	log.Printf("dispatchd: received signal %v, shutting down", received)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("dispatchd: shutdown error: %v", err)
	}

	log.Println("dispatchd: stopped")
}

// logDistributor logs fired records instead of publishing them.
type logDistributor struct{}

func (d *logDistributor) Distribute(ctx context.Context, record domain.ScheduledContentRecord) error {
	body, err := json.Marshal(record)
	if err != nil {
		return err
	}
	log.Printf("dispatchd: would publish record=%s: %s", record.ID, body)
	return nil
}
