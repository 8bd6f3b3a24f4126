package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/EducloudHQ/ai-writer-scheduler/internal/audit"
	"github.com/EducloudHQ/ai-writer-scheduler/internal/capture"
	"github.com/EducloudHQ/ai-writer-scheduler/internal/config"
	"github.com/EducloudHQ/ai-writer-scheduler/internal/creator"
	"github.com/EducloudHQ/ai-writer-scheduler/internal/domain"
	"github.com/EducloudHQ/ai-writer-scheduler/internal/feed"
	feedpg "github.com/EducloudHQ/ai-writer-scheduler/internal/feed/postgres"
	"github.com/EducloudHQ/ai-writer-scheduler/internal/leaderelection"
	"github.com/EducloudHQ/ai-writer-scheduler/internal/metrics"
	"github.com/EducloudHQ/ai-writer-scheduler/internal/registrar"
	"github.com/EducloudHQ/ai-writer-scheduler/internal/router"
	"github.com/EducloudHQ/ai-writer-scheduler/internal/transport/channel"

	_ "github.com/lib/pq"
)

// Build-time variables set via -ldflags
var (
	version = "dev"
	commit  = "unknown"
)

const (
	exitSuccess       = 0
	exitRuntimeError  = 1
	exitInvalidConfig = 2
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitRuntimeError)
	}

	cmd := os.Args[1]

	switch cmd {
	case "serve":
		os.Exit(runServe())
	case "validate":
		os.Exit(runValidate())
	case "config":
		os.Exit(runConfig())
	case "version":
		os.Exit(runVersion())
	case "--help", "-h", "help":
		printUsage()
		os.Exit(exitSuccess)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(exitRuntimeError)
	}
}

func printUsage() {
	fmt.Println(`scheduler - deferred publication scheduling pipeline

Usage:
  scheduler <command>

Commands:
  serve      Start the change-feed pipeline
  validate   Validate configuration (no connections made)
  config     Print effective configuration as JSON (secrets masked)
  version    Print version information

Environment Variables:
  DATABASE_URL              PostgreSQL connection string (required)
  SCHEDULER_URL             External scheduling service base URL (required)
  SCHEDULER_SECRET          HMAC secret for scheduler requests (optional)
  SCHEDULER_TARGET_REF      Dispatch target reference for jobs (required)
  SCHEDULER_ROLE_REF        Execution role reference for jobs (required)
  SCHEDULER_GROUP           Scheduler group jobs are created in (optional)
  REDIS_ADDR                Redis address for the audit stream (optional)
  HTTP_ADDR                 HTTP server address (default: ":8080")

  POLL_INTERVAL             Change-feed poll interval (default: "2s")
  POLL_BATCH_SIZE           Max feed entries per cycle (default: "100")
  EVENTBUS_BUFFER_SIZE      Event bus buffer capacity (default: "100")
  ROUTER_DRAIN_TIMEOUT      Event drain timeout on shutdown (default: "30s")

  CIRCUIT_BREAKER_THRESHOLD Failures before opening the breaker, 0 disables (default: "5")
  CIRCUIT_BREAKER_COOLDOWN  Open-state cooldown (default: "2m")

  DB_MAX_OPEN_CONNS         Max open database connections (default: "25")
  DB_MAX_IDLE_CONNS         Max idle database connections (default: "5")
  DB_CONN_MAX_LIFETIME      Max connection lifetime (default: "30m")
  HTTP_SHUTDOWN_TIMEOUT     Graceful HTTP shutdown timeout (default: "10s")

  METRICS_ENABLED           Enable Prometheus metrics (default: "false")
  METRICS_PATH              Metrics endpoint path (default: "/metrics")

  LEADER_ENABLED            Gate the poller behind leader election (default: "false")
  LEADER_LOCK_KEY           Advisory lock key, same for all instances (default: "491217")
  LEADER_RETRY_INTERVAL     Follower lock retry interval (default: "5s")
  LEADER_HEARTBEAT_INTERVAL Leader connection heartbeat (default: "2s")

  AUDIT_RETENTION           Audit stream retention (default: "168h")`)
}

func runServe() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}

	// Connect to PostgreSQL
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		return exitRuntimeError
	}
	defer db.Close()

	// Configure connection pool
	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DBConnMaxLifetime)

	log.Printf("scheduler: db pool configured (max_open=%d, max_idle=%d, max_lifetime=%s)",
		cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime)

	if err := db.Ping(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to database: %v\n", err)
		return exitRuntimeError
	}

	// Initialize metrics sink (optional)
	var metricsSink *metrics.PrometheusSink
	if cfg.MetricsEnabled {
		metricsSink = metrics.NewPrometheusSink(prometheus.DefaultRegisterer)
		log.Printf("scheduler: metrics enabled (path=%s)", cfg.MetricsPath)
	} else {
		log.Println("scheduler: METRICS_ENABLED not set; metrics disabled")
	}

	// Event bus between the capture filter and the router
	var busOpts []channel.Option
	if metricsSink != nil {
		busOpts = append(busOpts, channel.WithMetrics(metricsSink))
	}
	bus := channel.NewEventBus(cfg.EventBusBufferSize, busOpts...)

	// Registrar against the external scheduling service
	client := registrar.NewHTTPSchedulerClient(cfg.SchedulerURL, cfg.SchedulerSecret, 0)
	reg := registrar.New(registrar.Config{
		TargetRef: cfg.SchedulerTargetRef,
		RoleRef:   cfg.SchedulerRoleRef,
		GroupRef:  cfg.SchedulerGroup,
	}, client)
	if cfg.CircuitBreakerThreshold > 0 {
		reg = reg.WithBreaker(registrar.NewBreaker(cfg.CircuitBreakerThreshold, cfg.CircuitBreakerCooldown))
		log.Printf("scheduler: circuit breaker enabled (threshold=%d, cooldown=%s)",
			cfg.CircuitBreakerThreshold, cfg.CircuitBreakerCooldown)
	}
	if metricsSink != nil {
		reg = reg.WithMetrics(metricsSink)
	}

	// Schedule creator behind the router
	create := creator.New(reg)
	if metricsSink != nil {
		create = create.WithMetrics(metricsSink)
	}

	rtr := router.New(router.Rule{
		Source:     domain.EventSourceScheduledContent,
		DetailType: domain.EventTypeScheduleCreated,
		Handler:    create,
	}).WithDrainTimeout(cfg.RouterDrainTimeout)
	if metricsSink != nil {
		rtr = rtr.WithMetrics(metricsSink)
	}

	// Wire the audit observer if Redis is configured
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})
		observer := audit.NewRedisObserver(redisClient).WithRetention(cfg.AuditRetention)
		rtr = rtr.WithObserver(observer)
		log.Printf("scheduler: audit stream enabled (redis=%s, retention=%s)", cfg.RedisAddr, cfg.AuditRetention)
	} else {
		log.Println("scheduler: REDIS_ADDR not set; audit stream disabled")
	}

	// Capture filter and feed poller
	capt := capture.New(bus)
	if metricsSink != nil {
		capt = capt.WithMetrics(metricsSink)
	}

	poller := feed.New(feed.Config{
		Interval:  cfg.PollInterval,
		BatchSize: cfg.PollBatchSize,
	}, feedpg.New(db), capt)
	if metricsSink != nil {
		poller = poller.WithMetrics(metricsSink)
	}

	// HTTP server: health plus optional metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		code := http.StatusOK
		if err := db.PingContext(r.Context()); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{"status": status})
	})
	if cfg.MetricsEnabled {
		mux.Handle(cfg.MetricsPath, promhttp.Handler())
	}
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	go func() {
		log.Printf("scheduler: http server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("scheduler: http server error: %v", err)
		}
	}()

	// Separate contexts for the intake and the router enable ordered
	// shutdown: stop producing first, then drain.
	intakeCtx, cancelIntake := context.WithCancel(context.Background())
	routerCtx, cancelRouter := context.WithCancel(context.Background())

	var intakeWg sync.WaitGroup
	var routerWg sync.WaitGroup

	routerWg.Add(1)
	go func() {
		defer routerWg.Done()
		rtr.Run(routerCtx, bus.Channel())
	}()

	if cfg.LeaderEnabled {
		var pollerWg sync.WaitGroup
		elector := leaderelection.New(
			db,
			cfg.LeaderLockKey,
			cfg.LeaderRetryInterval,
			cfg.LeaderHeartbeatInterval,
			func(leaderCtx context.Context) {
				pollerWg.Add(1)
				go func() {
					defer pollerWg.Done()
					poller.Run(leaderCtx)
				}()
			},
			pollerWg.Wait,
		)
		if metricsSink != nil {
			elector = elector.WithMetrics(metricsSink)
		}
		intakeWg.Add(1)
		go func() {
			defer intakeWg.Done()
			elector.Run(intakeCtx)
		}()
		log.Printf("scheduler: leader election enabled (lock_key=%d)", cfg.LeaderLockKey)
	} else {
		intakeWg.Add(1)
		go func() {
			defer intakeWg.Done()
			poller.Run(intakeCtx)
		}()
		log.Println("scheduler: LEADER_ENABLED not set; polling unconditionally")
	}

	log.Printf("scheduler: started (poll=%s, http=%s, scheduler=%s)",
		cfg.PollInterval, cfg.HTTPAddr, cfg.SchedulerURL)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig

	log.Printf("scheduler: received signal %v, shutting down", received)

	// Phase 1: Stop the intake (no new events emitted)
	log.Println("scheduler: stopping feed intake...")
	cancelIntake()
	intakeWg.Wait()
	log.Println("scheduler: feed intake stopped")

	// Phase 2: Stop the router (drains buffered events before returning)
	log.Println("scheduler: stopping router (draining events)...")
	cancelRouter()
	routerWg.Wait()
	log.Println("scheduler: router stopped")

	// Phase 3: Stop HTTP server with graceful shutdown
	log.Println("scheduler: stopping http server...")
	httpShutdownCtx, httpShutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer httpShutdownCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		log.Printf("scheduler: http server shutdown error: %v", err)
	}
	log.Println("scheduler: http server stopped")

	log.Println("scheduler: stopped")
	return exitSuccess
}

func runValidate() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitInvalidConfig
	}

	fmt.Println("configuration valid")
	return exitSuccess
}

func runConfig() int {
	cfg := config.Load()

	data, err := cfg.MaskedJSON()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal config: %v\n", err)
		return exitRuntimeError
	}

	fmt.Println(string(data))
	return exitSuccess
}

func runVersion() int {
	fmt.Printf("scheduler version %s (commit: %s)\n", version, commit)
	return exitSuccess
}
