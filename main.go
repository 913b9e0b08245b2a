package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"watering-cloud/internal/audit"
	"watering-cloud/internal/auth"
	dashboardapp "watering-cloud/internal/dashboard/application"
	dashboardhttp "watering-cloud/internal/dashboard/interfaces/http"
	"watering-cloud/internal/events"
	heartbeatapp "watering-cloud/internal/heartbeat/application"
	heartbeatnotify "watering-cloud/internal/heartbeat/notify"
	"watering-cloud/internal/migrate"
	"watering-cloud/internal/observability/metrics"
	registryapp "watering-cloud/internal/registry/application"
	registryrepo "watering-cloud/internal/registry/infrastructure/postgres"
	registryhttp "watering-cloud/internal/registry/interfaces/http"
	relayapp "watering-cloud/internal/relay/application"
	relayrepo "watering-cloud/internal/relay/infrastructure/postgres"
	relayhttp "watering-cloud/internal/relay/interfaces/http"
	"watering-cloud/internal/reports"
	schedulesapp "watering-cloud/internal/schedules/application"
	schedulesrepo "watering-cloud/internal/schedules/infrastructure/postgres"
	scheduleshttp "watering-cloud/internal/schedules/interfaces/http"
	sensorsapp "watering-cloud/internal/sensors/application"
	sensorsrepo "watering-cloud/internal/sensors/infrastructure/postgres"
	sensorshttp "watering-cloud/internal/sensors/interfaces/http"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	_ = godotenv.Load()

	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	if cfg.MigrationsPath != "" {
		if err := migrate.Run(db, cfg.MigrationsPath, logger); err != nil {
			logger.Fatalf("migrate error: %v", err)
		}
	}

	metrics.Init(db, logger)
	auditRepo := audit.NewRepository(db)

	var publisher events.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			logger.Fatalf("kafka publisher error: %v", err)
		}
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	} else {
		publisher = events.NewLogPublisher(logger)
	}

	deviceRepo := registryrepo.NewDeviceRepository(db)
	deviceService, err := registryapp.NewService(deviceRepo, systemClock{})
	if err != nil {
		logger.Fatalf("registry service error: %v", err)
	}
	deviceAuth, err := auth.NewDeviceKeyMiddleware(deviceService)
	if err != nil {
		logger.Fatalf("device auth error: %v", err)
	}
	deviceHandler, err := registryhttp.NewHandler(deviceService, deviceAuth, publisher)
	if err != nil {
		logger.Fatalf("device handler error: %v", err)
	}

	heartbeatCfg, err := heartbeatapp.LoadConfig()
	if err != nil {
		logger.Fatalf("heartbeat config error: %v", err)
	}
	evaluatorOpts := []heartbeatapp.Option{heartbeatapp.WithPublisher(publisher)}
	if heartbeatCfg.WebhookURL != "" {
		channel, err := heartbeatnotify.NewWebhookChannel(heartbeatCfg.WebhookURL)
		if err != nil {
			logger.Fatalf("heartbeat webhook error: %v", err)
		}
		evaluatorOpts = append(evaluatorOpts, heartbeatapp.WithNotifyChannel(channel))
	}
	evaluator, err := heartbeatapp.NewEvaluator(deviceRepo, heartbeatapp.SystemClock{}, heartbeatCfg.Threshold, logger, evaluatorOpts...)
	if err != nil {
		logger.Fatalf("heartbeat evaluator error: %v", err)
	}
	go evaluator.Start(context.Background(), heartbeatCfg.Interval)

	sensorRepo, err := sensorsrepo.NewLogRepository(db)
	if err != nil {
		logger.Fatalf("sensor repo error: %v", err)
	}
	sensorService, err := sensorsapp.NewService(sensorRepo, publisher)
	if err != nil {
		logger.Fatalf("sensor service error: %v", err)
	}
	sensorHandler, err := sensorshttp.NewHandler(sensorService, deviceAuth)
	if err != nil {
		logger.Fatalf("sensor handler error: %v", err)
	}

	relayRepo, err := relayrepo.NewLogRepository(db)
	if err != nil {
		logger.Fatalf("relay repo error: %v", err)
	}
	relayService, err := relayapp.NewService(relayRepo, deviceRepo)
	if err != nil {
		logger.Fatalf("relay service error: %v", err)
	}
	relayHandler, err := relayhttp.NewHandler(relayService, deviceAuth, auditRepo)
	if err != nil {
		logger.Fatalf("relay handler error: %v", err)
	}

	scheduleRepo, err := schedulesrepo.NewScheduleRepository(db)
	if err != nil {
		logger.Fatalf("schedule repo error: %v", err)
	}
	scheduleService, err := schedulesapp.NewService(scheduleRepo, deviceRepo)
	if err != nil {
		logger.Fatalf("schedule service error: %v", err)
	}
	scheduleCreateAuth, err := auth.NewSessionOrDeviceMiddleware(deviceService, []byte(cfg.JWTSecret))
	if err != nil {
		logger.Fatalf("schedule auth error: %v", err)
	}
	scheduleHandler, err := scheduleshttp.NewHandler(scheduleService, scheduleCreateAuth, auditRepo)
	if err != nil {
		logger.Fatalf("schedule handler error: %v", err)
	}

	dashboardService, err := dashboardapp.NewService(deviceService, relayService, sensorService, scheduleService)
	if err != nil {
		logger.Fatalf("dashboard service error: %v", err)
	}
	dashboardHandler, err := dashboardhttp.NewHandler(dashboardService)
	if err != nil {
		logger.Fatalf("dashboard handler error: %v", err)
	}

	reportsHandler, err := reports.NewHandler(deviceService, sensorService, relayService)
	if err != nil {
		logger.Fatalf("reports handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	mux := http.NewServeMux()
	mux.Handle("/api/device/register", deviceHandler)
	mux.Handle("/api/device/status", deviceHandler)
	mux.Handle("/api/device/validate", deviceHandler)
	mux.Handle("/api/device/", deviceHandler)
	mux.Handle("/api/devices", deviceHandler)
	mux.Handle("/api/sensor/log", sensorHandler)
	mux.Handle("/api/sensor/logs", sensorHandler)
	mux.Handle("/api/relay/log", relayHandler)
	mux.Handle("/api/relay/logs", relayHandler)
	mux.Handle("/api/control/relay", relayHandler)
	mux.Handle("/api/schedules", scheduleHandler)
	mux.Handle("/api/schedules/", scheduleHandler)
	mux.Handle("/api/dashboard/status", dashboardHandler)
	mux.Handle("/api/exports/sensor-logs.xlsx", reportsHandler)
	mux.Handle("/api/reports/watering.pdf", reportsHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL    string
	HTTPAddr       string
	JWTSecret      string
	MigrationsPath string
	KafkaBrokers   []string
	KafkaTopic     string
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:    getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:       getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:      getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		MigrationsPath: getenvDefault("MIGRATIONS_PATH", ""),
		KafkaTopic:     getenvDefault("KAFKA_TOPIC", "watering.events"),
	}
	if brokers := getenvDefault("KAFKA_BROKERS", ""); brokers != "" {
		for _, broker := range strings.Split(brokers, ",") {
			if broker = strings.TrimSpace(broker); broker != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, broker)
			}
		}
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
