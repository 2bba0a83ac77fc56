package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/your-org/receiptscan/internal/api"
	"github.com/your-org/receiptscan/internal/api/handlers"
	"github.com/your-org/receiptscan/internal/api/ws"
	"github.com/your-org/receiptscan/internal/config"
	"github.com/your-org/receiptscan/internal/models"
	"github.com/your-org/receiptscan/internal/observability"
	"github.com/your-org/receiptscan/internal/queue"
	"github.com/your-org/receiptscan/internal/receipts"
	"github.com/your-org/receiptscan/internal/recognition"
	"github.com/your-org/receiptscan/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting receiptscan API service", "port", cfg.Server.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Clients that are not configured, or fail to start, stay nil. The
	// service then answers the requests that need them with a 500.
	var (
		objects  receipts.ObjectStore
		detector receipts.TextDetector
		records  receipts.RecordStore
		checks   []handlers.ReadinessCheck
	)

	// Object store
	minioCheck := handlers.ReadinessCheck{Name: "minio"}
	if cfg.MinIO.Configured() {
		minioStore, err := storage.NewMinIOStore(cfg.MinIO)
		if err != nil {
			slog.Error("create minio client", "error", err)
		} else {
			if err := minioStore.EnsureBucket(ctx); err != nil {
				slog.Warn("ensure minio bucket", "bucket", cfg.MinIO.Bucket, "error", err)
			}
			objects = minioStore
			minioCheck.Ping = minioStore.Ping
		}
	} else {
		slog.Warn("object store not configured; set minio.endpoint and S3_BUCKET_NAME")
	}
	checks = append(checks, minioCheck)

	// Record store
	pgCheck := handlers.ReadinessCheck{Name: "postgres"}
	if cfg.Database.Configured() {
		db, err := storage.NewPostgresStore(cfg.Database)
		if err != nil {
			slog.Error("connect to postgres", "error", err)
		} else {
			defer db.Close()
			if err := db.EnsureSchema(ctx); err != nil {
				slog.Warn("ensure schema", "table", cfg.Database.Table, "error", err)
			}
			records = db
			pgCheck.Ping = db.Ping
		}
	} else {
		slog.Warn("record store not configured; set database.host, database.name and DYNAMODB_TABLE_NAME")
	}
	checks = append(checks, pgCheck)

	// Text detection
	if cfg.Recognition.Configured() {
		engine, err := recognition.New(ctx, cfg.Recognition)
		if err != nil {
			slog.Error("create recognition engine", "engine", cfg.Recognition.Engine, "error", err)
		} else {
			detector = engine
			slog.Info("recognition engine ready", "engine", engine.Name())
		}
	} else {
		slog.Warn("recognition not configured", "engine", cfg.Recognition.Engine)
	}

	svc := receipts.NewService(objects, detector, records)

	// Receipt events and live history feed
	var hub *ws.Hub
	natsCheck := handlers.ReadinessCheck{Name: "nats"}
	if cfg.NATS.URL != "" {
		producer, err := queue.NewProducer(cfg.NATS.URL)
		if err != nil {
			slog.Error("connect to nats", "error", err)
		} else {
			defer producer.Close()
			svc.WithPublisher(producer)
			natsCheck.Ping = func(context.Context) error { return producer.Ping() }

			hub = ws.NewHub(cfg.Server.AllowedOrigins)
			go hub.Run(ctx)

			var consume func(context.Context) error
			consumer, err := queue.NewConsumer(cfg.NATS.URL)
			if err != nil {
				slog.Error("create receipt consumer", "error", err)
			} else {
				defer consumer.Close()
				consume = func(ctx context.Context) error {
					return consumer.ConsumeReceipts(ctx, consumerName(), func(_ context.Context, evt models.ReceiptEvent) error {
						hub.BroadcastReceipt(evt)
						return nil
					})
				}
			}
			startReceiptFeed(ctx, producer, consume)
		}
	}
	checks = append(checks, natsCheck)

	// Setup router
	router := api.NewRouter(api.RouterConfig{
		APIKey:         cfg.Server.APIKey,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxUploadBytes: cfg.Server.MaxUploadBytes(),
		Service:        svc,
		Checks:         checks,
		Hub:            hub,
	})

	// Start HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	svc.Drain()

	slog.Info("API server stopped")
}

type streamEnsurer interface {
	EnsureStreams(ctx context.Context) error
}

// startReceiptFeed sets up the stream and then the consumer in the
// background. EnsureStreams keeps retrying while NATS is down, and the API
// serves uploads without events until it succeeds. consume may be nil.
func startReceiptFeed(ctx context.Context, streams streamEnsurer, consume func(context.Context) error) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := streams.EnsureStreams(ctx); err != nil {
			slog.Warn("ensure nats streams", "error", err)
			return
		}
		if consume == nil {
			return
		}
		if err := consume(ctx); err != nil {
			slog.Warn("start receipt consumer", "error", err)
		}
	}()
	return done
}

// consumerName is unique per host so every API instance receives every event.
func consumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "local"
	}
	return "api-ws-" + sanitizeName(host)
}

func sanitizeName(s string) string {
	out := []byte(s)
	for i, c := range out {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			out[i] = '_'
		}
	}
	return string(out)
}
