package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/md-rashed-zaman/spabook/libs/auth"
	"github.com/md-rashed-zaman/spabook/libs/db"
	"github.com/md-rashed-zaman/spabook/libs/grpcx"
	"github.com/md-rashed-zaman/spabook/libs/httpx"
	"github.com/md-rashed-zaman/spabook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/spabook/libs/otel"
	"github.com/md-rashed-zaman/spabook/libs/runtime"
	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/availability"
	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/booking"
	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/catalog"
	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/handlers"
	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/outbox"
	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/schedule"
	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "hash-password" {
		if err := hashPassword(os.Stdin, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, "hash-password:", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger := runtime.NewLogger(cfg.ServiceName, cfg.LogLevel)

	ctx, stop := runtime.SignalContext()
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("spa-service exited", "err", err)
		os.Exit(1)
	}
}

// hashPassword reads one line and prints the bcrypt hash to use as ADMIN_PASSWORD_HASH.
func hashPassword(in io.Reader, out io.Writer) error {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	password := strings.TrimRight(line, "\r\n")
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, hash)
	return err
}

func run(ctx context.Context, cfg Config, logger *slog.Logger) error {
	otelCfg, err := otelx.ConfigFromEnv(cfg.ServiceName)
	if err != nil {
		return err
	}
	otelShutdown, err := otelx.Setup(ctx, otelCfg)
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	pool, err := db.Open(ctx, cfg.DatabaseURL, db.PoolConfig{MaxConns: cfg.DBMaxConns})
	if err != nil {
		return fmt.Errorf("db connection failed: %w", err)
	}
	defer pool.Close()

	if cfg.MigrateOnStart {
		if err := storage.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logger.Info("migrations applied")
	}

	store := storage.NewStore(pool)
	engine := availability.NewEngine(store, availability.Config{
		Location:               cfg.Location(),
		SlotStep:               time.Duration(cfg.SlotStepMinutes) * time.Minute,
		HorizonDays:            cfg.SearchHorizonDays,
		HonorBlackoutsInSearch: cfg.HonorBlackoutsInNext,
	})
	orchestrator := booking.NewOrchestrator(engine, bookingUnit{store}, newNotifier(cfg, logger), logger, booking.Config{
		MinLead:      time.Duration(cfg.MinLeadMinutes) * time.Minute,
		MaxAheadDays: cfg.MaxAheadDays,
	})
	scheduler := schedule.NewManager(engine, scheduleUnit{store}, logger)
	catalogAdmin := catalog.NewAdmin(catalogUnit{store}, logger)

	if cfg.KafkaBrokers != "" {
		publisher := outbox.NewPublisher(pool, outbox.NewRepository(), logger, outbox.PublisherConfig{
			Brokers:   cfg.KafkaBrokers,
			PollEvery: cfg.OutboxPollEvery,
			BatchSize: cfg.OutboxBatchSize,
		})
		go publisher.Run(ctx)
	} else {
		logger.Warn("KAFKA_BROKERS not set; appointment events stay in the outbox")
	}

	limiter, closeLimiter := newRateLimiter(ctx, cfg, logger)
	defer closeLimiter()

	readyChecks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}
	if cfg.KafkaBrokers != "" {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(cfg.KafkaBrokers)})
	}
	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	handlers.Routes{
		Public: handlers.NewPublicHandler(store, engine, orchestrator, logger),
		Admin: handlers.NewAdminHandler(handlers.AdminDeps{
			Appointments: store,
			Schedule:     store,
			Services:     store,
			Bookings:     orchestrator,
			Scheduler:    scheduler,
			Catalog:      catalogAdmin,
			Engine:       engine,
			Logger:       logger,
		}),
		Login: handlers.NewLoginHandler(handlers.LoginConfig{
			AdminEmail:        cfg.AdminEmail,
			AdminPasswordHash: cfg.AdminPasswordHash,
			JWTSecret:         cfg.JWTSecret,
			TokenTTL:          cfg.AdminTokenTTL,
		}, logger),
		JWTSecret:    cfg.JWTSecret,
		BookingLimit: limiter.Middleware(logger, "bookings", cfg.RateLimitFailOpen),
		LoginLimit:   limiter.Middleware(logger, "admin_login", cfg.RateLimitFailOpen),
	}.Register(mux)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: cfg.CORSAllowedHeaders,
			ExposedHeaders: []string{httpx.RequestIDHeader},
			MaxAge:         cfg.CORSMaxAge,
		}),
		httpx.WithBodyLimit(cfg.MaxBodyBytes),
		httpx.WithTimeout(cfg.RequestTimeout),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "spa")

	grpcServer, health := grpcx.NewHealthServer(logger)
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	go grpcx.WatchReadiness(ctx, health, cfg.ServiceName, 10*time.Second, db.ReadyCheck(pool))
	go func() {
		logger.Info("grpc health server starting", "addr", lis.Addr().String())
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()
	defer grpcServer.GracefulStop()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	runtime.ServeHTTP(ctx, srv, logger, 10*time.Second)
	return nil
}
