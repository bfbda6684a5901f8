package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/auth"
	"github.com/md-rashed-zaman/clinicbook/libs/grpcx"
	"github.com/md-rashed-zaman/clinicbook/libs/httpx"
	otelx "github.com/md-rashed-zaman/clinicbook/libs/otel"
	"github.com/md-rashed-zaman/clinicbook/libs/runtime"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/consumer"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/sweeper"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
	healthpb "google.golang.org/grpc/health/v1"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, gRPC health server and background workers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			logger := runtime.NewLogger(s.Service, s.Log)
			slog.SetDefault(logger)

			ctx, stop := runtime.SignalContext(cmd.Context())
			defer stop()
			return serve(ctx, s, logger)
		},
	}
}

func serve(ctx context.Context, s *settings, logger *slog.Logger) error {
	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFrom(s.src, s.Service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer shutdownWithin(5*time.Second, otelShutdown)
	}
	metricsHandler, metricsShutdown, err := otelx.SetupMetrics(ctx, s.Service)
	if err != nil {
		return err
	}
	defer shutdownWithin(5*time.Second, metricsShutdown)

	a, err := openApp(ctx, s, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	mux := runtime.NewBaseMuxWithReady(a.checks...)
	mux.Handle("/metrics", metricsHandler)
	handlers.NewBookingHandler(a.engine, logger).Register(mux, clinicAuth(s, logger))

	var limiter httpx.Limiter = httpx.NewMemoryLimiter(s.RateLimit, time.Minute)
	if a.rdb != nil {
		limiter = httpx.NewRedisLimiter(a.rdb, s.RateLimit, time.Minute, "booking:ratelimit")
	}
	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: s.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
			AllowedHeaders: []string{"Authorization", "Content-Type", "Idempotency-Key", "X-Request-Id"},
			MaxAge:         10 * time.Minute,
		}),
		httpx.WithRateLimit(limiter, logger, s.RateLimitOpen),
		httpx.WithBodyLimit(int64(s.BodyLimitBytes)),
		httpx.WithTimeout(s.RequestTimeout),
	)
	srv := &http.Server{
		Addr:              ":" + s.HTTPPort,
		Handler:           otelhttp.NewHandler(httpHandler, "booking"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcSrv, health := grpcx.NewServer(logger)
	lis, err := net.Listen("tcp", ":"+s.GRPCPort)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("grpc server starting", "addr", lis.Addr().String())
		health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		health.SetServingStatus(s.Service, healthpb.HealthCheckResponse_SERVING)
		return grpcSrv.Serve(lis)
	})
	g.Go(func() error {
		sweeper.NewWorker(a.engine, logger, sweeper.Config{Interval: s.SweepInterval}).Run(gctx)
		return nil
	})

	if len(s.KafkaBrokers) > 0 {
		writer := outbox.NewKafkaWriter(s.KafkaBrokers)
		defer writer.Close()
		publisher := outbox.NewPublisher(a.outbox, writer, logger, outbox.PublisherConfig{PollEvery: s.OutboxPoll, BatchSize: s.OutboxBatch})
		g.Go(func() error {
			publisher.Run(gctx)
			return nil
		})

		if a.cache != nil {
			reader := consumer.NewKafkaReader(consumer.Config{Brokers: s.KafkaBrokers, GroupID: s.KafkaGroupID, Topics: consumer.DirectoryTopics})
			c := consumer.New(logger, reader, a.inbox, consumer.DirectoryHandler(a.cache))
			g.Go(func() error {
				c.Run(gctx)
				return nil
			})
		} else {
			logger.Info("directory consumer disabled (no redis cache to invalidate)")
		}
	} else {
		logger.Warn("outbox publisher disabled (no kafka brokers configured)")
	}

	g.Go(func() error {
		<-gctx.Done()
		health.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "err", err)
		}
		grpcSrv.GracefulStop()
		logger.Info("servers stopped")
		return nil
	})
	return g.Wait()
}

// clinicAuth guards staff endpoints. Without a JWT secret or JWKS URL every
// token is rejected.
func clinicAuth(s *settings, logger *slog.Logger) httpx.Middleware {
	verifier := auth.Verifier{Secret: s.JWTSecret}
	if s.JWKSURL != "" {
		verifier.JWKS = auth.NewJWKSClient(s.JWKSURL, 10*time.Minute)
	}
	if s.JWTSecret == "" && s.JWKSURL == "" {
		logger.Warn("JWT_SECRET and JWKS_URL unset; clinic endpoints will reject all requests")
	}
	return func(next http.Handler) http.Handler {
		return httpx.Chain(next, httpx.RequireAuth(verifier), httpx.RequireRole("owner", "admin", "staff"))
	}
}

func shutdownWithin(d time.Duration, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	_ = fn(ctx)
}
