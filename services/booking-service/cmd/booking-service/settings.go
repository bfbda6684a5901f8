package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/config"
	"github.com/md-rashed-zaman/clinicbook/libs/httpx"
	"github.com/md-rashed-zaman/clinicbook/libs/kafkax"
	"github.com/md-rashed-zaman/clinicbook/libs/runtime"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/engine"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
	"github.com/spf13/cobra"
)

type settings struct {
	src *config.Source

	Service  string
	HTTPPort string
	GRPCPort string
	Log      runtime.LogConfig

	Store         string // postgres or memory
	DatabaseURL   string
	DBMaxConns    int
	TxMaxRetries  int
	AutoMigrate   bool
	DirectoryFile string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DirectoryTTL  time.Duration

	KafkaBrokers []string
	KafkaGroupID string
	OutboxPoll   time.Duration
	OutboxBatch  int

	Engine        engine.Config
	SweepInterval time.Duration

	JWTSecret       string
	JWKSURL         string
	CORSOrigins     []string
	RateLimit       int
	RateLimitOpen   bool
	BodyLimitBytes  int
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

func loadSettings(cmd *cobra.Command) (*settings, error) {
	src := config.NewSource()
	path, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return nil, err
	}
	if err := src.ReadFile(path); err != nil {
		return nil, err
	}

	s := &settings{
		src:           src,
		Service:       src.String("SERVICE_NAME", "booking-service"),
		Store:         src.String("STORE", "postgres"),
		DatabaseURL:   src.String("DATABASE_URL", ""),
		AutoMigrate:   src.Bool("AUTO_MIGRATE", false),
		DirectoryFile: src.String("DIRECTORY_FILE", ""),
		RedisAddr:     src.String("REDIS_ADDR", ""),
		RedisPassword: src.String("REDIS_PASSWORD", ""),
		KafkaBrokers:  kafkax.SplitBrokers(src.String("KAFKA_BROKERS", "")),
		KafkaGroupID:  src.String("KAFKA_GROUP_ID", "booking-service"),
		JWTSecret:     src.String("JWT_SECRET", ""),
		JWKSURL:       src.String("JWKS_URL", ""),
		RateLimitOpen: src.Bool("RATE_LIMIT_FAIL_OPEN", true),
		Log: runtime.LogConfig{
			Level: src.String("LOG_LEVEL", "info"),
			File:  src.String("LOG_FILE", ""),
		},
		Engine: engine.Config{
			InitialStatus: model.AppointmentStatus(src.String("APPOINTMENT_INITIAL_STATUS", string(model.StatusPending))),
		},
	}
	s.CORSOrigins = httpx.ParseList(src.String("CORS_ALLOWED_ORIGINS", ""))

	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	var e error
	s.HTTPPort, e = src.Port("PORT", "8083")
	collect(e)
	s.GRPCPort, e = src.Port("GRPC_PORT", "9083")
	collect(e)
	s.DBMaxConns, e = src.Int("DB_MAX_CONNS", 10)
	collect(e)
	s.TxMaxRetries, e = src.Int("TX_MAX_RETRIES", 5)
	collect(e)
	s.RedisDB, e = src.Int("REDIS_DB", 0)
	collect(e)
	s.DirectoryTTL, e = src.Duration("DIRECTORY_CACHE_TTL", 5*time.Minute)
	collect(e)
	s.OutboxPoll, e = src.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second)
	collect(e)
	s.OutboxBatch, e = src.Int("OUTBOX_BATCH_SIZE", 50)
	collect(e)
	s.Engine.HoldTTL, e = src.Duration("HOLD_TTL", 15*time.Minute)
	collect(e)
	s.Engine.SlotStep, e = src.Duration("SLOT_STEP", 30*time.Minute)
	collect(e)
	s.SweepInterval, e = src.Duration("HOLD_SWEEP_INTERVAL", time.Hour)
	collect(e)
	s.RateLimit, e = src.Int("RATE_LIMIT_PER_MINUTE", 120)
	collect(e)
	s.BodyLimitBytes, e = src.Int("HTTP_BODY_LIMIT_BYTES", 1<<20)
	collect(e)
	s.RequestTimeout, e = src.Duration("HTTP_REQUEST_TIMEOUT", 10*time.Second)
	collect(e)
	s.ShutdownTimeout, e = src.Duration("SHUTDOWN_TIMEOUT", 10*time.Second)
	collect(e)

	switch s.Store {
	case "postgres":
		if s.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when STORE=postgres"))
		}
	case "memory":
		if s.DirectoryFile == "" {
			errs = append(errs, errors.New("DIRECTORY_FILE is required when STORE=memory"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE must be postgres or memory (got %q)", s.Store))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return s, nil
}
