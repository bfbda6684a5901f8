package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/md-rashed-zaman/clinicbook/libs/db"
	"github.com/md-rashed-zaman/clinicbook/libs/kafkax"
	"github.com/md-rashed-zaman/clinicbook/libs/redisx"
	"github.com/md-rashed-zaman/clinicbook/libs/runtime"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/consumer"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/directory"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/engine"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/inbox"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/memstore"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/storage"
	"github.com/redis/go-redis/v9"
)

// app holds the process-wide dependencies shared by the subcommands.
type app struct {
	pool   *db.Pool
	rdb    *redis.Client
	cache  *directory.Cached
	engine *engine.Engine
	outbox outbox.Source
	inbox  consumer.Inbox
	checks []runtime.ReadyCheck
}

func openApp(ctx context.Context, s *settings, logger *slog.Logger) (*app, error) {
	a := &app{}
	var (
		store engine.Store
		dir   directory.Source
	)
	switch s.Store {
	case "postgres":
		pool, err := db.Open(ctx, s.DatabaseURL, db.PoolConfig{MaxConns: int32(s.DBMaxConns)})
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		a.pool = pool
		if s.AutoMigrate {
			if err := storage.Migrate(ctx, pool, logger); err != nil {
				a.Close()
				return nil, err
			}
		}
		store = storage.New(pool, db.TxOptions{MaxRetries: s.TxMaxRetries})
		dir = directory.NewPostgres(pool)
		a.outbox = outbox.NewRepository(pool)
		a.inbox = inbox.NewRepository(pool)
		a.checks = append(a.checks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)})
	case "memory":
		static, err := directory.LoadFile(s.DirectoryFile)
		if err != nil {
			return nil, err
		}
		mem := memstore.New()
		store, dir = mem, static
		a.outbox = mem
		a.inbox = inbox.NewMemory()
		logger.Warn("using in-process store; state is lost on restart and not shared between instances")
	}

	if s.RedisAddr != "" {
		rdb, err := redisx.Open(ctx, redisx.Config{Addr: s.RedisAddr, Password: s.RedisPassword, DB: s.RedisDB})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open redis: %w", err)
		}
		a.rdb = rdb
		a.cache = directory.NewCached(dir, rdb, s.DirectoryTTL, logger)
		dir = a.cache
		a.checks = append(a.checks, runtime.ReadyCheck{Name: "redis", Check: redisx.ReadyCheck(rdb)})
	}
	if len(s.KafkaBrokers) > 0 {
		a.checks = append(a.checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(s.KafkaBrokers)})
	}

	eng, err := engine.New(store, dir, dir, s.Engine, engine.WithLogger(logger))
	if err != nil {
		a.Close()
		return nil, err
	}
	a.engine = eng
	return a, nil
}

func (a *app) Close() {
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	a.pool.Close()
}
