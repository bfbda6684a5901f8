package main

import (
	"context"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/db"
	"github.com/md-rashed-zaman/clinicbook/libs/grpcx"
	"github.com/md-rashed-zaman/clinicbook/libs/runtime"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/storage"
	"github.com/spf13/cobra"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			if s.Store != "postgres" {
				return fmt.Errorf("migrate needs STORE=postgres")
			}
			logger := runtime.NewLogger(s.Service, s.Log)
			pool, err := db.Open(cmd.Context(), s.DatabaseURL, db.PoolConfig{MaxConns: 2})
			if err != nil {
				return err
			}
			defer pool.Close()
			return storage.Migrate(cmd.Context(), pool, logger)
		},
	}
}

func newSweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep-holds",
		Short: "Delete expired holds once and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			logger := runtime.NewLogger(s.Service, s.Log)
			a, err := openApp(cmd.Context(), s, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.engine.SweepExpiredHolds(cmd.Context())
			if err != nil {
				return err
			}
			logger.Info("expired holds swept", "deleted", n)
			return nil
		},
	}
}

func newProbeCommand() *cobra.Command {
	var (
		addr    string
		service string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check the gRPC health endpoint of a running instance",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			if err := grpcx.Probe(ctx, addr, service); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "SERVING")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:9083", "gRPC address to probe")
	cmd.Flags().StringVar(&service, "service", "", "health service name; empty checks the whole server")
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "probe timeout")
	return cmd
}
