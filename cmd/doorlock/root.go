package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"face-door-lock/config"
	"face-door-lock/internal/db"
	"face-door-lock/internal/db/repository"
	"face-door-lock/internal/logger"
	"face-door-lock/internal/util/timezone"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Version is the application version
const Version = "1.0.0"

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "doorlock",
	Short:         "Face recognition door lock with liveness checks",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := logger.Init(cfg.Log); err != nil {
			log.Errorf("Failed to initialize logger completely: %v", err)
		}
		timezone.Initialize(cfg.Server.Timezone)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if err := db.Close(); err != nil {
			log.Warnf("Failed to close database: %v", err)
		}
	},
}

// Execute runs the CLI with a context cancelled by SIGINT or SIGTERM
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		log.Fatalf("doorlock: %v", err)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config/config.yaml", "path to the configuration file")
}

// openRepository connects the configured database
func openRepository() (*repository.SQLiteRepository, error) {
	if err := db.Initialize(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	conn, err := db.GetDB()
	if err != nil {
		return nil, err
	}
	return repository.NewSQLiteRepository(conn), nil
}
