package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/yashrajoria/shopswift-api/common/logger"
	"github.com/yashrajoria/shopswift-api/database"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "shopswift",
	Short: "ShopSwift commerce API",
	Long: `ShopSwift serves the product catalog, multi-currency order placement,
currency conversion and payment checkout APIs.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// .env is optional; the process environment wins.
		_ = godotenv.Load()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg, err := LoadConfig(ctx)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		awsCfg, err := loadAWS(ctx, cfg)
		if err != nil {
			return err
		}
		log, err := newLogger(ctx, cfg, awsCfg)
		if err != nil {
			return err
		}

		srv, err := newServer(ctx, cfg, log, awsCfg)
		if err != nil {
			log.Error("Failed to start server", zap.Error(err))
			return err
		}
		return srv.run(ctx)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := LoadConfig(ctx)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		log, err := logger.Initialize(cfg.Env)
		if err != nil {
			return err
		}
		defer log.Sync()

		db, err := database.Connect(ctx, database.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPassword,
			DBName:   cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSLMode,
			TimeZone: cfg.PostgresTimeZone,
		}, log)
		if err != nil {
			return err
		}
		defer database.Close(db)

		if err := database.Migrate(db); err != nil {
			return err
		}
		log.Info("Migrations applied")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
