package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"contacts-crm/config"
	"contacts-crm/docs"
	"contacts-crm/internal/handlers"
	"contacts-crm/internal/models"
	"contacts-crm/internal/repositories"
	"contacts-crm/internal/services"
	"contacts-crm/internal/utils"

	"github.com/spf13/cobra"
)

// @title Call Center CRM API
// @version 1.0
// @description Contact list, call outcomes and outreach counters for the call center
// @BasePath /api
func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		cfg        *config.Config
	)

	root := &cobra.Command{
		Use:           "crm",
		Short:         "Call center CRM backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}
			return utils.InitLogger(cfg.Log.Level, cfg.Log.Development)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			utils.SyncLogger()
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (yaml, json or toml)")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cfg)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "seed",
		Short: "Load the configured CSV source into an empty collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), cfg)
		},
	})

	return root
}

// buildService opens the store and wires the contact service. The caller owns repo.Close.
func buildService(ctx context.Context, cfg *config.Config) (*services.ContactService, models.ContactRepository, error) {
	repo, err := repositories.Open(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}

	opts := []services.Option{}
	var s3Service *services.S3Service
	if cfg.S3Config.AccessKey != "" || cfg.S3Config.BackupBucket != "" || utils.IsS3URI(cfg.Seed.CSVSource) {
		s3Service, err = services.NewS3Service(cfg.S3Config)
		if err != nil {
			utils.LogError("S3 disabled: %v", err)
		} else {
			opts = append(opts, services.WithBackups(s3Service))
		}
	}
	if cfg.Seed.CSVSource != "" {
		opts = append(opts, services.WithCSVSource(services.NewCSVSource(cfg.Seed.CSVSource, s3Service)))
	}

	return services.NewContactService(repo, opts...), repo, nil
}

func runServe(cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	contactService, repo, err := buildService(ctx, cfg)
	cancel()
	if err != nil {
		return fmt.Errorf("error connecting to database: %w", err)
	}

	docs.SwaggerInfo.BasePath = cfg.HTTP.BasePath

	httpHandler := handlers.NewHTTPHandler(contactService)
	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handlers.NewRouter(httpHandler, cfg.HTTP.BasePath, cfg.HTTP.CORSOrigins),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		utils.LogInfo("Server is running on %s%s", cfg.HTTP.Addr, cfg.HTTP.BasePath)
		utils.LogInfo("Swagger UI available at %s/swagger/index.html", cfg.HTTP.BasePath)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var runErr error
	select {
	case <-stop:
		utils.LogInfo("Shutting down gracefully...")
	case err := <-serverErr:
		runErr = fmt.Errorf("error starting server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		utils.LogError("Error shutting down server: %v", err)
	}

	if err := repo.Close(shutdownCtx); err != nil {
		utils.LogError("Error closing contact store: %v", err)
	}

	utils.LogInfo("Server stopped successfully")
	return runErr
}

func runSeed(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}

	contactService, repo, err := buildService(ctx, cfg)
	if err != nil {
		return fmt.Errorf("error connecting to database: %w", err)
	}
	defer repo.Close(context.Background())

	result, err := contactService.Initialize(ctx, nil)
	if err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("seed not applied: %s", result.Message)
	}

	utils.LogInfo("Seeded %d contacts", result.Inserted)
	return nil
}
