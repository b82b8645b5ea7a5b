package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/garyjia/po-approval-route/internal/config"
	"github.com/garyjia/po-approval-route/internal/container"
	httpapi "github.com/garyjia/po-approval-route/internal/interfaces/http"
	"github.com/garyjia/po-approval-route/pkg/utils"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML configuration file")
	envPath := flag.String("env", ".env", "optional dotenv file loaded before the configuration")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
		Service:    "po-approval-route",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("Server exited with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("Server exited successfully")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	containerCfg := cfg.ToContainerConfig()

	if err := utils.EnsureParentDir(containerCfg.Database.Path); err != nil {
		return fmt.Errorf("prepare database directory: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := container.NewContainer(containerCfg, logger)
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error("Failed to close container", zap.Error(err))
		}
	}()

	logger.Info("Starting purchase order approval route service",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port),
		zap.Bool("lark", cfg.Lark.Enabled))

	services := c.Services()
	server := httpapi.NewServer(httpapi.ServerConfig{
		Host:            containerCfg.Server.Host,
		Port:            containerCfg.Server.Port,
		ReadTimeout:     containerCfg.Server.ReadTimeout,
		WriteTimeout:    containerCfg.Server.WriteTimeout,
		DefaultCurrency: containerCfg.Approval.DefaultCurrency,
	}, httpapi.Services{
		Directory:    services.Directory,
		Team:         services.Team,
		Approval:     services.Approval,
		Notification: services.Notification,
		Export:       services.Export,
	}, c.ServiceLogger())

	return server.Start(ctx)
}
