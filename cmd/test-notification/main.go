package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/po-approval-route/internal/config"
	"github.com/garyjia/po-approval-route/internal/container"
	"github.com/garyjia/po-approval-route/internal/domain/entity"
	"github.com/garyjia/po-approval-route/pkg/utils"
)

// Sends one approval request notification through the configured sender,
// without the database or the HTTP server. Useful to check Lark credentials.
func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML configuration file")
	envPath := flag.String("env", ".env", "optional dotenv file")
	openID := flag.String("open-id", "", "Lark open_id of the recipient (ou_...)")
	email := flag.String("email", "", "email of the recipient, used when no open_id is given")
	order := flag.String("order", "P00001", "purchase order name used in the message")
	flag.Parse()

	if *openID == "" && *email == "" {
		fmt.Fprintln(os.Stderr, "Usage: test-notification -open-id ou_xxx | -email user@example.com")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath, *envPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{Level: "info", OutputPath: "stdout", Format: "console"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	larkCfg := cfg.ToContainerConfig().Lark
	if !larkCfg.Enabled {
		logger.Info("lark.enabled is false, the message will only be logged")
	}

	sender, err := container.ProvideMessageSender(&larkCfg, logger)
	if err != nil {
		logger.Fatal("Failed to create message sender", zap.Error(err))
	}

	recipient := &entity.Partner{
		Name:       "notification test",
		LarkOpenID: strings.TrimSpace(*openID),
		Email:      strings.TrimSpace(*email),
	}
	subject := "PO Approval: " + *order
	body := fmt.Sprintf("Purchase order %s (1000.00 USD) is waiting for your approval as Approver.", *order)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := sender.Send(ctx, recipient, subject, body); err != nil {
		logger.Fatal("Failed to send test notification", zap.Error(err))
	}
	logger.Info("Test notification sent", zap.String("subject", subject))
}
