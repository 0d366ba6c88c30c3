package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/invoice-auditor/internal/adapters/mcp"
	"github.com/kirillkom/invoice-auditor/internal/bootstrap"
	"github.com/kirillkom/invoice-auditor/internal/config"
	"github.com/kirillkom/invoice-auditor/internal/infrastructure/intake/localfiles"
	"github.com/kirillkom/invoice-auditor/internal/observability/logging"
)

const serviceName = "auditor-mcp"

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	// stdout carries the MCP protocol.
	logger := logging.New(os.Stderr, serviceName, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	app, err := bootstrap.New(context.Background(), cfg, bootstrap.Options{ServiceName: serviceName, Logger: logger})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	handlers := mcpadapter.NewHandlers(app.Session, localfiles.Load, logger)
	if err := server.ServeStdio(mcpadapter.NewServer(handlers, version)); err != nil {
		logger.Error("mcp_server_failed", "error", err)
	}
}
