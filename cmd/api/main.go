package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/receiptcheck/receipt-match-backend/internal/api"
	"github.com/receiptcheck/receipt-match-backend/internal/application/service"
	"github.com/receiptcheck/receipt-match-backend/internal/domain/matcher"
	"github.com/receiptcheck/receipt-match-backend/internal/domain/merchant"
	"github.com/receiptcheck/receipt-match-backend/internal/infrastructure/config"
	"github.com/receiptcheck/receipt-match-backend/internal/infrastructure/logging"
	"github.com/receiptcheck/receipt-match-backend/internal/infrastructure/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.LoadOrEnvWithPath(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.NewLoggerWithSystem(cfg.Observability.Logging, "api")

	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	scorer := merchant.NewScorer(cfg.Merchant.Aliases, cfg.Merchant.Families)
	m, err := matcher.New(cfg.Matcher, scorer)
	if err != nil {
		logger.Error("invalid matcher config", "error", err)
		os.Exit(1)
	}

	svc := service.NewMatchService(store, m, logger)
	importer := service.NewImportService(store, logger, nil)
	server := api.NewServer(cfg.API, store, svc, importer, logger)

	if err := server.Run(); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}
