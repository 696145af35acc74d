package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/receiptcheck/receipt-match-backend/internal/application/service"
	"github.com/receiptcheck/receipt-match-backend/internal/domain/matcher"
	"github.com/receiptcheck/receipt-match-backend/internal/domain/merchant"
	"github.com/receiptcheck/receipt-match-backend/internal/infrastructure/config"
	"github.com/receiptcheck/receipt-match-backend/internal/infrastructure/logging"
	"github.com/receiptcheck/receipt-match-backend/internal/infrastructure/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	statementID := flag.String("statement", "", "statement ID to match (required)")
	homeTolerance := flag.Float64("home-tolerance", -1, "override home currency amount tolerance")
	foreignTolerance := flag.Float64("foreign-tolerance", -1, "override foreign currency amount tolerance")
	minConfidence := flag.Int("min-confidence", -1, "override minimum composite confidence")
	listStatements := flag.Bool("list", false, "list statements and exit")
	flag.Parse()

	cfg, err := config.LoadOrEnvWithPath(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if *homeTolerance >= 0 {
		cfg.Matcher.HomeTolerance = *homeTolerance
	}
	if *foreignTolerance >= 0 {
		cfg.Matcher.ForeignTolerance = *foreignTolerance
	}
	if *minConfidence >= 0 {
		cfg.Matcher.MinConfidence = *minConfidence
	}

	logger := logging.NewLoggerWithSystem(cfg.Observability.Logging, "match")

	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if *listStatements {
		statements, err := store.ListStatements()
		if err != nil {
			logger.Error("failed to list statements", "error", err)
			os.Exit(1)
		}
		for _, st := range statements {
			fmt.Printf("%s  %s  (%s, imported %s)\n", st.ID, st.Name, st.HomeCurrency, st.ImportedAt.Format("2006-01-02"))
		}
		return
	}

	if *statementID == "" {
		fmt.Fprintln(os.Stderr, "usage: match -statement <id> [-config config.yaml]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	scorer := merchant.NewScorer(cfg.Merchant.Aliases, cfg.Merchant.Families)
	m, err := matcher.New(cfg.Matcher, scorer)
	if err != nil {
		logger.Error("invalid matcher config", "error", err)
		os.Exit(1)
	}

	svc := service.NewMatchService(store, m, logger)
	run, result, err := svc.RunMatching(*statementID)
	if err != nil {
		logger.Error("matching run failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("run %s finished\n", run.ID)
	fmt.Printf("  transactions: %d\n", result.Report.TotalTransactions)
	fmt.Printf("  matched:      %d\n", result.Report.Matched)
	fmt.Printf("  unmatched:    %d\n", result.Report.Unmatched)
	fmt.Printf("  match rate:   %.1f%%\n", result.Report.MatchRate)
	fmt.Printf("  avg conf:     %.1f\n", result.Report.AverageConfidence)
	for _, a := range result.Assignments {
		fmt.Printf("  %s -> %s (%d)\n", a.TransactionID, a.ReceiptID, a.Confidence)
	}
}
