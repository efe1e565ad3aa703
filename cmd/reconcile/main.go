package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/JGooseK41/NFTServiceApp-sub011/internal/models"
	"github.com/JGooseK41/NFTServiceApp-sub011/internal/repository"
	"github.com/JGooseK41/NFTServiceApp-sub011/internal/service"
	"github.com/JGooseK41/NFTServiceApp-sub011/pkg/config"
	"github.com/JGooseK41/NFTServiceApp-sub011/pkg/database"
	"github.com/JGooseK41/NFTServiceApp-sub011/pkg/logger"
	"github.com/JGooseK41/NFTServiceApp-sub011/pkg/tron"
)

// Runs one reconciliation pass and prints the report as JSON. Exits 1 when discrepancies were found.
func main() {
	var (
		fromToken uint64
		toToken   uint64
		fromBlock uint64
		toBlock   uint64
		apply     bool
		recent    bool
	)
	flag.Uint64Var(&fromToken, "from-token", 0, "first token id to check")
	flag.Uint64Var(&toToken, "to-token", 0, "last token id to check")
	flag.Uint64Var(&fromBlock, "from-block", 0, "first block to scan for transfers")
	flag.Uint64Var(&toBlock, "to-block", 0, "last block to scan, 0 for the chain head")
	flag.BoolVar(&apply, "apply", false, "insert reconstructed notices for tokens missing from the database")
	flag.BoolVar(&recent, "recent", false, "scan the configured block window ending at the chain head")
	flag.Parse()
	if !recent && fromBlock == 0 && toToken == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	chain, err := tron.Dial(ctx, tron.Options{
		RPCURL:          cfg.Tron.RPCURL,
		APIKey:          cfg.Tron.APIKey,
		ContractAddress: cfg.Tron.ContractAddress,
		CallTimeout:     cfg.Tron.CallTimeout,
		RetryMaxElapsed: cfg.Tron.RetryMaxElapsed,
		Logger:          logr,
	})
	if err != nil {
		logr.Fatal("failed to configure tron client", zap.Error(err))
	}
	defer chain.Close()

	svc := service.NewReconcileService(chain, repository.NewNoticeRepository(db), repository.NewDiscrepancyRepository(db), service.NewMetricsService(), service.ReconcileServiceConfig{
		Workers:           cfg.Reconcile.Workers,
		BlockWindow:       cfg.Reconcile.BlockWindow,
		AssumeOddEvenPair: cfg.Reconcile.AssumeOddEvenPair,
		ServerWallet:      cfg.Tron.ServerWallet,
	}, logr)

	var report *models.ReconcileReport
	switch {
	case recent:
		report, err = svc.ReconcileRecent(ctx)
	case fromBlock > 0:
		report, err = svc.ReconcileEvents(ctx, fromBlock, toBlock, apply)
	default:
		req := models.ReconcileRequest{FromTokenID: &fromToken, ToTokenID: &toToken, Apply: apply}
		report, err = svc.Reconcile(ctx, req)
	}
	if err != nil {
		logr.Error("reconciliation failed", zap.Error(err))
		os.Exit(2)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		logr.Error("failed to write report", zap.Error(err))
		os.Exit(2)
	}
	if len(report.Discrepancies) > 0 {
		os.Exit(1)
	}
}
