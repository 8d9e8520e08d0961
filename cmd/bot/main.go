package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"lethai-bot/internal/admission"
	"lethai-bot/internal/bot"
	"lethai-bot/internal/config"
	"lethai-bot/internal/database"
	"lethai-bot/internal/health"
	"lethai-bot/internal/sheets"
	"lethai-bot/internal/store"
	"lethai-bot/internal/worker"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	cfg := config.LoadConfig()
	if errs := cfg.Validate(); len(errs) > 0 {
		zap.L().Fatal("Invalid configuration", zap.String("errors", strings.Join(errs, "; ")))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg)
	if err != nil {
		zap.L().Fatal("Could not connect to database", zap.Error(err))
	}
	users := store.NewUsers(db)

	rdb, err := database.ConnectRedis(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Could not connect to redis", zap.Error(err))
	}

	ledger, err := sheets.NewClient(ctx, cfg, rdb)
	if err != nil {
		zap.L().Fatal("Could not create sheets client", zap.Error(err))
	}
	if ledger.TestConnection(ctx) {
		zap.L().Info("Google Sheets connection successful")
	} else {
		zap.L().Warn("Google Sheets connection failed, check credentials")
	}

	workflow := admission.NewWorkflow(users, ledger, cfg.AdminUserID, cfg.AdminGroupID)
	checker := health.NewChecker(users, ledger, rdb)

	tgBot, err := bot.NewBot(cfg, users, ledger, workflow, checker)
	if err != nil {
		zap.L().Fatal("Could not create bot", zap.Error(err))
	}

	reconciler := worker.NewReconciler(users, ledger, rdb, tgBot.Instance, cfg.AdminGroupID, cfg.ReconcileInterval)
	go reconciler.Start(ctx)

	zap.L().Info("Service started successfully")
	if err := tgBot.Start(ctx); err != nil {
		zap.L().Fatal("Bot stopped with error", zap.Error(err))
	}
	zap.L().Info("Shutdown complete")
}
