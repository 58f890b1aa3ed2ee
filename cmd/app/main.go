// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"giftcode-redemption/internal/config"
	"giftcode-redemption/internal/domain/model"
	"giftcode-redemption/internal/domain/ports/adapter"
	"giftcode-redemption/internal/infra/api"
	pg "giftcode-redemption/internal/infra/db/postgres"
	"giftcode-redemption/internal/infra/game"
	"giftcode-redemption/internal/infra/logging"
	"giftcode-redemption/internal/infra/metrics"
	red "giftcode-redemption/internal/infra/redis"
	"giftcode-redemption/internal/infra/registry"
	"giftcode-redemption/internal/infra/sched"
	"giftcode-redemption/internal/infra/solver"
	"giftcode-redemption/internal/infra/telegram"
	"giftcode-redemption/internal/usecase"
)

// progressNotifier is the intersection of the notifier and observer ports a
// bot adapter implements.
type progressNotifier interface {
	adapter.Notifier
	adapter.ProgressObserver
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, verbose)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)
	rateLimiter := red.NewRateLimiter(redisClient)

	// ---- Repositories ----
	codeRepo := pg.NewCodeRepo(pool)
	recordRepo := pg.NewRedemptionRepoCacheDecorator(pg.NewRedemptionRepo(pool), redisClient, cfg.Redis.TTL)
	groupRepo := pg.NewGroupRepo(pool)

	// ---- External adapters ----
	gameClient := game.NewClient(cfg.Game, logger)
	registryClient := registry.NewClient(cfg.Registry, logger)

	var captchaSolver adapter.CaptchaSolver = solver.NewNoop()
	if cfg.Solver.Enabled {
		captchaSolver = solver.NewHTTPSolver(cfg.Solver, logger)
	}

	var notifier progressNotifier = telegram.NewNoopNotifier(logger)
	if cfg.Bot.Enabled {
		notifier, err = telegram.NewNotifier(&cfg.Bot, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("telegram")
		}
	}

	// ---- Use cases ----
	queue := usecase.NewWorkQueue(logger)
	redeemUC := usecase.NewRedeemUseCase(gameClient, captchaSolver, recordRepo, cfg.Redeem, logger)

	syncWorker := sched.NewSyncWorker(registryClient, codeRepo, nil, rateLimiter, notifier, cfg.Registry, logger)
	classifier := usecase.NewClassifierService(codeRepo, recordRepo, syncWorker, notifier, cfg.Redeem.ValidationAccount, logger)
	batchUC := usecase.NewBatchUseCase(codeRepo, groupRepo, recordRepo, redeemUC, classifier, *cfg, logger)
	validationUC := usecase.NewValidationUseCase(codeRepo, recordRepo, groupRepo, redeemUC, classifier, queue, locker, *cfg, logger)
	syncWorker.SetValidator(validationUC)

	// ---- Progress observers ----
	progressStore := api.NewProgressStore()
	observer := usecase.MultiObserver{progressStore, notifier}

	// ---- Queue handlers ----
	queue.Register(usecase.KindValidate, func(ctx context.Context, item *usecase.QueueItem) error {
		outcome, err := validationUC.ValidateWithRetries(ctx, item.Code)
		if item.Result != nil {
			item.Result <- outcome
		}
		return err
	})
	queue.Register(usecase.KindRedeem, func(ctx context.Context, item *usecase.QueueItem) error {
		codes := item.Codes
		if len(codes) == 0 && item.Code != "" {
			codes = []string{item.Code}
		}
		var items []model.BatchItem
		for _, g := range item.GroupIDs {
			for _, c := range codes {
				items = append(items, model.BatchItem{GroupID: g, Code: c})
			}
		}
		batchID := item.BatchID
		if batchID == "" {
			batchID = item.ID
		}
		_, err := batchUC.Run(ctx, batchID, items, observer)
		return err
	})
	queue.Start(ctx)

	// ---- Background workers ----
	go func() {
		if err := syncWorker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("registry synchronizer stopped")
		}
	}()

	revalidator := sched.NewRevalidateWorker(cfg.Revalidate.Cron, validationUC, logger)
	if err := revalidator.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("revalidator")
	}

	// ---- Admin API ----
	server := api.NewServer(cfg.Admin, queue, codeRepo, syncWorker, progressStore, logger)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("admin API stopped")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Game.Timeout)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
	revalidator.Stop()
}
