package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/roni12291832/nexus-car/internal/api/handler"
	"github.com/roni12291832/nexus-car/internal/api/middleware"
	"github.com/roni12291832/nexus-car/internal/app"
	"github.com/roni12291832/nexus-car/internal/board"
	"github.com/roni12291832/nexus-car/internal/config"
	"github.com/roni12291832/nexus-car/internal/connection"
	"github.com/roni12291832/nexus-car/internal/gateway"
	"github.com/roni12291832/nexus-car/internal/logger"
	"github.com/roni12291832/nexus-car/internal/server"
	"github.com/roni12291832/nexus-car/internal/service/auth"
	"github.com/roni12291832/nexus-car/internal/service/billing"
	"github.com/roni12291832/nexus-car/internal/service/lead"
	"github.com/roni12291832/nexus-car/internal/service/settings"
	"github.com/roni12291832/nexus-car/internal/service/vehicle"
	"github.com/roni12291832/nexus-car/internal/storage/factory"
	"github.com/roni12291832/nexus-car/internal/storage/model"
	storage_redis "github.com/roni12291832/nexus-car/internal/storage/redis"
	"github.com/roni12291832/nexus-car/internal/webhook"
	"github.com/roni12291832/nexus-car/internal/webhook/delivery"
)

func main() {
	cfg := config.Load()

	logr, err := logger.New(cfg.App.Env, cfg.Log.Level)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logr.Sync()

	logr.Info("iniciando aplicação",
		zap.String("env", cfg.App.Env),
		zap.String("log_level", cfg.Log.Level),
		zap.String("port", cfg.App.Port),
		zap.String("db_driver", cfg.Storage.Driver),
	)

	repos, err := factory.NewRepositories(cfg, logr)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	gw := gateway.NewClient(gateway.Options{
		BaseURL:           cfg.Gateway.BaseURL,
		AdminToken:        cfg.Gateway.AdminToken,
		WorkflowURL:       cfg.Workflow.CreateWebhookURL,
		ReceiptWebhookURL: cfg.Workflow.ReceiptWebhookURL,
		CreateTimeout:     cfg.Workflow.CreateTimeout(),
		RequestTimeout:    time.Duration(cfg.Gateway.RequestTimeoutSecs) * time.Second,
		Logger:            logr,
	})

	emitter := webhook.NewEmitter(repos.EventQueue, logr)

	controller := connection.NewController(connection.Options{
		Repo:         repos.Instance,
		Gateway:      gw,
		Logger:       logr,
		PollInterval: cfg.Gateway.PollInterval(),
		QRClearDelay: cfg.Gateway.QRDisplayClear(),
		TokenKey:     cfg.Gateway.TokenKeyEnc,
	})
	controller.SetOnConnected(func(inst model.Instance) {
		emitter.Emit(context.Background(), inst.TenantID, webhook.EventInstanceConnected, map[string]interface{}{
			"instanceId": inst.ID,
			"number":     inst.Number,
		})
	})

	var lock connection.Locker
	if repos.RedisClient != nil {
		lock = storage_redis.NewLock(repos.RedisClient, "sync:instances", 2*time.Minute)
	}
	reconciler := connection.NewReconciler(controller, lock, logr)

	syncCtx, stopSync := context.WithCancel(context.Background())
	defer stopSync()
	if interval := cfg.Gateway.SyncInterval(); interval > 0 {
		go reconciler.RunPeriodic(syncCtx, interval, repos.Instance.ListTenantIDs)
		logr.Info("reconciliação periódica agendada", zap.Duration("interval", interval))
	}

	boardManager := board.NewManager(repos.Board, repos.Lead, logr)
	evaluator := board.NewEvaluator(boardManager, logr)

	authService := auth.NewService(repos.Tenant, cfg.JWT, logr)
	leadService := lead.NewService(repos.Lead, logr)
	vehicleService := vehicle.NewService(repos.Vehicle, logr)
	settingsService := settings.NewService(repos.Settings, logr)
	billingService := billing.NewService(repos.Tenant, cfg.Stripe, cfg.App.SiteURL, logr)

	webhookDelivery := delivery.NewDelivery(logr, 3)
	webhookPool := webhook.NewPool(
		repos.EventQueue,
		webhookDelivery,
		cfg.Workflow.EventWebhookURL,
		cfg.Workflow.EventWebhookSecret,
		logr,
		cfg.Webhook.Workers,
	)
	webhookPool.Start(context.Background())
	logr.Info("webhook pool iniciada", zap.Int("workers", cfg.Webhook.Workers))

	rateLimitOpts := middleware.RateLimitOption{
		Enabled:  cfg.RateLimit.Enabled,
		Requests: cfg.RateLimit.Requests,
		Window:   time.Duration(cfg.RateLimit.WindowSeconds) * time.Second,
		Prefix:   cfg.RateLimit.Prefix,
		Logger:   logr,
		Limiter:  repos.RateLimiter,
	}

	router := server.NewRouter(server.Options{
		Env:             cfg.App.Env,
		HealthHandler:   handler.NewHealthHandler(app.Version),
		AuthHandler:     handler.NewAuthHandler(authService, logr),
		WebhookHandler:  handler.NewWebhookHandler(leadService, emitter, cfg.Workflow.EventWebhookSecret, logr),
		InstanceHandler: handler.NewInstanceHandler(repos.Instance, controller, reconciler, logr),
		BoardHandler:    handler.NewBoardHandler(boardManager, evaluator, repos.Rule, emitter, logr),
		LeadHandler:     handler.NewLeadHandler(leadService, boardManager, emitter, logr),
		VehicleHandler:  handler.NewVehicleHandler(vehicleService, emitter, logr),
		SettingsHandler: handler.NewSettingsHandler(settingsService, logr),
		BillingHandler:  handler.NewBillingHandler(billingService, logr),
		TokenValidator:  authService,
		RateLimit:       rateLimitOpts,
		Logger:          logr,
	})

	application := app.New(cfg, logr, router)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := application.Run(context.Background()); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logr.Info("sinal de encerramento recebido")
	case err := <-errCh:
		if err != nil {
			logr.Error("servidor finalizado com erro", zap.Error(err))
		}
	}

	logr.Info("iniciando shutdown graceful")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	controller.Shutdown()
	webhookPool.Stop()
	logr.Info("webhook pool encerrada")

	if repos.RedisClient != nil {
		if err := repos.RedisClient.Close(); err != nil {
			logr.Warn("erro ao fechar conexão Redis", zap.Error(err))
		}
	}

	if err := application.Shutdown(shutdownCtx); err != nil {
		logr.Error("erro ao encerrar servidor", zap.Error(err))
	} else {
		logr.Info("servidor encerrado com sucesso")
	}
}
