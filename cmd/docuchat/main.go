package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/DocuChat/app/controllers"
	"github.com/ManuelReschke/DocuChat/app/repository"
	"github.com/ManuelReschke/DocuChat/internal/pkg/billing"
	"github.com/ManuelReschke/DocuChat/internal/pkg/cache"
	"github.com/ManuelReschke/DocuChat/internal/pkg/database"
	"github.com/ManuelReschke/DocuChat/internal/pkg/env"
	"github.com/ManuelReschke/DocuChat/internal/pkg/jobqueue"
	"github.com/ManuelReschke/DocuChat/internal/pkg/router"
	"github.com/ManuelReschke/DocuChat/internal/pkg/webhookarchive"
)

// webhook bodies are small; Stripe caps them well below this
const bodyLimit = 1 << 20

type application struct {
	app     *fiber.App
	jobs    *jobqueue.Manager
	redis   *redis.Client
	limiter fiber.Storage
}

func main() {
	a, err := newApplication()
	if err != nil {
		log.Fatalf("[DocuChat] startup failed: %v", err)
	}

	go func() {
		addr := fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "8080"))
		if err := a.app.Listen(addr); err != nil {
			log.Printf("[DocuChat] server stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[DocuChat] shutting down")
	a.shutdown()
}

func newApplication() (*application, error) {
	env.SetupEnvFile()

	db, err := database.SetupDatabase(database.LoadConfig())
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cacheCfg := cache.LoadConfig()
	redisClient := cache.NewClient(ctx, cacheCfg)

	var limiterStorage fiber.Storage
	if err := redisClient.Ping(ctx).Err(); err == nil {
		limiterStorage = cache.NewFiberStorage(cacheCfg, cache.RateLimitDB)
	} else {
		log.Printf("[DocuChat] rate limiter falls back to in-memory counters: %v", err)
	}

	billingCfg := billing.LoadConfig()
	plans := billing.NewPlanRegistry(db, cache.NewPlanCache(redisClient, cacheCfg.PlanTTL))
	commissions := billing.NewCommissionEngine(db, billingCfg.CommissionPercent)
	projector := billing.NewProjector(db)
	stripeAPI := billing.NewStripeClient(billingCfg)

	opts := billing.ReconcilerOptions{
		WebhookSecret: billingCfg.WebhookSecret,
		Tolerance:     billingCfg.WebhookTolerance,
		Referrals:     commissions,
	}
	if stripeAPI != nil {
		opts.Fetcher = billing.NewStripeSubscriptionFetcher(stripeAPI)
	}

	archiveCfg, err := webhookarchive.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("webhook archive: %w", err)
	}
	if archiveCfg.IsEnabled() {
		archiver, err := webhookarchive.NewArchiver(ctx, archiveCfg)
		if err != nil {
			log.Printf("[DocuChat] webhook archive disabled: %v", err)
		} else {
			opts.Archiver = archiver
		}
	}

	reconciler := billing.NewReconciler(db, plans, opts)

	jobs := jobqueue.NewManager(billing.NewProjectionAuditor(db), env.GetEnv("BILLING_AUDIT_CRON", jobqueue.DefaultAuditSchedule))
	if err := jobs.Start(); err != nil {
		return nil, fmt.Errorf("job manager: %w", err)
	}

	repos := repository.NewFactory(db).GetRepositories()

	app := fiber.New(fiber.Config{
		BodyLimit: bodyLimit,
	})
	app.Use(recover.New(), logger.New())

	router.InstallRouter(app, router.Dependencies{
		Webhooks:       controllers.NewWebhookController(reconciler),
		Affiliates:     controllers.NewAffiliateController(commissions),
		Billing:        controllers.NewBillingController(plans, billing.NewCheckoutService(stripeAPI, plans, billingCfg), billing.NewLedger(db), repos),
		Admin:          controllers.NewAdminBillingController(jobs, projector, plans),
		InternalToken:  env.GetEnv("INTERNAL_API_TOKEN", ""),
		LimiterStorage: limiterStorage,
		LimiterMax:     env.GetEnvInt("API_RATE_LIMIT", 120),
		LimiterWindow:  env.GetEnvDuration("API_RATE_WINDOW", time.Minute),
	})

	return &application{app: app, jobs: jobs, redis: redisClient, limiter: limiterStorage}, nil
}

func (a *application) shutdown() {
	if err := a.app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("[DocuChat] http shutdown: %v", err)
	}
	a.jobs.Stop()
	if a.limiter != nil {
		if err := a.limiter.Close(); err != nil {
			log.Printf("[DocuChat] limiter storage close: %v", err)
		}
	}
	if err := a.redis.Close(); err != nil {
		log.Printf("[DocuChat] redis close: %v", err)
	}
}
