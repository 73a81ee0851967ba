package main // Entry point package

import (
	"context"
	"log" // Logging library
	"time"

	"github.com/joho/godotenv"    // .env loader for local development
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/iliyamo/society-gate-access/internal/config"
	"github.com/iliyamo/society-gate-access/internal/database"
	"github.com/iliyamo/society-gate-access/internal/gate"
	"github.com/iliyamo/society-gate-access/internal/handler"
	"github.com/iliyamo/society-gate-access/internal/middleware"
	"github.com/iliyamo/society-gate-access/internal/model"
	"github.com/iliyamo/society-gate-access/internal/notifier"
	"github.com/iliyamo/society-gate-access/internal/queue"
	"github.com/iliyamo/society-gate-access/internal/repository"
	"github.com/iliyamo/society-gate-access/internal/router"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Repositories
	users := repository.NewUserRepo(db)
	entries := repository.NewEntryRepo(db)
	approvals := repository.NewApprovalRepo(db)
	codes := repository.NewCheckInCodeRepo(db)
	visits := repository.NewPreApprovedRepo(db)

	// Workflow core
	dispatch := notifier.NewAMQPDispatcher(cfg.RabbitURL)
	ledger := gate.NewLedger(approvals)
	entryLifecycle := gate.NewLifecycle(entries, approvals, model.ParentEntry)
	visitLifecycle := gate.NewLifecycle(visits, approvals, model.ParentPreApproved)
	generator := gate.NewCodeGenerator(codes)
	window := gate.NewWindowValidator(cfg.TZOffsetMin)
	resolver := gate.NewPassResolver(codes, dispatch)
	scheduler := gate.NewScheduler(resolver)

	// Re-arm gate pass deadlines that were pending when the previous
	// process stopped.  The deadlines are durable; only the timers died.
	{
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := scheduler.Run(ctx, codes); err != nil {
			log.Printf("scheduler: recovery sweep failed: %v", err)
		}
		cancel()
	}

	// The consumer stands in for the push provider in development,
	// draining the notification queue into logs/notifications.log.
	go queue.StartNotificationConsumer(cfg.RabbitURL)

	// Rate limiting (fails open when Redis is unreachable).
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; rate limiting disabled")
	}
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	// HTTP surface
	e := echo.New()
	e.HideBanner = true

	authH := handler.NewAuthHandler(cfg, users)
	entryH := handler.NewEntryHandler(db, entries, approvals, users, ledger, entryLifecycle, dispatch)
	codeH := handler.NewCodeHandler(db, codes, approvals, users, visits, generator, ledger, window, scheduler, dispatch, cfg.PassResolveMin)
	visitH := handler.NewPreApprovedHandler(visits, approvals, visitLifecycle, dispatch)

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authH, limiter)
	router.RegisterGate(e, entryH, codeH, visitH, cfg.JWTSecret, middleware.LoadActor(users), limiter)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
