package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"gig-payments/config"
	"gig-payments/database"
	adminapi "gig-payments/internal/api/admin"
	"gig-payments/internal/api/billing"
	notificationsapi "gig-payments/internal/api/notifications"
	stripewebhooks "gig-payments/internal/api/stripewebhook"
	"gig-payments/internal/api/users"
	routes "gig-payments/internal/app/http"
	"gig-payments/internal/app/http/middleware"
	stripeinfra "gig-payments/internal/infra/stripe"
	"gig-payments/internal/logger"
	"gig-payments/internal/notify"
	"gig-payments/internal/realtime"
	"gig-payments/internal/reconcile"
	"gig-payments/internal/store"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	config.LoadEnv()

	log, err := logger.New(config.LOG_LEVEL)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db := database.InitDB(config.DB_URL, log)
	st := store.New(db)

	registry := realtime.NewMemoryRegistry()
	monitor := realtime.NewMonitor(registry, config.WS_PING_INTERVAL, config.WS_TIMEOUT_MULTIPLE, log)
	go monitor.Run(ctx)

	var broker realtime.Broker
	if config.REDIS_URL != "" {
		opts, err := redis.ParseURL(config.REDIS_URL)
		if err != nil {
			log.Fatal("invalid REDIS_URL", zap.Error(err))
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()

		rb := realtime.NewRedisBroker(rdb, registry, log)
		broker = rb
		go func() {
			if err := rb.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("realtime broker stopped", zap.Error(err))
			}
		}()
	}

	notifier := notify.New(registry, broker, st, log)
	reconciler := reconcile.New(config.SERVICE_FEE_RATE, log)
	dispatcher := stripewebhooks.NewDispatcher(st, notifier, reconciler.Handlers(), stripewebhooks.Options{
		DeferredWindow: config.WEBHOOK_DEFERRED_WINDOW,
		Log:            log,
	})
	redriver := stripewebhooks.NewRedriver(st, dispatcher, config.WEBHOOK_REDRIVE_INTERVAL, log)
	go redriver.Run(ctx)

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{config.CORS_ORIGIN},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, routes.Handlers{
		JWTSecret:     config.JWT_SECRET,
		Webhook:       stripewebhooks.NewHandler(stripeinfra.NewVerifier(config.STRIPE_WEBHOOK_SECRET, config.STRIPE_WEBHOOK_TOLERANCE), dispatcher, log),
		Realtime:      realtime.NewHandler(registry, config.CORS_ORIGIN, log),
		Notifications: notificationsapi.NewHandler(st, log),
		Billing:       billing.NewHandler(st, log),
		Users:         users.NewHandler(st, log),
		Admin:         adminapi.NewHandler(st, dispatcher, registry, log),
	})

	srv := &http.Server{
		Addr:              ":" + config.PORT,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
	for _, c := range registry.Snapshot() {
		realtime.Evict(registry, c)
	}
}
