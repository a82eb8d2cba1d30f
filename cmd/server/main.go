package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bookstore-cart/internal/auth"
	"bookstore-cart/internal/config"
	"bookstore-cart/internal/database"
	"bookstore-cart/internal/handlers"
	"bookstore-cart/internal/kafka"
	"bookstore-cart/internal/logger"
	"bookstore-cart/internal/models"
	"bookstore-cart/internal/redis"
	"bookstore-cart/internal/repository"
	"bookstore-cart/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Фабричные функции для подключения внешних сервисов (подменяемые в тестах).
var (
	dbConnect        = database.Connect
	redisConnect     = redis.Connect
	newKafkaProducer = kafka.NewProducer
	newKafkaConsumer = kafka.NewConsumer
	kafkaHealthCheck = handlers.PaymentsTopicCheck
	loadConfig       = config.Load
	newLogger        = logger.New
)

// application агрегирует собранные зависимости.
type application struct {
	cfg      *config.Config
	log      *logger.Logger
	db       *database.DB
	redis    *redis.Client
	producer *kafka.Producer
	consumer *kafka.Consumer
	sweeper  *services.CartSweeper
	router   chi.Router
	server   *http.Server
}

// routeHandlers собирает обработчики для роутера.
type routeHandlers struct {
	cart      *handlers.CartHandler
	checkout  *handlers.CheckoutHandler
	coupons   *handlers.CouponHandler
	health    *handlers.HealthHandler
	rateLimit *handlers.RateLimitHandler
	auth      *handlers.AuthMiddleware
	limiter   handlers.QuotaLimiter
}

func main() {
	app, err := buildApplication()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build app: %v\n", err)
		os.Exit(1)
	}
	app.log.Info("Starting bookstore cart server...")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	app.sweeper.Start(ctx)

	go func() {
		app.log.WithField("address", app.server.Addr).Info("HTTP server starting")
		if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	app.log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = app.consumer.Stop()
	app.sweeper.Stop()
	if err := app.server.Shutdown(shutdownCtx); err != nil {
		app.log.WithError(err).Error("Server forced to shutdown")
	}
	_ = app.producer.Close()
	_ = app.redis.Close()
	_ = app.db.Close()
	app.log.Info("Server exited")
}

// buildApplication создает все зависимости (подменяемые в тестах).
func buildApplication() (*application, error) {
	cfg := loadConfig()
	log := newLogger(&cfg.Logger)

	db, err := dbConnect(&cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}

	if cfg.Database.RunMigrations {
		if err := db.Migrate(); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("db migrate: %w", err)
		}
	}

	// Без Redis сервис работает: купоны читаются из БД, rate limit выключен.
	redisClient, err := redisConnect(&cfg.Redis, log)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, coupon cache and rate limiting disabled")
		redisClient = nil
	}

	producer, err := newKafkaProducer(&cfg.Kafka, log)
	if err != nil {
		_ = redisClient.Close()
		_ = db.Close()
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	consumer, err := newKafkaConsumer(&cfg.Kafka, log)
	if err != nil {
		_ = producer.Close()
		_ = redisClient.Close()
		_ = db.Close()
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}

	cartRepo := repository.NewCartRepository(db)
	couponRepo := repository.NewCouponRepository(db)
	catalog := repository.NewProductCatalog(db)
	ledger := repository.NewRedemptionLedger(db)

	var couponCache services.CouponCache
	var cacheHealth handlers.CacheHealth
	if redisClient != nil {
		couponCache = redisClient
		cacheHealth = redisClient
	}

	pricingService := services.NewPricingService(cfg.Pricing.Precision)
	validator := services.NewCouponValidator(pricingService, ledger)
	couponService := services.NewCouponService(couponRepo, ledger, couponCache,
		time.Duration(cfg.Coupon.CacheTTLSeconds)*time.Second, log)
	cartService := services.NewCartService(cartRepo, catalog, couponService, validator, pricingService, producer, log,
		time.Duration(cfg.Cart.TTLHours)*time.Hour)
	finalizer := services.NewOrderFinalizer(ledger, couponService, cartService, validator, pricingService, producer, log)
	sweeper := services.NewCartSweeper(cartRepo, producer, log, time.Duration(cfg.Cart.SweepIntervalSeconds)*time.Second)
	rateLimiter := services.NewRateLimiter(redisClient, log, &cfg.RateLimit)

	routes := &routeHandlers{
		cart:      handlers.NewCartHandler(cartService, log),
		checkout:  handlers.NewCheckoutHandler(finalizer, log),
		coupons:   handlers.NewCouponHandler(couponService, log),
		health:    handlers.NewHealthHandler(db, cacheHealth, kafkaHealthCheck(cfg.Kafka.Brokers, cfg.Kafka.Topics.Payments)),
		rateLimit: handlers.NewRateLimitHandler(rateLimiter, log, &cfg.RateLimit),
		auth:      handlers.NewAuthMiddleware(auth.NewVerifier(&cfg.Auth), log),
		limiter:   rateLimiter,
	}

	registerEventHandlers(consumer, finalizer, log)
	if err := consumer.Start(); err != nil {
		_ = consumer.Stop()
		_ = producer.Close()
		_ = redisClient.Close()
		_ = db.Close()
		return nil, fmt.Errorf("kafka consumer start: %w", err)
	}

	router := setupRoutes(routes, log)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	return &application{
		cfg:      cfg,
		log:      log,
		db:       db,
		redis:    redisClient,
		producer: producer,
		consumer: consumer,
		sweeper:  sweeper,
		router:   router,
		server:   server,
	}, nil
}

// setupRoutes настраивает маршруты HTTP сервера
func setupRoutes(h *routeHandlers, log *logger.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	// Health check endpoints
	r.Get("/health", h.health.Health)
	r.Get("/health/readiness", h.health.Readiness)
	r.Get("/health/liveness", h.health.Liveness)

	r.Route("/api", func(r chi.Router) {
		r.Get("/rate-limit/status", h.rateLimit.Status)

		r.Group(func(r chi.Router) {
			r.Use(h.auth.RequireUser)

			r.Route("/cart", func(r chi.Router) {
				r.Use(handlers.RateLimit(h.limiter, services.ScopeCart, log))
				r.Get("/", h.cart.GetCart)
				r.Delete("/", h.cart.Clear)
				r.Post("/items", h.cart.AddItem)
				r.Put("/items/{productID}", h.cart.SetQuantity)
				r.Delete("/items/{productID}", h.cart.RemoveItem)
				r.With(handlers.RateLimit(h.limiter, services.ScopeCoupon, log)).Post("/coupon", h.cart.ApplyCoupon)
				r.Delete("/coupon", h.cart.RemoveCoupon)
			})

			r.With(handlers.RequireRole(models.RoleService, models.RoleAdmin)).
				Post("/checkout/{orderID}/finalize", h.checkout.Finalize)

			r.Route("/admin/coupons", func(r chi.Router) {
				r.Use(handlers.RequireRole(models.RoleAdmin))
				r.Use(handlers.RateLimit(h.limiter, services.ScopeAdmin, log))
				r.Get("/", h.coupons.ListCoupons)
				r.Post("/", h.coupons.CreateCoupon)
				r.Get("/{code}", h.coupons.GetCoupon)
				r.Put("/{code}", h.coupons.UpdateCoupon)
				r.Delete("/{code}", h.coupons.DeleteCoupon)
				r.Get("/{code}/stats", h.coupons.GetStats)
				r.Get("/{code}/redemptions", h.coupons.ListRedemptions)
			})
		})
	})

	return r
}

// registerEventHandlers регистрирует обработчики событий Kafka
func registerEventHandlers(consumer *kafka.Consumer, finalizer *services.OrderFinalizer, log *logger.Logger) {
	consumer.RegisterHandler(models.EventTypePaymentSucceeded, finalizer.HandlePaymentSucceeded)
	log.WithField("handlers", consumer.HandlerCount()).Info("Kafka event handlers registered")
}

// corsMiddleware и другие helper функции
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
