package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mg-gouda/e-commerce-sub000/internal/cart"
	"github.com/mg-gouda/e-commerce-sub000/internal/coupon"
	h "github.com/mg-gouda/e-commerce-sub000/internal/http"
	"github.com/mg-gouda/e-commerce-sub000/internal/notify"
	"github.com/mg-gouda/e-commerce-sub000/internal/order"
	"github.com/mg-gouda/e-commerce-sub000/internal/payment"
	"github.com/mg-gouda/e-commerce-sub000/internal/repository"
	"github.com/mg-gouda/e-commerce-sub000/internal/stock"
)

type Config struct {
	HTTPPort        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	DB        repository.Credentials
	RedisAddr string

	KafkaBrokers []string
	KafkaTopic   string

	WebhookSecret string
}

func loadConfig() *Config {
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		log.Fatalf("invalid DB_PORT: %v", err)
	}

	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		DB: repository.Credentials{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              dbPort,
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", "postgres"),
			DBName:            getEnv("DB_NAME", "storefront"),
			MigrationsDirPath: getEnv("MIGRATIONS_PATH", "migrations"),
		},
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		KafkaBrokers:  strings.Split(getEnv("KAFKA_BROKERS", ""), ","),
		KafkaTopic:    getEnv("KAFKA_TOPIC", "storefront-events"),
		WebhookSecret: getEnv("WEBHOOK_SECRET", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	cfg := loadConfig()

	if cfg.WebhookSecret == "" {
		log.Fatal("WEBHOOK_SECRET is required")
	}

	db, err := repository.Open(&cfg.DB)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := repository.RunMigrations(db, &cfg.DB); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	log.Println("Connected to redis!")

	var notifier notify.Notifier = notify.Noop{}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaBrokers[0] != "" {
		kafkaNotifier := notify.NewKafkaNotifier(cfg.KafkaTopic, cfg.KafkaBrokers...)
		defer kafkaNotifier.Close()
		notifier = kafkaNotifier
		log.Printf("Publishing events to kafka topic %q", cfg.KafkaTopic)
	} else {
		log.Println("No kafka brokers configured, events will be dropped")
	}

	ledger := stock.NewPostgresLedger(db)
	carts := cart.NewResolver(cart.NewPostgresStore(db), cart.NewRedisGuestStore(redisClient), ledger)
	coupons := coupon.NewEngine(coupon.NewPostgresStore(db))

	factory := order.NewFactory(
		carts,
		repository.NewPostgresUnitOfWork(db),
		order.NewPostgresRepository(db),
		coupons,
		notifier,
	)

	machine := payment.NewStateMachine(
		payment.NewPostgresRepository(db),
		factory,
		map[string]payment.Provider{"stub": payment.StubProvider{}},
		notifier,
	)

	router := h.NewRouter(h.RouterConfig{
		Carts:          carts,
		Orders:         factory,
		Payments:       machine,
		WebhookSecret:  []byte(cfg.WebhookSecret),
		RequestTimeout: cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("server exited")
}
