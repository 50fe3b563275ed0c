package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"library-service/internal/client"
	"library-service/internal/config"
	"library-service/internal/repository"
	"library-service/internal/scheduler"
	"library-service/internal/server"
	"library-service/internal/service"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

func main() {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		fmt.Printf("Failed to parse config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	loc, err := time.LoadLocation(cfg.Lending.Location)
	if err != nil {
		return fmt.Errorf("load lending location: %w", err)
	}

	db, err := client.NewDBClient(cfg.Database)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	defer sqlDB.Close()

	paypalClient := client.NewPaypalClient(&cfg.Paypal)

	notifier := client.NewLogNotifier(logger)
	if cfg.Telegram.BotToken != "" {
		notifier = client.NewTelegramClient(&cfg.Telegram)
	} else {
		logger.Warn("TELEGRAM_BOT_TOKEN not set, notifications go to the log")
	}

	bookRepo := repository.NewBookRepository(db)
	authorRepo := repository.NewAuthorRepository(db)
	borrowingRepo := repository.NewBorrowingRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	webhookEventRepo := repository.NewWebhookEventRepository(db)

	calendar := service.NewCalendar(time.Now, loc)
	notifications := service.NewNotifications(notifier, cfg.Telegram.ChatID, logger)

	paymentService := service.NewPaymentService(
		db, paypalClient, paymentRepo, calendar,
		cfg.BaseURL, cfg.Paypal.Currency, cfg.Lending.PaymentGracePeriod,
		logger,
	)
	checkoutService := service.NewCheckoutService(
		db, paypalClient, paymentService,
		bookRepo, borrowingRepo, webhookEventRepo,
		notifications, calendar, logger,
	)
	returnService := service.NewReturnService(
		db, paymentService, paymentRepo,
		bookRepo, borrowingRepo,
		notifications, calendar, cfg.Lending.FineMultiplier, logger,
	)
	jobService := service.NewJobService(paymentService, borrowingRepo, repository.NewJobRunRepository(db),
		notifications, loc, logger)

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched, err = scheduler.New(jobService, cfg.Scheduler, loc, time.Now, logger)
		if err != nil {
			return err
		}
		sched.Start()
	}

	srv := server.NewServer(server.Services{
		Books:      service.NewBookService(bookRepo, authorRepo),
		Borrowings: service.NewBorrowingService(borrowingRepo, calendar),
		Checkout:   checkoutService,
		Returns:    returnService,
		Payments:   paymentService,
	}, cfg.Auth.JWTSecret, logger)

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port

	logger.Info("starting HTTP server", "addr", serverAddr, "env", cfg.Environment.Name)
	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	select {
	case <-sigChan:
		logger.Info("signal received, starting graceful shutdown")
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown", "err", err)
	}
	if sched != nil {
		if err := sched.Stop(shutdownCtx); err != nil {
			logger.Error("scheduler shutdown", "err", err)
		}
	}
	return nil
}

func newLogger(cfg config.Log) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
