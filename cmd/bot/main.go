package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"student_review_bot/internal/app"
	"student_review_bot/internal/infra/config"
	idb "student_review_bot/internal/infra/database"
	"student_review_bot/internal/infra/logger"
	"student_review_bot/internal/infra/scheduler"
	"student_review_bot/internal/infra/statestore"
	"student_review_bot/internal/infra/telegram"

	"gopkg.in/telebot.v3"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Get().WithError(err).Fatal("Could not load application configuration")
	}

	logger.Init(cfg)
	log := logger.Get()
	log.WithField("environment", cfg.Environment).Info("Student review bot starting")

	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("Could not connect to database")
	}
	defer db.Close()
	log.Info("Database connection established")

	storeCfg := statestore.DefaultConfig()
	storeCfg.Addr = cfg.RedisAddr
	storeCfg.Password = cfg.RedisPassword
	storeCfg.DB = cfg.RedisDB
	store, err := statestore.NewRedisStore(storeCfg)
	if err != nil {
		log.WithError(err).Fatal("Could not connect to the state store")
	}
	defer store.Close()
	log.Info("State store connection established")

	learnerRepo := idb.NewPostgresLearnerRepository(db)
	courseRepo := idb.NewPostgresCourseRepository(db)
	reportRepo := idb.NewPostgresReportRepository(db)

	var poller telebot.Poller = &telebot.LongPoller{Timeout: 10 * time.Second}
	if cfg.WebhookURL != "" {
		poller = &telebot.Webhook{
			Listen:   cfg.WebhookListen,
			Endpoint: &telebot.WebhookEndpoint{PublicURL: cfg.WebhookURL},
		}
	}

	bot, err := telebot.NewBot(telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: poller,
		OnError: func(err error, c telebot.Context) {
			entry := log.WithError(err)
			if c != nil && c.Sender() != nil {
				entry = entry.WithField("telegram_id", c.Sender().ID)
			}
			entry.Error("Unhandled bot error")
		},
	})
	if err != nil {
		log.WithError(err).Fatal("Could not create Telegram bot")
	}

	tgClient := telegram.NewTelebotAdapter(bot)

	conversations := app.NewConversationService(
		learnerRepo, courseRepo, reportRepo, store, tgClient,
		cfg.AdminChatID, log.WithField("service", "conversation"),
	)
	reviews := app.NewReviewService(
		learnerRepo, courseRepo, reportRepo, store, tgClient,
		cfg.AdminChatID, log.WithField("service", "review"),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handlers := telegram.NewHandlers(conversations, reviews, cfg.AdminChatID, cfg.RequestTimeout, log.WithField("component", "handlers"))
	handlers.Register(ctx, bot)
	log.Info("Bot handlers registered")

	jobs := scheduler.NewReviewScheduler(
		reviews, conversations, log.WithField("component", "scheduler"),
		cfg.CronSpecReviewDigest, cfg.CronSpecIdleNudge, cfg.IdleNudgeAfter,
	)
	if err := jobs.Start(); err != nil {
		log.WithError(err).Fatal("Could not start scheduler")
	}

	go bot.Start()
	log.Info("Bot is running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down")
	cancel()
	jobs.Stop()
	bot.Stop()
	log.Info("Shut down gracefully")
}
