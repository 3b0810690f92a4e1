package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"course_runtime/internal/app"
	"course_runtime/internal/domain/lms"
	"course_runtime/internal/domain/session"
	"course_runtime/internal/infra/config"
	idb "course_runtime/internal/infra/database"
	"course_runtime/internal/infra/logger"
	"course_runtime/internal/infra/scheduler"
	isession "course_runtime/internal/infra/session"
	"course_runtime/internal/infra/slides"
	"course_runtime/internal/infra/telegram"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func main() {
	fmt.Println("Course Runtime Bot starting...")

	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("Could not load application configuration: %v", err)
	}
	logger.Init(cfg)
	mainLogger := logger.Component("main")

	mainLogger.Infof("Configuration loaded. LogLevel: %s, Environment: %s, Course: %s", cfg.LogLevel, cfg.Environment, cfg.CourseFile)

	// Load the course definition
	def, err := slides.LoadCourseFile(cfg.CourseFile)
	if err != nil {
		mainLogger.Fatalf("Could not load course: %v", err)
	}
	contentDir := cfg.ContentDir
	if contentDir == "" {
		contentDir = filepath.Dir(cfg.CourseFile)
	}
	courseLogger := logger.ForCourse(def.ID)
	mainLogger = logger.Component("main")
	mainLogger.WithField("pages", len(def.Pages)).Info("Course definition loaded.")

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	// Durable LMS channel (optional)
	var lmsFactory func(learnerID int64) lms.Client
	if cfg.DatabaseURL != "" {
		db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
		if err != nil {
			mainLogger.Fatalf("Could not connect to database: %v", err)
		}
		defer db.Close()
		schemaCtx, cancel := context.WithTimeout(rootCtx, 30*time.Second)
		err = idb.EnsureSchema(schemaCtx, db)
		cancel()
		if err != nil {
			mainLogger.Fatalf("Could not prepare database schema: %v", err)
		}
		lmsFactory = func(learnerID int64) lms.Client {
			return idb.NewPostgresLMSClient(db, def.ID, learnerID, logger.ForLearner(learnerID))
		}
		mainLogger.Info("Database connection established successfully. LMS tracking enabled.")
	} else {
		mainLogger.Info("DATABASE_URL not set. Runtimes will run without an LMS.")
	}

	// Volatile session channel
	var sessions session.Store
	var purger scheduler.Purger
	if cfg.RedisAddr != "" {
		redisStore, err := isession.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.SessionTTL)
		if err != nil {
			mainLogger.Fatalf("Could not connect to redis: %v", err)
		}
		defer redisStore.Close()
		sessions = redisStore
		mainLogger.Infof("Redis session store connected at %s.", cfg.RedisAddr)
	} else {
		memoryStore := isession.NewMemoryStore(cfg.SessionTTL)
		sessions = memoryStore
		purger = memoryStore
		mainLogger.Info("Using in-memory session store.")
	}

	// Initialize Telegram Bot
	pref := telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) { // Global error handler
			errLog := logger.Component("telebot").WithError(err)
			if c != nil && c.Sender() != nil && c.Chat() != nil {
				errLog = errLog.WithFields(logrus.Fields{"text": c.Text(), "sender_id": c.Sender().ID, "chat_id": c.Chat().ID})
			}
			errLog.Error("Telegram handler error")
		},
	}
	bot, err := telebot.NewBot(pref)
	if err != nil {
		mainLogger.Fatalf("Could not create Telegram bot: %v", err)
	}
	client := telegram.NewTelebotAdapter(bot, contentDir)

	// One runtime per learner
	factory := telegram.NewRuntimeFactory(telegram.RuntimeConfig{
		Course:   def,
		Loader:   slides.NewHTMLPageLoader(contentDir, courseLogger),
		Client:   client,
		Sessions: sessions,
		LMS:      lmsFactory,
		Timings: app.Timings{
			VisibilityThreshold:   cfg.SectionVisibilityThreshold,
			MediaStartDelay:       cfg.MediaStartDelay,
			SettleDelay:           cfg.TOCSettleDelay,
			PendingLookupAttempts: cfg.PendingLookupAttempts,
			PendingLookupInterval: cfg.PendingLookupInterval,
		},
		Logger: courseLogger,
	})
	registry := app.NewRuntimeRegistry(rootCtx, factory, courseLogger)
	mainLogger.Info("Runtime registry initialized.")

	// Initialize MaintenanceScheduler
	maintenance := scheduler.NewMaintenanceScheduler(
		registry,
		purger,
		courseLogger,
		cfg.CronSpecLMSFlush,
		cfg.CronSpecSessionSweep,
		cfg.SessionIdleTimeout,
	)
	if err := maintenance.Start(); err != nil {
		mainLogger.Fatalf("Could not start maintenance scheduler: %v", err)
	}

	// Register Handlers
	botLogger := logger.Component("bot")
	telegram.RegisterBotCommands(bot, botLogger)
	telegram.RegisterLearnerHandlers(rootCtx, bot, telegram.NewLearnerCommands(registry, botLogger), botLogger)
	mainLogger.Info("Learner command handlers registered.")

	mainLogger.Info("Application setup complete. Bot and Scheduler are starting...")

	// Start bot in a goroutine so it doesn't block graceful shutdown handling
	go bot.Start()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit // Block until a signal is received

	mainLogger.Info("Shutting down application...")
	bot.Stop()
	maintenance.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := registry.Close(shutdownCtx); err != nil {
		mainLogger.WithError(err).Error("Some runtimes did not close cleanly")
	}
	mainLogger.Info("Application shut down gracefully.")
}
