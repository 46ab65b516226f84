package main

import (
	"time"

	"go.uber.org/zap"

	"github.com/xaenox/chatlens/internal/analyzer"
	"github.com/xaenox/chatlens/internal/bot"
	"github.com/xaenox/chatlens/internal/identity"
	"github.com/xaenox/chatlens/internal/normalizer"
	"github.com/xaenox/chatlens/internal/pipeline"
	"github.com/xaenox/chatlens/internal/report"
	"github.com/xaenox/chatlens/internal/stats"
	"github.com/xaenox/chatlens/internal/storage"
	"github.com/xaenox/chatlens/internal/transport"
	"github.com/xaenox/chatlens/pkg/config"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}

	// Initialize storage
	var store storage.Storage
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory storage")
		store = storage.NewMemoryStorage()
	} else {
		logger.Info("Using PostgreSQL storage")
		dbConfig := storage.DatabaseConfig{
			Host:        cfg.Database.Host,
			Port:        cfg.Database.Port,
			User:        cfg.Database.User,
			Password:    cfg.Database.Password,
			DBName:      cfg.Database.DBName,
			SSLMode:     cfg.Database.SSLMode,
			UseInMemory: cfg.Database.UseInMemory,
		}
		store, err = storage.NewPostgresStorage(dbConfig)
		if err != nil {
			logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
	}
	defer store.Close()

	// Identity resolution with TTL cache on top of storage
	resolver := identity.NewResolver(store,
		time.Duration(cfg.Analysis.CacheTTLSeconds)*time.Second,
		identity.DefaultCapacity,
		logger)

	norm := normalizer.New(resolver, logger)

	// LLM analysis engine
	llm := transport.NewOpenAITransport(
		cfg.OpenAI.APIKey,
		cfg.OpenAI.BaseURL,
		cfg.OpenAI.Model,
		cfg.OpenAI.MaxTokens,
		cfg.OpenAI.Temperature,
		logger,
	)
	engine := analyzer.New(llm, analyzer.Config{
		Timeout:        time.Duration(cfg.Analysis.LLMTimeoutSeconds) * time.Second,
		MaxRetries:     cfg.Analysis.LLMRetries,
		BackoffBase:    time.Duration(cfg.Analysis.LLMBackoffMs) * time.Millisecond,
		MaxTopics:      cfg.Analysis.MaxTopics,
		MaxUserTitles:  cfg.Analysis.MaxUserTitles,
		MaxQuotes:      cfg.Analysis.MaxQuotes,
		MinActivity:    cfg.Analysis.MinActivity,
		TimezoneOffset: cfg.Analysis.TimezoneOffset,
		SoftDeadline:   time.Duration(cfg.Analysis.SoftDeadlineSeconds) * time.Second,
	}, logger)

	// Report rendering via headless browser
	renderer := transport.NewChromeRenderer(cfg.Report.BrowserPath, 30*time.Second, logger)
	generator := report.NewGenerator(renderer, logger)

	p := pipeline.New(store, norm, engine, generator, pipeline.Config{
		Days:           cfg.Analysis.Days,
		MaxMessages:    cfg.Analysis.MaxMessages,
		TimezoneOffset: cfg.Analysis.TimezoneOffset,
		Emoji:          stats.DefaultEmojiPolicy(),
	}, logger)

	// Initialize bot
	defaultFormat, _ := report.ParseFormat(cfg.Report.Format)
	b, err := bot.New(cfg.Telegram.Token, store, p, defaultFormat, logger)
	if err != nil {
		logger.Fatal("Failed to create bot", zap.Error(err))
	}

	// Start the bot
	if err := b.Start(); err != nil {
		logger.Fatal("Bot error", zap.Error(err))
	}
}
