package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"family-vault/internal/api"
	"family-vault/internal/config"
	"family-vault/internal/extractor"
	"family-vault/internal/interviewer"
	"family-vault/internal/logging"
	"family-vault/internal/metrics"
	"family-vault/internal/search"
	"family-vault/internal/server"
	"family-vault/internal/session"
	"family-vault/internal/storage"
	"family-vault/internal/telegram"
	"family-vault/internal/translation"
	"family-vault/internal/voice"
)

func main() {
	envErr := godotenv.Load()

	appCfg := config.LoadAppConfig()
	logger, err := logging.New(appCfg.Environment)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if envErr != nil {
		logger.Info("no .env file loaded, using process environment", zap.Error(envErr))
	}

	if err := run(appCfg, logger); err != nil {
		logger.Error("family vault stopped with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(appCfg *config.AppConfig, logger *zap.Logger) error {
	if err := appCfg.Validate(); err != nil {
		return err
	}

	cfg, err := config.Load(appCfg.Interview)
	if err != nil {
		return fmt.Errorf("load interview config: %w", err)
	}
	bank, err := cfg.QuestionBank()
	if err != nil {
		return fmt.Errorf("build question bank: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.NewMetrics()
	client := api.NewOpenAIClient(appCfg.OpenAI, m, logger)

	interviewerService := interviewer.New(client, logger)
	extractorService := extractor.New(client, m, logger)
	translator := translation.New(client, logger)
	searcher := search.New(client, logger)
	transcriber := voice.NewTranscriber(client, logger)
	synthesizer := voice.NewSynthesizer(client, logger)
	store := storage.NewStore(appCfg.Storage.Dir, logger)

	manager := session.NewManager(bank, interviewerService, extractorService, translator, store, m,
		session.Options{
			FollowupCount: cfg.GetFollowupsPerAnswer(),
			ExtractOnSave: cfg.InterviewConfig.ExtractOnSave,
		}, logger)
	manager.StartCleanup(ctx, session.DefaultCleanupInterval)

	logger.Info("family vault configured",
		zap.String("environment", appCfg.Environment),
		zap.Int("questions", cfg.GetTotalQuestions()),
		zap.Int("followups_per_answer", cfg.GetFollowupsPerAnswer()),
		zap.Bool("extract_on_save", cfg.InterviewConfig.ExtractOnSave),
		zap.String("storage_dir", store.Dir()),
		zap.Any("model", appCfg.OpenAI.GetModelInfo()))

	if appCfg.Telegram.Token != "" {
		bot, err := telegram.New(appCfg.Telegram.Token, appCfg.Telegram.Debug, logger)
		if err != nil {
			return err
		}
		handler := telegram.NewHandler(bot.API(), manager, store, searcher, transcriber, logger)
		handler.StartCleanup(ctx, session.DefaultCleanupInterval)
		go bot.StartPolling(ctx, handler.HandleUpdate)
	} else {
		logger.Info("TELEGRAM_BOT_TOKEN not set, telegram bot disabled")
	}

	srv := server.New(server.Deps{
		Sessions:    manager,
		Records:     store,
		Extractor:   extractorService,
		Searcher:    searcher,
		Translator:  translator,
		Transcriber: transcriber,
		Speaker:     synthesizer,
		Metrics:     m,
	}, appCfg.Server, logger)

	return srv.Run(ctx)
}
