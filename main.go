package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/raine/sellsmart-bot/internal/bot"
	"github.com/raine/sellsmart-bot/internal/config"
	"github.com/raine/sellsmart-bot/internal/llm"
	"github.com/raine/sellsmart-bot/internal/storage"
	"github.com/raine/sellsmart-bot/internal/web"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const logFileName = "sellsmart-bot.log"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	// Try to load existing config.env
	config.LoadEnvFile()

	if missing := config.CheckRequiredConfig(); len(missing) > 0 {
		if config.IsInteractiveTerminal() {
			if !config.RunSetupWizard() {
				config.WaitOnWindows()
				os.Exit(1)
			}
		} else {
			// Non-interactive (systemd, containers) - fail with clear error
			config.FatalWithWait("missing required config: %s", strings.Join(missing, ", "))
		}
	}

	// JOURNAL_STREAM is set by systemd when running as a service; journald
	// keeps the logs there.
	if _, underSystemd := os.LookupEnv("JOURNAL_STREAM"); underSystemd {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		logFile, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			config.FatalWithWait("failed to open log file: %v", err)
		}
		defer logFile.Close()

		consoleWriter := zerolog.ConsoleWriter{Out: os.Stderr}
		fileWriter := zerolog.ConsoleWriter{Out: logFile, NoColor: true}
		log.Logger = log.Output(io.MultiWriter(consoleWriter, fileWriter))

		log.Info().Str("logFile", logFileName).Msg("logging to file")
	}

	cfg, err := config.FromEnv()
	if err != nil {
		config.FatalWithWait("%v", err)
	}
	log.Info().
		Str("version", bot.Version).
		Str("generationMode", string(cfg.GenerationMode)).
		Str("httpAddr", cfg.HTTPAddr).
		Msg("starting")

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		config.FatalWithWait("failed to open database: %v", err)
	}
	defer store.Close()
	log.Info().Str("dbPath", cfg.DBPath).Msg("database initialized")

	if err := bot.InitListingLog("."); err != nil {
		log.Warn().Err(err).Msg("failed to initialize listing log")
	}

	tg, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		config.FatalWithWait("failed to initialize telegram bot: %v", err)
	}
	tg.Debug = false
	log.Info().Str("username", tg.Self.UserName).Msg("authorized on account")

	bot.RegisterCommands(tg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	gateway, err := newGateway(ctx, cfg, store)
	if err != nil {
		config.FatalWithWait("failed to initialize gemini: %v", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return runBot(ctx, tg, store, gateway, cfg.AdminID)
	})

	if cfg.HTTPAddr != "" {
		sessions := web.NewSessionManager(gateway, web.DefaultIdleTTL)
		g.Go(func() error {
			sessions.RunCleanup(ctx, web.DefaultIdleTTL/6)
			return nil
		})
		g.Go(func() error {
			return web.NewServer(sessions).ListenAndServe(ctx, cfg.HTTPAddr)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("shutdown with error")
	} else {
		log.Info().Msg("shutdown complete")
	}
}

// newGateway assembles the AI gateway: Gemini for analysis and edits with
// cached analyses, and the generator chosen by GENERATION_MODE.
func newGateway(ctx context.Context, cfg *config.Config, store storage.Store) (llm.Gateway, error) {
	gemini, err := llm.NewGeminiGateway(ctx, cfg.GeminiAPIKey)
	if err != nil {
		return nil, err
	}
	analyzer := llm.NewCachedAnalyzer(gemini, store)
	log.Info().Msg("gemini gateway initialized, analysis caching enabled")

	var generator llm.Generator = gemini
	if cfg.GenerationMode == config.GenerationSimulated {
		delay := llm.DefaultSimulatedDelay
		if cfg.SimulatedDelay >= 0 {
			delay = cfg.SimulatedDelay
		}
		generator = llm.NewSimulatedGenerator(delay)
		log.Info().Dur("delay", delay).Msg("using simulated image generation")
	}

	return llm.NewGateway(analyzer, gemini, generator), nil
}

func runBot(ctx context.Context, tg *tgbotapi.BotAPI, store storage.Store, gateway llm.Gateway, adminID int64) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := tg.GetUpdatesChan(updateConfig)

	b := bot.NewBot(tg, store, gateway, adminID)
	defer b.Shutdown()

	var wg sync.WaitGroup

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("stopping bot update loop")
			tg.StopReceivingUpdates()
			log.Info().Msg("waiting for active handlers to finish")
			wg.Wait()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				log.Warn().Msg("updates channel closed")
				wg.Wait()
				return nil
			}
			wg.Add(1)
			go func(u tgbotapi.Update) {
				defer wg.Done()
				b.HandleUpdate(ctx, u)
			}(update)
		}
	}
}
