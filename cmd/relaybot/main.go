package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/blockedby/tg-relay/internal/bot"
	"github.com/blockedby/tg-relay/internal/config"
	"github.com/blockedby/tg-relay/internal/database"
	"github.com/blockedby/tg-relay/internal/logger"
	"github.com/blockedby/tg-relay/internal/nats"
	"github.com/blockedby/tg-relay/internal/publisher"
	"github.com/blockedby/tg-relay/internal/settings"
	"github.com/blockedby/tg-relay/internal/telegram"
	"github.com/blockedby/tg-relay/internal/thumbnail"
	"github.com/blockedby/tg-relay/internal/transfer"
	"github.com/blockedby/tg-relay/internal/web"
	"github.com/blockedby/tg-relay/internal/web/handlers"
)

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// 2. Initialize logger
	if err := logger.Init(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile, JSON: cfg.LogJSON}); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	log := logger.Get()
	log.Info().Msg("starting relay bot")

	// 3. Setup context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 4. Connect to database
	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// 5. Settings
	settingsRepo := settings.NewRepository(db.GORM, log)
	if err := settingsRepo.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate settings")
	}
	if cfg.SettingsSeedFile != "" {
		seed, err := settings.LoadSeed(cfg.SettingsSeedFile)
		if err != nil {
			log.Fatal().Err(err).Str("file", cfg.SettingsSeedFile).Msg("failed to load settings seed")
		}
		if _, err := settingsRepo.SeedIfEmpty(ctx, seed); err != nil {
			log.Fatal().Err(err).Msg("failed to seed settings")
		}
	}

	// 6. Connect to NATS
	var publishers transfer.Publishers
	if cfg.NatsURL != "" {
		nc, err := nats.New(ctx, cfg.NatsURL)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to nats, publishing disabled")
		} else {
			defer nc.Close()
			if err := nc.EnsureTransfersStream(ctx); err != nil {
				log.Warn().Err(err).Msg("failed to create transfers stream")
			}
			publishers = append(publishers, publisher.NewNATSPublisher(nc))
		}
	}

	// 7. Start telegram
	tgManager := telegram.NewManager(cfg, db.GORM)
	if err := tgManager.Init(ctx); err != nil {
		log.Fatal().Err(err).Msg("telegram init failed")
	}
	defer tgManager.Stop()

	tgClient := telegram.NewClient(tgManager)
	thumbs := thumbnail.New(cfg.ThumbnailDir, log)

	// 8. Websocket hub
	var hub *web.Hub
	var sink transfer.StatusSink
	if cfg.HTTPPort != 0 {
		hub = web.NewHub()
		go hub.Run()
		defer hub.Close()
		hubSink := web.HubSink{Hub: hub}
		sink = hubSink
		publishers = append(publishers, hubSink)
	}

	// 9. Transfer pipeline
	orchestrator := transfer.NewOrchestrator(tgClient, thumbs, log)
	transfers := transfer.NewManager(orchestrator, publishers, log)
	defer transfers.Stop()

	// 10. Status api
	var server *web.Server
	if hub != nil {
		server = web.NewServer(&web.Config{
			Port:        cfg.HTTPPort,
			HealthCheck: db.Ping,
		}, hub, log)
		server.RegisterTransferHandler(handlers.NewTransferHandler(transfers))

		log.Info().Int("port", cfg.HTTPPort).Msg("starting web server")
		go func() {
			if err := server.Start(); err != nil {
				log.Error().Err(err).Msg("server error")
			}
		}()
	}

	// 11. Bot commands
	relay := bot.New(ctx, bot.Deps{
		Chat:       tgClient,
		Transfers:  transfers,
		Settings:   settingsRepo,
		Thumbnails: thumbs,
		Sink:       sink,
	}, bot.Options{
		OwnerID:      cfg.OwnerID,
		LogChannelID: cfg.LogChannelID,
		Runtime: settings.Runtime{
			DownloadDir:     cfg.DownloadDir,
			PremiumLimit:    cfg.LargeFileThreshold,
			RefreshInterval: cfg.StatusRefresh,
		},
	}, log)
	relay.Register(tgManager.GetClient(), tgClient)
	log.Info().Int64("owner_id", cfg.OwnerID).Msg("relay bot is listening")

	// 12. Wait for shutdown
	<-ctx.Done()
	log.Info().Msg("shutting down services...")

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Stop(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("server stop failed")
		}
	}

	log.Info().Msg("shutdown complete")
}
