package main

import (
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/digkill/TiendiaBot/internal/admin"
	"github.com/digkill/TiendiaBot/internal/cache"
	"github.com/digkill/TiendiaBot/internal/config"
	"github.com/digkill/TiendiaBot/internal/database"
	"github.com/digkill/TiendiaBot/internal/repository"
	"github.com/digkill/TiendiaBot/internal/session"
	"github.com/digkill/TiendiaBot/internal/storage"
	"github.com/digkill/TiendiaBot/internal/telegram"
	"github.com/digkill/TiendiaBot/internal/tiendia"
	"github.com/digkill/TiendiaBot/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logr := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tokens, closer, err := openTokenStore(ctx, cfg, logr)
	if err != nil {
		log.Fatalf("token store: %v", err)
	}
	defer closer.Close()
	logr.Info("token store ready", "kind", cfg.TokenStore)

	botAPI, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		log.Fatalf("telegram bot: %v", err)
	}

	client := tiendia.NewClient(cfg, logr)

	var archive telegram.Archiver
	if cfg.ArchiveEnabled() {
		a, err := storage.NewArchive(storage.Config{
			Endpoint:      cfg.S3Endpoint,
			Region:        cfg.S3Region,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			Bucket:        cfg.S3Bucket,
			PublicBaseURL: cfg.S3PublicBaseURL,
			UsePathStyle:  cfg.S3UsePathStyle,
			Prefix:        cfg.S3Prefix,
		})
		if err != nil {
			log.Fatalf("storage archive: %v", err)
		}
		archive = a
	}

	bot := telegram.NewBot(cfg, botAPI, logr, client, tokens, archive)

	adminServer := admin.NewServer(cfg.AdminListenAddr, cfg.AdminUsername, cfg.AdminPassword, logr, bot, bot)
	go func() {
		if err := adminServer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logr.Error("admin server stopped", "err", err)
		}
	}()

	if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logr.Error("bot stopped", "err", err)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openTokenStore builds the backend selected by TOKEN_STORE.
func openTokenStore(ctx context.Context, cfg config.Config, logr *slog.Logger) (telegram.TokenStore, io.Closer, error) {
	switch cfg.TokenStore {
	case config.TokenStoreRedis:
		c, err := cache.NewTokenCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		return c, c, nil
	case config.TokenStoreMemory:
		logr.Warn("memory token store: sessions are lost on restart")
		return session.NewMemoryTokenStore(), nopCloser{}, nil
	default:
		db, err := database.Connect(cfg)
		if err != nil {
			return nil, nil, err
		}
		if err := database.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, nil, err
		}
		return repository.NewTokenRepository(db), db, nil
	}
}
