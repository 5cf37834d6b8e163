package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/yourname/gatekeeper-bot/internal/bot"
	"github.com/yourname/gatekeeper-bot/internal/config"
	"github.com/yourname/gatekeeper-bot/internal/db"
	"github.com/yourname/gatekeeper-bot/internal/logger"
	"github.com/yourname/gatekeeper-bot/internal/referral"
	"github.com/yourname/gatekeeper-bot/internal/repo"
	"github.com/yourname/gatekeeper-bot/internal/verify"
)

func main() {
	cfg := config.MustLoad(".")

	zl, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zl.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := db.MustConnect(ctx, cfg.Mongo.URI)
	defer client.Disconnect(context.Background())

	database := client.Database(cfg.Mongo.Database)
	if err := db.EnsureIndexes(ctx, database); err != nil {
		zl.Fatal("indexes", zap.Error(err))
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		zl.Fatal("bot init", zap.Error(err))
	}
	botAPI.Debug = false

	rUsers := repo.NewUsers(database)
	guild, err := repo.NewGuildConfigs(database).Fetch(ctx)
	if err != nil {
		zl.Fatal("guild configuration", zap.Error(err))
	}

	gw := bot.NewGateway(botAPI, bot.GatedChatID(guild, zl), guild, zl)
	ledger := referral.NewLedger(rUsers, zl)
	engine := verify.NewEngine(rUsers, gw, zl)

	h := bot.NewHandler(botAPI, cfg, guild, ledger, engine, zl)

	// Graceful shutdown
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		cancel()
	}()

	// Stale-challenge sweeper
	go engine.RunExpiryWorker(ctx, 30*time.Second)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := botAPI.GetUpdatesChan(u)

	zl.Info("gatekeeper started", zap.String("bot", botAPI.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			zl.Info("shutdown")
			return
		case upd := <-updates:
			go h.HandleUpdate(ctx, upd)
		}
	}
}
