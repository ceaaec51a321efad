package main

import (
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"telegram-crm-bot/internal/approval"
	"telegram-crm-bot/internal/config"
	"telegram-crm-bot/internal/directory"
	"telegram-crm-bot/internal/gateway"
	"telegram-crm-bot/internal/handlers"
	"telegram-crm-bot/internal/logger"
	"telegram-crm-bot/internal/scheduler"
	"telegram-crm-bot/internal/session"
	"telegram-crm-bot/internal/storage"
)

func main() {
	_ = godotenv.Load() // TELEGRAM_BOT_TOKEN и прочие настройки

	log, err := logger.New()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("конфигурация неполная", zap.Error(err))
	}

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		log.Fatal("не удалось подключиться к Telegram", zap.Error(err))
	}
	log.Info("бот запущен", zap.String("username", bot.Self.UserName))

	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatal("не удалось открыть базу", zap.String("path", cfg.DBPath), zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	dir := directory.New(cfg.ClientsPath, log)
	log.Info("справочник клиентов загружен", zap.Int("clients", dir.Len()))

	gw := gateway.New(gateway.Config{
		APIURL:             cfg.APIURL,
		APIAccessToken:     cfg.APIAccessToken,
		CreateLKURL:        cfg.CreateLKURL,
		CreateLKToken:      cfg.CreateLKToken,
		ResetPasswordURL:   cfg.ResetPasswordURL,
		ResetPasswordToken: cfg.ResetPasswordToken,
		CustomersURL:       cfg.CustomersURL,
		CustomersToken:     cfg.CustomersToken,
	}, log)

	sessions := session.NewManager(db, cfg.SessionTimeout, log)
	approvals := approval.NewManager(db, gw, log)

	h := handlers.New(bot, cfg, log, db, dir, gw, sessions, approvals)

	sched, err := scheduler.Start(sessions, dir, log)
	if err != nil {
		log.Fatal("не удалось запустить планировщик", zap.Error(err))
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-stop
		log.Info("останавливаюсь", zap.String("signal", sig.String()))
		bot.StopReceivingUpdates()
	}()

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60

	for upd := range bot.GetUpdatesChan(updateConfig) {
		h.HandleUpdate(upd)
	}

	if err := sched.Shutdown(); err != nil {
		log.Warn("планировщик остановился с ошибкой", zap.Error(err))
	}
	log.Info("бот остановлен")
}
