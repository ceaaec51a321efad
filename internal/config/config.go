package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	TelegramToken string
	BotPassword   string
	AdminID       int64
	GroupID       int64 // группа модерации, 0 — уведомления отключены

	APIURL             string
	APIAccessToken     string
	CreateLKURL        string
	CreateLKToken      string
	ResetPasswordURL   string
	ResetPasswordToken string
	CustomersURL       string
	CustomersToken     string

	DBPath           string
	ClientsPath      string
	MaxSearchResults int
	SessionTimeout   time.Duration
}

// Load читает конфигурацию из переменных окружения.
// Токен бота дополнительно ищется в Docker Secret.
func Load() (Config, error) {
	cfg := Config{
		TelegramToken: botToken(),
		BotPassword:   os.Getenv("BOT_PASSWORD"),
		AdminID:       envInt64("ADMIN_ID", 0),
		GroupID:       envInt64("NOTIFICATION_GROUP_ID", 0),

		APIURL:             envStr("API_URL", "https://specialist82.pro/api.php/shop.customer.add"),
		APIAccessToken:     os.Getenv("API_ACCESS_TOKEN"),
		CreateLKURL:        envStr("CREATE_LK_API_URL", "https://specialist82.pro/create_lk_api.php"),
		CreateLKToken:      os.Getenv("CREATE_LK_API_TOKEN"),
		ResetPasswordURL:   envStr("RESET_PASSWORD_API_URL", "https://specialist82.pro/reset_password_api.php"),
		ResetPasswordToken: os.Getenv("RESET_PASSWORD_API_TOKEN"),
		CustomersURL:       envStr("CUSTOMERS_API_URL", "https://specialist82.pro/getAllCustomersApi.php"),
		CustomersToken:     os.Getenv("CUSTOMERS_API_TOKEN"),

		DBPath:           envStr("DATABASE_PATH", "./data/users.db"),
		ClientsPath:      envStr("CLIENTS_JSON_PATH", "./data/clients.json"),
		MaxSearchResults: envInt("MAX_SEARCH_RESULTS", 5),
		SessionTimeout:   time.Duration(envInt("SESSION_TIMEOUT", 1800)) * time.Second,
	}

	if cfg.TelegramToken == "" {
		return cfg, errors.New("токен не найден: отсутствует и Docker Secret, и переменная окружения TELEGRAM_BOT_TOKEN")
	}
	return cfg, nil
}

func botToken() string {
	if data, err := os.ReadFile("/run/secrets/telegram_bot_token"); err == nil {
		if token := strings.TrimSpace(string(data)); token != "" {
			return token
		}
	}
	return strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))
}

func envStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func envInt64(key string, def int64) int64 {
	if v, err := strconv.ParseInt(os.Getenv(key), 10, 64); err == nil {
		return v
	}
	return def
}
