package handlers

import (
	"crypto/subtle"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"telegram-crm-bot/internal/models"
)

func (h *Handler) authorized(chatID int64) bool {
	ok, err := h.DB.IsAuthorized(chatID)
	if err != nil {
		h.Log.Error("проверка авторизации не удалась",
			zap.Int64("chat_id", chatID), zap.Error(err))
		return false
	}
	if ok {
		_ = h.DB.TouchActivity(chatID)
	}
	return ok
}

func (h *Handler) requestPassword(chatID int64) {
	msg := tgbotapi.NewMessage(chatID,
		"🔐 Доступ к боту ограничен.\n\nВведите пароль:")
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	if _, err := h.Bot.Send(msg); err != nil {
		h.Log.Warn("не удалось запросить пароль", zap.Error(err))
	}
}

// verifyPassword сравнивает введённый текст с паролем бота. Сам текст
// в журнал не попадает.
func (h *Handler) verifyPassword(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	got := strings.TrimSpace(msg.Text)

	if h.Cfg.BotPassword == "" ||
		subtle.ConstantTimeCompare([]byte(got), []byte(h.Cfg.BotPassword)) != 1 {
		h.Log.Info("неверный пароль", zap.Int64("chat_id", chatID))
		h.send(chatID, "❌ Неверный пароль. Попробуйте ещё раз:", nil)
		return
	}

	u := &models.User{ChatID: chatID}
	if msg.From != nil {
		u.Username = msg.From.UserName
		u.FirstName = msg.From.FirstName
		u.LastName = msg.From.LastName
	}
	if err := h.DB.AuthorizeUser(u); err != nil {
		h.Log.Error("не удалось сохранить пользователя",
			zap.Int64("chat_id", chatID), zap.Error(err))
		h.send(chatID, "❌ Произошла ошибка. Попробуйте ещё раз.", nil)
		return
	}

	h.Log.Info("пользователь авторизован",
		zap.Int64("chat_id", chatID), zap.String("username", u.Username))
	h.send(chatID, "✅ Пароль принят! Добро пожаловать.\n\nВыберите действие:",
		h.menuFor(chatID))
}
