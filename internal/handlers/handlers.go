package handlers

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"telegram-crm-bot/internal/approval"
	"telegram-crm-bot/internal/config"
	"telegram-crm-bot/internal/directory"
	"telegram-crm-bot/internal/gateway"
	"telegram-crm-bot/internal/session"
	"telegram-crm-bot/internal/storage"
	"telegram-crm-bot/internal/wizard"
)

// Шаг поиска по базе сайта живёт вне мастера регистрации.
const stepAdminSearch = "admin_client_search"

type Handler struct {
	Bot       *tgbotapi.BotAPI
	Cfg       config.Config
	Log       *zap.Logger
	DB        *storage.DB
	Dir       *directory.Directory
	GW        *gateway.Gateway
	Engine    *wizard.Engine
	Sessions  *session.Manager
	Approvals *approval.Manager
}

func New(bot *tgbotapi.BotAPI, cfg config.Config, log *zap.Logger, db *storage.DB,
	dir *directory.Directory, gw *gateway.Gateway, sessions *session.Manager,
	approvals *approval.Manager) *Handler {
	return &Handler{
		Bot:       bot,
		Cfg:       cfg,
		Log:       log,
		DB:        db,
		Dir:       dir,
		GW:        gw,
		Engine:    wizard.NewEngine(gw, db, log),
		Sessions:  sessions,
		Approvals: approvals,
	}
}

// HandleUpdate разбирает апдейт и выполняет его в отдельной горутине.
// Обновления одного чата сериализуются менеджером сессий.
func (h *Handler) HandleUpdate(upd tgbotapi.Update) {
	var chatID int64
	switch {
	case upd.Message != nil:
		chatID = upd.Message.Chat.ID
	case upd.CallbackQuery != nil && upd.CallbackQuery.Message != nil:
		chatID = upd.CallbackQuery.Message.Chat.ID
	default:
		return
	}

	go h.Sessions.Do(chatID, func() {
		defer h.recoverPanic(chatID)
		switch {
		case upd.Message != nil:
			if upd.Message.IsCommand() {
				h.HandleCommand(upd.Message)
				return
			}
			h.HandleMessage(upd.Message)
		case upd.CallbackQuery != nil:
			h.HandleCallback(upd.CallbackQuery)
		}
	})
}

// Паника одного апдейта не должна ронять бота целиком.
func (h *Handler) recoverPanic(chatID int64) {
	r := recover()
	if r == nil {
		return
	}
	h.Log.Error("паника при обработке обновления",
		zap.Int64("chat_id", chatID), zap.Any("panic", r), zap.Stack("stack"))
	h.Sessions.Clear(chatID)
	h.send(chatID, "❌ Произошла внутренняя ошибка. Попробуйте ещё раз.", h.menuFor(chatID))
}

func (h *Handler) isAdmin(chatID int64) bool {
	return h.Cfg.AdminID != 0 && chatID == h.Cfg.AdminID
}

func (h *Handler) menuFor(chatID int64) tgbotapi.ReplyKeyboardMarkup {
	return mainMenuKB(h.isAdmin(chatID))
}

func (h *Handler) send(chatID int64, text string, kb interface{}) {
	msg := tgbotapi.NewMessage(chatID, text)
	if kb != nil {
		msg.ReplyMarkup = kb
	}
	if _, err := h.Bot.Send(msg); err != nil {
		h.Log.Warn("не удалось отправить сообщение",
			zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (h *Handler) answer(cq *tgbotapi.CallbackQuery, text string) {
	_, _ = h.Bot.Request(tgbotapi.NewCallback(cq.ID, text))
}

func (h *Handler) answerAlert(cq *tgbotapi.CallbackQuery, text string) {
	_, _ = h.Bot.Request(tgbotapi.NewCallbackWithAlert(cq.ID, text))
}

// displayName возвращает имя менеджера для уведомлений в группу.
func (h *Handler) displayName(chatID int64) string {
	chat, err := h.Bot.GetChat(tgbotapi.ChatInfoConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: chatID},
	})
	if err != nil {
		h.Log.Warn("не удалось получить профиль пользователя",
			zap.Int64("chat_id", chatID), zap.Error(err))
		return "неизвестный пользователь"
	}
	name := chat.FirstName
	if chat.LastName != "" {
		name += " " + chat.LastName
	}
	if chat.UserName != "" {
		name += " (@" + chat.UserName + ")"
	}
	if name == "" {
		name = "неизвестный пользователь"
	}
	return name
}
