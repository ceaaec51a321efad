package handlers

import (
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"telegram-crm-bot/internal/models"
)

func (h *Handler) HandleCommand(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	if !h.authorized(chatID) {
		h.requestPassword(chatID)
		return
	}

	switch msg.Command() {
	case "start":
		h.Sessions.Clear(chatID)
		name := "коллега"
		if msg.From != nil && msg.From.FirstName != "" {
			name = msg.From.FirstName
		}
		h.send(chatID, fmt.Sprintf(
			"👋 Здравствуйте, %s!\n\nЯ помогу зарегистрировать клиента на сайте.\n\nВыберите действие:",
			name), h.menuFor(chatID))
	case "help":
		h.sendHelp(chatID)
	case "stats":
		h.showStats(chatID)
	case "cancel":
		h.cancelRegistration(chatID)
	default:
		h.send(chatID, "🤷 Неизвестная команда. Нажмите /help для справки.", h.menuFor(chatID))
	}
}

func (h *Handler) sendHelp(chatID int64) {
	var b strings.Builder
	b.WriteString("ℹ️ Как зарегистрировать клиента\n\n")
	b.WriteString("1️⃣ Нажмите «" + btnFindClient + "» и введите название (можно с опечатками).\n")
	b.WriteString("2️⃣ Выберите клиента из списка.\n")
	b.WriteString("3️⃣ Введите телефон и email клиента.\n")
	b.WriteString("4️⃣ Выберите прайс-лист и подтвердите данные.\n\n")
	b.WriteString("После отправки регистрацию подтверждает менеджер в группе, ")
	b.WriteString("затем клиенту на почту приходят данные для входа в личный кабинет.\n\n")
	b.WriteString("Команды:\n")
	b.WriteString("/start — главное меню\n")
	b.WriteString("/stats — моя статистика\n")
	b.WriteString("/cancel — отменить текущую регистрацию\n")
	h.send(chatID, b.String(), h.menuFor(chatID))
}

func (h *Handler) showStats(chatID int64) {
	ok, fail, err := h.DB.UserStats(chatID)
	if err != nil {
		h.Log.Error("не удалось посчитать статистику",
			zap.Int64("chat_id", chatID), zap.Error(err))
		h.send(chatID, "❌ Не удалось получить статистику. Попробуйте позже.", h.menuFor(chatID))
		return
	}

	var b strings.Builder
	b.WriteString("📊 Моя статистика\n\n")
	fmt.Fprintf(&b, "✅ Успешных регистраций: %d\n", ok)
	fmt.Fprintf(&b, "❌ Неудачных попыток: %d\n", fail)
	if total, err := h.DB.Stats(); err == nil {
		fmt.Fprintf(&b, "👥 Пользователей бота: %d\n", total.TotalUsers)
	}

	recent, err := h.DB.RecentHistory(chatID, 5)
	if err == nil && len(recent) > 0 {
		b.WriteString("\n🕒 Последние регистрации:\n")
		for _, r := range recent {
			mark := "✅"
			if r.Status == models.StatusError {
				mark = "❌"
			}
			when := time.Unix(r.CreatedAt, 0).Format("02.01.2006 15:04")
			fmt.Fprintf(&b, "%s %s — %s\n", mark, r.ClientName, when)
		}
	}

	h.send(chatID, b.String(), h.menuFor(chatID))
}

func (h *Handler) cancelRegistration(chatID int64) {
	h.Sessions.Clear(chatID)
	h.send(chatID, "↩️ Регистрация отменена.\n\nВыберите действие:", h.menuFor(chatID))
}
