package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"telegram-crm-bot/internal/gateway"
	"telegram-crm-bot/internal/models"
)

const clientsPerPage = 10

func (h *Handler) startAdminSearch(chatID int64) {
	h.Sessions.Put(&models.Session{ChatID: chatID, Step: stepAdminSearch})
	h.send(chatID, "🔎 Поиск по базе сайта\n\nВведите имя, email или телефон клиента:", backKB())
}

func (h *Handler) handleAdminSearch(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	query := strings.TrimSpace(msg.Text)
	if len([]rune(query)) < 2 {
		h.send(chatID, "⚠️ Слишком короткий запрос. Введите минимум 2 символа:", backKB())
		return
	}

	h.Sessions.Clear(chatID)
	h.send(chatID, "⏳ Ищу клиентов в базе сайта…", tgbotapi.NewRemoveKeyboard(true))
	h.showClientsList(chatID, 1, query)
}

// showClientsList отправляет страницу списка клиентов сайта.
func (h *Handler) showClientsList(chatID int64, page int, search string) {
	text, kb, err := h.buildClientsPage(page, search)
	if err != nil {
		h.send(chatID, clientsError(err), h.menuFor(chatID))
		return
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = kb
	if _, err := h.Bot.Send(msg); err != nil {
		h.Log.Warn("не удалось отправить список клиентов сайта", zap.Error(err))
	}
}

// updateClientsList перерисовывает уже отправленную страницу.
func (h *Handler) updateClientsList(cq *tgbotapi.CallbackQuery, page int, search string) {
	chatID := cq.Message.Chat.ID
	text, kb, err := h.buildClientsPage(page, search)
	if err != nil {
		h.answerAlert(cq, clientsError(err))
		return
	}
	h.answer(cq, "")
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, cq.Message.MessageID, text, kb)
	if _, err := h.Bot.Request(edit); err != nil {
		h.Log.Warn("не удалось обновить список клиентов", zap.Error(err))
	}
}

func (h *Handler) buildClientsPage(page int, search string) (string, tgbotapi.InlineKeyboardMarkup, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	customers, p, err := h.GW.Customers(ctx, page, clientsPerPage, search)
	if err != nil {
		return "", tgbotapi.InlineKeyboardMarkup{}, err
	}

	var b strings.Builder
	if search != "" {
		fmt.Fprintf(&b, "👥 Клиенты сайта по запросу «%s»\n", search)
	} else {
		b.WriteString("👥 Клиенты сайта\n")
	}
	fmt.Fprintf(&b, "Всего: %d, страница %d из %d\n\n", p.Total, p.Page, p.TotalPages)

	if len(customers) == 0 {
		b.WriteString("Ничего не найдено.")
	} else {
		start := (p.Page - 1) * p.Limit
		for i, c := range customers {
			fmt.Fprintf(&b, "%d. %s\n", start+i+1, c.Name)
			if c.Email != "" {
				fmt.Fprintf(&b, "   📧 %s\n", c.Email)
			}
			if c.Code != "" {
				fmt.Fprintf(&b, "   🔢 %s\n", c.Code)
			}
		}
		b.WriteString("\nℹ️ — карточка клиента")
	}

	return b.String(), clientsListKB(customers, p, search), nil
}

func (h *Handler) showClientInfo(cq *tgbotapi.CallbackQuery, contactID string) {
	chatID := cq.Message.Chat.ID

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	c, err := h.GW.CustomerByID(ctx, contactID)
	if err != nil {
		h.answerAlert(cq, clientsError(err))
		return
	}
	h.answer(cq, "")

	var b strings.Builder
	b.WriteString("👤 Карточка клиента\n\n")
	fmt.Fprintf(&b, "📋 Наименование: %s\n", c.Name)
	fmt.Fprintf(&b, "🆔 ID контакта: %s\n", c.ContactID.String())
	if c.Code != "" {
		fmt.Fprintf(&b, "🔢 Код 1С: %s\n", c.Code)
	}
	if c.Phone != "" {
		fmt.Fprintf(&b, "📱 Телефон: %s\n", c.Phone)
	}
	if c.Email != "" {
		fmt.Fprintf(&b, "📧 Email: %s\n", c.Email)
	}
	if c.PriceList != "" {
		fmt.Fprintf(&b, "💰 Прайс: %s\n", c.PriceList)
	}
	if c.CreatedAt != "" {
		fmt.Fprintf(&b, "📅 Зарегистрирован: %s\n", c.CreatedAt)
	}

	msg := tgbotapi.NewMessage(chatID, b.String())
	msg.ReplyMarkup = clientCardKB(c.ContactID.String(), "")
	if _, err := h.Bot.Send(msg); err != nil {
		h.Log.Warn("не удалось отправить карточку клиента", zap.Error(err))
	}
}

// resetClientPassword генерирует клиенту новый пароль. Письмо уходит
// один раз, поэтому без повторов.
func (h *Handler) resetClientPassword(cq *tgbotapi.CallbackQuery, contactID string) {
	chatID := cq.Message.Chat.ID

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	c, err := h.GW.CustomerByID(ctx, contactID)
	if err != nil {
		h.answerAlert(cq, clientsError(err))
		return
	}
	if c.Email == "" {
		h.answerAlert(cq, "❌ У клиента не указан email, пароль отправить некуда.")
		return
	}

	if _, err := h.GW.ResetPassword(ctx, contactID, c.Email); err != nil {
		h.Log.Error("сброс пароля не удался",
			zap.String("contact_id", contactID), zap.Error(err))
		h.answerAlert(cq, clientsError(err))
		return
	}

	h.answer(cq, "✅ Пароль сброшен")
	h.send(chatID, fmt.Sprintf(
		"🔑 Пароль клиента «%s» сброшен.\nНовые данные для входа отправлены на %s.",
		c.Name, c.Email), nil)
	h.Log.Info("пароль клиента сброшен",
		zap.Int64("chat_id", chatID), zap.String("contact_id", contactID))
}

func clientsError(err error) string {
	var apiErr *gateway.Error
	if errors.As(err, &apiErr) {
		return "❌ " + apiErr.Kind.UserMessage()
	}
	return "❌ Не удалось получить данные с сайта. Попробуйте позже."
}
