package handlers

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-crm-bot/internal/wizard"
)

func (h *Handler) HandleMessage(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	if !h.authorized(chatID) {
		h.verifyPassword(msg)
		return
	}

	switch text {
	case btnFindClient:
		h.startClientSearch(chatID, false)
	case btnQuickReg:
		if !h.isAdmin(chatID) {
			h.send(chatID, "⛔ Эта функция доступна только администратору.", h.menuFor(chatID))
			return
		}
		h.startClientSearch(chatID, true)
	case btnClientsList:
		if !h.isAdmin(chatID) {
			h.send(chatID, "⛔ Эта функция доступна только администратору.", h.menuFor(chatID))
			return
		}
		h.showClientsList(chatID, 1, "")
	case btnClientsSearch:
		if !h.isAdmin(chatID) {
			h.send(chatID, "⛔ Эта функция доступна только администратору.", h.menuFor(chatID))
			return
		}
		h.startAdminSearch(chatID)
	case btnMyStats:
		h.showStats(chatID)
	case btnHelp:
		h.sendHelp(chatID)
	case btnBackToMenu, btnCancelReg:
		h.cancelRegistration(chatID)
	default:
		h.handleStepInput(msg)
	}
}

// handleStepInput направляет свободный текст в текущий шаг мастера.
func (h *Handler) handleStepInput(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	s := h.Sessions.Get(chatID)
	if s == nil {
		h.send(chatID, "🤔 Не понимаю. Выберите действие из меню:", h.menuFor(chatID))
		return
	}

	switch s.Step {
	case wizard.StepQuery, wizard.StepSelection:
		h.handleClientQuery(msg, s)
	case wizard.StepPhone:
		h.handlePhoneInput(msg, s)
	case wizard.StepEmail:
		h.handleEmailInput(msg, s)
	case wizard.StepPriceList:
		h.sendPriceListButtons(chatID)
	case wizard.StepConfirmation:
		h.send(chatID, "☝️ Подтвердите или отмените регистрацию кнопками выше.", nil)
	case stepAdminSearch:
		h.handleAdminSearch(msg)
	default:
		h.send(chatID, "🤔 Не понимаю. Выберите действие из меню:", h.menuFor(chatID))
	}
}
