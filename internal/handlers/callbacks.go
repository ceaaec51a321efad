package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"telegram-crm-bot/internal/approval"
	"telegram-crm-bot/internal/gateway"
)

const pendingStatusLine = "✅ Статус: Ожидает подтверждения"

func (h *Handler) HandleCallback(cq *tgbotapi.CallbackQuery) {
	if cq.Message == nil {
		return
	}
	chatID := cq.Message.Chat.ID
	act := parseAction(cq.Data)

	// Кнопки модерации живут в группе, авторизация по паролю там не нужна.
	switch act.kind {
	case actionApprove:
		h.handleApprove(cq, act)
		return
	case actionReject:
		h.handleReject(cq, act)
		return
	}

	if !h.authorized(chatID) {
		h.answer(cq, "")
		h.requestPassword(chatID)
		return
	}

	switch act.kind {
	case actionSelectClient:
		s := h.Sessions.Get(chatID)
		if s == nil {
			h.answerAlert(cq, "❌ Сессия устарела. Начните поиск заново.")
			return
		}
		h.selectClient(cq, act.clientID, s)

	case actionNewSearch, actionNewRegistration:
		h.answer(cq, "")
		h.startClientSearch(chatID, false)

	case actionPriceList:
		s := h.Sessions.Get(chatID)
		if s == nil {
			h.answerAlert(cq, "❌ Сессия устарела. Начните регистрацию заново.")
			return
		}
		h.choosePriceList(cq, act.tier1, s)

	case actionConfirmRegistration:
		s := h.Sessions.Get(chatID)
		if s == nil {
			h.answerAlert(cq, "❌ Сессия устарела. Начните регистрацию заново.")
			return
		}
		h.confirmRegistration(cq, s)

	case actionCancelRegistration:
		h.answer(cq, "")
		h.cancelRegistration(chatID)

	case actionShowStats:
		h.answer(cq, "")
		h.showStats(chatID)

	case actionClientsPage:
		h.requireAdminCallback(cq, func() {
			h.updateClientsList(cq, act.page, act.search)
		})

	case actionClientsRefresh:
		h.requireAdminCallback(cq, func() {
			h.updateClientsList(cq, 1, act.search)
		})

	case actionClientsSearchStart:
		h.requireAdminCallback(cq, func() {
			h.answer(cq, "")
			h.startAdminSearch(chatID)
		})

	case actionClientsClearSearch:
		h.requireAdminCallback(cq, func() {
			h.updateClientsList(cq, 1, "")
		})

	case actionClientsBack:
		h.requireAdminCallback(cq, func() {
			h.answer(cq, "")
			h.send(chatID, "Выберите действие:", h.menuFor(chatID))
		})

	case actionClientInfo:
		h.requireAdminCallback(cq, func() {
			h.showClientInfo(cq, act.contactID)
		})

	case actionResetPassword:
		h.requireAdminCallback(cq, func() {
			h.resetClientPassword(cq, act.contactID)
		})

	default:
		h.Log.Warn("неизвестный callback",
			zap.Int64("chat_id", chatID), zap.String("data", cq.Data))
		h.answerAlert(cq, "❌ Неизвестная команда")
	}
}

func (h *Handler) requireAdminCallback(cq *tgbotapi.CallbackQuery, fn func()) {
	if !h.isAdmin(cq.Message.Chat.ID) {
		h.answerAlert(cq, "⛔ Доступно только администратору")
		return
	}
	fn()
}

func (h *Handler) handleApprove(cq *tgbotapi.CallbackQuery, act action) {
	req := approval.Request{
		MessageID:     cq.Message.MessageID,
		ContactID:     act.contactID,
		UserChatID:    act.userChatID,
		PriceCategory: act.priceCategory,
	}
	log := h.Log.With(zap.Int("message_id", req.MessageID),
		zap.String("contact_id", req.ContactID))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	out, err := h.Approvals.Approve(ctx, req)
	switch out {
	case approval.OutcomeCreated:
		h.answer(cq, "✅ ЛК создан")
		h.markModerated(cq, pendingStatusLine,
			"✅ Статус: ПОДТВЕРЖДЕНО\n🔑 ЛК создан успешно")
		h.send(req.UserChatID,
			"✅ Регистрация подтверждена!\n\nЛичный кабинет создан, данные для входа отправлены на email клиента.",
			nil)
		log.Info("регистрация подтверждена")

	case approval.OutcomeAlreadyDone:
		h.answerAlert(cq, "Запрос уже обработан")

	case approval.OutcomeFailed:
		log.Error("не удалось создать ЛК", zap.Error(err))
		text := "❌ Не удалось создать ЛК. Попробуйте ещё раз."
		var apiErr *gateway.Error
		if errors.As(err, &apiErr) {
			text = "❌ " + apiErr.Kind.UserMessage()
		}
		// кнопки остаются, модератор может повторить
		h.answerAlert(cq, text)
	}
}

func (h *Handler) handleReject(cq *tgbotapi.CallbackQuery, act action) {
	req := approval.Request{
		MessageID:  cq.Message.MessageID,
		ContactID:  act.contactID,
		UserChatID: act.userChatID,
	}

	out, err := h.Approvals.Reject(req)
	switch out {
	case approval.OutcomeRejected:
		h.answer(cq, "Регистрация отклонена")
		h.markModerated(cq, pendingStatusLine, "❌ Статус: ОТКЛОНЕНО")
		h.send(req.UserChatID,
			"❌ Регистрация отклонена менеджером.\n\nЛичный кабинет не создан. Уточните детали у руководителя.",
			nil)
		h.Log.Info("регистрация отклонена",
			zap.Int("message_id", req.MessageID), zap.String("contact_id", req.ContactID))

	case approval.OutcomeAlreadyDone:
		h.answerAlert(cq, "Запрос уже обработан")

	case approval.OutcomeFailed:
		h.Log.Error("не удалось отклонить регистрацию",
			zap.Int("message_id", req.MessageID), zap.Error(err))
		h.answerAlert(cq, "❌ Произошла ошибка. Попробуйте ещё раз.")
	}
}

// markModerated переписывает строку статуса в сообщении группы и
// убирает кнопки.
func (h *Handler) markModerated(cq *tgbotapi.CallbackQuery, from, to string) {
	chatID := cq.Message.Chat.ID
	text := strings.Replace(cq.Message.Text, from, to, 1)

	edit := tgbotapi.NewEditMessageText(chatID, cq.Message.MessageID, text)
	if _, err := h.Bot.Request(edit); err != nil {
		h.Log.Warn("не удалось обновить сообщение модерации",
			zap.Int("message_id", cq.Message.MessageID), zap.Error(err))
	}
}
