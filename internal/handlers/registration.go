package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"telegram-crm-bot/internal/approval"
	"telegram-crm-bot/internal/directory"
	"telegram-crm-bot/internal/gateway"
	"telegram-crm-bot/internal/models"
	"telegram-crm-bot/internal/wizard"
)

func (h *Handler) startClientSearch(chatID int64, withoutApproval bool) {
	h.Sessions.Put(&models.Session{
		ChatID:          chatID,
		Step:            wizard.StepQuery,
		WithoutApproval: withoutApproval,
	})

	text := "🔍 Поиск клиента\n\nВведите наименование клиента или его часть.\nОпечатки допустимы, я поищу похожие названия."
	if withoutApproval {
		text = "⚡ Регистрация без подтверждения\n\n" + text
	}
	h.send(chatID, text, cancelKB())
}

func (h *Handler) handleClientQuery(msg *tgbotapi.Message, s *models.Session) {
	chatID := msg.Chat.ID
	query := strings.TrimSpace(msg.Text)

	if utf8.RuneCountInString(query) < directory.MinQueryLen {
		h.send(chatID, "⚠️ Слишком короткий запрос. Введите минимум 2 символа:", cancelKB())
		return
	}

	clients := h.Dir.Search(query, h.Cfg.MaxSearchResults)
	h.Log.Info("поиск клиента",
		zap.Int64("chat_id", chatID), zap.String("query", query), zap.Int("found", len(clients)))

	if len(clients) == 0 {
		h.send(chatID,
			"😔 Клиенты не найдены.\n\nПопробуйте другое написание или часть названия:",
			cancelKB())
		return
	}

	step, err := wizard.Advance(s.Step, wizard.EventFound)
	if err != nil {
		h.stateLost(chatID)
		return
	}
	s.Step = step
	h.Sessions.Put(s)

	reply := tgbotapi.NewMessage(chatID,
		fmt.Sprintf("🔎 Найдено: %d\n\nВыберите клиента:", len(clients)))
	reply.ReplyMarkup = clientSelectionKB(clients)
	if _, err := h.Bot.Send(reply); err != nil {
		h.Log.Warn("не удалось отправить список клиентов", zap.Error(err))
	}
}

func (h *Handler) selectClient(cq *tgbotapi.CallbackQuery, clientID int, s *models.Session) {
	chatID := cq.Message.Chat.ID

	client, ok := h.Dir.ByID(clientID)
	if !ok {
		h.answerAlert(cq, "❌ Клиент не найден. Начните поиск заново.")
		return
	}

	step, err := wizard.Advance(s.Step, wizard.EventSelect)
	if err != nil {
		h.answer(cq, "")
		h.stateLost(chatID)
		return
	}
	s.Step = step
	s.ClientName = client.Name
	s.ClientCode = client.Code
	s.ClientManager = client.Manager
	h.Sessions.Put(s)

	h.answer(cq, "")

	var b strings.Builder
	b.WriteString("✅ Выбран клиент:\n\n")
	fmt.Fprintf(&b, "📋 Наименование: %s\n", client.Name)
	fmt.Fprintf(&b, "🔢 Код 1С: %s\n", client.Code)
	if client.Manager != "" {
		fmt.Fprintf(&b, "👤 Менеджер: %s\n", client.Manager)
	}
	b.WriteString("\n📱 Введите номер телефона клиента:\n\nФормат: +79787599070")
	h.send(chatID, b.String(), cancelKB())
}

func (h *Handler) handlePhoneInput(msg *tgbotapi.Message, s *models.Session) {
	chatID := msg.Chat.ID

	phone, err := wizard.NormalizePhone(msg.Text)
	if err != nil {
		h.send(chatID,
			"❌ Неверный формат телефона.\n\nПример: +79787599070\n\nПопробуйте ещё раз:",
			cancelKB())
		return
	}

	step, err := wizard.Advance(s.Step, wizard.EventPhone)
	if err != nil {
		h.stateLost(chatID)
		return
	}
	s.Step = step
	s.Phone = phone
	h.Sessions.Put(s)

	h.send(chatID, fmt.Sprintf(
		"✅ Телефон сохранён: %s\n\n📧 Введите email клиента:\n\nФормат: user@example.com", phone),
		cancelKB())
}

func (h *Handler) handleEmailInput(msg *tgbotapi.Message, s *models.Session) {
	chatID := msg.Chat.ID

	email, err := wizard.NormalizeEmail(msg.Text)
	if err != nil {
		h.send(chatID,
			"❌ Неверный формат email.\n\nПример: user@example.com\n\nПопробуйте ещё раз:",
			cancelKB())
		return
	}

	step, err := wizard.Advance(s.Step, wizard.EventEmail)
	if err != nil {
		h.stateLost(chatID)
		return
	}
	s.Step = step
	s.Email = email
	h.Sessions.Put(s)

	h.send(chatID, fmt.Sprintf("✅ Email сохранён: %s", email), nil)
	h.sendPriceListButtons(chatID)
}

func (h *Handler) sendPriceListButtons(chatID int64) {
	msg := tgbotapi.NewMessage(chatID, "📋 Выберите прайс-лист для клиента:")
	msg.ReplyMarkup = priceListKB()
	if _, err := h.Bot.Send(msg); err != nil {
		h.Log.Warn("не удалось отправить выбор прайса", zap.Error(err))
	}
}

func (h *Handler) choosePriceList(cq *tgbotapi.CallbackQuery, tier1 bool, s *models.Session) {
	chatID := cq.Message.Chat.ID

	if s.Step != wizard.StepPriceList {
		h.answerAlert(cq, "❌ Сессия устарела. Начните регистрацию заново.")
		return
	}

	s.PriceList = models.PriceListNone
	if tier1 {
		s.PriceList = models.PriceListTier1
	}
	h.answer(cq, "Выбран: "+models.PriceListLabel(s.PriceList))

	// Привилегированная регистрация идёт без шага подтверждения.
	if s.WithoutApproval {
		h.Sessions.Put(s)
		h.submit(chatID, s)
		return
	}

	step, err := wizard.Advance(s.Step, wizard.EventPrice)
	if err != nil {
		h.stateLost(chatID)
		return
	}
	s.Step = step
	h.Sessions.Put(s)

	msg := tgbotapi.NewMessage(chatID, registrationSummary(s))
	msg.ReplyMarkup = confirmationKB()
	if _, err := h.Bot.Send(msg); err != nil {
		h.Log.Warn("не удалось отправить подтверждение", zap.Error(err))
	}
}

func registrationSummary(s *models.Session) string {
	var b strings.Builder
	b.WriteString("📝 Проверьте данные регистрации:\n\n")
	fmt.Fprintf(&b, "📋 Клиент: %s\n", s.ClientName)
	fmt.Fprintf(&b, "🔢 Код 1С: %s\n", s.ClientCode)
	fmt.Fprintf(&b, "📱 Телефон: %s\n", s.Phone)
	fmt.Fprintf(&b, "📧 Email: %s\n", s.Email)
	fmt.Fprintf(&b, "💰 Прайс: %s\n", models.PriceListLabel(s.PriceList))
	b.WriteString("\nВсё верно?")
	return b.String()
}

func (h *Handler) confirmRegistration(cq *tgbotapi.CallbackQuery, s *models.Session) {
	if s.Step != wizard.StepConfirmation {
		h.answerAlert(cq, "❌ Сессия устарела. Начните регистрацию заново.")
		return
	}
	h.answer(cq, "⏳ Отправляю данные…")
	h.submit(cq.Message.Chat.ID, s)
}

// submit вызывает внешний API и показывает итог. Сессия завершается
// в любом случае: повторная отправка тех же данных запрещена.
func (h *Handler) submit(chatID int64, s *models.Session) {
	status := tgbotapi.NewMessage(chatID, "⏳ Регистрирую клиента на сайте…")
	status.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	statusMsg, _ := h.Bot.Send(status)

	res := h.Engine.Submit(context.Background(), s)

	if statusMsg.MessageID != 0 {
		_, _ = h.Bot.Request(tgbotapi.NewDeleteMessage(chatID, statusMsg.MessageID))
	}
	h.Sessions.Clear(chatID)

	if !res.Success {
		h.send(chatID, registrationFailedText(res), h.menuFor(chatID))
		return
	}

	if res.NeedsApproval {
		msg := tgbotapi.NewMessage(chatID, fmt.Sprintf(
			"✅ Заявка отправлена!\n\nКлиент «%s» зарегистрирован на сайте.\nПосле подтверждения менеджером клиенту придут данные для входа в личный кабинет.\n\nЧто делаем дальше?",
			s.ClientName))
		msg.ReplyMarkup = afterRegistrationKB()
		_, _ = h.Bot.Send(msg)
		h.notifyGroupPending(chatID, s, res.ContactID)
		return
	}

	// привилегированный путь: ЛК уже создан или создать не вышло
	var b strings.Builder
	fmt.Fprintf(&b, "✅ Клиент «%s» зарегистрирован на сайте.\n\n", s.ClientName)
	if res.LKCreated {
		b.WriteString("🔑 Личный кабинет создан, данные для входа отправлены на email клиента.")
	} else {
		fmt.Fprintf(&b, "⚠️ Личный кабинет создать не удалось: %s\nПопробуйте сбросить пароль клиенту из списка клиентов.", res.LKError)
	}
	msg := tgbotapi.NewMessage(chatID, b.String())
	msg.ReplyMarkup = afterRegistrationKB()
	_, _ = h.Bot.Send(msg)
	h.notifyGroupDone(chatID, s, res)
}

func registrationFailedText(res wizard.Result) string {
	var b strings.Builder
	b.WriteString("❌ Не удалось зарегистрировать клиента.\n\n")
	fmt.Fprintf(&b, "Причина: %s\n\n", res.ErrText)

	switch res.ErrKind {
	case gateway.KindTimeout, gateway.KindConnRefused, gateway.KindTLS, gateway.KindServer:
		b.WriteString("🔧 Рекомендации:\n")
		b.WriteString("• Проверьте интернет-соединение\n")
		b.WriteString("• Попробуйте через несколько минут\n")
		b.WriteString("• Возможны технические работы на сервере\n")
	case gateway.KindAuth:
		b.WriteString("🔑 Проблема с доступом к API. Сообщите администратору.\n")
	case gateway.KindRateLimited:
		b.WriteString("⏳ Слишком много запросов. Подождите минуту и повторите.\n")
	}

	b.WriteString("\nДанные не сохранены, попробуйте зарегистрировать клиента ещё раз.")
	return b.String()
}

// notifyGroupPending публикует заявку с кнопками модерации.
func (h *Handler) notifyGroupPending(chatID int64, s *models.Session, contactID string) {
	if h.Cfg.GroupID == 0 {
		h.Log.Warn("NOTIFICATION_GROUP_ID не задан, заявка останется без модерации")
		return
	}

	text := groupNotificationText(h.displayName(chatID), s, contactID) +
		"\n" + pendingStatusLine

	msg := tgbotapi.NewMessage(h.Cfg.GroupID, text)
	msg.ReplyMarkup = approvalKB(contactID, chatID, models.PriceCategoryID(s.PriceList))
	sent, err := h.Bot.Send(msg)
	if err != nil {
		h.Log.Error("не удалось отправить уведомление в группу",
			zap.Int64("group_id", h.Cfg.GroupID), zap.Error(err))
		return
	}

	h.Approvals.Track(approval.Request{
		MessageID:     sent.MessageID,
		ContactID:     contactID,
		UserChatID:    chatID,
		PriceCategory: models.PriceCategoryID(s.PriceList),
	})
}

// notifyGroupDone — уведомление о привилегированной регистрации,
// подтверждать нечего, кнопок нет.
func (h *Handler) notifyGroupDone(chatID int64, s *models.Session, res wizard.Result) {
	if h.Cfg.GroupID == 0 {
		return
	}

	text := groupNotificationText(h.displayName(chatID), s, res.ContactID)
	if res.LKCreated {
		text += "\n✅ Статус: ПОДТВЕРЖДЕНО\n🔑 ЛК создан успешно"
	} else {
		text += "\n⚠️ Статус: зарегистрирован, ЛК не создан"
	}
	h.send(h.Cfg.GroupID, text, nil)
}

func groupNotificationText(userName string, s *models.Session, contactID string) string {
	var b strings.Builder
	b.WriteString("🎉 НОВАЯ РЕГИСТРАЦИЯ НА САЙТЕ\n\n")
	fmt.Fprintf(&b, "👨‍💼 Зарегистрировал: %s\n", userName)
	fmt.Fprintf(&b, "📋 Клиент: %s\n", s.ClientName)
	fmt.Fprintf(&b, "🔢 Код 1С: %s\n", s.ClientCode)
	if s.ClientManager != "" {
		fmt.Fprintf(&b, "👤 Менеджер 1С: %s\n", s.ClientManager)
	}
	fmt.Fprintf(&b, "📱 Телефон: %s\n", s.Phone)
	fmt.Fprintf(&b, "📧 Email: %s\n", s.Email)
	fmt.Fprintf(&b, "💰 Прайс: %s\n", models.PriceListLabel(s.PriceList))
	if contactID != "" {
		fmt.Fprintf(&b, "🆔 ID контакта: %s\n", contactID)
	}
	fmt.Fprintf(&b, "🕒 %s\n", time.Now().Format("02.01.2006 15:04"))
	return b.String()
}

func (h *Handler) stateLost(chatID int64) {
	h.Sessions.Clear(chatID)
	h.send(chatID, "❌ Сессия устарела. Начните регистрацию заново.", h.menuFor(chatID))
}
