package handlers

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-crm-bot/internal/gateway"
	"telegram-crm-bot/internal/models"
)

const (
	btnFindClient    = "🔍 Найти клиента"
	btnQuickReg      = "⚡ Рег. без подтверждения"
	btnClientsList   = "👥 Список клиентов"
	btnClientsSearch = "🔎 Поиск клиентов"
	btnMyStats       = "📊 Моя статистика"
	btnHelp          = "❓ Помощь"
	btnBackToMenu    = "⬅️ Назад в меню"
	btnCancelReg     = "❌ Отменить регистрацию"
)

func mainMenuKB(isAdmin bool) tgbotapi.ReplyKeyboardMarkup {
	rows := [][]tgbotapi.KeyboardButton{
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnFindClient)),
	}
	if isAdmin {
		rows = append(rows,
			tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnQuickReg)),
			tgbotapi.NewKeyboardButtonRow(
				tgbotapi.NewKeyboardButton(btnClientsList),
				tgbotapi.NewKeyboardButton(btnClientsSearch),
			),
		)
	}
	rows = append(rows, tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(btnMyStats),
		tgbotapi.NewKeyboardButton(btnHelp),
	))
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	return kb
}

func cancelKB() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnCancelReg)),
	)
	kb.ResizeKeyboard = true
	return kb
}

func backKB() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnBackToMenu)),
	)
	kb.ResizeKeyboard = true
	return kb
}

// clientSelectionKB — по кнопке на каждого найденного клиента плюс новый поиск.
func clientSelectionKB(clients []models.Client) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(clients)+2)
	for _, c := range clients {
		label := c.Name
		if c.Manager != "" {
			label = fmt.Sprintf("%s (%s)", c.Name, c.Manager)
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, selectClientData(c.ID)),
		))
	}
	rows = append(rows,
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔄 Новый поиск", "new_search"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ Отменить", "cancel_registration"),
		),
	)
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func priceListKB() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📋 "+models.PriceListLabel(models.PriceListNone), priceListData(false)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📋 "+models.PriceListLabel(models.PriceListTier1), priceListData(true)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ Отменить", "cancel_registration"),
		),
	)
}

func confirmationKB() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Да, всё верно", "confirm_registration"),
			tgbotapi.NewInlineKeyboardButtonData("❌ Отменить", "cancel_registration"),
		),
	)
}

func afterRegistrationKB() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("➕ Новая регистрация", "new_registration"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📊 Моя статистика", "show_stats"),
		),
	)
}

// approvalKB — кнопки модерации под сообщением в группе.
func approvalKB(contactID string, userChatID int64, priceCategory string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Подтвердить", approveData(contactID, userChatID, priceCategory)),
			tgbotapi.NewInlineKeyboardButtonData("❌ Отклонить", rejectData(contactID, userChatID)),
		),
	)
}

func clientsListKB(customers []gateway.Customer, p gateway.Pagination, search string) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(customers)+3)
	for _, c := range customers {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("ℹ️ "+c.Name, clientInfoData(c.ContactID.String())),
		))
	}

	var nav []tgbotapi.InlineKeyboardButton
	if p.Page > 1 {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("⬅️", clientsPageData(p.Page-1, search)))
	}
	if p.TotalPages > 1 {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData(
			fmt.Sprintf("%d/%d", p.Page, p.TotalPages), clientsRefreshData(search)))
	}
	if p.Page < p.TotalPages {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("➡️", clientsPageData(p.Page+1, search)))
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}

	if search != "" {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔄 Сбросить поиск", "clients_clear_search"),
		))
	} else {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔎 Поиск", "clients_search_start"),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⬅️ В меню", "clients_back"),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func clientCardKB(contactID string, search string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔑 Сбросить пароль", resetPasswordData(contactID)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅️ К списку", clientsPageData(1, search)),
		),
	)
}
