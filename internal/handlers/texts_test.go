package handlers

import (
	"strings"
	"testing"

	"telegram-crm-bot/internal/gateway"
	"telegram-crm-bot/internal/models"
	"telegram-crm-bot/internal/wizard"
)

func testSession() *models.Session {
	return &models.Session{
		ChatID:     7,
		ClientName: "ООО Рога и Копыта",
		ClientCode: "00-123",
		Phone:      "+79787599070",
		Email:      "client@example.com",
		PriceList:  models.PriceListTier1,
	}
}

func TestRegistrationSummary(t *testing.T) {
	got := registrationSummary(testSession())
	for _, want := range []string{
		"ООО Рога и Копыта", "00-123", "+79787599070",
		"client@example.com", "Прайс 1 (+1.5%)",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("в сводке нет %q:\n%s", want, got)
		}
	}
}

func TestGroupNotificationText(t *testing.T) {
	got := groupNotificationText("Иван Петров (@ivan)", testSession(), "1577")
	for _, want := range []string{
		"НОВАЯ РЕГИСТРАЦИЯ", "Иван Петров (@ivan)", "ООО Рога и Копыта",
		"ID контакта: 1577",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("в уведомлении нет %q:\n%s", want, got)
		}
	}

	// без contact_id строка идентификатора не печатается
	got = groupNotificationText("x", testSession(), "")
	if strings.Contains(got, "ID контакта") {
		t.Errorf("пустой contact_id не должен попадать в уведомление:\n%s", got)
	}
}

func TestRegistrationFailedText(t *testing.T) {
	res := wizard.Result{ErrKind: gateway.KindTimeout, ErrText: "сервер не ответил"}
	got := registrationFailedText(res)
	if !strings.Contains(got, "сервер не ответил") {
		t.Errorf("нет причины ошибки:\n%s", got)
	}
	if !strings.Contains(got, "Рекомендации") {
		t.Errorf("для временной ошибки ожидались рекомендации:\n%s", got)
	}

	res = wizard.Result{ErrKind: gateway.KindBadRequest, ErrText: "неверные данные"}
	if got := registrationFailedText(res); strings.Contains(got, "Рекомендации") {
		t.Errorf("для 4xx рекомендации про соединение неуместны:\n%s", got)
	}
}

func TestClientSelectionKeyboard(t *testing.T) {
	kb := clientSelectionKB([]models.Client{
		{ID: 1, Name: "ООО Рога и Копыта", Manager: "Иванов", Code: "1"},
		{ID: 2, Name: "ИП Сидоров", Code: "2"},
	})
	// две кнопки клиентов, новый поиск и отмена
	if len(kb.InlineKeyboard) != 4 {
		t.Fatalf("рядов %d, ожидалось 4", len(kb.InlineKeyboard))
	}
	first := kb.InlineKeyboard[0][0]
	if first.Text != "ООО Рога и Копыта (Иванов)" {
		t.Errorf("подпись кнопки: %q", first.Text)
	}
	if first.CallbackData == nil || *first.CallbackData != "select_client_1" {
		t.Errorf("callback кнопки: %v", first.CallbackData)
	}
}

func TestMainMenuKeyboard(t *testing.T) {
	plain := mainMenuKB(false)
	admin := mainMenuKB(true)
	if len(admin.Keyboard) <= len(plain.Keyboard) {
		t.Errorf("у администратора должно быть больше кнопок: %d против %d",
			len(admin.Keyboard), len(plain.Keyboard))
	}
	for _, row := range plain.Keyboard {
		for _, b := range row {
			if b.Text == btnQuickReg || b.Text == btnClientsList {
				t.Errorf("админская кнопка %q в обычном меню", b.Text)
			}
		}
	}
}
