package wizard

import (
	"context"

	"github.com/looplab/fsm"
)

// Шаги мастера регистрации. Хранятся строками в sessions.step.
const (
	StepIdle         = "idle"
	StepQuery        = "awaiting_client_query"
	StepSelection    = "awaiting_client_selection"
	StepPhone        = "awaiting_phone"
	StepEmail        = "awaiting_email"
	StepPriceList    = "awaiting_price_list"
	StepConfirmation = "awaiting_confirmation"
)

// События мастера.
const (
	EventSearch  = "search"
	EventFound   = "found"
	EventSelect  = "select"
	EventPhone   = "phone"
	EventEmail   = "email"
	EventPrice   = "price"
	EventConfirm = "confirm"
	EventCancel  = "cancel"
)

var allSteps = []string{
	StepIdle, StepQuery, StepSelection, StepPhone,
	StepEmail, StepPriceList, StepConfirmation,
}

// Новый поиск и отмена разрешены из любого шага: новый поиск
// перечёркивает предыдущую сессию.
var transitions = fsm.Events{
	{Name: EventSearch, Src: allSteps, Dst: StepQuery},
	{Name: EventFound, Src: []string{StepQuery, StepSelection}, Dst: StepSelection},
	{Name: EventSelect, Src: []string{StepSelection}, Dst: StepPhone},
	{Name: EventPhone, Src: []string{StepPhone}, Dst: StepEmail},
	{Name: EventEmail, Src: []string{StepEmail}, Dst: StepPriceList},
	{Name: EventPrice, Src: []string{StepPriceList}, Dst: StepConfirmation},
	{Name: EventConfirm, Src: []string{StepConfirmation}, Dst: StepIdle},
	{Name: EventCancel, Src: allSteps, Dst: StepIdle},
}

// Advance применяет событие к шагу и возвращает следующий шаг.
// Недопустимое событие оставляет шаг как есть и возвращает ошибку.
func Advance(step, event string) (string, error) {
	if step == "" {
		step = StepIdle
	}
	m := fsm.NewFSM(step, transitions, nil)
	if err := m.Event(context.Background(), event); err != nil {
		return step, err
	}
	return m.Current(), nil
}
