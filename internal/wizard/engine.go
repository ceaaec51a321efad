package wizard

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"telegram-crm-bot/internal/gateway"
	"telegram-crm-bot/internal/models"
)

// Gateway — нужная мастеру часть API сайта.
type Gateway interface {
	RegisterCustomer(ctx context.Context, r gateway.Registration) (*gateway.RegisterResult, error)
	CreateLK(ctx context.Context, contactID, categoryID string) (json.RawMessage, error)
}

// History — журнал попыток регистрации.
type History interface {
	InsertHistory(rec *models.HistoryRecord) error
}

// Engine выполняет отправку собранной регистрации: вызов API, запись
// истории, для привилегированного пути — сразу создание ЛК.
type Engine struct {
	gw   Gateway
	hist History
	log  *zap.Logger
}

func NewEngine(gw Gateway, hist History, log *zap.Logger) *Engine {
	return &Engine{gw: gw, hist: hist, log: log}
}

// Result — итог отправки для слоя представления.
type Result struct {
	Success   bool
	ContactID string
	ErrKind   gateway.ErrorKind
	ErrText   string // текст для пользователя

	// обычный путь: регистрацию ещё должен подтвердить модератор
	NeedsApproval bool

	// привилегированный путь: ЛК создаётся сразу
	LKCreated bool
	LKError   string
}

// Submit отправляет регистрацию. История пишется ровно один раз,
// независимо от исхода.
func (e *Engine) Submit(ctx context.Context, s *models.Session) Result {
	requestID := uuid.NewString()
	log := e.log.With(zap.String("request_id", requestID),
		zap.Int64("chat_id", s.ChatID), zap.String("client", s.ClientName))

	res, err := e.gw.RegisterCustomer(ctx, gateway.Registration{
		Name:  s.ClientName,
		Code:  s.ClientCode,
		Phone: s.Phone,
		Email: s.Email,
	})

	rec := &models.HistoryRecord{
		ChatID:     s.ChatID,
		RequestID:  requestID,
		ClientName: s.ClientName,
		ClientCode: s.ClientCode,
		Phone:      s.Phone,
		Email:      s.Email,
		PriceList:  models.PriceListLabel(s.PriceList),
	}

	if err != nil {
		var apiErr *gateway.Error
		if !errors.As(err, &apiErr) {
			apiErr = &gateway.Error{Err: err}
		}

		rec.Status = models.StatusError
		rec.APIResponse = err.Error()
		if insErr := e.hist.InsertHistory(rec); insErr != nil {
			log.Error("не удалось записать историю", zap.Error(insErr))
		}

		log.Error("регистрация не выполнена", zap.Error(err))
		return Result{ErrKind: apiErr.Kind, ErrText: apiErr.Kind.UserMessage()}
	}

	rec.Status = models.StatusSuccess
	rec.APIResponse = string(res.Raw)
	if insErr := e.hist.InsertHistory(rec); insErr != nil {
		log.Error("не удалось записать историю", zap.Error(insErr))
	}

	out := Result{Success: true, ContactID: res.ContactID}

	if !s.WithoutApproval {
		out.NeedsApproval = true
		return out
	}

	// привилегированный путь: без модерации, ЛК сразу
	if res.ContactID == "" {
		out.LKError = "не удалось получить contact_id из ответа API"
		log.Error("в ответе регистрации нет contact_id")
		return out
	}
	if _, lkErr := e.gw.CreateLK(ctx, res.ContactID, models.PriceCategoryID(s.PriceList)); lkErr != nil {
		var apiErr *gateway.Error
		if !errors.As(lkErr, &apiErr) {
			apiErr = &gateway.Error{Err: lkErr}
		}
		out.LKError = apiErr.Kind.UserMessage()
		return out
	}
	out.LKCreated = true
	log.Info("регистрация и ЛК выполнены без подтверждения")
	return out
}
