package approval

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"

	"telegram-crm-bot/internal/gateway"
	"telegram-crm-bot/internal/models"
)

// Gateway — часть API сайта, нужная модерации.
type Gateway interface {
	CreateLK(ctx context.Context, contactID, categoryID string) (json.RawMessage, error)
}

// Store — персистентный статус запросов на подтверждение.
type Store interface {
	InsertApproval(a *models.Approval) error
	GetApproval(messageID int) (*models.Approval, error)
	TransitionApproval(messageID int, from, to string) (bool, error)
}

// Request — данные запроса на подтверждение, закодированные в кнопках
// сообщения модерации. Подтверждение работает даже после истечения
// сессии пользователя: всё необходимое есть в самом запросе.
type Request struct {
	MessageID     int
	ContactID     string
	UserChatID    int64
	PriceCategory string
}

// Outcome — исход действия модератора.
type Outcome int

const (
	OutcomeCreated     Outcome = iota // ЛК создан
	OutcomeRejected                   // отклонено
	OutcomeAlreadyDone                // запрос уже в терминальном статусе
	OutcomeFailed                     // ошибка API, можно повторить
)

// Manager гарантирует, что по одному запросу ЛК создаётся не более
// одного раза, сколько бы раз модератор ни нажал кнопку.
type Manager struct {
	store Store
	gw    Gateway
	log   *zap.Logger

	mu    sync.Mutex
	locks map[int]*sync.Mutex
}

func NewManager(store Store, gw Gateway, log *zap.Logger) *Manager {
	return &Manager{store: store, gw: gw, log: log, locks: make(map[int]*sync.Mutex)}
}

// Track фиксирует отправленный в группу запрос.
func (m *Manager) Track(r Request) {
	err := m.store.InsertApproval(&models.Approval{
		MessageID:     r.MessageID,
		ContactID:     r.ContactID,
		UserChatID:    r.UserChatID,
		PriceCategory: r.PriceCategory,
	})
	if err != nil {
		m.log.Error("не удалось сохранить запрос на подтверждение",
			zap.Int("message_id", r.MessageID), zap.Error(err))
	}
}

// Approve создаёт ЛК для контакта. Повторный вызов по уже подтверждённому
// или отклонённому запросу не трогает внешний API. Неудачная попытка
// оставляет запрос в ожидании: модератор может осознанно повторить.
func (m *Manager) Approve(ctx context.Context, r Request) (Outcome, error) {
	l := m.messageLock(r.MessageID)
	l.Lock()
	defer l.Unlock()

	if terminal, err := m.ensurePending(r); err != nil || terminal {
		return OutcomeAlreadyDone, err
	}

	if _, err := m.gw.CreateLK(ctx, r.ContactID, r.PriceCategory); err != nil {
		m.log.Error("подтверждение: ЛК не создан",
			zap.String("contact_id", r.ContactID), zap.Error(err))
		return OutcomeFailed, err
	}

	ok, err := m.store.TransitionApproval(r.MessageID, models.ApprovalPending, models.ApprovalApproved)
	if err != nil {
		m.log.Error("не удалось отметить подтверждение", zap.Int("message_id", r.MessageID), zap.Error(err))
	} else if !ok {
		m.log.Warn("статус запроса изменился во время подтверждения", zap.Int("message_id", r.MessageID))
	}

	m.log.Info("ЛК создан по подтверждению",
		zap.String("contact_id", r.ContactID), zap.Int64("user_chat_id", r.UserChatID))
	return OutcomeCreated, nil
}

// Reject отклоняет запрос. Внешний API не вызывается.
func (m *Manager) Reject(r Request) (Outcome, error) {
	l := m.messageLock(r.MessageID)
	l.Lock()
	defer l.Unlock()

	if terminal, err := m.ensurePending(r); err != nil || terminal {
		return OutcomeAlreadyDone, err
	}

	if _, err := m.store.TransitionApproval(r.MessageID, models.ApprovalPending, models.ApprovalRejected); err != nil {
		return OutcomeFailed, err
	}

	m.log.Info("регистрация отклонена",
		zap.String("contact_id", r.ContactID), zap.Int64("user_chat_id", r.UserChatID))
	return OutcomeRejected, nil
}

// ensurePending проверяет статус запроса, при необходимости создавая
// запись: сообщение могло быть отправлено до перезапуска процесса.
func (m *Manager) ensurePending(r Request) (terminal bool, err error) {
	a, err := m.store.GetApproval(r.MessageID)
	if err != nil {
		return false, errors.Join(errors.New("не удалось прочитать статус запроса"), err)
	}
	if a == nil {
		m.Track(r)
		return false, nil
	}
	return a.Status != models.ApprovalPending, nil
}

func (m *Manager) messageLock(messageID int) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[messageID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[messageID] = l
	}
	return l
}

var _ Gateway = (*gateway.Gateway)(nil)
