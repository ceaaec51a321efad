package session

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"telegram-crm-bot/internal/models"
	"telegram-crm-bot/internal/storage"
)

// Manager — единственный владелец состояний мастера: кэш в памяти поверх
// таблицы sessions. Один Manager на процесс, одно состояние на чат.
type Manager struct {
	store *storage.DB
	log   *zap.Logger
	ttl   time.Duration

	mu    sync.Mutex
	cache map[int64]*models.Session
	locks map[int64]*sync.Mutex
}

func NewManager(store *storage.DB, ttl time.Duration, log *zap.Logger) *Manager {
	return &Manager{
		store: store,
		log:   log,
		ttl:   ttl,
		cache: make(map[int64]*models.Session),
		locks: make(map[int64]*sync.Mutex),
	}
}

// Do выполняет fn под замком чата: события одного пользователя
// обрабатываются строго по одному, разные чаты — параллельно.
func (m *Manager) Do(chatID int64, fn func()) {
	l := m.chatLock(chatID)
	l.Lock()
	defer l.Unlock()
	fn()
}

func (m *Manager) chatLock(chatID int64) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[chatID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[chatID] = l
	}
	return l
}

// Get возвращает состояние чата либо nil. Просроченное состояние
// считается отсутствующим и удаляется.
func (m *Manager) Get(chatID int64) *models.Session {
	m.mu.Lock()
	s, ok := m.cache[chatID]
	m.mu.Unlock()

	if !ok {
		var err error
		s, err = m.store.GetSession(chatID)
		if err != nil {
			m.log.Error("не удалось прочитать сессию", zap.Int64("chat_id", chatID), zap.Error(err))
			return nil
		}
		if s == nil {
			return nil
		}
		m.mu.Lock()
		m.cache[chatID] = s
		m.mu.Unlock()
	}

	if m.expired(s) {
		m.Clear(chatID)
		return nil
	}
	return s
}

// Put сохраняет состояние в кэш и в БД.
func (m *Manager) Put(s *models.Session) {
	s.UpdatedAt = time.Now().Unix()

	m.mu.Lock()
	m.cache[s.ChatID] = s
	m.mu.Unlock()

	if err := m.store.SaveSession(s); err != nil {
		m.log.Error("не удалось сохранить сессию", zap.Int64("chat_id", s.ChatID), zap.Error(err))
	}
}

// Clear удаляет состояние чата.
func (m *Manager) Clear(chatID int64) {
	m.mu.Lock()
	delete(m.cache, chatID)
	m.mu.Unlock()

	if err := m.store.DeleteSession(chatID); err != nil {
		m.log.Error("не удалось удалить сессию", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// PurgeExpired удаляет брошенные сессии из кэша и БД.
func (m *Manager) PurgeExpired() int64 {
	m.mu.Lock()
	for chatID, s := range m.cache {
		if m.expired(s) {
			delete(m.cache, chatID)
		}
	}
	m.mu.Unlock()

	n, err := m.store.DeleteExpiredSessions(time.Now().Add(-m.ttl))
	if err != nil {
		m.log.Error("не удалось удалить просроченные сессии", zap.Error(err))
		return 0
	}
	return n
}

func (m *Manager) expired(s *models.Session) bool {
	if m.ttl <= 0 {
		return false
	}
	return time.Unix(s.UpdatedAt, 0).Add(m.ttl).Before(time.Now())
}
