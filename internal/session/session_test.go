package session

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"telegram-crm-bot/internal/models"
	"telegram-crm-bot/internal/storage"
)

func testManager(t *testing.T, ttl time.Duration) (*Manager, *storage.DB) {
	t.Helper()
	db, err := storage.New(filepath.Join(t.TempDir(), "bot.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return NewManager(db, ttl, zap.NewNop()), db
}

func TestPutGetClear(t *testing.T) {
	m, _ := testManager(t, time.Hour)

	if s := m.Get(1); s != nil {
		t.Fatalf("Get по пустому менеджеру: %+v", s)
	}

	m.Put(&models.Session{ChatID: 1, Step: "awaiting_phone", ClientName: "ООО Тест"})
	s := m.Get(1)
	if s == nil || s.Step != "awaiting_phone" {
		t.Fatalf("Get: %+v", s)
	}

	m.Clear(1)
	if s := m.Get(1); s != nil {
		t.Errorf("после Clear: %+v", s)
	}
}

func TestGetFallsBackToStore(t *testing.T) {
	m, db := testManager(t, time.Hour)

	// сессия в БД, но не в кэше — как после перезапуска процесса
	if err := db.SaveSession(&models.Session{ChatID: 5, Step: "awaiting_email", UpdatedAt: time.Now().Unix()}); err != nil {
		t.Fatal(err)
	}
	s := m.Get(5)
	if s == nil || s.Step != "awaiting_email" {
		t.Fatalf("сессия не поднялась из БД: %+v", s)
	}
}

func TestExpiredSessionTreatedAsAbsent(t *testing.T) {
	m, db := testManager(t, 30*time.Minute)

	if err := db.SaveSession(&models.Session{
		ChatID: 2, Step: "awaiting_phone", UpdatedAt: time.Now().Add(-time.Hour).Unix(),
	}); err != nil {
		t.Fatal(err)
	}
	if s := m.Get(2); s != nil {
		t.Errorf("просроченная сессия вернулась: %+v", s)
	}
}

func TestPurgeExpired(t *testing.T) {
	m, _ := testManager(t, 30*time.Minute)

	stale := &models.Session{ChatID: 1, Step: "awaiting_phone"}
	m.Put(stale)
	stale.UpdatedAt = time.Now().Add(-time.Hour).Unix()
	m.store.SaveSession(stale)
	m.cache[1] = stale

	m.Put(&models.Session{ChatID: 2, Step: "awaiting_email"})

	if n := m.PurgeExpired(); n != 1 {
		t.Errorf("PurgeExpired() = %d, ожидалась 1", n)
	}
	if s := m.Get(2); s == nil {
		t.Error("живая сессия удалена")
	}
}

func TestDoSerializesPerChat(t *testing.T) {
	m, _ := testManager(t, time.Hour)

	var mu sync.Mutex
	inFlight := 0
	maxInFlight := 0

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go m.Do(42, func() {
			defer wg.Done()
			mu.Lock()
			inFlight++
			if inFlight > maxInFlight {
				maxInFlight = inFlight
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inFlight--
			mu.Unlock()
		})
	}
	wg.Wait()

	if maxInFlight != 1 {
		t.Errorf("одновременно выполнялось %d обработчиков одного чата", maxInFlight)
	}
}
