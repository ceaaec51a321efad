package approval

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"

	"go.uber.org/zap"

	"telegram-crm-bot/internal/gateway"
	"telegram-crm-bot/internal/models"
	"telegram-crm-bot/internal/storage"
)

type fakeLK struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeLK) CreateLK(ctx context.Context, contactID, categoryID string) (json.RawMessage, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(`{"success":true}`), nil
}

func testManager(t *testing.T, lk *fakeLK) *Manager {
	t.Helper()
	db, err := storage.New(filepath.Join(t.TempDir(), "bot.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return NewManager(db, lk, zap.NewNop())
}

func testRequest() Request {
	return Request{MessageID: 10, ContactID: "42", UserChatID: 7, PriceCategory: "4"}
}

func TestApproveOnce(t *testing.T) {
	lk := &fakeLK{}
	m := testManager(t, lk)
	r := testRequest()
	m.Track(r)

	out, err := m.Approve(context.Background(), r)
	if err != nil || out != OutcomeCreated {
		t.Fatalf("Approve: %v, %v", out, err)
	}
	if lk.calls != 1 {
		t.Errorf("CreateLK вызван %d раз", lk.calls)
	}
}

func TestApproveTwiceCallsRemoteOnce(t *testing.T) {
	lk := &fakeLK{}
	m := testManager(t, lk)
	r := testRequest()
	m.Track(r)

	if out, _ := m.Approve(context.Background(), r); out != OutcomeCreated {
		t.Fatalf("первое подтверждение: %v", out)
	}
	out, err := m.Approve(context.Background(), r)
	if err != nil || out != OutcomeAlreadyDone {
		t.Fatalf("второе подтверждение: %v, %v", out, err)
	}
	if lk.calls != 1 {
		t.Errorf("CreateLK вызван %d раз, ожидался 1", lk.calls)
	}
}

func TestApproveConcurrentDoubleTap(t *testing.T) {
	lk := &fakeLK{}
	m := testManager(t, lk)
	r := testRequest()
	m.Track(r)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Approve(context.Background(), r)
		}()
	}
	wg.Wait()

	if lk.calls != 1 {
		t.Errorf("при параллельных нажатиях CreateLK вызван %d раз", lk.calls)
	}
}

func TestApproveRetriesAfterFailure(t *testing.T) {
	lk := &fakeLK{err: &gateway.Error{Kind: gateway.KindServer}}
	m := testManager(t, lk)
	r := testRequest()
	m.Track(r)

	out, err := m.Approve(context.Background(), r)
	if err == nil || out != OutcomeFailed {
		t.Fatalf("ожидалась ошибка: %v, %v", out, err)
	}

	// осознанный повтор после исправления проблемы должен пройти
	lk.err = nil
	out, err = m.Approve(context.Background(), r)
	if err != nil || out != OutcomeCreated {
		t.Fatalf("повтор после сбоя: %v, %v", out, err)
	}
	if lk.calls != 2 {
		t.Errorf("CreateLK вызван %d раз, ожидалось 2", lk.calls)
	}
}

func TestRejectSkipsRemoteCall(t *testing.T) {
	lk := &fakeLK{}
	m := testManager(t, lk)
	r := testRequest()
	m.Track(r)

	out, err := m.Reject(r)
	if err != nil || out != OutcomeRejected {
		t.Fatalf("Reject: %v, %v", out, err)
	}
	if lk.calls != 0 {
		t.Error("отказ не должен вызывать API")
	}

	// подтверждение после отказа — no-op
	out, err = m.Approve(context.Background(), r)
	if err != nil || out != OutcomeAlreadyDone {
		t.Fatalf("Approve после Reject: %v, %v", out, err)
	}
	if lk.calls != 0 {
		t.Error("API вызван по отклонённому запросу")
	}
}

func TestApproveUntrackedRequest(t *testing.T) {
	// сообщение отправлено до перезапуска — записи в БД нет
	lk := &fakeLK{}
	m := testManager(t, lk)

	out, err := m.Approve(context.Background(), testRequest())
	if err != nil || out != OutcomeCreated {
		t.Fatalf("Approve без записи: %v, %v", out, err)
	}

	out, _ = m.Approve(context.Background(), testRequest())
	if out != OutcomeAlreadyDone || lk.calls != 1 {
		t.Errorf("повтор: %v, calls=%d", out, lk.calls)
	}
}

func TestApproveMarksStatusInStore(t *testing.T) {
	lk := &fakeLK{}
	m := testManager(t, lk)
	r := testRequest()
	m.Track(r)
	if _, err := m.Approve(context.Background(), r); err != nil {
		t.Fatal(err)
	}
	a, err := m.store.(*storage.DB).GetApproval(r.MessageID)
	if err != nil || a == nil || a.Status != models.ApprovalApproved {
		t.Errorf("статус в БД: %+v, %v", a, err)
	}
}
