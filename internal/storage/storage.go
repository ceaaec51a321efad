package storage

import (
	"database/sql"
	_ "embed"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"telegram-crm-bot/internal/models"
)

//go:embed schema.sql
var ddl string

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

type DB struct{ *sqlx.DB }

func New(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sqlx.Connect("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(ddl); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{db}, nil
}

// ---------- users -----------------------------------------------------------

func (d *DB) AuthorizeUser(u *models.User) error {
	now := time.Now().Unix()
	u.AuthorizedAt = now
	u.LastActivity = now
	_, err := d.NamedExec(`
        INSERT OR REPLACE INTO users (chat_id, username, first_name, last_name, authorized_at, last_activity)
        VALUES (:chat_id, :username, :first_name, :last_name, :authorized_at, :last_activity)
    `, u)
	return err
}

func (d *DB) IsAuthorized(chatID int64) (bool, error) {
	var n int
	err := d.Get(&n, `SELECT COUNT(*) FROM users WHERE chat_id=?`, chatID)
	return n > 0, err
}

func (d *DB) TouchActivity(chatID int64) error {
	_, err := d.Exec(`UPDATE users SET last_activity=? WHERE chat_id=?`, time.Now().Unix(), chatID)
	return err
}

// ---------- sessions --------------------------------------------------------

func (d *DB) SaveSession(s *models.Session) error {
	if s.UpdatedAt == 0 {
		s.UpdatedAt = time.Now().Unix()
	}
	_, err := d.NamedExec(`
        INSERT INTO sessions (chat_id, step, client_name, client_code, client_manager,
                              phone, email, price_list, without_approval, updated_at)
        VALUES (:chat_id, :step, :client_name, :client_code, :client_manager,
                :phone, :email, :price_list, :without_approval, :updated_at)
        ON CONFLICT(chat_id) DO UPDATE SET
            step=excluded.step,
            client_name=excluded.client_name,
            client_code=excluded.client_code,
            client_manager=excluded.client_manager,
            phone=excluded.phone,
            email=excluded.email,
            price_list=excluded.price_list,
            without_approval=excluded.without_approval,
            updated_at=excluded.updated_at
    `, s)
	return err
}

func (d *DB) GetSession(chatID int64) (*models.Session, error) {
	var s models.Session
	err := d.Get(&s, `SELECT * FROM sessions WHERE chat_id=?`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (d *DB) DeleteSession(chatID int64) error {
	_, err := d.Exec(`DELETE FROM sessions WHERE chat_id=?`, chatID)
	return err
}

// DeleteExpiredSessions удаляет сессии, не обновлявшиеся с указанного момента.
func (d *DB) DeleteExpiredSessions(olderThan time.Time) (int64, error) {
	res, err := d.Exec(`DELETE FROM sessions WHERE updated_at < ?`, olderThan.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ---------- registration history -------------------------------------------

func (d *DB) InsertHistory(h *models.HistoryRecord) error {
	if h.CreatedAt == 0 {
		h.CreatedAt = time.Now().Unix()
	}
	_, err := d.NamedExec(`
        INSERT INTO registration_history
            (chat_id, request_id, client_name, client_code, phone, email,
             price_list, api_response, status, created_at)
        VALUES (:chat_id, :request_id, :client_name, :client_code, :phone, :email,
                :price_list, :api_response, :status, :created_at)
    `, h)
	return err
}

func (d *DB) RecentHistory(chatID int64, limit int) ([]models.HistoryRecord, error) {
	var res []models.HistoryRecord
	err := d.Select(&res, `
        SELECT * FROM registration_history
        WHERE chat_id=? ORDER BY created_at DESC, id DESC LIMIT ?`, chatID, limit)
	return res, err
}

func (d *DB) Stats() (models.Stats, error) {
	var s models.Stats
	err := d.Get(&s, `
        SELECT
            (SELECT COUNT(*) FROM users) AS total_users,
            (SELECT COUNT(*) FROM registration_history WHERE status='success') AS successful,
            (SELECT COUNT(*) FROM registration_history WHERE status='error') AS failed
    `)
	return s, err
}

// UserStats считает регистрации одного менеджера.
func (d *DB) UserStats(chatID int64) (successful, failed int, err error) {
	var row struct {
		Successful int `db:"successful"`
		Failed     int `db:"failed"`
	}
	err = d.Get(&row, `
        SELECT
            (SELECT COUNT(*) FROM registration_history WHERE chat_id=? AND status='success') AS successful,
            (SELECT COUNT(*) FROM registration_history WHERE chat_id=? AND status='error') AS failed
    `, chatID, chatID)
	return row.Successful, row.Failed, err
}

// ---------- approvals -------------------------------------------------------

func (d *DB) InsertApproval(a *models.Approval) error {
	now := time.Now().Unix()
	if a.CreatedAt == 0 {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	if a.Status == "" {
		a.Status = models.ApprovalPending
	}
	_, err := d.NamedExec(`
        INSERT OR IGNORE INTO approvals
            (message_id, contact_id, user_chat_id, price_category, status, created_at, updated_at)
        VALUES (:message_id, :contact_id, :user_chat_id, :price_category, :status, :created_at, :updated_at)
    `, a)
	return err
}

func (d *DB) GetApproval(messageID int) (*models.Approval, error) {
	var a models.Approval
	err := d.Get(&a, `SELECT * FROM approvals WHERE message_id=?`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// TransitionApproval переводит запрос из статуса from в to.
// Возвращает false, если запрос уже не в статусе from.
func (d *DB) TransitionApproval(messageID int, from, to string) (bool, error) {
	res, err := d.Exec(`
        UPDATE approvals SET status=?, updated_at=? WHERE message_id=? AND status=?`,
		to, time.Now().Unix(), messageID, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}
