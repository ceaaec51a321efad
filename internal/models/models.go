package models

// Client — запись справочника клиентов, загружается из JSON-файла выгрузки 1С.
type Client struct {
	ID      int    `json:"id" db:"id"`
	Name    string `json:"name" db:"name"`
	Manager string `json:"manager,omitempty" db:"manager"`
	Code    string `json:"code" db:"code"`
}

// User — авторизованный пользователь бота.
type User struct {
	ChatID       int64  `db:"chat_id"`
	Username     string `db:"username"`
	FirstName    string `db:"first_name"`
	LastName     string `db:"last_name"`
	AuthorizedAt int64  `db:"authorized_at"`
	LastActivity int64  `db:"last_activity"`
}

// Session — состояние мастера регистрации, одно на чат.
type Session struct {
	ChatID          int64  `db:"chat_id"`
	Step            string `db:"step"`
	ClientName      string `db:"client_name"`
	ClientCode      string `db:"client_code"`
	ClientManager   string `db:"client_manager"`
	Phone           string `db:"phone"`
	Email           string `db:"email"`
	PriceList       string `db:"price_list"`
	WithoutApproval bool   `db:"without_approval"`
	UpdatedAt       int64  `db:"updated_at"`
}

// HistoryRecord — одна попытка регистрации, успешная или нет. Только добавляется.
type HistoryRecord struct {
	ID          int64  `db:"id"`
	ChatID      int64  `db:"chat_id"`
	RequestID   string `db:"request_id"`
	ClientName  string `db:"client_name"`
	ClientCode  string `db:"client_code"`
	Phone       string `db:"phone"`
	Email       string `db:"email"`
	PriceList   string `db:"price_list"`
	APIResponse string `db:"api_response"`
	Status      string `db:"status"` // success либо error
	CreatedAt   int64  `db:"created_at"`
}

// Approval — запрос на подтверждение регистрации в группе модерации.
// Ключ — id сообщения с кнопками.
type Approval struct {
	MessageID     int    `db:"message_id"`
	ContactID     string `db:"contact_id"`
	UserChatID    int64  `db:"user_chat_id"`
	PriceCategory string `db:"price_category"`
	Status        string `db:"status"`
	CreatedAt     int64  `db:"created_at"`
	UpdatedAt     int64  `db:"updated_at"`
}

// Stats — агрегаты по истории регистраций.
type Stats struct {
	TotalUsers int `db:"total_users"`
	Successful int `db:"successful"`
	Failed     int `db:"failed"`
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

// Прайс-лист: пустая строка — обычный прайс, tier1 — «Прайс 1 (+1.5%)».
const (
	PriceListNone  = ""
	PriceListTier1 = "tier1"
)

// PriceListLabel возвращает человекочитаемое название прайс-листа.
func PriceListLabel(priceList string) string {
	if priceList == PriceListTier1 {
		return "Прайс 1 (+1.5%)"
	}
	return "Прайс"
}

// PriceCategoryID — код ценовой категории на стороне сайта.
// Категория «Цены видны» добавляется сервером сама, передаётся только доплатная.
func PriceCategoryID(priceList string) string {
	if priceList == PriceListTier1 {
		return "4"
	}
	return ""
}
