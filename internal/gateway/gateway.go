package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

type Config struct {
	APIURL         string // shop.customer.add
	APIAccessToken string

	CreateLKURL        string
	CreateLKToken      string
	ResetPasswordURL   string
	ResetPasswordToken string
	CustomersURL       string
	CustomersToken     string

	RegisterTimeout time.Duration // по умолчанию 15s
	ServiceTimeout  time.Duration // создание ЛК и сброс пароля, 10s

	RetryMax  int           // дополнительных попыток регистрации, 3
	RetryBase time.Duration // стартовая задержка, 1s
	RetryCap  time.Duration // потолок задержки, 5s
}

// Gateway — исходящие вызовы API сайта (Webasyst).
type Gateway struct {
	cfg   Config
	httpc *http.Client
	log   *zap.Logger
}

func New(cfg Config, log *zap.Logger) *Gateway {
	if cfg.RegisterTimeout == 0 {
		cfg.RegisterTimeout = 15 * time.Second
	}
	if cfg.ServiceTimeout == 0 {
		cfg.ServiceTimeout = 10 * time.Second
	}
	if cfg.RetryMax == 0 {
		cfg.RetryMax = 3
	}
	if cfg.RetryBase == 0 {
		cfg.RetryBase = time.Second
	}
	if cfg.RetryCap == 0 {
		cfg.RetryCap = 5 * time.Second
	}
	return &Gateway{cfg: cfg, httpc: &http.Client{}, log: log}
}

// Registration — данные нового клиента для регистрации на сайте.
type Registration struct {
	Name  string
	Code  string
	Phone string
	Email string
}

// RegisterResult — ответ сайта на регистрацию. Тело непрозрачное,
// из него достаётся только внешний идентификатор контакта.
type RegisterResult struct {
	ContactID string
	Raw       json.RawMessage
}

// RegisterCustomer регистрирует клиента. Временные сбои повторяются
// с экспоненциальной задержкой, постоянные (DNS, 4xx) — нет.
func (g *Gateway) RegisterCustomer(ctx context.Context, r Registration) (*RegisterResult, error) {
	form := url.Values{}
	form.Set("data[name]", r.Name)
	form.Set("data[email][0][value]", r.Email)
	form.Set("data[email][0][ext]", "work")
	form.Set("data[phone][0][value]", r.Phone)
	form.Set("data[phone][0][ext]", "mobile")
	form.Set("data[kodv1s]", r.Code)

	endpoint := g.cfg.APIURL + "?access_token=" + url.QueryEscape(g.cfg.APIAccessToken)

	var res *RegisterResult
	attempt := 0
	op := func() error {
		attempt++
		g.log.Info("отправка запроса на регистрацию клиента",
			zap.String("name", r.Name), zap.String("code", r.Code), zap.Int("attempt", attempt))

		raw, err := g.postForm(ctx, endpoint, form, g.cfg.RegisterTimeout)
		if err != nil {
			var apiErr *Error
			errors.As(err, &apiErr)
			g.log.Warn("ошибка регистрации клиента",
				zap.String("name", r.Name), zap.Int("attempt", attempt),
				zap.String("kind", apiErr.Kind.String()), zap.Error(err))
			if !apiErr.Kind.Retryable() {
				return backoff.Permanent(err)
			}
			return err
		}

		res = &RegisterResult{ContactID: extractContactID(raw), Raw: raw}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = g.cfg.RetryBase
	bo.RandomizationFactor = 0
	bo.Multiplier = 2
	bo.MaxInterval = g.cfg.RetryCap
	bo.MaxElapsedTime = 0

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(g.cfg.RetryMax)), ctx))
	if err != nil {
		return nil, err
	}

	g.log.Info("клиент зарегистрирован",
		zap.String("name", r.Name), zap.String("contact_id", res.ContactID), zap.Int("attempts", attempt))
	return res, nil
}

// CreateLK создаёт личный кабинет для контакта.
// Без повторов: сайт шлёт письмо с паролем на каждую попытку.
func (g *Gateway) CreateLK(ctx context.Context, contactID, categoryID string) (json.RawMessage, error) {
	if contactID == "" {
		return nil, &Error{Kind: KindBadRequest, Err: errors.New("пустой contact_id")}
	}

	form := url.Values{}
	form.Set("token", g.cfg.CreateLKToken)
	form.Set("contact_id", contactID)
	if categoryID != "" {
		form.Set("category_id", categoryID)
	}

	g.log.Info("создание ЛК", zap.String("contact_id", contactID), zap.String("category_id", categoryID))
	raw, err := g.postForm(ctx, g.cfg.CreateLKURL, form, g.cfg.ServiceTimeout)
	if err != nil {
		g.log.Error("ошибка создания ЛК", zap.String("contact_id", contactID), zap.Error(err))
		return nil, err
	}
	return raw, nil
}

// ResetPassword сбрасывает пароль контакта. Без повторов по той же причине,
// что и CreateLK.
func (g *Gateway) ResetPassword(ctx context.Context, contactID, email string) (json.RawMessage, error) {
	if contactID == "" {
		return nil, &Error{Kind: KindBadRequest, Err: errors.New("пустой contact_id")}
	}

	form := url.Values{}
	form.Set("token", g.cfg.ResetPasswordToken)
	form.Set("contact_id", contactID)
	if email != "" {
		form.Set("email", email)
	}

	g.log.Info("сброс пароля", zap.String("contact_id", contactID))
	raw, err := g.postForm(ctx, g.cfg.ResetPasswordURL, form, g.cfg.ServiceTimeout)
	if err != nil {
		g.log.Error("ошибка сброса пароля", zap.String("contact_id", contactID), zap.Error(err))
		return nil, err
	}
	return raw, nil
}

// Customer — клиент из БД сайта.
type Customer struct {
	ContactID json.Number `json:"contact_id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Phone     string      `json:"phone"`
	Code      string      `json:"kodv1s"`
	PriceList string      `json:"price_list"`
	CreatedAt string      `json:"created_at"`
}

type Pagination struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"total_pages"`
}

type customersEnvelope struct {
	Success    bool       `json:"success"`
	Data       []Customer `json:"data"`
	Pagination Pagination `json:"pagination"`
	Error      string     `json:"error"`
}

// Customers возвращает страницу клиентов из БД сайта, опционально с поиском.
func (g *Gateway) Customers(ctx context.Context, page, limit int, search string) ([]Customer, Pagination, error) {
	params := url.Values{}
	params.Set("token", g.cfg.CustomersToken)
	params.Set("action", "list")
	params.Set("page", strconv.Itoa(page))
	params.Set("limit", strconv.Itoa(limit))
	if search != "" {
		params.Set("search", search)
	}

	var env customersEnvelope
	if err := g.getJSON(ctx, g.cfg.CustomersURL+"?"+params.Encode(), &env); err != nil {
		return nil, Pagination{}, err
	}
	if !env.Success {
		return nil, Pagination{}, &Error{Kind: KindUnknown, Err: errors.New(env.Error)}
	}
	return env.Data, env.Pagination, nil
}

// CustomerByID возвращает одного клиента из БД сайта.
func (g *Gateway) CustomerByID(ctx context.Context, contactID string) (*Customer, error) {
	params := url.Values{}
	params.Set("token", g.cfg.CustomersToken)
	params.Set("action", "get")
	params.Set("contact_id", contactID)

	var env customersEnvelope
	if err := g.getJSON(ctx, g.cfg.CustomersURL+"?"+params.Encode(), &env); err != nil {
		return nil, err
	}
	if !env.Success || len(env.Data) == 0 {
		return nil, &Error{Kind: KindBadRequest, Err: fmt.Errorf("клиент %s не найден", contactID)}
	}
	return &env.Data[0], nil
}

func (g *Gateway) postForm(ctx context.Context, endpoint string, form url.Values, timeout time.Duration) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &Error{Kind: KindUnknown, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return g.do(req)
}

func (g *Gateway) getJSON(ctx context.Context, endpoint string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.RegisterTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &Error{Kind: KindUnknown, Err: err}
	}
	raw, err := g.do(req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{Kind: KindUnknown, Err: err}
	}
	return nil
}

func (g *Gateway) do(req *http.Request) (json.RawMessage, error) {
	resp, err := g.httpc.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, classify(err)
	}
	if resp.StatusCode >= 400 {
		return nil, classifyStatus(resp.StatusCode, string(body))
	}
	return json.RawMessage(body), nil
}

// extractContactID достаёт внешний идентификатор из непрозрачного ответа:
// сайт возвращает его то как id, то как contact_id.
func extractContactID(raw json.RawMessage) string {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	for _, key := range []string{"id", "contact_id"} {
		switch v := payload[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatInt(int64(v), 10)
		}
	}
	return ""
}
