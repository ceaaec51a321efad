package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

func testGateway(t *testing.T, cfg Config) *Gateway {
	t.Helper()
	cfg.RetryBase = time.Millisecond
	cfg.RetryCap = 5 * time.Millisecond
	return New(cfg, zap.NewNop())
}

type countingServer struct {
	mu       sync.Mutex
	attempts int
	times    []time.Time
	handler  func(n int, w http.ResponseWriter, r *http.Request)
}

func (c *countingServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	c.attempts++
	n := c.attempts
	c.times = append(c.times, time.Now())
	c.mu.Unlock()
	c.handler(n, w, r)
}

func TestRegisterRetriesTransientThenSucceeds(t *testing.T) {
	srv := &countingServer{handler: func(n int, w http.ResponseWriter, r *http.Request) {
		if n < 4 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"id": 123}`))
	}}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	g := testGateway(t, Config{APIURL: ts.URL})
	res, err := g.RegisterCustomer(context.Background(), Registration{Name: "ООО Тест", Code: "1"})
	if err != nil {
		t.Fatalf("ожидался успех после ретраев, получено: %v", err)
	}
	if res.ContactID != "123" {
		t.Errorf("ContactID = %q, ожидалось 123", res.ContactID)
	}
	if srv.attempts != 4 {
		t.Errorf("попыток %d, ожидалось 4", srv.attempts)
	}
	// задержки не убывают
	for i := 2; i < len(srv.times); i++ {
		prev := srv.times[i-1].Sub(srv.times[i-2])
		cur := srv.times[i].Sub(srv.times[i-1])
		if cur < prev/2 {
			t.Errorf("задержка уменьшилась: %v после %v", cur, prev)
		}
	}
}

func TestRegisterNoRetryOnBadRequest(t *testing.T) {
	srv := &countingServer{handler: func(n int, w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	g := testGateway(t, Config{APIURL: ts.URL})
	_, err := g.RegisterCustomer(context.Background(), Registration{Name: "ООО Тест"})
	if err == nil {
		t.Fatal("ожидалась ошибка")
	}
	if srv.attempts != 1 {
		t.Errorf("попыток %d, ожидалась 1 (без ретраев)", srv.attempts)
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Kind != KindBadRequest {
		t.Errorf("классификация: %v", err)
	}
}

func TestRegisterGivesUpAfterAllRetries(t *testing.T) {
	srv := &countingServer{handler: func(n int, w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	g := testGateway(t, Config{APIURL: ts.URL})
	_, err := g.RegisterCustomer(context.Background(), Registration{Name: "ООО Тест"})
	if err == nil {
		t.Fatal("ожидалась ошибка")
	}
	if srv.attempts != 4 {
		t.Errorf("попыток %d, ожидалось 4", srv.attempts)
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Kind != KindServer {
		t.Errorf("классификация: %v", err)
	}
}

func TestRegisterFormFields(t *testing.T) {
	var form map[string]string
	srv := &countingServer{handler: func(n int, w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		form = map[string]string{}
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		w.Write([]byte(`{"contact_id": "77"}`))
	}}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	g := testGateway(t, Config{APIURL: ts.URL, APIAccessToken: "tok"})
	res, err := g.RegisterCustomer(context.Background(), Registration{
		Name: "ООО Рога", Code: "0042", Phone: "+79787599070", Email: "user@example.com",
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.ContactID != "77" {
		t.Errorf("ContactID = %q", res.ContactID)
	}
	want := map[string]string{
		"data[name]":             "ООО Рога",
		"data[email][0][value]":  "user@example.com",
		"data[email][0][ext]":    "work",
		"data[phone][0][value]":  "+79787599070",
		"data[phone][0][ext]":    "mobile",
		"data[kodv1s]":           "0042",
	}
	for k, v := range want {
		if form[k] != v {
			t.Errorf("поле %s = %q, ожидалось %q", k, form[k], v)
		}
	}
}

func TestCreateLKSingleAttempt(t *testing.T) {
	srv := &countingServer{handler: func(n int, w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	g := testGateway(t, Config{CreateLKURL: ts.URL})
	if _, err := g.CreateLK(context.Background(), "5", "4"); err == nil {
		t.Fatal("ожидалась ошибка")
	}
	if srv.attempts != 1 {
		t.Errorf("попыток %d, ожидалась ровно 1", srv.attempts)
	}
}

func TestCreateLKForm(t *testing.T) {
	var form map[string]string
	srv := &countingServer{handler: func(n int, w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		form = map[string]string{}
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		w.Write([]byte(`{"success": true}`))
	}}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	g := testGateway(t, Config{CreateLKURL: ts.URL, CreateLKToken: "secret"})
	if _, err := g.CreateLK(context.Background(), "42", "4"); err != nil {
		t.Fatal(err)
	}
	if form["token"] != "secret" || form["contact_id"] != "42" || form["category_id"] != "4" {
		t.Errorf("форма: %v", form)
	}

	if _, err := g.CreateLK(context.Background(), "", ""); err == nil {
		t.Error("пустой contact_id должен отклоняться без запроса")
	}
}

func TestResetPasswordForm(t *testing.T) {
	var form map[string]string
	srv := &countingServer{handler: func(n int, w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		form = map[string]string{}
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		w.Write([]byte(`{"success": true}`))
	}}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	g := testGateway(t, Config{ResetPasswordURL: ts.URL, ResetPasswordToken: "rp"})
	if _, err := g.ResetPassword(context.Background(), "9", "user@example.com"); err != nil {
		t.Fatal(err)
	}
	if form["token"] != "rp" || form["contact_id"] != "9" || form["email"] != "user@example.com" {
		t.Errorf("форма: %v", form)
	}
	if srv.attempts != 1 {
		t.Errorf("попыток %d, ожидалась 1", srv.attempts)
	}
}

func TestCustomersList(t *testing.T) {
	srv := &countingServer{handler: func(n int, w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("action") != "list" || r.URL.Query().Get("search") != "рога" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"success":true,"data":[{"contact_id":1,"name":"ООО Рога","kodv1s":"0001"}],
			"pagination":{"total":1,"page":0,"limit":10,"total_pages":1}}`))
	}}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	g := testGateway(t, Config{CustomersURL: ts.URL})
	customers, pg, err := g.Customers(context.Background(), 0, 10, "рога")
	if err != nil {
		t.Fatal(err)
	}
	if len(customers) != 1 || customers[0].Name != "ООО Рога" || pg.Total != 1 {
		t.Errorf("customers=%v pagination=%v", customers, pg)
	}
}

func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		status int
		kind   ErrorKind
	}{
		{400, KindBadRequest}, {401, KindAuth}, {403, KindAuth}, {404, KindBadRequest},
		{429, KindRateLimited}, {500, KindServer}, {502, KindServer}, {503, KindServer},
		{504, KindServer}, {418, KindUnknown},
	}
	for _, c := range cases {
		if got := classifyStatus(c.status, "").Kind; got != c.kind {
			t.Errorf("статус %d → %s, ожидалось %s", c.status, got, c.kind)
		}
	}
}

func TestRetryable(t *testing.T) {
	retryable := []ErrorKind{KindTimeout, KindConnRefused, KindTLS, KindRateLimited, KindServer}
	permanent := []ErrorKind{KindDNS, KindAuth, KindBadRequest, KindUnknown}
	for _, k := range retryable {
		if !k.Retryable() {
			t.Errorf("%s должен ретраиться", k)
		}
	}
	for _, k := range permanent {
		if k.Retryable() {
			t.Errorf("%s не должен ретраиться", k)
		}
	}
}

func TestExtractContactID(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{`{"id": 5}`, "5"},
		{`{"contact_id": "77"}`, "77"},
		{`{"id": "abc"}`, "abc"},
		{`{"ok": true}`, ""},
		{`not json`, ""},
	}
	for _, c := range cases {
		if got := extractContactID([]byte(c.raw)); got != c.want {
			t.Errorf("extractContactID(%s) = %q, ожидалось %q", c.raw, got, c.want)
		}
	}
}

func TestRegisterConnectionRefused(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	endpoint := ts.URL
	ts.Close() // порт больше не слушается

	g := testGateway(t, Config{APIURL: endpoint, RetryMax: 1})
	_, err := g.RegisterCustomer(context.Background(), Registration{Name: "x"})
	if err == nil {
		t.Fatal("ожидалась ошибка")
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Kind != KindConnRefused {
		t.Errorf("классификация: %v (kind %v)", err, apiErr.Kind)
	}
}
