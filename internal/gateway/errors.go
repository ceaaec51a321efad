package gateway

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// ErrorKind — классификация ошибок внешнего API. Обработчики выбирают
// по ней текст для пользователя, ретраи смотрят на Retryable.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindTimeout
	KindDNS
	KindConnRefused
	KindTLS
	KindAuth        // 401, 403
	KindBadRequest  // 400, 404
	KindRateLimited // 429
	KindServer      // 5xx
)

func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindDNS:
		return "dns"
	case KindConnRefused:
		return "conn_refused"
	case KindTLS:
		return "tls"
	case KindAuth:
		return "auth"
	case KindBadRequest:
		return "bad_request"
	case KindRateLimited:
		return "rate_limited"
	case KindServer:
		return "server"
	}
	return "unknown"
}

// Retryable сообщает, имеет ли смысл повторять запрос.
// DNS и ошибки 4xx повтором не лечатся.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindTimeout, KindConnRefused, KindTLS, KindRateLimited, KindServer:
		return true
	}
	return false
}

// UserMessage — текст ошибки для пользователя.
func (k ErrorKind) UserMessage() string {
	switch k {
	case KindTimeout:
		return "Превышено время ожидания ответа от сервера"
	case KindDNS:
		return "Сервер не найден. Проверьте URL API"
	case KindConnRefused:
		return "Сервер отклонил соединение"
	case KindTLS:
		return "Ошибка SSL/TLS соединения с сервером"
	case KindAuth:
		return "Ошибка авторизации API"
	case KindBadRequest:
		return "Некорректные данные запроса"
	case KindRateLimited:
		return "Превышен лимит запросов"
	case KindServer:
		return "Внутренняя ошибка сервера"
	}
	return "Неизвестная ошибка при обращении к API"
}

// Error — ошибка вызова внешнего API с классификацией.
type Error struct {
	Kind   ErrorKind
	Status int    // HTTP-статус, 0 если до ответа не дошло
	Body   string // тело ответа для логов
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("api: %s (http %d)", e.Kind, e.Status)
	}
	if e.Err != nil {
		return fmt.Sprintf("api: %s: %v", e.Kind, e.Err)
	}
	return "api: " + e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// classify переводит транспортную ошибку в *Error.
func classify(err error) *Error {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &Error{Kind: KindDNS, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Err: err}
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return &Error{Kind: KindConnRefused, Err: err}
	}

	var certErr *tls.CertificateVerificationError
	var recErr tls.RecordHeaderError
	if errors.As(err, &certErr) || errors.As(err, &recErr) {
		return &Error{Kind: KindTLS, Err: err}
	}

	return &Error{Kind: KindUnknown, Err: err}
}

// classifyStatus переводит HTTP-статус ответа в *Error.
func classifyStatus(status int, body string) *Error {
	e := &Error{Status: status, Body: body}
	switch {
	case status == 401 || status == 403:
		e.Kind = KindAuth
	case status == 400 || status == 404:
		e.Kind = KindBadRequest
	case status == 429:
		e.Kind = KindRateLimited
	case status >= 500:
		e.Kind = KindServer
	default:
		e.Kind = KindUnknown
	}
	return e
}
