package wizard

import (
	"errors"
	"regexp"
	"strings"
)

var (
	ErrBadPhone = errors.New("неверный формат телефона")
	ErrBadEmail = errors.New("неверный формат email")
)

var (
	phoneRx = regexp.MustCompile(`^\+?\d{10,15}$`)
	emailRx = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// NormalizePhone отбрасывает разделители и приводит номер к виду с «+».
// Ведущая «8» заменяется на код страны «+7».
func NormalizePhone(raw string) (string, error) {
	clean := strings.Map(func(r rune) rune {
		if r == '+' || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, raw)

	if !phoneRx.MatchString(clean) {
		return "", ErrBadPhone
	}
	if strings.HasPrefix(clean, "+") {
		return clean, nil
	}
	if strings.HasPrefix(clean, "8") {
		return "+7" + clean[1:], nil
	}
	return "+" + clean, nil
}

// NormalizeEmail проверяет форму адреса и приводит его к нижнему регистру.
func NormalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if !emailRx.MatchString(email) {
		return "", ErrBadEmail
	}
	return email, nil
}
