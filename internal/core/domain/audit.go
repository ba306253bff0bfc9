package domain

import (
	"strings"
	"time"
)

// AuthEventKind identifies what happened to a session.
type AuthEventKind string

const (
	EventLogin   AuthEventKind = "login"
	EventRefresh AuthEventKind = "refresh"
	EventLogout  AuthEventKind = "logout"
)

// AuthEvent is one entry of the authentication audit trail.
type AuthEvent struct {
	Kind      AuthEventKind
	SessionID string
	UserID    int64
	Phone     string // masked
	Outcome   string // "ok" or a Failure string
	RequestID string
	At        time.Time
}

// ShardKey groups events of one actor so their order is preserved.
func (e AuthEvent) ShardKey() string {
	if e.SessionID != "" {
		return e.SessionID
	}
	return e.Phone
}

// MaskPhone keeps the last three digits of a phone number.
func MaskPhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if len(phone) <= 3 {
		return strings.Repeat("*", len(phone))
	}
	return strings.Repeat("*", len(phone)-3) + phone[len(phone)-3:]
}
