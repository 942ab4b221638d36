package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// EmailKind selects the template the mail worker renders.
type EmailKind string

const (
	EmailVerify        EmailKind = "verify_email"
	EmailPasswordReset EmailKind = "password_reset"
	EmailOTP           EmailKind = "otp_code"
)

// EmailMessage asks the mail worker to deliver one email. Token carries the
// raw verification/reset token or OTP code; it is never stored server-side.
type EmailMessage struct {
	To        string    `json:"to"`
	Name      string    `json:"name,omitempty"`
	Kind      EmailKind `json:"kind"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Timestamp time.Time `json:"timestamp"`
}

func NewEmailMessage(to, name string, kind EmailKind, token string, expiresAt time.Time) *EmailMessage {
	return &EmailMessage{
		To:        to,
		Name:      name,
		Kind:      kind,
		Token:     token,
		ExpiresAt: expiresAt,
		Timestamp: time.Now().UTC(),
	}
}

func (m *EmailMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func EmailMessageFromJSON(data []byte) (*EmailMessage, error) {
	var m EmailMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal email message: %w", err)
	}
	if m.To == "" || m.Kind == "" {
		return nil, fmt.Errorf("email message missing recipient or kind")
	}
	return &m, nil
}

// LedgerSyncMessage points the sync worker at one transaction row to export.
type LedgerSyncMessage struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerSyncMessage(id, userID int64) *LedgerSyncMessage {
	return &LedgerSyncMessage{
		ID:        id,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
	}
}

func (m *LedgerSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerSyncMessageFromJSON(data []byte) (*LedgerSyncMessage, error) {
	var m LedgerSyncMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal ledger sync message: %w", err)
	}
	if m.ID <= 0 {
		return nil, fmt.Errorf("ledger sync message has invalid id %d", m.ID)
	}
	return &m, nil
}
