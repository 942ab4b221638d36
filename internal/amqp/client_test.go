package amqp

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestEmailMessageRoundTrip(t *testing.T) {
	msg := NewEmailMessage("a@example.com", "Ada", EmailVerify, "tok-123", time.Now().Add(time.Hour))
	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	got, err := EmailMessageFromJSON(body)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.To != "a@example.com" || got.Kind != EmailVerify || got.Token != "tok-123" {
		t.Fatalf("round trip got %+v", got)
	}
}

func TestEmailMessageFromJSONRejectsIncomplete(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"not json", "{"},
		{"missing recipient", `{"kind":"verify_email","token":"x"}`},
		{"missing kind", `{"to":"a@example.com","token":"x"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := EmailMessageFromJSON([]byte(tc.body)); err == nil {
				t.Fatalf("expected error for %q", tc.body)
			}
		})
	}
}

func TestLedgerSyncMessageRejectsInvalidID(t *testing.T) {
	if _, err := LedgerSyncMessageFromJSON([]byte(`{"id":0,"user_id":1}`)); err == nil {
		t.Fatal("expected error for zero id")
	}
	if _, err := LedgerSyncMessageFromJSON([]byte(`{"id":7,"user_id":1}`)); err != nil {
		t.Fatalf("valid message rejected: %v", err)
	}
}

func TestPermanentErrorMarking(t *testing.T) {
	base := errors.New("bad payload")
	if IsPermanent(base) {
		t.Fatal("plain error should not be permanent")
	}
	wrapped := Permanent(base)
	if !IsPermanent(wrapped) {
		t.Fatal("wrapped error should be permanent")
	}
	if !IsPermanent(fmt.Errorf("handle: %w", wrapped)) {
		t.Fatal("permanence should survive further wrapping")
	}
	if !errors.Is(wrapped, base) {
		t.Fatal("Permanent should preserve the underlying error")
	}
	if Permanent(nil) != nil {
		t.Fatal("Permanent(nil) should be nil")
	}
}
