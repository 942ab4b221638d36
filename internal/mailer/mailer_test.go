package mailer

import (
	"context"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"fintrack/internal/amqp"
)

func TestSendRendersVerifyEmail(t *testing.T) {
	m := New("localhost", 1025, "", "", "noreply@fintrack.test", "https://app.fintrack.test/")

	var gotTo []string
	var gotMsg []byte
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotTo = to
		gotMsg = msg
		return nil
	}

	err := m.Send(context.Background(), amqp.NewEmailMessage(
		"user@example.com", "Ada", amqp.EmailVerify, "tok/123", time.Now().Add(time.Hour)))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(gotTo) != 1 || gotTo[0] != "user@example.com" {
		t.Fatalf("recipient got %v", gotTo)
	}

	body := string(gotMsg)
	if !strings.Contains(body, "Subject: Verify your email address") {
		t.Fatalf("missing subject:\n%s", body)
	}
	// Token must be query-escaped and the base URL must not double a slash.
	if !strings.Contains(body, "https://app.fintrack.test/verify-email?token=tok%2F123") {
		t.Fatalf("missing verification link:\n%s", body)
	}
}

func TestSendOTPIncludesCode(t *testing.T) {
	m := New("localhost", 1025, "", "", "noreply@fintrack.test", "https://app.fintrack.test")
	var gotMsg []byte
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotMsg = msg
		return nil
	}

	err := m.Send(context.Background(), amqp.NewEmailMessage(
		"user@example.com", "", amqp.EmailOTP, "482913", time.Now().Add(5*time.Minute)))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !strings.Contains(string(gotMsg), "482913") {
		t.Fatalf("otp code missing:\n%s", gotMsg)
	}
}

func TestSendUnknownKindIsPermanent(t *testing.T) {
	m := New("localhost", 1025, "", "", "noreply@fintrack.test", "https://app.fintrack.test")
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		t.Fatal("send should not be called for unknown kind")
		return nil
	}

	err := m.Send(context.Background(), amqp.NewEmailMessage(
		"user@example.com", "", amqp.EmailKind("bogus"), "x", time.Now()))
	if err == nil {
		t.Fatal("expected error")
	}
	if !amqp.IsPermanent(err) {
		t.Fatalf("unknown kind should be permanent, got %v", err)
	}
}
