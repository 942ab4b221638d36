package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/mailer"
)

func TestMailWorkerDropsUndecodablePayload(t *testing.T) {
	w := NewMailWorker(mailer.New("localhost", 2525, "", "", "no-reply@test", "http://localhost"))

	err := w.Handle(context.Background(), []byte("not json"))
	if err == nil {
		t.Fatal("expected an error")
	}
	if !amqp.IsPermanent(err) {
		t.Fatalf("undecodable payloads must be permanent, got %v", err)
	}
}

func TestMailWorkerStopsOnCancelledContext(t *testing.T) {
	w := NewMailWorker(mailer.New("localhost", 2525, "", "", "no-reply@test", "http://localhost"))

	msg := amqp.NewEmailMessage("ada@example.com", "Ada", amqp.EmailOTP, "123456", time.Now().Add(5*time.Minute))
	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("encode message: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- w.Handle(ctx, body) }()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Handle should return promptly on a cancelled context")
	}
}
