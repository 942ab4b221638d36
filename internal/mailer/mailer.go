package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"net/url"
	"strings"
	"time"

	"fintrack/internal/amqp"
)

// Mailer renders and delivers transactional email over SMTP.
type Mailer struct {
	addr          string
	auth          smtp.Auth
	from          string
	clientBaseURL string
	send          func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func New(host string, port int, username, password, from, clientBaseURL string) *Mailer {
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &Mailer{
		addr:          fmt.Sprintf("%s:%d", host, port),
		auth:          auth,
		from:          from,
		clientBaseURL: strings.TrimRight(clientBaseURL, "/"),
		send:          smtp.SendMail,
	}
}

// Send renders the message template for msg.Kind and delivers it.
// Unknown kinds are a permanent failure so the queue does not spin.
func (m *Mailer) Send(ctx context.Context, msg *amqp.EmailMessage) error {
	subject, body, err := m.render(msg)
	if err != nil {
		return amqp.Permanent(err)
	}

	raw := buildMessage(m.from, msg.To, subject, body)

	// net/smtp has no context support; honor cancellation before dialing.
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.send(m.addr, m.auth, m.from, []string{msg.To}, raw); err != nil {
		return fmt.Errorf("send %s email to %s: %w", msg.Kind, msg.To, err)
	}
	return nil
}

func (m *Mailer) render(msg *amqp.EmailMessage) (subject, body string, err error) {
	name := msg.Name
	if name == "" {
		name = "there"
	}
	expires := msg.ExpiresAt.Format(time.RFC1123)

	switch msg.Kind {
	case amqp.EmailVerify:
		link := fmt.Sprintf("%s/verify-email?token=%s", m.clientBaseURL, url.QueryEscape(msg.Token))
		return "Verify your email address",
			fmt.Sprintf("Hi %s,\r\n\r\nConfirm your email address by opening the link below:\r\n\r\n%s\r\n\r\nThe link expires at %s.\r\n",
				name, link, expires), nil
	case amqp.EmailPasswordReset:
		link := fmt.Sprintf("%s/reset-password?token=%s", m.clientBaseURL, url.QueryEscape(msg.Token))
		return "Reset your password",
			fmt.Sprintf("Hi %s,\r\n\r\nA password reset was requested for your account. Open the link below to choose a new password:\r\n\r\n%s\r\n\r\nThe link expires at %s. If you did not request this, ignore this message.\r\n",
				name, link, expires), nil
	case amqp.EmailOTP:
		return "Your one-time login code",
			fmt.Sprintf("Hi %s,\r\n\r\nYour one-time login code is:\r\n\r\n%s\r\n\r\nThe code expires at %s.\r\n",
				name, msg.Token, expires), nil
	default:
		return "", "", fmt.Errorf("unknown email kind %q", msg.Kind)
	}
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
