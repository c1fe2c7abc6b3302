package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/hostelfood-creator/hostel-review-sub001/internal/model"
)

var _ model.Mailer = (*SMTP)(nil)

// SMTP delivers mail over a plain SMTP relay with optional AUTH.
type SMTP struct {
	addr string
	host string
	from string
	auth smtp.Auth
}

func NewSMTP(host string, port int, username, password, from string) *SMTP {
	m := &SMTP{
		addr: fmt.Sprintf("%s:%d", host, port),
		host: host,
		from: from,
	}
	if username != "" {
		m.auth = smtp.PlainAuth("", username, password, host)
	}
	return m
}

func (m *SMTP) Send(ctx context.Context, to, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", m.from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)

	if err := smtp.SendMail(m.addr, m.auth, m.from, []string{to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("%w: send mail: %w", model.ErrExternalService, err)
	}

	return nil
}
