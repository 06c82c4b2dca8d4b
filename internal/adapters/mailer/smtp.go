package mailer

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/rs/zerolog/log"
)

// SMTP sends plain-text mail over an authenticated SMTP relay.
type SMTP struct {
	host string
	port string
	user string
	pass string
	from string
}

func New(host, port, user, pass, from string) *SMTP {
	return &SMTP{host: host, port: port, user: user, pass: pass, from: from}
}

func (m *SMTP) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", m.from, to, subject, body))
	auth := smtp.PlainAuth("", m.user, m.pass, m.host)
	return smtp.SendMail(m.host+":"+m.port, auth, m.from, []string{to}, msg)
}

// Noop is used when SMTP is unconfigured; it logs instead of sending so
// local runs still show what would have gone out.
type Noop struct{}

func (Noop) Send(_ context.Context, to, subject, _ string) error {
	log.Info().Str("to", to).Str("subject", subject).Msg("mail suppressed (SMTP not configured)")
	return nil
}
