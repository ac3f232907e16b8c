package mailer

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"
)

var ErrMailerDisabled = errors.New("mailer is disabled")

// Config holds SMTP configuration. An empty Host disables sending.
type Config struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT"     envDefault:"587"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
	From     string `env:"FROM"     validate:"required_with=Host"`
}

// Mailer represents an email sender.
type Mailer struct {
	config Config
	dialer *gomail.Dialer
	send   func(*gomail.Message) error
}

// Email represents an email message.
type Email struct {
	To       []string
	Subject  string
	Body     string
	HTMLBody string
}

// NewMailer creates a Mailer. When cfg.Host is empty the mailer is returned
// disabled and every Send fails with ErrMailerDisabled.
func NewMailer(cfg Config, logger *zerolog.Logger) *Mailer {
	m := &Mailer{config: cfg}

	if cfg.Host == "" {
		logger.Info().Msg("SMTP_HOST not set, outgoing mail disabled")
		return m
	}

	m.dialer = gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	m.send = func(msg *gomail.Message) error { return m.dialer.DialAndSend(msg) }

	return m
}

// Enabled reports whether the mailer has an SMTP dialer.
func (m *Mailer) Enabled() bool {
	return m != nil && m.send != nil
}

// Send sends a single email.
func (m *Mailer) Send(email Email) error {
	if !m.Enabled() {
		return ErrMailerDisabled
	}
	if len(email.To) == 0 {
		return fmt.Errorf("no recipients specified")
	}

	msg := gomail.NewMessage()
	m.setEmailMessage(msg, email)

	return m.send(msg)
}

// SendHTML sends an HTML email with an optional plain text alternative.
func (m *Mailer) SendHTML(to []string, subject, htmlBody, textBody string) error {
	return m.Send(Email{
		To:       to,
		Subject:  subject,
		HTMLBody: htmlBody,
		Body:     textBody,
	})
}

func (m *Mailer) setEmailMessage(msg *gomail.Message, email Email) {
	msg.SetHeader("From", m.config.From)
	msg.SetHeader("To", email.To...)
	msg.SetHeader("Subject", email.Subject)

	if email.HTMLBody != "" {
		msg.SetBody("text/html", email.HTMLBody)
		if email.Body != "" {
			msg.AddAlternative("text/plain", email.Body)
		}
	} else {
		msg.SetBody("text/plain", email.Body)
	}
}
