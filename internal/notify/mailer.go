// Package notify turns booking events into e-mails and delivers them.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/smtp"
	"strconv"
	"strings"

	"learnhub/internal/apperr"
	"learnhub/internal/config"

	"github.com/rs/zerolog"
)

// Message is one e-mail. It is stored as the payload of a notification task.
type Message struct {
	To      string `json:"to"`
	Name    string `json:"name"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (m Message) Encode() (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func Decode(payload string) (Message, error) {
	var m Message
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	if m.To == "" {
		return Message{}, apperr.Validation("to", "recipient is required")
	}
	return m, nil
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer delivers through a single SMTP relay. Plain auth is used only when a username is set.
type SMTPMailer struct {
	cfg  config.SMTPConfig
	send sendFunc
}

func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, send: smtp.SendMail}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	addr := m.cfg.Host + ":" + strconv.Itoa(m.cfg.Port)
	if err := m.send(addr, auth, m.cfg.From, []string{msg.To}, m.render(msg)); err != nil {
		return apperr.External("smtp", err)
	}
	return nil
}

func (m *SMTPMailer) render(msg Message) []byte {
	var b strings.Builder
	if m.cfg.FromName != "" {
		fmt.Fprintf(&b, "From: %s <%s>\r\n", headerValue(m.cfg.FromName), m.cfg.From)
	} else {
		fmt.Fprintf(&b, "From: %s\r\n", m.cfg.From)
	}
	fmt.Fprintf(&b, "To: %s\r\n", headerValue(msg.To))
	fmt.Fprintf(&b, "Subject: %s\r\n", headerValue(msg.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	return []byte(b.String())
}

// headerValue strips line breaks so user input cannot add headers.
func headerValue(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}

// LogMailer only logs; used when SMTP is not configured.
type LogMailer struct {
	logger *zerolog.Logger
}

func NewLogMailer(logger *zerolog.Logger) *LogMailer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.logger.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Msg("E-mail delivery disabled, message logged")
	return nil
}

// NewMailer picks SMTP when a host is configured and notifications are enabled.
func NewMailer(cfg config.NotificationsConfig, logger *zerolog.Logger) Mailer {
	if cfg.Enabled && cfg.SMTP.Host != "" {
		return NewSMTPMailer(cfg.SMTP)
	}
	return NewLogMailer(logger)
}
