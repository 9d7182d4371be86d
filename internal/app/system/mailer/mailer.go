// Package mailer delivers notification email over SMTP.
package mailer

import (
	"bytes"
	"fmt"
	"mime"
	"mime/multipart"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"

	"go.uber.org/zap"
)

// Config holds SMTP settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Pass     string
	From     string
	FromName string
}

// Email is a single outgoing message. HTMLBody is optional.
type Email struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer sends Email values through one SMTP relay.
type Mailer struct {
	cfg  Config
	auth smtp.Auth
	send sendFunc
	log  *zap.Logger
}

// New returns a Mailer for cfg. PLAIN auth is used only when both user
// and password are set.
func New(cfg Config, log *zap.Logger) *Mailer {
	m := &Mailer{cfg: cfg, send: smtp.SendMail, log: log}
	if cfg.User != "" && cfg.Pass != "" {
		m.auth = smtp.PlainAuth("", cfg.User, cfg.Pass, cfg.Host)
	}
	return m
}

// FromName returns the sender display name.
func (m *Mailer) FromName() string {
	return m.cfg.FromName
}

// Send delivers email.
func (m *Mailer) Send(email Email) error {
	if email.To == "" {
		return fmt.Errorf("send email: empty recipient")
	}
	msg, err := m.compose(email)
	if err != nil {
		return fmt.Errorf("compose email: %w", err)
	}

	addr := m.cfg.Host + ":" + strconv.Itoa(m.cfg.Port)
	if err := m.send(addr, m.auth, m.cfg.From, []string{email.To}, msg); err != nil {
		m.log.Error("email delivery failed",
			zap.String("to", email.To),
			zap.String("relay", addr),
			zap.Error(err))
		return fmt.Errorf("send email to %s: %w", email.To, err)
	}

	m.log.Info("email delivered", zap.String("to", email.To), zap.String("subject", email.Subject))
	return nil
}

// compose renders the message. A message with an HTML body is sent as
// multipart/alternative with the text part first.
func (m *Mailer) compose(email Email) ([]byte, error) {
	var buf bytes.Buffer

	from := (&mail.Address{Name: m.cfg.FromName, Address: m.cfg.From}).String()
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", email.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", email.Subject))
	buf.WriteString("MIME-Version: 1.0\r\n")

	if email.HTMLBody == "" {
		buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
		buf.WriteString(email.TextBody)
		return buf.Bytes(), nil
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", mw.Boundary())

	parts := []struct{ ctype, content string }{
		{"text/plain; charset=UTF-8", email.TextBody},
		{"text/html; charset=UTF-8", email.HTMLBody},
	}
	for _, p := range parts {
		w, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {p.ctype}})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(p.content)); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	buf.Write(body.Bytes())
	return buf.Bytes(), nil
}
