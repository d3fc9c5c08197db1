package notification

import (
	"fmt"
	"net/smtp"
	"strings"

	"FlowGuard/internal/config"
)

// EmailNotifier implements model.Notifier over SMTP with HTML bodies.
type EmailNotifier struct {
	cfg        config.SMTPConfig
	auth       smtp.Auth
	recipients []string
	send       func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailNotifier creates a notifier for the configured server and recipients.
func NewEmailNotifier(cfg config.SMTPConfig) *EmailNotifier {
	// PlainAuth will not send credentials until the server identifies itself as a trusted one.
	auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	return &EmailNotifier{
		cfg:        cfg,
		auth:       auth,
		recipients: splitRecipients(cfg.To),
		send:       smtp.SendMail,
	}
}

// Send mails subject and the HTML body to every recipient.
func (n *EmailNotifier) Send(subject, body string) error {
	if len(n.recipients) == 0 {
		return fmt.Errorf("no e-mail recipients configured")
	}
	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	if err := n.send(addr, n.auth, n.cfg.From, n.recipients, n.message(subject, body)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (n *EmailNotifier) message(subject, body string) []byte {
	var b strings.Builder
	b.WriteString("To: " + strings.Join(n.recipients, ", ") + "\r\n")
	b.WriteString("From: " + n.cfg.From + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

func splitRecipients(to string) []string {
	var out []string
	for _, r := range strings.Split(to, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}
