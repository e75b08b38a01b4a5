package email

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"gopkg.in/gomail.v2"
)

// SMTPProvider sends emails through a plain SMTP relay. It exists for
// setups without a transactional API key.
type SMTPProvider struct {
	dialer   *gomail.Dialer
	fromAddr string
	fromName string
	logger   *slog.Logger
}

// NewSMTPProvider creates an SMTP email provider. addr is host:port.
func NewSMTPProvider(addr, user, pass, fromAddr, fromName string, logger *slog.Logger) (*SMTPProvider, error) {
	host, portStr, ok := strings.Cut(addr, ":")
	if !ok {
		return nil, fmt.Errorf("invalid SMTP address %q: expected host:port", addr)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP port in %q: %w", addr, err)
	}

	return &SMTPProvider{
		dialer:   gomail.NewDialer(host, port, user, pass),
		fromAddr: fromAddr,
		fromName: fromName,
		logger:   logger,
	}, nil
}

// Send sends one email over SMTP.
func (p *SMTPProvider) Send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", p.fromAddr, p.fromName)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	if textBody != "" {
		m.SetBody("text/plain", textBody)
		m.AddAlternative("text/html", htmlBody)
	} else {
		m.SetBody("text/html", htmlBody)
	}

	p.logger.Info("SMTP send starting", "to", to, "subject", subject)
	if err := p.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	p.logger.Info("SMTP send completed", "to", to)

	return nil
}
