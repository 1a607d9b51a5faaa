// Package mail delivers rendered invoices over SMTP.
package mail

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	gomail "github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/dandroos/node-invoicer/internal/domain/invoicing"
	"github.com/dandroos/node-invoicer/internal/infrastructure/config"
)

var _ invoicing.Mailer = (*SMTPMailer)(nil)

// SMTPMailer implements invoicing.Mailer with go-mail
type SMTPMailer struct {
	client *gomail.Client
	from   string
	logger *zap.Logger
}

// NewSMTPMailer creates a mailer for the configured SMTP server
func NewSMTPMailer(cfg *config.MailConfig, logger *zap.Logger) (*SMTPMailer, error) {
	if cfg == nil || cfg.Host == "" {
		return nil, errors.New("mail host is required")
	}
	if cfg.From == "" {
		return nil, errors.New("mail sender is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	policy, err := tlsPolicy(cfg.TLSPolicy)
	if err != nil {
		return nil, err
	}

	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPolicy(policy),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, gomail.WithTimeout(cfg.Timeout))
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail client: %w", err)
	}

	return &SMTPMailer{
		client: client,
		from:   cfg.From,
		logger: logger,
	}, nil
}

// Send e-mails body (HTML) to the recipient with the artifact attached
func (m *SMTPMailer) Send(ctx context.Context, to, subject, attachmentPath, body string) error {
	msg, err := BuildMessage(m.from, to, subject, attachmentPath, body)
	if err != nil {
		return err
	}

	start := time.Now()
	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return invoicing.NewDeliveryError("send to "+to, err)
	}

	m.logger.Info("Invoice e-mailed",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// BuildMessage assembles the message Send delivers
func BuildMessage(from, to, subject, attachmentPath, body string) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, invoicing.NewDeliveryError("set sender", err)
	}
	if err := msg.To(to); err != nil {
		return nil, invoicing.NewDeliveryError("set recipient", err)
	}
	msg.Subject(subject)
	msg.SetDate()
	msg.SetBodyString(gomail.TypeTextHTML, body)

	if attachmentPath != "" {
		info, err := os.Stat(attachmentPath)
		if err != nil {
			return nil, invoicing.NewDeliveryError("attach "+filepath.Base(attachmentPath), err)
		}
		if info.IsDir() {
			return nil, invoicing.NewDeliveryError("attach "+filepath.Base(attachmentPath), errors.New("attachment is a directory"))
		}
		msg.AttachFile(attachmentPath, gomail.WithFileContentType(gomail.ContentType("application/pdf")))
	}
	return msg, nil
}

func tlsPolicy(name string) (gomail.TLSPolicy, error) {
	switch name {
	case "", "mandatory":
		return gomail.TLSMandatory, nil
	case "opportunistic":
		return gomail.TLSOpportunistic, nil
	case "none":
		return gomail.NoTLS, nil
	default:
		return gomail.NoTLS, fmt.Errorf("unknown tls policy %q", name)
	}
}
