// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package email composes and delivers account mails (password reset,
// address verification).
package email

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"codeberg.org/oliverandrich/infographic-api/internal/config"
	"codeberg.org/oliverandrich/infographic-api/internal/models"
	"github.com/wneessen/go-mail"
	"golang.org/x/time/rate"
)

// Message is a composed mail with a plain text body and an HTML alternative.
type Message struct {
	To       string
	Subject  string
	Text     string
	HTML     string
	Language string
}

// Sender delivers composed messages.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// Service composes localized account mails and hands them to a Sender.
type Service struct {
	sender Sender
}

// NewService creates a new email service.
func NewService(sender Sender) *Service {
	return &Service{sender: sender}
}

// SendPasswordReset sends the link that resets the user's password.
func (s *Service) SendPasswordReset(ctx context.Context, user *models.User, resetURL string) error {
	msg, err := compose(ctx, user, "password_reset", resetURL)
	if err != nil {
		return err
	}
	return s.sender.Send(ctx, msg)
}

// SendVerification sends the link that confirms the user's email address.
func (s *Service) SendVerification(ctx context.Context, user *models.User, verifyURL string) error {
	msg, err := compose(ctx, user, "email_verification", verifyURL)
	if err != nil {
		return err
	}
	return s.sender.Send(ctx, msg)
}

// SMTPSender delivers mail through an SMTP relay. Sends are throttled so
// a burst of password resets does not trip the relay's own limits.
type SMTPSender struct {
	cfg     *config.SMTPConfig
	limiter *rate.Limiter
}

// NewSMTPSender creates a sender for the given relay.
func NewSMTPSender(cfg *config.SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("SMTP host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("SMTP from address is required")
	}
	return &SMTPSender{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 5),
	}, nil
}

// Send sends msg via SMTP using go-mail.
func (s *SMTPSender) Send(ctx context.Context, msg *Message) error {
	m, err := s.build(msg)
	if err != nil {
		return err
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for send slot: %w", err)
	}

	client, err := mail.NewClient(s.cfg.Host, s.options()...)
	if err != nil {
		return fmt.Errorf("creating mail client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}

	return nil
}

func (s *SMTPSender) build(msg *Message) (*mail.Msg, error) {
	m := mail.NewMsg()

	if s.cfg.FromName != "" {
		if err := m.FromFormat(s.cfg.FromName, s.cfg.From); err != nil {
			return nil, fmt.Errorf("setting from address: %w", err)
		}
	} else {
		if err := m.From(s.cfg.From); err != nil {
			return nil, fmt.Errorf("setting from address: %w", err)
		}
	}

	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("setting to address: %w", err)
	}

	m.Subject(msg.Subject)
	if msg.Language != "" {
		m.SetGenHeader(mail.HeaderContentLang, msg.Language)
	}
	m.SetBodyString(mail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	}
	return m, nil
}

func (s *SMTPSender) options() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
	}

	// Implicit TLS on 465, STARTTLS elsewhere
	if s.cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
		if s.cfg.Port == 465 {
			opts = append(opts, mail.WithSSL())
		}
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	if s.cfg.Username != "" && s.cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	return opts
}

// LogSender records mails that would have been sent. It is used when no
// SMTP relay is configured. Links are not logged since they carry secrets.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a sender that only logs.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg *Message) error {
	s.logger.Info("email_skipped", "to", msg.To, "subject", msg.Subject, "reason", "smtp_not_configured")
	return nil
}
