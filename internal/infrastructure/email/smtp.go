package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"chatdesk/internal/application/notification/usecases"
	"chatdesk/internal/shared/config"
	"chatdesk/internal/shared/logger"
)

// dialer is the part of gomail.Dialer the service uses.
type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type SMTPEmailService struct {
	config config.EmailConfig
	dialer dialer
	logger logger.Interface
}

// NewSMTPEmailService creates an SMTP sender from cfg.
func NewSMTPEmailService(cfg config.EmailConfig, logger logger.Interface) *SMTPEmailService {
	return &SMTPEmailService{
		config: cfg,
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword),
		logger: logger,
	}
}

// NewEmailSender returns an SMTP sender, or a logging sender when smtp_host is empty.
func NewEmailSender(cfg config.EmailConfig, logger logger.Interface) usecases.EmailSender {
	if cfg.SMTPHost == "" {
		logger.Warnw("email service not configured, smtp_host is empty; billing emails will only be logged")
		return &LogEmailSender{logger: logger}
	}
	logger.Infow("email service initialized",
		"host", cfg.SMTPHost,
		"port", cfg.SMTPPort,
		"from", cfg.FromAddress,
	)
	return NewSMTPEmailService(cfg, logger)
}

func (s *SMTPEmailService) Send(ctx context.Context, msg usecases.EmailMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	if s.config.FromName != "" {
		m.SetAddressHeader("From", s.config.FromAddress, s.config.FromName)
	} else {
		m.SetHeader("From", s.config.FromAddress)
	}
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.TextBody)
	if msg.HTMLBody != "" {
		m.AddAlternative("text/html", msg.HTMLBody)
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	s.logger.Debugw("email delivered", "to", msg.To, "subject", msg.Subject)
	return nil
}

// LogEmailSender stands in for SMTP in development.
type LogEmailSender struct {
	logger logger.Interface
}

func (s *LogEmailSender) Send(ctx context.Context, msg usecases.EmailMessage) error {
	s.logger.Infow("email not sent, smtp disabled",
		"to", msg.To,
		"subject", msg.Subject,
	)
	return nil
}
