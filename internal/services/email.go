package services

import (
	"context"
	"fmt"
	"log/slog"

	"confreg/internal/domain"
)

type emailService struct {
	mailer   domain.Mailer
	renderer domain.EmailTemplateRenderer
	logger   *slog.Logger
}

// NewEmailService returns an EmailService that uses the given Mailer and template renderer.
func NewEmailService(mailer domain.Mailer, renderer domain.EmailTemplateRenderer, logger *slog.Logger) domain.EmailService {
	return &emailService{mailer: mailer, renderer: renderer, logger: logger}
}

// SendRegistrationConfirmed sends the registration confirmation email using
// the "registration_confirmed" template.
func (s *emailService) SendRegistrationConfirmed(ctx context.Context, data *domain.RegistrationConfirmedEmailData) error {
	if data == nil {
		return fmt.Errorf("registration confirmed data is nil")
	}
	subject, htmlBody, textBody, err := s.renderer.Render("registration_confirmed", data)
	if err != nil {
		return fmt.Errorf("failed to render registration_confirmed template: %w", err)
	}
	if err := s.mailer.Send(data.Email, subject, htmlBody, textBody); err != nil {
		return fmt.Errorf("failed to send registration confirmation email: %w", err)
	}
	s.logger.Info("registration confirmation email sent", "to", data.Email)
	return nil
}

// SendPaymentCreated sends the new-payment email using the "payment_created" template.
func (s *emailService) SendPaymentCreated(ctx context.Context, data *domain.PaymentCreatedEmailData) error {
	if data == nil {
		return fmt.Errorf("payment created data is nil")
	}
	subject, htmlBody, textBody, err := s.renderer.Render("payment_created", data)
	if err != nil {
		return fmt.Errorf("failed to render payment_created template: %w", err)
	}
	if err := s.mailer.Send(data.Email, subject, htmlBody, textBody); err != nil {
		return fmt.Errorf("failed to send payment created email: %w", err)
	}
	s.logger.Info("payment created email sent", "to", data.Email)
	return nil
}
