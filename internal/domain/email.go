package domain

import "context"

// Mailer defines the contract for sending emails (infrastructure port).
type Mailer interface {
	Send(to, subject, html, text string) error
}

// EmailTemplateRenderer renders email content from a named template with the given data.
type EmailTemplateRenderer interface {
	Render(templateName string, data any) (subject, htmlBody, textBody string, err error)
}

// RegistrationConfirmedEmailData holds data for the registration confirmation email.
type RegistrationConfirmedEmailData struct {
	Email            string
	FullName         string
	EventNames       []string
	TotalFee         string
	PaymentReference string
	AmountDue        string
}

// PaymentCreatedEmailData holds data for the new-payment email sent after an
// additional registration.
type PaymentCreatedEmailData struct {
	Email            string
	FullName         string
	EventNames       []string
	Amount           string
	PaymentReference string
}

// EmailService defines the contract for sending domain-level emails. All
// sends happen after the transactional core commits; a send failure is
// logged by the caller and never rolls anything back.
type EmailService interface {
	SendRegistrationConfirmed(ctx context.Context, data *RegistrationConfirmedEmailData) error
	SendPaymentCreated(ctx context.Context, data *PaymentCreatedEmailData) error
}
