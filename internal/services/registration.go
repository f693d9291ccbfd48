package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"confreg/internal/domain"
)

type registrationService struct {
	registrationRepo domain.RegistrationRepository
	paymentRepo      domain.PaymentRepository
	feeCalc          domain.FeeCalculationService
	tx               domain.TxRunner
	emailService     domain.EmailService
	logger           *slog.Logger
	now              func() time.Time
}

// NewRegistrationService creates the signup-flow RegistrationService.
func NewRegistrationService(
	registrationRepo domain.RegistrationRepository,
	paymentRepo domain.PaymentRepository,
	feeCalc domain.FeeCalculationService,
	tx domain.TxRunner,
	emailService domain.EmailService,
	logger *slog.Logger,
) domain.RegistrationService {
	return &registrationService{
		registrationRepo: registrationRepo,
		paymentRepo:      paymentRepo,
		feeCalc:          feeCalc,
		tx:               tx,
		emailService:     emailService,
		logger:           logger,
		now:              time.Now,
	}
}

func (s *registrationService) CreateRegistration(ctx context.Context, input domain.CreateRegistrationInput) (*domain.Registration, *domain.Payment, error) {
	if len(input.EventCodes) == 0 {
		return nil, nil, fmt.Errorf("%w: event code list is empty", domain.ErrInvalidInput)
	}
	if !input.Category.Valid() {
		return nil, nil, fmt.Errorf("%w: unknown participant category %q", domain.ErrInvalidInput, input.Category)
	}
	if !input.Format.Valid() {
		return nil, nil, fmt.Errorf("%w: unknown participation format %q", domain.ErrInvalidInput, input.Format)
	}

	if _, err := s.registrationRepo.GetByUserID(ctx, input.UserID); err == nil {
		return nil, nil, domain.ErrAlreadyRegistered
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, nil, fmt.Errorf("get registration: %w", err)
	}

	feeResult, err := s.feeCalc.CalculateFees(ctx, input.Category, input.EventCodes, s.now(), input.Format, nil)
	if err != nil {
		return nil, nil, err
	}
	if feeResult.HasErrors() {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrUnpricedEvents, feeResult.ErroredEventCodes())
	}

	reg := &domain.Registration{
		UserID:           input.UserID,
		FullName:         input.FullName,
		Email:            input.Email,
		CategorySnapshot: input.Category,
		Format:           input.Format,
	}
	var payment *domain.Payment

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		reg.PaymentStatus = domain.RegistrationFree
		if feeResult.TotalFee.IsPositive() {
			reg.PaymentStatus = domain.RegistrationAwaitingPayment
		}
		if err := s.registrationRepo.Create(ctx, reg); err != nil {
			return fmt.Errorf("create registration: %w", err)
		}

		for _, d := range feeResult.Details {
			if err := s.registrationRepo.AttachEvent(ctx, reg.ID, &domain.RegistrationEvent{
				EventCode:           d.EventCode,
				PriceAtRegistration: d.CalculatedPrice,
			}); err != nil {
				return fmt.Errorf("attach event %s: %w", d.EventCode, err)
			}
		}

		payment = &domain.Payment{
			RegistrationID: reg.ID,
			UserID:         input.UserID,
			Reference:      domain.GeneratePaymentReference(),
		}
		if feeResult.TotalFee.IsPositive() {
			payment.Method = input.PaymentMethod
			payment.Status = domain.PaymentStatusPending
			payment.Amount = feeResult.TotalFee
		} else {
			payment.Method = "none"
			payment.Status = domain.PaymentStatusPaid
			payment.Amount = decimal.Zero
		}
		if err := s.paymentRepo.Create(ctx, payment); err != nil {
			return fmt.Errorf("create payment: %w", err)
		}

		for _, d := range feeResult.Details {
			if err := s.paymentRepo.AttachEvent(ctx, payment.ID, &domain.PaymentEvent{
				EventCode:       d.EventCode,
				IndividualPrice: d.CalculatedPrice,
				RegistrationID:  reg.ID,
			}); err != nil {
				return fmt.Errorf("attach event %s to payment: %w", d.EventCode, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("registration created",
		"registration_id", reg.ID,
		"user_id", input.UserID,
		"events", input.EventCodes,
		"total_fee", feeResult.TotalFee.String(),
	)
	s.notifyRegistrationConfirmed(input, reg, payment, feeResult)

	return reg, payment, nil
}

func (s *registrationService) GetMyRegistration(ctx context.Context, userID string) (*domain.Registration, error) {
	reg, err := s.registrationRepo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNoRegistration
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return reg, nil
}

// notifyRegistrationConfirmed dispatches the confirmation email after the
// transaction committed; send failures are logged, never propagated.
func (s *registrationService) notifyRegistrationConfirmed(input domain.CreateRegistrationInput, reg *domain.Registration, payment *domain.Payment, feeResult *domain.FeeResult) {
	if s.emailService == nil {
		return
	}
	go func() {
		names := lo.Map(feeResult.Details, func(d domain.FeeLine, _ int) string { return d.EventName })
		data := &domain.RegistrationConfirmedEmailData{
			Email:            input.Email,
			FullName:         input.FullName,
			EventNames:       names,
			TotalFee:         feeResult.TotalFee.StringFixed(2),
			PaymentReference: payment.Reference,
			AmountDue:        payment.Amount.StringFixed(2),
		}
		if err := s.emailService.SendRegistrationConfirmed(context.Background(), data); err != nil {
			s.logger.Error("registration email: send", "registration_id", reg.ID, "err", err)
		}
	}()
}
