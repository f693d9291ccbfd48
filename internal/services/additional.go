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

type additionalRegistrationService struct {
	registrationRepo domain.RegistrationRepository
	paymentRepo      domain.PaymentRepository
	userRepo         domain.UserRepository
	feeCalc          domain.FeeCalculationService
	tx               domain.TxRunner
	emailService     domain.EmailService
	logger           *slog.Logger
	now              func() time.Time
}

// NewAdditionalRegistrationService creates an AdditionalRegistrationService
// with the given collaborators.
func NewAdditionalRegistrationService(
	registrationRepo domain.RegistrationRepository,
	paymentRepo domain.PaymentRepository,
	userRepo domain.UserRepository,
	feeCalc domain.FeeCalculationService,
	tx domain.TxRunner,
	emailService domain.EmailService,
	logger *slog.Logger,
) domain.AdditionalRegistrationService {
	return &additionalRegistrationService{
		registrationRepo: registrationRepo,
		paymentRepo:      paymentRepo,
		userRepo:         userRepo,
		feeCalc:          feeCalc,
		tx:               tx,
		emailService:     emailService,
		logger:           logger,
		now:              time.Now,
	}
}

func (s *additionalRegistrationService) CalculateAdditionalEventsFees(
	ctx context.Context,
	userID string,
	newEventCodes []string,
	category domain.ParticipantCategory,
	format domain.ParticipationFormat,
) (*domain.AdditionalFeeQuote, error) {
	reg, err := s.registrationRepo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &domain.AdditionalFeeQuote{
				CanRegister: false,
				Message:     "no existing registration found",
			}, nil
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return s.quoteForRegistration(ctx, reg, userID, newEventCodes, category, format)
}

// quoteForRegistration prices newEventCodes against an already-loaded
// registration. The create flow passes a row-locked registration here so the
// quote reflects the event set as of the lock.
func (s *additionalRegistrationService) quoteForRegistration(
	ctx context.Context,
	reg *domain.Registration,
	userID string,
	newEventCodes []string,
	category domain.ParticipantCategory,
	format domain.ParticipationFormat,
) (*domain.AdditionalFeeQuote, error) {
	settledEvents, err := s.paymentRepo.ListSettledEventsByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list settled events: %w", err)
	}
	paidCodes := lo.Uniq(lo.Map(settledEvents, func(ev *domain.PaymentEvent, _ int) string {
		return ev.EventCode
	}))

	existingCodes := reg.EventCodes()
	uniqueNew := lo.Without(normalizeEventCodes(newEventCodes), existingCodes...)

	// Events covered by a settled payment are immutable and non-refundable;
	// asking for one again fails the whole request fast.
	if blocked := lo.Intersect(uniqueNew, paidCodes); len(blocked) > 0 {
		return &domain.AdditionalFeeQuote{
			CanRegister:   false,
			BlockedEvents: blocked,
			Message:       "some events are already paid and cannot be modified; paid events are non-refundable",
		}, nil
	}
	if len(uniqueNew) == 0 {
		return &domain.AdditionalFeeQuote{
			CanRegister: false,
			Message:     "all selected events are already registered",
		}, nil
	}

	// Price the union so the bundle discount sees the combined event set.
	allCodes := append(append([]string{}, existingCodes...), uniqueNew...)
	feeResult, err := s.feeCalc.CalculateFees(ctx, category, allCodes, s.now(), format, nil)
	if err != nil {
		return nil, fmt.Errorf("calculate fees: %w", err)
	}
	if feeResult.HasErrors() {
		return &domain.AdditionalFeeQuote{
			CanRegister:   false,
			BlockedEvents: feeResult.ErroredEventCodes(),
			Message:       "some events could not be priced",
		}, nil
	}

	// What was already paid, per event, through settled payments.
	paidByEvent := make(map[string]decimal.Decimal, len(settledEvents))
	for _, ev := range settledEvents {
		paidByEvent[ev.EventCode] = paidByEvent[ev.EventCode].Add(ev.IndividualPrice)
	}

	// Amount still owed across the whole set: per event, only the part not
	// yet covered by settled payments is due.
	difference := decimal.Zero
	for _, d := range feeResult.Details {
		owed := d.CalculatedPrice.Sub(paidByEvent[d.EventCode])
		if owed.IsPositive() {
			difference = difference.Add(owed)
		}
	}

	newDetails := lo.Filter(feeResult.Details, func(d domain.FeeLine, _ int) bool {
		return lo.Contains(uniqueNew, d.EventCode)
	})
	totalNewFee := decimal.Zero
	for _, d := range newDetails {
		totalNewFee = totalNewFee.Add(d.CalculatedPrice)
	}

	message := "selected events are free"
	if difference.IsPositive() {
		message = "additional payment required for new events"
	}
	return &domain.AdditionalFeeQuote{
		CanRegister:     true,
		TotalNewFee:     totalNewFee,
		DifferenceToPay: difference,
		Details:         newDetails,
		Message:         message,
	}, nil
}

func (s *additionalRegistrationService) CreateAdditionalRegistration(
	ctx context.Context,
	userID string,
	newEventCodes []string,
	category domain.ParticipantCategory,
	format domain.ParticipationFormat,
	paymentMethod string,
) (*domain.AdditionalRegistrationResult, error) {
	var (
		payment *domain.Payment
		quote   *domain.AdditionalFeeQuote
	)

	// Pricing, payment creation, and event attachment are one unit: a
	// participant must never end up with events attached but no payment
	// record, or vice versa. The row lock serializes concurrent requests for
	// the same registration; the loser re-reads after the winner commits and
	// its events drop out as already registered.
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		reg, err := s.registrationRepo.GetByUserIDForUpdate(ctx, userID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				quote = &domain.AdditionalFeeQuote{
					CanRegister: false,
					Message:     "no existing registration found",
				}
				return nil
			}
			return fmt.Errorf("get registration: %w", err)
		}

		quote, err = s.quoteForRegistration(ctx, reg, userID, newEventCodes, category, format)
		if err != nil {
			return err
		}
		if !quote.CanRegister {
			return nil
		}

		payment = &domain.Payment{
			RegistrationID: reg.ID,
			UserID:         userID,
			Reference:      domain.GeneratePaymentReference(),
		}
		if quote.DifferenceToPay.IsPositive() {
			payment.Method = paymentMethod
			payment.Status = domain.PaymentStatusPending
			payment.Amount = quote.DifferenceToPay
		} else {
			// Free tier: nothing to collect, record a settled zero payment
			// so the events still trace back to a payment row.
			payment.Method = "none"
			payment.Status = domain.PaymentStatusPaid
			payment.Amount = decimal.Zero
		}
		if err := s.paymentRepo.Create(ctx, payment); err != nil {
			return fmt.Errorf("create payment: %w", err)
		}

		for _, d := range quote.Details {
			price := d.CalculatedPrice
			if !quote.DifferenceToPay.IsPositive() {
				price = decimal.Zero
			}
			if err := s.paymentRepo.AttachEvent(ctx, payment.ID, &domain.PaymentEvent{
				EventCode:       d.EventCode,
				IndividualPrice: price,
				RegistrationID:  reg.ID,
			}); err != nil {
				return fmt.Errorf("attach event %s to payment: %w", d.EventCode, err)
			}
			if err := s.registrationRepo.AttachEvent(ctx, reg.ID, &domain.RegistrationEvent{
				EventCode:           d.EventCode,
				PriceAtRegistration: d.CalculatedPrice,
			}); err != nil {
				return fmt.Errorf("attach event %s to registration: %w", d.EventCode, err)
			}
		}

		if quote.DifferenceToPay.IsPositive() {
			if err := s.registrationRepo.UpdatePaymentStatus(ctx, reg.ID, domain.RegistrationAwaitingPayment); err != nil {
				return fmt.Errorf("update registration payment status: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !quote.CanRegister {
		return &domain.AdditionalRegistrationResult{
			Success: false,
			Message: quote.Message,
		}, nil
	}

	s.logger.Info("additional registration created",
		"user_id", userID,
		"new_events", newEventCodes,
		"payment_id", payment.ID,
		"amount", quote.DifferenceToPay.String(),
	)
	s.notifyPaymentCreated(userID, payment, quote)

	message := "additional registration completed successfully"
	if quote.DifferenceToPay.IsPositive() {
		message = "additional registration created; payment required"
	}
	return &domain.AdditionalRegistrationResult{
		Success: true,
		Payment: payment,
		Message: message,
	}, nil
}

// notifyPaymentCreated dispatches the new-payment email after the transaction
// has committed. Failures are logged and never surfaced: a notification
// problem must not fail an already-persisted registration.
func (s *additionalRegistrationService) notifyPaymentCreated(userID string, payment *domain.Payment, quote *domain.AdditionalFeeQuote) {
	if s.emailService == nil {
		return
	}
	go func() {
		ctx := context.Background()
		user, err := s.userRepo.GetByID(ctx, userID)
		if err != nil {
			s.logger.Error("payment email: get user", "user_id", userID, "err", err)
			return
		}
		names := lo.Map(quote.Details, func(d domain.FeeLine, _ int) string { return d.EventName })
		data := &domain.PaymentCreatedEmailData{
			Email:            user.Email,
			FullName:         user.Name + " " + user.LastName,
			EventNames:       names,
			Amount:           payment.Amount.StringFixed(2),
			PaymentReference: payment.Reference,
		}
		if err := s.emailService.SendPaymentCreated(ctx, data); err != nil {
			s.logger.Error("payment email: send", "user_id", userID, "payment_id", payment.ID, "err", err)
		}
	}()
}

func (s *additionalRegistrationService) CanUserRegisterForEvents(
	ctx context.Context,
	userID string,
	eventCodes []string,
) (*domain.RegistrationEligibility, error) {
	settledEvents, err := s.paymentRepo.ListSettledEventsByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list settled events: %w", err)
	}
	paidCodes := lo.Uniq(lo.Map(settledEvents, func(ev *domain.PaymentEvent, _ int) string {
		return ev.EventCode
	}))

	if blocked := lo.Intersect(normalizeEventCodes(eventCodes), paidCodes); len(blocked) > 0 {
		return &domain.RegistrationEligibility{
			CanRegister:   false,
			Message:       "some events are already paid and cannot be modified; paid events are non-refundable",
			BlockedEvents: blocked,
		}, nil
	}
	return &domain.RegistrationEligibility{
		CanRegister: true,
		Message:     "can register for all selected events",
	}, nil
}

func (s *additionalRegistrationService) UserAccessibleEvents(ctx context.Context, userID string) ([]string, error) {
	settledEvents, err := s.paymentRepo.ListSettledEventsByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list settled events: %w", err)
	}
	return lo.Uniq(lo.Map(settledEvents, func(ev *domain.PaymentEvent, _ int) string {
		return ev.EventCode
	})), nil
}
