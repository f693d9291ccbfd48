package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"confreg/internal/domain"
)

// Per-event error messages surfaced in FeeLine.Error.
const (
	feeErrEventNotFound  = "event not found"
	feeErrConfigNotFound = "fee configuration not found"
)

type feeCalculationService struct {
	eventRepo          domain.EventRepository
	feeRepo            domain.FeeRepository
	paymentRepo        domain.PaymentRepository
	mainConferenceCode string
}

// NewFeeCalculationService creates a FeeCalculationService. mainConferenceCode
// designates the flagship event whose attendance unlocks discounted workshop
// rates.
func NewFeeCalculationService(
	eventRepo domain.EventRepository,
	feeRepo domain.FeeRepository,
	paymentRepo domain.PaymentRepository,
	mainConferenceCode string,
) domain.FeeCalculationService {
	return &feeCalculationService{
		eventRepo:          eventRepo,
		feeRepo:            feeRepo,
		paymentRepo:        paymentRepo,
		mainConferenceCode: mainConferenceCode,
	}
}

func (s *feeCalculationService) CalculateFees(
	ctx context.Context,
	category domain.ParticipantCategory,
	eventCodes []string,
	referenceDate time.Time,
	format domain.ParticipationFormat,
	existing *domain.Registration,
) (*domain.FeeResult, error) {
	// Structural problems are caller bugs and fail the whole call. An
	// unknown category is deliberately NOT rejected here: it degrades to a
	// per-event rate lookup miss below.
	codes := normalizeEventCodes(eventCodes)
	if len(codes) == 0 {
		return nil, fmt.Errorf("%w: event code list is empty", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(string(category)) == "" {
		return nil, fmt.Errorf("%w: participant category is empty", domain.ErrInvalidInput)
	}
	if !format.Valid() {
		return nil, fmt.Errorf("%w: unknown participation format %q", domain.ErrInvalidInput, format)
	}

	events, err := s.eventRepo.ListByCodes(ctx, codes)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	eventsByCode := lo.KeyBy(events, func(e *domain.Event) string { return e.Code })

	fees, err := s.feeRepo.ListByEventCodes(ctx, codes)
	if err != nil {
		return nil, fmt.Errorf("list fees: %w", err)
	}
	feesByKey := lo.KeyBy(fees, func(f *domain.Fee) domain.FeeKey { return f.Key() })

	// The bundling discount looks at the union of this call's selection and
	// the events already on the existing registration, so adding a workshop
	// later still prices at the bundle rate when the participant already
	// holds the main conference.
	combined := codes
	if existing != nil {
		combined = lo.Uniq(append(append([]string{}, codes...), existing.EventCodes()...))
	}
	isMainParticipant := lo.Contains(combined, s.mainConferenceCode)

	result := &domain.FeeResult{
		Details:  make([]domain.FeeLine, 0, len(codes)),
		TotalFee: decimal.Zero,
	}

	for _, code := range codes {
		ev, ok := eventsByCode[code]
		if !ok {
			result.Details = append(result.Details, domain.FeeLine{
				EventCode:       code,
				CalculatedPrice: decimal.Zero,
				Error:           feeErrEventNotFound,
			})
			continue
		}

		period := ev.PeriodFor(referenceDate)
		line := domain.FeeLine{
			EventCode: code,
			EventName: ev.Name,
			Period:    period,
		}

		key := domain.FeeKey{
			EventCode: code,
			Category:  category,
			Format:    format,
			Period:    period,
		}

		var fee *domain.Fee
		// The discount flag only applies to satellite events; the main
		// conference itself is always priced from its non-discounted row.
		if isMainParticipant && !ev.IsMainConference {
			key.MainEventDiscount = true
			if f, ok := feesByKey[key]; ok {
				fee = f
				line.DiscountApplied = true
			}
		}
		if fee == nil {
			key.MainEventDiscount = false
			fee = feesByKey[key]
		}
		if fee == nil {
			line.CalculatedPrice = decimal.Zero
			line.Error = feeErrConfigNotFound
			result.Details = append(result.Details, line)
			continue
		}

		line.CalculatedPrice = fee.Price
		result.Details = append(result.Details, line)
		result.TotalFee = result.TotalFee.Add(fee.Price)
	}

	if existing != nil {
		payments, err := s.paymentRepo.ListByRegistrationID(ctx, existing.ID)
		if err != nil {
			return nil, fmt.Errorf("list payments: %w", err)
		}
		totalPaid := domain.TotalPaid(payments)
		amountDue := domain.AmountDue(result.TotalFee, payments)
		result.TotalPaid = &totalPaid
		result.AmountDue = &amountDue
	}

	return result, nil
}

// normalizeEventCodes trims, drops empties, and de-duplicates while keeping
// first-occurrence order.
func normalizeEventCodes(codes []string) []string {
	trimmed := make([]string, 0, len(codes))
	for _, c := range codes {
		if c = strings.TrimSpace(c); c != "" {
			trimmed = append(trimmed, c)
		}
	}
	return lo.Uniq(trimmed)
}
