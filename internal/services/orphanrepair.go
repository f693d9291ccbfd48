package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"confreg/internal/domain"
)

type orphanRepairService struct {
	registrationRepo domain.RegistrationRepository
	paymentRepo      domain.PaymentRepository
	tx               domain.TxRunner
	logger           *slog.Logger
}

// NewOrphanRepairService creates the batch service that recreates missing
// payment rows for registrations stuck awaiting payment.
func NewOrphanRepairService(
	registrationRepo domain.RegistrationRepository,
	paymentRepo domain.PaymentRepository,
	tx domain.TxRunner,
	logger *slog.Logger,
) domain.OrphanRepairService {
	return &orphanRepairService{
		registrationRepo: registrationRepo,
		paymentRepo:      paymentRepo,
		tx:               tx,
		logger:           logger,
	}
}

func (s *orphanRepairService) RepairOrphanedPayments(ctx context.Context) (*domain.RepairSummary, error) {
	regs, err := s.registrationRepo.ListAwaitingPaymentWithoutPayments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orphaned registrations: %w", err)
	}

	summary := &domain.RepairSummary{}
	for _, reg := range regs {
		fixed, err := s.repairOne(ctx, reg)
		if err != nil {
			// One registration's failure must not abort the batch.
			s.logger.Error("orphan repair failed", "registration_id", reg.ID, "err", err)
			summary.Failed++
			continue
		}
		if fixed {
			summary.Fixed++
		} else {
			summary.Skipped++
		}
	}

	s.logger.Info("orphan repair finished",
		"fixed", summary.Fixed,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
	)
	return summary, nil
}

// repairOne recreates the missing payment for a single registration inside
// its own transaction. The registration is re-read there because the scan
// result may be stale by the time its row comes up in the batch. The
// obligation is recomputed from the attached events' price snapshots, not a
// fresh rate lookup, so historical pricing holds.
func (s *orphanRepairService) repairOne(ctx context.Context, orphan *domain.Registration) (bool, error) {
	fixed := false
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		reg, err := s.registrationRepo.GetByID(ctx, orphan.ID)
		if err != nil {
			return fmt.Errorf("reload registration: %w", err)
		}
		if reg.PaymentStatus != domain.RegistrationAwaitingPayment {
			s.logger.Warn("registration no longer awaiting payment, skipping",
				"registration_id", reg.ID, "payment_status", reg.PaymentStatus)
			return nil
		}

		total := decimal.Zero
		for _, ev := range reg.Events {
			total = total.Add(ev.PriceAtRegistration)
		}
		if !total.IsPositive() {
			s.logger.Warn("registration awaiting payment has zero total fee, skipping",
				"registration_id", reg.ID)
			return nil
		}

		payment := &domain.Payment{
			RegistrationID: reg.ID,
			UserID:         reg.UserID,
			Reference:      domain.GeneratePaymentReference(),
			Status:         domain.PaymentStatusPending,
			Amount:         total,
		}
		if err := s.paymentRepo.Create(ctx, payment); err != nil {
			return fmt.Errorf("create payment: %w", err)
		}
		s.logger.Info("orphaned payment fixed",
			"registration_id", reg.ID, "amount", total.String())
		fixed = true
		return nil
	})
	return fixed, err
}
