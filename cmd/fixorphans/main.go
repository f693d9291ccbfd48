package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"

	"confreg/config"
	"confreg/internal/repository/postgres"
	"confreg/internal/services"
)

// fixorphans scans for registrations stuck awaiting payment with no payment
// rows and recreates a pending payment for each from the stored price
// snapshots. Safe to re-run; repaired registrations drop out of the scan.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg.Environment)

	db, err := sql.Open("postgres", cfg.DBUrl)
	if err != nil {
		logger.Error("failed to open database", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		logger.Error("database ping failed", "err", err)
		os.Exit(1)
	}

	registrationRepo := postgres.NewRegistrationRepository(db)
	paymentRepo := postgres.NewPaymentRepository(db)
	txRunner := postgres.NewTxRunner(db)

	repairSvc := services.NewOrphanRepairService(registrationRepo, paymentRepo, txRunner, logger)

	summary, err := repairSvc.RepairOrphanedPayments(ctx)
	if err != nil {
		logger.Error("orphan repair scan failed", "err", err)
		os.Exit(1)
	}

	fmt.Printf("fixed: %d, skipped: %d, failed: %d\n", summary.Fixed, summary.Skipped, summary.Failed)
}
