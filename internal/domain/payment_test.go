package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestPaymentTotals(t *testing.T) {
	payments := []*Payment{
		{Status: PaymentStatusPaid, Amount: d("600.00")},
		{Status: PaymentStatusConfirmed, Amount: d("100.00")},
		{Status: PaymentStatusPending, Amount: d("200.00")},
		{Status: PaymentStatusPendingApproval, Amount: d("50.00")},
		{Status: PaymentStatusCancelled, Amount: d("999.00")},
		{Status: PaymentStatusRejected, Amount: d("999.00")},
	}

	assert.True(t, d("700.00").Equal(TotalPaid(payments)))
	assert.True(t, d("250.00").Equal(TotalPending(payments)))
}

func TestAmountDue(t *testing.T) {
	tests := []struct {
		name     string
		totalFee string
		payments []*Payment
		want     string
	}{
		{
			name:     "nothing paid",
			totalFee: "1000.00",
			payments: nil,
			want:     "1000.00",
		},
		{
			name:     "partially settled",
			totalFee: "1000.00",
			payments: []*Payment{
				{Status: PaymentStatusPaid, Amount: d("600.00")},
				{Status: PaymentStatusPending, Amount: d("200.00")},
			},
			want: "400.00",
		},
		{
			name:     "overpayment floors at zero",
			totalFee: "1000.00",
			payments: []*Payment{
				{Status: PaymentStatusConfirmed, Amount: d("1500.00")},
			},
			want: "0",
		},
		{
			name:     "cancelled payments never reduce the due amount",
			totalFee: "1000.00",
			payments: []*Payment{
				{Status: PaymentStatusCancelled, Amount: d("1000.00")},
			},
			want: "1000.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AmountDue(d(tt.totalFee), tt.payments)
			assert.True(t, d(tt.want).Equal(got), "want %s got %s", tt.want, got)
		})
	}
}

func TestPaymentStatusClassification(t *testing.T) {
	assert.True(t, PaymentStatusPaid.Settled())
	assert.True(t, PaymentStatusConfirmed.Settled())
	assert.False(t, PaymentStatusPending.Settled())

	assert.True(t, PaymentStatusPending.AwaitingSettlement())
	assert.True(t, PaymentStatusPendingApproval.AwaitingSettlement())
	assert.False(t, PaymentStatusCancelled.AwaitingSettlement())
	assert.False(t, PaymentStatusRejected.AwaitingSettlement())
}

func TestGeneratePaymentReference(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		ref := GeneratePaymentReference()
		require.Regexp(t, `^PAY-\d{8}-[0-9A-F]{6}$`, ref)
		seen[ref] = true
	}
	assert.Greater(t, len(seen), 1, "references should not collide constantly")
}
