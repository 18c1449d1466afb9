package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSettlement(status SettlementStatus) *Settlement {
	s := &Settlement{
		SettlementNo:     "STL1",
		SellerID:         "S1",
		TotalOrderAmount: decimal.NewFromInt(10000),
		Status:           status,
	}
	s.Recalculate()
	return s
}

func TestSettlementRecalculate(t *testing.T) {
	s := &Settlement{
		TotalOrderAmount:  decimal.NewFromInt(10000),
		TotalCommission:   decimal.NewFromInt(800),
		TotalDeliveryFee:  decimal.NewFromInt(200),
		TotalRefundAmount: decimal.NewFromInt(300),
		TotalCancelAmount: decimal.NewFromInt(100),
		AdjustmentAmount:  decimal.NewFromInt(50),
	}
	s.Recalculate()
	assert.True(t, s.FinalSettlementAmount.Equal(decimal.NewFromInt(8650)), s.FinalSettlementAmount.String())
}

func TestSettlementProcess(t *testing.T) {
	t.Run("pending recomputes commission at half percent precision", func(t *testing.T) {
		s := newSettlement(StatusPending)
		s.TotalOrderAmount = decimal.NewFromInt(9999)
		require.NoError(t, s.Process(decimal.NewFromFloat(10.5)))

		assert.Equal(t, StatusCalculating, s.Status)
		// 9999 * 10.5% = 1049.895 -> 1049.90
		assert.True(t, s.TotalCommission.Equal(decimal.NewFromFloat(1049.90)), s.TotalCommission.String())
		assert.True(t, s.FinalSettlementAmount.Equal(decimal.NewFromFloat(8949.10)), s.FinalSettlementAmount.String())
		assert.Nil(t, s.SettledAt)
	})

	for _, status := range []SettlementStatus{StatusCalculating, StatusCompleted, StatusCancelled, StatusOnHold} {
		t.Run("rejected from "+string(status), func(t *testing.T) {
			s := newSettlement(status)
			assert.ErrorIs(t, s.Process(decimal.NewFromInt(10)), ErrInvalidStatus)
		})
	}
}

func TestSettlementComplete(t *testing.T) {
	at := time.Date(2026, 2, 5, 9, 0, 0, 0, time.UTC)

	t.Run("calculating completes with settled at", func(t *testing.T) {
		s := newSettlement(StatusCalculating)
		require.NoError(t, s.Complete(at))
		assert.Equal(t, StatusCompleted, s.Status)
		require.NotNil(t, s.SettledAt)
		assert.True(t, s.SettledAt.Equal(at))
	})

	for _, status := range []SettlementStatus{StatusPending, StatusCompleted, StatusCancelled, StatusOnHold} {
		t.Run("rejected from "+string(status), func(t *testing.T) {
			s := newSettlement(status)
			assert.ErrorIs(t, s.Complete(at), ErrInvalidStatus)
		})
	}
}

func TestSettlementHoldUnhold(t *testing.T) {
	t.Run("pending and calculating can be held", func(t *testing.T) {
		for _, status := range []SettlementStatus{StatusPending, StatusCalculating} {
			s := newSettlement(status)
			require.NoError(t, s.Hold("suspicious volume"))
			assert.Equal(t, StatusOnHold, s.Status)
			assert.Equal(t, "suspicious volume", s.Memo)
		}
	})

	t.Run("hold keeps existing memo when blank", func(t *testing.T) {
		s := newSettlement(StatusPending)
		s.Memo = "original note"
		require.NoError(t, s.Hold(""))
		assert.Equal(t, "original note", s.Memo)
	})

	t.Run("completed cannot be held", func(t *testing.T) {
		s := newSettlement(StatusCompleted)
		assert.ErrorIs(t, s.Hold(""), ErrInvalidStatus)
	})

	t.Run("unhold returns to pending", func(t *testing.T) {
		s := newSettlement(StatusOnHold)
		require.NoError(t, s.Unhold())
		assert.Equal(t, StatusPending, s.Status)
	})

	t.Run("unhold rejected off hold", func(t *testing.T) {
		s := newSettlement(StatusPending)
		assert.ErrorIs(t, s.Unhold(), ErrInvalidStatus)
	})
}

func TestSettlementCancel(t *testing.T) {
	s := newSettlement(StatusCalculating)
	require.NoError(t, s.Complete(time.Now()))
	require.NoError(t, s.Cancel("chargeback"))
	assert.Equal(t, StatusCancelled, s.Status)
	assert.Nil(t, s.SettledAt)
	assert.Equal(t, "chargeback", s.Memo)

	assert.ErrorIs(t, s.Cancel("again"), ErrInvalidStatus)
}

func TestSettlementDeletable(t *testing.T) {
	tests := []struct {
		status SettlementStatus
		want   bool
	}{
		{StatusPending, true},
		{StatusOnHold, true},
		{StatusCalculating, false},
		{StatusCompleted, false},
		{StatusCancelled, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, newSettlement(tt.status).Deletable(), string(tt.status))
	}
}

func TestSettlementForceStatus(t *testing.T) {
	at := time.Date(2026, 2, 5, 9, 0, 0, 0, time.UTC)

	t.Run("settled at follows target status", func(t *testing.T) {
		s := newSettlement(StatusCancelled)
		require.NoError(t, s.ForceStatus(StatusCompleted, "ops override", at))
		assert.Equal(t, StatusCompleted, s.Status)
		require.NotNil(t, s.SettledAt)

		require.NoError(t, s.ForceStatus(StatusOnHold, "", at))
		assert.Nil(t, s.SettledAt)
		assert.Equal(t, "ops override", s.Memo)
	})

	t.Run("unknown status rejected", func(t *testing.T) {
		s := newSettlement(StatusPending)
		assert.ErrorIs(t, s.ForceStatus(SettlementStatus("ARCHIVED"), "", at), ErrUnknownStatus)
	})
}

func TestNewSettlementItem(t *testing.T) {
	item := NewSettlementItem(7, 70, "coat", "SKU-coat", "FASHION",
		2, decimal.NewFromInt(5000), decimal.NewFromInt(10000), decimal.NewFromInt(8),
		"DELIVERED", "COMPLETED")

	assert.True(t, item.CommissionAmount.Equal(decimal.NewFromInt(800)), item.CommissionAmount.String())
	assert.True(t, item.SettlementAmount.Equal(decimal.NewFromInt(9200)), item.SettlementAmount.String())
	assert.True(t, item.DeliveryFee.IsZero())
	assert.Equal(t, uint(7), item.OrderID)
	assert.Equal(t, uint(70), item.OrderItemID)
	assert.Equal(t, "FASHION", item.CategoryCode)
}

func TestPeriodValidate(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("valid monthly period", func(t *testing.T) {
		p := &SettlementPeriod{PeriodType: PeriodTypeMonthly, StartDate: start, EndDate: start.AddDate(0, 1, -1)}
		assert.NoError(t, p.Validate())
	})

	t.Run("unknown type", func(t *testing.T) {
		p := &SettlementPeriod{PeriodType: "DAILY", StartDate: start, EndDate: start.AddDate(0, 1, 0)}
		assert.ErrorIs(t, p.Validate(), ErrInvalidPeriodType)
	})

	t.Run("inverted range", func(t *testing.T) {
		p := &SettlementPeriod{PeriodType: PeriodTypeWeekly, StartDate: start, EndDate: start.AddDate(0, 0, -1)}
		assert.ErrorIs(t, p.Validate(), ErrInvalidPeriodRange)
	})
}
