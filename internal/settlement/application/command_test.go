package application

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/marketsettlement/internal/settlement/domain"
)

func seedSettlement(t *testing.T, repo *fakeSettlementRepo, sellerID string, status domain.SettlementStatus, totalOrder decimal.Decimal) *domain.Settlement {
	t.Helper()
	settlement := &domain.Settlement{
		SettlementNo:       "STL-" + sellerID,
		SettlementPeriodID: 1,
		SellerID:           sellerID,
		TotalOrderAmount:   totalOrder,
		TotalCommission:    decimal.Zero,
		Status:             status,
	}
	settlement.Recalculate()
	require.NoError(t, repo.Save(context.Background(), settlement))
	return settlement
}

func newCommandService(repo *fakeSettlementRepo, periods *fakePeriodRepo, publisher *fakePublisher) *CommandService {
	return NewCommandService(repo, periods, publisher, testLogger())
}

func TestCommandServiceProcess(t *testing.T) {
	t.Run("recomputes commission and moves to calculating", func(t *testing.T) {
		repo := newFakeSettlementRepo()
		publisher := &fakePublisher{}
		seeded := seedSettlement(t, repo, "S1", domain.StatusPending, decimal.NewFromInt(9200))

		svc := newCommandService(repo, newFakePeriodRepo(), publisher)
		result, err := svc.Process(context.Background(), []uint{seeded.ID}, decimal.NewFromInt(10))
		require.NoError(t, err)
		assert.Equal(t, 1, result.AffectedCount)
		assert.Empty(t, result.SkippedIDs)

		updated, err := repo.Get(context.Background(), seeded.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCalculating, updated.Status)
		assert.True(t, updated.TotalCommission.Equal(decimal.NewFromInt(920)), updated.TotalCommission.String())
		assert.True(t, updated.FinalSettlementAmount.Equal(decimal.NewFromInt(8280)), updated.FinalSettlementAmount.String())
		assert.Equal(t, 1, publisher.countByTopic(domain.SettlementStatusChangedEventType))
	})

	t.Run("rejects rate outside 0..100", func(t *testing.T) {
		svc := newCommandService(newFakeSettlementRepo(), newFakePeriodRepo(), &fakePublisher{})
		_, err := svc.Process(context.Background(), []uint{1}, decimal.NewFromInt(101))
		assert.ErrorIs(t, err, domain.ErrInvalidCommissionRate)
		_, err = svc.Process(context.Background(), []uint{1}, decimal.NewFromInt(-1))
		assert.ErrorIs(t, err, domain.ErrInvalidCommissionRate)
	})

	t.Run("skips settlements not in pending", func(t *testing.T) {
		repo := newFakeSettlementRepo()
		eligible := seedSettlement(t, repo, "S1", domain.StatusPending, decimal.NewFromInt(100))
		held := seedSettlement(t, repo, "S2", domain.StatusOnHold, decimal.NewFromInt(100))

		svc := newCommandService(repo, newFakePeriodRepo(), &fakePublisher{})
		result, err := svc.Process(context.Background(), []uint{eligible.ID, held.ID, 777}, decimal.NewFromInt(5))
		require.NoError(t, err)
		assert.Equal(t, 3, result.RequestedCount)
		assert.Equal(t, 1, result.AffectedCount)
		assert.ElementsMatch(t, []uint{held.ID, 777}, result.SkippedIDs)
	})
}

func TestCommandServiceTransitions(t *testing.T) {
	t.Run("empty id list", func(t *testing.T) {
		svc := newCommandService(newFakeSettlementRepo(), newFakePeriodRepo(), &fakePublisher{})
		_, err := svc.Complete(context.Background(), nil)
		assert.ErrorIs(t, err, domain.ErrEmptySettlementIDs)
	})

	t.Run("complete requires calculating source", func(t *testing.T) {
		repo := newFakeSettlementRepo()
		pending := seedSettlement(t, repo, "S1", domain.StatusPending, decimal.NewFromInt(100))

		svc := newCommandService(repo, newFakePeriodRepo(), &fakePublisher{})
		_, err := svc.Complete(context.Background(), []uint{pending.ID})
		assert.ErrorIs(t, err, domain.ErrNoEligibleSettlements)

		unchanged, err := repo.Get(context.Background(), pending.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPending, unchanged.Status)
	})

	t.Run("complete stamps settled at", func(t *testing.T) {
		repo := newFakeSettlementRepo()
		calculating := seedSettlement(t, repo, "S1", domain.StatusCalculating, decimal.NewFromInt(100))

		svc := newCommandService(repo, newFakePeriodRepo(), &fakePublisher{})
		result, err := svc.Complete(context.Background(), []uint{calculating.ID})
		require.NoError(t, err)
		assert.Equal(t, 1, result.AffectedCount)

		updated, err := repo.Get(context.Background(), calculating.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCompleted, updated.Status)
		require.NotNil(t, updated.SettledAt)
	})

	t.Run("hold and unhold round trip", func(t *testing.T) {
		repo := newFakeSettlementRepo()
		publisher := &fakePublisher{}
		seeded := seedSettlement(t, repo, "S1", domain.StatusPending, decimal.NewFromInt(100))
		svc := newCommandService(repo, newFakePeriodRepo(), publisher)

		_, err := svc.Hold(context.Background(), []uint{seeded.ID}, "fraud review")
		require.NoError(t, err)
		held, err := repo.Get(context.Background(), seeded.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusOnHold, held.Status)
		assert.Equal(t, "fraud review", held.Memo)

		_, err = svc.Unhold(context.Background(), []uint{seeded.ID})
		require.NoError(t, err)
		released, err := repo.Get(context.Background(), seeded.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPending, released.Status)
		assert.Equal(t, 2, publisher.countByTopic(domain.SettlementStatusChangedEventType))
	})

	t.Run("cancel only from completed", func(t *testing.T) {
		repo := newFakeSettlementRepo()
		completed := seedSettlement(t, repo, "S1", domain.StatusCalculating, decimal.NewFromInt(100))
		svc := newCommandService(repo, newFakePeriodRepo(), &fakePublisher{})

		_, err := svc.Cancel(context.Background(), []uint{completed.ID}, "dispute")
		assert.ErrorIs(t, err, domain.ErrNoEligibleSettlements)

		_, err = svc.Complete(context.Background(), []uint{completed.ID})
		require.NoError(t, err)
		_, err = svc.Cancel(context.Background(), []uint{completed.ID}, "dispute")
		require.NoError(t, err)

		cancelled, err := repo.Get(context.Background(), completed.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCancelled, cancelled.Status)
		assert.Nil(t, cancelled.SettledAt)
	})
}

func TestCommandServiceDelete(t *testing.T) {
	repo := newFakeSettlementRepo()
	pending := seedSettlement(t, repo, "S1", domain.StatusPending, decimal.NewFromInt(100))
	onHold := seedSettlement(t, repo, "S2", domain.StatusOnHold, decimal.NewFromInt(100))
	completed := seedSettlement(t, repo, "S3", domain.StatusCompleted, decimal.NewFromInt(100))

	svc := newCommandService(repo, newFakePeriodRepo(), &fakePublisher{})
	result, err := svc.Delete(context.Background(), []uint{pending.ID, onHold.ID, completed.ID, 888})
	require.NoError(t, err)
	assert.Equal(t, 4, result.RequestedCount)
	assert.Equal(t, 2, result.AffectedCount)
	assert.ElementsMatch(t, []uint{completed.ID, 888}, result.SkippedIDs)

	remaining, err := repo.Get(context.Background(), completed.ID)
	require.NoError(t, err)
	require.NotNil(t, remaining)
	gone, err := repo.Get(context.Background(), pending.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestCommandServiceForceSetStatus(t *testing.T) {
	t.Run("bypasses the state machine", func(t *testing.T) {
		repo := newFakeSettlementRepo()
		publisher := &fakePublisher{}
		cancelled := seedSettlement(t, repo, "S1", domain.StatusCancelled, decimal.NewFromInt(100))

		svc := newCommandService(repo, newFakePeriodRepo(), publisher)
		forced, err := svc.ForceSetStatus(context.Background(), cancelled.ID, domain.StatusCompleted, "manual fix")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCompleted, forced.Status)
		require.NotNil(t, forced.SettledAt)
		assert.Equal(t, "manual fix", forced.Memo)
		assert.Equal(t, 1, publisher.countByTopic(domain.SettlementStatusChangedEventType))

		forced, err = svc.ForceSetStatus(context.Background(), cancelled.ID, domain.StatusPending, "")
		require.NoError(t, err)
		assert.Nil(t, forced.SettledAt)
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		repo := newFakeSettlementRepo()
		seeded := seedSettlement(t, repo, "S1", domain.StatusPending, decimal.NewFromInt(100))

		svc := newCommandService(repo, newFakePeriodRepo(), &fakePublisher{})
		_, err := svc.ForceSetStatus(context.Background(), seeded.ID, domain.SettlementStatus("ARCHIVED"), "")
		assert.ErrorIs(t, err, domain.ErrUnknownStatus)
	})

	t.Run("missing settlement", func(t *testing.T) {
		svc := newCommandService(newFakeSettlementRepo(), newFakePeriodRepo(), &fakePublisher{})
		_, err := svc.ForceSetStatus(context.Background(), 404, domain.StatusPending, "")
		assert.ErrorIs(t, err, domain.ErrSettlementNotFound)
	})
}

func TestCommandServiceCreate(t *testing.T) {
	t.Run("create settlement recalculates final amount", func(t *testing.T) {
		periods := newFakePeriodRepo()
		period := januaryPeriod(t, periods)
		repo := newFakeSettlementRepo()
		publisher := &fakePublisher{}

		svc := newCommandService(repo, periods, publisher)
		settlement, err := svc.CreateSettlement(context.Background(), CreateSettlementCommand{
			SettlementPeriodID: period.ID,
			SellerID:           "S1",
			SellerName:         "Atelier One",
			TotalOrderAmount:   decimal.NewFromInt(10000),
			TotalCommission:    decimal.NewFromInt(800),
			TotalRefundAmount:  decimal.NewFromInt(500),
			AdjustmentAmount:   decimal.NewFromInt(100),
			CommissionRate:     decimal.NewFromInt(8),
		})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPending, settlement.Status)
		assert.True(t, settlement.FinalSettlementAmount.Equal(decimal.NewFromInt(8800)), settlement.FinalSettlementAmount.String())
		assert.Equal(t, 1, publisher.countByTopic(domain.SettlementCalculatedEventType))
	})

	t.Run("create settlement requires existing period", func(t *testing.T) {
		svc := newCommandService(newFakeSettlementRepo(), newFakePeriodRepo(), &fakePublisher{})
		_, err := svc.CreateSettlement(context.Background(), CreateSettlementCommand{
			SettlementPeriodID: 42,
			SellerID:           "S1",
		})
		assert.ErrorIs(t, err, domain.ErrPeriodNotFound)
	})

	t.Run("create period validates range and type", func(t *testing.T) {
		svc := newCommandService(newFakeSettlementRepo(), newFakePeriodRepo(), &fakePublisher{})

		start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		_, err := svc.CreatePeriod(context.Background(), CreatePeriodCommand{
			PeriodType: domain.PeriodType("DAILY"),
			StartDate:  start,
			EndDate:    start.AddDate(0, 1, 0),
		})
		assert.ErrorIs(t, err, domain.ErrInvalidPeriodType)

		_, err = svc.CreatePeriod(context.Background(), CreatePeriodCommand{
			PeriodType: domain.PeriodTypeMonthly,
			StartDate:  start,
			EndDate:    start.AddDate(0, 0, -1),
		})
		assert.ErrorIs(t, err, domain.ErrInvalidPeriodRange)

		period, err := svc.CreatePeriod(context.Background(), CreatePeriodCommand{
			PeriodType:     domain.PeriodTypeMonthly,
			StartDate:      start,
			EndDate:        start.AddDate(0, 1, -1),
			SettlementDate: start.AddDate(0, 1, 5),
		})
		require.NoError(t, err)
		assert.Equal(t, domain.PeriodStatusPreparing, period.Status)
		assert.NotZero(t, period.ID)
	})
}
