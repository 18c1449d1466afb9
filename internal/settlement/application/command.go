package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/marketsettlement/internal/settlement/domain"
	"github.com/wyfcoding/pkg/contextx"
	"github.com/wyfcoding/pkg/idgen"
)

// BatchResult 批量状态操作的执行结果
// 不满足来源状态前置条件的 id 不视为错误，记入 SkippedIDs 供审计
type BatchResult struct {
	RequestedCount int    `json:"requested_count"`
	AffectedCount  int    `json:"affected_count"`
	SkippedIDs     []uint `json:"skipped_ids"`
}

// CommandService 结算生命周期命令服务
// 所有批量状态迁移在单个事务内全量生效或全量回滚
type CommandService struct {
	repo      domain.SettlementRepository
	periods   domain.PeriodRepository
	publisher domain.EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewCommandService 创建结算命令服务实例
func NewCommandService(
	repo domain.SettlementRepository,
	periods domain.PeriodRepository,
	publisher domain.EventPublisher,
	logger *slog.Logger,
) *CommandService {
	return &CommandService{
		repo:      repo,
		periods:   periods,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// transition 通用批量迁移：加载、按来源状态过滤、事务内更新并发事件
func (s *CommandService) transition(ctx context.Context, ids []uint, apply func(*domain.Settlement) error) (*BatchResult, error) {
	if len(ids) == 0 {
		return nil, domain.ErrEmptySettlementIDs
	}

	result := &BatchResult{RequestedCount: len(ids)}
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		settlements, err := s.repo.FindByIDs(txCtx, ids)
		if err != nil {
			return err
		}

		found := make(map[uint]bool, len(settlements))
		tx := contextx.GetTx(txCtx)
		type change struct {
			settlement *domain.Settlement
			from       domain.SettlementStatus
		}
		var eligible []change

		for _, settlement := range settlements {
			found[settlement.ID] = true
			from := settlement.Status
			if err := apply(settlement); err != nil {
				if errors.Is(err, domain.ErrInvalidStatus) {
					result.SkippedIDs = append(result.SkippedIDs, settlement.ID)
					continue
				}
				return err
			}
			eligible = append(eligible, change{settlement: settlement, from: from})
		}
		for _, id := range ids {
			if !found[id] {
				result.SkippedIDs = append(result.SkippedIDs, id)
			}
		}

		if len(eligible) == 0 {
			return domain.ErrNoEligibleSettlements
		}

		for _, ch := range eligible {
			if err := s.repo.Update(txCtx, ch.settlement); err != nil {
				return err
			}
			event := domain.SettlementStatusChangedEvent{
				SettlementID: ch.settlement.ID,
				SellerID:     ch.settlement.SellerID,
				FromStatus:   string(ch.from),
				ToStatus:     string(ch.settlement.Status),
				Timestamp:    s.now(),
			}
			if err := s.publisher.PublishInTx(txCtx, tx, domain.SettlementStatusChangedEventType, ch.settlement.SellerID, event); err != nil {
				return err
			}
		}
		result.AffectedCount = len(eligible)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Process 批量进入计算中：按给定佣金率重算金额，PENDING -> CALCULATING
func (s *CommandService) Process(ctx context.Context, ids []uint, rate decimal.Decimal) (*BatchResult, error) {
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(100)) {
		return nil, domain.ErrInvalidCommissionRate
	}
	result, err := s.transition(ctx, ids, func(st *domain.Settlement) error {
		return st.Process(rate)
	})
	if err == nil {
		s.logger.InfoContext(ctx, "settlements processed",
			"affected", result.AffectedCount, "rate", rate.String())
	}
	return result, err
}

// Complete 批量完成：CALCULATING -> COMPLETED，记录交收时间
func (s *CommandService) Complete(ctx context.Context, ids []uint) (*BatchResult, error) {
	at := s.now()
	return s.transition(ctx, ids, func(st *domain.Settlement) error {
		return st.Complete(at)
	})
}

// Hold 批量挂起：PENDING/CALCULATING -> ON_HOLD
func (s *CommandService) Hold(ctx context.Context, ids []uint, memo string) (*BatchResult, error) {
	return s.transition(ctx, ids, func(st *domain.Settlement) error {
		return st.Hold(memo)
	})
}

// Unhold 批量解挂：ON_HOLD -> PENDING
func (s *CommandService) Unhold(ctx context.Context, ids []uint) (*BatchResult, error) {
	return s.transition(ctx, ids, func(st *domain.Settlement) error {
		return st.Unhold()
	})
}

// Cancel 批量取消：COMPLETED -> CANCELLED
func (s *CommandService) Cancel(ctx context.Context, ids []uint, memo string) (*BatchResult, error) {
	return s.transition(ctx, ids, func(st *domain.Settlement) error {
		return st.Cancel(memo)
	})
}

// Delete 批量物理删除，仅 PENDING/ON_HOLD 可删，明细级联清理
func (s *CommandService) Delete(ctx context.Context, ids []uint) (*BatchResult, error) {
	if len(ids) == 0 {
		return nil, domain.ErrEmptySettlementIDs
	}

	result := &BatchResult{RequestedCount: len(ids)}
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		settlements, err := s.repo.FindByIDs(txCtx, ids)
		if err != nil {
			return err
		}

		found := make(map[uint]bool, len(settlements))
		var deletable []uint
		for _, settlement := range settlements {
			found[settlement.ID] = true
			if settlement.Deletable() {
				deletable = append(deletable, settlement.ID)
			} else {
				result.SkippedIDs = append(result.SkippedIDs, settlement.ID)
			}
		}
		for _, id := range ids {
			if !found[id] {
				result.SkippedIDs = append(result.SkippedIDs, id)
			}
		}

		if len(deletable) == 0 {
			return domain.ErrNoEligibleSettlements
		}

		affected, err := s.repo.DeleteByIDs(txCtx, deletable)
		if err != nil {
			return err
		}
		result.AffectedCount = int(affected)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "settlements deleted", "affected", result.AffectedCount)
	return result, nil
}

// ForceSetStatus 管理员手工改写状态，绕过状态机校验
// 这是刻意保留的逃生通道，调用方自行承担状态一致性风险
func (s *CommandService) ForceSetStatus(ctx context.Context, id uint, status domain.SettlementStatus, memo string) (*domain.Settlement, error) {
	settlement, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if settlement == nil {
		return nil, domain.ErrSettlementNotFound
	}

	from := settlement.Status
	if err := settlement.ForceStatus(status, memo, s.now()); err != nil {
		return nil, err
	}

	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Update(txCtx, settlement); err != nil {
			return err
		}
		event := domain.SettlementStatusChangedEvent{
			SettlementID: settlement.ID,
			SellerID:     settlement.SellerID,
			FromStatus:   string(from),
			ToStatus:     string(settlement.Status),
			Timestamp:    s.now(),
		}
		return s.publisher.PublishInTx(txCtx, contextx.GetTx(txCtx), domain.SettlementStatusChangedEventType, settlement.SellerID, event)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WarnContext(ctx, "settlement status forced",
		"settlement_id", id, "from", from, "to", status)
	return settlement, nil
}

// CreateSettlementCommand 手工创建结算单命令
type CreateSettlementCommand struct {
	SettlementPeriodID uint
	SellerID           string
	SellerName         string
	SellerEmail        string
	TotalOrderAmount   decimal.Decimal
	TotalCommission    decimal.Decimal
	TotalDeliveryFee   decimal.Decimal
	TotalRefundAmount  decimal.Decimal
	TotalCancelAmount  decimal.Decimal
	AdjustmentAmount   decimal.Decimal
	CommissionRate     decimal.Decimal
	Memo               string
}

// CreateSettlement 手工创建结算单，应结金额按不变式重算
func (s *CommandService) CreateSettlement(ctx context.Context, cmd CreateSettlementCommand) (*domain.Settlement, error) {
	if cmd.SellerID == "" {
		return nil, fmt.Errorf("seller id is required")
	}
	period, err := s.periods.Get(ctx, cmd.SettlementPeriodID)
	if err != nil {
		return nil, err
	}
	if period == nil {
		return nil, domain.ErrPeriodNotFound
	}

	settlement := &domain.Settlement{
		SettlementNo:       fmt.Sprintf("STL%d", idgen.GenID()),
		SettlementPeriodID: cmd.SettlementPeriodID,
		SellerID:           cmd.SellerID,
		SellerName:         cmd.SellerName,
		SellerEmail:        cmd.SellerEmail,
		TotalOrderAmount:   cmd.TotalOrderAmount,
		TotalCommission:    cmd.TotalCommission,
		TotalDeliveryFee:   cmd.TotalDeliveryFee,
		TotalRefundAmount:  cmd.TotalRefundAmount,
		TotalCancelAmount:  cmd.TotalCancelAmount,
		AdjustmentAmount:   cmd.AdjustmentAmount,
		CommissionRate:     cmd.CommissionRate,
		Status:             domain.StatusPending,
		Memo:               cmd.Memo,
	}
	settlement.Recalculate()

	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Save(txCtx, settlement); err != nil {
			return err
		}
		event := domain.SettlementCalculatedEvent{
			SettlementID:       settlement.ID,
			SettlementNo:       settlement.SettlementNo,
			SettlementPeriodID: settlement.SettlementPeriodID,
			SellerID:           settlement.SellerID,
			FinalAmount:        settlement.FinalSettlementAmount.String(),
			Timestamp:          s.now(),
		}
		return s.publisher.PublishInTx(txCtx, contextx.GetTx(txCtx), domain.SettlementCalculatedEventType, settlement.SellerID, event)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "settlement created manually",
		"settlement_id", settlement.ID, "seller_id", settlement.SellerID)
	return settlement, nil
}

// CreatePeriodCommand 创建结算周期命令
type CreatePeriodCommand struct {
	PeriodType     domain.PeriodType
	StartDate      time.Time
	EndDate        time.Time
	SettlementDate time.Time
}

// CreatePeriod 创建结算周期，初始状态 PREPARING
func (s *CommandService) CreatePeriod(ctx context.Context, cmd CreatePeriodCommand) (*domain.SettlementPeriod, error) {
	period := &domain.SettlementPeriod{
		PeriodType:     cmd.PeriodType,
		StartDate:      cmd.StartDate,
		EndDate:        cmd.EndDate,
		SettlementDate: cmd.SettlementDate,
		Status:         domain.PeriodStatusPreparing,
	}
	if err := period.Validate(); err != nil {
		return nil, err
	}
	if err := s.periods.Save(ctx, period); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "settlement period created",
		"period_id", period.ID, "type", period.PeriodType,
		"start", period.StartDate, "end", period.EndDate)
	return period, nil
}
