package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	orderdomain "github.com/wyfcoding/marketsettlement/internal/order/domain"
	"github.com/wyfcoding/marketsettlement/internal/settlement/domain"
	"github.com/wyfcoding/pkg/contextx"
	"github.com/wyfcoding/pkg/idgen"
)

// RateResolver 佣金率解析接口，由 commission 模块实现
type RateResolver interface {
	ResolveRate(ctx context.Context, sellerID, categoryCode string) (decimal.Decimal, error)
}

// ResolutionMode 佣金率解析口径
// 原始口径只按卖家解析；类目口径按订单项商品类目逐项解析
type ResolutionMode string

const (
	ResolutionModeSeller   ResolutionMode = "seller"
	ResolutionModeCategory ResolutionMode = "category"
)

// CalculationResult 一次结算计算的产出
type CalculationResult struct {
	Period          *domain.SettlementPeriod `json:"period"`
	SettlementCount int                      `json:"settlement_count"`
	Settlements     []*domain.Settlement     `json:"settlements"`
}

// CalculationService 结算计算引擎
// 按周期聚合已完成订单，按卖家生成结算单
type CalculationService struct {
	periods     domain.PeriodRepository
	settlements domain.SettlementRepository
	orders      orderdomain.OrderReadRepository
	resolver    RateResolver
	publisher   domain.EventPublisher
	mode        ResolutionMode
	logger      *slog.Logger
	now         func() time.Time
}

// NewCalculationService 创建结算计算引擎实例
func NewCalculationService(
	periods domain.PeriodRepository,
	settlements domain.SettlementRepository,
	orders orderdomain.OrderReadRepository,
	resolver RateResolver,
	publisher domain.EventPublisher,
	mode ResolutionMode,
	logger *slog.Logger,
) *CalculationService {
	if mode != ResolutionModeCategory {
		mode = ResolutionModeSeller
	}
	return &CalculationService{
		periods:     periods,
		settlements: settlements,
		orders:      orders,
		resolver:    resolver,
		publisher:   publisher,
		mode:        mode,
		logger:      logger,
		now:         time.Now,
	}
}

// CalculateForPeriod 执行一个结算周期的计算
// 周期抢占用条件更新实现，并发重复触发只有一方生效；
// 所有结算单与周期完成状态在同一事务内落库，失败整体回滚
func (s *CalculationService) CalculateForPeriod(ctx context.Context, periodID uint) (*CalculationResult, error) {
	period, err := s.periods.Get(ctx, periodID)
	if err != nil {
		return nil, err
	}
	if period == nil {
		return nil, domain.ErrPeriodNotFound
	}
	if period.Status != domain.PeriodStatusPreparing {
		return nil, domain.ErrPeriodAlreadyProcessed
	}

	claimed, err := s.periods.ClaimForCalculation(ctx, periodID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, domain.ErrPeriodAlreadyProcessed
	}

	settlements, err := s.buildSettlements(ctx, period)
	if err != nil {
		s.revertPeriod(ctx, periodID)
		return nil, err
	}

	err = s.settlements.WithTx(ctx, func(txCtx context.Context) error {
		tx := contextx.GetTx(txCtx)
		for _, settlement := range settlements {
			if err := s.settlements.Save(txCtx, settlement); err != nil {
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
			if err := s.publisher.PublishInTx(txCtx, tx, domain.SettlementCalculatedEventType, settlement.SellerID, event); err != nil {
				return err
			}
		}
		return s.periods.SetStatus(txCtx, periodID, domain.PeriodStatusCompleted)
	})
	if err != nil {
		s.revertPeriod(ctx, periodID)
		return nil, fmt.Errorf("settlement calculation failed: %w", err)
	}

	period.Status = domain.PeriodStatusCompleted
	s.logger.InfoContext(ctx, "settlement calculation completed",
		"period_id", periodID, "settlement_count", len(settlements))

	return &CalculationResult{
		Period:          period,
		SettlementCount: len(settlements),
		Settlements:     settlements,
	}, nil
}

// revertPeriod 计算失败后的补偿回写，失败只记录日志
func (s *CalculationService) revertPeriod(ctx context.Context, periodID uint) {
	if err := s.periods.SetStatus(ctx, periodID, domain.PeriodStatusPreparing); err != nil {
		s.logger.ErrorContext(ctx, "failed to revert period status after calculation failure",
			"period_id", periodID, "error", err)
	}
}

type sellerItem struct {
	order *orderdomain.Order
	item  orderdomain.OrderItem
}

func (s *CalculationService) buildSettlements(ctx context.Context, period *domain.SettlementPeriod) ([]*domain.Settlement, error) {
	orders, err := s.orders.FindSettleableInRange(ctx, period.StartDate, period.EndDate)
	if err != nil {
		return nil, err
	}

	// 按订单项所属商品的卖家分组，同一订单可贡献到多个卖家
	groups := make(map[string][]sellerItem)
	for _, order := range orders {
		for _, item := range order.Items {
			sellerID := item.Product.SellerID
			groups[sellerID] = append(groups[sellerID], sellerItem{order: order, item: item})
		}
	}

	sellerIDs := make([]string, 0, len(groups))
	for sellerID := range groups {
		sellerIDs = append(sellerIDs, sellerID)
	}
	sort.Strings(sellerIDs)

	settlements := make([]*domain.Settlement, 0, len(sellerIDs))
	for _, sellerID := range sellerIDs {
		settlement, err := s.buildSellerSettlement(ctx, period, sellerID, groups[sellerID])
		if err != nil {
			return nil, err
		}
		settlements = append(settlements, settlement)
	}
	return settlements, nil
}

func (s *CalculationService) buildSellerSettlement(ctx context.Context, period *domain.SettlementPeriod, sellerID string, group []sellerItem) (*domain.Settlement, error) {
	var sellerRate decimal.Decimal
	if s.mode == ResolutionModeSeller {
		rate, err := s.resolver.ResolveRate(ctx, sellerID, "")
		if err != nil {
			return nil, fmt.Errorf("rate resolution failed for seller %s: %w", sellerID, err)
		}
		sellerRate = rate
	}

	totalOrder := decimal.Zero
	totalCommission := decimal.Zero
	totalDelivery := decimal.Zero
	items := make([]domain.SettlementItem, 0, len(group))

	for _, si := range group {
		rate := sellerRate
		if s.mode == ResolutionModeCategory {
			r, err := s.resolver.ResolveRate(ctx, sellerID, si.item.Product.CategoryCode)
			if err != nil {
				return nil, fmt.Errorf("rate resolution failed for seller %s: %w", sellerID, err)
			}
			rate = r
		}

		item := domain.NewSettlementItem(
			si.order.ID, si.item.ID,
			si.item.ProductName, si.item.SkuCode, si.item.Product.CategoryCode,
			si.item.Quantity, si.item.UnitPrice, si.item.TotalPrice, rate,
			si.order.OrderStatus, si.order.PaymentStatus,
		)
		items = append(items, item)

		totalOrder = totalOrder.Add(item.TotalPrice)
		totalCommission = totalCommission.Add(item.CommissionAmount)
		totalDelivery = totalDelivery.Add(item.DeliveryFee)
	}

	commissionRate := sellerRate
	if s.mode == ResolutionModeCategory && totalOrder.IsPositive() {
		// 类目口径下各项费率不一，记录加权实效费率
		commissionRate = totalCommission.Div(totalOrder).Mul(percentBase()).Round(2)
	}

	settlement := &domain.Settlement{
		SettlementNo:       fmt.Sprintf("STL%d", idgen.GenID()),
		SettlementPeriodID: period.ID,
		SellerID:           sellerID,
		TotalOrderAmount:   totalOrder,
		TotalCommission:    totalCommission,
		TotalDeliveryFee:   totalDelivery,
		TotalRefundAmount:  decimal.Zero,
		TotalCancelAmount:  decimal.Zero,
		AdjustmentAmount:   decimal.Zero,
		CommissionRate:     commissionRate,
		Status:             domain.StatusPending,
		Items:              items,
	}
	settlement.Recalculate()

	seller, err := s.orders.GetSeller(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	if seller != nil {
		settlement.SellerName = seller.Name
		settlement.SellerEmail = seller.Email
	}
	return settlement, nil
}

func percentBase() decimal.Decimal {
	return decimal.NewFromInt(100)
}
