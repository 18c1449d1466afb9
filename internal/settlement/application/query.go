package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/wyfcoding/marketsettlement/internal/settlement/domain"
)

// QueryService 结算查询服务，只读
type QueryService struct {
	repo      domain.SettlementRepository
	summaries domain.SummaryReadRepository
	logger    *slog.Logger
	now       func() time.Time
}

// NewQueryService 创建结算查询服务实例
// summaries 可以为 nil，此时汇总每次直接落库聚合
func NewQueryService(repo domain.SettlementRepository, summaries domain.SummaryReadRepository, logger *slog.Logger) *QueryService {
	return &QueryService{
		repo:      repo,
		summaries: summaries,
		logger:    logger,
		now:       time.Now,
	}
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// List 分页查询结算单列表
func (s *QueryService) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Settlement, int64, error) {
	filter.Limit, filter.Offset = normalizePage(filter.Limit, filter.Offset)
	return s.repo.List(ctx, filter)
}

// Get 查询结算单详情（含周期与明细）
func (s *QueryService) Get(ctx context.Context, id uint) (*domain.Settlement, error) {
	settlement, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if settlement == nil {
		return nil, domain.ErrSettlementNotFound
	}
	return settlement, nil
}

// ListBySeller 查询卖家结算历史
func (s *QueryService) ListBySeller(ctx context.Context, sellerID string, status domain.SettlementStatus, limit, offset int) ([]*domain.Settlement, int64, error) {
	limit, offset = normalizePage(limit, offset)
	return s.repo.ListBySeller(ctx, sellerID, status, limit, offset)
}

// AggregateSellerProducts 卖家维度按商品聚合
func (s *QueryService) AggregateSellerProducts(ctx context.Context, query domain.SellerProductQuery) ([]*domain.ProductAggregate, int64, error) {
	query.Limit, query.Offset = normalizePage(query.Limit, query.Offset)
	return s.repo.AggregateSellerProducts(ctx, query)
}

// GetSellerSummary 查询卖家结算汇总
// 优先读 Redis 读模型，未命中时落库聚合并回填
func (s *QueryService) GetSellerSummary(ctx context.Context, sellerID string) (*domain.SellerSummary, error) {
	if s.summaries != nil {
		summary, err := s.summaries.Get(ctx, sellerID)
		if err != nil {
			s.logger.WarnContext(ctx, "seller summary cache read failed", "seller_id", sellerID, "error", err)
		} else if summary != nil {
			return summary, nil
		}
	}

	summary, err := s.repo.SummarizeSeller(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	summary.RefreshedAt = s.now()

	if s.summaries != nil {
		if err := s.summaries.Save(ctx, summary); err != nil {
			s.logger.WarnContext(ctx, "seller summary cache write failed", "seller_id", sellerID, "error", err)
		}
	}
	return summary, nil
}
