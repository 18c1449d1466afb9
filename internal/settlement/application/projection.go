package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/wyfcoding/marketsettlement/internal/settlement/domain"
)

// ProjectionService 结算读模型投影服务
// 消费结算事件，刷新卖家汇总读模型
type ProjectionService struct {
	repo      domain.SettlementRepository
	summaries domain.SummaryReadRepository
	logger    *slog.Logger
	now       func() time.Time
}

// NewProjectionService 创建投影服务实例
func NewProjectionService(repo domain.SettlementRepository, summaries domain.SummaryReadRepository, logger *slog.Logger) *ProjectionService {
	return &ProjectionService{
		repo:      repo,
		summaries: summaries,
		logger:    logger,
		now:       time.Now,
	}
}

// RefreshSellerSummary 重新聚合并回写卖家汇总
func (s *ProjectionService) RefreshSellerSummary(ctx context.Context, sellerID string) error {
	summary, err := s.repo.SummarizeSeller(ctx, sellerID)
	if err != nil {
		return err
	}
	summary.RefreshedAt = s.now()

	if err := s.summaries.Save(ctx, summary); err != nil {
		s.logger.ErrorContext(ctx, "failed to save seller summary projection",
			"seller_id", sellerID, "error", err)
		return err
	}
	return nil
}
