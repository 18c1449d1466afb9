package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/marketsettlement/internal/commission/domain"
)

// PolicyService 佣金政策应用服务
// 负责政策的管理命令以及佣金率的瀑布解析
type PolicyService struct {
	repo   domain.PolicyRepository
	cache  domain.RateCache
	logger *slog.Logger
	now    func() time.Time
}

// NewPolicyService 创建佣金政策应用服务实例
// cache 可以为 nil，此时每次解析都直接落库查询
func NewPolicyService(repo domain.PolicyRepository, cache domain.RateCache, logger *slog.Logger) *PolicyService {
	return &PolicyService{
		repo:   repo,
		cache:  cache,
		logger: logger,
		now:    time.Now,
	}
}

// ResolveRate 解析适用佣金率（百分比）
// 优先级：卖家专属政策 > 类目级政策（仅当传入类目时）> 全局默认政策 > 兜底佣金率
func (s *PolicyService) ResolveRate(ctx context.Context, sellerID, categoryCode string) (decimal.Decimal, error) {
	if s.cache != nil {
		if rate, ok, err := s.cache.Get(ctx, sellerID, categoryCode); err == nil && ok {
			return rate, nil
		}
	}

	rate, err := s.resolveFromStore(ctx, sellerID, categoryCode)
	if err != nil {
		return decimal.Zero, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, sellerID, categoryCode, rate); err != nil {
			s.logger.WarnContext(ctx, "failed to cache resolved commission rate", "seller_id", sellerID, "error", err)
		}
	}
	return rate, nil
}

func (s *PolicyService) resolveFromStore(ctx context.Context, sellerID, categoryCode string) (decimal.Decimal, error) {
	at := s.now()

	policy, err := s.repo.FindActiveBySeller(ctx, sellerID, at)
	if err != nil {
		return decimal.Zero, fmt.Errorf("seller policy lookup failed: %w", err)
	}
	if policy != nil {
		return policy.CommissionRate, nil
	}

	if categoryCode != "" {
		policy, err = s.repo.FindActiveByCategory(ctx, categoryCode, at)
		if err != nil {
			return decimal.Zero, fmt.Errorf("category policy lookup failed: %w", err)
		}
		if policy != nil {
			return policy.CommissionRate, nil
		}
	}

	policy, err = s.repo.FindActiveDefault(ctx, at)
	if err != nil {
		return decimal.Zero, fmt.Errorf("default policy lookup failed: %w", err)
	}
	if policy != nil {
		return policy.CommissionRate, nil
	}

	return domain.DefaultCommissionRate, nil
}

// CreatePolicyCommand 创建佣金政策命令
type CreatePolicyCommand struct {
	Name           string
	SellerID       string
	CategoryCode   string
	CommissionRate decimal.Decimal
	MinAmount      decimal.Decimal
	MaxAmount      decimal.Decimal
	EffectiveDate  time.Time
	EndDate        *time.Time
}

// CreatePolicy 创建佣金政策
func (s *PolicyService) CreatePolicy(ctx context.Context, cmd CreatePolicyCommand) (*domain.CommissionPolicy, error) {
	policy := &domain.CommissionPolicy{
		Name:           cmd.Name,
		CommissionRate: cmd.CommissionRate,
		MinAmount:      cmd.MinAmount,
		MaxAmount:      cmd.MaxAmount,
		EffectiveDate:  cmd.EffectiveDate,
		EndDate:        cmd.EndDate,
		IsActive:       true,
	}
	if cmd.SellerID != "" {
		policy.SellerID = &cmd.SellerID
	}
	if cmd.CategoryCode != "" {
		policy.CategoryCode = &cmd.CategoryCode
	}

	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, policy); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.logger.WarnContext(ctx, "failed to invalidate commission rate cache", "error", err)
		}
	}

	s.logger.InfoContext(ctx, "commission policy created",
		"policy_id", policy.ID, "name", policy.Name, "rate", policy.CommissionRate.String())
	return policy, nil
}

// ListPolicies 查询佣金政策列表
func (s *PolicyService) ListPolicies(ctx context.Context, filter domain.ListPoliciesFilter) ([]*domain.CommissionPolicy, int64, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.List(ctx, filter)
}
