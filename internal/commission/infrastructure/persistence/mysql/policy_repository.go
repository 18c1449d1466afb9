// Package mysql 提供了佣金政策仓储接口的 MySQL GORM 实现。
package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wyfcoding/marketsettlement/internal/commission/domain"
	"github.com/wyfcoding/pkg/logging"
	"gorm.io/gorm"
)

type policyRepositoryImpl struct {
	db *gorm.DB
}

// NewPolicyRepository 创建佣金政策仓储实例
func NewPolicyRepository(db *gorm.DB) domain.PolicyRepository {
	return &policyRepositoryImpl{db: db}
}

// Save 实现 domain.PolicyRepository.Save
func (r *policyRepositoryImpl) Save(ctx context.Context, policy *domain.CommissionPolicy) error {
	if err := r.db.WithContext(ctx).Save(policy).Error; err != nil {
		logging.Error(ctx, "policy_repository.Save failed", "name", policy.Name, "error", err)
		return fmt.Errorf("failed to save commission policy: %w", err)
	}
	return nil
}

// Get 实现 domain.PolicyRepository.Get
func (r *policyRepositoryImpl) Get(ctx context.Context, id uint) (*domain.CommissionPolicy, error) {
	var policy domain.CommissionPolicy
	if err := r.db.WithContext(ctx).First(&policy, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get commission policy: %w", err)
	}
	return &policy, nil
}

// List 实现 domain.PolicyRepository.List
func (r *policyRepositoryImpl) List(ctx context.Context, filter domain.ListPoliciesFilter) ([]*domain.CommissionPolicy, int64, error) {
	db := r.db.WithContext(ctx).Model(&domain.CommissionPolicy{})
	if filter.SellerID != "" {
		db = db.Where("seller_id = ?", filter.SellerID)
	}
	if filter.CategoryCode != "" {
		db = db.Where("category_code = ?", filter.CategoryCode)
	}
	if filter.ActiveOnly {
		db = db.Where("is_active = ?", true)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count commission policies: %w", err)
	}

	var policies []*domain.CommissionPolicy
	if err := db.Order("effective_date DESC, id DESC").
		Limit(filter.Limit).Offset(filter.Offset).
		Find(&policies).Error; err != nil {
		logging.Error(ctx, "policy_repository.List failed", "error", err)
		return nil, 0, fmt.Errorf("failed to list commission policies: %w", err)
	}
	return policies, total, nil
}

// FindActiveBySeller 查询卖家专属政策（忽略类目维度）
func (r *policyRepositoryImpl) FindActiveBySeller(ctx context.Context, sellerID string, at time.Time) (*domain.CommissionPolicy, error) {
	return r.findActive(ctx, r.activeScope(ctx, at).Where("seller_id = ?", sellerID))
}

// FindActiveByCategory 查询类目级全局政策（seller_id 为空）
func (r *policyRepositoryImpl) FindActiveByCategory(ctx context.Context, categoryCode string, at time.Time) (*domain.CommissionPolicy, error) {
	return r.findActive(ctx, r.activeScope(ctx, at).
		Where("category_code = ? AND seller_id IS NULL", categoryCode))
}

// FindActiveDefault 查询全局默认政策
func (r *policyRepositoryImpl) FindActiveDefault(ctx context.Context, at time.Time) (*domain.CommissionPolicy, error) {
	return r.findActive(ctx, r.activeScope(ctx, at).
		Where("seller_id IS NULL AND category_code IS NULL"))
}

func (r *policyRepositoryImpl) activeScope(ctx context.Context, at time.Time) *gorm.DB {
	return r.db.WithContext(ctx).Model(&domain.CommissionPolicy{}).
		Where("is_active = ? AND effective_date <= ? AND (end_date IS NULL OR end_date >= ?)", true, at, at)
}

func (r *policyRepositoryImpl) findActive(ctx context.Context, db *gorm.DB) (*domain.CommissionPolicy, error) {
	var policy domain.CommissionPolicy
	// 多条命中时取最近生效的一条
	if err := db.Order("effective_date DESC, id DESC").First(&policy).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logging.Error(ctx, "policy_repository.findActive failed", "error", err)
		return nil, fmt.Errorf("failed to find active commission policy: %w", err)
	}
	return &policy, nil
}
