// Package mysql 提供了结算仓储接口的 MySQL GORM 实现。
package mysql

import (
	"context"
	"errors"
	"fmt"

	"github.com/wyfcoding/marketsettlement/internal/settlement/domain"
	"github.com/wyfcoding/pkg/logging"
	"gorm.io/gorm"
)

type periodRepositoryImpl struct {
	db *gorm.DB
}

// NewPeriodRepository 创建结算周期仓储实例
func NewPeriodRepository(db *gorm.DB) domain.PeriodRepository {
	return &periodRepositoryImpl{db: db}
}

// Save 实现 domain.PeriodRepository.Save
func (r *periodRepositoryImpl) Save(ctx context.Context, period *domain.SettlementPeriod) error {
	if err := r.db.WithContext(ctx).Save(period).Error; err != nil {
		logging.Error(ctx, "period_repository.Save failed", "error", err)
		return fmt.Errorf("failed to save settlement period: %w", err)
	}
	return nil
}

// Get 实现 domain.PeriodRepository.Get
func (r *periodRepositoryImpl) Get(ctx context.Context, id uint) (*domain.SettlementPeriod, error) {
	var period domain.SettlementPeriod
	if err := r.db.WithContext(ctx).First(&period, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get settlement period: %w", err)
	}
	return &period, nil
}

// ClaimForCalculation 实现 domain.PeriodRepository.ClaimForCalculation
// 条件更新保证同一周期只有一个计算方能抢占成功
func (r *periodRepositoryImpl) ClaimForCalculation(ctx context.Context, id uint) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.SettlementPeriod{}).
		Where("id = ? AND status = ?", id, domain.PeriodStatusPreparing).
		Update("status", domain.PeriodStatusProcessing)
	if res.Error != nil {
		logging.Error(ctx, "period_repository.ClaimForCalculation failed", "period_id", id, "error", res.Error)
		return false, fmt.Errorf("failed to claim settlement period: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// SetStatus 实现 domain.PeriodRepository.SetStatus
func (r *periodRepositoryImpl) SetStatus(ctx context.Context, id uint, status domain.PeriodStatus) error {
	err := r.getDB(ctx).Model(&domain.SettlementPeriod{}).
		Where("id = ?", id).
		Update("status", status).Error
	if err != nil {
		logging.Error(ctx, "period_repository.SetStatus failed", "period_id", id, "status", status, "error", err)
		return fmt.Errorf("failed to update period status: %w", err)
	}
	return nil
}

func (r *periodRepositoryImpl) getDB(ctx context.Context) *gorm.DB {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return r.db.WithContext(ctx)
}
