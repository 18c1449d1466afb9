// Package mysql 提供了订单读仓储接口的 MySQL GORM 实现。
package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wyfcoding/marketsettlement/internal/order/domain"
	"github.com/wyfcoding/pkg/logging"
	"gorm.io/gorm"
)

type orderReadRepositoryImpl struct {
	db *gorm.DB
}

// NewOrderReadRepository 创建订单读仓储实例
func NewOrderReadRepository(db *gorm.DB) domain.OrderReadRepository {
	return &orderReadRepositoryImpl{db: db}
}

// FindSettleableInRange 实现 domain.OrderReadRepository.FindSettleableInRange
func (r *orderReadRepositoryImpl) FindSettleableInRange(ctx context.Context, start, end time.Time) ([]*domain.Order, error) {
	var orders []*domain.Order
	err := r.db.WithContext(ctx).
		Where("ordered_at >= ? AND ordered_at <= ?", start, end).
		Where("payment_status = ?", domain.PaymentStatusCompleted).
		Where("order_status IN ?", []string{domain.OrderStatusDelivered, domain.OrderStatusConfirmed}).
		Preload("Items").
		Preload("Items.Product").
		Order("ordered_at ASC, id ASC").
		Find(&orders).Error
	if err != nil {
		logging.Error(ctx, "order_read_repository.FindSettleableInRange failed",
			"start", start, "end", end, "error", err)
		return nil, fmt.Errorf("failed to find settleable orders: %w", err)
	}
	return orders, nil
}

// GetSeller 实现 domain.OrderReadRepository.GetSeller
func (r *orderReadRepositoryImpl) GetSeller(ctx context.Context, sellerID string) (*domain.Seller, error) {
	var seller domain.Seller
	if err := r.db.WithContext(ctx).Where("seller_id = ?", sellerID).First(&seller).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get seller: %w", err)
	}
	return &seller, nil
}
