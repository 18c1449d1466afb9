package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/marketsettlement/internal/settlement/domain"
	"github.com/wyfcoding/pkg/contextx"
	"github.com/wyfcoding/pkg/logging"
	"gorm.io/gorm"
)

// txFromContext 取出事务句柄，事务外返回 nil
func txFromContext(ctx context.Context) *gorm.DB {
	if tx, ok := contextx.GetTx(ctx).(*gorm.DB); ok {
		return tx
	}
	return nil
}

type settlementRepositoryImpl struct {
	db *gorm.DB
}

// NewSettlementRepository 创建结算单仓储实例
func NewSettlementRepository(db *gorm.DB) domain.SettlementRepository {
	return &settlementRepositoryImpl{db: db}
}

func (r *settlementRepositoryImpl) getDB(ctx context.Context) *gorm.DB {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return r.db.WithContext(ctx)
}

// WithTx 实现 domain.SettlementRepository.WithTx
func (r *settlementRepositoryImpl) WithTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(contextx.WithTx(ctx, tx))
	})
}

// Save 实现 domain.SettlementRepository.Save
// 结算明细随父单一次性写入
func (r *settlementRepositoryImpl) Save(ctx context.Context, settlement *domain.Settlement) error {
	if err := r.getDB(ctx).Create(settlement).Error; err != nil {
		logging.Error(ctx, "settlement_repository.Save failed",
			"settlement_no", settlement.SettlementNo, "error", err)
		return fmt.Errorf("failed to save settlement: %w", err)
	}
	return nil
}

// Update 实现 domain.SettlementRepository.Update
func (r *settlementRepositoryImpl) Update(ctx context.Context, settlement *domain.Settlement) error {
	err := r.getDB(ctx).Model(settlement).
		Select("total_commission", "commission_rate", "final_settlement_amount",
			"status", "settled_at", "memo").
		Updates(settlement).Error
	if err != nil {
		logging.Error(ctx, "settlement_repository.Update failed", "settlement_id", settlement.ID, "error", err)
		return fmt.Errorf("failed to update settlement: %w", err)
	}
	return nil
}

// Get 实现 domain.SettlementRepository.Get
func (r *settlementRepositoryImpl) Get(ctx context.Context, id uint) (*domain.Settlement, error) {
	var settlement domain.Settlement
	err := r.getDB(ctx).
		Preload("Period").
		Preload("Items").
		First(&settlement, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get settlement: %w", err)
	}
	return &settlement, nil
}

// FindByIDs 实现 domain.SettlementRepository.FindByIDs
func (r *settlementRepositoryImpl) FindByIDs(ctx context.Context, ids []uint) ([]*domain.Settlement, error) {
	var settlements []*domain.Settlement
	if err := r.getDB(ctx).Where("id IN ?", ids).Find(&settlements).Error; err != nil {
		logging.Error(ctx, "settlement_repository.FindByIDs failed", "error", err)
		return nil, fmt.Errorf("failed to find settlements: %w", err)
	}
	return settlements, nil
}

// DeleteByIDs 实现 domain.SettlementRepository.DeleteByIDs
// 物理删除，级联清理结算明细
func (r *settlementRepositoryImpl) DeleteByIDs(ctx context.Context, ids []uint) (int64, error) {
	db := r.getDB(ctx)
	if err := db.Where("settlement_id IN ?", ids).
		Unscoped().Delete(&domain.SettlementItem{}).Error; err != nil {
		return 0, fmt.Errorf("failed to delete settlement items: %w", err)
	}
	res := db.Where("id IN ?", ids).Unscoped().Delete(&domain.Settlement{})
	if res.Error != nil {
		logging.Error(ctx, "settlement_repository.DeleteByIDs failed", "error", res.Error)
		return 0, fmt.Errorf("failed to delete settlements: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// List 实现 domain.SettlementRepository.List
func (r *settlementRepositoryImpl) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Settlement, int64, error) {
	db := r.getDB(ctx).Model(&domain.Settlement{})
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		db = db.Where("seller_name LIKE ? OR seller_email LIKE ?", like, like)
	}
	if filter.StartDate != nil {
		db = db.Where("created_at >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		db = db.Where("created_at <= ?", *filter.EndDate)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count settlements: %w", err)
	}

	var settlements []*domain.Settlement
	if err := db.Preload("Period").
		Order("created_at DESC, id DESC").
		Limit(filter.Limit).Offset(filter.Offset).
		Find(&settlements).Error; err != nil {
		logging.Error(ctx, "settlement_repository.List failed", "error", err)
		return nil, 0, fmt.Errorf("failed to list settlements: %w", err)
	}
	return settlements, total, nil
}

// ListBySeller 实现 domain.SettlementRepository.ListBySeller
func (r *settlementRepositoryImpl) ListBySeller(ctx context.Context, sellerID string, status domain.SettlementStatus, limit, offset int) ([]*domain.Settlement, int64, error) {
	db := r.getDB(ctx).Model(&domain.Settlement{}).Where("seller_id = ?", sellerID)
	if status != "" {
		db = db.Where("status = ?", status)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count seller settlements: %w", err)
	}

	var settlements []*domain.Settlement
	if err := db.Preload("Period").
		Order("created_at DESC, id DESC").
		Limit(limit).Offset(offset).
		Find(&settlements).Error; err != nil {
		logging.Error(ctx, "settlement_repository.ListBySeller failed", "seller_id", sellerID, "error", err)
		return nil, 0, fmt.Errorf("failed to list seller settlements: %w", err)
	}
	return settlements, total, nil
}

// 聚合排序字段白名单，防注入
var productSortColumns = map[string]string{
	"sales_amount":      "sales_amount",
	"order_count":       "order_count",
	"settlement_amount": "settlement_amount",
	"commission_amount": "commission_amount",
}

type productAggregateRow struct {
	ProductName      string
	SkuCode          string
	OrderCount       int64
	TotalQuantity    int64
	SalesAmount      decimal.Decimal
	CommissionAmount decimal.Decimal
	SettlementAmount decimal.Decimal
}

// AggregateSellerProducts 实现 domain.SettlementRepository.AggregateSellerProducts
// 聚合下推到数据库 GROUP BY，分页与排序同样在 SQL 内完成
func (r *settlementRepositoryImpl) AggregateSellerProducts(ctx context.Context, query domain.SellerProductQuery) ([]*domain.ProductAggregate, int64, error) {
	base := r.getDB(ctx).Model(&domain.SettlementItem{}).
		Joins("JOIN settlements ON settlements.id = settlement_items.settlement_id").
		Where("settlements.seller_id = ?", query.SellerID).
		Where("settlements.status <> ?", domain.StatusCancelled)
	if query.Category != "" {
		base = base.Where("settlement_items.category_code = ?", query.Category)
	}
	if query.Search != "" {
		base = base.Where("settlement_items.product_name LIKE ?", "%"+query.Search+"%")
	}
	if query.StartDate != nil {
		base = base.Where("settlement_items.created_at >= ?", *query.StartDate)
	}
	if query.EndDate != nil {
		base = base.Where("settlement_items.created_at <= ?", *query.EndDate)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).
		Distinct("settlement_items.product_name, settlement_items.sku_code").
		Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count product aggregates: %w", err)
	}

	sortCol, ok := productSortColumns[query.SortBy]
	if !ok {
		sortCol = "sales_amount"
	}

	var rows []productAggregateRow
	err := base.Session(&gorm.Session{}).
		Select(`settlement_items.product_name AS product_name,
			settlement_items.sku_code AS sku_code,
			COUNT(DISTINCT settlement_items.order_id) AS order_count,
			COALESCE(SUM(settlement_items.quantity), 0) AS total_quantity,
			COALESCE(SUM(settlement_items.total_price), 0) AS sales_amount,
			COALESCE(SUM(settlement_items.commission_amount), 0) AS commission_amount,
			COALESCE(SUM(settlement_items.settlement_amount), 0) AS settlement_amount`).
		Group("settlement_items.product_name, settlement_items.sku_code").
		Order(sortCol + " DESC").
		Limit(query.Limit).Offset(query.Offset).
		Scan(&rows).Error
	if err != nil {
		logging.Error(ctx, "settlement_repository.AggregateSellerProducts failed",
			"seller_id", query.SellerID, "error", err)
		return nil, 0, fmt.Errorf("failed to aggregate seller products: %w", err)
	}

	aggregates := make([]*domain.ProductAggregate, len(rows))
	for i, row := range rows {
		agg := &domain.ProductAggregate{
			ProductName:      row.ProductName,
			SkuCode:          row.SkuCode,
			OrderCount:       row.OrderCount,
			TotalQuantity:    row.TotalQuantity,
			SalesAmount:      row.SalesAmount,
			CommissionAmount: row.CommissionAmount,
			SettlementAmount: row.SettlementAmount,
		}
		if row.OrderCount > 0 {
			agg.AvgOrderValue = row.SalesAmount.Div(decimal.NewFromInt(row.OrderCount)).Round(2)
		}
		aggregates[i] = agg
	}
	return aggregates, total, nil
}

type sellerSummaryRow struct {
	TotalCount            int64
	PendingCount          int64
	CalculatingCount      int64
	CompletedCount        int64
	OnHoldCount           int64
	TotalSettlementAmount decimal.Decimal
	TotalCommission       decimal.Decimal
}

// SummarizeSeller 实现 domain.SettlementRepository.SummarizeSeller
// 金额口径：仅累计 COMPLETED 的结算单
func (r *settlementRepositoryImpl) SummarizeSeller(ctx context.Context, sellerID string) (*domain.SellerSummary, error) {
	var row sellerSummaryRow
	err := r.getDB(ctx).Model(&domain.Settlement{}).
		Where("seller_id = ?", sellerID).
		Select(`COUNT(*) AS total_count,
			SUM(CASE WHEN status = 'PENDING' THEN 1 ELSE 0 END) AS pending_count,
			SUM(CASE WHEN status = 'CALCULATING' THEN 1 ELSE 0 END) AS calculating_count,
			SUM(CASE WHEN status = 'COMPLETED' THEN 1 ELSE 0 END) AS completed_count,
			SUM(CASE WHEN status = 'ON_HOLD' THEN 1 ELSE 0 END) AS on_hold_count,
			COALESCE(SUM(CASE WHEN status = 'COMPLETED' THEN final_settlement_amount ELSE 0 END), 0) AS total_settlement_amount,
			COALESCE(SUM(CASE WHEN status = 'COMPLETED' THEN total_commission ELSE 0 END), 0) AS total_commission`).
		Scan(&row).Error
	if err != nil {
		logging.Error(ctx, "settlement_repository.SummarizeSeller failed", "seller_id", sellerID, "error", err)
		return nil, fmt.Errorf("failed to summarize seller settlements: %w", err)
	}

	var lastSettledAt *time.Time
	err = r.getDB(ctx).Model(&domain.Settlement{}).
		Where("seller_id = ? AND settled_at IS NOT NULL", sellerID).
		Select("MAX(settled_at)").
		Scan(&lastSettledAt).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read last settled time: %w", err)
	}

	return &domain.SellerSummary{
		SellerID:              sellerID,
		TotalCount:            row.TotalCount,
		PendingCount:          row.PendingCount,
		CalculatingCount:      row.CalculatingCount,
		CompletedCount:        row.CompletedCount,
		OnHoldCount:           row.OnHoldCount,
		TotalSettlementAmount: row.TotalSettlementAmount,
		TotalCommission:       row.TotalCommission,
		LastSettledAt:         lastSettledAt,
	}, nil
}
