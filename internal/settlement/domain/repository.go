package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ListFilter 结算单列表过滤条件
type ListFilter struct {
	Status    SettlementStatus
	Search    string // 卖家名称或邮箱模糊匹配
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}

// SellerProductQuery 卖家维度按商品聚合的查询条件
type SellerProductQuery struct {
	SellerID  string
	Category  string // 商品类目精确匹配
	Search    string // 商品名称模糊匹配
	SortBy    string // sales_amount | order_count | settlement_amount | commission_amount
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}

// ProductAggregate 单个商品 (名称+SKU) 的结算聚合结果
type ProductAggregate struct {
	ProductName      string          `json:"product_name"`
	SkuCode          string          `json:"sku_code"`
	OrderCount       int64           `json:"order_count"`
	TotalQuantity    int64           `json:"total_quantity"`
	SalesAmount      decimal.Decimal `json:"sales_amount"`
	CommissionAmount decimal.Decimal `json:"commission_amount"`
	SettlementAmount decimal.Decimal `json:"settlement_amount"`
	AvgOrderValue    decimal.Decimal `json:"avg_order_value"`
}

// SellerSummary 卖家结算汇总读模型
type SellerSummary struct {
	SellerID              string          `json:"seller_id"`
	TotalCount            int64           `json:"total_count"`
	PendingCount          int64           `json:"pending_count"`
	CalculatingCount      int64           `json:"calculating_count"`
	CompletedCount        int64           `json:"completed_count"`
	OnHoldCount           int64           `json:"on_hold_count"`
	TotalSettlementAmount decimal.Decimal `json:"total_settlement_amount"`
	TotalCommission       decimal.Decimal `json:"total_commission"`
	LastSettledAt         *time.Time      `json:"last_settled_at"`
	RefreshedAt           time.Time       `json:"refreshed_at"`
}

// PeriodRepository 结算周期仓储接口
type PeriodRepository interface {
	Save(ctx context.Context, period *SettlementPeriod) error
	Get(ctx context.Context, id uint) (*SettlementPeriod, error)
	// ClaimForCalculation 以条件更新抢占周期 (PREPARING -> PROCESSING)，
	// 返回是否抢占成功；并发的第二次调用拿到 false
	ClaimForCalculation(ctx context.Context, id uint) (bool, error)
	SetStatus(ctx context.Context, id uint, status PeriodStatus) error
}

// SettlementRepository 结算单仓储接口
type SettlementRepository interface {
	WithTx(ctx context.Context, fn func(txCtx context.Context) error) error
	Save(ctx context.Context, settlement *Settlement) error
	Update(ctx context.Context, settlement *Settlement) error
	Get(ctx context.Context, id uint) (*Settlement, error)
	FindByIDs(ctx context.Context, ids []uint) ([]*Settlement, error)
	DeleteByIDs(ctx context.Context, ids []uint) (int64, error)
	List(ctx context.Context, filter ListFilter) ([]*Settlement, int64, error)
	ListBySeller(ctx context.Context, sellerID string, status SettlementStatus, limit, offset int) ([]*Settlement, int64, error)
	AggregateSellerProducts(ctx context.Context, query SellerProductQuery) ([]*ProductAggregate, int64, error)
	SummarizeSeller(ctx context.Context, sellerID string) (*SellerSummary, error)
}

// SummaryReadRepository 卖家结算汇总读模型仓储接口 (Redis)
type SummaryReadRepository interface {
	Save(ctx context.Context, summary *SellerSummary) error
	Get(ctx context.Context, sellerID string) (*SellerSummary, error)
	Delete(ctx context.Context, sellerID string) error
}
