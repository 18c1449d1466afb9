package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrPolicyNotFound    = errors.New("commission policy not found")
	ErrInvalidRate       = errors.New("commission rate must be between 0 and 100")
	ErrInvalidDateRange  = errors.New("policy end date must not precede effective date")
	ErrMissingPolicyName = errors.New("policy name is required")
)

// DefaultCommissionRate 兜底佣金率（百分比）
// 当没有任何政策命中时使用
var DefaultCommissionRate = decimal.NewFromFloat(5.0)

// CommissionPolicy 佣金政策
// 按 (卖家, 类目) 维度定义生效时间窗内的佣金率规则
type CommissionPolicy struct {
	gorm.Model
	Name           string          `gorm:"column:name;type:varchar(100);not null" json:"name"`
	SellerID       *string         `gorm:"column:seller_id;type:varchar(32);index" json:"seller_id"`
	CategoryCode   *string         `gorm:"column:category_code;type:varchar(32);index" json:"category_code"`
	CommissionRate decimal.Decimal `gorm:"column:commission_rate;type:decimal(5,2);not null" json:"commission_rate"`
	MinAmount      decimal.Decimal `gorm:"column:min_amount;type:decimal(20,2)" json:"min_amount"`
	MaxAmount      decimal.Decimal `gorm:"column:max_amount;type:decimal(20,2)" json:"max_amount"`
	EffectiveDate  time.Time       `gorm:"column:effective_date;index;not null" json:"effective_date"`
	EndDate        *time.Time      `gorm:"column:end_date" json:"end_date"`
	IsActive       bool            `gorm:"column:is_active;default:true;index" json:"is_active"`
}

// TableName 表名
func (CommissionPolicy) TableName() string {
	return "commission_policies"
}

// Validate 校验政策字段
func (p *CommissionPolicy) Validate() error {
	if p.Name == "" {
		return ErrMissingPolicyName
	}
	if p.CommissionRate.IsNegative() || p.CommissionRate.GreaterThan(decimal.NewFromInt(100)) {
		return ErrInvalidRate
	}
	if p.EndDate != nil && p.EndDate.Before(p.EffectiveDate) {
		return ErrInvalidDateRange
	}
	return nil
}

// EffectiveAt 政策在指定时间点是否生效
func (p *CommissionPolicy) EffectiveAt(at time.Time) bool {
	if !p.IsActive {
		return false
	}
	if p.EffectiveDate.After(at) {
		return false
	}
	if p.EndDate != nil && p.EndDate.Before(at) {
		return false
	}
	return true
}

// ListPoliciesFilter 政策列表过滤条件
type ListPoliciesFilter struct {
	SellerID     string
	CategoryCode string
	ActiveOnly   bool
	Limit        int
	Offset       int
}

// PolicyRepository 佣金政策仓储接口
// 三个 FindActive* 查询对应解析瀑布的三级，未命中时返回 nil 而非错误
type PolicyRepository interface {
	Save(ctx context.Context, policy *CommissionPolicy) error
	Get(ctx context.Context, id uint) (*CommissionPolicy, error)
	List(ctx context.Context, filter ListPoliciesFilter) ([]*CommissionPolicy, int64, error)
	FindActiveBySeller(ctx context.Context, sellerID string, at time.Time) (*CommissionPolicy, error)
	FindActiveByCategory(ctx context.Context, categoryCode string, at time.Time) (*CommissionPolicy, error)
	FindActiveDefault(ctx context.Context, at time.Time) (*CommissionPolicy, error)
}

// RateCache 已解析佣金率的缓存接口
type RateCache interface {
	Get(ctx context.Context, sellerID, categoryCode string) (decimal.Decimal, bool, error)
	Set(ctx context.Context, sellerID, categoryCode string, rate decimal.Decimal) error
	Invalidate(ctx context.Context) error
}
