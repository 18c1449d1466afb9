package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrPeriodNotFound         = errors.New("settlement period not found")
	ErrPeriodAlreadyProcessed = errors.New("settlement period already processed")
	ErrInvalidPeriodType      = errors.New("period type must be WEEKLY or MONTHLY")
	ErrInvalidPeriodRange     = errors.New("period end date must not precede start date")
	ErrSettlementNotFound     = errors.New("settlement not found")
	ErrEmptySettlementIDs     = errors.New("settlement id list is empty")
	ErrNoEligibleSettlements  = errors.New("no settlements eligible for this transition")
	ErrInvalidStatus          = errors.New("invalid settlement status for this transition")
	ErrUnknownStatus          = errors.New("unknown settlement status")
	ErrInvalidCommissionRate  = errors.New("commission rate must be between 0 and 100")
)

// SettlementStatus 结算单状态
type SettlementStatus string

const (
	StatusPending     SettlementStatus = "PENDING"
	StatusCalculating SettlementStatus = "CALCULATING"
	StatusCompleted   SettlementStatus = "COMPLETED"
	StatusCancelled   SettlementStatus = "CANCELLED"
	StatusOnHold      SettlementStatus = "ON_HOLD"
)

// Valid 是否为合法结算状态
func (s SettlementStatus) Valid() bool {
	switch s {
	case StatusPending, StatusCalculating, StatusCompleted, StatusCancelled, StatusOnHold:
		return true
	default:
		return false
	}
}

var percentBase = decimal.NewFromInt(100)

// Settlement 结算单聚合根
// 一个卖家在一个结算周期内的应付款聚合
type Settlement struct {
	gorm.Model
	SettlementNo          string            `gorm:"column:settlement_no;type:varchar(64);uniqueIndex;not null" json:"settlement_no"`
	SettlementPeriodID    uint              `gorm:"column:settlement_period_id;index;not null" json:"settlement_period_id"`
	SellerID              string            `gorm:"column:seller_id;type:varchar(32);index;not null" json:"seller_id"`
	SellerName            string            `gorm:"column:seller_name;type:varchar(100)" json:"seller_name"`
	SellerEmail           string            `gorm:"column:seller_email;type:varchar(100)" json:"seller_email"`
	TotalOrderAmount      decimal.Decimal   `gorm:"column:total_order_amount;type:decimal(20,2);not null" json:"total_order_amount"`
	TotalCommission       decimal.Decimal   `gorm:"column:total_commission;type:decimal(20,2);not null" json:"total_commission"`
	TotalDeliveryFee      decimal.Decimal   `gorm:"column:total_delivery_fee;type:decimal(20,2)" json:"total_delivery_fee"`
	TotalRefundAmount     decimal.Decimal   `gorm:"column:total_refund_amount;type:decimal(20,2)" json:"total_refund_amount"`
	TotalCancelAmount     decimal.Decimal   `gorm:"column:total_cancel_amount;type:decimal(20,2)" json:"total_cancel_amount"`
	AdjustmentAmount      decimal.Decimal   `gorm:"column:adjustment_amount;type:decimal(20,2)" json:"adjustment_amount"`
	CommissionRate        decimal.Decimal   `gorm:"column:commission_rate;type:decimal(5,2)" json:"commission_rate"`
	FinalSettlementAmount decimal.Decimal   `gorm:"column:final_settlement_amount;type:decimal(20,2);not null" json:"final_settlement_amount"`
	Status                SettlementStatus  `gorm:"column:status;type:varchar(20);index;not null;default:PENDING" json:"status"`
	SettledAt             *time.Time        `gorm:"column:settled_at" json:"settled_at"`
	Memo                  string            `gorm:"column:memo;type:varchar(500)" json:"memo"`
	Period                *SettlementPeriod `gorm:"foreignKey:SettlementPeriodID" json:"period,omitempty"`
	Items                 []SettlementItem  `gorm:"foreignKey:SettlementID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

// TableName 表名
func (Settlement) TableName() string {
	return "settlements"
}

// Recalculate 按不变式重算应结金额
// final = 订单总额 - 佣金 - 配送费 - 退款 - 取消 + 调整
func (s *Settlement) Recalculate() {
	s.FinalSettlementAmount = s.TotalOrderAmount.
		Sub(s.TotalCommission).
		Sub(s.TotalDeliveryFee).
		Sub(s.TotalRefundAmount).
		Sub(s.TotalCancelAmount).
		Add(s.AdjustmentAmount)
}

// Process 以给定佣金率重算并进入计算中状态
// 仅允许 PENDING 来源
func (s *Settlement) Process(rate decimal.Decimal) error {
	if s.Status != StatusPending {
		return ErrInvalidStatus
	}
	s.CommissionRate = rate
	s.TotalCommission = s.TotalOrderAmount.Mul(rate).Div(percentBase).Round(2)
	s.Recalculate()
	s.Status = StatusCalculating
	s.SettledAt = nil
	return nil
}

// Complete 完成结算
// 仅允许 CALCULATING 来源，settled_at 在且仅在此状态下非空
func (s *Settlement) Complete(at time.Time) error {
	if s.Status != StatusCalculating {
		return ErrInvalidStatus
	}
	s.Status = StatusCompleted
	s.SettledAt = &at
	return nil
}

// Hold 挂起结算
// 允许 PENDING、CALCULATING 来源
func (s *Settlement) Hold(memo string) error {
	if s.Status != StatusPending && s.Status != StatusCalculating {
		return ErrInvalidStatus
	}
	s.Status = StatusOnHold
	s.SettledAt = nil
	if memo != "" {
		s.Memo = memo
	}
	return nil
}

// Unhold 解除挂起，回到待结算
func (s *Settlement) Unhold() error {
	if s.Status != StatusOnHold {
		return ErrInvalidStatus
	}
	s.Status = StatusPending
	s.SettledAt = nil
	return nil
}

// Cancel 取消已完成的结算
func (s *Settlement) Cancel(memo string) error {
	if s.Status != StatusCompleted {
		return ErrInvalidStatus
	}
	s.Status = StatusCancelled
	s.SettledAt = nil
	if memo != "" {
		s.Memo = memo
	}
	return nil
}

// Deletable 是否允许物理删除
func (s *Settlement) Deletable() bool {
	return s.Status == StatusPending || s.Status == StatusOnHold
}

// ForceStatus 管理员直接改写状态，绕过状态机前置校验
// settled_at 仅在目标状态为 COMPLETED 时置值，其余一律清空
func (s *Settlement) ForceStatus(status SettlementStatus, memo string, at time.Time) error {
	if !status.Valid() {
		return ErrUnknownStatus
	}
	s.Status = status
	if status == StatusCompleted {
		s.SettledAt = &at
	} else {
		s.SettledAt = nil
	}
	if memo != "" {
		s.Memo = memo
	}
	return nil
}

// SettlementItem 结算明细
// 单个订单项对结算单的贡献，创建后不可变更
type SettlementItem struct {
	gorm.Model
	SettlementID     uint            `gorm:"column:settlement_id;index;not null" json:"settlement_id"`
	OrderID          uint            `gorm:"column:order_id;index;not null" json:"order_id"`
	OrderItemID      uint            `gorm:"column:order_item_id;index;not null" json:"order_item_id"`
	ProductName      string          `gorm:"column:product_name;type:varchar(200);not null" json:"product_name"`
	SkuCode          string          `gorm:"column:sku_code;type:varchar(64)" json:"sku_code"`
	CategoryCode     string          `gorm:"column:category_code;type:varchar(32);index" json:"category_code"`
	Quantity         int             `gorm:"column:quantity;not null" json:"quantity"`
	UnitPrice        decimal.Decimal `gorm:"column:unit_price;type:decimal(20,2);not null" json:"unit_price"`
	TotalPrice       decimal.Decimal `gorm:"column:total_price;type:decimal(20,2);not null" json:"total_price"`
	CommissionRate   decimal.Decimal `gorm:"column:commission_rate;type:decimal(5,2);not null" json:"commission_rate"`
	CommissionAmount decimal.Decimal `gorm:"column:commission_amount;type:decimal(20,2);not null" json:"commission_amount"`
	DeliveryFee      decimal.Decimal `gorm:"column:delivery_fee;type:decimal(20,2)" json:"delivery_fee"`
	SettlementAmount decimal.Decimal `gorm:"column:settlement_amount;type:decimal(20,2);not null" json:"settlement_amount"`
	OrderStatus      string          `gorm:"column:order_status;type:varchar(20)" json:"order_status"`
	PaymentStatus    string          `gorm:"column:payment_status;type:varchar(20)" json:"payment_status"`
}

// TableName 表名
func (SettlementItem) TableName() string {
	return "settlement_items"
}

// NewSettlementItem 从订单项快照构造结算明细并计算佣金
func NewSettlementItem(orderID, orderItemID uint, productName, skuCode, categoryCode string,
	quantity int, unitPrice, totalPrice, rate decimal.Decimal,
	orderStatus, paymentStatus string) SettlementItem {

	commission := totalPrice.Mul(rate).Div(percentBase).Round(2)
	deliveryFee := decimal.Zero
	return SettlementItem{
		OrderID:          orderID,
		OrderItemID:      orderItemID,
		ProductName:      productName,
		SkuCode:          skuCode,
		CategoryCode:     categoryCode,
		Quantity:         quantity,
		UnitPrice:        unitPrice,
		TotalPrice:       totalPrice,
		CommissionRate:   rate,
		CommissionAmount: commission,
		DeliveryFee:      deliveryFee,
		SettlementAmount: totalPrice.Sub(commission).Sub(deliveryFee),
		OrderStatus:      orderStatus,
		PaymentStatus:    paymentStatus,
	}
}
