// Package domain 定义订单侧的只读模型。
// 结算服务不拥有订单数据，只消费订单库中已完成订单的快照。
package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// 订单参与结算的前置状态
const (
	PaymentStatusCompleted = "COMPLETED"
	OrderStatusDelivered   = "DELIVERED"
	OrderStatusConfirmed   = "CONFIRMED"
)

// Order 订单只读模型
type Order struct {
	gorm.Model
	OrderNo       string      `gorm:"column:order_no;type:varchar(64);uniqueIndex;not null" json:"order_no"`
	BuyerID       string      `gorm:"column:buyer_id;type:varchar(32);index;not null" json:"buyer_id"`
	OrderStatus   string      `gorm:"column:order_status;type:varchar(20);index;not null" json:"order_status"`
	PaymentStatus string      `gorm:"column:payment_status;type:varchar(20);index;not null" json:"payment_status"`
	OrderedAt     time.Time   `gorm:"column:ordered_at;index;not null" json:"ordered_at"`
	Items         []OrderItem `gorm:"foreignKey:OrderID" json:"items"`
}

// TableName 表名
func (Order) TableName() string {
	return "orders"
}

// OrderItem 订单项只读模型
type OrderItem struct {
	gorm.Model
	OrderID     uint            `gorm:"column:order_id;index;not null" json:"order_id"`
	ProductID   uint            `gorm:"column:product_id;index;not null" json:"product_id"`
	ProductName string          `gorm:"column:product_name;type:varchar(200);not null" json:"product_name"`
	SkuCode     string          `gorm:"column:sku_code;type:varchar(64)" json:"sku_code"`
	Quantity    int             `gorm:"column:quantity;not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"column:unit_price;type:decimal(20,2);not null" json:"unit_price"`
	TotalPrice  decimal.Decimal `gorm:"column:total_price;type:decimal(20,2);not null" json:"total_price"`
	Product     Product         `gorm:"foreignKey:ProductID" json:"product"`
}

// TableName 表名
func (OrderItem) TableName() string {
	return "order_items"
}

// Product 商品只读模型，承载卖家归属与类目
type Product struct {
	gorm.Model
	SellerID     string `gorm:"column:seller_id;type:varchar(32);index;not null" json:"seller_id"`
	CategoryCode string `gorm:"column:category_code;type:varchar(32);index" json:"category_code"`
	Name         string `gorm:"column:name;type:varchar(200);not null" json:"name"`
}

// TableName 表名
func (Product) TableName() string {
	return "products"
}

// Seller 卖家只读模型，用于结算单上的卖家信息冗余
type Seller struct {
	gorm.Model
	SellerID string `gorm:"column:seller_id;type:varchar(32);uniqueIndex;not null" json:"seller_id"`
	Name     string `gorm:"column:name;type:varchar(100);not null" json:"name"`
	Email    string `gorm:"column:email;type:varchar(100)" json:"email"`
}

// TableName 表名
func (Seller) TableName() string {
	return "sellers"
}

// OrderReadRepository 订单读仓储接口
// FindSettleableInRange 返回区间内支付完成且已送达/已确认的订单，
// 预加载订单项与商品
type OrderReadRepository interface {
	FindSettleableInRange(ctx context.Context, start, end time.Time) ([]*Order, error)
	GetSeller(ctx context.Context, sellerID string) (*Seller, error)
}
