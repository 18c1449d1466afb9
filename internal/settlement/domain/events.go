package domain

import (
	"context"
	"time"
)

// 结算领域事件主题
const (
	SettlementCalculatedEventType    = "settlement.calculated"
	SettlementStatusChangedEventType = "settlement.status.changed"
)

// SettlementCalculatedEvent 结算计算完成事件
type SettlementCalculatedEvent struct {
	SettlementID       uint      `json:"settlement_id"`
	SettlementNo       string    `json:"settlement_no"`
	SettlementPeriodID uint      `json:"settlement_period_id"`
	SellerID           string    `json:"seller_id"`
	FinalAmount        string    `json:"final_amount"`
	Timestamp          time.Time `json:"timestamp"`
}

// SettlementStatusChangedEvent 结算状态变更事件
type SettlementStatusChangedEvent struct {
	SettlementID uint      `json:"settlement_id"`
	SellerID     string    `json:"seller_id"`
	FromStatus   string    `json:"from_status"`
	ToStatus     string    `json:"to_status"`
	Timestamp    time.Time `json:"timestamp"`
}

// EventPublisher 事件发布接口
// PublishInTx 用于 Outbox 模式，在业务事务内落事件
type EventPublisher interface {
	Publish(ctx context.Context, topic string, key string, event any) error
	PublishInTx(ctx context.Context, tx any, topic string, key string, event any) error
}
