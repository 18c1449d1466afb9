// Package messaging 将结算领域事件经 Outbox 表中转投递到 Kafka。
package messaging

import (
	"context"
	"fmt"

	"github.com/wyfcoding/marketsettlement/internal/settlement/domain"
	"github.com/wyfcoding/pkg/messagequeue/outbox"
	"gorm.io/gorm"
)

// settlementEventPublisher 结算事件发布器
// 事件与结算单/周期的状态变更写在同一个数据库事务里，
// 由后台 Outbox 处理器异步推送，消费侧据此刷新卖家汇总读模型
type settlementEventPublisher struct {
	manager *outbox.Manager
}

// NewOutboxPublisher 创建结算事件发布器实例
func NewOutboxPublisher(manager *outbox.Manager) domain.EventPublisher {
	return &settlementEventPublisher{manager: manager}
}

// Publish 在业务事务之外落一条结算事件
// 仅用于无状态变更伴随的通知场景
func (p *settlementEventPublisher) Publish(ctx context.Context, topic string, key string, event any) error {
	return p.manager.PublishInTx(ctx, p.manager.DB(), topic, key, event)
}

// PublishInTx 在结算业务事务内落事件
// 计算落库、批量状态迁移都走这里，保证状态与事件原子可见
func (p *settlementEventPublisher) PublishInTx(ctx context.Context, tx any, topic string, key string, event any) error {
	gormTx, ok := tx.(*gorm.DB)
	if !ok {
		return fmt.Errorf("settlement event publish requires *gorm.DB tx, got %T", tx)
	}
	return p.manager.PublishInTx(ctx, gormTx, topic, key, event)
}
