package consumer

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"github.com/wyfcoding/marketsettlement/internal/settlement/application"
	"github.com/wyfcoding/marketsettlement/internal/settlement/domain"
)

// ProjectionHandler 结算事件消费处理器
// 收到结算事件后刷新对应卖家的汇总读模型
type ProjectionHandler struct {
	projector *application.ProjectionService
	logger    *slog.Logger
}

// NewProjectionHandler 创建投影消费处理器实例
func NewProjectionHandler(projector *application.ProjectionService, logger *slog.Logger) *ProjectionHandler {
	return &ProjectionHandler{projector: projector, logger: logger}
}

// Handle 处理一条结算事件消息
func (h *ProjectionHandler) Handle(ctx context.Context, msg kafka.Message) error {
	switch msg.Topic {
	case domain.SettlementCalculatedEventType, domain.SettlementStatusChangedEventType:
		var payload struct {
			SellerID string `json:"seller_id"`
		}
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			h.logger.ErrorContext(ctx, "failed to unmarshal settlement event", "topic", msg.Topic, "error", err)
			return err
		}
		if payload.SellerID == "" {
			return nil
		}
		return h.projector.RefreshSellerSummary(ctx, payload.SellerID)
	default:
		h.logger.WarnContext(ctx, "unknown settlement event topic", "topic", msg.Topic)
		return nil
	}
}
