// Package redis 提供卖家结算汇总读模型的 Redis 实现。
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wyfcoding/marketsettlement/internal/settlement/domain"
)

type summaryRepository struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewSummaryRepository 创建卖家结算汇总仓储实例
func NewSummaryRepository(client redis.UniversalClient) domain.SummaryReadRepository {
	return &summaryRepository{
		client: client,
		prefix: "settlement:seller:summary:",
		ttl:    24 * time.Hour,
	}
}

func (r *summaryRepository) key(sellerID string) string {
	return fmt.Sprintf("%s%s", r.prefix, sellerID)
}

func (r *summaryRepository) Save(ctx context.Context, summary *domain.SellerSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(summary.SellerID), data, r.ttl).Err()
}

func (r *summaryRepository) Get(ctx context.Context, sellerID string) (*domain.SellerSummary, error) {
	data, err := r.client.Get(ctx, r.key(sellerID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var summary domain.SellerSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (r *summaryRepository) Delete(ctx context.Context, sellerID string) error {
	return r.client.Del(ctx, r.key(sellerID)).Err()
}
