package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/marketsettlement/internal/commission/domain"
)

type rateCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRateCache 创建佣金率缓存实例
func NewRateCache(client redis.UniversalClient) domain.RateCache {
	return &rateCache{
		client: client,
		prefix: "commission:rate:",
		ttl:    5 * time.Minute,
	}
}

func (c *rateCache) key(sellerID, categoryCode string) string {
	return fmt.Sprintf("%s%s:%s", c.prefix, sellerID, categoryCode)
}

func (c *rateCache) Get(ctx context.Context, sellerID, categoryCode string) (decimal.Decimal, bool, error) {
	val, err := c.client.Get(ctx, c.key(sellerID, categoryCode)).Result()
	if err == redis.Nil {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	rate, err := decimal.NewFromString(val)
	if err != nil {
		return decimal.Zero, false, err
	}
	return rate, true, nil
}

func (c *rateCache) Set(ctx context.Context, sellerID, categoryCode string, rate decimal.Decimal) error {
	return c.client.Set(ctx, c.key(sellerID, categoryCode), rate.String(), c.ttl).Err()
}

// Invalidate 清除全部已缓存的佣金率
// 政策变更的影响面跨越卖家与类目组合，整体失效比精确失效更安全
func (c *rateCache) Invalidate(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}
