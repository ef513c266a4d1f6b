package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"phincommerce/internal/service/orchestrator/domain"
)

const journalKeyPrefix = "saga:journal:"

// RedisJournal 把每个订单的流转记录保存在一个 Redis List 中，并设置过期时间
type RedisJournal struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

func NewRedisJournal(rdb redis.UniversalClient, ttl time.Duration) *RedisJournal {
	return &RedisJournal{rdb: rdb, ttl: ttl}
}

// NewRedisClient 单地址时是普通客户端，多地址时是集群客户端
func NewRedisClient(addrs []string, password string, db int) redis.UniversalClient {
	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    addrs,
		Password: password,
		DB:       db,
	})
}

type redisEntry struct {
	SagaID     string           `json:"saga_id"`
	OrderID    int64            `json:"order_id"`
	From       domain.SagaState `json:"from"`
	To         domain.SagaState `json:"to"`
	Detail     string           `json:"detail,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}

func journalKey(orderID int64) string {
	return fmt.Sprintf("%s{%d}", journalKeyPrefix, orderID)
}

func (j *RedisJournal) Record(ctx context.Context, t domain.Transition) error {
	payload, err := json.Marshal(redisEntry{
		SagaID: t.SagaID, OrderID: t.OrderID, From: t.From, To: t.To,
		Detail: t.Detail, OccurredAt: t.OccurredAt,
	})
	if err != nil {
		return errors.Wrap(err, "marshal journal entry")
	}

	key := journalKey(t.OrderID)
	pipe := j.rdb.TxPipeline()
	pipe.RPush(ctx, key, payload)
	if j.ttl > 0 {
		pipe.Expire(ctx, key, j.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrapf(err, "append journal for order %d", t.OrderID)
	}
	return nil
}

func (j *RedisJournal) History(ctx context.Context, orderID int64) ([]domain.Transition, error) {
	raw, err := j.rdb.LRange(ctx, journalKey(orderID), 0, -1).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "read journal for order %d", orderID)
	}
	if len(raw) == 0 {
		return nil, domain.ErrSagaNotFound
	}

	out := make([]domain.Transition, 0, len(raw))
	for _, item := range raw {
		var e redisEntry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, errors.Wrapf(err, "decode journal entry for order %d", orderID)
		}
		out = append(out, domain.Transition{
			SagaID: e.SagaID, OrderID: e.OrderID, From: e.From, To: e.To,
			Detail: e.Detail, OccurredAt: e.OccurredAt,
		})
	}
	return out, nil
}
