package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	emaildomain "mailsync-backend/internal/email/domain"

	"github.com/redis/go-redis/v9"
)

// redisSummaryRepository keeps summaries in Redis with a TTL instead of a table.
type redisSummaryRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisSummaryRepository(rdb *redis.Client, ttl time.Duration) EmailSummaryRepository {
	return &redisSummaryRepository{rdb: rdb, ttl: ttl}
}

func summaryKey(userID, emailID string) string {
	return fmt.Sprintf("summary:%s:%s", userID, emailID)
}

func (r *redisSummaryRepository) GetSummary(ctx context.Context, userID, emailID string) (*emaildomain.EmailSummary, error) {
	text, err := r.rdb.Get(ctx, summaryKey(userID, emailID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &emaildomain.EmailSummary{UserID: userID, EmailID: emailID, Summary: text}, nil
}

func (r *redisSummaryRepository) GetSummaries(ctx context.Context, userID string, emailIDs []string) (map[string]string, error) {
	result := make(map[string]string, len(emailIDs))
	if len(emailIDs) == 0 {
		return result, nil
	}

	keys := make([]string, len(emailIDs))
	for i, id := range emailIDs {
		keys[i] = summaryKey(userID, id)
	}

	values, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range values {
		if s, ok := v.(string); ok {
			result[emailIDs[i]] = s
		}
	}
	return result, nil
}

func (r *redisSummaryRepository) SaveSummary(ctx context.Context, userID, emailID, summary string) error {
	return r.rdb.Set(ctx, summaryKey(userID, emailID), summary, r.ttl).Err()
}

func (r *redisSummaryRepository) DeleteSummary(ctx context.Context, userID, emailID string) error {
	return r.rdb.Del(ctx, summaryKey(userID, emailID)).Err()
}
