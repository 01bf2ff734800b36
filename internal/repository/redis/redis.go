// Package redis implements the confirmation ledger on Redis.
//
// KEY LAYOUT (per day):
//
//	confirmations:<day>        hash   userId -> JSON {userName, timestamp}
//	confirmations:<day>:order  zset   userId scored by Unix microseconds
//
// InsertIfAbsent runs one Lua script: HSETNX decides the winner and only the winner
// adds to the order set. Redis executes scripts atomically, so concurrent calls for the
// same user cannot both succeed. Keys expire after the retention window, which makes
// PurgeBefore a no-op.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/sakif/bin-confirm/internal/model"
	"github.com/sakif/bin-confirm/internal/repository"
)

var _ repository.ConfirmationRepository = (*Store)(nil)

// KEYS[1] hash, KEYS[2] order zset; ARGV[1] userId, ARGV[2] record, ARGV[3] score,
// ARGV[4] ttl seconds.
var insertScript = goredis.NewScript(`
if redis.call('HSETNX', KEYS[1], ARGV[1], ARGV[2]) == 0 then
	return 0
end
redis.call('ZADD', KEYS[2], ARGV[3], ARGV[1])
redis.call('EXPIRE', KEYS[1], ARGV[4])
redis.call('EXPIRE', KEYS[2], ARGV[4])
return 1
`)

type record struct {
	UserName  string    `json:"userName"`
	Timestamp time.Time `json:"timestamp"`
}

type Options struct {
	Addr     string
	Password string
	DB       int
	// TTL is how long a day's keys live after the last write.
	TTL time.Duration
}

type Store struct {
	client *goredis.Client
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

func New(ctx context.Context, opts Options, logger *slog.Logger) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: pinging %s: %w", opts.Addr, err)
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}

	logger.Debug("redis ledger opened", slog.String("addr", opts.Addr))
	return &Store{client: client, ttl: ttl, prefix: "confirmations", logger: logger}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) hashKey(day string) string {
	return fmt.Sprintf("%s:%s", s.prefix, day)
}

func (s *Store) orderKey(day string) string {
	return fmt.Sprintf("%s:%s:order", s.prefix, day)
}

func (s *Store) InsertIfAbsent(ctx context.Context, day, userID, userName string, at time.Time) (bool, error) {
	data, err := json.Marshal(record{UserName: userName, Timestamp: at})
	if err != nil {
		return false, fmt.Errorf("redis: encoding confirmation: %w", err)
	}

	res, err := insertScript.Run(ctx, s.client,
		[]string{s.hashKey(day), s.orderKey(day)},
		userID, data, at.UnixMicro(), int64(s.ttl.Seconds()),
	).Int()
	if err != nil {
		return false, fmt.Errorf("redis: inserting confirmation for %s on %s: %w", userID, day, err)
	}
	return res == 1, nil
}

func (s *Store) ListByDay(ctx context.Context, day string) ([]model.Confirmation, error) {
	userIDs, err := s.client.ZRange(ctx, s.orderKey(day), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: listing confirmations for %s: %w", day, err)
	}

	confirmations := make([]model.Confirmation, 0, len(userIDs))
	if len(userIDs) == 0 {
		return confirmations, nil
	}

	values, err := s.client.HMGet(ctx, s.hashKey(day), userIDs...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: loading confirmations for %s: %w", day, err)
	}

	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Expired between ZRANGE and HMGET.
			continue
		}
		var rec record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("redis: decoding confirmation %s: %w", userIDs[i], err)
		}
		confirmations = append(confirmations, model.Confirmation{
			UserName:  rec.UserName,
			UserID:    userIDs[i],
			Timestamp: rec.Timestamp,
			Day:       day,
		})
	}
	return confirmations, nil
}

func (s *Store) HasConfirmed(ctx context.Context, day, userID string) (bool, error) {
	ok, err := s.client.HExists(ctx, s.hashKey(day), userID).Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return false, fmt.Errorf("redis: checking confirmation for %s on %s: %w", userID, day, err)
	}
	return ok, nil
}

// PurgeBefore relies on key expiry.
func (s *Store) PurgeBefore(context.Context, string) (int64, error) {
	return 0, nil
}
