package jobs

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/bobarin/auctioneer/internal/models"
	"github.com/go-redis/redis/v8"
)

const keyPrefix = "auctioneer:job:"

// Redis keeps the ledger in a hash per job so several API replicas share it.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(redisURL string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl}, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) Record(ctx context.Context, jobID string, mode models.Mode) error {
	key := keyPrefix + jobID

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			"mode", string(mode),
			"submitted_at", time.Now().UTC().Format(time.RFC3339Nano),
			"polls", 0,
		)
		pipe.Expire(ctx, key, r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record job %s: %w", jobID, err)
	}
	return nil
}

func (r *Redis) Observe(ctx context.Context, jobID, status string) error {
	key := keyPrefix + jobID

	exists, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to look up job %s: %w", jobID, err)
	}
	if exists == 0 {
		return ErrNotFound
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, key, "polls", 1)
		pipe.HSet(ctx, key,
			"last_status", status,
			"checked_at", time.Now().UTC().Format(time.RFC3339Nano),
		)
		pipe.Expire(ctx, key, r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update job %s: %w", jobID, err)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, jobID string) (*models.LedgerEntry, error) {
	fields, err := r.client.HGetAll(ctx, keyPrefix+jobID).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get job %s: %w", jobID, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	entry := &models.LedgerEntry{
		JobID:      jobID,
		Mode:       models.Mode(fields["mode"]),
		LastStatus: fields["last_status"],
	}
	if t, err := time.Parse(time.RFC3339Nano, fields["submitted_at"]); err == nil {
		entry.SubmittedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, fields["checked_at"]); err == nil {
		entry.CheckedAt = &t
	}
	if n, err := strconv.Atoi(fields["polls"]); err == nil {
		entry.Polls = n
	}

	return entry, nil
}
