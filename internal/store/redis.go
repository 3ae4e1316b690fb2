package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/model"
)

type RedisConfig struct {
	Address      string
	Password     string
	DB           int
	QueueKey     string
	StatusPrefix string
	// PollTimeout bounds each BLPOP so cancellation is noticed.
	PollTimeout time.Duration
}

// RedisQueue pops print jobs from a list and records their status in a hash.
type RedisQueue struct {
	cfg    RedisConfig
	client *redis.Client
}

func NewRedisQueue(ctx context.Context, cfg RedisConfig) (*RedisQueue, error) {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 5 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ReadTimeout:  cfg.PollTimeout + 2*time.Second,
		WriteTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisQueue{cfg: cfg, client: client}, nil
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}

// Run pops jobs into out until ctx is cancelled.
func (q *RedisQueue) Run(ctx context.Context, out chan<- model.PrintJob) error {
	log.Printf("[redis] Consuming jobs from %s", q.cfg.QueueKey)
	for {
		res, err := q.client.BLPop(ctx, q.cfg.PollTimeout, q.cfg.QueueKey).Result()
		switch {
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, redis.Nil):
			continue
		case err != nil:
			log.Printf("[redis] BLPOP failed: %v", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		job, err := DecodeJob([]byte(res[1]))
		if err != nil {
			log.Printf("[redis] Dropping job: %v", err)
			continue
		}
		select {
		case out <- job:
		case <-ctx.Done():
			return nil
		}
	}
}

// DecodeJob parses a queued job; a job without id cannot report status.
func DecodeJob(data []byte) (model.PrintJob, error) {
	var job model.PrintJob
	if err := json.Unmarshal(data, &job); err != nil {
		return job, fmt.Errorf("malformed job: %w", err)
	}
	if job.ID == "" {
		return job, fmt.Errorf("job without id")
	}
	if job.Status == "" {
		job.Status = model.JobPending
	}
	return job, nil
}

func (q *RedisQueue) SetJobStatus(ctx context.Context, jobID string, status model.JobStatus) error {
	key := q.cfg.StatusPrefix + jobID
	ok, err := q.client.HSetNX(ctx, key, "status", string(status)).Result()
	if err != nil {
		return fmt.Errorf("failed to record status for job %s: %w", jobID, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", model.ErrStatusAlreadySet, jobID)
	}
	return q.client.HSet(ctx, key, "updated_at", time.Now().UTC().Format(time.RFC3339)).Err()
}
