package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/iworkcore/internal/identity/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	DefaultRedisKey = "identity:mail:jobs"

	popTimeout = 5 * time.Second
)

// job is the msgpack envelope stored in the redis list.
type job struct {
	Message    Message   `msgpack:"message"`
	EnqueuedAt time.Time `msgpack:"enqueued_at"`
}

func encodeJob(msg Message, now time.Time) ([]byte, error) {
	return msgpack.Marshal(&job{Message: msg, EnqueuedAt: now})
}

func decodeJob(b []byte) (job, error) {
	var j job
	if err := msgpack.Unmarshal(b, &j); err != nil {
		return job{}, fmt.Errorf("mail: decode job: %w", err)
	}
	return j, nil
}

// RedisQueue is a durable queue backed by a redis list. Producers LPUSH,
// a single consumer BRPOPs and hands each job to Sender, so queued mail
// survives process restarts.
type RedisQueue struct {
	Client  *redis.Client
	Key     string
	Sender  Sender
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRedisQueue connects to url and verifies the connection.
func NewRedisQueue(ctx context.Context, url string, sender Sender, logger *slog.Logger) (*RedisQueue, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse MAIL_REDIS_URL: %w", err)
	}

	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisQueue{Client: rdb, Key: DefaultRedisKey, Sender: sender, Logger: logger}, nil
}

// Dispatch pushes msg onto the list. Failures are logged, never returned.
func (q *RedisQueue) Dispatch(ctx context.Context, msg Message) {
	b, err := encodeJob(msg, time.Now())
	if err != nil {
		q.Logger.ErrorContext(ctx, "failed to encode email job", "template", msg.Template, "error", err)
		q.Metrics.Email(string(msg.Template), metrics.ResultDropped)
		return
	}

	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	if err := q.Client.LPush(pushCtx, q.Key, b).Err(); err != nil {
		q.Logger.ErrorContext(ctx, "failed to enqueue email", "template", msg.Template, "error", err)
		q.Metrics.Email(string(msg.Template), metrics.ResultDropped)
	}
}

// Start launches the consumer loop.
func (q *RedisQueue) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel

	q.wg.Add(1)
	go q.consume(ctx)
	q.Logger.Info("redis mail queue started", "key", q.Key)
}

// Stop ends the consumer, waits for the in-flight delivery and closes the
// client.
func (q *RedisQueue) Stop(context.Context) {
	if q.cancel != nil {
		q.cancel()
	}
	q.wg.Wait()
	_ = q.Client.Close()
	q.Logger.Info("redis mail queue stopped")
}

func (q *RedisQueue) consume(ctx context.Context) {
	defer q.wg.Done()

	for {
		res, err := q.Client.BRPop(ctx, popTimeout, q.Key).Result()
		switch {
		case ctx.Err() != nil:
			return
		case errors.Is(err, redis.Nil):
			continue
		case err != nil:
			q.Logger.Warn("redis mail queue pop failed", "error", err)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		// res is [key, value]
		j, err := decodeJob([]byte(res[1]))
		if err != nil {
			q.Logger.Error("discarding malformed email job", "error", err)
			continue
		}
		q.deliver(ctx, j)
	}
}

func (q *RedisQueue) deliver(ctx context.Context, j job) {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
	defer cancel()

	tmpl := string(j.Message.Template)
	if err := q.Sender.Send(sendCtx, j.Message); err != nil {
		q.Logger.Error("failed to send email", "template", tmpl, "queued_for", time.Since(j.EnqueuedAt), "error", err)
		q.Metrics.Email(tmpl, metrics.ResultFailure)
		return
	}
	q.Metrics.Email(tmpl, metrics.ResultSuccess)
}
