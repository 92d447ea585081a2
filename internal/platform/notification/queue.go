package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultQueueKey is the Redis list the dispatcher pushes notices onto.
const DefaultQueueKey = "medlab:notifications"

// Notice is a completion notice queued for delivery.
type Notice struct {
	AnalysisID   uuid.UUID `json:"analysis_id"`
	AnalysisName string    `json:"analysis_name"`
	PatientName  string    `json:"patient_name"`
	Recipient    string    `json:"recipient"`
	CompletedAt  time.Time `json:"completed_at"`
	Attempts     int       `json:"attempts"`
}

// Dispatcher hands completion notices off for asynchronous delivery.
// Dispatch must not block on actual email transport.
type Dispatcher interface {
	Dispatch(ctx context.Context, n Notice) error
}

// RedisDispatcher pushes notices onto a Redis list.
type RedisDispatcher struct {
	client *redis.Client
	key    string
}

// NewRedisDispatcher creates a dispatcher writing to the given queue key.
// An empty key falls back to DefaultQueueKey.
func NewRedisDispatcher(client *redis.Client, key string) *RedisDispatcher {
	if key == "" {
		key = DefaultQueueKey
	}
	return &RedisDispatcher{client: client, key: key}
}

// Dispatch JSON-encodes the notice and LPUSHes it onto the queue.
func (d *RedisDispatcher) Dispatch(ctx context.Context, n Notice) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notice: %w", err)
	}
	if err := d.client.LPush(ctx, d.key, payload).Err(); err != nil {
		return fmt.Errorf("enqueue notice: %w", err)
	}
	return nil
}

// Worker drains the queue and delivers notices through a Mailer. Failed sends
// requeue with an incremented attempt counter up to maxRetries, then are
// logged and dropped.
type Worker struct {
	client     *redis.Client
	key        string
	mailer     *Mailer
	maxRetries int
	logger     zerolog.Logger
}

// NewWorker constructs a queue worker.
func NewWorker(client *redis.Client, key string, mailer *Mailer, maxRetries int, logger zerolog.Logger) *Worker {
	if key == "" {
		key = DefaultQueueKey
	}
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Worker{
		client:     client,
		key:        key,
		mailer:     mailer,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// Run blocks, popping notices until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info().Str("queue", w.key).Msg("notification worker started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("notification worker stopping")
			return
		default:
		}

		res, err := w.client.BRPop(ctx, 2*time.Second, w.key).Result()
		if err != nil {
			if err == redis.Nil || ctx.Err() != nil {
				continue
			}
			w.logger.Error().Err(err).Msg("pop notice")
			// Back off so a down Redis does not spin the loop.
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		// BRPop returns [key, value].
		if len(res) != 2 {
			continue
		}
		w.process(ctx, []byte(res[1]))
	}
}

func (w *Worker) process(ctx context.Context, payload []byte) {
	var n Notice
	if err := json.Unmarshal(payload, &n); err != nil {
		w.logger.Error().Err(err).Msg("decode notice, dropping")
		return
	}

	err := w.mailer.SendFromTemplate(ctx, "analysis-completed", map[string]string{
		"patient_name":  n.PatientName,
		"analysis_name": n.AnalysisName,
		"completed_at":  n.CompletedAt.Format("2006-01-02"),
	}, n.Recipient)
	if err == nil {
		w.logger.Info().
			Str("analysis_id", n.AnalysisID.String()).
			Str("recipient", n.Recipient).
			Msg("completion notice sent")
		return
	}

	n.Attempts++
	if n.Attempts >= w.maxRetries {
		w.logger.Error().Err(err).
			Str("analysis_id", n.AnalysisID.String()).
			Int("attempts", n.Attempts).
			Msg("completion notice dropped after retries")
		return
	}

	w.logger.Warn().Err(err).
		Str("analysis_id", n.AnalysisID.String()).
		Int("attempts", n.Attempts).
		Msg("completion notice requeued")

	requeued, merr := json.Marshal(n)
	if merr != nil {
		w.logger.Error().Err(merr).Msg("re-encode notice, dropping")
		return
	}
	if err := w.client.LPush(ctx, w.key, requeued).Err(); err != nil {
		w.logger.Error().Err(err).Msg("requeue notice, dropping")
	}
}

// ChannelDispatcher delivers notices over an in-process channel. It backs
// development mode and tests, where Redis is not available.
type ChannelDispatcher struct {
	ch chan Notice
}

// NewChannelDispatcher creates a dispatcher with the given buffer size.
func NewChannelDispatcher(buffer int) *ChannelDispatcher {
	return &ChannelDispatcher{ch: make(chan Notice, buffer)}
}

// Dispatch places the notice on the channel, dropping it when the buffer is
// full rather than blocking the caller.
func (d *ChannelDispatcher) Dispatch(_ context.Context, n Notice) error {
	select {
	case d.ch <- n:
		return nil
	default:
		return fmt.Errorf("notice buffer full")
	}
}

// Notices exposes the channel for a draining goroutine or test assertions.
func (d *ChannelDispatcher) Notices() <-chan Notice {
	return d.ch
}

// Drain consumes notices and delivers them through the mailer until the
// context is cancelled.
func (d *ChannelDispatcher) Drain(ctx context.Context, mailer *Mailer, logger zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-d.ch:
			err := mailer.SendFromTemplate(ctx, "analysis-completed", map[string]string{
				"patient_name":  n.PatientName,
				"analysis_name": n.AnalysisName,
				"completed_at":  n.CompletedAt.Format("2006-01-02"),
			}, n.Recipient)
			if err != nil {
				logger.Error().Err(err).Str("recipient", n.Recipient).Msg("send completion notice")
			}
		}
	}
}
