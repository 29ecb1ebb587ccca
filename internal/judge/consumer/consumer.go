// Package consumer pulls jobs from the broker queues, runs them through the
// judge pipelines and publishes their results.
package consumer

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Avadhutgiri/my-online-judge/internal/common/cache"
	"github.com/Avadhutgiri/my-online-judge/internal/common/mq"
	"github.com/Avadhutgiri/my-online-judge/internal/judge/model"
	"github.com/Avadhutgiri/my-online-judge/internal/judge/observer"
	"github.com/Avadhutgiri/my-online-judge/internal/judge/verdict"
	appErr "github.com/Avadhutgiri/my-online-judge/pkg/errors"
	"github.com/Avadhutgiri/my-online-judge/pkg/utils/logger"

	"go.uber.org/zap"
)

const inflightPrefix = "judge:inflight:"

// Handler runs the pipeline for one submission.
type Handler interface {
	Handle(ctx context.Context, sub model.Submission) verdict.Verdict
}

// Publisher delivers a result record.
type Publisher interface {
	Publish(ctx context.Context, mode model.Mode, rec model.ResultRecord)
}

// Config controls one consumer.
type Config struct {
	// MaxIterations bounds the jobs taken by one Process call.
	MaxIterations int           `yaml:"maxIterations"`
	PopTimeout    time.Duration `yaml:"popTimeout"`
	// WorkerID scopes the in-flight ledger to this process.
	WorkerID string `yaml:"workerID"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.MaxIterations <= 0 {
		c.MaxIterations = 10
	}
	if c.PopTimeout <= 0 {
		c.PopTimeout = 5 * time.Second
	}
	// Redis blocking pops take whole seconds.
	if c.PopTimeout < time.Second {
		c.PopTimeout = time.Second
	}
	if c.WorkerID == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "worker"
		}
		c.WorkerID = host
	}
}

// Consumer drives the fetch, dispatch and publish cycle.
type Consumer struct {
	cfg       Config
	conn      *connection
	handler   Handler
	publisher Publisher
	limiter   *mq.TokenLimiter
	metrics   observer.MetricsRecorder
}

// New creates a consumer. The broker is dialed lazily on first use.
func New(cfg Config, dial DialFunc, handler Handler, publisher Publisher, limiter *mq.TokenLimiter, metrics observer.MetricsRecorder) (*Consumer, error) {
	if dial == nil {
		return nil, fmt.Errorf("broker dial func is required")
	}
	if handler == nil {
		return nil, fmt.Errorf("handler is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	cfg.ApplyDefaults()
	if limiter == nil {
		limiter = mq.NewTokenLimiter(1)
	}
	if metrics == nil {
		metrics = observer.Nop{}
	}
	return &Consumer{
		cfg:       cfg,
		conn:      newConnection(dial),
		handler:   handler,
		publisher: publisher,
		limiter:   limiter,
		metrics:   metrics,
	}, nil
}

// State reports the broker connection state.
func (c *Consumer) State() State {
	return c.conn.State()
}

// Close releases the broker connection.
func (c *Consumer) Close() error {
	return c.conn.close()
}

// InflightKey is the list holding jobs popped but not yet published.
func (c *Consumer) InflightKey(queue string) string {
	return inflightPrefix + queue + ":" + c.cfg.WorkerID
}

// Process runs up to MaxIterations jobs from queue. An empty queue ends the
// invocation early. Broker failures are logged and never returned; only an
// unknown queue is an error.
func (c *Consumer) Process(ctx context.Context, queue string) error {
	mode, ok := model.ModeForQueue(queue)
	if !ok {
		return appErr.New(appErr.UnknownQueue).WithDetail("queue", queue)
	}
	ctx = logger.WithQueue(ctx, queue)

	for i := 0; i < c.cfg.MaxIterations; i++ {
		if ctx.Err() != nil {
			return nil
		}
		broker, err := c.conn.get(ctx)
		if err != nil {
			c.metrics.ObserveFetch(ctx, queue, observer.FetchError)
			logger.Error(ctx, "broker reconnect failed", zap.Error(err))
			return nil
		}
		raw, ok, err := broker.BLMove(ctx, queue, c.InflightKey(queue), cache.ListRight, cache.ListLeft, c.cfg.PopTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.metrics.ObserveFetch(ctx, queue, observer.FetchError)
			c.conn.markDisconnected(ctx, broker, err)
			continue
		}
		if !ok {
			c.metrics.ObserveFetch(ctx, queue, observer.FetchIdle)
			logger.Debug(ctx, "queue empty")
			return nil
		}
		c.metrics.ObserveFetch(ctx, queue, observer.FetchJob)
		c.dispatch(ctx, broker, queue, mode, raw)
	}
	return nil
}

// dispatch decodes and runs one job. The raw payload was moved into the
// in-flight list by the pop and stays there until its result is published.
func (c *Consumer) dispatch(ctx context.Context, broker Broker, queue string, mode model.Mode, raw string) {
	sub, decodeErr := model.DecodeJob([]byte(raw), mode)
	sub.Mode = mode
	sub.ExecutionID = model.NewExecutionID(sub.ID)
	ctx = logger.WithSubmission(ctx, sub.ID, sub.ExecutionID)

	if err := c.limiter.Acquire(ctx); err != nil {
		logger.Warn(ctx, "shutdown before dispatch, job left in flight")
		return
	}
	defer c.limiter.Release()

	var v verdict.Verdict
	if decodeErr != nil {
		logger.Warn(ctx, "malformed job", zap.Error(decodeErr))
		v = verdict.Failed(decodeErr.Error())
	} else {
		v = c.handle(ctx, sub)
	}
	if ctx.Err() != nil {
		logger.Warn(ctx, "shutdown during pipeline, job left in flight", zap.String("verdict", v.Kind.String()))
		return
	}

	c.publisher.Publish(ctx, mode, v.Record(sub.ID, mode))

	if _, err := broker.LRem(ctx, c.InflightKey(queue), 1, raw); err != nil {
		logger.Warn(ctx, "clear in-flight job failed", zap.Error(err))
		c.conn.markDisconnected(ctx, broker, err)
	}
}

func (c *Consumer) handle(ctx context.Context, sub model.Submission) (v verdict.Verdict) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "handler panicked", zap.Any("panic", r))
			v = verdict.Failed(fmt.Sprint(r))
		}
	}()
	return c.handler.Handle(ctx, sub)
}

// Recover moves jobs left in this worker's in-flight list back onto the
// tail of queue in their original pop order, so they are popped next. It
// returns the number re-queued.
func (c *Consumer) Recover(ctx context.Context, queue string) (int, error) {
	if _, ok := model.ModeForQueue(queue); !ok {
		return 0, appErr.New(appErr.UnknownQueue).WithDetail("queue", queue)
	}
	broker, err := c.conn.get(ctx)
	if err != nil {
		return 0, err
	}
	key := c.InflightKey(queue)
	requeued := 0
	for {
		_, ok, err := broker.LMove(ctx, key, queue, cache.ListLeft, cache.ListRight)
		if err != nil {
			c.conn.markDisconnected(ctx, broker, err)
			return requeued, appErr.Wrapf(err, appErr.BrokerUnavailable, "requeue in-flight job failed")
		}
		if !ok {
			break
		}
		requeued++
	}
	if requeued > 0 {
		logger.Info(logger.WithQueue(ctx, queue), "requeued in-flight jobs", zap.Int("count", requeued))
	}
	return requeued, nil
}
