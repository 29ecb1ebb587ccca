// Package publisher fans a result record out to the result cache, the
// caller's webhook and the optional event stream.
package publisher

import (
	"context"
	"time"

	"github.com/Avadhutgiri/my-online-judge/internal/judge/model"
	"github.com/Avadhutgiri/my-online-judge/internal/judge/observer"
	"github.com/Avadhutgiri/my-online-judge/internal/judge/webhook"
	"github.com/Avadhutgiri/my-online-judge/pkg/utils/logger"

	"go.uber.org/zap"
)

// Sink names used in logs and metrics.
const (
	SinkCache   = "cache"
	SinkWebhook = "webhook"
	SinkEvents  = "events"
)

// ResultStore persists result records.
type ResultStore interface {
	Save(ctx context.Context, rec model.ResultRecord) error
}

// WebhookSender posts result records.
type WebhookSender interface {
	Send(ctx context.Context, mode model.Mode, rec model.ResultRecord) (webhook.ResponseInfo, error)
}

// EventPublisher emits final result events.
type EventPublisher interface {
	PublishFinal(ctx context.Context, mode model.Mode, rec model.ResultRecord) error
}

// Publisher delivers results to every configured sink.
type Publisher struct {
	store   ResultStore
	webhook WebhookSender
	events  EventPublisher
	metrics observer.MetricsRecorder
	timeout time.Duration
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithEvents enables the event stream sink.
func WithEvents(events EventPublisher) Option {
	return func(p *Publisher) { p.events = events }
}

// WithMetrics records per-sink outcomes.
func WithMetrics(metrics observer.MetricsRecorder) Option {
	return func(p *Publisher) {
		if metrics != nil {
			p.metrics = metrics
		}
	}
}

// WithTimeout bounds each sink call.
func WithTimeout(timeout time.Duration) Option {
	return func(p *Publisher) { p.timeout = timeout }
}

// New creates a publisher. store and hook may be nil to disable a sink.
func New(store ResultStore, hook WebhookSender, opts ...Option) *Publisher {
	p := &Publisher{store: store, webhook: hook, metrics: observer.Nop{}}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish delivers rec to each sink. A failing sink is logged and never
// prevents the others.
func (p *Publisher) Publish(ctx context.Context, mode model.Mode, rec model.ResultRecord) {
	if p.store != nil {
		p.deliver(ctx, SinkCache, func(ctx context.Context) error {
			return p.store.Save(ctx, rec)
		})
	}
	if p.webhook != nil {
		p.deliver(ctx, SinkWebhook, func(ctx context.Context) error {
			info, err := p.webhook.Send(ctx, mode, rec)
			if err == nil {
				logger.Debug(ctx, "webhook delivered", zap.Int("status", info.StatusCode), zap.Duration("elapsed", info.Duration))
			}
			return err
		})
	}
	if p.events != nil {
		p.deliver(ctx, SinkEvents, func(ctx context.Context) error {
			return p.events.PublishFinal(ctx, mode, rec)
		})
	}
}

func (p *Publisher) deliver(ctx context.Context, sink string, fn func(context.Context) error) {
	ctxSink := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctxSink, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	err := fn(ctxSink)
	p.metrics.ObservePublish(ctx, sink, err == nil)
	if err != nil {
		logger.Warn(ctx, "publish result failed", zap.String("sink", sink), zap.Error(err))
	}
}
