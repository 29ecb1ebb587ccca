package consumer

import (
	"context"
	"sync"

	"github.com/Avadhutgiri/my-online-judge/internal/common/cache"
	appErr "github.com/Avadhutgiri/my-online-judge/pkg/errors"
	"github.com/Avadhutgiri/my-online-judge/pkg/utils/logger"

	"go.uber.org/zap"
)

// Broker is the queue side of the key-value store.
type Broker interface {
	cache.ListOps
	Ping(ctx context.Context) error
	Close() error
}

// DialFunc opens a broker connection.
type DialFunc func(ctx context.Context) (Broker, error)

// State is the broker connection state.
type State int

const (
	Disconnected State = iota
	Connected
)

func (s State) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

// connection owns the broker handle and redials after a failure.
type connection struct {
	mu     sync.Mutex
	dial   DialFunc
	broker Broker
	state  State
}

func newConnection(dial DialFunc) *connection {
	return &connection{dial: dial, state: Disconnected}
}

// get returns the live broker, dialing and pinging when disconnected.
func (c *connection) get(ctx context.Context) (Broker, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Connected && c.broker != nil {
		return c.broker, nil
	}
	broker, err := c.dial(ctx)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.BrokerUnavailable, "dial broker failed: %v", err)
	}
	if err := broker.Ping(ctx); err != nil {
		_ = broker.Close()
		return nil, appErr.Wrapf(err, appErr.BrokerUnavailable, "ping broker failed: %v", err)
	}
	c.broker = broker
	c.state = Connected
	logger.Info(ctx, "broker connected")
	return broker, nil
}

// markDisconnected drops broker after a transport failure on it. A failure
// reported on a handle that was already replaced leaves the live one alone.
func (c *connection) markDisconnected(ctx context.Context, broker Broker, cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Disconnected || c.broker != broker {
		logger.Debug(ctx, "stale broker failure ignored", zap.Error(cause))
		return
	}
	logger.Warn(ctx, "broker disconnected", zap.Error(cause))
	_ = c.broker.Close()
	c.broker = nil
	c.state = Disconnected
}

func (c *connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *connection) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broker == nil {
		return nil
	}
	err := c.broker.Close()
	c.broker = nil
	c.state = Disconnected
	return err
}
