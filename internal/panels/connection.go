package panels

import (
	"context"
	"fmt"
	"sync"

	"github.com/itss-sierra/islas-calor/internal/analysis"
	"github.com/itss-sierra/islas-calor/internal/earthengine"
	"github.com/sirupsen/logrus"
)

// Connector opens a backend and checks that it answers.
type Connector func(ctx context.Context) (earthengine.Evaluator, error)

// Connection caches the backend and its availability. Reload forgets both
// so the next panel render reconnects.
type Connection struct {
	connect  Connector
	onChange func(available bool)
	log      logrus.FieldLogger

	mu        sync.Mutex
	ev        earthengine.Evaluator
	available bool
	lastErr   error
}

func NewConnection(connect Connector, log logrus.FieldLogger, onChange func(available bool)) *Connection {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if onChange == nil {
		onChange = func(bool) {}
	}
	return &Connection{connect: connect, onChange: onChange, log: log}
}

// Evaluator returns the cached backend, connecting on first use. A failed
// attempt is reported as analysis.ErrBackendUnavailable wrapping the cause
// and is retried only on the next call.
func (c *Connection) Evaluator(ctx context.Context) (earthengine.Evaluator, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.available {
		return c.ev, nil
	}

	ev, err := c.connect(ctx)
	if err != nil {
		c.lastErr = err
		c.set(false, nil)
		c.log.WithError(err).Warn("backend unavailable")
		return nil, fmt.Errorf("%w: %w", analysis.ErrBackendUnavailable, err)
	}
	c.lastErr = nil
	c.set(true, ev)
	c.log.WithField("backend", ev.Name()).Info("backend connected")
	return ev, nil
}

func (c *Connection) set(available bool, ev earthengine.Evaluator) {
	changed := c.available != available
	c.available, c.ev = available, ev
	if changed || !available {
		c.onChange(available)
	}
}

// Available reports the cached flag without connecting.
func (c *Connection) Available() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.available
}

// LastError is the cause of the last failed attempt, if any.
func (c *Connection) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Connection) Reload() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = nil
	c.set(false, nil)
	c.log.Info("connection flag cleared")
}
