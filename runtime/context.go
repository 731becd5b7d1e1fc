// Package runtime holds the execution context and the operator
// registration contract consumed by the pipeline builder.
package runtime

import (
	"context"
	"time"

	"github.com/freshet/freshet/compiler"
	"github.com/freshet/freshet/sched"
	"go.uber.org/zap"
)

// Context provides the state shared by every stage of a running
// pipeline: cancellation, logging, and the ambient scheduler and default
// flush period injected into descriptors as implicit context.
type Context struct {
	context.Context
	cancel context.CancelFunc
	Logger *zap.Logger
	Sched  sched.Scheduler
	Period time.Duration
}

func NewContext(ctx context.Context, logger *zap.Logger, scheduler sched.Scheduler) *Context {
	ctx, cancel := context.WithCancel(ctx)
	if logger == nil {
		logger = zap.NewNop()
	}
	if scheduler == nil {
		scheduler = sched.NewTicker()
	}
	return &Context{
		Context: ctx,
		cancel:  cancel,
		Logger:  logger,
		Sched:   scheduler,
		Period:  sched.DefaultPeriod,
	}
}

func DefaultContext() *Context {
	return NewContext(context.Background(), nil, nil)
}

// Cancel cancels the context.
func (c *Context) Cancel() {
	c.cancel()
}

// Implicit is the ambient context the builder injects into descriptors.
func (c *Context) Implicit() compiler.Implicit {
	return compiler.Implicit{Period: c.Period, Sched: c.Sched}
}
