// Package engine ties the pipeline together: it compiles incoming
// operations against a schema, executes the resulting query graphs through
// a connector and serializes the outcome into the requested payload. A
// weighted semaphore caps how many graphs execute concurrently.
package engine

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/syssam/querygraph/compiler"
	"github.com/syssam/querygraph/connector"
	"github.com/syssam/querygraph/interpreter"
	"github.com/syssam/querygraph/operation"
	"github.com/syssam/querygraph/schema"
	"github.com/syssam/querygraph/serializer"
)

// Engine executes operations against one schema and one connector.
type Engine struct {
	compiler *compiler.Compiler
	interp   *interpreter.Interpreter
	sem      *semaphore.Weighted
}

// Option configures an Engine.
type Option func(*config)

type config struct {
	maxConcurrency int64
}

// WithMaxConcurrency caps the number of concurrently executing graphs.
// The default is 16.
func WithMaxConcurrency(n int64) Option {
	return func(c *config) {
		if n > 0 {
			c.maxConcurrency = n
		}
	}
}

// New returns an engine executing against the given connector and schema.
func New(conn connector.Connector, s *schema.Schema, opts ...Option) *Engine {
	cfg := config{maxConcurrency: 16}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Engine{
		compiler: compiler.New(s),
		interp:   interpreter.New(conn),
		sem:      semaphore.NewWeighted(cfg.maxConcurrency),
	}
}

// Execute compiles and runs one operation and returns its payload: a list
// of records, a single record or nil, or a count object.
func (e *Engine) Execute(ctx context.Context, op operation.Operation) (any, error) {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer e.sem.Release(1)
	plan, err := e.compiler.Compile(op)
	if err != nil {
		return nil, err
	}
	out, err := e.interp.Execute(ctx, plan.Graph)
	if err != nil {
		return nil, err
	}
	return serializer.Payload(out, plan)
}

// ExecuteJSON runs one operation and returns its payload encoded as JSON.
func (e *Engine) ExecuteJSON(ctx context.Context, op operation.Operation) ([]byte, error) {
	payload, err := e.Execute(ctx, op)
	if err != nil {
		return nil, err
	}
	return serializer.EncodeJSON(payload)
}

// ExecuteMsgpack runs one operation and returns its payload encoded as
// msgpack.
func (e *Engine) ExecuteMsgpack(ctx context.Context, op operation.Operation) ([]byte, error) {
	payload, err := e.Execute(ctx, op)
	if err != nil {
		return nil, err
	}
	return serializer.EncodeMsgpack(payload)
}
