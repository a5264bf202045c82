// Package tools executes batches of assistant tool calls against the catalog
// engine and the learning-path generator.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/HerbHall/skillpath/internal/event"
	"github.com/HerbHall/skillpath/internal/match"
	"github.com/HerbHall/skillpath/internal/metrics"
	"github.com/HerbHall/skillpath/internal/session"
	"github.com/HerbHall/skillpath/internal/skillboost"
	"github.com/HerbHall/skillpath/pkg/catalog"
)

// Call is one function call requested by the assistant.
type Call struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

// Result carries either an output or an error message, never both.
type Result struct {
	Output any    `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Response answers the call with the same ID.
type Response struct {
	ID       string `json:"id"`
	Response Result `json:"response"`
}

// Opener presents an accepted launch to the user.
type Opener interface {
	Open(ctx context.Context, entry catalog.Entry) error
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, entry catalog.Entry) error

// Open calls f.
func (f OpenerFunc) Open(ctx context.Context, entry catalog.Entry) error { return f(ctx, entry) }

// ContentEngine searches and resolves catalog content for a session.
type ContentEngine interface {
	Search(ctx context.Context, sessionID, query string) (match.Selection, error)
	Launch(ctx context.Context, sessionID, name string) (match.Decision, error)
	Suggest(sessionID, name string) []string
}

// PathGenerator produces a learning path for a goal.
type PathGenerator interface {
	GenerateLearningPath(ctx context.Context, goal string) ([]skillboost.Concept, error)
}

// Batch is one message's worth of calls for a session.
type Batch struct {
	Session *session.Session
	Calls   []Call
	Opener  Opener
}

// Config holds dispatcher settings.
type Config struct {
	Skills         []string      `mapstructure:"skills"`
	CallTimeout    time.Duration `mapstructure:"call_timeout"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
}

// DefaultConfig returns the default dispatcher configuration.
func DefaultConfig() Config {
	return Config{
		Skills:         []string{"Bigquery", "Logging", "Cloud Run"},
		CallTimeout:    60 * time.Second,
		MaxConcurrency: 8,
	}
}

// Dispatcher runs tool calls. It holds no per-session state of its own.
type Dispatcher struct {
	cfg     Config
	engine  ContentEngine
	paths   PathGenerator
	bus     event.Publisher
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewDispatcher creates a dispatcher. bus and m may be nil.
func NewDispatcher(cfg Config, engine ContentEngine, paths PathGenerator, bus event.Publisher, logger *zap.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		cfg:     cfg,
		engine:  engine,
		paths:   paths,
		bus:     bus,
		logger:  logger,
		metrics: m,
	}
}

// HandleBatch runs every call in b concurrently and returns one response per
// call, in call order. A failing call produces an error response and does not
// affect its siblings. If ctx ends before all calls finish, HandleBatch
// returns ctx.Err() and no responses.
func (d *Dispatcher) HandleBatch(ctx context.Context, b Batch) ([]Response, error) {
	if b.Session == nil {
		return nil, errors.New("tools: batch has no session")
	}
	start := time.Now()
	responses := make([]Response, len(b.Calls))

	g := new(errgroup.Group)
	if d.cfg.MaxConcurrency > 0 {
		g.SetLimit(d.cfg.MaxConcurrency)
	}
	for i, c := range b.Calls {
		g.Go(func() error {
			// Calls still queued when the session ends never start.
			if ctx.Err() != nil {
				return nil
			}
			responses[i] = d.handleCall(ctx, &b, c)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		d.logger.Debug("batch abandoned",
			zap.String("session_id", b.Session.ID),
			zap.Int("calls", len(b.Calls)),
			zap.Error(err),
		)
		return nil, err
	}

	d.metrics.Batch(time.Since(start))
	return responses, nil
}

func (d *Dispatcher) handleCall(ctx context.Context, b *Batch, c Call) Response {
	start := time.Now()
	resp := Response{ID: c.ID}

	inv, err := parseCall(c)
	if err != nil {
		resp.Response.Error = err.Error()
		d.finish(b, c, metrics.OutcomeInvalid, start, err)
		return resp
	}

	if d.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.CallTimeout)
		defer cancel()
	}

	out, err := d.run(ctx, b, inv)
	if err != nil {
		resp.Response.Error = responseMessage(inv.tool(), err)
		d.finish(b, c, outcomeOf(err), start, err)
		return resp
	}

	resp.Response.Output = out
	d.finish(b, c, metrics.OutcomeOK, start, nil)
	return resp
}

// run executes inv, turning a panic into an error so one bad call cannot take
// down the batch.
func (d *Dispatcher) run(ctx context.Context, b *Batch, inv invocation) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("tool panicked",
				zap.String("tool", inv.tool()),
				zap.Any("panic", r),
			)
			out, err = nil, errors.New("internal error")
		}
	}()
	return inv.run(ctx, d, b)
}

func (d *Dispatcher) finish(b *Batch, c Call, outcome string, start time.Time, err error) {
	elapsed := time.Since(start)
	d.metrics.ToolCall(c.Name, outcome, elapsed)

	fields := []zap.Field{
		zap.String("session_id", b.Session.ID),
		zap.String("call_id", c.ID),
		zap.String("tool", c.Name),
		zap.String("outcome", outcome),
		zap.Duration("elapsed", elapsed),
	}
	switch outcome {
	case metrics.OutcomeOK, metrics.OutcomeNotFound, metrics.OutcomeCancelled:
		d.logger.Debug("tool call finished", fields...)
	default:
		d.logger.Warn("tool call failed", append(fields, zap.Error(err))...)
	}
}

func (d *Dispatcher) publish(ctx context.Context, topic string, payload any) {
	if d.bus == nil {
		return
	}
	d.bus.PublishAsync(context.WithoutCancel(ctx), event.Event{
		Topic:   topic,
		Source:  "tools",
		Payload: payload,
	})
}

func outcomeOf(err error) string {
	var ve *ValidationError
	var nf *NotFoundError
	switch {
	case errors.As(err, &ve):
		return metrics.OutcomeInvalid
	case errors.As(err, &nf):
		return metrics.OutcomeNotFound
	case errors.Is(err, context.Canceled):
		return metrics.OutcomeCancelled
	default:
		return metrics.OutcomeError
	}
}
