// Package dispatcher routes host commands to their handlers.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	// ErrUnknownCommand is returned for a command nobody registered.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrQueueFull is returned when a buffered handler drops a request.
	ErrQueueFull = errors.New("queue full")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("dispatcher closed")
)

// Request is one call from the host.
type Request struct {
	Command  string
	Args     []string
	Received time.Time
}

// HandlerFunc processes a request and returns a result for the host.
type HandlerFunc func(Request) (any, error)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*options)

type options struct {
	bufferSize int
	logged     bool
}

// Buffered runs the handler on its own goroutine behind a queue of the given
// size. The caller gets "queued" straight away, or ErrQueueFull when the
// queue has no room; the host thread never waits on a buffered handler.
func Buffered(size int) Option {
	return func(o *options) {
		o.bufferSize = size
	}
}

// Logged adds debug logging around the handler.
func Logged() Option {
	return func(o *options) {
		o.logged = true
	}
}

// Dispatcher routes requests to registered handlers. Unbuffered handlers run
// on the caller's goroutine, so control commands keep the host's ordering.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	logger   Logger

	queueSize metric.Int64ObservableGauge
	processed metric.Int64Counter
	dropped   metric.Int64Counter
	duration  metric.Float64Histogram

	mu      sync.RWMutex
	buffers map[string]chan Request
	closed  bool
	workers sync.WaitGroup
}

// New creates a Dispatcher. Metrics go to the global OTel meter.
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		buffers:  make(map[string]chan Request),
		logger:   logger,
	}

	m := meter()

	var err error

	d.queueSize, err = m.Int64ObservableGauge(
		"atc.dispatcher.queue.size",
		metric.WithDescription("Requests waiting in buffered handlers"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			d.mu.RLock()
			defer d.mu.RUnlock()
			for cmd, buf := range d.buffers {
				o.ObserveInt64(d.queueSize, int64(len(buf)),
					metric.WithAttributes(attribute.String("command", cmd)))
			}
			return nil
		},
		d.queueSize,
	)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	d.processed, err = m.Int64Counter(
		"atc.dispatcher.requests.processed",
		metric.WithDescription("Requests handled"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	d.dropped, err = m.Int64Counter(
		"atc.dispatcher.requests.dropped",
		metric.WithDescription("Requests dropped by a full queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	d.duration, err = m.Float64Histogram(
		"atc.dispatcher.duration",
		metric.WithDescription("Handler run time"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}

	return d, nil
}

// Register adds a handler for the given command.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	handler := d.withMetrics(command, h)

	if o.bufferSize > 0 {
		handler = d.withBuffer(command, o.bufferSize, handler)
	}

	if o.logged {
		handler = d.withLogging(command, handler)
	}

	d.handlers[command] = handler
}

// Dispatch routes a request to its handler.
func (d *Dispatcher) Dispatch(r Request) (any, error) {
	h, ok := d.handlers[r.Command]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, r.Command)
	}
	return h(r)
}

// HasHandler reports whether a handler is registered for the command.
func (d *Dispatcher) HasHandler(command string) bool {
	_, ok := d.handlers[command]
	return ok
}

// Commands lists the registered commands in order.
func (d *Dispatcher) Commands() []string {
	cmds := lo.Keys(d.handlers)
	slices.Sort(cmds)
	return cmds
}

// Close stops accepting buffered requests and waits for the queues to drain.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, buf := range d.buffers {
		close(buf)
	}
	d.mu.Unlock()

	d.workers.Wait()
}

func (d *Dispatcher) withMetrics(command string, h HandlerFunc) HandlerFunc {
	cmdAttr := metric.WithAttributes(attribute.String("command", command))
	return func(r Request) (any, error) {
		start := time.Now()
		result, err := h(r)
		d.duration.Record(context.Background(), float64(time.Since(start).Microseconds())/1000, cmdAttr)
		d.processed.Add(context.Background(), 1, cmdAttr)
		return result, err
	}
}

func (d *Dispatcher) withBuffer(command string, size int, h HandlerFunc) HandlerFunc {
	buffer := make(chan Request, size)

	d.mu.Lock()
	d.buffers[command] = buffer
	d.mu.Unlock()

	d.workers.Add(1)
	go func() {
		defer d.workers.Done()
		for r := range buffer {
			if _, err := h(r); err != nil {
				d.logger.Error("buffered request failed", "command", command, "error", err)
			}
		}
	}()

	cmdAttr := attribute.String("command", command)

	return func(r Request) (any, error) {
		d.mu.RLock()
		defer d.mu.RUnlock()
		if d.closed {
			return nil, ErrClosed
		}

		select {
		case buffer <- r:
			return "queued", nil
		default:
			d.dropped.Add(context.Background(), 1, metric.WithAttributes(cmdAttr))
			d.logger.Warn("request dropped", "command", command)
			return nil, fmt.Errorf("%w: %s", ErrQueueFull, command)
		}
	}
}

func (d *Dispatcher) withLogging(command string, h HandlerFunc) HandlerFunc {
	return func(r Request) (any, error) {
		start := time.Now()
		d.logger.Debug("handling request", "command", command, "args", len(r.Args))

		result, err := h(r)

		if err != nil {
			d.logger.Error("request failed", "command", command, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("request complete", "command", command, "duration", time.Since(start))
		}

		return result, err
	}
}
