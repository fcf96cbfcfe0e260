package led

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/keylight/internal/events"
	"github.com/smazurov/keylight/internal/metrics"
	"github.com/smazurov/keylight/internal/render"
)

// EventPublisher interface for publishing events.
type EventPublisher interface {
	Publish(ev events.Event)
}

// Output hands frames from the render loop to a Sink on a dedicated writer
// goroutine. It holds at most one pending frame; a newer frame replaces it.
type Output struct {
	sink     Sink
	eventBus EventPublisher
	logger   *slog.Logger

	frames  chan render.Frame
	healthy atomic.Bool

	errMu   sync.Mutex
	lastErr string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOutput creates an output for sink. Call Start before submitting frames.
func NewOutput(sink Sink, eventBus EventPublisher, logger *slog.Logger) *Output {
	o := &Output{
		sink:     sink,
		eventBus: eventBus,
		logger:   logger,
		frames:   make(chan render.Frame, 1),
	}
	o.healthy.Store(true)
	metrics.SetSinkHealthy(sink.Name(), true)
	return o
}

// Start launches the writer goroutine.
func (o *Output) Start(ctx context.Context) {
	ctx, o.cancel = context.WithCancel(ctx)
	o.wg.Add(1)
	go o.run(ctx)
	o.logger.Info("LED output started", "sink", o.sink.Name())
}

// Stop writes any pending frame, stops the writer and closes the sink.
func (o *Output) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
	if err := o.sink.Close(); err != nil {
		o.logger.Warn("Failed to close LED sink", "sink", o.sink.Name(), "error", err)
	}
	o.logger.Info("LED output stopped", "sink", o.sink.Name())
}

// Submit queues frame without blocking. It returns false if the frame was dropped.
func (o *Output) Submit(frame render.Frame) bool {
	select {
	case o.frames <- frame:
		return true
	default:
	}

	// Replace the stale pending frame.
	select {
	case <-o.frames:
		metrics.IncFramesDropped()
	default:
	}
	select {
	case o.frames <- frame:
		return true
	default:
		metrics.IncFramesDropped()
		return false
	}
}

// Healthy reports whether the last write succeeded.
func (o *Output) Healthy() bool {
	return o.healthy.Load()
}

// LastError returns the last write error, or "" while healthy.
func (o *Output) LastError() string {
	o.errMu.Lock()
	defer o.errMu.Unlock()
	return o.lastErr
}

// Name returns the sink name.
func (o *Output) Name() string {
	return o.sink.Name()
}

func (o *Output) run(ctx context.Context) {
	defer o.wg.Done()
	for {
		select {
		case <-ctx.Done():
			select {
			case frame := <-o.frames:
				o.write(frame)
			default:
			}
			return
		case frame := <-o.frames:
			o.write(frame)
		}
	}
}

func (o *Output) write(frame render.Frame) {
	err := o.sink.Write(frame)
	metrics.ObserveSinkWrite(o.sink.Name(), err)
	o.setHealth(err)
}

// setHealth records the write result and reports transitions.
func (o *Output) setHealth(err error) {
	healthy := err == nil
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	o.errMu.Lock()
	o.lastErr = msg
	o.errMu.Unlock()

	if o.healthy.Swap(healthy) == healthy {
		return
	}

	metrics.SetSinkHealthy(o.sink.Name(), healthy)
	if healthy {
		o.logger.Info("LED sink recovered", "sink", o.sink.Name())
	} else {
		o.logger.Warn("LED sink failing", "sink", o.sink.Name(), "error", err)
	}
	if o.eventBus != nil {
		o.eventBus.Publish(events.HardwareStatusChangedEvent{
			Sink:      o.sink.Name(),
			Healthy:   healthy,
			Error:     msg,
			Timestamp: time.Now().Format(time.RFC3339),
		})
	}
}
