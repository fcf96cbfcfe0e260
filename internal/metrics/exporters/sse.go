package exporters

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/smazurov/keylight/internal/events"
	"github.com/smazurov/keylight/internal/metrics"
)

// EventPublisher interface for publishing events.
type EventPublisher interface {
	Publish(ev events.Event)
}

// SSEExporter exports render loop statistics via Server-Sent Events.
type SSEExporter struct {
	eventBus EventPublisher
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	last     metrics.RenderStats
	lastAt   time.Time
}

// NewSSEExporter creates a new SSE exporter.
func NewSSEExporter(eventBus EventPublisher) *SSEExporter {
	return &SSEExporter{
		eventBus: eventBus,
		interval: 1 * time.Second,
	}
}

// Start begins the SSE export loop.
func (s *SSEExporter) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.last = metrics.GetRenderStats()
	s.lastAt = time.Now()
	s.wg.Add(1)
	go s.run()
}

// Stop stops the SSE exporter and waits for the goroutine to finish.
func (s *SSEExporter) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *SSEExporter) run() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case now := <-ticker.C:
			s.publishStats(now)
		}
	}
}

func (s *SSEExporter) publishStats(now time.Time) {
	cur := metrics.GetRenderStats()
	elapsed := now.Sub(s.lastAt).Seconds()
	var fps float64
	if elapsed > 0 {
		fps = float64(cur.Frames-s.last.Frames) / elapsed
	}
	s.last, s.lastAt = cur, now

	s.eventBus.Publish(events.RenderStatsEvent{
		FPS:           strconv.FormatFloat(fps, 'f', 2, 64),
		ActiveKeys:    strconv.Itoa(cur.ActiveKeys),
		DroppedFrames: strconv.FormatUint(cur.DroppedFrames, 10),
		Timestamp:     now.Format(time.RFC3339),
	})
}

// GetEventTypes returns event types for SSE endpoint registration.
func GetEventTypes() map[string]any {
	return map[string]any{
		"render-stats": events.RenderStatsEvent{},
	}
}
