// Package collectors feeds probe metrics from the event bus.
package collectors

import (
	"log/slog"
	"sync"

	"github.com/smazurov/pingnode/internal/dm"
	"github.com/smazurov/pingnode/internal/events"
	"github.com/smazurov/pingnode/internal/ipping"
	"github.com/smazurov/pingnode/internal/logging"
	"github.com/smazurov/pingnode/internal/metrics"
)

// ResourceReader reads a single resource value.
type ResourceReader interface {
	Read(p dm.Path) (dm.Value, error)
}

// ProbeCollector updates probe metrics from bus events.
type ProbeCollector struct {
	bus    *events.Bus
	reader ResourceReader
	logger *slog.Logger
	mu     sync.Mutex
	unsubs []func()
	seen   map[uint16]struct{}
}

// NewProbeCollector creates a collector. reader is used to fetch the state
// value when a state change is announced.
func NewProbeCollector(bus *events.Bus, reader ResourceReader) *ProbeCollector {
	return &ProbeCollector{
		bus:    bus,
		reader: reader,
		logger: logging.GetLogger("metrics"),
		seen:   make(map[uint16]struct{}),
	}
}

// Start subscribes to the bus.
func (c *ProbeCollector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unsubs = append(c.unsubs,
		c.bus.Subscribe(c.onResourceChanged),
		c.bus.Subscribe(c.onProbeFinished),
	)
	c.logger.Debug("Probe collector started")
}

// Stop unsubscribes from the bus and drops the series of every instance it
// recorded.
func (c *ProbeCollector) Stop() {
	c.mu.Lock()
	unsubs := c.unsubs
	c.unsubs = nil
	c.mu.Unlock()

	// Handlers take c.mu, so detach without holding it.
	for _, unsub := range unsubs {
		unsub()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for instance := range c.seen {
		metrics.DeleteProbeMetrics(instance)
	}
	clear(c.seen)
}

func (c *ProbeCollector) markSeen(instance uint16) {
	c.mu.Lock()
	c.seen[instance] = struct{}{}
	c.mu.Unlock()
}

func (c *ProbeCollector) onResourceChanged(e events.ResourceChangedEvent) {
	if dm.ObjectID(e.ObjectID) != ipping.ObjectID || dm.ResourceID(e.ResourceID) != ipping.ResState {
		return
	}
	v, err := c.reader.Read(dm.Path{OID: ipping.ObjectID, IID: dm.InstanceID(e.InstanceID), RID: ipping.ResState})
	if err != nil {
		c.logger.Warn("Failed to read probe state", "path", e.Path, "error", err)
		return
	}
	c.markSeen(e.InstanceID)
	metrics.SetProbeState(e.InstanceID, v.Int)
}

func (c *ProbeCollector) onProbeFinished(e events.ProbeFinishedEvent) {
	state, err := ipping.ParseState(e.State)
	if err != nil {
		c.logger.Warn("Unknown probe state", "state", e.State)
		return
	}
	c.markSeen(uint16(ipping.InstanceID))
	metrics.RecordProbe(metrics.ProbeSample{
		Instance:        uint16(ipping.InstanceID),
		State:           int64(state),
		StateName:       e.State,
		SuccessCount:    e.SuccessCount,
		ErrorCount:      e.ErrorCount,
		RttMinMs:        e.MinRttMs,
		RttAvgMs:        e.AvgRttMs,
		RttMaxMs:        e.MaxRttMs,
		RttStdevUs:      e.RttStdevUs,
		DurationSeconds: float64(e.DurationMs) / 1000,
	})
}
