package collectors

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smazurov/pingnode/internal/dm"
	"github.com/smazurov/pingnode/internal/events"
	"github.com/smazurov/pingnode/internal/ipping"
	"github.com/smazurov/pingnode/internal/metrics"
)

type stateReader struct {
	state int64
}

func (r stateReader) Read(p dm.Path) (dm.Value, error) {
	if p.RID != ipping.ResState {
		return dm.Value{}, dm.ErrNotFound
	}
	return dm.Int(r.state), nil
}

func TestProbeCollector(t *testing.T) {
	metrics.DeleteProbeMetrics(0)
	defer metrics.DeleteProbeMetrics(0)

	bus := events.New()
	c := NewProbeCollector(bus, stateReader{state: int64(ipping.StateInProgress)})
	c.Start()
	defer c.Stop()

	bus.NotifyChanged(dm.Path{OID: ipping.ObjectID, IID: 0, RID: ipping.ResState})
	require.Eventually(t, func() bool {
		m := metrics.GetProbeMetrics(0)
		return m != nil && m.State == int64(ipping.StateInProgress)
	}, time.Second, 10*time.Millisecond)

	bus.Publish(events.ProbeFinishedEvent{
		State:        "complete",
		SuccessCount: 4,
		AvgRttMs:     12,
		MinRttMs:     10,
		MaxRttMs:     15,
		RttStdevUs:   2000,
		DurationMs:   3000,
	})
	require.Eventually(t, func() bool {
		m := metrics.GetProbeMetrics(0)
		return m != nil && m.Runs == 1
	}, time.Second, 10*time.Millisecond)

	m := metrics.GetProbeMetrics(0)
	assert.Equal(t, int64(ipping.StateComplete), m.State)
	assert.Equal(t, float64(4), m.SuccessCount)
	assert.Equal(t, float64(2000), m.RttStdevUs)

	c.Stop()
	assert.Nil(t, metrics.GetProbeMetrics(0))
}

func TestProbeCollectorIgnoresOtherResources(t *testing.T) {
	metrics.DeleteProbeMetrics(0)
	defer metrics.DeleteProbeMetrics(0)

	bus := events.New()
	c := NewProbeCollector(bus, stateReader{state: 2})
	c.Start()
	defer c.Stop()

	bus.NotifyChanged(dm.Path{OID: ipping.ObjectID, IID: 0, RID: ipping.ResSuccessCount})
	bus.NotifyChanged(dm.Path{OID: 1, IID: 0, RID: ipping.ResState})
	bus.Publish(events.ProbeFinishedEvent{State: "bogus"})

	time.Sleep(50 * time.Millisecond)
	assert.Nil(t, metrics.GetProbeMetrics(0))
}
