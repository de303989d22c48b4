// Package metrics provides Prometheus metrics for probe sessions.
package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	probeState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "pingnode",
		Subsystem: "probe",
		Name:      "state",
		Help:      "Current probe state (0 none, 1 in progress, 2 complete, 3-5 errors)",
	}, []string{"instance"})

	probeSuccess = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "pingnode",
		Subsystem: "probe",
		Name:      "success_count",
		Help:      "Replies received by the last probe",
	}, []string{"instance"})

	probeErrors = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "pingnode",
		Subsystem: "probe",
		Name:      "error_count",
		Help:      "Requests without reply in the last probe",
	}, []string{"instance"})

	probeRttMin = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "pingnode",
		Subsystem: "probe",
		Name:      "rtt_min_ms",
		Help:      "Minimum round-trip time of the last probe",
	}, []string{"instance"})

	probeRttAvg = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "pingnode",
		Subsystem: "probe",
		Name:      "rtt_avg_ms",
		Help:      "Average round-trip time of the last probe",
	}, []string{"instance"})

	probeRttMax = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "pingnode",
		Subsystem: "probe",
		Name:      "rtt_max_ms",
		Help:      "Maximum round-trip time of the last probe",
	}, []string{"instance"})

	probeRttStdev = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "pingnode",
		Subsystem: "probe",
		Name:      "rtt_stdev_us",
		Help:      "Round-trip deviation of the last probe",
	}, []string{"instance"})

	probeRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pingnode",
		Subsystem: "probe",
		Name:      "runs_total",
		Help:      "Finished probes by final state",
	}, []string{"state"})

	probeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pingnode",
		Subsystem: "probe",
		Name:      "duration_seconds",
		Help:      "Wall time of finished probes",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
	})

	// Local cache for API access.
	probeCache   = make(map[uint16]*ProbeMetrics)
	probeCacheMu sync.RWMutex
)

// ProbeMetrics holds the last recorded values for an instance.
type ProbeMetrics struct {
	State        int64
	SuccessCount float64
	ErrorCount   float64
	RttMinMs     float64
	RttAvgMs     float64
	RttMaxMs     float64
	RttStdevUs   float64
	Runs         int
}

// ProbeSample is one finished probe.
type ProbeSample struct {
	Instance        uint16
	State           int64
	StateName       string
	SuccessCount    uint32
	ErrorCount      uint32
	RttMinMs        uint32
	RttAvgMs        uint32
	RttMaxMs        uint32
	RttStdevUs      uint32
	DurationSeconds float64
}

// SetProbeState sets the current state for an instance.
func SetProbeState(instance uint16, state int64) {
	probeState.WithLabelValues(label(instance)).Set(float64(state))
	updateCache(instance, func(m *ProbeMetrics) { m.State = state })
}

// RecordProbe records the outcome of a finished probe.
func RecordProbe(s ProbeSample) {
	l := label(s.Instance)
	probeState.WithLabelValues(l).Set(float64(s.State))
	probeSuccess.WithLabelValues(l).Set(float64(s.SuccessCount))
	probeErrors.WithLabelValues(l).Set(float64(s.ErrorCount))
	probeRttMin.WithLabelValues(l).Set(float64(s.RttMinMs))
	probeRttAvg.WithLabelValues(l).Set(float64(s.RttAvgMs))
	probeRttMax.WithLabelValues(l).Set(float64(s.RttMaxMs))
	probeRttStdev.WithLabelValues(l).Set(float64(s.RttStdevUs))
	probeRuns.WithLabelValues(s.StateName).Inc()
	if s.DurationSeconds > 0 {
		probeDuration.Observe(s.DurationSeconds)
	}

	updateCache(s.Instance, func(m *ProbeMetrics) {
		m.State = s.State
		m.SuccessCount = float64(s.SuccessCount)
		m.ErrorCount = float64(s.ErrorCount)
		m.RttMinMs = float64(s.RttMinMs)
		m.RttAvgMs = float64(s.RttAvgMs)
		m.RttMaxMs = float64(s.RttMaxMs)
		m.RttStdevUs = float64(s.RttStdevUs)
		m.Runs++
	})
}

// DeleteProbeMetrics removes all gauges for an instance.
func DeleteProbeMetrics(instance uint16) {
	l := label(instance)
	probeState.DeleteLabelValues(l)
	probeSuccess.DeleteLabelValues(l)
	probeErrors.DeleteLabelValues(l)
	probeRttMin.DeleteLabelValues(l)
	probeRttAvg.DeleteLabelValues(l)
	probeRttMax.DeleteLabelValues(l)
	probeRttStdev.DeleteLabelValues(l)

	probeCacheMu.Lock()
	delete(probeCache, instance)
	probeCacheMu.Unlock()
}

// GetProbeMetrics returns the last recorded values for an instance.
func GetProbeMetrics(instance uint16) *ProbeMetrics {
	probeCacheMu.RLock()
	defer probeCacheMu.RUnlock()
	if m, ok := probeCache[instance]; ok {
		dup := *m
		return &dup
	}
	return nil
}

func updateCache(instance uint16, update func(*ProbeMetrics)) {
	probeCacheMu.Lock()
	defer probeCacheMu.Unlock()
	m, ok := probeCache[instance]
	if !ok {
		m = &ProbeMetrics{}
		probeCache[instance] = m
	}
	update(m)
}

func label(instance uint16) string {
	return strconv.FormatUint(uint64(instance), 10)
}
