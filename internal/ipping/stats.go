package ipping

import (
	"fmt"

	"github.com/smazurov/pingnode/internal/dm"
)

// State is the outcome of the most recent probe.
type State uint8

// Probe states. The numeric values are the wire encoding of the state resource.
const (
	StateNone State = iota
	StateInProgress
	StateComplete
	StateErrorHostName
	StateErrorInternal
	StateErrorOther
)

var stateNames = [...]string{
	StateNone:          "none",
	StateInProgress:    "in_progress",
	StateComplete:      "complete",
	StateErrorHostName: "error_host_name",
	StateErrorInternal: "error_internal",
	StateErrorOther:    "error_other",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ParseState returns the state with the given name.
func ParseState(name string) (State, error) {
	for i, n := range stateNames {
		if n == name {
			return State(i), nil
		}
	}
	return StateNone, fmt.Errorf("unknown state %q", name)
}

// Counts are the packet counters reported by a probe.
type Counts struct {
	Success uint32 `json:"success_count"`
	Error   uint32 `json:"error_count"`
}

// RTT is the round-trip summary reported by a probe.
type RTT struct {
	AvgMs   uint32 `json:"avg_rtt_ms"`
	MinMs   uint32 `json:"min_rtt_ms"`
	MaxMs   uint32 `json:"max_rtt_ms"`
	StdevUs uint32 `json:"rtt_stdev_us"`
}

// Statistics is the readable result block of the object.
type Statistics struct {
	State State `json:"state"`
	Counts
	RTT
}

func (s *Statistics) value(rid dm.ResourceID) dm.Value {
	switch rid {
	case ResState:
		return dm.Int(int64(s.State))
	case ResSuccessCount:
		return dm.Int(int64(s.Success))
	case ResErrorCount:
		return dm.Int(int64(s.Error))
	case ResAvgRttMs:
		return dm.Int(int64(s.AvgMs))
	case ResMinRttMs:
		return dm.Int(int64(s.MinMs))
	case ResMaxRttMs:
		return dm.Int(int64(s.MaxMs))
	case ResRttStdevUs:
		return dm.Int(int64(s.StdevUs))
	}
	return dm.Value{Kind: dm.KindNone}
}

// statsStore owns the statistics and announces every mutation.
type statsStore struct {
	Statistics
	notify func(rid dm.ResourceID)
}

func (s *statsStore) setState(st State) {
	s.State = st
	s.notify(ResState)
}

func (s *statsStore) setCounts(c Counts) {
	s.Success = c.Success
	s.notify(ResSuccessCount)
	s.Error = c.Error
	s.notify(ResErrorCount)
}

func (s *statsStore) setRTT(r RTT) {
	s.AvgMs = r.AvgMs
	s.notify(ResAvgRttMs)
	s.MinMs = r.MinMs
	s.notify(ResMinRttMs)
	s.MaxMs = r.MaxMs
	s.notify(ResMaxRttMs)
	s.StdevUs = r.StdevUs
	s.notify(ResRttStdevUs)
}
