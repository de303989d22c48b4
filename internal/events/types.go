package events

// Event type constants for kelindar/event.
const (
	TypeResourceChanged uint32 = iota + 1
	TypeProbeFinished
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// ResourceChangedEvent is published whenever an object resource changes.
type ResourceChangedEvent struct {
	Path       string `json:"path" example:"/12359/0/6" doc:"Resource path"`
	ObjectID   uint16 `json:"object_id" example:"12359" doc:"Object id"`
	InstanceID uint16 `json:"instance_id" example:"0" doc:"Instance id"`
	ResourceID uint16 `json:"resource_id" example:"6" doc:"Resource id"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Change timestamp"`
}

// Type returns the event type identifier for ResourceChangedEvent.
func (e ResourceChangedEvent) Type() uint32 { return TypeResourceChanged }

// ProbeFinishedEvent is published when a probe session ends.
type ProbeFinishedEvent struct {
	SessionID    string `json:"session_id" example:"0b5c7f9e-4a51-4bb5-9a37-3f3f1c1a2b8d" doc:"Probe session id"`
	Hostname     string `json:"hostname" example:"example.org" doc:"Probed host"`
	State        string `json:"state" example:"complete" doc:"Final probe state"`
	SuccessCount uint32 `json:"success_count" example:"4" doc:"Replies received"`
	ErrorCount   uint32 `json:"error_count" example:"0" doc:"Requests without reply"`
	AvgRttMs     uint32 `json:"avg_rtt_ms" example:"12" doc:"Average round-trip time in ms"`
	MinRttMs     uint32 `json:"min_rtt_ms" example:"10" doc:"Minimum round-trip time in ms"`
	MaxRttMs     uint32 `json:"max_rtt_ms" example:"15" doc:"Maximum round-trip time in ms"`
	RttStdevUs   uint32 `json:"rtt_stdev_us" example:"2000" doc:"Round-trip deviation in µs"`
	DurationMs   int64  `json:"duration_ms" example:"3012" doc:"Session duration in ms"`
	Timestamp    string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Finish timestamp"`
}

// Type returns the event type identifier for ProbeFinishedEvent.
func (e ProbeFinishedEvent) Type() uint32 { return TypeProbeFinished }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"ipping" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
