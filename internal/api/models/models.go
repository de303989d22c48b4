// Package models holds the request and response bodies of the HTTP API.
package models

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"dev" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit SHA"`
	BuildDate string `json:"build_date" example:"2024-12-15 14:30" doc:"Build timestamp"`
	BuildID   string `json:"build_id" example:"a1b2c3d4" doc:"Unique build identifier"`
	GoVersion string `json:"go_version" example:"go1.24.0" doc:"Go compiler version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Compiler used"`
	Platform  string `json:"platform" example:"linux/amd64" doc:"Platform"`
}

type VersionResponse struct {
	Body VersionData
}

// Object models
type ResourceInfo struct {
	ID         uint16 `json:"id" example:"6" doc:"Resource id"`
	Name       string `json:"name" example:"state" doc:"Resource name"`
	Kind       string `json:"kind" example:"int" enum:"none,string,int" doc:"Value type"`
	Operations string `json:"operations" example:"R" doc:"Supported operations (R, W, E)"`
}

type ObjectData struct {
	ID        uint16         `json:"id" example:"12359" doc:"Object id"`
	Instances []uint16       `json:"instances" doc:"Instance ids"`
	Resources []ResourceInfo `json:"resources" doc:"Resource table"`
}

type ObjectsData struct {
	Objects []ObjectData `json:"objects" doc:"Registered objects"`
}

type ObjectsResponse struct {
	Body ObjectsData
}

type ResourceValue struct {
	Path  string `json:"path" example:"/12359/0/0" doc:"Resource path"`
	ID    uint16 `json:"id" example:"0" doc:"Resource id"`
	Name  string `json:"name" example:"hostname" doc:"Resource name"`
	Value any    `json:"value" doc:"Current value (string or integer)"`
}

type ResourceResponse struct {
	Body ResourceValue
}

type InstanceData struct {
	ObjectID   uint16          `json:"object_id" example:"12359" doc:"Object id"`
	InstanceID uint16          `json:"instance_id" example:"0" doc:"Instance id"`
	Resources  []ResourceValue `json:"resources" doc:"Readable resources"`
}

type InstanceResponse struct {
	Body InstanceData
}

// ExecuteData acknowledges an execute request. The outcome is reported
// through resource change events.
type ExecuteData struct {
	Path   string `json:"path" example:"/12359/0/5" doc:"Executed resource"`
	Status string `json:"status" example:"accepted" doc:"Request status"`
}

type ExecuteResponse struct {
	Body ExecuteData
}

// ConnectedEvent is the first message on every event stream.
type ConnectedEvent struct {
	Message   string `json:"message" example:"SSE connection established" doc:"Message"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Connection timestamp"`
}

// Log models
type LogsData struct {
	Entries []LogEntry `json:"entries" doc:"Buffered log entries, oldest first"`
}

type LogEntry struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Sequence number"`
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"ipping" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

type LogsResponse struct {
	Body LogsData
}

// Probe metric models
type ProbeMetricsData struct {
	InstanceID   uint16  `json:"instance_id" example:"0" doc:"Instance id"`
	State        int64   `json:"state" example:"2" doc:"Last reported state code"`
	SuccessCount float64 `json:"success_count" example:"4" doc:"Replies received by the last probe"`
	ErrorCount   float64 `json:"error_count" example:"0" doc:"Requests lost by the last probe"`
	RttMinMs     float64 `json:"rtt_min_ms" example:"10" doc:"Minimum round trip time of the last probe"`
	RttAvgMs     float64 `json:"rtt_avg_ms" example:"12" doc:"Average round trip time of the last probe"`
	RttMaxMs     float64 `json:"rtt_max_ms" example:"15" doc:"Maximum round trip time of the last probe"`
	RttStdevUs   float64 `json:"rtt_stdev_us" example:"2000" doc:"Round trip time deviation in microseconds"`
	Runs         int     `json:"runs" example:"3" doc:"Finished probes recorded since start"`
}

type ProbeMetricsResponse struct {
	Body ProbeMetricsData
}
