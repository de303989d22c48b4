package nats

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/smazurov/pingnode/internal/dm"
)

// Subject prefixes for NATS topics.
const (
	SubjectObjectsPrefix = "pingnode.objects"
	SubjectControlPrefix = "pingnode.control"
	SubjectProbeFinished = "pingnode.probes.finished"
)

// Control actions, the last token of a control subject.
const (
	ActionExecute = "execute"
	ActionWrite   = "write"
)

// SubjectResource returns the subject resource changes of p are published on.
func SubjectResource(p dm.Path) string {
	return fmt.Sprintf("%s.%d.%d.%d", SubjectObjectsPrefix, p.OID, p.IID, p.RID)
}

// SubjectObject returns a wildcard subject matching every resource of oid.
func SubjectObject(oid dm.ObjectID) string {
	return fmt.Sprintf("%s.%d.>", SubjectObjectsPrefix, oid)
}

// SubjectControl returns the subject that triggers action on p.
func SubjectControl(p dm.Path, action string) string {
	return fmt.Sprintf("%s.%d.%d.%d.%s", SubjectControlPrefix, p.OID, p.IID, p.RID, action)
}

// ParseControlSubject splits a control subject into its path and action.
func ParseControlSubject(subject string) (dm.Path, string, error) {
	rest, ok := strings.CutPrefix(subject, SubjectControlPrefix+".")
	if !ok {
		return dm.Path{}, "", fmt.Errorf("not a control subject: %s", subject)
	}
	parts := strings.Split(rest, ".")
	if len(parts) != 4 {
		return dm.Path{}, "", fmt.Errorf("malformed control subject: %s", subject)
	}

	var ids [3]uint16
	for i := range ids {
		n, err := strconv.ParseUint(parts[i], 10, 16)
		if err != nil {
			return dm.Path{}, "", fmt.Errorf("malformed control subject %s: %w", subject, err)
		}
		ids[i] = uint16(n)
	}
	p := dm.Path{OID: dm.ObjectID(ids[0]), IID: dm.InstanceID(ids[1]), RID: dm.ResourceID(ids[2])}
	return p, parts[3], nil
}

// ResourceMessage carries the value of a changed resource.
type ResourceMessage struct {
	Path      string `json:"path"`
	Value     any    `json:"value"`
	Timestamp string `json:"timestamp"`
}

// Marshal serializes the message to JSON.
func (m ResourceMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// ProbeMessage summarizes a finished probe.
type ProbeMessage struct {
	SessionID    string `json:"session_id"`
	Hostname     string `json:"hostname"`
	State        string `json:"state"`
	SuccessCount uint32 `json:"success_count"`
	ErrorCount   uint32 `json:"error_count"`
	AvgRttMs     uint32 `json:"avg_rtt_ms"`
	MinRttMs     uint32 `json:"min_rtt_ms"`
	MaxRttMs     uint32 `json:"max_rtt_ms"`
	RttStdevUs   uint32 `json:"rtt_stdev_us"`
	DurationMs   int64  `json:"duration_ms"`
	Timestamp    string `json:"timestamp"`
}

// Marshal serializes the message to JSON.
func (m ProbeMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// ControlMessage is the optional payload of a control request.
// Write requests carry the new value; execute requests may be empty.
type ControlMessage struct {
	Value  any    `json:"value,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Marshal serializes the message to JSON.
func (m ControlMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// ControlReply answers a control request.
type ControlReply struct {
	OK    bool   `json:"ok"`
	Code  string `json:"code,omitempty"` // 4.00, 4.04, 4.05, 5.00
	Error string `json:"error,omitempty"`
}

// Marshal serializes the message to JSON.
func (m ControlReply) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// Err converts a failed reply back into a protocol error.
func (m ControlReply) Err() error {
	if m.OK {
		return nil
	}
	code := dm.CodeInternal
	for _, c := range []dm.Code{dm.CodeBadRequest, dm.CodeNotFound, dm.CodeMethodNotAllowed, dm.CodeInternal} {
		if c.String() == m.Code {
			code = c
			break
		}
	}
	return dm.NewError(code, m.Error)
}

// UnmarshalResource deserializes a ResourceMessage from JSON.
func UnmarshalResource(data []byte) (ResourceMessage, error) {
	var m ResourceMessage
	err := json.Unmarshal(data, &m)
	return m, err
}

// UnmarshalProbe deserializes a ProbeMessage from JSON.
func UnmarshalProbe(data []byte) (ProbeMessage, error) {
	var m ProbeMessage
	err := json.Unmarshal(data, &m)
	return m, err
}

// UnmarshalControl deserializes a ControlMessage from JSON.
// An empty payload is a valid execute request.
func UnmarshalControl(data []byte) (ControlMessage, error) {
	var m ControlMessage
	if len(data) == 0 {
		return m, nil
	}
	err := json.Unmarshal(data, &m)
	return m, err
}

// UnmarshalReply deserializes a ControlReply from JSON.
func UnmarshalReply(data []byte) (ControlReply, error) {
	var m ControlReply
	err := json.Unmarshal(data, &m)
	return m, err
}
