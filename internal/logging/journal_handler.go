package logging

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/coreos/go-systemd/v22/journal"
)

const syslogIdentifier = "pingnode"

// reservedFields are journal fields set by the handler or by journald itself.
// Attributes with these names are stored under PINGNODE_<NAME> instead.
var reservedFields = map[string]bool{
	"MESSAGE":           true,
	"MESSAGE_ID":        true,
	"PRIORITY":          true,
	"SYSLOG_IDENTIFIER": true,
	"SYSLOG_FACILITY":   true,
	"SYSLOG_PID":        true,
	"CODE_FILE":         true,
	"CODE_LINE":         true,
	"CODE_FUNC":         true,
	"ERRNO":             true,
}

type journalSender func(message string, priority journal.Priority, fields map[string]string) error

// JournalHandler writes records to the systemd journal. Every attribute
// becomes a journal field, so probe logs can be filtered with e.g.
// SESSION_ID=<uuid> or OBJECT_ID=12359.
type JournalHandler struct {
	level  slog.Leveler
	attrs  []slog.Attr
	groups []string
	send   journalSender
}

// NewJournalHandler creates a journal handler.
func NewJournalHandler(level slog.Leveler) *JournalHandler {
	return &JournalHandler{level: level, send: journal.Send}
}

func (h *JournalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *JournalHandler) Handle(_ context.Context, r slog.Record) error {
	priority := journalPriority(r.Level)
	return h.send(r.Message, priority, h.fields(r, priority))
}

func (h *JournalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	dup := *h
	dup.attrs = append(dup.attrs[:len(dup.attrs):len(dup.attrs)], attrs...)
	return &dup
}

func (h *JournalHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	dup := *h
	dup.groups = append(dup.groups[:len(dup.groups):len(dup.groups)], name)
	return &dup
}

// fields renders the journal entry for r.
func (h *JournalHandler) fields(r slog.Record, priority journal.Priority) map[string]string {
	fields := map[string]string{
		"MESSAGE":           r.Message,
		"PRIORITY":          strconv.Itoa(int(priority)),
		"SYSLOG_IDENTIFIER": syslogIdentifier,
	}
	for _, attr := range h.attrs {
		addJournalAttr(fields, attr, h.groups)
	}
	r.Attrs(func(attr slog.Attr) bool {
		addJournalAttr(fields, attr, h.groups)
		return true
	})
	return fields
}

func journalPriority(level slog.Level) journal.Priority {
	switch {
	case level >= slog.LevelError:
		return journal.PriErr
	case level >= slog.LevelWarn:
		return journal.PriWarning
	case level >= slog.LevelInfo:
		return journal.PriInfo
	default:
		return journal.PriDebug
	}
}

func addJournalAttr(fields map[string]string, attr slog.Attr, groups []string) {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return
	}

	if attr.Value.Kind() == slog.KindGroup {
		nested := groups
		if attr.Key != "" {
			nested = append(groups[:len(groups):len(groups)], attr.Key)
		}
		for _, a := range attr.Value.Group() {
			addJournalAttr(fields, a, nested)
		}
		return
	}

	key := journalFieldName(groups, attr.Key)
	if key == "" {
		return
	}
	value := journalValue(attr.Value)
	fields[key] = value

	// Object paths are split so entries can be matched per object or resource.
	if len(groups) == 0 && attr.Key == "path" {
		if oid, iid, rid, ok := splitObjectPath(value); ok {
			fields["OBJECT_ID"] = oid
			fields["INSTANCE_ID"] = iid
			fields["RESOURCE_ID"] = rid
		}
	}
}

// journalFieldName builds a valid journal field name: upper case letters,
// digits and underscores, not starting with an underscore.
func journalFieldName(groups []string, key string) string {
	name := key
	if len(groups) > 0 {
		name = strings.Join(groups, "_") + "_" + key
	}
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, name)
	name = strings.TrimLeft(name, "_")
	if name == "" {
		return ""
	}
	if reservedFields[name] || (name[0] >= '0' && name[0] <= '9') {
		name = "PINGNODE_" + name
	}
	return name
}

func journalValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindTime:
		return v.Time().Format("2006-01-02T15:04:05.000Z07:00")
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
	}
	return v.String()
}

// splitObjectPath splits "/oid/iid/rid" into its numeric parts.
func splitObjectPath(s string) (oid, iid, rid string, ok bool) {
	parts := strings.Split(s, "/")
	if len(parts) != 4 || parts[0] != "" {
		return "", "", "", false
	}
	for _, p := range parts[1:] {
		if _, err := strconv.ParseUint(p, 10, 16); err != nil {
			return "", "", "", false
		}
	}
	return parts[1], parts[2], parts[3], true
}

// IsJournalAvailable checks if systemd journal is available.
func IsJournalAvailable() bool {
	return journal.Enabled()
}
