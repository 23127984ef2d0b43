package logger

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Entry types.
const (
	TypeSessionStart = "session_start"
	TypeCommand      = "command"
	TypeSessionEnd   = "session_end"
)

var errUnknownType = errors.New("unknown log entry type")

// LogEntry is one event of the log.
type LogEntry struct {
	TimestampMicros int64  `json:"timestamp_micros"`
	SessionID       string `json:"session_id"`
	Type            string `json:"type"`

	Session *SessionEvent `json:"session,omitempty"`
	Command *CommandEvent `json:"command,omitempty"`
}

// SessionEvent describes the start or end of a shell session.
type SessionEvent struct {
	Pid            int    `json:"pid"`
	Interactive    bool   `json:"interactive"`
	PipelineStatus string `json:"pipeline_status,omitempty"`
	ExitCode       int    `json:"exit_code"`
}

// CommandEvent describes one executed line.
type CommandEvent struct {
	Line           string   `json:"line"`
	Kind           string   `json:"kind"`
	Commands       []string `json:"commands"`
	Status         string   `json:"status"`
	Code           int      `json:"code"`
	DurationMicros int64    `json:"duration_micros"`
}

// LogType is the payload of an entry, a *SessionEvent or a *CommandEvent.
type LogType interface {
	logType() string
}

func (*CommandEvent) logType() string { return TypeCommand }

// SessionStart wraps a SessionEvent recorded when the shell starts.
type SessionStart struct{ *SessionEvent }

// SessionEnd wraps a SessionEvent recorded when the shell exits.
type SessionEnd struct{ *SessionEvent }

func (SessionStart) logType() string { return TypeSessionStart }
func (SessionEnd) logType() string   { return TypeSessionEnd }

// LogRecorder is a callback that stores events in an external datastore.
type LogRecorder func(le *LogEntry) error

// Logger captures the events of shell sessions.
type Logger struct {
	Record LogRecorder
}

// NewJsonLinesLogRecorder creates a Logger that exports logs in newline
// delimited JSON object format.
func NewJsonLinesLogRecorder(w io.Writer) *Logger {
	return &Logger{
		Record: func(le *LogEntry) error {
			msg, err := le.toStruct()
			if err != nil {
				return err
			}
			entry, err := protojson.Marshal(msg)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(w, string(entry))
			return err
		},
	}
}

// NewDiscardLogger creates a Logger that drops every event.
func NewDiscardLogger() *Logger {
	return &Logger{
		Record: func(*LogEntry) error { return nil },
	}
}

func (l *Logger) recordLogType(sessionID string, event LogType) error {
	le := &LogEntry{}
	le.TimestampMicros = time.Now().UnixNano() / int64(time.Microsecond)
	le.SessionID = sessionID
	le.Type = event.logType()

	switch e := event.(type) {
	case *CommandEvent:
		le.Command = e
	case SessionStart:
		le.Session = e.SessionEvent
	case SessionEnd:
		le.Session = e.SessionEvent
	}

	return l.Record(le)
}

// NewSession creates a logger with attached session ID.
func (l *Logger) NewSession() *SessionLogger {
	return &SessionLogger{Logger: l, sessionID: fmt.Sprintf("%d", rand.Uint64())}
}

// Sessionless creates a logger without a session ID.
func (l *Logger) Sessionless() *SessionLogger {
	return &SessionLogger{Logger: l, sessionID: ""}
}

// SessionLogger logs messages with a shared session ID.
type SessionLogger struct {
	*Logger
	sessionID string
}

// SessionID returns the ID attached to every entry.
func (l *SessionLogger) SessionID() string {
	return l.sessionID
}

func (l *SessionLogger) Record(event LogType) error {
	return l.recordLogType(l.sessionID, event)
}

func (le *LogEntry) toStruct() (*structpb.Struct, error) {
	fields := map[string]interface{}{
		"timestamp_micros": le.TimestampMicros,
		"session_id":       le.SessionID,
		"type":             le.Type,
	}
	if s := le.Session; s != nil {
		fields["session"] = map[string]interface{}{
			"pid":             s.Pid,
			"interactive":     s.Interactive,
			"pipeline_status": s.PipelineStatus,
			"exit_code":       s.ExitCode,
		}
	}
	if c := le.Command; c != nil {
		commands := make([]interface{}, len(c.Commands))
		for i, name := range c.Commands {
			commands[i] = name
		}
		fields["command"] = map[string]interface{}{
			"line":            c.Line,
			"kind":            c.Kind,
			"commands":        commands,
			"status":          c.Status,
			"code":            c.Code,
			"duration_micros": c.DurationMicros,
		}
	}
	return structpb.NewStruct(fields)
}

func fromStruct(msg *structpb.Struct) (*LogEntry, error) {
	fields := msg.GetFields()
	le := &LogEntry{
		TimestampMicros: int64(fields["timestamp_micros"].GetNumberValue()),
		SessionID:       fields["session_id"].GetStringValue(),
		Type:            fields["type"].GetStringValue(),
	}

	switch le.Type {
	case TypeSessionStart, TypeSessionEnd:
		s := fields["session"].GetStructValue().GetFields()
		le.Session = &SessionEvent{
			Pid:            int(s["pid"].GetNumberValue()),
			Interactive:    s["interactive"].GetBoolValue(),
			PipelineStatus: s["pipeline_status"].GetStringValue(),
			ExitCode:       int(s["exit_code"].GetNumberValue()),
		}
	case TypeCommand:
		c := fields["command"].GetStructValue().GetFields()
		le.Command = &CommandEvent{
			Line:           c["line"].GetStringValue(),
			Kind:           c["kind"].GetStringValue(),
			Status:         c["status"].GetStringValue(),
			Code:           int(c["code"].GetNumberValue()),
			DurationMicros: int64(c["duration_micros"].GetNumberValue()),
		}
		for _, name := range c["commands"].GetListValue().GetValues() {
			le.Command.Commands = append(le.Command.Commands, name.GetStringValue())
		}
	default:
		return le, fmt.Errorf("%w %q", errUnknownType, le.Type)
	}
	return le, nil
}
