package logger

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// ReadJSONLinesLog parses a newline delimited JSON log. Entries of a type
// this version does not know are still handed to handler.
func ReadJSONLinesLog(r io.Reader, handler func(le *LogEntry)) error {
	decoder := json.NewDecoder(r)
	for decoder.More() {
		var rawEntry json.RawMessage
		if err := decoder.Decode(&rawEntry); err != nil {
			return err
		}

		var msg structpb.Struct
		if err := protojson.Unmarshal(rawEntry, &msg); err != nil {
			return err
		}

		logEntry, err := fromStruct(&msg)
		if err != nil && !errors.Is(err, errUnknownType) {
			return err
		}

		handler(logEntry)
	}
	return nil
}

// NewReport creates an empty report.
func NewReport() *Report {
	return &Report{
		Command: CommandReport{
			Failures: NewPathCounter("command", "status"),
		},
	}
}

// Report holds statistics about the logged events.
type Report struct {
	LogEntries     int        `json:"log_entries"`
	Sessions       int        `json:"sessions"`
	InvalidEntries StrCounter `json:"unknown_log_entries,omitempty"`

	Command CommandReport `json:"command_report"`
}

func (r *Report) Update(le *LogEntry) {
	r.LogEntries++

	switch le.Type {
	case TypeSessionStart:
		r.Sessions++
	case TypeCommand:
		r.Command.update(le.Command)
	case TypeSessionEnd:
		// Ignore
	default:
		r.InvalidEntries.Increment(le.Type)
	}
}

type CommandReport struct {
	Count int `json:"count"`
	// Line kinds: simple, pipe or boolean.
	Kinds StrCounter `json:"line_kinds"`
	// Name of the first word of every stage.
	CommandNames StrCounter `json:"command_names"`
	// How the lines ended.
	Statuses StrCounter `json:"statuses"`
	// Lines that did not exit 0, by command and status.
	Failures *PathCounter `json:"failures"`

	TotalDurationMicros int64 `json:"total_duration_micros"`
}

func (r *CommandReport) update(c *CommandEvent) {
	r.Count++
	r.Kinds.Increment(c.Kind)
	r.Statuses.Increment(c.Status)
	for _, name := range c.Commands {
		r.CommandNames.Increment(name)
	}
	if c.Code != 0 && len(c.Commands) > 0 && r.Failures != nil {
		r.Failures.Increment(c.Commands[0], c.Status)
	}
	r.TotalDurationMicros += c.DurationMicros
}

// History lists the executed lines in log order.
type History struct {
	Entries []HistoryEntry
}

// HistoryEntry is one executed line.
type HistoryEntry struct {
	Time      time.Time
	SessionID string
	Line      string
	Code      int
}

func (h *History) Update(le *LogEntry) {
	if le.Type != TypeCommand || le.Command == nil {
		return
	}
	h.Entries = append(h.Entries, HistoryEntry{
		Time:      time.UnixMicro(le.TimestampMicros),
		SessionID: le.SessionID,
		Line:      le.Command.Line,
		Code:      le.Command.Code,
	})
}

// WriteTo prints one line per entry.
func (h *History) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for i, entry := range h.Entries {
		n, err := fmt.Fprintf(w, "%5d  %s  %3d  %s\n", i, entry.Time.Format(time.RFC3339), entry.Code, entry.Line)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// StrCounter counts the number of strings seen.
type StrCounter struct {
	internal map[string]int
}

// Increment adds one to the given key.
func (s *StrCounter) Increment(toAdd string) {
	if s.internal == nil {
		s.internal = make(map[string]int)
	}

	s.internal[toAdd]++
}

// Get returns the count for key.
func (s *StrCounter) Get(key string) int {
	return s.internal[key]
}

// MarshalJSON implemnts custom JSON marshaler.
func (s StrCounter) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.internal)
}

func NewPathCounter(cols ...string) *PathCounter {
	return &PathCounter{
		cols:     cols,
		internal: make(map[string]int),
	}
}

// PathCounter counts the number of string tuples seen.
type PathCounter struct {
	cols     []string
	internal map[string]int
}

// Increment adds one to the given key.
func (ctr *PathCounter) Increment(toAdd ...string) {
	if len(toAdd) != len(ctr.cols) {
		panic("wrong number of columns to add")
	}

	ctr.internal[toKey(toAdd...)]++
}

// Get returns the count for the tuple.
func (ctr *PathCounter) Get(vals ...string) int {
	return ctr.internal[toKey(vals...)]
}

// MarshalJSON implemnts custom JSON marshaler.
func (ctr *PathCounter) MarshalJSON() ([]byte, error) {
	type Count struct {
		Count  int               `json:"count"`
		Fields map[string]string `json:"event"`
		Path   string            `json:"-"`
	}

	var out []Count
	for k, v := range ctr.internal {
		count := Count{
			Count:  v,
			Path:   k,
			Fields: make(map[string]string),
		}

		splitPath := fromKey(k)
		for colNum, colVal := range ctr.cols {
			count.Fields[colVal] = splitPath[colNum]
		}

		out = append(out, count)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Path < out[j].Path
		}
		return out[i].Count > out[j].Count
	})

	return json.Marshal(out)
}

func toKey(vals ...string) string {
	key, _ := json.Marshal(vals)
	return string(key)
}

func fromKey(key string) (out []string) {
	json.Unmarshal([]byte(key), &out)
	return
}
