package shell

// Defined loosely by
// https://pubs.opengroup.org/onlinepubs/9699919799/utilities/V3_chap02.html

/**
The shell breaks the input into tokens (words and operators), then groups the
tokens into lists of pipelines. A list joins pipelines with && and ||, a
pipeline joins simple commands with |, and a simple command carries its own
redirections. The background marker & may only end a pipeline.

Operator meaning is positional: the tokenizer never marks operators, Classify
assigns meaning by comparing whole words.
**/

import (
	"fmt"
)

// Operator tokens recognized by Classify.
const (
	OpPipe        = "|"
	OpAndThen     = "&&"
	OpOrElse      = "||"
	OpRedirectOut = ">"
	OpAppendOut   = ">>"
	OpRedirectIn  = "<"
	OpRedirectErr = "2>"
	OpAppendErr   = "2>>"
	OpBackground  = "&"
)

// Kind is the outermost grouping found on a line.
type Kind int

const (
	KindSimple Kind = iota
	KindPipe
	KindBoolean
)

var kindNames = map[Kind]string{
	KindSimple:  "simple",
	KindPipe:    "pipe",
	KindBoolean: "boolean",
}

func (k Kind) String() string { return kindNames[k] }

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Connector joins a pipeline to the one after it.
type Connector int

const (
	ConnNone Connector = iota
	ConnAnd
	ConnOr
)

var connectorNames = map[Connector]string{
	ConnNone: "none",
	ConnAnd:  "and",
	ConnOr:   "or",
}

func (c Connector) String() string { return connectorNames[c] }

// MarshalText implements encoding.TextMarshaler.
func (c Connector) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// Stream is a standard stream of a child process, the value is its
// descriptor number.
type Stream int

const (
	Stdin Stream = iota
	Stdout
	Stderr
)

var streamNames = map[Stream]string{
	Stdin:  "stdin",
	Stdout: "stdout",
	Stderr: "stderr",
}

func (s Stream) String() string { return streamNames[s] }

// MarshalText implements encoding.TextMarshaler.
func (s Stream) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Mode is how a redirection target is opened.
type Mode int

const (
	ModeRead Mode = iota
	ModeTruncate
	ModeAppend
)

var modeNames = map[Mode]string{
	ModeRead:     "read",
	ModeTruncate: "truncate",
	ModeAppend:   "append",
}

func (m Mode) String() string { return modeNames[m] }

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// Redirect reroutes one stream of a command to or from a file.
type Redirect struct {
	Stream Stream `json:"stream"`
	Mode   Mode   `json:"mode"`
	Path   string `json:"path"`
}

var redirectOps = map[string]Redirect{
	OpRedirectIn:  {Stream: Stdin, Mode: ModeRead},
	OpRedirectOut: {Stream: Stdout, Mode: ModeTruncate},
	OpAppendOut:   {Stream: Stdout, Mode: ModeAppend},
	OpRedirectErr: {Stream: Stderr, Mode: ModeTruncate},
	OpAppendErr:   {Stream: Stderr, Mode: ModeAppend},
}

// Segment is one simple command: its argument vector without any operator
// tokens, its redirections in source order and the background marker.
type Segment struct {
	Argv       []string   `json:"argv"`
	Redirects  []Redirect `json:"redirects,omitempty"`
	Background bool       `json:"background,omitempty"`
}

// Pipeline is one or more segments, each feeding its stdout to the next.
type Pipeline struct {
	Stages []Segment `json:"stages"`
}

// Background reports whether the pipeline ends with the background marker.
func (p Pipeline) Background() bool {
	if len(p.Stages) == 0 {
		return false
	}
	return p.Stages[len(p.Stages)-1].Background
}

// Link is a pipeline and the connector that decides whether the next link
// runs.
type Link struct {
	Pipeline Pipeline  `json:"pipeline"`
	Next     Connector `json:"next"`
}

// Line is the classification of one tokenized input line.
type Line struct {
	Kind  Kind   `json:"kind"`
	Links []Link `json:"links"`
}

// Empty reports whether the line holds no command.
func (l *Line) Empty() bool {
	return l == nil || len(l.Links) == 0
}

// Simple returns the only segment of a simple line.
func (l *Line) Simple() (Segment, bool) {
	if l.Kind != KindSimple || len(l.Links) != 1 || len(l.Links[0].Pipeline.Stages) != 1 {
		return Segment{}, false
	}
	return l.Links[0].Pipeline.Stages[0], true
}

// IsOperator reports whether the token has operator meaning.
func IsOperator(tok string) bool {
	switch tok {
	case OpPipe, OpAndThen, OpOrElse, OpBackground:
		return true
	}
	_, ok := redirectOps[tok]
	return ok
}

func syntaxErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrSyntax, fmt.Sprintf(format, args...))
}

// stage accumulates one segment during classification.
type stage struct {
	seg         Segment
	redirecting bool
}

func (s *stage) finish(next string) (Segment, error) {
	if len(s.seg.Argv) == 0 {
		if next == "" {
			return Segment{}, syntaxErrorf("missing command at end of line")
		}
		return Segment{}, syntaxErrorf("missing command before %q", next)
	}
	seg := s.seg
	*s = stage{}
	return seg, nil
}

// Classify groups tokens into links, pipelines and segments in a single
// pass. Boolean operators bind loosest, pipes bind within a link, and
// redirections and the background marker bind to one segment.
func Classify(tokens *Tokens) (*Line, error) {
	line := &Line{Kind: KindSimple}
	if tokens.Len() == 0 {
		return line, nil
	}

	var (
		cur      stage
		pipeline Pipeline
	)
	endLink := func(tok string, next Connector) error {
		seg, err := cur.finish(tok)
		if err != nil {
			return err
		}
		pipeline.Stages = append(pipeline.Stages, seg)
		line.Links = append(line.Links, Link{Pipeline: pipeline, Next: next})
		pipeline = Pipeline{}
		return nil
	}

	for i := 0; i < tokens.Len(); i++ {
		tok := tokens.At(i)
		switch tok {
		case OpAndThen, OpOrElse:
			line.Kind = KindBoolean
			next := ConnAnd
			if tok == OpOrElse {
				next = ConnOr
			}
			if err := endLink(tok, next); err != nil {
				return nil, err
			}

		case OpPipe:
			if line.Kind == KindSimple {
				line.Kind = KindPipe
			}
			seg, err := cur.finish(tok)
			if err != nil {
				return nil, err
			}
			pipeline.Stages = append(pipeline.Stages, seg)

		case OpBackground:
			if len(cur.seg.Argv) == 0 {
				return nil, syntaxErrorf("missing command before %q", tok)
			}
			if i+1 < tokens.Len() {
				if next := tokens.At(i + 1); next != OpAndThen && next != OpOrElse {
					return nil, syntaxErrorf("unexpected %q after %q", next, tok)
				}
			}
			cur.seg.Background = true

		default:
			if redirect, ok := redirectOps[tok]; ok {
				if i+1 >= tokens.Len() {
					return nil, syntaxErrorf("missing target for %q", tok)
				}
				target := tokens.At(i + 1)
				if IsOperator(target) {
					return nil, syntaxErrorf("unexpected %q after %q", target, tok)
				}
				redirect.Path = target
				cur.seg.Redirects = append(cur.seg.Redirects, redirect)
				cur.redirecting = true
				i++
				continue
			}
			if cur.redirecting {
				return nil, syntaxErrorf("unexpected word %q after redirection", tok)
			}
			cur.seg.Argv = append(cur.seg.Argv, tok)
		}
	}

	if err := endLink("", ConnNone); err != nil {
		return nil, err
	}
	return line, nil
}

// ClassifyLine tokenizes and classifies a raw line.
func ClassifyLine(raw string) (*Line, error) {
	tokens, err := Tokenize(raw)
	if err != nil {
		return nil, err
	}
	return Classify(tokens)
}
