package core

import (
	"bufio"
	"io"
	"strings"
)

// LineReader reads input one line at a time, printing a prompt first when
// the input is a terminal. The terminal stays in cooked mode: the kernel's
// line discipline does the editing, and Ctrl-C and Ctrl-Z keep reaching
// foreground jobs as signals.
type LineReader struct {
	in     *bufio.Reader
	out    io.Writer
	prompt bool
}

// NewLineReader creates a reader on in. Prompts go to out, only if prompt
// is set.
func NewLineReader(in io.Reader, out io.Writer, prompt bool) *LineReader {
	return &LineReader{
		in:     bufio.NewReader(in),
		out:    out,
		prompt: prompt,
	}
}

// ReadLine prints prompt and returns the next line without its line ending.
// A final line without a newline is still returned; io.EOF follows it.
func (r *LineReader) ReadLine(prompt string) (string, error) {
	if r.prompt {
		io.WriteString(r.out, prompt)
	}

	line, err := r.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
