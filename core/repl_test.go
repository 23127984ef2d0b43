package core

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/josephlewis42/forksh/core/config"
	"github.com/stretchr/testify/assert"
)

func TestLineReader_ReadLine(t *testing.T) {
	var out bytes.Buffer
	cfg := config.Default()
	r := NewLineReader(strings.NewReader("echo a\r\n\nlast"), &out, true)

	for i, want := range []string{"echo a", "", "last"} {
		line, err := r.ReadLine(cfg.FormatPrompt(i))
		assert.NoError(t, err)
		assert.Equal(t, want, line)
	}

	_, err := r.ReadLine(cfg.FormatPrompt(3))
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, "0: 1: 2: 3: ", out.String())
}

func TestLineReader_noPrompt(t *testing.T) {
	var out bytes.Buffer
	r := NewLineReader(strings.NewReader("ls\n"), &out, false)

	line, err := r.ReadLine("0: ")
	assert.NoError(t, err)
	assert.Equal(t, "ls", line)

	_, err = r.ReadLine("1: ")
	assert.Equal(t, io.EOF, err)
	assert.Empty(t, out.String())
}
