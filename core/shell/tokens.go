package shell

import (
	"errors"
	"fmt"

	shlex "github.com/anmitsu/go-shlex"
)

// ErrSyntax is wrapped by every tokenizer and classifier failure.
var ErrSyntax = errors.New("syntax error")

// Tokens is the immutable word sequence of one input line.
type Tokens struct {
	words []string
}

// Tokenize splits a raw line into whitespace and quote aware words using
// POSIX rules.
func Tokenize(line string) (*Tokens, error) {
	words, err := shlex.Split(line, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	return &Tokens{words: words}, nil
}

// NewTokens wraps an already split sequence, the slice is copied.
func NewTokens(words ...string) *Tokens {
	return &Tokens{words: append([]string(nil), words...)}
}

// Len returns the number of tokens.
func (t *Tokens) Len() int {
	if t == nil {
		return 0
	}
	return len(t.words)
}

// At returns the i-th token.
func (t *Tokens) At(i int) string {
	return t.words[i]
}

// Words returns a copy of the tokens.
func (t *Tokens) Words() []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.words...)
}
