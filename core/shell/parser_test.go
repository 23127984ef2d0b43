package shell

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	cases := map[string]string{
		"empty":          ``,
		"simple":         `ls -l /tmp`,
		"redirect-out":   `echo hello > f.txt`,
		"redirect-all":   `sort < in.txt >> out.txt 2> err.txt`,
		"redirect-twice": `echo a > one > two`,
		"background":     `sleep 1 &`,
		"pipe":           `printf '%s\n' b a c | sort | uniq`,
		"pipe-redirect":  `cat < in.txt | wc -l > count.txt &`,
		"boolean":        `true && echo A || echo B`,
		"boolean-pipe":   `false || ls | wc -l && echo done`,
		"boolean-bg":     `sleep 1 & && echo next`,
	}

	g := goldie.New(
		t,
		goldie.WithFixtureDir(filepath.Join("testdata", "golden")),
		goldie.WithDiffEngine(goldie.ColoredDiff),
		goldie.WithTestNameForDir(true),
	)

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			line, err := ClassifyLine(tc)
			require.NoError(t, err)

			var buf bytes.Buffer
			enc := json.NewEncoder(&buf)
			enc.SetEscapeHTML(false)
			enc.SetIndent("", "  ")
			require.NoError(t, enc.Encode(line))

			g.Assert(t, tn, buf.Bytes())
		})
	}
}

func TestClassify_syntaxErrors(t *testing.T) {
	cases := map[string]struct {
		line    string
		message string
	}{
		"leading pipe":      {`| sort`, `missing command before "|"`},
		"trailing pipe":     {`ls |`, `missing command at end of line`},
		"double pipe":       {`ls | | wc`, `missing command before "|"`},
		"leading and":       {`&& ls`, `missing command before "&&"`},
		"trailing or":       {`ls ||`, `missing command at end of line`},
		"missing target":    {`echo hi >`, `missing target for ">"`},
		"operator target":   {`echo hi > |`, `unexpected "|" after ">"`},
		"word after target": {`echo > f extra`, `unexpected word "extra" after redirection`},
		"bare background":   {`&`, `missing command before "&"`},
		"mid background":    {`sleep 1 & echo`, `unexpected "echo" after "&"`},
		"background pipe":   {`sleep 1 & | wc`, `unexpected "|" after "&"`},
		"redirect only":     {`> f`, `missing command at end of line`},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			line, err := ClassifyLine(tc.line)
			assert.Nil(t, line)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrSyntax))
			assert.Equal(t, "syntax error: "+tc.message, err.Error())
		})
	}
}

func TestClassify_argvExcludesOperators(t *testing.T) {
	lines := []string{
		`cat < in.txt | grep x > out.txt`,
		`cat < in.txt | grep x >> out.txt &`,
		`sort 2> err | uniq > out`,
		`sleep 5 &`,
	}

	for _, raw := range lines {
		line, err := ClassifyLine(raw)
		require.NoError(t, err, raw)
		for _, link := range line.Links {
			for _, seg := range link.Pipeline.Stages {
				for _, arg := range seg.Argv {
					assert.False(t, IsOperator(arg), "%q leaked into argv of %q", arg, raw)
				}
			}
		}
	}
}

func TestLine_Simple(t *testing.T) {
	line, err := ClassifyLine(`cd /tmp > log`)
	require.NoError(t, err)

	seg, ok := line.Simple()
	assert.True(t, ok)
	assert.Equal(t, []string{"cd", "/tmp"}, seg.Argv)

	line, err = ClassifyLine(`cd /tmp | cat`)
	require.NoError(t, err)
	_, ok = line.Simple()
	assert.False(t, ok)

	assert.True(t, (*Line)(nil).Empty())
}
