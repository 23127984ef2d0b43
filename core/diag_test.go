package core

import (
	"bytes"
	"errors"
	"testing"

	"github.com/josephlewis42/forksh/core/config"
	"github.com/stretchr/testify/assert"
)

func TestDiagnostics_ShouldColor(t *testing.T) {
	cases := map[string]struct {
		mode   string
		isTerm bool
		want   bool
	}{
		"auto terminal": {config.ColorAuto, true, true},
		"auto file":     {config.ColorAuto, false, false},
		"always":        {config.ColorAlways, false, true},
		"never":         {config.ColorNever, true, false},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			d := NewDiagnostics(nil, ShellName, tc.mode, tc.isTerm)
			assert.Equal(t, tc.want, d.ShouldColor())
		})
	}
}

func TestDiagnostics_Error(t *testing.T) {
	var plain, colored bytes.Buffer

	NewDiagnostics(&plain, "sh", config.ColorNever, true).Error(errors.New("boom"))
	assert.Equal(t, "sh: boom\n", plain.String())

	NewDiagnostics(&colored, "sh", config.ColorAlways, false).Warnf("%d left", 2)
	assert.Contains(t, colored.String(), "\x1b[")
	assert.Contains(t, colored.String(), "2 left")
}
