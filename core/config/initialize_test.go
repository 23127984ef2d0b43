package config

import (
	"io/ioutil"
	"log"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
)

func TestInitialize(t *testing.T) {
	tempDir := filepath.Join(t.TempDir(), "forksh")
	if _, err := Initialize(tempDir, log.New(ioutil.Discard, "", 0)); err != nil {
		t.Fatal(err)
	}

	// Check that the config is valid
	cfg, err := Load(tempDir)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("LoadConfigFile", func(t *testing.T) {
		byFile, err := Load(filepath.Join(tempDir, ConfigurationName))
		assert.Nil(t, err)
		assert.Equal(t, cfg.Prompt, byFile.Prompt)
	})

	t.Run("OpenEventLog", func(t *testing.T) {
		fd, err := cfg.OpenEventLog()
		assert.Nil(t, err)
		fd.Write([]byte("{}\n"))
		fd.Close()

		info, err := afero.NewOsFs().Stat(filepath.Join(tempDir, EventLogName))
		assert.Nil(t, err)
		assert.Equal(t, "-rw-------", info.Mode().String())
	})

	t.Run("ReadEventLog", func(t *testing.T) {
		fd, err := cfg.ReadEventLog()
		assert.Nil(t, err)
		fd.Close()
	})
}

func TestInitializeFs_keepsExisting(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, ConfigurationName, []byte("prompt: '$ '\npipeline_status: last\ncolor: never\n"), 0600)

	cfg, err := InitializeFs(fs, log.New(ioutil.Discard, "", 0))
	assert.Nil(t, err)
	assert.Equal(t, "$ ", cfg.Prompt)
}
