package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

var (
	//go:embed default/config.yaml
	defaultConfigData []byte

	// ErrNoDirectory is returned for files of a configuration that was not
	// loaded from a directory.
	ErrNoDirectory = errors.New("configuration has no directory")
)

const (
	ConfigurationName = "config.yaml"
	EventLogName      = "events.log"
)

// Colour modes.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

type Configuration struct {
	configFs afero.Fs

	Prompt         string `json:"prompt" validate:"required"`
	PipelineStatus string `json:"pipeline_status" validate:"oneof=last pipefail"`
	Path           string `json:"path"`
	Color          string `json:"color" validate:"oneof=auto always never"`
	EventLog       bool   `json:"event_log"`
}

// Validate the configuration for basic semantic errors.
func (c *Configuration) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		return name
	})

	if err := validate.Struct(c); err != nil {
		return err
	}
	if out := c.FormatPrompt(0); strings.Contains(out, "%!") {
		return fmt.Errorf("prompt %q takes at most one integer verb: %s", c.Prompt, out)
	}
	return nil
}

// FormatPrompt renders the prompt for line number n.
func (c *Configuration) FormatPrompt(n int) string {
	if !strings.Contains(c.Prompt, "%") {
		return c.Prompt
	}
	return fmt.Sprintf(c.Prompt, n)
}

// Persistent reports whether the configuration is backed by a directory.
// The built-in defaults have nowhere to write an event log.
func (c *Configuration) Persistent() bool {
	return c.configFs != nil
}

func (c *Configuration) fs() (afero.Fs, error) {
	if c.configFs == nil {
		return nil, ErrNoDirectory
	}
	return c.configFs, nil
}

// OpenEventLog opens the event log in an append only state.
func (c *Configuration) OpenEventLog() (afero.File, error) {
	fs, err := c.fs()
	if err != nil {
		return nil, err
	}
	return fs.OpenFile(EventLogName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
}

func (c *Configuration) ReadEventLog() (afero.File, error) {
	fs, err := c.fs()
	if err != nil {
		return nil, err
	}
	return fs.OpenFile(EventLogName, os.O_RDONLY, 0600)
}

// Default returns the built-in configuration.
func Default() *Configuration {
	return defaultConfig()
}

func defaultConfig() *Configuration {
	var out Configuration
	if err := yaml.UnmarshalStrict(defaultConfigData, &out); err != nil {
		panic(err)
	}
	return &out
}
