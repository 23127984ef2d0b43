package config

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/afero"
)

// Initialize writes the default configuration into dir, creating it if
// needed. An existing configuration is left untouched.
func Initialize(dir string, logger *log.Logger) (*Configuration, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	return InitializeFs(afero.NewBasePathFs(afero.NewOsFs(), dir), logger)
}

// InitializeFs writes the default configuration to the root of configFs.
func InitializeFs(configFs afero.Fs, logger *log.Logger) (*Configuration, error) {
	exists, err := afero.Exists(configFs, ConfigurationName)
	if err != nil {
		return nil, err
	}

	if exists {
		logger.Printf("- %s already exists, keeping it\n", ConfigurationName)
	} else {
		logger.Printf("- Writing %s\n", ConfigurationName)
		if err := afero.WriteFile(configFs, ConfigurationName, defaultConfigData, 0600); err != nil {
			return nil, fmt.Errorf("writing %s: %w", ConfigurationName, err)
		}
	}

	return LoadFs(configFs)
}
