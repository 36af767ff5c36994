/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"fmt"
	"io"
)

// Loader fills configuration objects from a DataProvider.
// Every object first registers its defaults, then reads its values,
// each through a DataProvider scoped to the object's key prefix (see KeyPrefixProvider).
type Loader struct {
	DataProvider DataProvider
}

// NewDefaultLoader creates a Loader backed by viper which also reads environment variables
// named <ENVVARSPREFIX>_<KEY> (e.g. FWLIMIT_STORE_TYPE for "store.type").
func NewDefaultLoader(envVarsPrefix string) *Loader {
	va := NewViperAdapter()
	va.UseEnvVars(envVarsPrefix)
	return NewLoader(va)
}

// NewLoader creates a new configurations' loader.
func NewLoader(dp DataProvider) *Loader {
	return &Loader{dp}
}

// Load sets configuration objects from defaults and values already present in the data provider
// (environment variables, explicit overrides).
func (l *Loader) Load(cfg Config, cfgs ...Config) error {
	return l.load(cfg, cfgs)
}

// LoadFromPath loads configuration values from the file if the path is not empty.
// The format is detected by the file extension.
func (l *Loader) LoadFromPath(path string, cfg Config, cfgs ...Config) error {
	if path == "" {
		return l.load(cfg, cfgs)
	}
	dataType, err := DataTypeFromPath(path)
	if err != nil {
		return err
	}
	if err = l.LoadFromFile(path, dataType, cfg, cfgs...); err != nil {
		return fmt.Errorf("load config from file %q: %w", path, err)
	}
	return nil
}

// LoadFromFile loads configuration values from file and sets them in configuration objects.
func (l *Loader) LoadFromFile(path string, dataType DataType, cfg Config, cfgs ...Config) error {
	if err := l.DataProvider.SetFromFile(path, dataType); err != nil {
		return err
	}
	return l.load(cfg, cfgs)
}

// LoadFromReader loads configuration values from reader and sets them in configuration objects.
func (l *Loader) LoadFromReader(reader io.Reader, dataType DataType, cfg Config, cfgs ...Config) error {
	if err := l.DataProvider.SetFromReader(reader, dataType); err != nil {
		return err
	}
	return l.load(cfg, cfgs)
}

func (l *Loader) load(first Config, rest []Config) error {
	all := append([]Config{first}, rest...)
	scoped := make([]DataProvider, len(all))
	// Defaults of all objects are registered before any value is read,
	// so objects sharing keys see each other's defaults.
	for i, cfg := range all {
		scoped[i] = DataProviderFor(cfg, l.DataProvider)
		cfg.SetProviderDefaults(scoped[i])
	}
	for i, cfg := range all {
		if err := cfg.Set(scoped[i]); err != nil {
			return err
		}
	}
	return nil
}
