// Package config loads crashdump settings from a JSON file
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shibukawa/configdir"
)

const (
	// FileName is the configuration file looked up in the config folders
	FileName = "config.json"

	vendorName = "crashdump"
)

// Config holds every tunable of a diagnostic run and the tool around it
type Config struct {
	OutputDir         string `json:"output_dir"`
	ReportName        string `json:"report_name"`
	PageSize          uint64 `json:"page_size"`
	FrameWalkLimit    int    `json:"frame_walk_limit"`
	ModuleLimit       int    `json:"module_limit"`
	CallShape         string `json:"call_shape"`
	Timeout           string `json:"timeout"`
	CompressSnapshots *bool  `json:"compress_snapshots,omitempty"`
}

// Default returns the built-in configuration
func Default() *Config {
	compress := true
	return &Config{
		OutputDir:         ".",
		ReportName:        "crash.txt",
		PageSize:          0x1000,
		FrameWalkLimit:    1000,
		ModuleLimit:       0,
		CallShape:         "strict",
		Timeout:           "",
		CompressSnapshots: &compress,
	}
}

// FromJson reads a configuration file; keys it leaves out keep their defaults
func FromJson(pathTo string) (*Config, error) {
	file, err := os.Open(pathTo)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	conf := Default()
	decoder := json.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(conf); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", pathTo, err)
	}

	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", pathTo, err)
	}

	return conf, nil
}

// Locate returns the path of the first config.json found in the local
// then the per-user and system config folders
func Locate() (string, bool) {
	configDirs := configdir.New(vendorName, "")
	configDirs.LocalPath, _ = filepath.Abs(".")
	folder := configDirs.QueryFolderContainsFile(FileName)
	if folder == nil {
		return "", false
	}
	return filepath.Join(folder.Path, FileName), true
}

// Load reads the config at pathTo, or the located one when pathTo is empty,
// or the defaults when neither exists
func Load(pathTo string) (*Config, error) {
	if pathTo != "" {
		return FromJson(pathTo)
	}
	if located, ok := Locate(); ok {
		return FromJson(located)
	}
	return Default(), nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if c.PageSize == 0 || c.PageSize&(c.PageSize-1) != 0 {
		return fmt.Errorf("page_size %d is not a power of two", c.PageSize)
	}
	if c.FrameWalkLimit <= 0 {
		return errors.New("frame_walk_limit must be positive")
	}
	if c.ModuleLimit < 0 {
		return errors.New("module_limit must not be negative")
	}
	switch c.CallShape {
	case "strict", "legacy":
	default:
		return fmt.Errorf("unknown call_shape %q", c.CallShape)
	}
	if _, err := c.TimeoutDuration(); err != nil {
		return err
	}
	return nil
}

// TimeoutDuration parses Timeout; zero means no watchdog
func (c *Config) TimeoutDuration() (time.Duration, error) {
	if c.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("bad timeout %q: %w", c.Timeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("timeout %q is negative", c.Timeout)
	}
	return d, nil
}

// Compress reports whether snapshot blobs are compressed
func (c *Config) Compress() bool {
	return c.CompressSnapshots == nil || *c.CompressSnapshots
}

// ReportPath joins the output directory and report name
func (c *Config) ReportPath() string {
	return filepath.Join(c.OutputDir, c.ReportName)
}
