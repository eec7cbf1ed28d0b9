/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package dispatch

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	yaml "gopkg.in/yaml.v2"

	"github.com/driftwatch/driftwatch/drift"
)

// Mode names selectable via the --mode flag
const (
	ModeFast      = "fast"
	ModeUltrafast = "ultrafast"
	ModeLazy      = "lazy"
)

// DefaultPools are applied by setup when no config file overrides them
var DefaultPools = []string{
	"pool.chrony.eu",
	"pool.ntp.org",
	"time.cloudflare.com",
	"time.google.com",
}

// Config represents dispatcher run options. Interval, threshold and loop
// behavior come from the mode preset; the rest can be overridden from a
// yaml config file.
type Config struct {
	Mode                 string        `yaml:"-"`
	Interval             time.Duration `yaml:"interval"`
	PrecisionThresholdNS uint64        `yaml:"precisionthresholdns"`
	LoopForever          bool          `yaml:"-"`
	HistorySize          int           `yaml:"historysize"`
	LogFile              string        `yaml:"logfile"`
	MemoFile             string        `yaml:"memofile"`
	ReferenceServer      string        `yaml:"referenceserver"`
	Pools                []string      `yaml:"pools"`
	MonitoringPort       int           `yaml:"monitoringport"`
}

// stateDir is where the status log and memo live by default,
// one per host
func stateDir() string {
	if runtime.GOOS == "windows" {
		return `C:\ProgramData\TimeSync`
	}
	return "/var/log/time-sync"
}

// DefaultConfig returns Config with the fast preset applied
func DefaultConfig() *Config {
	c := &Config{
		HistorySize:     drift.DefaultHistorySize,
		LogFile:         filepath.Join(stateDir(), "status.log"),
		MemoFile:        filepath.Join(stateDir(), "memo.json"),
		ReferenceServer: "",
		Pools:           DefaultPools,
	}
	_ = c.SetMode(ModeFast)
	return c
}

// SetMode applies a preset. Unknown mode is the one fatal configuration
// error, reported rather than silently defaulted.
func (c *Config) SetMode(mode string) error {
	switch mode {
	case ModeFast:
		c.Interval = 60 * time.Second
		c.PrecisionThresholdNS = 100_000
		c.LoopForever = false
	case ModeUltrafast:
		c.Interval = 1 * time.Second
		c.PrecisionThresholdNS = 1_000
		c.LoopForever = true
	case ModeLazy:
		c.Interval = 300 * time.Second
		// threshold sits right under the small-band ceiling, so lazy mode
		// never issues gradual resyncs, only forced steps
		c.PrecisionThresholdNS = drift.SmallSkewCeilingNS - 1
		c.LoopForever = false
	default:
		return fmt.Errorf("unknown mode %q, supported modes: %s, %s, %s", mode, ModeFast, ModeUltrafast, ModeLazy)
	}
	c.Mode = mode
	return nil
}

// Validate makes sure the config invariants hold
func (c *Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("bad config: 'interval' must be positive")
	}
	if c.PrecisionThresholdNS == 0 || c.PrecisionThresholdNS >= drift.SmallSkewCeilingNS {
		return fmt.Errorf("bad config: 'precisionthresholdns' must be within (0, %d)", drift.SmallSkewCeilingNS)
	}
	if c.HistorySize <= 0 {
		return fmt.Errorf("bad config: 'historysize' must be >0")
	}
	if c.LogFile == "" || c.MemoFile == "" {
		return fmt.Errorf("bad config: 'logfile' and 'memofile' must be set")
	}
	return nil
}

// ReadConfig overlays values from a yaml file on top of c
func (c *Config) ReadConfig(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.UnmarshalStrict(data, c)
}

// PrepareConfig builds the final Config from mode flag, optional config
// file and the --once override
func PrepareConfig(mode string, configPath string, once bool) (*Config, error) {
	cfg := DefaultConfig()
	if err := cfg.SetMode(mode); err != nil {
		return nil, err
	}
	if configPath != "" {
		if err := cfg.ReadConfig(configPath); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", configPath, err)
		}
	}
	if once {
		cfg.LoopForever = false
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
