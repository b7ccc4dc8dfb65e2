// Package config loads the layered runtime configuration: hardcoded
// defaults, then the YAML config file, then environment variables, then
// command-line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Manager handles loading and accessing application configuration.
type Manager struct {
	koanfInstance *koanf.Koanf
	currentConfig Config
	mu            sync.RWMutex
}

// NewManager creates a Manager with an empty koanf instance.
func NewManager() *Manager {
	return &Manager{koanfInstance: koanf.New(".")}
}

// DefaultConfig returns the baseline configuration. Paths default to
// ~/.bigr; a missing home directory falls back to the working directory.
func DefaultConfig() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	base := DefaultBaseDir(home)
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Scan: ScanConfig{
			Mode:        "hybrid",
			PortTimeout: 2 * time.Second,
			Workers:     20,
			MDNSWindow:  8 * time.Second,
			SweepWindow: 3 * time.Second,
			PingSweep:   true,
		},
		Watcher: WatcherConfig{
			PIDFile: filepath.Join(base, "watcher.pid"),
			LogFile: filepath.Join(base, "watcher.log"),
		},
		Database: DatabaseConfig{
			Path: filepath.Join(base, "inventory.db"),
		},
		Rules: RulesConfig{
			Dir:     filepath.Join(base, "rules"),
			OUIPath: filepath.Join(base, "oui.csv"),
		},
	}
}

// DefaultConfigAsMap flattens DefaultConfig for koanf's confmap provider,
// which needs every key spelled out.
func DefaultConfigAsMap() map[string]interface{} {
	def := DefaultConfig()
	return map[string]interface{}{
		"log.level":  def.Log.Level,
		"log.format": def.Log.Format,
		"log.file":   def.Log.File,

		"scan.mode":         def.Scan.Mode,
		"scan.ports":        def.Scan.Ports,
		"scan.port_timeout": def.Scan.PortTimeout,
		"scan.workers":      def.Scan.Workers,
		"scan.mdns_window":  def.Scan.MDNSWindow,
		"scan.sweep_window": def.Scan.SweepWindow,
		"scan.ping_sweep":   def.Scan.PingSweep,

		"watcher.pid_file": def.Watcher.PIDFile,
		"watcher.log_file": def.Watcher.LogFile,

		"database.path": def.Database.Path,

		"rules.dir":      def.Rules.Dir,
		"rules.oui_path": def.Rules.OUIPath,
	}
}

// Load merges all sources in priority order and validates the result.
func (m *Manager) Load(flags *pflag.FlagSet, configFilePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	debug := false
	if flags != nil {
		if f := flags.Lookup("debug"); f != nil && f.Value.String() == "true" {
			debug = true
		}
	}

	for _, source := range DefaultSources(configFilePath, flags, debug) {
		if err := source.Load(m.koanfInstance); err != nil {
			return fmt.Errorf("config source %s: %w", source.Name(), err)
		}
	}

	var newCfg Config
	if err := m.koanfInstance.UnmarshalWithConf("", &newCfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("error unmarshaling final config: %w", err)
	}
	if err := validate(&newCfg); err != nil {
		return err
	}
	m.currentConfig = newCfg
	return nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentConfig
}

var validatorInstance = validator.New()

func validate(cfg *Config) error {
	if err := validatorInstance.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// BindFlags defines command-line flags that override configuration keys.
// Flag names use the koanf dotted-key form so posflag maps them directly.
func BindFlags(flags *pflag.FlagSet) {
	def := DefaultConfig()
	flags.String("log.level", def.Log.Level, "Log level (debug, info, warn, error)")
	flags.String("database.path", def.Database.Path, "Inventory database path")
	flags.String("rules.dir", def.Rules.Dir, "Classification rules directory")
	flags.Bool("debug", false, "Enable debug logging")
}
