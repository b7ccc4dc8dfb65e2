package config

import (
	"path/filepath"
	"time"
)

// Config is the root configuration structure, aggregating the discovery
// runtime's settings.
type Config struct {
	Log      LogConfig      `description:"Logging configuration" koanf:"log" validate:"required"`
	Scan     ScanConfig     `description:"Scan defaults" koanf:"scan" validate:"required"`
	Watcher  WatcherConfig  `description:"Watcher daemon configuration" koanf:"watcher"`
	Database DatabaseConfig `description:"Inventory database configuration" koanf:"database"`
	Rules    RulesConfig    `description:"Classification rules configuration" koanf:"rules"`
}

// LogConfig holds logging related configuration.
type LogConfig struct {
	Level  string `description:"Log level: debug | info | warn | error" koanf:"level" validate:"omitempty,oneof=trace debug info warn error fatal panic"`
	Format string `description:"Log format: json | text" koanf:"format" validate:"omitempty,oneof=json text"`
	File   string `description:"Log file path (empty for stdout)" koanf:"file"`
}

// ScanConfig holds defaults for one-shot and watcher scans.
type ScanConfig struct {
	Mode        string        `description:"Scan mode: passive | active | hybrid" koanf:"mode" validate:"omitempty,oneof=passive active hybrid"`
	Ports       string        `description:"Port list, e.g. 22,80,443,8000-8100 (empty for defaults)" koanf:"ports"`
	PortTimeout time.Duration `description:"Per-port connect timeout" koanf:"port_timeout" validate:"gt=0"`
	Workers     int           `description:"Concurrent port probes per host" koanf:"workers" validate:"gt=0,lte=256"`
	MDNSWindow  time.Duration `description:"mDNS listen window" koanf:"mdns_window" validate:"gt=0"`
	SweepWindow time.Duration `description:"ARP sweep reply window" koanf:"sweep_window" validate:"gt=0"`
	PingSweep   bool          `description:"ICMP sweep fallback when unprivileged" koanf:"ping_sweep"`
}

// WatcherTarget is one monitored network in the watcher config.
type WatcherTarget struct {
	CIDR            string `description:"Target network in CIDR form" koanf:"cidr" validate:"required,cidrv4"`
	IntervalSeconds int    `description:"Rescan interval in seconds" koanf:"interval_seconds" validate:"gt=0"`
}

// WatcherConfig holds the monitoring daemon's settings.
type WatcherConfig struct {
	PIDFile string          `description:"PID file path" koanf:"pid_file"`
	LogFile string          `description:"Rotating watcher log path" koanf:"log_file"`
	Targets []WatcherTarget `description:"Monitored networks" koanf:"targets" validate:"dive"`
}

// DatabaseConfig locates the inventory database.
type DatabaseConfig struct {
	Path string `description:"SQLite database path" koanf:"path" validate:"required"`
}

// RulesConfig locates the classification rule files and the OUI table.
type RulesConfig struct {
	Dir     string `description:"Directory of YAML rule files" koanf:"dir"`
	OUIPath string `description:"IEEE OUI CSV path (optional)" koanf:"oui_path"`
}

// DefaultBaseDir is where state lives unless overridden: ~/.bigr.
func DefaultBaseDir(home string) string {
	return filepath.Join(home, ".bigr")
}
