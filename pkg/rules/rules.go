// Package rules loads and evaluates the YAML classification rules that feed
// the scoring engine: port, vendor, hostname and mDNS service rules.
package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/bigrlabs/bigr-discovery/pkg/model"
)

// Rule is one named predicate with per-category score deltas. Unknown YAML
// keys are tolerated so rule files can carry annotations we do not read.
type Rule struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Port predicates.
	PortsIncludeAll []int `yaml:"ports_include_all"`
	PortsIncludeAny []int `yaml:"ports_include_any"`
	PortsExclude    []int `yaml:"ports_exclude"`

	// Vendor predicate: case-insensitive substring OR.
	VendorContains []string `yaml:"vendor_contains"`

	// Hostname predicate: case-insensitive regex.
	HostnamePattern string `yaml:"hostname_pattern"`

	// Service predicate: substring OR against mDNS service types.
	ServiceTypeContains []string `yaml:"service_type_contains"`

	Scores map[model.Category]float64 `yaml:"scores"`

	hostnameRegex *regexp.Regexp
}

// ruleFile is the on-disk shape: a file is a list of rules under "rules",
// or a bare list.
type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// Set is the loaded ruleset, grouped by family. Immutable after load and
// safe for concurrent readers.
type Set struct {
	Port     []Rule
	Vendor   []Rule
	Hostname []Rule
	Service  []Rule
}

// Empty reports whether no rules of any family were loaded.
func (s *Set) Empty() bool {
	return len(s.Port) == 0 && len(s.Vendor) == 0 && len(s.Hostname) == 0 && len(s.Service) == 0
}

// fileFamilies maps rule file basenames (without extension) to the family
// bucket they populate.
var fileFamilies = map[string]func(*Set, []Rule){
	"port_rules":     func(s *Set, r []Rule) { s.Port = append(s.Port, r...) },
	"vendor_rules":   func(s *Set, r []Rule) { s.Vendor = append(s.Vendor, r...) },
	"hostname_rules": func(s *Set, r []Rule) { s.Hostname = append(s.Hostname, r...) },
	"service_rules":  func(s *Set, r []Rule) { s.Service = append(s.Service, r...) },
}

// Load reads all rule files from dir. A missing or empty directory yields a
// valid empty Set. A single broken file is logged and skipped without
// poisoning the rest of the ruleset.
func Load(dir string) (*Set, error) {
	set := &Set{}
	if dir == "" {
		return set, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug().Str("dir", dir).Msg("rules directory missing, using built-in baselines")
			return set, nil
		}
		return nil, fmt.Errorf("read rules dir %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		family, ok := fileFamilies[strings.TrimSuffix(entry.Name(), ext)]
		if !ok {
			log.Debug().Str("file", entry.Name()).Msg("ignoring unrecognized rule file")
			continue
		}

		path := filepath.Join(dir, entry.Name())
		loaded, err := loadFile(path)
		if err != nil {
			log.Warn().Err(err).Str("file", path).Msg("skipping broken rule file")
			continue
		}
		family(set, loaded)
	}

	log.Debug().
		Int("port", len(set.Port)).
		Int("vendor", len(set.Vendor)).
		Int("hostname", len(set.Hostname)).
		Int("service", len(set.Service)).
		Msg("ruleset loaded")
	return set, nil
}

func loadFile(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var rf ruleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		// Some files are a bare top-level list.
		var bare []Rule
		if bareErr := yaml.Unmarshal(data, &bare); bareErr != nil {
			return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
		}
		rf.Rules = bare
	}

	valid := rf.Rules[:0]
	for _, r := range rf.Rules {
		if err := prepare(&r); err != nil {
			log.Warn().Err(err).Str("rule", r.Name).Str("file", filepath.Base(path)).Msg("skipping bad rule")
			continue
		}
		valid = append(valid, r)
	}
	return valid, nil
}

// Prepare validates a programmatically built rule and compiles its regex.
// Rules loaded via Load are prepared automatically.
func Prepare(r *Rule) error {
	return prepare(r)
}

// prepare validates a rule and compiles its regex. Deltas must be finite.
func prepare(r *Rule) error {
	if r.Name == "" {
		return fmt.Errorf("rule without name")
	}
	for cat, delta := range r.Scores {
		if !cat.Valid() {
			return fmt.Errorf("unknown category %q in scores", cat)
		}
		if delta != delta || delta > 1e6 || delta < -1e6 { // NaN or absurd
			return fmt.Errorf("non-finite score delta for %s", cat)
		}
	}
	if r.HostnamePattern != "" {
		re, err := regexp.Compile("(?i)" + r.HostnamePattern)
		if err != nil {
			return fmt.Errorf("hostname pattern: %w", err)
		}
		r.hostnameRegex = re
	}
	return nil
}
