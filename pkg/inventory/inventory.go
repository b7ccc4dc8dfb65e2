// Package inventory persists scans, assets, the change journal and the
// subnet registry in a single SQLite database. It is the only writer of
// those tables; scanners and the classifier hand it transient values.
package inventory

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/bigrlabs/bigr-discovery/pkg/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS scans (
	id           TEXT PRIMARY KEY,
	target       TEXT NOT NULL,
	scan_method  TEXT NOT NULL,
	started_at   TIMESTAMP NOT NULL,
	completed_at TIMESTAMP,
	is_root      INTEGER NOT NULL DEFAULT 0,
	asset_count  INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS assets (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	ip               TEXT NOT NULL,
	mac              TEXT NOT NULL DEFAULT '',
	hostname         TEXT NOT NULL DEFAULT '',
	vendor           TEXT NOT NULL DEFAULT '',
	os_hint          TEXT NOT NULL DEFAULT '',
	open_ports       TEXT NOT NULL DEFAULT '[]',
	bigr_category    TEXT NOT NULL DEFAULT 'unclassified',
	confidence_score REAL NOT NULL DEFAULT 0,
	scan_method      TEXT NOT NULL DEFAULT 'passive',
	manual_category  TEXT,
	manual_note      TEXT,
	first_seen       TIMESTAMP NOT NULL,
	last_seen        TIMESTAMP NOT NULL,
	UNIQUE (ip, mac)
);

CREATE TABLE IF NOT EXISTS scan_assets (
	scan_id          TEXT NOT NULL REFERENCES scans(id) ON DELETE CASCADE,
	asset_id         INTEGER NOT NULL REFERENCES assets(id) ON DELETE CASCADE,
	open_ports       TEXT NOT NULL DEFAULT '[]',
	confidence_score REAL NOT NULL DEFAULT 0,
	bigr_category    TEXT NOT NULL,
	raw_evidence     TEXT NOT NULL DEFAULT '{}',
	PRIMARY KEY (scan_id, asset_id)
);

CREATE TABLE IF NOT EXISTS asset_changes (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	asset_id    INTEGER NOT NULL REFERENCES assets(id) ON DELETE CASCADE,
	scan_id     TEXT REFERENCES scans(id) ON DELETE SET NULL,
	change_type TEXT NOT NULL,
	field_name  TEXT NOT NULL DEFAULT '',
	old_value   TEXT NOT NULL DEFAULT '',
	new_value   TEXT NOT NULL DEFAULT '',
	detected_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS subnets (
	cidr         TEXT PRIMARY KEY,
	label        TEXT NOT NULL DEFAULT '',
	vlan_id      INTEGER,
	last_scanned TIMESTAMP,
	asset_count  INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_assets_ip          ON assets(ip);
CREATE INDEX IF NOT EXISTS idx_scans_started      ON scans(started_at);
CREATE INDEX IF NOT EXISTS idx_changes_detected   ON asset_changes(detected_at);
CREATE INDEX IF NOT EXISTS idx_scan_assets_scan   ON scan_assets(scan_id);
`

// Store is the SQLite-backed inventory. One writer at a time: a file lock
// excludes other processes and an internal mutex serializes goroutines.
type Store struct {
	db   *sqlx.DB
	lock *flock.Flock
	path string

	mu sync.Mutex
}

// Open creates or opens the inventory database at path, initializing the
// schema when missing. It fails when another process holds the lock.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire database lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("database %s is locked by another process", path)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("open database: %w", err)
	}
	// modernc sqlite is not safe for concurrent writers on one connection
	// pool; a single connection keeps statement ordering strict.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		lock.Unlock()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	log.Debug().Str("path", path).Msg("inventory database opened")
	return &Store{db: db, lock: lock, path: path}, nil
}

// Close releases the database and its file lock.
func (s *Store) Close() error {
	err := s.db.Close()
	if unlockErr := s.lock.Unlock(); err == nil {
		err = unlockErr
	}
	return err
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// assetRow mirrors the assets table.
type assetRow struct {
	ID         int64          `db:"id"`
	IP         string         `db:"ip"`
	MAC        string         `db:"mac"`
	Hostname   string         `db:"hostname"`
	Vendor     string         `db:"vendor"`
	OSHint     string         `db:"os_hint"`
	OpenPorts  string         `db:"open_ports"`
	Category   string         `db:"bigr_category"`
	Confidence float64        `db:"confidence_score"`
	ScanMethod string         `db:"scan_method"`
	ManualCat  sql.NullString `db:"manual_category"`
	ManualNote sql.NullString `db:"manual_note"`
	FirstSeen  time.Time      `db:"first_seen"`
	LastSeen   time.Time      `db:"last_seen"`
}

func (r *assetRow) toModel() model.Asset {
	a := model.Asset{
		IP:              r.IP,
		MAC:             r.MAC,
		Hostname:        r.Hostname,
		Vendor:          r.Vendor,
		OSHint:          r.OSHint,
		Category:        model.Category(r.Category),
		ConfidenceScore: r.Confidence,
		ScanMethod:      model.ScanMethod(r.ScanMethod),
		FirstSeen:       r.FirstSeen.UTC(),
		LastSeen:        r.LastSeen.UTC(),
	}
	a.OpenPorts = decodePorts(r.OpenPorts)
	return a
}

func encodePorts(ports []int) string {
	if len(ports) == 0 {
		return "[]"
	}
	data, err := json.Marshal(ports)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func decodePorts(raw string) []int {
	if raw == "" || raw == "[]" {
		return nil
	}
	var ports []int
	if err := json.Unmarshal([]byte(raw), &ports); err != nil {
		log.Warn().Str("raw", raw).Msg("malformed open_ports column, ignoring")
		return nil
	}
	return ports
}

func encodeEvidence(ev map[string]string) string {
	if len(ev) == 0 {
		return "{}"
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func decodeEvidence(raw string) map[string]string {
	if raw == "" || raw == "{}" {
		return nil
	}
	var ev map[string]string
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		return nil
	}
	return ev
}
