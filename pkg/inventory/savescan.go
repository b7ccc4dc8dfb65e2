package inventory

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/bigrlabs/bigr-discovery/pkg/model"
)

// SaveScan persists one completed scan: the scan row, an upsert per asset,
// a point-in-time snapshot per asset, and change-journal rows for anything
// that moved. The whole write is one transaction. Saving a result whose ID
// is already stored is a no-op and returns the existing ID.
func (s *Store) SaveScan(result *model.ScanResult) (string, error) {
	if !result.ScanMethod.Valid() {
		return "", fmt.Errorf("invalid scan method %q", result.ScanMethod)
	}
	for i := range result.Assets {
		if _, err := model.ParseCategory(string(result.Assets[i].Category)); err != nil {
			return "", fmt.Errorf("asset %s: %w", result.Assets[i].IP, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	scanID := result.ID
	if scanID == "" {
		scanID = uuid.NewString()
	} else {
		var existing int
		if err := s.db.Get(&existing, `SELECT COUNT(*) FROM scans WHERE id = ?`, scanID); err != nil {
			return "", fmt.Errorf("check scan id: %w", err)
		}
		if existing > 0 {
			log.Debug().Str("scan_id", scanID).Msg("scan already saved, skipping")
			return scanID, nil
		}
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return "", fmt.Errorf("begin save_scan: %w", err)
	}
	defer tx.Rollback()

	completed := sql.NullTime{Time: result.CompletedAt.UTC(), Valid: !result.CompletedAt.IsZero()}
	_, err = tx.Exec(
		`INSERT INTO scans (id, target, scan_method, started_at, completed_at, is_root, asset_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		scanID, result.Target, string(result.ScanMethod),
		result.StartedAt.UTC(), completed, result.IsRoot, len(result.Assets),
	)
	if err != nil {
		return "", fmt.Errorf("insert scan row: %w", err)
	}

	now := time.Now().UTC()
	for i := range result.Assets {
		asset := &result.Assets[i]
		asset.NormalizePorts()
		if err := s.upsertAsset(tx, scanID, asset, now); err != nil {
			return "", fmt.Errorf("upsert asset %s: %w", asset.IP, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit save_scan: %w", err)
	}
	log.Info().Str("scan_id", scanID).Str("target", result.Target).
		Int("assets", len(result.Assets)).Msg("scan saved")
	return scanID, nil
}

// trackedFields are the asset columns whose changes are journaled.
func trackedFields(a *model.Asset) map[string]string {
	return map[string]string{
		"hostname":         a.Hostname,
		"vendor":           a.Vendor,
		"os_hint":          a.OSHint,
		"bigr_category":    string(a.Category),
		"confidence_score": strconv.FormatFloat(a.ConfidenceScore, 'f', 4, 64),
		"scan_method":      string(a.ScanMethod),
	}
}

func rowFields(r *assetRow) map[string]string {
	return map[string]string{
		"hostname":         r.Hostname,
		"vendor":           r.Vendor,
		"os_hint":          r.OSHint,
		"bigr_category":    r.Category,
		"confidence_score": strconv.FormatFloat(r.Confidence, 'f', 4, 64),
		"scan_method":      r.ScanMethod,
	}
}

// journaledOrder fixes the order change rows are written in, so histories
// read deterministically.
var journaledOrder = []string{
	"hostname", "vendor", "os_hint", "bigr_category", "confidence_score", "scan_method",
}

func (s *Store) upsertAsset(tx *sqlx.Tx, scanID string, asset *model.Asset, now time.Time) error {
	var existing assetRow
	err := tx.Get(&existing, `SELECT * FROM assets WHERE ip = ? AND mac = ?`, asset.IP, asset.MAC)

	var assetID int64
	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, insErr := tx.Exec(
			`INSERT INTO assets (ip, mac, hostname, vendor, os_hint, open_ports,
			                     bigr_category, confidence_score, scan_method, first_seen, last_seen)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			asset.IP, asset.MAC, asset.Hostname, asset.Vendor, asset.OSHint,
			encodePorts(asset.OpenPorts), string(asset.Category), asset.ConfidenceScore,
			string(asset.ScanMethod), now, now,
		)
		if insErr != nil {
			return insErr
		}
		assetID, insErr = res.LastInsertId()
		if insErr != nil {
			return insErr
		}
		if err := insertChange(tx, assetID, scanID, model.ChangeNewAsset, "", "", asset.IP, now); err != nil {
			return err
		}
		asset.FirstSeen, asset.LastSeen = now, now

	case err != nil:
		return err

	default:
		assetID = existing.ID
		oldFields, newFields := rowFields(&existing), trackedFields(asset)
		for _, field := range journaledOrder {
			if oldFields[field] != newFields[field] {
				if err := insertChange(tx, assetID, scanID, model.ChangeFieldChanged,
					field, oldFields[field], newFields[field], now); err != nil {
					return err
				}
			}
		}
		_, err = tx.Exec(
			`UPDATE assets SET hostname = ?, vendor = ?, os_hint = ?, open_ports = ?,
			        bigr_category = ?, confidence_score = ?, scan_method = ?, last_seen = ?
			 WHERE id = ?`,
			asset.Hostname, asset.Vendor, asset.OSHint, encodePorts(asset.OpenPorts),
			string(asset.Category), asset.ConfidenceScore, string(asset.ScanMethod), now, assetID,
		)
		if err != nil {
			return err
		}
		asset.FirstSeen, asset.LastSeen = existing.FirstSeen.UTC(), now
	}

	_, err = tx.Exec(
		`INSERT INTO scan_assets (scan_id, asset_id, open_ports, confidence_score, bigr_category, raw_evidence)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		scanID, assetID, encodePorts(asset.OpenPorts), asset.ConfidenceScore,
		string(asset.Category), encodeEvidence(asset.RawEvidence),
	)
	return err
}

func insertChange(tx *sqlx.Tx, assetID int64, scanID string, ct model.ChangeType, field, oldVal, newVal string, at time.Time) error {
	_, err := tx.Exec(
		`INSERT INTO asset_changes (asset_id, scan_id, change_type, field_name, old_value, new_value, detected_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		assetID, scanID, string(ct), field, oldVal, newVal, at,
	)
	return err
}
