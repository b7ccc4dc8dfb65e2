package inventory

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bigrlabs/bigr-discovery/pkg/model"
)

type scanRow struct {
	ID          string       `db:"id"`
	Target      string       `db:"target"`
	ScanMethod  string       `db:"scan_method"`
	StartedAt   time.Time    `db:"started_at"`
	CompletedAt sql.NullTime `db:"completed_at"`
	IsRoot      bool         `db:"is_root"`
	AssetCount  int          `db:"asset_count"`
}

func (r *scanRow) toModel() model.ScanResult {
	res := model.ScanResult{
		ID:         r.ID,
		Target:     r.Target,
		ScanMethod: model.ScanMethod(r.ScanMethod),
		StartedAt:  r.StartedAt.UTC(),
		IsRoot:     r.IsRoot,
	}
	if r.CompletedAt.Valid {
		res.CompletedAt = r.CompletedAt.Time.UTC()
	}
	return res
}

// snapshotRow joins a scan_assets snapshot with its asset's identity.
type snapshotRow struct {
	IP          string  `db:"ip"`
	MAC         string  `db:"mac"`
	Hostname    string  `db:"hostname"`
	Vendor      string  `db:"vendor"`
	OSHint      string  `db:"os_hint"`
	ScanMethod  string  `db:"scan_method"`
	OpenPorts   string  `db:"open_ports"`
	Confidence  float64 `db:"confidence_score"`
	Category    string  `db:"bigr_category"`
	RawEvidence string  `db:"raw_evidence"`
}

// GetLatestScan returns the most recent scan, optionally filtered by target,
// with its scan-time asset snapshots. No scans yields (nil, nil).
func (s *Store) GetLatestScan(target string) (*model.ScanResult, error) {
	query := `SELECT * FROM scans ORDER BY started_at DESC LIMIT 1`
	args := []any{}
	if target != "" {
		query = `SELECT * FROM scans WHERE target = ? ORDER BY started_at DESC LIMIT 1`
		args = append(args, target)
	}

	var row scanRow
	if err := s.db.Get(&row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get latest scan: %w", err)
	}

	var snaps []snapshotRow
	err := s.db.Select(&snaps,
		`SELECT a.ip, a.mac, a.hostname, a.vendor, a.os_hint, a.scan_method,
		        sa.open_ports, sa.confidence_score, sa.bigr_category, sa.raw_evidence
		 FROM scan_assets sa JOIN assets a ON a.id = sa.asset_id
		 WHERE sa.scan_id = ? ORDER BY a.ip`, row.ID)
	if err != nil {
		return nil, fmt.Errorf("get scan assets: %w", err)
	}

	result := row.toModel()
	result.Assets = make([]model.Asset, 0, len(snaps))
	for _, sr := range snaps {
		result.Assets = append(result.Assets, model.Asset{
			IP:              sr.IP,
			MAC:             sr.MAC,
			Hostname:        sr.Hostname,
			Vendor:          sr.Vendor,
			OSHint:          sr.OSHint,
			ScanMethod:      model.ScanMethod(sr.ScanMethod),
			OpenPorts:       decodePorts(sr.OpenPorts),
			ConfidenceScore: sr.Confidence,
			Category:        model.Category(sr.Category),
			RawEvidence:     decodeEvidence(sr.RawEvidence),
		})
	}
	return &result, nil
}

// GetAllAssets returns every living asset ordered by IP.
func (s *Store) GetAllAssets() ([]model.Asset, error) {
	var rows []assetRow
	if err := s.db.Select(&rows, `SELECT * FROM assets ORDER BY ip`); err != nil {
		return nil, fmt.Errorf("get all assets: %w", err)
	}
	assets := make([]model.Asset, 0, len(rows))
	for i := range rows {
		assets = append(assets, rows[i].toModel())
	}
	return assets, nil
}

// GetScanList returns the most recent scans, newest first, without asset
// snapshots.
func (s *Store) GetScanList(limit int) ([]model.ScanResult, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []scanRow
	err := s.db.Select(&rows, `SELECT * FROM scans ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("get scan list: %w", err)
	}
	scans := make([]model.ScanResult, 0, len(rows))
	for i := range rows {
		scans = append(scans, rows[i].toModel())
	}
	return scans, nil
}

type changeRow struct {
	ID         int64          `db:"id"`
	AssetID    int64          `db:"asset_id"`
	ScanID     sql.NullString `db:"scan_id"`
	ChangeType string         `db:"change_type"`
	FieldName  string         `db:"field_name"`
	OldValue   string         `db:"old_value"`
	NewValue   string         `db:"new_value"`
	DetectedAt time.Time      `db:"detected_at"`
	IP         string         `db:"ip"`
	MAC        string         `db:"mac"`
}

func (r *changeRow) toModel() model.AssetChange {
	return model.AssetChange{
		ID:         r.ID,
		AssetID:    r.AssetID,
		ScanID:     r.ScanID.String,
		ChangeType: model.ChangeType(r.ChangeType),
		FieldName:  r.FieldName,
		OldValue:   r.OldValue,
		NewValue:   r.NewValue,
		DetectedAt: r.DetectedAt.UTC(),
		IP:         r.IP,
		MAC:        r.MAC,
	}
}

// GetAssetHistory returns the change journal for the asset matching the
// given IP or MAC, newest first.
func (s *Store) GetAssetHistory(key string) ([]model.AssetChange, error) {
	var rows []changeRow
	err := s.db.Select(&rows,
		`SELECT c.id, c.asset_id, c.scan_id, c.change_type, c.field_name,
		        c.old_value, c.new_value, c.detected_at, a.ip, a.mac
		 FROM asset_changes c JOIN assets a ON a.id = c.asset_id
		 WHERE a.ip = ? OR a.mac = ?
		 ORDER BY c.detected_at DESC, c.id DESC`, key, key)
	if err != nil {
		return nil, fmt.Errorf("get asset history: %w", err)
	}
	return changesToModel(rows), nil
}

// RecentChanges returns the newest journal rows across all assets.
func (s *Store) RecentChanges(limit int) ([]model.AssetChange, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []changeRow
	err := s.db.Select(&rows,
		`SELECT c.id, c.asset_id, c.scan_id, c.change_type, c.field_name,
		        c.old_value, c.new_value, c.detected_at, a.ip, a.mac
		 FROM asset_changes c JOIN assets a ON a.id = c.asset_id
		 ORDER BY c.detected_at DESC, c.id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent changes: %w", err)
	}
	return changesToModel(rows), nil
}

func changesToModel(rows []changeRow) []model.AssetChange {
	changes := make([]model.AssetChange, 0, len(rows))
	for i := range rows {
		changes = append(changes, rows[i].toModel())
	}
	return changes
}

// Tag is one manual category override.
type Tag struct {
	IP       string         `db:"ip" json:"ip"`
	Category model.Category `db:"manual_category" json:"category"`
	Note     string         `db:"manual_note" json:"note,omitempty"`
}

// TagAsset sets a manual category override on the asset with the given IP.
func (s *Store) TagAsset(ip string, category model.Category, note string) error {
	if _, err := model.ParseCategory(string(category)); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`UPDATE assets SET manual_category = ?, manual_note = ? WHERE ip = ?`,
		string(category), note, ip)
	if err != nil {
		return fmt.Errorf("tag asset: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("no asset with ip %s", ip)
	}
	return nil
}

// UntagAsset clears the manual override on the asset with the given IP.
func (s *Store) UntagAsset(ip string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`UPDATE assets SET manual_category = NULL, manual_note = NULL WHERE ip = ?`, ip)
	if err != nil {
		return fmt.Errorf("untag asset: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("no asset with ip %s", ip)
	}
	return nil
}

// GetTags lists all manual overrides ordered by IP.
func (s *Store) GetTags() ([]Tag, error) {
	var tags []Tag
	err := s.db.Select(&tags,
		`SELECT ip, manual_category, COALESCE(manual_note, '') AS manual_note
		 FROM assets WHERE manual_category IS NOT NULL ORDER BY ip`)
	if err != nil {
		return nil, fmt.Errorf("get tags: %w", err)
	}
	return tags, nil
}

// ManualOverride reports the manual category for an IP, if any. It satisfies
// the classifier's override lookup.
func (s *Store) ManualOverride(ip string) (model.Category, string, bool, error) {
	var tag Tag
	err := s.db.Get(&tag,
		`SELECT ip, manual_category, COALESCE(manual_note, '') AS manual_note
		 FROM assets WHERE ip = ? AND manual_category IS NOT NULL`, ip)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, fmt.Errorf("manual override lookup: %w", err)
	}
	return tag.Category, tag.Note, true, nil
}

type subnetRow struct {
	CIDR        string        `db:"cidr"`
	Label       string        `db:"label"`
	VLANID      sql.NullInt64 `db:"vlan_id"`
	LastScanned sql.NullTime  `db:"last_scanned"`
	AssetCount  int           `db:"asset_count"`
}

func (r *subnetRow) toModel() model.Subnet {
	sub := model.Subnet{CIDR: r.CIDR, Label: r.Label, AssetCount: r.AssetCount}
	if r.VLANID.Valid {
		v := int(r.VLANID.Int64)
		sub.VLANID = &v
	}
	if r.LastScanned.Valid {
		t := r.LastScanned.Time.UTC()
		sub.LastScanned = &t
	}
	return sub
}

// AddSubnet registers a scan target, replacing label/vlan on conflict.
func (s *Store) AddSubnet(sub model.Subnet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	vlan := sql.NullInt64{}
	if sub.VLANID != nil {
		vlan = sql.NullInt64{Int64: int64(*sub.VLANID), Valid: true}
	}
	_, err := s.db.Exec(
		`INSERT INTO subnets (cidr, label, vlan_id) VALUES (?, ?, ?)
		 ON CONFLICT (cidr) DO UPDATE SET label = excluded.label, vlan_id = excluded.vlan_id`,
		sub.CIDR, sub.Label, vlan)
	if err != nil {
		return fmt.Errorf("add subnet: %w", err)
	}
	return nil
}

// ListSubnets returns all registered targets ordered by CIDR.
func (s *Store) ListSubnets() ([]model.Subnet, error) {
	var rows []subnetRow
	if err := s.db.Select(&rows, `SELECT * FROM subnets ORDER BY cidr`); err != nil {
		return nil, fmt.Errorf("list subnets: %w", err)
	}
	subs := make([]model.Subnet, 0, len(rows))
	for i := range rows {
		subs = append(subs, rows[i].toModel())
	}
	return subs, nil
}

// RemoveSubnet deletes a registered target.
func (s *Store) RemoveSubnet(cidr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM subnets WHERE cidr = ?`, cidr)
	if err != nil {
		return fmt.Errorf("remove subnet: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("no subnet %s", cidr)
	}
	return nil
}

// UpdateSubnetStats records the latest scan outcome for a registered target.
// Unregistered targets are ignored.
func (s *Store) UpdateSubnetStats(cidr string, assetCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`UPDATE subnets SET last_scanned = ?, asset_count = ? WHERE cidr = ?`,
		time.Now().UTC(), assetCount, cidr)
	if err != nil {
		return fmt.Errorf("update subnet stats: %w", err)
	}
	return nil
}
