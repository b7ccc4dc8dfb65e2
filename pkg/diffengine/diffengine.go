// Package diffengine compares two scans of the same target and summarizes
// what appeared, disappeared or changed between them.
package diffengine

import (
	"fmt"
	"strings"
	"time"

	"github.com/bigrlabs/bigr-discovery/pkg/model"
)

// DiffResult is the outcome of comparing a current scan against a previous
// one. Assets are matched by MAC when known, otherwise IP.
type DiffResult struct {
	NewAssets      []model.Asset       `json:"new_assets"`
	RemovedAssets  []model.Asset       `json:"removed_assets"`
	ChangedAssets  []model.AssetChange `json:"changed_assets"`
	UnchangedCount int                 `json:"unchanged_count"`
}

// HasChanges reports whether anything differs between the two scans.
func (d *DiffResult) HasChanges() bool {
	return len(d.NewAssets) > 0 || len(d.RemovedAssets) > 0 || len(d.ChangedAssets) > 0
}

// Summary renders the diff as a compact one-liner, e.g. "+2 new ~1 changed =5 unchanged".
func (d *DiffResult) Summary() string {
	var parts []string
	if n := len(d.NewAssets); n > 0 {
		parts = append(parts, fmt.Sprintf("+%d new", n))
	}
	if n := len(d.RemovedAssets); n > 0 {
		parts = append(parts, fmt.Sprintf("-%d removed", n))
	}
	if n := changedKeyCount(d.ChangedAssets); n > 0 {
		parts = append(parts, fmt.Sprintf("~%d changed", n))
	}
	if d.UnchangedCount > 0 {
		parts = append(parts, fmt.Sprintf("=%d unchanged", d.UnchangedCount))
	}
	if len(parts) == 0 {
		return "no assets"
	}
	return strings.Join(parts, " ")
}

// changedKeyCount counts distinct assets among the change entries, since one
// asset can contribute several field changes.
func changedKeyCount(changes []model.AssetChange) int {
	seen := make(map[string]struct{}, len(changes))
	for _, ch := range changes {
		key := ch.MAC
		if key == "" {
			key = ch.IP
		}
		seen[key] = struct{}{}
	}
	return len(seen)
}

// DiffScans compares the asset lists of two scans. previous may be nil, in
// which case every current asset is new.
func DiffScans(current, previous *model.ScanResult) *DiffResult {
	result := &DiffResult{}
	now := time.Now().UTC()

	prevByKey := make(map[string]*model.Asset)
	if previous != nil {
		for i := range previous.Assets {
			prevByKey[previous.Assets[i].Key()] = &previous.Assets[i]
		}
	}

	currentKeys := make(map[string]struct{}, len(current.Assets))
	for i := range current.Assets {
		cur := &current.Assets[i]
		currentKeys[cur.Key()] = struct{}{}

		prev, ok := prevByKey[cur.Key()]
		if !ok {
			result.NewAssets = append(result.NewAssets, *cur)
			continue
		}
		changes := compareAssets(prev, cur, now)
		if len(changes) == 0 {
			result.UnchangedCount++
		} else {
			result.ChangedAssets = append(result.ChangedAssets, changes...)
		}
	}

	if previous != nil {
		for i := range previous.Assets {
			if _, ok := currentKeys[previous.Assets[i].Key()]; !ok {
				result.RemovedAssets = append(result.RemovedAssets, previous.Assets[i])
			}
		}
	}
	return result
}

// compareAssets emits one change entry per differing tracked field. Port
// lists are compared as sets.
func compareAssets(prev, cur *model.Asset, now time.Time) []model.AssetChange {
	var changes []model.AssetChange
	add := func(field, oldVal, newVal string) {
		changes = append(changes, model.AssetChange{
			ChangeType: model.ChangeFieldChanged,
			FieldName:  field,
			OldValue:   oldVal,
			NewValue:   newVal,
			DetectedAt: now,
			IP:         cur.IP,
			MAC:        cur.MAC,
		})
	}

	if !samePorts(prev.OpenPorts, cur.OpenPorts) {
		add("port_change", formatPorts(prev.OpenPorts), formatPorts(cur.OpenPorts))
	}
	if prev.Category != cur.Category {
		add("bigr_category", string(prev.Category), string(cur.Category))
	}
	if prev.Vendor != cur.Vendor {
		add("vendor", prev.Vendor, cur.Vendor)
	}
	if prev.Hostname != cur.Hostname {
		add("hostname", prev.Hostname, cur.Hostname)
	}
	return changes
}

func samePorts(a, b []int) bool {
	set := make(map[int]struct{}, len(a))
	for _, p := range a {
		set[p] = struct{}{}
	}
	matched := make(map[int]struct{}, len(b))
	for _, p := range b {
		if _, ok := set[p]; !ok {
			return false
		}
		matched[p] = struct{}{}
	}
	return len(matched) == len(set)
}

func formatPorts(ports []int) string {
	if len(ports) == 0 {
		return "none"
	}
	parts := make([]string, len(ports))
	for i, p := range ports {
		parts[i] = fmt.Sprintf("%d", p)
	}
	return strings.Join(parts, ",")
}

// ChangeSource abstracts the stored change journal, satisfied by the
// inventory store.
type ChangeSource interface {
	RecentChanges(limit int) ([]model.AssetChange, error)
}

// StoredChanges returns the most recent persisted change rows.
func StoredChanges(src ChangeSource, limit int) ([]model.AssetChange, error) {
	return src.RecentChanges(limit)
}
