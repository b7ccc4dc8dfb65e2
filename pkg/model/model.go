// Package model defines the core data types shared by the scanner,
// classifier, inventory store and diff engine.
package model

import (
	"fmt"
	"sort"
	"time"
)

// Category is one of the five BİGR asset classes.
type Category string

const (
	CategoryNetworkSystems Category = "ag_ve_sistemler"
	CategoryApplications   Category = "uygulamalar"
	CategoryIoT            Category = "iot"
	CategoryPortable       Category = "tasinabilir"
	CategoryUnclassified   Category = "unclassified"
)

// Categories lists the scoreable (non-unclassified) classes in stable order.
var Categories = []Category{
	CategoryNetworkSystems,
	CategoryApplications,
	CategoryIoT,
	CategoryPortable,
}

// categoryLabelsTR maps each class to its Turkish display label.
var categoryLabelsTR = map[Category]string{
	CategoryNetworkSystems: "Ağ ve Sistemler",
	CategoryApplications:   "Uygulamalar",
	CategoryIoT:            "IoT Cihazları",
	CategoryPortable:       "Taşınabilir Cihazlar",
	CategoryUnclassified:   "Sınıflandırılmamış",
}

// Valid reports whether c is one of the five known classes.
func (c Category) Valid() bool {
	switch c {
	case CategoryNetworkSystems, CategoryApplications, CategoryIoT,
		CategoryPortable, CategoryUnclassified:
		return true
	}
	return false
}

// LabelTR returns the Turkish display label for the category.
func (c Category) LabelTR() string {
	if label, ok := categoryLabelsTR[c]; ok {
		return label
	}
	return string(c)
}

// ParseCategory validates a category string at a trust boundary.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("invalid bigr category %q", s)
	}
	return c, nil
}

// ScanMethod describes how an asset (or a whole scan) was discovered.
type ScanMethod string

const (
	MethodPassive ScanMethod = "passive"
	MethodActive  ScanMethod = "active"
	MethodHybrid  ScanMethod = "hybrid"
)

// Valid reports whether m is a known scan method.
func (m ScanMethod) Valid() bool {
	return m == MethodPassive || m == MethodActive || m == MethodHybrid
}

// ChangeType classifies a change-journal entry.
type ChangeType string

const (
	ChangeNewAsset     ChangeType = "new_asset"
	ChangeFieldChanged ChangeType = "field_changed"
	ChangeRemoved      ChangeType = "removed"
)

// ConfidenceLevel buckets a confidence score for display.
type ConfidenceLevel string

const (
	ConfidenceHigh         ConfidenceLevel = "high"
	ConfidenceMedium       ConfidenceLevel = "medium"
	ConfidenceLow          ConfidenceLevel = "low"
	ConfidenceUnclassified ConfidenceLevel = "unclassified"
)

// LevelForScore maps a confidence score to its display bucket.
// Thresholds: 0.7 high, 0.4 medium, 0.3 low.
func LevelForScore(score float64) ConfidenceLevel {
	switch {
	case score >= 0.7:
		return ConfidenceHigh
	case score >= 0.4:
		return ConfidenceMedium
	case score >= 0.3:
		return ConfidenceLow
	default:
		return ConfidenceUnclassified
	}
}

// MDNSService is one resolved multicast-DNS advertisement attached to an asset.
type MDNSService struct {
	Name        string            `json:"name"`
	ServiceType string            `json:"service_type"`
	IP          string            `json:"ip"`
	Port        int               `json:"port,omitempty"`
	Hostname    string            `json:"hostname,omitempty"`
	Properties  map[string]string `json:"properties,omitempty"`
}

// Asset is the living representation of a discovered host.
//
// Identity is the (IP, MAC) pair; a missing MAC is its own bucket. All other
// fields are enrichment and may be filled in progressively by the scanner
// phases and the classifier.
type Asset struct {
	IP       string `json:"ip"`
	MAC      string `json:"mac,omitempty"`
	Hostname string `json:"hostname,omitempty"`
	Vendor   string `json:"vendor,omitempty"`
	OSHint   string `json:"os_hint,omitempty"`

	OpenPorts []int `json:"open_ports"`

	Category        Category   `json:"bigr_category"`
	ConfidenceScore float64    `json:"confidence_score"`
	ScanMethod      ScanMethod `json:"scan_method"`

	FirstSeen time.Time `json:"first_seen,omitempty"`
	LastSeen  time.Time `json:"last_seen,omitempty"`

	// RawEvidence is a free-form diagnostic surface written by the scanner
	// and the classifier. It is not a typed contract.
	RawEvidence map[string]string `json:"raw_evidence,omitempty"`

	// MDNSServices holds mDNS advertisements whose IP matched this asset.
	MDNSServices []MDNSService `json:"mdns_services,omitempty"`
}

// Key returns the merge/diff identity for the asset: MAC when known,
// otherwise IP.
func (a *Asset) Key() string {
	if a.MAC != "" {
		return a.MAC
	}
	return a.IP
}

// NormalizePorts sorts OpenPorts ascending and removes duplicates in place.
func (a *Asset) NormalizePorts() {
	if len(a.OpenPorts) == 0 {
		return
	}
	sort.Ints(a.OpenPorts)
	out := a.OpenPorts[:1]
	for _, p := range a.OpenPorts[1:] {
		if p != out[len(out)-1] {
			out = append(out, p)
		}
	}
	a.OpenPorts = out
}

// Evidence appends a key/value pair to the raw evidence map, allocating it
// on first use.
func (a *Asset) Evidence(key, value string) {
	if a.RawEvidence == nil {
		a.RawEvidence = make(map[string]string)
	}
	a.RawEvidence[key] = value
}

// ScanResult is one completed scan over a single target.
type ScanResult struct {
	ID          string     `json:"id,omitempty"`
	Target      string     `json:"target"`
	ScanMethod  ScanMethod `json:"scan_method"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt time.Time  `json:"completed_at,omitempty"`
	IsRoot      bool       `json:"is_root"`
	Assets      []Asset    `json:"assets"`
}

// Duration returns the elapsed scan time, or zero when the scan has not
// completed.
func (r *ScanResult) Duration() time.Duration {
	if r.CompletedAt.IsZero() {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// CategorySummary counts assets per category.
func (r *ScanResult) CategorySummary() map[Category]int {
	summary := make(map[Category]int)
	for i := range r.Assets {
		summary[r.Assets[i].Category]++
	}
	return summary
}

// ScanAsset is the immutable point-in-time snapshot of an asset within a
// scan. Living asset values mutate between scans; snapshots do not.
type ScanAsset struct {
	ScanID          string            `json:"scan_id"`
	AssetID         int64             `json:"asset_id"`
	OpenPorts       []int             `json:"open_ports"`
	ConfidenceScore float64           `json:"confidence_score"`
	Category        Category          `json:"bigr_category"`
	RawEvidence     map[string]string `json:"raw_evidence,omitempty"`
}

// AssetChange is one change-journal entry.
type AssetChange struct {
	ID         int64      `json:"id,omitempty"`
	AssetID    int64      `json:"asset_id"`
	ScanID     string     `json:"scan_id,omitempty"`
	ChangeType ChangeType `json:"change_type"`
	FieldName  string     `json:"field_name,omitempty"`
	OldValue   string     `json:"old_value,omitempty"`
	NewValue   string     `json:"new_value,omitempty"`
	DetectedAt time.Time  `json:"detected_at"`

	// IP and MAC are joined in from the owning asset for display.
	IP  string `json:"ip,omitempty"`
	MAC string `json:"mac,omitempty"`
}

// Subnet is a registered scan target.
type Subnet struct {
	CIDR        string     `json:"cidr"`
	Label       string     `json:"label,omitempty"`
	VLANID      *int       `json:"vlan_id,omitempty"`
	LastScanned *time.Time `json:"last_scanned,omitempty"`
	AssetCount  int        `json:"asset_count"`
}
