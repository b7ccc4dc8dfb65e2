// Package output renders scan results as JSON, CSV or a colored terminal
// summary.
package output

import (
	"encoding/json"
	"io"
	"math"
	"time"

	"github.com/bigrlabs/bigr-discovery/pkg/model"
)

// AssetReport is the external shape of one asset in a report.
type AssetReport struct {
	IP              string                `json:"ip"`
	MAC             string                `json:"mac,omitempty"`
	Hostname        string                `json:"hostname,omitempty"`
	Vendor          string                `json:"vendor,omitempty"`
	OSHint          string                `json:"os_hint,omitempty"`
	OpenPorts       []int                 `json:"open_ports"`
	Category        model.Category        `json:"bigr_category"`
	CategoryTR      string                `json:"bigr_category_tr"`
	ConfidenceScore float64               `json:"confidence_score"`
	ConfidenceLevel model.ConfidenceLevel `json:"confidence_level"`
	ScanMethod      model.ScanMethod      `json:"scan_method"`
	RawEvidence     map[string]string     `json:"raw_evidence,omitempty"`
	MDNSServices    []model.MDNSService   `json:"mdns_services,omitempty"`
}

// Report is the JSON envelope for one scan. CompletedAt and
// DurationSeconds are null while a scan is still in flight.
type Report struct {
	Target          string           `json:"target"`
	ScanMethod      model.ScanMethod `json:"scan_method"`
	StartedAt       string           `json:"started_at"`
	CompletedAt     *string          `json:"completed_at"`
	DurationSeconds *float64         `json:"duration_seconds"`
	IsRoot          bool             `json:"is_root"`
	TotalAssets     int              `json:"total_assets"`
	CategorySummary map[string]int   `json:"category_summary"`
	Assets          []AssetReport    `json:"assets"`
}

// BuildReport converts a scan result into its report envelope. Timestamps
// are ISO-8601 UTC and scores are rounded to four decimals.
func BuildReport(result *model.ScanResult) *Report {
	report := &Report{
		Target:          result.Target,
		ScanMethod:      result.ScanMethod,
		StartedAt:       result.StartedAt.UTC().Format(time.RFC3339),
		IsRoot:          result.IsRoot,
		TotalAssets:     len(result.Assets),
		CategorySummary: make(map[string]int),
		Assets:          make([]AssetReport, 0, len(result.Assets)),
	}
	if !result.CompletedAt.IsZero() {
		completed := result.CompletedAt.UTC().Format(time.RFC3339)
		duration := math.Round(result.Duration().Seconds()*100) / 100
		report.CompletedAt = &completed
		report.DurationSeconds = &duration
	}
	for cat, count := range result.CategorySummary() {
		report.CategorySummary[string(cat)] = count
	}
	for i := range result.Assets {
		report.Assets = append(report.Assets, toAssetReport(&result.Assets[i]))
	}
	return report
}

func toAssetReport(a *model.Asset) AssetReport {
	score := math.Round(a.ConfidenceScore*10000) / 10000
	ports := a.OpenPorts
	if ports == nil {
		ports = []int{}
	}
	return AssetReport{
		IP:              a.IP,
		MAC:             a.MAC,
		Hostname:        a.Hostname,
		Vendor:          a.Vendor,
		OSHint:          a.OSHint,
		OpenPorts:       ports,
		Category:        a.Category,
		CategoryTR:      a.Category.LabelTR(),
		ConfidenceScore: score,
		ConfidenceLevel: model.LevelForScore(score),
		ScanMethod:      a.ScanMethod,
		RawEvidence:     a.RawEvidence,
		MDNSServices:    a.MDNSServices,
	}
}

// WriteJSON renders the scan result as indented JSON.
func WriteJSON(w io.Writer, result *model.ScanResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(BuildReport(result))
}
