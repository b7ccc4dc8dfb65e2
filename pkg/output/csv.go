package output

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/bigrlabs/bigr-discovery/pkg/model"
)

var csvHeader = []string{
	"ip", "mac", "hostname", "vendor", "os_hint", "open_ports",
	"bigr_category", "bigr_category_tr", "confidence_score", "confidence_level", "scan_method",
}

// WriteCSV renders the scan's assets as CSV, one row per asset. Ports are
// semicolon-joined inside a single column.
func WriteCSV(w io.Writer, result *model.ScanResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for i := range result.Assets {
		r := toAssetReport(&result.Assets[i])
		row := []string{
			r.IP, r.MAC, r.Hostname, r.Vendor, r.OSHint,
			joinPorts(r.OpenPorts),
			string(r.Category), r.CategoryTR,
			strconv.FormatFloat(r.ConfidenceScore, 'f', 4, 64),
			string(r.ConfidenceLevel), string(r.ScanMethod),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func joinPorts(ports []int) string {
	if len(ports) == 0 {
		return ""
	}
	parts := make([]string, len(ports))
	for i, p := range ports {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ";")
}
