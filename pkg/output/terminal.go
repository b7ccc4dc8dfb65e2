package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"

	"github.com/bigrlabs/bigr-discovery/pkg/model"
	"github.com/bigrlabs/bigr-discovery/pkg/stringutil"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")) // Cyan

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")) // Gray
)

// categoryColors maps each class to a terminal color.
var categoryColors = map[model.Category]*color.Color{
	model.CategoryNetworkSystems: color.New(color.FgBlue),
	model.CategoryApplications:   color.New(color.FgGreen),
	model.CategoryIoT:            color.New(color.FgMagenta),
	model.CategoryPortable:       color.New(color.FgYellow),
	model.CategoryUnclassified:   color.New(color.FgHiBlack),
}

// WriteSummary prints a human-readable scan summary: header, per-category
// counts and one line per asset.
func WriteSummary(w io.Writer, result *model.ScanResult) error {
	header := fmt.Sprintf("%s  %s scan, %d assets, %.1fs",
		result.Target, result.ScanMethod, len(result.Assets), result.Duration().Seconds())
	if _, err := fmt.Fprintln(w, headerStyle.Render(header)); err != nil {
		return err
	}
	if !result.IsRoot {
		fmt.Fprintln(w, dimStyle.Render("running unprivileged, ARP sweep skipped"))
	}

	summary := result.CategorySummary()
	var parts []string
	for _, cat := range append(model.Categories, model.CategoryUnclassified) {
		if count := summary[cat]; count > 0 {
			parts = append(parts, categoryColors[cat].Sprintf("%s: %d", cat.LabelTR(), count))
		}
	}
	if len(parts) > 0 {
		fmt.Fprintln(w, strings.Join(parts, "  "))
	}
	fmt.Fprintln(w)

	for i := range result.Assets {
		if err := writeAssetLine(w, &result.Assets[i]); err != nil {
			return err
		}
	}
	return nil
}

func writeAssetLine(w io.Writer, a *model.Asset) error {
	name := a.Hostname
	if name == "" {
		name = "-"
	}
	cat := categoryColors[a.Category].Sprint(a.Category.LabelTR())
	ports := joinPorts(a.OpenPorts)
	if ports == "" {
		ports = "-"
	}
	_, err := fmt.Fprintf(w, "%-15s  %-17s  %-24s  %s (%.2f)  ports: %s\n",
		a.IP, orDash(a.MAC), stringutil.Ellipsis(name, 24), cat, a.ConfidenceScore, ports)
	return err
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
