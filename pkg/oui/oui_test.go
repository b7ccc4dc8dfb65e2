package oui

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigrlabs/bigr-discovery/pkg/model"
)

func TestVendorWellKnown(t *testing.T) {
	l := NewLookup("")
	assert.Equal(t, "Cisco Systems", l.Vendor("00:1E:BD:AA:BB:CC"))
	assert.Equal(t, "Hangzhou Hikvision Digital Technology", l.Vendor("a4:14:37:00:11:22"))
	assert.Equal(t, "", l.Vendor("de:ad:be:ef:00:01"))
	assert.Equal(t, "", l.Vendor(""))
	assert.Equal(t, "", l.Vendor("not-a-mac"))
}

func TestVendorFromCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "oui.csv")
	csv := "Registry,Assignment,Organization Name,Organization Address\n" +
		"MA-L,DEADBE,Example Widgets Inc,1 Example Way\n" +
		"MA-L,bogus,Broken Row\n" +
		"MA-L,001122,Another Vendor,2 Example Way\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

	l := NewLookup(path)
	assert.Equal(t, "Example Widgets Inc", l.Vendor("de:ad:be:00:00:01"))
	assert.Equal(t, "Another Vendor", l.Vendor("00:11:22:33:44:55"))

	// Well-known table still wins over the CSV.
	assert.Equal(t, "Cisco Systems", l.Vendor("00:1e:bd:00:00:00"))
}

func TestVendorMissingCSVNonFatal(t *testing.T) {
	l := NewLookup("/nonexistent/oui.csv")
	assert.Equal(t, "", l.Vendor("de:ad:be:ef:00:01"))
	assert.Equal(t, "Cisco Systems", l.Vendor("00:1e:bd:aa:bb:cc"))
}

func TestCategoryHint(t *testing.T) {
	tests := []struct {
		vendor string
		want   model.Category
	}{
		{"Cisco Systems", model.CategoryNetworkSystems},
		{"cisco systems, inc.", model.CategoryNetworkSystems},
		{"Hangzhou Hikvision Digital Technology", model.CategoryIoT},
		{"Apple, Inc.", model.CategoryPortable},
		{"VMware, Inc.", model.CategoryApplications},
		{"Hewlett Packard (Printer)", model.CategoryIoT},
		{"Hewlett Packard Enterprise", model.CategoryApplications},
		{"Totally Unknown Corp", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CategoryHint(tt.vendor), "vendor %q", tt.vendor)
	}
}
