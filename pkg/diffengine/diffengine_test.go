package diffengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigrlabs/bigr-discovery/pkg/model"
)

func scanWith(assets ...model.Asset) *model.ScanResult {
	return &model.ScanResult{Target: "192.168.1.0/24", Assets: assets}
}

func TestDiffIdenticalScans(t *testing.T) {
	assets := []model.Asset{
		{IP: "10.0.0.1", MAC: "aa:bb:cc:dd:ee:01", OpenPorts: []int{22}, Category: model.CategoryNetworkSystems},
		{IP: "10.0.0.2", MAC: "aa:bb:cc:dd:ee:02", Category: model.CategoryUnclassified},
	}

	d := DiffScans(scanWith(assets...), scanWith(assets...))

	assert.False(t, d.HasChanges())
	assert.Equal(t, 2, d.UnchangedCount)
	assert.Equal(t, "=2 unchanged", d.Summary())
}

func TestDiffNoPrevious(t *testing.T) {
	d := DiffScans(scanWith(model.Asset{IP: "10.0.0.1"}), nil)

	assert.True(t, d.HasChanges())
	assert.Len(t, d.NewAssets, 1)
	assert.Equal(t, "+1 new", d.Summary())
}

func TestDiffNewRemovedChanged(t *testing.T) {
	previous := scanWith(
		model.Asset{IP: "10.0.0.1", MAC: "aa:bb:cc:dd:ee:01", OpenPorts: []int{22}, Hostname: "a"},
		model.Asset{IP: "10.0.0.2", MAC: "aa:bb:cc:dd:ee:02"},
	)
	current := scanWith(
		model.Asset{IP: "10.0.0.1", MAC: "aa:bb:cc:dd:ee:01", OpenPorts: []int{22, 80}, Hostname: "b"},
		model.Asset{IP: "10.0.0.3", MAC: "aa:bb:cc:dd:ee:03"},
	)

	d := DiffScans(current, previous)

	require.Len(t, d.NewAssets, 1)
	assert.Equal(t, "10.0.0.3", d.NewAssets[0].IP)
	require.Len(t, d.RemovedAssets, 1)
	assert.Equal(t, "10.0.0.2", d.RemovedAssets[0].IP)

	fields := map[string]model.AssetChange{}
	for _, ch := range d.ChangedAssets {
		fields[ch.FieldName] = ch
	}
	require.Contains(t, fields, "port_change")
	assert.Equal(t, "22", fields["port_change"].OldValue)
	assert.Equal(t, "22,80", fields["port_change"].NewValue)
	require.Contains(t, fields, "hostname")
	assert.Equal(t, "a", fields["hostname"].OldValue)

	assert.Equal(t, "+1 new -1 removed ~1 changed", d.Summary())
}

func TestDiffMatchesByMACAcrossIPChange(t *testing.T) {
	// DHCP renumbering: same MAC, new IP. The asset matches by MAC, so it is
	// neither new nor removed.
	previous := scanWith(model.Asset{IP: "10.0.0.50", MAC: "aa:bb:cc:dd:ee:01", Hostname: "h"})
	current := scanWith(model.Asset{IP: "10.0.0.99", MAC: "aa:bb:cc:dd:ee:01", Hostname: "h"})

	d := DiffScans(current, previous)

	assert.Empty(t, d.NewAssets)
	assert.Empty(t, d.RemovedAssets)
	assert.Equal(t, 1, d.UnchangedCount)
}

func TestDiffPortsComparedAsSets(t *testing.T) {
	previous := scanWith(model.Asset{IP: "10.0.0.1", OpenPorts: []int{80, 22}})
	current := scanWith(model.Asset{IP: "10.0.0.1", OpenPorts: []int{22, 80}})

	d := DiffScans(current, previous)
	assert.False(t, d.HasChanges())
}

func TestDiffEmptyScans(t *testing.T) {
	d := DiffScans(scanWith(), scanWith())
	assert.False(t, d.HasChanges())
	assert.Equal(t, "no assets", d.Summary())
}
