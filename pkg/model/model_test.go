package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategory(t *testing.T) {
	for _, s := range []string{"ag_ve_sistemler", "uygulamalar", "iot", "tasinabilir", "unclassified"} {
		c, err := ParseCategory(s)
		require.NoError(t, err)
		assert.Equal(t, s, string(c))
	}

	_, err := ParseCategory("servers")
	assert.Error(t, err)
	_, err = ParseCategory("")
	assert.Error(t, err)
}

func TestLevelForScore(t *testing.T) {
	tests := []struct {
		score float64
		want  ConfidenceLevel
	}{
		{0.95, ConfidenceHigh},
		{0.7, ConfidenceHigh},
		{0.5, ConfidenceMedium},
		{0.4, ConfidenceMedium},
		{0.3, ConfidenceLow},
		{0.29, ConfidenceUnclassified},
		{0, ConfidenceUnclassified},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LevelForScore(tt.score), "score %v", tt.score)
	}
}

func TestAssetKey(t *testing.T) {
	a := Asset{IP: "10.0.0.1", MAC: "aa:bb:cc:dd:ee:ff"}
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", a.Key())

	a.MAC = ""
	assert.Equal(t, "10.0.0.1", a.Key())
}

func TestNormalizePorts(t *testing.T) {
	a := Asset{OpenPorts: []int{443, 22, 80, 22, 443}}
	a.NormalizePorts()
	assert.Equal(t, []int{22, 80, 443}, a.OpenPorts)

	empty := Asset{}
	empty.NormalizePorts()
	assert.Empty(t, empty.OpenPorts)
}

func TestCategorySummary(t *testing.T) {
	r := ScanResult{Assets: []Asset{
		{IP: "10.0.0.1", Category: CategoryNetworkSystems},
		{IP: "10.0.0.2", Category: CategoryIoT},
		{IP: "10.0.0.3", Category: CategoryIoT},
	}}
	summary := r.CategorySummary()
	assert.Equal(t, 1, summary[CategoryNetworkSystems])
	assert.Equal(t, 2, summary[CategoryIoT])

	empty := ScanResult{}
	assert.Empty(t, empty.CategorySummary())
}

func TestScanDuration(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r := ScanResult{StartedAt: start}
	assert.Zero(t, r.Duration())

	r.CompletedAt = start.Add(90 * time.Second)
	assert.Equal(t, 90*time.Second, r.Duration())
}

func TestLabelTR(t *testing.T) {
	assert.Equal(t, "Ağ ve Sistemler", CategoryNetworkSystems.LabelTR())
	assert.Equal(t, "Sınıflandırılmamış", CategoryUnclassified.LabelTR())
}
