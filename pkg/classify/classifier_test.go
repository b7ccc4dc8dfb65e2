package classify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigrlabs/bigr-discovery/pkg/model"
	"github.com/bigrlabs/bigr-discovery/pkg/oui"
	"github.com/bigrlabs/bigr-discovery/pkg/rules"
)

type fakeOverrides struct {
	tags map[string]string
	err  error
}

func (f *fakeOverrides) ManualOverride(ip string) (model.Category, string, bool, error) {
	if f.err != nil {
		return "", "", false, f.err
	}
	if cat, ok := f.tags[ip]; ok {
		return model.Category(cat), "note-" + ip, true, nil
	}
	return "", "", false, nil
}

func newBaselineClassifier(opts ...Option) *Classifier {
	return New(&rules.Set{}, oui.NewLookup(""), opts...)
}

func TestClassifyCiscoCoreSwitch(t *testing.T) {
	asset := model.Asset{
		IP:        "10.0.0.1",
		MAC:       "00:1e:bd:aa:bb:cc",
		Hostname:  "core-sw-01",
		OpenPorts: []int{22, 80, 443, 161},
	}

	newBaselineClassifier().Classify(context.Background(), &asset)

	assert.Equal(t, model.CategoryNetworkSystems, asset.Category)
	assert.GreaterOrEqual(t, asset.ConfidenceScore, 0.4)
	assert.Contains(t, asset.RawEvidence["vendor_rules"], "Cisco")
	assert.Contains(t, asset.RawEvidence["hostname_rules"], "network-gear-name")
	assert.Equal(t, "Cisco Systems", asset.Vendor)
}

func TestClassifyHikvisionCamera(t *testing.T) {
	asset := model.Asset{
		IP:        "10.0.0.50",
		MAC:       "a4:14:37:00:11:22",
		Hostname:  "lobby-cam-01",
		OpenPorts: []int{80, 554},
	}

	newBaselineClassifier().Classify(context.Background(), &asset)

	assert.Equal(t, model.CategoryIoT, asset.Category)
	assert.GreaterOrEqual(t, asset.ConfidenceScore, 0.4)
	assert.Contains(t, asset.RawEvidence["port_rules"], "rtsp-camera")
	assert.Contains(t, asset.RawEvidence["vendor_rules"], "Hikvision")
}

func TestClassifyUnknownMinimal(t *testing.T) {
	asset := model.Asset{IP: "10.0.0.200"}

	newBaselineClassifier().Classify(context.Background(), &asset)

	assert.Equal(t, model.CategoryUnclassified, asset.Category)
	assert.Less(t, asset.ConfidenceScore, 0.3)
}

func TestClassifyManualOverrideWins(t *testing.T) {
	overrides := &fakeOverrides{tags: map[string]string{"10.0.0.1": "iot"}}
	c := newBaselineClassifier(WithOverrides(overrides))

	asset := model.Asset{
		IP:        "10.0.0.1",
		MAC:       "aa:bb:cc:dd:ee:ff",
		Vendor:    "HP",
		OpenPorts: []int{9100},
	}
	c.Classify(context.Background(), &asset)

	assert.Equal(t, model.CategoryIoT, asset.Category)
	assert.Equal(t, 1.0, asset.ConfidenceScore)
	assert.Equal(t, "note-10.0.0.1", asset.RawEvidence["manual_override"])
}

func TestClassifyOverrideLookupErrorFallsThrough(t *testing.T) {
	c := newBaselineClassifier(WithOverrides(&fakeOverrides{err: errors.New("db locked")}))

	asset := model.Asset{IP: "10.0.0.1", OpenPorts: []int{9100}}
	c.Classify(context.Background(), &asset)

	// Lookup failure degrades to automatic classification.
	assert.Equal(t, model.CategoryIoT, asset.Category)
}

func TestClassifyThresholdBoundary(t *testing.T) {
	// Scores: 0.3/0.3/0.3/0.1; winner resolves to the first category in
	// declaration order with confidence exactly 0.30, which must classify.
	set := &rules.Set{Port: []rules.Rule{
		{Name: "a", PortsIncludeAny: []int{1000}, Scores: map[model.Category]float64{
			model.CategoryNetworkSystems: 0.3,
			model.CategoryApplications:   0.3,
			model.CategoryIoT:            0.3,
			model.CategoryPortable:       0.1,
		}},
	}}
	c := New(set, oui.NewLookup(""))

	asset := model.Asset{IP: "10.0.0.9", OpenPorts: []int{1000}}
	c.Classify(context.Background(), &asset)

	assert.Equal(t, model.CategoryNetworkSystems, asset.Category)
	assert.InDelta(t, 0.3, asset.ConfidenceScore, 1e-9)
}

func TestClassifyRandomizedMACPenalty(t *testing.T) {
	asset := model.Asset{IP: "10.0.0.77", MAC: "a6:11:22:33:44:55"}

	newBaselineClassifier().Classify(context.Background(), &asset)

	assert.Equal(t, model.CategoryUnclassified, asset.Category)
	assert.Contains(t, asset.RawEvidence, "mac_randomized")
}

func TestClassifyMDNSServiceEvidence(t *testing.T) {
	asset := model.Asset{
		IP: "192.168.1.42",
		MDNSServices: []model.MDNSService{
			{Name: "TV", ServiceType: "_googlecast._tcp.local.", IP: "192.168.1.42"},
		},
	}

	newBaselineClassifier().Classify(context.Background(), &asset)

	assert.Equal(t, model.CategoryIoT, asset.Category)
	assert.Contains(t, asset.RawEvidence["service_rules"], "media-cast-service")
	// mDNS evidence present before classification is preserved.
	require.Len(t, asset.MDNSServices, 1)
}

func TestClassifyInvariants(t *testing.T) {
	assets := []model.Asset{
		{IP: "10.0.0.1", OpenPorts: []int{443, 22, 22, 80}},
		{IP: "10.0.0.2", MAC: "02:00:00:00:00:01"},
		{IP: "10.0.0.3", Hostname: "johns-iphone"},
		{IP: "10.0.0.4", OpenPorts: []int{3306, 445, 3389}},
	}
	c := newBaselineClassifier()
	for i := range assets {
		c.Classify(context.Background(), &assets[i])
		a := assets[i]

		assert.True(t, a.Category.Valid(), "category %q", a.Category)
		assert.GreaterOrEqual(t, a.ConfidenceScore, 0.0)
		assert.LessOrEqual(t, a.ConfidenceScore, 1.0)
		for j := 1; j < len(a.OpenPorts); j++ {
			assert.Greater(t, a.OpenPorts[j], a.OpenPorts[j-1], "ports must be sorted unique")
		}
	}
}

func TestLoadedRulesetOverridesBaseline(t *testing.T) {
	set := &rules.Set{Port: []rules.Rule{
		{Name: "everything-is-iot", PortsIncludeAny: []int{22},
			Scores: map[model.Category]float64{model.CategoryIoT: 0.9}},
	}}
	c := New(set, oui.NewLookup(""))

	asset := model.Asset{IP: "10.0.0.1", OpenPorts: []int{22}}
	c.Classify(context.Background(), &asset)

	assert.Equal(t, model.CategoryIoT, asset.Category)
	assert.Contains(t, asset.RawEvidence["port_rules"], "everything-is-iot")
}
