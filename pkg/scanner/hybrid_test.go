package scanner

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigrlabs/bigr-discovery/pkg/model"
)

func TestMergeAssetsHybrid(t *testing.T) {
	passive := []model.Asset{
		{IP: "192.168.1.10", MAC: "aa:bb:cc:dd:ee:01", Hostname: "h", OpenPorts: []int{22}, ScanMethod: model.MethodPassive},
	}
	active := []model.Asset{
		{IP: "192.168.1.10", MAC: "aa:bb:cc:dd:ee:01", OpenPorts: []int{22, 80}, ScanMethod: model.MethodActive},
	}

	merged := mergeAssets(model.MethodHybrid, passive, active)
	require.Len(t, merged, 1)

	got := merged[0]
	got.NormalizePorts()
	assert.Equal(t, "h", got.Hostname) // passive hostname preserved
	assert.Equal(t, []int{22, 80}, got.OpenPorts)
	assert.Equal(t, model.MethodHybrid, got.ScanMethod)
}

func TestMergeAssetsEvidenceActiveWins(t *testing.T) {
	passive := []model.Asset{{IP: "10.0.0.1", RawEvidence: map[string]string{"source": "arp_table", "extra": "p"}}}
	active := []model.Asset{{IP: "10.0.0.1", RawEvidence: map[string]string{"source": "arp_sweep"}}}

	merged := mergeAssets(model.MethodHybrid, passive, active)
	require.Len(t, merged, 1)
	assert.Equal(t, "arp_sweep", merged[0].RawEvidence["source"])
	assert.Equal(t, "p", merged[0].RawEvidence["extra"])
}

func TestMergeAssetsDisjoint(t *testing.T) {
	passive := []model.Asset{{IP: "10.0.0.1", MAC: "aa:bb:cc:dd:ee:01"}}
	active := []model.Asset{{IP: "10.0.0.2", MAC: "aa:bb:cc:dd:ee:02"}}

	merged := mergeAssets(model.MethodHybrid, passive, active)
	assert.Len(t, merged, 2)
	for _, a := range merged {
		assert.Equal(t, model.MethodHybrid, a.ScanMethod)
	}
}

func TestMergeAssetsSingleModes(t *testing.T) {
	passive := []model.Asset{{IP: "10.0.0.1"}}
	active := []model.Asset{{IP: "10.0.0.2"}}

	assert.Equal(t, passive, mergeAssets(model.MethodPassive, passive, active))
	assert.Equal(t, active, mergeAssets(model.MethodActive, passive, active))
}

// newTestHybrid builds a Hybrid whose phases are all faked.
func newTestHybrid(passiveARP string, sweep []model.Asset, privileged bool) *Hybrid {
	opts := DefaultOptions()
	opts.MDNSWindow = 50 * time.Millisecond
	h := NewHybrid(opts)

	h.passive.arpCommand = func(ctx context.Context) ([]byte, error) {
		if passiveARP == "" {
			return nil, errors.New("no arp")
		}
		return []byte(passiveARP), nil
	}
	h.passive.procNetARP = func() ([]byte, error) { return nil, errors.New("no proc") }
	h.passive.lookupAddr = func(ctx context.Context, ip string) ([]string, error) { return nil, errors.New("nx") }

	// Ports 22 and 80 are "open" everywhere; everything else refuses.
	h.active = NewActiveScanner(100*time.Millisecond, 4)
	h.active.dial = func(ctx context.Context, addr string, timeout time.Duration) (net.Conn, error) {
		if strings.HasSuffix(addr, ":22") || strings.HasSuffix(addr, ":80") {
			client, server := net.Pipe()
			server.Close()
			return client, nil
		}
		return nil, errors.New("refused")
	}

	h.mdns = NewMDNSListener(50 * time.Millisecond)
	h.mdns.browse = func(ctx context.Context, serviceType string, entries chan<- *zeroconf.ServiceEntry) error {
		close(entries)
		return nil
	}

	h.canSweep = func() bool { return privileged }
	h.arpSweep = func(ctx context.Context, cidr string, window time.Duration) []model.Asset {
		return sweep
	}
	h.pingSweep = func(ctx context.Context, ips []string, timeout time.Duration) []string { return nil }
	h.isAlive = func(ctx context.Context, ip string, timeout time.Duration) bool { return true }
	return h
}

func TestScanEmptyTarget(t *testing.T) {
	h := newTestHybrid("", nil, false)
	opts := DefaultOptions()
	opts.PingSweepFallback = false

	res, err := h.Scan(context.Background(), "", opts)
	require.NoError(t, err)
	assert.Empty(t, res.Assets)
	assert.False(t, res.CompletedAt.IsZero())
	assert.Empty(t, res.CategorySummary())
}

func TestScanInvalidMode(t *testing.T) {
	h := newTestHybrid("", nil, false)
	opts := DefaultOptions()
	opts.Mode = "turbo"
	_, err := h.Scan(context.Background(), "192.168.1.0/30", opts)
	assert.Error(t, err)
}

func TestScanHybridMergesPhases(t *testing.T) {
	passiveARP := "host-a.lan (192.168.1.10) at aa:bb:cc:dd:ee:01 on en0 ifscope [ethernet]\n"
	sweep := []model.Asset{{
		IP: "192.168.1.10", MAC: "aa:bb:cc:dd:ee:01",
		ScanMethod: model.MethodActive, Category: model.CategoryUnclassified,
	}}

	h := newTestHybrid(passiveARP, sweep, true)
	opts := DefaultOptions()
	opts.MDNSWindow = 50 * time.Millisecond
	opts.PingSweepFallback = false

	res, err := h.Scan(context.Background(), "192.168.1.0/24", opts)
	require.NoError(t, err)
	require.Len(t, res.Assets, 1)

	got := res.Assets[0]
	assert.Equal(t, "host-a.lan", got.Hostname)
	assert.Equal(t, []int{22, 80}, got.OpenPorts)
	assert.Equal(t, model.MethodHybrid, got.ScanMethod)
	assert.True(t, res.IsRoot)
	assert.True(t, res.StartedAt.Before(res.CompletedAt) || res.StartedAt.Equal(res.CompletedAt))
}

func TestScanContinuesWhenMDNSOverruns(t *testing.T) {
	oldGrace := mdnsJoinGrace
	mdnsJoinGrace = 20 * time.Millisecond
	defer func() { mdnsJoinGrace = oldGrace }()

	passiveARP := "? (192.168.1.10) at aa:bb:cc:dd:ee:01 on en0 ifscope [ethernet]\n"
	h := newTestHybrid(passiveARP, nil, false)
	h.mdns = NewMDNSListener(10 * time.Millisecond)
	h.mdns.browse = func(ctx context.Context, serviceType string, entries chan<- *zeroconf.ServiceEntry) error {
		time.Sleep(300 * time.Millisecond) // deliberately ignores the window
		close(entries)
		return nil
	}

	opts := DefaultOptions()
	opts.PingSweepFallback = false

	res, err := h.Scan(context.Background(), "192.168.1.0/24", opts)
	require.NoError(t, err)
	require.Len(t, res.Assets, 1)
	assert.Empty(t, res.Assets[0].MDNSServices)
}

func TestScanSkipsPortScanForDeadPassiveHost(t *testing.T) {
	passiveARP := "? (192.168.1.10) at aa:bb:cc:dd:ee:01 on en0 ifscope [ethernet]\n"
	h := newTestHybrid(passiveARP, nil, false)

	var dialed atomic.Bool
	h.active.dial = func(ctx context.Context, addr string, timeout time.Duration) (net.Conn, error) {
		dialed.Store(true)
		return nil, errors.New("refused")
	}
	h.isAlive = func(ctx context.Context, ip string, timeout time.Duration) bool { return false }

	opts := DefaultOptions()
	opts.PingSweepFallback = false

	res, err := h.Scan(context.Background(), "192.168.1.0/24", opts)
	require.NoError(t, err)
	require.Len(t, res.Assets, 1)
	assert.Empty(t, res.Assets[0].OpenPorts)
	assert.False(t, dialed.Load())
}

func TestScanPrivilegedEmptySweepFallsBackToPing(t *testing.T) {
	h := newTestHybrid("", nil, true) // privileged, but the sweep finds nothing
	h.pingSweep = func(ctx context.Context, ips []string, timeout time.Duration) []string {
		return []string{"192.168.1.20"}
	}

	res, err := h.Scan(context.Background(), "192.168.1.20", DefaultOptions())
	require.NoError(t, err)
	require.Len(t, res.Assets, 1)

	got := res.Assets[0]
	assert.Equal(t, "192.168.1.20", got.IP)
	assert.Equal(t, []int{22, 80}, got.OpenPorts)
	assert.Equal(t, model.MethodHybrid, got.ScanMethod)
	assert.Equal(t, "ping_sweep", got.RawEvidence["source"])
}

func TestScanPassiveModeSkipsPortScan(t *testing.T) {
	passiveARP := "? (192.168.1.10) at aa:bb:cc:dd:ee:01 on en0 ifscope [ethernet]\n"
	h := newTestHybrid(passiveARP, nil, false)

	opts := DefaultOptions()
	opts.Mode = model.MethodPassive
	opts.MDNSWindow = 50 * time.Millisecond

	res, err := h.Scan(context.Background(), "192.168.1.0/24", opts)
	require.NoError(t, err)
	require.Len(t, res.Assets, 1)
	assert.Empty(t, res.Assets[0].OpenPorts)
	assert.Equal(t, model.MethodPassive, res.Assets[0].ScanMethod)
	assert.False(t, res.IsRoot)
}
