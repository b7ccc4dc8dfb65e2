package scanner

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/bigrlabs/bigr-discovery/pkg/model"
	"github.com/bigrlabs/bigr-discovery/pkg/netutil"
)

// Options configures one hybrid scan.
type Options struct {
	Mode        model.ScanMethod
	Ports       []int
	PortTimeout time.Duration
	Workers     int
	MDNSWindow  time.Duration
	SweepWindow time.Duration
	PingTimeout time.Duration

	// PingSweepFallback enables an unprivileged ICMP sweep in active/hybrid
	// mode when the ARP sweep is unavailable or finds nothing.
	PingSweepFallback bool
}

// mdnsJoinGrace bounds how long the merge phase waits for the mDNS
// listener beyond its own window.
var mdnsJoinGrace = 5 * time.Second

// DefaultOptions returns the standard hybrid configuration.
func DefaultOptions() Options {
	return Options{
		Mode:              model.MethodHybrid,
		Ports:             DefaultPorts,
		PortTimeout:       DefaultPortTimeout,
		Workers:           DefaultWorkers,
		MDNSWindow:        DefaultMDNSWindow,
		SweepWindow:       DefaultSweepWindow,
		PingTimeout:       1 * time.Second,
		PingSweepFallback: true,
	}
}

// Hybrid runs the three-phase scan pipeline over a single target.
type Hybrid struct {
	passive *PassiveScanner
	active  *ActiveScanner
	mdns    *MDNSListener

	// arpSweep, canSweep, pingSweep and isAlive are injectable for tests.
	arpSweep  func(ctx context.Context, cidr string, window time.Duration) []model.Asset
	canSweep  func() bool
	pingSweep func(ctx context.Context, ips []string, timeout time.Duration) []string
	isAlive   func(ctx context.Context, ip string, timeout time.Duration) bool
}

// NewHybrid wires the scanner phases together from one option set.
func NewHybrid(opts Options) *Hybrid {
	active := NewActiveScanner(opts.PortTimeout, opts.Workers)
	return &Hybrid{
		passive:   NewPassiveScanner(),
		active:    active,
		mdns:      NewMDNSListener(opts.MDNSWindow),
		arpSweep:  ARPSweep,
		canSweep:  CanSweep,
		pingSweep: active.PingSweep,
		isAlive:   active.IsAlive,
	}
}

// Scan discovers and enriches every reachable host on the target.
//
// Phase A runs the mDNS listener and passive ARP harvest concurrently,
// port-scanning passive hosts as they land. Phase B adds the privileged ARP
// sweep (or the ICMP fallback) for active/hybrid modes. Merge is sequential
// after both phases; mDNS enrichment is always last so its evidence is
// visible to the classifier.
func (h *Hybrid) Scan(ctx context.Context, target string, opts Options) (*model.ScanResult, error) {
	if !opts.Mode.Valid() {
		return nil, fmt.Errorf("invalid scan mode %q", opts.Mode)
	}
	if len(opts.Ports) == 0 {
		opts.Ports = DefaultPorts
	}

	result := &model.ScanResult{
		Target:     target,
		ScanMethod: opts.Mode,
		StartedAt:  time.Now().UTC(),
		IsRoot:     h.canSweep(),
	}

	candidates, err := netutil.ExpandTarget(target)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		// An empty target is an empty scan, not a failure.
		result.CompletedAt = time.Now().UTC()
		result.Assets = []model.Asset{}
		return result, nil
	}

	var (
		passiveAssets []model.Asset
		activeAssets  []model.Asset
	)

	// Phase A: mDNS + passive, both unprivileged, concurrently. The mDNS
	// join is bounded separately below so a wedged listener cannot hold
	// the scan hostage; its result only ever arrives over the channel.
	mdnsCh := make(chan []model.MDNSService, 1)
	go func() { mdnsCh <- h.mdns.Listen(ctx) }()

	var g errgroup.Group
	g.Go(func() error {
		passiveAssets = h.passive.Discover(ctx, []string{target})
		if opts.Mode == model.MethodPassive {
			return nil
		}
		// Port-scan passive hosts that lack ports. ARP cache entries can
		// be stale, so a cheap ICMP probe filters dead hosts first; probe
		// errors count as alive and the connect scan still runs.
		for i := range passiveAssets {
			if len(passiveAssets[i].OpenPorts) > 0 {
				continue
			}
			if !h.isAlive(ctx, passiveAssets[i].IP, opts.PingTimeout) {
				continue
			}
			passiveAssets[i].OpenPorts = h.active.ScanPorts(ctx, passiveAssets[i].IP, opts.Ports)
		}
		return nil
	})

	// Phase B: privileged branch. The ARP sweep covers only directly
	// attached networks, so off-link and /32 targets yield nothing even
	// when privileged; the ICMP sweep backstops an empty result too.
	if opts.Mode == model.MethodActive || opts.Mode == model.MethodHybrid {
		g.Go(func() error {
			if h.canSweep() {
				activeAssets = h.arpSweep(ctx, target, opts.SweepWindow)
			}
			if len(activeAssets) == 0 && opts.PingSweepFallback {
				for _, ip := range h.pingSweep(ctx, candidates, opts.PingTimeout) {
					a := model.Asset{
						IP:         ip,
						ScanMethod: model.MethodActive,
						Category:   model.CategoryUnclassified,
					}
					a.Evidence("source", "ping_sweep")
					activeAssets = append(activeAssets, a)
				}
			}
			for i := range activeAssets {
				activeAssets[i].OpenPorts = h.active.ScanPorts(ctx, activeAssets[i].IP, opts.Ports)
			}
			return nil
		})
	}

	_ = g.Wait() // phase goroutines only report via the slices

	merged := mergeAssets(opts.Mode, passiveAssets, activeAssets)

	// Await mDNS, bounded by window + grace. On overrun or cancellation
	// the scan proceeds without advertisements.
	var mdnsServices []model.MDNSService
	select {
	case mdnsServices = <-mdnsCh:
	case <-time.After(h.mdns.Window + mdnsJoinGrace):
		log.Warn().Msg("mDNS listener overran its window, continuing without it")
	case <-ctx.Done():
	}
	AttachServices(merged, mdnsServices)

	for i := range merged {
		merged[i].NormalizePorts()
	}

	result.CompletedAt = time.Now().UTC()
	result.Assets = merged
	log.Info().
		Str("target", target).
		Str("mode", string(opts.Mode)).
		Int("assets", len(merged)).
		Dur("took", result.Duration()).
		Msg("scan complete")
	return result, nil
}

// mergeAssets applies the mode's merge policy. In hybrid mode passive
// entries seed the map and active entries overwrite/augment: passive
// hostnames survive when active has none, open ports are unioned, evidence
// merges with active winning on key conflict.
func mergeAssets(mode model.ScanMethod, passive, active []model.Asset) []model.Asset {
	switch mode {
	case model.MethodPassive:
		return passive
	case model.MethodActive:
		return active
	}

	index := make(map[string]int)
	var merged []model.Asset

	for _, a := range passive {
		index[a.Key()] = len(merged)
		merged = append(merged, a)
	}
	for _, a := range active {
		i, exists := index[a.Key()]
		if !exists {
			a.ScanMethod = model.MethodHybrid
			index[a.Key()] = len(merged)
			merged = append(merged, a)
			continue
		}

		existing := &merged[i]
		if a.Hostname != "" {
			existing.Hostname = a.Hostname
		}
		if a.IP != "" {
			existing.IP = a.IP
		}
		if a.MAC != "" {
			existing.MAC = a.MAC
		}
		if a.Vendor != "" {
			existing.Vendor = a.Vendor
		}
		existing.OpenPorts = append(existing.OpenPorts, a.OpenPorts...)
		for k, v := range a.RawEvidence {
			existing.Evidence(k, v)
		}
		existing.ScanMethod = model.MethodHybrid
	}

	for i := range merged {
		merged[i].ScanMethod = model.MethodHybrid
	}
	return merged
}
