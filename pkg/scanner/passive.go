// Package scanner implements the discovery pipeline: passive ARP harvest,
// active TCP/ARP probing, mDNS listening and the hybrid orchestrator that
// merges them.
package scanner

import (
	"bufio"
	"context"
	"net"
	"os"
	"os/exec"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bigrlabs/bigr-discovery/pkg/model"
	"github.com/bigrlabs/bigr-discovery/pkg/netutil"
)

// DefaultDNSTimeout bounds each reverse-PTR lookup during passive discovery.
const DefaultDNSTimeout = 1 * time.Second

// arpEntry is one parsed ARP-table row.
type arpEntry struct {
	ip       string
	mac      string
	hostname string
	source   string
}

// bsdARPLine matches `host (192.168.1.1) at 0:1e:bd:aa:bb:cc on en0 ...`.
var bsdARPLine = regexp.MustCompile(`^(\S+) \(([0-9.]+)\) at ([0-9a-fA-F:]+|\(incomplete\))`)

// PassiveScanner harvests hosts from the system ARP table without
// privileges.
type PassiveScanner struct {
	DNSTimeout time.Duration

	// Injectable for tests.
	arpCommand func(ctx context.Context) ([]byte, error)
	procNetARP func() ([]byte, error)
	lookupAddr func(ctx context.Context, ip string) ([]string, error)
}

// NewPassiveScanner returns a scanner wired to the platform ARP sources.
func NewPassiveScanner() *PassiveScanner {
	resolver := &net.Resolver{}
	return &PassiveScanner{
		DNSTimeout: DefaultDNSTimeout,
		arpCommand: func(ctx context.Context) ([]byte, error) {
			return exec.CommandContext(ctx, "arp", "-an").Output()
		},
		procNetARP: func() ([]byte, error) {
			return os.ReadFile("/proc/net/arp")
		},
		lookupAddr: resolver.LookupAddr,
	}
}

// Discover returns the hosts currently present in the ARP table as passive
// assets. When targets is non-empty, results are filtered to those CIDRs.
// All failures are best-effort: a missing arp binary simply yields fewer
// entries.
func (s *PassiveScanner) Discover(ctx context.Context, targets []string) []model.Asset {
	var entries []arpEntry

	if out, err := s.arpCommand(ctx); err == nil {
		entries = append(entries, parseARPCommand(out)...)
	} else {
		log.Debug().Err(err).Msg("arp command unavailable")
	}

	if runtime.GOOS == "linux" || len(entries) == 0 {
		if out, err := s.procNetARP(); err == nil {
			entries = append(entries, parseProcNetARP(out)...)
		}
	}

	filter := buildTargetFilter(targets)

	seen := make(map[string]bool)
	var assets []model.Asset
	for _, e := range entries {
		if filter != nil && !filter(e.ip) {
			continue
		}
		key := e.mac
		if key == "" {
			key = e.ip
		}
		if seen[key] {
			continue
		}
		seen[key] = true

		hostname := e.hostname
		if hostname == "" {
			hostname = s.reverseLookup(ctx, e.ip)
		}

		asset := model.Asset{
			IP:         e.ip,
			MAC:        e.mac,
			Hostname:   hostname,
			ScanMethod: model.MethodPassive,
			Category:   model.CategoryUnclassified,
		}
		asset.Evidence("source", e.source)
		assets = append(assets, asset)
	}

	log.Debug().Int("assets", len(assets)).Msg("passive discovery complete")
	return assets
}

// reverseLookup resolves a PTR record with a bounded timeout. Failures
// return an empty hostname.
func (s *PassiveScanner) reverseLookup(ctx context.Context, ip string) string {
	timeout := s.DNSTimeout
	if timeout <= 0 {
		timeout = DefaultDNSTimeout
	}
	lookupCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	names, err := s.lookupAddr(lookupCtx, ip)
	if err != nil || len(names) == 0 {
		return ""
	}
	return strings.TrimSuffix(names[0], ".")
}

// parseARPCommand parses BSD/macOS style `arp -an` output.
func parseARPCommand(out []byte) []arpEntry {
	var entries []arpEntry
	sc := bufio.NewScanner(strings.NewReader(string(out)))
	for sc.Scan() {
		m := bsdARPLine.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		mac := netutil.NormalizeMAC(m[3])
		if mac == "" {
			continue // incomplete, broadcast or all-zero
		}
		hostname := m[1]
		if hostname == "?" {
			hostname = ""
		}
		entries = append(entries, arpEntry{
			ip:       m[2],
			mac:      mac,
			hostname: hostname,
			source:   "arp_table",
		})
	}
	return entries
}

// parseProcNetARP parses the Linux /proc/net/arp table.
func parseProcNetARP(out []byte) []arpEntry {
	var entries []arpEntry
	sc := bufio.NewScanner(strings.NewReader(string(out)))
	first := true
	for sc.Scan() {
		if first { // header row
			first = false
			continue
		}
		fields := strings.Fields(sc.Text())
		if len(fields) < 4 {
			continue
		}
		ip := fields[0]
		mac := netutil.NormalizeMAC(fields[3])
		if net.ParseIP(ip) == nil || mac == "" {
			continue
		}
		entries = append(entries, arpEntry{ip: ip, mac: mac, source: "proc_net_arp"})
	}
	return entries
}

// buildTargetFilter returns a predicate matching IPs inside any of the
// target CIDRs, or nil when no usable targets were supplied.
func buildTargetFilter(targets []string) func(string) bool {
	var nets []*net.IPNet
	for _, t := range targets {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if !strings.Contains(t, "/") {
			t += "/32"
		}
		if _, ipNet, err := net.ParseCIDR(t); err == nil {
			nets = append(nets, ipNet)
		}
	}
	if len(nets) == 0 {
		return nil
	}
	return func(ip string) bool {
		parsed := net.ParseIP(ip)
		if parsed == nil {
			return false
		}
		for _, n := range nets {
			if n.Contains(parsed) {
				return true
			}
		}
		return false
	}
}
