// Package netutil holds small networking helpers shared by the scanner and
// classifier: CIDR expansion, MAC normalization and port list parsing.
package netutil

import (
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
)

// maxExpandedHosts caps CIDR expansion so a mistyped /8 cannot balloon a scan.
const maxExpandedHosts = 65536

// ExpandTarget expands a CIDR or single IP into candidate host addresses.
// Single IPs are treated as /32. Network and broadcast addresses are dropped
// for /30 and wider masks.
func ExpandTarget(target string) ([]string, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, nil
	}

	if !strings.Contains(target, "/") {
		if ip := net.ParseIP(target); ip == nil || ip.To4() == nil {
			return nil, fmt.Errorf("invalid IPv4 target %q", target)
		}
		return []string{target}, nil
	}

	_, ipNet, err := net.ParseCIDR(target)
	if err != nil {
		return nil, fmt.Errorf("parse CIDR %q: %w", target, err)
	}
	if ipNet.IP.To4() == nil {
		return nil, fmt.Errorf("only IPv4 targets are supported: %q", target)
	}

	ones, bits := ipNet.Mask.Size()
	dropEdges := bits == 32 && ones > 0 && ones < 31

	var hosts []string
	network := ipNet.IP.Mask(ipNet.Mask).To4()
	broadcast := make(net.IP, net.IPv4len)
	for i := 0; i < net.IPv4len; i++ {
		broadcast[i] = network[i] | ^ipNet.Mask[i]
	}

	ip := make(net.IP, len(network))
	copy(ip, network)
	for ipNet.Contains(ip) {
		if !dropEdges || (!ip.Equal(network) && !ip.Equal(broadcast)) {
			hosts = append(hosts, ip.String())
		}
		if len(hosts) >= maxExpandedHosts {
			break
		}
		incIP(ip)
		if ip.Equal(network) { // wrapped around on /0
			break
		}
	}
	return hosts, nil
}

// incIP increments an IP address in place.
func incIP(ip net.IP) {
	for j := len(ip) - 1; j >= 0; j-- {
		ip[j]++
		if ip[j] > 0 {
			break
		}
	}
}

// sentinel MAC values that mean "no hardware address".
var sentinelMACs = map[string]struct{}{
	"00:00:00:00:00:00": {},
	"ff:ff:ff:ff:ff:ff": {},
}

// NormalizeMAC canonicalizes a MAC string to lowercase colon-separated form
// with zero-padded octets. Sentinel values (all-zero, broadcast) and
// unparseable input yield an empty string.
func NormalizeMAC(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.Contains(raw, "incomplete") {
		return ""
	}
	// BSD arp prints octets without leading zeros ("0:1e:bd:a:b:c").
	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == ':' || r == '-' })
	if len(parts) != 6 {
		return ""
	}
	octets := make([]string, 6)
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return ""
		}
		octets[i] = fmt.Sprintf("%02x", v)
	}
	mac := strings.Join(octets, ":")
	if _, bad := sentinelMACs[mac]; bad {
		return ""
	}
	return mac
}

// IsLocallyAdministered reports whether the MAC has the locally-administered
// bit set (second-least-significant bit of the first octet). Randomized MACs
// used by privacy-conscious clients fall in this space.
func IsLocallyAdministered(mac string) bool {
	mac = NormalizeMAC(mac)
	if mac == "" {
		return false
	}
	first, err := strconv.ParseUint(mac[:2], 16, 8)
	if err != nil {
		return false
	}
	return first&0x02 != 0
}

// OUIPrefix returns the first three octets of a normalized MAC ("aa:bb:cc"),
// or an empty string when the MAC is unusable.
func OUIPrefix(mac string) string {
	mac = NormalizeMAC(mac)
	if mac == "" {
		return ""
	}
	return mac[:8]
}

// ParsePorts parses a comma-separated port specification with ranges, e.g.
// "22,80,1000-1024", into a sorted deduplicated slice.
func ParsePorts(spec string) ([]int, error) {
	seen := make(map[int]struct{})
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.Contains(part, "-") {
			bounds := strings.SplitN(part, "-", 2)
			lo, err := parsePort(bounds[0])
			if err != nil {
				return nil, err
			}
			hi, err := parsePort(bounds[1])
			if err != nil {
				return nil, err
			}
			if hi < lo {
				return nil, fmt.Errorf("invalid port range %q", part)
			}
			for p := lo; p <= hi; p++ {
				seen[p] = struct{}{}
			}
			continue
		}
		p, err := parsePort(part)
		if err != nil {
			return nil, err
		}
		seen[p] = struct{}{}
	}

	ports := make([]int, 0, len(seen))
	for p := range seen {
		ports = append(ports, p)
	}
	sort.Ints(ports)
	return ports, nil
}

func parsePort(s string) (int, error) {
	p, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || p < 1 || p > 65535 {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	return p, nil
}
