// Package fingerprint infers a coarse OS/role hint for a host from its open
// port set and a small number of banner probes.
package fingerprint

import (
	"context"
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultTimeout bounds each banner-grab connection.
const DefaultTimeout = 2 * time.Second

// bannerBufferSize caps how much of a banner we read.
const bannerBufferSize = 1024

// portProfile maps a port signature to a hint. Profiles are checked in
// order; the first whose ports are all open wins.
type portProfile struct {
	ports []int
	hint  string
}

var portProfiles = []portProfile{
	{ports: []int{3389, 445}, hint: "Windows"},
	{ports: []int{445, 139}, hint: "Windows"},
	{ports: []int{3389}, hint: "Windows"},
	{ports: []int{9100}, hint: "Printer"},
	{ports: []int{631, 515}, hint: "Print Server"},
	{ports: []int{554}, hint: "IP Camera"},
	{ports: []int{8554}, hint: "IP Camera"},
	{ports: []int{1883}, hint: "IoT Device (MQTT)"},
	{ports: []int{548}, hint: "macOS / NAS (AFP)"},
	{ports: []int{161, 23}, hint: "Network Device"},
	{ports: []int{22, 161}, hint: "Network Device"},
	{ports: []int{22}, hint: "Linux/Unix"},
}

// bannerPatterns maps banner substrings/regexes to hints, most specific
// first. A banner hit overrides the port-profile result.
var bannerPatterns = []struct {
	re   *regexp.Regexp
	hint string
}{
	{regexp.MustCompile(`(?i)microsoft|iis`), "Windows"},
	{regexp.MustCompile(`(?i)routeros|mikrotik`), "RouterOS"},
	{regexp.MustCompile(`(?i)dropbear`), "Embedded Linux"},
	{regexp.MustCompile(`(?i)busybox|goahead|boa/`), "Embedded Device"},
	{regexp.MustCompile(`(?i)hikvision|dahua|ipcamera`), "IP Camera"},
	{regexp.MustCompile(`(?i)apache|nginx`), "Linux (Web Server)"},
	{regexp.MustCompile(`(?i)lighttpd`), "Embedded Linux (Web Server)"},
	{regexp.MustCompile(`(?i)openssh`), "Linux/Unix"},
	{regexp.MustCompile(`(?i)ubuntu|debian|centos`), "Linux"},
}

// bannerPorts are the ports we are willing to probe, in preference order.
// At most two are probed per host.
var bannerPorts = []int{22, 80, 8080}

// Fingerprinter runs the two-tier OS heuristic. The dialer is injectable
// for tests.
type Fingerprinter struct {
	Timeout time.Duration

	dial func(ctx context.Context, addr string) (net.Conn, error)
}

// New returns a Fingerprinter with the given per-connection timeout; a
// non-positive timeout falls back to DefaultTimeout.
func New(timeout time.Duration) *Fingerprinter {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	f := &Fingerprinter{Timeout: timeout}
	f.dial = func(ctx context.Context, addr string) (net.Conn, error) {
		d := net.Dialer{Timeout: f.Timeout}
		return d.DialContext(ctx, "tcp", addr)
	}
	return f
}

// Hint returns the best-effort OS/role hint for a host, or "" when nothing
// matched. Banner failures are silently ignored; the port-profile result
// stands.
func (f *Fingerprinter) Hint(ctx context.Context, ip string, openPorts []int) string {
	have := make(map[int]bool, len(openPorts))
	for _, p := range openPorts {
		have[p] = true
	}

	hint := profileHint(have)

	probed := 0
	for _, port := range bannerPorts {
		if probed >= 2 {
			break
		}
		if !have[port] {
			continue
		}
		probed++

		banner, err := f.grabBanner(ctx, ip, port)
		if err != nil {
			log.Debug().Err(err).Str("ip", ip).Int("port", port).Msg("banner grab failed")
			continue
		}
		if bannerHint := matchBanner(banner); bannerHint != "" {
			return bannerHint
		}
	}
	return hint
}

func profileHint(have map[int]bool) string {
	for _, profile := range portProfiles {
		matched := true
		for _, p := range profile.ports {
			if !have[p] {
				matched = false
				break
			}
		}
		if matched {
			return profile.hint
		}
	}
	return ""
}

func matchBanner(banner string) string {
	if banner == "" {
		return ""
	}
	for _, bp := range bannerPatterns {
		if bp.re.MatchString(banner) {
			return bp.hint
		}
	}
	return ""
}

// grabBanner connects, sends a protocol-appropriate probe and reads up to
// bannerBufferSize bytes within the timeout.
func (f *Fingerprinter) grabBanner(ctx context.Context, ip string, port int) (string, error) {
	conn, err := f.dial(ctx, net.JoinHostPort(ip, fmt.Sprintf("%d", port)))
	if err != nil {
		return "", err
	}
	defer conn.Close()

	deadline := time.Now().Add(f.Timeout)
	if err := conn.SetDeadline(deadline); err != nil {
		return "", err
	}

	var probe string
	switch port {
	case 80, 8080:
		probe = "HEAD / HTTP/1.0\r\nHost: " + ip + "\r\n\r\n"
	default:
		// SSH and most line-oriented services volunteer a banner; a bare
		// CRLF nudges the quiet ones.
		probe = "\r\n"
	}
	if _, err := conn.Write([]byte(probe)); err != nil {
		return "", err
	}

	buf := make([]byte, bannerBufferSize)
	n, err := conn.Read(buf)
	if n == 0 && err != nil {
		return "", err
	}
	return strings.TrimSpace(string(buf[:n])), nil
}
