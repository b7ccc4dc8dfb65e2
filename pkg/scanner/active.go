package scanner

import (
	"context"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-ping/ping"
	"github.com/rs/zerolog/log"
)

// Defaults for the connect scan.
const (
	DefaultPortTimeout = 2 * time.Second
	DefaultWorkers     = 20
)

// DefaultPorts is the standard probe list: remote access, web, file and
// database services, SNMP, and the usual printer/camera/IoT suspects.
var DefaultPorts = []int{
	21, 22, 23, 53, 80, 81, 88, 139, 161, 443, 445,
	515, 548, 554, 631, 1433, 1883, 1900, 3306, 3389,
	5000, 5353, 5432, 5900, 8000, 8008, 8009, 8080,
	8081, 8443, 8888, 9100,
}

// ActiveScanner performs TCP connect scans with a bounded worker pool and
// an optional unprivileged ICMP liveness pre-probe.
type ActiveScanner struct {
	Timeout time.Duration
	Workers int

	dial func(ctx context.Context, addr string, timeout time.Duration) (net.Conn, error)
}

// NewActiveScanner returns a scanner with the given per-port timeout and
// worker count; non-positive values fall back to the defaults.
func NewActiveScanner(timeout time.Duration, workers int) *ActiveScanner {
	if timeout <= 0 {
		timeout = DefaultPortTimeout
	}
	if workers < 1 {
		workers = DefaultWorkers
	}
	return &ActiveScanner{
		Timeout: timeout,
		Workers: workers,
		dial: func(ctx context.Context, addr string, timeout time.Duration) (net.Conn, error) {
			d := net.Dialer{Timeout: timeout}
			return d.DialContext(ctx, "tcp", addr)
		},
	}
}

// ScanPorts connect-scans the given ports on one host and returns the
// ascending deduplicated list of ports that accepted a connection.
func (s *ActiveScanner) ScanPorts(ctx context.Context, ip string, ports []int) []int {
	if len(ports) == 0 {
		return nil
	}

	var (
		mu   sync.Mutex
		open []int
		wg   sync.WaitGroup
	)
	sem := make(chan struct{}, s.Workers)

	for _, port := range ports {
		select {
		case <-ctx.Done():
			wg.Wait()
			sort.Ints(open)
			return dedupe(open)
		default:
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(p int) {
			defer wg.Done()
			defer func() { <-sem }()

			addr := net.JoinHostPort(ip, strconv.Itoa(p))
			conn, err := s.dial(ctx, addr, s.Timeout)
			if err != nil {
				return
			}
			conn.Close()

			mu.Lock()
			open = append(open, p)
			mu.Unlock()
		}(port)
	}

	wg.Wait()
	sort.Ints(open)
	return dedupe(open)
}

func dedupe(sorted []int) []int {
	if len(sorted) == 0 {
		return sorted
	}
	out := sorted[:1]
	for _, p := range sorted[1:] {
		if p != out[len(out)-1] {
			out = append(out, p)
		}
	}
	return out
}

// IsAlive sends a single unprivileged ICMP echo to the host. It is a cheap
// pre-filter only: any failure reports the host as alive so the connect
// scan still runs.
func (s *ActiveScanner) IsAlive(ctx context.Context, ip string, timeout time.Duration) bool {
	pinger, err := ping.NewPinger(ip)
	if err != nil {
		return true
	}
	pinger.Count = 1
	pinger.Timeout = timeout
	pinger.SetPrivileged(false)

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			pinger.Stop()
		case <-done:
		}
	}()

	err = pinger.Run()
	close(done)
	if err != nil {
		log.Debug().Err(err).Str("ip", ip).Msg("icmp probe failed, scanning anyway")
		return true
	}
	return pinger.Statistics().PacketsRecv > 0
}

// PingSweep probes a host list with unprivileged ICMP echoes and returns
// the subset that answered. Used as the discovery fallback when an ARP
// sweep is not possible. Here strict semantics apply: no reply means not
// listed.
func (s *ActiveScanner) PingSweep(ctx context.Context, ips []string, timeout time.Duration) []string {
	if timeout <= 0 {
		timeout = 1 * time.Second
	}

	var (
		mu    sync.Mutex
		alive []string
		wg    sync.WaitGroup
	)
	sem := make(chan struct{}, s.Workers)

	for _, ip := range ips {
		select {
		case <-ctx.Done():
			wg.Wait()
			sort.Strings(alive)
			return alive
		default:
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(host string) {
			defer wg.Done()
			defer func() { <-sem }()

			pinger, err := ping.NewPinger(host)
			if err != nil {
				return
			}
			pinger.Count = 1
			pinger.Timeout = timeout
			pinger.SetPrivileged(false)
			if err := pinger.Run(); err != nil {
				return
			}
			if pinger.Statistics().PacketsRecv > 0 {
				mu.Lock()
				alive = append(alive, host)
				mu.Unlock()
			}
		}(ip)
	}

	wg.Wait()
	sort.Strings(alive)
	return alive
}
