package scanner

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanPortsFindsOpenPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()
	openPort := ln.Addr().(*net.TCPAddr).Port

	s := NewActiveScanner(500*time.Millisecond, 10)
	// Probe the live port plus ports that are almost certainly closed.
	got := s.ScanPorts(context.Background(), "127.0.0.1", []int{openPort, openPort, 1})

	assert.Equal(t, []int{openPort}, got)
}

func TestScanPortsEmptyList(t *testing.T) {
	s := NewActiveScanner(0, 0)
	assert.Equal(t, DefaultPortTimeout, s.Timeout)
	assert.Equal(t, DefaultWorkers, s.Workers)
	assert.Nil(t, s.ScanPorts(context.Background(), "127.0.0.1", nil))
}

func TestScanPortsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewActiveScanner(100*time.Millisecond, 4)
	got := s.ScanPorts(ctx, "10.255.255.1", []int{80, 443})
	assert.Empty(t, got)
}

func TestDedupe(t *testing.T) {
	assert.Equal(t, []int{22, 80}, dedupe([]int{22, 22, 80}))
	assert.Empty(t, dedupe(nil))
}

func TestDefaultPortsSortedUnique(t *testing.T) {
	seen := make(map[int]bool)
	last := 0
	for _, p := range DefaultPorts {
		assert.Greater(t, p, last, "DefaultPorts must be ascending")
		assert.False(t, seen[p])
		seen[p] = true
		last = p
	}
}
