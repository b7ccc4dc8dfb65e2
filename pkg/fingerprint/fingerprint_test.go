package fingerprint

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileHint(t *testing.T) {
	tests := []struct {
		name  string
		ports []int
		want  string
	}{
		{"windows rdp+smb", []int{445, 3389}, "Windows"},
		{"printer", []int{9100}, "Printer"},
		{"camera", []int{80, 554}, "IP Camera"},
		{"network device", []int{22, 23, 161}, "Network Device"},
		{"linux ssh only", []int{22}, "Linux/Unix"},
		{"nothing", []int{12345}, ""},
		{"empty", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			have := make(map[int]bool)
			for _, p := range tt.ports {
				have[p] = true
			}
			assert.Equal(t, tt.want, profileHint(have))
		})
	}
}

func TestMatchBanner(t *testing.T) {
	tests := []struct {
		banner string
		want   string
	}{
		{"HTTP/1.0 200 OK\r\nServer: nginx/1.24.0", "Linux (Web Server)"},
		{"HTTP/1.1 200 OK\r\nServer: Microsoft-IIS/10.0", "Windows"},
		{"SSH-2.0-OpenSSH_9.6", "Linux/Unix"},
		{"SSH-2.0-dropbear_2022.83", "Embedded Linux"},
		{"Server: Boa/0.94.14rc21", "Embedded Device"},
		{"no match here", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchBanner(tt.banner), "banner %q", tt.banner)
	}
}

// bannerServer listens on loopback and writes payload to every connection.
func bannerServer(t *testing.T, payload string) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				_, _ = c.Write([]byte(payload))
				time.Sleep(50 * time.Millisecond)
			}(conn)
		}
	}()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestHintBannerOverridesProfile(t *testing.T) {
	port := bannerServer(t, "SSH-2.0-OpenSSH_9.6 Ubuntu-3ubuntu13\r\n")

	f := New(1 * time.Second)
	// Redirect probes for port 22 at the test listener.
	f.dial = func(ctx context.Context, addr string) (net.Conn, error) {
		d := net.Dialer{Timeout: f.Timeout}
		return d.DialContext(ctx, "tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	}

	hint := f.Hint(context.Background(), "127.0.0.1", []int{22, 161})
	// Port profile alone says "Network Device"; the SSH banner is more
	// specific and wins.
	assert.Equal(t, "Linux/Unix", hint)
}

func TestHintBannerFailureKeepsProfile(t *testing.T) {
	f := New(100 * time.Millisecond)
	f.dial = func(ctx context.Context, addr string) (net.Conn, error) {
		return nil, context.DeadlineExceeded
	}

	hint := f.Hint(context.Background(), "10.255.255.1", []int{22, 161})
	assert.Equal(t, "Network Device", hint)
}

func TestHintNoOpenPorts(t *testing.T) {
	f := New(0)
	assert.Equal(t, DefaultTimeout, f.Timeout)
	assert.Equal(t, "", f.Hint(context.Background(), "10.0.0.1", nil))
}
