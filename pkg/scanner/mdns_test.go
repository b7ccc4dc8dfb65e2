package scanner

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigrlabs/bigr-discovery/pkg/model"
)

func TestEntryToService(t *testing.T) {
	entry := &zeroconf.ServiceEntry{
		ServiceRecord: zeroconf.ServiceRecord{
			Instance: "Living Room TV",
			Service:  "_googlecast._tcp",
			Domain:   "local.",
		},
		HostName: "chromecast-1234.local.",
		Port:     8009,
		Text:     []string{"md=Chromecast", "ve=05", "notakv"},
		AddrIPv4: []net.IP{net.ParseIP("192.168.1.42")},
	}

	svc, ok := entryToService(entry)
	require.True(t, ok)
	assert.Equal(t, "Living Room TV", svc.Name)
	assert.Equal(t, "_googlecast._tcp.local.", svc.ServiceType)
	assert.Equal(t, "192.168.1.42", svc.IP)
	assert.Equal(t, 8009, svc.Port)
	assert.Equal(t, "chromecast-1234.local", svc.Hostname)
	assert.Equal(t, "Chromecast", svc.Properties["md"])
	_, hasGarbage := svc.Properties["notakv"]
	assert.False(t, hasGarbage)
}

func TestEntryToServiceNoAddress(t *testing.T) {
	_, ok := entryToService(&zeroconf.ServiceEntry{})
	assert.False(t, ok)
	_, ok = entryToService(nil)
	assert.False(t, ok)
}

func TestListenBrowseFailureNonFatal(t *testing.T) {
	l := NewMDNSListener(50 * time.Millisecond)
	l.browse = func(ctx context.Context, serviceType string, entries chan<- *zeroconf.ServiceEntry) error {
		return errors.New("no multicast route")
	}
	services := l.Listen(context.Background())
	assert.Empty(t, services)
}

func TestListenCollectsAndDeduplicates(t *testing.T) {
	l := NewMDNSListener(100 * time.Millisecond)
	l.browse = func(ctx context.Context, serviceType string, entries chan<- *zeroconf.ServiceEntry) error {
		go func() {
			defer close(entries)
			if serviceType != "_googlecast._tcp" {
				return
			}
			for i := 0; i < 2; i++ { // duplicate advertisement
				entries <- &zeroconf.ServiceEntry{
					ServiceRecord: zeroconf.ServiceRecord{
						Instance: "TV",
						Service:  "_googlecast._tcp",
						Domain:   "local.",
					},
					Port:     8009,
					AddrIPv4: []net.IP{net.ParseIP("192.168.1.42")},
				}
			}
		}()
		return nil
	}

	services := l.Listen(context.Background())
	require.Len(t, services, 1)
	assert.Equal(t, "TV", services[0].Name)
}

func TestAttachServices(t *testing.T) {
	assets := []model.Asset{
		{IP: "192.168.1.42"},
		{IP: "192.168.1.50", Hostname: "keep-me"},
		{IP: "192.168.1.99"},
	}
	services := []model.MDNSService{
		{Name: "TV", ServiceType: "_googlecast._tcp.local.", IP: "192.168.1.42", Hostname: "chromecast-1234.local"},
		{Name: "TV-audio", ServiceType: "_raop._tcp.local.", IP: "192.168.1.42"},
		{Name: "Cam", ServiceType: "_rtsp._tcp.local.", IP: "192.168.1.50", Hostname: "other-name"},
	}

	AttachServices(assets, services)

	require.Len(t, assets[0].MDNSServices, 2)
	assert.Equal(t, "chromecast-1234.local", assets[0].Hostname)
	assert.Equal(t, "_googlecast._tcp.local.,_raop._tcp.local.", assets[0].RawEvidence["mdns_services"])

	// Existing hostname preserved.
	assert.Equal(t, "keep-me", assets[1].Hostname)
	assert.Len(t, assets[1].MDNSServices, 1)

	assert.Empty(t, assets[2].MDNSServices)
	AttachServices(assets, nil) // no-op
}
