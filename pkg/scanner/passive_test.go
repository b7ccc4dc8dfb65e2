package scanner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bsdARPOutput = `router.lan (192.168.1.1) at 0:1e:bd:aa:bb:cc on en0 ifscope [ethernet]
? (192.168.1.50) at a4:14:37:0:11:22 on en0 ifscope [ethernet]
? (192.168.1.99) at (incomplete) on en0 ifscope [ethernet]
? (192.168.1.255) at ff:ff:ff:ff:ff:ff on en0 ifscope [ethernet]
? (224.0.0.251) at 1:0:5e:0:0:fb on en0 ifscope permanent [ethernet]
`

const procNetARPOutput = `IP address       HW type     Flags       HW address            Mask     Device
192.168.1.1      0x1         0x2         00:1e:bd:aa:bb:cc     *        eth0
192.168.1.60     0x1         0x2         b8:27:eb:11:22:33     *        eth0
192.168.1.70     0x1         0x0         00:00:00:00:00:00     *        eth0
`

func newTestPassive(arpOut, procOut string) *PassiveScanner {
	s := NewPassiveScanner()
	s.arpCommand = func(ctx context.Context) ([]byte, error) {
		if arpOut == "" {
			return nil, errors.New("arp: not found")
		}
		return []byte(arpOut), nil
	}
	s.procNetARP = func() ([]byte, error) {
		if procOut == "" {
			return nil, errors.New("no /proc/net/arp")
		}
		return []byte(procOut), nil
	}
	s.lookupAddr = func(ctx context.Context, ip string) ([]string, error) {
		if ip == "192.168.1.50" {
			return []string{"lobby-cam-01.lan."}, nil
		}
		return nil, errors.New("nxdomain")
	}
	return s
}

func TestPassiveDiscoverBSD(t *testing.T) {
	s := newTestPassive(bsdARPOutput, "")
	assets := s.Discover(context.Background(), []string{"192.168.1.0/24"})

	require.Len(t, assets, 2) // incomplete, broadcast and out-of-range multicast dropped
	assert.Equal(t, "192.168.1.1", assets[0].IP)
	assert.Equal(t, "00:1e:bd:aa:bb:cc", assets[0].MAC)
	assert.Equal(t, "router.lan", assets[0].Hostname)
	assert.Equal(t, "arp_table", assets[0].RawEvidence["source"])

	// Missing hostname filled via reverse PTR, trailing dot stripped.
	assert.Equal(t, "lobby-cam-01.lan", assets[1].Hostname)
}

func TestPassiveDiscoverProcNetARP(t *testing.T) {
	s := newTestPassive("", procNetARPOutput)
	assets := s.Discover(context.Background(), nil)

	require.Len(t, assets, 2) // all-zero MAC row dropped
	assert.Equal(t, "proc_net_arp", assets[0].RawEvidence["source"])
}

func TestPassiveDiscoverDeduplicatesByMAC(t *testing.T) {
	// Same MAC in both sources: keep the first occurrence.
	s := newTestPassive(bsdARPOutput, procNetARPOutput)
	assets := s.Discover(context.Background(), nil)

	macs := make(map[string]int)
	for _, a := range assets {
		macs[a.MAC]++
	}
	assert.Equal(t, 1, macs["00:1e:bd:aa:bb:cc"])
}

func TestPassiveDiscoverTargetFilter(t *testing.T) {
	s := newTestPassive(bsdARPOutput, "")
	assets := s.Discover(context.Background(), []string{"10.0.0.0/8"})
	assert.Empty(t, assets)
}

func TestBuildTargetFilter(t *testing.T) {
	f := buildTargetFilter([]string{"192.168.1.0/24", "10.0.0.5"})
	require.NotNil(t, f)
	assert.True(t, f("192.168.1.77"))
	assert.True(t, f("10.0.0.5"))
	assert.False(t, f("10.0.0.6"))
	assert.False(t, f("bogus"))

	assert.Nil(t, buildTargetFilter(nil))
	assert.Nil(t, buildTargetFilter([]string{"", "not a cidr"}))
}
