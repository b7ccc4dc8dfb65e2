package scanner

import (
	"context"
	"net"
	"net/netip"
	"os"
	"time"

	"github.com/mdlayher/arp"
	"github.com/rs/zerolog/log"

	"github.com/bigrlabs/bigr-discovery/pkg/model"
	"github.com/bigrlabs/bigr-discovery/pkg/netutil"
)

// DefaultSweepWindow is how long replies are collected after the last
// request goes out.
const DefaultSweepWindow = 3 * time.Second

// CanSweep reports whether an ARP sweep is likely to work: raw packet
// sockets need root (or CAP_NET_RAW).
func CanSweep() bool {
	return os.Geteuid() == 0
}

// ARPSweep emits ARP who-has requests for every host in the CIDR on the
// matching local interface and collects replies for the window. Privilege
// or interface problems degrade to an empty result, never an error: the
// caller falls back to passive discovery.
func ARPSweep(ctx context.Context, cidr string, window time.Duration) []model.Asset {
	if window <= 0 {
		window = DefaultSweepWindow
	}

	ifi, err := interfaceForCIDR(cidr)
	if err != nil {
		log.Debug().Err(err).Str("cidr", cidr).Msg("no local interface for ARP sweep")
		return nil
	}

	client, err := arp.Dial(ifi)
	if err != nil {
		log.Debug().Err(err).Str("iface", ifi.Name).Msg("ARP socket unavailable, skipping sweep")
		return nil
	}
	defer client.Close()

	hosts, err := netutil.ExpandTarget(cidr)
	if err != nil {
		log.Debug().Err(err).Str("cidr", cidr).Msg("ARP sweep target expansion failed")
		return nil
	}

	for _, host := range hosts {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		addr, err := netip.ParseAddr(host)
		if err != nil {
			continue
		}
		if err := client.Request(addr); err != nil {
			log.Debug().Err(err).Str("ip", host).Msg("ARP request failed")
		}
	}

	deadline := time.Now().Add(window)
	_ = client.SetReadDeadline(deadline)

	seen := make(map[string]bool)
	var assets []model.Asset
	for time.Now().Before(deadline) {
		pkt, _, err := client.Read()
		if err != nil {
			break // deadline or socket error ends collection
		}
		if pkt.Operation != arp.OperationReply {
			continue
		}
		mac := netutil.NormalizeMAC(pkt.SenderHardwareAddr.String())
		if mac == "" || seen[mac] {
			continue
		}
		seen[mac] = true

		asset := model.Asset{
			IP:         pkt.SenderIP.String(),
			MAC:        mac,
			ScanMethod: model.MethodActive,
			Category:   model.CategoryUnclassified,
		}
		asset.Evidence("source", "arp_sweep")
		assets = append(assets, asset)
	}

	log.Debug().Int("assets", len(assets)).Str("cidr", cidr).Msg("ARP sweep complete")
	return assets
}

// interfaceForCIDR finds the up, non-loopback interface holding an address
// inside the target network.
func interfaceForCIDR(cidr string) (*net.Interface, error) {
	_, target, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, err
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	for i := range ifaces {
		ifi := &ifaces[i]
		if ifi.Flags&net.FlagUp == 0 || ifi.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := ifi.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok || ipNet.IP.To4() == nil {
				continue
			}
			if target.Contains(ipNet.IP) {
				return ifi, nil
			}
		}
	}
	return nil, &net.AddrError{Err: "no interface in network", Addr: cidr}
}
