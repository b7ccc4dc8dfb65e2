package scanner

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/rs/zerolog/log"

	"github.com/bigrlabs/bigr-discovery/pkg/model"
)

// DefaultMDNSWindow is how long the multicast listener collects
// advertisements.
const DefaultMDNSWindow = 8 * time.Second

// mdnsServiceTypes is the fixed set of service types we browse. zeroconf
// wants them without the "local." suffix.
var mdnsServiceTypes = []string{
	"_http._tcp",
	"_https._tcp",
	"_ipp._tcp",
	"_ipps._tcp",
	"_printer._tcp",
	"_pdl-datastream._tcp",
	"_googlecast._tcp",
	"_airplay._tcp",
	"_raop._tcp",
	"_smb._tcp",
	"_ssh._tcp",
	"_sftp-ssh._tcp",
	"_rtsp._tcp",
	"_hap._tcp",
	"_companion-link._tcp",
	"_spotify-connect._tcp",
	"_sonos._tcp",
	"_workstation._tcp",
}

// MDNSListener browses multicast DNS for the fixed service-type set within
// a bounded window.
type MDNSListener struct {
	Window time.Duration

	// browse is injectable for tests; the default uses zeroconf.
	browse func(ctx context.Context, serviceType string, entries chan<- *zeroconf.ServiceEntry) error
}

// NewMDNSListener returns a listener with the given window; non-positive
// windows fall back to DefaultMDNSWindow.
func NewMDNSListener(window time.Duration) *MDNSListener {
	if window <= 0 {
		window = DefaultMDNSWindow
	}
	return &MDNSListener{
		Window: window,
		browse: func(ctx context.Context, serviceType string, entries chan<- *zeroconf.ServiceEntry) error {
			resolver, err := zeroconf.NewResolver(nil)
			if err != nil {
				return err
			}
			return resolver.Browse(ctx, serviceType, "local.", entries)
		},
	}
}

// Listen browses all service types concurrently for the window and returns
// the deduplicated advertisements. Listener failures are non-fatal; an
// empty slice is returned.
func (l *MDNSListener) Listen(ctx context.Context) []model.MDNSService {
	browseCtx, cancel := context.WithTimeout(ctx, l.Window)
	defer cancel()

	var (
		mu       sync.Mutex
		services []model.MDNSService
		seen     = make(map[string]bool)
		wg       sync.WaitGroup
	)

	for _, serviceType := range mdnsServiceTypes {
		wg.Add(1)
		go func(st string) {
			defer wg.Done()

			entries := make(chan *zeroconf.ServiceEntry, 16)
			collectorDone := make(chan struct{})
			go func() {
				defer close(collectorDone)
				for entry := range entries {
					svc, ok := entryToService(entry)
					if !ok {
						continue
					}
					key := svc.Name + "|" + svc.ServiceType + "|" + svc.IP
					mu.Lock()
					if !seen[key] {
						seen[key] = true
						services = append(services, svc)
					}
					mu.Unlock()
				}
			}()

			if err := l.browse(browseCtx, st, entries); err != nil {
				log.Debug().Err(err).Str("service", st).Msg("mDNS browse failed")
				close(entries)
			}
			// zeroconf closes the channel itself when browsing ends; when
			// browse errored we closed it above.
			<-collectorDone
		}(serviceType)
	}

	wg.Wait()
	log.Debug().Int("services", len(services)).Msg("mDNS window closed")
	return services
}

// entryToService converts a zeroconf entry into our model, decoding TXT
// key=value pairs.
func entryToService(entry *zeroconf.ServiceEntry) (model.MDNSService, bool) {
	if entry == nil || len(entry.AddrIPv4) == 0 {
		return model.MDNSService{}, false
	}

	svc := model.MDNSService{
		Name:        entry.Instance,
		ServiceType: entry.Service + "." + strings.TrimSuffix(entry.Domain, ".") + ".",
		IP:          entry.AddrIPv4[0].String(),
		Port:        entry.Port,
		Hostname:    strings.TrimSuffix(entry.HostName, "."),
	}
	if len(entry.Text) > 0 {
		svc.Properties = make(map[string]string, len(entry.Text))
		for _, txt := range entry.Text {
			if k, v, found := strings.Cut(txt, "="); found && k != "" {
				svc.Properties[k] = v
			}
		}
	}
	return svc, true
}

// AttachServices joins mDNS advertisements onto assets by IP. Assets
// lacking a hostname adopt the first advertised one, and the service types
// are recorded as classifier evidence.
func AttachServices(assets []model.Asset, services []model.MDNSService) {
	if len(services) == 0 {
		return
	}
	byIP := make(map[string][]model.MDNSService)
	for _, svc := range services {
		byIP[svc.IP] = append(byIP[svc.IP], svc)
	}

	for i := range assets {
		matched := byIP[assets[i].IP]
		if len(matched) == 0 {
			continue
		}
		assets[i].MDNSServices = append(assets[i].MDNSServices, matched...)

		types := make([]string, 0, len(matched))
		for _, svc := range matched {
			types = append(types, svc.ServiceType)
			if assets[i].Hostname == "" && svc.Hostname != "" {
				assets[i].Hostname = svc.Hostname
			}
		}
		assets[i].Evidence("mdns_services", strings.Join(types, ","))
	}
}
