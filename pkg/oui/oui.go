// Package oui maps MAC address prefixes to vendor names and vendor names to
// BİGR category hints.
package oui

import (
	"encoding/csv"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/bigrlabs/bigr-discovery/pkg/model"
	"github.com/bigrlabs/bigr-discovery/pkg/netutil"
)

// wellKnown is the compiled-in prefix table. It must be good enough on its
// own to drive classification when no IEEE CSV is available.
var wellKnown = map[string]string{
	"00:1e:bd": "Cisco Systems",
	"00:0c:29": "VMware, Inc.",
	"00:50:56": "VMware, Inc.",
	"00:1c:14": "VMware, Inc.",
	"08:00:27": "Oracle VirtualBox",
	"52:54:00": "QEMU/KVM",
	"00:15:5d": "Microsoft Hyper-V",
	"00:1b:21": "Intel Corporate",
	"3c:fd:fe": "Intel Corporate",
	"a4:14:37": "Hangzhou Hikvision Digital Technology",
	"28:57:be": "Hangzhou Hikvision Digital Technology",
	"c0:56:e3": "Hangzhou Hikvision Digital Technology",
	"00:80:f0": "Panasonic",
	"9c:8e:cd": "Amcrest Technologies",
	"3c:ef:8c": "Zhejiang Dahua Technology",
	"00:1f:54": "Lorex Technology",
	"b8:27:eb": "Raspberry Pi Foundation",
	"dc:a6:32": "Raspberry Pi Trading",
	"e4:5f:01": "Raspberry Pi Trading",
	"28:cd:c1": "Raspberry Pi Trading",
	"18:fe:34": "Espressif",
	"24:0a:c4": "Espressif",
	"30:ae:a4": "Espressif",
	"a0:20:a6": "Espressif",
	"5c:cf:7f": "Espressif",
	"84:f3:eb": "Espressif",
	"ec:fa:bc": "Espressif",
	"b4:e6:2d": "Espressif",
	"00:17:88": "Philips Lighting (Hue)",
	"ec:b5:fa": "Philips Lighting",
	"00:0e:58": "Sonos",
	"5c:aa:fd": "Sonos",
	"94:9f:3e": "Sonos",
	"48:a6:b8": "Sonos",
	"18:b4:30": "Nest Labs",
	"64:16:66": "Nest Labs",
	"d8:eb:46": "Google (Nest)",
	"f4:f5:d8": "Google",
	"54:60:09": "Google",
	"30:fd:38": "Google",
	"44:07:0b": "Google",
	"f0:ef:86": "Google",
	"fc:a1:83": "Amazon Technologies",
	"74:c2:46": "Amazon Technologies",
	"f0:27:2d": "Amazon Technologies",
	"40:b4:cd": "Amazon Technologies",
	"0c:47:c9": "Amazon Technologies",
	"68:37:e9": "Amazon Technologies",
	"b4:7c:9c": "Amazon Technologies",
	"ac:63:be": "Amazon Technologies",
	"00:fc:8b": "Amazon Technologies",
	"00:71:47": "Amazon Technologies",
	"3c:22:fb": "Apple, Inc.",
	"a8:20:66": "Apple, Inc.",
	"f0:18:98": "Apple, Inc.",
	"f4:d4:88": "Apple, Inc.",
	"bc:d0:74": "Apple, Inc.",
	"28:cf:e9": "Apple, Inc.",
	"d0:81:7a": "Apple, Inc.",
	"ac:bc:32": "Apple, Inc.",
	"98:01:a7": "Apple, Inc.",
	"b8:e8:56": "Apple, Inc.",
	"60:03:08": "Apple, Inc.",
	"34:36:3b": "Apple, Inc.",
	"00:16:6c": "Samsung Electronics",
	"8c:77:12": "Samsung Electronics",
	"e8:50:8b": "Samsung Electronics",
	"5c:0a:5b": "Samsung Electronics",
	"78:1f:db": "Samsung Electronics",
	"fc:03:9f": "Samsung Electronics",
	"84:25:db": "Samsung Electronics",
	"94:35:0a": "Samsung Electronics",
	"bc:76:5e": "Xiaomi Communications",
	"64:09:80": "Xiaomi Communications",
	"f8:a4:5f": "Xiaomi Communications",
	"28:6c:07": "Xiaomi Communications",
	"78:11:dc": "Xiaomi Communications",
	"ac:f7:f3": "Xiaomi Communications",
	"00:9e:c8": "Xiaomi Communications",
	"04:cf:8c": "Xiaomi Communications",
	"a4:77:33": "Huawei Technologies",
	"00:e0:fc": "Huawei Technologies",
	"48:ad:15": "Huawei Technologies",
	"00:1a:a9": "Fujian Star-net Communication",
	"00:09:0f": "Fortinet",
	"00:1b:17": "Palo Alto Networks",
	"00:1c:7f": "Check Point Software",
	"00:06:5b": "Dell",
	"18:a9:9b": "Dell",
	"f8:bc:12": "Dell",
	"b0:83:fe": "Dell",
	"00:14:22": "Dell",
	"d4:ae:52": "Dell",
	"00:17:a4": "Hewlett Packard",
	"9c:8e:99": "Hewlett Packard",
	"94:57:a5": "Hewlett Packard",
	"3c:d9:2b": "Hewlett Packard",
	"28:92:4a": "Hewlett Packard Enterprise",
	"94:18:82": "Hewlett Packard Enterprise",
	"00:21:5a": "Hewlett Packard",
	"00:00:48": "Seiko Epson",
	"00:26:ab": "Seiko Epson",
	"ac:18:26": "Seiko Epson",
	"00:80:77": "Brother Industries",
	"30:05:5c": "Brother Industries",
	"00:1e:8f": "Canon",
	"00:bb:c1": "Canon",
	"2c:9e:fc": "Canon",
	"00:17:c8": "Kyocera",
	"00:20:6b": "Konica Minolta",
	"00:25:36": "Oki Electric",
	"08:00:37": "Fuji Xerox",
	"00:26:73": "Ricoh",
	"58:38:79": "Ricoh",
	"00:15:99": "Samsung Electronics (Printer)",
	"30:cd:a7": "Samsung Electronics (Printer)",
	"00:1f:29": "Hewlett Packard (Printer)",
	"ec:8e:b5": "Hewlett Packard (Printer)",
	"00:1d:7e": "Cisco-Linksys",
	"c0:c1:c0": "Cisco-Linksys",
	"58:6d:8f": "Cisco-Linksys",
	"00:18:39": "Cisco-Linksys",
	"14:91:82": "Belkin International",
	"94:10:3e": "Belkin International",
	"b4:75:0e": "Belkin International",
	"ec:1a:59": "Belkin International",
	"c0:25:e9": "TP-Link Technologies",
	"50:c7:bf": "TP-Link Technologies",
	"ac:84:c6": "TP-Link Technologies",
	"18:d6:c7": "TP-Link Technologies",
	"f4:f2:6d": "TP-Link Technologies",
	"b0:be:76": "TP-Link Technologies",
	"00:1f:33": "Netgear",
	"a0:40:a0": "Netgear",
	"e0:46:9a": "Netgear",
	"c0:3f:0e": "Netgear",
	"20:e5:2a": "Netgear",
	"84:1b:5e": "Netgear",
	"c4:04:15": "Netgear",
	"00:18:e7": "Cameo Communications (D-Link)",
	"00:22:b0": "D-Link",
	"1c:7e:e5": "D-Link",
	"84:c9:b2": "D-Link",
	"00:50:ba": "D-Link",
	"fc:75:16": "D-Link",
	"24:a4:3c": "Ubiquiti Networks",
	"dc:9f:db": "Ubiquiti Networks",
	"68:72:51": "Ubiquiti Networks",
	"78:8a:20": "Ubiquiti Networks",
	"b4:fb:e4": "Ubiquiti Networks",
	"74:83:c2": "Ubiquiti Networks",
	"fc:ec:da": "Ubiquiti Networks",
	"e0:63:da": "Ubiquiti Networks",
	"4c:5e:0c": "Routerboard (MikroTik)",
	"d4:ca:6d": "Routerboard (MikroTik)",
	"e4:8d:8c": "Routerboard (MikroTik)",
	"6c:3b:6b": "Routerboard (MikroTik)",
	"cc:2d:e0": "Routerboard (MikroTik)",
	"00:0c:42": "Routerboard (MikroTik)",
	"00:01:e6": "Hewlett Packard (JetDirect)",
	"00:04:96": "Extreme Networks",
	"00:19:07": "Cisco Systems",
	"00:23:04": "Cisco Systems",
	"58:97:1e": "Cisco Systems",
	"70:db:98": "Cisco Systems",
	"f8:66:f2": "Cisco Systems",
	"00:07:7d": "Cisco Systems",
	"2c:54:2d": "Cisco Systems",
	"00:26:99": "Cisco Systems",
	"00:12:80": "Cisco-Linksys",
	"00:1a:1e": "Aruba Networks",
	"24:de:c6": "Aruba Networks",
	"94:b4:0f": "Aruba Networks",
	"d8:c7:c8": "Aruba Networks",
	"00:0b:86": "Aruba Networks",
	"20:4c:03": "Aruba Networks",
	"00:1c:2e": "HPN Supply Chain (ProCurve)",
	"00:21:f7": "HP ProCurve",
	"78:ac:c0": "Hewlett Packard (ProCurve)",
	"00:24:a8": "Juniper Networks",
	"28:c0:da": "Juniper Networks",
	"3c:61:04": "Juniper Networks",
	"f8:c0:01": "Juniper Networks",
	"00:05:85": "Juniper Networks",
	"54:e0:32": "Juniper Networks",
	"00:90:a9": "Western Digital",
	"00:11:32": "Synology",
	"00:08:9b": "ICP Electronics (QNAP)",
	"24:5e:be": "QNAP Systems",
	"00:24:21": "Buffalo (NAS)",
	"34:97:f6": "ASUSTek Computer",
	"1c:87:2c": "ASUSTek Computer",
	"2c:56:dc": "ASUSTek Computer",
	"50:46:5d": "ASUSTek Computer",
	"04:d4:c4": "ASUSTek Computer",
	"00:26:37": "Samsung Electro-Mechanics",
	"00:12:fb": "Samsung Electronics",
	"e8:11:32": "Samsung Electronics",
	"00:07:ab": "Samsung Electronics",
	"8c:c8:cd": "Samsung Electronics",
	"b0:c5:59": "Samsung Electronics",
	"cc:6e:a4": "Samsung Electronics",
	"00:80:92": "Silex Technology",
	"00:40:8c": "Axis Communications",
	"ac:cc:8e": "Axis Communications",
	"b8:a4:4f": "Axis Communications",
	"00:30:53": "Basler",
	"00:0f:7c": "ACTi Corporation",
	"00:02:d1": "Vivotek",
	"00:ab:cd": "TVT Digital Technology",
	"bc:32:5f": "Zhejiang Dahua Technology",
	"00:12:12": "PLUS Corporation",
	"38:af:29": "Zhejiang Dahua Technology",
	"90:02:a9": "Zhejiang Dahua Technology",
	"fc:5f:49": "Zhejiang Dahua Technology",
	"00:18:ae": "TVT Digital Technology",
	"00:1c:bf": "Intel Corporate",
	"8c:a9:82": "Intel Corporate",
	"a4:bf:01": "Intel Corporate",
	"94:c6:91": "Intel Corporate",
	"48:51:b7": "Intel Corporate",
	"34:13:e8": "Intel Corporate",
	"f8:63:3f": "Intel Corporate",
	"00:03:47": "Intel Corporation",
	"00:d8:61": "Micro-Star International",
	"30:9c:23": "Micro-Star International",
	"4c:cc:6a": "Micro-Star International",
	"00:24:1d": "Giga-Byte Technology",
	"1c:1b:0d": "Giga-Byte Technology",
	"e0:d5:5e": "Giga-Byte Technology",
	"fc:aa:14": "Giga-Byte Technology",
	"b4:2e:99": "Giga-Byte Technology",
	"70:85:c2": "ASRock",
	"a8:a1:59": "ASRock",
	"bc:5f:f4": "ASRock",
}

// vendorHints maps case-insensitive vendor keywords to a category hint.
// Ordered from most to least specific so e.g. "HP (Printer)" lands on IoT
// before the generic "hewlett" rule fires.
var vendorHints = []struct {
	keyword  string
	category model.Category
}{
	{"hikvision", model.CategoryIoT},
	{"dahua", model.CategoryIoT},
	{"axis communications", model.CategoryIoT},
	{"vivotek", model.CategoryIoT},
	{"amcrest", model.CategoryIoT},
	{"lorex", model.CategoryIoT},
	{"tvt digital", model.CategoryIoT},
	{"espressif", model.CategoryIoT},
	{"philips lighting", model.CategoryIoT},
	{"sonos", model.CategoryIoT},
	{"nest", model.CategoryIoT},
	{"raspberry pi", model.CategoryIoT},
	{"printer", model.CategoryIoT},
	{"epson", model.CategoryIoT},
	{"brother", model.CategoryIoT},
	{"canon", model.CategoryIoT},
	{"kyocera", model.CategoryIoT},
	{"konica", model.CategoryIoT},
	{"ricoh", model.CategoryIoT},
	{"xerox", model.CategoryIoT},
	{"oki electric", model.CategoryIoT},
	{"amazon", model.CategoryIoT},
	{"belkin", model.CategoryIoT},
	{"cisco", model.CategoryNetworkSystems},
	{"juniper", model.CategoryNetworkSystems},
	{"aruba", model.CategoryNetworkSystems},
	{"mikrotik", model.CategoryNetworkSystems},
	{"routerboard", model.CategoryNetworkSystems},
	{"ubiquiti", model.CategoryNetworkSystems},
	{"fortinet", model.CategoryNetworkSystems},
	{"palo alto", model.CategoryNetworkSystems},
	{"check point", model.CategoryNetworkSystems},
	{"extreme networks", model.CategoryNetworkSystems},
	{"netgear", model.CategoryNetworkSystems},
	{"tp-link", model.CategoryNetworkSystems},
	{"d-link", model.CategoryNetworkSystems},
	{"procurve", model.CategoryNetworkSystems},
	{"vmware", model.CategoryApplications},
	{"virtualbox", model.CategoryApplications},
	{"qemu", model.CategoryApplications},
	{"hyper-v", model.CategoryApplications},
	{"synology", model.CategoryApplications},
	{"qnap", model.CategoryApplications},
	{"western digital", model.CategoryApplications},
	{"dell", model.CategoryApplications},
	{"supermicro", model.CategoryApplications},
	{"hewlett packard enterprise", model.CategoryApplications},
	{"apple", model.CategoryPortable},
	{"samsung", model.CategoryPortable},
	{"xiaomi", model.CategoryPortable},
	{"huawei", model.CategoryPortable},
	{"oneplus", model.CategoryPortable},
	{"lg electronics", model.CategoryPortable},
	{"motorola", model.CategoryPortable},
	{"google", model.CategoryPortable},
}

// Lookup resolves MAC prefixes to vendors. The zero value is not usable;
// construct with NewLookup.
type Lookup struct {
	csvPath string

	once     sync.Once
	external map[string]string
}

// NewLookup builds a Lookup. csvPath optionally points at an IEEE OUI CSV
// export; it is loaded lazily on first use and a load failure is non-fatal.
func NewLookup(csvPath string) *Lookup {
	return &Lookup{csvPath: csvPath}
}

// Vendor returns the vendor string for the MAC's OUI prefix, or "" when
// unknown. The well-known table wins over the CSV.
func (l *Lookup) Vendor(mac string) string {
	prefix := netutil.OUIPrefix(mac)
	if prefix == "" {
		return ""
	}
	if vendor, ok := wellKnown[prefix]; ok {
		return vendor
	}
	l.once.Do(l.loadCSV)
	return l.external[prefix]
}

// CategoryHint returns the category implied by a vendor string via
// case-insensitive substring matching, or "" when no keyword matches.
func CategoryHint(vendor string) model.Category {
	if vendor == "" {
		return ""
	}
	lower := strings.ToLower(vendor)
	for _, h := range vendorHints {
		if strings.Contains(lower, h.keyword) {
			return h.category
		}
	}
	return ""
}

// loadCSV reads an IEEE OUI CSV export (Registry,Assignment,Organization
// Name,...). Malformed rows are skipped; a missing file leaves the table
// empty.
func (l *Lookup) loadCSV() {
	l.external = make(map[string]string)
	if l.csvPath == "" {
		return
	}

	f, err := os.Open(l.csvPath)
	if err != nil {
		log.Debug().Err(err).Str("path", l.csvPath).Msg("OUI CSV unavailable, using built-in table only")
		return
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	loaded := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Debug().Err(err).Msg("skipping malformed OUI CSV row")
			continue
		}
		if len(record) < 3 {
			continue
		}
		assignment := strings.TrimSpace(record[1])
		if len(assignment) != 6 {
			continue // header row or MA-M/MA-S assignment
		}
		prefix := strings.ToLower(assignment[0:2] + ":" + assignment[2:4] + ":" + assignment[4:6])
		if vendor := strings.TrimSpace(record[2]); vendor != "" {
			l.external[prefix] = vendor
			loaded++
		}
	}
	log.Debug().Int("prefixes", loaded).Str("path", l.csvPath).Msg("loaded OUI CSV")
}
