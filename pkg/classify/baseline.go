package classify

import (
	"github.com/bigrlabs/bigr-discovery/pkg/model"
	"github.com/bigrlabs/bigr-discovery/pkg/rules"
)

// baselineSet is the built-in ruleset used whenever a rule family is empty.
// It mirrors the spirit of the shipped YAML rules so classification stays
// useful with no rules directory at all.
var baselineSet = func() *rules.Set {
	s := &rules.Set{}

	s.Port = []rules.Rule{
		{
			Name: "snmp-managed-device", Description: "SNMP agent listening",
			PortsIncludeAny: []int{161, 162},
			Scores:          map[model.Category]float64{model.CategoryNetworkSystems: 0.4},
		},
		{
			Name: "telnet-mgmt", Description: "telnet management port",
			PortsIncludeAny: []int{23},
			Scores:          map[model.Category]float64{model.CategoryNetworkSystems: 0.3},
		},
		{
			Name: "windows-host", Description: "SMB and RDP together",
			PortsIncludeAll: []int{445, 3389},
			Scores:          map[model.Category]float64{model.CategoryApplications: 0.5},
		},
		{
			Name: "smb-fileshare", Description: "SMB/NetBIOS file sharing",
			PortsIncludeAny: []int{445, 139},
			PortsExclude:    []int{3389},
			Scores:          map[model.Category]float64{model.CategoryApplications: 0.3},
		},
		{
			Name: "web-service", Description: "HTTP(S) service",
			PortsIncludeAny: []int{80, 443, 8080, 8443},
			Scores:          map[model.Category]float64{model.CategoryApplications: 0.4},
		},
		{
			Name: "database-server", Description: "SQL database port",
			PortsIncludeAny: []int{3306, 5432, 1433},
			Scores:          map[model.Category]float64{model.CategoryApplications: 0.5},
		},
		{
			Name: "rtsp-camera", Description: "RTSP video stream",
			PortsIncludeAny: []int{554, 8554},
			Scores:          map[model.Category]float64{model.CategoryIoT: 0.5},
		},
		{
			Name: "network-printer", Description: "JetDirect/IPP/LPD printing",
			PortsIncludeAny: []int{9100, 631, 515},
			Scores:          map[model.Category]float64{model.CategoryIoT: 0.5},
		},
		{
			Name: "mqtt-broker", Description: "MQTT broker or device",
			PortsIncludeAny: []int{1883, 8883},
			Scores:          map[model.Category]float64{model.CategoryIoT: 0.5},
		},
		{
			Name: "cast-device", Description: "Google Cast control port",
			PortsIncludeAny: []int{8008, 8009},
			Scores:          map[model.Category]float64{model.CategoryIoT: 0.4},
		},
		{
			Name: "afp-share", Description: "Apple Filing Protocol",
			PortsIncludeAny: []int{548},
			Scores:          map[model.Category]float64{model.CategoryPortable: 0.3},
		},
	}

	s.Hostname = []rules.Rule{
		{
			Name: "network-gear-name", Description: "switch/router/firewall naming",
			HostnamePattern: `(^|[-_.])(sw|switch|rtr|router|gw|fw|ap)([-_.0-9]|$)`,
			Scores:          map[model.Category]float64{model.CategoryNetworkSystems: 0.5},
		},
		{
			Name: "camera-name", Description: "camera/NVR naming",
			HostnamePattern: `(^|[-_.])(cam|ipc|nvr|dvr)([-_.0-9]|$)`,
			Scores:          map[model.Category]float64{model.CategoryIoT: 0.4},
		},
		{
			Name: "printer-name", Description: "printer naming",
			HostnamePattern: `(^|[-_.])(prn|printer|print)([-_.0-9]|$)`,
			Scores:          map[model.Category]float64{model.CategoryIoT: 0.4},
		},
		{
			Name: "server-name", Description: "server/database naming",
			HostnamePattern: `(^|[-_.])(srv|server|db|app|web)([-_.0-9]|$)`,
			Scores:          map[model.Category]float64{model.CategoryApplications: 0.4},
		},
		{
			Name: "personal-device-name", Description: "phone/laptop naming",
			HostnamePattern: `iphone|ipad|android|macbook|laptop|pixel|galaxy`,
			Scores:          map[model.Category]float64{model.CategoryPortable: 0.5},
		},
	}

	s.Service = []rules.Rule{
		{
			Name: "media-cast-service", Description: "cast/airplay/sonos advertisement",
			ServiceTypeContains: []string{"_googlecast", "_airplay", "_raop", "_sonos", "_spotify-connect"},
			Scores:              map[model.Category]float64{model.CategoryIoT: 0.4},
		},
		{
			Name: "homekit-service", Description: "HomeKit accessory protocol",
			ServiceTypeContains: []string{"_hap"},
			Scores:              map[model.Category]float64{model.CategoryIoT: 0.5},
		},
		{
			Name: "print-service", Description: "IPP/printer advertisement",
			ServiceTypeContains: []string{"_ipp", "_printer", "_pdl-datastream"},
			Scores:              map[model.Category]float64{model.CategoryIoT: 0.4},
		},
		{
			Name: "smb-service", Description: "SMB file sharing advertisement",
			ServiceTypeContains: []string{"_smb"},
			Scores:              map[model.Category]float64{model.CategoryApplications: 0.2},
		},
		{
			Name: "companion-service", Description: "Apple companion-link (phone/tablet)",
			ServiceTypeContains: []string{"_companion-link"},
			Scores:              map[model.Category]float64{model.CategoryPortable: 0.4},
		},
	}

	// Vendor family stays empty: the OUI keyword hint table covers the
	// baseline vendor signal.

	for i := range s.Hostname {
		if err := rules.Prepare(&s.Hostname[i]); err != nil {
			panic(err) // built-in patterns are fixed at compile time
		}
	}
	return s
}()

// osHintScores maps OS-hint keywords to category deltas, checked with
// case-insensitive substring matching, first match wins.
var osHintScores = []struct {
	keyword  string
	category model.Category
	delta    float64
}{
	{"camera", model.CategoryIoT, 0.4},
	{"printer", model.CategoryIoT, 0.4},
	{"print server", model.CategoryIoT, 0.4},
	{"iot", model.CategoryIoT, 0.4},
	{"embedded", model.CategoryIoT, 0.3},
	{"routeros", model.CategoryNetworkSystems, 0.5},
	{"network device", model.CategoryNetworkSystems, 0.4},
	{"windows", model.CategoryApplications, 0.3},
	{"web server", model.CategoryApplications, 0.3},
	{"linux", model.CategoryApplications, 0.2},
	{"macos", model.CategoryPortable, 0.3},
}
