package inventory

import (
	"strings"

	"github.com/RustySnipers/optio/models"
)

var serverPorts = []int{22, 80, 443, 3306, 5432, 1433, 1521, 27017, 6379, 8080, 8443}

// Telnet, SNMP, SNMP trap, BGP, NETCONF
var networkDevicePorts = []int{23, 161, 162, 179, 830}

// LPD, IPP, JetDirect
var printerPorts = []int{515, 631, 9100}

// InferCategory guesses an asset category from discovery signals:
// device type and OS family from fingerprinting, MAC vendor, then
// open-port heuristics. Only used when creating a new asset; existing
// categorization is operator territory and never overwritten.
func InferCategory(host models.DiscoveredHost) models.AssetCategory {
	if len(host.OsMatches) > 0 {
		match := host.OsMatches[0]
		osName := strings.ToLower(match.Name)

		deviceType := strings.ToLower(match.DeviceType)
		switch {
		case strings.Contains(deviceType, "router"), strings.Contains(deviceType, "switch"):
			return models.CategoryNetworkDevice
		case strings.Contains(deviceType, "firewall"):
			return models.CategorySecurityDevice
		case strings.Contains(deviceType, "printer"):
			return models.CategoryPrinter
		case strings.Contains(deviceType, "phone"), strings.Contains(deviceType, "mobile"):
			return models.CategoryMobile
		}

		switch {
		case strings.Contains(osName, "windows server"):
			return models.CategoryServer
		case strings.Contains(osName, "windows"):
			return models.CategoryWorkstation
		case strings.Contains(osName, "linux"), strings.Contains(osName, "ubuntu"), strings.Contains(osName, "centos"):
			if hasOpenPort(host.Ports, serverPorts) {
				return models.CategoryServer
			}
		case strings.Contains(osName, "esxi"), strings.Contains(osName, "vmware"):
			return models.CategoryVirtual
		case strings.Contains(osName, "ios"), strings.Contains(osName, "android"):
			return models.CategoryMobile
		}
	}

	vendor := strings.ToLower(host.Vendor)
	switch {
	case strings.Contains(vendor, "cisco"), strings.Contains(vendor, "juniper"),
		strings.Contains(vendor, "arista"), strings.Contains(vendor, "netgear"):
		return models.CategoryNetworkDevice
	case strings.Contains(vendor, "hp") && strings.Contains(vendor, "printer"):
		return models.CategoryPrinter
	case strings.Contains(vendor, "vmware"):
		return models.CategoryVirtual
	}

	switch {
	case hasOpenPort(host.Ports, serverPorts):
		return models.CategoryServer
	case hasOpenPort(host.Ports, networkDevicePorts):
		return models.CategoryNetworkDevice
	case hasOpenPort(host.Ports, printerPorts):
		return models.CategoryPrinter
	}

	return models.CategoryUnknown
}

func hasOpenPort(ports []models.DiscoveredPort, candidates []int) bool {
	for _, p := range ports {
		if p.State != models.PortOpen {
			continue
		}
		for _, c := range candidates {
			if p.Port == c {
				return true
			}
		}
	}
	return false
}
