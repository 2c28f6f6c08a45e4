package scanner

import (
	"encoding/xml"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/RustySnipers/optio/models"
)

// nmaprun mirrors the subset of nmap's XML output we consume.
type nmaprun struct {
	Scanner  string    `xml:"scanner,attr"`
	Args     string    `xml:"args,attr"`
	Version  string    `xml:"version,attr"`
	StartStr string    `xml:"startstr,attr"`
	Hosts    []xmlHost `xml:"host"`
	RunStats *struct {
		Finished *struct {
			TimeStr string `xml:"timestr,attr"`
		} `xml:"finished"`
		Hosts *struct {
			Up int `xml:"up,attr"`
		} `xml:"hosts"`
	} `xml:"runstats"`
}

type xmlHost struct {
	Status struct {
		State string `xml:"state,attr"`
	} `xml:"status"`
	Addresses []struct {
		Addr     string `xml:"addr,attr"`
		AddrType string `xml:"addrtype,attr"`
		Vendor   string `xml:"vendor,attr"`
	} `xml:"address"`
	Hostnames struct {
		Hostnames []struct {
			Name string `xml:"name,attr"`
		} `xml:"hostname"`
	} `xml:"hostnames"`
	Ports struct {
		Ports []xmlPort `xml:"port"`
	} `xml:"ports"`
	OS struct {
		Matches []struct {
			Name     string `xml:"name,attr"`
			Accuracy string `xml:"accuracy,attr"`
			Classes  []struct {
				OsFamily string `xml:"osfamily,attr"`
				OsGen    string `xml:"osgen,attr"`
				Type     string `xml:"type,attr"`
			} `xml:"osclass"`
		} `xml:"osmatch"`
	} `xml:"os"`
}

type xmlPort struct {
	Protocol string `xml:"protocol,attr"`
	PortID   int    `xml:"portid,attr"`
	State    struct {
		State string `xml:"state,attr"`
	} `xml:"state"`
	Service struct {
		Name      string `xml:"name,attr"`
		Product   string `xml:"product,attr"`
		Version   string `xml:"version,attr"`
		ExtraInfo string `xml:"extrainfo,attr"`
	} `xml:"service"`
}

const truncationWarning = "probe output was truncated; results may be incomplete"

// ParseResults converts raw nmap XML into structured scan results. It
// is tolerant of truncated output: a killed or crashed probe still
// yields whatever hosts were fully written, with a warning attached,
// rather than losing the entire run.
func ParseResults(scanID string, rawXML string) models.ScanResults {
	results := models.ScanResults{
		ScanID: scanID,
		Hosts:  []models.DiscoveredHost{},
	}

	var run nmaprun
	if err := xml.Unmarshal([]byte(rawXML), &run); err != nil {
		repaired, ok := repairTruncatedXML(rawXML)
		if !ok || xml.Unmarshal([]byte(repaired), &run) != nil {
			log.Warn().Str("scan_id", scanID).Err(err).Msg("Probe output unparseable")
			results.Warnings = append(results.Warnings, truncationWarning)
			return results
		}
		log.Warn().Str("scan_id", scanID).Msg("Recovered partial results from truncated probe output")
		results.Warnings = append(results.Warnings, truncationWarning)
	}

	results.NmapVersion = run.Version
	results.CommandLine = run.Args
	results.StartTime = run.StartStr
	if run.RunStats != nil && run.RunStats.Finished != nil {
		results.EndTime = run.RunStats.Finished.TimeStr
	}

	for _, h := range run.Hosts {
		results.Hosts = append(results.Hosts, convertHost(h))
	}

	if run.RunStats != nil && run.RunStats.Hosts != nil {
		results.HostsUp = run.RunStats.Hosts.Up
	} else {
		for _, h := range results.Hosts {
			if h.Status == "up" {
				results.HostsUp++
			}
		}
	}

	return results
}

// repairTruncatedXML cuts the document back to the last complete host
// element and closes the root, so a mid-write kill loses only the host
// being written.
func repairTruncatedXML(raw string) (string, bool) {
	idx := strings.LastIndex(raw, "</host>")
	if idx < 0 {
		return "", false
	}
	return raw[:idx+len("</host>")] + "</nmaprun>", true
}

func convertHost(h xmlHost) models.DiscoveredHost {
	host := models.DiscoveredHost{
		Status: h.Status.State,
		Ports:  []models.DiscoveredPort{},
	}

	for _, addr := range h.Addresses {
		switch addr.AddrType {
		case "ipv4", "ipv6":
			host.IPAddress = addr.Addr
		case "mac":
			host.MACAddress = strings.ToUpper(addr.Addr)
			host.Vendor = addr.Vendor
		}
	}

	if len(h.Hostnames.Hostnames) > 0 {
		host.Hostname = h.Hostnames.Hostnames[0].Name
	}

	for _, p := range h.Ports.Ports {
		state, ok := portState(p.State.State)
		if !ok {
			log.Debug().Int("port", p.PortID).Str("state", p.State.State).Msg("Dropping port with unknown state")
			continue
		}
		host.Ports = append(host.Ports, models.DiscoveredPort{
			Port:      p.PortID,
			Protocol:  models.Protocol(p.Protocol),
			State:     state,
			Service:   p.Service.Name,
			Product:   p.Service.Product,
			Version:   p.Service.Version,
			ExtraInfo: p.Service.ExtraInfo,
		})
	}

	for _, m := range h.OS.Matches {
		accuracy, _ := strconv.Atoi(m.Accuracy)
		match := models.OsMatch{
			Name:     m.Name,
			Accuracy: accuracy,
		}
		if len(m.Classes) > 0 {
			match.OsFamily = m.Classes[0].OsFamily
			match.OsGen = m.Classes[0].OsGen
			match.DeviceType = m.Classes[0].Type
		}
		host.OsMatches = append(host.OsMatches, match)
	}
	sort.SliceStable(host.OsMatches, func(i, j int) bool {
		return host.OsMatches[i].Accuracy > host.OsMatches[j].Accuracy
	})

	return host
}

// portState maps nmap's reported state onto the six-way model. Unknown
// states are dropped rather than guessed.
func portState(s string) (models.PortState, bool) {
	switch models.PortState(s) {
	case models.PortOpen, models.PortClosed, models.PortFiltered,
		models.PortUnfiltered, models.PortOpenFiltered, models.PortClosedFiltered:
		return models.PortState(s), true
	}
	return "", false
}
