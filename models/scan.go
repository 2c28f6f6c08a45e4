package models

import "time"

// ScanType selects the probe profile for a scan: port depth, discovery
// method, timing, and whether raw sockets (root) are needed.
type ScanType string

const (
	ScanTypePingSweep     ScanType = "ping_sweep"
	ScanTypeQuick         ScanType = "quick_scan"
	ScanTypeStandard      ScanType = "standard_scan"
	ScanTypeFull          ScanType = "full_scan"
	ScanTypeService       ScanType = "service_detection"
	ScanTypeOsDetection   ScanType = "os_detection"
	ScanTypeVulnerability ScanType = "vulnerability_scan"
	ScanTypeUdp           ScanType = "udp_scan"
	ScanTypeCustom        ScanType = "custom"
)

// ScanStatus is the lifecycle state of a scan job. Transitions are
// monotonic: queued -> running -> completed | failed | cancelled.
type ScanStatus string

const (
	ScanQueued    ScanStatus = "queued"
	ScanRunning   ScanStatus = "running"
	ScanCompleted ScanStatus = "completed"
	ScanFailed    ScanStatus = "failed"
	ScanCancelled ScanStatus = "cancelled"
)

// Terminal reports whether no further transitions are allowed from s.
func (s ScanStatus) Terminal() bool {
	switch s {
	case ScanCompleted, ScanFailed, ScanCancelled:
		return true
	}
	return false
}

// PortState preserves nmap's six-way port state. Downstream risk
// assessment depends on distinguishing confirmed from ambiguous states,
// so this is never collapsed to a boolean.
type PortState string

const (
	PortOpen           PortState = "open"
	PortClosed         PortState = "closed"
	PortFiltered       PortState = "filtered"
	PortUnfiltered     PortState = "unfiltered"
	PortOpenFiltered   PortState = "open|filtered"
	PortClosedFiltered PortState = "closed|filtered"
)

// Protocol is the transport protocol of a discovered port.
type Protocol string

const (
	ProtocolTCP  Protocol = "tcp"
	ProtocolUDP  Protocol = "udp"
	ProtocolSCTP Protocol = "sctp"
)

// ScanConfig is the full probe configuration attached to a ScanJob.
type ScanConfig struct {
	Targets        []string `json:"targets"`
	ScanType       ScanType `json:"scanType"`
	CustomArgs     string   `json:"customArgs,omitempty"`
	Ports          string   `json:"ports,omitempty"`
	ExcludeTargets []string `json:"excludeTargets,omitempty"`
	Aggressive     bool     `json:"aggressive"`
	SkipDiscovery  bool     `json:"skipDiscovery"`
}

// ScanJob is a single scan request and its lifecycle record.
type ScanJob struct {
	ID          string     `json:"id"`
	ClientID    string     `json:"clientId"`
	Name        string     `json:"name"`
	Config      ScanConfig `json:"config"`
	Status      ScanStatus `json:"status"`
	Progress    int        `json:"progress"`
	Error       string     `json:"error,omitempty"`
	RawOutput   string     `json:"rawOutput,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// ScanResults holds the structured output parsed from one probe run.
type ScanResults struct {
	ScanID       string           `json:"scanId"`
	Hosts        []DiscoveredHost `json:"hosts"`
	HostsUp      int              `json:"hostsUp"`
	NmapVersion  string           `json:"nmapVersion,omitempty"`
	CommandLine  string           `json:"commandLine,omitempty"`
	StartTime    string           `json:"startTime,omitempty"`
	EndTime      string           `json:"endTime,omitempty"`
	Warnings     []string         `json:"warnings,omitempty"`
}

// DiscoveredHost is scan-scoped: produced fresh per probe run and fed
// to the asset reconciler, never persisted itself.
type DiscoveredHost struct {
	IPAddress  string           `json:"ipAddress"`
	MACAddress string           `json:"macAddress,omitempty"`
	Hostname   string           `json:"hostname,omitempty"`
	Vendor     string           `json:"vendor,omitempty"`
	Status     string           `json:"status"`
	Ports      []DiscoveredPort `json:"ports"`
	OsMatches  []OsMatch        `json:"osMatches"`
}

// DiscoveredPort is a single observed port on a host.
type DiscoveredPort struct {
	Port      int       `json:"port"`
	Protocol  Protocol  `json:"protocol"`
	State     PortState `json:"state"`
	Service   string    `json:"service,omitempty"`
	Product   string    `json:"product,omitempty"`
	Version   string    `json:"version,omitempty"`
	ExtraInfo string    `json:"extraInfo,omitempty"`
}

// OsMatch is one OS fingerprint guess. Matches are ordered by accuracy
// descending as reported by the probe.
type OsMatch struct {
	Name       string `json:"name"`
	Accuracy   int    `json:"accuracy"`
	OsFamily   string `json:"osFamily,omitempty"`
	OsGen      string `json:"osGen,omitempty"`
	DeviceType string `json:"deviceType,omitempty"`
}

// TargetValidation is the structured result of target parsing. It is
// always returned, never an error, so the UI can show field feedback.
type TargetValidation struct {
	Valid      bool   `json:"valid"`
	TargetType string `json:"targetType,omitempty"`
	Normalized string `json:"normalized,omitempty"`
	Error      string `json:"error,omitempty"`
}

// ScanTypeInfo describes one scan profile for the catalog endpoint.
type ScanTypeInfo struct {
	ScanType     ScanType `json:"scanType"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Duration     string   `json:"duration"`
	RequiresRoot bool     `json:"requiresRoot"`
}

// NmapInfo reports whether the probe tool is available.
type NmapInfo struct {
	Installed bool   `json:"installed"`
	Version   string `json:"version,omitempty"`
	Path      string `json:"path,omitempty"`
}

// CommonPort is a reference entry for the well-known port list.
type CommonPort struct {
	Port        int    `json:"port"`
	Service     string `json:"service"`
	Description string `json:"description"`
}
