package models

import "time"

// AssetCategory classifies what kind of device an asset is.
type AssetCategory string

const (
	CategoryServer         AssetCategory = "server"
	CategoryWorkstation    AssetCategory = "workstation"
	CategoryNetworkDevice  AssetCategory = "network_device"
	CategorySecurityDevice AssetCategory = "security_device"
	CategoryPrinter        AssetCategory = "printer"
	CategoryIoT            AssetCategory = "iot"
	CategoryMobile         AssetCategory = "mobile"
	CategoryVirtual        AssetCategory = "virtual"
	CategoryCloud          AssetCategory = "cloud"
	CategoryUnknown        AssetCategory = "unknown"
)

// Criticality is operator-assigned business impact. New assets always
// start at informational; the engine never guesses criticality.
type Criticality string

const (
	CriticalityCritical      Criticality = "critical"
	CriticalityHigh          Criticality = "high"
	CriticalityMedium        Criticality = "medium"
	CriticalityLow           Criticality = "low"
	CriticalityInformational Criticality = "informational"
)

// AssetStatus is the lifecycle state of an asset.
type AssetStatus string

const (
	AssetActive         AssetStatus = "active"
	AssetInactive       AssetStatus = "inactive"
	AssetDecommissioned AssetStatus = "decommissioned"
	AssetPending        AssetStatus = "pending"
	AssetMaintenance    AssetStatus = "maintenance"
)

// Asset is the durable record of a network-reachable host, scoped to a
// client engagement. Identity is (clientId, ipAddress); MAC is a
// secondary correlation key when IPs churn.
type Asset struct {
	ID              string         `json:"id"`
	ClientID        string         `json:"clientId"`
	Name            string         `json:"name"`
	IPAddress       string         `json:"ipAddress"`
	MACAddress      string         `json:"macAddress,omitempty"`
	Category        AssetCategory  `json:"category"`
	OperatingSystem string         `json:"operatingSystem,omitempty"`
	Criticality     Criticality    `json:"criticality"`
	Status          AssetStatus    `json:"status"`
	Location        string         `json:"location,omitempty"`
	Owner           string         `json:"owner,omitempty"`
	Description     string         `json:"description,omitempty"`
	Services        []AssetService `json:"services"`
	Tags            []string       `json:"tags"`
	FirstSeen       time.Time      `json:"firstSeen"`
	LastSeen        time.Time      `json:"lastSeen"`
	ScanIDs         []string       `json:"scanIds"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// AssetService is one observed service on an asset, keyed by
// (port, protocol) within the asset's service list.
type AssetService struct {
	Port     int       `json:"port"`
	Protocol Protocol  `json:"protocol"`
	Name     string    `json:"name"`
	Version  string    `json:"version,omitempty"`
	State    PortState `json:"state"`
}

// AssetGroup is a named, user-curated set of assets within one client.
type AssetGroup struct {
	ID          string    `json:"id"`
	ClientID    string    `json:"clientId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	AssetIDs    []string  `json:"assetIds"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// NetworkStats aggregates the inventory for a client dashboard.
type NetworkStats struct {
	TotalAssets   int                `json:"totalAssets"`
	ActiveAssets  int                `json:"activeAssets"`
	TotalScans    int                `json:"totalScans"`
	ByCategory    []CategoryCount    `json:"byCategory"`
	ByCriticality []CriticalityCount `json:"byCriticality"`
	TopServices   []ServiceCount     `json:"topServices"`
	RecentScans   []ScanSummary      `json:"recentScans"`
}

type CategoryCount struct {
	Category AssetCategory `json:"category"`
	Count    int           `json:"count"`
}

type CriticalityCount struct {
	Criticality Criticality `json:"criticality"`
	Count       int         `json:"count"`
}

type ServiceCount struct {
	Service string `json:"service"`
	Port    int    `json:"port"`
	Count   int    `json:"count"`
}

type ScanSummary struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	ScanType    ScanType   `json:"scanType"`
	Status      ScanStatus `json:"status"`
	HostsFound  int        `json:"hostsFound"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}
