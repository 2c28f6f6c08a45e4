package scanner

import (
	"os"
	"os/exec"
	"strings"

	"github.com/RustySnipers/optio/models"
)

// profile describes one scan-type preset: probe arguments, catalog
// metadata, and whether raw sockets (root) are needed.
type profile struct {
	args         []string
	name         string
	description  string
	duration     string
	requiresRoot bool
}

var profiles = map[models.ScanType]profile{
	models.ScanTypePingSweep: {
		args:        []string{"-sn", "-PE", "-PP", "-PM"},
		name:        "Ping Sweep",
		description: "Fast host discovery using ICMP echo, timestamp, and netmask requests",
		duration:    "Fast (1-5 min)",
	},
	models.ScanTypeQuick: {
		args:         []string{"-sS", "-T4", "--top-ports", "100"},
		name:         "Quick Scan",
		description:  "TCP SYN scan of top 100 most common ports",
		duration:     "Fast (2-10 min)",
		requiresRoot: true,
	},
	models.ScanTypeStandard: {
		args:         []string{"-sS", "-sV", "-T4"},
		name:         "Standard Scan",
		description:  "TCP SYN scan with service version detection on top 1000 ports",
		duration:     "Medium (5-30 min)",
		requiresRoot: true,
	},
	models.ScanTypeFull: {
		args:         []string{"-sS", "-p-", "-T4"},
		name:         "Full Port Scan",
		description:  "Complete TCP scan of all 65,535 ports",
		duration:     "Slow (30-120 min)",
		requiresRoot: true,
	},
	models.ScanTypeService: {
		args:         []string{"-sS", "-sV", "-sC", "-T4"},
		name:         "Service Detection",
		description:  "Service version detection with default NSE scripts",
		duration:     "Medium (10-45 min)",
		requiresRoot: true,
	},
	models.ScanTypeOsDetection: {
		args:         []string{"-sS", "-O", "-T4"},
		name:         "OS Detection",
		description:  "Operating system fingerprinting using TCP/IP stack analysis",
		duration:     "Medium (5-20 min)",
		requiresRoot: true,
	},
	models.ScanTypeVulnerability: {
		args:         []string{"-sS", "-sV", "--script=vuln", "-T4"},
		name:         "Vulnerability Scan",
		description:  "Vulnerability detection using NSE vuln scripts",
		duration:     "Slow (30-90 min)",
		requiresRoot: true,
	},
	models.ScanTypeUdp: {
		args:         []string{"-sU", "--top-ports", "100", "-T4"},
		name:         "UDP Scan",
		description:  "UDP scan of top 100 common UDP ports",
		duration:     "Slow (15-60 min)",
		requiresRoot: true,
	},
	models.ScanTypeCustom: {
		name:        "Custom Scan",
		description: "Custom scan with user-defined Nmap options",
		duration:    "Variable",
	},
}

// catalog order for the scan-type listing endpoint
var scanTypeOrder = []models.ScanType{
	models.ScanTypePingSweep,
	models.ScanTypeQuick,
	models.ScanTypeStandard,
	models.ScanTypeFull,
	models.ScanTypeService,
	models.ScanTypeOsDetection,
	models.ScanTypeVulnerability,
	models.ScanTypeUdp,
	models.ScanTypeCustom,
}

// KnownScanType reports whether t has a profile
func KnownScanType(t models.ScanType) bool {
	_, ok := profiles[t]
	return ok
}

// RequiresRoot reports whether the scan type needs raw sockets
func RequiresRoot(t models.ScanType) bool {
	return profiles[t].requiresRoot
}

// HasRawSocketPrivilege reports whether this process can run raw-socket
// scan profiles
func HasRawSocketPrivilege() bool {
	return os.Geteuid() == 0
}

// BuildArgs assembles the probe argument vector for a scan
// configuration. The command is always executed as an argv array, never
// a shell string.
func BuildArgs(config models.ScanConfig) []string {
	var args []string

	if config.ScanType == models.ScanTypeCustom {
		args = append(args, strings.Fields(config.CustomArgs)...)
	} else {
		args = append(args, profiles[config.ScanType].args...)
	}

	if config.Aggressive && !hasTimingFlag(args) {
		args = append(args, "-T5")
	}
	if config.SkipDiscovery {
		args = append(args, "-Pn")
	}
	if config.Ports != "" {
		args = append(args, "-p", config.Ports)
	}
	if len(config.ExcludeTargets) > 0 {
		args = append(args, "--exclude", strings.Join(config.ExcludeTargets, ","))
	}

	// XML on stdout for the parser
	args = append(args, "-oX", "-")
	args = append(args, config.Targets...)

	return args
}

// PreviewCommand renders the exact probe invocation for operator review
// before anything runs with elevated privileges
func PreviewCommand(binary string, config models.ScanConfig) string {
	parts := append([]string{binary}, BuildArgs(config)...)
	return strings.Join(parts, " ")
}

func hasTimingFlag(args []string) bool {
	for _, a := range args {
		if strings.HasPrefix(a, "-T") {
			return true
		}
	}
	return false
}

// ScanTypes returns the scan-type catalog
func ScanTypes() []models.ScanTypeInfo {
	infos := make([]models.ScanTypeInfo, 0, len(scanTypeOrder))
	for _, t := range scanTypeOrder {
		p := profiles[t]
		infos = append(infos, models.ScanTypeInfo{
			ScanType:     t,
			Name:         p.name,
			Description:  p.description,
			Duration:     p.duration,
			RequiresRoot: p.requiresRoot,
		})
	}
	return infos
}

// CheckNmap probes for the nmap binary and reports its version
func CheckNmap(binary string) models.NmapInfo {
	path, err := exec.LookPath(binary)
	if err != nil {
		return models.NmapInfo{Installed: false}
	}

	out, err := exec.Command(path, "--version").Output()
	if err != nil {
		return models.NmapInfo{Installed: false, Path: path}
	}

	return models.NmapInfo{
		Installed: true,
		Version:   parseNmapVersion(string(out)),
		Path:      path,
	}
}

// parseNmapVersion extracts "7.94" from "Nmap version 7.94 ( https://nmap.org )"
func parseNmapVersion(output string) string {
	line := output
	if idx := strings.IndexByte(output, '\n'); idx >= 0 {
		line = output[:idx]
	}
	if !strings.HasPrefix(line, "Nmap version") {
		return ""
	}
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return ""
	}
	return fields[2]
}

// CommonPorts returns the well-known port reference list
func CommonPorts() []models.CommonPort {
	return []models.CommonPort{
		{Port: 21, Service: "FTP", Description: "File Transfer Protocol"},
		{Port: 22, Service: "SSH", Description: "Secure Shell"},
		{Port: 23, Service: "Telnet", Description: "Telnet (insecure)"},
		{Port: 25, Service: "SMTP", Description: "Simple Mail Transfer Protocol"},
		{Port: 53, Service: "DNS", Description: "Domain Name System"},
		{Port: 80, Service: "HTTP", Description: "Hypertext Transfer Protocol"},
		{Port: 110, Service: "POP3", Description: "Post Office Protocol v3"},
		{Port: 135, Service: "MSRPC", Description: "Microsoft RPC"},
		{Port: 139, Service: "NetBIOS", Description: "NetBIOS Session Service"},
		{Port: 143, Service: "IMAP", Description: "Internet Message Access Protocol"},
		{Port: 443, Service: "HTTPS", Description: "HTTP Secure"},
		{Port: 445, Service: "SMB", Description: "Server Message Block"},
		{Port: 993, Service: "IMAPS", Description: "IMAP over SSL"},
		{Port: 995, Service: "POP3S", Description: "POP3 over SSL"},
		{Port: 1433, Service: "MSSQL", Description: "Microsoft SQL Server"},
		{Port: 1521, Service: "Oracle", Description: "Oracle Database"},
		{Port: 3306, Service: "MySQL", Description: "MySQL Database"},
		{Port: 3389, Service: "RDP", Description: "Remote Desktop Protocol"},
		{Port: 5432, Service: "PostgreSQL", Description: "PostgreSQL Database"},
		{Port: 5900, Service: "VNC", Description: "Virtual Network Computing"},
		{Port: 6379, Service: "Redis", Description: "Redis Database"},
		{Port: 8080, Service: "HTTP-Alt", Description: "HTTP Alternative"},
		{Port: 8443, Service: "HTTPS-Alt", Description: "HTTPS Alternative"},
		{Port: 27017, Service: "MongoDB", Description: "MongoDB Database"},
	}
}
