package scanner

import (
	"net"
	"regexp"
	"strconv"
	"strings"

	"github.com/RustySnipers/optio/models"
)

var targetHostnamePattern = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9\-]*[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9\-]*[a-zA-Z0-9])?)*$`)

// ValidateTarget turns a free-text target string into a structured
// verdict. It always returns a TargetValidation, never an error, so the
// UI can show field feedback for bad input.
func ValidateTarget(target string) models.TargetValidation {
	target = strings.TrimSpace(target)

	if target == "" {
		return invalidTarget("Target cannot be empty")
	}

	// CIDR notation
	if strings.Contains(target, "/") {
		parts := strings.Split(target, "/")
		if len(parts) == 2 {
			prefix, err := strconv.Atoi(parts[1])
			if err == nil && prefix >= 0 && prefix <= 32 && isDottedQuad(parts[0]) {
				return models.TargetValidation{Valid: true, TargetType: "CIDR", Normalized: target}
			}
		}
		return invalidTarget("Invalid CIDR notation")
	}

	// Octet range like 192.168.1.1-100
	if strings.Contains(target, "-") && !strings.Contains(target, ":") && isOctetRange(target) {
		return models.TargetValidation{Valid: true, TargetType: "IP Range", Normalized: target}
	}

	// Plain IPv4, with optional * wildcard octets
	if isDottedQuad(target) {
		return models.TargetValidation{Valid: true, TargetType: "IPv4", Normalized: target}
	}

	// IPv6
	if strings.Contains(target, ":") {
		if net.ParseIP(target) != nil {
			return models.TargetValidation{Valid: true, TargetType: "IPv6", Normalized: target}
		}
		return invalidTarget("Invalid IPv6 address")
	}

	// Hostname; resolution is deferred to probe time. A numeric final
	// label means a malformed IP, not a hostname.
	if len(target) <= 253 && targetHostnamePattern.MatchString(target) && !numericLastLabel(target) {
		return models.TargetValidation{Valid: true, TargetType: "Hostname", Normalized: target}
	}

	return invalidTarget("Invalid target format")
}

func numericLastLabel(s string) bool {
	labels := strings.Split(s, ".")
	_, err := strconv.Atoi(labels[len(labels)-1])
	return err == nil
}

func invalidTarget(msg string) models.TargetValidation {
	return models.TargetValidation{Valid: false, Error: msg}
}

// isDottedQuad accepts four dot-separated octets where each octet is a
// number 0-255 or the * wildcard
func isDottedQuad(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return false
	}
	for _, part := range parts {
		if part == "*" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > 255 || (len(part) > 1 && part[0] == '0') {
			return false
		}
	}
	return true
}

// isOctetRange accepts the nmap octet-range form, e.g. 192.168.1.1-100
func isOctetRange(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return false
	}
	for _, part := range parts {
		for _, bound := range strings.Split(part, "-") {
			n, err := strconv.Atoi(bound)
			if err != nil || n < 0 || n > 255 {
				return false
			}
		}
	}
	return true
}
