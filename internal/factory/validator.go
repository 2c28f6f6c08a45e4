package factory

import (
	"fmt"
	"net"
	"regexp"
	"strings"

	"github.com/RustySnipers/optio/models"
)

const maxClientNameLength = 128

// ConfigValidator checks script generation input before rendering. Any
// value that will be interpolated into a script body is screened for
// characters that could break out of the intended quoting context;
// offending input is rejected, never silently rewritten.
type ConfigValidator struct {
	// Shell and PowerShell metacharacters: quotes, backticks, variable
	// expansion, command separators, redirection
	forbiddenPattern *regexp.Regexp
}

// NewConfigValidator creates a validator with the injection screens
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{
		forbiddenPattern: regexp.MustCompile("[;&|$<>\"'`\n\r\x00]"),
	}
}

// Validate checks a (clientName, targetSubnet, config) triple against
// the selected template's contract. Purely advisory: no side effects.
func (v *ConfigValidator) Validate(tmpl *models.Template, clientName, targetSubnet string, config models.ScriptConfigOptions) models.ValidationResult {
	errors := []string{}
	warnings := []string{}

	if strings.TrimSpace(clientName) == "" {
		errors = append(errors, "Client name is required")
	} else {
		if len(clientName) > maxClientNameLength {
			errors = append(errors, fmt.Sprintf("Client name exceeds %d characters", maxClientNameLength))
		}
		if err := v.checkInterpolationSafe("Client name", clientName); err != "" {
			errors = append(errors, err)
		}
	}

	if strings.TrimSpace(targetSubnet) == "" {
		errors = append(errors, "Target subnet is required")
	} else if !isValidSubnet(targetSubnet) {
		errors = append(errors, "Invalid subnet format. Expected format: 192.168.1.0/24")
	}

	if config.ConfigureDNS {
		if len(config.DNSServers) == 0 {
			errors = append(errors, "DNS servers must be specified when DNS configuration is enabled")
		} else {
			for _, server := range config.DNSServers {
				if !isValidIPv4(server) {
					errors = append(errors, fmt.Sprintf("Invalid DNS server IP: %s", server))
				}
			}
		}
	}

	if config.InstallAgent {
		if strings.TrimSpace(config.AgentInstaller) == "" {
			errors = append(errors, "Agent installer path/URL is required when agent installation is enabled")
		} else if err := v.checkInterpolationSafe("Agent installer", config.AgentInstaller); err != "" {
			errors = append(errors, err)
		}
	}

	if tmpl != nil {
		for _, missing := range missingRequiredVars(tmpl, clientName, targetSubnet, config) {
			errors = append(errors, fmt.Sprintf("Required variable %s has no value for template %s", missing, tmpl.Info.Name))
		}
	}

	if config.EnableWinRM {
		warnings = append(warnings, "WinRM enablement will modify Windows Remote Management settings")
	}
	if len(config.CustomCommands) > 0 {
		warnings = append(warnings, "Custom commands will be executed. Review them carefully before deployment.")
	}

	return models.ValidationResult{
		Valid:    len(errors) == 0,
		Errors:   errors,
		Warnings: warnings,
	}
}

// checkInterpolationSafe returns an error message when value contains a
// metacharacter, empty string otherwise
func (v *ConfigValidator) checkInterpolationSafe(field, value string) string {
	if loc := v.forbiddenPattern.FindString(value); loc != "" {
		return fmt.Sprintf("%s contains a forbidden character (%q)", field, loc)
	}
	return ""
}

// missingRequiredVars maps a template's declared required variables to
// the request fields that would fill them and reports any left empty.
// CONSULTANT_IP and SCRIPT_ID are engine-supplied, never missing.
func missingRequiredVars(tmpl *models.Template, clientName, targetSubnet string, config models.ScriptConfigOptions) []string {
	var missing []string
	for _, name := range tmpl.Info.RequiredVars {
		switch name {
		case "CLIENT_NAME":
			if strings.TrimSpace(clientName) == "" {
				missing = append(missing, name)
			}
		case "TARGET_SUBNET":
			if strings.TrimSpace(targetSubnet) == "" {
				missing = append(missing, name)
			}
		case "AGENT_INSTALLER":
			if strings.TrimSpace(config.AgentInstaller) == "" {
				missing = append(missing, name)
			}
		case "DNS_SERVERS":
			if len(config.DNSServers) == 0 {
				missing = append(missing, name)
			}
		}
	}
	return missing
}

func isValidSubnet(subnet string) bool {
	ip, ipNet, err := net.ParseCIDR(subnet)
	if err != nil {
		return false
	}
	if ip.To4() == nil {
		return false
	}
	ones, bits := ipNet.Mask.Size()
	return ones >= 0 && ones <= bits
}

func isValidIPv4(ip string) bool {
	parsed := net.ParseIP(ip)
	return parsed != nil && parsed.To4() != nil
}
