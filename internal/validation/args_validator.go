package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// ArgsValidator screens operator-supplied probe arguments before they
// reach the subprocess. Arguments are always passed as an argv array,
// never a shell string; this is a second fence against hostile input
// reaching the probe tool itself.
type ArgsValidator struct {
	dangerousPattern *regexp.Regexp
	flagPattern      *regexp.Regexp
	valuePattern     *regexp.Regexp
	portPattern      *regexp.Regexp
}

func NewArgsValidator() *ArgsValidator {
	return &ArgsValidator{
		// Shell metacharacters and path traversal
		dangerousPattern: regexp.MustCompile(`[;&|$(){}\[\]\\<>*?'"` + "`" + `]|\.\./`),
		// Probe flags: -sS, -T4, --top-ports, --script=vuln
		flagPattern: regexp.MustCompile(`^-{1,2}[A-Za-z0-9][A-Za-z0-9=,:._-]*$`),
		// Flag values: port lists, script names, counts
		valuePattern: regexp.MustCompile(`^[A-Za-z0-9,.:/_-]+$`),
		// Port specs: 22,80,443 or 1-1024 or mixed
		portPattern: regexp.MustCompile(`^\d{1,5}(-\d{1,5})?(,\d{1,5}(-\d{1,5})?)*$`),
	}
}

// ValidateCustomArgs checks a custom scan's argument list. Every
// argument must be either a well-formed flag or a plain value; anything
// carrying shell metacharacters is rejected outright.
func (v *ArgsValidator) ValidateCustomArgs(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("custom arguments cannot be empty")
	}
	if len(args) > 32 {
		return fmt.Errorf("too many custom arguments (max 32): %d", len(args))
	}

	for _, arg := range args {
		if v.dangerousPattern.MatchString(arg) {
			return fmt.Errorf("argument contains dangerous characters: %s", arg)
		}
		if strings.HasPrefix(arg, "-") {
			if !v.flagPattern.MatchString(arg) {
				return fmt.Errorf("malformed flag: %s", arg)
			}
			continue
		}
		if !v.valuePattern.MatchString(arg) {
			return fmt.Errorf("malformed argument value: %s", arg)
		}
	}
	return nil
}

// ValidatePortSpec checks a port specification such as "22,80,443" or
// "1-1024,8080".
func (v *ArgsValidator) ValidatePortSpec(ports string) error {
	if ports == "" {
		return nil
	}
	if !v.portPattern.MatchString(ports) {
		return fmt.Errorf("invalid port specification: %s", ports)
	}
	for _, part := range strings.Split(ports, ",") {
		for _, bound := range strings.Split(part, "-") {
			var n int
			fmt.Sscanf(bound, "%d", &n)
			if n < 1 || n > 65535 {
				return fmt.Errorf("port out of range: %s", bound)
			}
		}
	}
	return nil
}
