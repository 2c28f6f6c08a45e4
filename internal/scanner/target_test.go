package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateTarget_CIDR(t *testing.T) {
	result := ValidateTarget("192.168.1.0/24")
	assert.True(t, result.Valid)
	assert.Equal(t, "CIDR", result.TargetType)
	assert.Equal(t, "192.168.1.0/24", result.Normalized)
}

func TestValidateTarget_CIDRInvalidPrefix(t *testing.T) {
	result := ValidateTarget("192.168.1.0/33")
	assert.False(t, result.Valid)
	assert.Contains(t, result.Error, "CIDR")
}

func TestValidateTarget_SingleIPv4(t *testing.T) {
	result := ValidateTarget("10.0.0.5")
	assert.True(t, result.Valid)
	assert.Equal(t, "IPv4", result.TargetType)
}

func TestValidateTarget_IPv4Wildcard(t *testing.T) {
	result := ValidateTarget("10.0.0.*")
	assert.True(t, result.Valid)
	assert.Equal(t, "IPv4", result.TargetType)
}

func TestValidateTarget_OctetRange(t *testing.T) {
	result := ValidateTarget("192.168.1.1-50")
	assert.True(t, result.Valid)
	assert.Equal(t, "IP Range", result.TargetType)
}

func TestValidateTarget_IPv6(t *testing.T) {
	result := ValidateTarget("fe80::1")
	assert.True(t, result.Valid)
	assert.Equal(t, "IPv6", result.TargetType)
}

func TestValidateTarget_Hostname(t *testing.T) {
	result := ValidateTarget("dc01.corp.example.com")
	assert.True(t, result.Valid)
	assert.Equal(t, "Hostname", result.TargetType)
}

func TestValidateTarget_Empty(t *testing.T) {
	result := ValidateTarget("   ")
	assert.False(t, result.Valid)
	assert.Equal(t, "Target cannot be empty", result.Error)
}

func TestValidateTarget_OutOfRangeOctet(t *testing.T) {
	result := ValidateTarget("10.0.0.300")
	assert.False(t, result.Valid)
}

func TestValidateTarget_TrimsWhitespace(t *testing.T) {
	result := ValidateTarget("  192.168.1.1  ")
	assert.True(t, result.Valid)
	assert.Equal(t, "192.168.1.1", result.Normalized)
}
