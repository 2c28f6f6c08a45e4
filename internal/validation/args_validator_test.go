package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateCustomArgs_Accepted(t *testing.T) {
	v := NewArgsValidator()

	valid := [][]string{
		{"-sn", "-PR"},
		{"-sS", "-T4", "--top-ports", "100"},
		{"-sV", "--script=vuln"},
		{"--max-retries", "1", "-T2"},
	}
	for _, args := range valid {
		assert.NoError(t, v.ValidateCustomArgs(args), "args: %v", args)
	}
}

func TestValidateCustomArgs_Rejected(t *testing.T) {
	v := NewArgsValidator()

	invalid := [][]string{
		{"-sn;rm", "-rf"},
		{"$(whoami)"},
		{"-oN", "/tmp/../../etc/passwd"},
		{"--script=`id`"},
		{"-sS", "a|b"},
		{},
	}
	for _, args := range invalid {
		assert.Error(t, v.ValidateCustomArgs(args), "args: %v", args)
	}
}

func TestValidatePortSpec(t *testing.T) {
	v := NewArgsValidator()

	assert.NoError(t, v.ValidatePortSpec(""))
	assert.NoError(t, v.ValidatePortSpec("22"))
	assert.NoError(t, v.ValidatePortSpec("22,80,443"))
	assert.NoError(t, v.ValidatePortSpec("1-1024,8080"))

	assert.Error(t, v.ValidatePortSpec("22;80"))
	assert.Error(t, v.ValidatePortSpec("0"))
	assert.Error(t, v.ValidatePortSpec("70000"))
	assert.Error(t, v.ValidatePortSpec("80,"))
}
