package scanner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/RustySnipers/optio/models"
)

func TestBuildArgs_QuickScan(t *testing.T) {
	args := BuildArgs(models.ScanConfig{
		ScanType: models.ScanTypeQuick,
		Targets:  []string{"192.168.1.0/24"},
	})

	assert.Equal(t, []string{"-sS", "-T4", "--top-ports", "100", "-oX", "-", "192.168.1.0/24"}, args)
}

func TestBuildArgs_PingSweepNeedsNoRoot(t *testing.T) {
	assert.False(t, RequiresRoot(models.ScanTypePingSweep))
	assert.True(t, RequiresRoot(models.ScanTypeFull))
}

func TestBuildArgs_AggressiveAddsTimingWhenAbsent(t *testing.T) {
	args := BuildArgs(models.ScanConfig{
		ScanType:   models.ScanTypePingSweep,
		Targets:    []string{"10.0.0.0/24"},
		Aggressive: true,
	})
	assert.Contains(t, args, "-T5")

	// Profiles that already carry a timing flag are left alone
	args = BuildArgs(models.ScanConfig{
		ScanType:   models.ScanTypeQuick,
		Targets:    []string{"10.0.0.0/24"},
		Aggressive: true,
	})
	assert.NotContains(t, args, "-T5")
	assert.Contains(t, args, "-T4")
}

func TestBuildArgs_PortsAndExcludes(t *testing.T) {
	args := BuildArgs(models.ScanConfig{
		ScanType:       models.ScanTypeStandard,
		Targets:        []string{"10.0.0.0/24"},
		Ports:          "22,80,443",
		ExcludeTargets: []string{"10.0.0.1", "10.0.0.2"},
		SkipDiscovery:  true,
	})

	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "-p 22,80,443")
	assert.Contains(t, joined, "--exclude 10.0.0.1,10.0.0.2")
	assert.Contains(t, joined, "-Pn")
}

func TestBuildArgs_CustomSplitsArgs(t *testing.T) {
	args := BuildArgs(models.ScanConfig{
		ScanType:   models.ScanTypeCustom,
		CustomArgs: "-sn  -PR --max-retries 1",
		Targets:    []string{"192.168.1.1"},
	})

	assert.Equal(t, []string{"-sn", "-PR", "--max-retries", "1", "-oX", "-", "192.168.1.1"}, args)
}

func TestPreviewCommand(t *testing.T) {
	preview := PreviewCommand("nmap", models.ScanConfig{
		ScanType: models.ScanTypePingSweep,
		Targets:  []string{"192.168.1.0/24"},
	})

	assert.Equal(t, "nmap -sn -PE -PP -PM -oX - 192.168.1.0/24", preview)
}

func TestScanTypes_CatalogComplete(t *testing.T) {
	infos := ScanTypes()
	assert.Len(t, infos, 9)
	assert.Equal(t, models.ScanTypePingSweep, infos[0].ScanType)
	assert.Equal(t, "Ping Sweep", infos[0].Name)

	for _, info := range infos {
		assert.NotEmpty(t, info.Name)
		assert.NotEmpty(t, info.Description)
		assert.NotEmpty(t, info.Duration)
	}
}

func TestParseNmapVersion(t *testing.T) {
	out := "Nmap version 7.94 ( https://nmap.org )\nPlatform: x86_64-pc-linux-gnu\n"
	assert.Equal(t, "7.94", parseNmapVersion(out))
	assert.Equal(t, "", parseNmapVersion("garbage"))
}

func TestCommonPorts(t *testing.T) {
	ports := CommonPorts()
	assert.Len(t, ports, 24)
	assert.Equal(t, 21, ports[0].Port)
	assert.Equal(t, "FTP", ports[0].Service)
}
