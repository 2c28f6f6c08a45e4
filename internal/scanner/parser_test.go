package scanner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RustySnipers/optio/models"
)

const sampleScanXML = `<?xml version="1.0" encoding="UTF-8"?>
<nmaprun scanner="nmap" args="nmap -sS -sV -T4 -oX - 192.168.1.0/24" version="7.94" startstr="Mon Jan  6 10:00:00 2025">
<host>
<status state="up" reason="arp-response"/>
<address addr="192.168.1.10" addrtype="ipv4"/>
<address addr="aa:bb:cc:dd:ee:ff" addrtype="mac" vendor="Dell Inc."/>
<hostnames><hostname name="dc01.corp.local" type="PTR"/></hostnames>
<ports>
<port protocol="tcp" portid="22"><state state="open" reason="syn-ack"/><service name="ssh" product="OpenSSH" version="8.9p1"/></port>
<port protocol="tcp" portid="445"><state state="open" reason="syn-ack"/><service name="microsoft-ds"/></port>
<port protocol="tcp" portid="3389"><state state="filtered" reason="no-response"/><service name="ms-wbt-server"/></port>
<port protocol="udp" portid="161"><state state="open|filtered" reason="no-response"/><service name="snmp"/></port>
</ports>
<os>
<osmatch name="Linux 5.4" accuracy="90"><osclass osfamily="Linux" osgen="5.X" type="general purpose"/></osmatch>
<osmatch name="Windows Server 2019" accuracy="96"><osclass osfamily="Windows" osgen="2019" type="server"/></osmatch>
</os>
</host>
<host>
<status state="down" reason="no-response"/>
<address addr="192.168.1.11" addrtype="ipv4"/>
</host>
<runstats><finished timestr="Mon Jan  6 10:05:00 2025"/><hosts up="1" down="253" total="254"/></runstats>
</nmaprun>`

func TestParseResults_WellFormed(t *testing.T) {
	results := ParseResults("scan-1", sampleScanXML)

	assert.Empty(t, results.Warnings)
	assert.Equal(t, "7.94", results.NmapVersion)
	assert.Equal(t, 1, results.HostsUp)
	require.Len(t, results.Hosts, 2)

	host := results.Hosts[0]
	assert.Equal(t, "192.168.1.10", host.IPAddress)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", host.MACAddress)
	assert.Equal(t, "Dell Inc.", host.Vendor)
	assert.Equal(t, "dc01.corp.local", host.Hostname)
	assert.Equal(t, "up", host.Status)
	require.Len(t, host.Ports, 4)
}

func TestParseResults_PreservesPortStates(t *testing.T) {
	results := ParseResults("scan-1", sampleScanXML)
	require.Len(t, results.Hosts, 2)

	states := map[int]models.PortState{}
	for _, p := range results.Hosts[0].Ports {
		states[p.Port] = p.State
	}

	assert.Equal(t, models.PortOpen, states[22])
	assert.Equal(t, models.PortFiltered, states[3389])
	assert.Equal(t, models.PortOpenFiltered, states[161])
}

func TestParseResults_OsMatchesOrderedByAccuracy(t *testing.T) {
	results := ParseResults("scan-1", sampleScanXML)
	require.Len(t, results.Hosts, 2)

	matches := results.Hosts[0].OsMatches
	require.Len(t, matches, 2)
	assert.Equal(t, "Windows Server 2019", matches[0].Name)
	assert.Equal(t, 96, matches[0].Accuracy)
	assert.Equal(t, "Windows", matches[0].OsFamily)
	assert.Equal(t, "Linux 5.4", matches[1].Name)
}

func TestParseResults_TruncatedOutputRecoversCompleteHosts(t *testing.T) {
	// Cut mid-way through the second host, as a killed probe would leave it
	idx := strings.LastIndex(sampleScanXML, "<host>")
	truncated := sampleScanXML[:idx+len("<host>")+40]

	results := ParseResults("scan-1", truncated)

	assert.Contains(t, results.Warnings, truncationWarning)
	require.Len(t, results.Hosts, 1)
	assert.Equal(t, "192.168.1.10", results.Hosts[0].IPAddress)
	assert.Equal(t, 1, results.HostsUp)
}

func TestParseResults_UnparseableOutput(t *testing.T) {
	results := ParseResults("scan-1", "not xml at all")

	assert.Empty(t, results.Hosts)
	assert.Contains(t, results.Warnings, truncationWarning)
}

func TestParseResults_ServiceDetails(t *testing.T) {
	results := ParseResults("scan-1", sampleScanXML)
	require.Len(t, results.Hosts, 2)

	ssh := results.Hosts[0].Ports[0]
	assert.Equal(t, 22, ssh.Port)
	assert.Equal(t, models.ProtocolTCP, ssh.Protocol)
	assert.Equal(t, "ssh", ssh.Service)
	assert.Equal(t, "OpenSSH", ssh.Product)
	assert.Equal(t, "8.9p1", ssh.Version)
}
