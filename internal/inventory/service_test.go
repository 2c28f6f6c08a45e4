package inventory

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RustySnipers/optio/db"
	"github.com/RustySnipers/optio/internal/config"
	"github.com/RustySnipers/optio/models"
)

type inventoryFixture struct {
	svc      *InventoryService
	repos    *db.RepositoryFactory
	clientID string
}

func newInventoryFixture(t *testing.T) *inventoryFixture {
	t.Helper()
	dir := t.TempDir()
	sqlDB, err := db.ConnectToSQLite(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.InitializeSchema(sqlDB))

	repos := db.NewRepositoryFactory(sqlDB, "test")
	client, err := repos.NewClientRepository().CreateOrUpdate(context.Background(), &models.Client{Name: "Test Client"})
	require.NoError(t, err)

	svc := NewInventoryService(&config.Config{MACRemap: true},
		repos.NewAssetRepository(), repos.NewAssetGroupRepository(),
		repos.NewScanRepository(), db.NewDBManager(sqlDB))
	return &inventoryFixture{svc: svc, repos: repos, clientID: client.ID}
}

func (f *inventoryFixture) completedScan(t *testing.T, scanType models.ScanType, completedAt time.Time) *models.ScanJob {
	t.Helper()
	scan := &models.ScanJob{
		ID:          db.GenerateID(),
		ClientID:    f.clientID,
		Name:        "test scan",
		Config:      models.ScanConfig{ScanType: scanType, Targets: []string{"192.168.1.0/24"}},
		Status:      models.ScanCompleted,
		CreatedAt:   completedAt.Add(-time.Minute),
		CompletedAt: &completedAt,
	}
	require.NoError(t, f.repos.NewScanRepository().Create(context.Background(), scan))
	return scan
}

func upHost(ip string, ports ...models.DiscoveredPort) models.DiscoveredHost {
	return models.DiscoveredHost{IPAddress: ip, Status: "up", Ports: ports}
}

func openPort(port int, service string) models.DiscoveredPort {
	return models.DiscoveredPort{
		Port: port, Protocol: models.ProtocolTCP,
		State: models.PortOpen, Service: service,
	}
}

func TestReconcile_CreatesNewAsset(t *testing.T) {
	f := newInventoryFixture(t)
	now := time.Now().UTC().Truncate(time.Second)
	scan := f.completedScan(t, models.ScanTypeStandard, now)

	host := upHost("192.168.1.10", openPort(22, "ssh"), openPort(80, "http"))
	host.Hostname = "web01"
	host.MACAddress = "AA:BB:CC:DD:EE:01"

	require.NoError(t, f.svc.ReconcileScan(context.Background(), scan, models.ScanResults{
		ScanID: scan.ID, Hosts: []models.DiscoveredHost{host},
	}))

	assets, err := f.svc.ListAssets(context.Background(), f.clientID)
	require.NoError(t, err)
	require.Len(t, assets, 1)

	asset := assets[0]
	assert.Equal(t, "web01", asset.Name)
	assert.Equal(t, "192.168.1.10", asset.IPAddress)
	assert.Equal(t, models.CriticalityInformational, asset.Criticality)
	assert.Equal(t, models.AssetActive, asset.Status)
	assert.Len(t, asset.Services, 2)
	assert.True(t, asset.FirstSeen.Equal(asset.LastSeen))
	assert.True(t, asset.FirstSeen.Equal(now))
	assert.Equal(t, []string{scan.ID}, asset.ScanIDs)
}

func TestReconcile_UnionsServices(t *testing.T) {
	f := newInventoryFixture(t)
	t0 := time.Now().UTC().Truncate(time.Second).Add(-time.Hour)
	first := f.completedScan(t, models.ScanTypeStandard, t0)
	second := f.completedScan(t, models.ScanTypeQuick, t0.Add(30*time.Minute))

	require.NoError(t, f.svc.ReconcileScan(context.Background(), first, models.ScanResults{
		Hosts: []models.DiscoveredHost{upHost("192.168.1.10", openPort(22, "ssh"), openPort(3306, "mysql"))},
	}))

	// Second scan only probed web ports; ssh and mysql were not touched
	require.NoError(t, f.svc.ReconcileScan(context.Background(), second, models.ScanResults{
		Hosts: []models.DiscoveredHost{upHost("192.168.1.10", openPort(80, "http"), openPort(443, "https"))},
	}))

	assets, err := f.svc.ListAssets(context.Background(), f.clientID)
	require.NoError(t, err)
	require.Len(t, assets, 1)

	ports := make([]int, 0)
	for _, svc := range assets[0].Services {
		ports = append(ports, svc.Port)
	}
	assert.ElementsMatch(t, []int{22, 80, 443, 3306}, ports)
	assert.ElementsMatch(t, []string{first.ID, second.ID}, assets[0].ScanIDs)
}

func TestReconcile_FullScanIsAuthoritative(t *testing.T) {
	f := newInventoryFixture(t)
	t0 := time.Now().UTC().Truncate(time.Second).Add(-time.Hour)
	narrow := f.completedScan(t, models.ScanTypeStandard, t0)
	full := f.completedScan(t, models.ScanTypeFull, t0.Add(30*time.Minute))

	require.NoError(t, f.svc.ReconcileScan(context.Background(), narrow, models.ScanResults{
		Hosts: []models.DiscoveredHost{upHost("192.168.1.10", openPort(22, "ssh"), openPort(8080, "http-proxy"))},
	}))
	require.NoError(t, f.svc.ReconcileScan(context.Background(), full, models.ScanResults{
		Hosts: []models.DiscoveredHost{upHost("192.168.1.10", openPort(22, "ssh"))},
	}))

	assets, err := f.svc.ListAssets(context.Background(), f.clientID)
	require.NoError(t, err)
	require.Len(t, assets, 1)
	require.Len(t, assets[0].Services, 1)
	assert.Equal(t, 22, assets[0].Services[0].Port)
}

func TestReconcile_TimestampsNeverRegress(t *testing.T) {
	f := newInventoryFixture(t)
	t0 := time.Now().UTC().Truncate(time.Second).Add(-2 * time.Hour)
	late := f.completedScan(t, models.ScanTypeStandard, t0.Add(time.Hour))
	stale := f.completedScan(t, models.ScanTypeStandard, t0)

	// Newer completion lands first; the stale scan finishes afterwards
	require.NoError(t, f.svc.ReconcileScan(context.Background(), late, models.ScanResults{
		Hosts: []models.DiscoveredHost{upHost("192.168.1.10", openPort(22, "ssh"))},
	}))
	require.NoError(t, f.svc.ReconcileScan(context.Background(), stale, models.ScanResults{
		Hosts: []models.DiscoveredHost{upHost("192.168.1.10", openPort(22, "ssh"))},
	}))

	assets, err := f.svc.ListAssets(context.Background(), f.clientID)
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.True(t, assets[0].LastSeen.Equal(t0.Add(time.Hour)), "lastSeen must not roll back")
	assert.True(t, assets[0].FirstSeen.Equal(t0), "firstSeen takes the earliest observation")
}

func TestReconcile_OperatorFieldsSticky(t *testing.T) {
	f := newInventoryFixture(t)
	t0 := time.Now().UTC().Truncate(time.Second).Add(-time.Hour)
	first := f.completedScan(t, models.ScanTypeStandard, t0)

	require.NoError(t, f.svc.ReconcileScan(context.Background(), first, models.ScanResults{
		Hosts: []models.DiscoveredHost{upHost("192.168.1.10", openPort(80, "http"))},
	}))
	assets, err := f.svc.ListAssets(context.Background(), f.clientID)
	require.NoError(t, err)
	require.Len(t, assets, 1)

	criticality := models.CriticalityCritical
	category := models.CategorySecurityDevice
	owner := "SOC Team"
	_, err = f.svc.UpdateAsset(context.Background(), assets[0].ID, AssetUpdate{
		Criticality: &criticality,
		Category:    &category,
		Owner:       &owner,
		Tags:        []string{"pci"},
	})
	require.NoError(t, err)

	second := f.completedScan(t, models.ScanTypeStandard, t0.Add(30*time.Minute))
	require.NoError(t, f.svc.ReconcileScan(context.Background(), second, models.ScanResults{
		Hosts: []models.DiscoveredHost{upHost("192.168.1.10", openPort(80, "http"), openPort(443, "https"))},
	}))

	updated, err := f.svc.GetAsset(context.Background(), assets[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.CriticalityCritical, updated.Criticality)
	assert.Equal(t, models.CategorySecurityDevice, updated.Category)
	assert.Equal(t, "SOC Team", updated.Owner)
	assert.Equal(t, []string{"pci"}, updated.Tags)
	assert.Len(t, updated.Services, 2)
}

func TestReconcile_MACRemapOnIPChange(t *testing.T) {
	f := newInventoryFixture(t)
	t0 := time.Now().UTC().Truncate(time.Second).Add(-time.Hour)
	first := f.completedScan(t, models.ScanTypeStandard, t0)
	second := f.completedScan(t, models.ScanTypeStandard, t0.Add(30*time.Minute))

	host := upHost("192.168.1.50", openPort(22, "ssh"))
	host.MACAddress = "AA:BB:CC:DD:EE:99"
	require.NoError(t, f.svc.ReconcileScan(context.Background(), first, models.ScanResults{
		Hosts: []models.DiscoveredHost{host},
	}))

	// Same MAC shows up on a new DHCP address
	moved := upHost("192.168.1.77", openPort(22, "ssh"))
	moved.MACAddress = "AA:BB:CC:DD:EE:99"
	require.NoError(t, f.svc.ReconcileScan(context.Background(), second, models.ScanResults{
		Hosts: []models.DiscoveredHost{moved},
	}))

	assets, err := f.svc.ListAssets(context.Background(), f.clientID)
	require.NoError(t, err)
	require.Len(t, assets, 1, "same machine, not a new asset")
	assert.Equal(t, "192.168.1.77", assets[0].IPAddress)
	assert.True(t, assets[0].FirstSeen.Equal(t0))
}

func TestReconcile_MACRemapDisabled(t *testing.T) {
	f := newInventoryFixture(t)
	f.svc.Config.MACRemap = false
	t0 := time.Now().UTC().Truncate(time.Second).Add(-time.Hour)
	first := f.completedScan(t, models.ScanTypeStandard, t0)
	second := f.completedScan(t, models.ScanTypeStandard, t0.Add(30*time.Minute))

	host := upHost("192.168.1.50", openPort(22, "ssh"))
	host.MACAddress = "AA:BB:CC:DD:EE:99"
	require.NoError(t, f.svc.ReconcileScan(context.Background(), first, models.ScanResults{
		Hosts: []models.DiscoveredHost{host},
	}))

	moved := upHost("192.168.1.77", openPort(22, "ssh"))
	moved.MACAddress = "AA:BB:CC:DD:EE:99"
	require.NoError(t, f.svc.ReconcileScan(context.Background(), second, models.ScanResults{
		Hosts: []models.DiscoveredHost{moved},
	}))

	assets, err := f.svc.ListAssets(context.Background(), f.clientID)
	require.NoError(t, err)
	assert.Len(t, assets, 2, "remap disabled keeps distinct IP identities")
}

func TestReconcile_SkipsNonCompletedScans(t *testing.T) {
	f := newInventoryFixture(t)
	now := time.Now().UTC()
	scan := &models.ScanJob{
		ID: db.GenerateID(), ClientID: f.clientID,
		Config:    models.ScanConfig{ScanType: models.ScanTypeStandard},
		Status:    models.ScanFailed,
		CreatedAt: now,
	}

	require.NoError(t, f.svc.ReconcileScan(context.Background(), scan, models.ScanResults{
		Hosts: []models.DiscoveredHost{upHost("192.168.1.10", openPort(22, "ssh"))},
	}))

	assets, err := f.svc.ListAssets(context.Background(), f.clientID)
	require.NoError(t, err)
	assert.Empty(t, assets)
}

func TestReconcile_ConcurrentMergesLoseNothing(t *testing.T) {
	f := newInventoryFixture(t)
	t0 := time.Now().UTC().Truncate(time.Second).Add(-time.Hour)

	const n = 8
	scans := make([]*models.ScanJob, n)
	for i := range scans {
		scans[i] = f.completedScan(t, models.ScanTypeStandard, t0.Add(time.Duration(i)*time.Minute))
	}

	var wg sync.WaitGroup
	for i, scan := range scans {
		wg.Add(1)
		go func(i int, scan *models.ScanJob) {
			defer wg.Done()
			host := upHost("192.168.1.10", openPort(1000+i, fmt.Sprintf("svc-%d", i)))
			_ = f.svc.ReconcileScan(context.Background(), scan, models.ScanResults{
				Hosts: []models.DiscoveredHost{host},
			})
		}(i, scan)
	}
	wg.Wait()

	assets, err := f.svc.ListAssets(context.Background(), f.clientID)
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.Len(t, assets[0].Services, n, "every concurrent merge must survive")
	assert.Len(t, assets[0].ScanIDs, n)
}

func TestAppendScanID_DedupesAndCaps(t *testing.T) {
	ids := []string{}
	for i := 0; i < 60; i++ {
		ids = appendScanID(ids, fmt.Sprintf("scan-%d", i))
	}
	assert.Len(t, ids, maxScanIDs)
	assert.Equal(t, "scan-59", ids[len(ids)-1])
	assert.Equal(t, "scan-10", ids[0], "oldest entries fall off")

	ids = appendScanID(ids, "scan-59")
	assert.Len(t, ids, maxScanIDs, "duplicate IDs are not re-appended")
}

func TestGroups_MembershipLifecycle(t *testing.T) {
	f := newInventoryFixture(t)
	now := time.Now().UTC().Truncate(time.Second)
	scan := f.completedScan(t, models.ScanTypeStandard, now)
	require.NoError(t, f.svc.ReconcileScan(context.Background(), scan, models.ScanResults{
		Hosts: []models.DiscoveredHost{upHost("192.168.1.10", openPort(22, "ssh"))},
	}))
	assets, err := f.svc.ListAssets(context.Background(), f.clientID)
	require.NoError(t, err)
	require.Len(t, assets, 1)

	group, err := f.svc.CreateGroup(context.Background(), f.clientID, "DMZ", "internet facing")
	require.NoError(t, err)

	group, err = f.svc.AddToGroup(context.Background(), group.ID, assets[0].ID)
	require.NoError(t, err)
	assert.Equal(t, []string{assets[0].ID}, group.AssetIDs)

	// Adding twice is a no-op
	group, err = f.svc.AddToGroup(context.Background(), group.ID, assets[0].ID)
	require.NoError(t, err)
	assert.Len(t, group.AssetIDs, 1)

	group, err = f.svc.RemoveFromGroup(context.Background(), group.ID, assets[0].ID)
	require.NoError(t, err)
	assert.Empty(t, group.AssetIDs)

	_, err = f.svc.AddToGroup(context.Background(), group.ID, "no-such-asset")
	assert.Error(t, err)
}

func TestGetNetworkStats(t *testing.T) {
	f := newInventoryFixture(t)
	now := time.Now().UTC().Truncate(time.Second)
	scan := f.completedScan(t, models.ScanTypeStandard, now)

	hosts := []models.DiscoveredHost{
		upHost("192.168.1.10", openPort(22, "ssh"), openPort(443, "https")),
		upHost("192.168.1.11", openPort(443, "https")),
		upHost("192.168.1.12", openPort(631, "ipp")),
	}
	require.NoError(t, f.svc.ReconcileScan(context.Background(), scan, models.ScanResults{Hosts: hosts}))

	stats, err := f.svc.GetNetworkStats(context.Background(), f.clientID)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.TotalAssets)
	assert.Equal(t, 3, stats.ActiveAssets)
	assert.Equal(t, 1, stats.TotalScans)
	require.NotEmpty(t, stats.TopServices)
	assert.Equal(t, "https", stats.TopServices[0].Service)
	assert.Equal(t, 2, stats.TopServices[0].Count)
	require.Len(t, stats.RecentScans, 1)
	assert.Equal(t, 3, stats.RecentScans[0].HostsFound)
}

func TestInferCategory(t *testing.T) {
	printer := upHost("192.168.1.40", openPort(9100, "jetdirect"))
	assert.Equal(t, models.CategoryPrinter, InferCategory(printer))

	server := upHost("192.168.1.41", openPort(443, "https"))
	assert.Equal(t, models.CategoryServer, InferCategory(server))

	router := upHost("192.168.1.1")
	router.OsMatches = []models.OsMatch{{Name: "Cisco IOS 15", DeviceType: "router"}}
	assert.Equal(t, models.CategoryNetworkDevice, InferCategory(router))

	workstation := upHost("192.168.1.100")
	workstation.OsMatches = []models.OsMatch{{Name: "Microsoft Windows 11"}}
	assert.Equal(t, models.CategoryWorkstation, InferCategory(workstation))

	nothing := upHost("192.168.1.200")
	assert.Equal(t, models.CategoryUnknown, InferCategory(nothing))
}
