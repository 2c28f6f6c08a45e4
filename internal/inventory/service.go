package inventory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/RustySnipers/optio/db"
	"github.com/RustySnipers/optio/internal/apperror"
	"github.com/RustySnipers/optio/internal/config"
	"github.com/RustySnipers/optio/models"
)

const maxScanIDs = 50

// InventoryService owns the durable asset inventory: reconciling scan
// results into assets, operator edits, grouping, and dashboard stats.
type InventoryService struct {
	Config     *config.Config
	Assets     db.AssetRepository
	Groups     db.AssetGroupRepository
	Scans      db.ScanRepository
	dbManager  *db.DBManager

	// Per-(client, IP) locks so concurrent scans completing for the
	// same host serialize their merges instead of clobbering each
	// other's service unions.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewInventoryService(cfg *config.Config, assets db.AssetRepository, groups db.AssetGroupRepository, scans db.ScanRepository, dbManager *db.DBManager) *InventoryService {
	return &InventoryService{
		Config:    cfg,
		Assets:    assets,
		Groups:    groups,
		Scans:     scans,
		dbManager: dbManager,
		locks:     make(map[string]*sync.Mutex),
	}
}

func (s *InventoryService) assetLock(clientID, ip string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := clientID + "|" + ip
	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	return lock
}

// ReconcileScan folds the hosts of a completed scan into the asset
// inventory. Hosts that were down are ignored. Failures on one host do
// not abort the rest.
func (s *InventoryService) ReconcileScan(ctx context.Context, scan *models.ScanJob, results models.ScanResults) error {
	if scan.Status != models.ScanCompleted {
		return nil
	}

	scanTime := scan.CreatedAt
	if scan.CompletedAt != nil {
		scanTime = *scan.CompletedAt
	}

	var firstErr error
	for _, host := range results.Hosts {
		if host.Status != "up" || host.IPAddress == "" {
			continue
		}
		if err := s.reconcileHost(ctx, scan, host, scanTime); err != nil {
			log.Error().Str("scan_id", scan.ID).Str("ip", host.IPAddress).Err(err).
				Msg("Failed to reconcile host")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (s *InventoryService) reconcileHost(ctx context.Context, scan *models.ScanJob, host models.DiscoveredHost, scanTime time.Time) error {
	lock := s.assetLock(scan.ClientID, host.IPAddress)
	lock.Lock()
	defer lock.Unlock()

	asset, err := s.Assets.FindByClientAndIP(ctx, scan.ClientID, host.IPAddress)
	if err != nil && err != db.ErrNotFound {
		return apperror.Wrap(apperror.KindPersistence, err, "asset lookup failed")
	}

	// IP churn: a known MAC showing up on a new address is the same
	// machine after a DHCP lease change, not a new asset
	if asset == nil && s.Config.MACRemap && host.MACAddress != "" {
		byMAC, err := s.Assets.FindByClientAndMAC(ctx, scan.ClientID, host.MACAddress)
		if err != nil && err != db.ErrNotFound {
			return apperror.Wrap(apperror.KindPersistence, err, "asset MAC lookup failed")
		}
		if byMAC != nil {
			log.Info().Str("client_id", scan.ClientID).Str("asset_id", byMAC.ID).
				Str("mac", host.MACAddress).Str("old_ip", byMAC.IPAddress).
				Str("new_ip", host.IPAddress).Msg("Asset re-identified by MAC after IP change")
			byMAC.IPAddress = host.IPAddress
			asset = byMAC
		}
	}

	if asset == nil {
		asset = newAssetFromDiscovery(scan.ClientID, host, scanTime)
		asset.ScanIDs = []string{scan.ID}
		log.Info().Str("client_id", scan.ClientID).Str("ip", host.IPAddress).
			Str("category", string(asset.Category)).Msg("New asset discovered")
	} else {
		mergeDiscovery(asset, host, scan, scanTime)
	}

	_, err = s.dbManager.CreateOrUpdateAsset(s.Assets, ctx, asset)
	if err != nil {
		return apperror.Wrap(apperror.KindPersistence, err, "asset persist failed")
	}
	return nil
}

// newAssetFromDiscovery builds a fresh asset. Criticality starts at
// informational; assigning business impact is the operator's call.
func newAssetFromDiscovery(clientID string, host models.DiscoveredHost, scanTime time.Time) *models.Asset {
	name := host.Hostname
	if name == "" {
		name = host.IPAddress
	}

	asset := &models.Asset{
		ID:          db.GenerateID(),
		ClientID:    clientID,
		Name:        name,
		IPAddress:   host.IPAddress,
		MACAddress:  host.MACAddress,
		Category:    InferCategory(host),
		Criticality: models.CriticalityInformational,
		Status:      models.AssetActive,
		Services:    discoveredServices(host.Ports),
		Tags:        []string{},
		FirstSeen:   scanTime,
		LastSeen:    scanTime,
	}
	if len(host.OsMatches) > 0 {
		asset.OperatingSystem = host.OsMatches[0].Name
	}
	return asset
}

// mergeDiscovery folds one discovered host into an existing asset.
// Operator-set fields (category, criticality, owner, tags, location,
// description) are never touched here; probe data cannot overwrite an
// operator's judgment.
func mergeDiscovery(asset *models.Asset, host models.DiscoveredHost, scan *models.ScanJob, scanTime time.Time) {
	if host.Hostname != "" {
		asset.Name = host.Hostname
	}
	if host.MACAddress != "" {
		asset.MACAddress = host.MACAddress
	}
	if len(host.OsMatches) > 0 {
		asset.OperatingSystem = host.OsMatches[0].Name
	}

	// A full port scan probed everything, so services it did not see
	// are genuinely gone. Narrower profiles only add and refresh.
	authoritative := scan.Config.ScanType == models.ScanTypeFull
	asset.Services = mergeServices(asset.Services, discoveredServices(host.Ports), authoritative)

	// Completion timestamps order merges, so a stale scan finishing
	// late cannot roll lastSeen backwards
	if scanTime.After(asset.LastSeen) {
		asset.LastSeen = scanTime
	}
	if scanTime.Before(asset.FirstSeen) {
		asset.FirstSeen = scanTime
	}

	asset.ScanIDs = appendScanID(asset.ScanIDs, scan.ID)
}

// discoveredServices converts probe ports into asset services. Only
// ports that responded as reachable become services; recording every
// closed port of a full scan would bury the real ones.
func discoveredServices(ports []models.DiscoveredPort) []models.AssetService {
	services := []models.AssetService{}
	for _, p := range ports {
		switch p.State {
		case models.PortOpen, models.PortOpenFiltered, models.PortUnfiltered:
		default:
			continue
		}
		name := p.Service
		if name == "" {
			name = "unknown"
		}
		version := p.Product
		if p.Version != "" {
			if version != "" {
				version += " " + p.Version
			} else {
				version = p.Version
			}
		}
		services = append(services, models.AssetService{
			Port:     p.Port,
			Protocol: p.Protocol,
			Name:     name,
			Version:  version,
			State:    p.State,
		})
	}
	return services
}

// mergeServices unions service lists by (port, protocol). Re-observed
// services take the fresh observation; services not probed this scan
// are retained unless the scan was authoritative.
func mergeServices(existing, observed []models.AssetService, authoritative bool) []models.AssetService {
	if authoritative {
		return observed
	}

	type key struct {
		port     int
		protocol models.Protocol
	}
	seen := make(map[key]bool, len(observed))
	merged := make([]models.AssetService, 0, len(existing)+len(observed))

	for _, svc := range observed {
		seen[key{svc.Port, svc.Protocol}] = true
		merged = append(merged, svc)
	}
	for _, svc := range existing {
		if !seen[key{svc.Port, svc.Protocol}] {
			merged = append(merged, svc)
		}
	}

	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Port != merged[j].Port {
			return merged[i].Port < merged[j].Port
		}
		return merged[i].Protocol < merged[j].Protocol
	})
	return merged
}

// appendScanID records a contributing scan, deduplicated and capped so
// long-lived assets do not grow unboundedly.
func appendScanID(ids []string, scanID string) []string {
	for _, id := range ids {
		if id == scanID {
			return ids
		}
	}
	ids = append(ids, scanID)
	if len(ids) > maxScanIDs {
		ids = ids[len(ids)-maxScanIDs:]
	}
	return ids
}

// GetAsset returns one asset by ID.
func (s *InventoryService) GetAsset(ctx context.Context, id string) (*models.Asset, error) {
	asset, err := s.Assets.FindByID(ctx, id)
	if err == db.ErrNotFound {
		return nil, apperror.NotFound("asset", id)
	}
	if err != nil {
		return nil, apperror.Wrap(apperror.KindPersistence, err, "asset lookup failed")
	}
	return asset, nil
}

// ListAssets returns all assets for a client.
func (s *InventoryService) ListAssets(ctx context.Context, clientID string) ([]*models.Asset, error) {
	assets, err := s.Assets.FindByClient(ctx, clientID)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindPersistence, err, "asset list failed")
	}
	return assets, nil
}

// AssetUpdate carries operator edits. Nil fields are left unchanged, so
// a partial edit does not blank other fields.
type AssetUpdate struct {
	Name            *string             `json:"name,omitempty"`
	Category        *models.AssetCategory `json:"category,omitempty"`
	OperatingSystem *string             `json:"operatingSystem,omitempty"`
	Criticality     *models.Criticality `json:"criticality,omitempty"`
	Status          *models.AssetStatus `json:"status,omitempty"`
	Location        *string             `json:"location,omitempty"`
	Owner           *string             `json:"owner,omitempty"`
	Description     *string             `json:"description,omitempty"`
	Tags            []string            `json:"tags,omitempty"`
}

// UpdateAsset applies operator edits to an asset. Edits are serialized
// against reconciliation on the same (client, IP) key.
func (s *InventoryService) UpdateAsset(ctx context.Context, id string, update AssetUpdate) (*models.Asset, error) {
	asset, err := s.GetAsset(ctx, id)
	if err != nil {
		return nil, err
	}

	lock := s.assetLock(asset.ClientID, asset.IPAddress)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock; a reconcile may have landed in between
	asset, err = s.GetAsset(ctx, id)
	if err != nil {
		return nil, err
	}

	if update.Name != nil {
		if strings.TrimSpace(*update.Name) == "" {
			return nil, apperror.Validation("Asset name cannot be empty")
		}
		asset.Name = *update.Name
	}
	if update.Category != nil {
		asset.Category = *update.Category
	}
	if update.OperatingSystem != nil {
		asset.OperatingSystem = *update.OperatingSystem
	}
	if update.Criticality != nil {
		asset.Criticality = *update.Criticality
	}
	if update.Status != nil {
		asset.Status = *update.Status
	}
	if update.Location != nil {
		asset.Location = *update.Location
	}
	if update.Owner != nil {
		asset.Owner = *update.Owner
	}
	if update.Description != nil {
		asset.Description = *update.Description
	}
	if update.Tags != nil {
		asset.Tags = update.Tags
	}

	saved, err := s.dbManager.CreateOrUpdateAsset(s.Assets, ctx, asset)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindPersistence, err, "asset update failed")
	}
	return saved, nil
}

// DeleteAsset removes an asset and its group memberships.
func (s *InventoryService) DeleteAsset(ctx context.Context, id string) error {
	if _, err := s.GetAsset(ctx, id); err != nil {
		return err
	}
	if err := s.Assets.Delete(ctx, id); err != nil {
		return apperror.Wrap(apperror.KindPersistence, err, "asset delete failed")
	}
	return nil
}

// CreateGroup creates a named asset group within a client scope.
func (s *InventoryService) CreateGroup(ctx context.Context, clientID, name, description string) (*models.AssetGroup, error) {
	if clientID == "" {
		return nil, apperror.Validation("Client ID is required")
	}
	if strings.TrimSpace(name) == "" {
		return nil, apperror.Validation("Group name is required")
	}

	group := &models.AssetGroup{
		ID:          db.GenerateID(),
		ClientID:    clientID,
		Name:        name,
		Description: description,
		AssetIDs:    []string{},
	}
	saved, err := s.Groups.CreateOrUpdate(ctx, group)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindPersistence, err, "group create failed")
	}
	return saved, nil
}

// ListGroups returns all asset groups for a client.
func (s *InventoryService) ListGroups(ctx context.Context, clientID string) ([]*models.AssetGroup, error) {
	groups, err := s.Groups.FindByClient(ctx, clientID)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindPersistence, err, "group list failed")
	}
	return groups, nil
}

// AddToGroup adds an asset to a group. The asset must exist and belong
// to the same client as the group.
func (s *InventoryService) AddToGroup(ctx context.Context, groupID, assetID string) (*models.AssetGroup, error) {
	group, err := s.getGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	asset, err := s.GetAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if asset.ClientID != group.ClientID {
		return nil, apperror.Validation("Asset %s belongs to a different client than group %s", assetID, groupID)
	}

	for _, id := range group.AssetIDs {
		if id == assetID {
			return group, nil
		}
	}
	group.AssetIDs = append(group.AssetIDs, assetID)

	saved, err := s.Groups.CreateOrUpdate(ctx, group)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindPersistence, err, "group update failed")
	}
	return saved, nil
}

// RemoveFromGroup removes an asset from a group.
func (s *InventoryService) RemoveFromGroup(ctx context.Context, groupID, assetID string) (*models.AssetGroup, error) {
	group, err := s.getGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	kept := group.AssetIDs[:0]
	for _, id := range group.AssetIDs {
		if id != assetID {
			kept = append(kept, id)
		}
	}
	group.AssetIDs = kept

	saved, err := s.Groups.CreateOrUpdate(ctx, group)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindPersistence, err, "group update failed")
	}
	return saved, nil
}

// DeleteGroup removes a group. Member assets are untouched.
func (s *InventoryService) DeleteGroup(ctx context.Context, id string) error {
	if _, err := s.getGroup(ctx, id); err != nil {
		return err
	}
	if err := s.Groups.Delete(ctx, id); err != nil {
		return apperror.Wrap(apperror.KindPersistence, err, "group delete failed")
	}
	return nil
}

func (s *InventoryService) getGroup(ctx context.Context, id string) (*models.AssetGroup, error) {
	group, err := s.Groups.FindByID(ctx, id)
	if err == db.ErrNotFound {
		return nil, apperror.NotFound("asset group", id)
	}
	if err != nil {
		return nil, apperror.Wrap(apperror.KindPersistence, err, "group lookup failed")
	}
	return group, nil
}

// GetNetworkStats aggregates the client's inventory for the dashboard.
func (s *InventoryService) GetNetworkStats(ctx context.Context, clientID string) (*models.NetworkStats, error) {
	assets, err := s.ListAssets(ctx, clientID)
	if err != nil {
		return nil, err
	}
	scans, err := s.Scans.FindByClient(ctx, clientID)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindPersistence, err, "scan list failed")
	}

	stats := &models.NetworkStats{
		TotalAssets:   len(assets),
		TotalScans:    len(scans),
		ByCategory:    []models.CategoryCount{},
		ByCriticality: []models.CriticalityCount{},
		TopServices:   []models.ServiceCount{},
		RecentScans:   []models.ScanSummary{},
	}

	categoryCounts := map[models.AssetCategory]int{}
	criticalityCounts := map[models.Criticality]int{}
	type svcKey struct {
		name string
		port int
	}
	serviceCounts := map[svcKey]int{}
	scanHosts := map[string]int{}

	for _, asset := range assets {
		if asset.Status == models.AssetActive {
			stats.ActiveAssets++
		}
		categoryCounts[asset.Category]++
		criticalityCounts[asset.Criticality]++
		for _, svc := range asset.Services {
			serviceCounts[svcKey{svc.Name, svc.Port}]++
		}
		for _, scanID := range asset.ScanIDs {
			scanHosts[scanID]++
		}
	}

	for category, count := range categoryCounts {
		stats.ByCategory = append(stats.ByCategory, models.CategoryCount{Category: category, Count: count})
	}
	sort.Slice(stats.ByCategory, func(i, j int) bool {
		return stats.ByCategory[i].Count > stats.ByCategory[j].Count
	})

	for criticality, count := range criticalityCounts {
		stats.ByCriticality = append(stats.ByCriticality, models.CriticalityCount{Criticality: criticality, Count: count})
	}
	sort.Slice(stats.ByCriticality, func(i, j int) bool {
		return stats.ByCriticality[i].Count > stats.ByCriticality[j].Count
	})

	for key, count := range serviceCounts {
		stats.TopServices = append(stats.TopServices, models.ServiceCount{Service: key.name, Port: key.port, Count: count})
	}
	sort.Slice(stats.TopServices, func(i, j int) bool {
		if stats.TopServices[i].Count != stats.TopServices[j].Count {
			return stats.TopServices[i].Count > stats.TopServices[j].Count
		}
		return stats.TopServices[i].Port < stats.TopServices[j].Port
	})
	if len(stats.TopServices) > 10 {
		stats.TopServices = stats.TopServices[:10]
	}

	sort.Slice(scans, func(i, j int) bool {
		return scans[i].CreatedAt.After(scans[j].CreatedAt)
	})
	for i, scan := range scans {
		if i == 5 {
			break
		}
		stats.RecentScans = append(stats.RecentScans, models.ScanSummary{
			ID:          scan.ID,
			Name:        scan.Name,
			ScanType:    scan.Config.ScanType,
			Status:      scan.Status,
			HostsFound:  scanHosts[scan.ID],
			CompletedAt: scan.CompletedAt,
		})
	}

	return stats, nil
}
