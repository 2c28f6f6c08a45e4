package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/RustySnipers/optio/models"

	"github.com/pkg/errors"
)

// SQLiteAssetRepository implements the AssetRepository interface for SQLite
type SQLiteAssetRepository struct {
	db *sql.DB
}

// NewSQLiteAssetRepository creates a new SQLiteAssetRepository
func NewSQLiteAssetRepository(db *sql.DB) *SQLiteAssetRepository {
	return &SQLiteAssetRepository{db: db}
}

// Close closes the database connection
func (r *SQLiteAssetRepository) Close() error {
	return r.db.Close()
}

const assetColumns = `id, client_id, name, ip_address, COALESCE(mac_address, ''), category,
	COALESCE(operating_system, ''), criticality, status, COALESCE(location, ''), COALESCE(owner, ''),
	COALESCE(description, ''), COALESCE(tags, '[]'), COALESCE(scan_ids, '[]'),
	first_seen, last_seen, created_at, updated_at`

// FindByID finds an asset by ID
func (r *SQLiteAssetRepository) FindByID(ctx context.Context, id string) (*models.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets WHERE id = ?`
	asset, err := r.scanAsset(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadServices(ctx, asset); err != nil {
		return nil, err
	}
	return asset, nil
}

// FindByClientAndIP finds an asset by its identity key
func (r *SQLiteAssetRepository) FindByClientAndIP(ctx context.Context, clientID, ip string) (*models.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets WHERE client_id = ? AND ip_address = ?`
	asset, err := r.scanAsset(r.db.QueryRowContext(ctx, query, clientID, ip))
	if err != nil {
		return nil, err
	}
	if err := r.loadServices(ctx, asset); err != nil {
		return nil, err
	}
	return asset, nil
}

// FindByClientAndMAC finds an asset by MAC address within a client scope.
// When the same MAC appears on multiple rows the most recently seen wins.
func (r *SQLiteAssetRepository) FindByClientAndMAC(ctx context.Context, clientID, mac string) (*models.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets WHERE client_id = ? AND mac_address = ?
	          ORDER BY last_seen DESC LIMIT 1`
	asset, err := r.scanAsset(r.db.QueryRowContext(ctx, query, clientID, mac))
	if err != nil {
		return nil, err
	}
	if err := r.loadServices(ctx, asset); err != nil {
		return nil, err
	}
	return asset, nil
}

// FindByClient returns all assets for a client
func (r *SQLiteAssetRepository) FindByClient(ctx context.Context, clientID string) ([]*models.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets WHERE client_id = ? ORDER BY ip_address`
	rows, err := r.db.QueryContext(ctx, query, clientID)
	if err != nil {
		return nil, errors.Wrap(err, "error querying assets")
	}
	defer rows.Close()

	var assets []*models.Asset
	for rows.Next() {
		asset, err := r.scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating assets")
	}

	for _, asset := range assets {
		if err := r.loadServices(ctx, asset); err != nil {
			return nil, err
		}
	}

	return assets, nil
}

// CreateOrUpdate creates or updates an asset and rewrites its service list
func (r *SQLiteAssetRepository) CreateOrUpdate(ctx context.Context, asset *models.Asset) (*models.Asset, error) {
	if asset.ID == "" {
		asset.ID = GenerateID()
	}

	now := time.Now()
	asset.UpdatedAt = now
	if asset.CreatedAt.IsZero() {
		asset.CreatedAt = now
	}

	tagsJSON, err := json.Marshal(asset.Tags)
	if err != nil {
		return nil, errors.Wrap(err, "error marshaling asset tags")
	}
	scanIDsJSON, err := json.Marshal(asset.ScanIDs)
	if err != nil {
		return nil, errors.Wrap(err, "error marshaling asset scan ids")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "error beginning transaction")
	}
	defer tx.Rollback()

	query := `INSERT INTO assets (id, client_id, name, ip_address, mac_address, category, operating_system,
	              criticality, status, location, owner, description, tags, scan_ids,
	              first_seen, last_seen, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	          ON CONFLICT(id) DO UPDATE SET
	              name = excluded.name, ip_address = excluded.ip_address, mac_address = excluded.mac_address,
	              category = excluded.category, operating_system = excluded.operating_system,
	              criticality = excluded.criticality, status = excluded.status, location = excluded.location,
	              owner = excluded.owner, description = excluded.description, tags = excluded.tags,
	              scan_ids = excluded.scan_ids, first_seen = excluded.first_seen,
	              last_seen = excluded.last_seen, updated_at = excluded.updated_at`
	_, err = tx.ExecContext(ctx, query,
		asset.ID, asset.ClientID, asset.Name, asset.IPAddress, asset.MACAddress,
		string(asset.Category), asset.OperatingSystem, string(asset.Criticality), string(asset.Status),
		asset.Location, asset.Owner, asset.Description, string(tagsJSON), string(scanIDsJSON),
		asset.FirstSeen.Format(time.RFC3339), asset.LastSeen.Format(time.RFC3339),
		asset.CreatedAt.Format(time.RFC3339), asset.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, errors.Wrap(err, "error upserting asset")
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM asset_services WHERE asset_id = ?`, asset.ID); err != nil {
		return nil, errors.Wrap(err, "error clearing asset services")
	}
	for _, svc := range asset.Services {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO asset_services (asset_id, port, protocol, name, version, state) VALUES (?, ?, ?, ?, ?, ?)`,
			asset.ID, svc.Port, string(svc.Protocol), svc.Name, svc.Version, string(svc.State))
		if err != nil {
			return nil, errors.Wrap(err, "error inserting asset service")
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "error committing asset")
	}

	return asset, nil
}

// Delete removes an asset and its services by ID
func (r *SQLiteAssetRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "error beginning transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM asset_services WHERE asset_id = ?`, id); err != nil {
		return errors.Wrap(err, "error deleting asset services")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM asset_group_members WHERE asset_id = ?`, id); err != nil {
		return errors.Wrap(err, "error deleting asset group memberships")
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM assets WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "error deleting asset")
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "error getting rows affected")
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return errors.Wrap(tx.Commit(), "error committing asset delete")
}

func (r *SQLiteAssetRepository) scanAsset(row rowScanner) (*models.Asset, error) {
	var asset models.Asset
	var category, criticality, status string
	var tagsJSON, scanIDsJSON string
	var firstSeenStr, lastSeenStr, createdAtStr, updatedAtStr string

	err := row.Scan(&asset.ID, &asset.ClientID, &asset.Name, &asset.IPAddress, &asset.MACAddress,
		&category, &asset.OperatingSystem, &criticality, &status, &asset.Location, &asset.Owner,
		&asset.Description, &tagsJSON, &scanIDsJSON, &firstSeenStr, &lastSeenStr, &createdAtStr, &updatedAtStr)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "error scanning asset")
	}

	asset.Category = models.AssetCategory(category)
	asset.Criticality = models.Criticality(criticality)
	asset.Status = models.AssetStatus(status)
	if err := json.Unmarshal([]byte(tagsJSON), &asset.Tags); err != nil {
		return nil, errors.Wrap(err, "error unmarshaling asset tags")
	}
	if err := json.Unmarshal([]byte(scanIDsJSON), &asset.ScanIDs); err != nil {
		return nil, errors.Wrap(err, "error unmarshaling asset scan ids")
	}
	asset.FirstSeen = parseTimestamp(firstSeenStr)
	asset.LastSeen = parseTimestamp(lastSeenStr)
	asset.CreatedAt = parseTimestamp(createdAtStr)
	asset.UpdatedAt = parseTimestamp(updatedAtStr)
	return &asset, nil
}

func (r *SQLiteAssetRepository) loadServices(ctx context.Context, asset *models.Asset) error {
	query := `SELECT port, protocol, name, COALESCE(version, ''), state FROM asset_services
	          WHERE asset_id = ? ORDER BY protocol, port`
	rows, err := r.db.QueryContext(ctx, query, asset.ID)
	if err != nil {
		return errors.Wrap(err, "error querying asset services")
	}
	defer rows.Close()

	services := []models.AssetService{}
	for rows.Next() {
		var svc models.AssetService
		var protocol, state string
		if err := rows.Scan(&svc.Port, &protocol, &svc.Name, &svc.Version, &state); err != nil {
			return errors.Wrap(err, "error scanning asset service")
		}
		svc.Protocol = models.Protocol(protocol)
		svc.State = models.PortState(state)
		services = append(services, svc)
	}
	asset.Services = services
	return rows.Err()
}

// SQLiteAssetGroupRepository implements the AssetGroupRepository interface for SQLite
type SQLiteAssetGroupRepository struct {
	db *sql.DB
}

// NewSQLiteAssetGroupRepository creates a new SQLiteAssetGroupRepository
func NewSQLiteAssetGroupRepository(db *sql.DB) *SQLiteAssetGroupRepository {
	return &SQLiteAssetGroupRepository{db: db}
}

// Close closes the database connection
func (r *SQLiteAssetGroupRepository) Close() error {
	return r.db.Close()
}

// FindByID finds an asset group by ID
func (r *SQLiteAssetGroupRepository) FindByID(ctx context.Context, id string) (*models.AssetGroup, error) {
	query := `SELECT id, client_id, name, COALESCE(description, ''), created_at, updated_at
	          FROM asset_groups WHERE id = ?`
	group, err := r.scanGroup(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadMembers(ctx, group); err != nil {
		return nil, err
	}
	return group, nil
}

// FindByClient returns all asset groups for a client
func (r *SQLiteAssetGroupRepository) FindByClient(ctx context.Context, clientID string) ([]*models.AssetGroup, error) {
	query := `SELECT id, client_id, name, COALESCE(description, ''), created_at, updated_at
	          FROM asset_groups WHERE client_id = ? ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query, clientID)
	if err != nil {
		return nil, errors.Wrap(err, "error querying asset groups")
	}
	defer rows.Close()

	var groups []*models.AssetGroup
	for rows.Next() {
		group, err := r.scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating asset groups")
	}

	for _, group := range groups {
		if err := r.loadMembers(ctx, group); err != nil {
			return nil, err
		}
	}

	return groups, nil
}

// CreateOrUpdate creates or updates an asset group and rewrites its membership
func (r *SQLiteAssetGroupRepository) CreateOrUpdate(ctx context.Context, group *models.AssetGroup) (*models.AssetGroup, error) {
	if group.ID == "" {
		group.ID = GenerateID()
	}

	now := time.Now()
	group.UpdatedAt = now
	if group.CreatedAt.IsZero() {
		group.CreatedAt = now
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "error beginning transaction")
	}
	defer tx.Rollback()

	query := `INSERT INTO asset_groups (id, client_id, name, description, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?)
	          ON CONFLICT(id) DO UPDATE SET
	              name = excluded.name, description = excluded.description, updated_at = excluded.updated_at`
	_, err = tx.ExecContext(ctx, query, group.ID, group.ClientID, group.Name, group.Description,
		group.CreatedAt.Format(time.RFC3339), group.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, errors.Wrap(err, "error upserting asset group")
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM asset_group_members WHERE group_id = ?`, group.ID); err != nil {
		return nil, errors.Wrap(err, "error clearing asset group members")
	}
	for _, assetID := range group.AssetIDs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO asset_group_members (group_id, asset_id) VALUES (?, ?)`, group.ID, assetID)
		if err != nil {
			return nil, errors.Wrap(err, "error inserting asset group member")
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "error committing asset group")
	}

	return group, nil
}

// Delete removes an asset group and its membership by ID
func (r *SQLiteAssetGroupRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "error beginning transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM asset_group_members WHERE group_id = ?`, id); err != nil {
		return errors.Wrap(err, "error deleting asset group members")
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM asset_groups WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "error deleting asset group")
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "error getting rows affected")
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return errors.Wrap(tx.Commit(), "error committing asset group delete")
}

func (r *SQLiteAssetGroupRepository) scanGroup(row rowScanner) (*models.AssetGroup, error) {
	var group models.AssetGroup
	var createdAtStr, updatedAtStr string
	err := row.Scan(&group.ID, &group.ClientID, &group.Name, &group.Description, &createdAtStr, &updatedAtStr)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "error scanning asset group")
	}
	group.CreatedAt = parseTimestamp(createdAtStr)
	group.UpdatedAt = parseTimestamp(updatedAtStr)
	return &group, nil
}

func (r *SQLiteAssetGroupRepository) loadMembers(ctx context.Context, group *models.AssetGroup) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT asset_id FROM asset_group_members WHERE group_id = ? ORDER BY asset_id`, group.ID)
	if err != nil {
		return errors.Wrap(err, "error querying asset group members")
	}
	defer rows.Close()

	members := []string{}
	for rows.Next() {
		var assetID string
		if err := rows.Scan(&assetID); err != nil {
			return errors.Wrap(err, "error scanning asset group member")
		}
		members = append(members, assetID)
	}
	group.AssetIDs = members
	return rows.Err()
}
