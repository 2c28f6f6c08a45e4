package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/RustySnipers/optio/models"

	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")
)

// Repository defines a common interface for all repositories
type Repository interface {
	Close() error
}

// ClientRepository defines the interface for client engagement operations
type ClientRepository interface {
	Repository
	FindByID(ctx context.Context, id string) (*models.Client, error)
	FindByName(ctx context.Context, name string) (*models.Client, error)
	FindAll(ctx context.Context) ([]*models.Client, error)
	CreateOrUpdate(ctx context.Context, client *models.Client) (*models.Client, error)
	Delete(ctx context.Context, id string) error
}

// ScriptRepository defines the interface for generated script operations
type ScriptRepository interface {
	Repository
	Create(ctx context.Context, script *models.GeneratedScript) error
	FindByID(ctx context.Context, id string) (*models.GeneratedScript, error)
	FindByClient(ctx context.Context, clientID string, limit int) ([]*models.GeneratedScript, error)
	Delete(ctx context.Context, id string) error
}

// ScanRepository defines the interface for scan job operations
type ScanRepository interface {
	Repository
	Create(ctx context.Context, scan *models.ScanJob) error
	Update(ctx context.Context, scan *models.ScanJob) error
	FindByID(ctx context.Context, id string) (*models.ScanJob, error)
	FindByClient(ctx context.Context, clientID string) ([]*models.ScanJob, error)
	FindByStatus(ctx context.Context, statuses ...models.ScanStatus) ([]*models.ScanJob, error)
	Delete(ctx context.Context, id string) error
}

// AssetRepository defines the interface for asset inventory operations
type AssetRepository interface {
	Repository
	FindByID(ctx context.Context, id string) (*models.Asset, error)
	FindByClientAndIP(ctx context.Context, clientID, ip string) (*models.Asset, error)
	FindByClientAndMAC(ctx context.Context, clientID, mac string) (*models.Asset, error)
	FindByClient(ctx context.Context, clientID string) ([]*models.Asset, error)
	CreateOrUpdate(ctx context.Context, asset *models.Asset) (*models.Asset, error)
	Delete(ctx context.Context, id string) error
}

// AssetGroupRepository defines the interface for asset group operations
type AssetGroupRepository interface {
	Repository
	FindByID(ctx context.Context, id string) (*models.AssetGroup, error)
	FindByClient(ctx context.Context, clientID string) ([]*models.AssetGroup, error)
	CreateOrUpdate(ctx context.Context, group *models.AssetGroup) (*models.AssetGroup, error)
	Delete(ctx context.Context, id string) error
}

// RepositoryFactory creates repositories
type RepositoryFactory struct {
	SQLiteDB *sql.DB
	DBName   string
}

// NewRepositoryFactory creates a new repository factory
func NewRepositoryFactory(sqliteDB *sql.DB, dbName string) *RepositoryFactory {
	return &RepositoryFactory{
		SQLiteDB: sqliteDB,
		DBName:   dbName,
	}
}

// NewClientRepository creates a new client repository
func (f *RepositoryFactory) NewClientRepository() ClientRepository {
	return NewSQLiteClientRepository(f.SQLiteDB)
}

// NewScriptRepository creates a new generated script repository
func (f *RepositoryFactory) NewScriptRepository() ScriptRepository {
	return NewSQLiteScriptRepository(f.SQLiteDB)
}

// NewScanRepository creates a new scan repository
func (f *RepositoryFactory) NewScanRepository() ScanRepository {
	return NewSQLiteScanRepository(f.SQLiteDB)
}

// NewAssetRepository creates a new asset repository
func (f *RepositoryFactory) NewAssetRepository() AssetRepository {
	return NewSQLiteAssetRepository(f.SQLiteDB)
}

// NewAssetGroupRepository creates a new asset group repository
func (f *RepositoryFactory) NewAssetGroupRepository() AssetGroupRepository {
	return NewSQLiteAssetGroupRepository(f.SQLiteDB)
}

// GenerateID generates a unique ID for a record
func GenerateID() string {
	return uuid.New().String()
}
