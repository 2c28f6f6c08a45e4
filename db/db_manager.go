package db

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"github.com/RustySnipers/optio/models"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// DBManager manages database access with retry handling for SQLITE_BUSY.
// WAL mode supports concurrent reads, so there is no global serialization.
type DBManager struct {
	db     *sql.DB
	mutex  sync.RWMutex
	closed bool
}

// NewDBManager creates a new database manager
func NewDBManager(db *sql.DB) *DBManager {
	log.Debug().Msg("Database manager initialized with connection pooling")
	return &DBManager{db: db}
}

// GetDB returns the database connection for direct use
func (m *DBManager) GetDB() *sql.DB {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if m.closed {
		return nil
	}
	return m.db
}

// ExecuteWithRetry executes a database operation with retry logic for SQLITE_BUSY errors
func (m *DBManager) ExecuteWithRetry(operation func(*sql.DB) error) error {
	db := m.GetDB()
	if db == nil {
		return errors.New("database connection is closed")
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			// Exponential backoff: 10ms, 100ms, 1s
			time.Sleep(time.Duration(10*(1<<uint(attempt-1))) * time.Millisecond)
		}

		err := operation(db)
		if err == nil {
			return nil
		}

		lastErr = err
		if !isBusyError(err) {
			break
		}
	}

	return lastErr
}

// ExecuteWithRetryAndResult executes a database operation with retry logic and returns a result
func (m *DBManager) ExecuteWithRetryAndResult(operation func(*sql.DB) (interface{}, error)) (interface{}, error) {
	db := m.GetDB()
	if db == nil {
		return nil, errors.New("database connection is closed")
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(10*(1<<uint(attempt-1))) * time.Millisecond)
		}

		result, err := operation(db)
		if err == nil {
			return result, nil
		}

		lastErr = err
		if !isBusyError(err) {
			break
		}
	}

	return nil, lastErr
}

// isBusyError checks if an error is a SQLite busy error that should be retried
func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database is busy")
}

// Close closes the database manager
func (m *DBManager) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.closed {
		return nil
	}

	m.closed = true
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}

// Helper methods for repository operations that contend with scan writers

// CreateOrUpdateAsset upserts an asset with busy retry
func (m *DBManager) CreateOrUpdateAsset(repo AssetRepository, ctx context.Context, asset *models.Asset) (*models.Asset, error) {
	result, err := m.ExecuteWithRetryAndResult(func(db *sql.DB) (interface{}, error) {
		return repo.CreateOrUpdate(ctx, asset)
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.Asset), nil
}

// UpdateScan updates a scan job with busy retry
func (m *DBManager) UpdateScan(repo ScanRepository, ctx context.Context, scan *models.ScanJob) error {
	return m.ExecuteWithRetry(func(db *sql.DB) error {
		return repo.Update(ctx, scan)
	})
}

// CreateScript persists a generated script with busy retry
func (m *DBManager) CreateScript(repo ScriptRepository, ctx context.Context, script *models.GeneratedScript) error {
	return m.ExecuteWithRetry(func(db *sql.DB) error {
		return repo.Create(ctx, script)
	})
}
