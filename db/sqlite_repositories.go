package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/RustySnipers/optio/models"

	"github.com/pkg/errors"
)

// SQLiteClientRepository implements the ClientRepository interface for SQLite
type SQLiteClientRepository struct {
	db *sql.DB
}

// NewSQLiteClientRepository creates a new SQLiteClientRepository
func NewSQLiteClientRepository(db *sql.DB) *SQLiteClientRepository {
	return &SQLiteClientRepository{db: db}
}

// Close closes the database connection
func (r *SQLiteClientRepository) Close() error {
	return r.db.Close()
}

// FindByID finds a client by ID
func (r *SQLiteClientRepository) FindByID(ctx context.Context, id string) (*models.Client, error) {
	query := `SELECT id, name, created_at, updated_at FROM clients WHERE id = ?`
	return r.scanClient(r.db.QueryRowContext(ctx, query, id))
}

// FindByName finds a client by name
func (r *SQLiteClientRepository) FindByName(ctx context.Context, name string) (*models.Client, error) {
	query := `SELECT id, name, created_at, updated_at FROM clients WHERE name = ?`
	return r.scanClient(r.db.QueryRowContext(ctx, query, name))
}

// FindAll returns all clients
func (r *SQLiteClientRepository) FindAll(ctx context.Context) ([]*models.Client, error) {
	query := `SELECT id, name, created_at, updated_at FROM clients ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "error querying clients")
	}
	defer rows.Close()

	var clients []*models.Client
	for rows.Next() {
		client, err := r.scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, client)
	}

	return clients, rows.Err()
}

// CreateOrUpdate creates or updates a client
func (r *SQLiteClientRepository) CreateOrUpdate(ctx context.Context, client *models.Client) (*models.Client, error) {
	if client.ID == "" {
		client.ID = GenerateID()
	}

	_, err := r.FindByID(ctx, client.ID)
	if err != nil && err != ErrNotFound {
		return nil, err
	}

	now := time.Now()
	client.UpdatedAt = now

	if err == ErrNotFound {
		if client.CreatedAt.IsZero() {
			client.CreatedAt = now
		}
		query := `INSERT INTO clients (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`
		_, err := r.db.ExecContext(ctx, query, client.ID, client.Name,
			client.CreatedAt.Format(time.RFC3339), now.Format(time.RFC3339))
		if err != nil {
			return nil, errors.Wrap(err, "error inserting client")
		}
	} else {
		query := `UPDATE clients SET name = ?, updated_at = ? WHERE id = ?`
		_, err := r.db.ExecContext(ctx, query, client.Name, now.Format(time.RFC3339), client.ID)
		if err != nil {
			return nil, errors.Wrap(err, "error updating client")
		}
	}

	return client, nil
}

// Delete removes a client by ID
func (r *SQLiteClientRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM clients WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "error deleting client")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "error getting rows affected")
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *SQLiteClientRepository) scanClient(row rowScanner) (*models.Client, error) {
	var client models.Client
	var createdAtStr, updatedAtStr string
	err := row.Scan(&client.ID, &client.Name, &createdAtStr, &updatedAtStr)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "error scanning client")
	}
	client.CreatedAt = parseTimestamp(createdAtStr)
	client.UpdatedAt = parseTimestamp(updatedAtStr)
	return &client, nil
}

// parseTimestamp parses an RFC3339 timestamp column, returning the zero
// time for empty or malformed values
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if parsed, err := time.Parse(time.RFC3339, s); err == nil {
		return parsed
	}
	return time.Time{}
}

// SQLiteScriptRepository implements the ScriptRepository interface for SQLite
type SQLiteScriptRepository struct {
	db *sql.DB
}

// NewSQLiteScriptRepository creates a new SQLiteScriptRepository
func NewSQLiteScriptRepository(db *sql.DB) *SQLiteScriptRepository {
	return &SQLiteScriptRepository{db: db}
}

// Close closes the database connection
func (r *SQLiteScriptRepository) Close() error {
	return r.db.Close()
}

// Create persists a generated script
func (r *SQLiteScriptRepository) Create(ctx context.Context, script *models.GeneratedScript) error {
	warningsJSON, err := json.Marshal(script.Warnings)
	if err != nil {
		return errors.Wrap(err, "error marshaling script warnings")
	}

	query := `INSERT INTO generated_scripts (id, client_id, template, content, output_path, warnings, generated_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query, script.ID, script.ClientID, script.Template,
		script.Content, script.OutputPath, string(warningsJSON), script.GeneratedAt.Format(time.RFC3339))
	if err != nil {
		return errors.Wrap(err, "error inserting generated script")
	}
	return nil
}

// FindByID finds a generated script by ID
func (r *SQLiteScriptRepository) FindByID(ctx context.Context, id string) (*models.GeneratedScript, error) {
	query := `SELECT id, client_id, template, content, COALESCE(output_path, ''), COALESCE(warnings, '[]'), generated_at
	          FROM generated_scripts WHERE id = ?`
	return r.scanScript(r.db.QueryRowContext(ctx, query, id))
}

// FindByClient returns the most recent generated scripts for a client
func (r *SQLiteScriptRepository) FindByClient(ctx context.Context, clientID string, limit int) ([]*models.GeneratedScript, error) {
	query := `SELECT id, client_id, template, content, COALESCE(output_path, ''), COALESCE(warnings, '[]'), generated_at
	          FROM generated_scripts WHERE client_id = ? ORDER BY generated_at DESC`
	args := []interface{}{clientID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "error querying generated scripts")
	}
	defer rows.Close()

	var scripts []*models.GeneratedScript
	for rows.Next() {
		script, err := r.scanScript(rows)
		if err != nil {
			return nil, err
		}
		scripts = append(scripts, script)
	}

	return scripts, rows.Err()
}

// Delete removes a generated script by ID
func (r *SQLiteScriptRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM generated_scripts WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "error deleting generated script")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "error getting rows affected")
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteScriptRepository) scanScript(row rowScanner) (*models.GeneratedScript, error) {
	var script models.GeneratedScript
	var warningsJSON, generatedAtStr string
	err := row.Scan(&script.ID, &script.ClientID, &script.Template, &script.Content,
		&script.OutputPath, &warningsJSON, &generatedAtStr)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "error scanning generated script")
	}

	if err := json.Unmarshal([]byte(warningsJSON), &script.Warnings); err != nil {
		return nil, errors.Wrap(err, "error unmarshaling script warnings")
	}
	script.GeneratedAt = parseTimestamp(generatedAtStr)
	return &script, nil
}

// SQLiteScanRepository implements the ScanRepository interface for SQLite
type SQLiteScanRepository struct {
	db *sql.DB
}

// NewSQLiteScanRepository creates a new SQLiteScanRepository
func NewSQLiteScanRepository(db *sql.DB) *SQLiteScanRepository {
	return &SQLiteScanRepository{db: db}
}

// Close closes the database connection
func (r *SQLiteScanRepository) Close() error {
	return r.db.Close()
}

const scanColumns = `id, client_id, name, config, status, COALESCE(progress, 0), COALESCE(error, ''),
	COALESCE(raw_output, ''), created_at, COALESCE(started_at, ''), COALESCE(completed_at, '')`

// Create persists a new scan job
func (r *SQLiteScanRepository) Create(ctx context.Context, scan *models.ScanJob) error {
	if scan.ID == "" {
		scan.ID = GenerateID()
	}
	if scan.CreatedAt.IsZero() {
		scan.CreatedAt = time.Now()
	}

	configJSON, err := json.Marshal(scan.Config)
	if err != nil {
		return errors.Wrap(err, "error marshaling scan config")
	}

	query := `INSERT INTO scans (id, client_id, name, config, status, progress, error, raw_output, created_at, started_at, completed_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query, scan.ID, scan.ClientID, scan.Name, string(configJSON),
		string(scan.Status), scan.Progress, scan.Error, scan.RawOutput,
		scan.CreatedAt.Format(time.RFC3339), formatNullableTime(scan.StartedAt), formatNullableTime(scan.CompletedAt))
	if err != nil {
		return errors.Wrap(err, "error inserting scan")
	}
	return nil
}

// Update rewrites the mutable fields of a scan job
func (r *SQLiteScanRepository) Update(ctx context.Context, scan *models.ScanJob) error {
	configJSON, err := json.Marshal(scan.Config)
	if err != nil {
		return errors.Wrap(err, "error marshaling scan config")
	}

	query := `UPDATE scans SET name = ?, config = ?, status = ?, progress = ?, error = ?, raw_output = ?,
	          started_at = ?, completed_at = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, scan.Name, string(configJSON), string(scan.Status),
		scan.Progress, scan.Error, scan.RawOutput,
		formatNullableTime(scan.StartedAt), formatNullableTime(scan.CompletedAt), scan.ID)
	if err != nil {
		return errors.Wrap(err, "error updating scan")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "error getting rows affected")
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// FindByID finds a scan by ID
func (r *SQLiteScanRepository) FindByID(ctx context.Context, id string) (*models.ScanJob, error) {
	query := `SELECT ` + scanColumns + ` FROM scans WHERE id = ?`
	return r.scanScan(r.db.QueryRowContext(ctx, query, id))
}

// FindByClient returns all scans for a client, newest first
func (r *SQLiteScanRepository) FindByClient(ctx context.Context, clientID string) ([]*models.ScanJob, error) {
	query := `SELECT ` + scanColumns + ` FROM scans WHERE client_id = ? ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, clientID)
	if err != nil {
		return nil, errors.Wrap(err, "error querying scans")
	}
	defer rows.Close()

	return r.collectScans(rows)
}

// FindByStatus returns scans matching any of the given statuses
func (r *SQLiteScanRepository) FindByStatus(ctx context.Context, statuses ...models.ScanStatus) ([]*models.ScanJob, error) {
	if len(statuses) == 0 {
		return nil, nil
	}

	query := `SELECT ` + scanColumns + ` FROM scans WHERE status IN (?` +
		repeatPlaceholder(len(statuses)-1) + `) ORDER BY created_at`
	args := make([]interface{}, len(statuses))
	for i, s := range statuses {
		args[i] = string(s)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "error querying scans by status")
	}
	defer rows.Close()

	return r.collectScans(rows)
}

// Delete removes a scan by ID
func (r *SQLiteScanRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM scans WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "error deleting scan")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "error getting rows affected")
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteScanRepository) collectScans(rows *sql.Rows) ([]*models.ScanJob, error) {
	var scans []*models.ScanJob
	for rows.Next() {
		scan, err := r.scanScan(rows)
		if err != nil {
			return nil, err
		}
		scans = append(scans, scan)
	}
	return scans, rows.Err()
}

func (r *SQLiteScanRepository) scanScan(row rowScanner) (*models.ScanJob, error) {
	var scan models.ScanJob
	var configJSON, status, createdAtStr, startedAtStr, completedAtStr string
	err := row.Scan(&scan.ID, &scan.ClientID, &scan.Name, &configJSON, &status,
		&scan.Progress, &scan.Error, &scan.RawOutput, &createdAtStr, &startedAtStr, &completedAtStr)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "error scanning scan row")
	}

	if err := json.Unmarshal([]byte(configJSON), &scan.Config); err != nil {
		return nil, errors.Wrap(err, "error unmarshaling scan config")
	}
	scan.Status = models.ScanStatus(status)
	scan.CreatedAt = parseTimestamp(createdAtStr)
	scan.StartedAt = parseNullableTimestamp(startedAtStr)
	scan.CompletedAt = parseNullableTimestamp(completedAtStr)
	return &scan, nil
}

func formatNullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}

func parseNullableTimestamp(s string) *time.Time {
	if s == "" {
		return nil
	}
	if parsed, err := time.Parse(time.RFC3339, s); err == nil {
		return &parsed
	}
	return nil
}

func repeatPlaceholder(n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += ", ?"
	}
	return out
}
