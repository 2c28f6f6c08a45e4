package scanner

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/RustySnipers/optio/db"
	"github.com/RustySnipers/optio/internal/apperror"
	"github.com/RustySnipers/optio/internal/config"
	"github.com/RustySnipers/optio/internal/validation"
	"github.com/RustySnipers/optio/models"
)

var argsValidator = validation.NewArgsValidator()

// Reconciler folds completed scan results into the asset inventory.
// Implemented by the inventory service; an interface here keeps the
// scanner free of inventory internals.
type Reconciler interface {
	ReconcileScan(ctx context.Context, scan *models.ScanJob, results models.ScanResults) error
}

// ScannerService owns the scan job lifecycle: queueing, execution,
// status transitions, and cancellation. Jobs run on a fixed worker pool
// so concurrent probe load stays bounded.
type ScannerService struct {
	Config     *config.Config
	Repository db.ScanRepository
	Reconciler Reconciler
	dbManager  *db.DBManager

	jobs    chan string
	mu      sync.Mutex
	running map[string]context.CancelFunc
	wg      sync.WaitGroup
	baseCtx context.Context
	stop    context.CancelFunc
}

// NewScannerService creates the scan executor. Call Start before
// submitting jobs and Stop during shutdown.
func NewScannerService(cfg *config.Config, repo db.ScanRepository, dbManager *db.DBManager, reconciler Reconciler) *ScannerService {
	return &ScannerService{
		Config:     cfg,
		Repository: repo,
		Reconciler: reconciler,
		dbManager:  dbManager,
		jobs:       make(chan string, 100),
		running:    make(map[string]context.CancelFunc),
	}
}

// Start launches the worker pool.
func (s *ScannerService) Start() {
	s.baseCtx, s.stop = context.WithCancel(context.Background())
	for i := 0; i < s.Config.MaxConcurrentScans; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	log.Info().Int("workers", s.Config.MaxConcurrentScans).Msg("Scan executor started")
}

// Stop cancels all running scans and waits for workers to drain.
func (s *ScannerService) Stop() {
	if s.stop != nil {
		s.stop()
	}
	s.mu.Lock()
	for _, cancel := range s.running {
		cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
	log.Info().Msg("Scan executor stopped")
}

// CreateScan validates the configuration, persists the job as queued,
// and enqueues it for execution.
func (s *ScannerService) CreateScan(ctx context.Context, clientID, name string, cfg models.ScanConfig) (*models.ScanJob, error) {
	if clientID == "" {
		return nil, apperror.Validation("Client ID is required")
	}
	if len(cfg.Targets) == 0 {
		return nil, apperror.Validation("At least one target is required")
	}
	for _, target := range cfg.Targets {
		if v := ValidateTarget(target); !v.Valid {
			return nil, apperror.Validation("Invalid target %q: %s", target, v.Error)
		}
	}
	for _, target := range cfg.ExcludeTargets {
		if v := ValidateTarget(target); !v.Valid {
			return nil, apperror.Validation("Invalid exclude target %q: %s", target, v.Error)
		}
	}
	if !KnownScanType(cfg.ScanType) {
		return nil, apperror.Validation("Unknown scan type: %s", cfg.ScanType)
	}
	if cfg.ScanType == models.ScanTypeCustom {
		if strings.TrimSpace(cfg.CustomArgs) == "" {
			return nil, apperror.Validation("Custom scans require customArgs")
		}
		if err := argsValidator.ValidateCustomArgs(strings.Fields(cfg.CustomArgs)); err != nil {
			return nil, apperror.Validation("Unsafe custom arguments: %v", err)
		}
	}
	if err := argsValidator.ValidatePortSpec(cfg.Ports); err != nil {
		return nil, apperror.Validation("Invalid port specification: %v", err)
	}
	if RequiresRoot(cfg.ScanType) && !HasRawSocketPrivilege() {
		return nil, apperror.New(apperror.KindCapability,
			"Scan type %s requires raw socket privileges; run as root or use ping_sweep", cfg.ScanType)
	}

	if name == "" {
		name = fmt.Sprintf("%s %s", cfg.ScanType, time.Now().UTC().Format("2006-01-02 15:04"))
	}

	scan := &models.ScanJob{
		ID:        db.GenerateID(),
		ClientID:  clientID,
		Name:      name,
		Config:    cfg,
		Status:    models.ScanQueued,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Repository.Create(ctx, scan); err != nil {
		return nil, apperror.Wrap(apperror.KindPersistence, err, "failed to persist scan")
	}

	select {
	case s.jobs <- scan.ID:
	default:
		// Queue full; fail the job rather than block the API
		scan.Status = models.ScanFailed
		scan.Error = "scan queue is full"
		_ = s.dbManager.UpdateScan(s.Repository, ctx, scan)
		return nil, apperror.New(apperror.KindProbeExecution, "scan queue is full, try again later")
	}

	log.Info().Str("scan_id", scan.ID).Str("client_id", clientID).
		Str("scan_type", string(cfg.ScanType)).Strs("targets", cfg.Targets).
		Msg("Scan queued")
	return scan, nil
}

// GetScan returns a scan job by ID.
func (s *ScannerService) GetScan(ctx context.Context, id string) (*models.ScanJob, error) {
	scan, err := s.Repository.FindByID(ctx, id)
	if err == db.ErrNotFound {
		return nil, apperror.NotFound("scan", id)
	}
	if err != nil {
		return nil, apperror.Wrap(apperror.KindPersistence, err, "failed to load scan")
	}
	return scan, nil
}

// ListScans returns all scan jobs for a client, newest first.
func (s *ScannerService) ListScans(ctx context.Context, clientID string) ([]*models.ScanJob, error) {
	scans, err := s.Repository.FindByClient(ctx, clientID)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindPersistence, err, "failed to list scans")
	}
	return scans, nil
}

// CancelScan stops a queued or running scan. Queued jobs go straight to
// cancelled; running jobs get their process context cancelled and the
// worker records the terminal state.
func (s *ScannerService) CancelScan(ctx context.Context, id string) (*models.ScanJob, error) {
	scan, err := s.GetScan(ctx, id)
	if err != nil {
		return nil, err
	}

	switch scan.Status {
	case models.ScanQueued:
		scan.Status = models.ScanCancelled
		now := time.Now().UTC()
		scan.CompletedAt = &now
		if err := s.dbManager.UpdateScan(s.Repository, ctx, scan); err != nil {
			return nil, apperror.Wrap(apperror.KindPersistence, err, "failed to cancel scan")
		}
		log.Info().Str("scan_id", id).Msg("Queued scan cancelled")
		return scan, nil
	case models.ScanRunning:
		s.mu.Lock()
		cancel, ok := s.running[id]
		s.mu.Unlock()
		if ok {
			cancel()
		}
		log.Info().Str("scan_id", id).Msg("Running scan cancellation requested")
		return scan, nil
	default:
		return nil, apperror.Validation("Scan %s is already %s", id, scan.Status)
	}
}

// DeleteScan removes a terminal scan record. Active scans must be
// cancelled first.
func (s *ScannerService) DeleteScan(ctx context.Context, id string) error {
	scan, err := s.GetScan(ctx, id)
	if err != nil {
		return err
	}
	if !scan.Status.Terminal() {
		return apperror.Validation("Cannot delete scan in %s state; cancel it first", scan.Status)
	}
	if err := s.Repository.Delete(ctx, id); err != nil {
		return apperror.Wrap(apperror.KindPersistence, err, "failed to delete scan")
	}
	return nil
}

func (s *ScannerService) worker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.baseCtx.Done():
			return
		case scanID := <-s.jobs:
			s.execute(scanID)
		}
	}
}

// execute runs one scan job end to end. Status transitions are
// monotonic: the job is re-read before starting so a cancel that landed
// while it sat in the queue wins.
func (s *ScannerService) execute(scanID string) {
	ctx := s.baseCtx

	scan, err := s.Repository.FindByID(ctx, scanID)
	if err != nil {
		log.Error().Str("scan_id", scanID).Err(err).Msg("Failed to load queued scan")
		return
	}
	if scan.Status != models.ScanQueued {
		log.Debug().Str("scan_id", scanID).Str("status", string(scan.Status)).
			Msg("Skipping scan no longer queued")
		return
	}

	now := time.Now().UTC()
	scan.Status = models.ScanRunning
	scan.StartedAt = &now
	if err := s.dbManager.UpdateScan(s.Repository, ctx, scan); err != nil {
		log.Error().Str("scan_id", scanID).Err(err).Msg("Failed to mark scan running")
		return
	}

	runCtx, cancel := context.WithTimeout(ctx, s.Config.ScanTimeout)
	s.mu.Lock()
	s.running[scanID] = cancel
	s.mu.Unlock()
	defer func() {
		cancel()
		s.mu.Lock()
		delete(s.running, scanID)
		s.mu.Unlock()
	}()

	args := BuildArgs(scan.Config)
	log.Info().Str("scan_id", scanID).Str("command", PreviewCommand(s.Config.NmapBinary, scan.Config)).
		Msg("Scan started")

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, s.Config.NmapBinary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	runErr := cmd.Run()

	done := time.Now().UTC()
	scan.CompletedAt = &done

	switch {
	case runCtx.Err() == context.Canceled:
		scan.Status = models.ScanCancelled
		log.Info().Str("scan_id", scanID).Msg("Scan cancelled")
	case runCtx.Err() == context.DeadlineExceeded:
		scan.Status = models.ScanFailed
		scan.Error = fmt.Sprintf("scan timed out after %s", s.Config.ScanTimeout)
		log.Warn().Str("scan_id", scanID).Msg("Scan timed out")
	case runErr != nil:
		scan.Status = models.ScanFailed
		scan.Error = probeError(runErr, stderr.String())
		log.Error().Str("scan_id", scanID).Str("error", scan.Error).Msg("Scan failed")
	default:
		scan.Status = models.ScanCompleted
		scan.RawOutput = stdout.String()
		scan.Progress = 100
		log.Info().Str("scan_id", scanID).Msg("Scan completed")
	}

	if err := s.dbManager.UpdateScan(s.Repository, ctx, scan); err != nil {
		log.Error().Str("scan_id", scanID).Err(err).Msg("Failed to persist scan outcome")
		return
	}

	if scan.Status == models.ScanCompleted && s.Reconciler != nil {
		results := ParseResults(scan.ID, scan.RawOutput)
		if err := s.Reconciler.ReconcileScan(ctx, scan, results); err != nil {
			log.Error().Str("scan_id", scanID).Err(err).Msg("Asset reconciliation failed")
		}
	}
}

func probeError(runErr error, stderr string) string {
	stderr = strings.TrimSpace(stderr)
	if stderr != "" {
		if len(stderr) > 500 {
			stderr = stderr[:500]
		}
		return fmt.Sprintf("%v: %s", runErr, stderr)
	}
	return runErr.Error()
}
