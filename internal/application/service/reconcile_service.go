// Package service orchestrates the reconcile pipeline: document
// upload, statement extraction, matching against the bank feed,
// vendor resolution and persistence.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ledgermatch/ledgermatch-backend/internal/adapters/extraction"
	"github.com/ledgermatch/ledgermatch-backend/internal/adapters/qbo"
	"github.com/ledgermatch/ledgermatch-backend/internal/domain/reconcile"
	"github.com/ledgermatch/ledgermatch-backend/internal/domain/vendor"
	"github.com/ledgermatch/ledgermatch-backend/internal/infrastructure/analytics"
	"github.com/ledgermatch/ledgermatch-backend/internal/infrastructure/config"
	"github.com/ledgermatch/ledgermatch-backend/internal/infrastructure/objectstore"
	"github.com/ledgermatch/ledgermatch-backend/internal/infrastructure/storage"
)

// JobStatus represents the current state of a reconcile job.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

// Job staleness thresholds
const (
	// DefaultJobStaleThreshold is how long a job can go without progress
	// updates before being considered hung.
	DefaultJobStaleThreshold = 15 * time.Minute

	// DefaultJobMaxDuration is the maximum time a job can run before
	// being forcefully marked as failed.
	DefaultJobMaxDuration = 1 * time.Hour
)

// ReconcileRequest holds parameters for starting a reconcile job.
type ReconcileRequest struct {
	DocumentID string
	AccountID  string
}

// JobProgress holds real-time progress information.
type JobProgress struct {
	CurrentPhase string // pending, fetching_document, extracting, fetching_feed, matching, resolving_vendors, persisting, completed, failed
	Total        int
	Processed    int
	LastUpdate   time.Time
}

// ReconcileJob represents a running or completed reconcile job.
type ReconcileJob struct {
	ID          string
	DocumentID  string
	RunID       string
	Status      JobStatus
	Request     ReconcileRequest
	StartedAt   time.Time
	CompletedAt *time.Time
	Progress    JobProgress
	Summary     *reconcile.MatchSummary
	Error       error
	cancelFunc  context.CancelFunc
}

// ReconcileService manages reconcile operations.
type ReconcileService struct {
	cfg       *config.Config
	repo      storage.Repository
	gateway   qbo.Gateway
	extractor extraction.Extractor
	objects   objectstore.Store
	resolver  *vendor.Resolver
	tracker   *analytics.Tracker
	logger    *slog.Logger

	// Job management
	jobs      map[string]*ReconcileJob
	jobsMutex sync.RWMutex

	// Document-level locking (one reconcile per document at a time)
	docLocks   map[string]*sync.Mutex
	locksMutex sync.Mutex

	// Background cleanup
	cleanupStop chan struct{}
	cleanupDone chan struct{}
}

// NewReconcileService creates a new reconcile service.
func NewReconcileService(
	cfg *config.Config,
	repo storage.Repository,
	gateway qbo.Gateway,
	extractor extraction.Extractor,
	objects objectstore.Store,
	tracker *analytics.Tracker,
	logger *slog.Logger,
) *ReconcileService {
	return &ReconcileService{
		cfg:       cfg,
		repo:      repo,
		gateway:   gateway,
		extractor: extractor,
		objects:   objects,
		resolver:  vendor.NewResolver(cfg.Matching.VendorSimilarityThreshold),
		tracker:   tracker,
		logger:    logger,
		jobs:      make(map[string]*ReconcileJob),
		docLocks:  make(map[string]*sync.Mutex),
	}
}

// UploadDocument stores the document bytes and records it. The
// document starts in the uploaded state; reconciliation is a separate
// step.
func (s *ReconcileService) UploadDocument(ctx context.Context, filename, contentType, companyID string, data []byte) (*storage.Document, error) {
	if filename == "" {
		return nil, fmt.Errorf("filename is required")
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("document is empty")
	}

	docID := uuid.NewString()
	objectName := fmt.Sprintf("statements/%s/%s", docID, filename)

	uri, err := s.objects.Put(ctx, objectName, contentType, data)
	if err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}

	doc := &storage.Document{
		ID:          docID,
		Filename:    filename,
		ContentType: contentType,
		CompanyID:   companyID,
		Status:      storage.DocStatusUploaded,
		ObjectURI:   uri,
		UploadedAt:  time.Now().UTC(),
	}
	if err := s.repo.SaveDocument(doc); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}

	s.tracker.Incr(analytics.EventDocumentUploaded)
	s.logger.Info("document uploaded",
		"document_id", doc.ID,
		"filename", filename,
		"size_bytes", len(data),
	)
	return doc, nil
}

// StartReconcile starts a new reconcile job asynchronously.
// Note: The passed context is NOT used as the parent for the background
// job. Background jobs use context.Background() to avoid being
// cancelled when the HTTP request completes. Use CancelJob() to cancel
// a running job.
func (s *ReconcileService) StartReconcile(_ context.Context, req ReconcileRequest) (string, error) {
	if req.DocumentID == "" {
		return "", fmt.Errorf("document_id is required")
	}
	if req.AccountID == "" {
		return "", fmt.Errorf("account_id is required")
	}

	// Fail fast if the document doesn't exist.
	if _, err := s.repo.GetDocument(req.DocumentID); err != nil {
		return "", fmt.Errorf("document %s: %w", req.DocumentID, err)
	}

	if !s.tryLockDocument(req.DocumentID) {
		return "", fmt.Errorf("reconcile already running for document: %s", req.DocumentID)
	}

	jobID := uuid.NewString()
	jobCtx, cancel := context.WithCancel(context.Background())

	job := &ReconcileJob{
		ID:         jobID,
		DocumentID: req.DocumentID,
		Status:     StatusPending,
		Request:    req,
		StartedAt:  time.Now(),
		cancelFunc: cancel,
		Progress:   JobProgress{CurrentPhase: "pending", LastUpdate: time.Now()},
	}

	s.jobsMutex.Lock()
	s.jobs[jobID] = job
	s.jobsMutex.Unlock()

	go s.runReconcileJob(jobCtx, job)

	s.logger.Info("reconcile job started",
		"job_id", jobID,
		"document_id", req.DocumentID,
		"account_id", req.AccountID,
	)
	return jobID, nil
}

// GetJob retrieves a reconcile job by ID.
func (s *ReconcileService) GetJob(jobID string) (*ReconcileJob, error) {
	s.jobsMutex.RLock()
	defer s.jobsMutex.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}
	return job, nil
}

// ListActiveJobs returns all running or pending jobs.
func (s *ReconcileService) ListActiveJobs() []*ReconcileJob {
	s.jobsMutex.RLock()
	defer s.jobsMutex.RUnlock()

	var active []*ReconcileJob
	for _, job := range s.jobs {
		if job.Status == StatusPending || job.Status == StatusRunning {
			active = append(active, job)
		}
	}
	return active
}

// CancelJob cancels a running reconcile job.
func (s *ReconcileService) CancelJob(jobID string) error {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}
	if job.Status != StatusPending && job.Status != StatusRunning {
		return fmt.Errorf("job cannot be cancelled: status=%s", job.Status)
	}

	job.cancelFunc()
	job.Status = StatusCancelled
	now := time.Now()
	job.CompletedAt = &now
	job.Progress.CurrentPhase = "cancelled"
	job.Progress.LastUpdate = now

	s.logger.Info("reconcile job cancelled", "job_id", jobID)
	return nil
}

// runReconcileJob executes the pipeline in a background goroutine.
func (s *ReconcileService) runReconcileJob(ctx context.Context, job *ReconcileJob) {
	defer s.unlockDocument(job.DocumentID)

	s.setPhase(job.ID, StatusRunning, "fetching_document")

	summary, runID, err := s.reconcileDocument(ctx, job)
	if err != nil {
		if ctx.Err() == context.Canceled {
			// Already marked as cancelled in CancelJob
			return
		}
		s.failJob(job.ID, err)
		if uerr := s.repo.UpdateDocumentStatus(job.DocumentID, storage.DocStatusFailed, err.Error()); uerr != nil {
			s.logger.Error("failed to mark document failed", "document_id", job.DocumentID, "error", uerr)
		}
		return
	}

	s.completeJob(job.ID, runID, summary)
}

// completeJob marks a job as completed with its summary.
func (s *ReconcileService) completeJob(jobID, runID string, summary *reconcile.MatchSummary) {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	if job, exists := s.jobs[jobID]; exists {
		now := time.Now()
		job.Status = StatusCompleted
		job.CompletedAt = &now
		job.RunID = runID
		job.Summary = summary
		job.Progress.CurrentPhase = "completed"
		job.Progress.Processed = summary.Total
		job.Progress.LastUpdate = now
		s.logger.Info("reconcile job completed",
			"job_id", jobID,
			"run_id", runID,
			"total", summary.Total,
			"matched", summary.Matched,
			"match_rate", summary.MatchRate,
		)
	}
}

// failJob marks a job as failed with an error.
func (s *ReconcileService) failJob(jobID string, err error) {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	if job, exists := s.jobs[jobID]; exists {
		now := time.Now()
		job.Status = StatusFailed
		job.CompletedAt = &now
		job.Error = err
		job.Progress.CurrentPhase = "failed"
		job.Progress.LastUpdate = now
		s.logger.Error("reconcile job failed", "job_id", jobID, "error", err)
	}
}

// setPhase updates a job's status and progress phase.
func (s *ReconcileService) setPhase(jobID string, status JobStatus, phase string) {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	if job, exists := s.jobs[jobID]; exists {
		job.Status = status
		job.Progress.CurrentPhase = phase
		job.Progress.LastUpdate = time.Now()
	}
}

// tryLockDocument attempts to acquire the lock for a document.
func (s *ReconcileService) tryLockDocument(documentID string) bool {
	s.locksMutex.Lock()
	defer s.locksMutex.Unlock()

	if _, exists := s.docLocks[documentID]; !exists {
		s.docLocks[documentID] = &sync.Mutex{}
	}
	return s.docLocks[documentID].TryLock()
}

// unlockDocument releases the lock for a document.
func (s *ReconcileService) unlockDocument(documentID string) {
	s.locksMutex.Lock()
	defer s.locksMutex.Unlock()

	if lock, exists := s.docLocks[documentID]; exists {
		lock.Unlock()
	}
}

// CleanupOldJobs removes finished jobs older than maxAge.
func (s *ReconcileService) CleanupOldJobs(maxAge time.Duration) int {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, job := range s.jobs {
		if job.Status == StatusCompleted || job.Status == StatusFailed || job.Status == StatusCancelled {
			if job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
				delete(s.jobs, id)
				removed++
			}
		}
	}
	if removed > 0 {
		s.logger.Debug("cleaned up old reconcile jobs", "removed", removed)
	}
	return removed
}

// MarkStaleJobsAsFailed finds jobs that appear stuck and marks them as
// failed: running longer than maxDuration, or no progress update for
// staleThreshold.
func (s *ReconcileService) MarkStaleJobsAsFailed(staleThreshold, maxDuration time.Duration) int {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	now := time.Now()
	marked := 0
	for id, job := range s.jobs {
		if job.Status != StatusRunning && job.Status != StatusPending {
			continue
		}

		var reason string
		switch {
		case now.Sub(job.StartedAt) > maxDuration:
			reason = fmt.Sprintf("exceeded max duration of %v", maxDuration)
		case now.Sub(job.Progress.LastUpdate) > staleThreshold:
			reason = fmt.Sprintf("no progress update for %v", now.Sub(job.Progress.LastUpdate).Round(time.Second))
		default:
			continue
		}

		if job.cancelFunc != nil {
			job.cancelFunc()
		}
		job.Status = StatusFailed
		job.CompletedAt = &now
		job.Error = fmt.Errorf("job marked as stale: %s", reason)
		job.Progress.CurrentPhase = "failed"
		job.Progress.LastUpdate = now

		s.logger.Warn("marked stale job as failed", "job_id", id, "reason", reason)
		marked++
	}
	return marked
}

// StartBackgroundCleanup starts a goroutine that periodically marks
// stale jobs as failed and removes old finished jobs. Call
// StopBackgroundCleanup to stop it.
func (s *ReconcileService) StartBackgroundCleanup(checkInterval time.Duration) {
	s.cleanupStop = make(chan struct{})
	s.cleanupDone = make(chan struct{})

	go func() {
		defer close(s.cleanupDone)

		ticker := time.NewTicker(checkInterval)
		defer ticker.Stop()

		for {
			select {
			case <-s.cleanupStop:
				return
			case <-ticker.C:
				if marked := s.MarkStaleJobsAsFailed(DefaultJobStaleThreshold, DefaultJobMaxDuration); marked > 0 {
					s.logger.Info("marked stale jobs as failed", "count", marked)
				}
				if cleaned := s.CleanupOldJobs(24 * time.Hour); cleaned > 0 {
					s.logger.Debug("cleaned up old jobs", "count", cleaned)
				}
			}
		}
	}()
}

// StopBackgroundCleanup stops the background cleanup goroutine and
// blocks until it has exited.
func (s *ReconcileService) StopBackgroundCleanup() {
	if s.cleanupStop == nil {
		return
	}
	close(s.cleanupStop)
	<-s.cleanupDone
}
