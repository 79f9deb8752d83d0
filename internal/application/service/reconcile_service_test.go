package service

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgermatch/ledgermatch-backend/internal/adapters/extraction"
	"github.com/ledgermatch/ledgermatch-backend/internal/adapters/qbo"
	"github.com/ledgermatch/ledgermatch-backend/internal/domain/reconcile"
	"github.com/ledgermatch/ledgermatch-backend/internal/domain/vendor"
	"github.com/ledgermatch/ledgermatch-backend/internal/infrastructure/analytics"
	"github.com/ledgermatch/ledgermatch-backend/internal/infrastructure/config"
	"github.com/ledgermatch/ledgermatch-backend/internal/infrastructure/objectstore"
	"github.com/ledgermatch/ledgermatch-backend/internal/infrastructure/storage"
)

type fixture struct {
	svc       *ReconcileService
	repo      *storage.MockRepository
	gateway   *qbo.MockGateway
	extractor *extraction.MockExtractor
	objects   *objectstore.MockStore
	tracker   *analytics.Tracker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		repo:      storage.NewMockRepository(),
		gateway:   &qbo.MockGateway{},
		extractor: &extraction.MockExtractor{},
		objects:   objectstore.NewMockStore(),
		tracker:   analytics.NewTracker(),
	}
	cfg := config.LoadFromEnv()
	f.svc = NewReconcileService(cfg, f.repo, f.gateway, f.extractor, f.objects,
		f.tracker, slog.New(slog.DiscardHandler))
	return f
}

func (f *fixture) seedDocument(t *testing.T) *storage.Document {
	t.Helper()
	doc := &storage.Document{
		ID:          "doc-1",
		Filename:    "january.pdf",
		ContentType: "application/pdf",
		Status:      storage.DocStatusUploaded,
		ObjectURI:   "gs://mock-bucket/statements/doc-1/january.pdf",
		UploadedAt:  time.Now().UTC(),
	}
	require.NoError(t, f.repo.SaveDocument(doc))
	f.objects.Seed(doc.ObjectURI, []byte("%PDF-1.4 fake"))
	return doc
}

func waitForJob(t *testing.T, svc *ReconcileService, jobID string) *ReconcileJob {
	t.Helper()
	require.Eventually(t, func() bool {
		job, err := svc.GetJob(jobID)
		if err != nil {
			return false
		}
		return job.Status == StatusCompleted || job.Status == StatusFailed
	}, 5*time.Second, 10*time.Millisecond)

	job, err := svc.GetJob(jobID)
	require.NoError(t, err)
	return job
}

func TestUploadDocument(t *testing.T) {
	f := newFixture(t)

	doc, err := f.svc.UploadDocument(context.Background(), "statement.pdf", "application/pdf", "co-1", []byte("pdf"))
	require.NoError(t, err)

	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, storage.DocStatusUploaded, doc.Status)
	assert.Contains(t, doc.ObjectURI, "gs://mock-bucket/statements/")
	assert.True(t, f.repo.SaveDocumentCalled)
	assert.Equal(t, int64(1), f.tracker.Count(analytics.EventDocumentUploaded))
}

func TestUploadDocument_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.UploadDocument(context.Background(), "", "application/pdf", "", []byte("pdf"))
	assert.Error(t, err)

	_, err = f.svc.UploadDocument(context.Background(), "x.pdf", "application/pdf", "", nil)
	assert.Error(t, err)
}

func TestReconcile_EndToEnd(t *testing.T) {
	f := newFixture(t)
	f.seedDocument(t)

	txnDate := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	f.extractor.Statement = &extraction.StatementData{
		Transactions: []*reconcile.ExtractedTransaction{
			{
				Date:             txnDate,
				Description:      "AMAZON.COM LLC",
				Amount:           -150.00,
				Type:             reconcile.TypeDebit,
				VendorSuggestion: "Amazon",
			},
			{
				Date:        txnDate.AddDate(0, 0, 3),
				Description: "Mystery charge",
				Amount:      -999.99,
				Type:        reconcile.TypeDebit,
			},
		},
	}
	f.gateway.Feed = []reconcile.FeedTransaction{
		{ID: "qbo_1", Date: txnDate, Amount: -150.00, Description: "Amazon Marketplace"},
	}
	f.gateway.Vendors = []vendor.Candidate{{ID: "v1", Name: "Amazon"}}

	jobID, err := f.svc.StartReconcile(context.Background(), ReconcileRequest{
		DocumentID: "doc-1", AccountID: "acct-9",
	})
	require.NoError(t, err)

	job := waitForJob(t, f.svc, jobID)
	require.Equal(t, StatusCompleted, job.Status)
	require.NotNil(t, job.Summary)

	assert.Equal(t, 2, job.Summary.Total)
	assert.Equal(t, 1, job.Summary.Matched)
	assert.Equal(t, 1, job.Summary.Unmatched)

	// Feed window spans the extracted dates padded by the tolerance.
	assert.True(t, f.gateway.GetBankFeedCalled)
	assert.Equal(t, "acct-9", f.gateway.LastAccountID)
	assert.True(t, f.gateway.LastFeedStart.Before(txnDate))
	assert.True(t, f.gateway.LastFeedEnd.After(txnDate.AddDate(0, 0, 3)))

	// Records persisted with the vendor resolved against the candidates.
	require.True(t, f.repo.SaveMatchRecordsCalled)
	records, err := f.repo.GetMatchRecords("doc-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "v1", records[0].VendorID)
	assert.Equal(t, "qbo_1", records[0].FeedTransactionID)
	assert.NotEmpty(t, records[0].Reasons)

	doc, err := f.repo.GetDocument("doc-1")
	require.NoError(t, err)
	assert.Equal(t, storage.DocStatusReconciled, doc.Status)

	run, err := f.repo.GetRun(job.RunID)
	require.NoError(t, err)
	assert.Equal(t, storage.RunStatusCompleted, run.Status)
	assert.Equal(t, "50.0%", run.MatchRate)

	assert.Equal(t, int64(1), f.tracker.Count(analytics.EventMatchesFound))
	assert.Equal(t, int64(2), f.tracker.Count(analytics.EventTransactionsTotal))
}

func TestReconcile_CreatesVendorWhenNoCandidateClose(t *testing.T) {
	f := newFixture(t)
	f.seedDocument(t)

	txnDate := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	f.extractor.Statement = &extraction.StatementData{
		Transactions: []*reconcile.ExtractedTransaction{
			{Date: txnDate, Description: "JOES DINER LLC", Amount: -45.00, Type: reconcile.TypeDebit},
		},
	}
	f.gateway.Feed = []reconcile.FeedTransaction{
		{ID: "qbo_1", Date: txnDate, Amount: -45.00, Description: "JOES DINER LLC"},
	}
	f.gateway.Vendors = nil

	jobID, err := f.svc.StartReconcile(context.Background(), ReconcileRequest{
		DocumentID: "doc-1", AccountID: "acct-9",
	})
	require.NoError(t, err)

	job := waitForJob(t, f.svc, jobID)
	require.Equal(t, StatusCompleted, job.Status)

	// Vendor created with a cleaned-up name and mirrored locally.
	require.Len(t, f.gateway.CreatedVendors, 1)
	assert.Equal(t, "Joes Diner", f.gateway.CreatedVendors[0])
	assert.True(t, f.repo.SaveVendorCalled)
	assert.Equal(t, int64(1), f.tracker.Count(analytics.EventVendorsCreated))
}

func TestReconcile_UploadsCheckImageAttachment(t *testing.T) {
	f := newFixture(t)
	f.seedDocument(t)

	imgRef := "gs://mock-bucket/checks/doc-1/check-1042.png"
	f.objects.Seed(imgRef, []byte("png"))

	txnDate := time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)
	f.extractor.Statement = &extraction.StatementData{
		Transactions: []*reconcile.ExtractedTransaction{
			{Date: txnDate, Description: "CHECK 1042", Amount: -500.00, Type: reconcile.TypeCheck, CheckNumber: "1042"},
		},
		CheckImages: []reconcile.CheckImage{
			{CheckNumber: "1042", Payee: "Acme", ImageRef: imgRef},
		},
	}
	f.gateway.Feed = []reconcile.FeedTransaction{
		{ID: "qbo_7", Date: txnDate, Amount: -500.00, Description: "Check 1042", CheckNumber: "1042"},
	}

	jobID, err := f.svc.StartReconcile(context.Background(), ReconcileRequest{
		DocumentID: "doc-1", AccountID: "acct-9",
	})
	require.NoError(t, err)

	job := waitForJob(t, f.svc, jobID)
	require.Equal(t, StatusCompleted, job.Status)

	require.Len(t, f.gateway.UploadedFiles, 1)
	assert.Equal(t, "check-1042.png", f.gateway.UploadedFiles[0])
	assert.Equal(t, "qbo_7", f.gateway.LastUploadPurchase)

	records, err := f.repo.GetMatchRecords("doc-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].HasCheckImage)
	assert.True(t, records[0].AttachmentUploaded)
}

func TestReconcile_ExtractionFailureMarksDocumentFailed(t *testing.T) {
	f := newFixture(t)
	f.seedDocument(t)
	f.extractor.Err = fmt.Errorf("model unavailable")

	jobID, err := f.svc.StartReconcile(context.Background(), ReconcileRequest{
		DocumentID: "doc-1", AccountID: "acct-9",
	})
	require.NoError(t, err)

	job := waitForJob(t, f.svc, jobID)
	require.Equal(t, StatusFailed, job.Status)
	require.Error(t, job.Error)
	assert.Contains(t, job.Error.Error(), "model unavailable")

	doc, err := f.repo.GetDocument("doc-1")
	require.NoError(t, err)
	assert.Equal(t, storage.DocStatusFailed, doc.Status)

	// The run records the failure too.
	require.True(t, f.repo.CompleteRunCalled)
	assert.Equal(t, storage.RunStatusFailed, f.repo.LastCompletedRun.Status)
}

func TestStartReconcile_UnknownDocument(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.StartReconcile(context.Background(), ReconcileRequest{
		DocumentID: "missing", AccountID: "acct-9",
	})
	assert.Error(t, err)
}

func TestStartReconcile_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.StartReconcile(context.Background(), ReconcileRequest{AccountID: "acct-9"})
	assert.Error(t, err)

	_, err = f.svc.StartReconcile(context.Background(), ReconcileRequest{DocumentID: "doc-1"})
	assert.Error(t, err)
}

func TestStartReconcile_DocumentLockedWhileRunning(t *testing.T) {
	f := newFixture(t)
	f.seedDocument(t)

	// Slow extraction keeps the first job running.
	block := make(chan struct{})
	f.extractor.Statement = &extraction.StatementData{
		Transactions: []*reconcile.ExtractedTransaction{
			{Date: time.Now().UTC(), Description: "x", Amount: -1, Type: reconcile.TypeDebit},
		},
	}
	slow := &slowExtractor{inner: f.extractor, release: block, started: make(chan struct{})}
	f.svc.extractor = slow

	jobID, err := f.svc.StartReconcile(context.Background(), ReconcileRequest{
		DocumentID: "doc-1", AccountID: "acct-9",
	})
	require.NoError(t, err)

	<-slow.started

	_, err = f.svc.StartReconcile(context.Background(), ReconcileRequest{
		DocumentID: "doc-1", AccountID: "acct-9",
	})
	assert.ErrorContains(t, err, "already running")

	close(block)
	waitForJob(t, f.svc, jobID)
}

func TestCleanupOldJobs(t *testing.T) {
	f := newFixture(t)

	old := time.Now().Add(-48 * time.Hour)
	f.svc.jobs["stale"] = &ReconcileJob{
		ID: "stale", Status: StatusCompleted, CompletedAt: &old,
	}
	f.svc.jobs["fresh"] = &ReconcileJob{
		ID: "fresh", Status: StatusRunning,
		Progress: JobProgress{LastUpdate: time.Now()},
	}

	removed := f.svc.CleanupOldJobs(24 * time.Hour)
	assert.Equal(t, 1, removed)

	_, err := f.svc.GetJob("stale")
	assert.Error(t, err)
	_, err = f.svc.GetJob("fresh")
	assert.NoError(t, err)
}

func TestMarkStaleJobsAsFailed(t *testing.T) {
	f := newFixture(t)

	f.svc.jobs["hung"] = &ReconcileJob{
		ID:         "hung",
		Status:     StatusRunning,
		StartedAt:  time.Now().Add(-10 * time.Minute),
		Progress:   JobProgress{LastUpdate: time.Now().Add(-20 * time.Minute)},
		cancelFunc: func() {},
	}
	f.svc.jobs["healthy"] = &ReconcileJob{
		ID:        "healthy",
		Status:    StatusRunning,
		StartedAt: time.Now(),
		Progress:  JobProgress{LastUpdate: time.Now()},
	}

	marked := f.svc.MarkStaleJobsAsFailed(15*time.Minute, time.Hour)
	assert.Equal(t, 1, marked)

	hung, err := f.svc.GetJob("hung")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, hung.Status)
	assert.Error(t, hung.Error)

	healthy, err := f.svc.GetJob("healthy")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, healthy.Status)
}

// slowExtractor blocks ExtractStatement until released, so tests can
// observe a job mid-flight.
type slowExtractor struct {
	inner   extraction.Extractor
	release chan struct{}
	started chan struct{}
}

func (s *slowExtractor) ExtractStatement(ctx context.Context, data []byte, contentType string) (*extraction.StatementData, error) {
	close(s.started)
	<-s.release
	return s.inner.ExtractStatement(ctx, data, contentType)
}
