package service

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/ledgermatch/ledgermatch-backend/internal/domain/reconcile"
	"github.com/ledgermatch/ledgermatch-backend/internal/domain/vendor"
	"github.com/ledgermatch/ledgermatch-backend/internal/infrastructure/analytics"
	"github.com/ledgermatch/ledgermatch-backend/internal/infrastructure/storage"
)

// reconcileDocument runs the full pipeline for one document: fetch,
// extract, match against the bank feed, resolve vendors, upload check
// image attachments and persist everything.
func (s *ReconcileService) reconcileDocument(ctx context.Context, job *ReconcileJob) (*reconcile.MatchSummary, string, error) {
	doc, err := s.repo.GetDocument(job.DocumentID)
	if err != nil {
		return nil, "", fmt.Errorf("load document: %w", err)
	}
	if err := s.repo.UpdateDocumentStatus(doc.ID, storage.DocStatusProcessing, ""); err != nil {
		return nil, "", fmt.Errorf("mark document processing: %w", err)
	}

	run := &storage.ReconcileRun{
		ID:         uuid.NewString(),
		DocumentID: doc.ID,
		AccountID:  job.Request.AccountID,
		Status:     storage.RunStatusRunning,
		StartedAt:  time.Now().UTC(),
	}
	if err := s.repo.StartRun(run); err != nil {
		return nil, "", fmt.Errorf("start run: %w", err)
	}
	s.tracker.Incr(analytics.EventReconcileRun)

	s.setPhase(job.ID, StatusRunning, "extracting")

	data, err := s.objects.Fetch(ctx, doc.ObjectURI)
	if err != nil {
		return nil, run.ID, s.failRun(run, fmt.Errorf("fetch document bytes: %w", err))
	}

	stmt, err := s.extractor.ExtractStatement(ctx, data, doc.ContentType)
	if err != nil {
		return nil, run.ID, s.failRun(run, fmt.Errorf("extract statement: %w", err))
	}
	s.tracker.Incr(analytics.EventDocumentExtracted)

	if len(stmt.Transactions) == 0 {
		return nil, run.ID, s.failRun(run, fmt.Errorf("no transactions extracted from %s", doc.Filename))
	}

	s.setPhase(job.ID, StatusRunning, "fetching_feed")

	start, end := s.feedWindow(stmt.PeriodStart, stmt.PeriodEnd, stmt.Transactions)
	feed, err := s.gateway.GetBankFeed(ctx, job.Request.AccountID, start, end)
	if err != nil {
		return nil, run.ID, s.failRun(run, fmt.Errorf("fetch bank feed: %w", err))
	}

	s.setPhase(job.ID, StatusRunning, "matching")

	matcher := reconcile.NewMatcher(reconcile.Config{
		DateToleranceDays:     s.cfg.Matching.DateToleranceDays,
		AutoMatchThreshold:    s.cfg.Matching.AutoMatchThreshold,
		SuggestMatchThreshold: s.cfg.Matching.SuggestMatchThreshold,
	})
	matches, err := matcher.MatchStatement(stmt.Transactions, stmt.CheckImages, feed)
	if err != nil {
		return nil, run.ID, s.failRun(run, fmt.Errorf("match statement: %w", err))
	}
	s.tracker.Add(analytics.EventTransactionsTotal, int64(len(matches)))

	s.setPhase(job.ID, StatusRunning, "resolving_vendors")

	if err := s.resolveVendors(ctx, matches); err != nil {
		// Vendor resolution is best-effort; record and continue.
		s.logger.Warn("vendor resolution incomplete", "run_id", run.ID, "error", err)
	}

	s.uploadCheckAttachments(ctx, matches)

	s.setPhase(job.ID, StatusRunning, "persisting")

	records, err := s.buildRecords(run, doc, matches)
	if err != nil {
		return nil, run.ID, s.failRun(run, err)
	}
	if err := s.repo.SaveMatchRecords(records); err != nil {
		return nil, run.ID, s.failRun(run, fmt.Errorf("save match records: %w", err))
	}

	summary := matcher.Summarize(matches)
	s.tracker.Add(analytics.EventMatchesFound, int64(summary.Matched))

	run.Status = storage.RunStatusCompleted
	run.Total = summary.Total
	run.Matched = summary.Matched
	run.HighConfidence = summary.HighConfidence
	run.WithCheckImages = summary.WithCheckImages
	run.MatchRate = summary.MatchRate
	if err := s.repo.CompleteRun(run); err != nil {
		return nil, run.ID, fmt.Errorf("complete run: %w", err)
	}
	if err := s.repo.UpdateDocumentStatus(doc.ID, storage.DocStatusReconciled, ""); err != nil {
		return nil, run.ID, fmt.Errorf("mark document reconciled: %w", err)
	}

	return &summary, run.ID, nil
}

// failRun records the failure on the run before returning it.
func (s *ReconcileService) failRun(run *storage.ReconcileRun, err error) error {
	run.Status = storage.RunStatusFailed
	run.Error = err.Error()
	if cerr := s.repo.CompleteRun(run); cerr != nil {
		s.logger.Error("failed to record run failure", "run_id", run.ID, "error", cerr)
	}
	return err
}

// feedWindow derives the bank feed query window. The statement period
// is used when the extractor found one; otherwise the span of extracted
// transaction dates. Either way the window is padded by the date
// tolerance so boundary transactions can still match.
func (s *ReconcileService) feedWindow(periodStart, periodEnd time.Time, txns []*reconcile.ExtractedTransaction) (time.Time, time.Time) {
	start, end := periodStart, periodEnd

	if start.IsZero() || end.IsZero() {
		for _, t := range txns {
			if start.IsZero() || t.Date.Before(start) {
				start = t.Date
			}
			if end.IsZero() || t.Date.After(end) {
				end = t.Date
			}
		}
	}

	pad := time.Duration(s.cfg.Matching.DateToleranceDays) * 24 * time.Hour
	return start.Add(-pad), end.Add(pad)
}

// resolveVendors fills in VendorID on matched transactions, creating
// vendors in the accounting system (and mirroring them locally) when no
// existing vendor is close enough.
func (s *ReconcileService) resolveVendors(ctx context.Context, matches []reconcile.TransactionMatch) error {
	candidates, err := s.gateway.ListVendors(ctx)
	if err != nil {
		return fmt.Errorf("list vendors: %w", err)
	}

	for i := range matches {
		m := &matches[i]
		if !m.Decision.Matched {
			continue
		}
		name := m.Extracted.VendorSuggestion
		if name == "" {
			name = m.Extracted.Description
		}
		if name == "" {
			continue
		}

		if found, score := s.resolver.FindOrSuggest(name, candidates); found != nil {
			m.VendorID = found.ID
			s.logger.Debug("vendor resolved", "name", name, "vendor", found.Name, "score", score)
			continue
		}

		created, err := s.gateway.CreateVendor(ctx, vendor.SuggestName(name))
		if err != nil {
			s.logger.Warn("vendor creation failed", "name", name, "error", err)
			continue
		}
		m.VendorID = created.ID
		candidates = append(candidates, *created)
		s.tracker.Incr(analytics.EventVendorsCreated)

		if err := s.repo.SaveVendor(&storage.VendorRecord{
			ID:        uuid.NewString(),
			QBOID:     created.ID,
			Name:      created.Name,
			CreatedAt: time.Now().UTC(),
		}); err != nil {
			s.logger.Warn("local vendor record not saved", "name", created.Name, "error", err)
		}
	}
	return nil
}

// uploadCheckAttachments attaches linked check images to their matched
// feed transactions. Failures are logged, not fatal: the match stands
// either way.
func (s *ReconcileService) uploadCheckAttachments(ctx context.Context, matches []reconcile.TransactionMatch) {
	for i := range matches {
		m := &matches[i]
		img := m.Extracted.LinkedCheckImage
		if img == nil || img.ImageRef == "" || !m.Decision.Matched {
			continue
		}

		data, err := s.objects.Fetch(ctx, img.ImageRef)
		if err != nil {
			s.logger.Warn("check image fetch failed", "ref", img.ImageRef, "error", err)
			continue
		}

		fileName := path.Base(img.ImageRef)
		if err := s.gateway.UploadAttachment(ctx, m.Decision.FeedTransactionID, fileName, "image/png", data); err != nil {
			s.logger.Warn("check image attachment failed",
				"feed_transaction_id", m.Decision.FeedTransactionID, "error", err)
			continue
		}
		m.AttachmentUploaded = true
	}
}

// buildRecords converts match results into persistence records.
func (s *ReconcileService) buildRecords(run *storage.ReconcileRun, doc *storage.Document, matches []reconcile.TransactionMatch) ([]*storage.MatchRecord, error) {
	records := make([]*storage.MatchRecord, 0, len(matches))
	for i := range matches {
		m := &matches[i]
		rec := &storage.MatchRecord{
			RunID:              run.ID,
			DocumentID:         doc.ID,
			TxnDate:            m.Extracted.Date,
			Description:        m.Extracted.Description,
			Amount:             m.Extracted.Amount,
			TxnType:            string(m.Extracted.Type),
			CheckNumber:        m.Extracted.CheckNumber,
			Matched:            m.Decision.Matched,
			FeedTransactionID:  m.Decision.FeedTransactionID,
			Score:              m.Decision.Score,
			VendorID:           m.VendorID,
			AttachmentUploaded: m.AttachmentUploaded,
		}
		if img := m.Extracted.LinkedCheckImage; img != nil {
			rec.HasCheckImage = true
			rec.CheckImageRef = img.ImageRef
		}
		if err := rec.SetReasons(m.Decision.Reasons); err != nil {
			return nil, fmt.Errorf("serialize match reasons: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}
