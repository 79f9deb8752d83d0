package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Storage provides SQLite database access for documents, reconcile
// runs and match records. It implements the Repository interface.
type Storage struct {
	db *sql.DB
}

// Compile-time check that Storage implements Repository
var _ Repository = (*Storage)(nil)

// NewStorage creates a new storage instance with SQLite database
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign key constraints (SQLite-specific)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Storage{db: db}

	if err := s.runMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// --- Documents ---

// SaveDocument inserts or updates a document
func (s *Storage) SaveDocument(doc *Document) error {
	query := `
	INSERT OR REPLACE INTO documents
	(id, filename, content_type, company_id, status, object_uri, uploaded_at, error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query,
		doc.ID,
		doc.Filename,
		doc.ContentType,
		doc.CompanyID,
		doc.Status,
		doc.ObjectURI,
		doc.UploadedAt,
		doc.Error,
	)
	return err
}

// GetDocument retrieves a document by ID
func (s *Storage) GetDocument(id string) (*Document, error) {
	query := `
	SELECT id, filename, content_type, company_id, status, object_uri, uploaded_at, error
	FROM documents WHERE id = ?
	`
	doc := &Document{}
	err := s.db.QueryRow(query, id).Scan(
		&doc.ID,
		&doc.Filename,
		&doc.ContentType,
		&doc.CompanyID,
		&doc.Status,
		&doc.ObjectURI,
		&doc.UploadedAt,
		&doc.Error,
	)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ListDocuments returns documents matching the given filters
func (s *Storage) ListDocuments(filters DocumentFilters) ([]*Document, error) {
	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `
	SELECT id, filename, content_type, company_id, status, object_uri, uploaded_at, error
	FROM documents WHERE 1=1
	`
	args := []interface{}{}

	if filters.Status != "" {
		query += " AND status = ?"
		args = append(args, filters.Status)
	}
	if filters.CompanyID != "" {
		query += " AND company_id = ?"
		args = append(args, filters.CompanyID)
	}

	query += " ORDER BY uploaded_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, filters.Offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc := &Document{}
		if err := rows.Scan(
			&doc.ID, &doc.Filename, &doc.ContentType, &doc.CompanyID,
			&doc.Status, &doc.ObjectURI, &doc.UploadedAt, &doc.Error,
		); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// UpdateDocumentStatus sets the status (and error text) of a document
func (s *Storage) UpdateDocumentStatus(id, status, errMsg string) error {
	result, err := s.db.Exec(
		`UPDATE documents SET status = ?, error = ? WHERE id = ?`,
		status, errMsg, id,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// --- Match records ---

// SaveMatchRecords persists all records for one run in a transaction
func (s *Storage) SaveMatchRecords(records []*MatchRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	query := `
	INSERT INTO match_records
	(run_id, document_id, txn_date, description, amount, txn_type, check_number,
	 matched, feed_transaction_id, score, has_check_image, check_image_ref,
	 vendor_id, vendor_name, reasons_json, attachment_uploaded)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	for _, r := range records {
		if r.ReasonsJSON == "" {
			if err := r.SetReasons(r.Reasons); err != nil {
				_ = tx.Rollback()
				return err
			}
		}

		result, err := tx.Exec(query,
			r.RunID,
			r.DocumentID,
			r.TxnDate,
			r.Description,
			r.Amount,
			r.TxnType,
			r.CheckNumber,
			r.Matched,
			r.FeedTransactionID,
			r.Score,
			r.HasCheckImage,
			r.CheckImageRef,
			r.VendorID,
			r.VendorName,
			r.ReasonsJSON,
			r.AttachmentUploaded,
		)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		if id, err := result.LastInsertId(); err == nil {
			r.ID = id
		}
	}

	return tx.Commit()
}

// GetMatchRecords retrieves all records for a document, newest run first
func (s *Storage) GetMatchRecords(documentID string) ([]*MatchRecord, error) {
	return s.queryMatchRecords(
		`SELECT `+matchRecordColumns+` FROM match_records
		 WHERE document_id = ? ORDER BY id ASC`, documentID)
}

// GetMatchRecordsByRun retrieves all records for a specific run
func (s *Storage) GetMatchRecordsByRun(runID string) ([]*MatchRecord, error) {
	return s.queryMatchRecords(
		`SELECT `+matchRecordColumns+` FROM match_records
		 WHERE run_id = ? ORDER BY id ASC`, runID)
}

const matchRecordColumns = `id, run_id, document_id, txn_date, description, amount,
	txn_type, check_number, matched, feed_transaction_id, score, has_check_image,
	check_image_ref, vendor_id, vendor_name, reasons_json, attachment_uploaded`

func (s *Storage) queryMatchRecords(query string, arg interface{}) ([]*MatchRecord, error) {
	rows, err := s.db.Query(query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*MatchRecord
	for rows.Next() {
		r := &MatchRecord{}
		if err := rows.Scan(
			&r.ID, &r.RunID, &r.DocumentID, &r.TxnDate, &r.Description, &r.Amount,
			&r.TxnType, &r.CheckNumber, &r.Matched, &r.FeedTransactionID, &r.Score,
			&r.HasCheckImage, &r.CheckImageRef, &r.VendorID, &r.VendorName,
			&r.ReasonsJSON, &r.AttachmentUploaded,
		); err != nil {
			return nil, err
		}
		if r.ReasonsJSON != "" {
			// Optional enrichment, a decode failure leaves Reasons nil
			_ = json.Unmarshal([]byte(r.ReasonsJSON), &r.Reasons)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// --- Reconcile runs ---

// StartRun records the start of a reconcile run
func (s *Storage) StartRun(run *ReconcileRun) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = RunStatusRunning
	}

	query := `
	INSERT INTO reconcile_runs
	(id, document_id, account_id, status, started_at, match_rate)
	VALUES (?, ?, ?, ?, ?, '0%')
	`
	_, err := s.db.Exec(query, run.ID, run.DocumentID, run.AccountID, run.Status, run.StartedAt)
	return err
}

// CompleteRun records the completion (or failure) of a run
func (s *Storage) CompleteRun(run *ReconcileRun) error {
	now := time.Now().UTC()
	if run.CompletedAt == nil {
		run.CompletedAt = &now
	}

	query := `
	UPDATE reconcile_runs
	SET status = ?, completed_at = ?, total_transactions = ?, matched = ?,
	    high_confidence = ?, with_check_images = ?, match_rate = ?, error = ?
	WHERE id = ?
	`
	_, err := s.db.Exec(query,
		run.Status,
		run.CompletedAt,
		run.Total,
		run.Matched,
		run.HighConfidence,
		run.WithCheckImages,
		run.MatchRate,
		run.Error,
		run.ID,
	)
	return err
}

// GetRun retrieves a run by ID
func (s *Storage) GetRun(id string) (*ReconcileRun, error) {
	query := `
	SELECT id, document_id, account_id, status, started_at, completed_at,
	       total_transactions, matched, high_confidence, with_check_images,
	       match_rate, error
	FROM reconcile_runs WHERE id = ?
	`
	run := &ReconcileRun{}
	var completedAt sql.NullTime
	err := s.db.QueryRow(query, id).Scan(
		&run.ID, &run.DocumentID, &run.AccountID, &run.Status, &run.StartedAt,
		&completedAt, &run.Total, &run.Matched, &run.HighConfidence,
		&run.WithCheckImages, &run.MatchRate, &run.Error,
	)
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	return run, nil
}

// ListRuns returns recent runs, newest first
func (s *Storage) ListRuns(limit int) ([]*ReconcileRun, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
	SELECT id, document_id, account_id, status, started_at, completed_at,
	       total_transactions, matched, high_confidence, with_check_images,
	       match_rate, error
	FROM reconcile_runs ORDER BY started_at DESC LIMIT ?
	`
	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*ReconcileRun
	for rows.Next() {
		run := &ReconcileRun{}
		var completedAt sql.NullTime
		if err := rows.Scan(
			&run.ID, &run.DocumentID, &run.AccountID, &run.Status, &run.StartedAt,
			&completedAt, &run.Total, &run.Matched, &run.HighConfidence,
			&run.WithCheckImages, &run.MatchRate, &run.Error,
		); err != nil {
			return nil, err
		}
		if completedAt.Valid {
			run.CompletedAt = &completedAt.Time
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetStats returns aggregate statistics
func (s *Storage) GetStats() (*Stats, error) {
	stats := &Stats{}

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM documents`).Scan(&stats.TotalDocuments); err != nil {
		return nil, err
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM reconcile_runs`).Scan(&stats.TotalRuns); err != nil {
		return nil, err
	}

	query := `
	SELECT
		COUNT(*),
		COALESCE(SUM(CASE WHEN matched THEN 1 ELSE 0 END), 0)
	FROM match_records
	`
	if err := s.db.QueryRow(query).Scan(&stats.TotalTransactions, &stats.TotalMatched); err != nil {
		return nil, err
	}
	stats.TotalUnmatched = stats.TotalTransactions - stats.TotalMatched

	hc := `SELECT COALESCE(SUM(high_confidence), 0) FROM reconcile_runs WHERE status = ?`
	if err := s.db.QueryRow(hc, RunStatusCompleted).Scan(&stats.HighConfidence); err != nil {
		return nil, err
	}

	if stats.TotalTransactions > 0 {
		stats.OverallMatchRate = float64(stats.TotalMatched) / float64(stats.TotalTransactions) * 100
	}

	return stats, nil
}

// --- Vendors ---

// SaveVendor inserts or updates a vendor
func (s *Storage) SaveVendor(v *VendorRecord) error {
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	query := `
	INSERT OR REPLACE INTO vendors (id, qbo_id, name, created_at)
	VALUES (?, ?, ?, ?)
	`
	_, err := s.db.Exec(query, v.ID, v.QBOID, v.Name, v.CreatedAt)
	return err
}

// ListVendors returns all known vendors
func (s *Storage) ListVendors() ([]*VendorRecord, error) {
	rows, err := s.db.Query(`SELECT id, qbo_id, name, created_at FROM vendors ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vendors []*VendorRecord
	for rows.Next() {
		v := &VendorRecord{}
		if err := rows.Scan(&v.ID, &v.QBOID, &v.Name, &v.CreatedAt); err != nil {
			return nil, err
		}
		vendors = append(vendors, v)
	}
	return vendors, rows.Err()
}
