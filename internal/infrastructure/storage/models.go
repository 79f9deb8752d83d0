package storage

import (
	"encoding/json"
	"time"
)

// Document is an uploaded financial document (bank statement PDF).
type Document struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	CompanyID   string    `json:"company_id,omitempty"`
	Status      string    `json:"status"` // uploaded, processing, reconciled, failed
	ObjectURI   string    `json:"object_uri"`
	UploadedAt  time.Time `json:"uploaded_at"`
	Error       string    `json:"error,omitempty"`
}

// Document statuses
const (
	DocStatusUploaded   = "uploaded"
	DocStatusProcessing = "processing"
	DocStatusReconciled = "reconciled"
	DocStatusFailed     = "failed"
)

// MatchRecord is one extracted transaction with its match decision,
// persisted per reconcile run.
type MatchRecord struct {
	ID                 int64     `json:"id"`
	RunID              string    `json:"run_id"`
	DocumentID         string    `json:"document_id"`
	TxnDate            time.Time `json:"txn_date"`
	Description        string    `json:"description"`
	Amount             float64   `json:"amount"`
	TxnType            string    `json:"txn_type"`
	CheckNumber        string    `json:"check_number,omitempty"`
	Matched            bool      `json:"matched"`
	FeedTransactionID  string    `json:"feed_transaction_id,omitempty"`
	Score              float64   `json:"score"`
	HasCheckImage      bool      `json:"has_check_image"`
	CheckImageRef      string    `json:"check_image_ref,omitempty"`
	VendorID           string    `json:"vendor_id,omitempty"`
	VendorName         string    `json:"vendor_name,omitempty"`
	AttachmentUploaded bool      `json:"attachment_uploaded"`

	// Reasons stored as JSON
	Reasons     []string `json:"reasons"`
	ReasonsJSON string   `json:"-"` // For DB storage
}

// SetReasons serializes the reasons list for storage
func (r *MatchRecord) SetReasons(reasons []string) error {
	data, err := json.Marshal(reasons)
	if err != nil {
		return err
	}
	r.Reasons = reasons
	r.ReasonsJSON = string(data)
	return nil
}

// ReconcileRun tracks one reconciliation of a document against the feed.
type ReconcileRun struct {
	ID              string     `json:"id"`
	DocumentID      string     `json:"document_id"`
	AccountID       string     `json:"account_id,omitempty"`
	Status          string     `json:"status"` // running, completed, failed
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	Total           int        `json:"total_transactions"`
	Matched         int        `json:"matched"`
	HighConfidence  int        `json:"high_confidence_matches"`
	WithCheckImages int        `json:"transactions_with_check_images"`
	MatchRate       string     `json:"match_rate"`
	Error           string     `json:"error,omitempty"`
}

// Run statuses
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// VendorRecord is a vendor known locally, mirroring the accounting
// system's vendor list plus any vendors created by reconciliation.
type VendorRecord struct {
	ID        string    `json:"id"`
	QBOID     string    `json:"qbo_id,omitempty"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Stats contains aggregate statistics across all reconcile runs.
type Stats struct {
	TotalDocuments    int     `json:"total_documents"`
	TotalRuns         int     `json:"total_runs"`
	TotalTransactions int     `json:"total_transactions"`
	TotalMatched      int     `json:"total_matched"`
	TotalUnmatched    int     `json:"total_unmatched"`
	HighConfidence    int     `json:"high_confidence_matches"`
	OverallMatchRate  float64 `json:"overall_match_rate"`
}
