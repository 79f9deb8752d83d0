// Package dto defines the API's request and response shapes. Keeping
// them separate from domain and storage types lets the wire format
// evolve without touching the core.
package dto

import (
	"time"

	"github.com/ledgermatch/ledgermatch-backend/internal/application/service"
	"github.com/ledgermatch/ledgermatch-backend/internal/domain/reconcile"
	"github.com/ledgermatch/ledgermatch-backend/internal/infrastructure/storage"
)

// ReconcileRequest starts a reconcile job for an uploaded document.
type ReconcileRequest struct {
	DocumentID string `json:"document_id" binding:"required"`
	AccountID  string `json:"account_id" binding:"required"`
}

// ReconcileStartedResponse is returned when a job is accepted.
type ReconcileStartedResponse struct {
	JobID      string `json:"job_id"`
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
}

// JobResponse is the polling view of a reconcile job.
type JobResponse struct {
	JobID       string                 `json:"job_id"`
	DocumentID  string                 `json:"document_id"`
	RunID       string                 `json:"run_id,omitempty"`
	Status      string                 `json:"status"`
	Phase       string                 `json:"phase"`
	StartedAt   time.Time              `json:"started_at"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	Summary     *reconcile.MatchSummary `json:"summary,omitempty"`
	Error       string                 `json:"error,omitempty"`
}

// JobFromService converts a service job to its wire form.
func JobFromService(job *service.ReconcileJob) JobResponse {
	resp := JobResponse{
		JobID:       job.ID,
		DocumentID:  job.DocumentID,
		RunID:       job.RunID,
		Status:      string(job.Status),
		Phase:       job.Progress.CurrentPhase,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
		Summary:     job.Summary,
	}
	if job.Error != nil {
		resp.Error = job.Error.Error()
	}
	return resp
}

// DocumentResponse is the wire form of a stored document.
type DocumentResponse struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	CompanyID   string    `json:"company_id,omitempty"`
	Status      string    `json:"status"`
	UploadedAt  time.Time `json:"uploaded_at"`
	Error       string    `json:"error,omitempty"`
}

// DocumentFromStorage converts a storage document to its wire form.
// The object URI is deliberately not exposed.
func DocumentFromStorage(doc *storage.Document) DocumentResponse {
	return DocumentResponse{
		ID:          doc.ID,
		Filename:    doc.Filename,
		ContentType: doc.ContentType,
		CompanyID:   doc.CompanyID,
		Status:      doc.Status,
		UploadedAt:  doc.UploadedAt,
		Error:       doc.Error,
	}
}

// MatchRecordResponse is the wire form of one persisted match.
type MatchRecordResponse struct {
	ID                 int64     `json:"id"`
	RunID              string    `json:"run_id"`
	TxnDate            string    `json:"txn_date"`
	Description        string    `json:"description"`
	Amount             float64   `json:"amount"`
	TxnType            string    `json:"txn_type"`
	CheckNumber        string    `json:"check_number,omitempty"`
	Matched            bool      `json:"matched"`
	FeedTransactionID  string    `json:"feed_transaction_id,omitempty"`
	Score              float64   `json:"score"`
	Reasons            []string  `json:"reasons"`
	HasCheckImage      bool      `json:"has_check_image"`
	VendorID           string    `json:"vendor_id,omitempty"`
	AttachmentUploaded bool      `json:"attachment_uploaded"`
}

// MatchRecordFromStorage converts a storage record to its wire form.
func MatchRecordFromStorage(r *storage.MatchRecord) MatchRecordResponse {
	return MatchRecordResponse{
		ID:                 r.ID,
		RunID:              r.RunID,
		TxnDate:            r.TxnDate.Format("2006-01-02"),
		Description:        r.Description,
		Amount:             r.Amount,
		TxnType:            r.TxnType,
		CheckNumber:        r.CheckNumber,
		Matched:            r.Matched,
		FeedTransactionID:  r.FeedTransactionID,
		Score:              r.Score,
		Reasons:            r.Reasons,
		HasCheckImage:      r.HasCheckImage,
		VendorID:           r.VendorID,
		AttachmentUploaded: r.AttachmentUploaded,
	}
}
