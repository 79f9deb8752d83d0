package storage

// Repository defines the complete storage interface.
// This interface allows swapping implementations (SQLite, PostgreSQL,
// etc.) and makes testing with mocks straightforward.
type Repository interface {
	DocumentRepository
	MatchRepository
	RunRepository
	VendorRepository
	Close() error
}

// DocumentRepository handles uploaded document metadata
type DocumentRepository interface {
	// SaveDocument inserts or updates a document
	SaveDocument(doc *Document) error

	// GetDocument retrieves a document by ID
	GetDocument(id string) (*Document, error)

	// ListDocuments returns documents matching the given filters
	ListDocuments(filters DocumentFilters) ([]*Document, error)

	// UpdateDocumentStatus sets the status (and error text) of a document
	UpdateDocumentStatus(id, status, errMsg string) error
}

// DocumentFilters defines filters for listing documents
type DocumentFilters struct {
	Status    string // Filter by status (empty = all)
	CompanyID string // Filter by company (empty = all)
	Limit     int    // Max results (0 = default 50)
	Offset    int    // Pagination offset
}

// MatchRepository handles persisted match records
type MatchRepository interface {
	// SaveMatchRecords persists all records for one run in a transaction
	SaveMatchRecords(records []*MatchRecord) error

	// GetMatchRecords retrieves all records for a document, newest run first
	GetMatchRecords(documentID string) ([]*MatchRecord, error)

	// GetMatchRecordsByRun retrieves all records for a specific run
	GetMatchRecordsByRun(runID string) ([]*MatchRecord, error)
}

// RunRepository handles reconcile run tracking
type RunRepository interface {
	// StartRun records the start of a reconcile run
	StartRun(run *ReconcileRun) error

	// CompleteRun records the completion (or failure) of a run
	CompleteRun(run *ReconcileRun) error

	// GetRun retrieves a run by ID
	GetRun(id string) (*ReconcileRun, error)

	// ListRuns returns recent runs, newest first
	ListRuns(limit int) ([]*ReconcileRun, error)

	// GetStats returns aggregate statistics
	GetStats() (*Stats, error)
}

// VendorRepository handles the local vendor mirror
type VendorRepository interface {
	// SaveVendor inserts or updates a vendor
	SaveVendor(v *VendorRecord) error

	// ListVendors returns all known vendors
	ListVendors() ([]*VendorRecord, error)
}
