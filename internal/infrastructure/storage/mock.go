package storage

import (
	"database/sql"
	"sort"
	"time"
)

// MockRepository is an in-memory implementation of Repository for
// testing. It stores all data in maps and slices, making tests fast
// and isolated.
type MockRepository struct {
	documents map[string]*Document
	records   []*MatchRecord
	runs      map[string]*ReconcileRun
	vendors   map[string]*VendorRecord
	nextRecID int64

	// Hooks for test assertions
	SaveDocumentCalled     bool
	LastSavedDocument      *Document
	SaveMatchRecordsCalled bool
	LastSavedRecords       []*MatchRecord
	StartRunCalled         bool
	CompleteRunCalled      bool
	LastCompletedRun       *ReconcileRun
	SaveVendorCalled       bool
	LastSavedVendor        *VendorRecord

	// Error injection for testing error paths
	SaveDocumentErr     error
	GetDocumentErr      error
	SaveMatchRecordsErr error
	StartRunErr         error
	CompleteRunErr      error
	SaveVendorErr       error
}

// NewMockRepository creates a new mock repository for testing
func NewMockRepository() *MockRepository {
	return &MockRepository{
		documents: make(map[string]*Document),
		runs:      make(map[string]*ReconcileRun),
		vendors:   make(map[string]*VendorRecord),
		nextRecID: 1,
	}
}

// Compile-time check that MockRepository implements Repository
var _ Repository = (*MockRepository)(nil)

// Close does nothing for mock
func (m *MockRepository) Close() error {
	return nil
}

// SaveDocument saves a document to the in-memory map
func (m *MockRepository) SaveDocument(doc *Document) error {
	m.SaveDocumentCalled = true
	m.LastSavedDocument = doc
	if m.SaveDocumentErr != nil {
		return m.SaveDocumentErr
	}
	copied := *doc
	m.documents[doc.ID] = &copied
	return nil
}

// GetDocument retrieves a document by ID
func (m *MockRepository) GetDocument(id string) (*Document, error) {
	if m.GetDocumentErr != nil {
		return nil, m.GetDocumentErr
	}
	doc, ok := m.documents[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *doc
	return &copied, nil
}

// ListDocuments returns documents matching the given filters
func (m *MockRepository) ListDocuments(filters DocumentFilters) ([]*Document, error) {
	var docs []*Document
	for _, doc := range m.documents {
		if filters.Status != "" && doc.Status != filters.Status {
			continue
		}
		if filters.CompanyID != "" && doc.CompanyID != filters.CompanyID {
			continue
		}
		copied := *doc
		docs = append(docs, &copied)
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].UploadedAt.After(docs[j].UploadedAt)
	})
	return docs, nil
}

// UpdateDocumentStatus sets the status of a document
func (m *MockRepository) UpdateDocumentStatus(id, status, errMsg string) error {
	doc, ok := m.documents[id]
	if !ok {
		return sql.ErrNoRows
	}
	doc.Status = status
	doc.Error = errMsg
	return nil
}

// SaveMatchRecords appends the records to the in-memory slice
func (m *MockRepository) SaveMatchRecords(records []*MatchRecord) error {
	m.SaveMatchRecordsCalled = true
	m.LastSavedRecords = records
	if m.SaveMatchRecordsErr != nil {
		return m.SaveMatchRecordsErr
	}
	for _, r := range records {
		r.ID = m.nextRecID
		m.nextRecID++
		copied := *r
		m.records = append(m.records, &copied)
	}
	return nil
}

// GetMatchRecords retrieves all records for a document
func (m *MockRepository) GetMatchRecords(documentID string) ([]*MatchRecord, error) {
	var out []*MatchRecord
	for _, r := range m.records {
		if r.DocumentID == documentID {
			copied := *r
			out = append(out, &copied)
		}
	}
	return out, nil
}

// GetMatchRecordsByRun retrieves all records for a run
func (m *MockRepository) GetMatchRecordsByRun(runID string) ([]*MatchRecord, error) {
	var out []*MatchRecord
	for _, r := range m.records {
		if r.RunID == runID {
			copied := *r
			out = append(out, &copied)
		}
	}
	return out, nil
}

// StartRun records a new run
func (m *MockRepository) StartRun(run *ReconcileRun) error {
	m.StartRunCalled = true
	if m.StartRunErr != nil {
		return m.StartRunErr
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = RunStatusRunning
	}
	copied := *run
	m.runs[run.ID] = &copied
	return nil
}

// CompleteRun updates a run with its final state
func (m *MockRepository) CompleteRun(run *ReconcileRun) error {
	m.CompleteRunCalled = true
	m.LastCompletedRun = run
	if m.CompleteRunErr != nil {
		return m.CompleteRunErr
	}
	copied := *run
	m.runs[run.ID] = &copied
	return nil
}

// GetRun retrieves a run by ID
func (m *MockRepository) GetRun(id string) (*ReconcileRun, error) {
	run, ok := m.runs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *run
	return &copied, nil
}

// ListRuns returns recent runs, newest first
func (m *MockRepository) ListRuns(limit int) ([]*ReconcileRun, error) {
	var runs []*ReconcileRun
	for _, run := range m.runs {
		copied := *run
		runs = append(runs, &copied)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// GetStats returns aggregate statistics
func (m *MockRepository) GetStats() (*Stats, error) {
	stats := &Stats{
		TotalDocuments: len(m.documents),
		TotalRuns:      len(m.runs),
	}
	for _, r := range m.records {
		stats.TotalTransactions++
		if r.Matched {
			stats.TotalMatched++
		}
	}
	stats.TotalUnmatched = stats.TotalTransactions - stats.TotalMatched
	for _, run := range m.runs {
		if run.Status == RunStatusCompleted {
			stats.HighConfidence += run.HighConfidence
		}
	}
	if stats.TotalTransactions > 0 {
		stats.OverallMatchRate = float64(stats.TotalMatched) / float64(stats.TotalTransactions) * 100
	}
	return stats, nil
}

// SaveVendor saves a vendor
func (m *MockRepository) SaveVendor(v *VendorRecord) error {
	m.SaveVendorCalled = true
	m.LastSavedVendor = v
	if m.SaveVendorErr != nil {
		return m.SaveVendorErr
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	copied := *v
	m.vendors[v.ID] = &copied
	return nil
}

// ListVendors returns all vendors sorted by name
func (m *MockRepository) ListVendors() ([]*VendorRecord, error) {
	var vendors []*VendorRecord
	for _, v := range m.vendors {
		copied := *v
		vendors = append(vendors, &copied)
	}
	sort.Slice(vendors, func(i, j int) bool {
		return vendors[i].Name < vendors[j].Name
	})
	return vendors, nil
}
