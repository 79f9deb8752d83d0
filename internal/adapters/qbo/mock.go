package qbo

import (
	"context"
	"fmt"
	"time"

	"github.com/ledgermatch/ledgermatch-backend/internal/domain/reconcile"
	"github.com/ledgermatch/ledgermatch-backend/internal/domain/vendor"
)

// MockGateway is an in-memory Gateway for testing.
type MockGateway struct {
	Feed    []reconcile.FeedTransaction
	Vendors []vendor.Candidate

	// Hooks for test assertions
	GetBankFeedCalled  bool
	LastAccountID      string
	LastFeedStart      time.Time
	LastFeedEnd        time.Time
	CreatedVendors     []string
	UploadedFiles      []string
	LastUploadPurchase string

	// Error injection
	GetBankFeedErr      error
	ListVendorsErr      error
	CreateVendorErr     error
	UploadAttachmentErr error
}

var _ Gateway = (*MockGateway)(nil)

func (m *MockGateway) GetBankFeed(_ context.Context, accountID string, start, end time.Time) ([]reconcile.FeedTransaction, error) {
	m.GetBankFeedCalled = true
	m.LastAccountID = accountID
	m.LastFeedStart = start
	m.LastFeedEnd = end
	if m.GetBankFeedErr != nil {
		return nil, m.GetBankFeedErr
	}
	return m.Feed, nil
}

func (m *MockGateway) ListVendors(_ context.Context) ([]vendor.Candidate, error) {
	if m.ListVendorsErr != nil {
		return nil, m.ListVendorsErr
	}
	return m.Vendors, nil
}

func (m *MockGateway) CreateVendor(_ context.Context, name string) (*vendor.Candidate, error) {
	if m.CreateVendorErr != nil {
		return nil, m.CreateVendorErr
	}
	m.CreatedVendors = append(m.CreatedVendors, name)
	c := vendor.Candidate{ID: fmt.Sprintf("mock-vendor-%d", len(m.CreatedVendors)), Name: name}
	m.Vendors = append(m.Vendors, c)
	return &c, nil
}

func (m *MockGateway) UploadAttachment(_ context.Context, purchaseID, fileName, _ string, _ []byte) error {
	if m.UploadAttachmentErr != nil {
		return m.UploadAttachmentErr
	}
	m.UploadedFiles = append(m.UploadedFiles, fileName)
	m.LastUploadPurchase = purchaseID
	return nil
}
