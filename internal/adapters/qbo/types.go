// Package qbo talks to the QuickBooks Online v3 REST API: bank feed
// queries, vendor management, expense creation and attachments.
package qbo

import (
	"context"
	"time"

	"github.com/ledgermatch/ledgermatch-backend/internal/domain/reconcile"
	"github.com/ledgermatch/ledgermatch-backend/internal/domain/vendor"
)

// Gateway is the accounting-system surface the reconcile service
// needs. The real implementation is Client; tests use MockGateway.
type Gateway interface {
	// GetBankFeed returns posted transactions for a bank account within
	// the date window, mapped to the matcher's feed representation.
	GetBankFeed(ctx context.Context, accountID string, start, end time.Time) ([]reconcile.FeedTransaction, error)

	// ListVendors returns all active vendors as resolver candidates.
	ListVendors(ctx context.Context) ([]vendor.Candidate, error)

	// CreateVendor creates a vendor with the given display name.
	CreateVendor(ctx context.Context, name string) (*vendor.Candidate, error)

	// UploadAttachment attaches a file to a purchase transaction.
	UploadAttachment(ctx context.Context, purchaseID, fileName, contentType string, data []byte) error
}

// Wire types for the subset of the v3 API we consume.

type queryResponse struct {
	QueryResponse struct {
		Purchase []purchaseEntity `json:"Purchase"`
		Vendor   []vendorEntity   `json:"Vendor"`
	} `json:"QueryResponse"`
}

type purchaseEntity struct {
	ID          string  `json:"Id"`
	TxnDate     string  `json:"TxnDate"`
	TotalAmt    float64 `json:"TotalAmt"`
	PaymentType string  `json:"PaymentType"`
	DocNumber   string  `json:"DocNumber"`
	PrivateNote string  `json:"PrivateNote"`
	EntityRef   *struct {
		Value string `json:"value"`
		Name  string `json:"name"`
	} `json:"EntityRef"`
}

type vendorEntity struct {
	ID          string `json:"Id"`
	DisplayName string `json:"DisplayName"`
	Active      bool   `json:"Active"`
}

type vendorCreateResponse struct {
	Vendor vendorEntity `json:"Vendor"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

type apiFault struct {
	Fault struct {
		Error []struct {
			Message string `json:"Message"`
			Detail  string `json:"Detail"`
			Code    string `json:"code"`
		} `json:"Error"`
		Type string `json:"type"`
	} `json:"Fault"`
}
