package qbo

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/ledgermatch/ledgermatch-backend/internal/domain/reconcile"
	"github.com/ledgermatch/ledgermatch-backend/internal/domain/vendor"
	"github.com/ledgermatch/ledgermatch-backend/internal/infrastructure/analytics"
)

const (
	sandboxBaseURL    = "https://sandbox-quickbooks.api.intuit.com"
	productionBaseURL = "https://quickbooks.api.intuit.com"
	tokenURL          = "https://oauth.platform.intuit.com/oauth2/v1/tokens/bearer"

	qboDateLayout = "2006-01-02"
)

// Options configures a Client.
type Options struct {
	ClientID     string
	ClientSecret string
	RealmID      string
	RefreshToken string
	Environment  string // "sandbox" or "production"

	// BaseURL and TokenURL override the Intuit endpoints; used in tests.
	BaseURL  string
	TokenURL string

	Logger  *slog.Logger
	Tracker *analytics.Tracker
}

// Client is a QuickBooks Online API client. Access tokens are
// refreshed lazily from the long-lived refresh token and cached until
// shortly before expiry. Safe for concurrent use.
type Client struct {
	opts    Options
	baseURL string
	tokURL  string
	http    *retryablehttp.Client
	logger  *slog.Logger
	tracker *analytics.Tracker

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

var _ Gateway = (*Client)(nil)

// NewClient creates a client. ClientID, ClientSecret, RealmID and
// RefreshToken are required.
func NewClient(opts Options) (*Client, error) {
	if opts.ClientID == "" || opts.ClientSecret == "" {
		return nil, fmt.Errorf("qbo: client ID and secret are required")
	}
	if opts.RealmID == "" {
		return nil, fmt.Errorf("qbo: realm ID is required")
	}
	if opts.RefreshToken == "" {
		return nil, fmt.Errorf("qbo: refresh token is required")
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		if opts.Environment == "production" {
			baseURL = productionBaseURL
		} else {
			baseURL = sandboxBaseURL
		}
	}
	tokURL := opts.TokenURL
	if tokURL == "" {
		tokURL = tokenURL
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.HTTPClient.Timeout = 30 * time.Second
	rc.Logger = nil

	return &Client{
		opts:    opts,
		baseURL: baseURL,
		tokURL:  tokURL,
		http:    rc,
		logger:  logger,
		tracker: opts.Tracker,
	}, nil
}

// GetBankFeed queries purchases posted against the given bank account
// within [start, end] and maps them to feed transactions. Amounts are
// negated: a purchase is money out.
func (c *Client) GetBankFeed(ctx context.Context, accountID string, start, end time.Time) ([]reconcile.FeedTransaction, error) {
	q := fmt.Sprintf("SELECT * FROM Purchase WHERE AccountRef = '%s'", accountID)
	if !start.IsZero() {
		q += fmt.Sprintf(" AND TxnDate >= '%s'", start.Format(qboDateLayout))
	}
	if !end.IsZero() {
		q += fmt.Sprintf(" AND TxnDate <= '%s'", end.Format(qboDateLayout))
	}
	q += " MAXRESULTS 1000"

	var resp queryResponse
	if err := c.query(ctx, q, &resp); err != nil {
		return nil, fmt.Errorf("qbo: bank feed query: %w", err)
	}

	feed := make([]reconcile.FeedTransaction, 0, len(resp.QueryResponse.Purchase))
	for _, p := range resp.QueryResponse.Purchase {
		date, err := time.Parse(qboDateLayout, p.TxnDate)
		if err != nil {
			c.logger.Warn("skipping purchase with unparseable date", "id", p.ID, "txn_date", p.TxnDate)
			continue
		}
		desc := p.PrivateNote
		if p.EntityRef != nil && p.EntityRef.Name != "" {
			desc = p.EntityRef.Name
		}
		ft := reconcile.FeedTransaction{
			ID:          p.ID,
			Date:        date,
			Amount:      -p.TotalAmt,
			Description: desc,
		}
		if p.PaymentType == "Check" {
			ft.CheckNumber = p.DocNumber
		}
		feed = append(feed, ft)
	}

	c.logger.Debug("bank feed fetched", "account_id", accountID, "transactions", len(feed))
	return feed, nil
}

// ListVendors returns all active vendors.
func (c *Client) ListVendors(ctx context.Context) ([]vendor.Candidate, error) {
	var resp queryResponse
	if err := c.query(ctx, "SELECT * FROM Vendor WHERE Active = true MAXRESULTS 1000", &resp); err != nil {
		return nil, fmt.Errorf("qbo: vendor query: %w", err)
	}

	candidates := make([]vendor.Candidate, 0, len(resp.QueryResponse.Vendor))
	for _, v := range resp.QueryResponse.Vendor {
		candidates = append(candidates, vendor.Candidate{ID: v.ID, Name: v.DisplayName})
	}
	return candidates, nil
}

// CreateVendor creates a vendor with the given display name.
func (c *Client) CreateVendor(ctx context.Context, name string) (*vendor.Candidate, error) {
	body, err := json.Marshal(map[string]string{"DisplayName": name})
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/v3/company/%s/vendor", c.baseURL, c.opts.RealmID)
	data, err := c.doJSON(ctx, http.MethodPost, endpoint, "application/json", body)
	if err != nil {
		return nil, fmt.Errorf("qbo: create vendor %q: %w", name, err)
	}

	var resp vendorCreateResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("qbo: decode vendor response: %w", err)
	}

	c.logger.Info("vendor created", "id", resp.Vendor.ID, "name", resp.Vendor.DisplayName)
	return &vendor.Candidate{ID: resp.Vendor.ID, Name: resp.Vendor.DisplayName}, nil
}

// UploadAttachment uploads file bytes and links them to a purchase.
// The v3 upload endpoint takes multipart form data: a JSON metadata
// part named "file_metadata_01" and the file content as "file_content_01".
func (c *Client) UploadAttachment(ctx context.Context, purchaseID, fileName, contentType string, data []byte) error {
	meta := map[string]any{
		"FileName":    fileName,
		"ContentType": contentType,
		"AttachableRef": []map[string]any{
			{"EntityRef": map[string]string{"type": "Purchase", "value": purchaseID}},
		},
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	metaPart, err := w.CreatePart(map[string][]string{
		"Content-Disposition": {`form-data; name="file_metadata_01"`},
		"Content-Type":        {"application/json"},
	})
	if err != nil {
		return err
	}
	if _, err := metaPart.Write(metaJSON); err != nil {
		return err
	}

	filePart, err := w.CreatePart(map[string][]string{
		"Content-Disposition": {fmt.Sprintf(`form-data; name="file_content_01"; filename=%q`, fileName)},
		"Content-Type":        {contentType},
	})
	if err != nil {
		return err
	}
	if _, err := filePart.Write(data); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/v3/company/%s/upload", c.baseURL, c.opts.RealmID)
	if _, err := c.doJSON(ctx, http.MethodPost, endpoint, w.FormDataContentType(), buf.Bytes()); err != nil {
		return fmt.Errorf("qbo: upload attachment %q: %w", fileName, err)
	}

	c.logger.Info("attachment uploaded", "purchase_id", purchaseID, "file", fileName)
	return nil
}

func (c *Client) query(ctx context.Context, q string, out any) error {
	endpoint := fmt.Sprintf("%s/v3/company/%s/query?query=%s",
		c.baseURL, c.opts.RealmID, url.QueryEscape(q))
	data, err := c.doJSON(ctx, http.MethodGet, endpoint, "", nil)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (c *Client) doJSON(ctx context.Context, method, endpoint, contentType string, body []byte) ([]byte, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	if c.tracker != nil {
		c.tracker.Incr(analytics.EventQBOAPICall)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var fault apiFault
		if json.Unmarshal(data, &fault) == nil && len(fault.Fault.Error) > 0 {
			return nil, fmt.Errorf("api error %d: %s: %s",
				resp.StatusCode, fault.Fault.Error[0].Message, fault.Fault.Error[0].Detail)
		}
		return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	return data, nil
}

// token returns a valid access token, refreshing it when missing or
// within a minute of expiry.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Until(c.expiresAt) > time.Minute {
		return c.accessToken, nil
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {c.opts.RefreshToken},
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.tokURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	basic := base64.StdEncoding.EncodeToString([]byte(c.opts.ClientID + ":" + c.opts.ClientSecret))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("qbo: refresh token: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("qbo: refresh token: status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var tok tokenResponse
	if err := json.Unmarshal(data, &tok); err != nil {
		return "", fmt.Errorf("qbo: decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("qbo: token response missing access_token")
	}

	c.accessToken = tok.AccessToken
	c.expiresAt = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	if tok.RefreshToken != "" {
		c.opts.RefreshToken = tok.RefreshToken
	}

	c.logger.Debug("access token refreshed", "expires_in", tok.ExpiresIn)
	return c.accessToken, nil
}
