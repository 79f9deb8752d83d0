package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgermatch/ledgermatch-backend/internal/adapters/extraction"
	"github.com/ledgermatch/ledgermatch-backend/internal/adapters/qbo"
	"github.com/ledgermatch/ledgermatch-backend/internal/api/dto"
	"github.com/ledgermatch/ledgermatch-backend/internal/application/service"
	"github.com/ledgermatch/ledgermatch-backend/internal/domain/reconcile"
	"github.com/ledgermatch/ledgermatch-backend/internal/infrastructure/analytics"
	"github.com/ledgermatch/ledgermatch-backend/internal/infrastructure/config"
	"github.com/ledgermatch/ledgermatch-backend/internal/infrastructure/objectstore"
	"github.com/ledgermatch/ledgermatch-backend/internal/infrastructure/storage"
)

type testEnv struct {
	server    *Server
	repo      *storage.MockRepository
	gateway   *qbo.MockGateway
	extractor *extraction.MockExtractor
	objects   *objectstore.MockStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		repo:      storage.NewMockRepository(),
		gateway:   &qbo.MockGateway{},
		extractor: &extraction.MockExtractor{},
		objects:   objectstore.NewMockStore(),
	}
	tracker := analytics.NewTracker()
	logger := slog.New(slog.DiscardHandler)
	cfg := config.LoadFromEnv()
	svc := service.NewReconcileService(cfg, env.repo, env.gateway, env.extractor, env.objects, tracker, logger)
	env.server = NewServer(svc, env.repo, tracker, []string{"http://localhost:5173"}, logger)
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestUploadDocument(t *testing.T) {
	env := newTestEnv(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "january.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4 fake"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("company_id", "co-1"))
	require.NoError(t, mw.Close())

	w := env.do(t, http.MethodPost, "/api/documents", buf.Bytes(), mw.FormDataContentType())
	require.Equal(t, http.StatusCreated, w.Code)

	var doc dto.DocumentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, "january.pdf", doc.Filename)
	assert.Equal(t, "co-1", doc.CompanyID)
	assert.Equal(t, storage.DocStatusUploaded, doc.Status)
	assert.True(t, env.objects.PutCalled)
}

func TestUploadDocument_MissingFile(t *testing.T) {
	env := newTestEnv(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("company_id", "co-1"))
	require.NoError(t, mw.Close())

	w := env.do(t, http.MethodPost, "/api/documents", buf.Bytes(), mw.FormDataContentType())
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "file")
}

func TestGetDocument(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.repo.SaveDocument(&storage.Document{
		ID: "doc-1", Filename: "s.pdf", Status: storage.DocStatusUploaded, UploadedAt: time.Now().UTC(),
	}))

	w := env.do(t, http.MethodGet, "/api/documents/doc-1", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var doc dto.DocumentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, "s.pdf", doc.Filename)

	w = env.do(t, http.MethodGet, "/api/documents/missing", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListDocuments(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC()
	require.NoError(t, env.repo.SaveDocument(&storage.Document{
		ID: "a", Filename: "a.pdf", Status: storage.DocStatusUploaded, UploadedAt: now,
	}))
	require.NoError(t, env.repo.SaveDocument(&storage.Document{
		ID: "b", Filename: "b.pdf", Status: storage.DocStatusReconciled, UploadedAt: now.Add(time.Minute),
	}))

	w := env.do(t, http.MethodGet, "/api/documents?status=reconciled", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var docs []dto.DocumentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &docs))
	require.Len(t, docs, 1)
	assert.Equal(t, "b", docs[0].ID)
}

func TestStartReconcileAndPollJob(t *testing.T) {
	env := newTestEnv(t)

	doc := &storage.Document{
		ID: "doc-1", Filename: "s.pdf", Status: storage.DocStatusUploaded,
		ObjectURI: "gs://mock-bucket/statements/doc-1/s.pdf", UploadedAt: time.Now().UTC(),
	}
	require.NoError(t, env.repo.SaveDocument(doc))
	env.objects.Seed(doc.ObjectURI, []byte("pdf"))

	txnDate := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	env.extractor.Statement = &extraction.StatementData{
		Transactions: []*reconcile.ExtractedTransaction{
			{Date: txnDate, Description: "AMAZON", Amount: -150.00, Type: reconcile.TypeDebit},
		},
	}
	env.gateway.Feed = []reconcile.FeedTransaction{
		{ID: "qbo_1", Date: txnDate, Amount: -150.00, Description: "AMAZON"},
	}

	body, _ := json.Marshal(dto.ReconcileRequest{DocumentID: "doc-1", AccountID: "acct-9"})
	w := env.do(t, http.MethodPost, "/api/reconcile", body, "application/json")
	require.Equal(t, http.StatusAccepted, w.Code)

	var started dto.ReconcileStartedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &started))
	require.NotEmpty(t, started.JobID)

	var job dto.JobResponse
	require.Eventually(t, func() bool {
		resp := env.do(t, http.MethodGet, "/api/reconcile/"+started.JobID, nil, "")
		if resp.Code != http.StatusOK {
			return false
		}
		if err := json.Unmarshal(resp.Body.Bytes(), &job); err != nil {
			return false
		}
		return job.Status == string(service.StatusCompleted) || job.Status == string(service.StatusFailed)
	}, 5*time.Second, 10*time.Millisecond)

	require.Equal(t, string(service.StatusCompleted), job.Status)
	require.NotNil(t, job.Summary)
	assert.Equal(t, 1, job.Summary.Matched)
	assert.Equal(t, "100.0%", job.Summary.MatchRate)

	// Matches are persisted and exposed per document.
	w = env.do(t, http.MethodGet, "/api/documents/doc-1/matches", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var matches []dto.MatchRecordResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &matches))
	require.Len(t, matches, 1)
	assert.True(t, matches[0].Matched)
	assert.Equal(t, "qbo_1", matches[0].FeedTransactionID)
}

func TestStartReconcile_Validation(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/reconcile", []byte(`{"account_id":"a"}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body, _ := json.Marshal(dto.ReconcileRequest{DocumentID: "missing", AccountID: "acct-9"})
	w = env.do(t, http.MethodPost, "/api/reconcile", body, "application/json")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetJob_NotFound(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/reconcile/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExportCSV(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.repo.SaveDocument(&storage.Document{
		ID: "doc-1", Filename: "s.pdf", Status: storage.DocStatusReconciled, UploadedAt: time.Now().UTC(),
	}))
	require.NoError(t, env.repo.StartRun(&storage.ReconcileRun{ID: "run-1", DocumentID: "doc-1"}))
	require.NoError(t, env.repo.SaveMatchRecords([]*storage.MatchRecord{
		{RunID: "run-1", DocumentID: "doc-1", TxnDate: time.Now().UTC(), Description: "AMAZON", Amount: -150, Matched: true},
	}))

	w := env.do(t, http.MethodGet, "/api/export/run-1/csv", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "reconcile-run-1.csv")

	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Description")
	assert.Contains(t, lines[1], "AMAZON")
}

func TestExport_RunNotFound(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/export/missing/csv", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/api/export/missing/xlsx", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetStats(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/stats", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp, "totals")
	assert.Contains(t, resp, "events")
}

func TestCancelJob_NotFound(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodDelete, "/api/reconcile/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
