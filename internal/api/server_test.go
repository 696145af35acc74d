package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/receiptcheck/receipt-match-backend/internal/application/service"
	"github.com/receiptcheck/receipt-match-backend/internal/domain/matcher"
	"github.com/receiptcheck/receipt-match-backend/internal/domain/model"
	"github.com/receiptcheck/receipt-match-backend/internal/infrastructure/config"
	"github.com/receiptcheck/receipt-match-backend/internal/infrastructure/storage"
)

func newTestServer(t *testing.T) (*gin.Engine, *storage.Storage, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := storage.NewStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	st, err := store.CreateStatement("2025-03", "EUR")
	require.NoError(t, err)

	amount := decimal.RequireFromString("54.99")
	receiptDate := time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.InsertTransactions(st.ID, []*model.Transaction{
		{
			ID:             "tx1",
			RowIndex:       0,
			Date:           time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
			Amount:         amount.Neg(),
			RawDescription: "REWE SAGT DANKE // KOELN",
			Currency:       model.EUR,
		},
	}))
	require.NoError(t, store.InsertReceipts(st.ID, []*model.Receipt{
		{
			ID:       "r1",
			Filename: "rewe.pdf",
			Amount:   &amount,
			Date:     &receiptDate,
			Merchant: "REWE Markt GmbH",
			Currency: model.EUR,
		},
	}))

	m, err := matcher.New(matcher.DefaultConfig(), nil)
	require.NoError(t, err)
	svc := service.NewMatchService(store, m, nil)

	importer := service.NewImportService(store, nil, nil)
	cfg := config.APIConfig{Port: 8080, AllowedOrigins: []string{"http://localhost:3000"}}
	server := NewServer(cfg, store, svc, importer, nil)
	return server.Router(), store, st.ID
}

func doRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	router, _, _ := newTestServer(t)

	w := doRequest(router, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestListStatements(t *testing.T) {
	router, _, _ := newTestServer(t)

	w := doRequest(router, http.MethodGet, "/api/statements", "")

	require.Equal(t, http.StatusOK, w.Code)
	var statements []storage.Statement
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &statements))
	require.Len(t, statements, 1)
	assert.Equal(t, "2025-03", statements[0].Name)
}

func TestMatchRunEndToEnd(t *testing.T) {
	router, _, statementID := newTestServer(t)

	// Act: trigger a run over the API.
	w := doRequest(router, http.MethodPost, "/api/statements/"+statementID+"/match", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Run         storage.MatchRun        `json:"run"`
		Assignments []model.MatchAssignment `json:"assignments"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Assignments, 1)
	assert.Equal(t, "r1", resp.Assignments[0].ReceiptID)

	// The run is visible afterwards.
	w = doRequest(router, http.MethodGet, "/api/statements/"+statementID+"/runs", "")
	require.Equal(t, http.StatusOK, w.Code)
	var runs []storage.MatchRun
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, resp.Run.ID, runs[0].ID)

	// And so are its assignments.
	w = doRequest(router, http.MethodGet, "/api/runs/"+resp.Run.ID+"/assignments", "")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestTransactionFilter(t *testing.T) {
	router, _, statementID := newTestServer(t)

	w := doRequest(router, http.MethodPost, "/api/statements/"+statementID+"/match", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodGet, "/api/statements/"+statementID+"/transactions?filter=unmatched", "")
	require.Equal(t, http.StatusOK, w.Code)
	var txs []model.Transaction
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &txs))
	assert.Empty(t, txs)

	w = doRequest(router, http.MethodGet, "/api/statements/"+statementID+"/transactions?filter=matched", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &txs))
	assert.Len(t, txs, 1)
}

func TestUnmatchAndAssign(t *testing.T) {
	router, store, statementID := newTestServer(t)

	w := doRequest(router, http.MethodPost, "/api/statements/"+statementID+"/match", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodPost, "/api/transactions/tx1/unmatch", "")
	require.Equal(t, http.StatusOK, w.Code)

	pairs, err := store.GetManualUnmatches(statementID)
	require.NoError(t, err)
	assert.Len(t, pairs, 1)

	w = doRequest(router, http.MethodPost, "/api/transactions/tx1/assign", `{"receipt_id":"r1"}`)
	require.Equal(t, http.StatusOK, w.Code)

	txs, err := store.GetTransactions(statementID)
	require.NoError(t, err)
	assert.True(t, txs[0].Matched)
}

func TestAssign_MissingBody(t *testing.T) {
	router, _, _ := newTestServer(t)

	w := doRequest(router, http.MethodPost, "/api/transactions/tx1/assign", `{}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStats(t *testing.T) {
	router, _, statementID := newTestServer(t)

	w := doRequest(router, http.MethodGet, "/api/statements/"+statementID+"/stats", "")

	require.Equal(t, http.StatusOK, w.Code)
	var stats storage.StatementStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Receipts)
}

func TestImportStatement(t *testing.T) {
	router, store, _ := newTestServer(t)

	body := `{
		"name": "2025-04",
		"home_currency": "EUR",
		"transactions": [
			{"date": "02.04.2025", "amount": "-9,99", "description": "SPOTIFY STOCKHOLM"}
		],
		"receipts": [
			{"filename": "spotify.pdf", "amount": "9,99", "date": "02.04.2025", "merchant": "Spotify AB"}
		]
	}`
	w := doRequest(router, http.MethodPost, "/api/statements", body)

	require.Equal(t, http.StatusCreated, w.Code)
	var st storage.Statement
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Equal(t, "2025-04", st.Name)

	txs, err := store.GetTransactions(st.ID)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "SPOTIFY STOCKHOLM", txs[0].RawDescription)
}

func TestImportStatement_BadPayload(t *testing.T) {
	router, _, _ := newTestServer(t)

	w := doRequest(router, http.MethodPost, "/api/statements", `{"name": ""}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUnmatch_UnknownTransaction(t *testing.T) {
	router, _, _ := newTestServer(t)

	w := doRequest(router, http.MethodPost, "/api/transactions/missing/unmatch", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
}
