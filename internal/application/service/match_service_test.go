package service

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/receiptcheck/receipt-match-backend/internal/domain/matcher"
	"github.com/receiptcheck/receipt-match-backend/internal/domain/model"
	"github.com/receiptcheck/receipt-match-backend/internal/infrastructure/storage"
)

func newTestService(t *testing.T) (*MatchService, *storage.Storage) {
	t.Helper()
	store, err := storage.NewStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	m, err := matcher.New(matcher.DefaultConfig(), nil)
	require.NoError(t, err)

	return NewMatchService(store, m, nil), store
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func seedStatement(t *testing.T, store *storage.Storage) string {
	t.Helper()
	st, err := store.CreateStatement("2025-03", "EUR")
	require.NoError(t, err)

	txDate := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.InsertTransactions(st.ID, []*model.Transaction{
		{
			ID:             "tx1",
			RowIndex:       0,
			Date:           txDate,
			Amount:         decimal.RequireFromString("-54.99"),
			RawDescription: "REWE SAGT DANKE // KOELN",
			Currency:       model.EUR,
		},
		{
			ID:             "tx2",
			RowIndex:       1,
			Date:           txDate,
			Amount:         decimal.RequireFromString("-500.00"),
			RawDescription: "UNBEKANNTER EMPFAENGER",
			Currency:       model.EUR,
		},
	}))

	receiptDate := time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.InsertReceipts(st.ID, []*model.Receipt{
		{
			ID:       "r1",
			Filename: "rewe.pdf",
			Amount:   decPtr("54.99"),
			Date:     &receiptDate,
			Merchant: "REWE Markt GmbH",
			Currency: model.EUR,
		},
	}))
	return st.ID
}

func TestRunMatching_PersistsRunAndAssignments(t *testing.T) {
	// Arrange
	svc, store := newTestService(t)
	statementID := seedStatement(t, store)

	// Act
	run, result, err := svc.RunMatching(statementID)

	// Assert
	require.NoError(t, err)
	require.Len(t, result.Assignments, 1)
	assert.Equal(t, "tx1", result.Assignments[0].TransactionID)
	assert.Equal(t, "r1", result.Assignments[0].ReceiptID)

	assert.Equal(t, 2, run.TotalTransactions)
	assert.Equal(t, 1, run.Matched)

	runs, err := store.GetMatchRuns(statementID)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)

	txs, err := store.GetTransactions(statementID)
	require.NoError(t, err)
	assert.True(t, txs[0].Matched)
	assert.Equal(t, "r1", txs[0].MatchedReceiptID)
}

func TestRunMatching_SecondRunKeepsExistingMatches(t *testing.T) {
	svc, store := newTestService(t)
	statementID := seedStatement(t, store)

	_, first, err := svc.RunMatching(statementID)
	require.NoError(t, err)
	require.Len(t, first.Assignments, 1)

	// Matched rows are skipped, so the second run proposes nothing new.
	_, second, err := svc.RunMatching(statementID)
	require.NoError(t, err)
	assert.Empty(t, second.Assignments)
}

func TestRunMatching_SecondRunDoesNotReassignConsumedReceipt(t *testing.T) {
	// Two identical subscription charges, one receipt. The first run consumes
	// the receipt; the second must leave the other transaction unmatched
	// instead of handing the receipt out a second time.
	svc, store := newTestService(t)
	st, err := store.CreateStatement("2025-04", "EUR")
	require.NoError(t, err)

	require.NoError(t, store.InsertTransactions(st.ID, []*model.Transaction{
		{
			ID:             "tx1",
			RowIndex:       0,
			Date:           time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
			Amount:         decimal.RequireFromString("-9.99"),
			RawDescription: "SPOTIFY STOCKHOLM",
			Currency:       model.EUR,
		},
		{
			ID:             "tx2",
			RowIndex:       1,
			Date:           time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
			Amount:         decimal.RequireFromString("-9.99"),
			RawDescription: "SPOTIFY STOCKHOLM",
			Currency:       model.EUR,
		},
	}))
	receiptDate := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.InsertReceipts(st.ID, []*model.Receipt{
		{
			ID:       "r1",
			Filename: "spotify.pdf",
			Amount:   decPtr("9.99"),
			Date:     &receiptDate,
			Merchant: "Spotify AB",
			Currency: model.EUR,
		},
	}))

	_, first, err := svc.RunMatching(st.ID)
	require.NoError(t, err)
	require.Len(t, first.Assignments, 1)
	assert.Equal(t, "tx1", first.Assignments[0].TransactionID)

	_, second, err := svc.RunMatching(st.ID)
	require.NoError(t, err)
	assert.Empty(t, second.Assignments)

	// Persisted state still holds the receipt exactly once.
	txs, err := store.GetTransactions(st.ID)
	require.NoError(t, err)
	holders := 0
	for _, tx := range txs {
		if tx.MatchedReceiptID == "r1" {
			holders++
		}
	}
	assert.Equal(t, 1, holders)
}

func TestUnmatch_RecordsPairAndSuppressesRematch(t *testing.T) {
	svc, store := newTestService(t)
	statementID := seedStatement(t, store)

	_, _, err := svc.RunMatching(statementID)
	require.NoError(t, err)

	// Act: reviewer rejects the proposed match.
	require.NoError(t, svc.Unmatch("tx1"))

	txs, err := store.GetTransactions(statementID)
	require.NoError(t, err)
	assert.False(t, txs[0].Matched)
	assert.True(t, txs[0].ManuallyUnmatched)

	pairs, err := store.GetManualUnmatches(statementID)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, model.UnmatchedPair{TransactionID: "tx1", ReceiptID: "r1"}, pairs[0])

	// The rejected pairing is never proposed again.
	_, result, err := svc.RunMatching(statementID)
	require.NoError(t, err)
	assert.Empty(t, result.Assignments)
}

func TestUnmatch_UnknownTransaction(t *testing.T) {
	svc, store := newTestService(t)
	seedStatement(t, store)

	assert.Error(t, svc.Unmatch("missing"))
}

func TestAssign_ManualOverride(t *testing.T) {
	svc, store := newTestService(t)
	statementID := seedStatement(t, store)

	_, _, err := svc.RunMatching(statementID)
	require.NoError(t, err)
	require.NoError(t, svc.Unmatch("tx1"))

	// Act: reviewer assigns the receipt by hand after all.
	require.NoError(t, svc.Assign("tx1", "r1"))

	txs, err := store.GetTransactions(statementID)
	require.NoError(t, err)
	assert.True(t, txs[0].Matched)
	assert.Equal(t, "r1", txs[0].MatchedReceiptID)
	assert.Equal(t, ManualConfidence, txs[0].Confidence)
	assert.False(t, txs[0].ManuallyUnmatched)
}
