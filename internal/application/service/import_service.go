package service

import (
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/receiptcheck/receipt-match-backend/internal/domain/model"
	"github.com/receiptcheck/receipt-match-backend/internal/domain/normalize"
	"github.com/receiptcheck/receipt-match-backend/internal/infrastructure/storage"
)

// RawTransaction is one statement row as extracted, before normalization.
type RawTransaction struct {
	Date        string `json:"date"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
}

// RawReceipt is one receipt extraction result, before normalization.
type RawReceipt struct {
	Filename string `json:"filename"`
	Amount   string `json:"amount"`
	Date     string `json:"date"`
	Merchant string `json:"merchant"`
}

// StatementImport is a complete statement plus its receipt pool.
type StatementImport struct {
	Name         string           `json:"name"`
	HomeCurrency string           `json:"home_currency"`
	Transactions []RawTransaction `json:"transactions"`
	Receipts     []RawReceipt     `json:"receipts"`
}

// ImportService normalizes raw extraction output and persists it as a
// statement ready for matching.
type ImportService struct {
	store  *storage.Storage
	logger *slog.Logger
	now    func() time.Time
}

// NewImportService wires the service. now is the clock for the year-correction
// heuristic; nil selects time.Now.
func NewImportService(store *storage.Storage, logger *slog.Logger, now func() time.Time) *ImportService {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &ImportService{
		store:  store,
		logger: logger,
		now:    now,
	}
}

// Import normalizes and stores a statement. Rows and receipts with
// unparseable fields are kept with those fields absent; normalization never
// drops records or aborts the import.
func (s *ImportService) Import(in StatementImport) (*storage.Statement, error) {
	if in.Name == "" {
		return nil, fmt.Errorf("statement name must not be empty")
	}
	home := model.Currency(in.HomeCurrency)
	if home == "" {
		home = model.EUR
	}
	now := s.now()

	st, err := s.store.CreateStatement(in.Name, string(home))
	if err != nil {
		return nil, err
	}

	transactions := make([]*model.Transaction, 0, len(in.Transactions))
	for i, raw := range in.Transactions {
		transactions = append(transactions, s.normalizeTransaction(i, raw, home, now))
	}
	if err := s.store.InsertTransactions(st.ID, transactions); err != nil {
		return nil, fmt.Errorf("import transactions: %w", err)
	}

	receipts := make([]*model.Receipt, 0, len(in.Receipts))
	for _, raw := range in.Receipts {
		receipts = append(receipts, s.normalizeReceipt(raw, home, now))
	}
	if err := s.store.InsertReceipts(st.ID, receipts); err != nil {
		return nil, fmt.Errorf("import receipts: %w", err)
	}

	s.logger.Info("statement imported",
		"statement", st.ID,
		"name", st.Name,
		"transactions", len(transactions),
		"receipts", len(receipts))
	return st, nil
}

func (s *ImportService) normalizeTransaction(rowIndex int, raw RawTransaction, home model.Currency, now time.Time) *model.Transaction {
	tx := &model.Transaction{
		RowIndex:       rowIndex,
		RawDescription: raw.Description,
		Currency:       home,
	}

	if amount, currency, ok := normalize.ParseAmount(raw.Amount); ok {
		tx.Amount = amount
		if currency != model.EUR {
			tx.Currency = currency
		}
	} else {
		s.logger.Warn("unparseable transaction amount",
			"row", rowIndex, "raw", raw.Amount)
	}

	if d, ok := normalize.ParseDate(raw.Date, now); ok {
		tx.Date = d.Date
	}

	if amount, currency := normalize.ExtractForeignAmount(raw.Description); amount != nil {
		tx.ForeignAmount = amount
		tx.ForeignCurrency = currency
	}
	return tx
}

func (s *ImportService) normalizeReceipt(raw RawReceipt, home model.Currency, now time.Time) *model.Receipt {
	r := &model.Receipt{
		ID:            receiptID(raw.Filename),
		Filename:      raw.Filename,
		Merchant:      raw.Merchant,
		Currency:      home,
		SourceIsImage: isImageFile(raw.Filename),
	}

	if amount, currency, ok := normalize.ParseAmount(raw.Amount); ok {
		r.Amount = &amount
		if currency != model.EUR {
			r.Currency = currency
		}
	}

	if d, ok := normalize.ParseDate(raw.Date, now); ok {
		date := d.Date
		r.Date = &date
		r.DateCorrected = d.Corrected
		if d.Corrected {
			s.logger.Warn("receipt year corrected",
				"receipt", r.ID,
				"raw", raw.Date,
				"corrected", date.Format("2006-01-02"))
		}
	}
	return r
}

// receiptID derives a stable identifier from the receipt filename.
func receiptID(filename string) string {
	base := path.Base(filename)
	return strings.TrimSuffix(base, path.Ext(base))
}

func isImageFile(filename string) bool {
	switch strings.ToLower(path.Ext(filename)) {
	case ".png", ".jpg", ".jpeg", ".heic", ".tiff":
		return true
	}
	return false
}
