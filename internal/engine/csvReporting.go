package engine

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"folio/types"
)

// WriteTransactionsCSVFile exports the latest transactions of userID into
// the file named by cfg.
func (e *Engine) WriteTransactionsCSVFile(ctx context.Context, cfg *ReportingConfig, userID int64, limit int) (string, error) {
	txs, err := e.Transactions(ctx, userID, limit)
	if err != nil {
		return "", err
	}
	path := filepath.Join(cfg.filePath, cfg.reportName+".csv")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create transactions file: %w", err)
	}
	defer f.Close()

	if err := WriteTransactionsCSV(f, txs); err != nil {
		return "", err
	}
	return path, nil
}

// WriteTransactionsCSV writes transactions to any io.Writer as CSV.
func WriteTransactionsCSV(w io.Writer, txs []types.Transaction) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{
		"id",
		"op_id",
		"date",
		"type",
		"symbol",
		"quantity",
		"price_eur",
		"fees_eur",
		"cash_delta_eur",
		"note",
		"at", // RFC3339
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, t := range txs {
		if err := writeTransactionRow(cw, t); err != nil {
			return err
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func writeTransactionRow(cw *csv.Writer, t types.Transaction) error {
	record := []string{
		t.ID,
		t.OpID,
		t.Date.String(),
		string(t.Type),
		t.Symbol,
		t.Quantity.String(),
		t.Price.String(),
		t.Fees.String(),
		t.CashDelta.StringFixed(2),
		t.Note,
		t.At.Format(time.RFC3339),
	}
	if err := cw.Write(record); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}
