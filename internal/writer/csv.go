package writer

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/finsight/statement-ledger/internal/models"
)

// CSVWriter writes a ledger's transactions to CSV format.
type CSVWriter struct {
	IncludeHeader bool
}

// WriteToFile writes the ledger to a CSV file at the given path.
func (w *CSVWriter) WriteToFile(path string, ledger *models.Ledger) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %q: %w", path, err)
	}
	defer f.Close()

	return w.Write(f, ledger)
}

// Write writes the ledger in CSV format to the given writer.
func (w *CSVWriter) Write(out io.Writer, ledger *models.Ledger) error {
	writer := csv.NewWriter(out)
	defer writer.Flush()

	// Write metadata as comments (CSV header rows)
	if w.IncludeHeader {
		if ledger.Issuer != "" {
			writer.Write([]string{"# Issuer", string(ledger.Issuer)})
		}
		if ledger.SourceFile != "" {
			writer.Write([]string{"# Source File", ledger.SourceFile})
		}
		if ledger.StatementPeriod.Start != "" {
			writer.Write([]string{"# Statement Period", ledger.StatementPeriod.Start + " to " + ledger.StatementPeriod.End})
		}
	}

	header := []string{"Date", "Description", "Merchant", "Category", "Type", "Amount", "Balance", "Confidence"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, txn := range ledger.Transactions {
		balance := ""
		if txn.Balance != nil {
			balance = formatAmount(*txn.Balance)
		}
		row := []string{
			txn.Date,
			txn.Description,
			merchantOf(&txn),
			txn.Category,
			txn.Type,
			formatAmount(txn.Amount),
			balance,
			strconv.Itoa(txn.ConfidenceScore),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	return nil
}

// JSONWriter writes any pipeline output (ledger, merge result, insights
// report) as indented JSON.
type JSONWriter struct{}

// WriteToFile writes the value as JSON to the given path.
func (w *JSONWriter) WriteToFile(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %q: %w", path, err)
	}
	defer f.Close()

	return w.Write(f, v)
}

// Write writes the value as indented JSON to the given writer.
func (w *JSONWriter) Write(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON output: %w", err)
	}
	return nil
}

func merchantOf(txn *models.ScoredTransaction) string {
	if txn.CanonicalName != "" {
		return txn.CanonicalName
	}
	return txn.DisplayName
}

func formatAmount(amount float64) string {
	if amount == 0 {
		return ""
	}
	return strconv.FormatFloat(amount, 'f', 2, 64)
}
