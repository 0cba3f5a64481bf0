package writer

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/finsight/statement-ledger/internal/models"
)

func sampleLedger() *models.Ledger {
	balance := 975.00
	return &models.Ledger{
		StatementID: "stmt-001",
		SourceFile:  "november.pdf",
		Issuer:      models.IssuerCIBC,
		StatementPeriod: models.Period{
			Start: "2025-11-03",
			End:   "2025-11-07",
		},
		Summary: models.LedgerSummary{
			OpeningBalance:   1000.00,
			ClosingBalance:   975.00,
			TotalWithdrawals: 25.00,
		},
		Transactions: []models.ScoredTransaction{
			{
				TransactionCandidate: models.TransactionCandidate{
					Date: "Nov 3", Description: "UBER CANADA/UBE [REF]",
					Type: "debit", Amount: -25.00, Balance: &balance,
				},
				NormalizedKey:   "uber",
				DisplayName:     "Uber Canada/ube",
				CanonicalName:   "Uber",
				Category:        "Transportation",
				ConfidenceScore: 95,
			},
			{
				TransactionCandidate: models.TransactionCandidate{
					Date: "Nov 5", Description: "PAYROLL DEPOSIT ACME",
					Type: "credit", Amount: 1500.00,
				},
				NormalizedKey:   "acme",
				DisplayName:     "Acme",
				ConfidenceScore: 70,
			},
		},
	}
}

func TestCSVWriterWrite(t *testing.T) {
	var buf bytes.Buffer
	w := &CSVWriter{IncludeHeader: true}
	if err := w.Write(&buf, sampleLedger()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()
	lines := strings.Split(strings.TrimSpace(output), "\n")

	// 3 metadata rows, 1 header row, 2 transaction rows
	if len(lines) != 6 {
		t.Fatalf("got %d lines, want 6:\n%s", len(lines), output)
	}

	if !strings.Contains(lines[0], "# Issuer") || !strings.Contains(lines[0], "cibc") {
		t.Errorf("issuer row: got %q", lines[0])
	}
	if !strings.Contains(lines[2], "2025-11-03 to 2025-11-07") {
		t.Errorf("period row: got %q", lines[2])
	}
	if lines[3] != "Date,Description,Merchant,Category,Type,Amount,Balance,Confidence" {
		t.Errorf("header row: got %q", lines[3])
	}

	debit := lines[4]
	for _, want := range []string{"Nov 3", "UBER CANADA/UBE [REF]", "Uber", "Transportation", "debit", "-25.00", "975.00", "95"} {
		if !strings.Contains(debit, want) {
			t.Errorf("debit row missing %q: %q", want, debit)
		}
	}

	// Display name fills the merchant column when no canonical name exists,
	// and the missing balance stays an empty column.
	if want := "Nov 5,PAYROLL DEPOSIT ACME,Acme,,credit,1500.00,,70"; lines[5] != want {
		t.Errorf("credit row: got %q, want %q", lines[5], want)
	}
}

func TestCSVWriterNoMetadata(t *testing.T) {
	var buf bytes.Buffer
	w := &CSVWriter{}
	if err := w.Write(&buf, sampleLedger()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header plus 2 rows", len(lines))
	}
	if strings.HasPrefix(lines[0], "#") {
		t.Errorf("metadata written without IncludeHeader: %q", lines[0])
	}
}

func TestCSVWriterWriteToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.csv")
	w := &CSVWriter{IncludeHeader: true}
	if err := w.WriteToFile(path, sampleLedger()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !strings.Contains(string(data), "UBER CANADA/UBE [REF]") {
		t.Error("file output missing transaction row")
	}
}

func TestJSONWriterWrite(t *testing.T) {
	var buf bytes.Buffer
	w := &JSONWriter{}
	if err := w.Write(&buf, sampleLedger()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded models.Ledger
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.StatementID != "stmt-001" {
		t.Errorf("statement id: got %q", decoded.StatementID)
	}
	if len(decoded.Transactions) != 2 {
		t.Errorf("transactions: got %d", len(decoded.Transactions))
	}
	if !strings.Contains(buf.String(), "\n  ") {
		t.Error("expected indented output")
	}
}
