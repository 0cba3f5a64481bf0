package redact

import (
	"strings"
	"testing"

	"github.com/finsight/statement-ledger/internal/models"
)

func TestRedactCIBC(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		want     string
		mustLose []string
	}{
		{
			name:     "etransfer reference and recipient",
			input:    "E-TRANSFER 012345678901 Jane Doe 100.00",
			want:     "E-TRANSFER [REF] [RECIPIENT] 100.00",
			mustLose: []string{"012345678901", "Jane", "Doe"},
		},
		{
			name:     "preauthorized debit reference",
			input:    "PREAUTHORIZED DEBIT 1005802179 CIBC SECURITIES INC. 150.00",
			want:     "PREAUTHORIZED DEBIT [REF] CIBC SECURITIES INC. 150.00",
			mustLose: []string{"1005802179"},
		},
		{
			name:     "hyphenated surname",
			input:    "E-TRANSFER 012345678901 MARTIN-TREMBLAY 50.00",
			want:     "E-TRANSFER [REF] [NAME] 50.00",
			mustLose: []string{"MARTIN-TREMBLAY"},
		},
		{
			name:     "uber transaction id",
			input:    "UBER CANADA/UBE 250914440249 TORONTO",
			want:     "UBER CANADA/UBE [REF] TORONTO",
			mustLose: []string{"250914440249"},
		},
		{
			name:     "currency conversion detail",
			input:    "VISA DEBIT RETAIL PURCHASE 12.34 CAD @ 1.3800",
			want:     "VISA DEBIT RETAIL PURCHASE [CONVERSION]",
			mustLose: []string{"@ 1.3800"},
		},
		{
			name:     "internet transfer reference",
			input:    "INTERNET TRANSFER 0000123456789",
			want:     "INTERNET TRANSFER [REF]",
			mustLose: []string{"0000123456789"},
		},
		{
			name:     "trailing initials",
			input:    "MONTHLY FEE AE/EI",
			want:     "MONTHLY FEE",
			mustLose: []string{"AE/EI"},
		},
		{
			name:  "plain merchant untouched",
			input: "RETAIL PURCHASE STARBUCKS COFFEE 6.45",
			want:  "RETAIL PURCHASE STARBUCKS COFFEE 6.45",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Redact(tt.input, models.IssuerCIBC)
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
			for _, pii := range tt.mustLose {
				if strings.Contains(got, pii) {
					t.Errorf("output still contains %q", pii)
				}
			}
		})
	}
}

func TestRedactRBC(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		want     string
		mustLose []string
	}{
		{
			name:     "etransfer sent with recipient and code",
			input:    "e-Transfer sent John Smith A1B2C3 75.00",
			want:     "e-Transfer sent [RECIPIENT] [REF] 75.00",
			mustLose: []string{"John", "Smith", "A1B2C3"},
		},
		{
			name:     "etransfer code only",
			input:    "e-Transfer X9Y8Z7 received",
			want:     "e-Transfer [REF] received",
			mustLose: []string{"X9Y8Z7"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Redact(tt.input, models.IssuerRBC)
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
			for _, pii := range tt.mustLose {
				if strings.Contains(got, pii) {
					t.Errorf("output still contains %q", pii)
				}
			}
		})
	}
}

// Amounts, balances and dates must come through redaction byte-exact:
// the extractor downstream parses them from the redacted text.
func TestRedactPreservesFinancialTokens(t *testing.T) {
	input := "Nov 3 E-TRANSFER 012345678901 Jane Doe 1,250.00 3,847.12"
	got := Redact(input, models.IssuerCIBC)

	for _, keep := range []string{"Nov 3", "1,250.00", "3,847.12"} {
		if !strings.Contains(got, keep) {
			t.Errorf("redaction lost %q from %q", keep, got)
		}
	}
}

func TestRedactUnknownIssuerNoop(t *testing.T) {
	input := "E-TRANSFER 012345678901 Jane Doe"
	got := Redact(input, models.IssuerTag("unknown"))
	if got != input {
		t.Errorf("unknown issuer should leave text unchanged, got %q", got)
	}
}

func TestRedactPages(t *testing.T) {
	pages := []string{
		"E-TRANSFER 012345678901 sent",
		"PREAUTHORIZED DEBIT 9988776655 GYM",
	}
	got := RedactPages(pages, models.IssuerCIBC)

	if len(got) != 2 {
		t.Fatalf("pages: got %d, want 2", len(got))
	}
	if strings.Contains(got[0], "012345678901") {
		t.Error("page 0 still contains reference number")
	}
	if strings.Contains(got[1], "9988776655") {
		t.Error("page 1 still contains reference number")
	}
}
