package issuer

import (
	"errors"
	"strings"
	"testing"

	"github.com/finsight/statement-ledger/internal/models"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		text string
		want models.IssuerTag
	}{
		{
			name: "cibc letterhead",
			text: "CIBC Account Statement\nYour account summary",
			want: models.IssuerCIBC,
		},
		{
			name: "cibc full name",
			text: "Canadian Imperial Bank of Commerce\nStatement of account",
			want: models.IssuerCIBC,
		},
		{
			name: "rbc letterhead",
			text: "RBC Royal Bank\nYour account statement",
			want: models.IssuerRBC,
		},
		{
			name: "royal bank full name",
			text: "Royal Bank of Canada\nStatement",
			want: models.IssuerRBC,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Detect(tt.text)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDetectUnrecognized(t *testing.T) {
	_, err := Detect("Some Other Bank\nAccount statement for June")
	if err == nil {
		t.Fatal("expected error for unknown issuer")
	}
	if !errors.Is(err, ErrUnrecognizedIssuer) {
		t.Errorf("expected ErrUnrecognizedIssuer, got %v", err)
	}
}

func TestDetectHeaderWindowOnly(t *testing.T) {
	// Keywords beyond the header window must not match: a merchant named
	// after a bank deep in the body is not the issuer.
	padding := strings.Repeat("x", headerWindow)
	_, err := Detect(padding + " CIBC")
	if err == nil {
		t.Error("expected error when keyword appears after header window")
	}
}

func TestDetectPriorityOrder(t *testing.T) {
	// Both keyword sets present: first profile in priority order wins.
	got, err := Detect("CIBC and RBC both named in header")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != models.IssuerCIBC {
		t.Errorf("got %q, want %q", got, models.IssuerCIBC)
	}
}

func TestProfileFor(t *testing.T) {
	p, err := ProfileFor(models.IssuerRBC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name != "RBC" {
		t.Errorf("name: got %q, want %q", p.Name, "RBC")
	}

	if _, err := ProfileFor("scotiabank"); err == nil {
		t.Error("expected error for unsupported issuer")
	}
}
