package models

// IssuerTag identifies which institution's statement format a document uses.
type IssuerTag string

const (
	IssuerCIBC IssuerTag = "cibc"
	IssuerRBC  IssuerTag = "rbc"
)

// TextItem is a single positioned text fragment extracted from a statement
// page. Coordinates are in PDF points, origin top-left.
type TextItem struct {
	Page int     `json:"page"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Text string  `json:"text"`
}

// StatementDocument is the immutable input to one pipeline invocation:
// either plain text pages, or positioned text items, plus the issuer tag
// once detection has run.
type StatementDocument struct {
	ID         string     `json:"id"`
	SourceFile string     `json:"source_file,omitempty"`
	Pages      []string   `json:"pages,omitempty"`
	Items      []TextItem `json:"items,omitempty"`
	Issuer     IssuerTag  `json:"issuer,omitempty"`
	Year       int        `json:"year,omitempty"`
}

// Text returns the document's pages joined into one blob.
func (d *StatementDocument) Text() string {
	combined := ""
	for _, p := range d.Pages {
		combined += p + "\n"
	}
	return combined
}

// TransactionCandidate is one raw transaction as reconstructed by the
// extractor. Amount is signed: debits negative, credits positive.
type TransactionCandidate struct {
	Date        string   `json:"date"`
	Description string   `json:"description"`
	Type        string   `json:"type"` // "debit" or "credit"
	Amount      float64  `json:"amount"`
	Balance     *float64 `json:"balance,omitempty"`
	LineStart   int      `json:"line_start,omitempty"`
	LineEnd     int      `json:"line_end,omitempty"`
	ParseMethod string   `json:"parse_method,omitempty"`
	// LowConfidence marks candidates produced by ambiguous paths
	// (glued-number splits, reconciliation drift). The scorer caps these.
	LowConfidence bool `json:"low_confidence,omitempty"`
}

// IsDebit reports whether the candidate is a spend transaction.
func (t *TransactionCandidate) IsDebit() bool {
	return t.Type == "debit" || t.Amount < 0
}

// ScoredTransaction is a candidate after normalization, dictionary matching
// and confidence scoring.
type ScoredTransaction struct {
	TransactionCandidate

	NormalizedKey   string `json:"normalized_merchant"`
	DisplayName     string `json:"merchant_display"`
	Kind            string `json:"kind,omitempty"`
	CanonicalName   string `json:"canonical_name,omitempty"`
	Category        string `json:"category,omitempty"`
	Matched         bool   `json:"matched"`
	MatchType       string `json:"match_type,omitempty"` // "exact", "alias", "fuzzy"
	SuggestedMatch  string `json:"suggested_match,omitempty"`
	ConfidenceScore int    `json:"confidence_score"`
	ConfidenceTier  string `json:"confidence_level"` // "high", "medium", "low"
	NeedsReview     bool   `json:"needs_review"`
}

// Period is an inclusive date range taken from statement headers or from the
// first and last transaction dates.
type Period struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// LedgerSummary holds statement-level totals.
type LedgerSummary struct {
	OpeningBalance   float64 `json:"opening_balance"`
	ClosingBalance   float64 `json:"closing_balance"`
	TotalWithdrawals float64 `json:"total_withdrawals"`
	TotalDeposits    float64 `json:"total_deposits"`
}

// Ledger is the pipeline's final output for one statement.
type Ledger struct {
	StatementID     string              `json:"statement_id,omitempty"`
	SourceFile      string              `json:"source_file,omitempty"`
	Issuer          IssuerTag           `json:"issuer"`
	StatementPeriod Period              `json:"statement_period"`
	Summary         LedgerSummary       `json:"summary"`
	Transactions    []ScoredTransaction `json:"transactions"`
}
