package merge

import (
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/finsight/statement-ledger/internal/models"
)

// fuzzyAmountTolerance is the largest amount difference between two
// same-day, same-merchant transactions still flagged as a possible
// duplicate rather than silently dropped.
const fuzzyAmountTolerance = 0.05

// Source pairs a statement label with its scored transactions.
type Source struct {
	Label        string
	Year         int
	Transactions []models.ScoredTransaction
}

// SourceStat reports how one source fared during the merge.
type SourceStat struct {
	Label      string `json:"label"`
	Total      int    `json:"total"`
	Kept       int    `json:"kept"`
	Duplicates int    `json:"duplicates"`
}

// PossibleDuplicate flags a fuzzy collision for manual review. Both
// transactions are kept in the merged output.
type PossibleDuplicate struct {
	Date     string  `json:"date"`
	Merchant string  `json:"merchant"`
	AmountA  float64 `json:"amount_a"`
	AmountB  float64 `json:"amount_b"`
	SourceA  string  `json:"source_a"`
	SourceB  string  `json:"source_b"`
}

// Result is the combined transaction set across statements.
type Result struct {
	Transactions       []models.ScoredTransaction `json:"transactions"`
	Sources            []SourceStat               `json:"sources"`
	PossibleDuplicates []PossibleDuplicate        `json:"possible_duplicates"`
	DuplicatesRemoved  int                        `json:"duplicates_removed"`
}

// Merge combines transactions from multiple statements into one
// chronological set. Exact duplicates (same date, normalized key, and
// amount) are dropped; near-matches within fuzzyAmountTolerance on the
// same day are kept but flagged.
func Merge(sources []Source, log zerolog.Logger) *Result {
	res := &Result{}
	seen := make(map[string]string)       // exact key -> source label
	nearKeys := make(map[string][]nearHit) // fuzzy bucket -> prior hits

	for _, src := range sources {
		stat := SourceStat{Label: src.Label, Total: len(src.Transactions)}
		for i := range src.Transactions {
			t := src.Transactions[i]
			key := exactKey(&t)
			if prior, dup := seen[key]; dup {
				stat.Duplicates++
				res.DuplicatesRemoved++
				log.Debug().
					Str("date", t.Date).
					Str("merchant", t.NormalizedKey).
					Float64("amount", t.Amount).
					Str("first_seen", prior).
					Msg("dropped exact duplicate")
				continue
			}
			seen[key] = src.Label

			bucket := fuzzyKey(&t)
			for _, hit := range nearKeys[bucket] {
				if hit.amount == t.Amount {
					continue
				}
				if math.Abs(hit.amount-t.Amount) <= fuzzyAmountTolerance {
					res.PossibleDuplicates = append(res.PossibleDuplicates, PossibleDuplicate{
						Date:     t.Date,
						Merchant: t.NormalizedKey,
						AmountA:  hit.amount,
						AmountB:  t.Amount,
						SourceA:  hit.source,
						SourceB:  src.Label,
					})
				}
			}
			nearKeys[bucket] = append(nearKeys[bucket], nearHit{amount: t.Amount, source: src.Label})

			res.Transactions = append(res.Transactions, t)
			stat.Kept++
		}
		res.Sources = append(res.Sources, stat)
	}

	sortChronological(res.Transactions, yearOf(sources))
	return res
}

type nearHit struct {
	amount float64
	source string
}

func exactKey(t *models.ScoredTransaction) string {
	return fmt.Sprintf("%s|%s|%.2f", t.Date, t.NormalizedKey, t.Amount)
}

// fuzzyKey buckets amounts to the nearest nickel so that near-identical
// charges on the same day land in the same bucket for comparison.
// Bucketing is a deliberate approximation: a pair straddling a bucket
// boundary (10.02 vs 10.04 round to 10.00 and 10.05) is not flagged
// even though the amounts differ by less than the tolerance.
func fuzzyKey(t *models.ScoredTransaction) string {
	nickel := math.Round(t.Amount*20) / 20
	return fmt.Sprintf("%s|%s|%.2f", t.Date, t.NormalizedKey, nickel)
}

func yearOf(sources []Source) int {
	for _, s := range sources {
		if s.Year != 0 {
			return s.Year
		}
	}
	return 0
}

func sortChronological(txns []models.ScoredTransaction, year int) {
	sort.SliceStable(txns, func(i, j int) bool {
		di, iok := models.ParseStatementDate(txns[i].Date, year)
		dj, jok := models.ParseStatementDate(txns[j].Date, year)
		if iok && jok && !di.Equal(dj) {
			return di.Before(dj)
		}
		if iok != jok {
			return iok // parseable dates sort before unparseable
		}
		return txns[i].NormalizedKey < txns[j].NormalizedKey
	})
}
