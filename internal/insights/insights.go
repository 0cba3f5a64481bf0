package insights

import (
	"math"
	"sort"
	"time"

	"github.com/finsight/statement-ledger/internal/models"
)

// Recurring-charge detection windows: average gaps in these day ranges
// classify a charge series as monthly or bi-weekly.
const (
	monthlyMinDays  = 25
	monthlyMaxDays  = 35
	biweeklyMinDays = 12
	biweeklyMaxDays = 16

	// amountVarianceRatio is the tolerated spread between the largest and
	// smallest charge in a recurring series, relative to the average.
	amountVarianceRatio = 0.10

	minOccurrences = 2
	topMerchantsN  = 10
)

// Summary holds overall spend totals for a transaction set.
type Summary struct {
	TotalSpent        float64       `json:"total_spent"`
	TotalReceived     float64       `json:"total_received"`
	NetChange         float64       `json:"net_change"`
	DebitCount        int           `json:"debit_count"`
	CreditCount       int           `json:"credit_count"`
	TotalTransactions int           `json:"total_transactions"`
	Period            models.Period `json:"period"`
	AveragePerMonth   float64       `json:"average_per_month"`
}

// MerchantAggregate is per-merchant spend grouped on the normalized key.
type MerchantAggregate struct {
	Merchant           string  `json:"merchant"`
	MerchantDisplay    string  `json:"merchant_display"`
	Category           string  `json:"category"`
	TotalSpend         float64 `json:"total_spend"`
	TransactionCount   int     `json:"transaction_count"`
	AverageTransaction float64 `json:"average_transaction"`
}

// CategoryAggregate is per-category spend.
type CategoryAggregate struct {
	Category           string  `json:"category"`
	TotalSpend         float64 `json:"total_spend"`
	TransactionCount   int     `json:"transaction_count"`
	AverageTransaction float64 `json:"average_transaction"`
}

// RecurringCharge is one detected subscription-like series.
type RecurringCharge struct {
	Merchant            string   `json:"merchant"`
	MerchantDisplay     string   `json:"merchant_display"`
	Amount              float64  `json:"amount"`
	Frequency           string   `json:"frequency"` // "monthly" or "bi-weekly"
	Occurrences         int      `json:"occurrences"`
	Dates               []string `json:"dates"`
	EstimatedAnnualCost float64  `json:"estimated_annual_cost"`
}

// RecurringSummary totals the recurring series.
type RecurringSummary struct {
	Count            int     `json:"count"`
	TotalAnnualCost  float64 `json:"total_annual_cost"`
	TotalMonthlyCost float64 `json:"total_monthly_cost"`
}

// Report is the full insights output. Derived data: recomputed on demand,
// never persisted as authoritative state.
type Report struct {
	GeneratedAt        time.Time           `json:"generated_at"`
	Summary            Summary             `json:"summary"`
	TopMerchants       []MerchantAggregate `json:"top_merchants"`
	RecurringCharges   []RecurringCharge   `json:"recurring_charges"`
	RecurringSummary   RecurringSummary    `json:"recurring_summary"`
	SpendingByCategory []CategoryAggregate `json:"spending_by_category"`
}

// Summarize computes the insights report for a finalized transaction set.
// Only debits contribute to spend aggregates; credits are counted
// separately. Output ordering is deterministic for a fixed input.
func Summarize(txns []models.ScoredTransaction, year int) *Report {
	recurring := detectRecurring(txns, year)

	totalAnnual := 0.0
	for _, r := range recurring {
		totalAnnual += r.EstimatedAnnualCost
	}

	return &Report{
		GeneratedAt:      time.Now(),
		Summary:          summarize(txns, year),
		TopMerchants:     topMerchants(txns),
		RecurringCharges: recurring,
		RecurringSummary: RecurringSummary{
			Count:            len(recurring),
			TotalAnnualCost:  roundCents(totalAnnual),
			TotalMonthlyCost: roundCents(totalAnnual / 12),
		},
		SpendingByCategory: byCategory(txns),
	}
}

func summarize(txns []models.ScoredTransaction, year int) Summary {
	s := Summary{TotalTransactions: len(txns)}

	var dates []time.Time
	for i := range txns {
		t := &txns[i]
		if d, ok := models.ParseStatementDate(t.Date, year); ok {
			dates = append(dates, d)
		}
		if t.IsDebit() {
			s.TotalSpent += math.Abs(t.Amount)
			s.DebitCount++
		} else {
			s.TotalReceived += t.Amount
			s.CreditCount++
		}
	}
	s.TotalSpent = roundCents(s.TotalSpent)
	s.TotalReceived = roundCents(s.TotalReceived)
	s.NetChange = roundCents(s.TotalReceived - s.TotalSpent)

	if len(dates) > 0 {
		sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
		start, end := dates[0], dates[len(dates)-1]
		s.Period = models.Period{
			Start: start.Format("2006-01-02"),
			End:   end.Format("2006-01-02"),
		}
		months := (end.Sub(start).Hours()/24 + 1) / 30.0
		if months > 0 {
			s.AveragePerMonth = roundCents(s.TotalSpent / months)
		}
	}
	return s
}

func topMerchants(txns []models.ScoredTransaction) []MerchantAggregate {
	groups := make(map[string]*MerchantAggregate)
	for i := range txns {
		t := &txns[i]
		if !t.IsDebit() {
			continue
		}
		agg := groups[t.NormalizedKey]
		if agg == nil {
			agg = &MerchantAggregate{
				Merchant: t.NormalizedKey,
				Category: t.Category,
			}
			groups[t.NormalizedKey] = agg
		}
		agg.TotalSpend += math.Abs(t.Amount)
		agg.TransactionCount++
		if agg.MerchantDisplay == "" {
			agg.MerchantDisplay = displayFor(t)
		}
	}

	out := make([]MerchantAggregate, 0, len(groups))
	for _, agg := range groups {
		agg.TotalSpend = roundCents(agg.TotalSpend)
		agg.AverageTransaction = roundCents(agg.TotalSpend / float64(agg.TransactionCount))
		out = append(out, *agg)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalSpend != out[j].TotalSpend {
			return out[i].TotalSpend > out[j].TotalSpend
		}
		return out[i].Merchant < out[j].Merchant
	})

	if len(out) > topMerchantsN {
		out = out[:topMerchantsN]
	}
	return out
}

func byCategory(txns []models.ScoredTransaction) []CategoryAggregate {
	groups := make(map[string]*CategoryAggregate)
	for i := range txns {
		t := &txns[i]
		if !t.IsDebit() {
			continue
		}
		category := t.Category
		if category == "" {
			category = "Other"
		}
		agg := groups[category]
		if agg == nil {
			agg = &CategoryAggregate{Category: category}
			groups[category] = agg
		}
		agg.TotalSpend += math.Abs(t.Amount)
		agg.TransactionCount++
	}

	out := make([]CategoryAggregate, 0, len(groups))
	for _, agg := range groups {
		agg.TotalSpend = roundCents(agg.TotalSpend)
		agg.AverageTransaction = roundCents(agg.TotalSpend / float64(agg.TransactionCount))
		out = append(out, *agg)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalSpend != out[j].TotalSpend {
			return out[i].TotalSpend > out[j].TotalSpend
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// detectRecurring flags a merchant's debit series as recurring when it has
// at least two occurrences, near-identical amounts, and regular monthly or
// bi-weekly spacing.
func detectRecurring(txns []models.ScoredTransaction, year int) []RecurringCharge {
	type occurrence struct {
		date    time.Time
		dateStr string
		amount  float64
	}
	groups := make(map[string][]occurrence)
	displays := make(map[string]string)

	for i := range txns {
		t := &txns[i]
		if !t.IsDebit() {
			continue
		}
		d, ok := models.ParseStatementDate(t.Date, year)
		if !ok {
			continue
		}
		groups[t.NormalizedKey] = append(groups[t.NormalizedKey], occurrence{
			date:    d,
			dateStr: t.Date,
			amount:  math.Abs(t.Amount),
		})
		if displays[t.NormalizedKey] == "" {
			displays[t.NormalizedKey] = displayFor(t)
		}
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []RecurringCharge
	for _, key := range keys {
		occs := groups[key]
		if len(occs) < minOccurrences {
			continue
		}
		sort.Slice(occs, func(i, j int) bool { return occs[i].date.Before(occs[j].date) })

		minAmt, maxAmt, sum := occs[0].amount, occs[0].amount, 0.0
		for _, o := range occs {
			sum += o.amount
			if o.amount < minAmt {
				minAmt = o.amount
			}
			if o.amount > maxAmt {
				maxAmt = o.amount
			}
		}
		avgAmount := sum / float64(len(occs))
		if maxAmt-minAmt > avgAmount*amountVarianceRatio {
			continue
		}

		totalGap := 0.0
		for i := 1; i < len(occs); i++ {
			totalGap += occs[i].date.Sub(occs[i-1].date).Hours() / 24
		}
		avgInterval := totalGap / float64(len(occs)-1)

		var frequency string
		var perYear float64
		switch {
		case avgInterval >= monthlyMinDays && avgInterval <= monthlyMaxDays:
			frequency, perYear = "monthly", 12
		case avgInterval >= biweeklyMinDays && avgInterval <= biweeklyMaxDays:
			frequency, perYear = "bi-weekly", 26
		default:
			continue
		}

		dates := make([]string, len(occs))
		for i, o := range occs {
			dates[i] = o.dateStr
		}

		out = append(out, RecurringCharge{
			Merchant:            key,
			MerchantDisplay:     displays[key],
			Amount:              roundCents(avgAmount),
			Frequency:           frequency,
			Occurrences:         len(occs),
			Dates:               dates,
			EstimatedAnnualCost: roundCents(avgAmount * perYear),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].EstimatedAnnualCost != out[j].EstimatedAnnualCost {
			return out[i].EstimatedAnnualCost > out[j].EstimatedAnnualCost
		}
		return out[i].Merchant < out[j].Merchant
	})
	return out
}

func displayFor(t *models.ScoredTransaction) string {
	if t.CanonicalName != "" {
		return t.CanonicalName
	}
	if t.DisplayName != "" {
		return t.DisplayName
	}
	return t.NormalizedKey
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
