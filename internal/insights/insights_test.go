package insights

import (
	"fmt"
	"testing"

	"github.com/finsight/statement-ledger/internal/models"
)

func debit(date, key, display string, amount float64) models.ScoredTransaction {
	return models.ScoredTransaction{
		TransactionCandidate: models.TransactionCandidate{
			Date: date, Type: "debit", Amount: -amount,
		},
		NormalizedKey: key,
		DisplayName:   display,
	}
}

func credit(date, key string, amount float64) models.ScoredTransaction {
	return models.ScoredTransaction{
		TransactionCandidate: models.TransactionCandidate{
			Date: date, Type: "credit", Amount: amount,
		},
		NormalizedKey: key,
	}
}

func TestSummaryDebitOnlySpend(t *testing.T) {
	txns := []models.ScoredTransaction{
		debit("Jan 5", "uber", "Uber", 25.00),
		debit("Jan 12", "starbucks", "Starbucks", 5.50),
		credit("Jan 15", "payroll deposit", 1500.00),
	}

	r := Summarize(txns, 2025)

	if r.Summary.TotalSpent != 30.50 {
		t.Errorf("total spent: got %f, want 30.50", r.Summary.TotalSpent)
	}
	if r.Summary.TotalReceived != 1500.00 {
		t.Errorf("total received: got %f, want 1500.00", r.Summary.TotalReceived)
	}
	if r.Summary.NetChange != 1469.50 {
		t.Errorf("net change: got %f, want 1469.50", r.Summary.NetChange)
	}
	if r.Summary.DebitCount != 2 || r.Summary.CreditCount != 1 {
		t.Errorf("counts: got %d debits %d credits", r.Summary.DebitCount, r.Summary.CreditCount)
	}
	if r.Summary.Period.Start != "2025-01-05" || r.Summary.Period.End != "2025-01-15" {
		t.Errorf("period: got %+v", r.Summary.Period)
	}

	// The credit must not appear in spend aggregates.
	for _, m := range r.TopMerchants {
		if m.Merchant == "payroll deposit" {
			t.Error("credit leaked into merchant aggregates")
		}
	}
}

func TestTopMerchantsOrderingAndTruncation(t *testing.T) {
	var txns []models.ScoredTransaction
	for i := 0; i < 12; i++ {
		key := fmt.Sprintf("merchant%02d", i)
		txns = append(txns, debit("Jan 5", key, key, float64(10+i)))
	}

	r := Summarize(txns, 2025)

	if len(r.TopMerchants) != 10 {
		t.Fatalf("top merchants: got %d, want 10", len(r.TopMerchants))
	}
	if r.TopMerchants[0].Merchant != "merchant11" {
		t.Errorf("rank 0: got %q, want biggest spender merchant11", r.TopMerchants[0].Merchant)
	}
	for i := 1; i < len(r.TopMerchants); i++ {
		if r.TopMerchants[i].TotalSpend > r.TopMerchants[i-1].TotalSpend {
			t.Fatalf("ordering broken at rank %d", i)
		}
	}
}

func TestTopMerchantsTieBreaksOnKey(t *testing.T) {
	txns := []models.ScoredTransaction{
		debit("Jan 5", "zeta shop", "Zeta Shop", 20.00),
		debit("Jan 6", "alpha shop", "Alpha Shop", 20.00),
	}

	r := Summarize(txns, 2025)
	if len(r.TopMerchants) != 2 {
		t.Fatalf("got %d merchants", len(r.TopMerchants))
	}
	if r.TopMerchants[0].Merchant != "alpha shop" {
		t.Errorf("equal spend must order by key: got %q first", r.TopMerchants[0].Merchant)
	}
}

func TestDetectRecurringMonthly(t *testing.T) {
	dates := []string{"Jan 5", "Feb 5", "Mar 5", "Apr 5", "May 5", "Jun 5"}
	var txns []models.ScoredTransaction
	for _, d := range dates {
		txns = append(txns, debit(d, "netflix", "Netflix", 16.99))
	}
	// Noise that must not be flagged: single occurrence, and a credit.
	txns = append(txns, debit("Mar 12", "one-off shop", "One-Off Shop", 49.99))
	txns = append(txns, credit("Jan 15", "payroll deposit", 1500.00))

	r := Summarize(txns, 2025)

	if len(r.RecurringCharges) != 1 {
		t.Fatalf("recurring: got %d series, want 1", len(r.RecurringCharges))
	}
	rc := r.RecurringCharges[0]
	if rc.Merchant != "netflix" {
		t.Errorf("merchant: got %q", rc.Merchant)
	}
	if rc.Frequency != "monthly" {
		t.Errorf("frequency: got %q, want monthly", rc.Frequency)
	}
	if rc.Occurrences != 6 {
		t.Errorf("occurrences: got %d, want 6", rc.Occurrences)
	}
	if rc.Amount != 16.99 {
		t.Errorf("amount: got %f, want 16.99", rc.Amount)
	}
	if rc.EstimatedAnnualCost != 203.88 {
		t.Errorf("annual cost: got %f, want 203.88", rc.EstimatedAnnualCost)
	}
	if len(rc.Dates) != 6 || rc.Dates[0] != "Jan 5" || rc.Dates[5] != "Jun 5" {
		t.Errorf("dates: got %v", rc.Dates)
	}

	if r.RecurringSummary.Count != 1 {
		t.Errorf("summary count: got %d", r.RecurringSummary.Count)
	}
	if r.RecurringSummary.TotalAnnualCost != 203.88 {
		t.Errorf("summary annual: got %f", r.RecurringSummary.TotalAnnualCost)
	}
	if r.RecurringSummary.TotalMonthlyCost != 16.99 {
		t.Errorf("summary monthly: got %f", r.RecurringSummary.TotalMonthlyCost)
	}
}

func TestDetectRecurringBiweekly(t *testing.T) {
	dates := []string{"Jan 3", "Jan 17", "Jan 31", "Feb 14"}
	var txns []models.ScoredTransaction
	for _, d := range dates {
		txns = append(txns, debit(d, "goodlife fitness", "GoodLife Fitness", 27.50))
	}

	r := Summarize(txns, 2025)

	if len(r.RecurringCharges) != 1 {
		t.Fatalf("recurring: got %d series, want 1", len(r.RecurringCharges))
	}
	rc := r.RecurringCharges[0]
	if rc.Frequency != "bi-weekly" {
		t.Errorf("frequency: got %q, want bi-weekly", rc.Frequency)
	}
	if rc.EstimatedAnnualCost != 715.00 {
		t.Errorf("annual cost: got %f, want 27.50*26=715.00", rc.EstimatedAnnualCost)
	}
}

func TestRecurringRejectsVariableAmounts(t *testing.T) {
	txns := []models.ScoredTransaction{
		debit("Jan 5", "uber", "Uber", 10.00),
		debit("Feb 5", "uber", "Uber", 12.00),
		debit("Mar 5", "uber", "Uber", 11.00),
	}

	r := Summarize(txns, 2025)
	if len(r.RecurringCharges) != 0 {
		t.Errorf("spread above 10%% of average must not flag: got %v", r.RecurringCharges)
	}
}

func TestRecurringRejectsIrregularSpacing(t *testing.T) {
	txns := []models.ScoredTransaction{
		debit("Jan 5", "starbucks", "Starbucks", 5.50),
		debit("Jan 7", "starbucks", "Starbucks", 5.50),
		debit("Jan 9", "starbucks", "Starbucks", 5.50),
	}

	r := Summarize(txns, 2025)
	if len(r.RecurringCharges) != 0 {
		t.Errorf("two-day spacing must not flag: got %v", r.RecurringCharges)
	}
}

func TestRecurringPrefersCanonicalDisplay(t *testing.T) {
	mk := func(date string) models.ScoredTransaction {
		tx := debit(date, "spotify", "Spotify Canada", 11.99)
		tx.CanonicalName = "Spotify"
		return tx
	}
	txns := []models.ScoredTransaction{mk("Jan 14"), mk("Feb 14"), mk("Mar 14")}

	r := Summarize(txns, 2025)
	if len(r.RecurringCharges) != 1 {
		t.Fatalf("recurring: got %d series", len(r.RecurringCharges))
	}
	if r.RecurringCharges[0].MerchantDisplay != "Spotify" {
		t.Errorf("display: got %q, want canonical name", r.RecurringCharges[0].MerchantDisplay)
	}
}

func TestSpendingByCategory(t *testing.T) {
	mk := func(key string, amount float64, category string) models.ScoredTransaction {
		tx := debit("Jan 5", key, key, amount)
		tx.Category = category
		return tx
	}
	txns := []models.ScoredTransaction{
		mk("uber", 30.00, "Transportation"),
		mk("lyft", 20.00, "Transportation"),
		mk("starbucks", 5.50, "Dining & Restaurants"),
		mk("corner store", 4.00, ""),
	}

	r := Summarize(txns, 2025)

	if len(r.SpendingByCategory) != 3 {
		t.Fatalf("categories: got %d, want 3", len(r.SpendingByCategory))
	}
	top := r.SpendingByCategory[0]
	if top.Category != "Transportation" || top.TotalSpend != 50.00 || top.TransactionCount != 2 {
		t.Errorf("top category: got %+v", top)
	}
	if top.AverageTransaction != 25.00 {
		t.Errorf("average: got %f, want 25.00", top.AverageTransaction)
	}

	var sawOther bool
	for _, c := range r.SpendingByCategory {
		if c.Category == "Other" {
			sawOther = true
		}
	}
	if !sawOther {
		t.Error("uncategorized spend must land in Other")
	}
}
