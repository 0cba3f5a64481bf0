package dictionary

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/finsight/statement-ledger/internal/models"
)

//go:embed categories.yaml
var categoryRulesYAML []byte

type categoryRule struct {
	Category string   `yaml:"category"`
	Keywords []string `yaml:"keywords"`
}

type categoryRuleFile struct {
	Rules []categoryRule `yaml:"rules"`
}

var categoryRules = mustLoadCategoryRules()

func mustLoadCategoryRules() []categoryRule {
	var f categoryRuleFile
	if err := yaml.Unmarshal(categoryRulesYAML, &f); err != nil {
		panic(fmt.Sprintf("dictionary: bad embedded category rules: %v", err))
	}
	return f.Rules
}

// SuggestCategory picks a category for a merchant by keyword rules over
// the normalized key and display name. Falls back to "Other".
func SuggestCategory(normalizedKey, displayName string) string {
	search := strings.ToLower(normalizedKey) + " " + strings.ToLower(displayName)
	for _, rule := range categoryRules {
		for _, kw := range rule.Keywords {
			if strings.Contains(search, kw) {
				return rule.Category
			}
		}
	}
	return "Other"
}

// LoadSeed merges entries from a seed file (same JSON shape as the
// dictionary document) into the dictionary. Existing keys are left alone:
// seeds never overwrite learned state.
func (d *Dictionary) LoadSeed(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: read seed %s: %v", ErrDictionaryIO, path, err)
	}

	var doc map[string]*Entry
	if err := json.Unmarshal(data, &doc); err != nil {
		return 0, fmt.Errorf("%w: parse seed %s: %v", ErrDictionaryIO, path, err)
	}

	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	d.mu.Lock()
	defer d.mu.Unlock()

	added := 0
	for _, key := range keys {
		seed := doc[key]
		if seed.Key == "" {
			seed.Key = key
		}
		if _, exists := d.entries[seed.Key]; exists {
			continue
		}
		category := seed.Category
		if !ValidCategory(category) {
			category = SuggestCategory(seed.Key, seed.CanonicalName)
		}
		e := d.addLocked(seed.Key, seed.CanonicalName, category, ProvenanceSeed, seed.Aliases)
		e.TxnCount = seed.TxnCount
		e.TotalSpend = seed.TotalSpend
		added++
	}
	return added, nil
}

// Bootstrap builds dictionary entries from a batch of normalized
// transactions: one entry per key with at least minCount debits and
// MinTotalSpend of debit activity, with a rule-suggested category.
// minCount below one falls back to MinOccurrences. Credits never teach,
// and existing keys and guardrail-excluded merchants are left alone.
func (d *Dictionary) Bootstrap(txns []models.ScoredTransaction, minCount int) int {
	if minCount < 1 {
		minCount = MinOccurrences
	}

	type stat struct {
		count   int
		spend   float64
		display string
	}
	stats := make(map[string]*stat)
	for i := range txns {
		t := &txns[i]
		if t.NormalizedKey == "" || t.NormalizedKey == "unknown" {
			continue
		}
		if !t.IsDebit() {
			continue
		}
		s := stats[t.NormalizedKey]
		if s == nil {
			s = &stat{}
			stats[t.NormalizedKey] = s
		}
		s.count++
		s.spend += math.Abs(t.Amount)
		if len(t.DisplayName) > len(s.display) {
			s.display = t.DisplayName
		}
	}

	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	d.mu.Lock()
	defer d.mu.Unlock()

	added := 0
	for _, key := range keys {
		s := stats[key]
		if s.count < minCount || s.spend < MinTotalSpend {
			continue
		}
		if _, exists := d.entries[key]; exists {
			continue
		}
		display := s.display
		if display == "" {
			display = key
		}
		if excluded, _ := shouldExcludeMerchant(key, display); excluded {
			continue
		}
		d.addLocked(key, display, SuggestCategory(key, display), ProvenanceSeed, []string{key})
		added++
	}
	return added
}
