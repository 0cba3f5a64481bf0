package dictionary

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testDict(t *testing.T) *Dictionary {
	t.Helper()
	d, err := Open(filepath.Join(t.TempDir(), "dictionary.json"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return d
}

func TestOpenMissingFileStartsEmpty(t *testing.T) {
	d := testDict(t)
	if s := d.Stats(); s.UniqueMerchants != 0 {
		t.Errorf("merchants: got %d, want 0", s.UniqueMerchants)
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dictionary.json")
	d, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	d.AddMerchant("uber", "Uber", "Transportation", ProvenanceSeed, []string{"uber", "uber ube"})
	if err := d.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	reloaded, err := Open(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}

	e := reloaded.Lookup("uber")
	if e == nil {
		t.Fatal("expected uber entry after reload")
	}
	if e.CanonicalName != "Uber" {
		t.Errorf("canonical name: got %q, want Uber", e.CanonicalName)
	}

	// Aliases resolve through the in-memory index, not duplicated entries.
	if _, matchType, ok := reloaded.Match("uber ube"); !ok || matchType != "alias" {
		t.Errorf("alias match: got ok=%v type=%q, want alias hit", ok, matchType)
	}
	if s := reloaded.Stats(); s.UniqueMerchants != 1 {
		t.Errorf("merchants after reload: got %d, want 1", s.UniqueMerchants)
	}
}

func TestMatchExactAndAlias(t *testing.T) {
	d := testDict(t)
	d.AddMerchant("starbucks", "Starbucks", "Dining & Restaurants", ProvenanceSeed, []string{"starbucks", "starbucks coffee"})

	if _, matchType, ok := d.Match("starbucks"); !ok || matchType != "exact" {
		t.Errorf("exact: got ok=%v type=%q", ok, matchType)
	}
	if _, matchType, ok := d.Match("starbucks coffee"); !ok || matchType != "alias" {
		t.Errorf("alias: got ok=%v type=%q", ok, matchType)
	}
	if _, _, ok := d.Match("tim hortons"); ok {
		t.Error("expected no match for absent key")
	}
}

func TestLearnFromUserEditCreatesAndUpdates(t *testing.T) {
	d := testDict(t)

	res, err := d.LearnFromUserEdit("goodlife fitness", "GoodLife Fitness", "Health & Wellness", "debit", "PREAUTHORIZED DEBIT [REF] GOODLIFE FITNESS")
	if err != nil {
		t.Fatalf("learn: %v", err)
	}
	if !res.Accepted {
		t.Fatalf("expected acceptance, got %q", res.Message)
	}

	e := d.Lookup("goodlife fitness")
	if e == nil {
		t.Fatal("expected entry after learn")
	}
	if e.Version != 1 {
		t.Errorf("version: got %d, want 1", e.Version)
	}
	if e.CreatedBy != ProvenanceUserEdit {
		t.Errorf("created by: got %q, want %q", e.CreatedBy, ProvenanceUserEdit)
	}

	// Second edit updates in place and bumps the version.
	res, err = d.LearnFromUserEdit("goodlife fitness", "GoodLife", "Health & Wellness", "debit", "")
	if err != nil {
		t.Fatalf("second learn: %v", err)
	}
	if !res.Accepted {
		t.Fatalf("expected acceptance, got %q", res.Message)
	}

	e = d.Lookup("goodlife fitness")
	if e.Version != 2 {
		t.Errorf("version after update: got %d, want 2", e.Version)
	}
	if e.CanonicalName != "GoodLife" {
		t.Errorf("canonical name: got %q, want GoodLife", e.CanonicalName)
	}
	if len(e.ChangeHistory) != 1 {
		t.Errorf("change history: got %d records, want 1", len(e.ChangeHistory))
	}
}

func TestLearnRejectsCreditSample(t *testing.T) {
	d := testDict(t)

	res, err := d.LearnFromUserEdit("acme", "Acme Corp", "Income", "credit", "PAYROLL DEPOSIT ACME")
	if err != nil {
		t.Fatalf("learn: %v", err)
	}
	if res.Accepted {
		t.Error("credit sample must never be learned")
	}
	if d.Lookup("acme") != nil {
		t.Error("rejected learn must not create an entry")
	}
}

func TestLearnRejectsTransfersAndFees(t *testing.T) {
	d := testDict(t)

	cases := []struct {
		key, name, desc string
	}{
		{"e-transfer", "E-Transfer", "E-TRANSFER [REF] [RECIPIENT]"},
		{"internet transfer", "Internal Transfer", "INTERNET TRANSFER [REF]"},
		{"fees", "Bank", "MONTHLY FEE"},
	}

	for _, c := range cases {
		res, err := d.LearnFromUserEdit(c.key, c.name, "Other", "debit", c.desc)
		if err != nil {
			t.Fatalf("learn %q: %v", c.key, err)
		}
		if res.Accepted {
			t.Errorf("learn %q accepted, want guardrail rejection", c.key)
		}
	}
}

func TestLearnRejectsInvalidCategoryAndShortName(t *testing.T) {
	d := testDict(t)

	res, _ := d.LearnFromUserEdit("uber", "Uber", "Rideshare", "debit", "")
	if res.Accepted {
		t.Error("expected rejection of category outside the closed set")
	}

	res, _ = d.LearnFromUserEdit("uber", "Ub", "Transportation", "debit", "")
	if res.Accepted {
		t.Error("expected rejection of too-short merchant name")
	}
}

func TestLearnChangeHistoryCapped(t *testing.T) {
	d := testDict(t)
	d.LearnFromUserEdit("uber", "Uber", "Transportation", "debit", "")

	for i := 0; i < MaxChangeHistory+5; i++ {
		d.LearnFromUserEdit("uber", "Uber", "Transportation", "debit", "")
	}

	e := d.Lookup("uber")
	if len(e.ChangeHistory) != MaxChangeHistory {
		t.Errorf("change history: got %d, want cap %d", len(e.ChangeHistory), MaxChangeHistory)
	}
}

// A learn call whose save fails must leave the in-memory state as it
// was, so the caller's error matches what will be loaded next time.
func TestLearnRollsBackOnSaveFailure(t *testing.T) {
	// Parent directory does not exist, so the atomic save cannot
	// create its temp file. Open itself tolerates the missing file.
	d, err := Open(filepath.Join(t.TempDir(), "missing", "dictionary.json"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if _, err := d.LearnFromUserEdit("uber", "Uber", "Transportation", "debit", ""); err == nil {
		t.Fatal("expected save failure for dictionary in a missing directory")
	}
	if d.Lookup("uber") != nil {
		t.Error("failed create left an entry in memory")
	}
	if _, _, ok := d.Match("uber"); ok {
		t.Error("failed create left an alias in the index")
	}

	// Same for updates: the pre-learn entry must come back intact.
	d.AddMerchant("uber", "Uber", "Transportation", ProvenanceSeed, []string{"uber"})
	if _, err := d.LearnFromUserEdit("uber", "Uber Canada", "Transportation", "debit", ""); err == nil {
		t.Fatal("expected save failure on update")
	}
	e := d.Lookup("uber")
	if e == nil {
		t.Fatal("entry missing after failed update")
	}
	if e.CanonicalName != "Uber" {
		t.Errorf("canonical name after failed update: got %q, want Uber", e.CanonicalName)
	}
	if e.Version != 1 {
		t.Errorf("version after failed update: got %d, want 1", e.Version)
	}
	if len(e.ChangeHistory) != 0 {
		t.Errorf("change history after failed update: got %d records, want 0", len(e.ChangeHistory))
	}
}

func TestFuzzyLookupDeterministicRanking(t *testing.T) {
	d := testDict(t)
	d.AddMerchant("uber", "Uber", "Transportation", ProvenanceSeed, nil)
	d.AddMerchant("uber eats", "Uber Eats", "Dining & Restaurants", ProvenanceSeed, nil)

	first := d.FuzzyLookup("uber ube", 0.1)
	if len(first) == 0 {
		t.Fatal("expected fuzzy candidates")
	}

	// Ranking must be stable across calls for a fixed snapshot.
	for i := 0; i < 5; i++ {
		again := d.FuzzyLookup("uber ube", 0.1)
		if len(again) != len(first) {
			t.Fatalf("run %d: got %d candidates, want %d", i, len(again), len(first))
		}
		for j := range first {
			if again[j].Key != first[j].Key {
				t.Fatalf("run %d: rank %d got %q, want %q", i, j, again[j].Key, first[j].Key)
			}
		}
	}
}

func TestFuzzyMatchScore(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"uber", "uber", 1.0},
		{"uber", "uber eats", 4.0 / 9.0},
		{"tim hortons", "hortons tim", 1.0}, // same word set
		{"uber", "starbucks", 0.0},
		{"", "", 1.0},
	}

	for _, tt := range tests {
		got := FuzzyMatchScore(tt.a, tt.b)
		if got != tt.want {
			t.Errorf("FuzzyMatchScore(%q, %q): got %f, want %f", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestUpdateStatsAndArchiveStale(t *testing.T) {
	d := testDict(t)
	d.AddMerchant("uber", "Uber", "Transportation", ProvenanceSeed, nil)
	d.AddMerchant("netflix", "Netflix", "Entertainment", ProvenanceSeed, nil)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return base }
	d.UpdateStats("uber", -25.00)
	d.UpdateStats("uber", -10.00)

	e := d.Lookup("uber")
	if e.TxnCount != 2 {
		t.Errorf("txn count: got %d, want 2", e.TxnCount)
	}
	if e.TotalSpend != 35.00 {
		t.Errorf("total spend: got %f, want 35.00 (absolute value)", e.TotalSpend)
	}

	// A year later, uber is stale; netflix has no activity and stays.
	d.now = func() time.Time { return base.AddDate(1, 1, 0) }
	archived := d.ArchiveStale(365)
	if archived != 1 {
		t.Fatalf("archived: got %d, want 1", archived)
	}

	if d.Lookup("uber") != nil {
		t.Error("archived entry must not resolve in lookups")
	}
	if _, _, ok := d.Match("uber"); ok {
		t.Error("archived entry must not resolve in matches")
	}

	s := d.Stats()
	if s.Archived != 1 {
		t.Errorf("stats archived: got %d, want 1", s.Archived)
	}
	if s.UniqueMerchants != 1 {
		t.Errorf("stats merchants: got %d, want 1", s.UniqueMerchants)
	}
}

func TestUnmatched(t *testing.T) {
	d := testDict(t)
	d.AddMerchant("uber", "Uber", "Transportation", ProvenanceSeed, nil)

	got := d.Unmatched([]string{"uber", "netflix", "spotify", "netflix", "unknown", ""})
	want := []string{"netflix", "spotify"}
	if len(got) != len(want) {
		t.Fatalf("unmatched: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("unmatched[%d]: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLoadSeedNeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	seedPath := filepath.Join(dir, "seed.json")
	seed := `{
  "uber": {"canonical_name": "Uber Technologies", "category": "Transportation"},
  "netflix": {"canonical_name": "Netflix", "category": "Streaming"}
}`
	if err := os.WriteFile(seedPath, []byte(seed), 0o644); err != nil {
		t.Fatal(err)
	}

	d, err := Open(filepath.Join(dir, "dictionary.json"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	d.AddMerchant("uber", "Uber", "Transportation", ProvenanceUserEdit, nil)

	added, err := d.LoadSeed(seedPath)
	if err != nil {
		t.Fatalf("load seed: %v", err)
	}
	if added != 1 {
		t.Errorf("added: got %d, want 1 (existing key skipped)", added)
	}

	if e := d.Lookup("uber"); e.CanonicalName != "Uber" {
		t.Errorf("seed overwrote learned entry: %q", e.CanonicalName)
	}

	// "Streaming" is outside the closed set; the rule table resolves it.
	if e := d.Lookup("netflix"); e == nil || e.Category != "Entertainment" {
		t.Errorf("netflix category: got %+v, want Entertainment", e)
	}
}

func TestLoadSeedMissingFile(t *testing.T) {
	d := testDict(t)
	added, err := d.LoadSeed(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("expected nil error for missing seed, got %v", err)
	}
	if added != 0 {
		t.Errorf("added: got %d, want 0", added)
	}
}
