package dictionary

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrDictionaryIO wraps read/write failures of the backing JSON document.
// Fatal for the learning operation only: scoring keeps using the last
// successfully loaded snapshot.
var ErrDictionaryIO = errors.New("merchant dictionary io")

// Provenance values for entries.
const (
	ProvenanceSeed     = "seed"
	ProvenanceUserEdit = "user_edit"
)

// Change is one record in an entry's change history.
type Change struct {
	Date          time.Time `json:"date"`
	Change        string    `json:"change"`
	CanonicalName string    `json:"canonical_name,omitempty"`
	Category      string    `json:"category,omitempty"`
}

// Entry is one merchant record. Entries are keyed by their normalized key
// in the persisted document; aliases are additional lookup keys resolved
// in memory.
type Entry struct {
	Key           string     `json:"normalized_key"`
	MerchantID    string     `json:"merchant_id"`
	CanonicalName string     `json:"canonical_name"`
	Category      string     `json:"category"`
	Aliases       []string   `json:"aliases,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	CreatedBy     string     `json:"created_by"`
	UpdatedAt     time.Time  `json:"updated_at,omitempty"`
	UpdatedBy     string     `json:"updated_by,omitempty"`
	Version       int        `json:"version"`
	ChangeHistory []Change   `json:"change_history,omitempty"`
	TxnCount      int        `json:"transaction_count"`
	TotalSpend    float64    `json:"total_spend"`
	LastSeen      time.Time  `json:"last_seen,omitempty"`
	ArchivedAt    *time.Time `json:"archived_at,omitempty"`
}

// LearnResult is the structured outcome of a learning call. A guardrail
// rejection is an expected result, not an error.
type LearnResult struct {
	Accepted bool   `json:"success"`
	Message  string `json:"message"`
}

// FuzzyMatch is one ranked fuzzy-lookup candidate.
type FuzzyMatch struct {
	Key   string  `json:"key"`
	Score float64 `json:"score"`
	Entry *Entry  `json:"entry"`
}

// Stats summarizes dictionary contents.
type Stats struct {
	UniqueMerchants int `json:"unique_merchants"`
	TotalAliases    int `json:"total_aliases"`
	Archived        int `json:"archived"`
}

// Dictionary is the persistent merchant store: one JSON document keyed by
// normalized merchant key. It is a single-writer resource; every mutating
// call holds the lock through the atomic save.
type Dictionary struct {
	mu      sync.Mutex
	path    string
	entries map[string]*Entry // by primary key
	aliases map[string]string // alias -> primary key
	now     func() time.Time
}

// Open loads the dictionary document at path, or starts empty when the file
// does not exist yet. Any other read failure is an ErrDictionaryIO.
func Open(path string) (*Dictionary, error) {
	d := &Dictionary{
		path:    path,
		entries: make(map[string]*Entry),
		aliases: make(map[string]string),
		now:     time.Now,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return d, nil
		}
		return nil, fmt.Errorf("%w: read %s: %v", ErrDictionaryIO, path, err)
	}

	var doc map[string]*Entry
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrDictionaryIO, path, err)
	}

	for key, e := range doc {
		if e.Key == "" {
			e.Key = key
		}
		d.index(e)
	}

	return d, nil
}

// index registers an entry under its primary key and all aliases.
func (d *Dictionary) index(e *Entry) {
	d.entries[e.Key] = e
	for _, a := range e.Aliases {
		if a != e.Key {
			d.aliases[a] = e.Key
		}
	}
}

// Save writes the document atomically: marshal, write to a temp file in
// the same directory, rename over the target. A concurrent reader sees
// either the old or the new document, never a partial write.
func (d *Dictionary) Save() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.saveLocked()
}

func (d *Dictionary) saveLocked() error {
	data, err := json.MarshalIndent(d.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal: %v", ErrDictionaryIO, err)
	}

	dir := filepath.Dir(d.path)
	tmp, err := os.CreateTemp(dir, ".dictionary-*.json")
	if err != nil {
		return fmt.Errorf("%w: temp file: %v", ErrDictionaryIO, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: write: %v", ErrDictionaryIO, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: close: %v", ErrDictionaryIO, err)
	}
	if err := os.Rename(tmpName, d.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: rename: %v", ErrDictionaryIO, err)
	}
	return nil
}

// Lookup returns the entry for an exact primary-key hit, skipping archived
// entries. Returns nil when absent.
func (d *Dictionary) Lookup(key string) *Entry {
	d.mu.Lock()
	defer d.mu.Unlock()
	e := d.entries[key]
	if e == nil || e.ArchivedAt != nil {
		return nil
	}
	return e
}

// Match resolves a key through primary keys then aliases. The returned
// match type is "exact" or "alias".
func (d *Dictionary) Match(key string) (*Entry, string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if e := d.entries[key]; e != nil && e.ArchivedAt == nil {
		return e, "exact", true
	}
	if primary, ok := d.aliases[key]; ok {
		if e := d.entries[primary]; e != nil && e.ArchivedAt == nil {
			return e, "alias", true
		}
	}
	return nil, "", false
}

// FuzzyLookup returns candidates similar to key at or above threshold,
// ranked by score descending then key ascending so results are stable for
// a fixed snapshot. Used only to suggest corrections, never for automatic
// acceptance.
func (d *Dictionary) FuzzyLookup(key string, threshold float64) []FuzzyMatch {
	d.mu.Lock()
	defer d.mu.Unlock()

	if threshold <= 0 {
		threshold = DefaultFuzzyThreshold
	}

	var matches []FuzzyMatch
	for primary, e := range d.entries {
		if e.ArchivedAt != nil {
			continue
		}
		best := FuzzyMatchScore(key, primary)
		for _, a := range e.Aliases {
			if s := FuzzyMatchScore(key, a); s > best {
				best = s
			}
		}
		if best >= threshold {
			matches = append(matches, FuzzyMatch{Key: primary, Score: best, Entry: e})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Key < matches[j].Key
	})
	return matches
}

// AddMerchant inserts a new entry without guardrail checks. Used by
// seeding and bootstrap, which run on trusted input.
func (d *Dictionary) AddMerchant(key, canonicalName, category, provenance string, aliases []string) *Entry {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.addLocked(key, canonicalName, category, provenance, aliases)
}

func (d *Dictionary) addLocked(key, canonicalName, category, provenance string, aliases []string) *Entry {
	if len(aliases) == 0 {
		aliases = []string{key}
	}
	if len(aliases) > MaxAliasesPerMerchant {
		aliases = aliases[:MaxAliasesPerMerchant]
	}
	e := &Entry{
		Key:           key,
		MerchantID:    fmt.Sprintf("merchant_%s_%03d", strings.ReplaceAll(key, " ", "_"), len(d.entries)+1),
		CanonicalName: canonicalName,
		Category:      category,
		Aliases:       aliases,
		CreatedAt:     d.now(),
		CreatedBy:     provenance,
		Version:       1,
	}
	d.index(e)
	return e
}

// LearnFromUserEdit applies one human correction behind the guardrails.
// Guardrail rejections come back as an unaccepted LearnResult; the error
// return is reserved for dictionary IO failures on save.
func (d *Dictionary) LearnFromUserEdit(key, canonicalName, category string, sampleType, sampleDescription string) (LearnResult, error) {
	if sampleType != "" || sampleDescription != "" {
		if excluded, reason := shouldExcludeTransaction(sampleType, sampleDescription, key); excluded {
			return LearnResult{Accepted: false, Message: "transaction excluded: " + reason}, nil
		}
	}

	if excluded, reason := shouldExcludeMerchant(key, canonicalName); excluded {
		return LearnResult{Accepted: false, Message: "merchant excluded: " + reason}, nil
	}
	if len(canonicalName) < MinMerchantNameLength {
		return LearnResult{Accepted: false, Message: "merchant excluded: name too short"}, nil
	}
	if category != "" && !ValidCategory(category) {
		return LearnResult{Accepted: false, Message: "invalid category: " + category}, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	existing := d.entries[key]
	if existing == nil {
		if primary, ok := d.aliases[key]; ok {
			existing = d.entries[primary]
		}
	}

	// The mutation must not survive a failed save, so each branch
	// records how to undo itself before touching the index.
	var msg string
	var rollback func()
	if existing != nil && existing.ArchivedAt == nil {
		snapshot := *existing
		snapshot.ChangeHistory = append([]Change(nil), existing.ChangeHistory...)
		rollback = func() { *existing = snapshot }
		existing.CanonicalName = canonicalName
		if category != "" {
			existing.Category = category
		}
		existing.UpdatedAt = d.now()
		existing.UpdatedBy = ProvenanceUserEdit
		existing.Version++
		existing.ChangeHistory = append(existing.ChangeHistory, Change{
			Date:          d.now(),
			Change:        "user_correction",
			CanonicalName: canonicalName,
			Category:      category,
		})
		if len(existing.ChangeHistory) > MaxChangeHistory {
			existing.ChangeHistory = existing.ChangeHistory[len(existing.ChangeHistory)-MaxChangeHistory:]
		}
		msg = "updated existing merchant: " + canonicalName
	} else {
		if category == "" {
			category = "Other"
		}
		e := d.addLocked(key, canonicalName, category, ProvenanceUserEdit, []string{key})
		e.UpdatedBy = ProvenanceUserEdit
		rollback = func() {
			delete(d.entries, e.Key)
			for _, a := range e.Aliases {
				if d.aliases[a] == e.Key {
					delete(d.aliases, a)
				}
			}
		}
		msg = fmt.Sprintf("created new merchant: %s (%s)", canonicalName, e.MerchantID)
	}

	if err := d.saveLocked(); err != nil {
		rollback()
		return LearnResult{}, err
	}
	return LearnResult{Accepted: true, Message: msg}, nil
}

// UpdateStats records one matched transaction against an entry.
func (d *Dictionary) UpdateStats(key string, amount float64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	e := d.entries[key]
	if e == nil {
		if primary, ok := d.aliases[key]; ok {
			e = d.entries[primary]
		}
	}
	if e == nil || e.ArchivedAt != nil {
		return
	}
	e.TxnCount++
	if amount < 0 {
		e.TotalSpend += -amount
	} else {
		e.TotalSpend += amount
	}
	e.LastSeen = d.now()
	e.UpdatedAt = d.now()
}

// ArchiveStale soft-deletes entries whose last activity predates the
// inactivity window. Archived entries stay in the document but stop
// resolving in lookups. Returns the number archived.
func (d *Dictionary) ArchiveStale(inactivityDays int) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	if inactivityDays <= 0 {
		inactivityDays = DefaultArchiveDays
	}
	cutoff := d.now().AddDate(0, 0, -inactivityDays)

	archived := 0
	for _, e := range d.entries {
		if e.ArchivedAt != nil || e.LastSeen.IsZero() {
			continue
		}
		if e.LastSeen.Before(cutoff) {
			at := d.now()
			e.ArchivedAt = &at
			archived++
		}
	}
	return archived
}

// Unmatched returns the sorted subset of keys with no live entry.
func (d *Dictionary) Unmatched(keys []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, k := range keys {
		if k == "" || k == "unknown" || seen[k] {
			continue
		}
		seen[k] = true
		if _, _, ok := d.Match(k); !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// Stats returns summary counts.
func (d *Dictionary) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := Stats{}
	for _, e := range d.entries {
		if e.ArchivedAt != nil {
			s.Archived++
			continue
		}
		s.UniqueMerchants++
		s.TotalAliases += len(e.Aliases)
	}
	return s
}
