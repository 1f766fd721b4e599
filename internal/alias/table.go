package alias

import (
	"sort"
	"strings"

	"waxscore/internal"
	"waxscore/internal/util"
)

// Entry maps a label fragment to a canonical property key.
type Entry struct {
	Pattern string       `yaml:"pattern"`
	Key     internal.Key `yaml:"key"`
}

// Replacement is a literal substitution applied while cleaning a label, used to
// strip unit markers and known OCR garbage.
type Replacement struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

type compiled struct {
	pattern string
	key     internal.Key
	order   int
}

// Table is an immutable, compiled alias table. It is safe for concurrent use.
type Table struct {
	entries []compiled
	cleanup []Replacement
}

const maxCleanupPasses = 8

func BuildTable(entries []Entry, cleanup []Replacement) *Table {
	t := &Table{}
	for _, r := range cleanup {
		from := foldCompact(r.From)
		if from == "" {
			continue
		}
		t.cleanup = append(t.cleanup, Replacement{From: from, To: foldCompact(r.To)})
	}

	for i, e := range entries {
		p := t.Clean(e.Pattern)
		if p == "" || strings.TrimSpace(string(e.Key)) == "" {
			continue
		}
		t.entries = append(t.entries, compiled{pattern: p, key: e.Key, order: i})
	}
	sort.SliceStable(t.entries, func(i, j int) bool {
		return len(t.entries[i].pattern) > len(t.entries[j].pattern)
	})
	return t
}

// Clean folds, lower-cases and compacts a raw label, then applies the cleanup
// replacements until the label stops changing.
func (t *Table) Clean(label string) string {
	s := foldCompact(label)
	for pass := 0; pass < maxCleanupPasses; pass++ {
		prev := s
		for _, r := range t.cleanup {
			s = strings.ReplaceAll(s, r.From, r.To)
		}
		if s == prev {
			break
		}
	}
	return s
}

// Lookup returns the key of the longest pattern contained in an already cleaned
// label. Equal lengths resolve to the entry declared first.
func (t *Table) Lookup(cleaned string) (internal.Key, bool) {
	if cleaned == "" {
		return "", false
	}
	for _, e := range t.entries {
		if strings.Contains(cleaned, e.pattern) {
			return e.key, true
		}
	}
	return "", false
}

func (t *Table) Len() int {
	return len(t.entries)
}

func foldCompact(s string) string {
	return util.Compact(util.FoldAccents(strings.TrimSpace(s)))
}
