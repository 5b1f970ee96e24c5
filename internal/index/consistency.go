package index

import (
	"log/slog"
	"sort"
	"time"

	"github.com/Aman-CERP/smre/internal/corpus"
)

// InconsistencyType categorizes detected issues.
type InconsistencyType int

const (
	// InconsistencyLexicalOnly is an identifier in the lexical index but not the vector index.
	InconsistencyLexicalOnly InconsistencyType = iota
	// InconsistencyVectorOnly is an identifier in the vector index but not the lexical index.
	InconsistencyVectorOnly
	// InconsistencyNotIndexed is a corpus record missing from the index.
	InconsistencyNotIndexed
	// InconsistencyNotInCorpus is an indexed identifier the corpus no longer holds.
	InconsistencyNotInCorpus
)

// String returns a short name for the inconsistency type.
func (t InconsistencyType) String() string {
	switch t {
	case InconsistencyLexicalOnly:
		return "lexical_only"
	case InconsistencyVectorOnly:
		return "vector_only"
	case InconsistencyNotIndexed:
		return "not_indexed"
	case InconsistencyNotInCorpus:
		return "not_in_corpus"
	default:
		return "unknown"
	}
}

// Inconsistency is one identifier-level issue.
type Inconsistency struct {
	Type InconsistencyType
	ID   string
}

// CheckResult contains the outcome of a consistency check.
type CheckResult struct {
	// Checked is the number of distinct identifiers examined.
	Checked         int
	Inconsistencies []Inconsistency
	Duration        time.Duration
}

// BuildConsistent reports whether the two indices cover the same identifiers.
// Anything else is a query-time drift that searches tolerate.
func (r *CheckResult) BuildConsistent() bool {
	for _, issue := range r.Inconsistencies {
		if issue.Type == InconsistencyLexicalOnly || issue.Type == InconsistencyVectorOnly {
			return false
		}
	}
	return true
}

// Counts returns the number of issues per type.
func (r *CheckResult) Counts() map[InconsistencyType]int {
	counts := make(map[InconsistencyType]int)
	for _, issue := range r.Inconsistencies {
		counts[issue.Type]++
	}
	return counts
}

// ConsistencyChecker compares the identifier sets of the lexical index,
// the vector index, and the query-time corpus.
type ConsistencyChecker struct {
	idx    *Index
	corpus *corpus.Corpus
}

// NewConsistencyChecker creates a checker. c may be nil to check only the indices.
func NewConsistencyChecker(idx *Index, c *corpus.Corpus) *ConsistencyChecker {
	return &ConsistencyChecker{idx: idx, corpus: c}
}

// Check scans all identifier sets. Issues are sorted by type then identifier.
func (c *ConsistencyChecker) Check() *CheckResult {
	start := time.Now()

	lexical := toSet(c.idx.Lexical.IDs())
	vectors := toSet(c.idx.Vectors.IDs())
	all := make(map[string]bool, len(lexical))

	var issues []Inconsistency
	for id := range lexical {
		all[id] = true
		if !vectors[id] {
			issues = append(issues, Inconsistency{Type: InconsistencyLexicalOnly, ID: id})
		}
	}
	for id := range vectors {
		all[id] = true
		if !lexical[id] {
			issues = append(issues, Inconsistency{Type: InconsistencyVectorOnly, ID: id})
		}
	}

	if c.corpus != nil {
		records := toSet(c.corpus.IDs())
		for id := range records {
			all[id] = true
			if !lexical[id] && !vectors[id] {
				issues = append(issues, Inconsistency{Type: InconsistencyNotIndexed, ID: id})
			}
		}
		for id := range all {
			if !records[id] {
				issues = append(issues, Inconsistency{Type: InconsistencyNotInCorpus, ID: id})
			}
		}
	}

	sort.Slice(issues, func(i, j int) bool {
		if issues[i].Type != issues[j].Type {
			return issues[i].Type < issues[j].Type
		}
		return issues[i].ID < issues[j].ID
	})

	result := &CheckResult{
		Checked:         len(all),
		Inconsistencies: issues,
		Duration:        time.Since(start),
	}
	if len(issues) > 0 {
		slog.Debug("index_consistency_drift",
			slog.Int("checked", result.Checked),
			slog.Int("issues", len(issues)))
	}
	return result
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
