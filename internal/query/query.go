// Package query normalizes raw query text and mines structured filters
// (years, tournament stage) from it.
//
// Matching is deliberately loose: years are any four-digit substring in
// range, and stages are substring hits against a synonym table, so
// "Wimbledon2012" yields 2012 and "semifinal" yields both semi and final.
package query

import (
	"slices"
	"strings"
)

// Stage vocabulary. The values are the tokens searched for in a record's
// round and point fields.
const (
	StageFinal   = "final"
	StageSemi    = "semi"
	StageQuarter = "quarter"
)

// Plausible year range, inclusive.
const (
	MinYear = 1900
	MaxYear = 2100
)

type stageSynonyms struct {
	stage    string
	variants []string
}

var stageTable = []stageSynonyms{
	{StageFinal, []string{"championship", "title", "finals", "grand final", "final"}},
	{StageSemi, []string{"semi", "semifinal", "semi-final", "sf"}},
	{StageQuarter, []string{"quarter", "quarterfinal", "quarter-final", "qf"}},
}

// FilterSet holds the constraints extracted from a query. Both slices are
// sorted and free of duplicates.
type FilterSet struct {
	Years  []int    `json:"years"`
	Stages []string `json:"stages"`
}

// IsEmpty reports whether no filter was extracted.
func (f FilterSet) IsEmpty() bool {
	return len(f.Years) == 0 && len(f.Stages) == 0
}

// HasYear reports whether year is in the year filter.
func (f FilterSet) HasYear(year int) bool {
	_, found := slices.BinarySearch(f.Years, year)
	return found
}

// Interpreter turns raw query text into normalized text and filters.
type Interpreter interface {
	Normalize(raw string) string
	ExtractFilters(normalized string) FilterSet
}

// Heuristic is the default interpreter.
type Heuristic struct{}

// Normalize implements Interpreter.
func (Heuristic) Normalize(raw string) string { return Normalize(raw) }

// ExtractFilters implements Interpreter.
func (Heuristic) ExtractFilters(normalized string) FilterSet { return ExtractFilters(normalized) }

// Noop normalizes whitespace and never extracts filters.
type Noop struct{}

// Normalize implements Interpreter.
func (Noop) Normalize(raw string) string { return Normalize(raw) }

// ExtractFilters implements Interpreter.
func (Noop) ExtractFilters(string) FilterSet { return FilterSet{} }

// Normalize trims raw and collapses internal whitespace runs to one space.
func Normalize(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

// ExtractFilters scans q for candidate years and stage synonyms. No match is
// an empty component, never an error.
func ExtractFilters(q string) FilterSet {
	return FilterSet{
		Years:  extractYears(q),
		Stages: extractStages(strings.ToLower(q)),
	}
}

// extractYears checks every window of four consecutive ASCII digits.
func extractYears(q string) []int {
	var years []int
	for i := 0; i+4 <= len(q); i++ {
		year := 0
		ok := true
		for j := i; j < i+4; j++ {
			c := q[j]
			if c < '0' || c > '9' {
				ok = false
				break
			}
			year = year*10 + int(c-'0')
		}
		if ok && year >= MinYear && year <= MaxYear && !slices.Contains(years, year) {
			years = append(years, year)
		}
	}
	slices.Sort(years)
	return years
}

func extractStages(lower string) []string {
	var stages []string
	for _, entry := range stageTable {
		for _, v := range entry.variants {
			if strings.Contains(lower, v) {
				stages = append(stages, entry.stage)
				break
			}
		}
	}
	slices.Sort(stages)
	return stages
}
