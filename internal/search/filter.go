package search

import (
	"strings"

	"github.com/Aman-CERP/smre/internal/corpus"
	"github.com/Aman-CERP/smre/internal/query"
)

// Matches reports whether m satisfies f. A year filter requires the
// record's year to be listed; a stage filter requires at least one stage
// token inside the record's round or point text.
func Matches(m corpus.Moment, f query.FilterSet) bool {
	if len(f.Years) > 0 {
		y, ok := m.YearValue()
		if !ok || !f.HasYear(y) {
			return false
		}
	}
	if len(f.Stages) > 0 {
		round := strings.ToLower(m.Round)
		point := strings.ToLower(m.Point)
		for _, st := range f.Stages {
			if strings.Contains(round, st) || strings.Contains(point, st) {
				return true
			}
		}
		return false
	}
	return true
}
