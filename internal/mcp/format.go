package mcp

import (
	"sort"

	"github.com/Aman-CERP/smre/internal/search"
	"github.com/Aman-CERP/smre/internal/telemetry"
)

// SearchInput defines the input schema for the search_moments tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"free-text query, e.g. federer final 2012"`
	K     int    `json:"k,omitempty" jsonschema:"maximum number of results, default 5, at most 50"`
	Cards bool   `json:"cards,omitempty" jsonschema:"include a markdown card per result"`
}

// SearchOutput defines the output schema for the search_moments tool.
type SearchOutput struct {
	Query           string         `json:"query" jsonschema:"the normalized query"`
	Backend         string         `json:"backend" jsonschema:"backend that answered"`
	Years           []int          `json:"years,omitempty" jsonschema:"year filters found in the query"`
	Stages          []string       `json:"stages,omitempty" jsonschema:"stage filters found in the query"`
	FallbackApplied bool           `json:"fallback_applied" jsonschema:"true when filters matched nothing and were ignored"`
	VectorDegraded  bool           `json:"vector_degraded" jsonschema:"true when ranking used keywords only"`
	Results         []MomentOutput `json:"results" jsonschema:"ranked moments"`
}

// MomentOutput is one ranked moment.
type MomentOutput struct {
	Rank       int     `json:"rank"`
	ID         string  `json:"id"`
	Score      float64 `json:"score" jsonschema:"fused score for local search, native score for remote"`
	Tournament string  `json:"tournament,omitempty"`
	Year       string  `json:"year,omitempty"`
	Round      string  `json:"round,omitempty"`
	Player1    string  `json:"player1,omitempty"`
	Player2    string  `json:"player2,omitempty"`
	Point      string  `json:"point,omitempty"`
	Summary    string  `json:"summary,omitempty"`
	SourceURL  string  `json:"source_url,omitempty"`
	Card       string  `json:"card,omitempty" jsonschema:"markdown card, when requested"`
}

// StatsInput defines the input schema for the search_stats tool (no parameters).
type StatsInput struct{}

// StatsOutput defines the output schema for the search_stats tool.
type StatsOutput struct {
	TotalQueries    int64        `json:"total_queries"`
	Outcomes        []NamedCount `json:"outcomes"`
	TopTerms        []NamedCount `json:"top_terms"`
	Latency         []NamedCount `json:"latency"`
	FallbackQueries []string     `json:"fallback_queries,omitempty"`
	RepeatRate      float64      `json:"repeat_rate"`
}

// NamedCount is a label with its count.
type NamedCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// ToSearchOutput converts a result set to the tool output.
func ToSearchOutput(rs *search.ResultSet, cards bool) SearchOutput {
	out := SearchOutput{
		Query:           rs.Query,
		Backend:         rs.Backend,
		Years:           rs.Filters.Years,
		Stages:          rs.Filters.Stages,
		FallbackApplied: rs.FallbackApplied,
		VectorDegraded:  rs.VectorDegraded,
		Results:         make([]MomentOutput, 0, rs.Len()),
	}
	for i, r := range rs.Results {
		m := r.Moment
		mo := MomentOutput{
			Rank:       i + 1,
			ID:         m.ID,
			Score:      r.Score,
			Tournament: m.Tournament,
			Year:       m.Year,
			Round:      m.Round,
			Player1:    m.Player1,
			Player2:    m.Player2,
			Point:      m.Point,
			Summary:    m.Summary,
			SourceURL:  m.SourceURL,
		}
		if cards {
			mo.Card = cardFor(r)
		}
		out.Results = append(out.Results, mo)
	}
	return out
}

// ToStatsOutput converts a query log snapshot to the tool output. Counts
// are sorted by descending count, then name.
func ToStatsOutput(snap *telemetry.Snapshot) StatsOutput {
	out := StatsOutput{
		TotalQueries:    snap.TotalQueries,
		FallbackQueries: snap.FallbackQueries,
		RepeatRate:      snap.ExactRepeatRate,
		Outcomes:        sortedCounts(snap.OutcomeCounts),
		TopTerms:        make([]NamedCount, 0, len(snap.TopTerms)),
	}
	for _, t := range snap.TopTerms {
		out.TopTerms = append(out.TopTerms, NamedCount{Name: t.Term, Count: t.Count})
	}
	latency := make(map[string]int64, len(snap.LatencyDistribution))
	for b, n := range snap.LatencyDistribution {
		latency[string(b)] = n
	}
	out.Latency = sortedCounts(latency)
	return out
}

func sortedCounts(m map[string]int64) []NamedCount {
	out := make([]NamedCount, 0, len(m))
	for k, v := range m {
		out = append(out, NamedCount{Name: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}
