//go:build ignore

// Package main generates a synthetic raw moments corpus for benchmarking
// index builds and search latency, plus a matching query and qrels file
// for `smre eval`.
// Usage: go run scripts/generate-test-corpus.go -moments 5000 -output testdata/bench
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"

	"github.com/Aman-CERP/smre/internal/corpus"
)

var (
	numMoments = flag.Int("moments", 5000, "Number of moments to generate")
	numQueries = flag.Int("queries", 50, "Number of evaluation queries to generate")
	outputDir  = flag.String("output", "testdata/bench", "Output directory")
	seed       = flag.Int64("seed", 42, "Random seed for reproducibility")
)

type tournament struct {
	name    string
	surface string
}

var tournaments = []tournament{
	{"Australian Open", "hard"},
	{"Roland Garros", "clay"},
	{"Wimbledon", "grass"},
	{"US Open", "hard"},
	{"Indian Wells", "hard"},
	{"Monte Carlo Masters", "clay"},
}

var rounds = []string{
	"First round", "Second round", "Third round", "Round of 16",
	"Quarter-final", "Semi-final", "Final",
}

var players = []string{
	"Roger Federer", "Rafael Nadal", "Novak Djokovic", "Andy Murray",
	"Serena Williams", "Venus Williams", "Maria Sharapova", "Simona Halep",
	"Stan Wawrinka", "Juan Martin del Potro", "Carlos Alcaraz", "Iga Swiatek",
}

var points = []string{"Break point", "Set point", "Match point", "Championship point", "Tiebreak"}

var shots = []string{
	"backhand passing shot", "forehand winner down the line", "ace out wide",
	"drop shot", "lob over the net rusher", "tweener", "return winner",
}

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create output dir: %v\n", err)
		os.Exit(1)
	}

	records := make([]corpus.Moment, *numMoments)
	for i := range records {
		records[i] = randomMoment(rng, i)
	}
	c, err := corpus.New(records)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build corpus: %v\n", err)
		os.Exit(1)
	}

	if err := writeFile(filepath.Join(*outputDir, "raw.csv"), func(f *os.File) error {
		return corpus.WriteCSV(f, c)
	}); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if err := writeEval(rng, records); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generated %d moments and %d queries in %s\n", len(records), *numQueries, *outputDir)
}

func randomMoment(rng *rand.Rand, i int) corpus.Moment {
	t := tournaments[rng.Intn(len(tournaments))]
	p1 := players[rng.Intn(len(players))]
	p2 := players[rng.Intn(len(players))]
	for p2 == p1 {
		p2 = players[rng.Intn(len(players))]
	}
	shot := shots[rng.Intn(len(shots))]

	m := corpus.Moment{
		ID:         fmt.Sprintf("m%06d", i),
		Sport:      "tennis",
		Tournament: t.name,
		Year:       strconv.Itoa(1995 + rng.Intn(30)),
		Event:      "Singles",
		Round:      rounds[rng.Intn(len(rounds))],
		Set:        strconv.Itoa(1 + rng.Intn(5)),
		Game:       strconv.Itoa(1 + rng.Intn(12)),
		Point:      points[rng.Intn(len(points))],
		Player1:    p1,
		Player2:    p2,
		Surface:    t.surface,
		Summary:    fmt.Sprintf("%s hits a %s against %s", p1, shot, p2),
		Commentary: fmt.Sprintf("what a %s from %s", shot, p1),
		Tags:       shot,
	}
	return m.Derive()
}

// writeEval samples queries from the generated records. A record is
// relevant to a query when it shares the player, tournament and year.
func writeEval(rng *rand.Rand, records []corpus.Moment) error {
	queries := make([][]string, 0, *numQueries+1)
	qrels := make([][]string, 0, *numQueries*4+1)
	queries = append(queries, []string{"qid", "query"})
	qrels = append(qrels, []string{"qid", "docid"})

	for q := 0; q < *numQueries && len(records) > 0; q++ {
		seedRec := records[rng.Intn(len(records))]
		qid := fmt.Sprintf("q%03d", q)
		queries = append(queries, []string{qid,
			fmt.Sprintf("%s %s %s", seedRec.Player1, seedRec.Tournament, seedRec.Year)})
		for _, m := range records {
			if m.Player1 == seedRec.Player1 && m.Tournament == seedRec.Tournament && m.Year == seedRec.Year {
				qrels = append(qrels, []string{qid, m.ID})
			}
		}
	}

	if err := writeRows(filepath.Join(*outputDir, "queries.csv"), queries); err != nil {
		return err
	}
	return writeRows(filepath.Join(*outputDir, "qrels.csv"), qrels)
}

func writeRows(path string, rows [][]string) error {
	return writeFile(path, func(f *os.File) error {
		w := csv.NewWriter(f)
		if err := w.WriteAll(rows); err != nil {
			return err
		}
		return w.Error()
	})
}

func writeFile(path string, fn func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
