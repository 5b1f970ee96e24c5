package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/smre/internal/corpus"
	"github.com/Aman-CERP/smre/internal/embed"
	smerrors "github.com/Aman-CERP/smre/internal/errors"
	"github.com/Aman-CERP/smre/internal/index"
	"github.com/Aman-CERP/smre/internal/output"
	"github.com/Aman-CERP/smre/internal/store"
)

// indexOptions holds CLI flags for index.
type indexOptions struct {
	dataPath  string
	indexDir  string
	model     string
	batchSize int
}

func newIndexCmd() *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:     "index",
		Aliases: []string{"index-local"},
		Short:   "Build the local BM25 and vector indices",
		Long: `Build the lexical (BM25) and vector indices for the normalized corpus and
write them to the index directory, replacing any previous generation.

Paths default to local.data_path and local.index_dir from the config.`,
		Example: `  smre index
  smre index --data data/processed/moments.csv --index-dir data/index
  smre index --model nomic-embed-text --batch-size 32`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIndex(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.dataPath, "data", "", "Normalized corpus (CSV or SQLite)")
	cmd.Flags().StringVar(&opts.indexDir, "index-dir", "", "Index output directory")
	cmd.Flags().StringVar(&opts.model, "model", "", "Embedding model name")
	cmd.Flags().IntVar(&opts.batchSize, "batch-size", 0, "Documents per embedding batch")

	cmd.AddCommand(newIndexVerifyCmd())

	return cmd
}

func runIndex(cmd *cobra.Command, opts indexOptions) error {
	ctx := cmd.Context()
	out := output.New(cmd.OutOrStdout())

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	c := *cfg
	if opts.dataPath != "" {
		c.Local.DataPath = opts.dataPath
	}
	if opts.indexDir != "" {
		c.Local.IndexDir = opts.indexDir
	}
	if opts.model != "" {
		c.Embedding.ModelName = opts.model
	}
	if opts.batchSize > 0 {
		c.Embedding.BatchSize = opts.batchSize
	}

	docs, err := corpus.Load(ctx, c.Local.DataPath)
	if err != nil {
		return err
	}
	out.Statusf("", "Loaded %d moments from %s", docs.Len(), c.Local.DataPath)

	embedder, err := embed.NewFromConfig(&c)
	if err != nil {
		return err
	}
	defer func() { _ = embedder.Close() }()

	start := time.Now()
	idx, err := index.Build(ctx, c.Local.IndexDir, docs, embedder, index.BuildOptions{
		BM25:      store.BM25Config{K1: c.Hybrid.K1, B: c.BM25B()},
		BatchSize: c.Embedding.BatchSize,
		Progress: func(done, total int) {
			out.Progress(done, total, "embedding")
		},
		Logger: slog.Default(),
	})
	if err != nil {
		return err
	}

	out.Successf("Indexed %d moments in %s", idx.Len(), time.Since(start).Round(time.Millisecond))
	out.Statusf("", "Model: %s (%d dimensions)", idx.Meta.Model, idx.Meta.Dimensions)
	out.Statusf("", "Index: %s", idx.Dir)
	return nil
}

func newIndexVerifyCmd() *cobra.Command {
	var dataPath, indexDir string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check that the indices and the corpus cover the same identifiers",
		Long: `Compare the identifier sets of the lexical index, the vector index and the
corpus. Indices that disagree with each other are corrupt and must be
rebuilt. Corpus drift is reported but tolerated by search.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIndexVerify(cmd, dataPath, indexDir)
		},
	}

	cmd.Flags().StringVar(&dataPath, "data", "", "Normalized corpus (CSV or SQLite)")
	cmd.Flags().StringVar(&indexDir, "index-dir", "", "Index directory")

	return cmd
}

func runIndexVerify(cmd *cobra.Command, dataPath, indexDir string) error {
	out := output.New(cmd.OutOrStdout())

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if dataPath == "" {
		dataPath = cfg.Local.DataPath
	}
	if indexDir == "" {
		indexDir = cfg.Local.IndexDir
	}

	idx, err := index.Open(indexDir)
	if err != nil {
		return err
	}
	docs, err := corpus.Load(cmd.Context(), dataPath)
	if err != nil {
		return err
	}

	result := index.NewConsistencyChecker(idx, docs).Check()
	counts := result.Counts()
	if len(result.Inconsistencies) == 0 {
		out.Successf("Index consistent: %d identifiers checked", result.Checked)
		return nil
	}

	for _, typ := range []index.InconsistencyType{
		index.InconsistencyLexicalOnly,
		index.InconsistencyVectorOnly,
		index.InconsistencyNotIndexed,
		index.InconsistencyNotInCorpus,
	} {
		if n := counts[typ]; n > 0 {
			out.Statusf("", "%s: %d", typ, n)
		}
	}

	if !result.BuildConsistent() {
		out.Error("Lexical and vector indices disagree")
		return smerrors.IndexCorruptError(
			fmt.Sprintf("%d identifiers are in only one index", counts[index.InconsistencyLexicalOnly]+counts[index.InconsistencyVectorOnly]), nil).
			WithDetail("path", indexDir)
	}
	out.Warningf("Corpus differs from the index (%d identifiers); missing scores count as zero", len(result.Inconsistencies))
	return nil
}
