package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	smerrors "github.com/Aman-CERP/smre/internal/errors"
	"github.com/Aman-CERP/smre/internal/eval"
	"github.com/Aman-CERP/smre/internal/output"
)

// evalOptions holds CLI flags for eval.
type evalOptions struct {
	queries string
	qrels   string
	k       int
	backend string
	format  string
}

func newEvalCmd() *cobra.Command {
	var opts evalOptions

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Measure precision@k and MRR over labelled queries",
		Long: `Run every query in the queries CSV (qid,query) and score the ranking
against the relevance judgments CSV (qid,docid).`,
		Example: `  smre eval --queries eval/queries.csv --qrels eval/qrels.csv
  smre eval --queries eval/queries.csv --qrels eval/qrels.csv -k 10 --format json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEval(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.queries, "queries", "", "Queries CSV with qid,query columns")
	cmd.Flags().StringVar(&opts.qrels, "qrels", "", "Relevance CSV with qid,docid columns")
	cmd.Flags().IntVarP(&opts.k, "k", "k", 5, "Cutoff rank")
	cmd.Flags().StringVar(&opts.backend, "backend", "", "Backend: local, remote (default: from config)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", output.FormatText, "Output format: text, json")
	_ = cmd.MarkFlagRequired("queries")
	_ = cmd.MarkFlagRequired("qrels")

	return cmd
}

func runEval(cmd *cobra.Command, opts evalOptions) error {
	ctx := cmd.Context()
	out := output.New(cmd.OutOrStdout())

	if opts.k <= 0 {
		return smerrors.ValidationError(fmt.Sprintf("k must be positive, got %d", opts.k), nil)
	}

	queries, err := eval.LoadQueries(opts.queries)
	if err != nil {
		return err
	}
	qrels, err := eval.LoadQrels(opts.qrels)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg, err = withBackend(cfg, opts.backend)
	if err != nil {
		return err
	}
	sess, err := openBackend(ctx, cfg, nil, nil, slog.Default())
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	report, err := eval.Run(ctx, sess.backend, queries, qrels, opts.k)
	if err != nil {
		return err
	}

	if opts.format == output.FormatJSON {
		return out.JSON(report)
	}
	w := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(w, "%-10s %8s %8s\n", "qid", fmt.Sprintf("P@%d", report.K), "MRR")
	for _, row := range report.Rows {
		_, _ = fmt.Fprintf(w, "%-10s %8.3f %8.3f\n", row.QueryID, row.Precision, row.MRR)
	}
	_, _ = fmt.Fprintf(w, "%-10s %8.3f %8.3f\n", "mean", report.AvgPrecision, report.AvgMRR)
	return nil
}
