package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	smerrors "github.com/Aman-CERP/smre/internal/errors"
	"github.com/Aman-CERP/smre/internal/output"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	k       int
	backend string // "local", "remote"
	format  string // "text", "json"
	explain bool
	card    bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the moments corpus",
		Long: `Search the moments corpus with hybrid BM25 + vector fusion, or with the
remote backend.

Years (1900-2100) and stages (final, semi, quarter) found in the query are
applied as filters. If they match nothing, the unfiltered ranking is shown.`,
		Example: `  smre search "federer final 2012"
  smre search "nadal forehand winner" -k 3 --explain
  smre search "championship point" --backend remote --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.k, "k", "k", 0, "Number of results (default: top_k from config)")
	cmd.Flags().StringVar(&opts.backend, "backend", "", "Backend: local, remote (default: from config)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", output.FormatText, "Output format: text, json")
	cmd.Flags().BoolVar(&opts.explain, "explain", false, "Show raw and normalized component scores")
	cmd.Flags().BoolVar(&opts.card, "card", false, "Show a moment card for the top result")

	return cmd
}

func runSearch(cmd *cobra.Command, q string, opts searchOptions) error {
	ctx := cmd.Context()
	out := output.New(cmd.OutOrStdout())

	if opts.format != output.FormatText && opts.format != output.FormatJSON {
		return smerrors.ValidationError(fmt.Sprintf("unknown format %q (supported: text, json)", opts.format), nil)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg, err = withBackend(cfg, opts.backend)
	if err != nil {
		return err
	}
	k := opts.k
	if k == 0 {
		k = cfg.TopK
	}

	sess, err := openBackend(ctx, cfg, nil, nil, slog.Default())
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	rs, err := sess.backend.Search(ctx, q, k)
	if err != nil {
		return err
	}

	if opts.format == output.FormatJSON {
		return out.JSON(rs)
	}
	out.Results(rs, opts.explain)
	if opts.card && rs.Len() > 0 {
		out.Newline()
		out.Card(rs.Results[0])
	}
	return nil
}
