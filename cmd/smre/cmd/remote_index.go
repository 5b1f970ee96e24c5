package cmd

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/smre/internal/corpus"
	"github.com/Aman-CERP/smre/internal/output"
	"github.com/Aman-CERP/smre/internal/remote"
)

// remoteIndexOptions holds CLI flags for remote-index.
type remoteIndexOptions struct {
	dataPath  string
	indexName string
	url       string
	batchSize int
}

func newRemoteIndexCmd() *cobra.Command {
	var opts remoteIndexOptions

	cmd := &cobra.Command{
		Use:   "remote-index",
		Short: "Load the corpus into the remote document-search backend",
		Long: `Recreate the remote index with the moments mapping and bulk-load the
normalized corpus into it.

An http(s) URL targets Elasticsearch. A bleve://<dir> URL builds the
embedded bleve index in <dir> instead.`,
		Example: `  smre remote-index --url http://localhost:9200 --index tennis_moments
  smre remote-index --url bleve://data/bleve`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRemoteIndex(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.dataPath, "data", "", "Normalized corpus (CSV or SQLite)")
	cmd.Flags().StringVar(&opts.indexName, "index", "", "Remote index name")
	cmd.Flags().StringVar(&opts.url, "url", "", "Remote backend URL")
	cmd.Flags().IntVar(&opts.batchSize, "batch-size", 0, "Documents per bulk request")

	return cmd
}

func runRemoteIndex(cmd *cobra.Command, opts remoteIndexOptions) error {
	ctx := cmd.Context()
	out := output.New(cmd.OutOrStdout())

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dataPath := firstNonEmpty(opts.dataPath, cfg.Local.DataPath)
	indexName := firstNonEmpty(opts.indexName, cfg.IndexName)
	url := firstNonEmpty(opts.url, cfg.Remote.URL)

	docs, err := corpus.Load(ctx, dataPath)
	if err != nil {
		return err
	}

	start := time.Now()
	if dir, ok := strings.CutPrefix(url, remote.BleveScheme); ok {
		b, err := remote.BuildBleve(ctx, dir, docs, opts.batchSize)
		if err != nil {
			return err
		}
		defer func() { _ = b.Close() }()
		n, err := b.DocCount()
		if err != nil {
			return fmt.Errorf("failed to count documents: %w", err)
		}
		slog.Info("remote_index_complete",
			slog.String("backend", b.Name()),
			slog.Uint64("documents", n),
			slog.Duration("duration", time.Since(start)))
		out.Successf("Indexed %d moments into bleve index %s", n, dir)
		return nil
	}

	client, err := remote.NewElasticClient(remote.ElasticConfig{
		URL:        url,
		Index:      indexName,
		Timeout:    cfg.RemoteTimeout(),
		MaxRetries: cfg.RemoteMaxRetries(),
	})
	if err != nil {
		return err
	}
	if err := client.Recreate(ctx); err != nil {
		return err
	}
	n, err := client.BulkIndex(ctx, docs, opts.batchSize)
	if err != nil {
		return err
	}

	slog.Info("remote_index_complete",
		slog.String("backend", client.Name()),
		slog.String("index", client.Index()),
		slog.Int("documents", n),
		slog.Duration("duration", time.Since(start)))
	out.Successf("Indexed %d moments into %s/%s", n, url, client.Index())
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
