package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/smre/internal/corpus"
	"github.com/Aman-CERP/smre/internal/output"
)

func newPrepareCmd() *cobra.Command {
	var input, outputPath string

	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Normalize a raw moments CSV",
		Long: `Read a raw moments CSV, derive the searchable text column from the
structured fields, and write a normalized corpus in the fixed column order.

Writing to a .db, .sqlite or .sqlite3 path stores the corpus in a SQLite
"moments" table instead.`,
		Example: `  smre prepare --input data/raw/moments.csv --output data/processed/moments.csv
  smre prepare --input data/raw/moments.csv --output data/processed/moments.db`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPrepare(cmd, input, outputPath)
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "Raw moments CSV (requires an id column)")
	cmd.Flags().StringVar(&outputPath, "output", "", "Normalized corpus to write")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func runPrepare(cmd *cobra.Command, input, outputPath string) error {
	out := output.New(cmd.OutOrStdout())

	in, err := os.Open(input)
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	c, err := corpus.ReadRawCSV(in)
	_ = in.Close()
	if err != nil {
		return err
	}

	if dir := filepath.Dir(outputPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	switch strings.ToLower(filepath.Ext(outputPath)) {
	case ".db", ".sqlite", ".sqlite3":
		if err := corpus.SaveSQLite(cmd.Context(), outputPath, corpus.DefaultTable, c); err != nil {
			return err
		}
	default:
		f, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		if err := corpus.WriteCSV(f, c); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("failed to close output: %w", err)
		}
	}

	out.Successf("Prepared %d moments", c.Len())
	out.Statusf("", "Output: %s", outputPath)
	return nil
}
