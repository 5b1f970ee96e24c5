// Package index builds and loads the on-disk index directory: the lexical
// blob, the vector blob, the shared identifier list, and build metadata.
package index

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/Aman-CERP/smre/internal/corpus"
	"github.com/Aman-CERP/smre/internal/embed"
	smerrors "github.com/Aman-CERP/smre/internal/errors"
	"github.com/Aman-CERP/smre/internal/store"
	"github.com/Aman-CERP/smre/internal/telemetry"
)

// File names inside an index directory.
const (
	LexicalFile = "bm25.gob"
	VectorFile  = "vectors.gob"
	IDsFile     = "ids.json"
	MetaFile    = "meta.json"
)

// requiredFiles must all be present for Open to succeed.
var requiredFiles = []string{MetaFile, IDsFile, LexicalFile, VectorFile}

// Metadata is the meta.json record written by every build. Generation is
// a fresh token per build, also stored in ids.json and both blobs.
type Metadata struct {
	Generation    string    `json:"generation"`
	DocumentCount int       `json:"document_count"`
	Model         string    `json:"model"`
	Dimensions    int       `json:"dimensions"`
	K1            float64   `json:"k1"`
	B             float64   `json:"b"`
	BuiltAt       time.Time `json:"built_at"`
}

// Index is a loaded, read-only index generation. It is safe for concurrent
// queries.
type Index struct {
	Dir     string
	Meta    Metadata
	IDs     []string
	Lexical *store.LexicalIndex
	Vectors *store.VectorIndex
}

// idList is the ids.json record.
type idList struct {
	Generation string   `json:"generation"`
	IDs        []string `json:"ids"`
}

// BuildOptions tunes Build. The zero value uses defaults.
type BuildOptions struct {
	BM25      store.BM25Config
	BatchSize int
	// Progress is called after each embedding batch.
	Progress func(done, total int)
	Logger   *slog.Logger
	Metrics  *telemetry.Metrics
}

// Build indexes every record of c into dir, replacing any previous
// generation. It holds the directory's exclusive lock for the duration.
func Build(ctx context.Context, dir string, c *corpus.Corpus, embedder embed.Embedder, opts BuildOptions) (*Index, error) {
	if c.Len() == 0 {
		return nil, smerrors.CorpusFormatError("cannot index an empty corpus", nil)
	}
	if opts.BM25 == (store.BM25Config{}) {
		opts.BM25 = store.DefaultBM25Config()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = embed.DefaultBatchSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	start := time.Now()
	lock := NewDirLock(dir)
	if err := lock.Lock(); err != nil {
		return nil, smerrors.New(smerrors.ErrCodeIndexBuild, "failed to lock index directory", err)
	}
	defer func() { _ = lock.Unlock() }()

	// without meta.json a directory left behind by a failed rebuild
	// cannot be opened
	if err := os.Remove(filepath.Join(dir, MetaFile)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, buildError(err)
	}
	gen := uuid.NewString()

	ids := c.IDs()
	texts := c.Texts()

	docs := make([]store.Document, len(ids))
	for i := range ids {
		docs[i] = store.Document{ID: ids[i], Content: texts[i]}
	}
	lexical, err := store.BuildLexical(docs, opts.BM25)
	if err != nil {
		return nil, err
	}
	logger.Debug("lexical_index_built",
		slog.Int("documents", lexical.Len()),
		slog.Int("vocabulary", lexical.VocabularySize()))

	vectors, err := embedCorpus(ctx, ids, texts, embedder, opts)
	if err != nil {
		return nil, err
	}

	lexical.SetGeneration(gen)
	vectors.SetGeneration(gen)

	meta := Metadata{
		Generation:    gen,
		DocumentCount: len(ids),
		Model:         embedder.ModelName(),
		Dimensions:    vectors.Dimensions(),
		K1:            opts.BM25.K1,
		B:             opts.BM25.B,
		BuiltAt:       time.Now().UTC(),
	}

	// meta.json goes last so a half-written directory never looks complete
	if err := writeJSON(filepath.Join(dir, IDsFile), idList{Generation: gen, IDs: ids}); err != nil {
		return nil, buildError(err)
	}
	if err := lexical.Save(filepath.Join(dir, LexicalFile)); err != nil {
		return nil, buildError(err)
	}
	if err := vectors.Save(filepath.Join(dir, VectorFile)); err != nil {
		return nil, buildError(err)
	}
	if err := writeJSON(filepath.Join(dir, MetaFile), meta); err != nil {
		return nil, buildError(err)
	}

	opts.Metrics.DocumentsIndexed(len(ids))
	logger.Info("index_build_complete",
		slog.String("dir", dir),
		slog.Int("documents", len(ids)),
		slog.String("model", meta.Model),
		slog.Int("dimensions", meta.Dimensions),
		slog.Duration("duration", time.Since(start)))

	return &Index{Dir: dir, Meta: meta, IDs: ids, Lexical: lexical, Vectors: vectors}, nil
}

func embedCorpus(ctx context.Context, ids, texts []string, embedder embed.Embedder, opts BuildOptions) (*store.VectorIndex, error) {
	var vectors *store.VectorIndex
	for start := 0; start < len(texts); start += opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, smerrors.New(smerrors.ErrCodeIndexBuild, "index build cancelled", err)
		}
		end := min(start+opts.BatchSize, len(texts))

		batch, err := embedder.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, smerrors.New(smerrors.ErrCodeIndexBuild,
				fmt.Sprintf("failed to embed documents %d-%d", start, end), err)
		}
		if len(batch) != end-start {
			return nil, smerrors.New(smerrors.ErrCodeIndexBuild,
				fmt.Sprintf("embedder returned %d vectors for %d texts", len(batch), end-start), nil)
		}

		for i, vec := range batch {
			if vectors == nil {
				vectors = store.NewVectorIndex(len(vec))
			}
			if err := vectors.Add(ids[start+i], vec); err != nil {
				return nil, smerrors.New(smerrors.ErrCodeIndexBuild,
					fmt.Sprintf("failed to add vector for %s", ids[start+i]), err)
			}
		}
		if opts.Progress != nil {
			opts.Progress(end, len(texts))
		}
	}
	return vectors, nil
}

func buildError(err error) error {
	return smerrors.New(smerrors.ErrCodeIndexBuild, "failed to write index", err)
}

func writeJSON(path string, v any) error {
	return store.WriteFileAtomic(path, func(w io.Writer) error {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
		}
		_, err = w.Write(data)
		return err
	})
}

// Open loads the index in dir under a shared lock. Every missing file,
// unreadable blob, or count disagreement is an IndexCorruptError.
func Open(dir string) (*Index, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, smerrors.IndexMissingError(dir, err)
	}

	lock := NewDirLock(dir)
	if err := lock.RLock(); err != nil {
		return nil, err
	}
	defer func() { _ = lock.Unlock() }()

	for _, name := range requiredFiles {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			return nil, smerrors.IndexMissingError(path, err)
		}
	}

	var meta Metadata
	if err := readJSON(filepath.Join(dir, MetaFile), &meta); err != nil {
		return nil, smerrors.IndexCorruptError("failed to read index metadata", err)
	}
	var list idList
	if err := readJSON(filepath.Join(dir, IDsFile), &list); err != nil {
		return nil, smerrors.IndexCorruptError("failed to read identifier list", err)
	}
	ids := list.IDs
	if meta.DocumentCount != len(ids) {
		return nil, smerrors.IndexCorruptError(
			fmt.Sprintf("metadata records %d documents but %d identifiers were stored", meta.DocumentCount, len(ids)), nil).
			WithDetail("dir", dir)
	}

	lexical, err := store.LoadLexical(filepath.Join(dir, LexicalFile), ids)
	if err != nil {
		return nil, err
	}
	vectors, err := store.LoadVector(filepath.Join(dir, VectorFile), ids)
	if err != nil {
		return nil, err
	}
	if err := checkGeneration(meta.Generation, map[string]string{
		IDsFile:     list.Generation,
		LexicalFile: lexical.Generation(),
		VectorFile:  vectors.Generation(),
	}); err != nil {
		return nil, err.WithDetail("dir", dir)
	}
	if vectors.Dimensions() != meta.Dimensions {
		return nil, smerrors.IndexCorruptError(
			fmt.Sprintf("vector dimension %d disagrees with metadata %d", vectors.Dimensions(), meta.Dimensions), nil)
	}

	return &Index{Dir: dir, Meta: meta, IDs: ids, Lexical: lexical, Vectors: vectors}, nil
}

// checkGeneration rejects files written by a different build than
// meta.json.
func checkGeneration(want string, got map[string]string) *smerrors.SmreError {
	for _, name := range []string{IDsFile, LexicalFile, VectorFile} {
		if got[name] != want {
			return smerrors.IndexCorruptError(
				fmt.Sprintf("%s belongs to build %q but %s records build %q", name, got[name], MetaFile, want), nil).
				WithDetail("file", name)
		}
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// Len returns the number of indexed documents.
func (idx *Index) Len() int {
	return len(idx.IDs)
}
