package corpus

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"slices"
	"strings"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	smerrors "github.com/Aman-CERP/smre/internal/errors"
)

// DefaultTable is the SQLite table holding moments.
const DefaultTable = "moments"

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// LoadSQLite reads a corpus from table in the SQLite database at path.
// The database is opened read-only. Columns follow the CSV names; id and
// text are required.
func LoadSQLite(ctx context.Context, path, table string) (*Corpus, error) {
	if !tableNameRe.MatchString(table) {
		return nil, smerrors.ValidationError(fmt.Sprintf("invalid table name %q", table), nil)
	}

	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, smerrors.CorpusFormatError(fmt.Sprintf("failed to open corpus database %s", path), err)
	}
	defer func() { _ = db.Close() }()

	columns, err := tableColumns(ctx, db, table)
	if err != nil {
		return nil, smerrors.CorpusFormatError(fmt.Sprintf("failed to read schema of %s", table), err).
			WithDetail("path", path)
	}

	var missing []string
	for _, name := range []string{"id", "text"} {
		if !slices.Contains(columns, name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, smerrors.CorpusFormatError(
			fmt.Sprintf("table %s is missing required columns: %s", table, strings.Join(missing, ", ")), nil).
			WithDetail("path", path)
	}

	var selected []string
	for _, name := range Columns {
		if slices.Contains(columns, name) {
			selected = append(selected, name)
		}
	}

	// rowid keeps insertion order stable across reads
	query := fmt.Sprintf(`SELECT "%s" FROM "%s" ORDER BY rowid`, strings.Join(selected, `", "`), table)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, smerrors.CorpusFormatError(fmt.Sprintf("failed to query %s", table), err)
	}
	defer func() { _ = rows.Close() }()

	values := make([]sql.NullString, len(selected))
	dest := make([]any, len(selected))
	for i := range values {
		dest[i] = &values[i]
	}

	var records []Moment
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, smerrors.CorpusFormatError("failed to scan corpus row", err)
		}
		var m Moment
		for i, name := range selected {
			m.SetField(name, strings.TrimSpace(values[i].String))
		}
		records = append(records, m)
	}
	if err := rows.Err(); err != nil {
		return nil, smerrors.CorpusFormatError("failed to read corpus rows", err)
	}

	return New(records)
}

// SaveSQLite writes c into table, replacing any existing table.
func SaveSQLite(ctx context.Context, path, table string, c *Corpus) error {
	if !tableNameRe.MatchString(table) {
		return fmt.Errorf("invalid table name %q", table)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	defs := make([]string, len(Columns))
	for i, name := range Columns {
		defs[i] = fmt.Sprintf(`"%s" TEXT`, name)
	}
	defs[0] = `"id" TEXT PRIMARY KEY`

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS "%s"`, table)); err != nil {
		return fmt.Errorf("failed to drop table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE "%s" (%s)`, table, strings.Join(defs, ", "))); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(Columns)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO "%s" ("%s") VALUES (%s)`,
		table, strings.Join(Columns, `", "`), placeholders))
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	args := make([]any, len(Columns))
	for i := 0; i < c.Len(); i++ {
		m := c.At(i)
		for j, name := range Columns {
			args[j] = m.Field(name)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert %s: %w", m.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func tableColumns(ctx context.Context, db *sql.DB, table string) ([]string, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info("%s")`, table))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var columns []string
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return nil, err
		}
		columns = append(columns, strings.ToLower(name))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s does not exist", table)
	}
	return columns, nil
}
