package corpus

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	smerrors "github.com/Aman-CERP/smre/internal/errors"
)

// LoadCSV reads a normalized corpus file. The header must name at least
// the id and text columns.
func LoadCSV(path string) (*Corpus, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, smerrors.CorpusFormatError(fmt.Sprintf("failed to open corpus %s", path), err).
			WithDetail("path", path)
	}
	defer func() { _ = f.Close() }()

	c, err := ReadCSV(f)
	if err != nil {
		var se *smerrors.SmreError
		if errors.As(err, &se) {
			se.WithDetail("path", path)
		}
		return nil, err
	}
	return c, nil
}

// ReadCSV reads a normalized corpus from r.
func ReadCSV(r io.Reader) (*Corpus, error) {
	records, err := readRecords(r, true)
	if err != nil {
		return nil, err
	}
	return New(records)
}

// ReadRawCSV reads moments that may lack a text column and derives text
// for every row. Identifiers are still required.
func ReadRawCSV(r io.Reader) (*Corpus, error) {
	records, err := readRecords(r, false)
	if err != nil {
		return nil, err
	}
	for i := range records {
		records[i] = records[i].Derive()
	}
	return New(records)
}

func readRecords(r io.Reader, requireText bool) ([]Moment, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, smerrors.CorpusFormatError("corpus is empty: no header row", nil)
	}
	if err != nil {
		return nil, smerrors.CorpusFormatError("failed to read corpus header", err)
	}

	columns := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		columns[i] = name
		seen[name] = true
	}

	required := []string{"id"}
	if requireText {
		required = append(required, "text")
	}
	var missing []string
	for _, name := range required {
		if !seen[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, smerrors.CorpusFormatError(
			fmt.Sprintf("corpus is missing required columns: %s", strings.Join(missing, ", ")), nil)
	}

	var records []Moment
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, smerrors.CorpusFormatError(fmt.Sprintf("failed to parse corpus line %d", line), err)
		}

		var m Moment
		for i, value := range row {
			if i < len(columns) {
				m.SetField(columns[i], strings.TrimSpace(value))
			}
		}
		records = append(records, m)
	}
	return records, nil
}

// WriteCSV writes c in the canonical column order.
func WriteCSV(w io.Writer, c *Corpus) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	row := make([]string, len(Columns))
	for i := 0; i < c.Len(); i++ {
		m := c.At(i)
		for j, name := range Columns {
			row[j] = m.Field(name)
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	writer.Flush()
	return writer.Error()
}
