package corpus

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	smerrors "github.com/Aman-CERP/smre/internal/errors"
)

const sampleCSV = `id,year,round,point,tournament,player1,player2,text
a,2012,Final,Championship point,Wimbledon,Roger Federer,Andy Murray,federer wins final ace
b,2015,Semi-final,Break point,Roland Garros,Rafael Nadal,Novak Djokovic,nadal forehand winner
`

func TestBuildText_JoinsFieldsInOrder(t *testing.T) {
	m := Moment{
		Commentary: "What a rally",
		Summary:    "Federer saves break point",
		Tournament: "Wimbledon",
		Event:      "Men's Singles",
		Round:      "Final",
		Player1:    "Roger Federer",
		Player2:    "Andy Murray",
		Tags:       "clutch",
		Surface:    "Grass",
		Year:       "2012",
	}

	got := BuildText(m)

	assert.Equal(t, "What a rally . Federer saves break point . Wimbledon . Men's Singles . Final . Roger Federer . Andy Murray . clutch . Grass . 2012", got)
}

func TestDerive_IgnoresExistingText(t *testing.T) {
	// Given: a record with hand-edited text
	m := Moment{ID: "x", Summary: "ace", Text: "edited by hand"}

	// When: deriving
	d := m.Derive()

	// Then: text is regenerated and deterministic
	assert.Equal(t, BuildText(m), d.Text)
	assert.Equal(t, d.Text, d.Derive().Text)
	assert.Equal(t, "edited by hand", m.Text)
}

func TestYearValue(t *testing.T) {
	tests := []struct {
		in     string
		want   int
		wantOK bool
	}{
		{"2012", 2012, true},
		{" 1999 ", 1999, true},
		{"2012.0", 2012, true},
		{"2012.5", 0, false},
		{"", 0, false},
		{"nan", 0, false},
		{"twenty", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := Moment{Year: tt.in}.YearValue()
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFieldAndSetField_CoverAllColumns(t *testing.T) {
	var m Moment
	for _, name := range Columns {
		m.SetField(name, "v-"+name)
	}
	for _, name := range Columns {
		assert.Equal(t, "v-"+name, m.Field(name), name)
	}
	assert.Equal(t, "", m.Field("unknown"))
}

func TestNew_RejectsDuplicateIDs(t *testing.T) {
	_, err := New([]Moment{{ID: "a"}, {ID: "b"}, {ID: "a"}})

	require.Error(t, err)
	assert.True(t, smerrors.IsCorpusFormat(err))
	assert.ErrorIs(t, err, smerrors.ErrDuplicateID)
	assert.Contains(t, err.Error(), "row 3")
}

func TestNew_RejectsEmptyID(t *testing.T) {
	_, err := New([]Moment{{ID: "a"}, {ID: "  "}})

	require.Error(t, err)
	assert.ErrorIs(t, err, smerrors.ErrCorpusFormat)
}

func TestCorpus_Lookup(t *testing.T) {
	c, err := New([]Moment{{ID: "a", Text: "one"}, {ID: "b", Text: "two"}})
	require.NoError(t, err)

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, []string{"a", "b"}, c.IDs())
	assert.Equal(t, []string{"one", "two"}, c.Texts())

	m, ok := c.Get("b")
	require.True(t, ok)
	assert.Equal(t, "two", m.Text)

	_, ok = c.Get("zzz")
	assert.False(t, ok)

	pos, ok := c.Position("b")
	assert.True(t, ok)
	assert.Equal(t, 1, pos)
}

func TestCorpus_Reorder(t *testing.T) {
	c, err := New([]Moment{{ID: "a"}, {ID: "b"}, {ID: "c"}})
	require.NoError(t, err)

	r := c.Reorder([]string{"c", "a", "missing"})

	assert.Equal(t, []string{"c", "a"}, r.IDs())
	assert.Equal(t, 3, c.Len())
}

func TestReadCSV_ParsesRecords(t *testing.T) {
	c, err := ReadCSV(strings.NewReader(sampleCSV))

	require.NoError(t, err)
	require.Equal(t, 2, c.Len())

	a := c.At(0)
	assert.Equal(t, "a", a.ID)
	assert.Equal(t, "2012", a.Year)
	assert.Equal(t, "Final", a.Round)
	assert.Equal(t, "federer wins final ace", a.Text)
	// absent optional column is empty, not missing
	assert.Equal(t, "", a.Surface)
}

func TestReadCSV_MissingRequiredColumns(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		missing string
	}{
		{"no id", "text,year\nhello,2012\n", "id"},
		{"no text", "id,year\na,2012\n", "text"},
		{"neither", "year\n2012\n", "id, text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.True(t, smerrors.IsCorpusFormat(err))
			assert.Contains(t, err.Error(), tt.missing)
		})
	}
}

func TestReadCSV_EmptyInput(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))

	require.Error(t, err)
	assert.True(t, smerrors.IsCorpusFormat(err))
}

func TestReadCSV_HeaderNormalization(t *testing.T) {
	input := "\ufeff ID , Text ,Extra\nx,hello,ignored\n"

	c, err := ReadCSV(strings.NewReader(input))

	require.NoError(t, err)
	assert.Equal(t, "x", c.At(0).ID)
	assert.Equal(t, "hello", c.At(0).Text)
}

func TestReadCSV_ShortRowsDefaultToEmpty(t *testing.T) {
	c, err := ReadCSV(strings.NewReader("id,text,summary\na,hello\n"))

	require.NoError(t, err)
	assert.Equal(t, "", c.At(0).Summary)
}

func TestReadCSV_DuplicateIDRejected(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("id,text\na,x\na,y\n"))

	require.Error(t, err)
	assert.True(t, smerrors.IsCorpusFormat(err))
}

func TestLoadCSV_MissingFile(t *testing.T) {
	_, err := LoadCSV(filepath.Join(t.TempDir(), "nope.csv"))

	require.Error(t, err)
	assert.True(t, smerrors.IsCorpusFormat(err))
}

func TestReadRawCSV_DerivesText(t *testing.T) {
	c, err := ReadRawCSV(strings.NewReader("id,summary,year\na,Big serve,2019\n"))

	require.NoError(t, err)
	assert.Equal(t, BuildText(Moment{Summary: "Big serve", Year: "2019"}), c.At(0).Text)
}

func TestWriteCSV_RoundTrips(t *testing.T) {
	// Given: a parsed corpus
	c, err := ReadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	// When: writing and reading back
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, c))
	back, err := ReadCSV(&buf)

	// Then: records are unchanged
	require.NoError(t, err)
	assert.Equal(t, c.Records(), back.Records())
}

func TestSQLite_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "moments.db")

	c, err := ReadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	require.NoError(t, SaveSQLite(ctx, path, DefaultTable, c))

	loaded, err := LoadSQLite(ctx, path, DefaultTable)
	require.NoError(t, err)
	assert.Equal(t, c.Records(), loaded.Records())

	// Load dispatches on extension
	viaLoad, err := Load(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, c.IDs(), viaLoad.IDs())
}

func TestLoadSQLite_IntegerColumnsReadAsText(t *testing.T) {
	// Given: a table with an integer year and no optional columns
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "moments.sqlite")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE moments (id TEXT, text TEXT, year INTEGER)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO moments VALUES ('a', 'ace', 2012), ('b', 'lob', NULL)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// When: loading
	c, err := LoadSQLite(ctx, path, DefaultTable)

	// Then: the integer is rendered and NULL becomes empty
	require.NoError(t, err)
	assert.Equal(t, "2012", c.At(0).Year)
	assert.Equal(t, "", c.At(1).Year)
}

func TestLoadSQLite_MissingColumns(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "moments.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE moments (id TEXT, summary TEXT)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = LoadSQLite(ctx, path, DefaultTable)

	require.Error(t, err)
	assert.True(t, smerrors.IsCorpusFormat(err))
	assert.Contains(t, err.Error(), "text")
}

func TestLoadSQLite_MissingTableOrFile(t *testing.T) {
	ctx := context.Background()

	_, err := LoadSQLite(ctx, filepath.Join(t.TempDir(), "absent.db"), DefaultTable)
	assert.True(t, smerrors.IsCorpusFormat(err))

	path := filepath.Join(t.TempDir(), "empty.db")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	_, err = LoadSQLite(ctx, path, DefaultTable)
	assert.True(t, smerrors.IsCorpusFormat(err))

	_, err = LoadSQLite(ctx, path, "moments; DROP TABLE x")
	assert.Error(t, err)
}
