package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/smre/internal/profiling"
)

const rawMoments = `id,tournament,year,event,round,player1,player2,point,summary,commentary,tags,surface
a,Wimbledon,2012,Men's Singles,Final,Roger Federer,Andy Murray,Championship point,Federer wins the final with an ace,federer wins final ace,ace;final,grass
b,Roland Garros,2015,Men's Singles,Semi-final,Rafael Nadal,Novak Djokovic,Break point,Nadal forehand winner down the line,nadal forehand winner,forehand,clay
c,US Open,2018,Women's Singles,Quarter-final,Serena Williams,Karolina Pliskova,Set point,Williams serves out the set,serena serve set point,serve,hard
`

// workspace is a temp directory holding a config, a raw corpus and the
// paths the commands write to.
type workspace struct {
	dir      string
	config   string
	raw      string
	data     string
	indexDir string
	bleveDir string
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	for _, key := range []string{"SMRE_BACKEND", "SMRE_INDEX_DIR", "SMRE_DATA_PATH", "SMRE_REMOTE_URL", "SMRE_EMBEDDING_PROVIDER"} {
		t.Setenv(key, "")
	}

	ws := &workspace{
		dir:      dir,
		config:   filepath.Join(dir, "smre.yaml"),
		raw:      filepath.Join(dir, "raw.csv"),
		data:     filepath.Join(dir, "processed", "moments.csv"),
		indexDir: filepath.Join(dir, "index"),
		bleveDir: filepath.Join(dir, "bleve"),
	}
	require.NoError(t, os.WriteFile(ws.raw, []byte(rawMoments), 0o644))

	cfg := "top_k: 2\n" +
		"local:\n" +
		"  index_dir: " + ws.indexDir + "\n" +
		"  data_path: " + ws.data + "\n" +
		"embedding:\n" +
		"  provider: static\n" +
		"remote:\n" +
		"  url: bleve://" + ws.bleveDir + "\n"
	require.NoError(t, os.WriteFile(ws.config, []byte(cfg), 0o644))
	return ws
}

// run executes the root command with --config set and returns stdout.
func (ws *workspace) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return execute(t, append([]string{"--config", ws.config}, args...)...)
}

// prepared runs prepare and index so search commands have data.
func (ws *workspace) prepared(t *testing.T) *workspace {
	t.Helper()
	_, err := ws.run(t, "prepare", "--input", ws.raw, "--output", ws.data)
	require.NoError(t, err)
	_, err = ws.run(t, "index")
	require.NoError(t, err)
	return ws
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configPath, debugMode = "", false
	profileCfg = profiling.Config{}

	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(new(bytes.Buffer))
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}
