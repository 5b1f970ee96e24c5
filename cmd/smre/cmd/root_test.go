package cmd

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := NewRootCmd()

	for _, name := range []string{"prepare", "index", "index-local", "remote-index", "search", "eval", "serve", "config", "version"} {
		t.Run(name, func(t *testing.T) {
			found, _, err := root.Find([]string{name})
			require.NoError(t, err)
			assert.NotEqual(t, root, found, "%s should be a subcommand", name)
		})
	}
}

func TestRootCmd_IndexVerifyIsNested(t *testing.T) {
	root := NewRootCmd()

	found, _, err := root.Find([]string{"index", "verify"})

	require.NoError(t, err)
	assert.Equal(t, "verify", found.Name())
}

func TestRootCmd_GlobalFlags(t *testing.T) {
	root := NewRootCmd()

	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
	assert.NotNil(t, root.PersistentFlags().Lookup("debug"))
	for _, name := range []string{"profile-cpu", "profile-mem", "profile-trace"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(name), name)
	}
}

func TestRootCmd_ProfileFlagsWriteFiles(t *testing.T) {
	// Given
	ws := newWorkspace(t)
	cpu := filepath.Join(ws.dir, "cpu.prof")
	heap := filepath.Join(ws.dir, "heap.prof")

	// When
	_, err := ws.run(t, "--profile-cpu", cpu, "--profile-mem", heap, "version", "--short")

	// Then
	require.NoError(t, err)
	assert.FileExists(t, cpu)
	assert.FileExists(t, heap)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	ws := newWorkspace(t)
	ws.config = ws.dir + "/missing.yaml"

	_, err := ws.run(t, "config", "show")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}
