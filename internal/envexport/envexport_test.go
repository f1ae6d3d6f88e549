package envexport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBundle_Fallbacks(t *testing.T) {
	b := NewBundle("/app/freetds", map[string]string{})

	want := Bundle{
		{VarPath, "/app/freetds/bin:/usr/local/bin:/usr/bin:/bin"},
		{VarLDLibraryPath, "/app/freetds/lib:/usr/local/lib"},
		{VarLDRunPath, "/app/freetds/lib:/usr/local/lib"},
		{VarLibraryPath, "/app/freetds/lib:/usr/local/lib"},
		{VarInstallDir, "/app/freetds"},
		{VarSybase, "/app/freetds"},
	}
	assert.Equal(t, want, b)
}

func TestNewBundle_PrependsAheadOfInherited(t *testing.T) {
	base := map[string]string{
		VarPath:          "/usr/bin",
		VarLDLibraryPath: "/opt/lib",
	}

	b := NewBundle("/app/freetds", base)

	assert.Equal(t, "/app/freetds/bin:/usr/bin", b[0].Value)
	assert.Equal(t, "/app/freetds/lib:/opt/lib", b[1].Value)
	// Variables the invoker never set still get the conventional default.
	assert.Equal(t, "/app/freetds/lib:/usr/local/lib", b[3].Value)
}

func TestBundles_DifferOnlyInRoot(t *testing.T) {
	base := map[string]string{VarPath: "/usr/bin"}

	runtimeBundle := NewBundle("/app/freetds", base)
	buildBundle := NewBundle("/tmp/build/freetds", base)

	require.Len(t, buildBundle, len(runtimeBundle))

	for i := range runtimeBundle {
		assert.Equal(t, runtimeBundle[i].Name, buildBundle[i].Name)

		normalized := strings.ReplaceAll(runtimeBundle[i].Value, "/app/freetds", "{root}")
		assert.Equal(t,
			normalized,
			strings.ReplaceAll(buildBundle[i].Value, "/tmp/build/freetds", "{root}"),
			"%s must differ only in its base path", runtimeBundle[i].Name)
	}
}

func TestWriteProfileScript(t *testing.T) {
	buildDir := t.TempDir()
	path := ProfileScriptPath(buildDir)

	b := NewBundle("/app/freetds", map[string]string{})
	require.NoError(t, b.WriteProfileScript(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, len(b))
	assert.Equal(t, `export PATH="/app/freetds/bin:/usr/local/bin:/usr/bin:/bin"`, lines[0])
	assert.Equal(t, `export SYBASE="/app/freetds"`, lines[len(lines)-1])

	// Rerunning overwrites deterministically, no accumulation.
	require.NoError(t, b.WriteProfileScript(path))
	again, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestWriteHandoffFile(t *testing.T) {
	buildDir := t.TempDir()
	path := HandoffFilePath(buildDir)
	assert.Equal(t, filepath.Join(buildDir, "export"), path)

	b := NewBundle(filepath.Join(buildDir, "freetds"), map[string]string{})
	require.NoError(t, b.WriteHandoffFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, len(Names()))

	for i, line := range lines {
		name, _, ok := strings.Cut(line, "=")
		require.True(t, ok, "handoff lines are NAME=value: %q", line)
		assert.Equal(t, Names()[i], name, "only the recognized names are exported, in order")
	}
}
