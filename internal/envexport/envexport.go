// Package envexport derives the FreeTDS environment bundles and persists
// them: one rooted at the runtime install path for the deployed process,
// one rooted at the build-time path for later build stages. Both bundles
// share the same variable names and relative suffixes; only the base path
// differs.
package envexport

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Exported variable names.
const (
	VarPath          = "PATH"
	VarLDLibraryPath = "LD_LIBRARY_PATH"
	VarLDRunPath     = "LD_RUN_PATH"
	VarLibraryPath   = "LIBRARY_PATH"
	VarInstallDir    = "FREETDS_DIR"

	// VarSybase is a legacy alias for the install root that some TDS
	// client libraries still read.
	VarSybase = "SYBASE"
)

// Fallbacks applied when the invoking environment carries no value for a
// path variable to prepend to.
const (
	defaultPath    = "/usr/local/bin:/usr/bin:/bin"
	defaultLibPath = "/usr/local/lib"
)

// template drives bundle derivation: variable name, subdirectory under the
// install root, and the fallback used when nothing was inherited. Rows
// without a fallback export the root itself rather than composing a search
// path.
var template = []struct {
	name     string
	subdir   string
	fallback string
}{
	{VarPath, "bin", defaultPath},
	{VarLDLibraryPath, "lib", defaultLibPath},
	{VarLDRunPath, "lib", defaultLibPath},
	{VarLibraryPath, "lib", defaultLibPath},
	{VarInstallDir, "", ""},
	{VarSybase, "", ""},
}

// Var is one exported environment variable.
type Var struct {
	Name  string
	Value string
}

// Bundle is an ordered set of environment variables rooted at one install
// path.
type Bundle []Var

// Names returns the variable names the exporter manages, in bundle order.
func Names() []string {
	names := make([]string, len(template))
	for i, row := range template {
		names[i] = row.name
	}

	return names
}

// NewBundle derives the bundle for an install root. base supplies the
// inherited values for the path-valued variables; pass the environment
// captured once at startup, never a live process-environment read. Each
// path variable prepends its new segment ahead of the inherited value,
// falling back to a conventional system path if none was set.
func NewBundle(root string, base map[string]string) Bundle {
	bundle := make(Bundle, 0, len(template))

	for _, row := range template {
		if row.fallback == "" {
			bundle = append(bundle, Var{Name: row.name, Value: root})
			continue
		}

		inherited := base[row.name]
		if inherited == "" {
			inherited = row.fallback
		}

		bundle = append(bundle, Var{
			Name:  row.name,
			Value: filepath.Join(root, row.subdir) + ":" + inherited,
		})
	}

	return bundle
}

// ProfileScriptPath returns the per-deploy initialization script location
// under the build directory. Scripts there are sourced every time the
// deployed process starts.
func ProfileScriptPath(buildDir string) string {
	return filepath.Join(buildDir, ".profile.d", "freetds.sh")
}

// HandoffFilePath returns the inter-stage export file location under the
// build directory. Later build stages source it instead of re-deriving the
// environment.
func HandoffFilePath(buildDir string) string {
	return filepath.Join(buildDir, "export")
}

// WriteProfileScript persists the bundle as a shell-sourceable script.
// Rerunning overwrites deterministically.
func (b Bundle) WriteProfileScript(path string) error {
	var sb strings.Builder
	for _, v := range b {
		fmt.Fprintf(&sb, "export %s=\"%s\"\n", v.Name, v.Value)
	}

	return writeFile(path, sb.String())
}

// WriteHandoffFile persists the bundle as plain NAME=value lines,
// restricted to exactly the bundle's variable names. Rerunning overwrites
// deterministically.
func (b Bundle) WriteHandoffFile(path string) error {
	var sb strings.Builder
	for _, v := range b {
		fmt.Fprintf(&sb, "%s=%s\n", v.Name, v.Value)
	}

	return writeFile(path, sb.String())
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}
