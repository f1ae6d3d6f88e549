// Package paths fixes the filesystem locations the installer works with.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

// RuntimeDir is the install prefix compiled into the FreeTDS binaries. It
// must match where the tree sits when the deployed process runs, which is
// why the build installs here and the result is copied, never recompiled,
// into the build-time location.
const RuntimeDir = "/app/freetds"

// PathSet holds every location one invocation reads or writes.
type PathSet struct {
	// BuildDir is the platform-provided build working directory
	BuildDir string

	// SourceDir is where the release tarball unpacks to
	SourceDir string

	// BuildInstallDir is the build-time copy of the installed tree,
	// read by later build stages
	BuildInstallDir string

	// RuntimeInstallDir is the prefix the native build installs under
	RuntimeInstallDir string

	// CacheDir is the platform-provided cache directory
	CacheDir string

	// CacheFilePath is the version-keyed artifact archive
	CacheFilePath string
}

// New derives the path set for one invocation.
func New(buildDir, cacheDir, version, archiveName string) *PathSet {
	return &PathSet{
		BuildDir:          buildDir,
		SourceDir:         filepath.Join(buildDir, archiveName),
		BuildInstallDir:   filepath.Join(buildDir, "freetds"),
		RuntimeInstallDir: RuntimeDir,
		CacheDir:          cacheDir,
		CacheFilePath:     filepath.Join(cacheDir, CacheFileName(version)),
	}
}

// CacheFileName returns the cache archive name for a version. The version
// is the sole cache key.
func CacheFileName(version string) string {
	return fmt.Sprintf("freetds-%s.tar.gz", version)
}

// Ensure creates the directories the pipeline writes into. Safe to call on
// pre-existing directories.
func (p *PathSet) Ensure() error {
	for _, dir := range []string{p.BuildDir, p.CacheDir, p.RuntimeInstallDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	return nil
}
