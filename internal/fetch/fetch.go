// Package fetch retrieves and unpacks FreeTDS source releases.
package fetch

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/legitfish/heroku-buildpack-freetds/internal/tarball"
)

// StableURL is the release download location, templated with the archive
// basename.
const StableURL = "http://www.freetds.org/files/stable/%s.tar.gz"

// UnpackLog names the extraction manifest kept with the source tree.
const UnpackLog = "unpack.log"

// URL returns the stable-release download URL for an archive basename.
func URL(archiveName string) string {
	return fmt.Sprintf(StableURL, archiveName)
}

// Fetcher downloads release archives over HTTP.
type Fetcher struct {
	client *http.Client
}

// New creates a fetcher using the default HTTP client.
func New() *Fetcher {
	return &Fetcher{client: http.DefaultClient}
}

// Fetch streams the archive at url into buildDir, unpacking as it
// downloads; the compressed bytes never touch disk. The unpack manifest is
// written into buildDir first and relocated into the extracted source tree
// once that directory exists. A failed extraction is left in place for
// inspection.
func (f *Fetcher) Fetch(url, buildDir, sourceDir string) error {
	resp, err := f.client.Get(url)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download %s: unexpected status %s", url, resp.Status)
	}

	entries, err := tarball.Extract(resp.Body, buildDir)
	if err != nil {
		return fmt.Errorf("failed to unpack %s: %w", url, err)
	}

	logPath := filepath.Join(buildDir, UnpackLog)
	if err := writeManifest(logPath, entries); err != nil {
		return err
	}

	if _, err := os.Stat(sourceDir); err != nil {
		return fmt.Errorf("archive did not produce %s: %w", filepath.Base(sourceDir), err)
	}

	// The manifest cannot be written into the source tree up front; the
	// directory only exists once extraction finishes.
	if err := os.Rename(logPath, filepath.Join(sourceDir, UnpackLog)); err != nil {
		return fmt.Errorf("failed to relocate unpack log: %w", err)
	}

	return nil
}

func writeManifest(path string, entries []string) error {
	content := strings.Join(entries, "\n") + "\n"

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write unpack log: %w", err)
	}

	return nil
}
