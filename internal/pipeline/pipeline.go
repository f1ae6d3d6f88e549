// Package pipeline sequences one installer invocation: resolve
// configuration, consult the cache, build when needed, restore the
// artifact into the build tree and export the environment bundles.
package pipeline

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/legitfish/heroku-buildpack-freetds/internal/cache"
	"github.com/legitfish/heroku-buildpack-freetds/internal/config"
	"github.com/legitfish/heroku-buildpack-freetds/internal/envexport"
	"github.com/legitfish/heroku-buildpack-freetds/internal/fetch"
	"github.com/legitfish/heroku-buildpack-freetds/internal/paths"
)

// Fetcher retrieves and unpacks a source release.
type Fetcher interface {
	Fetch(url, buildDir, sourceDir string) error
}

// Builder compiles and installs an unpacked source tree.
type Builder interface {
	Build(sourceDir, installPrefix, tdsVersion string) error
	SmokeTest(installPrefix string) error
}

// Store persists and restores completed installations.
type Store interface {
	Save(installDir, cacheFilePath string, entry cache.Entry) error
	Restore(cacheFilePath, destDir string) error
	Get(version string) (*cache.Entry, error)
}

// Pipeline holds the collaborators for one invocation. Purely sequential;
// every external step is a blocking subprocess and the first failure
// terminates the run.
type Pipeline struct {
	Config  *config.BuildConfig
	Paths   *paths.PathSet
	Fetcher Fetcher
	Builder Builder
	Store   Store

	// BaseEnv is the invoking environment, captured once at startup.
	BaseEnv map[string]string

	Log *logrus.Logger
}

// Result names the step a run failed at.
type Result struct {
	Step string
	Err  error
}

func (r *Result) Error() string {
	return fmt.Sprintf("%s: %v", r.Step, r.Err)
}

func (r *Result) Unwrap() error {
	return r.Err
}

func fail(step string, err error) error {
	return &Result{Step: step, Err: err}
}

// Run executes the install end to end. The end banner is emitted on every
// exit path, naming the terminal status.
func (p *Pipeline) Run() (err error) {
	p.Log.Infof("-----> Installing FreeTDS %s", p.Config.Version)

	defer func() {
		if err != nil {
			p.Log.Errorf("-----> FreeTDS %s install failed: %v", p.Config.Version, err)
		} else {
			p.Log.Infof("-----> FreeTDS %s install done", p.Config.Version)
		}
	}()

	if err = p.Paths.Ensure(); err != nil {
		return fail("prepare directories", err)
	}

	useCache, policyErr := cache.ShouldUseCache(p.Paths.CacheFilePath, p.Config.ForceRebuild)
	if policyErr != nil {
		return fail("cache policy", policyErr)
	}

	if useCache {
		p.Log.Infof("       Reusing cached %s", filepath.Base(p.Paths.CacheFilePath))

		if entry, lookupErr := p.Store.Get(p.Config.Version); lookupErr == nil && entry != nil {
			p.Log.Debugf("       Cached artifact built %s with TDS protocol %s",
				entry.CreatedAt.Format(time.RFC3339), entry.TDSVersion)
		}
	} else if err = p.compileFresh(); err != nil {
		return err
	}

	p.Log.Infof("       Restoring build into %s", p.Paths.BuildInstallDir)
	if err = p.Store.Restore(p.Paths.CacheFilePath, p.Paths.BuildInstallDir); err != nil {
		return fail("restore artifact", err)
	}

	return p.exportEnvironment()
}

// compileFresh downloads, builds, smoke-tests and caches the release. No
// cache entry is written unless every step before it succeeded.
func (p *Pipeline) compileFresh() error {
	url := fetch.URL(p.Config.ArchiveName)
	p.Log.Infof("       Downloading %s", url)
	if err := p.Fetcher.Fetch(url, p.Paths.BuildDir, p.Paths.SourceDir); err != nil {
		return fail("download and unpack", err)
	}

	p.Log.Infof("       Building with TDS protocol %s into %s", p.Config.TDSVersion, p.Paths.RuntimeInstallDir)
	if err := p.Builder.Build(p.Paths.SourceDir, p.Paths.RuntimeInstallDir, p.Config.TDSVersion); err != nil {
		return fail("native build", err)
	}

	if err := p.Builder.SmokeTest(p.Paths.RuntimeInstallDir); err != nil {
		return fail("smoke test", err)
	}

	p.Log.Infof("       Caching build as %s", filepath.Base(p.Paths.CacheFilePath))
	entry := cache.Entry{
		Version:     p.Config.Version,
		ArchiveName: p.Config.ArchiveName,
		TDSVersion:  p.Config.TDSVersion,
	}
	if err := p.Store.Save(p.Paths.RuntimeInstallDir, p.Paths.CacheFilePath, entry); err != nil {
		return fail("cache save", err)
	}

	return nil
}

// exportEnvironment writes the runtime-rooted bundle as the per-deploy
// profile script and the build-rooted bundle as the inter-stage handoff
// file.
func (p *Pipeline) exportEnvironment() error {
	runtimeBundle := envexport.NewBundle(p.Paths.RuntimeInstallDir, p.BaseEnv)
	buildBundle := envexport.NewBundle(p.Paths.BuildInstallDir, p.BaseEnv)

	profilePath := envexport.ProfileScriptPath(p.Paths.BuildDir)
	if err := runtimeBundle.WriteProfileScript(profilePath); err != nil {
		return fail("write profile script", err)
	}

	handoffPath := envexport.HandoffFilePath(p.Paths.BuildDir)
	if err := buildBundle.WriteHandoffFile(handoffPath); err != nil {
		return fail("write handoff file", err)
	}

	p.Log.Debugf("       Wrote %s and %s", profilePath, handoffPath)
	return nil
}
