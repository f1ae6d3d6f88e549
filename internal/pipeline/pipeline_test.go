package pipeline

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/legitfish/heroku-buildpack-freetds/internal/cache"
	"github.com/legitfish/heroku-buildpack-freetds/internal/config"
	"github.com/legitfish/heroku-buildpack-freetds/internal/envexport"
	"github.com/legitfish/heroku-buildpack-freetds/internal/paths"
)

type fakeFetcher struct {
	calls int
	err   error
}

func (f *fakeFetcher) Fetch(url, buildDir, sourceDir string) error {
	f.calls++
	return f.err
}

type fakeBuilder struct {
	buildCalls int
	smokeCalls int
	buildErr   error
	smokeErr   error
}

func (b *fakeBuilder) Build(sourceDir, installPrefix, tdsVersion string) error {
	b.buildCalls++
	return b.buildErr
}

func (b *fakeBuilder) SmokeTest(installPrefix string) error {
	b.smokeCalls++
	return b.smokeErr
}

type fakeStore struct {
	saveCalls    int
	restoreCalls int
	saveErr      error
	restoreErr   error
	savedEntry   cache.Entry
	savedPath    string
	restoredTo   string
}

func (s *fakeStore) Save(installDir, cacheFilePath string, entry cache.Entry) error {
	s.saveCalls++
	s.savedEntry = entry
	s.savedPath = cacheFilePath
	return s.saveErr
}

func (s *fakeStore) Restore(cacheFilePath, destDir string) error {
	s.restoreCalls++
	s.restoredTo = destDir
	return s.restoreErr
}

func (s *fakeStore) Get(version string) (*cache.Entry, error) {
	return nil, nil
}

type harness struct {
	pipeline *Pipeline
	fetcher  *fakeFetcher
	builder  *fakeBuilder
	store    *fakeStore
	logs     *bytes.Buffer
}

func newHarness(t *testing.T, forceRebuild bool) *harness {
	t.Helper()
	root := t.TempDir()

	cfg := &config.BuildConfig{
		Version:      "1.00.109",
		ArchiveName:  "freetds-1.00.109",
		TDSVersion:   "7.3",
		ForceRebuild: forceRebuild,
	}

	buildDir := filepath.Join(root, "build")
	cacheDir := filepath.Join(root, "cache")

	ps := paths.New(buildDir, cacheDir, cfg.Version, cfg.ArchiveName)
	ps.RuntimeInstallDir = filepath.Join(root, "app", "freetds")

	h := &harness{
		fetcher: &fakeFetcher{},
		builder: &fakeBuilder{},
		store:   &fakeStore{},
		logs:    &bytes.Buffer{},
	}

	log := logrus.New()
	log.SetOutput(h.logs)

	h.pipeline = &Pipeline{
		Config:  cfg,
		Paths:   ps,
		Fetcher: h.fetcher,
		Builder: h.builder,
		Store:   h.store,
		BaseEnv: map[string]string{"PATH": "/usr/bin"},
		Log:     log,
	}

	return h
}

func (h *harness) seedCacheFile(t *testing.T) {
	t.Helper()
	require.NoError(t, os.MkdirAll(h.pipeline.Paths.CacheDir, 0o755))
	require.NoError(t, os.WriteFile(h.pipeline.Paths.CacheFilePath, []byte("cached"), 0o644))
}

func TestRun_FreshBuild(t *testing.T) {
	h := newHarness(t, false)

	require.NoError(t, h.pipeline.Run())

	assert.Equal(t, 1, h.fetcher.calls)
	assert.Equal(t, 1, h.builder.buildCalls)
	assert.Equal(t, 1, h.builder.smokeCalls)
	assert.Equal(t, 1, h.store.saveCalls)
	assert.Equal(t, h.pipeline.Paths.CacheFilePath, h.store.savedPath)
	assert.Equal(t, "7.3", h.store.savedEntry.TDSVersion)

	// The saved artifact is restored into the build tree afterwards,
	// never recompiled there.
	assert.Equal(t, 1, h.store.restoreCalls)
	assert.Equal(t, h.pipeline.Paths.BuildInstallDir, h.store.restoredTo)
}

func TestRun_CacheHitSkipsFetchAndBuild(t *testing.T) {
	h := newHarness(t, false)
	h.seedCacheFile(t)

	require.NoError(t, h.pipeline.Run())

	assert.Zero(t, h.fetcher.calls, "a cache hit must not touch the network")
	assert.Zero(t, h.builder.buildCalls)
	assert.Zero(t, h.builder.smokeCalls)
	assert.Zero(t, h.store.saveCalls)
	assert.Equal(t, 1, h.store.restoreCalls)
}

func TestRun_ForceRebuildDiscardsCacheEntry(t *testing.T) {
	h := newHarness(t, true)
	h.seedCacheFile(t)

	require.NoError(t, h.pipeline.Run())

	assert.Equal(t, 1, h.builder.buildCalls)
	_, err := os.Stat(h.pipeline.Paths.CacheFilePath)
	assert.True(t, os.IsNotExist(err), "the stale entry is deleted before the fresh build")
}

func TestRun_WritesEnvironmentFiles(t *testing.T) {
	h := newHarness(t, false)

	require.NoError(t, h.pipeline.Run())

	profile, err := os.ReadFile(envexport.ProfileScriptPath(h.pipeline.Paths.BuildDir))
	require.NoError(t, err)
	assert.Contains(t, string(profile), h.pipeline.Paths.RuntimeInstallDir,
		"the per-deploy script is rooted at the runtime path")

	handoff, err := os.ReadFile(envexport.HandoffFilePath(h.pipeline.Paths.BuildDir))
	require.NoError(t, err)
	assert.Contains(t, string(handoff), h.pipeline.Paths.BuildInstallDir,
		"the handoff file is rooted at the build-time path")
	assert.NotContains(t, string(handoff), h.pipeline.Paths.RuntimeInstallDir)
}

func TestRun_BuildFailureLeavesCacheUntouched(t *testing.T) {
	h := newHarness(t, false)
	h.builder.buildErr = errors.New("configure failed")

	err := h.pipeline.Run()
	require.Error(t, err)

	var result *Result
	require.ErrorAs(t, err, &result)
	assert.Equal(t, "native build", result.Step)

	assert.Zero(t, h.store.saveCalls)
	entries, readErr := os.ReadDir(h.pipeline.Paths.CacheDir)
	require.NoError(t, readErr)
	assert.Empty(t, entries, "no cache entry may appear after a failed build")
}

func TestRun_SmokeTestFailurePreventsCaching(t *testing.T) {
	h := newHarness(t, false)
	h.builder.smokeErr = errors.New("tsql crashed")

	err := h.pipeline.Run()
	require.Error(t, err)

	var result *Result
	require.ErrorAs(t, err, &result)
	assert.Equal(t, "smoke test", result.Step)
	assert.Zero(t, h.store.saveCalls)
}

func TestRun_BannerOnEveryExit(t *testing.T) {
	h := newHarness(t, false)
	require.NoError(t, h.pipeline.Run())
	assert.Contains(t, h.logs.String(), "Installing FreeTDS 1.00.109")
	assert.Contains(t, h.logs.String(), "install done")

	h = newHarness(t, false)
	h.fetcher.err = errors.New("connection refused")
	require.Error(t, h.pipeline.Run())
	assert.Contains(t, h.logs.String(), "install failed")
	assert.Contains(t, h.logs.String(), "download and unpack")
}

func TestResult_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := fail("native build", cause)

	assert.EqualError(t, err, "native build: boom")
	assert.ErrorIs(t, err, cause)
}
