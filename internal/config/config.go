package config

import (
	"github.com/spf13/viper"
)

// Default configuration values
const (
	DefaultVersion    = "1.00.109"
	DefaultTDSVersion = "7.3"

	// DefaultRebuild discards any cached artifact and compiles from
	// source on every run. Upstream ships this enabled as a workaround
	// for a linking issue; set FREETDS_REBUILD=false to re-enable the
	// cache.
	DefaultRebuild = true
)

// Override file names recognized in the env directory
const (
	EnvVersion     = "FREETDS_VERSION"
	EnvArchiveName = "FREETDS_ARCHIVE_NAME"
	EnvTDSVersion  = "TDS_VERSION"
	EnvRebuild     = "FREETDS_REBUILD"
)

// OverrideNames lists every env-dir variable the installer reads.
var OverrideNames = []string{
	EnvVersion,
	EnvArchiveName,
	EnvTDSVersion,
	EnvRebuild,
}

// Holds the resolved build configuration. Read-only after Load.
type BuildConfig struct {
	// FreeTDS release to install (e.g. "1.00.109")
	Version string

	// Basename of the release tarball, without extension
	ArchiveName string

	// TDS protocol version passed to configure via --with-tdsver
	TDSVersion string

	// Discard any cached artifact and compile from source
	ForceRebuild bool
}

// Load resolves the build configuration from the env-override directory,
// falling back to the compiled-in defaults per field. Absent overrides are
// not an error.
func Load(envDir string) (*BuildConfig, error) {
	v := viper.New()
	v.SetDefault(EnvVersion, DefaultVersion)
	v.SetDefault(EnvTDSVersion, DefaultTDSVersion)
	v.SetDefault(EnvRebuild, DefaultRebuild)

	overrides, err := ReadOverrides(envDir, OverrideNames)
	if err != nil {
		return nil, err
	}

	for name, value := range overrides {
		v.Set(name, value)
	}

	cfg := &BuildConfig{
		Version:      v.GetString(EnvVersion),
		ArchiveName:  v.GetString(EnvArchiveName),
		TDSVersion:   v.GetString(EnvTDSVersion),
		ForceRebuild: v.GetBool(EnvRebuild),
	}

	// The archive name follows the version unless overridden outright.
	if cfg.ArchiveName == "" {
		cfg.ArchiveName = "freetds-" + cfg.Version
	}

	return cfg, nil
}
