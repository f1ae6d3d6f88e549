package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/legitfish/heroku-buildpack-freetds/internal/builder"
	"github.com/legitfish/heroku-buildpack-freetds/internal/cache"
	"github.com/legitfish/heroku-buildpack-freetds/internal/config"
	"github.com/legitfish/heroku-buildpack-freetds/internal/fetch"
	"github.com/legitfish/heroku-buildpack-freetds/internal/paths"
	"github.com/legitfish/heroku-buildpack-freetds/internal/pipeline"
	"github.com/legitfish/heroku-buildpack-freetds/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "heroku-buildpack-freetds BUILD_DIR CACHE_DIR ENV_DIR",
	Short: "Compile or restore FreeTDS for a deploy",
	Long: `Installs FreeTDS under fixed build-time and runtime paths, caching the
compiled tree per version and exporting the environment needed to use it
from later build stages and from the deployed process.`,
	RunE:         runCompile,
	Args:         cobra.ExactArgs(3),
	SilenceUsage: true,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = fmt.Sprintf("%s (%s) %s", version.Version, version.Commit, version.BuildTime)
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")

	viper.SetDefault("verbose", false)
}

func runCompile(cmd *cobra.Command, args []string) error {
	_ = viper.BindPFlag("verbose", cmd.Flags().Lookup("verbose"))

	log := logrus.New()
	log.SetOutput(cmd.OutOrStdout())
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if viper.GetBool("verbose") {
		log.SetLevel(logrus.DebugLevel)
	}

	buildDir, cacheDir, envDir := args[0], args[1], args[2]

	cfg, err := config.Load(envDir)
	if err != nil {
		return err
	}

	store, err := cache.Open(cacheDir)
	if err != nil {
		return err
	}
	defer store.Close()

	p := &pipeline.Pipeline{
		Config:  cfg,
		Paths:   paths.New(buildDir, cacheDir, cfg.Version, cfg.ArchiveName),
		Fetcher: fetch.New(),
		Builder: builder.New(),
		Store:   store,
		BaseEnv: environMap(),
		Log:     log,
	}

	return p.Run()
}

// environMap captures the invoking environment once; the pipeline never
// reads ambient process state after this point.
func environMap() map[string]string {
	env := make(map[string]string)

	for _, kv := range os.Environ() {
		if name, value, ok := strings.Cut(kv, "="); ok {
			env[name] = value
		}
	}

	return env
}
