package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRootCmd_RequiresThreeArgs(t *testing.T) {
	assert.Error(t, rootCmd.Args(rootCmd, []string{"build"}))
	assert.Error(t, rootCmd.Args(rootCmd, []string{"build", "cache"}))
	assert.NoError(t, rootCmd.Args(rootCmd, []string{"build", "cache", "env"}))
	assert.Error(t, rootCmd.Args(rootCmd, []string{"build", "cache", "env", "extra"}))
}

func TestEnvironMap(t *testing.T) {
	t.Setenv("FREETDS_TEST_SENTINEL", "captured")

	env := environMap()
	assert.Equal(t, "captured", env["FREETDS_TEST_SENTINEL"])
	assert.NotEmpty(t, env["PATH"])
}
