// Package builder drives the FreeTDS autotools build: configure, compile,
// install and cleanup, with every step's output captured to log files that
// are preserved inside the installed tree.
package builder

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Files written next to the source tree and preserved in the installed
// artifact.
const (
	OptionsFile        = "configure_options.txt"
	ConfigureStdoutLog = "configure_stdout.log"
	ConfigureStderrLog = "configure_stderr.log"
	MakeStdoutLog      = "make_stdout.log"
	MakeStderrLog      = "make_stderr.log"
)

// configureFlags disable the optional heavyweight FreeTDS features the
// deployed process never uses.
var configureFlags = []string{
	"--disable-odbc",
	"--disable-apps",
	"--disable-server",
	"--disable-pool",
	"--disable-debug",
}

// Commander interface for testing
type Commander interface {
	Run() error
}

// Builder runs the native toolchain as blocking subprocesses.
type Builder struct {
	execCommand func(dir string, stdout, stderr io.Writer, name string, args ...string) Commander
}

// New creates a builder backed by os/exec.
func New() *Builder {
	return &Builder{
		execCommand: func(dir string, stdout, stderr io.Writer, name string, args ...string) Commander {
			cmd := exec.Command(name, args...)
			cmd.Dir = dir
			cmd.Stdout = stdout
			cmd.Stderr = stderr
			return cmd
		},
	}
}

// ConfigureArgs returns the exact configure invocation for the given
// install prefix and TDS protocol version.
func ConfigureArgs(installPrefix, tdsVersion string) []string {
	args := []string{
		"--prefix=" + installPrefix,
		"--with-tdsver=" + tdsVersion,
	}

	return append(args, configureFlags...)
}

// Build compiles and installs the source tree at sourceDir under
// installPrefix. Each step's failure is fatal and short-circuits the rest.
// On success the build records are copied into the installed tree and the
// source tree is deleted.
func (b *Builder) Build(sourceDir, installPrefix, tdsVersion string) error {
	args := ConfigureArgs(installPrefix, tdsVersion)

	// Recorded before configure runs so the parameters are recoverable
	// even from a failed build.
	if err := writeOptionsFile(filepath.Join(sourceDir, OptionsFile), args); err != nil {
		return err
	}

	if err := b.configure(sourceDir, args); err != nil {
		return err
	}

	if err := b.compileAndInstall(sourceDir); err != nil {
		return err
	}

	if err := copyBuildRecords(sourceDir, installPrefix); err != nil {
		return err
	}

	if err := os.RemoveAll(sourceDir); err != nil {
		return fmt.Errorf("failed to remove source tree: %w", err)
	}

	return nil
}

// SmokeTest runs the installed tsql binary with its diagnostic flag. This
// is the last gate before an artifact is trusted enough to cache.
func (b *Builder) SmokeTest(installPrefix string) error {
	bin := filepath.Join(installPrefix, "bin", "tsql")

	cmd := b.execCommand(installPrefix, os.Stdout, os.Stderr, bin, "-C")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("smoke test failed (%s -C): %w", bin, err)
	}

	return nil
}

// configure runs ./configure with stdout and stderr captured to separate
// files so each can be diffed independently across builds.
func (b *Builder) configure(sourceDir string, args []string) error {
	stdout, stderr, closeLogs, err := openLogs(sourceDir, ConfigureStdoutLog, ConfigureStderrLog)
	if err != nil {
		return err
	}
	defer closeLogs()

	cmd := b.execCommand(sourceDir, stdout, stderr, "./configure", args...)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("configure failed: %w", err)
	}

	return nil
}

// compileAndInstall runs make, make install and make clean as one
// redirected unit; a failure of any of the three fails the unit.
func (b *Builder) compileAndInstall(sourceDir string) error {
	stdout, stderr, closeLogs, err := openLogs(sourceDir, MakeStdoutLog, MakeStderrLog)
	if err != nil {
		return err
	}
	defer closeLogs()

	for _, target := range [][]string{{"make"}, {"make", "install"}, {"make", "clean"}} {
		cmd := b.execCommand(sourceDir, stdout, stderr, target[0], target[1:]...)
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("%s failed: %w", strings.Join(target, " "), err)
		}
	}

	return nil
}

func openLogs(dir, stdoutName, stderrName string) (stdout, stderr io.Writer, closeLogs func(), err error) {
	stdoutFile, err := os.Create(filepath.Join(dir, stdoutName))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create %s: %w", stdoutName, err)
	}

	stderrFile, err := os.Create(filepath.Join(dir, stderrName))
	if err != nil {
		stdoutFile.Close()
		return nil, nil, nil, fmt.Errorf("failed to create %s: %w", stderrName, err)
	}

	return stdoutFile, stderrFile, func() {
		stdoutFile.Close()
		stderrFile.Close()
	}, nil
}

func writeOptionsFile(path string, args []string) error {
	content := "./configure " + strings.Join(args, " ") + "\n"

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}

	return nil
}

// copyBuildRecords copies the options file and all build logs into the
// installed tree, so the artifact stays self-describing after the source
// tree is discarded. The unpack log is included when the fetch step left
// one behind.
func copyBuildRecords(sourceDir, installPrefix string) error {
	records := []string{
		OptionsFile,
		ConfigureStdoutLog,
		ConfigureStderrLog,
		MakeStdoutLog,
		MakeStderrLog,
		"unpack.log",
	}

	for _, name := range records {
		src := filepath.Join(sourceDir, name)
		if _, err := os.Stat(src); os.IsNotExist(err) {
			continue
		}

		if err := copyFile(src, filepath.Join(installPrefix, name)); err != nil {
			return fmt.Errorf("failed to preserve %s: %w", name, err)
		}
	}

	return nil
}

func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	dstFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer dstFile.Close()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return err
	}

	srcInfo, err := os.Stat(src)
	if err != nil {
		return err
	}

	return os.Chmod(dst, srcInfo.Mode())
}
