package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Norgate-AV/shaderbuild/internal/build"
	"github.com/Norgate-AV/shaderbuild/internal/cache"
	"github.com/Norgate-AV/shaderbuild/internal/codes"
	"github.com/Norgate-AV/shaderbuild/internal/config"
	"github.com/Norgate-AV/shaderbuild/internal/history"
	"github.com/Norgate-AV/shaderbuild/internal/testutil"
)

// resetFlags restores every flag of the command tree to its default
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if f.Value.Type() != "stringArray" {
			_ = f.Value.Set(f.DefValue)
		}

		f.Changed = false
	}

	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)

	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

// execute runs the command tree with args in an isolated environment
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	viper.Reset()
	resetFlags(rootCmd)

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))

	oldColor := color.Enable
	color.Enable = false
	t.Cleanup(func() { color.Enable = oldColor })

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()

	return stdout.String(), stderr.String(), err
}

type workspace struct {
	dir      string
	manifest string
	compiler string
}

func newWorkspace(t *testing.T, manifest string, sources ...string) *workspace {
	t.Helper()

	w := &workspace{
		dir:      t.TempDir(),
		compiler: testutil.FakeCompiler(t),
	}

	w.manifest = filepath.Join(w.dir, "shaders.list")
	require.NoError(t, os.WriteFile(w.manifest, []byte(manifest), 0o644))

	for _, src := range sources {
		require.NoError(t, os.WriteFile(filepath.Join(w.dir, src), []byte("// "+src), 0o644))
	}

	settings := fmt.Sprintf("compiler_path: %s\nintermediate_dir: %s\noutput_dir: %s\nregistry_path: %s\n",
		w.compiler,
		filepath.Join(w.dir, "int"),
		filepath.Join(w.dir, "gen"),
		filepath.Join(w.dir, "gen", "shader_list.cpp"),
	)
	require.NoError(t, os.WriteFile(filepath.Join(w.dir, ".shaderbuild.yml"), []byte(settings), 0o644))

	return w
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, codes.Success},
		{"build failure", fmt.Errorf("run: %w", build.ErrBuildFailed), codes.BuildFailed},
		{"missing config", fmt.Errorf("%w: output_dir", config.ErrMissingValue), codes.ConfigError},
		{"usage", usageErrorf("requires exactly one manifest argument"), codes.ConfigError},
		{"other", errors.New("failed to load manifest"), codes.BuildFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", formatSize(512))
	assert.Equal(t, "1.5 KiB", formatSize(1536))
	assert.Equal(t, "2.0 MiB", formatSize(2*1024*1024))
}

func TestUnitStatus(t *testing.T) {
	color.Enable = false
	t.Cleanup(func() { color.Enable = true })

	src := filepath.Join(t.TempDir(), "sky.hlsl")
	require.NoError(t, os.WriteFile(src, []byte("// sky"), 0o644))
	modTime, err := cache.ModTime(src)
	require.NoError(t, err)

	fresh := cache.Record{Files: []cache.File{{Path: src, ModTime: modTime}}}
	stale := cache.Record{Files: []cache.File{{Path: src, ModTime: modTime + 1}}}

	assert.Equal(t, "new", unitStatus(cache.Record{}, false))
	assert.Equal(t, "up-to-date", unitStatus(fresh, true))
	assert.Equal(t, "stale ("+src+": modified)", unitStatus(stale, true))
}

func TestPrintSummary(t *testing.T) {
	color.Enable = false
	t.Cleanup(func() { color.Enable = true })

	summary := &build.Summary{
		Result: &build.Result{
			Units: []build.UnitResult{
				{Name: "SkyVS", Outcome: history.Fresh},
				{Name: "SkyPS", Outcome: history.Rebuilt},
				{Name: "CullCS", Outcome: history.Failed},
			},
			Failed: true,
		},
		ManifestErrors: []error{errors.New("bad line")},
	}

	var buf bytes.Buffer
	printSummary(&buf, summary, 1500*time.Millisecond)

	assert.Equal(t, "FAILED CullCS\nBuild failed: 1 rebuilt, 1 up to date, 1 failed, 1 manifest errors (1.5s)\n", buf.String())
}

func TestBuild_RequiresManifest(t *testing.T) {
	_, _, err := execute(t, "build")

	assert.Equal(t, codes.ConfigError, exitCode(err))
}

func TestBuild_MissingOutputSettings(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "shaders.list")
	require.NoError(t, os.WriteFile(manifest, []byte("SkyVS\n"), 0o644))

	_, _, err := execute(t, "build", manifest, "--intermediate", filepath.Join(dir, "int"))

	assert.ErrorIs(t, err, config.ErrMissingValue)
	assert.Equal(t, codes.ConfigError, exitCode(err))
}

func TestBuild_UnknownFlag(t *testing.T) {
	_, _, err := execute(t, "build", "--bogus")

	assert.Equal(t, codes.ConfigError, exitCode(err))
}

func TestCommands_EndToEnd(t *testing.T) {
	w := newWorkspace(t, "SkyVS\nSkyPS .entrypoint = psmain\n", "SkyVS.hlsl", "SkyPS.hlsl")

	stdout, _, err := execute(t, "build", w.manifest)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Build succeeded: 2 rebuilt, 0 up to date, 0 failed")
	assert.FileExists(t, filepath.Join(w.dir, "gen", "SkyPS.cpp"))
	assert.FileExists(t, filepath.Join(w.dir, "gen", "shader_list.cpp"))

	// the root command builds too
	stdout, _, err = execute(t, w.manifest, "-j", "1")
	require.NoError(t, err)
	assert.Contains(t, stdout, "0 rebuilt, 2 up to date")

	stdout, _, err = execute(t, "status", w.manifest)
	require.NoError(t, err)
	assert.Regexp(t, `SkyVS\s+up-to-date`, stdout)
	assert.Regexp(t, `SkyPS\s+up-to-date`, stdout)

	stdout, _, err = execute(t, "stats", w.manifest)
	require.NoError(t, err)
	assert.Regexp(t, `SkyVS\s+1\s+9 B`, stdout)
	assert.Contains(t, stdout, "2 shaders, 2 builds, 0 failing")

	stdout, _, err = execute(t, "build", w.manifest, "--force")
	require.NoError(t, err)
	assert.Contains(t, stdout, "2 rebuilt")

	stdout, _, err = execute(t, "clean", w.manifest)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Removed 2 intermediate files")
	assert.NoFileExists(t, filepath.Join(w.dir, "int", cache.DefaultFileName))
	assert.NoFileExists(t, filepath.Join(w.dir, "int", "SkyVS.vs_6_6.dxil"))

	stdout, _, err = execute(t, "status", w.manifest)
	require.NoError(t, err)
	assert.Regexp(t, `SkyVS\s+new`, stdout)

	stdout, _, err = execute(t, "stats", w.manifest)
	require.NoError(t, err)
	assert.Contains(t, stdout, "0 shaders, 0 builds")
}

func TestBuild_FailingShader(t *testing.T) {
	w := newWorkspace(t, "GoodVS\nBadPS .file = broken.hlsl\n", "GoodVS.hlsl", "broken.hlsl")

	stdout, stderr, err := execute(t, "build", w.manifest)

	assert.ErrorIs(t, err, build.ErrBuildFailed)
	assert.Equal(t, codes.BuildFailed, exitCode(err))
	assert.Contains(t, stdout, "FAILED BadPS")
	assert.Contains(t, stdout, "Build failed: 1 rebuilt, 0 up to date, 1 failed")
	assert.Contains(t, stderr, "error: expected ';'")
}

func TestBuild_ManifestError(t *testing.T) {
	w := newWorkspace(t, "SkyVS\nSky\n", "SkyVS.hlsl")

	_, stderr, err := execute(t, "build", w.manifest)

	assert.ErrorIs(t, err, build.ErrBuildFailed)
	assert.Contains(t, stderr, "(2): Shader ('Sky') has invalid target suffix.")
}
