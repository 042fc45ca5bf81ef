package build

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Norgate-AV/shaderbuild/internal/cache"
	"github.com/Norgate-AV/shaderbuild/internal/config"
	"github.com/Norgate-AV/shaderbuild/internal/history"
	"github.com/Norgate-AV/shaderbuild/internal/logging"
	"github.com/Norgate-AV/shaderbuild/internal/testutil"
)

type project struct {
	t        *testing.T
	dir      string
	cfg      *config.Config
	log      string
	diag     bytes.Buffer
	manifest string
}

func newProject(t *testing.T, manifestLines ...string) *project {
	t.Helper()

	dir := t.TempDir()
	p := &project{
		t:        t,
		dir:      dir,
		log:      filepath.Join(dir, "invocations.log"),
		manifest: filepath.Join(dir, "shaders.list"),
	}

	p.cfg = &config.Config{
		CompilerPath:    testutil.FakeCompiler(t),
		ManifestPath:    p.manifest,
		IntermediateDir: filepath.Join(dir, "int"),
		OutputDir:       filepath.Join(dir, "gen"),
		RegistryPath:    filepath.Join(dir, "gen", "shader_list.cpp"),
		ShaderModel:     "6_6",
		Jobs:            2,
	}

	t.Setenv("FAKE_COMPILER_LOG", p.log)
	p.writeManifest(manifestLines...)

	return p
}

func (p *project) writeManifest(lines ...string) {
	p.t.Helper()
	require.NoError(p.t, os.WriteFile(p.manifest, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
}

func (p *project) write(name, content string) string {
	p.t.Helper()

	path := filepath.Join(p.dir, name)
	require.NoError(p.t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func (p *project) build() (*Summary, error) {
	p.t.Helper()

	driver := New(p.cfg, logging.Discard())
	driver.Diagnostics = &p.diag

	return driver.Run(context.Background())
}

// compiles counts binary-producing invocations so far
func (p *project) compiles() int {
	data, err := os.ReadFile(p.log)
	if os.IsNotExist(err) {
		return 0
	}
	require.NoError(p.t, err)

	return strings.Count(string(data), " -Fo ")
}

func (p *project) touch(path string) {
	p.t.Helper()

	later := time.Now().Add(time.Hour).Truncate(time.Second)
	require.NoError(p.t, os.Chtimes(path, later, later))
}

func TestDriver_FirstRunBuildsEverything(t *testing.T) {
	p := newProject(t, "SkyVS", "SkyPS .entrypoint = psmain")
	p.write("SkyVS.hlsl", "// vs")
	p.write("SkyPS.hlsl", "// ps")

	summary, err := p.build()
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Count(history.Rebuilt))
	assert.True(t, summary.RegistryWritten)
	assert.Equal(t, 2, p.compiles())

	assert.FileExists(t, filepath.Join(p.cfg.OutputDir, "SkyVS.cpp"))
	assert.FileExists(t, filepath.Join(p.cfg.OutputDir, "SkyPS.cpp"))
	assert.FileExists(t, filepath.Join(p.cfg.IntermediateDir, "SkyVS.vs_6_6.dxil"))

	registry, err := os.ReadFile(p.cfg.RegistryPath)
	require.NoError(t, err)
	assert.Contains(t, string(registry), "shaders::SkyVS(),")
	assert.Contains(t, string(registry), "shaders::SkyPS(),")

	records, err := cache.Load(cache.Path(p.cfg.IntermediateDir))
	require.NoError(t, err)
	assert.Equal(t, []string{"SkyPS", "SkyVS"}, records.Names())
	assert.Equal(t, filepath.Join(p.dir, "SkyVS.hlsl"), records["SkyVS"].Files[0].Path)

	assert.Contains(t, summary.Tracked, p.manifest)
	assert.Contains(t, summary.Tracked, filepath.Join(p.dir, "SkyPS.hlsl"))
}

func TestDriver_SecondRunIsIdempotent(t *testing.T) {
	p := newProject(t, "SkyVS", "SkyPS")
	p.write("SkyVS.hlsl", "// vs")
	p.write("SkyPS.hlsl", "// ps")

	_, err := p.build()
	require.NoError(t, err)

	cachePath := cache.Path(p.cfg.IntermediateDir)
	before, err := os.ReadFile(cachePath)
	require.NoError(t, err)

	summary, err := p.build()
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Count(history.Fresh))
	assert.False(t, summary.RegistryWritten)
	assert.Equal(t, 2, p.compiles())

	after, err := os.ReadFile(cachePath)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestDriver_TouchedIncludeRebuildsOwner(t *testing.T) {
	p := newProject(t, "SkyVS", "SkyPS")
	p.write("SkyVS.hlsl", "// vs")
	src := p.write("SkyPS.hlsl", "// ps")
	include := p.write("lighting.hlsli", "// shared")
	p.write("SkyPS.hlsl.deps", include)

	_, err := p.build()
	require.NoError(t, err)
	require.Equal(t, 2, p.compiles())

	p.touch(include)

	summary, err := p.build()
	require.NoError(t, err)

	assert.Equal(t, 3, p.compiles())
	assert.Equal(t, history.Fresh, summary.Units[0].Outcome)
	assert.Equal(t, history.Rebuilt, summary.Units[1].Outcome)

	// own source counts too
	p.touch(src)

	summary, err = p.build()
	require.NoError(t, err)
	assert.Equal(t, 4, p.compiles())
	assert.Equal(t, 1, summary.Count(history.Rebuilt))
}

func TestDriver_DeletedIncludeRebuildsOwner(t *testing.T) {
	p := newProject(t, "SkyPS")
	p.write("SkyPS.hlsl", "// ps")
	include := p.write("fog.hlsli", "// fog")
	deps := p.write("SkyPS.hlsl.deps", include)

	_, err := p.build()
	require.NoError(t, err)

	require.NoError(t, os.Remove(include))
	require.NoError(t, os.Remove(deps))

	summary, err := p.build()
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Count(history.Rebuilt))
	assert.Equal(t, 2, p.compiles())

	records, err := cache.Load(cache.Path(p.cfg.IntermediateDir))
	require.NoError(t, err)
	assert.Len(t, records["SkyPS"].Files, 1)
}

func TestDriver_NewUnitWritesRegistry(t *testing.T) {
	p := newProject(t, "SkyVS")
	p.write("SkyVS.hlsl", "// vs")
	p.write("SkyPS.hlsl", "// ps")

	_, err := p.build()
	require.NoError(t, err)

	p.writeManifest("SkyVS", "SkyPS")

	summary, err := p.build()
	require.NoError(t, err)

	assert.True(t, summary.RegistryWritten)
	assert.Equal(t, history.Fresh, summary.Units[0].Outcome)

	registry, err := os.ReadFile(p.cfg.RegistryPath)
	require.NoError(t, err)
	assert.Contains(t, string(registry), "shaders::SkyPS(),")

	// dropping a unit introduces no new name
	p.writeManifest("SkyPS")

	summary, err = p.build()
	require.NoError(t, err)
	assert.False(t, summary.RegistryWritten)

	records, err := cache.Load(cache.Path(p.cfg.IntermediateDir))
	require.NoError(t, err)
	assert.Equal(t, []string{"SkyPS"}, records.Names())
}

func TestDriver_MissingRegistryIsRegenerated(t *testing.T) {
	p := newProject(t, "SkyVS")
	p.write("SkyVS.hlsl", "// vs")

	_, err := p.build()
	require.NoError(t, err)
	require.NoError(t, os.Remove(p.cfg.RegistryPath))

	summary, err := p.build()
	require.NoError(t, err)

	assert.True(t, summary.RegistryWritten)
	assert.FileExists(t, p.cfg.RegistryPath)
	assert.Equal(t, 1, p.compiles())
}

func TestDriver_PartialFailure(t *testing.T) {
	p := newProject(t, "GoodVS", "BadPS .file = broken.hlsl", "OtherCS")
	p.write("GoodVS.hlsl", "// vs")
	p.write("broken.hlsl", "// ps")
	p.write("OtherCS.hlsl", "// cs")

	summary, err := p.build()
	require.ErrorIs(t, err, ErrBuildFailed)
	require.NotNil(t, summary)

	assert.Equal(t, 2, summary.Count(history.Rebuilt))
	assert.Equal(t, 1, summary.Count(history.Failed))
	assert.Contains(t, p.diag.String(), "BadPS(ps_6_6): compile failed with exit code 3")
	assert.Contains(t, p.diag.String(), "broken.hlsl:3:1: error: expected ';'")

	assert.FileExists(t, filepath.Join(p.cfg.OutputDir, "GoodVS.cpp"))
	assert.NoFileExists(t, filepath.Join(p.cfg.OutputDir, "BadPS.cpp"))

	records, err := cache.Load(cache.Path(p.cfg.IntermediateDir))
	require.NoError(t, err)
	assert.Equal(t, []string{"GoodVS", "OtherCS"}, records.Names())

	// the failed unit is retried, the others are not
	_, err = p.build()
	require.ErrorIs(t, err, ErrBuildFailed)
	assert.Equal(t, 4, p.compiles())
}

func TestDriver_ManifestErrors(t *testing.T) {
	p := newProject(t, "SkyVS", "Sky .file = sky.hlsl", "SkyVS")
	p.write("SkyVS.hlsl", "// vs")

	summary, err := p.build()
	require.ErrorIs(t, err, ErrBuildFailed)

	assert.Len(t, summary.ManifestErrors, 2)
	assert.False(t, summary.Failed)
	assert.Equal(t, 1, summary.Count(history.Rebuilt))
	assert.Contains(t, p.diag.String(), p.manifest+"(2): Shader ('Sky') has invalid target suffix.")
	assert.Contains(t, p.diag.String(), p.manifest+"(3): Shader ('SkyVS') is already declared on line 1.")
}

func TestDriver_MissingManifest(t *testing.T) {
	p := newProject(t)
	require.NoError(t, os.Remove(p.manifest))

	summary, err := p.build()
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBuildFailed)
	assert.Nil(t, summary)
}

func TestDriver_RecordsHistory(t *testing.T) {
	p := newProject(t, "SkyVS")
	p.write("SkyVS.hlsl", "// vs")

	_, err := p.build()
	require.NoError(t, err)
	_, err = p.build()
	require.NoError(t, err)

	store, err := history.Open(p.cfg.IntermediateDir)
	require.NoError(t, err)
	defer store.Close()

	entries, err := store.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	assert.Equal(t, history.Fresh, entries[0].Outcome)
	assert.Equal(t, 1, entries[0].Builds)
	assert.Equal(t, int64(len(testutil.FakeBinary)), entries[0].BinarySize)
}

func TestDriver_NoHistory(t *testing.T) {
	p := newProject(t, "SkyVS")
	p.write("SkyVS.hlsl", "// vs")
	p.cfg.NoHistory = true

	_, err := p.build()
	require.NoError(t, err)

	assert.NoFileExists(t, filepath.Join(p.cfg.IntermediateDir, history.DefaultFileName))
}
