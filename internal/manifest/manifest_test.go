package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	path := filepath.Join("/proj", "shaders", "shaders.list")
	input := strings.Join([]string{
		"// engine shaders",
		"",
		"BasicVS",
		"   MeshPS .file = mesh.hlsl .entrypoint = psmain   ",
		"SkyboxVS .file = sky/skybox.hlsl",
		"ShadowMeshVS .file = /abs/shadow.hlsl .entrypoint = main",
		"Blit .file = blit.hlsl .target = vs_6_6 .target = ps_6_6 .target = vs_6_6",
	}, "\n")

	units, problems, err := Parse(strings.NewReader(input), path, "6_6")
	require.NoError(t, err)
	assert.Empty(t, problems)

	require.Len(t, units, 5)

	assert.Equal(t, Unit{
		Name:       "BasicVS",
		File:       "BasicVS.hlsl",
		SourcePath: filepath.Join("/proj", "shaders", "BasicVS.hlsl"),
		EntryPoint: "main",
		Profiles:   []string{"vs_6_6"},
		Line:       3,
	}, units[0])

	assert.Equal(t, "psmain", units[1].EntryPoint)
	assert.Equal(t, []string{"ps_6_6"}, units[1].Profiles)
	assert.Equal(t, 4, units[1].Line)

	assert.Equal(t, filepath.Join("/proj", "shaders", "sky", "skybox.hlsl"), units[2].SourcePath)
	assert.Equal(t, "sky/skybox.hlsl", units[2].File)

	if filepath.IsAbs("/abs/shadow.hlsl") {
		assert.Equal(t, "/abs/shadow.hlsl", units[3].SourcePath)
	}

	assert.Equal(t, []string{"vs_6_6", "ps_6_6"}, units[4].Profiles)

	assert.Equal(t, []string{"BasicVS", "MeshPS", "SkyboxVS", "ShadowMeshVS", "Blit"}, Names(units))
}

func TestParse_Errors(t *testing.T) {
	path := "/proj/shaders.list"
	input := strings.Join([]string{
		"GoodVS",
		"ShortPS .file =",
		"NoEqualsPS .file : mesh.hlsl",
		"UnknownPS .flags = O3",
		"Blit",
		"GoodVS .file = other.hlsl",
		"Bad-NameVS",
		"AfterCS",
	}, "\n")

	units, problems, err := Parse(strings.NewReader(input), path, "6_6")
	require.NoError(t, err)

	// bad lines never stop later lines from parsing
	assert.Equal(t, []string{"GoodVS", "AfterCS"}, Names(units))

	require.Len(t, problems, 6)

	want := []string{
		"/proj/shaders.list(2): Shader ('ShortPS') has too few arguments.",
		"/proj/shaders.list(3): Shader ('NoEqualsPS') has argument ('.file') missing '=' to set value.",
		"/proj/shaders.list(4): Shader ('UnknownPS') has unknown argument ('.flags' = 'O3').",
		"/proj/shaders.list(5): Shader ('Blit') has invalid target suffix.",
		"/proj/shaders.list(6): Shader ('GoodVS') is already declared on line 1.",
		"/proj/shaders.list(7): Shader ('Bad-NameVS') has a name that is not a valid identifier.",
	}

	for i, problem := range problems {
		assert.Equal(t, want[i], problem.Error())

		var lineErr *Error
		require.ErrorAs(t, problem, &lineErr)
		assert.Equal(t, i+2, lineErr.Line)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shaders.list")
	require.NoError(t, os.WriteFile(path, []byte("BasicVS\nMeshPS .file = mesh.hlsl\n"), 0o644))

	units, problems, err := Load(path, "6_0")
	require.NoError(t, err)
	assert.Empty(t, problems)
	require.Len(t, units, 2)
	assert.Equal(t, filepath.Join(dir, "mesh.hlsl"), units[1].SourcePath)
	assert.Equal(t, []string{"ps_6_0"}, units[1].Profiles)
}

func TestLoad_Missing(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "missing.list"), "6_6")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open manifest")
}
