// Package emit writes the generated C++ sources: one file per compiled unit that
// embeds its binaries, and the registry listing every unit's accessor.
package emit

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Norgate-AV/shaderbuild/internal/compiler"
	"github.com/Norgate-AV/shaderbuild/internal/manifest"
)

// Default generated-code settings
const (
	DefaultDefinitionHeader = "shader_def.hpp"
	DefaultRegistryHeader   = "shader_list.hpp"
	DefaultNamespace        = "we::graphics"
)

const hexDigits = "0123456789abcdef"

// Writer emits generated sources
type Writer struct {
	// OutputDir receives one "<name>.cpp" per unit
	OutputDir string

	// RegistryPath is the aggregate registry source
	RegistryPath string

	// DefinitionHeader is included by unit sources
	DefinitionHeader string

	// RegistryHeader is included by the registry source
	RegistryHeader string

	// Namespace encloses generated code; unit accessors live in "<Namespace>::shaders"
	Namespace string
}

// NewWriter creates a writer with the default header names and namespace
func NewWriter(outputDir, registryPath string) *Writer {
	return &Writer{
		OutputDir:        outputDir,
		RegistryPath:     registryPath,
		DefinitionHeader: DefaultDefinitionHeader,
		RegistryHeader:   DefaultRegistryHeader,
		Namespace:        DefaultNamespace,
	}
}

// ArtifactPath returns the generated source path for a unit
func (w *Writer) ArtifactPath(name string) string {
	return filepath.Join(w.OutputDir, name+".cpp")
}

// Artifact writes the source embedding a unit's binaries, one per profile
func (w *Writer) Artifact(unit manifest.Unit, artifacts []compiler.Artifact) error {
	var buf bytes.Buffer
	RenderArtifact(&buf, w.DefinitionHeader, w.Namespace, unit, artifacts)

	if err := os.WriteFile(w.ArtifactPath(unit.Name), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", unit.Name, err)
	}

	return nil
}

// Registry writes the registry source, units in manifest order
func (w *Writer) Registry(units []manifest.Unit) error {
	var buf bytes.Buffer
	RenderRegistry(&buf, w.RegistryHeader, w.Namespace, units)

	if err := os.MkdirAll(filepath.Dir(w.RegistryPath), 0o755); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}

	if err := os.WriteFile(w.RegistryPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write registry: %w", err)
	}

	return nil
}

// bytesSymbol names the array holding the i-th profile binary of a unit
func bytesSymbol(name string, i int) string {
	return fmt.Sprintf("%s_dxil_bytes_%d", name, i)
}

// RenderArtifact renders a unit source.
//
// Each array is declared one byte larger than the binary to hold the literal's
// terminator, so the payload length is sizeof(array) - 1.
func RenderArtifact(buf *bytes.Buffer, header, namespace string, unit manifest.Unit, artifacts []compiler.Artifact) {
	fmt.Fprintf(buf, "#include \"%s\"\n", header)
	buf.WriteString("\n")
	fmt.Fprintf(buf, "namespace %s::shaders {\n", namespace)
	buf.WriteString("\n")

	for i, artifact := range artifacts {
		fmt.Fprintf(buf, "extern const char %s[%d];\n", bytesSymbol(unit.Name, i), len(artifact.Binary)+1)
	}

	buf.WriteString("\n")
	fmt.Fprintf(buf, "auto %s() noexcept -> shader_def\n{\n", unit.Name)
	buf.WriteString("   return {\n")
	fmt.Fprintf(buf, "      .name = %s,\n", quote(unit.Name))
	fmt.Fprintf(buf, "      .entrypoint = L%s,\n", quote(unit.EntryPoint))
	fmt.Fprintf(buf, "      .file = L%s,\n", quote(unit.File))
	buf.WriteString("      .variants = {\n")

	for i, artifact := range artifacts {
		symbol := bytesSymbol(unit.Name, i)

		fmt.Fprintf(buf, "         {.target = L%s,\n", quote(artifact.Profile))
		fmt.Fprintf(buf, "          .dxil = {reinterpret_cast<const std::byte*>(%s),\n", symbol)
		fmt.Fprintf(buf, "                   sizeof(%s) - 1}},\n", symbol)
	}

	buf.WriteString("      },\n")
	buf.WriteString("   };\n}\n")

	for i, artifact := range artifacts {
		buf.WriteString("\n")
		fmt.Fprintf(buf, "const char %s[%d] = \"", bytesSymbol(unit.Name, i), len(artifact.Binary)+1)
		writeEscaped(buf, artifact.Binary)
		buf.WriteString("\";\n")
	}

	buf.WriteString("\n}\n")
}

// RenderRegistry renders the registry source
func RenderRegistry(buf *bytes.Buffer, header, namespace string, units []manifest.Unit) {
	fmt.Fprintf(buf, "#include \"%s\"\n", header)
	buf.WriteString("\n")
	fmt.Fprintf(buf, "namespace %s {\n", namespace)
	buf.WriteString("\n")
	buf.WriteString("namespace shaders {\n")
	buf.WriteString("\n")

	for _, unit := range units {
		fmt.Fprintf(buf, "auto %s() noexcept -> shader_def;\n", unit.Name)
	}

	buf.WriteString("\n")
	buf.WriteString("}\n")
	buf.WriteString("\n")
	buf.WriteString("std::initializer_list<shader_def> shader_list = {\n")

	for _, unit := range units {
		fmt.Fprintf(buf, "shaders::%s(),\n", unit.Name)
	}

	buf.WriteString("};\n")
	buf.WriteString("\n")
	buf.WriteString("}\n")
}

// writeEscaped renders every byte as a fixed two-digit \x escape
func writeEscaped(buf *bytes.Buffer, data []byte) {
	buf.Grow(len(data) * 4)

	for _, b := range data {
		buf.WriteByte('\\')
		buf.WriteByte('x')
		buf.WriteByte(hexDigits[b>>4])
		buf.WriteByte(hexDigits[b&0x0f])
	}
}

// quote renders s as a C++ string literal body with quotes
func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}
