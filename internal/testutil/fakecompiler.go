// Package testutil holds helpers shared by package tests.
package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// FakeBinary is what the fake compiler writes for every successful compile
var FakeBinary = []byte("DXIL\x00\x01\xff\"\\")

// fakeCompilerScript mimics the dxc command line:
//   - a source path containing "broken" fails with a diagnostic on stderr
//   - a source path containing "hang" sleeps
//   - -M prints "<name>.dxil: <source> <includes...>" where includes are
//     read from "<source>.deps" if present
//   - otherwise the fixed binary is written to the -Fo path
//
// Every invocation appends its arguments to "$FAKE_COMPILER_LOG" when set.
const fakeCompilerScript = `#!/bin/sh
if [ -n "$FAKE_COMPILER_LOG" ]; then
	echo "$*" >> "$FAKE_COMPILER_LOG"
fi
src="$1"
shift
out=""
deps=0
while [ $# -gt 0 ]; do
	case "$1" in
		-Fo) out="$2"; shift ;;
		-M) deps=1 ;;
	esac
	shift
done
case "$src" in
	*broken*) echo "$src:3:1: error: expected ';'" >&2; exit 3 ;;
	*hang*) exec sleep 5 ;;
esac
if [ $deps -eq 1 ]; then
	extra=""
	if [ -f "$src.deps" ]; then
		extra=$(cat "$src.deps")
	fi
	printf '%s\n' "out.dxil: $src \\ $extra"
	exit 0
fi
printf 'DXIL\000\001\377"\\' > "$out"
`

// FakeCompiler writes the fake compiler into a temp dir and returns its path.
// Tests are skipped where no POSIX shell is available.
func FakeCompiler(t *testing.T) string {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("fake compiler needs a POSIX shell")
	}

	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("fake compiler needs /bin/sh")
	}

	path := filepath.Join(t.TempDir(), "fakedxc")
	if err := os.WriteFile(path, []byte(fakeCompilerScript), 0o755); err != nil {
		t.Fatalf("failed to write fake compiler: %v", err)
	}

	return path
}
