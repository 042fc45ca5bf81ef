package version

// Set at build time via -ldflags "-X github.com/Norgate-AV/shaderbuild/internal/version.Version=..."
var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

// String returns the version line shown by --version
func String() string {
	return Version + " (" + Commit + ") " + BuildTime
}
