package codes

// Process exit codes
const (
	Success     = 0
	BuildFailed = 1
	ConfigError = 2
)

// ExitCodes maps shaderbuild exit codes to their descriptions
var ExitCodes = map[int]string{
	Success:     "Success",
	BuildFailed: "A manifest line or shader failed",
	ConfigError: "Invalid configuration or usage",
}

// IsSuccess returns true if the exit code indicates a successful build
func IsSuccess(code int) bool {
	return code == Success
}

// GetErrorMessage returns the description for a given exit code, or a generic message if unknown
func GetErrorMessage(code int) string {
	if msg, ok := ExitCodes[code]; ok {
		return msg
	}

	return "Unknown error"
}
