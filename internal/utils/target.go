package utils

import (
	"strings"
)

// stageSuffixes maps unit name suffixes to profile stage prefixes
var stageSuffixes = []struct {
	suffix string
	stage  string
}{
	{"VS", "vs"},
	{"HS", "hs"},
	{"DS", "ds"},
	{"GS", "gs"},
	{"PS", "ps"},
	{"CS", "cs"},
	{"LIB", "lib"},
}

// ParseTarget derives the target profile from a unit name suffix, e.g. "SkyVS" with
// shader model "6_6" is "vs_6_6". Returns "" when the suffix is not recognized.
func ParseTarget(name, shaderModel string) string {
	for _, s := range stageSuffixes {
		if strings.HasSuffix(name, s.suffix) {
			return s.stage + "_" + shaderModel
		}
	}

	return ""
}

// IsValidShaderModel reports whether a shader model looks like "<major>_<minor>"
func IsValidShaderModel(model string) bool {
	major, minor, ok := strings.Cut(model, "_")
	return ok && isDigits(major) && isDigits(minor)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}

	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}

	return true
}
