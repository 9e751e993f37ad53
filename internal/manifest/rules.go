package manifest

import (
	"runtime"
	"strings"
)

// Applicable reports whether lib applies to the platform with the given
// rule name (windows, osx, linux).
//
// A library without rules always applies. Otherwise every rule whose os
// constraint matches is evaluated in order and the last one wins. When no
// rule matches, the library applies unless one of its rules is an allow:
// an allow restricted to another OS makes the library exclusive to it.
func Applicable(lib Library, platformName string) bool {
	return evaluate(lib.Rules, platformName, archName(runtime.GOARCH))
}

func evaluate(rules []Rule, platformName, arch string) bool {
	if len(rules) == 0 {
		return true
	}

	matched := false
	allowed := true
	hasAllow := false
	for _, r := range rules {
		if r.Action == "allow" {
			hasAllow = true
		}
		if !r.matches(platformName, arch) {
			continue
		}
		matched = true
		allowed = r.Action == "allow"
	}

	if !matched {
		return !hasAllow
	}
	return allowed
}

func (r Rule) matches(platformName, arch string) bool {
	if r.OS == nil {
		return true
	}
	if r.OS.Name != "" && r.OS.Name != platformName {
		return false
	}
	if r.OS.Arch != "" && r.OS.Arch != arch {
		return false
	}
	return true
}

// NativeClassifier returns the classifier key of lib for the given natives
// key, with the ${arch} placeholder expanded, or "" when lib has no natives
// for that platform.
func NativeClassifier(lib Library, nativeKey string) string {
	key, ok := lib.Natives[nativeKey]
	if !ok || key == "" {
		return ""
	}
	bits := "64"
	if archName(runtime.GOARCH) == "x86" {
		bits = "32"
	}
	return strings.ReplaceAll(key, "${arch}", bits)
}

func archName(goarch string) string {
	switch goarch {
	case "386":
		return "x86"
	case "amd64":
		return "x86_64"
	default:
		return goarch
	}
}
