// Package platform centralizes every OS-dependent decision of the launcher
// in a single capability table.
package platform

import (
	"fmt"
	"runtime"
)

// Capabilities describes how the launcher behaves on one platform family.
type Capabilities struct {
	// Name is the manifest rule name: windows, osx or linux.
	Name string
	// NativeKey selects the entry in a library's natives map.
	NativeKey string
	// JavaExecutable is the runtime binary launched for the game.
	JavaExecutable string
	// ClasspathSeparator joins classpath entries.
	ClasspathSeparator string
}

var table = map[string]Capabilities{
	"windows": {Name: "windows", NativeKey: "windows", JavaExecutable: "javaw.exe", ClasspathSeparator: ";"},
	"darwin":  {Name: "osx", NativeKey: "osx", JavaExecutable: "java", ClasspathSeparator: ":"},
	"linux":   {Name: "linux", NativeKey: "linux", JavaExecutable: "java", ClasspathSeparator: ":"},
}

// Lookup returns the capabilities for a GOOS value.
func Lookup(goos string) (Capabilities, error) {
	c, ok := table[goos]
	if !ok {
		return Capabilities{}, fmt.Errorf("unsupported platform: %s", goos)
	}
	return c, nil
}

// Current returns the capabilities of the running platform. Unknown GOOS
// values fall back to linux conventions with an "unknown" rule name so that
// OS-restricted libraries are never selected.
func Current() Capabilities {
	c, err := Lookup(runtime.GOOS)
	if err != nil {
		c = table["linux"]
		c.Name = "unknown"
		c.NativeKey = "unknown"
	}
	return c
}

// ByName returns the capabilities for a manifest rule name (windows, osx,
// linux).
func ByName(name string) (Capabilities, error) {
	for _, c := range table {
		if c.Name == name {
			return c, nil
		}
	}
	return Capabilities{}, fmt.Errorf("unsupported platform: %s", name)
}
