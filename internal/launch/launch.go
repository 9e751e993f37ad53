// Package launch turns an installed version into the JVM command line that
// starts it.
package launch

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/coreos/go-semver/semver"
	"github.com/google/shlex"

	"mclaunch/internal/fault"
	"mclaunch/internal/identity"
	"mclaunch/internal/install"
	"mclaunch/internal/layout"
	"mclaunch/internal/manifest"
	"mclaunch/internal/platform"
	"mclaunch/internal/transfer"
)

const DefaultMainClass = "net.minecraft.client.main.Main"

type Window struct {
	Width      int
	Height     int
	Fullscreen bool
}

// Profile is everything a launch needs besides the installed files.
// GameDir defaults to Root. JVMArgs is split with shell quoting rules.
type Profile struct {
	Root           string
	VersionID      string
	GameDir        string
	JavaPath       string
	MinMemory      string
	MaxMemory      string
	JVMArgs        string
	MinJavaMajor   int
	Window         *Window
	Identity       identity.Profile
	ExtraLibraries []manifest.Library
	Caps           platform.Capabilities
}

// GameDirectory is where the game runs and keeps its saves.
func (p *Profile) GameDirectory() string {
	if p.GameDir != "" {
		return p.GameDir
	}
	return p.Root
}

// Validator checks the Java executable before anything is spawned.
type Validator func(ctx context.Context, javaPath string, minMajor int) (*semver.Version, error)

// Prepare loads the on-disk metadata of an installed version.
func Prepare(root, versionID string) (*manifest.VersionMetadata, error) {
	path := layout.VersionJSON(root, versionID)
	meta, err := manifest.ReadVersionMetadata(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: version %s is not installed", fault.ErrMissingArtifact, versionID)
		}
		return nil, fmt.Errorf("%w: metadata of %s: %w", fault.ErrMissingArtifact, versionID, err)
	}
	return meta, nil
}

// LibraryPaths returns the local paths of the libraries that apply to the
// platform and are present on disk, in declaration order.
func LibraryPaths(root string, caps platform.Capabilities, libs []manifest.Library) []string {
	var paths []string
	seen := make(map[string]bool)
	for _, lib := range libs {
		if !manifest.Applicable(lib, caps.Name) {
			continue
		}
		rel, err := install.ArtifactPath(lib)
		if err != nil {
			continue
		}
		p, err := layout.LibraryPath(root, rel)
		if err != nil || seen[p] {
			continue
		}
		if !transfer.Exists(p) {
			slog.Warn("Library missing from classpath", "library", lib.Name, "path", p)
			continue
		}
		seen[p] = true
		paths = append(paths, p)
	}
	return paths
}

// BuildArguments assembles the full argv, executable first. The package
// jar must exist.
func BuildArguments(p Profile, meta *manifest.VersionMetadata, libs []string) ([]string, error) {
	jar := layout.VersionJar(p.Root, p.VersionID)
	if !transfer.Exists(jar) {
		return nil, fmt.Errorf("%w: client jar not found: %s", fault.ErrMissingArtifact, jar)
	}
	extra, err := shlex.Split(p.JVMArgs)
	if err != nil {
		return nil, fmt.Errorf("invalid jvm_args: %w", err)
	}

	mainClass := meta.MainClass
	if mainClass == "" {
		mainClass = DefaultMainClass
	}
	classpath := strings.Join(append(append([]string{}, libs...), jar), p.Caps.ClasspathSeparator)

	argv := []string{
		p.JavaPath,
		"-Xmx" + NormalizeMemory(p.MaxMemory, 4096),
		"-Xms" + NormalizeMemory(p.MinMemory, 1024),
	}
	argv = append(argv, extra...)
	argv = append(argv,
		"-Djava.library.path="+layout.NativesDir(p.Root, p.VersionID),
		"-cp", classpath,
		mainClass,
		"--username", p.Identity.Name,
		"--uuid", p.Identity.UUID,
		"--accessToken", p.Identity.AccessToken,
		"--version", p.VersionID,
		"--gameDir", p.GameDirectory(),
		"--assetsDir", layout.AssetsDir(p.Root),
		"--assetIndex", meta.AssetIndexID(),
		"--userType", p.Identity.Type,
	)

	if w := p.Window; w != nil {
		if w.Width > 0 {
			argv = append(argv, "--width", strconv.Itoa(w.Width))
		}
		if w.Height > 0 {
			argv = append(argv, "--height", strconv.Itoa(w.Height))
		}
		if w.Fullscreen {
			argv = append(argv, "--fullscreen")
		}
	}
	return argv, nil
}

// Plan prepares the version, validates the Java executable against the
// version's required major and builds the argv.
func Plan(ctx context.Context, p Profile, validate Validator) ([]string, error) {
	meta, err := Prepare(p.Root, p.VersionID)
	if err != nil {
		return nil, err
	}

	minMajor := p.MinJavaMajor
	if meta.JavaVersion != nil && meta.JavaVersion.MajorVersion > minMajor {
		minMajor = meta.JavaVersion.MajorVersion
	}
	if validate != nil {
		v, err := validate(ctx, p.JavaPath, minMajor)
		if err != nil {
			return nil, err
		}
		slog.Info("Java runtime validated", "path", p.JavaPath, "version", v)
	}

	libs := make([]manifest.Library, 0, len(meta.Libraries)+len(p.ExtraLibraries))
	libs = append(libs, meta.Libraries...)
	libs = append(libs, p.ExtraLibraries...)
	return BuildArguments(p, meta, LibraryPaths(p.Root, p.Caps, libs))
}

// NormalizeMemory turns a memory setting into a whole-gigabyte JVM size.
// Plain numbers are megabytes, a g suffix means gigabytes. Invalid values
// fall back to fallbackMB.
func NormalizeMemory(value string, fallbackMB int) string {
	v := strings.ToLower(strings.TrimSpace(value))
	var mb float64
	var err error
	switch {
	case strings.HasSuffix(v, "g"):
		mb, err = strconv.ParseFloat(strings.TrimSuffix(v, "g"), 64)
		mb *= 1024
	case strings.HasSuffix(v, "m"):
		mb, err = strconv.ParseFloat(strings.TrimSuffix(v, "m"), 64)
	default:
		mb, err = strconv.ParseFloat(v, 64)
	}
	if err != nil || mb <= 0 || math.IsInf(mb, 0) || math.IsNaN(mb) {
		mb = float64(fallbackMB)
	}
	g := math.Max(1, math.Round(mb/1024))
	return fmt.Sprintf("%dG", int(g))
}
