// Package jvm provisions the bundled Java runtime and validates the runtime
// a launch is going to use.
package jvm

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/coreos/go-semver/semver"

	"mclaunch/internal/archive"
	"mclaunch/internal/fault"
	"mclaunch/internal/layout"
	"mclaunch/internal/platform"
	"mclaunch/internal/progress"
	"mclaunch/internal/transfer"
)

const DefaultRuntimeName = "java24"

type Fetcher interface {
	Fetch(ctx context.Context, task transfer.Task) (string, error)
}

// Provisioner installs one runtime archive under <root>/runtime/<name>.
type Provisioner struct {
	root    string
	name    string
	url     string
	caps    platform.Capabilities
	fetcher Fetcher
}

func NewProvisioner(root, name, archiveURL string, caps platform.Capabilities, fetcher Fetcher) *Provisioner {
	if name == "" {
		name = DefaultRuntimeName
	}
	return &Provisioner{root: root, name: name, url: archiveURL, caps: caps, fetcher: fetcher}
}

// Dir is the runtime installation directory.
func (p *Provisioner) Dir() string {
	return layout.RuntimeDir(p.root, p.name)
}

// Executable returns the runtime binary inside dir, accepting both the
// plain layout and the macOS bundle layout.
func Executable(dir string, caps platform.Capabilities) string {
	plain := filepath.Join(dir, "bin", caps.JavaExecutable)
	if transfer.Exists(plain) {
		return plain
	}
	bundle := filepath.Join(dir, "Contents", "Home", "bin", caps.JavaExecutable)
	if transfer.Exists(bundle) {
		return bundle
	}
	return plain
}

// Ensure makes sure the runtime binary exists. It reports true when it was
// already present, in which case nothing is downloaded. The archive is
// extracted into a staging directory that is renamed into place only after
// the binary was found, so an interrupted install is never mistaken for a
// complete one.
func (p *Provisioner) Ensure(ctx context.Context) (bool, error) {
	dir := p.Dir()
	if transfer.Exists(Executable(dir, p.caps)) {
		slog.Debug("Runtime already present", "dir", dir)
		return true, nil
	}
	if p.url == "" {
		return false, fmt.Errorf("%w: no runtime download configured for %s", fault.ErrJavaInvalid, p.caps.Name)
	}

	name, err := archiveName(p.url)
	if err != nil {
		return false, err
	}
	archivePath := filepath.Join(filepath.Dir(dir), name)

	if !transfer.Exists(archivePath) {
		slog.Info("Downloading runtime", "url", p.url)
		if _, err := p.fetcher.Fetch(ctx, transfer.Task{URL: p.url, Dest: archivePath, Category: progress.Runtime}); err != nil {
			return false, fmt.Errorf("failed to download runtime: %w", err)
		}
	}

	staging := dir + ".extract"
	if err := os.RemoveAll(staging); err != nil {
		return false, fmt.Errorf("failed to clear staging directory: %w", err)
	}
	if err := archive.Extract(archivePath, staging, nil); err != nil {
		os.RemoveAll(staging)
		os.Remove(archivePath)
		return false, err
	}
	if _, err := archive.Flatten(staging, archive.RuntimeWrapper); err != nil {
		os.RemoveAll(staging)
		return false, fmt.Errorf("%w: %w", fault.ErrExtraction, err)
	}
	if !transfer.Exists(Executable(staging, p.caps)) {
		os.RemoveAll(staging)
		os.Remove(archivePath)
		return false, fmt.Errorf("%w: runtime archive %s has no bin/%s", fault.ErrExtraction, name, p.caps.JavaExecutable)
	}

	if err := os.RemoveAll(dir); err != nil {
		return false, fmt.Errorf("failed to replace %s: %w", dir, err)
	}
	if err := os.Rename(staging, dir); err != nil {
		return false, fmt.Errorf("failed to install runtime: %w", err)
	}
	if err := os.Remove(archivePath); err != nil {
		slog.Warn("Failed to remove runtime archive", "path", archivePath, "error", err)
	}

	slog.Info("Runtime installed", "dir", dir)
	return false, nil
}

func archiveName(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid runtime url %q: %w", raw, err)
	}
	name := path.Base(u.Path)
	if archive.Detect(name) == archive.Unknown {
		return "", fmt.Errorf("%w: unsupported runtime archive %q", fault.ErrExtraction, name)
	}
	return name, nil
}

// ExecutablePath picks the java binary used to launch: the configured path
// (a binary, or a directory holding one) or the bundled runtime.
func ExecutablePath(root, configured, runtimeName string, caps platform.Capabilities) string {
	if configured != "" {
		info, err := os.Stat(configured)
		if err == nil && info.IsDir() {
			return Executable(configured, caps)
		}
		return configured
	}
	if runtimeName == "" {
		runtimeName = DefaultRuntimeName
	}
	return Executable(layout.RuntimeDir(root, runtimeName), caps)
}

var quoted = regexp.MustCompile(`version "([^"]+)"`)

// ParseVersion extracts the version from `java -version` output. Legacy
// "1.x" strings map to major x.
func ParseVersion(output string) (*semver.Version, error) {
	m := quoted.FindStringSubmatch(output)
	if m == nil {
		return nil, fmt.Errorf("no version string in %q", firstLine(output))
	}
	v, err := semver.NewVersion(normalize(m[1]))
	if err != nil {
		return nil, fmt.Errorf("unparseable java version %q: %w", m[1], err)
	}
	if v.Major == 1 {
		v.Major, v.Minor = v.Minor, 0
	}
	return v, nil
}

// normalize reduces a java version string to MAJOR.MINOR.PATCH.
func normalize(raw string) string {
	core := raw
	if i := strings.IndexAny(core, "_+-"); i >= 0 {
		core = core[:i]
	}
	parts := strings.Split(core, ".")
	for len(parts) < 3 {
		parts = append(parts, "0")
	}
	return strings.Join(parts[:3], ".")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// Validate runs `java -version` and checks the major version. A missing
// binary, unparseable output or a major below minMajor fails with
// fault.ErrJavaInvalid.
func Validate(ctx context.Context, javaPath string, minMajor int) (*semver.Version, error) {
	if _, err := exec.LookPath(javaPath); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", fault.ErrJavaInvalid, javaPath, err)
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, javaPath, "-version").CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("%w: %s -version: %w", fault.ErrJavaInvalid, javaPath, err)
	}

	v, err := ParseVersion(string(out))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", fault.ErrJavaInvalid, err)
	}
	if minMajor > 0 && v.Major < int64(minMajor) {
		return nil, fmt.Errorf("%w: java %s is older than required major %d", fault.ErrJavaInvalid, v, minMajor)
	}
	slog.Debug("Java runtime validated", "path", javaPath, "version", v.String())
	return v, nil
}
