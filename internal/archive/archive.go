// Package archive unpacks the zip and tar.gz archives the launcher
// downloads: runtime bundles and native-library jars.
package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"

	"mclaunch/internal/fault"
	"mclaunch/internal/layout"
)

type Format int

const (
	Unknown Format = iota
	Zip
	TarGz
)

// Detect picks the archive format from the file extension.
func Detect(name string) Format {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".zip"), strings.HasSuffix(lower, ".jar"):
		return Zip
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return TarGz
	default:
		return Unknown
	}
}

// Skip reports whether an entry must not be extracted.
type Skip func(name string) bool

// SkipMetaInf drops signing manifests and other jar metadata.
func SkipMetaInf(name string) bool {
	return strings.Contains(name, "META-INF")
}

// Extract unpacks src into dest according to its extension. Entries whose
// path would escape dest are rejected. Every failure wraps
// fault.ErrExtraction.
func Extract(src, dest string, skip Skip) error {
	var err error
	switch Detect(src) {
	case Zip:
		err = extractZip(src, dest, skip)
	case TarGz:
		err = extractTarGz(src, dest, skip)
	default:
		err = fmt.Errorf("unsupported archive type: %s", filepath.Base(src))
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", fault.ErrExtraction, filepath.Base(src), err)
	}
	return nil
}

func extractZip(src, dest string, skip Skip) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		if skip != nil && skip(f.Name) {
			continue
		}
		target, err := layout.SafeJoin(dest, f.Name)
		if err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("failed to open entry %s: %w", f.Name, err)
		}
		err = writeFile(target, rc, f.Mode().Perm())
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func extractTarGz(src, dest string, skip Skip) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if skip != nil && skip(hdr.Name) {
			continue
		}
		target, err := layout.SafeJoin(dest, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, fs.FileMode(hdr.Mode).Perm()); err != nil {
				return err
			}
		case tar.TypeSymlink:
			link := hdr.Linkname
			if !filepath.IsAbs(link) {
				link = filepath.Join(filepath.Dir(target), link)
			}
			if _, err := layout.SafeJoin(dest, mustRel(dest, link)); err != nil {
				slog.Warn("Skipping symlink escaping archive root", "entry", hdr.Name, "target", hdr.Linkname)
				continue
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			os.Remove(target)
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return err
			}
		default:
			slog.Debug("Skipping unsupported tar entry", "entry", hdr.Name, "type", hdr.Typeflag)
		}
	}
}

func mustRel(base, target string) string {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return ".."
	}
	return rel
}

func writeFile(target string, r io.Reader, perm fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	if perm == 0 {
		perm = 0o644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm|0o200)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	return out.Close()
}

// RuntimeWrapper matches the single top-level folder runtime archives are
// commonly wrapped in, e.g. "jdk-21.0.2+13" or "zulu21.30.15".
var RuntimeWrapper = regexp.MustCompile(`^(jdk|jre|java|openjdk|zulu|temurin)[-_]?[0-9]`)

// Flatten hoists the contents of a wrapper directory matching pattern into
// dir and removes the emptied wrapper. It reports whether a wrapper was
// found. Nothing is moved when more than one directory matches.
func Flatten(dir string, pattern *regexp.Regexp) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, err
	}

	var wrapper string
	for _, e := range entries {
		if e.IsDir() && pattern.MatchString(e.Name()) {
			if wrapper != "" {
				return false, nil
			}
			wrapper = e.Name()
		}
	}
	if wrapper == "" {
		return false, nil
	}

	src := filepath.Join(dir, wrapper)
	children, err := os.ReadDir(src)
	if err != nil {
		return false, err
	}
	for _, c := range children {
		to := filepath.Join(dir, c.Name())
		if _, err := os.Lstat(to); err == nil {
			return false, fmt.Errorf("cannot flatten %s: %s already exists", src, to)
		}
		if err := os.Rename(filepath.Join(src, c.Name()), to); err != nil {
			return false, fmt.Errorf("failed to hoist %s: %w", c.Name(), err)
		}
	}
	if err := os.Remove(src); err != nil {
		return false, fmt.Errorf("failed to remove wrapper %s: %w", src, err)
	}
	slog.Debug("Flattened runtime wrapper", "dir", dir, "wrapper", wrapper)
	return true, nil
}
