package install

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"mclaunch/internal/layout"
	"mclaunch/internal/manifest"
	"mclaunch/internal/progress"
	"mclaunch/internal/transfer"
	"mclaunch/internal/workpool"
)

// ArtifactPath returns the repository-relative path of a library: the
// manifest's explicit path, or the Maven path derived from its name.
func ArtifactPath(lib manifest.Library) (string, error) {
	if lib.Downloads != nil && lib.Downloads.Artifact != nil && lib.Downloads.Artifact.Path != "" {
		return lib.Downloads.Artifact.Path, nil
	}
	return layout.MavenPath(lib.Name)
}

// ExtraLibraries turns configured URLs into libraries whose artifact path
// is the URL path.
func ExtraLibraries(urls []string) ([]manifest.Library, error) {
	libs := make([]manifest.Library, 0, len(urls))
	for _, raw := range urls {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid extra library url: %q", raw)
		}
		rel := strings.TrimLeft(u.Path, "/")
		if rel == "" {
			return nil, fmt.Errorf("extra library url has no path: %q", raw)
		}
		libs = append(libs, manifest.Library{
			Name:      path.Base(rel),
			Downloads: &manifest.LibraryDownloads{Artifact: &manifest.Artifact{URL: raw, Path: rel}},
		})
	}
	return libs, nil
}

// LibraryItems plans the libraries that apply to this platform and carry a
// direct artifact download.
func (i *Installer) LibraryItems(libs []manifest.Library) []Item {
	var items []Item
	seen := make(map[string]bool)
	for _, lib := range libs {
		if !manifest.Applicable(lib, i.caps.Name) {
			continue
		}
		if lib.Downloads == nil || lib.Downloads.Artifact == nil || lib.Downloads.Artifact.URL == "" {
			continue
		}
		rel, err := ArtifactPath(lib)
		if err != nil {
			slog.Warn("Skipping library without usable path", "library", lib.Name, "error", err)
			continue
		}
		dest, err := layout.LibraryPath(i.root, rel)
		if err != nil {
			slog.Warn("Skipping library", "library", lib.Name, "error", err)
			continue
		}
		if seen[dest] {
			continue
		}
		seen[dest] = true

		a := lib.Downloads.Artifact
		items = append(items, Item{
			Name: lib.Name,
			Size: a.Size,
			Task: transfer.Task{URL: a.URL, Dest: dest, Category: progress.Library, SHA1: a.SHA1},
		})
	}
	return items
}

// FetchLibraries downloads every planned library that is not present yet.
// Failures are returned per file and never stop the other downloads.
func (i *Installer) FetchLibraries(ctx context.Context, libs []manifest.Library) []error {
	items := i.LibraryItems(libs)
	i.progress(fmt.Sprintf("Downloading %d libraries", len(items)))
	return workpool.Run(ctx, items, i.libraryLimit, i.fetch)
}
