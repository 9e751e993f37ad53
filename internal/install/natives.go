package install

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"mclaunch/internal/archive"
	"mclaunch/internal/event"
	"mclaunch/internal/layout"
	"mclaunch/internal/manifest"
	"mclaunch/internal/progress"
	"mclaunch/internal/transfer"
	"mclaunch/internal/workpool"
)

// NativeItems plans the platform classifier archive of every applicable
// library that declares natives for this platform.
func (i *Installer) NativeItems(libs []manifest.Library) []Item {
	var items []Item
	for _, lib := range libs {
		if lib.Natives == nil || lib.Downloads == nil || lib.Downloads.Classifiers == nil {
			continue
		}
		if !manifest.Applicable(lib, i.caps.Name) {
			continue
		}
		key := manifest.NativeClassifier(lib, i.caps.NativeKey)
		if key == "" {
			continue
		}
		a, ok := lib.Downloads.Classifiers[key]
		if !ok || a.URL == "" || a.Path == "" {
			continue
		}
		dest, err := layout.LibraryPath(i.root, a.Path)
		if err != nil {
			slog.Warn("Skipping native", "library", lib.Name, "error", err)
			continue
		}
		items = append(items, Item{
			Name: lib.Name,
			Size: a.Size,
			Task: transfer.Task{URL: a.URL, Dest: dest, Category: progress.Native, SHA1: a.SHA1},
		})
	}
	return items
}

// FetchNatives downloads each native archive and extracts it into the
// version's natives directory, skipping jar metadata. Within one library
// the extraction always follows its own download. A failed download or
// extraction is reported for that library only.
func (i *Installer) FetchNatives(ctx context.Context, libs []manifest.Library, versionID string) []error {
	items := i.NativeItems(libs)
	dir := layout.NativesDir(i.root, versionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return []error{fmt.Errorf("failed to create natives directory: %w", err)}
	}
	i.progress(fmt.Sprintf("Downloading %d native archives", len(items)))

	return workpool.Run(ctx, items, workpool.NativeLimit, func(ctx context.Context, it Item) error {
		if err := i.fetch(ctx, it); err != nil {
			return err
		}
		if err := archive.Extract(it.Task.Dest, dir, archive.SkipMetaInf); err != nil {
			slog.Error("Failed to extract natives", "library", it.Name, "error", err)
			fe := &FileError{Item: it, Err: err}
			i.sink.Emit(event.Event{Kind: event.Error, Category: string(progress.Native), Message: fe.Error()})
			return fe
		}
		slog.Debug("Natives extracted", "library", it.Name, "dir", dir)
		return nil
	})
}
