package install

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"mclaunch/internal/layout"
	"mclaunch/internal/manifest"
	"mclaunch/internal/progress"
	"mclaunch/internal/transfer"
	"mclaunch/internal/workpool"
)

type IndexSource interface {
	FetchAssetIndex(ctx context.Context, ref manifest.AssetIndexRef) (*manifest.AssetIndex, error)
}

// AssetIndex returns the index stored under assets/indexes/<id>.json, or
// fetches and stores it when it is missing or unreadable.
func (i *Installer) AssetIndex(ctx context.Context, src IndexSource, ref manifest.AssetIndexRef) (*manifest.AssetIndex, error) {
	path := layout.AssetIndexPath(i.root, ref.ID)
	if data, err := os.ReadFile(path); err == nil {
		idx, perr := manifest.ParseAssetIndex(data)
		if perr == nil {
			return idx, nil
		}
		slog.Warn("Discarding corrupt asset index", "path", path, "error", perr)
		os.Remove(path)
	}

	idx, err := src.FetchAssetIndex(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch asset index %s: %w", ref.ID, err)
	}
	if err := manifest.WriteAtomic(path, idx.Raw); err != nil {
		return nil, fmt.Errorf("failed to store asset index %s: %w", ref.ID, err)
	}
	return idx, nil
}

// AssetItems plans one download per distinct object hash.
func (i *Installer) AssetItems(idx *manifest.AssetIndex) []Item {
	if idx == nil {
		return nil
	}
	names := make([]string, 0, len(idx.Objects))
	for name := range idx.Objects {
		names = append(names, name)
	}
	sort.Strings(names)

	base := strings.TrimRight(i.resourcesURL, "/")
	seen := make(map[string]bool, len(names))
	items := make([]Item, 0, len(names))
	for _, name := range names {
		obj := idx.Objects[name]
		if !layout.ValidAssetHash(obj.Hash) {
			slog.Warn("Skipping asset with invalid hash", "name", name, "hash", obj.Hash)
			continue
		}
		if seen[obj.Hash] {
			continue
		}
		seen[obj.Hash] = true
		items = append(items, Item{
			Name: name,
			Size: obj.Size,
			Task: transfer.Task{
				URL:      base + "/" + layout.AssetObjectKey(obj.Hash),
				Dest:     layout.AssetObjectPath(i.root, obj.Hash),
				Category: progress.Asset,
				SHA1:     obj.Hash,
			},
		})
	}
	return items
}

// FetchAssets downloads every object of idx into content-addressed storage.
func (i *Installer) FetchAssets(ctx context.Context, idx *manifest.AssetIndex) []error {
	items := i.AssetItems(idx)
	i.progress(fmt.Sprintf("Downloading %d assets", len(items)))
	return workpool.Run(ctx, items, i.assetLimit, i.fetch)
}
