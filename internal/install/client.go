package install

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"mclaunch/internal/crypto"
	"mclaunch/internal/fault"
	"mclaunch/internal/layout"
	"mclaunch/internal/manifest"
	"mclaunch/internal/progress"
	"mclaunch/internal/transfer"
)

// PackageItem plans the client jar of a version.
func (i *Installer) PackageItem(id string, meta *manifest.VersionMetadata) (Item, error) {
	c := meta.Downloads.Client
	if c == nil || c.URL == "" {
		return Item{}, fmt.Errorf("%w: version %s has no client download", fault.ErrMissingArtifact, id)
	}
	return Item{
		Name: id + ".jar",
		Size: c.Size,
		Task: transfer.Task{URL: c.URL, Dest: layout.VersionJar(i.root, id), Category: progress.Package, SHA1: c.SHA1},
	}, nil
}

// FetchPackage downloads the client jar and then writes the metadata
// document next to it. The document is what marks the version as
// installed. Unlike the other categories, any failure here is returned as
// fatal.
func (i *Installer) FetchPackage(ctx context.Context, id string, meta *manifest.VersionMetadata) error {
	it, err := i.PackageItem(id, meta)
	if err != nil {
		return err
	}
	i.progress(fmt.Sprintf("Downloading client %s", id))
	if err := i.download(ctx, it); err != nil {
		return fmt.Errorf("failed to download client jar: %w", err)
	}

	data := meta.Raw
	if len(data) == 0 {
		if data, err = json.MarshalIndent(meta, "", "  "); err != nil {
			return fmt.Errorf("failed to encode version metadata: %w", err)
		}
	}
	if err := manifest.WriteAtomic(layout.VersionJSON(i.root, id), data); err != nil {
		return fmt.Errorf("failed to write version metadata: %w", err)
	}
	slog.Info("Version metadata written", "version", id)
	return nil
}

// WriteReceipt records the package digest and the per-file failures of the
// run that installed id.
func (i *Installer) WriteReceipt(id string, failures []manifest.Failure) error {
	sum, err := crypto.BLAKE3File(layout.VersionJar(i.root, id))
	if err != nil {
		return fmt.Errorf("failed to hash client jar: %w", err)
	}
	r := &manifest.Receipt{
		Version:       id,
		InstalledAt:   time.Now().Unix(),
		PackageBlake3: sum,
		Failures:      failures,
	}
	return manifest.WriteReceipt(layout.ReceiptPath(i.root, id), r)
}

// Installed lists the ids whose metadata document exists and parses.
func Installed(root string) ([]string, error) {
	dirs, err := os.ReadDir(filepath.Join(root, "versions"))
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}

	ids := []string{}
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		meta, err := manifest.ReadVersionMetadata(layout.VersionJSON(root, d.Name()))
		if err != nil || meta.ID == "" {
			continue
		}
		ids = append(ids, d.Name())
	}
	sort.Strings(ids)
	return ids, nil
}

// Verify checks an installed version against its receipt.
func Verify(root, id string) (*manifest.Receipt, error) {
	if _, err := manifest.ReadVersionMetadata(layout.VersionJSON(root, id)); err != nil {
		return nil, fmt.Errorf("%w: metadata of %s: %w", fault.ErrMissingArtifact, id, err)
	}
	r, err := manifest.ReadReceipt(layout.ReceiptPath(root, id))
	if err != nil {
		return nil, fmt.Errorf("failed to read receipt of %s: %w", id, err)
	}
	if err := crypto.VerifyBLAKE3(layout.VersionJar(root, id), r.PackageBlake3); err != nil {
		return r, err
	}
	return r, nil
}
