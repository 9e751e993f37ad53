// Package resolve turns a requested version, or the lack of one, into a
// concrete version id.
package resolve

import (
	"context"
	"fmt"

	"mclaunch/internal/fault"
	"mclaunch/internal/manifest"
)

const (
	Release  = "release"
	Snapshot = "snapshot"
)

type ManifestSource interface {
	FetchManifest(ctx context.Context) (*manifest.VersionManifest, error)
}

type Resolver struct {
	source  ManifestSource
	channel string
}

func New(source ManifestSource, channel string) *Resolver {
	if channel == "" {
		channel = Release
	}
	return &Resolver{source: source, channel: channel}
}

// Resolve returns requested unchanged when set; its existence is checked
// later when its metadata is fetched. Otherwise the latest id of the
// configured channel is returned.
func (r *Resolver) Resolve(ctx context.Context, requested string) (string, error) {
	if requested != "" {
		return requested, nil
	}
	if err := ValidateChannel(r.channel); err != nil {
		return "", err
	}

	m, err := r.source.FetchManifest(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to fetch version manifest: %w", err)
	}

	id, err := Latest(m, r.channel)
	if err != nil {
		return "", err
	}
	if _, ok := m.Find(id); !ok {
		return "", fmt.Errorf("%w: latest %s %s is not listed", fault.ErrNotFound, r.channel, id)
	}
	return id, nil
}

// Latest returns the manifest's latest id for channel.
func Latest(m *manifest.VersionManifest, channel string) (string, error) {
	var id string
	switch channel {
	case Release:
		id = m.Latest.Release
	case Snapshot:
		id = m.Latest.Snapshot
	default:
		return "", ValidateChannel(channel)
	}
	if id == "" {
		return "", fmt.Errorf("%w: manifest has no latest %s", fault.ErrNotFound, channel)
	}
	return id, nil
}

func ValidateChannel(channel string) error {
	if channel != Release && channel != Snapshot {
		return fmt.Errorf("invalid channel: %q (use %q or %q)", channel, Release, Snapshot)
	}
	return nil
}
