package list

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/dustin/go-humanize"

	"mclaunch/internal/install"
	"mclaunch/internal/layout"
	"mclaunch/internal/manifest"
)

type Info struct {
	ID          string `json:"id"`
	Type        string `json:"type,omitempty"`
	Installed   bool   `json:"installed"`
	ReleaseTime int64  `json:"release_time,omitempty"`
	ReleasedAgo string `json:"released_ago,omitempty"`
	PackageSize string `json:"package_size,omitempty"`
	Failures    int    `json:"failures"`
}

type Output struct {
	Source   string `json:"source"`
	Channel  string `json:"channel,omitempty"`
	Latest   string `json:"latest,omitempty"`
	Versions []Info `json:"versions"`
	Summary  struct {
		Total     int `json:"total"`
		Installed int `json:"installed"`
	} `json:"summary"`
}

type ManifestSource interface {
	FetchManifest(ctx context.Context) (*manifest.VersionManifest, error)
}

func encode(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

func installedInfo(root, id string) Info {
	info := Info{ID: id, Installed: true}
	if meta, err := manifest.ReadVersionMetadata(layout.VersionJSON(root, id)); err == nil {
		info.Type = meta.Type
	}
	if st, err := os.Stat(layout.VersionJar(root, id)); err == nil {
		info.PackageSize = humanize.IBytes(uint64(st.Size()))
	}
	if r, err := manifest.ReadReceipt(layout.ReceiptPath(root, id)); err == nil {
		info.Failures = len(r.Failures)
	}
	return info
}

// Installed writes the versions installed under root.
func Installed(root string, w io.Writer) error {
	ids, err := install.Installed(root)
	if err != nil {
		return fmt.Errorf("failed to list installed versions: %w", err)
	}

	output := Output{Source: "local", Versions: []Info{}}
	for _, id := range ids {
		output.Versions = append(output.Versions, installedInfo(root, id))
	}
	output.Summary.Total = len(output.Versions)
	output.Summary.Installed = len(output.Versions)
	return encode(w, output)
}

// Remote writes the versions of the manifest, optionally restricted to one
// release type, marking the ones installed under root.
func Remote(ctx context.Context, src ManifestSource, root, channel string, w io.Writer) error {
	m, err := src.FetchManifest(ctx)
	if err != nil {
		return err
	}
	ids, err := install.Installed(root)
	if err != nil {
		return fmt.Errorf("failed to list installed versions: %w", err)
	}

	output := Output{Source: "remote", Channel: channel, Versions: []Info{}}
	switch channel {
	case "release":
		output.Latest = m.Latest.Release
	case "snapshot":
		output.Latest = m.Latest.Snapshot
	}

	for _, v := range m.Versions {
		if channel != "" && v.Type != channel {
			continue
		}
		info := Info{ID: v.ID, Type: v.Type}
		if slices.Contains(ids, v.ID) {
			info = installedInfo(root, v.ID)
			info.Type = v.Type
			output.Summary.Installed++
		}
		if !v.ReleaseTime.IsZero() {
			info.ReleaseTime = v.ReleaseTime.Unix()
			info.ReleasedAgo = humanize.Time(v.ReleaseTime)
		}
		output.Versions = append(output.Versions, info)
	}
	output.Summary.Total = len(output.Versions)
	return encode(w, output)
}

type FailureOutput struct {
	Version    string             `json:"version"`
	State      string             `json:"state"`
	Error      string             `json:"error,omitempty"`
	FinishedAt string             `json:"finished_at"`
	Failures   []manifest.Failure `json:"failures"`
}

// Failures writes the per-file failures of the last download run.
func Failures(root string, w io.Writer) error {
	r, err := manifest.ReadRunReport(layout.RunReportPath(root))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no download run recorded under %s", root)
		}
		return fmt.Errorf("failed to read run report: %w", err)
	}
	output := FailureOutput{
		Version:    r.Version,
		State:      r.State,
		Error:      r.Error,
		FinishedAt: time.Unix(r.FinishedAt, 0).Format("2006-01-02 15:04:05"),
		Failures:   r.Failures,
	}
	if output.Failures == nil {
		output.Failures = []manifest.Failure{}
	}
	return encode(w, output)
}
