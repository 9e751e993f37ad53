package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"mclaunch/internal/fault"
	"mclaunch/internal/layout"
)

const (
	DefaultManifestURL = "https://piston-meta.mojang.com/mc/game/version_manifest_v2.json"
	fetchTimeout       = 10 * time.Second
)

// Client fetches the version manifest and per-version documents, keeping
// copies under <root>/cache/json.
type Client struct {
	http        *http.Client
	root        string
	manifestURL string
}

func NewClient(root, manifestURL string, httpClient *http.Client) *Client {
	if manifestURL == "" {
		manifestURL = DefaultManifestURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{http: httpClient, root: root, manifestURL: manifestURL}
}

func (c *Client) ManifestURL() string {
	return c.manifestURL
}

// Probe checks that the manifest endpoint answers with 200.
func (c *Client) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.manifestURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", fault.ErrConnectivity, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", fault.ErrConnectivity, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: manifest endpoint returned %d", fault.ErrConnectivity, resp.StatusCode)
	}
	return nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", fault.ErrNetwork, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %w", fault.ErrNetwork, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: GET %s returned %d", fault.ErrNetwork, url, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %w", fault.ErrNetwork, url, err)
	}
	return data, nil
}

// FetchManifest downloads the version manifest.
func (c *Client) FetchManifest(ctx context.Context) (*VersionManifest, error) {
	data, err := c.get(ctx, c.manifestURL)
	if err != nil {
		return nil, err
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, err
	}
	if err := WriteAtomic(layout.ManifestCachePath(c.root), data); err != nil {
		slog.Warn("Failed to cache version manifest", "error", err)
	}
	return m, nil
}

// CachedManifest returns the cached version manifest, downloading it when
// the cache is absent or unreadable.
func (c *Client) CachedManifest(ctx context.Context) (*VersionManifest, error) {
	path := layout.ManifestCachePath(c.root)
	if data, err := os.ReadFile(path); err == nil {
		m, perr := ParseManifest(data)
		if perr == nil {
			return m, nil
		}
		slog.Warn("Discarding corrupt manifest cache", "path", path, "error", perr)
		os.Remove(path)
	}
	return c.FetchManifest(ctx)
}

// FetchVersionMetadata returns the metadata of id from the cache when it
// exists and parses. A cache that fails to parse is deleted. On a miss the
// source URL is resolved from a freshly fetched manifest.
func (c *Client) FetchVersionMetadata(ctx context.Context, id string) (*VersionMetadata, error) {
	path := layout.VersionCachePath(c.root, id)
	if data, err := os.ReadFile(path); err == nil {
		meta, perr := ParseVersionMetadata(data)
		if perr == nil {
			slog.Debug("Version metadata loaded from cache", "version", id)
			return meta, nil
		}
		slog.Warn("Discarding corrupt version cache", "path", path, "error", perr)
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("failed to remove corrupt cache %s: %w", path, err)
		}
	}

	m, err := c.FetchManifest(ctx)
	if err != nil {
		return nil, err
	}
	ref, ok := m.Find(id)
	if !ok {
		return nil, fmt.Errorf("%w: version %s", fault.ErrNotFound, id)
	}

	data, err := c.get(ctx, ref.URL)
	if err != nil {
		return nil, err
	}
	meta, err := ParseVersionMetadata(data)
	if err != nil {
		return nil, err
	}
	if meta.ID == "" {
		meta.ID = id
	}
	if err := WriteAtomic(path, data); err != nil {
		return nil, fmt.Errorf("failed to cache version metadata: %w", err)
	}
	slog.Info("Version metadata downloaded", "version", id)
	return meta, nil
}

// FetchAssetIndex downloads the asset index referenced by ref.
func (c *Client) FetchAssetIndex(ctx context.Context, ref AssetIndexRef) (*AssetIndex, error) {
	data, err := c.get(ctx, ref.URL)
	if err != nil {
		return nil, err
	}
	return ParseAssetIndex(data)
}

func ParseManifest(data []byte) (*VersionManifest, error) {
	var m VersionManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: version manifest: %w", fault.ErrParse, err)
	}
	return &m, nil
}

func ParseVersionMetadata(data []byte) (*VersionMetadata, error) {
	var meta VersionMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("%w: version metadata: %w", fault.ErrParse, err)
	}
	meta.Raw = data
	return &meta, nil
}

func ParseAssetIndex(data []byte) (*AssetIndex, error) {
	var idx AssetIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("%w: asset index: %w", fault.ErrParse, err)
	}
	idx.Raw = data
	return &idx, nil
}

// ReadVersionMetadata parses an on-disk metadata document.
func ReadVersionMetadata(filename string) (*VersionMetadata, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return ParseVersionMetadata(data)
}

// WriteAtomic writes data to a sibling temporary file and renames it over
// filename.
func WriteAtomic(filename string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}
	tmp := filename + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, filename)
}

func writeYAML(filename string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	return WriteAtomic(filename, data)
}

func readYAML(filename string, v any) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, v)
}

func WriteRunReport(filename string, r *RunReport) error {
	return writeYAML(filename, r)
}

func ReadRunReport(filename string) (*RunReport, error) {
	var r RunReport
	if err := readYAML(filename, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func WriteReceipt(filename string, r *Receipt) error {
	return writeYAML(filename, r)
}

func ReadReceipt(filename string) (*Receipt, error) {
	var r Receipt
	if err := readYAML(filename, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
