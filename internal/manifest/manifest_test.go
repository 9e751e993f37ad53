package manifest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mclaunch/internal/fault"
	"mclaunch/internal/layout"
)

type mojang struct {
	srv           *httptest.Server
	manifestHits  atomic.Int32
	versionHits   atomic.Int32
	manifestState atomic.Int32
}

func newMojang(t *testing.T) *mojang {
	t.Helper()
	m := &mojang{}
	mux := http.NewServeMux()
	mux.HandleFunc("/manifest.json", func(w http.ResponseWriter, r *http.Request) {
		m.manifestHits.Add(1)
		switch m.manifestState.Load() {
		case 1:
			w.WriteHeader(http.StatusServiceUnavailable)
		case 2:
			fmt.Fprint(w, "{not json")
		default:
			fmt.Fprintf(w, `{"latest":{"release":"1.21","snapshot":"24w14a"},
				"versions":[{"id":"1.21","type":"release","url":"%s/v/1.21.json","releaseTime":"2024-06-13T08:24:03+00:00"}]}`, m.srv.URL)
		}
	})
	mux.HandleFunc("/v/1.21.json", func(w http.ResponseWriter, r *http.Request) {
		m.versionHits.Add(1)
		fmt.Fprint(w, `{"id":"1.21","mainClass":"net.minecraft.client.main.Main",
			"assetIndex":{"id":"17","url":"x"},"downloads":{"client":{"url":"c","size":10}},
			"libraries":[{"name":"a:b:1"}],"arguments":{"game":[]}}`)
	})
	m.srv = httptest.NewServer(mux)
	t.Cleanup(m.srv.Close)
	return m
}

func (m *mojang) client(root string) *Client {
	return NewClient(root, m.srv.URL+"/manifest.json", m.srv.Client())
}

func TestFetchManifest(t *testing.T) {
	m := newMojang(t)
	root := t.TempDir()

	got, err := m.client(root).FetchManifest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.21", got.Latest.Release)
	assert.Len(t, got.Versions, 1)
	assert.FileExists(t, layout.ManifestCachePath(root))
}

func TestFetchManifestErrors(t *testing.T) {
	m := newMojang(t)

	m.manifestState.Store(1)
	_, err := m.client(t.TempDir()).FetchManifest(context.Background())
	assert.ErrorIs(t, err, fault.ErrNetwork)

	m.manifestState.Store(2)
	_, err = m.client(t.TempDir()).FetchManifest(context.Background())
	assert.ErrorIs(t, err, fault.ErrParse)
}

func TestCachedManifestSelfHeals(t *testing.T) {
	m := newMojang(t)
	root := t.TempDir()
	require.NoError(t, WriteAtomic(layout.ManifestCachePath(root), []byte("garbage")))

	got, err := m.client(root).CachedManifest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.21", got.Latest.Release)
	assert.Equal(t, int32(1), m.manifestHits.Load())

	_, err = m.client(root).CachedManifest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), m.manifestHits.Load(), "second call served from cache")
}

func TestFetchVersionMetadataCaches(t *testing.T) {
	m := newMojang(t)
	root := t.TempDir()
	c := m.client(root)

	meta, err := c.FetchVersionMetadata(context.Background(), "1.21")
	require.NoError(t, err)
	assert.Equal(t, "net.minecraft.client.main.Main", meta.MainClass)
	assert.Equal(t, "17", meta.AssetIndexID())
	assert.Contains(t, string(meta.Raw), `"arguments"`)

	_, err = c.FetchVersionMetadata(context.Background(), "1.21")
	require.NoError(t, err)
	assert.Equal(t, int32(1), m.versionHits.Load())
}

func TestFetchVersionMetadataCorruptCache(t *testing.T) {
	m := newMojang(t)
	root := t.TempDir()
	path := layout.VersionCachePath(root, "1.21")
	require.NoError(t, WriteAtomic(path, []byte("{broken")))

	meta, err := m.client(root).FetchVersionMetadata(context.Background(), "1.21")
	require.NoError(t, err)
	assert.Equal(t, "1.21", meta.ID)
	assert.Equal(t, int32(1), m.versionHits.Load())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	_, err = ParseVersionMetadata(data)
	assert.NoError(t, err)
}

func TestFetchVersionMetadataNotFound(t *testing.T) {
	m := newMojang(t)
	_, err := m.client(t.TempDir()).FetchVersionMetadata(context.Background(), "0.0")
	assert.ErrorIs(t, err, fault.ErrNotFound)
}

func TestProbe(t *testing.T) {
	m := newMojang(t)
	assert.NoError(t, m.client(t.TempDir()).Probe(context.Background()))

	m.manifestState.Store(1)
	assert.ErrorIs(t, m.client(t.TempDir()).Probe(context.Background()), fault.ErrConnectivity)

	c := NewClient(t.TempDir(), "http://127.0.0.1:1/manifest.json", nil)
	assert.ErrorIs(t, c.Probe(context.Background()), fault.ErrConnectivity)
}

func TestRunReportRoundTrip(t *testing.T) {
	path := layout.RunReportPath(t.TempDir())
	in := &RunReport{
		Version: "1.21",
		State:   "done",
		Failures: []Failure{
			{Category: "asset", URL: "u", Path: "p", Error: "transfer failed"},
		},
	}
	require.NoError(t, WriteRunReport(path, in))

	out, err := ReadRunReport(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
