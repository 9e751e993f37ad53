package check

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mclaunch/internal/config"
	"mclaunch/internal/fault"
	"mclaunch/internal/platform"
)

var linux = platform.Capabilities{Name: "linux", NativeKey: "linux", JavaExecutable: "java", ClasspathSeparator: ":"}

func manifestServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(`{"latest":{},"versions":[]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRunManifestUnreachable(t *testing.T) {
	srv := manifestServer(t, http.StatusBadGateway)
	cfg := &config.Config{RootDir: t.TempDir()}
	cfg.Endpoints.Manifest = srv.URL

	var out bytes.Buffer
	err := Run(context.Background(), cfg, linux, &out)
	assert.ErrorIs(t, err, fault.ErrConnectivity)
	assert.Contains(t, out.String(), "config: OK")
	assert.Contains(t, out.String(), "root ")
}

func TestRunJavaMissing(t *testing.T) {
	srv := manifestServer(t, http.StatusOK)
	root := t.TempDir()
	cfg := &config.Config{RootDir: root}
	cfg.Endpoints.Manifest = srv.URL
	cfg.Java.Path = filepath.Join(root, "no-java", "java")

	var out bytes.Buffer
	err := Run(context.Background(), cfg, linux, &out)
	assert.ErrorIs(t, err, fault.ErrJavaInvalid)
	assert.Contains(t, out.String(), "manifest "+srv.URL+": OK")
}

func TestRunJavaPendingDownload(t *testing.T) {
	srv := manifestServer(t, http.StatusOK)
	cfg := &config.Config{RootDir: t.TempDir()}
	cfg.Endpoints.Manifest = srv.URL
	cfg.Java.Download = true
	cfg.Runtime.URLs = map[string]string{"linux": "https://example.com/jre.tar.gz"}

	var out bytes.Buffer
	require.NoError(t, Run(context.Background(), cfg, linux, &out))
	assert.Contains(t, out.String(), "will be downloaded")
	assert.Contains(t, out.String(), "all checks passed")
}

func TestRootWritable(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "root")
	require.NoError(t, rootWritable(root))
	assert.DirExists(t, filepath.Join(root, "cache"))
}
