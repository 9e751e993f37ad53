package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mclaunch/internal/config"
	"mclaunch/internal/event"
	"mclaunch/internal/fault"
	"mclaunch/internal/identity"
	"mclaunch/internal/platform"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: fault.ErrBusy, want: 2},
		{err: fmt.Errorf("launch: %w", fault.ErrAlreadyRunning), want: 2},
		{err: fmt.Errorf("download failed: %w", fault.ErrConnectivity), want: 3},
		{err: fault.ErrNotFound, want: 4},
		{err: fault.ErrJavaInvalid, want: 5},
		{err: errors.New("boom"), want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestBuildProfileWindow(t *testing.T) {
	caps := platform.Capabilities{Name: "linux", NativeKey: "linux", JavaExecutable: "java", ClasspathSeparator: ":"}
	player := &identity.Profile{Type: identity.TypeLegacy, Name: "Steve", UUID: "u", AccessToken: "t"}

	cfg := &config.Config{RootDir: t.TempDir()}
	p, err := buildProfile(cfg, caps, "1.21", player)
	require.NoError(t, err)
	assert.Equal(t, defaultWidth, p.Window.Width)
	assert.Equal(t, defaultHeight, p.Window.Height)
	assert.Equal(t, "2G", p.MaxMemory)
	assert.Equal(t, cfg.RootDir, p.GameDirectory())

	cfg.GameDir = filepath.Join(cfg.RootDir, "instances", "vanilla")
	p, err = buildProfile(cfg, caps, "1.21", player)
	require.NoError(t, err)
	assert.Equal(t, cfg.GameDir, p.GameDirectory())

	cfg.Window.Fullscreen = true
	p, err = buildProfile(cfg, caps, "1.21", player)
	require.NoError(t, err)
	assert.Zero(t, p.Window.Width)
	assert.True(t, p.Window.Fullscreen)

	cfg.ExtraLibraries = []string{"https://example.com/libs/mod.jar"}
	p, err = buildProfile(cfg, caps, "1.21", player)
	require.NoError(t, err)
	assert.Len(t, p.ExtraLibraries, 1)
}

func TestDownloadRenderer(t *testing.T) {
	var buf bytes.Buffer
	r := &downloadRenderer{w: &buf}

	r.sink(event.Event{Kind: event.EstimatedTime, Percent: 42.3, Duration: 3 * time.Second})
	r.sink(event.Event{Kind: event.EstimatedTime, Percent: 50})
	r.sink(event.Event{Kind: event.Error, Category: "asset", Message: "404"})
	r.sink(event.Event{Kind: event.Done, Message: "1.21"})

	out := buf.String()
	assert.Contains(t, out, "42.3% done, 3s remaining")
	assert.NotContains(t, out, "50% done")
	assert.NotContains(t, out, "404")
	assert.Contains(t, out, "installed 1.21")
}

func TestGameRenderer(t *testing.T) {
	var stdout, stderr bytes.Buffer
	r := &gameRenderer{stdout: &stdout, stderr: &stderr}

	r.sink(event.Event{Kind: event.Data, Message: "hello"})
	r.sink(event.Event{Kind: event.Error, Message: "oops"})
	r.sink(event.Event{Kind: event.Close, Code: 0})

	assert.Equal(t, "hello\n", stdout.String())
	assert.Equal(t, "oops\n", stderr.String())
}

func TestRunDownloadUnreachableLeavesRootAbsent(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "root")
	cfgPath := filepath.Join(dir, "mclaunch.yaml")
	content := fmt.Sprintf("root_dir: %s\nendpoints:\n  manifest: http://127.0.0.1:1/manifest.json\n", root)
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o644))

	err := runDownload(context.Background(), cfgPath, "", "")
	assert.ErrorIs(t, err, fault.ErrConnectivity)
	assert.Equal(t, 3, exitCode(err))
	assert.NoDirExists(t, root)
}
