package resolve

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mclaunch/internal/fault"
	"mclaunch/internal/manifest"
)

type staticSource struct {
	m     *manifest.VersionManifest
	err   error
	calls int
}

func (s *staticSource) FetchManifest(context.Context) (*manifest.VersionManifest, error) {
	s.calls++
	return s.m, s.err
}

func sample() *manifest.VersionManifest {
	return &manifest.VersionManifest{
		Latest: manifest.Latest{Release: "1.21", Snapshot: "24w14a"},
		Versions: []manifest.VersionRef{
			{ID: "24w14a", URL: "S"},
			{ID: "1.21", URL: "U"},
		},
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name      string
		channel   string
		requested string
		want      string
		wantErr   bool
		wantCalls int
	}{
		{name: "latest release", channel: Release, want: "1.21", wantCalls: 1},
		{name: "default channel is release", channel: "", want: "1.21", wantCalls: 1},
		{name: "latest snapshot", channel: Snapshot, want: "24w14a", wantCalls: 1},
		{name: "explicit id is returned unchanged", channel: Release, requested: "1.8.9", want: "1.8.9"},
		{name: "unknown channel", channel: "beta", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &staticSource{m: sample()}
			got, err := New(src, tt.channel).Resolve(context.Background(), tt.requested)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantCalls, src.calls)
		})
	}
}

func TestResolveLatestNotListed(t *testing.T) {
	m := sample()
	m.Versions = m.Versions[:1]
	_, err := New(&staticSource{m: m}, Release).Resolve(context.Background(), "")
	assert.ErrorIs(t, err, fault.ErrNotFound)
}

func TestResolveManifestError(t *testing.T) {
	src := &staticSource{err: fault.ErrNetwork}
	_, err := New(src, Release).Resolve(context.Background(), "")
	assert.True(t, errors.Is(err, fault.ErrNetwork))
}
