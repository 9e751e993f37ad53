// Package identity keeps the local offline identity used to launch the
// client. It is stored in launcher_profiles.json next to any other profile
// entries, which are preserved untouched.
package identity

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"mclaunch/internal/layout"
	"mclaunch/internal/manifest"
)

const (
	TypeLegacy  = "legacy"
	DefaultName = "Player"
)

type Profile struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	UUID        string `json:"uuid"`
	AccessToken string `json:"accessToken"`
}

// usable reports whether p can be handed to the client as is.
func (p *Profile) usable() bool {
	return p.Type == TypeLegacy && p.UUID != "" && p.AccessToken != ""
}

// Generate creates a fresh legacy profile with a random uuid and a 32-byte
// hex access token.
func Generate(name string) (*Profile, error) {
	if name == "" {
		name = DefaultName
	}
	token := make([]byte, 32)
	if _, err := rand.Read(token); err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	return &Profile{
		Type:        TypeLegacy,
		Name:        name,
		UUID:        uuid.NewString(),
		AccessToken: hex.EncodeToString(token),
	}, nil
}

// readProfiles returns the raw entries of the profiles file. A missing or
// malformed file yields no entries.
func readProfiles(path string) []json.RawMessage {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		slog.Warn("Ignoring malformed profiles file", "path", path, "error", err)
		return nil
	}
	return entries
}

// LoadOrCreate returns the first usable legacy profile under root, or
// creates one named name and appends it to the profiles file.
func LoadOrCreate(root, name string) (*Profile, error) {
	path := layout.ProfilesPath(root)
	entries := readProfiles(path)
	for _, raw := range entries {
		var p Profile
		if err := json.Unmarshal(raw, &p); err != nil {
			continue
		}
		if p.usable() {
			return &p, nil
		}
	}

	p, err := Generate(name)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(append(entries, raw), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode profiles: %w", err)
	}
	if err := manifest.WriteAtomic(path, data); err != nil {
		return nil, fmt.Errorf("failed to write profiles: %w", err)
	}
	slog.Info("Created offline profile", "name", p.Name, "uuid", p.UUID)
	return p, nil
}
