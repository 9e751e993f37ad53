package main

import (
	"encoding/json"
	"fmt"
	"os"

	"mclaunch/internal/identity"
)

func showIdentity(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	p, err := identity.LoadOrCreate(cfg.RootDir, cfg.PlayerName())
	if err != nil {
		return fmt.Errorf("failed to load identity: %w", err)
	}

	// The access token is a local placeholder but still not printed.
	out := struct {
		Name string `json:"name"`
		UUID string `json:"uuid"`
		Type string `json:"type"`
	}{p.Name, p.UUID, p.Type}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(out); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
