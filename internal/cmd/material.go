// ABOUTME: Trust material resolution shared by the read and trust commands
// ABOUTME: Merges flag-provided paths with config paths and loads the files
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gillisandrew/lodestone/internal/config"
)

// TrustPaths locates the trust material files on disk.
type TrustPaths struct {
	Anchors     string
	Allowed     string
	StoreConfig string
}

// Empty reports whether no trust material is configured at all.
func (p TrustPaths) Empty() bool {
	return p.Anchors == "" && p.Allowed == "" && p.StoreConfig == ""
}

// ResolveTrustPaths merges flag-provided paths with config-provided ones;
// flags win. Paths from the config file resolve relative to the directory
// holding the config file, flag paths are taken as given.
func ResolveTrustPaths(flags TrustPaths, cfg *config.Config, configPath string) TrustPaths {
	resolved := flags
	if cfg == nil {
		return resolved
	}

	base := ""
	if configPath != "" {
		base = filepath.Dir(configPath)
	}

	if resolved.Anchors == "" && cfg.Trust.AnchorsPath != "" {
		resolved.Anchors = resolveAgainst(base, cfg.Trust.AnchorsPath)
	}
	if resolved.Allowed == "" && cfg.Trust.AllowedPath != "" {
		resolved.Allowed = resolveAgainst(base, cfg.Trust.AllowedPath)
	}
	if resolved.StoreConfig == "" && cfg.Trust.StoreConfigPath != "" {
		resolved.StoreConfig = resolveAgainst(base, cfg.Trust.StoreConfigPath)
	}
	return resolved
}

func resolveAgainst(base, path string) string {
	if base == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// TrustMaterial carries the raw bytes of the trust material files. Unset
// paths load as nil slices.
type TrustMaterial struct {
	Anchors     []byte
	Allowed     []byte
	StoreConfig []byte
}

// LoadTrustMaterial reads every configured trust material file.
func LoadTrustMaterial(paths TrustPaths) (*TrustMaterial, error) {
	material := &TrustMaterial{}

	if paths.Anchors != "" {
		data, err := os.ReadFile(paths.Anchors)
		if err != nil {
			return nil, fmt.Errorf("failed to read trust anchors: %w", err)
		}
		material.Anchors = data
	}
	if paths.Allowed != "" {
		data, err := os.ReadFile(paths.Allowed)
		if err != nil {
			return nil, fmt.Errorf("failed to read allowed intermediates: %w", err)
		}
		material.Allowed = data
	}
	if paths.StoreConfig != "" {
		data, err := os.ReadFile(paths.StoreConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to read store config: %w", err)
		}
		material.StoreConfig = data
	}

	return material, nil
}
