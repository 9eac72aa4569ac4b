package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"serverguard.keepalive/internal/core/domain"
)

type assetsFile struct {
	Assets []domain.HostedAsset `yaml:"assets"`
}

// LoadAssets returns the asset registry definition. An empty path yields the
// reference set; otherwise the YAML file replaces it entirely.
func LoadAssets(path string) ([]domain.HostedAsset, error) {
	if path == "" {
		return domain.DefaultAssets(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read assets file: %w", err)
	}
	return ParseAssets(raw)
}

func ParseAssets(raw []byte) ([]domain.HostedAsset, error) {
	var f assetsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse assets file: %w", err)
	}
	if err := ValidateAssets(f.Assets); err != nil {
		return nil, err
	}
	return f.Assets, nil
}

func ValidateAssets(assets []domain.HostedAsset) error {
	if len(assets) == 0 {
		return fmt.Errorf("%w: at least one asset required", ErrInvalid)
	}
	seen := make(map[string]struct{}, len(assets))
	for i, a := range assets {
		if a.ID == "" {
			return fmt.Errorf("%w: assets[%d].id is required", ErrInvalid, i)
		}
		if _, dup := seen[a.ID]; dup {
			return fmt.Errorf("%w: duplicate asset id %q", ErrInvalid, a.ID)
		}
		seen[a.ID] = struct{}{}
		if a.URL == "" {
			return fmt.Errorf("%w: assets[%d].url is required", ErrInvalid, i)
		}
	}
	return nil
}
