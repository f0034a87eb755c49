package update

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Manifest describes one version of the asset bundle.
type Manifest struct {
	Version string          `json:"version"`
	Assets  []ManifestAsset `json:"assets"`
}

// ManifestAsset is a single bundle file. URL is resolved against the
// manifest location and defaults to Name.
type ManifestAsset struct {
	Name   string `json:"name"`
	URL    string `json:"url,omitempty"`
	SHA256 string `json:"sha256,omitempty"`
}

// FetchManifest downloads and validates the manifest at manifestURL.
func FetchManifest(ctx context.Context, client *http.Client, manifestURL string) (*Manifest, error) {
	data, err := get(ctx, client, manifestURL)
	if err != nil {
		return nil, err
	}
	return ParseManifest(data, manifestURL)
}

// ParseManifest decodes a manifest and resolves its asset URLs.
func ParseManifest(data []byte, manifestURL string) (*Manifest, error) {
	base, err := url.Parse(manifestURL)
	if err != nil {
		return nil, fmt.Errorf("invalid manifest url: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if m.Version == "" {
		return nil, fmt.Errorf("manifest has no version")
	}

	seen := make(map[string]bool, len(m.Assets))
	for i := range m.Assets {
		a := &m.Assets[i]
		if a.Name == "" {
			return nil, fmt.Errorf("manifest asset %d has no name", i)
		}
		if seen[a.Name] {
			return nil, fmt.Errorf("duplicate manifest asset %q", a.Name)
		}
		seen[a.Name] = true

		ref := a.URL
		if ref == "" {
			ref = a.Name
		}
		u, err := base.Parse(ref)
		if err != nil {
			return nil, fmt.Errorf("invalid url for asset %q: %w", a.Name, err)
		}
		a.URL = u.String()
	}

	return &m, nil
}
