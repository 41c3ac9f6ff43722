// Package manifest adapts a locally generated static site description into
// the entity shapes a live collection run produces, so the import pipeline is
// source-agnostic.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	manifestFile = "manifest.json"
	mediaDirName = "media"
)

// NavItem is one entry of a navigation tree. A path rooted at "/" is an
// internal link to a generated page; anything else is an external URL.
type NavItem struct {
	Title    string    `json:"title"`
	Path     string    `json:"path"`
	Children []NavItem `json:"children,omitempty"`
}

// Nav wraps a navigation list so the JSON mirrors the generator's layout.
type Nav struct {
	Nav []NavItem `json:"nav"`
}

// Site carries the site-wide pieces of a manifest.
type Site struct {
	Title  string `json:"title"`
	Header Nav    `json:"header"`
	Footer Nav    `json:"footer"`
}

// Page is one generated page with pre-rendered body markup.
type Page struct {
	Slug    string `json:"slug"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Manifest is the on-disk description of a generated site: manifest.json at
// the directory root plus a media/ directory of binary assets.
type Manifest struct {
	Site  Site   `json:"site"`
	Pages []Page `json:"pages"`
}

// Load reads and validates the manifest document in dir.
func Load(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	seen := make(map[string]bool, len(m.Pages))
	for _, p := range m.Pages {
		if p.Slug == "" {
			return nil, fmt.Errorf("page %q: empty slug", p.Title)
		}
		if seen[p.Slug] {
			return nil, fmt.Errorf("duplicate page slug %q", p.Slug)
		}
		seen[p.Slug] = true
	}
	return &m, nil
}

// MediaDir returns the manifest's media directory path. The directory is
// optional; callers treat a missing one as an empty media set.
func MediaDir(dir string) string {
	return filepath.Join(dir, mediaDirName)
}
