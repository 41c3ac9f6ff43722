// Package config holds the local profile store and runtime settings.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/sahilm/fuzzy"

	"wordpress-sync/internal/wp"
)

const (
	configDirName = ".wpsync"
	profilesFile  = "profiles.json"
)

// Profiles maps nicknames to credential bundles. The file is plain JSON and
// readable by anyone with file access; passwords are not encrypted. The file
// mode is 0600 to keep it owner-only, which is the extent of the protection.
type Profiles struct {
	path    string
	Entries map[string]wp.Credentials `json:"profiles"`
}

// DefaultPath returns the profile store location under the user's home.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home: %w", err)
	}
	return filepath.Join(home, configDirName, profilesFile), nil
}

// LoadProfiles reads the store at path. A missing file yields an empty store
// that saves to the same path.
func LoadProfiles(path string) (*Profiles, error) {
	p := &Profiles{path: path, Entries: make(map[string]wp.Credentials)}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parse profiles: %w", err)
	}
	if p.Entries == nil {
		p.Entries = make(map[string]wp.Credentials)
	}
	return p, nil
}

// Save writes the store with owner-only permissions, creating the config
// directory when needed.
func (p *Profiles) Save() error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p.path, data, 0o600)
}

// Get resolves a nickname to its credentials.
func (p *Profiles) Get(name string) (wp.Credentials, bool) {
	c, ok := p.Entries[name]
	return c, ok
}

// Set stores or replaces a profile after validating its credentials.
func (p *Profiles) Set(name string, c wp.Credentials) error {
	if name == "" {
		return fmt.Errorf("empty profile name")
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("profile %q: %w", name, err)
	}
	p.Entries[name] = c
	return nil
}

// Remove deletes a profile; removing an unknown name is an error so typos
// surface instead of silently succeeding.
func (p *Profiles) Remove(name string) error {
	if _, ok := p.Entries[name]; !ok {
		return fmt.Errorf("no profile %q", name)
	}
	delete(p.Entries, name)
	return nil
}

// Names returns the stored nicknames, sorted.
func (p *Profiles) Names() []string {
	names := make([]string, 0, len(p.Entries))
	for n := range p.Entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Suggest fuzzy-matches a mistyped nickname against the stored ones, best
// matches first.
func (p *Profiles) Suggest(input string) []string {
	names := p.Names()
	matches := fuzzy.Find(input, names)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Str)
	}
	return out
}
