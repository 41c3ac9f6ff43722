package cli

import (
	"path/filepath"
	"strings"
	"testing"

	"wordpress-sync/internal/config"
	"wordpress-sync/internal/wp"
)

func testProfiles(t *testing.T) *config.Profiles {
	t.Helper()
	p, err := config.LoadProfiles(filepath.Join(t.TempDir(), "profiles.json"))
	if err != nil {
		t.Fatalf("LoadProfiles: %v", err)
	}
	if err := p.Set("staging", wp.Credentials{URL: "https://staging.example", User: "u", Password: "p"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	return p
}

func TestResolveProfile(t *testing.T) {
	p := testProfiles(t)
	creds, err := resolveProfile(p, "staging")
	if err != nil {
		t.Fatalf("resolveProfile: %v", err)
	}
	if creds.Origin() != "https://staging.example" {
		t.Errorf("creds = %+v", creds)
	}
}

func TestResolveProfileSuggestsOnTypo(t *testing.T) {
	p := testProfiles(t)
	_, err := resolveProfile(p, "stagng")
	if err == nil || !strings.Contains(err.Error(), "staging") {
		t.Fatalf("err = %v, want suggestion", err)
	}
}

func TestResolveProfileUnknown(t *testing.T) {
	p := testProfiles(t)
	if _, err := resolveProfile(p, "zzz"); err == nil {
		t.Fatalf("expected error for unknown profile")
	}
}
