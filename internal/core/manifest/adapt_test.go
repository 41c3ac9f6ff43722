package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func writeManifest(t *testing.T, doc string, media map[string][]byte) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), []byte(doc), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	if len(media) > 0 {
		if err := os.Mkdir(filepath.Join(dir, "media"), 0o755); err != nil {
			t.Fatalf("mkdir media: %v", err)
		}
		for name, blob := range media {
			if err := os.WriteFile(filepath.Join(dir, "media", name), blob, 0o644); err != nil {
				t.Fatalf("write media: %v", err)
			}
		}
	}
	return dir
}

func fixedAdapter() *Adapter {
	return &Adapter{now: func() time.Time {
		return time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC)
	}}
}

const sampleDoc = `{
  "site": {
    "title": "Example Site",
    "header": {"nav": [
      {"title": "Home", "path": "/"},
      {"title": "Company", "path": "/company", "children": [
        {"title": "Team", "path": "/company/team"}
      ]},
      {"title": "Blog", "path": "https://blog.example"}
    ]},
    "footer": {"nav": [{"title": "Imprint", "path": "/imprint"}]}
  },
  "pages": [
    {"slug": "index", "title": "Home", "content": "<p>Welcome <img src=\"logo.png\"></p>"},
    {"slug": "company", "title": "Company", "content": "<p>About us</p>"}
  ]
}`

func TestAdaptShapesWorkingSet(t *testing.T) {
	dir := writeManifest(t, sampleDoc, map[string][]byte{"logo.png": append(pngHeader, []byte("data")...)})

	ws, err := fixedAdapter().Adapt(dir, "https://dst.example/")
	if err != nil {
		t.Fatalf("Adapt: %v", err)
	}
	if !ws.Static {
		t.Errorf("working set not marked static")
	}

	if len(ws.Pages) != 2 || ws.Pages[0].Slug != "index" || ws.Pages[0].ID != 0 {
		t.Fatalf("pages = %+v", ws.Pages)
	}
	content, _ := ws.Pages[0].Fields["content"].(string)
	if !strings.Contains(content, `"https://dst.example/wp-content/uploads/2026/08/logo.png"`) {
		t.Errorf("media reference not rewritten: %q", content)
	}
	if strings.Contains(content, `"logo.png"`) {
		t.Errorf("bare filename reference survived: %q", content)
	}

	if len(ws.Media) != 1 {
		t.Fatalf("media = %+v", ws.Media)
	}
	m := ws.Media[0]
	if m.ID != 0 || m.FileName != "logo.png" || m.UploadPath != "2026/08" {
		t.Errorf("media = %+v", m)
	}
	if m.MimeType != "image/png" {
		t.Errorf("mime = %q", m.MimeType)
	}
	if len(m.Blob) == 0 {
		t.Errorf("blob not loaded")
	}

	if ws.Settings.Title() != "Example Site" {
		t.Errorf("settings = %+v", ws.Settings)
	}
}

func TestAdaptBuildsMenusAndDeferredItems(t *testing.T) {
	dir := writeManifest(t, sampleDoc, nil)

	ws, err := fixedAdapter().Adapt(dir, "https://dst.example")
	if err != nil {
		t.Fatalf("Adapt: %v", err)
	}

	if len(ws.Menus) != 2 || ws.Menus[0].Slug != "header" || ws.Menus[1].Slug != "footer" {
		t.Fatalf("menus = %+v", ws.Menus)
	}
	if len(ws.Menus[0].Locations) != 1 || ws.Menus[0].Locations[0] != "header" {
		t.Errorf("header locations = %v", ws.Menus[0].Locations)
	}

	items := ws.MenuItems
	if len(items) != 5 {
		t.Fatalf("menu items = %+v", items)
	}
	// depth-first: home, company, team (child), blog, imprint
	if items[0].SlugRef != "index" || items[0].Parent != 0 || items[0].MenuRef != "header" {
		t.Errorf("home item = %+v", items[0])
	}
	if items[1].SlugRef != "company" {
		t.Errorf("company item = %+v", items[1])
	}
	if items[2].SlugRef != "team" || items[2].Parent != 2 {
		t.Errorf("team item should point at ordinal 2: %+v", items[2])
	}
	if items[3].URL != "https://blog.example" || items[3].SlugRef != "" {
		t.Errorf("external item = %+v", items[3])
	}
	if items[4].MenuRef != "footer" || items[4].SlugRef != "imprint" {
		t.Errorf("footer item = %+v", items[4])
	}
}

func TestAdaptWithoutMediaDir(t *testing.T) {
	dir := writeManifest(t, `{"site":{"title":"T"},"pages":[{"slug":"index","title":"H","content":"x"}]}`, nil)
	ws, err := fixedAdapter().Adapt(dir, "https://dst.example")
	if err != nil {
		t.Fatalf("Adapt: %v", err)
	}
	if len(ws.Media) != 0 || len(ws.Pages) != 1 {
		t.Errorf("ws = %+v", ws)
	}
}

func TestLoadRejectsBadManifests(t *testing.T) {
	for _, tc := range []struct {
		name string
		doc  string
	}{
		{"duplicate slug", `{"pages":[{"slug":"a","title":"A"},{"slug":"a","title":"B"}]}`},
		{"empty slug", `{"pages":[{"slug":"","title":"A"}]}`},
		{"malformed json", `{"pages":`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			dir := writeManifest(t, tc.doc, nil)
			if _, err := Load(dir); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Fatalf("expected error for missing manifest")
	}
}

func TestPathSlug(t *testing.T) {
	for _, tc := range []struct{ in, want string }{
		{"/", "index"},
		{"/about", "about"},
		{"/company/team", "team"},
		{"/trailing/", "trailing"},
	} {
		if got := pathSlug(tc.in); got != tc.want {
			t.Errorf("pathSlug(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMenuItemPayloadRoundTrip(t *testing.T) {
	dir := writeManifest(t, sampleDoc, nil)
	ws, err := fixedAdapter().Adapt(dir, "https://dst.example")
	if err != nil {
		t.Fatalf("Adapt: %v", err)
	}
	p := ws.MenuItems[0].Payload()
	if _, ok := p["slug_ref"]; ok {
		t.Errorf("deferred reference leaked into wire payload: %v", p)
	}
}
