package sync

import (
	"context"
	"errors"
	"strings"
	"testing"

	"wordpress-sync/internal/wp"
)

// liveSource wires a fakeSource serving a small instance: one page referencing
// one media item inline, a menu with one item, and settings.
func liveSource() *fakeSource {
	body := `<p>Welcome to <a href="https://src.example/about">us</a></p><img src="https://src.example/up/logo.png">`
	reg := map[wp.Kind][]wp.Entity{
		wp.KindPages: {
			{ID: 1, Slug: "home", Fields: map[string]any{
				"content": map[string]any{"rendered": body},
			}},
		},
		wp.KindMedia: {
			{ID: 10, Slug: "logo", Fields: map[string]any{"source_url": "https://src.example/up/logo.png"}},
		},
		wp.KindMenus: {
			{ID: 20, Slug: "main", Fields: map[string]any{"name": "Main"}},
		},
		wp.KindMenuItems: {
			{ID: 30, Fields: map[string]any{"title": "Home", "url": "https://src.example/", "menus": float64(20)}},
		},
	}
	return &fakeSource{
		origin:   "https://src.example",
		settings: wp.Settings{"title": "Source Site"},
		blobs:    map[string][]byte{"https://src.example/up/logo.png": []byte("PNG")},
		listFn: func(ctx context.Context, kind wp.Kind, q wp.Query) ([]wp.Entity, error) {
			if q.Page > 1 {
				return nil, nil
			}
			return reg[kind], nil
		},
	}
}

func TestOrchestratorEndToEnd(t *testing.T) {
	src := liveSource()
	d := newFakeDest()
	o := NewOrchestrator(src, d, nil, nil)

	report, err := o.Run(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Failed || len(report.Errors) != 0 {
		t.Fatalf("report failed: %+v", report.Errors)
	}

	// content was rewritten to the destination origin before import
	var pageCreate map[string]any
	for _, c := range d.creates {
		if c.kind == wp.KindPages {
			pageCreate = c.payload
		}
	}
	if pageCreate == nil {
		t.Fatalf("page never created: %+v", d.creates)
	}
	content, _ := pageCreate["content"].(string)
	if strings.Contains(content, "https://src.example") {
		t.Errorf("source origin survived rewrite: %q", content)
	}
	if !strings.Contains(content, "https://dst.example/about") {
		t.Errorf("destination origin missing: %q", content)
	}

	if len(d.uploads) != 1 || string(d.uploads[0].Blob) != "PNG" {
		t.Errorf("referenced media not uploaded: %+v", d.uploads)
	}
	if len(d.settings) != 1 || d.settings[0]["title"] != "Source Site" {
		t.Errorf("settings not imported: %+v", d.settings)
	}
	if report.ImportedByKind[wp.KindPages] != 1 || report.MediaSelected != 1 {
		t.Errorf("report counts: %+v", report.ImportedByKind)
	}
}

func TestOrchestratorKindSelection(t *testing.T) {
	src := liveSource()
	d := newFakeDest()
	o := NewOrchestrator(src, d, nil, nil)

	report, err := o.Run(context.Background(), RunOptions{Kinds: []wp.Kind{wp.KindMenus}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, c := range d.creates {
		if c.kind != wp.KindMenus {
			t.Errorf("unselected kind written: %v", c.kind)
		}
	}
	if len(d.settings) != 0 || len(d.uploads) != 0 {
		t.Errorf("unselected kinds written: settings=%d uploads=%d", len(d.settings), len(d.uploads))
	}
	if report.ImportedByKind[wp.KindMenus] != 1 {
		t.Errorf("menus not imported: %+v", report.ImportedByKind)
	}
}

func TestOrchestratorCollectionFailureMarksRunFailed(t *testing.T) {
	src := liveSource()
	inner := src.listFn
	src.listFn = func(ctx context.Context, kind wp.Kind, q wp.Query) ([]wp.Entity, error) {
		if kind == wp.KindPosts {
			return nil, errors.New("boom")
		}
		return inner(ctx, kind, q)
	}
	d := newFakeDest()
	o := NewOrchestrator(src, d, nil, nil)

	report, err := o.Run(context.Background(), RunOptions{Kinds: []wp.Kind{wp.KindPosts, wp.KindMenus}})
	if err != nil {
		t.Fatalf("collection failure must not abort the run: %v", err)
	}
	if !report.Failed {
		t.Errorf("run not marked failed")
	}
	if report.ImportedByKind[wp.KindMenus] != 1 {
		t.Errorf("surviving kind not imported: %+v", report.ImportedByKind)
	}
}

type fakeAdapter struct {
	ws         *WorkingSet
	err        error
	gotDir     string
	gotOrigin  string
	timesCalls int
}

func (a *fakeAdapter) Adapt(dir, destOrigin string) (*WorkingSet, error) {
	a.timesCalls++
	a.gotDir = dir
	a.gotOrigin = destOrigin
	return a.ws, a.err
}

func TestOrchestratorStaticRunUsesAdapter(t *testing.T) {
	d := newFakeDest()
	ad := &fakeAdapter{ws: &WorkingSet{
		Pages:    []wp.Entity{{Slug: "index", Fields: map[string]any{"title": "Home"}}},
		Settings: wp.Settings{"title": "Static Site"},
	}}
	o := NewOrchestrator(nil, d, ad, nil)

	report, err := o.Run(context.Background(), RunOptions{StaticDir: "/tmp/site"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if ad.timesCalls != 1 || ad.gotDir != "/tmp/site" || ad.gotOrigin != "https://dst.example" {
		t.Errorf("adapter call: %+v", ad)
	}
	if report.ImportedByKind[wp.KindPages] != 1 {
		t.Errorf("static pages not imported: %+v", report.ImportedByKind)
	}
	// manifest run: homepage patch applied
	if d.settings[0]["show_on_front"] != "page" {
		t.Errorf("homepage not patched on static run: %v", d.settings[0])
	}
}

func TestOrchestratorNoSourceIsFatal(t *testing.T) {
	o := NewOrchestrator(nil, newFakeDest(), nil, nil)
	if _, err := o.Run(context.Background(), RunOptions{}); err == nil {
		t.Fatalf("expected configuration error")
	}
}
