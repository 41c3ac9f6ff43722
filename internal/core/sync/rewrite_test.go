package sync

import (
	"testing"

	"wordpress-sync/internal/wp"
)

func TestRewriteDomain(t *testing.T) {
	in := []wp.Entity{pageWithContent(1, `<a href="https://src.example/about">x</a><img src="https://src.example/a.png">`)}

	out := RewriteDomain(in, "https://src.example", "https://dst.example")
	want := `<a href="https://dst.example/about">x</a><img src="https://dst.example/a.png">`
	if got := out[0].Rendered("content"); got != want {
		t.Errorf("rewritten = %q, want %q", got, want)
	}
}

func TestRewriteDomainIdempotent(t *testing.T) {
	in := []wp.Entity{pageWithContent(1, `<a href="https://src.example/x">`)}
	once := RewriteDomain(in, "https://src.example", "https://dst.example")
	twice := RewriteDomain(once, "https://src.example", "https://dst.example")
	if once[0].Rendered("content") != twice[0].Rendered("content") {
		t.Errorf("second pass changed content: %q vs %q", once[0].Rendered("content"), twice[0].Rendered("content"))
	}
}

func TestRewriteDomainDoesNotMutateInput(t *testing.T) {
	in := []wp.Entity{pageWithContent(1, `https://src.example/x`)}
	_ = RewriteDomain(in, "https://src.example", "https://dst.example")
	if got := in[0].Rendered("content"); got != "https://src.example/x" {
		t.Errorf("input mutated: %q", got)
	}
}

func TestRewriteDomainNoOpCases(t *testing.T) {
	in := []wp.Entity{pageWithContent(1, "body")}
	if out := RewriteDomain(in, "", "https://dst.example"); out[0].Rendered("content") != "body" {
		t.Errorf("empty origin rewrote content")
	}
	if out := RewriteDomain(in, "https://same.example", "https://same.example"); out[0].Rendered("content") != "body" {
		t.Errorf("same-origin rewrote content")
	}
}

func TestRewriteMenuItemURLs(t *testing.T) {
	items := []wp.MenuItem{
		{Title: "Home", URL: "https://src.example/"},
		{Title: "Docs", URL: "https://other.example/docs"},
	}
	out := RewriteMenuItemURLs(items, "https://src.example", "https://dst.example")
	if out[0].URL != "https://dst.example/" {
		t.Errorf("internal url = %q", out[0].URL)
	}
	if out[1].URL != "https://other.example/docs" {
		t.Errorf("external url changed: %q", out[1].URL)
	}
	if items[0].URL != "https://src.example/" {
		t.Errorf("input mutated: %q", items[0].URL)
	}
}
