package sync

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"wordpress-sync/internal/wp"
)

// fakeSource implements SourceAPI for tests.
type fakeSource struct {
	listFn      func(ctx context.Context, kind wp.Kind, q wp.Query) ([]wp.Entity, error)
	settings    wp.Settings
	settingsErr error
	blobs       map[string][]byte
	blobErrs    map[string]error
	origin      string
}

func (f *fakeSource) ListPage(ctx context.Context, kind wp.Kind, q wp.Query) ([]wp.Entity, error) {
	return f.listFn(ctx, kind, q)
}

func (f *fakeSource) GetSettings(ctx context.Context) (wp.Settings, error) {
	return f.settings, f.settingsErr
}

func (f *fakeSource) DownloadMedia(ctx context.Context, u string) ([]byte, string, error) {
	if err := f.blobErrs[u]; err != nil {
		return nil, "", err
	}
	blob, ok := f.blobs[u]
	if !ok {
		return nil, "", fmt.Errorf("no blob for %s", u)
	}
	return blob, "image/png", nil
}

func (f *fakeSource) Origin() string { return f.origin }

func genEntities(n, startID int) []wp.Entity {
	out := make([]wp.Entity, n)
	for i := range out {
		out[i] = wp.Entity{ID: startID + i, Slug: fmt.Sprintf("page-%d", startID+i), Fields: map[string]any{}}
	}
	return out
}

// pagedSource serves items as a paginated collection and records pages asked.
func pagedSource(items []wp.Entity, pagesAsked *[]int) *fakeSource {
	return &fakeSource{listFn: func(ctx context.Context, kind wp.Kind, q wp.Query) ([]wp.Entity, error) {
		if pagesAsked != nil {
			*pagesAsked = append(*pagesAsked, q.Page)
		}
		start := (q.Page - 1) * q.PerPage
		if start >= len(items) {
			return nil, nil
		}
		end := start + q.PerPage
		if end > len(items) {
			end = len(items)
		}
		return items[start:end], nil
	}}
}

func TestCollectPaginates(t *testing.T) {
	var pages []int
	c := NewCollector(pagedSource(genEntities(203, 1), &pages))
	ents, soft, err := c.Collect(context.Background(), wp.KindPages, Filters{})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(ents) != 203 || len(soft) != 0 {
		t.Fatalf("got %d entities, %d soft errors", len(ents), len(soft))
	}
	if len(pages) != 3 || pages[0] != 1 || pages[2] != 3 {
		t.Errorf("pages asked = %v", pages)
	}
}

func TestCollectStopsOnShortPage(t *testing.T) {
	var pages []int
	c := NewCollector(pagedSource(genEntities(42, 1), &pages))
	ents, _, err := c.Collect(context.Background(), wp.KindPages, Filters{})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(ents) != 42 {
		t.Fatalf("got %d entities", len(ents))
	}
	if len(pages) != 1 {
		t.Errorf("short page did not stop pagination: %v", pages)
	}
}

func TestCollectFirstPageFailure(t *testing.T) {
	boom := errors.New("boom")
	c := NewCollector(&fakeSource{listFn: func(ctx context.Context, kind wp.Kind, q wp.Query) ([]wp.Entity, error) {
		return nil, boom
	}})
	_, _, err := c.Collect(context.Background(), wp.KindPosts, Filters{})
	var ce *CollectionError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want CollectionError", err)
	}
	if ce.Kind != wp.KindPosts || !errors.Is(err, boom) {
		t.Errorf("CollectionError = %+v", ce)
	}
}

func TestCollectLaterPageFailureKeepsPartial(t *testing.T) {
	items := genEntities(100, 1)
	c := NewCollector(&fakeSource{listFn: func(ctx context.Context, kind wp.Kind, q wp.Query) ([]wp.Entity, error) {
		if q.Page == 1 {
			return items, nil
		}
		return nil, errors.New("gateway timeout")
	}})
	ents, soft, err := c.Collect(context.Background(), wp.KindPages, Filters{})
	if err != nil {
		t.Fatalf("later-page failure must not abort: %v", err)
	}
	if len(ents) != 100 {
		t.Errorf("partial results lost: %d", len(ents))
	}
	if len(soft) != 1 || soft[0].Phase != "collect" {
		t.Errorf("soft = %+v", soft)
	}
}

func TestCollectCancellationPropagates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := NewCollector(&fakeSource{listFn: func(ctx context.Context, kind wp.Kind, q wp.Query) ([]wp.Entity, error) {
		if q.Page == 1 {
			cancel()
			return genEntities(100, 1), nil
		}
		return nil, ctx.Err()
	}})
	_, _, err := c.Collect(ctx, wp.KindPages, Filters{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestCollectSettingsAsSingletonEntity(t *testing.T) {
	c := NewCollector(&fakeSource{settings: wp.Settings{"title": "My Site"}})
	ents, soft, err := c.Collect(context.Background(), wp.KindSettings, Filters{})
	if err != nil || len(soft) != 0 {
		t.Fatalf("Collect settings: %v %v", err, soft)
	}
	if len(ents) != 1 || ents[0].Fields["title"] != "My Site" {
		t.Errorf("entities = %+v", ents)
	}
}

func TestCollectSettingsFailure(t *testing.T) {
	c := NewCollector(&fakeSource{settingsErr: errors.New("forbidden")})
	_, _, err := c.Collect(context.Background(), wp.KindSettings, Filters{})
	var ce *CollectionError
	if !errors.As(err, &ce) || ce.Kind != wp.KindSettings {
		t.Fatalf("err = %v, want CollectionError for settings", err)
	}
}

func TestCollectPassesFilters(t *testing.T) {
	var got wp.Query
	c := NewCollector(&fakeSource{listFn: func(ctx context.Context, kind wp.Kind, q wp.Query) ([]wp.Entity, error) {
		got = q
		return nil, nil
	}})
	if _, _, err := c.Collect(context.Background(), wp.KindPages, Filters{Include: []int{3, 4}, Menu: 7}); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(got.Include) != 2 || got.Menus != 7 || got.PerPage != DefaultPageSize {
		t.Errorf("query = %+v", got)
	}
}
