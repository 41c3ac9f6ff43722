package sync

import (
	"context"
	"fmt"
	"strings"

	"wordpress-sync/internal/wp"
)

// SourceAPI is the slice of the client the collection side needs.
type SourceAPI interface {
	ListPage(ctx context.Context, kind wp.Kind, q wp.Query) ([]wp.Entity, error)
	GetSettings(ctx context.Context) (wp.Settings, error)
	DownloadMedia(ctx context.Context, sourceURL string) ([]byte, string, error)
	Origin() string
}

// DestAPI is the slice of the client the import side needs.
type DestAPI interface {
	Get(ctx context.Context, kind wp.Kind, id int) (wp.Entity, error)
	Create(ctx context.Context, kind wp.Kind, payload map[string]any) (wp.Entity, error)
	Update(ctx context.Context, kind wp.Kind, id int, payload map[string]any) (wp.Entity, error)
	FindBySlug(ctx context.Context, kind wp.Kind, slug string) ([]wp.Entity, error)
	UploadMedia(ctx context.Context, m wp.Media) (wp.Entity, error)
	UpdateSettings(ctx context.Context, s wp.Settings) (wp.Settings, error)
	Remap(ctx context.Context, r wp.RemapRequest) error
	Origin() string
}

// WorkingSet is the in-memory collection of entities assembled for one run.
// It is owned by the orchestrator for the run's lifetime and never shared
// across concurrent runs.
type WorkingSet struct {
	Pages     []wp.Entity
	Posts     []wp.Entity
	Media     []wp.Media
	Menus     []wp.Menu
	MenuItems []wp.MenuItem
	Settings  wp.Settings

	// Static marks a manifest-sourced run; it gates the homepage settings
	// patch and the deferred-reference resolution paths.
	Static bool
}

// ParseKinds parses a comma-separated kind selection. Empty input selects
// every kind.
func ParseKinds(s string) ([]wp.Kind, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return append(append([]wp.Kind(nil), wp.CollectionKinds...), wp.KindSettings), nil
	}
	var kinds []wp.Kind
	for _, part := range strings.Split(s, ",") {
		k := wp.Kind(strings.TrimSpace(part))
		switch k {
		case wp.KindMedia, wp.KindPages, wp.KindPosts, wp.KindMenus, wp.KindMenuItems, wp.KindSettings:
			kinds = append(kinds, k)
		default:
			return nil, fmt.Errorf("unknown kind %q", part)
		}
	}
	return kinds, nil
}

func hasKind(kinds []wp.Kind, k wp.Kind) bool {
	for _, kind := range kinds {
		if kind == k {
			return true
		}
	}
	return false
}
