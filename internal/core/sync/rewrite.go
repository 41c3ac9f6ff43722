package sync

import (
	"strings"

	"wordpress-sync/internal/wp"
)

// RewriteDomain replaces every literal occurrence of fromOrigin inside each
// entity's rendered content with toOrigin. Pure and total; once the source
// origin no longer occurs, running it again changes nothing.
func RewriteDomain(entities []wp.Entity, fromOrigin, toOrigin string) []wp.Entity {
	if fromOrigin == "" || fromOrigin == toOrigin {
		return entities
	}
	out := make([]wp.Entity, len(entities))
	for i, e := range entities {
		ce := e.Clone()
		if body := ce.Rendered("content"); strings.Contains(body, fromOrigin) {
			ce.SetRendered("content", strings.ReplaceAll(body, fromOrigin, toOrigin))
		}
		out[i] = ce
	}
	return out
}

// RewriteMenuItemURLs substitutes the source origin in absolute menu-item
// targets so internal links keep pointing at the destination.
func RewriteMenuItemURLs(items []wp.MenuItem, fromOrigin, toOrigin string) []wp.MenuItem {
	if fromOrigin == "" || fromOrigin == toOrigin {
		return items
	}
	out := make([]wp.MenuItem, len(items))
	for i, mi := range items {
		mi.URL = strings.ReplaceAll(mi.URL, fromOrigin, toOrigin)
		out[i] = mi
	}
	return out
}
