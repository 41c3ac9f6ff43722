package sync

import (
	"context"
	"fmt"
	"sort"

	"wordpress-sync/internal/infra/logx"
	"wordpress-sync/internal/wp"
)

// ResolveAncestors unions the given hierarchical entities with every ancestor
// reachable by following parent references until the roots. The result keeps
// children in the same list as their resolved ancestors; import order is
// imposed later by the importer, not here.
//
// A parent ID that resolves to nothing (broken reference) simply ends its
// chain: missing ancestors are a silent partial-chain condition, never an
// error. The visited set bounds the walk, so a cyclic parent reference in
// malformed source data terminates instead of looping.
func ResolveAncestors(ctx context.Context, c *Collector, kind wp.Kind, entities []wp.Entity) ([]wp.Entity, []ErrorRecord) {
	out := append([]wp.Entity(nil), entities...)
	have := make(map[int]bool, len(entities))
	for _, e := range entities {
		if e.ID != 0 {
			have[e.ID] = true
		}
	}

	visited := make(map[int]bool)
	frontier := nextFrontier(entities, have, visited)

	var soft []ErrorRecord
	for len(frontier) > 0 {
		ents, errs, err := c.Collect(ctx, kind, Filters{Include: frontier})
		soft = append(soft, errs...)
		if err != nil {
			soft = append(soft, ErrorRecord{Phase: "resolve", Kind: kind, Item: fmt.Sprintf("ancestors %v", frontier), Err: err})
			break
		}
		if missing := len(frontier) - len(ents); missing > 0 {
			logx.Debugf("resolve %s: %d ancestor id(s) of %v resolved to nothing", kind, missing, frontier)
		}
		for _, e := range ents {
			if !have[e.ID] {
				have[e.ID] = true
				out = append(out, e)
			}
		}
		frontier = nextFrontier(ents, have, visited)
	}
	return out, soft
}

// nextFrontier returns the parent IDs of ents that are not yet in the working
// set and have not been requested before, excluding roots (parent == 0).
func nextFrontier(ents []wp.Entity, have, visited map[int]bool) []int {
	var next []int
	for _, e := range ents {
		p := e.Parent
		if p == 0 || have[p] || visited[p] {
			continue
		}
		visited[p] = true
		next = append(next, p)
	}
	sort.Ints(next)
	return next
}
