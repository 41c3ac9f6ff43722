package sync

import (
	"context"
	"sort"
	"testing"

	"wordpress-sync/internal/wp"
)

// registrySource serves entities by the Include filter from a fixed registry.
func registrySource(reg map[int]wp.Entity) *fakeSource {
	return &fakeSource{listFn: func(ctx context.Context, kind wp.Kind, q wp.Query) ([]wp.Entity, error) {
		var out []wp.Entity
		for _, id := range q.Include {
			if e, ok := reg[id]; ok {
				out = append(out, e)
			}
		}
		return out, nil
	}}
}

func ids(ents []wp.Entity) []int {
	out := make([]int, len(ents))
	for i, e := range ents {
		out[i] = e.ID
	}
	sort.Ints(out)
	return out
}

func TestResolveAncestorsClosesChain(t *testing.T) {
	reg := map[int]wp.Entity{
		1: {ID: 1, Parent: 0, Slug: "root"},
		2: {ID: 2, Parent: 1, Slug: "child"},
		3: {ID: 3, Parent: 2, Slug: "grandchild"},
	}
	c := NewCollector(registrySource(reg))

	out, soft := ResolveAncestors(context.Background(), c, wp.KindPages, []wp.Entity{reg[3]})
	if len(soft) != 0 {
		t.Fatalf("soft = %+v", soft)
	}
	got := ids(out)
	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Errorf("closure = %v, want [1 2 3]", got)
	}
}

func TestResolveAncestorsNoDuplicates(t *testing.T) {
	reg := map[int]wp.Entity{
		1: {ID: 1, Parent: 0},
		2: {ID: 2, Parent: 1},
		3: {ID: 3, Parent: 1},
	}
	c := NewCollector(registrySource(reg))

	out, _ := ResolveAncestors(context.Background(), c, wp.KindPages, []wp.Entity{reg[2], reg[3]})
	if got := ids(out); len(got) != 3 {
		t.Errorf("closure = %v, want three distinct entities", got)
	}
}

func TestResolveAncestorsBrokenChainIsSilent(t *testing.T) {
	c := NewCollector(registrySource(map[int]wp.Entity{}))

	orphan := wp.Entity{ID: 5, Parent: 99, Slug: "orphan"}
	out, soft := ResolveAncestors(context.Background(), c, wp.KindPages, []wp.Entity{orphan})
	if len(soft) != 0 {
		t.Fatalf("broken chain must not error: %+v", soft)
	}
	if got := ids(out); len(got) != 1 || got[0] != 5 {
		t.Errorf("closure = %v, want [5]", got)
	}
}

func TestResolveAncestorsTerminatesOnCycle(t *testing.T) {
	reg := map[int]wp.Entity{
		1: {ID: 1, Parent: 2},
		2: {ID: 2, Parent: 1},
	}
	c := NewCollector(registrySource(reg))

	out, soft := ResolveAncestors(context.Background(), c, wp.KindPages, []wp.Entity{reg[1]})
	if len(soft) != 0 {
		t.Fatalf("cycle must not error: %+v", soft)
	}
	if got := ids(out); len(got) != 2 {
		t.Errorf("closure = %v, want [1 2]", got)
	}
}

func TestResolveAncestorsRootsUntouched(t *testing.T) {
	calls := 0
	src := &fakeSource{listFn: func(ctx context.Context, kind wp.Kind, q wp.Query) ([]wp.Entity, error) {
		calls++
		return nil, nil
	}}
	c := NewCollector(src)

	roots := []wp.Entity{{ID: 1}, {ID: 2}}
	out, _ := ResolveAncestors(context.Background(), c, wp.KindPages, roots)
	if len(out) != 2 || calls != 0 {
		t.Errorf("root-only set triggered %d collection calls, out=%v", calls, ids(out))
	}
}
