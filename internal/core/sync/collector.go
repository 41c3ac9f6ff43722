package sync

import (
	"context"
	"errors"
	"fmt"

	"wordpress-sync/internal/infra/logx"
	"wordpress-sync/internal/wp"
)

// DefaultPageSize is the fixed collection page size.
const DefaultPageSize = 100

// Filters restricts a collection to explicit IDs or association values; zero
// values mean unfiltered.
type Filters struct {
	Include []int
	Parent  []int
	Menu    int
}

// Collector fetches all items of one kind from a source, across pages.
//
// Collection is best effort by design: when a page past the first fails, the
// already-collected pages are returned together with a soft error record and
// the failed page is not retried beyond the transport's own retries. This
// favors forward progress over strict completeness and is a documented
// limitation, not an accident.
type Collector struct {
	api     SourceAPI
	perPage int
}

// NewCollector creates a collector with the fixed default page size.
func NewCollector(api SourceAPI) *Collector {
	return &Collector{api: api, perPage: DefaultPageSize}
}

// Collect fetches every item of kind matching f. A kind whose very first page
// fails yields a CollectionError; later failures yield partial results plus
// soft error records. The settings kind is a singleton: exactly one request,
// no pagination.
func (c *Collector) Collect(ctx context.Context, kind wp.Kind, f Filters) ([]wp.Entity, []ErrorRecord, error) {
	if kind == wp.KindSettings {
		s, err := c.CollectSettings(ctx)
		if err != nil {
			return nil, nil, &CollectionError{Kind: kind, Err: err}
		}
		return []wp.Entity{{Fields: map[string]any(s)}}, nil, nil
	}

	var all []wp.Entity
	var soft []ErrorRecord
	page := 1
	for {
		ents, err := c.api.ListPage(ctx, kind, wp.Query{
			Page:    page,
			PerPage: c.perPage,
			Include: f.Include,
			Parent:  f.Parent,
			Menus:   f.Menu,
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return all, soft, err
			}
			if page == 1 {
				return nil, nil, &CollectionError{Kind: kind, Err: err}
			}
			// best-effort: keep what we have, record the bad page
			logx.Warnf("collect %s: page %d failed, keeping %d items: %v", kind, page, len(all), err)
			soft = append(soft, ErrorRecord{Phase: "collect", Kind: kind, Item: fmt.Sprintf("page %d", page), Err: err})
			return all, soft, nil
		}
		if len(ents) == 0 {
			return all, soft, nil
		}
		all = append(all, ents...)
		if len(ents) < c.perPage {
			return all, soft, nil
		}
		page++
	}
}

// CollectSettings fetches the singleton settings record.
func (c *Collector) CollectSettings(ctx context.Context) (wp.Settings, error) {
	return c.api.GetSettings(ctx)
}
