package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wordpress-sync/internal/infra/logx"
	"wordpress-sync/internal/wp"
)

// Adapter turns a static site manifest directory into a working set shaped
// like one collected from a live source. The destination origin is needed to
// rewrite media file references in page content.
type Adapter interface {
	Adapt(dir, destOrigin string) (*WorkingSet, error)
}

// RunOptions selects what a run covers. Empty Kinds means everything; the
// include lists narrow pages, posts and media to explicit source IDs.
type RunOptions struct {
	Kinds        []wp.Kind
	IncludePages []int
	IncludePosts []int
	IncludeMedia []int
	StaticDir    string
}

// Orchestrator drives one run end to end: collect (or adapt a manifest),
// resolve ancestors, select and fetch media, rewrite domains, import. Phases
// run strictly in sequence; each consumes the previous phase's complete
// output.
type Orchestrator struct {
	src     SourceAPI
	dst     DestAPI
	adapter Adapter
	notify  Notifier
}

// NewOrchestrator wires a run. src may be nil when every run will be
// manifest-sourced; adapter may be nil when none will be.
func NewOrchestrator(src SourceAPI, dst DestAPI, adapter Adapter, notify Notifier) *Orchestrator {
	if notify == nil {
		notify = NopNotifier{}
	}
	return &Orchestrator{src: src, dst: dst, adapter: adapter, notify: notify}
}

// Run executes one sync. The returned error is non-nil only for cancellation
// or a configuration problem detected before any network traffic; everything
// else lands in the report.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) (*Report, error) {
	report := NewReport()
	kinds := opts.Kinds
	if len(kinds) == 0 {
		kinds, _ = ParseKinds("")
	}

	var ws *WorkingSet
	var err error
	if opts.StaticDir != "" {
		if o.adapter == nil {
			return nil, errors.New("static run requested but no manifest adapter configured")
		}
		ws, err = o.adapter.Adapt(opts.StaticDir, o.dst.Origin())
		if err != nil {
			return nil, fmt.Errorf("adapt manifest: %w", err)
		}
		ws.Static = true
	} else {
		if o.src == nil {
			return nil, errors.New("no source configured")
		}
		ws, err = o.assemble(ctx, kinds, opts, report)
		if err != nil {
			return report, err
		}
	}

	ws = pruneUnselected(ws, kinds)

	importer := NewImporter(o.dst, o.notify)
	ires, err := importer.ImportAll(ctx, ws)
	if ires != nil {
		for kind, created := range ires.CreatedByKind {
			if len(created) > 0 || report.CollectedByKind[kind] > 0 {
				report.ImportedByKind[kind] = len(created)
			}
		}
		report.Record(ires.Errors...)
		if ires.Failed {
			report.Failed = true
		}
	}
	report.Finished = time.Now()
	if err != nil {
		return report, err
	}

	o.notify.Notify(ProgressEvent{Stage: StageDone})
	return report, nil
}

// assemble collects everything the selected kinds need from the live source
// and rewrites source-origin references to the destination.
func (o *Orchestrator) assemble(ctx context.Context, kinds []wp.Kind, opts RunOptions, report *Report) (*WorkingSet, error) {
	c := NewCollector(o.src)
	ws := &WorkingSet{}

	if hasKind(kinds, wp.KindPages) {
		pages, err := o.collectKind(ctx, c, wp.KindPages, Filters{Include: opts.IncludePages}, report)
		if err != nil {
			return nil, err
		}
		if len(opts.IncludePages) > 0 {
			o.notify.Notify(ProgressEvent{Stage: StageResolve, Kind: wp.KindPages})
			var soft []ErrorRecord
			pages, soft = ResolveAncestors(ctx, c, wp.KindPages, pages)
			report.Record(soft...)
		}
		ws.Pages = pages
		report.CollectedByKind[wp.KindPages] = len(pages)
	}
	if hasKind(kinds, wp.KindPosts) {
		posts, err := o.collectKind(ctx, c, wp.KindPosts, Filters{Include: opts.IncludePosts}, report)
		if err != nil {
			return nil, err
		}
		if len(opts.IncludePosts) > 0 {
			o.notify.Notify(ProgressEvent{Stage: StageResolve, Kind: wp.KindPosts})
			var soft []ErrorRecord
			posts, soft = ResolveAncestors(ctx, c, wp.KindPosts, posts)
			report.Record(soft...)
		}
		ws.Posts = posts
		report.CollectedByKind[wp.KindPosts] = len(posts)
	}

	// the media catalogue is needed whenever pages or posts may reference
	// attachments, not only when media itself is selected
	if hasKind(kinds, wp.KindMedia) || hasKind(kinds, wp.KindPages) || hasKind(kinds, wp.KindPosts) {
		ents, err := o.collectKind(ctx, c, wp.KindMedia, Filters{}, report)
		if err != nil {
			return nil, err
		}
		catalogue := make([]wp.Media, 0, len(ents))
		for _, e := range ents {
			catalogue = append(catalogue, wp.MediaFromEntity(e))
		}
		report.CollectedByKind[wp.KindMedia] = len(catalogue)

		selected := SelectReferencedMedia(catalogue, ws.Pages, ws.Posts, opts.IncludeMedia)
		report.MediaSelected = len(selected)
		if hasKind(kinds, wp.KindMedia) {
			fetched, soft := FetchBlobs(ctx, o.src, selected, o.notify)
			report.Record(soft...)
			ws.Media = fetched
		}
	}

	if hasKind(kinds, wp.KindMenus) {
		ents, err := o.collectKind(ctx, c, wp.KindMenus, Filters{}, report)
		if err != nil {
			return nil, err
		}
		for _, e := range ents {
			ws.Menus = append(ws.Menus, wp.MenuFromEntity(e))
		}
		report.CollectedByKind[wp.KindMenus] = len(ws.Menus)
	}
	if hasKind(kinds, wp.KindMenuItems) {
		ents, err := o.collectKind(ctx, c, wp.KindMenuItems, Filters{}, report)
		if err != nil {
			return nil, err
		}
		for _, e := range ents {
			ws.MenuItems = append(ws.MenuItems, wp.MenuItemFromEntity(e))
		}
		report.CollectedByKind[wp.KindMenuItems] = len(ws.MenuItems)
	}
	if hasKind(kinds, wp.KindSettings) {
		o.notify.Notify(ProgressEvent{Stage: StageCollect, Kind: wp.KindSettings})
		s, err := c.CollectSettings(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			report.Failed = true
			report.Record(ErrorRecord{Phase: "collect", Kind: wp.KindSettings, Item: "settings", Err: err})
		} else {
			ws.Settings = s
			report.CollectedByKind[wp.KindSettings] = 1
		}
	}

	from, to := o.src.Origin(), o.dst.Origin()
	if from != "" && from != to {
		o.notify.Notify(ProgressEvent{Stage: StageRewrite})
		ws.Pages = RewriteDomain(ws.Pages, from, to)
		ws.Posts = RewriteDomain(ws.Posts, from, to)
		ws.MenuItems = RewriteMenuItemURLs(ws.MenuItems, from, to)
	}
	return ws, nil
}

// collectKind collects one kind, converting a total collection failure into a
// failed-but-continuing run. Cancellation propagates as an error.
func (o *Orchestrator) collectKind(ctx context.Context, c *Collector, kind wp.Kind, f Filters, report *Report) ([]wp.Entity, error) {
	o.notify.Notify(ProgressEvent{Stage: StageCollect, Kind: kind})
	ents, soft, err := c.Collect(ctx, kind, f)
	report.Record(soft...)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		var ce *CollectionError
		if errors.As(err, &ce) {
			report.Failed = true
			report.Record(ErrorRecord{Phase: "collect", Kind: kind, Item: "all pages", Err: ce.Err})
			logx.Errorf("collect %s: %v", kind, err)
			return nil, nil
		}
		return nil, err
	}
	return ents, nil
}

// pruneUnselected drops working-set kinds the run did not ask for. Manifest
// adaptation fills every field, so a narrowed static run still honors the
// kind selection.
func pruneUnselected(ws *WorkingSet, kinds []wp.Kind) *WorkingSet {
	if !hasKind(kinds, wp.KindPages) {
		ws.Pages = nil
	}
	if !hasKind(kinds, wp.KindPosts) {
		ws.Posts = nil
	}
	if !hasKind(kinds, wp.KindMedia) {
		ws.Media = nil
	}
	if !hasKind(kinds, wp.KindMenus) {
		ws.Menus = nil
	}
	if !hasKind(kinds, wp.KindMenuItems) {
		ws.MenuItems = nil
	}
	if !hasKind(kinds, wp.KindSettings) {
		ws.Settings = nil
	}
	return ws
}
