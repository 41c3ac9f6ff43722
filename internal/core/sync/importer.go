package sync

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"wordpress-sync/internal/infra/logx"
	"wordpress-sync/internal/wp"
)

// Importer upserts a working set onto the destination in dependency order:
// media, pages, posts, menus, menu-items, settings. Later kinds reference
// earlier ones by numeric ID, which is why the order is fixed and why the
// identity-remap protocol exists at all.
//
// Entities are upserted one at a time; the destination offers no
// bulk-identity-preserving endpoint. A single upsert (probe, write, remap) is
// the smallest unit that completes or does not happen; there is no rollback
// of committed entities.
type Importer struct {
	api    DestAPI
	notify Notifier
}

// ImportResult is the outcome of one import pass: the slug-to-destination-ID
// mapping per kind plus every recorded failure.
type ImportResult struct {
	CreatedByKind map[wp.Kind]map[string]int
	Errors        []ErrorRecord

	// Failed marks a structural failure: at least one kind's phase was
	// abandoned. Completed kinds' writes stand regardless.
	Failed bool

	// menuIDs maps source menu IDs to destination IDs. The two differ only
	// when a menu missed its ID probe but matched by slug, in which case the
	// destination row keeps its own ID and items must follow it there.
	menuIDs map[int]int
}

func NewImporter(api DestAPI, notify Notifier) *Importer {
	if notify == nil {
		notify = NopNotifier{}
	}
	return &Importer{api: api, notify: notify}
}

// ImportAll runs every import phase. The returned error is non-nil only for
// cancellation; entity- and phase-level failures are reported through the
// result instead.
func (im *Importer) ImportAll(ctx context.Context, ws *WorkingSet) (*ImportResult, error) {
	res := &ImportResult{
		CreatedByKind: make(map[wp.Kind]map[string]int),
		menuIDs:       make(map[int]int),
	}

	phases := []struct {
		kind wp.Kind
		run  func(context.Context, *WorkingSet, *ImportResult) error
	}{
		{wp.KindMedia, im.importMedia},
		{wp.KindPages, func(ctx context.Context, ws *WorkingSet, res *ImportResult) error {
			return im.importEntities(ctx, wp.KindPages, ws.Pages, res)
		}},
		{wp.KindPosts, func(ctx context.Context, ws *WorkingSet, res *ImportResult) error {
			return im.importEntities(ctx, wp.KindPosts, ws.Posts, res)
		}},
		{wp.KindMenus, im.importMenus},
		{wp.KindMenuItems, im.importMenuItems},
		{wp.KindSettings, im.importSettings},
	}

	for _, p := range phases {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		im.notify.Notify(ProgressEvent{Stage: StageImport, Kind: p.kind})
		if err := p.run(ctx, ws, res); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return res, err
			}
			// structural: abandon this kind, keep going with the rest
			res.Failed = true
			res.Errors = append(res.Errors, ErrorRecord{Phase: "import", Kind: p.kind, Item: "phase", Err: err})
			logx.Errorf("import %s: %v", p.kind, err)
		}
	}
	return res, nil
}

// upsert runs the identity-preservation protocol for one entity payload:
//
//  1. probe the destination for the source ID; a hit means update
//  2. create with the ID stripped when the probe missed, so the destination
//     assigns a fresh row
//  3. remap the fresh row back to the original ID through the side channel
//     and force the in-memory result to that ID, so downstream references
//     keep resolving by the source's numbers
func (im *Importer) upsert(ctx context.Context, kind wp.Kind, sourceID int, slug string, payload map[string]any, locations []string) (wp.Entity, error) {
	matchID := 0
	existingID := 0

	if sourceID != 0 {
		_, err := im.api.Get(ctx, kind, sourceID)
		switch {
		case err == nil:
			matchID = sourceID
		case errors.Is(err, wp.ErrNotFound):
			existingID = sourceID
			delete(payload, "id")
		default:
			return wp.Entity{}, &PhaseError{Phase: "import", Kind: kind, Err: fmt.Errorf("id probe %d: %w", sourceID, err)}
		}

		// menus get a second chance by slug: the same menu re-created on the
		// destination under a different row ID is still the same menu
		if matchID == 0 && kind == wp.KindMenus && slug != "" {
			if found, err := im.api.FindBySlug(ctx, kind, slug); err == nil && len(found) > 0 {
				matchID = found[0].ID
				existingID = 0
			}
		}
	} else {
		delete(payload, "id")
		// ID-less manifest entities stay idempotent through a slug probe
		if slug != "" {
			if found, err := im.api.FindBySlug(ctx, kind, slug); err == nil && len(found) > 0 {
				matchID = found[0].ID
			}
		}
	}

	var out wp.Entity
	var err error
	if matchID != 0 {
		out, err = im.api.Update(ctx, kind, matchID, payload)
	} else {
		out, err = im.api.Create(ctx, kind, payload)
	}
	if err != nil {
		return wp.Entity{}, err
	}

	if existingID != 0 && out.ID != existingID {
		req := wp.RemapRequest{ID: out.ID, NewID: existingID, Kind: kind, Locations: locations}
		if err := im.api.Remap(ctx, req); err != nil {
			return wp.Entity{}, err
		}
		out.ID = existingID
	}
	return out, nil
}

// importEntities imports one hierarchical kind, parents before children.
func (im *Importer) importEntities(ctx context.Context, kind wp.Kind, ents []wp.Entity, res *ImportResult) error {
	created := ensureKindMap(res, kind)
	ordered := orderByHierarchy(ents)
	for i, e := range ordered {
		if err := ctx.Err(); err != nil {
			return err
		}
		rc := &wp.RetryCounters{}
		ictx := wp.WithRetryCounters(ctx, rc)

		payload := e.Payload()
		normalizeRenderedFields(payload)

		out, err := im.upsert(ictx, kind, e.ID, e.Slug, payload, nil)
		if rc.Total > 0 {
			logx.Debugf("import %s %q: %d retries (429=%d 5xx=%d net=%d)", kind, e.Slug, rc.Total, rc.Status429, rc.Status5xx, rc.Net)
		}
		if err != nil {
			var pe *PhaseError
			if errors.As(err, &pe) {
				return err
			}
			res.Errors = append(res.Errors, ErrorRecord{Phase: "import", Kind: kind, Item: e.Slug, Err: err})
			continue
		}
		slug := out.Slug
		if slug == "" {
			slug = e.Slug
		}
		created[slug] = out.ID
		im.notify.Notify(ProgressEvent{Stage: StageImport, Kind: kind, Done: i + 1, Total: len(ordered)})
	}
	return nil
}

// importMedia uploads each import-eligible blob. An existing destination row
// with the same ID gets a metadata update instead of a re-upload; a missing
// row is created and remapped like any other kind.
func (im *Importer) importMedia(ctx context.Context, ws *WorkingSet, res *ImportResult) error {
	created := ensureKindMap(res, wp.KindMedia)
	for i, m := range ws.Media {
		if err := ctx.Err(); err != nil {
			return err
		}
		key := mediaKey(m)
		if len(m.Blob) == 0 {
			// blob fetch failed upstream; never partially import
			res.Errors = append(res.Errors, ErrorRecord{Phase: "import", Kind: wp.KindMedia, Item: key, Err: errors.New("no blob fetched")})
			continue
		}

		existingID := 0
		if m.ID != 0 {
			_, err := im.api.Get(ctx, wp.KindMedia, m.ID)
			switch {
			case err == nil:
				if _, err := im.api.Update(ctx, wp.KindMedia, m.ID, mediaMetaPayload(m)); err != nil {
					res.Errors = append(res.Errors, ErrorRecord{Phase: "import", Kind: wp.KindMedia, Item: key, Err: err})
					continue
				}
				created[key] = m.ID
				im.notify.Notify(ProgressEvent{Stage: StageImport, Kind: wp.KindMedia, Done: i + 1, Total: len(ws.Media)})
				continue
			case errors.Is(err, wp.ErrNotFound):
				existingID = m.ID
			default:
				return &PhaseError{Phase: "import", Kind: wp.KindMedia, Err: fmt.Errorf("id probe %d: %w", m.ID, err)}
			}
		} else if slug := mediaSlug(m); slug != "" {
			// ID-less manifest media stay idempotent through a slug probe:
			// an earlier run's upload is updated in place, never re-uploaded
			if found, err := im.api.FindBySlug(ctx, wp.KindMedia, slug); err == nil && len(found) > 0 {
				if _, err := im.api.Update(ctx, wp.KindMedia, found[0].ID, mediaMetaPayload(m)); err != nil {
					res.Errors = append(res.Errors, ErrorRecord{Phase: "import", Kind: wp.KindMedia, Item: key, Err: err})
					continue
				}
				created[key] = found[0].ID
				im.notify.Notify(ProgressEvent{Stage: StageImport, Kind: wp.KindMedia, Done: i + 1, Total: len(ws.Media)})
				continue
			}
		}

		out, err := im.api.UploadMedia(ctx, m)
		if err != nil {
			res.Errors = append(res.Errors, ErrorRecord{Phase: "import", Kind: wp.KindMedia, Item: key, Err: err})
			continue
		}
		if existingID != 0 && out.ID != existingID {
			if err := im.api.Remap(ctx, wp.RemapRequest{ID: out.ID, NewID: existingID, Kind: wp.KindMedia}); err != nil {
				res.Errors = append(res.Errors, ErrorRecord{Phase: "import", Kind: wp.KindMedia, Item: key, Err: err})
				continue
			}
			out.ID = existingID
		}
		created[key] = out.ID
		im.notify.Notify(ProgressEvent{Stage: StageImport, Kind: wp.KindMedia, Done: i + 1, Total: len(ws.Media)})
	}
	return nil
}

func (im *Importer) importMenus(ctx context.Context, ws *WorkingSet, res *ImportResult) error {
	created := ensureKindMap(res, wp.KindMenus)
	for i, menu := range ws.Menus {
		if err := ctx.Err(); err != nil {
			return err
		}
		payload := map[string]any{"name": menu.Name}
		if menu.Slug != "" {
			payload["slug"] = menu.Slug
		}
		if len(menu.Locations) > 0 {
			payload["locations"] = menu.Locations
		}
		out, err := im.upsert(ctx, wp.KindMenus, menu.ID, menu.Slug, payload, menu.Locations)
		if err != nil {
			var pe *PhaseError
			if errors.As(err, &pe) {
				return err
			}
			res.Errors = append(res.Errors, ErrorRecord{Phase: "import", Kind: wp.KindMenus, Item: menu.Slug, Err: err})
			continue
		}
		slug := out.Slug
		if slug == "" {
			slug = menu.Slug
		}
		created[slug] = out.ID
		if menu.ID != 0 {
			res.menuIDs[menu.ID] = out.ID
		}
		im.notify.Notify(ProgressEvent{Stage: StageImport, Kind: wp.KindMenus, Done: i + 1, Total: len(ws.Menus)})
	}
	return nil
}

// importMenuItems upserts menu items parents-first, resolving the deferred
// references a manifest run leaves behind: slug_ref becomes the imported
// page's destination ID, menu_ref the imported menu's, and a sub-item's
// parent becomes its parent item's destination ID with a sequential
// menu_order.
func (im *Importer) importMenuItems(ctx context.Context, ws *WorkingSet, res *ImportResult) error {
	created := ensureKindMap(res, wp.KindMenuItems)
	pages := res.CreatedByKind[wp.KindPages]
	menus := res.CreatedByKind[wp.KindMenus]

	// destination IDs by source key; the key is the source item ID, or the
	// 1-based ordinal for ID-less manifest items
	itemIDs := make(map[int]int)
	orderSeq := make(map[int]int)

	ordered := orderMenuItems(ws.MenuItems)
	for n, oi := range ordered {
		if err := ctx.Err(); err != nil {
			return err
		}
		mi := oi.item
		key := oi.sourceKey

		// manifest items carry no source IDs; a slug derived from the menu
		// and the item's ordinal keeps a repeat run matching the same row
		itemSlug := ""
		if mi.ID == 0 {
			itemSlug = menuItemSlug(mi, key)
		}

		if mi.SlugRef != "" {
			if id, ok := pages[mi.SlugRef]; ok {
				mi.ObjectID = id
			} else {
				res.Errors = append(res.Errors, ErrorRecord{
					Phase: "import", Kind: wp.KindMenuItems, Item: mi.Title,
					Err: fmt.Errorf("deferred page reference %q not in created set", mi.SlugRef),
				})
			}
			mi.SlugRef = ""
		}
		if mi.MenuRef != "" {
			if id, ok := menus[mi.MenuRef]; ok {
				mi.Menu = id
			}
			mi.MenuRef = ""
		} else if id, ok := res.menuIDs[mi.Menu]; ok {
			mi.Menu = id
		}
		if mi.Parent != 0 {
			if destParent, ok := itemIDs[mi.Parent]; ok {
				mi.Parent = destParent
			}
		}
		if mi.MenuOrder == 0 {
			orderSeq[mi.Parent]++
			mi.MenuOrder = orderSeq[mi.Parent]
		}

		payload := mi.Payload()
		if itemSlug != "" {
			payload["slug"] = itemSlug
		}
		out, err := im.upsert(ctx, wp.KindMenuItems, mi.ID, itemSlug, payload, nil)
		if err != nil {
			var pe *PhaseError
			if errors.As(err, &pe) {
				return err
			}
			res.Errors = append(res.Errors, ErrorRecord{Phase: "import", Kind: wp.KindMenuItems, Item: mi.Title, Err: err})
			continue
		}
		itemIDs[key] = out.ID
		created[strconv.Itoa(key)] = out.ID
		im.notify.Notify(ProgressEvent{Stage: StageImport, Kind: wp.KindMenuItems, Done: n + 1, Total: len(ordered)})
	}
	return nil
}

// importSettings patches the singleton settings record. For manifest runs the
// homepage assignment waits until here because the front page's destination
// ID does not exist before the pages phase.
func (im *Importer) importSettings(ctx context.Context, ws *WorkingSet, res *ImportResult) error {
	if ws.Settings == nil {
		return nil
	}
	s := make(wp.Settings, len(ws.Settings)+2)
	for k, v := range ws.Settings {
		s[k] = v
	}
	if ws.Static {
		if id, ok := res.CreatedByKind[wp.KindPages]["index"]; ok {
			s["page_on_front"] = id
			s["show_on_front"] = "page"
		}
	}
	if _, err := im.api.UpdateSettings(ctx, s); err != nil {
		res.Errors = append(res.Errors, ErrorRecord{Phase: "import", Kind: wp.KindSettings, Item: "settings", Err: err})
	}
	return nil
}

func ensureKindMap(res *ImportResult, kind wp.Kind) map[string]int {
	if res.CreatedByKind[kind] == nil {
		res.CreatedByKind[kind] = make(map[string]int)
	}
	return res.CreatedByKind[kind]
}

func mediaKey(m wp.Media) string {
	if m.ID != 0 {
		return strconv.Itoa(m.ID)
	}
	if m.FileName != "" {
		return m.FileName
	}
	return m.SourceURL
}

// menuItemSlug derives a stable identity for an ID-less manifest item from
// its menu and depth-first ordinal, both of which are deterministic for a
// given manifest.
func menuItemSlug(mi wp.MenuItem, key int) string {
	if mi.MenuRef != "" {
		return fmt.Sprintf("%s-item-%d", mi.MenuRef, key)
	}
	return fmt.Sprintf("menu-%d-item-%d", mi.Menu, key)
}

// mediaSlug is the identity a destination gives an ID-less upload: the
// declared slug, or the filename without its extension.
func mediaSlug(m wp.Media) string {
	if m.Slug != "" {
		return m.Slug
	}
	if m.FileName != "" {
		return strings.TrimSuffix(m.FileName, path.Ext(m.FileName))
	}
	return ""
}

func mediaMetaPayload(m wp.Media) map[string]any {
	p := map[string]any{}
	if m.Title != "" {
		p["title"] = m.Title
	}
	if m.AltText != "" {
		p["alt_text"] = m.AltText
	}
	if m.Date != "" {
		p["date"] = m.Date
	}
	if m.AttachedPost != 0 {
		p["post"] = m.AttachedPost
	}
	return p
}

// normalizeRenderedFields flattens rendered-object fields to plain strings
// for the write payload and applies the renderer normalization to content.
func normalizeRenderedFields(payload map[string]any) {
	for _, field := range []string{"title", "content", "excerpt"} {
		v, ok := payload[field]
		if !ok {
			continue
		}
		s, ok := renderedString(v)
		if !ok {
			continue
		}
		if field == "content" {
			s = NormalizeRendered(s)
		}
		payload[field] = s
	}
}

func renderedString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case map[string]any:
		if s, ok := t["raw"].(string); ok && s != "" {
			return s, true
		}
		if s, ok := t["rendered"].(string); ok {
			return s, true
		}
	}
	return "", false
}

// orderByHierarchy sorts entities so every parent precedes its children.
// Depth is computed through the in-set parent chain with a visited guard, so
// malformed cyclic data cannot wedge the sort.
func orderByHierarchy(ents []wp.Entity) []wp.Entity {
	byID := make(map[int]wp.Entity, len(ents))
	for _, e := range ents {
		if e.ID != 0 {
			byID[e.ID] = e
		}
	}
	depth := func(e wp.Entity) int {
		d := 0
		seen := map[int]bool{e.ID: true}
		for p := e.Parent; p != 0; {
			pe, ok := byID[p]
			if !ok || seen[p] {
				break
			}
			seen[p] = true
			d++
			p = pe.Parent
		}
		return d
	}
	out := append([]wp.Entity(nil), ents...)
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := depth(out[i]), depth(out[j])
		if di != dj {
			return di < dj
		}
		return out[i].ID < out[j].ID
	})
	return out
}

type orderedItem struct {
	item      wp.MenuItem
	sourceKey int
}

// orderMenuItems assigns source keys (item ID, or 1-based ordinal for
// manifest items) and sorts parents before children.
func orderMenuItems(items []wp.MenuItem) []orderedItem {
	out := make([]orderedItem, len(items))
	keys := make(map[int]int, len(items)) // source key -> slice position
	for i, mi := range items {
		key := mi.ID
		if key == 0 {
			key = i + 1
		}
		out[i] = orderedItem{item: mi, sourceKey: key}
		keys[key] = i
	}
	depth := func(oi orderedItem) int {
		d := 0
		seen := map[int]bool{oi.sourceKey: true}
		for p := oi.item.Parent; p != 0; {
			idx, ok := keys[p]
			if !ok || seen[p] {
				break
			}
			seen[p] = true
			d++
			p = out[idx].item.Parent
		}
		return d
	}
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := depth(out[i]), depth(out[j])
		if di != dj {
			return di < dj
		}
		return out[i].sourceKey < out[j].sourceKey
	})
	return out
}
