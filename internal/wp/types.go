package wp

import (
	"encoding/json"
	"fmt"
)

// Kind identifies one entity taxonomy of the REST surface.
type Kind string

const (
	KindMedia     Kind = "media"
	KindPages     Kind = "pages"
	KindPosts     Kind = "posts"
	KindMenus     Kind = "menus"
	KindMenuItems Kind = "menu-items"
	KindSettings  Kind = "settings"
)

// CollectionKinds lists the paginated kinds in their import dependency order.
// Settings is a singleton and handled separately.
var CollectionKinds = []Kind{KindMedia, KindPages, KindPosts, KindMenus, KindMenuItems}

// kindRoutes maps a kind to its REST route segment. The endpoint mapping is a
// configuration table, not logic; reimplementations targeting other backends
// swap this table out.
var kindRoutes = map[Kind]string{
	KindMedia:     "media",
	KindPages:     "pages",
	KindPosts:     "posts",
	KindMenus:     "menus",
	KindMenuItems: "menu-items",
	KindSettings:  "settings",
}

// defaultFields is the default projection per kind: identity, content and the
// metadata downstream hierarchy resolution and rewriting need.
var defaultFields = map[Kind][]string{
	KindPages:     {"id", "parent", "slug", "title", "content", "status", "date", "menu_order", "featured_media", "link"},
	KindPosts:     {"id", "parent", "slug", "title", "content", "status", "date", "featured_media", "link"},
	KindMedia:     {"id", "slug", "source_url", "title", "alt_text", "date", "mime_type", "post"},
	KindMenus:     {"id", "name", "slug", "locations"},
	KindMenuItems: {"id", "menus", "parent", "object_id", "url", "title", "menu_order", "status"},
}

// RouteFor returns the REST route segment for a kind.
func RouteFor(kind Kind) (string, error) {
	r, ok := kindRoutes[kind]
	if !ok {
		return "", fmt.Errorf("unknown kind %q", kind)
	}
	return r, nil
}

// DefaultFields returns the default field projection for a kind (nil for settings).
func DefaultFields(kind Kind) []string {
	return defaultFields[kind]
}

// Entity is one tagged record. Identity fields are lifted out of the payload;
// everything else stays in Fields so unknown fields survive a round trip
// through the engine untouched.
type Entity struct {
	ID     int
	Parent int
	Slug   string
	Fields map[string]any
}

// UnmarshalJSON decodes a REST payload, lifting id/parent/slug.
func (e *Entity) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	e.ID = popInt(m, "id")
	e.Parent = popInt(m, "parent")
	if s, ok := m["slug"].(string); ok {
		e.Slug = s
		delete(m, "slug")
	}
	e.Fields = m
	return nil
}

// MarshalJSON merges the lifted fields back into the payload. A zero ID is
// omitted so the destination assigns one on create.
func (e Entity) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Payload())
}

// Payload returns the wire representation as a map, suitable for upserts.
func (e Entity) Payload() map[string]any {
	m := make(map[string]any, len(e.Fields)+3)
	for k, v := range e.Fields {
		m[k] = v
	}
	if e.ID != 0 {
		m["id"] = e.ID
	}
	// parent is always sent so an update can move an entity back to root
	m["parent"] = e.Parent
	if e.Slug != "" {
		m["slug"] = e.Slug
	}
	return m
}

// Clone returns a deep-enough copy: the Fields map is copied one level down,
// which covers every mutation the engine performs.
func (e Entity) Clone() Entity {
	c := e
	c.Fields = make(map[string]any, len(e.Fields))
	for k, v := range e.Fields {
		c.Fields[k] = v
	}
	return c
}

// Rendered returns the rendered text of a field. The REST API wraps rendered
// fields as {"rendered": "..."} while create payloads carry plain strings;
// both shapes are accepted.
func (e Entity) Rendered(field string) string {
	switch v := e.Fields[field].(type) {
	case string:
		return v
	case map[string]any:
		if s, ok := v["rendered"].(string); ok {
			return s
		}
		if s, ok := v["raw"].(string); ok {
			return s
		}
	}
	return ""
}

// SetRendered writes a field back preserving whichever shape it had. The
// rendered-object map is replaced, not mutated, so clones stay independent.
func (e *Entity) SetRendered(field, s string) {
	if e.Fields == nil {
		e.Fields = make(map[string]any)
	}
	if v, ok := e.Fields[field].(map[string]any); ok {
		nv := make(map[string]any, len(v))
		for k, val := range v {
			nv[k] = val
		}
		nv["rendered"] = s
		e.Fields[field] = nv
		return
	}
	e.Fields[field] = s
}

// IntField reads an integer field from the payload bag.
func (e Entity) IntField(field string) int {
	return asInt(e.Fields[field])
}

// FeaturedMedia returns the featured image ID, 0 when unset.
func (e Entity) FeaturedMedia() int { return e.IntField("featured_media") }

// Media is the typed media variant. Blob is populated by the reference
// scanner's fetch step; an item without a blob is not import-eligible.
type Media struct {
	ID           int
	Slug         string
	SourceURL    string
	Title        string
	AltText      string
	Date         string
	MimeType     string
	AttachedPost int
	FileName     string // upload filename, derived from SourceURL for live items
	UploadPath   string // date bucket (YYYY/MM) for manifest-synthesized items
	Blob         []byte
}

// MediaFromEntity converts a collected entity into the typed media variant.
func MediaFromEntity(e Entity) Media {
	return Media{
		ID:           e.ID,
		Slug:         e.Slug,
		SourceURL:    str(e.Fields["source_url"]),
		Title:        e.Rendered("title"),
		AltText:      str(e.Fields["alt_text"]),
		Date:         str(e.Fields["date"]),
		MimeType:     str(e.Fields["mime_type"]),
		AttachedPost: asInt(e.Fields["post"]),
	}
}

// Menu is the typed menu variant.
type Menu struct {
	ID        int      `json:"id,omitempty"`
	Name      string   `json:"name"`
	Slug      string   `json:"slug,omitempty"`
	Locations []string `json:"locations,omitempty"`
}

// MenuFromEntity converts a collected entity into the typed menu variant.
func MenuFromEntity(e Entity) Menu {
	m := Menu{ID: e.ID, Slug: e.Slug, Name: str(e.Fields["name"])}
	if locs, ok := e.Fields["locations"].([]any); ok {
		for _, l := range locs {
			if s, ok := l.(string); ok {
				m.Locations = append(m.Locations, s)
			}
		}
	}
	return m
}

// MenuItem is the typed menu-item variant. SlugRef and MenuRef are deferred
// references used only for manifest-synthesized items: they name a page slug
// (respectively a menu slug) whose destination ID is not known until that
// entity has been imported. For manifest items, which carry no source IDs,
// Parent holds the 1-based ordinal of the parent item within the working set.
type MenuItem struct {
	ID        int
	Menu      int
	Parent    int
	ObjectID  int
	URL       string
	Title     string
	MenuOrder int
	SlugRef   string
	MenuRef   string
}

// MenuItemFromEntity converts a collected entity into the typed variant.
func MenuItemFromEntity(e Entity) MenuItem {
	return MenuItem{
		ID:        e.ID,
		Menu:      asInt(e.Fields["menus"]),
		Parent:    e.Parent,
		ObjectID:  asInt(e.Fields["object_id"]),
		URL:       str(e.Fields["url"]),
		Title:     e.Rendered("title"),
		MenuOrder: asInt(e.Fields["menu_order"]),
	}
}

// Payload returns the upsert payload for a menu item. The deferred SlugRef is
// never sent over the wire.
func (mi MenuItem) Payload() map[string]any {
	m := map[string]any{
		"title":      mi.Title,
		"url":        mi.URL,
		"menus":      mi.Menu,
		"menu_order": mi.MenuOrder,
		"status":     "publish",
		"parent":     mi.Parent,
	}
	if mi.ObjectID != 0 {
		m["object_id"] = mi.ObjectID
		m["object"] = "page"
		m["type"] = "post_type"
	} else {
		m["type"] = "custom"
	}
	return m
}

// Settings is the singleton settings record. It is a plain field bag: the
// settings endpoint genuinely accepts arbitrary option fields, so this is the
// one place a raw map is the honest representation.
type Settings map[string]any

// Title returns the site title option.
func (s Settings) Title() string { return str(s["title"]) }

// RemapRequest is the identity-remap side channel payload. Locations is only
// set for menus, whose location assignment can detach when the row ID changes.
type RemapRequest struct {
	ID        int      `json:"id"`
	NewID     int      `json:"newId"`
	Kind      Kind     `json:"kind"`
	Locations []string `json:"locations,omitempty"`
}

func popInt(m map[string]any, key string) int {
	v, ok := m[key]
	if !ok {
		return 0
	}
	delete(m, key)
	return asInt(v)
}

func asInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case json.Number:
		i, _ := n.Int64()
		return int(i)
	}
	return 0
}

func str(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	// rendered-object shape
	if m, ok := v.(map[string]any); ok {
		if s, ok := m["rendered"].(string); ok {
			return s
		}
	}
	return ""
}
