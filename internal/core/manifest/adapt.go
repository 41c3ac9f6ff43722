package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"wordpress-sync/internal/core/sync"
	"wordpress-sync/internal/infra/logx"
	"wordpress-sync/internal/wp"
)

// Adapter turns a manifest directory into a working set. The clock is
// injectable because upload paths are date-bucketed.
type Adapter struct {
	now func() time.Time
}

func NewAdapter() *Adapter {
	return &Adapter{now: time.Now}
}

// Adapt loads the manifest in dir and reshapes it: pages become hierarchical
// entities, the media directory becomes blob-carrying media entities, the
// header and footer navigation trees become menus with deferred-reference
// menu items, and the site title becomes the settings record.
//
// Page bodies reference media by literal filename; those references are
// rewritten here to the destination's computed upload URL, since no source
// origin exists for static content.
func (a *Adapter) Adapt(dir, destOrigin string) (*sync.WorkingSet, error) {
	m, err := Load(dir)
	if err != nil {
		return nil, err
	}

	media, err := a.loadMedia(dir)
	if err != nil {
		return nil, err
	}

	ws := &sync.WorkingSet{Static: true, Media: media}

	for _, p := range m.Pages {
		content := rewriteMediaRefs(p.Content, media, destOrigin)
		ws.Pages = append(ws.Pages, wp.Entity{
			Slug: p.Slug,
			Fields: map[string]any{
				"title":   p.Title,
				"content": content,
				"status":  "publish",
			},
		})
	}

	for _, loc := range []struct {
		slug string
		name string
		nav  []NavItem
	}{
		{"header", "Header", m.Site.Header.Nav},
		{"footer", "Footer", m.Site.Footer.Nav},
	} {
		if len(loc.nav) == 0 {
			continue
		}
		ws.Menus = append(ws.Menus, wp.Menu{
			Name:      loc.name,
			Slug:      loc.slug,
			Locations: []string{loc.slug},
		})
		flattenNav(loc.nav, loc.slug, 0, &ws.MenuItems)
	}

	if m.Site.Title != "" {
		ws.Settings = wp.Settings{"title": m.Site.Title}
	}
	return ws, nil
}

// flattenNav appends a navigation tree depth-first. Items carry no source
// IDs, so a child's parent field holds the parent's 1-based position in the
// flattened list; the importer keys ID-less items the same way.
func flattenNav(items []NavItem, menuSlug string, parentOrdinal int, out *[]wp.MenuItem) {
	for _, it := range items {
		mi := wp.MenuItem{
			Title:   it.Title,
			Parent:  parentOrdinal,
			MenuRef: menuSlug,
		}
		if strings.HasPrefix(it.Path, "/") {
			mi.SlugRef = pathSlug(it.Path)
		} else {
			mi.URL = it.Path
		}
		*out = append(*out, mi)
		ordinal := len(*out)
		if len(it.Children) > 0 {
			flattenNav(it.Children, menuSlug, ordinal, out)
		}
	}
}

// pathSlug maps an internal navigation path to the page slug it targets. The
// root path is the generated front page.
func pathSlug(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return "index"
	}
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}

// loadMedia synthesizes media entities from every regular file under the
// manifest's media directory. IDs stay zero; the destination assigns them.
func (a *Adapter) loadMedia(dir string) ([]wp.Media, error) {
	root := MediaDir(dir)
	if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	now := a.now()
	bucket := now.Format("2006/01")
	date := now.Format("2006-01-02T15:04:05")

	var media []wp.Media
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		blob, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read media %s: %w", d.Name(), err)
		}
		mt := mimetype.Detect(blob)
		name := d.Name()
		media = append(media, wp.Media{
			Slug:       strings.TrimSuffix(name, filepath.Ext(name)),
			Title:      strings.TrimSuffix(name, filepath.Ext(name)),
			Date:       date,
			MimeType:   mt.String(),
			FileName:   name,
			UploadPath: bucket,
			Blob:       blob,
		})
		logx.Debugf("manifest media %s (%s, %d bytes)", name, mt.String(), len(blob))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return media, nil
}

// rewriteMediaRefs replaces quoted literal filename references in page
// markup with the destination upload URL the file will land under.
func rewriteMediaRefs(content string, media []wp.Media, destOrigin string) string {
	for _, m := range media {
		url := uploadURL(destOrigin, m)
		for _, ref := range []string{mediaDirName + "/" + m.FileName, m.FileName} {
			content = strings.ReplaceAll(content, `"`+ref+`"`, `"`+url+`"`)
		}
	}
	return content
}

func uploadURL(destOrigin string, m wp.Media) string {
	return strings.TrimRight(destOrigin, "/") + "/wp-content/uploads/" + m.UploadPath + "/" + m.FileName
}
