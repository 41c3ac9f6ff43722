package sync

import (
	"context"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"wordpress-sync/internal/infra/logx"
	"wordpress-sync/internal/wp"
)

// SelectReferencedMedia determines the subset of the catalogue actually used
// by the collected pages and posts. Inclusion rules, in priority order:
// attachment to a post, explicit include-list, featured image of a collected
// entity, and a source_url occurring as a src attribute inside rendered
// content. Deduplication is stable by ID with the first occurrence winning.
func SelectReferencedMedia(catalogue []wp.Media, pages, posts []wp.Entity, explicitIDs []int) []wp.Media {
	contents := renderedContents(pages, posts)
	srcs := extractSrcAttrs(contents)

	featured := make(map[int]bool)
	for _, e := range pages {
		if id := e.FeaturedMedia(); id != 0 {
			featured[id] = true
		}
	}
	for _, e := range posts {
		if id := e.FeaturedMedia(); id != 0 {
			featured[id] = true
		}
	}

	explicit := make(map[int]bool, len(explicitIDs))
	for _, id := range explicitIDs {
		explicit[id] = true
	}

	seen := make(map[int]bool)
	var out []wp.Media
	add := func(m wp.Media) {
		if seen[m.ID] {
			return
		}
		seen[m.ID] = true
		out = append(out, m)
	}

	for _, m := range catalogue {
		if m.AttachedPost != 0 {
			add(m)
		}
	}
	for _, m := range catalogue {
		if explicit[m.ID] {
			add(m)
		}
	}
	for _, m := range catalogue {
		if featured[m.ID] {
			add(m)
		}
	}
	for _, m := range catalogue {
		if m.SourceURL == "" {
			continue
		}
		if srcs[m.SourceURL] || literalSrcRef(contents, m.SourceURL) {
			add(m)
		}
	}
	return out
}

func renderedContents(pages, posts []wp.Entity) []string {
	contents := make([]string, 0, len(pages)+len(posts))
	for _, e := range pages {
		if body := e.Rendered("content"); body != "" {
			contents = append(contents, body)
		}
	}
	for _, e := range posts {
		if body := e.Rendered("content"); body != "" {
			contents = append(contents, body)
		}
	}
	return contents
}

// extractSrcAttrs parses each rendered body and returns the set of src
// attribute values found in it.
func extractSrcAttrs(contents []string) map[string]bool {
	srcs := make(map[string]bool)
	for _, body := range contents {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
		if err != nil {
			continue
		}
		doc.Find("[src]").Each(func(_ int, sel *goquery.Selection) {
			if v, ok := sel.Attr("src"); ok && v != "" {
				srcs[v] = true
			}
		})
	}
	return srcs
}

// literalSrcRef matches the HTML-encoded quote forms the source renderer can
// emit around a src attribute, which a DOM parse does not surface.
func literalSrcRef(contents []string, u string) bool {
	needles := []string{
		`src="` + u + `"`,
		`src=&quot;` + u + `&quot;`,
		`src=\"` + u + `\"`,
		`src=&#34;` + u + `&#34;`,
	}
	for _, body := range contents {
		for _, n := range needles {
			if strings.Contains(body, n) {
				return true
			}
		}
	}
	return false
}

// FetchBlobs downloads the binary for each selected media item over the
// source's authenticated channel. An item whose fetch fails is recorded as a
// soft error and dropped from the import-eligible set; the run continues.
func FetchBlobs(ctx context.Context, api SourceAPI, items []wp.Media, notify Notifier) ([]wp.Media, []ErrorRecord) {
	if notify == nil {
		notify = NopNotifier{}
	}
	eligible := make([]wp.Media, 0, len(items))
	var soft []ErrorRecord
	for i, m := range items {
		if ctx.Err() != nil {
			soft = append(soft, ErrorRecord{Phase: "media", Kind: wp.KindMedia, Item: m.SourceURL, Err: ctx.Err()})
			break
		}
		blob, mime, err := api.DownloadMedia(ctx, m.SourceURL)
		if err != nil {
			logx.Warnf("media blob fetch failed for %s: %v", m.SourceURL, err)
			soft = append(soft, ErrorRecord{Phase: "media", Kind: wp.KindMedia, Item: m.SourceURL, Err: err})
			continue
		}
		m.Blob = blob
		if m.MimeType == "" {
			m.MimeType = mime
		}
		if m.FileName == "" {
			m.FileName = path.Base(m.SourceURL)
		}
		eligible = append(eligible, m)
		notify.Notify(ProgressEvent{Stage: StageMedia, Kind: wp.KindMedia, Done: i + 1, Total: len(items)})
	}
	return eligible, soft
}
