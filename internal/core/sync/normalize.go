package sync

import (
	"regexp"
	"strings"
)

// The source renderer wraps a lone shortcode in an extra paragraph and can
// double-encode entities when content round-trips through its editor. The
// rules below undo exactly those quirks and nothing else; import drift shows
// up as spurious updates on every run, so they are pinned by tests.

var (
	reDoubleNumEntity = regexp.MustCompile(`&amp;(#\d+;)`)
	reExcessBlankRuns = regexp.MustCompile(`\n{3,}`)

	namedEntityFix = strings.NewReplacer(
		"&amp;nbsp;", "&nbsp;",
		"&amp;amp;", "&amp;",
		"&amp;quot;", "&quot;",
		"&amp;hellip;", "&hellip;",
		"&amp;ndash;", "&ndash;",
		"&amp;mdash;", "&mdash;",
		"&amp;rsquo;", "&rsquo;",
		"&amp;lsquo;", "&lsquo;",
		"&amp;rdquo;", "&rdquo;",
		"&amp;ldquo;", "&ldquo;",
	)
)

// NormalizeRendered cleans a rendered body before it is sent to the
// destination: one auto-added paragraph around a lone shortcode is unwrapped,
// line endings are normalized, runs of blank lines collapsed and
// double-encoded entities repaired. Idempotent.
func NormalizeRendered(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = unwrapShortcodeParagraph(s)
	s = reDoubleNumEntity.ReplaceAllString(s, "&$1")
	s = namedEntityFix.Replace(s)
	s = reExcessBlankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// unwrapShortcodeParagraph strips the single wrapping paragraph the renderer
// adds when a body consists of nothing but one shortcode expression.
func unwrapShortcodeParagraph(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "<p>[") || !strings.HasSuffix(t, "]</p>") {
		return s
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(t, "<p>"), "</p>")
	if strings.Contains(inner, "<p>") || strings.Contains(inner, "</p>") {
		return s
	}
	return inner
}
