package sync

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"wordpress-sync/internal/wp"
)

// Report aggregates one full run: per-kind upsert counts, every soft error,
// and whether any phase failed structurally.
type Report struct {
	Started  time.Time
	Finished time.Time

	CollectedByKind map[wp.Kind]int
	ImportedByKind  map[wp.Kind]int
	MediaSelected   int
	Errors          []ErrorRecord
	Failed          bool
}

func NewReport() *Report {
	return &Report{
		Started:         time.Now(),
		CollectedByKind: make(map[wp.Kind]int),
		ImportedByKind:  make(map[wp.Kind]int),
	}
}

func (r *Report) Record(errs ...ErrorRecord) {
	r.Errors = append(r.Errors, errs...)
}

func (r *Report) Duration() time.Duration {
	if r.Finished.IsZero() {
		return time.Since(r.Started)
	}
	return r.Finished.Sub(r.Started)
}

var (
	reportTitleStyle = lipgloss.NewStyle().Bold(true)
	reportOKStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	reportWarnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	reportFailStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	reportDimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// Render returns the terminal summary. With plain set, styling is skipped so
// the output stays pipe-friendly.
func (r *Report) Render(plain bool) string {
	style := func(s lipgloss.Style, text string) string {
		if plain {
			return text
		}
		return s.Render(text)
	}

	var b strings.Builder
	b.WriteString(style(reportTitleStyle, "sync summary"))
	b.WriteString(reportStatus(r, plain, style))
	b.WriteString("\n")

	kinds := make([]wp.Kind, 0, len(r.ImportedByKind))
	for k := range r.ImportedByKind {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kindRank(kinds[i]) < kindRank(kinds[j]) })

	for _, k := range kinds {
		line := fmt.Sprintf("  %-11s %d imported", k, r.ImportedByKind[k])
		if c, ok := r.CollectedByKind[k]; ok {
			line += style(reportDimStyle, fmt.Sprintf(" (of %d collected)", c))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	if r.MediaSelected > 0 {
		b.WriteString(style(reportDimStyle, fmt.Sprintf("  media referenced: %d", r.MediaSelected)))
		b.WriteString("\n")
	}

	if len(r.Errors) > 0 {
		b.WriteString(style(reportWarnStyle, fmt.Sprintf("  %d error(s):", len(r.Errors))))
		b.WriteString("\n")
		for _, e := range r.Errors {
			b.WriteString("    " + e.String())
			b.WriteString("\n")
		}
	}

	b.WriteString(style(reportDimStyle, fmt.Sprintf("  took %s", r.Duration().Round(time.Millisecond))))
	b.WriteString("\n")
	return b.String()
}

func reportStatus(r *Report, plain bool, style func(lipgloss.Style, string) string) string {
	switch {
	case r.Failed:
		return " " + style(reportFailStyle, "[failed]")
	case len(r.Errors) > 0:
		return " " + style(reportWarnStyle, "[completed with errors]")
	default:
		return " " + style(reportOKStyle, "[ok]")
	}
}

func kindRank(k wp.Kind) int {
	for i, c := range wp.CollectionKinds {
		if c == k {
			return i
		}
	}
	return len(wp.CollectionKinds)
}
