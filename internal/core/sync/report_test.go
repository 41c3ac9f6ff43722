package sync

import (
	"errors"
	"strings"
	"testing"

	"wordpress-sync/internal/wp"
)

func TestReportRenderPlain(t *testing.T) {
	r := NewReport()
	r.CollectedByKind[wp.KindPages] = 12
	r.ImportedByKind[wp.KindPages] = 11
	r.ImportedByKind[wp.KindMedia] = 3
	r.MediaSelected = 3

	out := r.Render(true)
	if !strings.Contains(out, "[ok]") {
		t.Errorf("status missing: %q", out)
	}
	if !strings.Contains(out, "pages") || !strings.Contains(out, "11 imported") {
		t.Errorf("kind line missing: %q", out)
	}
	if !strings.Contains(out, "(of 12 collected)") {
		t.Errorf("collected count missing: %q", out)
	}
	// media sorts before pages: import dependency order
	if strings.Index(out, "media") > strings.Index(out, "pages") {
		t.Errorf("kind order wrong: %q", out)
	}
}

func TestReportRenderErrors(t *testing.T) {
	r := NewReport()
	r.Record(ErrorRecord{Phase: "import", Kind: wp.KindPages, Item: "about", Err: errors.New("boom")})
	out := r.Render(true)
	if !strings.Contains(out, "[completed with errors]") {
		t.Errorf("status: %q", out)
	}
	if !strings.Contains(out, "import/pages about: boom") {
		t.Errorf("error line missing: %q", out)
	}

	r.Failed = true
	if out := r.Render(true); !strings.Contains(out, "[failed]") {
		t.Errorf("failed status missing: %q", out)
	}
}
