package sync

import (
	"wordpress-sync/internal/infra/logx"
	"wordpress-sync/internal/wp"
)

// Stage identifies a phase boundary of a run. Notifications are advisory,
// not required for correctness.
type Stage string

const (
	StageCollect Stage = "collect"
	StageResolve Stage = "resolve"
	StageMedia   Stage = "media"
	StageRewrite Stage = "rewrite"
	StageImport  Stage = "import"
	StageDone    Stage = "done"
)

// ProgressEvent is one advisory notification emitted at a phase boundary or
// after each imported entity.
type ProgressEvent struct {
	Stage   Stage
	Kind    wp.Kind
	Done    int
	Total   int
	Message string
}

// Notifier receives progress events. Implementations must be cheap; they are
// called from the single sync goroutine.
type Notifier interface {
	Notify(ev ProgressEvent)
}

// NopNotifier discards every event.
type NopNotifier struct{}

func (NopNotifier) Notify(ProgressEvent) {}

// LogNotifier mirrors events into the structured log; the default when no
// terminal UI is attached.
type LogNotifier struct{}

func (LogNotifier) Notify(ev ProgressEvent) {
	switch {
	case ev.Message != "":
		logx.Infof("%s %s: %s", ev.Stage, ev.Kind, ev.Message)
	case ev.Total > 0:
		logx.Infof("%s %s: %d/%d", ev.Stage, ev.Kind, ev.Done, ev.Total)
	default:
		logx.Infof("%s %s", ev.Stage, ev.Kind)
	}
}
