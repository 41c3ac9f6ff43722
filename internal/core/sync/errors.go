package sync

import (
	"fmt"

	"wordpress-sync/internal/wp"
)

// ErrorRecord is one entity- or page-level soft failure. Records accumulate
// in the run report and are surfaced at the end; they never abort the run on
// their own.
type ErrorRecord struct {
	Phase string
	Kind  wp.Kind
	Item  string
	Err   error
}

func (r ErrorRecord) String() string {
	return fmt.Sprintf("%s/%s %s: %v", r.Phase, r.Kind, r.Item, r.Err)
}

// CollectionError reports that every page attempt for a kind failed, so the
// kind produced nothing at all.
type CollectionError struct {
	Kind wp.Kind
	Err  error
}

func (e *CollectionError) Error() string {
	return fmt.Sprintf("collecting %s: %v", e.Kind, e.Err)
}

func (e *CollectionError) Unwrap() error { return e.Err }

// PhaseError is a structural failure: the phase for one kind is abandoned and
// the run is marked failed, but already-completed kinds' writes stand.
type PhaseError struct {
	Phase string
	Kind  wp.Kind
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s phase for %s abandoned: %v", e.Phase, e.Kind, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }
