package valuestore

import "time"

// MetricsObserver receives instrumentation events from a Manager and the
// ChunkUpdaters it drives. Every method must return quickly and must not
// call back into the Manager that invoked it: these hooks fire inline on
// the single cooperative goroutine this package assumes throughout.
//
// A nil MetricsObserver (the default) means no instrumentation; callers
// that want metrics install one via NewManager's WithMetricsObserver
// option.
type MetricsObserver interface {
	// OnChunkSplit fires each time a ChunkUpdater writes a chunk because it
	// crossed ChunkSizeThreshold mid-stream, as distinct from the final
	// flush every updater performs on Finish.
	OnChunkSplit(slot Slot)

	// OnMergeChanges fires once per MergeChanges call, reporting how long
	// it took, how many slots had pending edits, and whether it failed.
	OnMergeChanges(d time.Duration, slots int, err error)

	// OnAddDocument and OnDeleteDocument fire once per call to the
	// correspondingly named Manager method.
	OnAddDocument(d time.Duration, err error)
	OnDeleteDocument(d time.Duration, err error)
}
