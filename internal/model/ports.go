package model

// Codec identifies the compression wrapping a capture segment on disk.
type Codec string

const (
	CodecNone Codec = "none"
	CodecGzip Codec = "gzip"
	CodecZstd Codec = "zstd"
)

// SegmentDescriptor points at one capture segment to decode.
type SegmentDescriptor struct {
	Path  string
	Codec Codec
}

// SegmentSource supplies capture segments overlapping a requested window.
// Implementations may back onto a filesystem, an object store, or memory.
// The engine filters packets by timestamp itself and does not trust segment
// boundaries. A store that cannot be reached at all is reported with
// SourceUnavailableError; individual bad segments are the engine's problem.
type SegmentSource interface {
	// ListSegments returns descriptors for the half-open window
	// [hourStart, hourEnd), both UTC epoch seconds.
	ListSegments(hourStart, hourEnd int64) ([]SegmentDescriptor, error)
}

// EventSink receives finished records. It owns all persistence, queuing and
// backpressure decisions; the engine calls it synchronously and does not
// catch its failures. OnMetrics is called exactly once per run, after all
// groups and scans have been delivered.
type EventSink interface {
	OnGroup(rec *GroupRecord)
	OnScan(sum *ScanSummary)
	OnMetrics(m *Metrics)
}
