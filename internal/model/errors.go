package model

import "fmt"

// SourceUnavailableError means the segment source itself could not be
// reached. It is fatal to the run.
type SourceUnavailableError struct {
	Err error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("segment source unavailable: %v", e.Err)
}

func (e *SourceUnavailableError) Unwrap() error { return e.Err }

// SegmentDecodeError marks one unreadable or corrupt segment. It is recorded
// in metrics and the run continues with the remaining segments.
type SegmentDecodeError struct {
	Path string
	Err  error
}

func (e *SegmentDecodeError) Error() string {
	return fmt.Sprintf("segment %s: %v", e.Path, e.Err)
}

func (e *SegmentDecodeError) Unwrap() error { return e.Err }

// ConfigError reports an invalid PipelineConfig field. It is raised before
// any processing or sink call happens.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s %s", e.Field, e.Reason)
}
