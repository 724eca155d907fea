package metrics

import "time"

// Kind labels for written files.
const (
	KindJavaScript  = "javascript"
	KindDeclaration = "declaration"
)

// Recorder defines observability hooks for build, compile and write metrics.
// Implementations must be safe for concurrent use: writes are recorded from
// their own goroutines.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveBuildDuration(d time.Duration)
	ObserveCompileDuration(format string, d time.Duration)
	IncFileWritten(format, kind string)
	IncWriteFailure(format string)
	IncBuildOutcome(outcome string) // outcome: success|degraded|failed|cancelled
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration)   {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)           {}
func (NoopRecorder) ObserveCompileDuration(string, time.Duration) {}
func (NoopRecorder) IncFileWritten(string, string)                {}
func (NoopRecorder) IncWriteFailure(string)                       {}
func (NoopRecorder) IncBuildOutcome(string)                       {}
