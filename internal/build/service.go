package build

import (
	"context"
	"time"

	"git.home.luguber.info/inful/dualbuild/internal/emit"
)

// Defaults applied to empty Request fields.
const (
	DefaultEntry     = "src/index.ts"
	DefaultOutputDir = "dist"
)

// Service is the interface for executing builds.
type Service interface {
	// Run executes prepare → load → compile (legacy, modern) → join writes.
	Run(ctx context.Context, req Request) (*Result, error)
}

// Request contains all inputs of one build. Paths are relative to WorkDir.
type Request struct {
	// WorkDir is the project directory; "" means the process working directory.
	WorkDir string

	// TSConfig names the compiler configuration file (default tsconfig.json).
	TSConfig string

	// Entry is the single source file compiled into every format.
	Entry string

	// OutputDir is removed and recreated at the start of every build.
	OutputDir string

	// StrictWrites turns a build with failed writes into an error.
	StrictWrites bool

	// WriteConcurrency bounds parallel writes (0 = unbounded).
	WriteConcurrency int
}

// Result contains the outcome of a build execution.
type Result struct {
	// Status indicates overall build outcome.
	Status Status

	// BuildID uniquely identifies this run in logs.
	BuildID string

	// Revision is the git commit of the source tree, "" outside a repository.
	Revision string

	// OutputDir is the absolute output directory.
	OutputDir string

	// Writes lists every dispatched file in dispatch order.
	Writes []emit.Result

	// FilesWritten and WriteFailures count Writes by outcome.
	FilesWritten  int
	WriteFailures int

	// Warnings holds compiler warnings from every format.
	Warnings []string

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

// Status represents the outcome of a build execution.
type Status string

const (
	// StatusSuccess indicates every output file was written.
	StatusSuccess Status = "success"

	// StatusDegraded indicates compilation succeeded but some writes failed.
	StatusDegraded Status = "degraded"

	// StatusFailed indicates a fatal error stopped the build.
	StatusFailed Status = "failed"

	// StatusCancelled indicates the context was cancelled.
	StatusCancelled Status = "cancelled"
)

// IsTerminal returns true if the status represents a final state.
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusDegraded ||
		s == StatusFailed || s == StatusCancelled
}

// IsSuccess returns true if the build produced output without a fatal error.
func (s Status) IsSuccess() bool {
	return s == StatusSuccess || s == StatusDegraded
}

// Failed returns the results of writes that did not succeed.
func (r *Result) Failed() []emit.Result {
	var out []emit.Result
	for _, w := range r.Writes {
		if !w.OK() {
			out = append(out, w)
		}
	}
	return out
}
