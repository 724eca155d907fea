// Package build runs one dual-format build.
//
// DefaultService drives the whole pipeline: reset the output directory, load
// the compiler configuration, compile the entry once per format, then join
// every background write and report. All execution paths (CLI, tests) go
// through Service.
package build
