// Package outdir prepares the build output directory.
//
// Reset deletes the directory tree (an absent directory is not an error) and
// recreates it empty, so a finished build leaves only files written by that
// build. Paths are resolved against an explicit working directory; the
// process working directory is never consulted.
package outdir
