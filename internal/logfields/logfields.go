package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyStage      = "stage"
	KeyFormat     = "format"
	KeyPath       = "path"
	KeyKind       = "kind"
	KeyBytes      = "bytes"
	KeyDurationMS = "duration_ms"
	KeyRevision   = "revision"
	KeyEntry      = "entry"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr      { return slog.String(KeyBuildID, id) }
func Stage(name string) slog.Attr      { return slog.String(KeyStage, name) }
func Format(f string) slog.Attr        { return slog.String(KeyFormat, f) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func Kind(k string) slog.Attr          { return slog.String(KeyKind, k) }
func Bytes(n int) slog.Attr            { return slog.Int(KeyBytes, n) }
func DurationMS(ms float64) slog.Attr  { return slog.Float64(KeyDurationMS, ms) }
func Revision(rev string) slog.Attr    { return slog.String(KeyRevision, rev) }
func Entry(path string) slog.Attr      { return slog.String(KeyEntry, path) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
