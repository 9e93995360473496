package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyDep        = "dependency"
	KeyStage      = "stage"
	KeyRef        = "ref"
	KeyRefKind    = "ref_kind"
	KeyRunner     = "runner"
	KeyName       = "name"
	KeyURL        = "url"
	KeyPath       = "path"
	KeyVersion    = "version"
	KeyBranch     = "branch"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func Dep(key string) slog.Attr        { return slog.String(KeyDep, key) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func Ref(r string) slog.Attr          { return slog.String(KeyRef, r) }
func RefKind(k string) slog.Attr      { return slog.String(KeyRefKind, k) }
func Runner(r string) slog.Attr       { return slog.String(KeyRunner, r) }
func Name(n string) slog.Attr         { return slog.String(KeyName, n) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Version(v string) slog.Attr      { return slog.String(KeyVersion, v) }
func Branch(b string) slog.Attr       { return slog.String(KeyBranch, b) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
