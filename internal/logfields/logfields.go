package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyStage      = "stage"
	KeyTask       = "task"
	KeyGroup      = "group"
	KeyDocument   = "document"
	KeyTheme      = "theme"
	KeyLayer      = "layer"
	KeyFilter     = "filter"
	KeyTemplate   = "template"
	KeyPath       = "path"
	KeyTarget     = "target"
	KeyFormat     = "format"
	KeyMode       = "mode"
	KeyCount      = "count"
	KeyDurationMS = "duration_ms"
	KeyAddr       = "addr"
	KeyMethod     = "method"
	KeyStatus     = "status"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr     { return slog.String(KeyBuildID, id) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func Task(name string) slog.Attr      { return slog.String(KeyTask, name) }
func Group(i int) slog.Attr           { return slog.Int(KeyGroup, i) }
func Document(id string) slog.Attr    { return slog.String(KeyDocument, id) }
func Theme(name string) slog.Attr     { return slog.String(KeyTheme, name) }
func Layer(name string) slog.Attr     { return slog.String(KeyLayer, name) }
func Filter(name string) slog.Attr    { return slog.String(KeyFilter, name) }
func Template(name string) slog.Attr  { return slog.String(KeyTemplate, name) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Target(p string) slog.Attr       { return slog.String(KeyTarget, p) }
func Format(f string) slog.Attr       { return slog.String(KeyFormat, f) }
func Mode(m string) slog.Attr         { return slog.String(KeyMode, m) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Addr(a string) slog.Attr         { return slog.String(KeyAddr, a) }
func Method(m string) slog.Attr       { return slog.String(KeyMethod, m) }
func Status(code int) slog.Attr       { return slog.Int(KeyStatus, code) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
