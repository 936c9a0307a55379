package logging

import (
	"fmt"
	"regexp"
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Redactor replaces known sensitive values wherever they appear as a whole
// token, so "games" is redacted in "database games" but not in "gamesdb".
type Redactor struct {
	patterns []*regexp.Regexp
}

// NewRedactor builds a redactor for values. Empty values are ignored.
func NewRedactor(values ...string) *Redactor {
	uniq := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v != "" {
			uniq[v] = struct{}{}
		}
	}
	sorted := make([]string, 0, len(uniq))
	for v := range uniq {
		sorted = append(sorted, v)
	}
	// Longest first so "db.internal" goes before "db".
	sort.Slice(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })

	r := &Redactor{}
	for _, v := range sorted {
		r.patterns = append(r.patterns,
			regexp.MustCompile(`(^|[^A-Za-z0-9_])`+regexp.QuoteMeta(v)+`($|[^A-Za-z0-9_])`))
	}
	return r
}

// Redact returns s with every known value replaced by RedactedText.
func (r *Redactor) Redact(s string) string {
	if r == nil || s == "" {
		return s
	}
	for _, p := range r.patterns {
		// Run twice: adjacent matches share a boundary character.
		for range 2 {
			s = p.ReplaceAllString(s, "${1}"+RedactedText+"${2}")
		}
	}
	return s
}

// WithRedaction returns a logger that scrubs values from every message and
// field it writes, including fields attached earlier with With.
func WithRedaction(logger *zap.Logger, values ...string) *zap.Logger {
	r := NewRedactor(values...)
	if len(r.patterns) == 0 {
		return logger
	}
	return logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return &redactingCore{Core: core, redactor: r}
	}))
}

type redactingCore struct {
	zapcore.Core
	redactor *Redactor
}

func (c *redactingCore) With(fields []zapcore.Field) zapcore.Core {
	return &redactingCore{Core: c.Core.With(c.scrub(fields)), redactor: c.redactor}
}

func (c *redactingCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *redactingCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	ent.Message = c.redactor.Redact(ent.Message)
	return c.Core.Write(ent, c.scrub(fields))
}

func (c *redactingCore) scrub(fields []zapcore.Field) []zapcore.Field {
	out := make([]zapcore.Field, len(fields))
	for i, f := range fields {
		switch f.Type {
		case zapcore.StringType:
			f.String = c.redactor.Redact(f.String)
		case zapcore.ErrorType:
			if err, ok := f.Interface.(error); ok && err != nil {
				f = zap.String(f.Key, c.redactor.Redact(err.Error()))
			}
		case zapcore.StringerType:
			if s, ok := f.Interface.(fmt.Stringer); ok && s != nil {
				f = zap.String(f.Key, c.redactor.Redact(s.String()))
			}
		}
		out[i] = f
	}
	return out
}
