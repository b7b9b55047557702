package history

import (
	"strings"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/westor7/ircd/internal/msgtag"
)

// LineFilter wraps a compiled CEL program evaluated per replayed line.
// When disabled (empty expression), Match always returns true.
type LineFilter struct {
	prog    cel.Program
	enabled bool
}

// NewLineFilter compiles expr. Variables exposed to the expression:
//
//	text   string                  the stored line
//	tags   map[string]string       the line's tag set (last value wins)
//	ts_ms  int                     the line's timestamp in unix ms
//	now_ms int                     evaluation time in unix ms
func NewLineFilter(expr string) (*LineFilter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return &LineFilter{enabled: false}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("text", cel.StringType),
		cel.Variable("tags", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("ts_ms", cel.IntType),
		cel.Variable("now_ms", cel.IntType),
	)
	if err != nil {
		return nil, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return nil, iss.Err()
	}
	checked, iss := env.Check(ast)
	if iss != nil && iss.Err() != nil {
		return nil, iss.Err()
	}
	prog, err := env.Program(checked)
	if err != nil {
		return nil, err
	}
	return &LineFilter{prog: prog, enabled: true}, nil
}

// Match evaluates the expression against one line. Evaluation errors reject
// the line.
func (f *LineFilter) Match(text string, tags msgtag.List, ts time.Time) bool {
	if f == nil || !f.enabled {
		return true
	}
	tm := make(map[string]string, len(tags))
	for _, tag := range tags {
		tm[tag.Name] = tag.Value
	}
	out, _, err := f.prog.Eval(map[string]any{
		"text":   text,
		"tags":   tm,
		"ts_ms":  ts.UnixMilli(),
		"now_ms": time.Now().UnixMilli(),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
