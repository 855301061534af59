// Package spec provides typed access to the loosely-typed records produced by
// the package script.
//
// A record is a tree of map[string]any (Record), []any, string, bool, int64,
// float64 and engine.HookRef values. Accessors report malformed input as
// engine config errors naming the offending field and item.
package spec

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/supac/supac/pkg/engine"
)

// Record is one declarative record.
type Record map[string]any

// StateCapturer is implemented by hooks that can tell whether they reference
// state from outside their own body.
type StateCapturer interface {
	CapturesState() bool
}

// MissingField reports an absent required field.
func MissingField(field, item string) *engine.EngineError {
	return engine.NewConfigError(fmt.Sprintf("missing required field %q", field), nil).
		WithCode(engine.ErrCodeMissingField).
		WithItem(item).
		WithDetail("field", field)
}

// TypeMismatch reports a field holding a value of the wrong type.
func TypeMismatch(field, item, want string, got any) *engine.EngineError {
	return engine.NewConfigError(fmt.Sprintf("field %q must be %s, got %s", field, want, TypeName(got)), nil).
		WithCode(engine.ErrCodeTypeMismatch).
		WithItem(item).
		WithDetail("field", field)
}

// TypeName names the record type of v for error messages.
func TypeName(v any) string {
	switch v.(type) {
	case nil:
		return "nothing"
	case string:
		return "string"
	case bool:
		return "bool"
	case int64, int:
		return "int"
	case float64:
		return "float"
	case []any:
		return "list"
	case map[string]any, Record:
		return "record"
	case engine.HookRef:
		return "function"
	}
	return fmt.Sprintf("%T", v)
}

// AsRecord converts v to a Record.
func AsRecord(v any, field, item string) (Record, error) {
	switch r := v.(type) {
	case Record:
		return r, nil
	case map[string]any:
		return Record(r), nil
	}
	return nil, TypeMismatch(field, item, "record", v)
}

// AsList converts v to a list.
func AsList(v any, field, item string) ([]any, error) {
	if l, ok := v.([]any); ok {
		return l, nil
	}
	return nil, TypeMismatch(field, item, "list", v)
}

// Has reports whether field is present.
func (r Record) Has(field string) bool {
	_, ok := r[field]
	return ok
}

// String returns an optional string field.
func (r Record) String(field, item string) (string, bool, error) {
	v, ok := r[field]
	if !ok {
		return "", false, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", false, TypeMismatch(field, item, "string", v)
	}
	return s, true, nil
}

// RequiredString returns a string field that must be present.
func (r Record) RequiredString(field, item string) (string, error) {
	s, ok, err := r.String(field, item)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", MissingField(field, item)
	}
	return s, nil
}

// Bool returns a bool field, or def when absent.
func (r Record) Bool(field, item string, def bool) (bool, error) {
	v, ok := r[field]
	if !ok {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, TypeMismatch(field, item, "bool", v)
	}
	return b, nil
}

// Record returns an optional nested record.
func (r Record) Record(field, item string) (Record, bool, error) {
	v, ok := r[field]
	if !ok {
		return nil, false, nil
	}
	rec, err := AsRecord(v, field, item)
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

// List returns an optional list field.
func (r Record) List(field, item string) ([]any, bool, error) {
	v, ok := r[field]
	if !ok {
		return nil, false, nil
	}
	l, err := AsList(v, field, item)
	if err != nil {
		return nil, false, err
	}
	return l, true, nil
}

// StringList returns an optional list of strings. Every element must be a string.
func (r Record) StringList(field, item string) ([]string, error) {
	l, ok, err := r.List(field, item)
	if err != nil || !ok {
		return nil, err
	}
	out := make([]string, 0, len(l))
	for _, v := range l {
		s, ok := v.(string)
		if !ok {
			return nil, TypeMismatch(field, item, "list of strings", v)
		}
		out = append(out, s)
	}
	return out, nil
}

// Hook returns the optional hook stored in field. See ResolveHook.
func (r Record) Hook(field, item string, logger zerolog.Logger) (engine.HookRef, error) {
	v, ok := r[field]
	if !ok {
		return nil, nil
	}
	return ResolveHook(v, field, item, logger)
}

// ResolveHook converts v to a hook. A hook that captures outside state is
// dropped with a warning and nil is returned without error.
func ResolveHook(v any, field, item string, logger zerolog.Logger) (engine.HookRef, error) {
	if v == nil {
		return nil, nil
	}
	hook, ok := v.(engine.HookRef)
	if !ok {
		return nil, TypeMismatch(field, item, "function", v)
	}
	if c, ok := hook.(StateCapturer); ok && c.CapturesState() {
		logger.Warn().Str("item", item).Str("field", field).
			Msg("ignoring hook that captures outside state; hooks may only use their own locals and predeclared builtins")
		return nil, nil
	}
	return hook, nil
}
