package script

import (
	"fmt"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// unsupportedError reports a Starlark value with no record form.
type unsupportedError struct {
	typ string
}

func (e unsupportedError) Error() string {
	return fmt.Sprintf("unsupported starlark type: %s", e.typ)
}

type converter struct {
	eval      *Evaluator
	functions map[posKey]functionInfo
}

// fromStarlark converts a Starlark value to a record value.
func (c converter) fromStarlark(v starlark.Value) (any, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(val), nil
	case starlark.Int:
		i, ok := val.Int64()
		if !ok {
			return nil, fmt.Errorf("integer too large: %s", val)
		}
		return i, nil
	case starlark.Float:
		return float64(val), nil
	case starlark.String:
		return string(val), nil
	case *starlark.List:
		return c.sequence(val)
	case starlark.Tuple:
		return c.sequence(val)
	case *starlark.Dict:
		dict := make(map[string]any, val.Len())
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be string, got %s", item[0].Type())
			}
			value, err := c.nested(item[1], string(key))
			if err != nil {
				return nil, err
			}
			dict[string(key)] = value
		}
		return dict, nil
	case *starlarkstruct.Struct:
		dict := make(map[string]any)
		for _, name := range val.AttrNames() {
			attr, err := val.Attr(name)
			if err != nil {
				return nil, err
			}
			value, err := c.nested(attr, name)
			if err != nil {
				return nil, err
			}
			dict[name] = value
		}
		return dict, nil
	case *starlark.Function:
		return c.hook(val), nil
	}
	return nil, unsupportedError{typ: v.Type()}
}

func (c converter) nested(v starlark.Value, key string) (any, error) {
	value, err := c.fromStarlark(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return value, nil
}

func (c converter) sequence(seq starlark.Indexable) ([]any, error) {
	list := make([]any, seq.Len())
	for i := range list {
		item, err := c.nested(seq.Index(i), fmt.Sprintf("[%d]", i))
		if err != nil {
			return nil, err
		}
		list[i] = item
	}
	return list, nil
}

func (c converter) hook(fn *starlark.Function) *Hook {
	pos := fn.Position()
	info := c.functions[posKey{pos.Line, pos.Col}]
	return &Hook{
		fn:       fn,
		source:   info.source,
		captures: info.captures,
		eval:     c.eval,
	}
}
