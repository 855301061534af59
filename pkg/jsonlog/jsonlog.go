// Package jsonlog decodes log files made of JSON values concatenated with no
// separator between them.
package jsonlog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/supac/supac/pkg/engine"
)

// Decode returns every value in data, in order.
//
// Whitespace between and after values is ignored. A value that cannot be
// decoded, or a decoder that stops making progress, yields a MalformedLog
// error carrying the byte offset where decoding stopped.
func Decode[T any](data []byte) ([]T, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var out []T
	for {
		start := dec.InputOffset()
		var v T
		err := dec.Decode(&v)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, engine.NewMalformedLog(fmt.Sprintf("undecodable value at offset %d", start), err).
				WithDetail("offset", start)
		}
		if dec.InputOffset() <= start {
			return nil, engine.NewMalformedLog(fmt.Sprintf("no progress at offset %d", start), nil).
				WithDetail("offset", start)
		}
		out = append(out, v)
	}
}

// DecodeFile decodes the log at path. A missing file holds no values.
func DecodeFile[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, engine.NewProbeError("failed to read "+path, err)
	}
	values, err := Decode[T](data)
	if err != nil {
		var e *engine.EngineError
		if errors.As(err, &e) {
			e.WithDetail("path", path)
		}
		return nil, err
	}
	return values, nil
}
