package invoker

import (
	"bytes"
	"context"
	"encoding/json"
	"github.com/pkg/errors"
)

// Result is the decoded JSON object printed by a node control program.
type Result map[string]interface{}

// RawCall performs a single remote execution and returns its raw output.
type RawCall func(ctx context.Context) ([]byte, error)

// Call returns a decoded result.
type Call func(ctx context.Context) (Result, error)

// DecodeJSON turns a RawCall into a Call. Output that is not a JSON object, or that lacks
// any of the required keys, yields a MalformedResultError.
func DecodeJSON(raw RawCall, required ...string) Call {
	return func(ctx context.Context) (Result, error) {
		data, err := raw(ctx)
		if err != nil {
			return nil, err
		}

		data = bytes.TrimSpace(data)
		result := Result{}
		if err := json.Unmarshal(data, &result); err != nil {
			return nil, &MalformedResultError{Output: truncate(string(data)), Err: err}
		}
		if result == nil {
			return nil, &MalformedResultError{Output: truncate(string(data)), Err: errors.New("not a JSON object")}
		}
		for _, key := range required {
			if _, ok := result[key]; !ok {
				return nil, &MalformedResultError{Field: key}
			}
		}
		return result, nil
	}
}

// StringField returns a non-empty string field.
func (r Result) StringField(key string) (string, error) {
	v, ok := r[key].(string)
	if !ok || v == "" {
		return "", &MalformedResultError{Field: key}
	}
	return v, nil
}
