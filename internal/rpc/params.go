package rpc

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// decodeParams splits a positional-array params payload into its raw
// arguments, in order. Missing or absent params decodes as an empty list.
func decodeParams(raw json.RawMessage) ([]json.RawMessage, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var args []json.RawMessage
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, errors.Wrap(err, "params must be a positional array")
	}
	return args, nil
}

func argString(args []json.RawMessage, i int) (string, error) {
	if i >= len(args) {
		return "", errors.Errorf("missing argument at position %d", i)
	}
	var s string
	if err := json.Unmarshal(args[i], &s); err != nil {
		return "", errors.Wrapf(err, "argument %d must be a string", i)
	}
	return s, nil
}

// argMapOptional decodes an optional trailing map/filter argument, per
// spec.md §4.6's search.query(query, filters) shape. Absent or null
// decodes as an empty map.
func argMapOptional(args []json.RawMessage, i int) (map[string]interface{}, error) {
	if i >= len(args) {
		return map[string]interface{}{}, nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(args[i], &m); err != nil {
		return nil, errors.Wrapf(err, "argument %d must be an object", i)
	}
	if m == nil {
		m = map[string]interface{}{}
	}
	return m, nil
}
