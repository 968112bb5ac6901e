package model

import (
	"encoding/json"
	"fmt"
)

// Extra carries extension-map keys the engine does not read. They are kept
// verbatim so a load/save cycle never drops data written by other tools.
type Extra map[string]json.RawMessage

// marshalExt encodes the known fields and folds in the unknown keys. Known
// fields win when both define the same key.
func marshalExt(known any, extra Extra) ([]byte, error) {
	data, err := json.Marshal(known)
	if err != nil {
		return nil, err
	}
	if len(extra) == 0 {
		return data, nil
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for k, v := range extra {
		if _, ok := merged[k]; !ok {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// unmarshalExt decodes data into known and returns the keys not listed in
// knownKeys.
func unmarshalExt(data []byte, known any, knownKeys []string) (Extra, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	if err := json.Unmarshal(data, known); err != nil {
		return nil, fmt.Errorf("decoding extension map: %w", err)
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("decoding extension map: %w", err)
	}
	for _, k := range knownKeys {
		delete(all, k)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

// EncodeExt renders an extension struct for the json column. Empty maps are
// stored as NULL.
func EncodeExt(v json.Marshaler) (any, error) {
	data, err := v.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encoding extension map: %w", err)
	}
	if string(data) == "{}" {
		return nil, nil
	}
	return string(data), nil
}

// DecodeExt parses a nullable json column into v.
func DecodeExt(raw *string, v json.Unmarshaler) error {
	if raw == nil || *raw == "" {
		return nil
	}
	return v.UnmarshalJSON([]byte(*raw))
}
