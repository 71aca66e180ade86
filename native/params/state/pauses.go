package state

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const pausesKey = "system/pauses"

// Reader exposes the minimal parameter store capabilities required to inspect pause toggles.
type Reader interface {
	ParamStoreGet(name string) ([]byte, bool, error)
}

// Pauses loads the module pause toggles. A missing record means nothing is
// paused.
func Pauses(reader Reader) (map[string]bool, error) {
	if reader == nil {
		return nil, fmt.Errorf("params: reader not configured")
	}
	raw, ok, err := reader.ParamStoreGet(pausesKey)
	if err != nil {
		return nil, fmt.Errorf("params: load pauses: %w", err)
	}
	if !ok || len(bytes.TrimSpace(raw)) == 0 {
		return map[string]bool{}, nil
	}
	payload := map[string]bool{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("params: decode pauses: %w", err)
	}
	return payload, nil
}

// Paused reports whether the pause toggle of module is enabled.
func Paused(reader Reader, module string) (bool, error) {
	pauses, err := Pauses(reader)
	if err != nil {
		return false, err
	}
	return pauses[module], nil
}
