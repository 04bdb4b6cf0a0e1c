package scene

import (
	"encoding/json"
	"fmt"
)

// FormatVersion is written into every encoded snapshot.
const FormatVersion = 1

type document struct {
	Version    int        `json:"version"`
	Background Background `json:"background"`
	Objects    []Object   `json:"objects"`
}

// Marshal encodes snap as a JSON document.
func Marshal(snap Snapshot) ([]byte, error) {
	objects := snap.Objects
	if objects == nil {
		objects = []Object{}
	}
	return json.Marshal(document{
		Version:    FormatVersion,
		Background: snap.Background,
		Objects:    objects,
	})
}

// Unmarshal decodes and validates a JSON document produced by Marshal.
func Unmarshal(data []byte) (Snapshot, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if doc.Version > FormatVersion {
		return Snapshot{}, fmt.Errorf("%w: unsupported version %d", ErrInvalidSnapshot, doc.Version)
	}
	snap := Snapshot{Background: doc.Background, Objects: doc.Objects}
	if snap.Objects == nil {
		snap.Objects = []Object{}
	}
	if err := snap.Validate(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}
