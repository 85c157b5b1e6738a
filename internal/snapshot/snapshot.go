// Package snapshot is the serializable view of a world: what observers,
// storage and archives see of the engine's state.
package snapshot

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/talgya/statecraft/internal/country"
)

// World is a point-in-time copy of the world state.
type World struct {
	Tick      uint64            `json:"tick"`
	Countries []country.Country `json:"countries"` // registry order
	Alliances []Alliance        `json:"alliances"` // sorted by (A, B)
}

// Alliance is a normalized pair with A <= B.
type Alliance struct {
	A country.ID `json:"a"`
	B country.ID `json:"b"`
}

// Country returns the snapshot entry for id.
func (w *World) Country(id country.ID) (country.Country, bool) {
	for _, c := range w.Countries {
		if c.ID == id {
			return c, true
		}
	}
	return country.Country{}, false
}

//go:embed world.schema.json
var worldSchema string

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiled() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString("world.schema.json", worldSchema)
	})
	return schema, schemaErr
}

// Validate checks raw JSON against the world snapshot schema.
func Validate(raw []byte) error {
	s, err := compiled()
	if err != nil {
		return fmt.Errorf("compile snapshot schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("validate snapshot: %w", err)
	}
	return nil
}

// Marshal encodes w and validates the result.
func Marshal(w World) ([]byte, error) {
	raw, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	if err := Validate(raw); err != nil {
		return nil, err
	}
	return raw, nil
}
