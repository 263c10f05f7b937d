// Package lookup resolves entity identity triples to display metadata.
//
// The codecs never consult it; presentation code such as the info command
// constructs one Service and passes it where names are needed.
package lookup

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/stbtool/internal/room"
)

// Definition is the static metadata for one entity, loaded from YAML.
type Definition struct {
	Type    int    `yaml:"type"`
	Variant int    `yaml:"variant"`
	Subtype int    `yaml:"subtype"`
	Name    string `yaml:"name"`
	Group   string `yaml:"group"`
	Kind    string `yaml:"kind"` // "enemy" | "grid" | "pickup" | "other"
}

// ID returns the "type.variant.subtype" key of the definition.
func (d Definition) ID() string {
	return fmt.Sprintf("%d.%d.%d", d.Type, d.Variant, d.Subtype)
}

type key struct {
	typ, variant, subtype int
}

type document struct {
	Entities []Definition `yaml:"entities"`
}

// Service holds the entity table keyed by identity triple.
type Service struct {
	defs map[key]Definition
}

// NewService returns an empty Service.
func NewService() *Service {
	return &Service{defs: make(map[key]Definition)}
}

// Register adds def, replacing any definition with the same triple.
func (s *Service) Register(def Definition) {
	s.defs[key{def.Type, def.Variant, def.Subtype}] = def
}

// Len returns the number of registered definitions.
func (s *Service) Len() int {
	return len(s.defs)
}

// Resolve returns the definition for the triple. When there is no exact
// match it falls back to (type, variant, 0) and then (type, 0, 0).
func (s *Service) Resolve(typ, variant, subtype int) (Definition, bool) {
	for _, k := range []key{
		{typ, variant, subtype},
		{typ, variant, 0},
		{typ, 0, 0},
	} {
		if d, ok := s.defs[k]; ok {
			return d, true
		}
	}
	return Definition{}, false
}

// Name returns the display name for e, or its identity triple when the
// table has no entry.
func (s *Service) Name(e room.Entity) string {
	if d, ok := s.Resolve(e.Type, e.Variant, e.Subtype); ok {
		return d.Name
	}
	return e.ID()
}

// All returns every definition ordered by triple.
func (s *Service) All() []Definition {
	out := make([]Definition, 0, len(s.defs))
	for _, d := range s.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.Variant != b.Variant {
			return a.Variant < b.Variant
		}
		return a.Subtype < b.Subtype
	})
	return out
}

// Parse builds a Service from a YAML entity table.
//
// Postcondition: returns a populated Service, or an error naming every
// invalid entry.
func Parse(data []byte) (*Service, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing entity table: %w", err)
	}

	svc := NewService()
	var errs []error
	for i, d := range doc.Entities {
		if d.Name == "" {
			errs = append(errs, fmt.Errorf("entity %d (%s): name is required", i, d.ID()))
			continue
		}
		if d.Type < 0 || d.Variant < 0 || d.Subtype < 0 {
			errs = append(errs, fmt.Errorf("entity %d (%s): negative identity", i, d.ID()))
			continue
		}
		if _, dup := svc.defs[key{d.Type, d.Variant, d.Subtype}]; dup {
			errs = append(errs, fmt.Errorf("entity %d (%s): duplicate definition", i, d.ID()))
			continue
		}
		svc.Register(d)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return svc, nil
}

// Load reads and parses the entity table at path.
//
// Precondition: path must name a readable file.
func Load(path string) (*Service, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading entity table %q: %w", path, err)
	}
	svc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", path, err)
	}
	return svc, nil
}
