package staticgraph

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// fixture is the YAML shape for a static graph:
//
//	vertices:
//	  - Alice
//	  - Bob
//	edges:
//	  - [Alice, Bob]
type fixture struct {
	Vertices []string    `yaml:"vertices"`
	Edges    [][2]string `yaml:"edges"`
}

// FromYAML builds a graph from a YAML fixture.
func FromYAML(r io.Reader) (*Graph, error) {
	var f fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode graph fixture: %w", err)
	}

	var b Builder
	for _, v := range f.Vertices {
		b.AddVertex(v)
	}
	for _, e := range f.Edges {
		b.AddEdge(e[0], e[1])
	}
	return b.Build()
}

// LoadFile builds a graph from a YAML fixture on disk.
func LoadFile(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open graph fixture: %w", err)
	}
	defer f.Close()
	return FromYAML(f)
}
