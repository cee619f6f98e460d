package relationship

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

type fileDocument struct {
	Relationships []Entry `yaml:"relationships"`
}

// LoadFile reads registry entries from a YAML document of the form
//
//	relationships:
//	  - name: actors
//	    left: film
//	    right: actor
//	    strategy: junction
//	    through:
//	      table: film_actor
//	      left: [{column: film_id, junction: film_id}]
//	      right: [{column: actor_id, junction: actor_id}]
func LoadFile(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read relationships file: %w", err)
	}
	return Parse(data)
}

// Parse decodes registry entries from YAML.
func Parse(data []byte) ([]Entry, error) {
	var doc fileDocument
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse relationships: %w", err)
	}
	for i, e := range doc.Relationships {
		if e.Strategy == "" {
			if e.Through != nil {
				e.Strategy = Junction
			} else if e.Left == e.Right {
				e.Strategy = Self
			} else {
				e.Strategy = Direct
			}
			doc.Relationships[i] = e
		}
		if err := e.validate(); err != nil {
			return nil, fmt.Errorf("relationships[%d]: %w", i, err)
		}
	}
	return doc.Relationships, nil
}
