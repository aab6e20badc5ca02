package config

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// UnmarshalYAML implements custom decoding for a `model` list entry, which is
// either a bare pattern string or a single-key {alias: upstream} mapping.
func (m *ModelEntry) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		*m = ModelEntry{Pattern: s}
		return nil
	case yaml.MappingNode:
		var mp map[string]string
		if err := value.Decode(&mp); err != nil {
			return err
		}
		if len(mp) != 1 {
			return fmt.Errorf("model entry mapping must have exactly one key, got %d", len(mp))
		}
		for alias, upstream := range mp {
			*m = ModelEntry{Alias: alias, Upstream: upstream}
		}
		return nil
	default:
		return fmt.Errorf("model entry must be a string or single-key mapping")
	}
}

// MarshalYAML implements custom encoding, mirroring UnmarshalYAML's shape.
func (m ModelEntry) MarshalYAML() (interface{}, error) {
	if m.IsAlias() {
		return map[string]string{m.Alias: m.Upstream}, nil
	}
	return m.Pattern, nil
}

// UnmarshalJSON mirrors UnmarshalYAML for the JSON document form.
func (m *ModelEntry) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*m = ModelEntry{Pattern: s}
		return nil
	}

	var mp map[string]string
	if err := json.Unmarshal(data, &mp); err != nil {
		return fmt.Errorf("model entry must be a string or single-key object: %w", err)
	}
	if len(mp) != 1 {
		return fmt.Errorf("model entry object must have exactly one key, got %d", len(mp))
	}
	for alias, upstream := range mp {
		*m = ModelEntry{Alias: alias, Upstream: upstream}
	}
	return nil
}

// MarshalJSON mirrors MarshalYAML for the JSON document form.
func (m ModelEntry) MarshalJSON() ([]byte, error) {
	if m.IsAlias() {
		return json.Marshal(map[string]string{m.Alias: m.Upstream})
	}
	return json.Marshal(m.Pattern)
}
