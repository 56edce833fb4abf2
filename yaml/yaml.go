// Package yaml provides a YAML codec implementation.
//
// YAML is the preferred format for hand-written policy files:
//
//	seed: "42"
//	reversible: true
//	default_strategy:
//	  kind: template
//	  template: "[REDACTED]"
//	entity_strategies:
//	  PERSON:
//	    kind: surrogate
//	    fallback: asterisks
package yaml

import (
	"bytes"

	"github.com/zoobzio/cloak"
	"gopkg.in/yaml.v3"
)

// yamlCodec implements cloak.Codec for YAML.
type yamlCodec struct{}

// New returns a YAML codec.
func New() cloak.Codec {
	return &yamlCodec{}
}

// ContentType returns the MIME type for YAML.
func (c *yamlCodec) ContentType() string {
	return "application/yaml"
}

// Marshal encodes v as YAML with two-space indentation.
func (c *yamlCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes YAML data into v.
func (c *yamlCodec) Unmarshal(data []byte, v any) error {
	return yaml.Unmarshal(data, v)
}
