// Package json provides a JSON codec implementation.
package json

import (
	"bytes"
	"encoding/json"

	"github.com/zoobzio/cloak"
)

// jsonCodec implements cloak.Codec for JSON.
type jsonCodec struct {
	prefix string
	indent string
}

// New returns a compact JSON codec.
func New() cloak.Codec {
	return &jsonCodec{}
}

// NewIndent returns a JSON codec that indents output for human review.
func NewIndent(prefix, indent string) cloak.Codec {
	return &jsonCodec{prefix: prefix, indent: indent}
}

// ContentType returns the MIME type for JSON.
func (c *jsonCodec) ContentType() string {
	return "application/json"
}

// Marshal encodes v as JSON. HTML characters are not escaped so masked
// values such as "<PERSON>" stay readable.
func (c *jsonCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if c.prefix != "" || c.indent != "" {
		enc.SetIndent(c.prefix, c.indent)
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Unmarshal decodes JSON data into v.
func (c *jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
