// Package msgpack provides a MessagePack codec implementation.
//
// Field names follow the `json` struct tags so a CloakMap has the same keys
// in MessagePack as in JSON. Output is canonical: values that compare equal
// encode to identical bytes, with every string-keyed map (nested ones
// included) written in increasing key order and integers in their smallest
// form. Values holding maps with non-string keys are encoded as-is and carry
// no such guarantee.
package msgpack

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/zoobzio/cloak"
)

// msgpackCodec implements cloak.Codec for MessagePack.
type msgpackCodec struct{}

// New returns a MessagePack codec.
func New() cloak.Codec {
	return &msgpackCodec{}
}

// ContentType returns the MIME type for MessagePack.
func (c *msgpackCodec) ContentType() string {
	return "application/msgpack"
}

// Marshal encodes v as canonical MessagePack.
//
// The encoder only sorts keys of generic string maps, so v is encoded once,
// decoded into generic values and encoded again with sorted keys.
func (c *msgpackCodec) Marshal(v any) ([]byte, error) {
	data, err := encode(v, false)
	if err != nil {
		return nil, err
	}

	var generic any
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&generic); err != nil {
		// Non-string map keys cannot be decoded generically.
		return data, nil
	}
	return encode(generic, true)
}

// Unmarshal decodes MessagePack data into v.
func (c *msgpackCodec) Unmarshal(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}

func encode(v any, canonical bool) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if canonical {
		enc.SetSortMapKeys(true)
		enc.UseCompactInts(true)
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
