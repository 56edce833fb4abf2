// Package bson provides a BSON codec implementation.
//
// BSON stores timestamps with millisecond precision; CloakMap timestamps
// are truncated to milliseconds so they survive the round trip.
package bson

import (
	"github.com/zoobzio/cloak"
	"go.mongodb.org/mongo-driver/bson"
)

// bsonCodec implements cloak.Codec for BSON.
type bsonCodec struct{}

// New returns a BSON codec.
func New() cloak.Codec {
	return &bsonCodec{}
}

// ContentType returns the MIME type for BSON.
func (c *bsonCodec) ContentType() string {
	return "application/bson"
}

// Marshal encodes v as BSON. v must encode to a document.
func (c *bsonCodec) Marshal(v any) ([]byte, error) {
	return bson.Marshal(v)
}

// Unmarshal decodes BSON data into v.
func (c *bsonCodec) Unmarshal(data []byte, v any) error {
	return bson.Unmarshal(data, v)
}
