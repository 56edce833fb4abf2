package cloak

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint returns a fixed-length digest of text keyed by key.
//
// Anchors carry the fingerprint of their original text so a CloakMap can be
// checked for consistency without storing plaintext. The key is the policy
// seed; an empty key yields an unkeyed BLAKE2b-256 digest.
func Fingerprint(text, key string) string {
	h := newFingerprintHash(key)
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// documentFingerprint digests every node id and text in traversal order.
func documentFingerprint(ids, texts []string, key string) string {
	h := newFingerprintHash(key)
	for i, id := range ids {
		h.Write([]byte(id))
		h.Write([]byte{0})
		h.Write([]byte(texts[i]))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func newFingerprintHash(key string) hash.Hash {
	var k []byte
	if key != "" {
		sum := sha256.Sum256([]byte(key))
		k = sum[:]
	}
	h, _ := blake2b.New256(k) // keys are 32 bytes, never rejected
	return h
}
