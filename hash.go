package cloak

import (
	"crypto/md5"  // #nosec G501 -- offered as a token format, not for security
	"crypto/sha1" // #nosec G505 -- offered as a token format, not for security
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// Hasher performs deterministic one-way hashing.
type Hasher interface {
	// Hash returns the hex-encoded digest of plaintext.
	Hash(plaintext []byte) (string, error)
}

// digestHasher adapts a hash.Hash constructor to Hasher.
type digestHasher struct {
	newHash func() hash.Hash
}

func (h *digestHasher) Hash(plaintext []byte) (string, error) {
	d := h.newHash()
	if _, err := d.Write(plaintext); err != nil {
		return "", err
	}
	return hex.EncodeToString(d.Sum(nil)), nil
}

// MD5Hasher returns an MD5 hasher.
// The result is a hex-encoded 32-character string.
func MD5Hasher() Hasher {
	return &digestHasher{newHash: md5.New}
}

// SHA1Hasher returns a SHA-1 hasher.
// The result is a hex-encoded 40-character string.
func SHA1Hasher() Hasher {
	return &digestHasher{newHash: sha1.New}
}

// SHA256Hasher returns a SHA-256 hasher.
// The result is a hex-encoded 64-character string.
func SHA256Hasher() Hasher {
	return &digestHasher{newHash: sha256.New}
}

// SHA512Hasher returns a SHA-512 hasher.
// The result is a hex-encoded 128-character string.
func SHA512Hasher() Hasher {
	return &digestHasher{newHash: sha512.New}
}

// SHA3Hasher returns a SHA3-256 hasher.
// The result is a hex-encoded 64-character string.
func SHA3Hasher() Hasher {
	return &digestHasher{newHash: sha3.New256}
}

// BLAKE2bHasher returns an unkeyed BLAKE2b-256 hasher.
// The result is a hex-encoded 64-character string.
func BLAKE2bHasher() Hasher {
	return &digestHasher{newHash: func() hash.Hash {
		h, _ := blake2b.New256(nil) // only fails for keys over 64 bytes
		return h
	}}
}

// hashers is the read-only registry consulted by the Hash strategy.
var hashers = builtinHashers()

// builtinHashers returns the default hasher registry.
func builtinHashers() map[HashAlgo]Hasher {
	return map[HashAlgo]Hasher{
		HashMD5:     MD5Hasher(),
		HashSHA1:    SHA1Hasher(),
		HashSHA256:  SHA256Hasher(),
		HashSHA512:  SHA512Hasher(),
		HashSHA3:    SHA3Hasher(),
		HashBLAKE2b: BLAKE2bHasher(),
	}
}
