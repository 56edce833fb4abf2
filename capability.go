package cloak

// HashAlgo represents a supported digest for the Hash strategy.
// Only deterministic, unsalted digests are offered: the same input must
// always produce the same token.
type HashAlgo string

const (
	// HashMD5 uses MD5 (32 hex characters). Fingerprinting only.
	HashMD5 HashAlgo = "md5"

	// HashSHA1 uses SHA-1 (40 hex characters). Fingerprinting only.
	HashSHA1 HashAlgo = "sha1"

	// HashSHA256 uses SHA-256 (64 hex characters).
	HashSHA256 HashAlgo = "sha256"

	// HashSHA512 uses SHA-512 (128 hex characters).
	HashSHA512 HashAlgo = "sha512"

	// HashSHA3 uses SHA3-256 (64 hex characters).
	HashSHA3 HashAlgo = "sha3-256"

	// HashBLAKE2b uses unkeyed BLAKE2b-256 (64 hex characters).
	HashBLAKE2b HashAlgo = "blake2b"
)

// validKinds contains all strategy kinds.
var validKinds = map[Kind]bool{
	KindTemplate:  true,
	KindHash:      true,
	KindSurrogate: true,
	KindRedact:    true,
	KindPartial:   true,
	KindCustom:    true,
}

// validHashAlgos contains all valid hash algorithms.
var validHashAlgos = map[HashAlgo]bool{
	HashMD5:     true,
	HashSHA1:    true,
	HashSHA256:  true,
	HashSHA512:  true,
	HashSHA3:    true,
	HashBLAKE2b: true,
}

// validMaskTypes contains all valid partial mask formats.
// The empty format selects one from the entity type.
var validMaskTypes = map[MaskType]bool{
	MaskAuto:  true,
	MaskSSN:   true,
	MaskEmail: true,
	MaskPhone: true,
	MaskCard:  true,
	MaskIP:    true,
	MaskUUID:  true,
	MaskIBAN:  true,
	MaskName:  true,
}

// validFallbacks contains all surrogate fallbacks.
var validFallbacks = map[Fallback]bool{
	FallbackNone:      true,
	FallbackAsterisks: true,
	FallbackTemplate:  true,
}

// IsValidKind returns true if the kind is a known strategy variant.
func IsValidKind(k Kind) bool {
	return validKinds[k]
}

// IsValidHashAlgo returns true if the algorithm is a known hash algorithm.
func IsValidHashAlgo(algo HashAlgo) bool {
	return validHashAlgos[algo]
}

// IsValidMaskType returns true if the type is a known mask type.
func IsValidMaskType(mt MaskType) bool {
	return validMaskTypes[mt]
}

// IsValidFallback returns true if the fallback is a known surrogate fallback.
func IsValidFallback(f Fallback) bool {
	return validFallbacks[f]
}
