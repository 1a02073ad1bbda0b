// Package hashrand implements the stateful hasher family, the CSPRNG
// helpers, and UUIDv4/v5 generation shared across the crypto subsystem.
package hashrand

import (
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"hash"
	"math/big"

	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"

	coreerrors "github.com/aosedge/aos_core_lib_go/infrastructure/errors"
)

// Algorithm names a supported digest algorithm.
type Algorithm string

const (
	SHA1      Algorithm = "sha1"
	SHA224    Algorithm = "sha224"
	SHA256    Algorithm = "sha256"
	SHA384    Algorithm = "sha384"
	SHA512    Algorithm = "sha512"
	SHA512224 Algorithm = "sha512/224"
	SHA512256 Algorithm = "sha512/256"
	SHA3224   Algorithm = "sha3-224"
	SHA3256   Algorithm = "sha3-256"
)

// Hasher is a stateful digest: Update may be called any number of times,
// Finalize consumes the accumulated state exactly once.
type Hasher struct {
	h         hash.Hash
	finalized bool
}

// CreateHash constructs a Hasher for the named algorithm.
func CreateHash(algorithm Algorithm) (*Hasher, error) {
	var h hash.Hash

	switch algorithm {
	case SHA1:
		h = sha1.New()
	case SHA224:
		h = sha256.New224()
	case SHA256:
		h = sha256.New()
	case SHA384:
		h = sha512.New384()
	case SHA512:
		h = sha512.New()
	case SHA512224:
		h = sha512.New512_224()
	case SHA512256:
		h = sha512.New512_256()
	case SHA3224:
		h = sha3.New224()
	case SHA3256:
		h = sha3.New256()
	default:
		return nil, coreerrors.NotSupportedf("hashrand: unsupported hash algorithm %q", algorithm)
	}

	return &Hasher{h: h}, nil
}

// Update feeds more bytes into the digest. Calling Update after Finalize
// is a wrong-state error.
func (h *Hasher) Update(data []byte) error {
	if h.finalized {
		return coreerrors.WrongStatef("hashrand: update after finalize")
	}
	h.h.Write(data)
	return nil
}

// Finalize returns the digest and marks the hasher unusable for further
// updates.
func (h *Hasher) Finalize() ([]byte, error) {
	if h.finalized {
		return nil, coreerrors.WrongStatef("hashrand: finalize called twice")
	}
	h.finalized = true
	return h.h.Sum(nil), nil
}

// RandInt returns a cryptographically secure random value in [0, max).
func RandInt(max uint64) (uint64, error) {
	if max == 0 {
		return 0, coreerrors.InvalidArgumentf("hashrand: max must be > 0")
	}

	n, err := rand.Int(rand.Reader, new(big.Int).SetUint64(max))
	if err != nil {
		return 0, coreerrors.Failedf(err, "hashrand: rand_int")
	}

	return n.Uint64(), nil
}

// RandBuffer fills buf with cryptographically secure random bytes.
func RandBuffer(buf []byte) error {
	if _, err := rand.Read(buf); err != nil {
		return coreerrors.Failedf(err, "hashrand: rand_buffer")
	}
	return nil
}

// CreateUUIDv4 generates a random UUID with the version and variant
// nibbles set per RFC 4122.
func CreateUUIDv4() ([16]byte, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return [16]byte{}, coreerrors.Failedf(err, "hashrand: create uuidv4")
	}
	return [16]byte(id), nil
}

// CreateUUIDv5 generates a name-based UUID: SHA-1 over namespace||name,
// with the version and variant nibbles set per RFC 4122.
func CreateUUIDv5(namespace [16]byte, name string) [16]byte {
	id := uuid.NewSHA1(uuid.UUID(namespace), []byte(name))
	return [16]byte(id)
}
