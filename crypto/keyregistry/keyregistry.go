// Package keyregistry implements the process-wide opaque key registry: a
// bounded table of slots, each addressed by an identifier handed to a
// crypto back-end instead of the key material itself.
package keyregistry

import (
	"sync"

	coreerrors "github.com/aosedge/aos_core_lib_go/infrastructure/errors"
	"github.com/aosedge/aos_core_lib_go/infrastructure/metrics"
)

// DigestAlgorithm names a hash algorithm selected for a registered key.
type DigestAlgorithm string

const (
	SHA1   DigestAlgorithm = "sha1"
	SHA224 DigestAlgorithm = "sha224"
	SHA256 DigestAlgorithm = "sha256"
	SHA384 DigestAlgorithm = "sha384"
	SHA512 DigestAlgorithm = "sha512"
)

// Usage flags mirror the back-end key attribute bitmask: every registered
// key is usable for both signing and verifying a pre-hashed digest.
const (
	UsageSignHash   = 1 << 0
	UsageVerifyHash = 1 << 1
)

// KeyType distinguishes the public key algorithm family backing a slot.
type KeyType string

const (
	KeyTypeRSA   KeyType = "rsa"
	KeyTypeECDSA KeyType = "ecdsa"
)

// PrivateKeyCapability is the back-end's view of a private key: enough to
// size a slot's digest band and to dispatch a signing operation, without
// ever exposing the key material itself outside the back-end.
type PrivateKeyCapability interface {
	// KeyType reports the public key algorithm family.
	KeyType() KeyType
	// BitLength reports the RSA modulus bit length or the ECDSA curve
	// bit length.
	BitLength() int
	// SignHash signs a pre-hashed digest and returns the signature.
	SignHash(digest []byte, algorithm DigestAlgorithm) ([]byte, error)
	// PublicKeyDER exports the public key in DER.
	PublicKeyDER() ([]byte, error)
	// Destroy releases any key material the back-end derived for this
	// capability. Called on deregistration.
	Destroy()
}

// KeyAttributes is the attribute bundle a back-end callback populates for
// a resolved built-in key identifier.
type KeyAttributes struct {
	Type       KeyType
	Algorithm  DigestAlgorithm
	BitLength  int
	UsageFlags int
}

type slot struct {
	allocated  bool
	id         int
	capability PrivateKeyCapability
	digest     DigestAlgorithm
}

// Registry is a bounded, mutex-protected table of opaque key slots.
// Operations are short and non-blocking, so a single mutex is sufficient
// — there is no I/O or long-running work under the lock.
type Registry struct {
	mu       sync.Mutex
	slots    []slot
	minID    int
	maxID    int
	lastUsed int
}

// New creates a Registry with the given slot capacity and the inclusive
// range of back-end-reserved built-in identifiers it may hand out.
func New(capacity, minID, maxID int) *Registry {
	return &Registry{
		slots:    make([]slot, capacity),
		minID:    minID,
		maxID:    maxID,
		lastUsed: minID - 1,
	}
}

// Register allocates a free slot for capability, selects its digest
// algorithm from the key's type and size, and returns the back-end
// identifier to use for subsequent sign/export calls.
func (r *Registry) Register(capability PrivateKeyCapability) (int, DigestAlgorithm, error) {
	if capability == nil {
		return 0, "", coreerrors.InvalidArgumentf("keyregistry: nil capability")
	}

	digest, err := SelectDigestAlgorithm(capability.KeyType(), capability.BitLength())
	if err != nil {
		return 0, "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id, err := r.nextFreeID()
	if err != nil {
		return 0, "", err
	}

	idx := r.freeSlotIndex()
	if idx < 0 {
		return 0, "", coreerrors.OutOfRangef("keyregistry: no free slots (capacity %d)", len(r.slots))
	}

	r.slots[idx] = slot{allocated: true, id: id, capability: capability, digest: digest}
	r.lastUsed = id

	metrics.SetKeySlotUsage(r.occupied(), len(r.slots))

	return id, digest, nil
}

// Deregister frees the slot holding id and instructs the back-end to
// destroy any derived key material.
func (r *Registry) Deregister(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.slots {
		if r.slots[i].allocated && r.slots[i].id == id {
			r.slots[i].capability.Destroy()
			r.slots[i] = slot{}
			metrics.SetKeySlotUsage(r.occupied(), len(r.slots))
			return nil
		}
	}

	return coreerrors.NotFoundf("keyregistry: slot %d not registered", id)
}

// Resolve returns the slot's attributes for a previously registered
// identifier. This is the back-end callback used to populate key
// attributes on demand.
func (r *Registry) Resolve(id int) (KeyAttributes, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.find(id)
	if err != nil {
		return KeyAttributes{}, err
	}

	return KeyAttributes{
		Type:       s.capability.KeyType(),
		Algorithm:  s.digest,
		BitLength:  s.capability.BitLength(),
		UsageFlags: UsageSignHash | UsageVerifyHash,
	}, nil
}

// SignHash dispatches a pre-hashed digest to the capability stored at id.
func (r *Registry) SignHash(id int, digest []byte) ([]byte, error) {
	r.mu.Lock()
	s, err := r.find(id)
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}

	return s.capability.SignHash(digest, s.digest)
}

// ExportPublicKeyDER exports the DER public key stored at id.
func (r *Registry) ExportPublicKeyDER(id int) ([]byte, error) {
	r.mu.Lock()
	s, err := r.find(id)
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}

	return s.capability.PublicKeyDER()
}

// find must be called with r.mu held.
func (r *Registry) find(id int) (slot, error) {
	for _, s := range r.slots {
		if s.allocated && s.id == id {
			return s, nil
		}
	}
	return slot{}, coreerrors.NotFoundf("keyregistry: slot %d not registered", id)
}

// freeSlotIndex must be called with r.mu held.
func (r *Registry) freeSlotIndex() int {
	for i := range r.slots {
		if !r.slots[i].allocated {
			return i
		}
	}
	return -1
}

// occupied must be called with r.mu held.
func (r *Registry) occupied() int {
	n := 0
	for _, s := range r.slots {
		if s.allocated {
			n++
		}
	}
	return n
}

// nextFreeID scans the reserved built-in identifier range starting after
// the last identifier handed out, wrapping once. Must be called with
// r.mu held.
func (r *Registry) nextFreeID() (int, error) {
	span := r.maxID - r.minID + 1
	if span <= 0 {
		return 0, coreerrors.OutOfRangef("keyregistry: empty identifier range")
	}

	start := r.lastUsed + 1
	if start > r.maxID {
		start = r.minID
	}

	for i := 0; i < span; i++ {
		candidate := start + i
		if candidate > r.maxID {
			candidate -= span
		}
		if !r.idInUse(candidate) {
			return candidate, nil
		}
	}

	return 0, coreerrors.OutOfRangef("keyregistry: built-in identifier range %d-%d exhausted", r.minID, r.maxID)
}

// idInUse must be called with r.mu held.
func (r *Registry) idInUse(id int) bool {
	for _, s := range r.slots {
		if s.allocated && s.id == id {
			return true
		}
	}
	return false
}

// SelectDigestAlgorithm picks the digest algorithm band for a key, by
// RSA modulus bit length or ECDSA curve bit length.
func SelectDigestAlgorithm(keyType KeyType, bitLength int) (DigestAlgorithm, error) {
	switch keyType {
	case KeyTypeRSA:
		switch {
		case bitLength < 2048:
			return SHA1, nil
		case bitLength <= 3072:
			return SHA256, nil
		case bitLength <= 7680:
			return SHA384, nil
		default:
			return SHA512, nil
		}
	case KeyTypeECDSA:
		switch {
		case bitLength <= 160:
			return SHA1, nil
		case bitLength <= 224:
			return SHA224, nil
		case bitLength <= 256:
			return SHA256, nil
		case bitLength <= 384:
			return SHA384, nil
		default:
			return SHA512, nil
		}
	default:
		return "", coreerrors.NotSupportedf("keyregistry: unsupported key type %q", keyType)
	}
}
