// Package provider defines the crypto provider facade: a single
// interface composing the opaque key registry, stateful hash/RNG/UUID
// helpers, the AES-CBC cipher, and the X.509 CSR/certificate builder,
// so callers can swap the back-end dispatching key operations without
// changing call sites. Two back-ends satisfy this contract:
// crypto/provider/psa (opaque keys addressed by a keyregistry slot id)
// and crypto/provider/software (keys addressed by a named parameter,
// simulating a loadable provider's PrivateKeyHandle).
package provider

import (
	"github.com/aosedge/aos_core_lib_go/crypto/aescbc"
	"github.com/aosedge/aos_core_lib_go/crypto/hashrand"
	"github.com/aosedge/aos_core_lib_go/crypto/keyregistry"
	"github.com/aosedge/aos_core_lib_go/crypto/x509util"
)

// KeyHandle addresses a private key registered with a back-end. Its
// concrete shape is back-end specific (a keyregistry slot id for psa, an
// opaque named parameter string for software) and must not be
// interpreted by callers.
type KeyHandle interface {
	String() string
}

// Provider is the uniform crypto facade. Every method must behave
// identically across back-ends, modulo the wording of an error's
// message.
type Provider interface {
	// RegisterKey hands capability to the back-end and returns a handle
	// plus the digest algorithm band selected for it.
	RegisterKey(capability keyregistry.PrivateKeyCapability) (KeyHandle, keyregistry.DigestAlgorithm, error)
	// DeregisterKey releases a previously registered key.
	DeregisterKey(handle KeyHandle) error
	// KeyAttributes resolves a registered key's attributes.
	KeyAttributes(handle KeyHandle) (keyregistry.KeyAttributes, error)
	// Signer adapts handle to a crypto.Signer without exposing key
	// material outside the back-end.
	Signer(handle KeyHandle) (x509util.Signer, error)

	CreateHash(algorithm hashrand.Algorithm) (*hashrand.Hasher, error)
	RandInt(maxValue uint64) (uint64, error)
	RandBuffer(buf []byte) error
	CreateUUIDv4() ([16]byte, error)
	CreateUUIDv5(namespace [16]byte, name string) [16]byte

	NewCipher(key, iv []byte, direction aescbc.Direction) (*aescbc.Cipher, error)

	CreateCSR(template x509util.CSRTemplate, handle KeyHandle, allowedExtraOIDs []string) ([]byte, error)
	CreateCertificate(template x509util.CertTemplate, parent *x509util.Certificate, handle KeyHandle) ([]byte, error)
	CreateClientCert(csrPEM, caCertPEM, serial []byte, handle KeyHandle) ([]byte, error)

	// Close releases all back-end resources. Safe to call once;
	// back-ends make a second call a no-op rather than erroring.
	Close() error
}
