// Package psa implements the opaque-key-backed crypto provider back-end
// (spec §4.6 "PSA/opaque back-end"): every key lives in a bounded
// crypto/keyregistry.Registry slot table, and the handle this package
// hands callers is nothing more than that slot's back-end identifier.
package psa

import (
	"strconv"

	"github.com/aosedge/aos_core_lib_go/crypto/aescbc"
	"github.com/aosedge/aos_core_lib_go/crypto/hashrand"
	"github.com/aosedge/aos_core_lib_go/crypto/keyregistry"
	"github.com/aosedge/aos_core_lib_go/crypto/provider"
	"github.com/aosedge/aos_core_lib_go/crypto/x509util"
	coreerrors "github.com/aosedge/aos_core_lib_go/infrastructure/errors"
)

// handle is a keyregistry slot identifier wearing the provider.KeyHandle
// contract.
type handle int

func (h handle) String() string { return strconv.Itoa(int(h)) }

// Backend is the PSA/opaque-key provider.Provider implementation.
type Backend struct {
	registry *keyregistry.Registry
}

// New creates a Backend with a slot table of the given capacity and
// back-end-reserved identifier range.
func New(capacity, minID, maxID int) *Backend {
	return &Backend{registry: keyregistry.New(capacity, minID, maxID)}
}

func toID(h provider.KeyHandle) (int, error) {
	id, ok := h.(handle)
	if !ok {
		return 0, coreerrors.InvalidArgumentf("psa: handle %v was not issued by this back-end", h)
	}
	return int(id), nil
}

// RegisterKey registers capability in the slot table.
func (b *Backend) RegisterKey(capability keyregistry.PrivateKeyCapability) (provider.KeyHandle, keyregistry.DigestAlgorithm, error) {
	id, digest, err := b.registry.Register(capability)
	if err != nil {
		return nil, "", err
	}
	return handle(id), digest, nil
}

// DeregisterKey releases the slot behind handle.
func (b *Backend) DeregisterKey(h provider.KeyHandle) error {
	id, err := toID(h)
	if err != nil {
		return err
	}
	return b.registry.Deregister(id)
}

// KeyAttributes resolves the slot's attributes.
func (b *Backend) KeyAttributes(h provider.KeyHandle) (keyregistry.KeyAttributes, error) {
	id, err := toID(h)
	if err != nil {
		return keyregistry.KeyAttributes{}, err
	}
	return b.registry.Resolve(id)
}

// Signer adapts handle to a crypto.Signer via crypto/x509util.RegistrySigner.
func (b *Backend) Signer(h provider.KeyHandle) (x509util.Signer, error) {
	id, err := toID(h)
	if err != nil {
		return nil, err
	}
	return x509util.NewRegistrySigner(b.registry, id)
}

// CreateHash dispatches directly to crypto/hashrand; hashing needs no
// opaque key and is identical across back-ends.
func (b *Backend) CreateHash(algorithm hashrand.Algorithm) (*hashrand.Hasher, error) {
	return hashrand.CreateHash(algorithm)
}

// RandInt dispatches directly to crypto/hashrand.
func (b *Backend) RandInt(maxValue uint64) (uint64, error) {
	return hashrand.RandInt(maxValue)
}

// RandBuffer dispatches directly to crypto/hashrand.
func (b *Backend) RandBuffer(buf []byte) error {
	return hashrand.RandBuffer(buf)
}

// CreateUUIDv4 dispatches directly to crypto/hashrand.
func (b *Backend) CreateUUIDv4() ([16]byte, error) {
	return hashrand.CreateUUIDv4()
}

// CreateUUIDv5 dispatches directly to crypto/hashrand.
func (b *Backend) CreateUUIDv5(namespace [16]byte, name string) [16]byte {
	return hashrand.CreateUUIDv5(namespace, name)
}

// NewCipher dispatches directly to crypto/aescbc.
func (b *Backend) NewCipher(key, iv []byte, direction aescbc.Direction) (*aescbc.Cipher, error) {
	return aescbc.Init(key, iv, direction)
}

// CreateCSR signs a CSR through the registry slot behind handle.
func (b *Backend) CreateCSR(template x509util.CSRTemplate, h provider.KeyHandle, allowedExtraOIDs []string) ([]byte, error) {
	signer, err := b.Signer(h)
	if err != nil {
		return nil, err
	}
	return x509util.CreateCSR(template, signer, allowedExtraOIDs)
}

// CreateCertificate signs a certificate through the registry slot behind handle.
func (b *Backend) CreateCertificate(template x509util.CertTemplate, parent *x509util.Certificate, h provider.KeyHandle) ([]byte, error) {
	signer, err := b.Signer(h)
	if err != nil {
		return nil, err
	}
	return x509util.CreateCertificate(template, parent, signer)
}

// CreateClientCert issues a client certificate signed through the
// registry slot behind handle.
func (b *Backend) CreateClientCert(csrPEM, caCertPEM, serial []byte, h provider.KeyHandle) ([]byte, error) {
	signer, err := b.Signer(h)
	if err != nil {
		return nil, err
	}
	return x509util.CreateClientCert(csrPEM, caCertPEM, serial, signer)
}

// Close releases no additional resources beyond the slot table, which
// is reclaimed by the garbage collector once the Backend is dropped.
func (b *Backend) Close() error {
	return nil
}
