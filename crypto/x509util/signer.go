package x509util

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/asn1"
	"io"
	"math/big"

	"github.com/aosedge/aos_core_lib_go/crypto/keyregistry"
	coreerrors "github.com/aosedge/aos_core_lib_go/infrastructure/errors"
)

// RegistrySigner adapts a slot in a crypto/keyregistry.Registry to
// crypto.Signer, so the key material backing a CSR or certificate
// signature never has to leave the registry's back-end.
type RegistrySigner struct {
	registry *keyregistry.Registry
	id       int
	public   crypto.PublicKey
	digest   keyregistry.DigestAlgorithm
}

// NewRegistrySigner resolves the public key and digest band for id and
// returns a Signer bound to that registry slot.
func NewRegistrySigner(registry *keyregistry.Registry, id int) (*RegistrySigner, error) {
	der, err := registry.ExportPublicKeyDER(id)
	if err != nil {
		return nil, err
	}

	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, coreerrors.Failedf(err, "x509util: parse exported public key")
	}

	attrs, err := registry.Resolve(id)
	if err != nil {
		return nil, err
	}

	return &RegistrySigner{registry: registry, id: id, public: pub, digest: attrs.Algorithm}, nil
}

// Public returns the signer's public key.
func (s *RegistrySigner) Public() crypto.PublicKey {
	return s.public
}

// DigestAlgorithm reports the digest band the registry slot was
// registered under.
func (s *RegistrySigner) DigestAlgorithm() keyregistry.DigestAlgorithm {
	return s.digest
}

// Sign dispatches the pre-hashed digest to the registry slot's
// capability. rand is accepted to satisfy crypto.Signer but the hash
// itself is computed by the caller, matching the opaque-key contract of
// §4.2; opts.HashFunc, when the caller supplies one, must agree with the
// slot's digest band or the resulting signature would not verify against
// a certificate labelled with that band.
func (s *RegistrySigner) Sign(_ io.Reader, digest []byte, opts crypto.SignerOpts) ([]byte, error) {
	if err := CheckHashConsistency(opts, s.digest); err != nil {
		return nil, err
	}
	sig, err := s.registry.SignHash(s.id, digest)
	if err != nil {
		return nil, err
	}
	// Capabilities return ECDSA signatures as fixed-width r||s (the form
	// Verify accepts); crypto.Signer callers expect ASN.1 DER.
	if pub, ok := s.public.(*ecdsa.PublicKey); ok {
		size := (pub.Curve.Params().BitSize + 7) / 8
		if len(sig) != 2*size {
			return nil, coreerrors.InvalidArgumentf("x509util: ecdsa signature is %d bytes, want %d", len(sig), 2*size)
		}
		return asn1.Marshal(struct{ R, S *big.Int }{new(big.Int).SetBytes(sig[:size]), new(big.Int).SetBytes(sig[size:])})
	}
	return sig, nil
}
