// Package x509util implements the certificate/CSR builder and parser:
// template-driven certificate and CSR creation signed through an opaque
// key handle, PEM/DER parsing into a tagged Certificate value, and
// polymorphic signature/chain verification.
package x509util

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"time"

	"github.com/aosedge/aos_core_lib_go/crypto/keyregistry"
)

// Extension is a raw X.509 extension: an OID plus its DER-encoded value.
type Extension struct {
	OID   string
	Value []byte
}

// CSRTemplate describes a certificate signing request to build.
type CSRTemplate struct {
	SubjectDN       string
	DNSNames        []string
	ExtraExtensions []Extension
}

// CertTemplate describes a certificate to build. SerialNumber, IssuerDN,
// SubjectKeyID and AuthorityKeyID may be left empty to let CreateCertificate
// derive them per the rules in this package's doc comments.
type CertTemplate struct {
	SubjectDN      string
	IssuerDN       string
	SerialNumber   []byte
	NotBefore      time.Time
	NotAfter       time.Time
	SubjectKeyID   []byte
	AuthorityKeyID []byte
	IssuerURLs     []string
}

// PublicKey tags a decoded public key with its algorithm family so
// callers can dispatch without a type switch on the concrete stdlib
// type.
type PublicKey struct {
	Algorithm string // "rsa" or "ecdsa"
	RSA       *rsa.PublicKey
	ECDSA     *ecdsa.PublicKey
}

// Certificate is the parsed, tagged view of an X.509 certificate.
type Certificate struct {
	SubjectDN      []byte // raw DER Name
	IssuerDN       []byte // raw DER Name
	SerialNumber   []byte // big-endian magnitude
	SubjectKeyID   []byte
	AuthorityKeyID []byte
	IssuerURLs     []string
	NotBefore      time.Time
	NotAfter       time.Time
	PublicKey      PublicKey
	Raw            []byte // complete DER of the certificate
}

// Signer is the opaque-key contract this package signs with: a
// crypto.Signer whose private key material never leaves the back-end
// that implements it (typically crypto/keyregistry.Registry bound to one
// slot, see NewRegistrySigner).
type Signer interface {
	crypto.Signer

	// DigestAlgorithm reports the digest band the signer's key was
	// registered under (spec §4.2's band selection), so CreateCSR and
	// CreateCertificate can set a template's SignatureAlgorithm to match
	// what the signer will actually hash with.
	DigestAlgorithm() keyregistry.DigestAlgorithm
}

const oidIssuerAltName = "2.5.29.18"

// ExtKeyUsageOID is the Extended-Key-Usage extension OID, the only extra
// CSR extension the provider back-end honours.
const ExtKeyUsageOID = "2.5.29.37"
