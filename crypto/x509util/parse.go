package x509util

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"io"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/aosedge/aos_core_lib_go/crypto/keyregistry"
	coreerrors "github.com/aosedge/aos_core_lib_go/infrastructure/errors"
)

// PEMToX509Certs parses every certificate in a PEM blob. The number of
// results equals the number of "-----BEGIN CERTIFICATE-----" markers in
// the source; a malformed block anywhere in the blob fails the whole
// call, with every block's decode error reported together.
func PEMToX509Certs(pemData []byte) ([]Certificate, error) {
	markers := strings.Count(string(pemData), "-----BEGIN CERTIFICATE-----")

	var (
		result []Certificate
		errs   *multierror.Error
		rest   = pemData
	)

	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}

		cert, err := DERToX509Cert(block.Bytes)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		result = append(result, cert)
	}

	if errs != nil {
		return nil, coreerrors.Failedf(errs.ErrorOrNil(), "x509util: %d of %d certificates failed to parse", len(errs.Errors), markers)
	}
	if len(result) != markers {
		return nil, coreerrors.InvalidArgumentf("x509util: expected %d certificates, parsed %d", markers, len(result))
	}

	return result, nil
}

// X509CertToPEM encodes a parsed certificate's raw DER as PEM.
func X509CertToPEM(cert Certificate) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
}

// DERToX509Cert parses a single DER certificate into the tagged
// Certificate shape.
func DERToX509Cert(der []byte) (Certificate, error) {
	parsed, err := x509.ParseCertificate(der)
	if err != nil {
		return Certificate{}, coreerrors.Failedf(err, "x509util: parse certificate")
	}

	pub, err := taggedPublicKey(parsed.PublicKey)
	if err != nil {
		return Certificate{}, err
	}

	var issuerURLs []string
	for _, ext := range parsed.Extensions {
		if ext.Id.String() == oidIssuerAltName {
			issuerURLs = decodeURIGeneralNames(ext.Value)
		}
	}

	return Certificate{
		SubjectDN:      parsed.RawSubject,
		IssuerDN:       parsed.RawIssuer,
		SerialNumber:   parsed.SerialNumber.Bytes(),
		SubjectKeyID:   parsed.SubjectKeyId,
		AuthorityKeyID: parsed.AuthorityKeyId,
		IssuerURLs:     issuerURLs,
		NotBefore:      parsed.NotBefore,
		NotAfter:       parsed.NotAfter,
		PublicKey:      pub,
		Raw:            append([]byte(nil), der...),
	}, nil
}

// PEMToX509PrivKey parses a PEM-encoded RSA private key into an opaque
// handle usable as a Signer. ECDSA keys are not supported by this
// back-end and return a typed "not supported" error.
func PEMToX509PrivKey(pemData []byte) (Signer, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, coreerrors.InvalidArgumentf("x509util: malformed private key PEM")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return rsaSigner{key}, nil
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, coreerrors.Failedf(err, "x509util: parse private key")
	}

	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, coreerrors.NotSupportedf("x509util: only RSA private keys are supported")
	}

	return rsaSigner{rsaKey}, nil
}

// rsaSigner wraps a parsed RSA private key as a Signer for callers that
// hold PEM key material directly rather than an opaque registry handle.
type rsaSigner struct {
	key *rsa.PrivateKey
}

func (s rsaSigner) Public() crypto.PublicKey { return &s.key.PublicKey }

// DigestAlgorithm reports the digest band keyregistry selects for the
// key's modulus size.
func (s rsaSigner) DigestAlgorithm() keyregistry.DigestAlgorithm {
	alg, _ := keyregistry.SelectDigestAlgorithm(keyregistry.KeyTypeRSA, s.key.N.BitLen())
	return alg
}

func (s rsaSigner) Sign(_ io.Reader, digest []byte, opts crypto.SignerOpts) ([]byte, error) {
	return s.key.Sign(rand.Reader, digest, opts)
}
