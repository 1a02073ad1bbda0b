package x509util

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/asn1"
	"math/big"
	"time"

	coreerrors "github.com/aosedge/aos_core_lib_go/infrastructure/errors"
)

// SignaturePadding selects the RSA padding scheme a signature was
// produced with. ECDSA signatures accept only PaddingNone.
type SignaturePadding int

const (
	PaddingNone SignaturePadding = iota
	PaddingPKCS1v15
	PaddingPSS
)

// HashAlgorithm names one of the digest algorithms Verify accepts.
type HashAlgorithm = crypto.Hash

// Verify checks sig against digest using pub, dispatching on the public
// key's concrete type. RSA accepts PKCS1v15 or PSS padding; any other
// padding is rejected as invalid input. ECDSA requires PaddingNone and
// verifies an r‖s signature.
func Verify(pub PublicKey, hashAlg HashAlgorithm, padding SignaturePadding, digest, sig []byte) error {
	switch {
	case pub.RSA != nil:
		switch padding {
		case PaddingPKCS1v15:
			if err := rsa.VerifyPKCS1v15(pub.RSA, hashAlg, digest, sig); err != nil {
				return coreerrors.Failedf(err, "x509util: rsa pkcs1v15 verify")
			}
			return nil
		case PaddingPSS:
			if err := rsa.VerifyPSS(pub.RSA, hashAlg, digest, sig, nil); err != nil {
				return coreerrors.Failedf(err, "x509util: rsa pss verify")
			}
			return nil
		default:
			return coreerrors.InvalidArgumentf("x509util: unsupported RSA padding")
		}

	case pub.ECDSA != nil:
		if padding != PaddingNone {
			return coreerrors.InvalidArgumentf("x509util: ECDSA signatures use no padding")
		}
		if len(sig) == 0 || len(sig)%2 != 0 {
			return coreerrors.InvalidArgumentf("x509util: malformed r||s signature")
		}
		half := len(sig) / 2
		r := new(big.Int).SetBytes(sig[:half])
		s := new(big.Int).SetBytes(sig[half:])
		if !ecdsa.Verify(pub.ECDSA, digest, r, s) {
			return coreerrors.Failedf(nil, "x509util: ecdsa verify failed")
		}
		return nil

	default:
		return coreerrors.InvalidArgumentf("x509util: unsupported public key type")
	}
}

// ChainVerifyOptions controls certificate chain verification.
type ChainVerifyOptions struct {
	// CurrentTime overrides wall-clock time for expiry checks. Zero
	// means "use time.Now()".
	CurrentTime time.Time
}

// VerifyChain builds a trust store from roots and an intermediate pool
// from intermediates, then verifies leaf against them. The back-end's
// rejection reason is surfaced verbatim.
func VerifyChain(roots, intermediates []Certificate, leaf Certificate, opts ChainVerifyOptions) ([][]*x509.Certificate, error) {
	rootPool := x509.NewCertPool()
	for _, c := range roots {
		parsed, err := x509.ParseCertificate(c.Raw)
		if err != nil {
			return nil, coreerrors.Failedf(err, "x509util: parse root certificate")
		}
		rootPool.AddCert(parsed)
	}

	intermediatePool := x509.NewCertPool()
	for _, c := range intermediates {
		parsed, err := x509.ParseCertificate(c.Raw)
		if err != nil {
			return nil, coreerrors.Failedf(err, "x509util: parse intermediate certificate")
		}
		intermediatePool.AddCert(parsed)
	}

	leafCert, err := x509.ParseCertificate(leaf.Raw)
	if err != nil {
		return nil, coreerrors.Failedf(err, "x509util: parse leaf certificate")
	}

	verifyOpts := x509.VerifyOptions{Roots: rootPool, Intermediates: intermediatePool}
	if !opts.CurrentTime.IsZero() {
		verifyOpts.CurrentTime = opts.CurrentTime
	}

	chains, err := leafCert.Verify(verifyOpts)
	if err != nil {
		return nil, coreerrors.Failedf(err, "x509util: chain verification failed")
	}

	return chains, nil
}

func taggedPublicKey(pub interface{}) (PublicKey, error) {
	switch key := pub.(type) {
	case *rsa.PublicKey:
		return PublicKey{Algorithm: "rsa", RSA: key}, nil
	case *ecdsa.PublicKey:
		return PublicKey{Algorithm: "ecdsa", ECDSA: key}, nil
	default:
		return PublicKey{}, coreerrors.NotSupportedf("x509util: unsupported public key algorithm")
	}
}

// decodeURIGeneralNames decodes a SEQUENCE of [6] IA5String GeneralName
// values (as written by issuerAltNameExtension) into plain strings.
func decodeURIGeneralNames(der []byte) []string {
	var seq asn1.RawValue
	if _, err := asn1.Unmarshal(der, &seq); err != nil {
		return nil
	}

	var uris []string
	rest := seq.Bytes
	for len(rest) > 0 {
		var uri string
		next, err := asn1.UnmarshalWithParams(rest, &uri, "tag:6")
		if err != nil {
			break
		}
		uris = append(uris, uri)
		rest = next
	}

	return uris
}
