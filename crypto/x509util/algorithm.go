package x509util

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/x509"

	"github.com/aosedge/aos_core_lib_go/crypto/keyregistry"
	coreerrors "github.com/aosedge/aos_core_lib_go/infrastructure/errors"
)

// hashForDigest maps a keyregistry digest band to its stdlib crypto.Hash.
func hashForDigest(alg keyregistry.DigestAlgorithm) (crypto.Hash, error) {
	switch alg {
	case keyregistry.SHA1:
		return crypto.SHA1, nil
	case keyregistry.SHA256:
		return crypto.SHA256, nil
	case keyregistry.SHA384:
		return crypto.SHA384, nil
	case keyregistry.SHA512:
		return crypto.SHA512, nil
	default:
		return 0, coreerrors.NotSupportedf("x509util: digest band %q has no x509 signature algorithm", alg)
	}
}

// signatureAlgorithmFor derives the x509.SignatureAlgorithm a CSR or
// certificate template must carry so the hash the stdlib computes over
// the TBS bytes matches the digest band pub's key was registered under.
// Leaving SignatureAlgorithm unset lets the stdlib default to
// SHA256WithRSA regardless of the key's actual band, which produces a
// certificate whose label disagrees with the digest the signer actually
// used.
func signatureAlgorithmFor(alg keyregistry.DigestAlgorithm, pub crypto.PublicKey) (x509.SignatureAlgorithm, error) {
	_, ecdsaKey := pub.(*ecdsa.PublicKey)

	switch alg {
	case keyregistry.SHA1:
		if ecdsaKey {
			return x509.ECDSAWithSHA1, nil
		}
		return x509.SHA1WithRSA, nil
	case keyregistry.SHA256:
		if ecdsaKey {
			return x509.ECDSAWithSHA256, nil
		}
		return x509.SHA256WithRSA, nil
	case keyregistry.SHA384:
		if ecdsaKey {
			return x509.ECDSAWithSHA384, nil
		}
		return x509.SHA384WithRSA, nil
	case keyregistry.SHA512:
		if ecdsaKey {
			return x509.ECDSAWithSHA512, nil
		}
		return x509.SHA512WithRSA, nil
	default:
		// SHA224 is a valid band for a narrow ECDSA curve (§4.2) but
		// neither RSA nor ECDSA has a SHA224 entry in x509.SignatureAlgorithm.
		return x509.UnknownSignatureAlgorithm, coreerrors.NotSupportedf(
			"x509util: digest band %q has no x509 signature algorithm", alg)
	}
}

// CheckHashConsistency rejects a Sign call whose caller-asserted hash
// (opts.HashFunc, set by the x509 stdlib from a template's
// SignatureAlgorithm) disagrees with bound, the digest band the signing
// key was actually registered under. Catches a template/signer mismatch
// before it silently produces a certificate whose signature won't verify.
func CheckHashConsistency(opts crypto.SignerOpts, bound keyregistry.DigestAlgorithm) error {
	if opts == nil || opts.HashFunc() == 0 {
		return nil
	}

	want, err := hashForDigest(bound)
	if err != nil {
		return err
	}

	if opts.HashFunc() != want {
		return coreerrors.InvalidArgumentf(
			"x509util: caller requested hash %v but key is bound to digest band %q (%v)",
			opts.HashFunc(), bound, want)
	}
	return nil
}
