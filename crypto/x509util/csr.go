package x509util

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/pem"

	coreasn1 "github.com/aosedge/aos_core_lib_go/crypto/asn1"
	coreerrors "github.com/aosedge/aos_core_lib_go/infrastructure/errors"
)

// CreateCSR builds and signs a PEM-encoded certificate signing request.
// allowedExtraOIDs, when non-nil, restricts ExtraExtensions to that set
// (the provider back-end only honours Extended-Key-Usage); a nil slice
// allows any numeric OID the caller supplies (the mbedTLS-style back-end).
func CreateCSR(template CSRTemplate, signer Signer, allowedExtraOIDs []string) ([]byte, error) {
	subject, err := decodeDNToName(template.SubjectDN)
	if err != nil {
		return nil, err
	}

	sigAlg, err := signatureAlgorithmFor(signer.DigestAlgorithm(), signer.Public())
	if err != nil {
		return nil, err
	}

	req := &x509.CertificateRequest{
		Subject:            subject,
		DNSNames:           template.DNSNames,
		SignatureAlgorithm: sigAlg,
	}

	for _, ext := range template.ExtraExtensions {
		if _, err := coreasn1.WriteOID(ext.OID); err != nil {
			return nil, coreerrors.InvalidArgumentf("x509util: invalid extra extension OID %q", ext.OID)
		}

		if allowedExtraOIDs != nil {
			allowed := false
			for _, a := range allowedExtraOIDs {
				if a == ext.OID {
					allowed = true
					break
				}
			}
			if !allowed {
				return nil, coreerrors.NotSupportedf("x509util: back-end does not support extension %q", ext.OID)
			}
		}

		oid, err := parseOIDString(ext.OID)
		if err != nil {
			return nil, err
		}
		req.ExtraExtensions = append(req.ExtraExtensions, pkix.Extension{Id: oid, Value: ext.Value})
	}

	der, err := x509.CreateCertificateRequest(nil, req, signer)
	if err != nil {
		return nil, coreerrors.Failedf(err, "x509util: create csr")
	}

	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE REQUEST", Bytes: der}), nil
}

func parseOIDString(dotted string) (asn1.ObjectIdentifier, error) {
	var oid asn1.ObjectIdentifier
	cur := 0
	started := false
	for i := 0; i <= len(dotted); i++ {
		if i == len(dotted) || dotted[i] == '.' {
			if !started {
				return nil, coreerrors.InvalidArgumentf("x509util: invalid OID %q", dotted)
			}
			oid = append(oid, cur)
			cur = 0
			started = false
			continue
		}
		c := dotted[i]
		if c < '0' || c > '9' {
			return nil, coreerrors.InvalidArgumentf("x509util: invalid OID %q", dotted)
		}
		cur = cur*10 + int(c-'0')
		started = true
	}
	if len(oid) < 2 {
		return nil, coreerrors.InvalidArgumentf("x509util: invalid OID %q", dotted)
	}
	return oid, nil
}

// decodeDNToName decodes a "CN=A, C=B" style DN into a pkix.Name by
// round-tripping it through the DER DN codec, keeping a single source of
// truth for attribute-name-to-OID mapping.
func decodeDNToName(dn string) (pkix.Name, error) {
	der, err := coreasn1.EncodeDN(dn)
	if err != nil {
		return pkix.Name{}, err
	}

	var rdns pkix.RDNSequence
	if _, err := asn1.Unmarshal(der, &rdns); err != nil {
		return pkix.Name{}, coreerrors.InvalidArgumentf("x509util: malformed subject DN %q", dn)
	}

	var name pkix.Name
	name.FillFromRDNSequence(&rdns)
	return name, nil
}
