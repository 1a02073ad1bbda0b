package x509util

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha1" //nolint:gosec // SKI/AKI per RFC 5280 use SHA-1 by convention, not for security
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/pem"
	"math/big"
	"time"

	coreasn1 "github.com/aosedge/aos_core_lib_go/crypto/asn1"
	coreerrors "github.com/aosedge/aos_core_lib_go/infrastructure/errors"
	"github.com/aosedge/aos_core_lib_go/infrastructure/metrics"
)

// serialBits is RFC 5280's maximum serial length (20 octets, 160 bits)
// minus one bit, so a randomly generated serial's top bit is never set
// and it is always interpreted as positive.
const serialBits = 159

// CreateCertificate builds and signs a PEM-encoded certificate from
// template, optionally chained to parent. When parent is nil the
// certificate is self-signed.
func CreateCertificate(template CertTemplate, parent *Certificate, signer Signer) ([]byte, error) {
	if template.NotBefore.IsZero() || template.NotAfter.IsZero() {
		return nil, coreerrors.InvalidArgumentf("x509util: NotBefore/NotAfter must not be zero")
	}

	serial, err := resolveSerial(template.SerialNumber)
	if err != nil {
		return nil, err
	}

	subject, err := decodeDNToName(template.SubjectDN)
	if err != nil {
		return nil, err
	}

	issuerDN := template.IssuerDN
	if parent != nil && len(parent.SubjectDN) > 0 {
		decoded, err := coreasn1.DecodeDN(parent.SubjectDN)
		if err != nil {
			return nil, err
		}
		issuerDN = decoded
	}
	issuer, err := decodeDNToName(issuerDN)
	if err != nil {
		return nil, err
	}

	cert := &x509.Certificate{
		SerialNumber: serial,
		Subject:      subject,
		Issuer:       issuer,
		NotBefore:    template.NotBefore.UTC(),
		NotAfter:     template.NotAfter.UTC(),
	}

	pub := signer.Public()

	sigAlg, err := signatureAlgorithmFor(signer.DigestAlgorithm(), pub)
	if err != nil {
		return nil, err
	}
	cert.SignatureAlgorithm = sigAlg

	ski := template.SubjectKeyID
	if len(ski) == 0 {
		ski, err = subjectKeyIDFromPublicKey(pub)
		if err != nil {
			return nil, err
		}
	}
	cert.SubjectKeyId = ski

	aki := template.AuthorityKeyID
	switch {
	case len(aki) == 0 && parent != nil && len(parent.SubjectKeyID) > 0:
		aki = parent.SubjectKeyID
	case len(aki) == 0:
		aki = ski
	}
	cert.AuthorityKeyId = aki

	if len(template.IssuerURLs) > 0 {
		ext, err := issuerAltNameExtension(template.IssuerURLs)
		if err != nil {
			return nil, err
		}
		for _, e := range cert.ExtraExtensions {
			if e.Id.Equal(ext.Id) {
				return nil, coreerrors.AlreadyExistsf("x509util: issuer alt name extension already set")
			}
		}
		cert.ExtraExtensions = append(cert.ExtraExtensions, ext)
	}

	parentCert := cert
	if parent != nil {
		parsed, err := x509.ParseCertificate(parent.Raw)
		if err != nil {
			return nil, coreerrors.Failedf(err, "x509util: parse parent certificate")
		}
		parentCert = parsed
	}

	der, err := x509.CreateCertificate(rand.Reader, cert, parentCert, pub, signer)
	if err != nil {
		return nil, coreerrors.Failedf(err, "x509util: create certificate")
	}

	metrics.RecordCertificateIssued(signatureAlgorithmName(pub))

	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), nil
}

// CreateClientCert issues a client certificate from csrPEM, signed by
// caSigner over caCertPEM's subject, valid for one year from now, using
// the digest band caSigner was registered under.
func CreateClientCert(csrPEM, caCertPEM []byte, serial []byte, caSigner Signer) ([]byte, error) {
	csrBlock, _ := pem.Decode(csrPEM)
	if csrBlock == nil {
		return nil, coreerrors.InvalidArgumentf("x509util: malformed CSR PEM")
	}
	csr, err := x509.ParseCertificateRequest(csrBlock.Bytes)
	if err != nil {
		return nil, coreerrors.Failedf(err, "x509util: parse csr")
	}
	if err := csr.CheckSignature(); err != nil {
		return nil, coreerrors.Failedf(err, "x509util: csr signature invalid")
	}

	caCertBlock, _ := pem.Decode(caCertPEM)
	if caCertBlock == nil {
		return nil, coreerrors.InvalidArgumentf("x509util: malformed CA certificate PEM")
	}
	caCert, err := x509.ParseCertificate(caCertBlock.Bytes)
	if err != nil {
		return nil, coreerrors.Failedf(err, "x509util: parse ca certificate")
	}

	serialNumber, err := resolveSerial(serial)
	if err != nil {
		return nil, err
	}

	sigAlg, err := signatureAlgorithmFor(caSigner.DigestAlgorithm(), caSigner.Public())
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	cert := &x509.Certificate{
		SerialNumber:       serialNumber,
		Subject:            csr.Subject,
		Issuer:             caCert.Subject,
		NotBefore:          now,
		NotAfter:           now.AddDate(1, 0, 0),
		SignatureAlgorithm: sigAlg,
		DNSNames:           csr.DNSNames,
	}

	der, err := x509.CreateCertificate(rand.Reader, cert, caCert, csr.PublicKey, caSigner)
	if err != nil {
		return nil, coreerrors.Failedf(err, "x509util: create client certificate")
	}

	metrics.RecordCertificateIssued(string(caSigner.DigestAlgorithm()))

	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), nil
}

func resolveSerial(given []byte) (*big.Int, error) {
	if len(given) > 0 {
		return new(big.Int).SetBytes(given), nil
	}

	limit := new(big.Int).Lsh(big.NewInt(1), serialBits)
	serial, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return nil, coreerrors.Failedf(err, "x509util: generate serial number")
	}
	return serial, nil
}

func subjectKeyIDFromPublicKey(pub interface{}) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, coreerrors.Failedf(err, "x509util: marshal public key")
	}

	var spki struct {
		Algorithm        asn1.RawValue
		SubjectPublicKey asn1.BitString
	}
	if _, err := asn1.Unmarshal(der, &spki); err != nil {
		return nil, coreerrors.Failedf(err, "x509util: parse subject public key info")
	}

	sum := sha1.Sum(spki.SubjectPublicKey.Bytes)
	return sum[:], nil
}

func issuerAltNameExtension(urls []string) (pkix.Extension, error) {
	items := make([][]byte, len(urls))
	for i, u := range urls {
		item, err := asn1.MarshalWithParams(u, "tag:6") // GeneralName uriName [6] IA5String
		if err != nil {
			return pkix.Extension{}, coreerrors.Failedf(err, "x509util: encode issuer alt name")
		}
		items[i] = item
	}

	value, err := coreasn1.WriteDERSequence(items)
	if err != nil {
		return pkix.Extension{}, err
	}

	oid, err := parseOIDString(oidIssuerAltName)
	if err != nil {
		return pkix.Extension{}, err
	}

	return pkix.Extension{Id: oid, Value: value}, nil
}

func signatureAlgorithmName(pub interface{}) string {
	switch pub.(type) {
	case *ecdsa.PublicKey:
		return "ecdsa-sha"
	default:
		return "rsa-sha"
	}
}
