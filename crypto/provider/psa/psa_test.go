package psa_test

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aosedge/aos_core_lib_go/crypto/hashrand"
	"github.com/aosedge/aos_core_lib_go/crypto/keyregistry"
	"github.com/aosedge/aos_core_lib_go/crypto/provider"
	"github.com/aosedge/aos_core_lib_go/crypto/provider/psa"
	"github.com/aosedge/aos_core_lib_go/crypto/x509util"
)

type rsaCapability struct {
	key *rsa.PrivateKey
}

func (c rsaCapability) KeyType() keyregistry.KeyType { return keyregistry.KeyTypeRSA }
func (c rsaCapability) BitLength() int               { return c.key.N.BitLen() }
func (c rsaCapability) PublicKeyDER() ([]byte, error) {
	return x509.MarshalPKIXPublicKey(&c.key.PublicKey)
}
func (c rsaCapability) Destroy() {}
func (c rsaCapability) SignHash(digest []byte, _ keyregistry.DigestAlgorithm) ([]byte, error) {
	return rsa.SignPKCS1v15(rand.Reader, c.key, crypto.SHA256, digest)
}

func newRSACapability(t *testing.T, bits int) (rsaCapability, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, bits)
	require.NoError(t, err)
	return rsaCapability{key}, key
}

func TestPSARegisterSignDeregister(t *testing.T) {
	backend := psa.New(4, 100, 110)
	capability, key := newRSACapability(t, 2048)

	h, digest, err := backend.RegisterKey(capability)
	require.NoError(t, err)
	require.Equal(t, keyregistry.SHA256, digest)

	attrs, err := backend.KeyAttributes(h)
	require.NoError(t, err)
	require.Equal(t, keyregistry.KeyTypeRSA, attrs.Type)

	signer, err := backend.Signer(h)
	require.NoError(t, err)
	require.True(t, key.PublicKey.Equal(signer.Public()))

	require.NoError(t, backend.DeregisterKey(h))

	_, err = backend.KeyAttributes(h)
	require.Error(t, err)
}

func TestPSAHashRandUUIDPassThrough(t *testing.T) {
	backend := psa.New(1, 200, 210)

	hasher, err := backend.CreateHash(hashrand.SHA256)
	require.NoError(t, err)
	require.NoError(t, hasher.Update([]byte("abc")))
	sum, err := hasher.Finalize()
	require.NoError(t, err)
	require.Len(t, sum, 32)

	n, err := backend.RandInt(16)
	require.NoError(t, err)
	require.Less(t, n, uint64(16))

	buf := make([]byte, 8)
	require.NoError(t, backend.RandBuffer(buf))

	id, err := backend.CreateUUIDv4()
	require.NoError(t, err)
	require.Equal(t, byte(4), id[6]>>4)

	_ = backend.CreateUUIDv5(id, "aos-core")
}

func TestPSACreateCSRAndCertificate(t *testing.T) {
	backend := psa.New(2, 300, 310)
	capability, _ := newRSACapability(t, 2048)

	h, _, err := backend.RegisterKey(capability)
	require.NoError(t, err)

	csrPEM, err := backend.CreateCSR(x509util.CSRTemplate{SubjectDN: "CN=aos-device, C=UA"}, h, nil)
	require.NoError(t, err)
	require.Contains(t, string(csrPEM), "CERTIFICATE REQUEST")

	certPEM, err := backend.CreateCertificate(x509util.CertTemplate{
		SubjectDN: "CN=aos-device, C=UA",
		NotBefore: time.Now().Add(-time.Hour),
		NotAfter:  time.Now().Add(time.Hour),
	}, nil, h)
	require.NoError(t, err)

	certs, err := x509util.PEMToX509Certs(certPEM)
	require.NoError(t, err)
	require.Len(t, certs, 1)

	require.NoError(t, backend.Close())
}

func TestPSASignerRejectsForeignHandle(t *testing.T) {
	backend := psa.New(1, 400, 410)

	_, err := backend.Signer(foreignHandle{})
	require.Error(t, err)
}

type foreignHandle struct{}

func (foreignHandle) String() string { return "foreign" }

var _ provider.KeyHandle = foreignHandle{}

func TestDigestHelperSanity(t *testing.T) {
	digest := sha256.Sum256([]byte("aos-core"))
	require.Len(t, digest, 32)
}
