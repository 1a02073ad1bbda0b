package asn1_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreasn1 "github.com/aosedge/aos_core_lib_go/crypto/asn1"
)

func TestWriteAndReadBigInt(t *testing.T) {
	der, err := coreasn1.WriteBigInt([]byte{0x80, 0x01})
	require.NoError(t, err)

	value, remaining, err := coreasn1.ReadBigInt(der, coreasn1.ParseOptions{})
	require.NoError(t, err)
	assert.Empty(t, remaining)
	assert.Equal(t, []byte{0x80, 0x01}, value)
}

func TestWriteAndReadOID(t *testing.T) {
	der, err := coreasn1.WriteOID("1.2.840.113549.1.1.11")
	require.NoError(t, err)

	oid, remaining, err := coreasn1.ReadOID(der, coreasn1.ParseOptions{})
	require.NoError(t, err)
	assert.Empty(t, remaining)
	assert.Equal(t, "1.2.840.113549.1.1.11", oid)
}

func TestWriteObjectIDs(t *testing.T) {
	der, err := coreasn1.WriteObjectIDs([]string{"2.5.4.3", "2.5.4.6"})
	require.NoError(t, err)

	var seen []string
	_, err = coreasn1.ReadSequence(der, coreasn1.ParseOptions{}, func(v coreasn1.Value) error {
		oid, _, err := coreasn1.ReadOID(append([]byte{0x06, byte(len(v.Content))}, v.Content...), coreasn1.ParseOptions{})
		if err != nil {
			return err
		}
		seen = append(seen, oid)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"2.5.4.3", "2.5.4.6"}, seen)
}

func TestWriteDERSequence(t *testing.T) {
	oid1, err := coreasn1.WriteOID("2.5.4.3")
	require.NoError(t, err)
	oid2, err := coreasn1.WriteOID("2.5.4.6")
	require.NoError(t, err)

	seq, err := coreasn1.WriteDERSequence([][]byte{oid1, oid2})
	require.NoError(t, err)

	count := 0
	_, err = coreasn1.ReadSequence(seq, coreasn1.ParseOptions{}, func(v coreasn1.Value) error {
		count++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestReadRawValueOptionalNotFound(t *testing.T) {
	tag := 5
	_, remaining, err := coreasn1.ReadRawValue([]byte{0x02, 0x01, 0x01}, coreasn1.ParseOptions{Optional: true, TagOverride: &tag})
	assert.ErrorIs(t, err, coreasn1.ErrNotFound)
	assert.Equal(t, []byte{0x02, 0x01, 0x01}, remaining)
}

func TestReadIntegerFailsWithoutOptional(t *testing.T) {
	_, _, err := coreasn1.ReadInteger([]byte{0x04, 0x01, 0x00}, coreasn1.ParseOptions{})
	require.Error(t, err)
}

func TestEncodeDecodeDNRoundTrip(t *testing.T) {
	der, err := coreasn1.EncodeDN("CN=aos-node, C=US")
	require.NoError(t, err)

	text, err := coreasn1.DecodeDN(der)
	require.NoError(t, err)
	assert.Equal(t, "CN=aos-node, C=US", text)
}

func TestEncodeDNAcceptsSlashSeparator(t *testing.T) {
	der, err := coreasn1.EncodeDN("CN=aos-node/C=US")
	require.NoError(t, err)

	text, err := coreasn1.DecodeDN(der)
	require.NoError(t, err)
	assert.Equal(t, "CN=aos-node, C=US", text)
}

func TestEncodeDNUnknownAttribute(t *testing.T) {
	_, err := coreasn1.EncodeDN("XX=value")
	require.Error(t, err)
}

func TestReadAlgorithmIdentifierWithoutParameters(t *testing.T) {
	oidBytes, err := coreasn1.WriteOID("2.16.840.1.101.3.4.2.1")
	require.NoError(t, err)
	der, err := coreasn1.WriteDERSequence([][]byte{oidBytes})
	require.NoError(t, err)

	aid, remaining, err := coreasn1.ReadAlgorithmIdentifier(der, coreasn1.ParseOptions{})
	require.NoError(t, err)
	assert.Empty(t, remaining)
	assert.Equal(t, "2.16.840.1.101.3.4.2.1", aid.OID)
	assert.False(t, aid.HasParameters)
}
