package aescbc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aosedge/aos_core_lib_go/crypto/aescbc"
	coreerrors "github.com/aosedge/aos_core_lib_go/infrastructure/errors"
)

func TestInitRejectsBadIVAndKeyLengths(t *testing.T) {
	key := make([]byte, 16)
	badIV := make([]byte, 8)
	_, err := aescbc.Init(key, badIV, aescbc.Encrypt)
	require.Error(t, err)
	assert.True(t, coreerrors.Is(err, coreerrors.InvalidArgument))

	iv := make([]byte, 16)
	badKey := make([]byte, 20)
	_, err = aescbc.Init(badKey, iv, aescbc.Encrypt)
	require.Error(t, err)
	assert.True(t, coreerrors.Is(err, coreerrors.InvalidArgument))
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := []byte("0123456789abcdef")
	iv := []byte("abcdef0123456789")

	plaintext := []byte("this message spans more than one AES block of data")

	enc, err := aescbc.Init(key, iv, aescbc.Encrypt)
	require.NoError(t, err)

	var ciphertext []byte
	i := 0
	for ; i+16 <= len(plaintext); i += 16 {
		block, err := enc.EncryptBlock(plaintext[i : i+16])
		require.NoError(t, err)
		ciphertext = append(ciphertext, block...)
	}
	last, err := enc.Finalize(plaintext[i:])
	require.NoError(t, err)
	ciphertext = append(ciphertext, last...)

	assert.Equal(t, 0, len(ciphertext)%16)

	dec, err := aescbc.Init(key, iv, aescbc.Decrypt)
	require.NoError(t, err)

	var recovered []byte
	j := 0
	for ; j+16 < len(ciphertext); j += 16 {
		block, err := dec.DecryptBlock(ciphertext[j : j+16])
		require.NoError(t, err)
		recovered = append(recovered, block...)
	}
	lastPlain, err := dec.Finalize(ciphertext[j:])
	require.NoError(t, err)
	recovered = append(recovered, lastPlain...)

	assert.Equal(t, plaintext, recovered)
}

func TestWrongDirectionIsWrongState(t *testing.T) {
	key := make([]byte, 16)
	iv := make([]byte, 16)

	enc, err := aescbc.Init(key, iv, aescbc.Encrypt)
	require.NoError(t, err)

	_, err = enc.DecryptBlock(make([]byte, 16))
	require.Error(t, err)
	assert.True(t, coreerrors.Is(err, coreerrors.WrongState))
}

func TestUseAfterFinalizeIsWrongState(t *testing.T) {
	key := make([]byte, 16)
	iv := make([]byte, 16)

	enc, err := aescbc.Init(key, iv, aescbc.Encrypt)
	require.NoError(t, err)

	_, err = enc.Finalize(make([]byte, 4))
	require.NoError(t, err)

	_, err = enc.EncryptBlock(make([]byte, 16))
	require.Error(t, err)
	assert.True(t, coreerrors.Is(err, coreerrors.WrongState))
}

func TestDecryptRejectsInvalidPadding(t *testing.T) {
	key := make([]byte, 16)
	iv := make([]byte, 16)

	enc, err := aescbc.Init(key, iv, aescbc.Encrypt)
	require.NoError(t, err)
	ciphertext, err := enc.Finalize([]byte("hi"))
	require.NoError(t, err)

	ciphertext[len(ciphertext)-1] ^= 0xFF

	dec, err := aescbc.Init(key, iv, aescbc.Decrypt)
	require.NoError(t, err)
	_, err = dec.Finalize(ciphertext)
	require.Error(t, err)
	assert.True(t, coreerrors.Is(err, coreerrors.InvalidArgument))
}
