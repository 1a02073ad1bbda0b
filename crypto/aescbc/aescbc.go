// Package aescbc implements a stateful AES-CBC cipher with PKCS#7
// padding, processed one block at a time.
package aescbc

import (
	"crypto/aes"
	"crypto/cipher"

	coreerrors "github.com/aosedge/aos_core_lib_go/infrastructure/errors"
)

const blockSize = aes.BlockSize // 16

// Direction selects whether a Cipher encrypts or decrypts.
type Direction int

const (
	Encrypt Direction = iota
	Decrypt
)

type cipherState int

const (
	stateUninitialized cipherState = iota
	stateReady
	stateFinalized
)

// Cipher is a stateful AES-CBC block cipher. Init must be called before
// EncryptBlock/DecryptBlock, and Finalize exactly once to emit the final
// padded block.
type Cipher struct {
	direction Direction
	block     cipher.Block
	iv        []byte
	state     cipherState
}

// Init validates key and IV lengths and prepares the cipher for the
// given direction. Key length selects AES-128/192/256.
func Init(key, iv []byte, direction Direction) (*Cipher, error) {
	if len(iv) != blockSize {
		return nil, coreerrors.InvalidArgumentf("aescbc: iv must be %d bytes, got %d", blockSize, len(iv))
	}
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, coreerrors.InvalidArgumentf("aescbc: key must be 16, 24 or 32 bytes, got %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, coreerrors.Failedf(err, "aescbc: new cipher")
	}

	return &Cipher{
		direction: direction,
		block:     block,
		iv:        append([]byte(nil), iv...),
		state:     stateReady,
	}, nil
}

// EncryptBlock encrypts exactly one full plaintext block and chains the
// IV forward. Calling this on a decrypt-direction cipher is a
// wrong-state error.
func (c *Cipher) EncryptBlock(plaintext []byte) ([]byte, error) {
	if c.direction != Encrypt {
		return nil, coreerrors.WrongStatef("aescbc: encrypt_block called on decrypt cipher")
	}
	if err := c.checkReady(); err != nil {
		return nil, err
	}
	if len(plaintext) != blockSize {
		return nil, coreerrors.InvalidArgumentf("aescbc: block must be %d bytes, got %d", blockSize, len(plaintext))
	}

	out := make([]byte, blockSize)
	cipher.NewCBCEncrypter(c.block, c.iv).CryptBlocks(out, plaintext)
	c.iv = out

	return out, nil
}

// DecryptBlock decrypts exactly one full ciphertext block, enforcing the
// input length. Calling this on an encrypt-direction cipher is a
// wrong-state error.
func (c *Cipher) DecryptBlock(ciphertext []byte) ([]byte, error) {
	if c.direction != Decrypt {
		return nil, coreerrors.WrongStatef("aescbc: decrypt_block called on encrypt cipher")
	}
	if err := c.checkReady(); err != nil {
		return nil, err
	}
	if len(ciphertext) != blockSize {
		return nil, coreerrors.InvalidArgumentf("aescbc: block must be %d bytes, got %d", blockSize, len(ciphertext))
	}

	out := make([]byte, blockSize)
	cipher.NewCBCDecrypter(c.block, c.iv).CryptBlocks(out, ciphertext)
	nextIV := append([]byte(nil), ciphertext...)
	c.iv = nextIV

	return out, nil
}

// Finalize pads (encrypt) or unpads (decrypt) and processes the final
// block, then marks the cipher unusable.
func (c *Cipher) Finalize(last []byte) ([]byte, error) {
	if err := c.checkReady(); err != nil {
		return nil, err
	}
	defer func() { c.state = stateFinalized }()

	if c.direction == Encrypt {
		padded := pkcs7Pad(last, blockSize)
		out := make([]byte, len(padded))
		cbc := cipher.NewCBCEncrypter(c.block, c.iv)
		for offset := 0; offset < len(padded); offset += blockSize {
			cbc.CryptBlocks(out[offset:offset+blockSize], padded[offset:offset+blockSize])
		}
		return out, nil
	}

	if len(last)%blockSize != 0 || len(last) == 0 {
		return nil, coreerrors.InvalidArgumentf("aescbc: final ciphertext must be a non-empty multiple of %d bytes", blockSize)
	}

	out := make([]byte, len(last))
	cbc := cipher.NewCBCDecrypter(c.block, c.iv)
	for offset := 0; offset < len(last); offset += blockSize {
		cbc.CryptBlocks(out[offset:offset+blockSize], last[offset:offset+blockSize])
	}

	return pkcs7Unpad(out, blockSize)
}

func (c *Cipher) checkReady() error {
	if c.state != stateReady {
		return coreerrors.WrongStatef("aescbc: cipher not initialized or already finalized")
	}
	return nil
}

func pkcs7Pad(data []byte, size int) []byte {
	padLen := size - len(data)%size
	padding := make([]byte, padLen)
	for i := range padding {
		padding[i] = byte(padLen)
	}
	return append(append([]byte(nil), data...), padding...)
}

func pkcs7Unpad(data []byte, size int) ([]byte, error) {
	if len(data) == 0 || len(data)%size != 0 {
		return nil, coreerrors.InvalidArgumentf("aescbc: invalid padded length %d", len(data))
	}

	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > size || padLen > len(data) {
		return nil, coreerrors.InvalidArgumentf("aescbc: invalid pkcs7 padding")
	}

	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, coreerrors.InvalidArgumentf("aescbc: invalid pkcs7 padding")
		}
	}

	return data[:len(data)-padLen], nil
}
