// Package filecrypt obfuscates filenames passed through download URLs with a
// per-session AES key. This is access binding, not general purpose
// encryption: only the session that listed a file can produce the URL that
// downloads it.
package filecrypt

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"

	"github.com/go-playground/errors/v5"
)

const keySize = 16 // AES-128

// GenerateKey returns a random AES-128 key as a base64 string, suitable for
// storage in the session record.
func GenerateKey() (string, error) {
	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return "", errors.Wrap(err, "rand.Read()")
	}

	return base64.StdEncoding.EncodeToString(key), nil
}

// Encrypt encrypts a filename with the base64 encoded key. The output is a
// URL-safe base64 string carrying the random IV.
func Encrypt(key, filename string) (string, error) {
	block, err := newCipher(key)
	if err != nil {
		return "", err
	}

	plaintext := pad([]byte(filename), aes.BlockSize)

	out := make([]byte, aes.BlockSize+len(plaintext))
	iv := out[:aes.BlockSize]
	if _, err := rand.Read(iv); err != nil {
		return "", errors.Wrap(err, "rand.Read()")
	}

	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[aes.BlockSize:], plaintext)

	return base64.RawURLEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt.
func Decrypt(key, encrypted string) (string, error) {
	block, err := newCipher(key)
	if err != nil {
		return "", err
	}

	data, err := base64.RawURLEncoding.DecodeString(encrypted)
	if err != nil {
		return "", errors.Wrap(err, "base64.RawURLEncoding.DecodeString()")
	}
	if len(data) < 2*aes.BlockSize || len(data)%aes.BlockSize != 0 {
		return "", errors.New("ciphertext has invalid length")
	}

	iv, ciphertext := data[:aes.BlockSize], data[aes.BlockSize:]

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	plaintext, err = unpad(plaintext, aes.BlockSize)
	if err != nil {
		return "", err
	}

	return string(plaintext), nil
}

func newCipher(key string) (cipher.Block, error) {
	k, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return nil, errors.Wrap(err, "base64.StdEncoding.DecodeString()")
	}
	if len(k) != keySize {
		return nil, errors.Newf("key must be %d bytes", keySize)
	}

	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, errors.Wrap(err, "aes.NewCipher()")
	}

	return block, nil
}

func pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize

	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte, blockSize int) ([]byte, error) {
	if len(b) == 0 {
		return nil, errors.New("empty plaintext")
	}
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize || n > len(b) {
		return nil, errors.New("invalid padding")
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, errors.New("invalid padding")
		}
	}

	return b[:len(b)-n], nil
}
