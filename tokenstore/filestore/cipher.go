package filestore

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

var (
	ErrPassphraseRequired = errors.New("session file is encrypted and no passphrase is configured")
	ErrDecrypt            = errors.New("session file could not be decrypted")
)

const (
	saltLength  = 16
	nonceLength = 24
	keyLength   = 32

	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

type sealedBox struct {
	Salt  []byte `json:"salt"`
	Nonce []byte `json:"nonce"`
	Box   []byte `json:"box"`
}

// boxCipher derives the secretbox key from the passphrase with argon2id. The derived key is
// cached per salt; the salt is kept for the life of the file.
type boxCipher struct {
	passphrase []byte

	mu   sync.Mutex
	salt []byte
	key  *[keyLength]byte
}

func newBoxCipher(passphrase string) *boxCipher {
	return &boxCipher{passphrase: []byte(passphrase)}
}

func (c *boxCipher) keyFor(salt []byte) *[keyLength]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.key != nil && bytes.Equal(c.salt, salt) {
		return c.key
	}
	derived := argon2.IDKey(c.passphrase, salt, argonTime, argonMemory, argonThreads, keyLength)
	var key [keyLength]byte
	copy(key[:], derived)
	c.salt = append([]byte(nil), salt...)
	c.key = &key
	return c.key
}

func (c *boxCipher) currentSalt() ([]byte, error) {
	c.mu.Lock()
	salt := c.salt
	c.mu.Unlock()
	if salt != nil {
		return salt, nil
	}
	salt = make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}

func (c *boxCipher) seal(plain []byte) (*sealedBox, error) {
	salt, err := c.currentSalt()
	if err != nil {
		return nil, err
	}
	var nonce [nonceLength]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	box := secretbox.Seal(nil, plain, &nonce, c.keyFor(salt))
	return &sealedBox{Salt: salt, Nonce: nonce[:], Box: box}, nil
}

func (c *boxCipher) open(sealed *sealedBox) ([]byte, error) {
	if len(sealed.Nonce) != nonceLength || len(sealed.Salt) == 0 {
		return nil, ErrDecrypt
	}
	var nonce [nonceLength]byte
	copy(nonce[:], sealed.Nonce)
	plain, ok := secretbox.Open(nil, sealed.Box, &nonce, c.keyFor(sealed.Salt))
	if !ok {
		return nil, ErrDecrypt
	}
	return plain, nil
}
