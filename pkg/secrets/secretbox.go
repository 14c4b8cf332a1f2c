// Package secrets расшифровывает секреты ERP, которые хранятся в справочнике компаний.
// Формат: base64(nonce[24] || secretbox.Seal(...)).
package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
)

var ErrDecrypt = errors.New("не удалось расшифровать секрет")

type Box struct {
	key [keySize]byte
}

// NewBox принимает ключ в base64. Пустой ключ допустим: тогда секреты считаются открытым текстом.
func NewBox(encodedKey string) (*Box, error) {
	if encodedKey == "" {
		return nil, nil
	}
	raw, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("ключ секретов не в base64: %w", err)
	}
	if len(raw) != keySize {
		return nil, fmt.Errorf("ключ секретов должен быть %d байт, получено %d", keySize, len(raw))
	}
	b := &Box{}
	copy(b.key[:], raw)
	return b, nil
}

func (b *Box) Seal(plain string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", err
	}
	out := secretbox.Seal(nonce[:], []byte(plain), &nonce, &b.key)
	return base64.StdEncoding.EncodeToString(out), nil
}

func (b *Box) Open(sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrDecrypt
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &b.key)
	if !ok {
		return "", ErrDecrypt
	}
	return string(plain), nil
}

// Reveal - Open с учётом отсутствующего ключа.
func Reveal(b *Box, value string) (string, error) {
	if value == "" || b == nil {
		return value, nil
	}
	return b.Open(value)
}
