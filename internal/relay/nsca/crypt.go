package nsca

import (
	"crypto/cipher"
	"fmt"
	"strings"

	"golang.org/x/crypto/blowfish"
)

// Encryption is an NSCA encryption method number, as configured by
// decryption_method in nsca.cfg
type Encryption int

const (
	EncryptNone     Encryption = 0
	EncryptXOR      Encryption = 1
	EncryptBlowfish Encryption = 8
)

func (e Encryption) String() string {
	switch e {
	case EncryptNone:
		return "none"
	case EncryptXOR:
		return "xor"
	case EncryptBlowfish:
		return "blowfish"
	}
	return fmt.Sprintf("method-%d", int(e))
}

// ParseEncryption accepts a method name or its number
func ParseEncryption(s string) (Encryption, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "0":
		return EncryptNone, nil
	case "xor", "1":
		return EncryptXOR, nil
	case "blowfish", "8":
		return EncryptBlowfish, nil
	}
	return 0, fmt.Errorf("unsupported nsca encryption %q", s)
}

// blowfishKeySize is the key length mcrypt reports for blowfish; NSCA
// zero-pads the password to it
const blowfishKeySize = 56

// crypter transforms a packet in place
type crypter interface {
	encrypt(b []byte)
	decrypt(b []byte)
}

func newCrypter(method Encryption, password string, iv []byte) (crypter, error) {
	switch method {
	case EncryptNone:
		return nopCrypter{}, nil
	case EncryptXOR:
		return xorCrypter{iv: iv, password: []byte(password)}, nil
	case EncryptBlowfish:
		key := make([]byte, blowfishKeySize)
		copy(key, password)
		block, err := blowfish.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("blowfish key: %w", err)
		}
		return &cfb8{block: block, iv: iv[:block.BlockSize()]}, nil
	}
	return nil, fmt.Errorf("unsupported nsca encryption %s", method)
}

type nopCrypter struct{}

func (nopCrypter) encrypt([]byte) {}
func (nopCrypter) decrypt([]byte) {}

// xorCrypter is NSCA method 1: XOR with the IV, then with the password
type xorCrypter struct {
	iv       []byte
	password []byte
}

func (x xorCrypter) encrypt(b []byte) {
	for i := range b {
		b[i] ^= x.iv[i%len(x.iv)]
	}
	if len(x.password) == 0 {
		return
	}
	for i := range b {
		b[i] ^= x.password[i%len(x.password)]
	}
}

func (x xorCrypter) decrypt(b []byte) {
	x.encrypt(b)
}

// cfb8 is mcrypt's "cfb" mode: CFB with 8-bit feedback. crypto/cipher only
// provides full-block feedback.
type cfb8 struct {
	block cipher.Block
	iv    []byte
}

func (c *cfb8) encrypt(b []byte) {
	c.xorKeyStream(b, true)
}

func (c *cfb8) decrypt(b []byte) {
	c.xorKeyStream(b, false)
}

func (c *cfb8) xorKeyStream(b []byte, encrypting bool) {
	size := c.block.BlockSize()
	register := make([]byte, size)
	copy(register, c.iv)
	out := make([]byte, size)

	for i := range b {
		c.block.Encrypt(out, register)
		in := b[i]
		b[i] ^= out[0]

		feedback := b[i]
		if !encrypting {
			feedback = in
		}
		copy(register, register[1:])
		register[size-1] = feedback
	}
}
