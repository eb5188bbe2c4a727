package otp

import (
	"encoding/base32"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrInvalidEncoding is returned when a secret is not valid Base32 text.
var ErrInvalidEncoding = errors.New("otp: invalid base32 encoding")

const base32Alphabet string = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"

// NormalizeSecret removes whitespace and trailing padding from a Base32
// secret and uppercases it. The result is not checked for validity.
func NormalizeSecret(text string) string {
	var stripped string = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)

	return strings.TrimRight(strings.ToUpper(stripped), "=")
}

// Decode converts RFC 4648 Base32 text into bytes.
//
// Whitespace and case are ignored and trailing '=' padding of any length is
// accepted. Leftover bits that do not fill a whole byte are discarded.
func Decode(text string) ([]byte, error) {
	var symbols string = NormalizeSecret(text)

	var out []byte = make([]byte, 0, len(symbols)*5/8)
	var buffer uint32
	var bits int

	for i := 0; i < len(symbols); i++ {
		var value int = strings.IndexByte(base32Alphabet, symbols[i])
		if value < 0 {
			return nil, fmt.Errorf("%w: illegal character %q at offset %d", ErrInvalidEncoding, symbols[i], i)
		}

		// Pack 5 bits per symbol, most significant bit first
		buffer = buffer<<5 | uint32(value)
		bits += 5

		if bits >= 8 {
			bits -= 8
			out = append(out, byte(buffer>>bits))
			buffer &= 1<<bits - 1
		}
	}

	return out, nil
}

// DecodeSecret decodes a Base32 shared secret. Unlike Decode it also
// rejects text that yields no key material.
func DecodeSecret(text string) ([]byte, error) {
	secret, err := Decode(text)
	if err != nil {
		return nil, err
	}

	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: secret is empty", ErrInvalidEncoding)
	}

	return secret, nil
}

// Encode converts bytes into padded RFC 4648 Base32 text.
func Encode(data []byte) string {
	return base32.StdEncoding.EncodeToString(data)
}
