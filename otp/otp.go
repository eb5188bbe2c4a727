// Package otp provides functionality for generating
// HMAC-based (RFC 4226) and time-based (RFC 6238) One-Time Passwords.
package otp

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"fmt"
	"hash"
	"strings"
)

var (
	// ErrUnsupportedAlgorithm is returned for an algorithm outside of SHA1, SHA256 and SHA512.
	ErrUnsupportedAlgorithm = errors.New("otp: unsupported algorithm")
	// ErrInvalidDigits is returned when the requested code length is less than one.
	ErrInvalidDigits = errors.New("otp: digits must be positive")
	// ErrInvalidPeriod is returned when the TOTP period is less than one second.
	ErrInvalidPeriod = errors.New("otp: period must be positive")
)

type OTP interface {
	Code() any
	Digits() int
	String() string
}

// Algorithm is the HMAC hash function used to derive a code.
type Algorithm string

const (
	AlgorithmSHA1   Algorithm = "SHA1"
	AlgorithmSHA256 Algorithm = "SHA256"
	AlgorithmSHA512 Algorithm = "SHA512"
)

// DefaultAlgorithm is used when a provisioning URI or form omits the algorithm.
const DefaultAlgorithm = AlgorithmSHA1

// ParseAlgorithm matches s case-insensitively against the supported algorithms.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(strings.ToUpper(strings.TrimSpace(s))) {
	case AlgorithmSHA1:
		return AlgorithmSHA1, nil
	case AlgorithmSHA256:
		return AlgorithmSHA256, nil
	case AlgorithmSHA512:
		return AlgorithmSHA512, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnsupportedAlgorithm, s)
	}
}

// Valid reports whether a is one of the supported algorithms.
func (a Algorithm) Valid() bool {
	return a == AlgorithmSHA1 || a == AlgorithmSHA256 || a == AlgorithmSHA512
}

func (a Algorithm) String() string {
	return string(a)
}

// MarshalText rejects algorithms that could not be read back.
func (a Algorithm) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("%w %q", ErrUnsupportedAlgorithm, string(a))
	}

	return []byte(a), nil
}

func (a *Algorithm) UnmarshalText(text []byte) error {
	algo, err := ParseAlgorithm(string(text))
	if err != nil {
		return err
	}

	*a = algo

	return nil
}

// Size returns the digest length in bytes, or 0 for an unsupported algorithm.
func (a Algorithm) Size() int {
	switch a {
	case AlgorithmSHA1:
		return sha1.Size
	case AlgorithmSHA256:
		return sha256.Size
	case AlgorithmSHA512:
		return sha512.Size
	default:
		return 0
	}
}

// Digest computes the HMAC of message keyed with key using algo.
// The result is never truncated.
func Digest(algo Algorithm, key []byte, message []byte) ([]byte, error) {
	var mac hash.Hash

	// Use the specified algorithm
	switch algo {
	case AlgorithmSHA1:
		mac = hmac.New(sha1.New, key)
	case AlgorithmSHA256:
		mac = hmac.New(sha256.New, key)
	case AlgorithmSHA512:
		mac = hmac.New(sha512.New, key)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnsupportedAlgorithm, string(algo))
	}

	_, err := mac.Write(message)
	if err != nil {
		return nil, err
	}

	return mac.Sum(nil), nil
}
