package otp

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// HOTP is a counter-based One-Time Password.
type HOTP struct {
	code   int64
	digits int
}

// Code returns the raw code used for calculating the OTP.
func (hotp HOTP) Code() any {
	return hotp.code
}

// Digits returns the character/digit length of the OTP.
func (hotp HOTP) Digits() int {
	return hotp.digits
}

// String returns the calculated OTP
// used to authenticate with a service.
func (hotp HOTP) String() string {
	return formatCode(hotp.code, hotp.digits)
}

// GenerateHOTP generates an HOTP for the counter value.
func GenerateHOTP(secret []byte, algo Algorithm, digits int, counter uint64) (HOTP, error) {
	if digits < 1 {
		return HOTP{}, fmt.Errorf("%w: %d", ErrInvalidDigits, digits)
	}

	var counterBytes []byte = make([]byte, 8)

	// Encode counter in big endian
	binary.BigEndian.PutUint64(counterBytes, counter)

	secretHash, err := Digest(algo, secret, counterBytes)
	if err != nil {
		return HOTP{}, err
	}

	return HOTP{code: truncate(secretHash), digits: digits}, nil
}

// truncate extracts a 31-bit value from the hash.
//
// https://tools.ietf.org/html/rfc4226#section-5.4
func truncate(secretHash []byte) int64 {
	offset := secretHash[len(secretHash)-1] & 0xf

	return int64(binary.BigEndian.Uint32(secretHash[offset:offset+4]) & 0x7fffffff)
}

// formatCode reduces the code to the digit length and pads it with zeroes.
func formatCode(code int64, digits int) string {
	// A 31-bit value never reaches 10^10, so longer codes only need padding
	if digits < 10 {
		var modulus int64 = 1
		for i := 0; i < digits; i++ {
			modulus *= 10
		}
		code %= modulus
	}

	var s string = strconv.FormatInt(code, 10)
	if len(s) >= digits {
		return s
	}

	return strings.Repeat("0", digits-len(s)) + s
}
