package otp

import (
	"fmt"
	"time"
)

// DefaultPeriod is the TOTP refresh interval in seconds.
const DefaultPeriod int64 = 30

// DefaultDigits is the conventional code length.
const DefaultDigits int = 6

type TOTP struct {
	code      int64
	digits    int
	counter   int64
	remaining int64
}

// Code returns the raw code used for calculating the OTP.
func (totp TOTP) Code() any {
	return totp.code
}

// Digits returns the character/digit length of the OTP.
func (totp TOTP) Digits() int {
	return totp.digits
}

// Counter returns the time-step the code was generated for.
func (totp TOTP) Counter() int64 {
	return totp.counter
}

// Remaining returns the seconds left in the time-step, in (0, period].
func (totp TOTP) Remaining() int64 {
	return totp.remaining
}

// String returns the calculated OTP
// used to authenticate with a service.
func (totp TOTP) String() string {
	return formatCode(totp.code, totp.digits)
}

// Counter returns floor(seconds / period).
func Counter(period int64, seconds int64) int64 {
	var counter int64 = seconds / period

	// Integer division truncates toward zero
	if seconds%period < 0 {
		counter--
	}

	return counter
}

// RemainingTime returns the seconds left in the time-step containing seconds.
// At an exact step boundary a full period remains.
func RemainingTime(period int64, seconds int64) int64 {
	var elapsed int64 = seconds % period
	if elapsed < 0 {
		elapsed += period
	}

	return period - elapsed
}

// Generates a TOTP for the current time
func GenerateTOTP(secret []byte, algo Algorithm, digits int, period int64) (TOTP, error) {
	return GenerateTOTPAt(secret, algo, digits, period, time.Now().Unix())
}

// Generates a TOTP at the specified time in seconds
func GenerateTOTPAt(secret []byte, algo Algorithm, digits int, period int64, seconds int64) (TOTP, error) {
	if period < 1 {
		return TOTP{}, fmt.Errorf("%w: %d", ErrInvalidPeriod, period)
	}

	var counter int64 = Counter(period, seconds)

	hotp, err := GenerateHOTP(secret, algo, digits, uint64(counter))
	if err != nil {
		return TOTP{}, err
	}

	return TOTP{
		code:      hotp.code,
		digits:    hotp.digits,
		counter:   counter,
		remaining: RemainingTime(period, seconds),
	}, nil
}
