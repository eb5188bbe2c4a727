// Package assist defines the boundary to the optional helpers that sit
// outside the OTP core: a QR image reader that turns a picture into a
// provisioning URI, and an advisor that answers security questions.
//
// Both may be unavailable. Callers receive typed errors and keep working.
package assist

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tim-projects/omniauth/otpauth"
)

var (
	// ErrNoURI is returned when an image holds no otpauth URI.
	ErrNoURI = errors.New("assist: no otpauth uri found")
	// ErrUnavailable is returned when a helper cannot be reached or is not configured.
	ErrUnavailable = errors.New("assist: service unavailable")
)

// FallbackAdvice is shown when the advisor gives no answer.
const FallbackAdvice = "I'm sorry, I couldn't process that request."

// noURIMarker is the reply a reader uses to signal an image without an OTP QR code.
const noURIMarker = "ERROR"

// QRDecoder extracts an otpauth URI from image bytes.
type QRDecoder interface {
	DecodeQR(ctx context.Context, image []byte) (string, error)
}

// Advisor answers free-text security questions.
type Advisor interface {
	Advise(ctx context.Context, query string) (string, error)
}

// DecoderFunc adapts a function to QRDecoder.
type DecoderFunc func(ctx context.Context, image []byte) (string, error)

func (f DecoderFunc) DecodeQR(ctx context.Context, image []byte) (string, error) {
	return f(ctx, image)
}

// AdvisorFunc adapts a function to Advisor.
type AdvisorFunc func(ctx context.Context, query string) (string, error)

func (f AdvisorFunc) Advise(ctx context.Context, query string) (string, error) {
	return f(ctx, query)
}

// Offline is used when no helper is configured; every call fails with ErrUnavailable.
type Offline struct{}

func (Offline) DecodeQR(context.Context, []byte) (string, error) {
	return "", ErrUnavailable
}

func (Offline) Advise(context.Context, string) (string, error) {
	return "", ErrUnavailable
}

// ScanKey reads a provisioning URI from image and parses it.
func ScanKey(ctx context.Context, decoder QRDecoder, image []byte) (otpauth.Key, error) {
	if len(image) == 0 {
		return otpauth.Key{}, fmt.Errorf("%w: empty image", ErrNoURI)
	}

	uri, err := decoder.DecodeQR(ctx, image)
	if err != nil {
		return otpauth.Key{}, fmt.Errorf("scan qr: %w", err)
	}

	uri = strings.TrimSpace(uri)
	if uri == "" || uri == noURIMarker {
		return otpauth.Key{}, ErrNoURI
	}

	return otpauth.Parse(uri)
}

// Advice asks advisor about query, falling back to FallbackAdvice when
// the advisor fails or stays silent.
func Advice(ctx context.Context, advisor Advisor, query string) (string, error) {
	text, err := advisor.Advise(ctx, query)
	if err != nil {
		return FallbackAdvice, err
	}

	if strings.TrimSpace(text) == "" {
		return FallbackAdvice, nil
	}

	return strings.TrimSpace(text), nil
}
