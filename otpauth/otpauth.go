// Package otpauth reads and writes the otpauth:// provisioning URIs that
// authenticator apps exchange through QR codes.
//
// Only the totp type is accepted:
//
//	otpauth://totp/Example:alice@google.com?secret=JBSWY3DPEHPK3PXP&issuer=Example
package otpauth

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/tim-projects/omniauth/otp"
)

const (
	Scheme = "otpauth"
	// TypeTOTP is the only provisioning type this package accepts.
	TypeTOTP = "totp"
	// Unknown fills the issuer or account when the URI names neither.
	Unknown = "Unknown"
)

var (
	ErrMalformedURI           = errors.New("otpauth: malformed uri")
	ErrUnsupportedType        = errors.New("otpauth: unsupported otp type")
	ErrMissingSecret          = errors.New("otpauth: missing secret")
	ErrInvalidParameterValue  = errors.New("otpauth: invalid parameter value")
	errLabelSeparatorNotFound = errors.New("no label separator")
)

// Key is the account description carried by a provisioning URI.
type Key struct {
	Issuer    string
	Account   string
	Secret    string
	Algorithm otp.Algorithm
	Digits    int
	Period    int64
}

// Parse validates uri and returns the key it describes. Omitted parameters
// take their defaults: SHA1, 6 digits and a 30 second period.
func Parse(uri string) (Key, error) {
	u, err := url.Parse(strings.TrimSpace(uri))
	if err != nil {
		return Key{}, fmt.Errorf("%w: %v", ErrMalformedURI, err)
	}

	if u.Scheme != Scheme {
		return Key{}, fmt.Errorf("%w: scheme %q", ErrMalformedURI, u.Scheme)
	}

	if u.Opaque != "" || u.Host == "" {
		return Key{}, fmt.Errorf("%w: missing otp type", ErrMalformedURI)
	}

	if u.Host != TypeTOTP {
		return Key{}, fmt.Errorf("%w %q", ErrUnsupportedType, u.Host)
	}

	issuer, account, err := splitLabel(strings.TrimPrefix(u.EscapedPath(), "/"))
	if err != nil {
		return Key{}, err
	}

	query, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return Key{}, fmt.Errorf("%w: %v", ErrMalformedURI, err)
	}

	var key Key = Key{
		Issuer:    issuer,
		Account:   account,
		Algorithm: otp.DefaultAlgorithm,
		Digits:    otp.DefaultDigits,
		Period:    otp.DefaultPeriod,
	}

	key.Secret = otp.NormalizeSecret(query.Get("secret"))
	if key.Secret == "" {
		return Key{}, ErrMissingSecret
	}

	if _, err := otp.DecodeSecret(key.Secret); err != nil {
		return Key{}, err
	}

	// The issuer parameter takes precedence over the label prefix
	if p := strings.TrimSpace(query.Get("issuer")); p != "" {
		key.Issuer = p
	}

	if values, ok := query["algorithm"]; ok {
		key.Algorithm, err = otp.ParseAlgorithm(values[0])
		if err != nil {
			return Key{}, invalidParameter("algorithm", values[0])
		}
	}

	if values, ok := query["digits"]; ok {
		digits, err := strconv.Atoi(strings.TrimSpace(values[0]))
		if err != nil || digits < 1 {
			return Key{}, invalidParameter("digits", values[0])
		}
		key.Digits = digits
	}

	if values, ok := query["period"]; ok {
		period, err := strconv.ParseInt(strings.TrimSpace(values[0]), 10, 64)
		if err != nil || period < 1 {
			return Key{}, invalidParameter("period", values[0])
		}
		key.Period = period
	}

	if key.Issuer == "" {
		key.Issuer = Unknown
	}
	if key.Account == "" {
		key.Account = Unknown
	}

	return key, nil
}

// Encode returns the provisioning URI for key. The label and every
// parameter value are percent-encoded.
func Encode(key Key) string {
	var label string = escapeLabelPart(key.Account)
	if key.Issuer != "" {
		label = escapeLabelPart(key.Issuer) + ":" + label
	}

	var params []string = []string{"secret=" + url.QueryEscape(key.Secret)}

	if key.Issuer != "" {
		params = append(params, "issuer="+url.QueryEscape(key.Issuer))
	}

	params = append(params,
		"algorithm="+url.QueryEscape(key.Algorithm.String()),
		"digits="+strconv.Itoa(key.Digits),
		"period="+strconv.FormatInt(key.Period, 10),
	)

	return fmt.Sprintf("%s://%s/%s?%s", Scheme, TypeTOTP, label, strings.Join(params, "&"))
}

func invalidParameter(name string, value string) error {
	return fmt.Errorf("%w: %s=%q", ErrInvalidParameterValue, name, value)
}

// splitLabel separates the escaped label into issuer and account.
//
// A literal colon is preferred as the separator so that an escaped colon
// inside the issuer survives; an escaped "%3A" separator is accepted when no
// literal one exists.
func splitLabel(escaped string) (string, string, error) {
	prefix, rest, err := cutSeparator(escaped)
	if errors.Is(err, errLabelSeparatorNotFound) {
		account, err := url.PathUnescape(escaped)
		if err != nil {
			return "", "", fmt.Errorf("%w: label: %v", ErrMalformedURI, err)
		}
		return "", strings.TrimSpace(account), nil
	}

	issuer, err := url.PathUnescape(prefix)
	if err != nil {
		return "", "", fmt.Errorf("%w: label: %v", ErrMalformedURI, err)
	}

	account, err := url.PathUnescape(rest)
	if err != nil {
		return "", "", fmt.Errorf("%w: label: %v", ErrMalformedURI, err)
	}

	return strings.TrimSpace(issuer), strings.TrimSpace(account), nil
}

func cutSeparator(escaped string) (string, string, error) {
	if prefix, rest, ok := strings.Cut(escaped, ":"); ok {
		return prefix, rest, nil
	}

	if i := strings.Index(strings.ToUpper(escaped), "%3A"); i >= 0 {
		return escaped[:i], escaped[i+3:], nil
	}

	return "", "", errLabelSeparatorNotFound
}

// escapeLabelPart escapes s as a path segment, including any colon, so the
// issuer separator stays unambiguous.
func escapeLabelPart(s string) string {
	return strings.ReplaceAll(url.PathEscape(s), ":", "%3A")
}
