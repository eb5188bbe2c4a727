package otpauth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tim-projects/omniauth/otp"
)

func TestParse_GoogleExample(t *testing.T) {
	key, err := Parse("otpauth://totp/Example:alice@google.com?secret=JBSWY3DPEHPK3PXP&issuer=Example&algorithm=SHA1&digits=6&period=30")
	require.NoError(t, err)

	assert.Equal(t, Key{
		Issuer:    "Example",
		Account:   "alice@google.com",
		Secret:    "JBSWY3DPEHPK3PXP",
		Algorithm: otp.AlgorithmSHA1,
		Digits:    6,
		Period:    30,
	}, key)
}

func TestParse_Defaults(t *testing.T) {
	key, err := Parse("otpauth://totp/alice@google.com?secret=JBSWY3DPEHPK3PXP")
	require.NoError(t, err)

	assert.Equal(t, Unknown, key.Issuer)
	assert.Equal(t, "alice@google.com", key.Account)
	assert.Equal(t, otp.AlgorithmSHA1, key.Algorithm)
	assert.Equal(t, 6, key.Digits)
	assert.Equal(t, int64(30), key.Period)
}

func TestParse_Label(t *testing.T) {
	tests := []struct {
		name        string
		uri         string
		wantIssuer  string
		wantAccount string
	}{
		{
			name:        "issuer parameter without prefix",
			uri:         "otpauth://totp/alice?secret=JBSWY3DPEHPK3PXP&issuer=ACME",
			wantIssuer:  "ACME",
			wantAccount: "alice",
		},
		{
			name:        "parameter overrides prefix",
			uri:         "otpauth://totp/Old:alice?secret=JBSWY3DPEHPK3PXP&issuer=New",
			wantIssuer:  "New",
			wantAccount: "alice",
		},
		{
			name:        "escaped separator and spaces",
			uri:         "otpauth://totp/ACME%20Co%3A%20john.doe%40email.com?secret=JBSWY3DPEHPK3PXP",
			wantIssuer:  "ACME Co",
			wantAccount: "john.doe@email.com",
		},
		{
			name:        "colon inside account",
			uri:         "otpauth://totp/Site:user:admin?secret=JBSWY3DPEHPK3PXP",
			wantIssuer:  "Site",
			wantAccount: "user:admin",
		},
		{
			name:        "empty label",
			uri:         "otpauth://totp/?secret=JBSWY3DPEHPK3PXP",
			wantIssuer:  Unknown,
			wantAccount: Unknown,
		},
		{
			name:        "empty issuer parameter keeps prefix",
			uri:         "otpauth://totp/GitHub:octocat?secret=JBSWY3DPEHPK3PXP&issuer=",
			wantIssuer:  "GitHub",
			wantAccount: "octocat",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			key, err := Parse(tc.uri)
			require.NoError(t, err)
			assert.Equal(t, tc.wantIssuer, key.Issuer)
			assert.Equal(t, tc.wantAccount, key.Account)
		})
	}
}

func TestParse_Parameters(t *testing.T) {
	key, err := Parse("otpauth://totp/a?secret=jbsw%20y3dp%20ehpk%203pxp&algorithm=sha512&digits=8&period=60")
	require.NoError(t, err)

	assert.Equal(t, "JBSWY3DPEHPK3PXP", key.Secret)
	assert.Equal(t, otp.AlgorithmSHA512, key.Algorithm)
	assert.Equal(t, 8, key.Digits)
	assert.Equal(t, int64(60), key.Period)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		uri     string
		wantErr error
	}{
		{"hotp type", "otpauth://hotp/Example:alice?secret=JBSWY3DPEHPK3PXP&counter=0", ErrUnsupportedType},
		{"uppercase type", "otpauth://TOTP/Example:alice?secret=JBSWY3DPEHPK3PXP", ErrUnsupportedType},
		{"steam type", "otpauth://steam/Steam:alice?secret=JBSWY3DPEHPK3PXP", ErrUnsupportedType},
		{"missing secret", "otpauth://totp/Example:alice?issuer=Example", ErrMissingSecret},
		{"empty secret", "otpauth://totp/Example:alice?secret=", ErrMissingSecret},
		{"bad secret", "otpauth://totp/Example:alice?secret=JBSW1!", otp.ErrInvalidEncoding},
		{"unknown algorithm", "otpauth://totp/a?secret=JBSWY3DPEHPK3PXP&algorithm=MD5", ErrInvalidParameterValue},
		{"empty algorithm", "otpauth://totp/a?secret=JBSWY3DPEHPK3PXP&algorithm=", ErrInvalidParameterValue},
		{"non-numeric digits", "otpauth://totp/a?secret=JBSWY3DPEHPK3PXP&digits=six", ErrInvalidParameterValue},
		{"zero digits", "otpauth://totp/a?secret=JBSWY3DPEHPK3PXP&digits=0", ErrInvalidParameterValue},
		{"non-numeric period", "otpauth://totp/a?secret=JBSWY3DPEHPK3PXP&period=30s", ErrInvalidParameterValue},
		{"negative period", "otpauth://totp/a?secret=JBSWY3DPEHPK3PXP&period=-30", ErrInvalidParameterValue},
		{"wrong scheme", "https://totp/a?secret=JBSWY3DPEHPK3PXP", ErrMalformedURI},
		{"missing type", "otpauth:///a?secret=JBSWY3DPEHPK3PXP", ErrMalformedURI},
		{"opaque", "otpauth:totp/a?secret=JBSWY3DPEHPK3PXP", ErrMalformedURI},
		{"bad escape", "otpauth://totp/a%zz?secret=JBSWY3DPEHPK3PXP", ErrMalformedURI},
		{"bad query", "otpauth://totp/a?secret=JBSWY3DPEHPK3PXP&x=%zz", ErrMalformedURI},
		{"not a uri", "hello world", ErrMalformedURI},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.uri)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestEncode(t *testing.T) {
	uri := Encode(Key{
		Issuer:    "ACME Co",
		Account:   "john@example.com",
		Secret:    "JBSWY3DPEHPK3PXP",
		Algorithm: otp.AlgorithmSHA256,
		Digits:    8,
		Period:    60,
	})

	assert.Equal(t, "otpauth://totp/ACME%20Co:john@example.com?secret=JBSWY3DPEHPK3PXP&issuer=ACME+Co&algorithm=SHA256&digits=8&period=60", uri)
}

func TestEncodeParse_RoundTrip(t *testing.T) {
	keys := []Key{
		{Issuer: "Example", Account: "alice@google.com", Secret: "JBSWY3DPEHPK3PXP", Algorithm: otp.AlgorithmSHA1, Digits: 6, Period: 30},
		{Issuer: "ACME Co", Account: "john doe", Secret: "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ", Algorithm: otp.AlgorithmSHA256, Digits: 8, Period: 60},
		{Issuer: "a:b", Account: "c:d", Secret: "MZXW6YTBOI", Algorithm: otp.AlgorithmSHA512, Digits: 7, Period: 15},
		{Issuer: "Tom & Jerry", Account: "cat/mouse?#%", Secret: "MZXW6", Algorithm: otp.AlgorithmSHA1, Digits: 6, Period: 30},
		{Issuer: "Ünïcødé", Account: "ユーザー+1", Secret: "JBSWY3DPEHPK3PXP", Algorithm: otp.AlgorithmSHA1, Digits: 6, Period: 30},
		{Issuer: Unknown, Account: Unknown, Secret: "JBSWY3DPEHPK3PXP", Algorithm: otp.AlgorithmSHA1, Digits: 10, Period: 1},
	}

	for _, key := range keys {
		t.Run(key.Issuer, func(t *testing.T) {
			got, err := Parse(Encode(key))
			require.NoError(t, err)
			assert.Equal(t, key, got)
		})
	}
}
