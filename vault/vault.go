// Package vault provides the account collection: the account model,
// its JSON backup format, a file-backed store and importers for
// backups made by other authenticator apps.
package vault

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tim-projects/omniauth/otp"
	"github.com/tim-projects/omniauth/otpauth"
)

// Account describes one TOTP credential. It is immutable once created;
// edits replace the whole value.
type Account struct {
	ID        string        `json:"id"`
	Issuer    string        `json:"issuer" validate:"required"`
	Label     string        `json:"account" validate:"required"`
	Secret    string        `json:"secret" validate:"required,base32secret"`
	Algorithm otp.Algorithm `json:"algorithm" validate:"oneof=SHA1 SHA256 SHA512"`
	Digits    int           `json:"digits" validate:"min=1"`
	Period    int64         `json:"period" validate:"min=1"`
	CreatedAt int64         `json:"createdAt"`
}

// MaxManualDigits caps the code length of manually entered accounts.
// Longer codes from provisioning URIs are zero-padded 31-bit values.
const MaxManualDigits = 10

// NewAccount assigns an id and creation time to a manually entered account.
// The secret is normalized and the result is validated.
func NewAccount(issuer, label, secret string, algo otp.Algorithm, digits int, period int64, now time.Time) (Account, error) {
	var account Account = newAccount(issuer, label, secret, algo, digits, period, now)

	err := Validate(account)
	if account.Digits > MaxManualDigits {
		var ve ValidationError
		if !errors.As(err, &ve) {
			ve = ValidationError{}
		}
		ve["digits"] = "max=" + strconv.Itoa(MaxManualDigits)
		err = ve
	}

	if err != nil {
		return Account{}, err
	}

	return account, nil
}

// FromKey creates an account from a parsed provisioning URI. Unlike
// NewAccount it accepts any positive digit count.
func FromKey(key otpauth.Key, now time.Time) (Account, error) {
	var account Account = newAccount(key.Issuer, key.Account, key.Secret, key.Algorithm, key.Digits, key.Period, now)

	if err := Validate(account); err != nil {
		return Account{}, err
	}

	return account, nil
}

func newAccount(issuer, label, secret string, algo otp.Algorithm, digits int, period int64, now time.Time) Account {
	return Account{
		ID:        newID(),
		Issuer:    strings.TrimSpace(issuer),
		Label:     strings.TrimSpace(label),
		Secret:    otp.NormalizeSecret(secret),
		Algorithm: algo,
		Digits:    digits,
		Period:    period,
		CreatedAt: now.UnixMilli(),
	}
}

// Key returns the provisioning data of the account.
func (a Account) Key() otpauth.Key {
	return otpauth.Key{
		Issuer:    a.Issuer,
		Account:   a.Label,
		Secret:    a.Secret,
		Algorithm: a.Algorithm,
		Digits:    a.Digits,
		Period:    a.Period,
	}
}

// URI returns the otpauth provisioning URI of the account.
func (a Account) URI() string {
	return otpauth.Encode(a.Key())
}

func (a Account) String() string {
	var outputFormat string = "Account{ id: %v, issuer: %v, account: %v, algorithm: %v, "
	outputFormat += "digits: %v, period: %v, createdAt: %v }"

	// The secret is left out so accounts can be logged
	var fields []any = []any{
		a.ID,
		a.Issuer,
		a.Label,
		a.Algorithm,
		a.Digits,
		a.Period,
		a.CreatedAt,
	}

	return fmt.Sprintf(outputFormat, fields...)
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}
