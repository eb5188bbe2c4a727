package vault

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/tim-projects/omniauth/otp"
)

// ErrMalformedPayload is returned when a backup is not a list of
// complete account objects.
var ErrMalformedPayload = errors.New("vault: malformed account payload")

// record mirrors Account with pointer fields so absent fields can be told
// apart from zero values.
type record struct {
	ID        *string        `json:"id"`
	Issuer    *string        `json:"issuer"`
	Account   *string        `json:"account"`
	Secret    *string        `json:"secret"`
	Algorithm *otp.Algorithm `json:"algorithm"`
	Digits    *int           `json:"digits"`
	Period    *int64         `json:"period"`
	CreatedAt *int64         `json:"createdAt"`
}

func (r record) account() (Account, error) {
	missing := func(field string) error {
		return fmt.Errorf("missing field %q", field)
	}

	switch {
	case r.ID == nil:
		return Account{}, missing("id")
	case r.Issuer == nil:
		return Account{}, missing("issuer")
	case r.Account == nil:
		return Account{}, missing("account")
	case r.Secret == nil:
		return Account{}, missing("secret")
	case r.Algorithm == nil:
		return Account{}, missing("algorithm")
	case r.Digits == nil:
		return Account{}, missing("digits")
	case r.Period == nil:
		return Account{}, missing("period")
	case r.CreatedAt == nil:
		return Account{}, missing("createdAt")
	}

	return Account{
		ID:        *r.ID,
		Issuer:    *r.Issuer,
		Label:     *r.Account,
		Secret:    *r.Secret,
		Algorithm: *r.Algorithm,
		Digits:    *r.Digits,
		Period:    *r.Period,
		CreatedAt: *r.CreatedAt,
	}, nil
}

// DecodeAccounts parses a JSON array of accounts.
//
// Only the structure is checked: every object must carry exactly the
// account fields with the right types. Secrets and ranges are not
// validated and duplicates are kept.
func DecodeAccounts(payload []byte) ([]Account, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()

	var records []record
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	if records == nil {
		return nil, fmt.Errorf("%w: expected a list of accounts", ErrMalformedPayload)
	}

	// Reject trailing data after the list
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: unexpected data after account list", ErrMalformedPayload)
	}

	var accounts []Account = make([]Account, 0, len(records))
	for i, r := range records {
		account, err := r.account()
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrMalformedPayload, i, err)
		}
		accounts = append(accounts, account)
	}

	return accounts, nil
}

// EncodeAccounts writes accounts as an indented JSON array that
// DecodeAccounts reads back unchanged.
func EncodeAccounts(accounts []Account) ([]byte, error) {
	if accounts == nil {
		accounts = []Account{}
	}

	return json.MarshalIndent(accounts, "", "  ")
}
