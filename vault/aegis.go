package vault

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/scrypt"

	"github.com/tim-projects/omniauth/otp"
	"github.com/tim-projects/omniauth/otpauth"
)

var (
	// ErrPasswordRequired is returned for an encrypted Aegis backup read without a password.
	ErrPasswordRequired = errors.New("vault: aegis backup is encrypted, password required")
	// ErrNoMasterKey is returned when no password slot opens with the password.
	ErrNoMasterKey = errors.New("vault: no master key found")
	// ErrUnsupportedVault is returned for data that is not an Aegis backup.
	ErrUnsupportedVault = errors.New("vault: unsupported aegis backup")
)

const aegisPasswordSlot int = 1

type aegisBackup struct {
	Version int             `json:"version"`
	Header  aegisHeader     `json:"header"`
	DB      json.RawMessage `json:"db"`
}

type aegisHeader struct {
	Slots  []aegisSlot  `json:"slots"`
	Params *aegisParams `json:"params"`
}

type aegisSlot struct {
	Type      int         `json:"type"`
	Key       string      `json:"key"`
	KeyParams aegisParams `json:"key_params"`
	N         int         `json:"n"`
	R         int         `json:"r"`
	P         int         `json:"p"`
	Salt      string      `json:"salt"`
}

type aegisParams struct {
	Nonce string `json:"nonce"`
	Tag   string `json:"tag"`
}

type aegisDB struct {
	Version int          `json:"version"`
	Entries []aegisEntry `json:"entries"`
}

type aegisEntry struct {
	Type   string    `json:"type"`
	UUID   string    `json:"uuid"`
	Name   string    `json:"name"`
	Issuer string    `json:"issuer"`
	Info   aegisInfo `json:"info"`
}

type aegisInfo struct {
	Secret string `json:"secret"`
	Algo   string `json:"algo"`
	Digits int    `json:"digits"`
	Period int64  `json:"period"`
}

// AegisImport is the outcome of reading an Aegis backup.
type AegisImport struct {
	Accounts []Account
	// Skipped counts entries that are not SHA1/SHA256/SHA512 TOTP.
	Skipped int
}

// IsAegisEncrypted reports whether data is an Aegis backup whose database
// is encrypted.
func IsAegisEncrypted(data []byte) (bool, error) {
	backup, err := readAegisBackup(data)
	if err != nil {
		return false, err
	}

	return backup.encrypted(), nil
}

// ReadAegisBackup converts the TOTP entries of an Aegis backup into
// accounts. The password is only used for encrypted backups.
func ReadAegisBackup(data []byte, password []byte, now time.Time) (AegisImport, error) {
	backup, err := readAegisBackup(data)
	if err != nil {
		return AegisImport{}, err
	}

	var content []byte = backup.DB
	if backup.encrypted() {
		if len(password) == 0 {
			return AegisImport{}, ErrPasswordRequired
		}

		masterKey, err := backup.findMasterKey(password)
		if err != nil {
			return AegisImport{}, err
		}

		content, err = backup.decryptContents(masterKey)
		if err != nil {
			return AegisImport{}, err
		}
	}

	var db aegisDB
	if err := json.Unmarshal(content, &db); err != nil {
		return AegisImport{}, fmt.Errorf("%w: %v", ErrUnsupportedVault, err)
	}

	var result AegisImport
	for _, entry := range db.Entries {
		account, ok := entry.account(now)
		if !ok {
			result.Skipped++
			continue
		}
		result.Accounts = append(result.Accounts, account)
	}

	return result, nil
}

func readAegisBackup(data []byte) (*aegisBackup, error) {
	var backup aegisBackup
	if err := json.Unmarshal(data, &backup); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedVault, err)
	}

	if len(bytes.TrimSpace(backup.DB)) == 0 {
		return nil, fmt.Errorf("%w: missing db", ErrUnsupportedVault)
	}

	return &backup, nil
}

// encrypted reports whether the db field holds base64 ciphertext
// instead of a plaintext object.
func (b *aegisBackup) encrypted() bool {
	return bytes.TrimSpace(b.DB)[0] == '"'
}

// findMasterKey uses the password to decrypt the master key
// from the first password slot that accepts it.
func (b *aegisBackup) findMasterKey(password []byte) ([]byte, error) {
	for _, slot := range b.Header.Slots {
		// Ignore slots that aren't using the password type
		if slot.Type != aegisPasswordSlot {
			continue
		}

		salt, err := hex.DecodeString(slot.Salt)
		if err != nil {
			return nil, fmt.Errorf("%w: slot salt: %v", ErrUnsupportedVault, err)
		}

		// Create a key using the slot values and provided password
		key, err := scrypt.Key(password, salt, slot.N, slot.R, slot.P, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: scrypt: %v", ErrUnsupportedVault, err)
		}

		slotKey, err := hex.DecodeString(slot.Key)
		if err != nil {
			return nil, fmt.Errorf("%w: slot key: %v", ErrUnsupportedVault, err)
		}

		masterKey, err := openGCM(key, slot.KeyParams, slotKey)
		if err == nil {
			return masterKey, nil
		}
	}

	return nil, ErrNoMasterKey
}

// decryptContents uses the master key to decrypt the backup's database.
func (b *aegisBackup) decryptContents(masterKey []byte) ([]byte, error) {
	if b.Header.Params == nil {
		return nil, fmt.Errorf("%w: missing header params", ErrUnsupportedVault)
	}

	var db string
	if err := json.Unmarshal(b.DB, &db); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedVault, err)
	}

	ciphertext, err := base64.StdEncoding.DecodeString(db)
	if err != nil {
		return nil, fmt.Errorf("%w: db: %v", ErrUnsupportedVault, err)
	}

	content, err := openGCM(masterKey, *b.Header.Params, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decrypt aegis db: %w", err)
	}

	return content, nil
}

// openGCM decrypts ciphertext whose authentication tag is stored
// separately in params.
func openGCM(key []byte, params aegisParams, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce, err := hex.DecodeString(params.Nonce)
	if err != nil {
		return nil, err
	}

	tag, err := hex.DecodeString(params.Tag)
	if err != nil {
		return nil, err
	}

	var sealed []byte = append(append([]byte(nil), ciphertext...), tag...)

	return aesgcm.Open(nil, nonce, sealed, nil)
}

func (e aegisEntry) account(now time.Time) (Account, bool) {
	if e.Type != "totp" {
		return Account{}, false
	}

	algo, err := otp.ParseAlgorithm(e.Info.Algo)
	if err != nil {
		return Account{}, false
	}

	var period int64 = e.Info.Period
	if period == 0 {
		period = otp.DefaultPeriod
	}

	var digits int = e.Info.Digits
	if digits == 0 {
		digits = otp.DefaultDigits
	}

	var id string = strings.TrimSpace(e.UUID)
	if id == "" {
		id = newID()
	}

	var issuer string = strings.TrimSpace(e.Issuer)
	if issuer == "" {
		issuer = otpauth.Unknown
	}

	var label string = strings.TrimSpace(e.Name)
	if label == "" {
		label = otpauth.Unknown
	}

	return Account{
		ID:        id,
		Issuer:    issuer,
		Label:     label,
		Secret:    otp.NormalizeSecret(e.Info.Secret),
		Algorithm: algo,
		Digits:    digits,
		Period:    period,
		CreatedAt: now.UnixMilli(),
	}, true
}
