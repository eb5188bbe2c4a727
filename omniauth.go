// Package omniauth generates live TOTP codes for stored accounts and
// locates account backups.
package omniauth

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/tim-projects/omniauth/otp"
	"github.com/tim-projects/omniauth/vault"
)

const backupDateLayout = "2006-01-02"

var backupFileRE = regexp.MustCompile(`^omniauth_backup_\d{4}-\d{2}-\d{2}(-\d+)?\.json$`)

// GeneratedCode is the code of one account at one instant. It is never stored.
type GeneratedCode struct {
	AccountID string
	Code      string
	// RemainingTime is the seconds left in the current window, in (0, period].
	RemainingTime int64
}

// AccountError reports a generation failure for a single account.
type AccountError struct {
	AccountID string
	Err       error
}

func (e *AccountError) Error() string {
	return fmt.Sprintf("account %s: %v", e.AccountID, e.Err)
}

func (e *AccountError) Unwrap() error {
	return e.Err
}

// GetCode generates the code of account at now.
func GetCode(account vault.Account, now time.Time) (GeneratedCode, error) {
	secretData, err := otp.DecodeSecret(account.Secret)
	if err != nil {
		return GeneratedCode{}, &AccountError{AccountID: account.ID, Err: err}
	}

	pass, err := otp.GenerateTOTPAt(secretData, account.Algorithm, account.Digits, account.Period, now.Unix())
	if err != nil {
		return GeneratedCode{}, &AccountError{AccountID: account.ID, Err: err}
	}

	return GeneratedCode{
		AccountID:     account.ID,
		Code:          pass.String(),
		RemainingTime: pass.Remaining(),
	}, nil
}

// CodeResult is the outcome of one account in GetCodes.
type CodeResult struct {
	Account vault.Account
	Code    GeneratedCode
	Err     error
}

// GetCodes generates a code for each account, in the order given.
//
// An account that fails does not stop the others: its result carries the
// *AccountError, and all failures are also returned joined. Results are
// positional, so accounts sharing an id never mask each other.
func GetCodes(accounts []vault.Account, now time.Time) ([]CodeResult, error) {
	var results []CodeResult = make([]CodeResult, len(accounts))
	var errs []error

	for i, account := range accounts {
		code, err := GetCode(account, now)
		results[i] = CodeResult{Account: account, Code: code, Err: err}
		if err != nil {
			errs = append(errs, err)
		}
	}

	return results, errors.Join(errs...)
}

// maxWaitSeconds is the longest wait a time.Duration can hold.
const maxWaitSeconds int64 = math.MaxInt64 / int64(time.Second)

// TimeToNext calculates the time until the next code refresh for the period.
// It returns 0 for a period below one second.
func TimeToNext(period int64, now time.Time) time.Duration {
	if period < 1 {
		return 0
	}

	var remaining int64 = otp.RemainingTime(period, now.Unix())
	if remaining > maxWaitSeconds {
		return time.Duration(math.MaxInt64)
	}

	return time.Duration(remaining)*time.Second - time.Duration(now.Nanosecond())
}

// BackupFileName returns the export file name for the day of t.
func BackupFileName(t time.Time) string {
	return fmt.Sprintf("omniauth_backup_%s.json", t.Format(backupDateLayout))
}

// FindBackupPath returns the most recently modified
// backup's filepath.
func FindBackupPath(backupDir string) (string, error) {
	files, err := os.ReadDir(backupDir)
	if err != nil {
		return "", err
	}

	backupFile, err := LastModified(files)
	if err != nil {
		return "", err
	}

	if backupFile == nil {
		return "", errors.New("no backup file found")
	}

	return filepath.Join(backupDir, backupFile.Name()), nil
}

// LastModified finds the most recent backup file.
func LastModified(files []fs.DirEntry) (fs.DirEntry, error) {
	var backupFile fs.DirEntry
	var err error

	for _, file := range files {
		// Ignore directories and non-backup files
		if file.IsDir() || !backupFileRE.MatchString(file.Name()) {
			continue
		}

		if backupFile == nil {
			backupFile = file
			continue
		}

		backupFile, err = lastModTime(file, backupFile)
		if err != nil {
			return nil, err
		}
	}

	return backupFile, nil
}

// lastModTime is a helper to compare the last modified time.
func lastModTime(file1 fs.DirEntry, file2 fs.DirEntry) (fs.DirEntry, error) {
	info1, err := file1.Info()
	if err != nil {
		return nil, err
	}

	info2, err := file2.Info()
	if err != nil {
		return nil, err
	}

	if info2.ModTime().After(info1.ModTime()) {
		return file2, nil
	}

	return file1, nil
}
