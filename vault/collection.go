package vault

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrNotFound is returned when no account has the requested id.
var ErrNotFound = errors.New("vault: account not found")

// Collection is the ordered list of accounts. It is safe for concurrent use.
type Collection struct {
	mu       sync.RWMutex
	accounts []Account
}

func NewCollection(accounts ...Account) *Collection {
	return &Collection{accounts: append([]Account(nil), accounts...)}
}

// Accounts returns a copy of the accounts in insertion order.
func (c *Collection) Accounts() []Account {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return append([]Account(nil), c.accounts...)
}

func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.accounts)
}

// Add appends accounts to the collection.
func (c *Collection) Add(accounts ...Account) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.accounts = append(c.accounts, accounts...)
}

// Find returns the first account with the id.
func (c *Collection) Find(id string) (Account, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, account := range c.accounts {
		if account.ID == id {
			return account, nil
		}
	}

	return Account{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Delete removes every account with the id.
func (c *Collection) Delete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var kept []Account = make([]Account, 0, len(c.accounts))
	for _, account := range c.accounts {
		if account.ID != id {
			kept = append(kept, account)
		}
	}

	if len(kept) == len(c.accounts) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	c.accounts = kept

	return nil
}

// Search returns the accounts whose issuer or account name contains query,
// ignoring case. An empty query matches everything.
func (c *Collection) Search(query string) []Account {
	var needle string = strings.ToLower(strings.TrimSpace(query))

	c.mu.RLock()
	defer c.mu.RUnlock()

	var matches []Account
	for _, account := range c.accounts {
		if strings.Contains(strings.ToLower(account.Issuer), needle) ||
			strings.Contains(strings.ToLower(account.Label), needle) {
			matches = append(matches, account)
		}
	}

	return matches
}

// Import appends every account in the JSON payload and returns how many
// were added. A malformed payload leaves the collection untouched.
func (c *Collection) Import(payload []byte) (int, error) {
	accounts, err := DecodeAccounts(payload)
	if err != nil {
		return 0, err
	}

	c.Add(accounts...)

	return len(accounts), nil
}

// Export serializes the collection in the backup format.
func (c *Collection) Export() ([]byte, error) {
	return EncodeAccounts(c.Accounts())
}
