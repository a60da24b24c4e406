package account

import (
	"fmt"
	"slices"
)

// Database is an ordered, read-only collection of accounts. It may be shared
// by any number of concurrent readers. A nil *Database is empty.
type Database struct {
	accounts []Account
}

// Build constructs one Account per canonical record, in order. The first
// failure aborts the build; no partial database is returned.
func Build(specs []Canonical, opts ...Option) (*Database, error) {
	o := newOptions(opts)
	db := &Database{accounts: make([]Account, 0, len(specs))}
	for i, c := range specs {
		a, err := newAccount(c, o)
		if err != nil {
			return nil, fmt.Errorf("building account %d: %w", i, err)
		}
		db.accounts = append(db.accounts, a)
	}
	return db, nil
}

// Compile validates, normalizes, and builds specs in one step. Validation
// defects are returned as ValidationErrors; key is quoted in their messages.
func Compile(key string, specs []Spec, opts ...Option) (*Database, error) {
	if errs := Validate(key, specs); len(errs) > 0 {
		return nil, errs
	}

	o := newOptions(opts)
	canonical, err := Normalizer{BaseDir: o.baseDir}.NormalizeAll(specs)
	if err != nil {
		return nil, err
	}
	return Build(canonical, opts...)
}

// IsEmpty reports whether the database holds no accounts.
func (d *Database) IsEmpty() bool {
	return d.Len() == 0
}

// Len returns the number of accounts, duplicates included.
func (d *Database) Len() int {
	if d == nil {
		return 0
	}
	return len(d.accounts)
}

// Lookup returns the first account whose username equals username exactly.
// Later accounts with the same username are shadowed.
func (d *Database) Lookup(username string) (Account, bool) {
	if d == nil {
		return Account{}, false
	}
	for _, a := range d.accounts {
		if a.username == username {
			return a, true
		}
	}
	return Account{}, false
}

// Accounts returns a copy of the accounts in insertion order.
func (d *Database) Accounts() []Account {
	if d == nil {
		return nil
	}
	return slices.Clone(d.accounts)
}

// Swap exchanges the contents of d and other in constant time. A nil
// database counts as empty: swapping with one empties the other side.
func (d *Database) Swap(other *Database) {
	switch {
	case d == nil && other == nil:
	case d == nil:
		other.accounts = nil
	case other == nil:
		d.accounts = nil
	default:
		d.accounts, other.accounts = other.accounts, d.accounts
	}
}
