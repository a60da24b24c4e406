package account

import (
	"fmt"
	"os"
	"strings"
)

// Account is one authenticated identity. It is immutable; the secret is
// resolved once at construction.
type Account struct {
	username string
	password string
	level    Level
}

// Option configures NewAccount, Build, and Compile.
type Option func(*options)

type options struct {
	readSecret func(path string) ([]byte, error)
	baseDir    string
}

func newOptions(opts []Option) options {
	o := options{readSecret: os.ReadFile}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithSecretReader replaces the function used to read password files.
// Defaults to os.ReadFile.
func WithSecretReader(read func(path string) ([]byte, error)) Option {
	return func(o *options) {
		if read != nil {
			o.readSecret = read
		}
	}
}

// WithBaseDir sets the directory relative password_file paths are resolved
// against by Compile.
func WithBaseDir(dir string) Option {
	return func(o *options) { o.baseDir = dir }
}

// NewAccount constructs an Account from a canonical record. When the record
// names a password file, the file is read and surrounding whitespace is
// trimmed from its contents.
func NewAccount(c Canonical, opts ...Option) (Account, error) {
	return newAccount(c, newOptions(opts))
}

func newAccount(c Canonical, o options) (Account, error) {
	if c.Username == ReservedUsername {
		return Account{}, fmt.Errorf("%w: the username '%s' is not allowed", ErrReservedUsername, ReservedUsername)
	}

	a := Account{
		username: c.Username,
		level:    LevelFull,
	}
	if c.Level == LevelReadOnly {
		a.level = LevelReadOnly
	}

	switch {
	case c.Password != nil:
		a.password = *c.Password
	case c.PasswordFile != nil:
		data, err := o.readSecret(*c.PasswordFile)
		if err != nil {
			return Account{}, fmt.Errorf("%w: account %q: %w", ErrSecretUnavailable, c.Username, err)
		}
		a.password = strings.TrimSpace(string(data))
	default:
		return Account{}, fmt.Errorf("%w: account %q has neither password nor password_file", ErrMissingField, c.Username)
	}

	return a, nil
}

// Username returns the account name.
func (a Account) Username() string { return a.username }

// Password returns the secret.
func (a Account) Password() string { return a.password }

// Level returns the privilege level.
func (a Account) Level() Level { return a.level }

// ReadOnly reports whether the account is restricted to non-mutating
// operations.
func (a Account) ReadOnly() bool { return a.level == LevelReadOnly }

// String identifies the account without revealing its secret.
func (a Account) String() string {
	return a.username + " (" + string(a.level) + ")"
}
