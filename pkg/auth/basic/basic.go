// Package basic provides an HTTP Basic authenticator backed by the account
// database. It owns the slot holding the currently served database
// generation; a reload builds a new database elsewhere and installs it here
// in one atomic step.
package basic

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"sync/atomic"

	"github.com/rhuss/apiaccounts/pkg/account"
	"github.com/rhuss/apiaccounts/pkg/auth"
	"github.com/rhuss/apiaccounts/pkg/debug"
	"github.com/rhuss/apiaccounts/pkg/observability"
)

// Method is the Identity.Method value of identities produced here.
const Method = "basic"

// Authenticator validates HTTP Basic credentials against the current
// account database. All methods are safe for concurrent use.
type Authenticator struct {
	current atomic.Pointer[account.Database]
}

// New creates an authenticator serving db. db may be nil, in which case every
// credential is rejected until Install is called.
func New(db *account.Database) *Authenticator {
	a := &Authenticator{}
	if db != nil {
		a.current.Store(db)
	}
	return a
}

// Install replaces the served database and returns the previous one.
// Readers see either the old or the new generation, never a mix.
func (a *Authenticator) Install(db *account.Database) *account.Database {
	return a.current.Swap(db)
}

// Database returns the currently served generation, possibly nil.
func (a *Authenticator) Database() *account.Database {
	return a.current.Load()
}

// Lookup finds username in the current generation.
func (a *Authenticator) Lookup(username string) (account.Account, bool) {
	return a.current.Load().Lookup(username)
}

// Verify checks a username and password against the current generation.
func (a *Authenticator) Verify(username, password string) (account.Account, bool) {
	acct, ok := a.Lookup(username)
	if !ok {
		return account.Account{}, false
	}
	if !secretsEqual(acct.Password(), password) {
		return account.Account{}, false
	}
	return acct, true
}

// Authenticate implements auth.Authenticator.
//
// Decision outcomes:
//   - Abstain: no Basic credentials in the Authorization header
//   - No: unknown username or wrong password
//   - Yes: credentials match an account
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.AuthResult {
	username, password, ok := r.BasicAuth()
	if !ok {
		return a.record(auth.AuthResult{Decision: auth.Abstain})
	}

	acct, ok := a.Verify(username, password)
	if !ok {
		debug.Log("auth", "basic credentials rejected", "username", username)
		return a.record(auth.AuthResult{Decision: auth.No, Err: auth.ErrUnauthenticated})
	}

	return a.record(auth.AuthResult{
		Decision: auth.Yes,
		Identity: auth.IdentityFromAccount(acct, Method),
	})
}

func (a *Authenticator) record(res auth.AuthResult) auth.AuthResult {
	observability.AuthAttemptsTotal.WithLabelValues(Method, res.Decision.String()).Inc()
	return res
}

// secretsEqual compares in constant time with respect to the contents.
// Hashing first also hides the length of the stored secret.
func secretsEqual(stored, given string) bool {
	s := sha256.Sum256([]byte(stored))
	g := sha256.Sum256([]byte(given))
	return subtle.ConstantTimeCompare(s[:], g[:]) == 1
}
