// Package session issues and validates short-lived admin session tokens.
//
// An account that authenticated with its password can exchange it for an
// HS256-signed JWT and present that as a Bearer token afterwards. Every
// validation re-checks the subject against the current account generation,
// so removing an account in a reload revokes its sessions, and a level
// downgrade applies immediately.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/rhuss/apiaccounts/pkg/account"
	"github.com/rhuss/apiaccounts/pkg/auth"
	"github.com/rhuss/apiaccounts/pkg/debug"
	"github.com/rhuss/apiaccounts/pkg/observability"
)

// Method is the Identity.Method value of identities produced here.
const Method = "session"

// MinKeyLength is the minimum signing key size in bytes.
const MinKeyLength = 32

// ErrRevoked is returned when a token's subject is no longer served.
var ErrRevoked = errors.New("session subject no longer exists")

// Config holds the session token settings.
type Config struct {
	// SigningKey is the HMAC key. Must be at least MinKeyLength bytes.
	SigningKey []byte

	// Issuer is written to and required in the iss claim. Default: "apiaccounts".
	Issuer string

	// TTL is the token lifetime. Default: 15 minutes.
	TTL time.Duration

	// Now overrides the clock (useful for testing).
	Now func() time.Time
}

func (c *Config) applyDefaults() {
	if c.Issuer == "" {
		c.Issuer = "apiaccounts"
	}
	if c.TTL == 0 {
		c.TTL = 15 * time.Minute
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Accounts resolves usernames in the currently served generation.
type Accounts interface {
	Lookup(username string) (account.Account, bool)
}

// Claims are the JWT claims of a session token.
type Claims struct {
	Level account.Level `json:"level"`
	jwtlib.RegisteredClaims
}

// Token is an issued session token.
type Token struct {
	Value     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Manager issues tokens and authenticates Bearer requests.
type Manager struct {
	config   Config
	accounts Accounts
}

// New creates a Manager.
func New(cfg Config, accounts Accounts) (*Manager, error) {
	if len(cfg.SigningKey) < MinKeyLength {
		return nil, fmt.Errorf("session signing key must be at least %d bytes, got %d", MinKeyLength, len(cfg.SigningKey))
	}
	if accounts == nil {
		return nil, errors.New("session manager requires an account source")
	}
	cfg.applyDefaults()
	return &Manager{config: cfg, accounts: accounts}, nil
}

// TTL returns the configured token lifetime.
func (m *Manager) TTL() time.Duration { return m.config.TTL }

// Issue signs a token for a. Every token carries a unique jti.
func (m *Manager) Issue(a account.Account) (Token, error) {
	now := m.config.Now()
	exp := now.Add(m.config.TTL)

	claims := Claims{
		Level: a.Level(),
		RegisteredClaims: jwtlib.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   a.Username(),
			Issuer:    m.config.Issuer,
			IssuedAt:  jwtlib.NewNumericDate(now),
			NotBefore: jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(exp),
		},
	}

	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(m.config.SigningKey)
	if err != nil {
		return Token{}, fmt.Errorf("signing session token: %w", err)
	}
	return Token{Value: signed, ExpiresAt: exp}, nil
}

// Authenticate implements auth.Authenticator.
//
// Decision outcomes:
//   - Abstain: no Authorization header or not a Bearer scheme
//   - No: invalid, expired, or revoked token
//   - Yes: valid token whose subject is still served
func (m *Manager) Authenticate(_ context.Context, r *http.Request) auth.AuthResult {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return m.record(auth.AuthResult{Decision: auth.Abstain})
	}

	tokenStr := strings.TrimPrefix(header, "Bearer ")
	if tokenStr == "" {
		return m.record(auth.AuthResult{Decision: auth.No, Err: errors.New("empty bearer token")})
	}

	claims, err := m.Parse(tokenStr)
	if err != nil {
		debug.Log("auth", "session token rejected", "error", err)
		return m.record(auth.AuthResult{Decision: auth.No, Err: err})
	}

	acct, ok := m.accounts.Lookup(claims.Subject)
	if !ok {
		return m.record(auth.AuthResult{Decision: auth.No, Err: fmt.Errorf("%w: %q", ErrRevoked, claims.Subject)})
	}

	id := auth.IdentityFromAccount(acct, Method)
	if claims.Level == account.LevelReadOnly {
		id.Level = account.LevelReadOnly
	}
	if claims.ExpiresAt != nil {
		id.Metadata = map[string]string{"expires_at": claims.ExpiresAt.Time.UTC().Format(time.RFC3339)}
	}

	return m.record(auth.AuthResult{Decision: auth.Yes, Identity: id})
}

// Parse validates a token string and returns its claims.
func (m *Manager) Parse(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwtlib.ParseWithClaims(tokenStr, claims, func(*jwtlib.Token) (any, error) {
		return m.config.SigningKey, nil
	},
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithIssuer(m.config.Issuer),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithTimeFunc(m.config.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid session token: %w", err)
	}
	if claims.Subject == "" {
		return nil, errors.New("session token missing sub claim")
	}
	return claims, nil
}

func (m *Manager) record(res auth.AuthResult) auth.AuthResult {
	observability.AuthAttemptsTotal.WithLabelValues(Method, res.Decision.String()).Inc()
	return res
}
