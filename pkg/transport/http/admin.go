package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rhuss/apiaccounts/pkg/account"
	"github.com/rhuss/apiaccounts/pkg/auth"
	"github.com/rhuss/apiaccounts/pkg/auth/basic"
	"github.com/rhuss/apiaccounts/pkg/auth/session"
	"github.com/rhuss/apiaccounts/pkg/debug"
	"github.com/rhuss/apiaccounts/pkg/reload"
	"github.com/rhuss/apiaccounts/pkg/transport"
)

// Accounts gives read access to the served account generation.
type Accounts interface {
	Database() *account.Database
	Lookup(username string) (account.Account, bool)
}

// Reloader rebuilds and installs the account database on demand.
type Reloader interface {
	Reload(ctx context.Context) error
	Status() reload.Status
}

// SessionIssuer mints session tokens for authenticated accounts.
type SessionIssuer interface {
	Issue(a account.Account) (session.Token, error)
}

// HealthChecker reports whether an external account source is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Admin serves the account administration API. Routes under /api/ expect
// the auth middleware to have placed an identity in the request context.
type Admin struct {
	accounts    Accounts
	reloader    Reloader
	sessions    SessionIssuer
	source      HealthChecker
	metricsPath string
	mux         *http.ServeMux
}

// AdminOption configures an Admin.
type AdminOption func(*Admin)

// WithReloader enables POST /api/reload.
func WithReloader(r Reloader) AdminOption {
	return func(a *Admin) { a.reloader = r }
}

// WithSessions enables POST /api/session.
func WithSessions(s SessionIssuer) AdminOption {
	return func(a *Admin) { a.sessions = s }
}

// WithSourceCheck makes /readyz fail while the account source is unreachable.
func WithSourceCheck(h HealthChecker) AdminOption {
	return func(a *Admin) { a.source = h }
}

// WithMetrics exposes Prometheus metrics at path.
func WithMetrics(path string) AdminOption {
	return func(a *Admin) { a.metricsPath = path }
}

// NewAdmin creates the admin API for accounts.
func NewAdmin(accounts Accounts, opts ...AdminOption) *Admin {
	a := &Admin{
		accounts: accounts,
		mux:      http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(a)
	}

	a.mux.HandleFunc("GET /healthz", a.handleHealth)
	a.mux.HandleFunc("GET /readyz", a.handleReady)
	if a.metricsPath != "" {
		a.mux.Handle("GET "+a.metricsPath, promhttp.Handler())
	}

	a.mux.HandleFunc("GET /api/whoami", a.handleWhoAmI)
	a.mux.HandleFunc("GET /api/accounts", a.handleListAccounts)
	a.mux.HandleFunc("POST /api/reload", a.handleReload)
	a.mux.HandleFunc("POST /api/session", a.handleCreateSession)

	return a
}

// Handler returns the http.Handler for this admin API.
func (a *Admin) Handler() http.Handler {
	return a.mux
}

// AccountView is the public projection of an account. Secrets are never
// part of it.
type AccountView struct {
	Username string        `json:"username"`
	Level    account.Level `json:"level"`
}

// AccountList is the body of GET /api/accounts.
type AccountList struct {
	Generation uint64        `json:"generation,omitempty"`
	Accounts   []AccountView `json:"accounts"`
}

// WhoAmI is the body of GET /api/whoami.
type WhoAmI struct {
	Subject   string        `json:"subject"`
	Level     account.Level `json:"level"`
	Method    string        `json:"method"`
	ExpiresAt string        `json:"expires_at,omitempty"`
}

func (a *Admin) handleHealth(w http.ResponseWriter, _ *http.Request) {
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady reports ready once a non-empty generation is served and the
// account source, if any, answers.
func (a *Admin) handleReady(w http.ResponseWriter, r *http.Request) {
	db := a.accounts.Database()
	if db.IsEmpty() {
		transport.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "no accounts loaded"})
		return
	}
	if a.source != nil {
		if err := a.source.HealthCheck(r.Context()); err != nil {
			debug.Log("transport", "account source health check failed", "error", err)
			transport.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "account source unavailable"})
			return
		}
	}
	transport.WriteJSON(w, http.StatusOK, map[string]any{"status": "ok", "accounts": db.Len()})
}

func (a *Admin) handleWhoAmI(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	if id == nil {
		transport.WriteError(w, http.StatusUnauthorized, "unauthorized", auth.ErrUnauthenticated.Error())
		return
	}
	transport.WriteJSON(w, http.StatusOK, WhoAmI{
		Subject:   id.Subject,
		Level:     id.Level,
		Method:    id.Method,
		ExpiresAt: id.Metadata["expires_at"],
	})
}

func (a *Admin) handleListAccounts(w http.ResponseWriter, _ *http.Request) {
	list := AccountList{Accounts: []AccountView{}}
	for _, acct := range a.accounts.Database().Accounts() {
		list.Accounts = append(list.Accounts, AccountView{Username: acct.Username(), Level: acct.Level()})
	}
	if a.reloader != nil {
		list.Generation = a.reloader.Status().Generation
	}
	transport.WriteJSON(w, http.StatusOK, list)
}

// handleReload rebuilds the account database. A failed rebuild keeps the
// previous generation and answers 422 with one detail per defect.
func (a *Admin) handleReload(w http.ResponseWriter, r *http.Request) {
	if a.reloader == nil {
		transport.WriteError(w, http.StatusNotImplemented, "not_implemented", "reloading is not configured")
		return
	}

	if err := a.reloader.Reload(r.Context()); err != nil {
		var verrs account.ValidationErrors
		details := []string{err.Error()}
		if errors.As(err, &verrs) {
			details = verrs.Messages()
		}
		transport.WriteError(w, http.StatusUnprocessableEntity, "invalid_accounts",
			"reload failed, previous accounts remain in effect", details...)
		return
	}

	transport.WriteJSON(w, http.StatusOK, a.reloader.Status())
}

// handleCreateSession exchanges account credentials for a session token.
func (a *Admin) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	if a.sessions == nil {
		transport.WriteError(w, http.StatusNotFound, "not_found", "sessions are disabled")
		return
	}

	id := auth.IdentityFromContext(r.Context())
	if id == nil {
		transport.WriteError(w, http.StatusUnauthorized, "unauthorized", auth.ErrUnauthenticated.Error())
		return
	}
	if id.Method != basic.Method {
		transport.WriteError(w, http.StatusForbidden, "forbidden", "sessions must be created with account credentials")
		return
	}

	acct, ok := a.accounts.Lookup(id.Subject)
	if !ok {
		transport.WriteError(w, http.StatusUnauthorized, "unauthorized", auth.ErrUnauthenticated.Error())
		return
	}

	tok, err := a.sessions.Issue(acct)
	if err != nil {
		transport.WriteError(w, http.StatusInternalServerError, "server_error", "issuing session token failed")
		return
	}
	transport.WriteJSON(w, http.StatusCreated, tok)
}
