package http

import (
	"context"
	"encoding/json"
	"errors"
	gohttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rhuss/apiaccounts/pkg/account"
	"github.com/rhuss/apiaccounts/pkg/auth"
	"github.com/rhuss/apiaccounts/pkg/auth/basic"
	"github.com/rhuss/apiaccounts/pkg/auth/session"
	"github.com/rhuss/apiaccounts/pkg/reload"
	"github.com/rhuss/apiaccounts/pkg/transport"
)

var testSigningKey = []byte("0123456789abcdef0123456789abcdef")

func compile(t *testing.T, specs ...account.Spec) *account.Database {
	t.Helper()
	db, err := account.Compile("accounts.list", specs)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return db
}

func record(username, password, level string) account.Spec {
	rec := map[string]any{"username": username, "password": password}
	if level != "" {
		rec["level"] = level
	}
	return account.RecordSpec(rec)
}

// stubReloader installs next on Reload, or fails with err.
type stubReloader struct {
	slot *basic.Authenticator
	next *account.Database
	err  error
	gen  uint64
}

func (s *stubReloader) Reload(context.Context) error {
	if s.err != nil {
		return s.err
	}
	s.slot.Install(s.next)
	s.gen++
	return nil
}

func (s *stubReloader) Status() reload.Status {
	return reload.Status{Generation: s.gen, Accounts: s.slot.Database().Len()}
}

type fixture struct {
	handler  gohttp.Handler
	accounts *basic.Authenticator
	reloader *stubReloader
	sessions *session.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	accounts := basic.New(compile(t,
		record("alice", "alicepw", ""),
		record("bob", "bobpw", "readonly"),
	))
	sessions, err := session.New(session.Config{SigningKey: testSigningKey}, accounts)
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	reloader := &stubReloader{slot: accounts, gen: 1}

	admin := NewAdmin(accounts,
		WithReloader(reloader),
		WithSessions(sessions),
		WithMetrics("/metrics"),
	)
	chain := &auth.AuthChain{
		Authenticators:  []auth.Authenticator{accounts, sessions},
		DefaultDecision: auth.No,
	}

	return &fixture{
		handler:  auth.Middleware(chain, nil, auth.DefaultBypassEndpoints)(admin.Handler()),
		accounts: accounts,
		reloader: reloader,
		sessions: sessions,
	}
}

func (f *fixture) do(method, path, user, pass string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, path, nil)
	if user != "" {
		r.SetBasicAuth(user, pass)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, r)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decoding body %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestAdmin_PublicEndpoints(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		if rec := f.do("GET", path, "", ""); rec.Code != gohttp.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}

func TestAdmin_ReadyRequiresAccounts(t *testing.T) {
	f := newFixture(t)
	f.accounts.Install(compile(t))

	if rec := f.do("GET", "/readyz", "", ""); rec.Code != gohttp.StatusServiceUnavailable {
		t.Errorf("GET /readyz with empty database = %d, want 503", rec.Code)
	}
	if rec := f.do("GET", "/healthz", "", ""); rec.Code != gohttp.StatusOK {
		t.Errorf("GET /healthz = %d, want 200", rec.Code)
	}
}

// stubSource reports err from HealthCheck.
type stubSource struct{ err error }

func (s stubSource) HealthCheck(context.Context) error { return s.err }

func TestAdmin_ReadyChecksSource(t *testing.T) {
	accounts := basic.New(compile(t, record("alice", "alicepw", "")))

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "reachable", want: gohttp.StatusOK},
		{name: "unreachable", err: errors.New("connection refused"), want: gohttp.StatusServiceUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := NewAdmin(accounts, WithSourceCheck(stubSource{err: tc.err})).Handler()
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest("GET", "/readyz", nil))
			if rec.Code != tc.want {
				t.Errorf("GET /readyz = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestAdmin_WhoAmI(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name       string
		user, pass string
		wantStatus int
		wantLevel  account.Level
	}{
		{"full account", "alice", "alicepw", gohttp.StatusOK, account.LevelFull},
		{"readonly account", "bob", "bobpw", gohttp.StatusOK, account.LevelReadOnly},
		{"wrong password", "alice", "nope", gohttp.StatusUnauthorized, ""},
		{"unknown user", "mallory", "x", gohttp.StatusUnauthorized, ""},
		{"no credentials", "", "", gohttp.StatusUnauthorized, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do("GET", "/api/whoami", tc.user, tc.pass)
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if tc.wantStatus != gohttp.StatusOK {
				return
			}
			got := decode[WhoAmI](t, rec)
			if got.Subject != tc.user || got.Level != tc.wantLevel || got.Method != basic.Method {
				t.Errorf("whoami = %+v", got)
			}
		})
	}
}

func TestAdmin_ListAccountsHidesSecrets(t *testing.T) {
	f := newFixture(t)

	rec := f.do("GET", "/api/accounts", "bob", "bobpw")
	if rec.Code != gohttp.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "alicepw") || strings.Contains(rec.Body.String(), "password") {
		t.Errorf("account listing leaks secrets: %s", rec.Body.String())
	}

	list := decode[AccountList](t, rec)
	if list.Generation != 1 || len(list.Accounts) != 2 {
		t.Fatalf("list = %+v", list)
	}
	if list.Accounts[0] != (AccountView{Username: "alice", Level: account.LevelFull}) {
		t.Errorf("accounts[0] = %+v", list.Accounts[0])
	}
	if list.Accounts[1] != (AccountView{Username: "bob", Level: account.LevelReadOnly}) {
		t.Errorf("accounts[1] = %+v", list.Accounts[1])
	}
}

func TestAdmin_Reload(t *testing.T) {
	f := newFixture(t)
	f.reloader.next = compile(t, record("carol", "carolpw", ""))

	if rec := f.do("POST", "/api/reload", "bob", "bobpw"); rec.Code != gohttp.StatusForbidden {
		t.Errorf("readonly reload = %d, want 403", rec.Code)
	}

	rec := f.do("POST", "/api/reload", "alice", "alicepw")
	if rec.Code != gohttp.StatusOK {
		t.Fatalf("reload = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if st := decode[reload.Status](t, rec); st.Generation != 2 || st.Accounts != 1 {
		t.Errorf("status = %+v", st)
	}

	if rec := f.do("GET", "/api/whoami", "alice", "alicepw"); rec.Code != gohttp.StatusUnauthorized {
		t.Errorf("alice after reload = %d, want 401", rec.Code)
	}
	if rec := f.do("GET", "/api/whoami", "carol", "carolpw"); rec.Code != gohttp.StatusOK {
		t.Errorf("carol after reload = %d, want 200", rec.Code)
	}
}

func TestAdmin_ReloadFailure(t *testing.T) {
	f := newFixture(t)

	verrs := account.Validate("accounts.list", []account.Spec{
		account.DescriptionSpec("api:/x"),
		account.RecordSpec(map[string]any{"username": "dave"}),
	})

	tests := []struct {
		name        string
		err         error
		wantDetails int
	}{
		{"validation errors", verrs, 2},
		{"secret unavailable", errors.New("account 0: secret unavailable"), 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f.reloader.err = tc.err

			rec := f.do("POST", "/api/reload", "alice", "alicepw")
			if rec.Code != gohttp.StatusUnprocessableEntity {
				t.Fatalf("status = %d, want 422", rec.Code)
			}
			body := decode[transport.ErrorBody](t, rec)
			if body.Error.Type != "invalid_accounts" || len(body.Error.Details) != tc.wantDetails {
				t.Errorf("error = %+v", body.Error)
			}

			if rec := f.do("GET", "/api/whoami", "alice", "alicepw"); rec.Code != gohttp.StatusOK {
				t.Errorf("alice lost after failed reload: %d", rec.Code)
			}
		})
	}
}

func TestAdmin_Session(t *testing.T) {
	f := newFixture(t)

	rec := f.do("POST", "/api/session", "alice", "alicepw")
	if rec.Code != gohttp.StatusCreated {
		t.Fatalf("create session = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	tok := decode[session.Token](t, rec)
	if tok.Value == "" || tok.ExpiresAt.IsZero() {
		t.Fatalf("token = %+v", tok)
	}

	bearer := func(method, path string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(method, path, nil)
		r.Header.Set("Authorization", "Bearer "+tok.Value)
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, r)
		return rec
	}

	rec = bearer("GET", "/api/whoami")
	if rec.Code != gohttp.StatusOK {
		t.Fatalf("whoami with session = %d, want 200", rec.Code)
	}
	if got := decode[WhoAmI](t, rec); got.Subject != "alice" || got.Method != session.Method || got.ExpiresAt == "" {
		t.Errorf("whoami = %+v", got)
	}

	if rec := bearer("POST", "/api/session"); rec.Code != gohttp.StatusForbidden {
		t.Errorf("session renewal with a token = %d, want 403", rec.Code)
	}

	f.accounts.Install(compile(t, record("bob", "bobpw", "readonly")))
	if rec := bearer("GET", "/api/whoami"); rec.Code != gohttp.StatusUnauthorized {
		t.Errorf("whoami after alice was removed = %d, want 401", rec.Code)
	}
}

func TestAdmin_SessionsDisabled(t *testing.T) {
	accounts := basic.New(compile(t, record("alice", "alicepw", "")))
	chain := &auth.AuthChain{Authenticators: []auth.Authenticator{accounts}, DefaultDecision: auth.No}
	handler := auth.Middleware(chain, nil, auth.DefaultBypassEndpoints)(NewAdmin(accounts).Handler())

	r := httptest.NewRequest("POST", "/api/session", nil)
	r.SetBasicAuth("alice", "alicepw")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	if rec.Code != gohttp.StatusNotFound {
		t.Errorf("session without manager = %d, want 404", rec.Code)
	}

	r = httptest.NewRequest("POST", "/api/reload", nil)
	r.SetBasicAuth("alice", "alicepw")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	if rec.Code != gohttp.StatusNotImplemented {
		t.Errorf("reload without reloader = %d, want 501", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != gohttp.StatusNotFound {
		t.Errorf("metrics when disabled = %d, want 404", rec.Code)
	}
}
