package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rhuss/apiaccounts/pkg/account"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func chainFor(id *Identity) *AuthChain {
	return &AuthChain{
		Authenticators:  []Authenticator{&mockAuthn{result: AuthResult{Decision: Yes, Identity: id}}},
		DefaultDecision: No,
	}
}

func TestMiddleware_BypassEndpoint(t *testing.T) {
	chain := &AuthChain{DefaultDecision: No}
	handler := Middleware(chain, nil, []string{"/healthz"})(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("bypass endpoint: status = %d, want 200", rec.Code)
	}
}

func TestMiddleware_NoAuth_Rejects(t *testing.T) {
	chain := &AuthChain{DefaultDecision: No}
	handler := Middleware(chain, nil, DefaultBypassEndpoints)(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/accounts", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no auth: status = %d, want 401", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Error("missing WWW-Authenticate challenge")
	}
}

func TestMiddleware_ValidAuth_InjectsIdentity(t *testing.T) {
	chain := chainFor(&Identity{Subject: "alice", Level: account.LevelFull})

	var got *Identity
	handler := Middleware(chain, nil, DefaultBypassEndpoints)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/api/reload", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("valid auth: status = %d, want 200", rec.Code)
	}
	if got == nil || got.Subject != "alice" {
		t.Errorf("identity in context = %+v, want alice", got)
	}
}

func TestMiddleware_ReadOnlyLevel(t *testing.T) {
	chain := chainFor(&Identity{Subject: "bob", Level: account.LevelReadOnly})
	handler := Middleware(chain, nil, DefaultBypassEndpoints)(okHandler())

	tests := []struct {
		method string
		want   int
	}{
		{"GET", http.StatusOK},
		{"HEAD", http.StatusOK},
		{"OPTIONS", http.StatusOK},
		{"POST", http.StatusForbidden},
		{"PUT", http.StatusForbidden},
		{"DELETE", http.StatusForbidden},
	}

	for _, tc := range tests {
		t.Run(tc.method, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(tc.method, "/api/reload", nil))
			if rec.Code != tc.want {
				t.Errorf("%s: status = %d, want %d", tc.method, rec.Code, tc.want)
			}
		})
	}
}

func TestMiddleware_EmptySubject(t *testing.T) {
	chain := chainFor(&Identity{Level: account.LevelFull})
	handler := Middleware(chain, nil, DefaultBypassEndpoints)(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/whoami", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("empty subject: status = %d, want 500", rec.Code)
	}
}

func TestMiddleware_RateLimit_Exceeded(t *testing.T) {
	chain := chainFor(&Identity{Subject: "alice", Level: account.LevelReadOnly})
	limiter := NewInProcessLimiter(map[account.Level]LevelConfig{
		account.LevelReadOnly: {RequestsPerMinute: 2},
	}, 100)

	handler := Middleware(chain, limiter, DefaultBypassEndpoints)(okHandler())

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/accounts", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want 200", i+1, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/accounts", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("rate limited request: status = %d, want 429", rec.Code)
	}
}

func TestMiddleware_NoLimiter_AllAllowed(t *testing.T) {
	chain := chainFor(&Identity{Subject: "alice", Level: account.LevelFull})
	handler := Middleware(chain, nil, DefaultBypassEndpoints)(okHandler())

	for i := 0; i < 100; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/accounts", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want 200", i+1, rec.Code)
			break
		}
	}
}

var _ Authenticator = (*mockAuthn)(nil)
