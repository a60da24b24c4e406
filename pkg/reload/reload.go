// Package reload rebuilds the account database off the request path and
// installs it atomically. A failed rebuild leaves the previous generation
// in effect.
package reload

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/rhuss/apiaccounts/pkg/account"
	"github.com/rhuss/apiaccounts/pkg/debug"
	"github.com/rhuss/apiaccounts/pkg/observability"
)

// Loader produces a fresh account database. It must not touch the served
// generation.
type Loader func(ctx context.Context) (*account.Database, error)

// Installer receives a new generation and returns the one it replaced.
// basic.Authenticator implements it.
type Installer interface {
	Install(db *account.Database) *account.Database
}

// Status describes the outcome of the most recent reload.
type Status struct {
	Generation uint64    `json:"generation"`
	Accounts   int       `json:"accounts"`
	LastReload time.Time `json:"last_reload"`
	LastError  string    `json:"last_error,omitempty"`
}

// Reloader serializes rebuilds and tracks their outcome.
type Reloader struct {
	load     Loader
	slot     Installer
	debounce time.Duration
	now      func() time.Time

	mu     sync.Mutex
	status Status

	// installed is signaled after each successful reload so Watch can
	// refresh its file set.
	installed chan struct{}
}

// Option configures a Reloader.
type Option func(*Reloader)

// WithDebounce sets how long Watch waits for file events to settle before
// reloading (default 250ms).
func WithDebounce(d time.Duration) Option {
	return func(r *Reloader) { r.debounce = d }
}

// WithClock overrides the time source used for Status.LastReload.
func WithClock(now func() time.Time) Option {
	return func(r *Reloader) { r.now = now }
}

// New creates a Reloader that installs databases produced by load into slot.
func New(load Loader, slot Installer, opts ...Option) *Reloader {
	r := &Reloader{
		load:     load,
		slot:     slot,
		debounce: 250 * time.Millisecond,
		now:      time.Now,

		installed: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reload builds a new generation and installs it. On failure the served
// generation is unchanged and the error is returned; validation failures
// unwrap to account.ValidationErrors.
func (r *Reloader) Reload(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := r.now()
	db, err := r.load(ctx)
	if err != nil {
		status := observability.ReloadFailed
		var verrs account.ValidationErrors
		if errors.As(err, &verrs) {
			status = observability.ReloadInvalid
		}
		observability.ReloadsTotal.WithLabelValues(status).Inc()

		r.status.LastReload = start
		r.status.LastError = err.Error()
		slog.Warn("account reload failed, keeping previous accounts",
			"generation", r.status.Generation, "status", status, "error", err)
		return err
	}

	r.slot.Install(db)
	observability.ReloadsTotal.WithLabelValues(observability.ReloadSuccess).Inc()
	observability.AccountsLoaded.Set(float64(db.Len()))

	r.status = Status{
		Generation: r.status.Generation + 1,
		Accounts:   db.Len(),
		LastReload: start,
	}
	select {
	case r.installed <- struct{}{}:
	default:
	}
	slog.Info("accounts reloaded", "generation", r.status.Generation, "accounts", db.Len())
	debug.Log("reload", "reload finished", "duration", r.now().Sub(start))
	return nil
}

// Status returns the outcome of the most recent reload.
func (r *Reloader) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// NotifySignals reloads whenever one of sigs is received, until ctx is done.
func (r *Reloader) NotifySignals(ctx context.Context, sigs ...os.Signal) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)
	defer signal.Stop(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-ch:
			slog.Info("reload requested", "signal", sig.String())
			_ = r.Reload(ctx)
		}
	}
}
