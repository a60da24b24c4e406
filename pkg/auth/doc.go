// Package auth provides pluggable authentication and authorization for the
// apiaccounts admin interface.
//
// Authentication uses a chain-of-responsibility pattern with three-outcome
// voting: each authenticator returns Yes (identity found), No (credentials
// invalid), or Abstain (can't handle). A configurable default voter decides
// when all authenticators abstain.
//
// Authorization is level based: identities with the readonly level may only
// use safe HTTP methods. Both steps run as HTTP middleware.
package auth
