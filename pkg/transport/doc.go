// Package transport provides the net/http plumbing shared by the admin
// interface: middleware for panic recovery, request IDs (X-Request-ID), and
// structured access logging via log/slog, plus JSON response helpers.
//
// Middleware is applied with Chain: Chain(a, b, c)(h) runs a first on the way
// in and last on the way out.
package transport
