// Package account parses, validates, and normalizes API account
// specifications and builds the immutable account database consulted by
// the admin interface's authentication path.
//
// Operators describe accounts in one of two forms, freely mixed in one list:
//
//	[
//	  {"username": "foo", "password": "bar"},
//	  {"username": "baz", "password_file": "/path/to/file", "level": "readonly"},
//	  "full:alice:/path/to/secret"
//	]
//
// The string form is a description of the shape [LEVEL:]USERNAME:PASSWORDFILE
// where LEVEL is "full" (the default) or "readonly".
//
// A list passes through three steps before it can serve requests:
//
//  1. Validate reports every structural defect of the list without stopping
//     at the first one. It never touches the filesystem.
//  2. NormalizeAll turns each entry into a Canonical record: level filled in,
//     password_file made absolute.
//  3. Build reads password files and produces a Database.
//
// A list that passes Validate is valid; a record produced by the Normalizer is
// canonical. The two properties are orthogonal. Compile runs all three steps.
//
// A Database is never mutated after Build. Callers serving concurrent
// requests keep the current generation behind an atomic pointer and replace
// it wholesale on reload.
package account
