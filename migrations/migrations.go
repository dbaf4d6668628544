// Package migrations embeds the SQL schema migrations applied at worker boot.
package migrations

import "embed"

// FS holds the goose migration files.
//
//go:embed *.sql
var FS embed.FS
