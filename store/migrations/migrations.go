// Package migrations embeds the SQL schema migrations for the cache store.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
