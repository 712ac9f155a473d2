// Package migrations embeds the SQL migration files applied through goose.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
