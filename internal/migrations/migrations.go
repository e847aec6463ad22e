// Package migrations embeds the goose migration scripts for the SQLite document store.
package migrations

import "embed"

// FS is the embedded filesystem
//
//go:embed *.sql
var FS embed.FS
