package migrations

import "embed"

// FS contains embedded SQLite migrations for contract storage.
//
//go:embed *.sql
var FS embed.FS
