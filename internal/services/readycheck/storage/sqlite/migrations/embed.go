package migrations

import "embed"

// FS contains embedded SQLite migrations for ready-check storage.
//
//go:embed *.sql
var FS embed.FS
