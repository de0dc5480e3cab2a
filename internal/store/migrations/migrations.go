// Package migrations embeds versioned SQL migrations for the
// PostgreSQL backend and runs them with golang-migrate. The idhostd
// commands do not use it; they rely on GORM's AutoMigrate
// (internal/store.New) for both SQLite and PostgreSQL.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
